package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/attendance"
	"nfcattendance/internal/faculty"
	"nfcattendance/internal/roster"
)

func seedStudent(t *testing.T, s *Store, reg string, tag *string) roster.Student {
	t.Helper()
	st, err := s.CreateStudent(context.Background(), roster.Student{
		ID: uuid.NewString(), Name: "Asha Rao", RegisterNumber: reg, Section: "A", Department: "CSE", Duration: "4",
		NFCTagID: tag,
	})
	require.NoError(t, err)
	return st
}

func TestStudentUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	tag := "04:A2"
	a := seedStudent(t, s, "21CS001", &tag)

	_, err := s.CreateStudent(ctx, roster.Student{ID: uuid.NewString(), RegisterNumber: "21CS001"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	b := seedStudent(t, s, "21CS002", nil)
	_, err = s.SetStudentTag(ctx, b.ID, &tag)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	same, err := s.SetStudentTag(ctx, a.ID, &tag)
	require.NoError(t, err)
	assert.True(t, same.HasNFC)

	_, err = s.SetStudentTag(ctx, uuid.NewString(), nil)
	assert.ErrorIs(t, err, roster.ErrStudentNotFound)
}

func TestReturnedStudentsAreCopies(t *testing.T) {
	s := New()
	tag := "04:A2"
	a := seedStudent(t, s, "21CS001", &tag)
	*a.NFCTagID = "FF"

	got, err := s.FindStudentByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "04:A2", *got.NFCTagID)
}

func TestDeleteStudentCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedStudent(t, s, "21CS001", nil)
	b := seedStudent(t, s, "21CS002", nil)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	for _, id := range []string{a.ID, b.ID} {
		id := id
		require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx attendance.Tx) error {
			_, err := tx.CreateAttendance(ctx, attendance.Record{ID: uuid.NewString(), StudentID: id, Timestamp: now})
			return err
		}))
	}

	ok, err := s.DeleteStudent(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	recent, err := s.ListRecentAttendance(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, b.ID, recent[0].StudentID)
	assert.Equal(t, "21CS002", recent[0].RegisterNumber)

	ok, err = s.DeleteStudent(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttendanceTxDiscardsOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedStudent(t, s, "21CS001", nil)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx attendance.Tx) error {
		if _, err := tx.CreateAttendance(ctx, attendance.Record{ID: uuid.NewString(), StudentID: a.ID, Timestamp: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	recs, err := s.ListAttendanceByStudent(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFacultyTxDiscardsOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	fs := s.Faculty()

	err := fs.InTx(ctx, func(ctx context.Context, tx faculty.Tx) error {
		f, err := tx.Create(ctx, faculty.Faculty{ID: uuid.NewString(), Name: "Dr. Iyer", Email: "a@x.edu"})
		require.NoError(t, err)
		again, err := tx.LockByEmail(ctx, "a@x.edu")
		require.NoError(t, err)
		assert.Equal(t, f.ID, again.ID)
		return errors.New("rollback")
	})
	require.Error(t, err)

	f, err := fs.FindFacultyByEmail(ctx, "a@x.edu")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestFacultyCreateKeepsExistingRow(t *testing.T) {
	s := New()
	ctx := context.Background()
	fs := s.Faculty()
	first := uuid.NewString()

	for _, id := range []string{first, uuid.NewString()} {
		id := id
		require.NoError(t, fs.InTx(ctx, func(ctx context.Context, tx faculty.Tx) error {
			f, err := tx.Create(ctx, faculty.Faculty{ID: id, Name: "Dr. Iyer", Email: "a@x.edu"})
			if err != nil {
				return err
			}
			return tx.Save(ctx, f)
		}))
	}

	f, err := fs.FindFacultyByEmail(ctx, "a@x.edu")
	require.NoError(t, err)
	assert.Equal(t, first, f.ID)
}
