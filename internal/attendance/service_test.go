package attendance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/attendance"
	"nfcattendance/internal/clock"
	"nfcattendance/internal/logging"
	"nfcattendance/internal/memstore"
	"nfcattendance/internal/roster"
)

var monday = time.Date(2024, 3, 4, 9, 15, 30, 0, time.UTC)

func newService(t *testing.T) (*attendance.Service, *memstore.Store, *clock.Fake) {
	t.Helper()
	st := memstore.New()
	clk := clock.NewFake(monday)
	return attendance.NewService(st, clk, logging.Discard()), st, clk
}

func addStudent(t *testing.T, st *memstore.Store, name, reg string, tag *string) roster.Student {
	t.Helper()
	s, err := st.CreateStudent(context.Background(), roster.Student{
		ID:             uuid.NewString(),
		Name:           name,
		RegisterNumber: reg,
		Section:        "A",
		Department:     "CSE",
		Duration:       "2022-2026",
		NFCTagID:       tag,
	})
	require.NoError(t, err)
	return s
}

func TestAdmitRejectsWithinWindow(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	s := addStudent(t, st, "Asha Rao", "21CS001", nil)

	first, err := svc.Admit(ctx, s.ID, monday, attendance.Meta{RecordedBy: "Dr. Iyer"})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", first.StudentName)
	assert.Equal(t, "Dr. Iyer", first.RecordedBy)

	for _, gap := range []time.Duration{time.Second, 10 * time.Minute, time.Hour - time.Second} {
		_, err = svc.Admit(ctx, s.ID, monday.Add(gap), attendance.Meta{})
		require.Error(t, err, "gap %s", gap)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "Asha Rao")
		assert.Contains(t, err.Error(), "09:15:30")
	}

	history, err := svc.History(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAdmitAcceptsAfterWindow(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	s := addStudent(t, st, "Asha Rao", "21CS001", nil)

	_, err := svc.Admit(ctx, s.ID, monday, attendance.Meta{})
	require.NoError(t, err)
	_, err = svc.Admit(ctx, s.ID, monday.Add(time.Hour), attendance.Meta{})
	require.NoError(t, err)
	_, err = svc.Admit(ctx, s.ID, monday.Add(3*time.Hour), attendance.Meta{})
	require.NoError(t, err)

	history, err := svc.History(ctx, s.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, monday.Add(3*time.Hour), history[0].Timestamp)
	assert.Equal(t, monday.Add(time.Hour), history[1].Timestamp)
}

func TestAdmitWindowIsPerStudent(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	a := addStudent(t, st, "Asha Rao", "21CS001", nil)
	b := addStudent(t, st, "Ben Paul", "21CS002", nil)

	_, err := svc.Admit(ctx, a.ID, monday, attendance.Meta{})
	require.NoError(t, err)
	_, err = svc.Admit(ctx, b.ID, monday.Add(time.Minute), attendance.Meta{})
	require.NoError(t, err)
}

func TestRecordScanUsesServerClock(t *testing.T) {
	svc, st, clk := newService(t)
	ctx := context.Background()
	s := addStudent(t, st, "Asha Rao", "21CS001", nil)

	rec, err := svc.RecordScan(ctx, attendance.Scan{StudentID: s.ID})
	require.NoError(t, err)
	assert.Equal(t, monday, rec.Timestamp)
	assert.Equal(t, "Unknown Faculty", rec.RecordedBy)

	clk.Advance(10 * time.Minute)
	_, err = svc.RecordScan(ctx, attendance.Scan{StudentID: s.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "09:15:30")
}

func TestRecordScanByTag(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	tag := "04:A2:19:7F"
	s := addStudent(t, st, "Asha Rao", "21CS001", &tag)

	section := "A"
	rec, err := svc.RecordScan(ctx, attendance.Scan{NFCTagID: " " + tag + " ", Meta: attendance.Meta{Section: &section}})
	require.NoError(t, err)
	assert.Equal(t, s.ID, rec.StudentID)
	require.NotNil(t, rec.Section)
	assert.Equal(t, "A", *rec.Section)

	_, err = svc.RecordScan(ctx, attendance.Scan{NFCTagID: "FF:FF"})
	assert.ErrorIs(t, err, attendance.ErrUnknownTag)
}

func TestRecordScanRejectsMissingOrUnknownStudent(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.RecordScan(ctx, attendance.Scan{})
	assert.ErrorIs(t, err, attendance.ErrStudentRequired)

	_, err = svc.RecordScan(ctx, attendance.Scan{StudentID: uuid.NewString()})
	assert.ErrorIs(t, err, roster.ErrStudentNotFound)

	_, err = svc.Admit(ctx, "not-a-uuid", monday, attendance.Meta{})
	assert.ErrorIs(t, err, roster.ErrStudentNotFound)
}

func TestConcurrentAdmitsAcceptExactlyOne(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()
	s := addStudent(t, st, "Asha Rao", "21CS001", nil)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Admit(ctx, s.ID, monday.Add(time.Duration(i)*time.Second), attendance.Meta{})
			mu.Lock()
			defer mu.Unlock()
			var ae *apperr.Error
			switch {
			case err == nil:
				accepted++
			case errors.As(err, &ae) && ae.Kind == apperr.KindConflict:
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, rejected)
}

func TestStatsAndOnDate(t *testing.T) {
	svc, st, clk := newService(t)
	ctx := context.Background()
	a := addStudent(t, st, "Asha Rao", "21CS001", nil)
	addStudent(t, st, "Ben Paul", "21CS002", nil)

	yesterday := monday.Add(-24 * time.Hour)
	_, err := svc.Admit(ctx, a.ID, yesterday, attendance.Meta{})
	require.NoError(t, err)
	_, err = svc.Admit(ctx, a.ID, monday.Add(-2*time.Hour), attendance.Meta{})
	require.NoError(t, err)
	_, err = svc.Admit(ctx, a.ID, monday, attendance.Meta{})
	require.NoError(t, err)

	clk.Set(monday.Add(time.Hour))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.Stats{
		TotalStudents:          2,
		TotalAttendanceRecords: 3,
		TodayAttendanceCount:   2,
		TodayUniqueStudents:    1,
		TodayPercentage:        50,
	}, stats)

	today, err := svc.OnDate(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, today, 2)

	prev, err := svc.OnDate(ctx, yesterday)
	require.NoError(t, err)
	require.Len(t, prev, 1)
	assert.Equal(t, yesterday, prev[0].Timestamp)

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestStatsWithEmptyRoster(t *testing.T) {
	svc, _, _ := newService(t)
	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TodayPercentage)
}
