package memstore

import (
	"context"
	"sort"
	"time"

	"nfcattendance/internal/attendance"
	"nfcattendance/internal/roster"
)

// attendanceTx stages created records until the callback returns nil.
type attendanceTx struct {
	s       *Store
	created []attendance.Record
}

// InTx implements attendance.Store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx attendance.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &attendanceTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.attendance = append(s.attendance, tx.created...)
	return nil
}

func (t *attendanceTx) LockStudent(_ context.Context, id string) (*roster.Student, error) {
	return t.s.studentByID(id), nil
}

func (t *attendanceTx) FindStudentByTag(_ context.Context, tag string) (*roster.Student, error) {
	return t.s.studentByTag(tag), nil
}

func (t *attendanceTx) FindLatestAttendance(_ context.Context, studentID string, since time.Time) (*attendance.Record, error) {
	var latest *attendance.Record
	all := append(append([]attendance.Record{}, t.s.attendance...), t.created...)
	for i := range all {
		rec := all[i]
		if rec.StudentID != studentID || !rec.Timestamp.After(since) {
			continue
		}
		if latest == nil || rec.Timestamp.After(latest.Timestamp) {
			latest = &rec
		}
	}
	return latest, nil
}

func (t *attendanceTx) CreateAttendance(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	t.created = append(t.created, rec)
	return rec, nil
}

func (s *Store) ListAttendanceByStudent(_ context.Context, studentID string, limit int) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectRecords(func(r attendance.Record) bool { return r.StudentID == studentID }, limit), nil
}

func (s *Store) ListRecentAttendance(_ context.Context, limit int) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectRecords(func(attendance.Record) bool { return true }, limit), nil
}

func (s *Store) ListAttendanceBetween(_ context.Context, from, to time.Time) ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectRecords(func(r attendance.Record) bool {
		return !r.Timestamp.Before(from) && r.Timestamp.Before(to)
	}, 0), nil
}

func (s *Store) CountAttendance(_ context.Context, since time.Time) (attendance.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := attendance.Counts{Students: len(s.students), Records: len(s.attendance)}
	seen := map[string]bool{}
	for _, rec := range s.attendance {
		if rec.Timestamp.Before(since) {
			continue
		}
		c.SinceRecords++
		seen[rec.StudentID] = true
	}
	c.SinceStudents = len(seen)
	return c, nil
}

// selectRecords returns matches newest first with the current student
// name and register number joined in.
func (s *Store) selectRecords(match func(attendance.Record) bool, limit int) []attendance.Record {
	res := []attendance.Record{}
	for _, rec := range s.attendance {
		if !match(rec) {
			continue
		}
		if st, ok := s.students[rec.StudentID]; ok {
			rec.StudentName = st.Name
			rec.RegisterNumber = st.RegisterNumber
		}
		res = append(res, rec)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}
