// Package memstore is an in-memory Record Store for development and tests.
// A transaction holds the store mutex for its whole callback, which gives
// the same serialization per row that Postgres row locks give, only coarser.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/attendance"
	"nfcattendance/internal/faculty"
	"nfcattendance/internal/roster"
)

// Store keeps students, faculty and attendance in maps.
type Store struct {
	mu         sync.Mutex
	students   map[string]roster.Student
	faculty    map[string]faculty.Faculty
	attendance []attendance.Record
}

func New() *Store {
	return &Store{
		students: map[string]roster.Student{},
		faculty:  map[string]faculty.Faculty{},
	}
}

var (
	_ roster.Store     = (*Store)(nil)
	_ attendance.Store = (*Store)(nil)
	_ faculty.Store    = facultyStore{}
	_ faculty.Purger   = (*Store)(nil)
)

// Students

func (s *Store) CreateStudent(_ context.Context, st roster.Student) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.students {
		if other.RegisterNumber == st.RegisterNumber {
			return roster.Student{}, apperr.Conflict("Database integrity error: Student may already exist")
		}
		if st.NFCTagID != nil && other.NFCTagID != nil && *other.NFCTagID == *st.NFCTagID {
			return roster.Student{}, apperr.Conflict("NFC tag already registered to another student")
		}
	}
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now
	st.HasNFC = st.NFCTagID != nil
	s.students[st.ID] = cloneStudent(st)
	return cloneStudent(st), nil
}

func (s *Store) FindStudentByID(_ context.Context, id string) (*roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studentByID(id), nil
}

func (s *Store) FindStudentByRegisterNumber(_ context.Context, registerNumber string) (*roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.students {
		if st.RegisterNumber == registerNumber {
			c := cloneStudent(st)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) FindStudentByTag(_ context.Context, tag string) (*roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.studentByTag(tag), nil
}

func (s *Store) ListStudents(_ context.Context, f roster.Filter) ([]roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	search := strings.ToLower(f.Search)
	res := []roster.Student{}
	for _, st := range s.students {
		if search != "" {
			if !strings.Contains(strings.ToLower(st.Name), search) &&
				!strings.Contains(strings.ToLower(st.RegisterNumber), search) {
				continue
			}
		} else {
			if f.Section != "" && st.Section != f.Section {
				continue
			}
			if f.Department != "" && st.Department != f.Department {
				continue
			}
			if f.Duration != "" && st.Duration != f.Duration {
				continue
			}
			if f.HasNFC != nil && *f.HasNFC != (st.NFCTagID != nil) {
				continue
			}
		}
		res = append(res, cloneStudent(st))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RegisterNumber < res[j].RegisterNumber })
	return res, nil
}

func (s *Store) SetStudentTag(_ context.Context, id string, tag *string) (roster.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.students[id]
	if !ok {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	if tag != nil {
		if owner := s.studentByTag(*tag); owner != nil && owner.ID != id {
			return roster.Student{}, apperr.Conflict("NFC tag already registered to another student")
		}
		t := *tag
		st.NFCTagID = &t
	} else {
		st.NFCTagID = nil
	}
	st.HasNFC = st.NFCTagID != nil
	st.UpdatedAt = time.Now().UTC()
	s.students[id] = st
	return cloneStudent(st), nil
}

// DeleteStudent removes the student together with its attendance.
func (s *Store) DeleteStudent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[id]; !ok {
		return false, nil
	}
	delete(s.students, id)
	kept := s.attendance[:0]
	for _, rec := range s.attendance {
		if rec.StudentID != id {
			kept = append(kept, rec)
		}
	}
	s.attendance = kept
	return true, nil
}

func (s *Store) studentByID(id string) *roster.Student {
	st, ok := s.students[id]
	if !ok {
		return nil
	}
	c := cloneStudent(st)
	return &c
}

func (s *Store) studentByTag(tag string) *roster.Student {
	for _, st := range s.students {
		if st.NFCTagID != nil && *st.NFCTagID == tag {
			c := cloneStudent(st)
			return &c
		}
	}
	return nil
}

func cloneStudent(st roster.Student) roster.Student {
	if st.NFCTagID != nil {
		t := *st.NFCTagID
		st.NFCTagID = &t
	}
	return st
}
