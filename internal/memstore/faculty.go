package memstore

import (
	"context"
	"time"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/faculty"
)

// facultyStore adapts Store to faculty.Store, whose InTx signature differs
// from the attendance one.
type facultyStore struct{ s *Store }

// Faculty returns the faculty view of the store.
func (s *Store) Faculty() faculty.Store { return facultyStore{s: s} }

func (f facultyStore) InTx(ctx context.Context, fn func(ctx context.Context, tx faculty.Tx) error) error {
	return f.s.FacultyTx(ctx, fn)
}

func (f facultyStore) FindFacultyByEmail(ctx context.Context, email string) (*faculty.Faculty, error) {
	return f.s.FindFacultyByEmail(ctx, email)
}

type facultyTx struct {
	s      *Store
	staged map[string]faculty.Faculty
}

// FacultyTx runs fn with staged faculty writes applied only on success.
func (s *Store) FacultyTx(ctx context.Context, fn func(ctx context.Context, tx faculty.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &facultyTx{s: s, staged: map[string]faculty.Faculty{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for email, f := range tx.staged {
		s.faculty[email] = f
	}
	return nil
}

func (t *facultyTx) LockByEmail(_ context.Context, email string) (*faculty.Faculty, error) {
	if f, ok := t.staged[email]; ok {
		c := cloneFaculty(f)
		return &c, nil
	}
	return t.s.facultyByEmail(email), nil
}

func (t *facultyTx) Create(ctx context.Context, f faculty.Faculty) (*faculty.Faculty, error) {
	if existing, _ := t.LockByEmail(ctx, f.Email); existing != nil {
		return existing, nil
	}
	t.staged[f.Email] = cloneFaculty(f)
	c := cloneFaculty(f)
	return &c, nil
}

func (t *facultyTx) Save(_ context.Context, f *faculty.Faculty) error {
	if f.RememberTokenHash != nil {
		for email, other := range t.s.faculty {
			if email != f.Email && other.RememberTokenHash != nil && *other.RememberTokenHash == *f.RememberTokenHash {
				return apperr.Conflict("Remember token collision, please retry")
			}
		}
	}
	t.staged[f.Email] = cloneFaculty(*f)
	return nil
}

func (s *Store) FindFacultyByEmail(_ context.Context, email string) (*faculty.Faculty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facultyByEmail(email), nil
}

// PurgeStaleCredentials implements faculty.Purger.
func (s *Store) PurgeStaleCredentials(_ context.Context, otpBefore, tokenBefore time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var codes, tokens int64
	for email, f := range s.faculty {
		if f.OTPHash != nil && f.OTPIssuedAt != nil && f.OTPIssuedAt.Before(otpBefore) {
			f.OTPHash, f.OTPIssuedAt, f.OTPAttempts = nil, nil, 0
			codes++
		}
		if f.RememberTokenHash != nil && f.RememberExpiresAt != nil && f.RememberExpiresAt.Before(tokenBefore) {
			f.RememberTokenHash, f.RememberExpiresAt = nil, nil
			tokens++
		}
		s.faculty[email] = f
	}
	return codes, tokens, nil
}

func (s *Store) facultyByEmail(email string) *faculty.Faculty {
	f, ok := s.faculty[email]
	if !ok {
		return nil
	}
	c := cloneFaculty(f)
	return &c
}

func cloneFaculty(f faculty.Faculty) faculty.Faculty {
	f.Sections = append([]string{}, f.Sections...)
	if f.OTPHash != nil {
		v := *f.OTPHash
		f.OTPHash = &v
	}
	if f.OTPIssuedAt != nil {
		v := *f.OTPIssuedAt
		f.OTPIssuedAt = &v
	}
	if f.RememberTokenHash != nil {
		v := *f.RememberTokenHash
		f.RememberTokenHash = &v
	}
	if f.RememberExpiresAt != nil {
		v := *f.RememberExpiresAt
		f.RememberExpiresAt = &v
	}
	return f
}
