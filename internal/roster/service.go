package roster

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nfcattendance/internal/apperr"
)

// ErrStudentNotFound is returned when no student matches an id or tag.
var ErrStudentNotFound = apperr.NotFound("Student not found")

// Service implements roster management and NFC tag binding.
type Service struct {
	store  Store
	logger *logrus.Logger
}

// NewService creates a roster service.
func NewService(store Store, logger *logrus.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create validates and persists a new student.
func (s *Service) Create(ctx context.Context, in Input) (Student, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Student{}, err
	}
	existing, err := s.store.FindStudentByRegisterNumber(ctx, in.RegisterNumber)
	if err != nil {
		return Student{}, err
	}
	if existing != nil {
		return Student{}, apperr.Conflict(fmt.Sprintf("Student with register number %s already exists", in.RegisterNumber))
	}
	st, err := s.store.CreateStudent(ctx, Student{
		ID:             uuid.NewString(),
		Name:           in.Name,
		RegisterNumber: in.RegisterNumber,
		Section:        in.Section,
		Department:     in.Department,
		Duration:       in.Duration,
	})
	if err != nil {
		return Student{}, err
	}
	s.logger.WithFields(logrus.Fields{"student_id": st.ID, "register_number": st.RegisterNumber}).Info("student created")
	return st, nil
}

// RowError describes one rejected row of a bulk import.
type RowError struct {
	Row            int    `json:"row"`
	RegisterNumber string `json:"register_number"`
	Error          string `json:"error"`
}

// BulkResult summarises a bulk import.
type BulkResult struct {
	SuccessCount int        `json:"success_count"`
	FailedCount  int        `json:"failed_count"`
	Errors       []RowError `json:"errors"`
}

// BulkCreate creates each row independently. Errors carry the input's sheet
// row; inputs without one are numbered by position, with row 1 the header.
func (s *Service) BulkCreate(ctx context.Context, rows []Input) (BulkResult, error) {
	res := BulkResult{Errors: []RowError{}}
	for i, in := range rows {
		_, err := s.Create(ctx, in)
		if err == nil {
			res.SuccessCount++
			continue
		}
		if apperr.KindOf(err) == apperr.KindStorage {
			return res, err
		}
		reg := strings.TrimSpace(in.RegisterNumber)
		if reg == "" {
			reg = "N/A"
		}
		row := in.Row
		if row == 0 {
			row = i + 2
		}
		res.FailedCount++
		res.Errors = append(res.Errors, RowError{Row: row, RegisterNumber: reg, Error: err.Error()})
	}
	return res, nil
}

// Get returns a student by id.
func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	st, err := s.store.FindStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if st == nil {
		return Student{}, ErrStudentNotFound
	}
	return *st, nil
}

// List returns students ordered by register number.
func (s *Service) List(ctx context.Context, f Filter) ([]Student, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.store.ListStudents(ctx, f)
}

// Delete removes a student and, by cascade, its attendance.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.store.DeleteStudent(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStudentNotFound
	}
	s.logger.WithField("student_id", id).Info("student deleted")
	return nil
}

// RegisterTag binds an NFC tag to a student.
func (s *Service) RegisterTag(ctx context.Context, studentID, tag string) (Student, error) {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return Student{}, err
	}
	st, err := s.Get(ctx, studentID)
	if err != nil {
		return Student{}, err
	}
	owner, err := s.store.FindStudentByTag(ctx, tag)
	if err != nil {
		return Student{}, err
	}
	if owner != nil && owner.ID != st.ID {
		return Student{}, apperr.Conflict(fmt.Sprintf("NFC tag already registered to %s (%s)", owner.Name, owner.RegisterNumber))
	}
	updated, err := s.store.SetStudentTag(ctx, st.ID, &tag)
	if err != nil {
		return Student{}, err
	}
	s.logger.WithFields(logrus.Fields{"student_id": st.ID, "nfc_tag_id": tag}).Info("nfc tag registered")
	return updated, nil
}

// UnregisterTag clears the NFC tag bound to a student.
func (s *Service) UnregisterTag(ctx context.Context, studentID string) error {
	st, err := s.Get(ctx, studentID)
	if err != nil {
		return err
	}
	if st.NFCTagID == nil {
		return apperr.Validation("nfc_tag_id", "Student does not have an NFC tag registered")
	}
	if _, err := s.store.SetStudentTag(ctx, st.ID, nil); err != nil {
		return err
	}
	s.logger.WithField("student_id", st.ID).Info("nfc tag unregistered")
	return nil
}

// GetByTag returns the student bound to tag.
func (s *Service) GetByTag(ctx context.Context, tag string) (Student, error) {
	st, err := s.store.FindStudentByTag(ctx, strings.TrimSpace(tag))
	if err != nil {
		return Student{}, err
	}
	if st == nil {
		return Student{}, apperr.NotFound("No student found with this NFC tag")
	}
	return *st, nil
}

// IsTagRegistered reports whether tag is bound to any student.
func (s *Service) IsTagRegistered(ctx context.Context, tag string) (bool, error) {
	st, err := s.store.FindStudentByTag(ctx, strings.TrimSpace(tag))
	if err != nil {
		return false, err
	}
	return st != nil, nil
}
