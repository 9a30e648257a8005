package roster

import (
	"context"
	"time"
)

// Student is a roster entry. RegisterNumber is the immutable business key.
type Student struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	RegisterNumber string    `json:"register_number"`
	Section        string    `json:"section"`
	Department     string    `json:"department"`
	Duration       string    `json:"duration"`
	NFCTagID       *string   `json:"nfc_tag_id"`
	HasNFC         bool      `json:"has_nfc"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Input carries the fields needed to create a student.
type Input struct {
	Name           string `json:"name"`
	RegisterNumber string `json:"register_number"`
	Section        string `json:"section"`
	Department     string `json:"department"`
	Duration       string `json:"duration"`
	// Row is the 1-based sheet row an imported input came from; zero
	// otherwise.
	Row int `json:"-"`
}

// Filter narrows List results. Empty fields are ignored.
type Filter struct {
	Section    string
	Department string
	Duration   string
	HasNFC     *bool
	Search     string
}

// Store persists students. Implementations return *apperr.Error values
// of KindConflict when a unique key (register number, nfc tag) is violated.
type Store interface {
	CreateStudent(ctx context.Context, st Student) (Student, error)
	FindStudentByID(ctx context.Context, id string) (*Student, error)
	FindStudentByRegisterNumber(ctx context.Context, registerNumber string) (*Student, error)
	FindStudentByTag(ctx context.Context, tag string) (*Student, error)
	ListStudents(ctx context.Context, f Filter) ([]Student, error)
	SetStudentTag(ctx context.Context, id string, tag *string) (Student, error)
	DeleteStudent(ctx context.Context, id string) (bool, error)
}
