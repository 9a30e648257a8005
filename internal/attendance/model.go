package attendance

import (
	"context"
	"time"

	"nfcattendance/internal/roster"
)

// Record is an append-only attendance event.
type Record struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	StudentName    string    `json:"student_name"`
	RegisterNumber string    `json:"register_number"`
	Timestamp      time.Time `json:"timestamp"`
	RecordedBy     string    `json:"recorded_by"`
	Section        *string   `json:"section"`
	Subject        *string   `json:"subject"`
	Date           *string   `json:"date"`
	ClassTime      *string   `json:"class_time"`
}

// Meta is the caller-supplied context of a scan. RecordedBy is free text.
type Meta struct {
	RecordedBy string
	Section    *string
	Subject    *string
	Date       *string
	ClassTime  *string
}

// Scan identifies the student either directly or by NFC tag.
type Scan struct {
	StudentID string
	NFCTagID  string
	Meta
}

// Counts are the raw figures behind Stats.
type Counts struct {
	Students      int
	Records       int
	SinceRecords  int
	SinceStudents int
}

// Stats summarises attendance for today.
type Stats struct {
	TotalStudents          int     `json:"total_students"`
	TotalAttendanceRecords int     `json:"total_attendance_records"`
	TodayAttendanceCount   int     `json:"today_attendance_count"`
	TodayUniqueStudents    int     `json:"today_unique_students"`
	TodayPercentage        float64 `json:"today_percentage"`
}

// Tx is the view of the record store inside one admit transaction.
type Tx interface {
	// LockStudent loads the student and holds a lock on it until the
	// transaction ends. Returns nil when absent.
	LockStudent(ctx context.Context, id string) (*roster.Student, error)
	FindStudentByTag(ctx context.Context, tag string) (*roster.Student, error)
	// FindLatestAttendance returns the newest record with a timestamp
	// strictly after since, or nil.
	FindLatestAttendance(ctx context.Context, studentID string, since time.Time) (*Record, error)
	CreateAttendance(ctx context.Context, rec Record) (Record, error)
}

// Store is the record store consumed by the service.
type Store interface {
	// InTx runs fn atomically; an error from fn discards its writes.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	ListAttendanceByStudent(ctx context.Context, studentID string, limit int) ([]Record, error)
	ListRecentAttendance(ctx context.Context, limit int) ([]Record, error)
	ListAttendanceBetween(ctx context.Context, from, to time.Time) ([]Record, error)
	CountAttendance(ctx context.Context, since time.Time) (Counts, error)
}
