package attendance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/clock"
	"nfcattendance/internal/roster"
)

// DedupWindow is the trailing interval during which a second scan of the
// same student is rejected. It is measured from the attempted scan, not
// from a calendar day.
const DedupWindow = time.Hour

// DefaultRecentLimit bounds Recent when the caller passes no limit.
const DefaultRecentLimit = 50

const unknownFaculty = "Unknown Faculty"

var (
	// ErrStudentRequired is returned when a scan names neither a student nor a tag.
	ErrStudentRequired = apperr.Validation("student_id", "student_id or nfc_tag_id is required")
	// ErrUnknownTag is returned when no student carries the scanned tag.
	ErrUnknownTag = apperr.NotFound("No student found with this NFC tag")
)

// Service coordinates attendance checks and deduplication.
type Service struct {
	store  Store
	clock  clock.Clock
	logger *logrus.Logger
}

// NewService creates a service backed by a record store.
func NewService(store Store, clk clock.Clock, logger *logrus.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{store: store, clock: clk, logger: logger}
}

// RecordScan admits a scan stamped with the server clock.
func (s *Service) RecordScan(ctx context.Context, scan Scan) (Record, error) {
	studentID := strings.TrimSpace(scan.StudentID)
	tag := strings.TrimSpace(scan.NFCTagID)
	if studentID == "" && tag == "" {
		return Record{}, ErrStudentRequired
	}
	return s.admit(ctx, studentID, tag, s.clock.Now().UTC(), scan.Meta)
}

// Admit records attendance for studentID at the given time unless another
// record exists within DedupWindow before it.
func (s *Service) Admit(ctx context.Context, studentID string, at time.Time, meta Meta) (Record, error) {
	if strings.TrimSpace(studentID) == "" {
		return Record{}, ErrStudentRequired
	}
	return s.admit(ctx, strings.TrimSpace(studentID), "", at.UTC(), meta)
}

func (s *Service) admit(ctx context.Context, studentID, tag string, at time.Time, meta Meta) (Record, error) {
	if strings.TrimSpace(meta.RecordedBy) == "" {
		meta.RecordedBy = unknownFaculty
	}
	var rec Record
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if studentID == "" {
			owner, err := tx.FindStudentByTag(ctx, tag)
			if err != nil {
				return err
			}
			if owner == nil {
				return ErrUnknownTag
			}
			studentID = owner.ID
		}

		st, err := tx.LockStudent(ctx, studentID)
		if err != nil {
			return err
		}
		if st == nil {
			return roster.ErrStudentNotFound
		}

		prev, err := tx.FindLatestAttendance(ctx, st.ID, at.Add(-DedupWindow))
		if err != nil {
			return err
		}
		if prev != nil {
			return apperr.Conflict(fmt.Sprintf("Attendance already recorded for %s at %s",
				st.Name, prev.Timestamp.UTC().Format("15:04:05")))
		}

		rec, err = tx.CreateAttendance(ctx, Record{
			ID:             uuid.NewString(),
			StudentID:      st.ID,
			StudentName:    st.Name,
			RegisterNumber: st.RegisterNumber,
			Timestamp:      at,
			RecordedBy:     meta.RecordedBy,
			Section:        meta.Section,
			Subject:        meta.Subject,
			Date:           meta.Date,
			ClassTime:      meta.ClassTime,
		})
		return err
	})
	if err != nil {
		entry := s.logger.WithFields(logrus.Fields{"student_id": studentID, "nfc_tag_id": tag})
		if apperr.KindOf(err) == apperr.KindStorage {
			entry.WithError(err).Error("attendance admit failed")
		} else {
			entry.WithField("reason", err.Error()).Info("attendance rejected")
		}
		return Record{}, err
	}
	s.logger.WithFields(logrus.Fields{
		"attendance_id": rec.ID,
		"student_id":    rec.StudentID,
		"recorded_by":   rec.RecordedBy,
	}).Info("attendance recorded")
	return rec, nil
}

// History returns a student's records, newest first. limit <= 0 means all.
func (s *Service) History(ctx context.Context, studentID string, limit int) ([]Record, error) {
	return s.store.ListAttendanceByStudent(ctx, studentID, limit)
}

// Recent returns the newest records across all students.
func (s *Service) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.store.ListRecentAttendance(ctx, limit)
}

// OnDate returns records whose timestamp falls on the UTC day of day.
// A zero day means today.
func (s *Service) OnDate(ctx context.Context, day time.Time) ([]Record, error) {
	if day.IsZero() {
		day = s.clock.Now()
	}
	start := startOfDay(day)
	return s.store.ListAttendanceBetween(ctx, start, start.Add(24*time.Hour))
}

// Today returns the current UTC date.
func (s *Service) Today() time.Time {
	return startOfDay(s.clock.Now())
}

// Stats returns totals and today's participation.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	c, err := s.store.CountAttendance(ctx, s.Today())
	if err != nil {
		return Stats{}, err
	}
	pct := 0.0
	if c.Students > 0 {
		pct = math.Round(float64(c.SinceStudents)/float64(c.Students)*100*100) / 100
	}
	return Stats{
		TotalStudents:          c.Students,
		TotalAttendanceRecords: c.Records,
		TodayAttendanceCount:   c.SinceRecords,
		TodayUniqueStudents:    c.SinceStudents,
		TodayPercentage:        pct,
	}, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
