package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/roster"
	"nfcattendance/internal/store"
)

const recordSelect = `
	SELECT a.id, a.student_id, s.name, s.register_number, a.recorded_at, a.recorded_by,
	       a.section, a.subject, a.class_date, a.class_time
	FROM attendance a
	JOIN students s ON s.id = a.student_id`

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InTx runs fn in a transaction. LockStudent takes a row lock so that
// concurrent admits of one student serialize.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

type pgTx struct {
	tx *sql.Tx
}

func (t pgTx) LockStudent(ctx context.Context, id string) (*roster.Student, error) {
	if !roster.ValidID(id) {
		return nil, nil
	}
	return roster.FindStudent(ctx, t.tx, "id", "FOR UPDATE", id)
}

func (t pgTx) FindStudentByTag(ctx context.Context, tag string) (*roster.Student, error) {
	return roster.FindStudent(ctx, t.tx, "nfc_tag_id", "", tag)
}

func (t pgTx) FindLatestAttendance(ctx context.Context, studentID string, since time.Time) (*Record, error) {
	row := t.tx.QueryRowContext(ctx, recordSelect+`
		WHERE a.student_id = $1 AND a.recorded_at > $2
		ORDER BY a.recorded_at DESC
		LIMIT 1`, studentID, since)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	return &rec, nil
}

func (t pgTx) CreateAttendance(ctx context.Context, rec Record) (Record, error) {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO attendance (id, student_id, recorded_at, recorded_by, section, subject, class_date, class_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.StudentID, rec.Timestamp, rec.RecordedBy,
		store.NullString(rec.Section), store.NullString(rec.Subject), store.NullString(rec.Date), store.NullString(rec.ClassTime))
	if err != nil {
		return Record{}, apperr.Storage(err)
	}
	return rec, nil
}

// ListAttendanceByStudent returns a student's events, newest first.
func (r *Repository) ListAttendanceByStudent(ctx context.Context, studentID string, limit int) ([]Record, error) {
	if !roster.ValidID(studentID) {
		return []Record{}, nil
	}
	if limit > 0 {
		return r.query(ctx, recordSelect+` WHERE a.student_id = $1 ORDER BY a.recorded_at DESC LIMIT $2`, studentID, limit)
	}
	return r.query(ctx, recordSelect+` WHERE a.student_id = $1 ORDER BY a.recorded_at DESC`, studentID)
}

// ListRecentAttendance returns the newest events.
func (r *Repository) ListRecentAttendance(ctx context.Context, limit int) ([]Record, error) {
	return r.query(ctx, recordSelect+` ORDER BY a.recorded_at DESC LIMIT $1`, limit)
}

// ListAttendanceBetween returns events in [from, to).
func (r *Repository) ListAttendanceBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	return r.query(ctx, recordSelect+` WHERE a.recorded_at >= $1 AND a.recorded_at < $2 ORDER BY a.recorded_at DESC`, from, to)
}

// CountAttendance gathers totals and figures since the given instant.
func (r *Repository) CountAttendance(ctx context.Context, since time.Time) (Counts, error) {
	var c Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM students),
			(SELECT COUNT(*) FROM attendance),
			(SELECT COUNT(*) FROM attendance WHERE recorded_at >= $1),
			(SELECT COUNT(DISTINCT student_id) FROM attendance WHERE recorded_at >= $1)
	`, since).Scan(&c.Students, &c.Records, &c.SinceRecords, &c.SinceStudents)
	if err != nil {
		return Counts{}, apperr.Storage(err)
	}
	return c, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	res := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		res = append(res, rec)
	}
	return res, apperr.Storage(rows.Err())
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var (
		rec                          Record
		section, subject, date, slot sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.RegisterNumber, &rec.Timestamp, &rec.RecordedBy,
		&section, &subject, &date, &slot); err != nil {
		return Record{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.Section = store.StringPtr(section)
	rec.Subject = store.StringPtr(subject)
	rec.Date = store.StringPtr(date)
	rec.ClassTime = store.StringPtr(slot)
	return rec, nil
}
