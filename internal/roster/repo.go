package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/store"
)

const studentColumns = `id, name, register_number, section, department, duration, nfc_tag_id, created_at, updated_at`

// Repository persists students in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ScanStudent reads one row selected with the student column list.
func ScanStudent(row interface{ Scan(...any) error }) (Student, error) {
	var (
		st  Student
		tag sql.NullString
	)
	if err := row.Scan(&st.ID, &st.Name, &st.RegisterNumber, &st.Section, &st.Department, &st.Duration, &tag, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return Student{}, err
	}
	st.NFCTagID = store.StringPtr(tag)
	st.HasNFC = st.NFCTagID != nil
	return st, nil
}

// FindStudent loads a student with q, which may be a transaction.
// A trailing SQL clause such as "FOR UPDATE" may be appended via suffix.
func FindStudent(ctx context.Context, q store.Querier, where, suffix string, arg any) (*Student, error) {
	row := q.QueryRowContext(ctx, `SELECT `+studentColumns+` FROM students WHERE `+where+` = $1 `+suffix, arg)
	st, err := ScanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	return &st, nil
}

// CreateStudent inserts a student.
func (r *Repository) CreateStudent(ctx context.Context, st Student) (Student, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (id, name, register_number, section, department, duration, nfc_tag_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		RETURNING `+studentColumns,
		st.ID, st.Name, st.RegisterNumber, st.Section, st.Department, st.Duration, store.NullString(st.NFCTagID), now)
	created, err := ScanStudent(row)
	if err != nil {
		return Student{}, mapStudentErr(err)
	}
	return created, nil
}

// FindStudentByID returns nil when absent.
func (r *Repository) FindStudentByID(ctx context.Context, id string) (*Student, error) {
	if !ValidID(id) {
		return nil, nil
	}
	return FindStudent(ctx, r.db, "id", "", id)
}

// FindStudentByRegisterNumber returns nil when absent.
func (r *Repository) FindStudentByRegisterNumber(ctx context.Context, registerNumber string) (*Student, error) {
	return FindStudent(ctx, r.db, "register_number", "", registerNumber)
}

// FindStudentByTag returns nil when absent.
func (r *Repository) FindStudentByTag(ctx context.Context, tag string) (*Student, error) {
	return FindStudent(ctx, r.db, "nfc_tag_id", "", tag)
}

// ListStudents returns students with basic filters.
func (r *Repository) ListStudents(ctx context.Context, f Filter) ([]Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	args := []any{}
	clauses := []string{}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR register_number ILIKE $%d)", n, n))
	} else {
		if f.Section != "" {
			add("section = $%d", f.Section)
		}
		if f.Department != "" {
			add("department = $%d", f.Department)
		}
		if f.Duration != "" {
			add("duration = $%d", f.Duration)
		}
		if f.HasNFC != nil {
			if *f.HasNFC {
				clauses = append(clauses, "nfc_tag_id IS NOT NULL")
			} else {
				clauses = append(clauses, "nfc_tag_id IS NULL")
			}
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY register_number"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer rows.Close()
	res := []Student{}
	for rows.Next() {
		st, err := ScanStudent(rows)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		res = append(res, st)
	}
	return res, apperr.Storage(rows.Err())
}

// SetStudentTag binds or clears (nil) the NFC tag.
func (r *Repository) SetStudentTag(ctx context.Context, id string, tag *string) (Student, error) {
	if !ValidID(id) {
		return Student{}, ErrStudentNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE students SET nfc_tag_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+studentColumns, id, store.NullString(tag))
	st, err := ScanStudent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrStudentNotFound
		}
		return Student{}, mapStudentErr(err)
	}
	return st, nil
}

// DeleteStudent removes a student; attendance rows cascade.
func (r *Repository) DeleteStudent(ctx context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, apperr.Storage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage(err)
	}
	return n > 0, nil
}

// ValidID reports whether id can name a row; malformed ids match nothing.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func mapStudentErr(err error) error {
	if store.IsUniqueViolation(err) {
		if strings.Contains(store.ConstraintName(err), "nfc_tag") {
			return apperr.Conflict("NFC tag already registered to another student")
		}
		return apperr.Conflict("Database integrity error: Student may already exist")
	}
	return apperr.Storage(err)
}
