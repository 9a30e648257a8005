package faculty

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/store"
)

const facultyColumns = `id, name, email, sections, otp_hash, otp_issued_at, otp_attempts, remember_token_hash, remember_expires_at, session_version, created_at`

// Repository persists faculty in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InTx runs fn in a transaction; LockByEmail holds the faculty row until
// commit so that issue, verify and token writes for one email serialize.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

// FindFacultyByEmail returns nil when absent.
func (r *Repository) FindFacultyByEmail(ctx context.Context, email string) (*Faculty, error) {
	return findFaculty(ctx, r.db, email, "")
}

// PurgeStaleCredentials implements Purger.
func (r *Repository) PurgeStaleCredentials(ctx context.Context, otpBefore, tokenBefore time.Time) (int64, int64, error) {
	var codes, tokens int64
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE faculty SET otp_hash = NULL, otp_issued_at = NULL, otp_attempts = 0
			WHERE otp_hash IS NOT NULL AND otp_issued_at < $1`, otpBefore)
		if err != nil {
			return apperr.Storage(err)
		}
		if codes, err = res.RowsAffected(); err != nil {
			return apperr.Storage(err)
		}
		res, err = tx.ExecContext(ctx, `
			UPDATE faculty SET remember_token_hash = NULL, remember_expires_at = NULL
			WHERE remember_token_hash IS NOT NULL AND remember_expires_at < $1`, tokenBefore)
		if err != nil {
			return apperr.Storage(err)
		}
		tokens, err = res.RowsAffected()
		return apperr.Storage(err)
	})
	return codes, tokens, err
}

type pgTx struct {
	tx *sql.Tx
}

func (t pgTx) LockByEmail(ctx context.Context, email string) (*Faculty, error) {
	return findFaculty(ctx, t.tx, email, "FOR UPDATE")
}

func (t pgTx) Create(ctx context.Context, f Faculty) (*Faculty, error) {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO faculty (id, name, email, sections, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (email) DO NOTHING
	`, f.ID, f.Name, f.Email, JoinSections(f.Sections), f.CreatedAt)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	created, err := t.LockByEmail(ctx, f.Email)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, apperr.Storage(errors.New("faculty insert not visible"))
	}
	return created, nil
}

func (t pgTx) Save(ctx context.Context, f *Faculty) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE faculty
		SET name = $2, sections = $3, otp_hash = $4, otp_issued_at = $5, otp_attempts = $6,
		    remember_token_hash = $7, remember_expires_at = $8, session_version = $9
		WHERE id = $1
	`, f.ID, f.Name, JoinSections(f.Sections), store.NullString(f.OTPHash), nullTime(f.OTPIssuedAt), f.OTPAttempts,
		store.NullString(f.RememberTokenHash), nullTime(f.RememberExpiresAt), f.SessionVersion)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("Remember token collision, please retry")
		}
		return apperr.Storage(err)
	}
	return nil
}

func findFaculty(ctx context.Context, q store.Querier, email, suffix string) (*Faculty, error) {
	var (
		f                   Faculty
		sections            sql.NullString
		otpHash, tokenHash  sql.NullString
		otpIssued, tokenExp sql.NullTime
	)
	err := q.QueryRowContext(ctx, `SELECT `+facultyColumns+` FROM faculty WHERE email = $1 `+suffix, email).
		Scan(&f.ID, &f.Name, &f.Email, &sections, &otpHash, &otpIssued, &f.OTPAttempts, &tokenHash, &tokenExp, &f.SessionVersion, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Storage(err)
	}
	f.Sections = SplitSections(sections.String)
	f.OTPHash = store.StringPtr(otpHash)
	f.OTPIssuedAt = timePtr(otpIssued)
	f.RememberTokenHash = store.StringPtr(tokenHash)
	f.RememberExpiresAt = timePtr(tokenExp)
	f.CreatedAt = f.CreatedAt.UTC()
	return &f, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
