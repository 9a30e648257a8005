package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		register_number TEXT NOT NULL UNIQUE,
		section         TEXT NOT NULL,
		department      TEXT NOT NULL,
		duration        TEXT NOT NULL,
		nfc_tag_id      TEXT UNIQUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS faculty (
		id                  UUID PRIMARY KEY,
		name                TEXT NOT NULL,
		email               TEXT NOT NULL UNIQUE,
		sections            TEXT,
		otp_hash            TEXT,
		otp_issued_at       TIMESTAMPTZ,
		otp_attempts        INT NOT NULL DEFAULT 0,
		remember_token_hash TEXT UNIQUE,
		remember_expires_at TIMESTAMPTZ,
		session_version     INT NOT NULL DEFAULT 0,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id          UUID PRIMARY KEY,
		student_id  UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		recorded_at TIMESTAMPTZ NOT NULL,
		recorded_by TEXT NOT NULL,
		section     TEXT,
		subject     TEXT,
		class_date  TEXT,
		class_time  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_student_time ON attendance (student_id, recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_time ON attendance (recorded_at)`,
	`ALTER TABLE faculty ADD COLUMN IF NOT EXISTS otp_attempts INT NOT NULL DEFAULT 0`,
	`ALTER TABLE faculty ADD COLUMN IF NOT EXISTS session_version INT NOT NULL DEFAULT 0`,
}

// Migrate creates the schema when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
