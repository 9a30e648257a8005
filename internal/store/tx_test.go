package store

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "students_nfc_tag_id_key"}
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", dup)))
	assert.Equal(t, "students_nfc_tag_id_key", ConstraintName(dup))

	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows))
	assert.Empty(t, ConstraintName(sql.ErrNoRows))
}

func TestNullStringRoundTrip(t *testing.T) {
	assert.False(t, NullString(nil).Valid)
	assert.Nil(t, StringPtr(sql.NullString{}))

	tag := "04:A2:19"
	ns := NullString(&tag)
	assert.True(t, ns.Valid)
	assert.Equal(t, tag, *StringPtr(ns))
}
