package faculty

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"
)

const (
	// RememberTTL is the absolute lifetime of a remember token.
	RememberTTL = 30 * 24 * time.Hour
	tokenBytes  = 32
)

// Token is a freshly issued remember token. Value is shown to the caller
// once; only its hash is stored.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RememberIssuer manages the single live remember token of each faculty.
type RememberIssuer struct {
	deps Deps
}

func NewRememberIssuer(deps Deps) *RememberIssuer {
	deps.normalize()
	return &RememberIssuer{deps: deps}
}

// Issue replaces the faculty's remember token with a new one.
func (r *RememberIssuer) Issue(ctx context.Context, email string) (Token, error) {
	email = NormalizeEmail(email)
	now := r.deps.Clock.Now().UTC()
	var tok Token
	err := r.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		f, err := tx.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrFacultyNotFound
		}
		if tok, err = r.attach(f, now); err != nil {
			return err
		}
		return tx.Save(ctx, f)
	})
	if err != nil {
		return Token{}, err
	}
	r.deps.Logger.WithField("email", email).Info("remember token issued")
	return tok, nil
}

// attach sets a new token on a locked faculty; the caller saves it.
func (r *RememberIssuer) attach(f *Faculty, now time.Time) (Token, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Token{}, err
	}
	value := base64.RawURLEncoding.EncodeToString(raw)
	hash := hashToken(value)
	exp := now.Add(RememberTTL)
	f.RememberTokenHash = &hash
	f.RememberExpiresAt = &exp
	return Token{Value: value, ExpiresAt: exp}, nil
}

// Validate checks token against the one on file for email. Reasons are
// checked in order: unknown faculty, no token, mismatch, expired.
func (r *RememberIssuer) Validate(ctx context.Context, email, token string) (Faculty, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Faculty{}, ErrEmailRequired
	}
	f, err := r.deps.Store.FindFacultyByEmail(ctx, email)
	if err != nil {
		return Faculty{}, err
	}
	if f == nil {
		return Faculty{}, ErrFacultyNotFound
	}
	if f.RememberTokenHash == nil {
		return Faculty{}, ErrNoToken
	}
	if subtle.ConstantTimeCompare([]byte(hashToken(token)), []byte(*f.RememberTokenHash)) != 1 {
		return Faculty{}, ErrTokenMismatch
	}
	if f.RememberExpiresAt == nil || f.RememberExpiresAt.Before(r.deps.Clock.Now()) {
		return Faculty{}, ErrTokenExpired
	}
	return *f, nil
}

// Revoke clears the remember token and ends every access session issued so
// far. An unknown faculty is treated as success.
func (r *RememberIssuer) Revoke(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	err := r.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		f, err := tx.LockByEmail(ctx, email)
		if err != nil || f == nil {
			return err
		}
		f.RememberTokenHash = nil
		f.RememberExpiresAt = nil
		f.SessionVersion++
		return tx.Save(ctx, f)
	})
	if err != nil {
		return err
	}
	r.deps.Logger.WithField("email", email).Info("remember token revoked")
	return nil
}

func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
