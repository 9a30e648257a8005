package faculty

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the number of decimal digits in a login code.
	CodeLength = 6
	// CodeTTL is how long an issued code stays valid.
	CodeTTL = 10 * time.Minute
	// MaxCodeAttempts is the number of wrong guesses after which the code
	// is discarded.
	MaxCodeAttempts = 5
)

// Authenticator issues and verifies single-use login codes.
type Authenticator struct {
	deps     Deps
	tokens   *RememberIssuer
	hashCost int
}

// Verified is the outcome of a successful code check.
type Verified struct {
	Faculty  Faculty
	Remember *Token
}

// NewAuthenticator wires an authenticator. tokens is used when a verify
// asks to be remembered.
func NewAuthenticator(deps Deps, tokens *RememberIssuer, hashCost int) *Authenticator {
	deps.normalize()
	if hashCost < bcrypt.MinCost || hashCost > bcrypt.MaxCost {
		hashCost = bcrypt.DefaultCost
	}
	return &Authenticator{deps: deps, tokens: tokens, hashCost: hashCost}
}

// Issue creates the faculty when absent and stores a fresh code, replacing
// any unconsumed one. name is required only for a new faculty.
func (a *Authenticator) Issue(ctx context.Context, email, name string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), a.hashCost)
	if err != nil {
		return "", err
	}

	now := a.deps.Clock.Now().UTC()
	created := false
	err = a.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		f, err := tx.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if f == nil {
			name = strings.TrimSpace(name)
			if name == "" {
				return ErrNameRequired
			}
			f, err = tx.Create(ctx, Faculty{
				ID:        uuid.NewString(),
				Name:      name,
				Email:     email,
				Sections:  []string{},
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
			created = true
		}
		h := string(hash)
		f.OTPHash = &h
		f.OTPIssuedAt = &now
		f.OTPAttempts = 0
		return tx.Save(ctx, f)
	})
	if err != nil {
		a.deps.Logger.WithField("email", email).WithError(err).Info("otp issue rejected")
		return "", err
	}
	a.deps.Logger.WithFields(logrus.Fields{"email": email, "new_faculty": created}).Info("otp issued")

	if err := a.deps.Notifier.SendOTP(ctx, email, code); err != nil {
		a.deps.Logger.WithField("email", email).WithError(err).Warn("otp notification failed")
	}
	return code, nil
}

// Verify consumes the code for email. Reasons are checked in order: unknown
// faculty, no code, expired, mismatch. On success the code is cleared and,
// when rememberMe is set, a remember token is issued in the same transaction.
// A mismatch is counted; the MaxCodeAttempts-th one discards the code.
func (a *Authenticator) Verify(ctx context.Context, email, code string, rememberMe bool) (Verified, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Verified{}, ErrEmailRequired
	}
	now := a.deps.Clock.Now().UTC()

	var (
		out      Verified
		rejected error
	)
	err := a.deps.Store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		f, err := tx.LockByEmail(ctx, email)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrFacultyNotFound
		}
		if f.OTPHash == nil {
			return ErrNoCode
		}
		if f.OTPIssuedAt == nil || now.Sub(*f.OTPIssuedAt) > CodeTTL {
			return ErrCodeExpired
		}
		if len(code) != CodeLength || bcrypt.CompareHashAndPassword([]byte(*f.OTPHash), []byte(code)) != nil {
			// commit the counter; the rejection is reported after the transaction
			rejected = ErrCodeMismatch
			f.OTPAttempts++
			if f.OTPAttempts >= MaxCodeAttempts {
				f.OTPHash = nil
				f.OTPIssuedAt = nil
				f.OTPAttempts = 0
			}
			return tx.Save(ctx, f)
		}

		f.OTPHash = nil
		f.OTPIssuedAt = nil
		f.OTPAttempts = 0
		if rememberMe {
			tok, err := a.tokens.attach(f, now)
			if err != nil {
				return err
			}
			out.Remember = &tok
		}
		if err := tx.Save(ctx, f); err != nil {
			return err
		}
		out.Faculty = *f
		return nil
	})
	if err == nil {
		err = rejected
	}
	if err != nil {
		a.deps.Logger.WithFields(logrus.Fields{"email": email, "reason": err.Error()}).Info("otp verify rejected")
		return Verified{}, err
	}
	a.deps.Logger.WithFields(logrus.Fields{"email": email, "remember": rememberMe}).Info("otp verified")
	return out, nil
}

// generateCode draws each digit independently and uniformly.
func generateCode() (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
