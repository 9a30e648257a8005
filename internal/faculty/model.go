package faculty

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"nfcattendance/internal/clock"
)

// Faculty is a staff identity plus its authentication state. The
// authentication fields are written only by Authenticator and RememberIssuer.
type Faculty struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Sections  []string  `json:"sections"`
	CreatedAt time.Time `json:"created_at"`

	OTPHash           *string    `json:"-"`
	OTPIssuedAt       *time.Time `json:"-"`
	OTPAttempts       int        `json:"-"`
	RememberTokenHash *string    `json:"-"`
	RememberExpiresAt *time.Time `json:"-"`
	// SessionVersion is bumped on logout; access tokens carrying an older
	// version are refused.
	SessionVersion int `json:"-"`
}

// Tx is the view of the record store inside one authentication transaction.
type Tx interface {
	// LockByEmail loads the faculty and locks its row until the transaction
	// ends. Returns nil when absent.
	LockByEmail(ctx context.Context, email string) (*Faculty, error)
	// Create inserts f unless the email already exists, then returns the
	// locked row for that email.
	Create(ctx context.Context, f Faculty) (*Faculty, error)
	Save(ctx context.Context, f *Faculty) error
}

// Store is the record store consumed by the faculty services.
type Store interface {
	// InTx runs fn atomically; an error from fn discards its writes.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	FindFacultyByEmail(ctx context.Context, email string) (*Faculty, error)
}

// Deps are the collaborators shared by the faculty services.
type Deps struct {
	Store    Store
	Notifier Notifier
	Clock    clock.Clock
	Logger   *logrus.Logger
}

func (d *Deps) normalize() {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Notifier == nil {
		d.Notifier = EchoNotifier{Logger: d.Logger}
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SplitSections parses the stored comma list.
func SplitSections(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinSections renders sections for storage.
func JoinSections(sections []string) string {
	return strings.Join(SplitSections(strings.Join(sections, ",")), ",")
}
