package faculty

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier delivers a freshly issued code to the faculty member.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
}

// EchoNotifier delivers nothing; the code travels back in the login response.
type EchoNotifier struct {
	Logger *logrus.Logger
}

func (n EchoNotifier) SendOTP(_ context.Context, email, _ string) error {
	if n.Logger != nil {
		n.Logger.WithField("email", email).Debug("otp delivery skipped (echo notifier)")
	}
	return nil
}
