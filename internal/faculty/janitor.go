package faculty

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"nfcattendance/internal/clock"
)

// Purger removes stale authentication state in bulk.
type Purger interface {
	// PurgeStaleCredentials clears codes issued before otpBefore and
	// remember tokens that expired before tokenBefore.
	PurgeStaleCredentials(ctx context.Context, otpBefore, tokenBefore time.Time) (codes, tokens int64, err error)
}

// Janitor clears dead codes and tokens. Verify and Validate never depend on
// it running; an expired credential is rejected either way.
type Janitor struct {
	purger         Purger
	clock          clock.Clock
	logger         *logrus.Logger
	otpRetention   time.Duration
	tokenRetention time.Duration
}

func NewJanitor(p Purger, clk clock.Clock, logger *logrus.Logger, otpRetention, tokenRetention time.Duration) *Janitor {
	if clk == nil {
		clk = clock.Real{}
	}
	if otpRetention < CodeTTL {
		otpRetention = CodeTTL
	}
	return &Janitor{purger: p, clock: clk, logger: logger, otpRetention: otpRetention, tokenRetention: tokenRetention}
}

// Run performs one sweep.
func (j *Janitor) Run(ctx context.Context) error {
	now := j.clock.Now()
	codes, tokens, err := j.purger.PurgeStaleCredentials(ctx, now.Add(-j.otpRetention), now.Add(-j.tokenRetention))
	if err != nil {
		j.logger.WithError(err).Error("credential purge failed")
		return err
	}
	j.logger.WithFields(logrus.Fields{"codes": codes, "tokens": tokens}).Info("credential purge done")
	return nil
}
