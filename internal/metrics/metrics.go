package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nfcattendance/internal/apperr"
)

// Metrics are the domain counters exposed on /metrics.
type Metrics struct {
	Admissions  *prometheus.CounterVec
	OTPIssued   *prometheus.CounterVec
	OTPVerified *prometheus.CounterVec
	TokenChecks *prometheus.CounterVec
}

// New registers the counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfc_attendance",
			Name:      "admissions_total",
			Help:      "Attendance admit attempts by outcome.",
		}, []string{"outcome"}),
		OTPIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfc_attendance",
			Name:      "otp_issued_total",
			Help:      "Login codes issued by outcome.",
		}, []string{"outcome"}),
		OTPVerified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfc_attendance",
			Name:      "otp_verifications_total",
			Help:      "Login code verifications by outcome.",
		}, []string{"outcome"}),
		TokenChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nfc_attendance",
			Name:      "remember_token_checks_total",
			Help:      "Remember token validations by outcome.",
		}, []string{"outcome"}),
	}
}

// Outcome names the result of an operation for a counter label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}
