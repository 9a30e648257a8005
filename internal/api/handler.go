package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nfcattendance/internal/apperr"
	"nfcattendance/internal/attendance"
	"nfcattendance/internal/auth"
	"nfcattendance/internal/faculty"
	"nfcattendance/internal/metrics"
	"nfcattendance/internal/roster"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Roster     *roster.Service
	Attendance *attendance.Service
	OTP        *faculty.Authenticator
	Tokens     *faculty.RememberIssuer
	Directory  *faculty.Directory
	Sessions   *auth.Issuer
	Metrics    *metrics.Metrics
	Logger     *logrus.Logger
}

type Handler struct {
	Deps
	// echoOTP returns the login code in the response; set when no real
	// delivery channel is configured.
	echoOTP bool
}

func New(deps Deps, echoOTP bool) *Handler {
	return &Handler{Deps: deps, echoOTP: echoOTP}
}

// fail writes err as JSON. notFound overrides the status used for
// KindNotFound so each endpoint keeps one convention.
func (h *Handler) fail(c *gin.Context, err error, notFound int) {
	status := apperr.HTTPStatus(err)
	if apperr.KindOf(err) == apperr.KindNotFound && notFound != 0 {
		status = notFound
	}
	if status == http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// queryLimit reads ?limit=, returning def when absent or malformed.
func queryLimit(c *gin.Context, def int) int {
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
