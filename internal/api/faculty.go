package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nfcattendance/internal/auth"
	"nfcattendance/internal/faculty"
	"nfcattendance/internal/metrics"
)

var errSessionEnded = errors.New("session ended")

// ---------- Login ----------

type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "No data provided")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(c, "Email is required")
		return
	}
	code, err := h.OTP.Issue(c.Request.Context(), req.Email, req.Name)
	h.Metrics.OTPIssued.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	resp := gin.H{
		"message": "OTP sent to your email",
		"email":   faculty.NormalizeEmail(req.Email),
	}
	if h.echoOTP {
		resp["otp"] = code
	}
	c.JSON(http.StatusOK, resp)
}

type verifyOTPRequest struct {
	Email      string `json:"email"`
	OTP        string `json:"otp"`
	RememberMe bool   `json:"remember_me"`
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "No data provided")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.OTP == "" {
		badRequest(c, "Email and OTP are required")
		return
	}
	v, err := h.OTP.Verify(c.Request.Context(), req.Email, req.OTP, req.RememberMe)
	h.Metrics.OTPVerified.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	resp, ok := h.sessionResponse(c, v.Faculty, "Login successful")
	if !ok {
		return
	}
	if v.Remember != nil {
		resp["remember_token"] = v.Remember.Value
		resp["remember_expires_at"] = v.Remember.ExpiresAt
	}
	c.JSON(http.StatusOK, resp)
}

type verifyTokenRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (h *Handler) VerifyToken(c *gin.Context) {
	var req verifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "No data provided")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Token == "" {
		badRequest(c, "Email and token are required")
		return
	}
	f, err := h.Tokens.Validate(c.Request.Context(), req.Email, req.Token)
	h.Metrics.TokenChecks.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	resp, ok := h.sessionResponse(c, f, "Token valid")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

type logoutRequest struct {
	Email string `json:"email"`
}

func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "No data provided")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(c, "Email is required")
		return
	}
	if err := h.Tokens.Revoke(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// sessionResponse builds the success body shared by both login paths.
func (h *Handler) sessionResponse(c *gin.Context, f faculty.Faculty, msg string) (gin.H, bool) {
	resp := gin.H{"message": msg, "faculty": f}
	if h.Sessions == nil {
		return resp, true
	}
	s, err := h.Sessions.Issue(f.ID, f.Email, f.Name, f.SessionVersion)
	if err != nil {
		h.fail(c, err, 0)
		return nil, false
	}
	resp["access_token"] = s.AccessToken
	resp["expires_at"] = s.ExpiresAt
	return resp, true
}

// liveSession refuses access tokens minted before the faculty's last logout.
func (h *Handler) liveSession(ctx context.Context, claims auth.Claims) error {
	f, err := h.Directory.Profile(ctx, claims.Email)
	if err != nil {
		return err
	}
	if f.SessionVersion != claims.Version {
		return errSessionEnded
	}
	return nil
}

// ---------- Profile ----------

func (h *Handler) Profile(c *gin.Context) {
	email := c.Query("email")
	if strings.TrimSpace(email) == "" {
		badRequest(c, "Email is required")
		return
	}
	f, err := h.Directory.Profile(c.Request.Context(), email)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, f)
}

type sectionsRequest struct {
	Email    string   `json:"email"`
	Sections []string `json:"sections"`
}

func (h *Handler) UpdateSections(c *gin.Context) {
	var req sectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "No data provided")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		badRequest(c, "Email is required")
		return
	}
	f, err := h.Directory.UpdateSections(c.Request.Context(), req.Email, req.Sections)
	if err != nil {
		h.fail(c, err, 0)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sections updated", "faculty": f})
}
