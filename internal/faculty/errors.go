package faculty

import "nfcattendance/internal/apperr"

// Rejection reasons, compared with errors.Is.
var (
	ErrEmailRequired   = apperr.Validation("email", "Email is required")
	ErrNameRequired    = apperr.Validation("name", "Name is required for new faculty")
	ErrFacultyNotFound = apperr.NotFound("Faculty not found")

	ErrNoCode       = apperr.Validation("otp", "No OTP generated. Please request a new one")
	ErrCodeExpired  = apperr.Expired("OTP expired. Please request a new one")
	ErrCodeMismatch = apperr.Validation("otp", "Invalid OTP")

	ErrNoToken       = apperr.Validation("token", "No remember token on file")
	ErrTokenMismatch = apperr.Validation("token", "Invalid token")
	ErrTokenExpired  = apperr.Expired("Token expired. Please login again")
)
