package roster

import (
	"fmt"
	"regexp"
	"strings"

	"nfcattendance/internal/apperr"
)

var (
	namePattern         = regexp.MustCompile(`^[A-Za-z\s.]+$`)
	alphanumericPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	tagPattern          = regexp.MustCompile(`^[A-Fa-f0-9:]+$`)
)

// Normalize trims every field.
func (in Input) Normalize() Input {
	return Input{
		Name:           strings.TrimSpace(in.Name),
		RegisterNumber: strings.TrimSpace(in.RegisterNumber),
		Section:        strings.TrimSpace(in.Section),
		Department:     strings.TrimSpace(in.Department),
		Duration:       strings.TrimSpace(in.Duration),
		Row:            in.Row,
	}
}

// Validate checks a normalized input.
func (in Input) Validate() error {
	required := []struct{ field, value string }{
		{"name", in.Name},
		{"register_number", in.RegisterNumber},
		{"section", in.Section},
		{"department", in.Department},
		{"duration", in.Duration},
	}
	for _, r := range required {
		if r.value == "" {
			return apperr.Validation(r.field, fmt.Sprintf("Missing required field: %s", r.field))
		}
	}
	if !namePattern.MatchString(in.Name) {
		return apperr.Validation("name", "Name should contain only letters, spaces, and dots")
	}
	if !alphanumericPattern.MatchString(in.RegisterNumber) {
		return apperr.Validation("register_number", "Register number should be alphanumeric")
	}
	if !alphanumericPattern.MatchString(in.Section) {
		return apperr.Validation("section", "Section should be alphanumeric")
	}
	return nil
}

// NormalizeTag trims and validates an NFC tag identifier.
func NormalizeTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", apperr.Validation("nfc_tag_id", "NFC tag ID cannot be empty")
	}
	if !tagPattern.MatchString(tag) {
		return "", apperr.Validation("nfc_tag_id", "Invalid NFC tag ID format")
	}
	return tag, nil
}
