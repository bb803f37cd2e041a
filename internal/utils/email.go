package utils

import (
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
)

// CleanEmailAddress returns the validated, lowercased address or "" when the syntax is invalid.
func CleanEmailAddress(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	validation := mailvalidate.ValidateEmailSyntax(email)
	if !validation.IsValid {
		return ""
	}
	return strings.ToLower(validation.CleanEmail)
}

