package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]{3,32}$`)

// ValidateUsername checks the account name format: 3 to 32 characters of
// letters, digits, dots, underscores or hyphens.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("invalid username format: %s", username)
	}
	return nil
}

var controlCharRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeString removes control characters from user-supplied text
func SanitizeString(s string) string {
	return strings.TrimSpace(controlCharRegex.ReplaceAllString(s, ""))
}
