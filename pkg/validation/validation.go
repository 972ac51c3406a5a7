package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// IdentifierRegex validates user, group and room identifiers.
	IdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateUserID validates a user identifier.
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if len(userID) > 64 {
		return fmt.Errorf("user id is too long (max 64 characters)")
	}
	if !IdentifierRegex.MatchString(userID) {
		return fmt.Errorf("user id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateDisplayName validates a display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("display name is too long (max 100 characters)")
	}
	return nil
}
