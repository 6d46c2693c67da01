package utils

import (
	"errors"
	"strings"
)

// ValidateOwnerName validates that an owner name is non-empty and does not
// contain path separators ("/", "\\") or "..", since owner names become
// token-cache file names.
func ValidateOwnerName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("owner name is required and must be a non-empty string")
	}
	if strings.ContainsAny(trimmed, "/\\") || strings.Contains(trimmed, "..") {
		return errors.New("owner name must not contain path separators or '..'")
	}
	return nil
}
