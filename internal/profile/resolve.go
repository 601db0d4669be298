package profile

import (
	"fmt"
	"regexp"
)

var userIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateUserID checks that id is safe to use in store paths and URLs.
func ValidateUserID(id string) error {
	if !userIDRegexp.MatchString(id) {
		return fmt.Errorf("invalid user id %q: must match ^[A-Za-z0-9_-]{1,128}$", id)
	}
	return nil
}

// Resolve determines the active user using precedence:
// 1. flagOverride (--user flag)
// 2. config default_user
// An empty result means no identity is available yet.
func Resolve(flagOverride, configured string) string {
	if flagOverride != "" {
		return flagOverride
	}
	return configured
}
