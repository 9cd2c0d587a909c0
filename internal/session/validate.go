package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under the config root, so they are
// restricted to a filesystem-safe charset.
const namePattern = `^[a-z0-9_-]{1,64}$`

var nameRegexp = regexp.MustCompile(namePattern)

// ValidateName reports whether name is usable as a session directory name:
// lowercase letters, digits, hyphen or underscore, at most 64 characters.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name is empty")
	}
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("session name %q: only lowercase letters, digits, '-' and '_' are allowed (max 64 chars)", name)
	}
	return nil
}
