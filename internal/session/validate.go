package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under BaseDir, so the alphabet is
// kept narrow on purpose.
var nameRe = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName rejects names that cannot safely serve as a session
// directory: empty, over 64 characters, or containing anything outside
// lowercase letters, digits, '-' and '_'.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 characters of [a-z0-9_-]", name)
	}
	return nil
}
