package api

import (
	"fmt"
	"regexp"
)

var (
	// sessionIDPattern matches ids issued by the session manager.
	sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)
	toolNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
)

// ValidateSessionID rejects values that cannot name a session.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

func ValidateToolName(name string) error {
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("invalid tool name %q", name)
	}
	return nil
}
