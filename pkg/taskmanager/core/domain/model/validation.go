package model

import (
	"fmt"
	"strings"
)

// ValidateName rejects empty names and names that would make a full name ambiguous.
func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name must not be empty", kind)
	}
	if strings.Contains(name, FullNameDivisor) {
		return fmt.Errorf("%s name '%s' must not contain '%s'", kind, name, FullNameDivisor)
	}
	return nil
}
