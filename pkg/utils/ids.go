package utils

import (
	"github.com/google/uuid"
)

// GenerateID generates a random UUIDv4 string
func GenerateID() string {
	return uuid.NewString()
}

// IsValidID reports whether s is a canonical UUID
func IsValidID(s string) bool {
	// uuid.Parse also takes the urn and braced forms
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
