// Package validation holds input checks for identifiers that end up on disk
// or in request bodies.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const maxTripIDLen = 128

// ValidateTripID checks that id is usable as the persisted trip session
// identifier. The id is opaque, so only structural checks apply.
func ValidateTripID(id string) error {
	if id == "" {
		return errors.New("trip ID cannot be empty")
	}
	if len(id) > maxTripIDLen {
		return fmt.Errorf("trip ID too long (%d > %d)", len(id), maxTripIDLen)
	}
	if strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("trip ID contains path separator: %q", id)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("trip ID contains invalid character %q", r)
		}
	}
	return nil
}

// ValidateStoreKey checks a state key. Keys become file names in the file
// backend.
func ValidateStoreKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid key %q", key)
	}
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.') {
			return fmt.Errorf("key %q contains invalid character %q", key, r)
		}
	}
	return nil
}
