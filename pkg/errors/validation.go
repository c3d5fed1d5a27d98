package errors

import (
	"strings"
	"unicode"
)

// newickReserved are characters with structural meaning in the
// nested-parenthesis tree notation. They cannot appear in identifiers
// or state labels.
const newickReserved = "(),:;"

// ValidateIdentifier validates a node identifier from a topology file.
//
// The rules are intentionally conservative:
//   - No empty identifiers
//   - No control characters
//   - No characters reserved by the tree notation
//   - Maximum length of 256 characters
func ValidateIdentifier(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "identifier cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "identifier too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "identifier contains control characters")
		}
	}

	if strings.ContainsAny(name, newickReserved) {
		return New(ErrCodeInvalidInput, "identifier %q contains reserved characters", name)
	}

	return nil
}

// ValidateStateLabel validates a state label from a tip mapping or a cost
// matrix header. The rules match ValidateIdentifier: labels are written back
// into the serialized tree, so they must survive re-parsing.
func ValidateStateLabel(label string) error {
	if label == "" {
		return New(ErrCodeUnknownLabel, "state label cannot be empty")
	}

	if len(label) > 256 {
		return New(ErrCodeUnknownLabel, "state label too long (max 256 characters)")
	}

	for _, r := range label {
		if unicode.IsControl(r) {
			return New(ErrCodeUnknownLabel, "state label contains control characters")
		}
	}

	if strings.ContainsAny(label, newickReserved) {
		return New(ErrCodeUnknownLabel, "state label %q contains reserved characters", label)
	}

	return nil
}
