package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeMalformedTopology, "unbalanced ')' at offset %d", 7)
	want := "MALFORMED_TOPOLOGY: unbalanced ')' at offset 7"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(ErrCodeInvalidCost, cause, "row %q", "A")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false after Wrap")
	}
	if got := err.Error(); got != `INVALID_COST: row "A": boom` {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := New(ErrCodeUnknownLabel, "label missing")
	outer := fmt.Errorf("while resolving leaves: %w", inner)

	if !Is(outer, ErrCodeUnknownLabel) {
		t.Error("Is() = false for a wrapped coded error")
	}
	if Is(outer, ErrCodeInvalidCost) {
		t.Error("Is() matched the wrong code")
	}
	if Is(stderrors.New("plain"), ErrCodeUnknownLabel) {
		t.Error("Is() matched a plain error")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeUnreachable, "no labeling")); got != ErrCodeUnreachable {
		t.Errorf("GetCode() = %q, want UNREACHABLE", got)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode(plain) = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeInvalidInput, "tips mapping is required")
	if got := UserMessage(err); got != "tips mapping is required" {
		t.Errorf("UserMessage() = %q", got)
	}
	plain := stderrors.New("plain failure")
	if got := UserMessage(plain); got != "plain failure" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"A", "node_1", "JFK", "pH1N1-sample.2009"}
	for _, name := range valid {
		if err := ValidateIdentifier(name); err != nil {
			t.Errorf("ValidateIdentifier(%q) error: %v", name, err)
		}
	}

	invalid := []string{"", "a,b", "a(b", "a)b", "a:b", "a;b", "tab\tinside", string(make([]byte, 300))}
	for _, name := range invalid {
		if err := ValidateIdentifier(name); err == nil {
			t.Errorf("ValidateIdentifier(%q) succeeded, want error", name)
		}
	}
}

func TestValidateStateLabel(t *testing.T) {
	if err := ValidateStateLabel("United_Kingdom"); err != nil {
		t.Errorf("ValidateStateLabel() error: %v", err)
	}
	for _, label := range []string{"", "with;semicolon", "with,comma"} {
		err := ValidateStateLabel(label)
		if err == nil {
			t.Errorf("ValidateStateLabel(%q) succeeded, want error", label)
			continue
		}
		if !Is(err, ErrCodeUnknownLabel) {
			t.Errorf("ValidateStateLabel(%q) code = %v, want UNKNOWN_LABEL", label, GetCode(err))
		}
	}
}
