package validation

import (
	"strings"
	"testing"
)

func TestIsValidDealID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"deal_0123456789abcdef0123456789abcdef", true},
		{"deal_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},

		// Invalid cases
		{"0123456789abcdef0123456789abcdef", false},       // No prefix
		{"deal_0123456789abcdef0123456789abcde", false},   // Too short
		{"deal_0123456789abcdef0123456789abcdef0", false}, // Too long
		{"deal_0123456789ABCDEF0123456789abcdef", false},  // Uppercase hex
		{"tmpl_0123456789abcdef0123456789abcdef", false},  // Wrong prefix
		{"", false},
		{"deal_", false},
	}

	for _, tc := range tests {
		result := IsValidDealID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidDealID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestIsValidTemplateID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"tmpl_0123456789abcdef0123456789abcdef", true},
		{"deal_0123456789abcdef0123456789abcdef", false},
		{"tmpl_", false},
		{"", false},
	}

	for _, tc := range tests {
		result := IsValidTemplateID(tc.id)
		if result != tc.valid {
			t.Errorf("IsValidTemplateID(%q) = %v, want %v", tc.id, result, tc.valid)
		}
	}
}

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"We can do $95 per unit.", "We can do $95 per unit."},
		{"  We can do $95 per unit.  ", "We can do $95 per unit."},
		{"Net\x0030 terms", "Net30 terms"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range tests {
		result := SanitizeMessage(tc.input)
		if result != tc.expected {
			t.Errorf("SanitizeMessage(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}

	long := strings.Repeat("a", MaxMessageLength+100)
	if got := SanitizeMessage(long); len(got) != MaxMessageLength {
		t.Errorf("SanitizeMessage(long) length = %d, want %d", len(got), MaxMessageLength)
	}
}

func TestValidate(t *testing.T) {
	// Test valid input
	errors := Validate(
		Required("name", "Acme CRM renewal"),
		MaxLength("name", "Acme CRM renewal", 255),
	)
	if len(errors) != 0 {
		t.Errorf("Expected no errors, got %v", errors)
	}

	// Test invalid input
	errors = Validate(
		Required("name", "  "),
		MaxLength("vendorName", strings.Repeat("x", 300), 255),
	)
	if len(errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errors))
	}
	if errors.Error() != "name: is required" {
		t.Errorf("Error() = %q, want first failure", errors.Error())
	}
}

func TestMaxLength(t *testing.T) {
	if err := MaxLength("name", "short", 10)(); err != nil {
		t.Errorf("Expected nil error for value under limit, got %v", err)
	}
	if err := MaxLength("name", "this is far too long", 10)(); err == nil {
		t.Error("Expected error for value over limit")
	}
}
