package validate

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints StringConstraints
		wantErr     error
		wantOutput  string
	}{
		{
			name:  "valid string within length constraints",
			input: "Hello World",
			constraints: StringConstraints{
				MinLength: 5,
				MaxLength: 20,
				TrimSpace: true,
			},
			wantOutput: "Hello World",
		},
		{
			name:        "string too short",
			input:       "Hi",
			constraints: StringConstraints{MinLength: 5},
			wantErr:     ErrStringTooShort,
		},
		{
			name:        "string too long",
			input:       strings.Repeat("a", 101),
			constraints: StringConstraints{MaxLength: 100},
			wantErr:     ErrStringTooLong,
		},
		{
			name:    "empty string not allowed",
			input:   "",
			wantErr: ErrEmpty,
		},
		{
			name:        "empty string allowed",
			input:       "",
			constraints: StringConstraints{AllowEmpty: true},
			wantOutput:  "",
		},
		{
			name:        "whitespace trimmed to empty",
			input:       "   ",
			constraints: StringConstraints{TrimSpace: true},
			wantErr:     ErrEmpty,
		},
		{
			name:        "pattern mismatch",
			input:       "abc123",
			constraints: StringConstraints{AllowedPattern: regexp.MustCompile(`^[a-z]+$`)},
			wantErr:     ErrInvalidCharacters,
		},
		{
			name:        "length counts runes not bytes",
			input:       "রহিম",
			constraints: StringConstraints{MaxLength: 4},
			wantOutput:  "রহিম",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(tt.input, tt.constraints)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("String() error = %v, want %v", err, tt.wantErr)
				return
			}
			if tt.wantErr == nil && got != tt.wantOutput {
				t.Errorf("String() = %q, want %q", got, tt.wantOutput)
			}
		})
	}
}

func TestCustomerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"plain name", "Rahim Uddin", "Rahim Uddin", nil},
		{"trimmed", "  Karim  ", "Karim", nil},
		{"apostrophe and dash", "Mary O'Neil-Khan", "Mary O'Neil-Khan", nil},
		{"bengali script", "রহিম উদ্দিন", "রহিম উদ্দিন", nil},
		{"empty", "", "", ErrEmpty},
		{"digits rejected", "R2D2", "", ErrInvalidCharacters},
		{"markup rejected", "<b>x</b>", "", ErrInvalidCharacters},
		{"too long", strings.Repeat("a", 101), "", ErrStringTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CustomerName(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CustomerName() error = %v, want %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("CustomerName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"local mobile", "01711000000", "01711000000", nil},
		{"international", "+880 1711-000000", "+8801711000000", nil},
		{"empty", " ", "", ErrEmpty},
		{"letters", "phone", "", ErrInvalidPhone},
		{"too short", "12345", "", ErrInvalidPhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Phone(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Phone() error = %v, want %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Phone() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddressAndDescription(t *testing.T) {
	if got, err := Address(""); err != nil || got != "" {
		t.Errorf("Address(\"\") = %q, %v, want empty and nil", got, err)
	}
	if _, err := Address(strings.Repeat("x", 256)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("Address() error = %v, want %v", err, ErrStringTooLong)
	}
	if got, err := Description("  Consultation fee "); err != nil || got != "Consultation fee" {
		t.Errorf("Description() = %q, %v, want %q", got, err, "Consultation fee")
	}
	if _, err := Description(strings.Repeat("x", 501)); !errors.Is(err, ErrStringTooLong) {
		t.Errorf("Description() error = %v, want %v", err, ErrStringTooLong)
	}
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"BDT", "BDT", nil},
		{" usd ", "USD", nil},
		{"", "", nil},
		{"TAKA", "", ErrInvalidCurrency},
		{"U5D", "", ErrInvalidCurrency},
	}

	for _, tt := range tests {
		got, err := Currency(tt.input)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Currency(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Currency(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
