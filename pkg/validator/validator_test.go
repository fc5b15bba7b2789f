package validator

import (
	"testing"
)

func TestValidateStruct(t *testing.T) {
	type TestStruct struct {
		NIP      string `validate:"required,nip"`
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=8"`
		Name     string `validate:"required"`
	}

	tests := []struct {
		name     string
		input    TestStruct
		expected bool
	}{
		{
			name: "valid struct",
			input: TestStruct{
				NIP:      "198702112010121001",
				Email:    "analis@instansi.go.id",
				Password: "password123",
				Name:     "Budi Santoso",
			},
			expected: true,
		},
		{
			name: "missing required field",
			input: TestStruct{
				NIP:      "198702112010121001",
				Email:    "analis@instansi.go.id",
				Password: "password123",
				Name:     "",
			},
			expected: false,
		},
		{
			name: "invalid NIP",
			input: TestStruct{
				NIP:      "not-a-nip",
				Email:    "analis@instansi.go.id",
				Password: "password123",
				Name:     "Budi Santoso",
			},
			expected: false,
		},
		{
			name: "invalid email",
			input: TestStruct{
				NIP:      "198702112010121001",
				Email:    "invalid-email",
				Password: "password123",
				Name:     "Budi Santoso",
			},
			expected: false,
		},
		{
			name: "password too short",
			input: TestStruct{
				NIP:      "198702112010121001",
				Email:    "analis@instansi.go.id",
				Password: "short",
				Name:     "Budi Santoso",
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			isValid := err == nil

			if isValid != tt.expected {
				t.Errorf("ValidateStruct() = %v, expected %v, error: %v", isValid, tt.expected, err)
			}
		})
	}
}

func TestValidateNIP(t *testing.T) {
	tests := []struct {
		nip      string
		expected bool
	}{
		{"198702112010121001", true},
		{"12345678", true},
		{"1234567", false},     // too short
		{"1987021120101210011", false}, // too long
		{"19870211A010121001", false},  // non-digit
		{"", false},
	}

	for _, tt := range tests {
		err := ValidateNIP(tt.nip)
		isValid := err == nil

		if isValid != tt.expected {
			t.Errorf("ValidateNIP(%q) = %v, expected %v", tt.nip, isValid, tt.expected)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email    string
		expected bool
	}{
		{"test@example.com", true},
		{"user.name@kemenkeu.go.id", true},
		{"invalid-email", false},
		{"@example.com", false},
		{"user@", false},
		{"", false},
		{"user@example", false},
	}

	for _, tt := range tests {
		err := ValidateEmail(tt.email)
		isValid := err == nil

		if isValid != tt.expected {
			t.Errorf("ValidateEmail(%q) = %v, expected %v", tt.email, isValid, tt.expected)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		expected bool
	}{
		{"password123", true},
		{"12345678", true},
		{"short", false},
		{"", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		isValid := err == nil

		if isValid != tt.expected {
			t.Errorf("ValidatePassword(%q) = %v, expected %v", tt.password, isValid, tt.expected)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  test  ", "test"},
		{"test\x00string", "teststring"},
		{"normal", "normal"},
	}

	for _, tt := range tests {
		result := SanitizeString(tt.input)
		if result != tt.expected {
			t.Errorf("SanitizeString(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}
