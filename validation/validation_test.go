package validation_test

import (
	"testing"

	"heartbridge-api/apperror"
	"heartbridge-api/validation"
)

type sample struct {
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,phone"`
	Age      int    `json:"age" validate:"min=1,max=120"`
	Password string `json:"password" validate:"strongpassword"`
	Urgency  string `json:"urgency" validate:"oneof=low medium high"`
}

func TestPhone(t *testing.T) {
	tests := map[string]bool{
		"(555) 123-4567": true,
		"5551234567":     true,
		"555-123-4567":   false,
		"(555)123-4567":  false,
		"555123456":      false,
		"":               false,
	}
	for in, want := range tests {
		if got := validation.ValidPhone(in); got != want {
			t.Errorf("ValidPhone(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStrongPassword(t *testing.T) {
	tests := map[string]bool{
		"Abc123":   true,
		"abc123":   false,
		"ABC123":   false,
		"Abcdef":   false,
		"Ab1":      false,
		"Secret99": true,
	}
	for in, want := range tests {
		if got := validation.StrongPassword(in); got != want {
			t.Errorf("StrongPassword(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	err := validation.Struct(sample{Name: "", Phone: "nope", Age: 130, Password: "weak", Urgency: "urgent"})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	e := err.(*apperror.Error)
	for _, field := range []string{"name", "phone", "age", "password", "urgency"} {
		if _, ok := e.Fields[field]; !ok {
			t.Errorf("missing message for %q in %v", field, e.Fields)
		}
	}
}

func TestStructValid(t *testing.T) {
	err := validation.Struct(sample{Name: "Edna", Phone: "(555) 123-4567", Age: 80, Password: "Secret1", Urgency: "high"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
