package docbase

import (
	"errors"
	"strings"
	"testing"
)

func TestWithContext(t *testing.T) {
	err := WithContext(ErrNotFound, map[string]interface{}{
		"collection": "users",
		"id":         "42",
	})

	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped error lost its sentinel")
	}
	if !strings.Contains(err.Error(), "users") {
		t.Errorf("context missing from message: %v", err)
	}

	if WithContext(nil, map[string]interface{}{"k": "v"}) != nil {
		t.Error("WithContext(nil, ...) should be nil")
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsNotFound(WithContext(ErrNotFound, nil)) {
		t.Error("IsNotFound failed on wrapped sentinel")
	}
	if !IsConflict(WithContext(ErrConcurrency, nil)) {
		t.Error("IsConflict failed on wrapped sentinel")
	}
	for _, err := range []error{ErrUniqueConstraint, ErrForeignKey, ErrDuplicateKey} {
		if !IsConstraintViolation(err) {
			t.Errorf("IsConstraintViolation(%v) = false", err)
		}
	}
	if IsConstraintViolation(ErrNotFound) {
		t.Error("IsConstraintViolation should not match ErrNotFound")
	}

	ve := &ValidationError{Issues: []FieldIssue{{Field: "email", Message: "required field missing"}}}
	if !IsValidation(ve) {
		t.Error("IsValidation failed")
	}
	if !strings.Contains(ve.Error(), "email") {
		t.Errorf("validation message missing field: %v", ve)
	}
}
