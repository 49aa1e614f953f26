package common

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FieldError represents a single field validation failure
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator collects field errors across several rules
type Validator struct {
	errors []FieldError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation, or nil
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *FieldError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *FieldError {
	if value == nil {
		return &FieldError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

// Positive rejects zero and negative numbers and durations.
func Positive(fieldName string, value interface{}) *FieldError {
	ok := true
	switch v := value.(type) {
	case int:
		ok = v > 0
	case int64:
		ok = v > 0
	case float64:
		ok = v > 0
	case time.Duration:
		ok = v > 0
	default:
		return &FieldError{Field: fieldName, Value: value, Message: "must be numeric"}
	}
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be greater than zero"}
	}
	return nil
}

// NonEmptyList requires at least one non-blank entry.
func NonEmptyList(fieldName string, value interface{}) *FieldError {
	list, ok := value.([]string)
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be a list"}
	}
	for _, item := range list {
		if strings.TrimSpace(item) != "" {
			return nil
		}
	}
	return &FieldError{Field: fieldName, Value: value, Message: "must contain at least one entry"}
}

// AbsoluteURL requires an http or https URL with a host.
func AbsoluteURL(fieldName string, value interface{}) *FieldError {
	str, ok := value.(string)
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if str == "" {
		// Required reports blanks
		return nil
	}
	u, err := url.Parse(str)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &FieldError{Field: fieldName, Value: value, Message: "must be an absolute http(s) URL"}
	}
	return nil
}
