// Package validation provides validation rules for flag keys and request parameters.
package validation

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// MaxKeyLength is the maximum length PostHog accepts for a flag key
	MaxKeyLength = 400
	// MaxTargetingKeyLength bounds the distinct id sent to PostHog
	MaxTargetingKeyLength = 200
)

// keyPattern matches alphanumeric characters, underscores, and hyphens
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// Err returns the errors as one error value, or nil when valid. Fields are
// reported in a stable order.
func (v *ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	msgs := make([]string, 0, len(v.Errors))
	for _, field := range slices.Sorted(maps.Keys(v.Errors)) {
		msgs = append(msgs, field+": "+v.Errors[field])
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidateKey validates a flag key
func ValidateKey(key string) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(key) == "" {
		result.AddError("key", "Key is required")
		return result
	}

	if utf8.RuneCountInString(key) > MaxKeyLength {
		result.AddError("key", fmt.Sprintf("Key must not exceed %d characters", MaxKeyLength))
		return result
	}

	if !keyPattern.MatchString(key) {
		result.AddError("key", "Key must contain only alphanumeric characters, underscores, and hyphens")
		return result
	}

	return result
}

// ValidateTargetingKey checks the length of a distinct id. An empty key is
// valid here; the provider reports it as TARGETING_KEY_MISSING.
func ValidateTargetingKey(targetingKey string) *ValidationResult {
	result := NewValidationResult()
	if utf8.RuneCountInString(targetingKey) > MaxTargetingKeyLength {
		result.AddError("targetingKey", fmt.Sprintf("Targeting key must not exceed %d characters", MaxTargetingKeyLength))
	}
	return result
}

// ValidateEvaluation validates the identifiers of one evaluation request.
func ValidateEvaluation(key, targetingKey string) *ValidationResult {
	result := ValidateKey(key)
	result.Merge(ValidateTargetingKey(targetingKey))
	return result
}
