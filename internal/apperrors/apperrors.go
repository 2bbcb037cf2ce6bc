package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is returned when input is missing or malformed.
// Fields lists every offending field, not just the first one found.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
	}
	return msg
}

// AuthError is returned when the credential exchange with a provider fails.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return "authentication failed: " + e.Message
	}
	return "authentication failed"
}

// UpstreamError is returned when a provider call fails or answers with an unexpected shape.
type UpstreamError struct {
	Op      string
	Message string
	Status  int
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// NotFoundError is returned when a local record is absent.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func NewValidation(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsAuth(err error) bool {
	var v *AuthError
	return errors.As(err, &v)
}

func IsUpstream(err error) bool {
	var v *UpstreamError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

// ValidationFields returns the offending fields of a wrapped ValidationError, or nil.
func ValidationFields(err error) []string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Fields
	}
	return nil
}
