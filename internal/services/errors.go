package services

import (
	"fmt"
	"time"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// ConflictError is returned when a session already has a turn in flight.
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

// ProviderError is a failed call to the inference endpoint. Status is the
// HTTP status reported by the provider, or 0 when the call never got one.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error %d: %s", e.Status, e.Message)
	}
	return "provider error: " + e.Message
}

type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("provider did not answer within %s", e.After)
	}
	return "provider timed out"
}
