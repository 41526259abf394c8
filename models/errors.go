package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrOrderNotPending = errors.New("order is not pending payment")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a field error, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns e only when at least one field failed.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type GatewayCause struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// GatewayValidationError is a payload the gateway refused. Not retryable.
type GatewayValidationError struct {
	StatusCode int
	Message    string
	Causes     []GatewayCause
}

func (e *GatewayValidationError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("gateway rejected request (%d): %s", e.StatusCode, e.Message)
	}
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		code := c.Code
		if code == "" {
			code = "N/A"
		}
		parts = append(parts, fmt.Sprintf("Code %s: %s", code, c.Description))
	}
	return strings.Join(parts, "; ")
}

// GatewayUnavailableError is a network failure, timeout or 5xx. Retryable.
type GatewayUnavailableError struct {
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return "payment gateway unavailable: " + e.Err.Error()
}

func (e *GatewayUnavailableError) Unwrap() error {
	return e.Err
}

// StoreUnavailableError means the order store could not be reached.
type StoreUnavailableError struct {
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return "order store unavailable: " + e.Err.Error()
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}
