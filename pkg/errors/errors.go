// Package errors provides coded error types for tax computation.
// Every code here is a caller-input problem, never a transient failure.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies a TaxError
type Code string

// Error codes
const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeMalformedSchedule Code = "MALFORMED_SCHEDULE"
	CodeUnknownRegime     Code = "UNKNOWN_REGIME"
	CodeDuplicateSchedule Code = "DUPLICATE_SCHEDULE"
)

// ErrInvalidInput matches every TaxError via errors.Is
var ErrInvalidInput = stderrors.New("invalid input")

// TaxError is a structured error with context.
type TaxError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *TaxError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports InvalidInput for every code.
func (e *TaxError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInvalidInputError creates an error for a rejected input field.
func NewInvalidInputError(field, format string, args ...any) *TaxError {
	return &TaxError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
	}
}

// NewMalformedScheduleError creates an error for a slab table or schedule that breaks its invariants.
func NewMalformedScheduleError(format string, args ...any) *TaxError {
	return &TaxError{
		Code:    CodeMalformedSchedule,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewUnknownRegimeError creates an error for a regime outside the configured set.
func NewUnknownRegimeError(regime string) *TaxError {
	return &TaxError{
		Code:    CodeUnknownRegime,
		Message: fmt.Sprintf("no schedule configured for regime: %q", regime),
		Field:   "regime",
	}
}

// NewDuplicateScheduleError creates an error for two schedules sharing a registry key.
func NewDuplicateScheduleError(regime string, alternate bool) *TaxError {
	return &TaxError{
		Code:    CodeDuplicateSchedule,
		Message: fmt.Sprintf("more than one schedule for regime %q (alternate=%t)", regime, alternate),
	}
}

// CodeOf returns the code of the first TaxError in err's chain, or "".
func CodeOf(err error) Code {
	var te *TaxError
	if stderrors.As(err, &te) {
		return te.Code
	}
	return ""
}
