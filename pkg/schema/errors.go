package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeUnknownBlock     = "UNKNOWN_BLOCK"
	ErrCodeUnknownEdge      = "UNKNOWN_EDGE"
	ErrCodeInvalidKind      = "INVALID_KIND"
	ErrCodeOccupiedSlot     = "OCCUPIED_SLOT"
	ErrCodeSelfLoop         = "SELF_LOOP"
	ErrCodeDuplicateEdge    = "DUPLICATE_EDGE"
	ErrCodeMissingCondition = "MISSING_CONDITION"
	ErrCodeLocked           = "LOCKED"
	ErrCodeUnknownStage     = "UNKNOWN_STAGE"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeStore            = "STORE_ERROR"
	ErrCodeExpression       = "EXPRESSION_ERROR"
	ErrCodeParse            = "PARSE_ERROR"
)

// GameError is the structured error type for every rejected core command.
// None of these are fatal: the command is rejected and state is unchanged.
type GameError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Subject string         `json:"subject,omitempty"`
	Cause   error          `json:"-"`
}

func (e *GameError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Subject, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *GameError) Unwrap() error {
	return e.Cause
}

// NewError creates a new GameError.
func NewError(code, message string) *GameError {
	return &GameError{Code: code, Message: message}
}

// NewErrorf creates a new GameError with a formatted message.
func NewErrorf(code, format string, args ...any) *GameError {
	return &GameError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithSubject attaches the id of the block, edge or stage the error is about.
func (e *GameError) WithSubject(subject string) *GameError {
	e.Subject = subject
	return e
}

// WithCause attaches an underlying cause.
func (e *GameError) WithCause(err error) *GameError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *GameError) WithDetails(details map[string]any) *GameError {
	e.Details = details
	return e
}

// IsCode reports whether err is (or wraps) a GameError with the given code.
func IsCode(err error, code string) bool {
	var ge *GameError
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Code == code
}

// CodeOf returns the code of the first GameError in err's chain, or "".
func CodeOf(err error) string {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}
