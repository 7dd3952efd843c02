// Package errors defines the bot's error taxonomy, outcome classification, retry and circuit breaking.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// User message keys resolved through the translation catalogs.
const (
	MsgCannotComplete = "errors.cannot_complete"
	MsgUnavailable    = "errors.unavailable"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func NewStorageError(op string, cause error) *AppError {
	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("storage error: %s", op),
		UserMessage: MsgCannotComplete,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewPlatformError(method string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("platform api error: %s", method),
		UserMessage: MsgCannotComplete,
		Severity:    SeverityMedium,
		Retryable:   Classify(cause) == TransientFailure,
		cause:       cause,
	}
}

func NewHandlerError(command string, cause error) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     fmt.Sprintf("command %q failed", command),
		UserMessage: MsgCannotComplete,
		Severity:    SeverityHigh,
		cause:       cause,
	}
}

func NewPanicError(recovered any) *AppError {
	return &AppError{
		Code:        "E410",
		Message:     fmt.Sprintf("panic: %v", recovered),
		UserMessage: MsgCannotComplete,
		Severity:    SeverityCritical,
	}
}

func NewOverloadError(limit int) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     fmt.Sprintf("worker pool is full: %d tasks in flight", limit),
		UserMessage: MsgUnavailable,
		Severity:    SeverityMedium,
	}
}
