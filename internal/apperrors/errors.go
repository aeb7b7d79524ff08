// Package apperrors defines the typed errors shared by the credit ledger,
// the generation job lifecycle and the HTTP layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types
const (
	ErrTypeValidation          = "VALIDATION_ERROR"
	ErrTypeUserNotFound        = "USER_NOT_FOUND"
	ErrTypeJobNotFound         = "JOB_NOT_FOUND"
	ErrTypeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrTypeProviderFailure     = "PROVIDER_FAILURE"
	ErrTypeUnauthorized        = "UNAUTHORIZED"
	ErrTypeForbidden           = "FORBIDDEN"
	ErrTypeConflict            = "CONFLICT"
	ErrTypeInternal            = "INTERNAL_SERVER_ERROR"
)

// Sentinels for errors.Is comparisons. AppError.Is matches on Type, so any
// AppError of the same type satisfies errors.Is against these.
var (
	ErrInsufficientCredits = &AppError{Type: ErrTypeInsufficientCredits}
	ErrJobNotFound         = &AppError{Type: ErrTypeJobNotFound}
	ErrUserNotFound        = &AppError{Type: ErrTypeUserNotFound}
	ErrProviderFailure     = &AppError{Type: ErrTypeProviderFailure}
	ErrValidation          = &AppError{Type: ErrTypeValidation}
)

// AppError represents a custom application error
type AppError struct {
	Type       string `json:"type"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// NewAppError creates a new AppError
func NewAppError(errorType string, statusCode int, message string, details ...string) *AppError {
	var detail string
	if len(details) > 0 {
		detail = details[0]
	}

	return &AppError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Details:    detail,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func NewInsufficientCreditsError(required int) *AppError {
	return NewAppError(ErrTypeInsufficientCredits, http.StatusPaymentRequired, "Insufficient credits",
		fmt.Sprintf("%d credits required", required))
}

func NewJobNotFoundError(jobID string) *AppError {
	return NewAppError(ErrTypeJobNotFound, http.StatusNotFound, "Generation job not found", jobID)
}

func NewUserNotFoundError(userID string) *AppError {
	return NewAppError(ErrTypeUserNotFound, http.StatusNotFound, "User not found", userID)
}

func NewValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, http.StatusBadRequest, message)
}

func NewProviderFailure(details string) *AppError {
	return NewAppError(ErrTypeProviderFailure, http.StatusBadGateway, "Image provider failed", details)
}
