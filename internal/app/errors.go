package app

import (
	"errors"
	"fmt"
	"net/http"

	"experiences/api/internal/auth"
	"experiences/api/internal/authpw"
	"experiences/api/internal/export"
	"experiences/api/internal/permission"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = permission.ErrPermissionDenied
	ErrPermissionExpired  = permission.ErrPermissionExpired
	ErrAlreadyRequested   = permission.ErrAlreadyRequested
	ErrNotRequested       = permission.ErrNotRequested
	ErrPersistence        = errors.New("persistence failure")
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrNotification is only ever logged. It never reaches a caller.
	ErrNotification = errors.New("notification failure")
	ErrForbidden    = errors.New("forbidden")
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	errRateLimited       = domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many edit requests", nil)
	errStreamDisabled    = domainError(http.StatusServiceUnavailable, "STREAM_DISABLED", "Notification stream is not available", nil)
	errStreamUnsupported = domainError(http.StatusInternalServerError, "STREAM_UNSUPPORTED", "Streaming unsupported", nil)
)

func validationError(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, ErrPermissionExpired):
		return http.StatusForbidden, "PERMISSION_EXPIRED", "Edit permission has expired", nil
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED", "No approved edit permission", nil
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, ErrAlreadyRequested):
		return http.StatusConflict, "ALREADY_REQUESTED", "Edit permission already requested", nil
	case errors.Is(err, ErrNotRequested):
		return http.StatusConflict, "NOT_REQUESTED", "Edit permission was never requested", nil
	case errors.Is(err, authpw.ErrMissingCredentials):
		return http.StatusBadRequest, "MISSING_CREDENTIALS", "Email and password are required", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE", err.Error(), nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering is not available", nil
	case errors.Is(err, ErrRegistrationFailed):
		return http.StatusInternalServerError, "REGISTRATION_FAILED", "Could not register the experience", nil
	case errors.Is(err, ErrPersistence):
		return http.StatusInternalServerError, "PERSISTENCE_FAILED", "Could not save changes", nil
	}
	return http.StatusInternalServerError, "INTERNAL", "Internal server error", nil
}
