package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")

	// ErrBackendUnavailable is returned when no store connection was ever established.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrQueryFailed wraps any error reported by the store.
	ErrQueryFailed = errors.New("query failed")
	// ErrUnauthorized is returned when a permission predicate rejects an action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidationMissing is returned when a required field is absent.
	ErrValidationMissing = errors.New("required field missing")
)

// QueryFailed tags a store error with ErrQueryFailed while keeping the cause
// reachable through errors.Is/As.
func QueryFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrQueryFailed) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrQueryFailed, err)
}

// UserSafeMessage converts an error into text that can be shown in a flash.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrValidationMissing):
		return "Please fill in all required fields."
	case errors.Is(err, ErrBackendUnavailable):
		return "The database is not configured. Please check the store settings."
	case errors.Is(err, ErrNotFound):
		return "The requested record no longer exists."
	case errors.Is(err, ErrIdempotencyConflict):
		return "This form was already submitted."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Your session expired. Reload the page and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
