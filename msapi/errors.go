package msapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AuthError is returned when the client credentials exchange with the
// identity platform fails, either with a protocol error or a transport one.
type AuthError struct {
	// Status is the HTTP status returned by the identity endpoint,
	// zero when the exchange failed before getting a response.
	Status int
	// Detail is the best-effort decoded error payload.
	Detail string
	// cause is the underlying transport error, if any.
	cause error
}

// Error returns error string
func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed: %v %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("failed to obtain access token: %s", e.Detail)
}

// Unwrap returns the underlying transport error
func (e *AuthError) Unwrap() error {
	return e.cause
}

// UnauthorizedError is returned when the Graph API rejects the bearer token.
type UnauthorizedError struct {
	Detail string
}

// Error returns error string
func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Detail
}

// APIError is returned on an unexpected non-2xx Graph API response.
type APIError struct {
	Status int
	Detail string
}

// Error returns error string
func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error: %v %s", e.Status, e.Detail)
}

// IsAuthError returns true when err is an identity platform failure.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsUnauthorized returns true when err is a Graph API token rejection.
func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

// IsAPIError returns true when err is an unclassified Graph API failure.
func IsAPIError(err error) bool {
	var target *APIError
	return errors.As(err, &target)
}

// graphError represents MS Graph error payload
type graphError struct {
	E struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// identityError represents an identity platform error payload
type identityError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// errorDetail decodes a response body into a short human-readable string.
// Falls back to the raw text when the body is not a known JSON error shape.
func errorDetail(body []byte) string {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.E.Code != "" {
		return strings.TrimSpace(ge.E.Code + " " + ge.E.Message)
	}
	var ie identityError
	if err := json.Unmarshal(body, &ie); err == nil && ie.Code != "" {
		return strings.TrimSpace(ie.Code + " " + ie.Description)
	}
	return strings.TrimSpace(string(body))
}
