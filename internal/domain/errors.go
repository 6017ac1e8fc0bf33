// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// OAuth error codes returned by the token endpoint during device polling.
const (
	CodeAuthorizationPending = "authorization_pending"
	CodeSlowDown             = "slow_down"
	CodeExpiredToken         = "expired_token"
	CodeAccessDenied         = "access_denied"
)

var (
	// ErrDeviceCodeExpired is returned when the server reports expired_token while polling.
	ErrDeviceCodeExpired = errors.New("device authorization expired")
	// ErrPollTimeout is returned when the device code lifetime elapses without a decision.
	ErrPollTimeout = errors.New("timed out waiting for device authorization")
	// ErrNotSignedIn is returned when no valid session exists.
	ErrNotSignedIn = errors.New("not signed in")
)

// ConfigurationError is returned when required auth configuration is missing.
// It is never retryable and is raised before any network call.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("auth configuration incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// DeviceFlowError is a structured OAuth error document ({error, error_description}).
type DeviceFlowError struct {
	Code        string
	Description string
}

func (e *DeviceFlowError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("oauth error: %s", e.Code)
	}
	return fmt.Sprintf("oauth error: %s: %s", e.Code, e.Description)
}

// Retryable reports whether the code drives the polling loop instead of ending it.
func (e *DeviceFlowError) Retryable() bool {
	return e.Code == CodeAuthorizationPending || e.Code == CodeSlowDown
}

// NetworkError wraps a transport-level failure, including an undecodable 2xx body.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for a non-2xx response whose body is not an OAuth error document.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}
