package xtream

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by the client matches exactly one of
// these with errors.Is.
var (
	// ErrConfiguration means the call was never attempted because the
	// credentials are incomplete.
	ErrConfiguration = errors.New("xtream: configuration error")

	// ErrAuthentication means the panel was reached but rejected the
	// credentials, or the login round trip itself failed.
	ErrAuthentication = errors.New("xtream: authentication failed")

	// ErrTransport covers unreachable servers, timeouts, unexpected HTTP
	// statuses and malformed responses.
	ErrTransport = errors.New("xtream: transport error")
)

// ConfigurationError reports blank credential fields.
type ConfigurationError struct {
	Fields []string
}

func (e *ConfigurationError) Error() string {
	return "invalid credentials: blank " + strings.Join(e.Fields, ", ")
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// AuthenticationError is returned by Client.Authenticate.
type AuthenticationError struct {
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	// Status and Message are the user_info fields reported by the panel.
	Status  string
	Message string
	// Err is the underlying transport or decoding failure, if any.
	Err error
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.Err != nil:
		return "authentication failed: " + e.Err.Error()
	case e.Message != "" && e.Status != "":
		return fmt.Sprintf("authentication failed: status %q: %s", e.Status, e.Message)
	case e.Status != "":
		return fmt.Sprintf("authentication failed: status %q", e.Status)
	default:
		return "authentication failed: credentials rejected"
	}
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RequestError is the transport error kind: the HTTP round trip failed,
// returned a non-2xx status, or produced a body that could not be decoded.
type RequestError struct {
	Action     string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	action := e.Action
	if action == "" {
		action = "request"
	}
	if e.StatusCode != 0 && e.Err == nil {
		return fmt.Sprintf("%s: unexpected status %d: %s", action, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", action, e.Err)
}

// Is matches ErrTransport.
func (e *RequestError) Is(target error) bool {
	return target == ErrTransport
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
