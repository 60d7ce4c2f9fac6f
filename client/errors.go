package client

import (
	"fmt"
)

// TransportError wraps network failures and non-2xx responses.
type TransportError struct {
	Op     string
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: status %d", e.Op, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SessionBootstrapError means no session cookie or CSRF token could be
// obtained from the device. Authenticated calls cannot proceed.
type SessionBootstrapError struct {
	Reason string
	Err    error
}

func (e *SessionBootstrapError) Error() string {
	if e.Err == nil {
		return "session bootstrap failed: " + e.Reason
	}
	return fmt.Sprintf("session bootstrap failed: %s: %v", e.Reason, e.Err)
}

func (e *SessionBootstrapError) Unwrap() error { return e.Err }

// UnsupportedPasswordSchemeError is returned when the device advertises a
// password_type other than 4.
type UnsupportedPasswordSchemeError struct {
	Value string
}

func (e *UnsupportedPasswordSchemeError) Error() string {
	return "unsupported password_type: " + e.Value
}

// LoginRejectedError carries the raw device answer to a login attempt.
// Code is the device error code, if the answer was an <error> envelope.
type LoginRejectedError struct {
	Code     string
	Response Tree
}

func (e *LoginRejectedError) Error() string {
	if e.Code != "" {
		return "login rejected: device error " + e.Code
	}
	return fmt.Sprintf("login rejected: %v", map[string]any(e.Response))
}

// MalformedResponseError means the body parsed but an expected element was
// absent or had the wrong shape.
type MalformedResponseError struct {
	Path string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed response: %v", e.Err)
	}
	if e.Err == nil {
		return "malformed response: missing " + e.Path
	}
	return fmt.Sprintf("malformed response: %s: %v", e.Path, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
