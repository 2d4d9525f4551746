package zabbix

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLoginFailed is returned when no login attempt succeeded.
	ErrLoginFailed = errors.New("zabbix login failed")
	// ErrNoAddress is returned when a host has no agent interface.
	ErrNoAddress = errors.New("host has no agent interface address")
	// ErrItemNotFound is returned when no host item matches a name.
	ErrItemNotFound = errors.New("item not found")
	// ErrNotImage is returned when the frontend answers a chart request with something else than an image.
	ErrNotImage = errors.New("chart response is not an image")
	// ErrInvalidTrigger is wrapped by the errors of triggers skipped during a fetch.
	ErrInvalidTrigger = errors.New("invalid trigger")

	errEmptyToken      = errors.New("user.login returned an empty token")
	errNoSessionCookie = errors.New("frontend login did not set the zbx_session cookie")
)

// sessionMarkers are substrings of error details the API uses for stale or unknown tokens.
//
//nolint:gochecknoglobals // Read-only lookup table.
var sessionMarkers = []string{
	"re-login",
	"session terminated",
	"not authorised",
	"not authorized",
}

// RPCError is a JSON-RPC error object returned by the API.
type RPCError struct {
	// Method is the API method that failed.
	Method string `json:"-"`
	// Code is the JSON-RPC error code.
	Code int `json:"code"`
	// Message is the short error message.
	Message string `json:"message"`
	// Data carries the details.
	Data string `json:"data"`
}

// Error implements error.
func (e *RPCError) Error() string {
	return fmt.Sprintf("zabbix %s failed with code %d: %s %s", e.Method, e.Code, e.Message, e.Data)
}

// SessionExpired reports whether the error means the token must be renewed.
func (e *RPCError) SessionExpired() bool {
	text := strings.ToLower(e.Message + " " + e.Data)
	for _, marker := range sessionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}

	return false
}

// IsSessionExpired reports whether err wraps an RPCError for an expired session.
func IsSessionExpired(err error) bool {
	var rpcErr *RPCError

	return errors.As(err, &rpcErr) && rpcErr.SessionExpired()
}
