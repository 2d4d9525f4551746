package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrRateLimited is returned when the rate-limit waiting budget of a call is exhausted.
	ErrRateLimited = errors.New("telegram rate limit budget exhausted")

	errTokenRequired = errors.New("telegram bot token must be provided")
	errChatRequired  = errors.New("telegram chat id must be provided")
)

// APIError is an unsuccessful Bot API response.
type APIError struct {
	// Method is the Bot API method.
	Method string
	// Code is the error_code of the response, or the HTTP status when absent.
	Code int
	// Description is the human-readable description of the error.
	Description string
	// RetryAfter is the number of seconds to wait before repeating the request.
	RetryAfter int
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed with code %d: %s", e.Method, e.Code, e.Description)
}

// RateLimited reports whether the request may be repeated after RetryAfter.
func (e *APIError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// redact removes the bot token from URLs embedded in transport errors.
func redact(err error, token string) error {
	var urlErr *url.Error
	if token != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, token, maskToken(token))
	}

	return err
}

// maskToken keeps the bot ID part of a token and hides the secret.
func maskToken(token string) string {
	if id, _, ok := strings.Cut(token, ":"); ok {
		return id + ":***"
	}

	return "***"
}
