package zabbix

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/alarm-relay/internal/logger"
)

const (
	defaultLoginRetries    = 3
	defaultLoginRetryDelay = 10 * time.Second
)

// Session holds the API token of one user and renews it on expiry.
type Session struct {
	// client sends the requests.
	client *Client
	// user is the login name.
	user string
	// password is the login password.
	password string
	// maxRetries is the number of login attempts per renewal.
	maxRetries int
	// retryDelay is the pause between login attempts.
	retryDelay time.Duration
	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	token string
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithLoginRetries sets the number of login attempts and the pause between them.
func WithLoginRetries(attempts int, delay time.Duration) SessionOption {
	return func(s *Session) {
		if attempts > 0 {
			s.maxRetries = attempts
		}

		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// NewSession creates a session that logs in as user on first use.
func NewSession(client *Client, user, password string, opts ...SessionOption) *Session {
	s := &Session{
		client:     client,
		user:       user,
		password:   password,
		maxRetries: defaultLoginRetries,
		retryDelay: defaultLoginRetryDelay,
		sleep:      sleepContext,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Token returns the cached token, logging in first when there is none.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	var lastErr error

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		logger.InfoKV(ctx, "Logging in to Zabbix API", "attempt", attempt)

		token, err := s.login(ctx)
		if err == nil {
			logger.Info(ctx, "Logged in to Zabbix API")

			s.token = token

			return token, nil
		}

		lastErr = err

		logger.WarnKV(ctx, "Zabbix login attempt failed", "attempt", attempt, "error", err)

		if attempt == s.maxRetries {
			break
		}

		if err = s.sleep(ctx, s.retryDelay); err != nil {
			return "", fmt.Errorf("wait before login retry: %w", err)
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %w", ErrLoginFailed, s.maxRetries, lastErr)
}

// Invalidate drops the cached token so the next call logs in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// invalidate drops token only if it is still the cached one.
func (s *Session) invalidate(token string) {
	s.mu.Lock()
	if s.token == token {
		s.token = ""
	}
	s.mu.Unlock()
}

func (s *Session) login(ctx context.Context) (string, error) {
	var token string

	params := map[string]string{
		"username": s.user,
		"password": s.password,
	}

	if err := s.client.Call(ctx, "user.login", "", params, &token); err != nil {
		return "", err
	}

	if token == "" {
		return "", errEmptyToken
	}

	return token, nil
}

// Call invokes an authenticated method. When the token turns out to be
// expired, it logs in again and repeats the call once.
func (s *Session) Call(ctx context.Context, method string, params, out any) error {
	token, err := s.Token(ctx)
	if err != nil {
		return err
	}

	err = s.client.Call(ctx, method, token, params, out)
	if !IsSessionExpired(err) {
		return err
	}

	logger.WarnKV(ctx, "Zabbix session expired, logging in again", "method", method)
	s.invalidate(token)

	if token, err = s.Token(ctx); err != nil {
		return err
	}

	return s.client.Call(ctx, method, token, params, out)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
