package zabbix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/alarm-relay/internal/logger"
)

const (
	sessionCookieName = "zbx_session"
	maxChartSize      = 10 << 20
)

// ChartOptions sizes a chart.
type ChartOptions struct {
	// Width is the chart width in pixels.
	Width int
	// Height is the chart height in pixels.
	Height int
	// Period is the time range ending now.
	Period time.Duration
}

// WebSession downloads charts from the frontend with a zbx_session cookie
// obtained through the login form.
type WebSession struct {
	// httpClient performs frontend requests without following redirects.
	httpClient *http.Client
	// webURL is the frontend root, e.g. https://zabbix.local/zabbix.
	webURL string
	// user is the login name.
	user string
	// password is the login password.
	password string

	mu     sync.Mutex
	cookie string
}

// NewWebSession creates a frontend session for webURL.
func NewWebSession(webURL, user, password string, timeout time.Duration) *WebSession {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &WebSession{
		httpClient: &http.Client{
			Timeout: timeout,
			// The login form answers with a redirect that carries the cookie.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		webURL:   strings.TrimRight(webURL, "/"),
		user:     user,
		password: password,
	}
}

// Chart returns the PNG chart of an item. A non-image answer usually means
// the cookie expired, so the session logs in again and retries once.
func (w *WebSession) Chart(ctx context.Context, itemID string, opts ChartOptions) ([]byte, error) {
	cookie, err := w.sessionCookie(ctx)
	if err != nil {
		return nil, err
	}

	image, err := w.fetchChart(ctx, cookie, itemID, opts)
	if !errors.Is(err, ErrNotImage) {
		return image, err
	}

	logger.WarnKV(ctx, "Zabbix chart request was not authorized, logging in again", "item_id", itemID)
	w.invalidate(cookie)

	if cookie, err = w.sessionCookie(ctx); err != nil {
		return nil, err
	}

	return w.fetchChart(ctx, cookie, itemID, opts)
}

// Invalidate drops the cached cookie.
func (w *WebSession) Invalidate() {
	w.invalidate("")
}

func (w *WebSession) invalidate(cookie string) {
	w.mu.Lock()
	if cookie == "" || w.cookie == cookie {
		w.cookie = ""
	}
	w.mu.Unlock()
}

func (w *WebSession) sessionCookie(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cookie != "" {
		return w.cookie, nil
	}

	cookie, err := w.login(ctx)
	if err != nil {
		return "", err
	}

	logger.Info(ctx, "Logged in to Zabbix frontend")

	w.cookie = cookie

	return cookie, nil
}

func (w *WebSession) login(ctx context.Context) (string, error) {
	form := url.Values{
		"name":      {w.user},
		"password":  {w.password},
		"autologin": {"1"},
		"enter":     {"Sign in"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webURL+"/index.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create frontend login request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("zabbix frontend login: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			return c.Value, nil
		}
	}

	return "", fmt.Errorf("%w: status %s", errNoSessionCookie, resp.Status)
}

func (w *WebSession) fetchChart(ctx context.Context, cookie, itemID string, opts ChartOptions) ([]byte, error) {
	query := url.Values{
		"from":       {"now-" + strconv.FormatInt(int64(opts.Period/time.Second), 10) + "s"},
		"to":         {"now"},
		"itemids[0]": {itemID},
		"width":      {strconv.Itoa(opts.Width)},
		"height":     {strconv.Itoa(opts.Height)},
		"type":       {"0"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.webURL+"/chart.php?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create chart request: %w", err)
	}

	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie})

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chart of item %s: %w", itemID, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		return nil, fmt.Errorf("%w: item %s, status %s, content type %q",
			ErrNotImage, itemID, resp.Status, resp.Header.Get("Content-Type"))
	}

	image, err := io.ReadAll(io.LimitReader(resp.Body, maxChartSize))
	if err != nil {
		return nil, fmt.Errorf("read chart of item %s: %w", itemID, err)
	}

	return image, nil
}
