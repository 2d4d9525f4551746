package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/logger"
)

const (
	// DefaultAPIBase is the public Bot API root.
	DefaultAPIBase = "https://api.telegram.org"
	// DefaultRetryAfter is used when a 429 response carries no retry_after.
	DefaultRetryAfter = 60 * time.Second
	// DefaultMaxRateLimitWait caps rate-limit waiting per call.
	DefaultMaxRateLimitWait = 5 * time.Minute

	defaultTimeout = 10 * time.Second
	parseModeHTML  = "HTML"
)

// Client sends messages and photos to a single chat.
type Client struct {
	// httpClient performs API requests.
	httpClient *http.Client
	// apiBase is the Bot API root URL.
	apiBase string
	// token is the bot token.
	token string
	// chatID is the destination chat.
	chatID string
	// maxRateLimitWait caps the total rate-limit waiting of one call.
	maxRateLimitWait time.Duration
	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAPIBase overrides the Bot API root URL.
func WithAPIBase(apiBase string) Option {
	return func(c *Client) {
		if apiBase = strings.TrimRight(apiBase, "/"); apiBase != "" {
			c.apiBase = apiBase
		}
	}
}

// WithMaxRateLimitWait sets the rate-limit waiting budget of a single call.
func WithMaxRateLimitWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxRateLimitWait = d
		}
	}
}

// New creates a client for the bot token and chat.
func New(token, chatID string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errTokenRequired
	}

	if chatID == "" {
		return nil, errChatRequired
	}

	c := &Client{
		httpClient:       &http.Client{Timeout: defaultTimeout},
		apiBase:          DefaultAPIBase,
		token:            token,
		chatID:           chatID,
		maxRateLimitWait: DefaultMaxRateLimitWait,
		sleep:            sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// sendMessageRequest is the sendMessage payload.
type sendMessageRequest struct {
	ChatID           string `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

// message is the part of a Message object the relay reads.
type message struct {
	MessageID int64 `json:"message_id"`
}

// apiResponse is the Bot API response envelope.
type apiResponse struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result"`
	ErrorCode   int                 `json:"error_code"`
	Description string              `json:"description"`
	Parameters  *responseParameters `json:"parameters"`
}

// responseParameters explains why a request failed.
type responseParameters struct {
	RetryAfter int `json:"retry_after"`
}

// Send posts text to the chat, optionally as a reply, and returns the new message ID.
func (c *Client) Send(
	ctx context.Context,
	text string,
	kind domain.Kind,
	replyTo domain.MessageID,
) (domain.MessageID, error) {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:           c.chatID,
		Text:             FormatText(kind, text),
		ParseMode:        parseModeHTML,
		ReplyToMessageID: int64(replyTo),
	})
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}

	var result message

	err = c.call(ctx, "sendMessage", "application/json", func() io.Reader {
		return bytes.NewReader(payload)
	}, &result)
	if err != nil {
		return 0, err
	}

	return domain.MessageID(result.MessageID), nil
}

// SendImage uploads a PNG chart as a reply to replyTo.
func (c *Client) SendImage(ctx context.Context, filename string, image []byte, replyTo domain.MessageID) error {
	var body bytes.Buffer

	form := multipart.NewWriter(&body)

	if err := form.WriteField("chat_id", c.chatID); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}

	if replyTo != 0 {
		if err := form.WriteField("reply_to_message_id", strconv.FormatInt(int64(replyTo), 10)); err != nil {
			return fmt.Errorf("write reply_to_message_id field: %w", err)
		}
	}

	photo, err := form.CreateFormFile("photo", filename)
	if err != nil {
		return fmt.Errorf("create photo field: %w", err)
	}

	if _, err = photo.Write(image); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}

	if err = form.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	payload := body.Bytes()

	return c.call(ctx, "sendPhoto", form.FormDataContentType(), func() io.Reader {
		return bytes.NewReader(payload)
	}, nil)
}

// call performs one API method, waiting out rate limits within the budget.
func (c *Client) call(
	ctx context.Context,
	method, contentType string,
	body func() io.Reader,
	out any,
) error {
	var waited time.Duration

	for {
		apiErr, err := c.do(ctx, method, contentType, body(), out)
		if err != nil || apiErr == nil {
			return err
		}

		if !apiErr.RateLimited() {
			return apiErr
		}

		wait := time.Duration(apiErr.RetryAfter) * time.Second
		if wait <= 0 {
			wait = DefaultRetryAfter
		}

		if waited+wait > c.maxRateLimitWait {
			return fmt.Errorf("%w after waiting %s: %w", ErrRateLimited, waited, apiErr)
		}

		logger.WarnKV(ctx, "Telegram rate limit hit, retrying", "method", method, "retry_after", wait)

		if err = c.sleep(ctx, wait); err != nil {
			return fmt.Errorf("wait for rate limit: %w", err)
		}

		waited += wait
	}
}

// do sends a single request. It returns an *APIError for unsuccessful API
// responses and a plain error for transport or decoding failures.
func (c *Client) do(
	ctx context.Context,
	method, contentType string,
	body io.Reader,
	out any,
) (*APIError, error) {
	endpoint := c.apiBase + "/bot" + c.token + "/" + method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, redact(err, c.token))
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, redact(err, c.token))
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var decoded apiResponse
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode %s response with status %s: %w", method, resp.Status, err)
	}

	if !decoded.OK {
		apiErr := &APIError{
			Method:      method,
			Code:        decoded.ErrorCode,
			Description: decoded.Description,
		}

		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}

		if decoded.Parameters != nil {
			apiErr.RetryAfter = decoded.Parameters.RetryAfter
		}

		return apiErr, nil
	}

	if out == nil {
		return nil, nil
	}

	if err = json.Unmarshal(decoded.Result, out); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}

	return nil, nil
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
