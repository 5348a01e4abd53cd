// Package botapi is a thin client for the Telegram Bot API covering the
// messaging and moderation calls the bot needs.
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

const (
	maxRetries       = 3
	initialBackoff   = time.Second
	maxResponseBytes = 10 << 20 // 10 MiB
)

// Client is a thin HTTP wrapper around the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithRateLimit caps outbound calls at rps requests per second with the given burst.
// The Bot API starts answering 429 at roughly 30 messages per second per bot.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a new Telegram Bot API client.
func NewClient(token, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		token:   token,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do calls method with payload as its JSON body and decodes the result.
// A 429 answer is retried after the server's retry_after, or an exponential
// backoff when it gives none, up to maxRetries attempts in total.
func do[T any](ctx context.Context, c *Client, method string, payload any) (*T, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("botapi: marshal %s request: %w", method, err)
		}
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		status, body, err := c.post(ctx, method, data)
		if err != nil {
			return nil, err
		}
		if status != http.StatusTooManyRequests || attempt == maxRetries {
			return decode[T](method, body)
		}

		if wait := retryAfter(body); wait > 0 {
			backoff = wait
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

// post sends one request and returns the status and at most
// maxResponseBytes of the body.
func (c *Client) post(ctx context.Context, method string, data []byte) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("botapi: %s rate limit wait: %w", method, err)
		}
	}

	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	url := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("botapi: create %s request: %w", method, err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error carries the token; the redacting log handler masks it.
		return 0, nil, fmt.Errorf("botapi: %s request failed: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("botapi: read %s response: %w", method, err)
	}
	return resp.StatusCode, respBody, nil
}

func decode[T any](method string, body []byte) (*T, error) {
	var apiResp APIResponse[T]
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("botapi: decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		apiErr := &APIError{Code: apiResp.ErrorCode, Description: apiResp.Description}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = apiResp.Parameters.RetryAfter
		}
		return nil, apiErr
	}
	return &apiResp.Result, nil
}

// retryAfter extracts parameters.retry_after from an error body.
func retryAfter(body []byte) time.Duration {
	var apiResp APIResponse[json.RawMessage]
	if json.Unmarshal(body, &apiResp) != nil || apiResp.Parameters == nil {
		return 0
	}
	return time.Duration(apiResp.Parameters.RetryAfter) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetMe returns the bot's user information.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return do[User](ctx, c, "getMe", nil)
}

// GetUpdates fetches incoming updates using long polling.
func (c *Client) GetUpdates(ctx context.Context, req GetUpdatesRequest) ([]Update, error) {
	result, err := do[[]Update](ctx, c, "getUpdates", req)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// SetWebhook configures the webhook URL for receiving updates.
func (c *Client) SetWebhook(ctx context.Context, req SetWebhookRequest) error {
	_, err := do[bool](ctx, c, "setWebhook", req)
	return err
}

// DeleteWebhook removes the current webhook integration.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := do[bool](ctx, c, "deleteWebhook", nil)
	return err
}

// SendMessage sends a text message to the specified chat.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	return do[Message](ctx, c, "sendMessage", req)
}

// EditMessageText edits the text of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) (*Message, error) {
	return do[Message](ctx, c, "editMessageText", req)
}

// SendMedia sends a file by id using the method matching req.Kind.
func (c *Client) SendMedia(ctx context.Context, req MediaRequest) (*Message, error) {
	method, field, err := req.Kind.method()
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"chat_id": req.ChatID,
		field:     req.FileID,
	}
	if req.Caption != "" && req.Kind != MediaSticker {
		payload["caption"] = req.Caption
		if req.ParseMode != "" {
			payload["parse_mode"] = req.ParseMode
		}
	}
	if req.ReplyToMessageID != 0 {
		payload["reply_to_message_id"] = req.ReplyToMessageID
		payload["allow_sending_without_reply"] = true
	}
	if req.ReplyMarkup != nil {
		payload["reply_markup"] = req.ReplyMarkup
	}
	return do[Message](ctx, c, method, payload)
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := do[bool](ctx, c, "deleteMessage", messageRef{ChatID: chatID, MessageID: messageID})
	return err
}

// RestrictChatMember changes what a member may send. A zero Until means forever.
func (c *Client) RestrictChatMember(ctx context.Context, req RestrictRequest) error {
	payload := restrictChatMemberRequest{
		ChatID:                        req.ChatID,
		UserID:                        req.UserID,
		Permissions:                   req.Permissions,
		UseIndependentChatPermissions: true,
	}
	if !req.Until.IsZero() {
		payload.UntilDate = req.Until.Unix()
	}
	_, err := do[bool](ctx, c, "restrictChatMember", payload)
	return err
}

// BanChatMember bans a user from the chat.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	_, err := do[bool](ctx, c, "banChatMember", memberRef{ChatID: chatID, UserID: userID})
	return err
}

// UnbanChatMember lifts a ban. When the user is still a member this removes
// them from the chat while leaving them free to join again.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	_, err := do[bool](ctx, c, "unbanChatMember", memberRef{ChatID: chatID, UserID: userID})
	return err
}

// GetChatAdministrators lists the administrators of a chat.
func (c *Client) GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error) {
	result, err := do[[]ChatMember](ctx, c, "getChatAdministrators", chatRef{ChatID: chatID})
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// GetChatMember fetches the status of one user in a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	return do[ChatMember](ctx, c, "getChatMember", memberRef{ChatID: chatID, UserID: userID})
}

// GetChatMemberCount returns the number of members in a chat.
func (c *Client) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	result, err := do[int](ctx, c, "getChatMemberCount", chatRef{ChatID: chatID})
	if err != nil {
		return 0, err
	}
	return *result, nil
}

// AnswerCallbackQuery acknowledges an inline button press.
func (c *Client) AnswerCallbackQuery(ctx context.Context, req AnswerCallbackQueryRequest) error {
	_, err := do[bool](ctx, c, "answerCallbackQuery", req)
	return err
}
