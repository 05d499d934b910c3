package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// APIError is a non-ok Bot API response.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Client calls Bot API methods by name with JSON arguments.
type Client struct {
	log *slog.Logger

	baseURL string
	token   string
	timeout time.Duration
	httpc   *http.Client
}

type ClientOptions struct {
	Logger *slog.Logger

	// Token is the bot token from @BotFather. Required.
	Token string

	// BaseURL overrides the API host (tests). Defaults to the public API.
	BaseURL string

	// Timeout bounds one API call, excluding long-poll waits which extend it
	// by their own poll timeout. If zero, 30s.
	Timeout time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, errors.New("missing Token")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Calls are bounded per-request via context so long polls can exceed the
	// default call timeout.
	return &Client{
		log:     logger,
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
		httpc:   &http.Client{},
	}, nil
}

// Call invokes one Bot API method. args is marshalled as the JSON request
// body; on an ok response the result is unmarshalled into out when out is
// non-nil.
func (c *Client) Call(ctx context.Context, method string, args any, out any) error {
	if c == nil {
		return errors.New("nil client")
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return errors.New("missing method")
	}

	body := []byte("{}")
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("marshal %s args: %w", method, err)
		}
		body = b
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response (http %d): %w", method, resp.StatusCode, err)
	}
	if !env.OK {
		return &APIError{Code: env.ErrorCode, Description: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe fetches the bot's own identity. Used at startup to log who we are
// and to strip "@botname" command suffixes.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var me User
	if err := c.Call(ctx, "getMe", nil, &me); err != nil {
		return User{}, err
	}
	return me, nil
}

type sendMessageArgs struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendMessage sends a plain-text message, optionally with an inline
// keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	return c.Call(ctx, "sendMessage", sendMessageArgs{ChatID: chatID, Text: text, ReplyMarkup: markup}, nil)
}

type editMessageTextArgs struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int64                 `json:"message_id"`
	Text        string                `json:"text"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageText rewrites a previously sent message in place. Used to
// refresh a button grid after a tap instead of spamming new messages.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	return c.Call(ctx, "editMessageText", editMessageTextArgs{ChatID: chatID, MessageID: messageID, Text: text, ReplyMarkup: markup}, nil)
}

type answerCallbackArgs struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// AnswerCallbackQuery acknowledges a button tap, optionally with a toast
// text. Telegram keeps the button in a spinner state until this is called.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return c.Call(ctx, "answerCallbackQuery", answerCallbackArgs{CallbackQueryID: callbackID, Text: text}, nil)
}

type setWebhookArgs struct {
	URL         string `json:"url"`
	SecretToken string `json:"secret_token,omitempty"`
}

// SetWebhook registers the public webhook URL with the Bot API.
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	return c.Call(ctx, "setWebhook", setWebhookArgs{URL: strings.TrimSpace(url), SecretToken: strings.TrimSpace(secretToken)}, nil)
}

// DeleteWebhook unregisters the webhook, which is required before switching
// back to long polling.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.Call(ctx, "deleteWebhook", nil, nil)
}

type getUpdatesArgs struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates long-polls for updates after offset. timeoutSec is the server
// hold time; the HTTP client allows extra slack on top of it.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	if timeoutSec < 0 {
		timeoutSec = 0
	}
	args := getUpdatesArgs{
		Offset:         offset,
		Timeout:        timeoutSec,
		AllowedUpdates: []string{"message", "edited_message", "callback_query"},
	}

	// Deadline covers the server hold time plus network slack.
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec+15)*time.Second)
	defer cancel()

	var updates []Update
	if err := c.Call(ctx, "getUpdates", args, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
