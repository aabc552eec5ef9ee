package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cafebotify/cafebot-backend/internal/pkg/ctxutil"
	"github.com/cafebotify/cafebot-backend/internal/pkg/envutil"
	"github.com/cafebotify/cafebot-backend/internal/pkg/httpx"
	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
)

// Client is the thin chat-transport boundary. It carries no conversation
// logic: callers hand it a chat id, rendered text and an optional reply
// keyboard.
type Client interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
	SetWebhook(ctx context.Context, webhookURL, secretToken string) error
	DeleteWebhook(ctx context.Context) error
}

type Config struct {
	Token      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() Config {
	timeoutSec := envutil.Int("TELEGRAM_TIMEOUT_SECONDS", 30)
	maxRetries := envutil.Int("TELEGRAM_MAX_RETRIES", 4)

	return Config{
		Token:      strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		BaseURL:    strings.TrimSpace(os.Getenv("TELEGRAM_BASE_URL")),
		Timeout:    time.Duration(timeoutSec) * time.Second,
		MaxRetries: maxRetries,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return nil, fmt.Errorf("missing BOT_TOKEN")
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}

	return &client{
		log:        log.With("client", "TelegramClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	maxRetries int
}

type SendMessageRequest struct {
	ChatID                string
	Text                  string
	ReplyKeyboard         [][]string
	OneTimeKeyboard       bool
	RemoveKeyboard        bool
	DisableWebPagePreview bool
}

type Message struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Date int64  `json:"date"`
	Text string `json:"text"`
}

type keyboardButton struct {
	Text string `json:"text"`
}

type replyKeyboardMarkup struct {
	Keyboard        [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard"`
	OneTimeKeyboard bool               `json:"one_time_keyboard,omitempty"`
}

type replyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

func (c *client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("telegram client unavailable")
	}

	req.ChatID = strings.TrimSpace(req.ChatID)
	if req.ChatID == "" {
		return nil, fmt.Errorf("telegram: ChatID required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("telegram: Text required")
	}

	payload := map[string]any{
		"chat_id": req.ChatID,
		"text":    req.Text,
	}
	if req.DisableWebPagePreview {
		payload["disable_web_page_preview"] = true
	}
	switch {
	case req.RemoveKeyboard:
		payload["reply_markup"] = replyKeyboardRemove{RemoveKeyboard: true}
	case len(req.ReplyKeyboard) > 0:
		markup := replyKeyboardMarkup{
			ResizeKeyboard:  true,
			OneTimeKeyboard: req.OneTimeKeyboard,
		}
		for _, row := range req.ReplyKeyboard {
			var buttons []keyboardButton
			for _, label := range row {
				if strings.TrimSpace(label) == "" {
					continue
				}
				buttons = append(buttons, keyboardButton{Text: label})
			}
			if len(buttons) > 0 {
				markup.Keyboard = append(markup.Keyboard, buttons)
			}
		}
		payload["reply_markup"] = markup
	}

	return doJSON[Message](c, ctx, "sendMessage", payload)
}

func (c *client) SetWebhook(ctx context.Context, webhookURL, secretToken string) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("telegram client unavailable")
	}
	if strings.TrimSpace(webhookURL) == "" {
		return fmt.Errorf("telegram: webhook url required")
	}
	payload := map[string]any{"url": webhookURL}
	if strings.TrimSpace(secretToken) != "" {
		payload["secret_token"] = secretToken
	}
	_, err := doJSON[struct{}](c, ctx, "setWebhook", payload)
	return err
}

func (c *client) DeleteWebhook(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("telegram client unavailable")
	}
	_, err := doJSON[struct{}](c, ctx, "deleteWebhook", map[string]any{})
	return err
}

// ---------- HTTP / retry helpers ----------

type apiEnvelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type HTTPError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "telegram: <nil error>"
	}
	if strings.TrimSpace(e.Description) != "" {
		return fmt.Sprintf("telegram http %d: %s (code=%d)", e.StatusCode, e.Description, e.ErrorCode)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("telegram http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func doJSON[T any](c *client, ctx context.Context, method string, payload any) (*T, error) {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, resp, err := doJSONOnce[T](c, ctx, method, payload)
		if err == nil {
			return out, nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Telegram request retrying",
			"method", method,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return nil, fmt.Errorf("unreachable retry loop")
}

func doJSONOnce[T any](c *client, ctx context.Context, method string, payload any) (*T, *http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.Token, method)
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resp, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || !env.OK {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		if err == nil {
			he.ErrorCode = env.ErrorCode
			he.Description = env.Description
		}
		return nil, resp, he
	}

	var out T
	if len(env.Result) == 0 {
		return &out, resp, nil
	}
	if err := json.Unmarshal(env.Result, &out); err != nil {
		// some methods return a bare bool result
		var ok bool
		if json.Unmarshal(env.Result, &ok) == nil {
			return &out, resp, nil
		}
		return nil, resp, fmt.Errorf("telegram decode error: %w; raw=%s", err, string(env.Result))
	}
	return &out, resp, nil
}
