// Package delivery sends the composed digest through the Telegram
// transport and tracks each attempt through an explicit
// pending/sent/recorded state machine so that a crash between
// transmission and bookkeeping never causes a double send.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const telegramAPIBase = "https://api.telegram.org"

// Transport is the external message-sending capability: it returns the
// transport-assigned message identifier on success.
type Transport interface {
	Send(ctx context.Context, message string) (string, error)
}

// TelegramTransport sends messages through the Telegram bot API.
type TelegramTransport struct {
	client    *resty.Client
	baseURL   string
	botToken  string
	chatID    string
	parseMode string
}

var _ Transport = (*TelegramTransport)(nil)

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// NewTelegramTransport creates the transport with timeout and bounded
// retries.
func NewTelegramTransport(botToken, chatID, parseMode string) *TelegramTransport {
	return &TelegramTransport{
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(2 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second),
		baseURL:   telegramAPIBase,
		botToken:  botToken,
		chatID:    chatID,
		parseMode: parseMode,
	}
}

// SetBaseURL overrides the API host, used by tests.
func (t *TelegramTransport) SetBaseURL(url string) {
	t.baseURL = url
}

// Send posts the message and returns Telegram's message id.
func (t *TelegramTransport) Send(ctx context.Context, message string) (string, error) {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":                  t.chatID,
			"text":                     message,
			"parse_mode":               t.parseMode,
			"disable_web_page_preview": "true",
		}).
		Post(endpoint)

	if err != nil {
		return "", fmt.Errorf("telegram request: %w", err)
	}

	var parsed telegramResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("failed to decode telegram response (status %d): %w", resp.StatusCode(), err)
	}
	if !parsed.OK {
		return "", fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode(), parsed.Description)
	}

	return strconv.FormatInt(parsed.Result.MessageID, 10), nil
}
