package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"signal-monitor/internal/model"
)

// telegramAPI is the Bot API base URL.
const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to one chat through the Bot API sendMessage
// method, formatted as MarkdownV2.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

type telegramMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NewTelegramNotifier creates a notifier for chatID using the bot's token.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPI,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers alert. Info-level alerts that are not signals are sent
// silently.
func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{
		ChatID:              t.chatID,
		Text:                FormatTelegram(alert),
		ParseMode:           "MarkdownV2",
		DisableNotification: alert.Signal == nil && alert.Level == AlertInfo,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	var out telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("telegram: rate limited, retry after %ds", out.Parameters.RetryAfter)
	case resp.StatusCode != http.StatusOK:
		if out.Description != "" {
			return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, out.Description)
		}
		return fmt.Errorf("telegram: status %d", resp.StatusCode)
	}

	log.Printf("[notify] telegram delivered %q to chat %s", alert.Title, t.chatID)
	return nil
}

// FormatTelegram renders alert as a MarkdownV2 message: a bold title line
// followed by the message body.
func FormatTelegram(alert Alert) string {
	return fmt.Sprintf("%s *%s*\n\n%s", alertEmoji(alert), escapeMarkdown(alert.Title), escapeMarkdown(alert.Message))
}

// alertEmoji marks signal alerts by direction and other alerts by level.
func alertEmoji(alert Alert) string {
	if alert.Signal != nil {
		if alert.Signal.Direction == model.DirectionSell {
			return "📉"
		}
		return "📈"
	}
	switch alert.Level {
	case AlertWarning:
		return "⚠️"
	case AlertCritical:
		return "🚨"
	}
	return "ℹ️"
}

// escapeMarkdown backslash-escapes the MarkdownV2 reserved characters.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(markdownV2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

const markdownV2Reserved = "_*[]()~`>#+-=|{}.!"
