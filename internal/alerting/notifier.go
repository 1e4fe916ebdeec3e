package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Notifier pushes alert events to an external channel. Implementations must
// tolerate concurrent calls; the engine does not serialize deliveries.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	NotifyRecovery(ctx context.Context, event Event) error
}

// telegramNotifier delivers events through the Telegram Bot API.
type telegramNotifier struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramNotifier creates a Notifier that sends messages to the given
// chat via the bot identified by token.
func NewTelegramNotifier(token, chatID string) Notifier {
	return &telegramNotifier{
		apiBase: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *telegramNotifier) Notify(ctx context.Context, event Event) error {
	text := fmt.Sprintf("%s *%s* (%s)\n%s\n_%s_",
		severityEmoji(event.Severity),
		event.RuleName,
		strings.ToUpper(string(event.Severity)),
		event.Message,
		event.FiredAt.UTC().Format("2006-01-02 15:04:05 UTC"),
	)
	return t.send(ctx, text)
}

func (t *telegramNotifier) NotifyRecovery(ctx context.Context, event Event) error {
	text := fmt.Sprintf("✅ *%s* recovered\n%s\n_%s_",
		event.RuleName,
		event.Message,
		event.FiredAt.UTC().Format("2006-01-02 15:04:05 UTC"),
	)
	return t.send(ctx, text)
}

func (t *telegramNotifier) send(ctx context.Context, text string) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshaling telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

func severityEmoji(severity Severity) string {
	switch severity {
	case SeverityCritical:
		return "\U0001f6a8"
	case SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
