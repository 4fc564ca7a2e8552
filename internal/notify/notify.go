// Package notify delivers match events to outward channels. Telegram is
// the only sink shipped; the Bus keeps the engine unaware of how many
// there are.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feed_screener/internal/model"
)

// Sink receives match events.
type Sink interface {
	MatchFound(m model.PendingMatch)
	PendingCount(n int)
}

// Bus fans events out to every registered sink. Delivery failures stay
// inside the sink; the matching pipeline never blocks on notifications.
type Bus struct {
	sinks []Sink
}

// NewBus creates a Bus over the given sinks.
func NewBus(sinks ...Sink) *Bus {
	return &Bus{sinks: sinks}
}

// MatchFound forwards the event to all sinks.
func (b *Bus) MatchFound(m model.PendingMatch) {
	for _, s := range b.sinks {
		s.MatchFound(m)
	}
}

// PendingCount forwards the queue depth to all sinks.
func (b *Bus) PendingCount(n int) {
	for _, s := range b.sinks {
		s.PendingCount(n)
	}
}

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram pushes match notifications to a single chat.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram builds a sink from a bot token and target chat.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// MatchFound sends one message per queued match. Errors are logged and
// swallowed.
func (t *Telegram) MatchFound(m model.PendingMatch) {
	msg := tgbotapi.NewMessage(t.chatID, FormatMatch(m))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("telegram send failed", "title", m.Title, "error", err)
	}
}

// PendingCount is a no-op for Telegram; per-match messages already
// carry the signal.
func (t *Telegram) PendingCount(int) {}

// FormatMatch renders a pending match as a Telegram HTML message.
func FormatMatch(m model.PendingMatch) string {
	var b strings.Builder
	b.WriteString("<b>New match</b>\n")
	fmt.Fprintf(&b, "%s\n", escapeHTML(m.Title))
	fmt.Fprintf(&b, "Interest: %s\n", escapeHTML(m.InterestName))
	fmt.Fprintf(&b, "Source: %s\n", escapeHTML(m.SourceName))
	if m.Size != nil {
		fmt.Fprintf(&b, "Size: %s\n", formatSize(*m.Size))
	}
	fmt.Fprintf(&b, "Matched: %s", escapeHTML(m.MatchedFilter))
	return b.String()
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func formatSize(bytes int64) string {
	const (
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
