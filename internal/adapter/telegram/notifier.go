// Package telegram delivers dust-risk tier-change alerts through the Telegram
// Bot API. Delivery retries with a linear backoff because Telegram rate-limits
// bots under load.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/couchcryptid/dustcast-service/internal/config"
	"github.com/couchcryptid/dustcast-service/internal/domain"
)

const defaultMaxRetries = 3

// Notifier sends risk tier-change alerts to one chat.
// It implements pipeline.Notifier.
type Notifier struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	locationName   string
	maxRetries     int
	retryDelayBase time.Duration
}

// NewNotifier creates a Telegram notifier from config. It fails if the token
// is rejected by the Bot API or the chat ID is not numeric.
func NewNotifier(cfg config.TelegramConfig, locationName string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}
	return &Notifier{
		bot:            bot,
		chatID:         chatID,
		locationName:   locationName,
		maxRetries:     defaultMaxRetries,
		retryDelayBase: time.Second,
	}, nil
}

// NotifyLevelChange sends one alert describing the tier transition.
func (n *Notifier) NotifyLevelChange(ctx context.Context, previous, current domain.RiskAssessment) error {
	msg := tgbotapi.NewMessage(n.chatID, formatAlert(n.locationName, previous, current))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		_, err := n.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("send alert after %d retries: %w", n.maxRetries, lastErr)
}

// formatAlert renders the tier transition as a MarkdownV2 message.
func formatAlert(location string, previous, current domain.RiskAssessment) string {
	emoji := levelEmoji(current.RiskLevel)

	var b strings.Builder
	fmt.Fprintf(&b, "%s *Dust Risk %s*\n\n", emoji, escapeMarkdownV2(strings.ToUpper(string(current.RiskLevel))))
	fmt.Fprintf(&b, "📍 %s\n", escapeMarkdownV2(location))
	fmt.Fprintf(&b, "Level: %s → %s\n",
		escapeMarkdownV2(string(previous.RiskLevel)), escapeMarkdownV2(string(current.RiskLevel)))
	fmt.Fprintf(&b, "Score: *%s* \\(was %s\\)\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f", current.RiskScore)),
		escapeMarkdownV2(fmt.Sprintf("%.2f", previous.RiskScore)))

	if len(current.TriggeredFactors) > 0 {
		fmt.Fprintf(&b, "Drivers: %s\n", escapeMarkdownV2(strings.Join(current.TriggeredFactors, ", ")))
	}
	fmt.Fprintf(&b, "Observed: %s\n",
		escapeMarkdownV2(current.Timestamp.UTC().Format("2006-01-02 15:04 MST")))
	return b.String()
}

func levelEmoji(level domain.RiskLevel) string {
	switch level {
	case domain.RiskHigh:
		return "🔴"
	case domain.RiskModerate:
		return "🟡"
	default:
		return "🟢"
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
