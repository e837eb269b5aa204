// Package telegram sends a run summary to a Telegram chat via the Bot API.
//
// Messages use MarkdownV2. Sends are throttled by a rate limiter and retried with a
// linear backoff.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/chatconv/internal/logger"
	"github.com/rewired-gh/chatconv/internal/models"
	"github.com/rewired-gh/chatconv/internal/report"
	"golang.org/x/time/rate"
)

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	limiter        *rate.Limiter
}

// NewClient creates a new Telegram client. ratePerSecond <= 0 means one message
// per second.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, ratePerSecond float64) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase, ratePerSecond)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration, ratePerSecond float64) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		limiter:        rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}, nil
}

// SendSummary posts the totals of one run.
func (c *Client) SendSummary(ctx context.Context, runID string, result models.AnalysisResult) error {
	msg := tgbotapi.NewMessage(c.chatID, formatSummary(runID, result))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram send cancelled: %w", err)
		}
		_, err := c.bot.Send(msg)
		if err == nil {
			logger.Info("Telegram summary sent for run %s", runID)
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram send cancelled: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatSummary renders the run totals as a MarkdownV2 message
func formatSummary(runID string, result models.AnalysisResult) string {
	var b strings.Builder
	g := result.Global

	b.WriteString("📊 *Chat conversion report*\n")
	if runID != "" {
		fmt.Fprintf(&b, "🆔 Run: %s\n", escapeMarkdownV2(runID))
	}
	if first, last, ok := report.Period(g.DailyStats); ok {
		fmt.Fprintf(&b, "📅 %s → %s\n", escapeMarkdownV2(first), escapeMarkdownV2(last))
	}
	b.WriteString("\n")

	cities := []struct {
		name string
		a    models.CityAnalysis
	}{
		{models.CityBucaramanga, result.Bucaramanga},
		{models.CityBogota, result.Bogota},
	}
	for _, city := range cities {
		fmt.Fprintf(&b, "🏙 *%s*\n", escapeMarkdownV2(city.name))
		fmt.Fprintf(&b, "   Chat users: %s \\(valid phones: %s\\)\n",
			count(city.a.ChatUsers), count(city.a.ValidPhones))
		fmt.Fprintf(&b, "   Conversions: %s of %s registrations\n",
			count(city.a.Conversions), count(city.a.Registrations))
		fmt.Fprintf(&b, "   Rate: *%s*\n\n", escapeMarkdownV2(report.Rate(city.a.ConversionRate)))
	}

	b.WriteString("🌎 *Total*\n")
	fmt.Fprintf(&b, "   Chat users: %s\n", count(g.TotalChatUsers))
	fmt.Fprintf(&b, "   Conversions: %s\n", count(g.TotalConversions))
	fmt.Fprintf(&b, "   Rate: *%s*\n", escapeMarkdownV2(report.Rate(g.GlobalConversionRate)))

	return b.String()
}

func count(n int) string {
	return escapeMarkdownV2(humanize.Comma(int64(n)))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
