// Package telegram provides a client for sending signal alerts via the
// Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/edgescout/edgescout/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

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

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a poll-cycle error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Poll cycle error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Polling recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendSignal sends an alert for a newly created signal.
func (c *Client) SendSignal(sig *models.SignalOpportunity) error {
	return c.sendMarkdownV2(formatSignal(sig))
}

// formatSignal formats one signal into a Telegram MarkdownV2 message.
// Elite signals get the loudest header; static signals the quietest.
func formatSignal(sig *models.SignalOpportunity) string {
	var b strings.Builder

	switch sig.Tier {
	case models.TierElite:
		b.WriteString("🚨 *ELITE SIGNAL*\n\n")
	case models.TierStrong:
		b.WriteString("🔥 *Strong Signal*\n\n")
	default:
		b.WriteString("📊 *Signal*\n\n")
	}

	b.WriteString(fmt.Sprintf("🏟 %s\n", escapeMarkdownV2(sig.EventTitle)))
	b.WriteString(fmt.Sprintf("🎯 *%s* \\(%s\\)\n",
		escapeMarkdownV2(sig.Outcome), escapeMarkdownV2(sig.Side)))

	fairStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", sig.FairProb*100))
	priceStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", sig.MarketPrice*100))
	netStr := escapeMarkdownV2(fmt.Sprintf("%+.2f%%", sig.NetEdge*100))
	b.WriteString(fmt.Sprintf("💰 Fair %s vs market %s, net edge *%s*\n", fairStr, priceStr, netStr))

	b.WriteString(fmt.Sprintf("📈 Trigger: %s, confidence %d\n",
		escapeMarkdownV2(string(sig.Trigger)), sig.Confidence))

	stakeStr := escapeMarkdownV2(fmt.Sprintf("%.1f%%", sig.StakeFraction*100))
	b.WriteString(fmt.Sprintf("💵 Suggested stake: %s of bankroll\n", stakeStr))

	startStr := escapeMarkdownV2(sig.StartTime.Format("2006-01-02 15:04 MST"))
	b.WriteString(fmt.Sprintf("⏰ Starts %s \\(%s urgency\\)\n", startStr, escapeMarkdownV2(string(sig.Urgency))))

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
