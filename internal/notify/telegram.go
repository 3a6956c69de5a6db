// Package notify sends the periodic meeting statistics digest to Telegram.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	appLog "meetlens/internal/log"
	"meetlens/internal/model"
	"meetlens/internal/stats"
)

// Digest is what a notification reports on.
type Digest struct {
	From   time.Time
	To     time.Time
	Source string
	Stats  model.Statistics
	Shares stats.ColorShares
}

// Telegram delivers digests to one chat.
type Telegram struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	loc            *time.Location
}

type Option func(*config)

type config struct {
	endpoint       string
	maxRetries     int
	retryDelayBase time.Duration
	loc            *time.Location
}

// WithAPIEndpoint overrides the Bot API endpoint format
// ("https://api.telegram.org/bot%s/%s").
func WithAPIEndpoint(endpoint string) Option {
	return func(c *config) { c.endpoint = endpoint }
}

func WithRetry(maxRetries int, delayBase time.Duration) Option {
	return func(c *config) {
		c.maxRetries = maxRetries
		c.retryDelayBase = delayBase
	}
}

// WithLocation sets the zone dates are printed in.
func WithLocation(loc *time.Location) Option {
	return func(c *config) { c.loc = loc }
}

// NewTelegram authenticates the bot (one getMe call) and parses chatID.
func NewTelegram(botToken, chatID string, opts ...Option) (*Telegram, error) {
	cfg := config{endpoint: tgbotapi.APIEndpoint, maxRetries: 3, retryDelayBase: time.Second, loc: time.Local}
	for _, o := range opts {
		o(&cfg)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(botToken, cfg.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	if cfg.maxRetries <= 0 {
		cfg.maxRetries = 3
	}
	if cfg.retryDelayBase < 0 {
		cfg.retryDelayBase = 0
	}
	if cfg.loc == nil {
		cfg.loc = time.Local
	}
	return &Telegram{
		bot:            bot,
		chatID:         id,
		maxRetries:     cfg.maxRetries,
		retryDelayBase: cfg.retryDelayBase,
		loc:            cfg.loc,
	}, nil
}

// SendDigest formats d and sends it, retrying with a linear delay.
func (t *Telegram) SendDigest(ctx context.Context, d Digest) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatDigest(d, t.loc))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.retryDelayBase * time.Duration(i)):
			}
		}
		if _, err := t.bot.Send(msg); err != nil {
			lastErr = err
			appLog.Warn("telegram send failed", "attempt", i+1, "cause", err)
			continue
		}
		appLog.Info("statistics digest sent", "chat_id", t.chatID, "total", d.Stats.Total)
		return nil
	}
	return fmt.Errorf("failed to send digest after %d retries: %w", t.maxRetries, lastErr)
}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s)
}

// FormatDigest renders d as a MarkdownV2 message.
func FormatDigest(d Digest, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	s := d.Stats

	var b strings.Builder
	b.WriteString("*Bilan des réunions*\n")
	fmt.Fprintf(&b, "%s → %s", esc(d.From.In(loc).Format("02/01/2006")), esc(d.To.In(loc).Format("02/01/2006")))
	if d.Source != "" {
		fmt.Fprintf(&b, " \\(%s\\)", esc(d.Source))
	}
	b.WriteString("\n\n")

	if s.Total == 0 {
		b.WriteString(esc("Aucune réunion sur la période."))
		return b.String()
	}

	fmt.Fprintf(&b, "Réunions : *%s*\n", esc(humanize.Comma(int64(s.Total))))
	fmt.Fprintf(&b, "Durée totale : *%s*\n", esc(formatMinutes(s.TotalDuration)))
	fmt.Fprintf(&b, "Durée moyenne : %s min\n", esc(humanize.FtoaWithDigits(s.AverageDuration, 1)))
	fmt.Fprintf(&b, "Par semaine : %s\n\n", esc(humanize.FtoaWithDigits(s.WeeklyFrequency, 1)))

	line := func(icon, label string, n int, pct float64) {
		fmt.Fprintf(&b, "%s %s : %s %s\n", icon, esc(label), esc(humanize.Comma(int64(n))),
			esc(fmt.Sprintf("(%s %%)", humanize.FtoaWithDigits(pct, 1))))
	}
	line("🔴", "No Flex", s.ByColor.Red, d.Shares.Red)
	line("🔵", "Déplacement", s.ByColor.Blue, d.Shares.Blue)
	line("🟢", "Flex", s.ByColor.Green, d.Shares.Green)
	line("⚪", "Non classé", s.ByColor.Default, d.Shares.Default)

	if len(s.BusiestDays) > 0 {
		day := s.BusiestDays[0]
		fmt.Fprintf(&b, "\nJour le plus chargé : %s \\(%d\\)", esc(day.Date), day.Count)
	}
	if len(s.BusiestHours) > 0 {
		h := s.BusiestHours[0]
		fmt.Fprintf(&b, "\nHeure la plus chargée : %dh \\(%d\\)", h.Hour, h.Count)
	}
	return b.String()
}

// formatMinutes prints 95 as "1 h 35".
func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	h, rest := m/60, m%60
	if rest == 0 {
		return humanize.Comma(int64(h)) + " h"
	}
	return fmt.Sprintf("%s h %02d", humanize.Comma(int64(h)), rest)
}
