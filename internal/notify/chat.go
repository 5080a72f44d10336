package notify

import (
	"context"
	"fmt"
	"time"
)

// discordColor is the embed accent, green for money movements.
const discordColor = 0x2E7D32

// Slack posts to an incoming webhook.
type Slack struct {
	WebhookURL string
}

func (s *Slack) Name() string { return "Slack" }
func (s *Slack) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{"text": fmt.Sprintf("*%s*\n%s", title, message)}
	return postJSON(ctx, s.WebhookURL, payload, nil)
}

// Discord posts a single embed to a channel webhook.
type Discord struct {
	WebhookURL string
}

func (d *Discord) Name() string { return "Discord" }
func (d *Discord) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"username": Agent,
		"embeds": []map[string]any{{
			"title":       title,
			"description": message,
			"color":       discordColor,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	return postJSON(ctx, d.WebhookURL, payload, nil)
}

// telegramAPIBase is replaced in tests.
var telegramAPIBase = "https://api.telegram.org"

// Telegram sends through a bot to one chat.
type Telegram struct{ BotToken, ChatID string }

func (t *Telegram) Name() string { return "Telegram" }
func (t *Telegram) Send(ctx context.Context, title, message string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.BotToken)
	payload := map[string]string{"chat_id": t.ChatID, "text": fmt.Sprintf("<b>%s</b>\n%s", title, message), "parse_mode": "HTML"}
	return postJSON(ctx, apiURL, payload, nil)
}
