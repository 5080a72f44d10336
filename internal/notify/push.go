package notify

import (
	"context"
	"strings"
)

// Gotify pushes to a self-hosted Gotify server.
type Gotify struct{ ServerURL, Token string }

func (g *Gotify) Name() string { return "Gotify" }
func (g *Gotify) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"title":    title,
		"message":  message,
		"priority": 5,
		"extras":   map[string]any{"client::display": map[string]string{"contentType": "text/markdown"}},
	}
	return postJSON(ctx, strings.TrimRight(g.ServerURL, "/")+"/message", payload, map[string]string{"X-Gotify-Key": g.Token})
}

// pushoverAPIURL is replaced in tests.
var pushoverAPIURL = "https://api.pushover.net/1/messages.json"

// Pushover pushes to a user's devices.
type Pushover struct{ UserKey, APIToken string }

func (p *Pushover) Name() string { return "Pushover" }
func (p *Pushover) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{"token": p.APIToken, "user": p.UserKey, "title": title, "message": message, "html": "0"}
	return postJSON(ctx, pushoverAPIURL, payload, nil)
}

// Generic posts {title, message, agent} to any URL.
type Generic struct{ WebhookURL string }

func (g *Generic) Name() string { return "GenericWebhook" }
func (g *Generic) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{"title": title, "message": message, "agent": Agent}
	return postJSON(ctx, g.WebhookURL, payload, nil)
}
