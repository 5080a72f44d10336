package notify

// Targets holds provider credentials. A provider is enabled only when all of
// its required fields are set.
type Targets struct {
	SlackWebhook      string
	DiscordWebhook    string
	TelegramToken     string
	TelegramChatID    string
	GenericWebhookURL string
	GotifyURL         string
	GotifyToken       string
	PushoverUser      string
	PushoverToken     string

	EmailHost string
	EmailPort int
	EmailUser string
	EmailPass string
	EmailTo   []string

	ResendAPIKey string
	ResendFrom   string
	ResendTo     []string
}

// FromTargets builds a notifier with every fully configured provider.
func FromTargets(t Targets) *MultiNotifier {
	m := NewMultiNotifier()
	providers := []struct {
		enabled bool
		build   func() Service
	}{
		{t.SlackWebhook != "", func() Service { return &Slack{WebhookURL: t.SlackWebhook} }},
		{t.DiscordWebhook != "", func() Service { return &Discord{WebhookURL: t.DiscordWebhook} }},
		{t.TelegramToken != "" && t.TelegramChatID != "", func() Service { return &Telegram{BotToken: t.TelegramToken, ChatID: t.TelegramChatID} }},
		{t.GenericWebhookURL != "", func() Service { return &Generic{WebhookURL: t.GenericWebhookURL} }},
		{t.GotifyURL != "" && t.GotifyToken != "", func() Service { return &Gotify{ServerURL: t.GotifyURL, Token: t.GotifyToken} }},
		{t.PushoverUser != "" && t.PushoverToken != "", func() Service { return &Pushover{UserKey: t.PushoverUser, APIToken: t.PushoverToken} }},
		{t.EmailHost != "" && len(t.EmailTo) > 0, func() Service {
			return &Email{Host: t.EmailHost, Port: t.EmailPort, User: t.EmailUser, Pass: t.EmailPass, To: t.EmailTo}
		}},
		{t.ResendAPIKey != "" && t.ResendFrom != "" && len(t.ResendTo) > 0, func() Service { return NewResend(t.ResendAPIKey, t.ResendFrom, t.ResendTo) }},
	}
	for _, p := range providers {
		if p.enabled {
			m.Add(p.build())
		}
	}
	return m
}
