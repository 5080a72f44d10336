package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanjade/growthctl/internal/config"
	"github.com/alanjade/growthctl/internal/logging"
	"github.com/alanjade/growthctl/internal/metrics"
	"github.com/alanjade/growthctl/internal/notifications"
	"github.com/alanjade/growthctl/internal/notify"
	"github.com/alanjade/growthctl/internal/output"
	"github.com/alanjade/growthctl/internal/relay"
)

const shutdownGrace = 5 * time.Second

func newNotificationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Read and relay notifications",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/notifications"); err != nil {
				return err
			}
			unreadOnly, _ := cmd.Flags().GetBool("unread")
			var list []notifications.Notification
			var err error
			if unreadOnly {
				list, err = a.cache.FetchUnread(ctx, false)
			} else {
				list, err = a.cache.FetchAll(ctx, false)
			}
			if err != nil {
				return err
			}
			return a.renderNotifications(list)
		},
	}
	list.Flags().Bool("unread", false, "only unread notifications")

	unread := &cobra.Command{
		Use:   "unread",
		Short: "Print the number of unread notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/notifications"); err != nil {
				return err
			}
			n, err := a.cache.UnreadCount(ctx)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(map[string]int{"unread": n}); ok {
				return err
			}
			fmt.Fprintln(a.stdout, n)
			return nil
		},
	}

	read := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark one notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/notifications"); err != nil {
				return err
			}
			if err := a.cache.MarkRead(ctx, args[0]); err != nil {
				return err
			}
			a.out.Success("Marked as read")
			return nil
		},
	}

	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/notifications"); err != nil {
				return err
			}
			if err := a.cache.MarkAllRead(ctx); err != nil {
				return err
			}
			a.out.Success("All notifications marked as read")
			return nil
		},
	}

	cmd.AddCommand(list, unread, read, readAll, newWatchCmd(a))
	return cmd
}

func (a *app) renderNotifications(list []notifications.Notification) error {
	if ok, err := a.printJSON(list); ok {
		return err
	}
	if len(list) == 0 {
		a.out.Info("No notifications")
		return nil
	}
	t := a.out.Table("ID", "", "DATE", "MESSAGE")
	for _, n := range list {
		status := "read"
		if !n.Read() {
			status = "unread"
		}
		text := n.Text()
		if n.Data.Title != "" {
			text = n.Data.Title + ": " + text
		}
		t.AddRow(n.ID.String(), a.out.Badge(status), n.CreatedAt, text)
	}
	return t.Render()
}

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Relay new notifications to the configured push targets",
		Long: `watch polls the unread notifications and forwards new ones to every
configured target (Slack, Discord, Telegram, Gotify, Pushover, a generic
webhook, SMTP or Resend e-mail). They are always printed here too.

It keeps running across logins: when the session expires it waits until
'growthctl login' stores a new token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := a.relayOptions(cmd)
			if err != nil {
				return err
			}
			targets := notify.FromTargets(targetsFromConfig(a.cfg))
			if targets.Len() == 0 {
				a.out.Warning("no push targets configured; notifications are only printed")
			} else {
				a.out.Info("Relaying to %v", targets.Names())
			}
			if _, err := a.sess.Initialize(ctx, "/notifications"); err != nil && !errors.Is(err, context.Canceled) {
				logging.Get().Debug().Err(err).Msg("no session yet")
			}
			r := relay.New(opts, a.cache, &consoleSender{out: a.out, next: targets}, a.sess)

			if once, _ := cmd.Flags().GetBool("once"); once {
				n, err := r.RunOnce(ctx)
				if err != nil {
					return err
				}
				a.out.Info("%d notifications relayed", n)
				return nil
			}

			stopMetrics := a.startMetrics(ctx)
			defer stopMetrics()

			go r.Start()
			<-ctx.Done()
			logging.Get().Info().Msg("shutdown signal received, waiting for the active relay pass")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			r.Stop(shutdownCtx)
			return nil
		},
	}
	cmd.Flags().Duration("interval", 0, "poll interval (default relay_interval)")
	cmd.Flags().Bool("backlog", false, "also relay notifications already unread at start")
	cmd.Flags().String("level", "", "notification level: all or none")
	cmd.Flags().Bool("once", false, "run a single pass and exit")
	return cmd
}

func (a *app) relayOptions(cmd *cobra.Command) (relay.Options, error) {
	opts := relay.Options{
		Interval:         a.cfg.RelayInterval,
		Level:            a.cfg.NotificationLevel,
		Backlog:          a.cfg.RelayBacklog,
		FailureThreshold: a.cfg.FailureAlertThreshold,
		FailureCooldown:  a.cfg.FailureAlertCooldown,
	}
	if cmd.Flags().Changed("interval") {
		opts.Interval, _ = cmd.Flags().GetDuration("interval")
	}
	if cmd.Flags().Changed("backlog") {
		opts.Backlog, _ = cmd.Flags().GetBool("backlog")
	}
	if cmd.Flags().Changed("level") {
		opts.Level, _ = cmd.Flags().GetString("level")
	}
	switch opts.Level {
	case "", relay.LevelAll, relay.LevelNone:
		return opts, nil
	}
	return opts, &output.CLIError{
		Summary:  fmt.Sprintf("invalid notification level %q", opts.Level),
		Detail:   "use all or none",
		ExitCode: output.ExitUsageError,
	}
}

// startMetrics serves /metrics and /status and pushes to InfluxDB when
// configured. The returned func shuts both down.
func (a *app) startMetrics(ctx context.Context) func() {
	pushCtx, cancelPush := context.WithCancel(ctx)
	if a.cfg.InfluxURL != "" {
		go metrics.StartInfluxPusher(pushCtx, a.cfg.InfluxURL, a.cfg.InfluxToken, a.cfg.InfluxOrg, a.cfg.InfluxBucket, a.cfg.InfluxInterval)
	}
	if !a.cfg.MetricsEnabled {
		return cancelPush
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.MetricsPort),
		Handler:           metrics.NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Get().Info().Str("addr", srv.Addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Get().Error().Err(err).Msg("metrics server failed")
		}
	}()
	return func() {
		cancelPush()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func targetsFromConfig(cfg *config.Config) notify.Targets {
	return notify.Targets{
		SlackWebhook:      cfg.SlackWebhook,
		DiscordWebhook:    cfg.DiscordWebhook,
		TelegramToken:     cfg.TelegramToken,
		TelegramChatID:    cfg.TelegramChatID,
		GenericWebhookURL: cfg.GenericWebhookURL,
		GotifyURL:         cfg.GotifyURL,
		GotifyToken:       cfg.GotifyToken,
		PushoverUser:      cfg.PushoverUser,
		PushoverToken:     cfg.PushoverToken,
		EmailHost:         cfg.EmailHost,
		EmailPort:         cfg.EmailPort,
		EmailUser:         cfg.EmailUser,
		EmailPass:         cfg.EmailPass,
		EmailTo:           cfg.EmailTo,
		ResendAPIKey:      cfg.ResendAPIKey,
		ResendFrom:        cfg.ResendFrom,
		ResendTo:          cfg.ResendTo,
	}
}

// consoleSender prints every relayed digest and forwards it to the push
// targets. Without targets the console counts as the delivery.
type consoleSender struct {
	out  *output.Printer
	next *notify.MultiNotifier
}

func (c *consoleSender) Deliver(ctx context.Context, title, message string) (int, error) {
	c.out.Header(title)
	c.out.Print("%s", message)
	if c.next.Len() == 0 {
		return 1, nil
	}
	return c.next.Deliver(ctx, title, message)
}
