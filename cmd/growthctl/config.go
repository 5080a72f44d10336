package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alanjade/growthctl/internal/config"
	"github.com/alanjade/growthctl/internal/state"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			masked := redact(*a.cfg)
			if ok, err := a.printJSON(masked); ok {
				return err
			}
			path, _ := configPath(cmd)
			a.out.Print("# config file: %s", path)
			if fs, ok := a.store.(*state.FileStore); ok {
				a.out.Print("# state file:  %s", fs.Path())
			}
			for _, w := range a.cfg.Validate() {
				a.out.Warning("%s", w)
			}
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(masked)
		},
	}
}

// redact blanks credentials so the output can be shared.
func redact(c config.Config) config.Config {
	for _, s := range []*string{
		&c.TelegramToken, &c.GotifyToken, &c.PushoverToken, &c.EmailPass,
		&c.ResendAPIKey, &c.InfluxToken, &c.SlackWebhook, &c.DiscordWebhook,
	} {
		if *s != "" {
			*s = "********"
		}
	}
	return c
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func itoa(n int) string { return strconv.Itoa(n) }
