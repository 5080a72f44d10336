package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alanjade/growthctl/internal/account"
	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/config"
	"github.com/alanjade/growthctl/internal/logging"
	"github.com/alanjade/growthctl/internal/market"
	"github.com/alanjade/growthctl/internal/notifications"
	"github.com/alanjade/growthctl/internal/output"
	"github.com/alanjade/growthctl/internal/session"
	"github.com/alanjade/growthctl/internal/state"
)

// noSetup marks commands that run without config, store or API client.
const noSetup = "no-setup"

// app carries everything a command needs. It is filled in by setup before
// any command that needs it runs.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	reader *bufio.Reader
	v      *viper.Viper

	cfg     *config.Config
	out     *output.Printer
	store   state.Store
	client  *api.Client
	sess    *session.Manager
	cache   *notifications.Cache
	market  *market.Service
	account *account.Service

	jsonOut bool
	cleanup func()
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, v: viper.New()}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return output.ExitSuccess
	}
	p := a.out
	if p == nil {
		p = output.NewPrinter(output.PrinterOptions{ColorMode: output.ColorNever, Out: stdout, Err: stderr})
	}
	cliErr := output.FromError(err)
	if api.IsCanceled(err) {
		cliErr = &output.CLIError{Summary: "interrupted", ExitCode: output.ExitGeneral, Err: err}
	}
	p.FormatError(cliErr)
	return cliErr.ExitCode
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "growthctl",
		Short: "Invest in land units from the command line",
		Long: `growthctl is a client for the land-investment marketplace.

It keeps you signed in between commands, lets you browse and trade land
units, manage your wallet, PIN and bank details, and can relay new
notifications to chat and push services.

Example usage:
  growthctl login --email you@example.com
  growthctl lands list
  growthctl lands buy 12 --units 5
  growthctl wallet balance
  growthctl notifications watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[noSetup] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is <state dir>/config.yaml)")
	pf.String("env-file", ".env", "dotenv file loaded before the environment is read")
	pf.String("api-url", "", "marketplace API origin (overrides api_base_url)")
	pf.Duration("timeout", 0, "per-request timeout, 0 for none")
	pf.String("state-backend", "", "where the session is kept: file or memory")
	pf.String("color", "", "color output: auto, always or never")
	pf.BoolP("quiet", "q", false, "only print errors and requested data")
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.String("log-file", "", "also append logs to this file")
	pf.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	_ = a.v.BindPFlag("api_base_url", pf.Lookup("api-url"))
	_ = a.v.BindPFlag("request_timeout", pf.Lookup("timeout"))
	_ = a.v.BindPFlag("state_backend", pf.Lookup("state-backend"))
	_ = a.v.BindPFlag("color", pf.Lookup("color"))
	_ = a.v.BindPFlag("quiet", pf.Lookup("quiet"))
	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("log_file", pf.Lookup("log-file"))
	a.v.SetEnvPrefix("GROWTH")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newRegisterCmd(a),
		newVerifyEmailCmd(a),
		newResendVerificationCmd(a),
		newPasswordCmd(a),
		newPinCmd(a),
		newBankCmd(a),
		newThemeCmd(a),
		newLandsCmd(a),
		newWalletCmd(a),
		newPortfolioCmd(a),
		newDashboardCmd(a),
		newNotificationsCmd(a),
		newAdminCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration (defaults, file, .env and environment, then
// flags) and wires the services.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return &output.CLIError{Summary: "invalid configuration", Detail: err.Error(), ExitCode: output.ExitConfigError, Err: err}
	}
	a.cfg = cfg

	level := os.Getenv("GROWTH_LOG_LEVEL")
	if a.v.GetBool("verbose") {
		level = "debug"
	}
	logFile := a.v.GetString("log_file")
	if logFile == "" {
		logFile = os.Getenv("GROWTH_LOG_FILE")
	}
	cleanup, err := logging.Init(logFile, level)
	if err != nil {
		return &output.CLIError{Summary: "failed to initialize logger", Detail: err.Error(), ExitCode: output.ExitConfigError, Err: err}
	}
	a.cleanup = cleanup

	mode, err := output.ParseColorMode(cfg.Color)
	if err != nil {
		return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError, Err: err}
	}
	a.out = output.NewPrinter(output.PrinterOptions{
		ColorMode:    mode,
		ConfigColors: cfg.Colors,
		Quiet:        a.v.GetBool("quiet") || a.jsonOut,
		Out:          a.stdout,
		Err:          a.stderr,
	})
	for _, w := range cfg.Validate() {
		logging.Get().Warn().Msg(w)
	}

	if cfg.StateBackend == "memory" {
		a.store = state.NewMemoryStore()
	} else {
		a.store = state.NewFileStore(cfg.StateDir)
	}
	a.client = api.New(cfg.APIURL(),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.RequestsPerSecond, cfg.RequestBurst),
	)
	a.cache = notifications.NewCache(a.client)
	a.sess = session.New(a.client, a.store,
		session.WithNotifier(a.out),
		session.WithCache(a.cache),
		session.WithPaths(cfg.LoginPath, cfg.DashboardPath),
	)
	a.sess.Arm(a.out.Navigator(a.sess.LoginPath()))
	a.market = market.New(a.client)
	a.account = account.New(a.client, a.store)

	logging.Get().Debug().Str("api", cfg.APIURL()).Str("state_backend", cfg.StateBackend).Str("command", cmd.CommandPath()).Msg("configuration loaded")
	return nil
}

func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		// a missing .env is normal
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := config.DefaultConfig()
	path, explicit := configPath(cmd)
	if path != "" {
		c, err := config.LoadConfigFromFile(path)
		switch {
		case err == nil:
			cfg = c
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// flags win over file and environment
	if a.v.IsSet("api_base_url") && a.v.GetString("api_base_url") != "" {
		cfg.APIBaseURL = a.v.GetString("api_base_url")
	}
	if cmd.Flags().Changed("timeout") {
		cfg.RequestTimeout = a.v.GetDuration("request_timeout")
	}
	if b := a.v.GetString("state_backend"); b != "" && cmd.Flags().Changed("state-backend") {
		cfg.StateBackend = b
	}
	if c := a.v.GetString("color"); c != "" {
		cfg.Color = c
	}
	return cfg, nil
}

// configPath returns the config file to read and whether the user named it.
func configPath(cmd *cobra.Command) (string, bool) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, true
	}
	if p := os.Getenv("GROWTH_CONFIG"); p != "" {
		return p, true
	}
	return filepath.Join(state.DefaultDir(), "config.yaml"), false
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// requireLogin resolves the stored session and guards path.
func (a *app) requireLogin(ctx context.Context, path string) error {
	if _, err := a.sess.Initialize(ctx, path); err != nil {
		return err
	}
	return a.sess.Require(path)
}

// requireAdmin resolves the stored session and guards an admin path.
func (a *app) requireAdmin(ctx context.Context, path string) error {
	if _, err := a.sess.Initialize(ctx, path); err != nil {
		return err
	}
	return a.sess.RequireAdmin(path)
}

// printJSON writes v to stdout when --json is set and reports whether it did.
func (a *app) printJSON(v any) (bool, error) {
	if !a.jsonOut {
		return false, nil
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

// done prints a server confirmation and the follow-up hints for command.
func (a *app) done(command, message string) {
	a.out.Success("%s", message)
	a.out.PrintHints(command)
}
