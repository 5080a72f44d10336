package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanjade/growthctl/internal/account"
	"github.com/alanjade/growthctl/internal/output"
)

func newPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset or change your password",
	}

	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "E-mail a password reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.value(cmd, "email", "Email")
			if err != nil {
				return err
			}
			msg, err := a.account.RequestResetCode(cmd.Context(), email)
			if err != nil {
				return err
			}
			a.done("password forgot", msg)
			return nil
		},
	}
	forgot.Flags().String("email", "", "account e-mail")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check the reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			code, err := a.value(cmd, "code", "Reset code")
			if err != nil {
				return err
			}
			msg, err := a.account.VerifyResetCode(cmd.Context(), email, code)
			if err != nil {
				return err
			}
			a.done("password verify", msg)
			return nil
		},
	}
	verify.Flags().String("email", "", "account e-mail (default: the one from 'password forgot')")
	verify.Flags().String("code", "", "6-digit code from the e-mail")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Choose a new password after verifying the code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, confirm, err := a.newSecret(cmd, "password", "New password")
			if err != nil {
				return err
			}
			msg, err := a.account.ResetPassword(cmd.Context(), pw, confirm)
			if err != nil {
				return passwordError(err, pw)
			}
			a.out.Success("%s", msg)
			a.out.Info("Sign in with 'growthctl login'")
			return nil
		},
	}
	addSecretFlags(reset, "password")

	change := &cobra.Command{
		Use:   "change",
		Short: "Change the password of the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/settings"); err != nil {
				return err
			}
			current, err := a.value(cmd, "current", "Current password")
			if err != nil {
				return err
			}
			pw, confirm, err := a.newSecret(cmd, "password", "New password")
			if err != nil {
				return err
			}
			msg, err := a.account.ChangePassword(ctx, current, pw, confirm)
			if err != nil {
				return passwordError(err, pw)
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	change.Flags().String("current", "", "current password")
	addSecretFlags(change, "password")

	cmd.AddCommand(forgot, verify, reset, change)
	return cmd
}

func newPinCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage the 4-digit transaction PIN",
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Create your transaction PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/settings"); err != nil {
				return err
			}
			pin, confirm, err := a.newSecret(cmd, "pin", "New PIN")
			if err != nil {
				return err
			}
			msg, err := a.account.SetPin(ctx, pin, confirm)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	addSecretFlags(set, "pin")

	update := &cobra.Command{
		Use:   "update",
		Short: "Replace your transaction PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/settings"); err != nil {
				return err
			}
			old, err := a.value(cmd, "old", "Current PIN")
			if err != nil {
				return err
			}
			pin, confirm, err := a.newSecret(cmd, "pin", "New PIN")
			if err != nil {
				return err
			}
			msg, err := a.account.UpdatePin(ctx, old, pin, confirm)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	update.Flags().String("old", "", "current PIN")
	addSecretFlags(update, "pin")

	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "E-mail a PIN reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			email, err := a.accountEmail(ctx, cmd)
			if err != nil {
				return err
			}
			msg, err := a.account.ForgotPin(ctx, email)
			if err != nil {
				return err
			}
			a.done("pin forgot", msg)
			return nil
		},
	}
	forgot.Flags().String("email", "", "account e-mail (default: the signed-in user)")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check a PIN reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			email, err := a.accountEmail(ctx, cmd)
			if err != nil {
				return err
			}
			code, err := a.value(cmd, "code", "Reset code")
			if err != nil {
				return err
			}
			msg, err := a.account.VerifyPinCode(ctx, email, code)
			if err != nil {
				return err
			}
			a.done("pin verify", msg)
			return nil
		},
	}
	verify.Flags().String("email", "", "account e-mail (default: the signed-in user)")
	verify.Flags().String("code", "", "code from the e-mail")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new PIN with a verified reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			email, err := a.accountEmail(ctx, cmd)
			if err != nil {
				return err
			}
			code, err := a.value(cmd, "code", "Reset code")
			if err != nil {
				return err
			}
			pin, confirm, err := a.newSecret(cmd, "pin", "New PIN")
			if err != nil {
				return err
			}
			msg, err := a.account.ResetPin(ctx, email, code, pin, confirm)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	reset.Flags().String("email", "", "account e-mail (default: the signed-in user)")
	reset.Flags().String("code", "", "code from the e-mail")
	addSecretFlags(reset, "pin")

	cmd.AddCommand(set, update, forgot, verify, reset)
	return cmd
}

// accountEmail is the --email flag, or the signed-in user's address.
func (a *app) accountEmail(ctx context.Context, cmd *cobra.Command) (string, error) {
	if email, _ := cmd.Flags().GetString("email"); email != "" {
		return email, nil
	}
	if st, err := a.sess.Initialize(ctx, ""); err == nil && st.Authenticated() {
		return st.User.Email, nil
	}
	return a.prompt("Email")
}

// addSecretFlags registers --<name> and --<name>-confirmation.
func addSecretFlags(cmd *cobra.Command, name string) {
	cmd.Flags().String(name, "", "new "+name)
	cmd.Flags().String(name+"-confirmation", "", "new "+name+" again")
}

// newSecret reads a new secret and its confirmation.
func (a *app) newSecret(cmd *cobra.Command, name, label string) (string, string, error) {
	secret, err := a.value(cmd, name, label)
	if err != nil {
		return "", "", err
	}
	confirm, err := a.value(cmd, name+"-confirmation", "Confirm "+strings.ToLower(label))
	if err != nil {
		return "", "", err
	}
	return secret, confirm, nil
}

func newBankCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage the payout bank account",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List supported banks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/settings"); err != nil {
				return err
			}
			banks, err := a.account.Banks(ctx)
			if err != nil {
				return err
			}
			filter, _ := cmd.Flags().GetString("search")
			filter = strings.ToLower(filter)
			var shown []account.Bank
			for _, b := range banks {
				if filter == "" || strings.Contains(strings.ToLower(b.Name), filter) {
					shown = append(shown, b)
				}
			}
			if ok, err := a.printJSON(shown); ok {
				return err
			}
			t := a.out.Table("CODE", "BANK")
			for _, b := range shown {
				t.AddRow(b.Code, b.Name)
			}
			return t.Render()
		},
	}
	list.Flags().String("search", "", "only banks whose name contains this")

	resolve := &cobra.Command{
		Use:   "resolve <account-number>",
		Short: "Look up the holder of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/settings"); err != nil {
				return err
			}
			code, _ := cmd.Flags().GetString("bank")
			name, err := a.account.ResolveAccount(ctx, args[0], code)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(map[string]string{"account_number": args[0], "account_name": name}); ok {
				return err
			}
			fmt.Fprintln(a.stdout, name)
			a.out.PrintHints("bank resolve")
			return nil
		},
	}
	resolve.Flags().String("bank", "", "bank code (see 'growthctl bank list')")
	_ = resolve.MarkFlagRequired("bank")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the saved payout account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/settings"); err != nil {
				return err
			}
			d, err := a.account.CurrentBankDetails(ctx)
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(d); ok {
				return err
			}
			if !d.Complete() {
				a.out.Info("No bank account saved yet")
				return nil
			}
			a.out.Header("Payout account")
			a.out.Field("Bank", d.BankName)
			a.out.Field("Account number", d.AccountNumber)
			a.out.Field("Account name", d.AccountName)
			return nil
		},
	}

	update := &cobra.Command{
		Use:   "update <account-number>",
		Short: "Verify and save a payout account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.requireLogin(ctx, "/settings"); err != nil {
				return err
			}
			code, _ := cmd.Flags().GetString("bank")
			banks, err := a.account.Banks(ctx)
			if err != nil {
				return err
			}
			bank, ok := account.FindBank(banks, code)
			if !ok {
				return &output.CLIError{
					Summary:    fmt.Sprintf("unknown bank code %q", code),
					Suggestion: "Run 'growthctl bank list' to see bank codes",
					ExitCode:   output.ExitUsageError,
				}
			}
			name, err := a.account.ResolveAccount(ctx, args[0], bank.Code)
			if err != nil {
				return err
			}
			msg, err := a.account.UpdateBankDetails(ctx, account.BankDetails{
				BankName:      bank.Name,
				AccountNumber: args[0],
				AccountName:   name,
			})
			if err != nil {
				return err
			}
			a.out.Success("%s (%s)", msg, name)
			return nil
		},
	}
	update.Flags().String("bank", "", "bank code (see 'growthctl bank list')")
	_ = update.MarkFlagRequired("bank")

	cmd.AddCommand(list, resolve, show, update)
	return cmd
}

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the preferred theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{account.ThemeLight, account.ThemeDark},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(a.stdout, a.account.Theme())
				return nil
			}
			if err := a.account.SetTheme(args[0]); err != nil {
				return &output.CLIError{Summary: err.Error(), ExitCode: output.ExitUsageError, Err: err}
			}
			a.out.Success("Theme set to %s", a.account.Theme())
			return nil
		},
	}
}
