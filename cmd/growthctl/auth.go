package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanjade/growthctl/internal/account"
	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/market"
	"github.com/alanjade/growthctl/internal/output"
)

func newLoginCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := a.value(cmd, "email", "Email")
			if err != nil {
				return err
			}
			password, err := a.value(cmd, "password", "Password")
			if err != nil {
				return err
			}
			a.sess.Visit(a.sess.LoginPath())
			if _, err := a.sess.Login(cmd.Context(), account.NormalizeEmail(email), password); err != nil {
				return &output.CLIError{
					Summary:  api.Message(err, "Login failed. Please check your credentials."),
					ExitCode: output.ExitAuthError,
					Err:      err,
				}
			}
			a.out.PrintHints("login")
			return nil
		},
	}
	cmd.Flags().String("email", "", "account e-mail")
	cmd.Flags().String("password", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the token and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// attach the stored token so the server can revoke it
			if _, err := a.sess.Initialize(cmd.Context(), ""); api.IsCanceled(err) {
				return err
			}
			a.sess.Logout(cmd.Context())
			return nil
		},
	}
}

type statusView struct {
	LoggedIn       bool       `json:"logged_in"`
	User           *api.User  `json:"user,omitempty"`
	TokenKind      string     `json:"token_kind,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	Unread         int        `json:"unread_notifications"`
	API            string     `json:"api"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Show who is signed in",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.sess.Initialize(ctx, "")
			if err != nil && api.IsCanceled(err) {
				return err
			}
			view := statusView{LoggedIn: st.Authenticated(), User: st.User, API: a.cfg.APIURL()}
			if view.LoggedIn {
				info := a.sess.TokenInfo()
				view.TokenKind = "jwt"
				if info.Opaque {
					view.TokenKind = "opaque"
				}
				if !info.ExpiresAt.IsZero() {
					exp := info.ExpiresAt
					view.TokenExpiresAt = &exp
				}
				n, err := a.cache.UnreadCount(ctx)
				if err != nil {
					return err
				}
				view.Unread = n
			}
			if ok, err := a.printJSON(view); ok {
				return err
			}
			if !view.LoggedIn {
				a.out.Info("Not logged in (%s)", view.API)
				return nil
			}
			u := view.User
			a.out.Header("Signed in")
			a.out.Field("Name", u.Name)
			a.out.Field("Email", u.Email)
			a.out.Field("Balance", market.FormatNaira(u.BalanceKobo))
			a.out.Field("Transaction PIN", yesNo(u.HasPin()))
			if u.Admin() {
				a.out.Field("Role", "admin")
			}
			a.out.Field("Token", view.TokenKind)
			if view.TokenExpiresAt != nil {
				a.out.Field("Expires", view.TokenExpiresAt.Local().Format(time.RFC1123))
			}
			a.out.Field("Unread", a.out.Bold(itoa(view.Unread)))
			return nil
		},
	}
}

func newRegisterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in account.RegisterInput
			var err error
			if in.Name, err = a.value(cmd, "name", "Full name"); err != nil {
				return err
			}
			if in.Email, err = a.value(cmd, "email", "Email"); err != nil {
				return err
			}
			if in.Password, err = a.value(cmd, "password", "Password"); err != nil {
				return err
			}
			if in.PasswordConfirmation, err = a.value(cmd, "password-confirmation", "Confirm password"); err != nil {
				return err
			}
			msg, err := a.account.Register(cmd.Context(), in)
			if err != nil {
				return passwordError(err, in.Password)
			}
			a.done("register", msg)
			return nil
		},
	}
	cmd.Flags().String("name", "", "full name")
	cmd.Flags().String("email", "", "e-mail address")
	cmd.Flags().String("password", "", "password")
	cmd.Flags().String("password-confirmation", "", "password again")
	return cmd
}

// passwordError turns a weak password into a CLIError listing the unmet rules.
func passwordError(err error, password string) error {
	var weak *account.WeakPasswordError
	if !errors.As(err, &weak) {
		return err
	}
	return &output.CLIError{
		Summary:    "Password strength: " + account.Strength(password),
		Detail:     weak.Error(),
		Suggestion: "Use at least 8 characters with upper and lower case letters, a number and one of !@#$%^&*",
		ExitCode:   output.ExitUsageError,
		Err:        err,
	}
}

func newVerifyEmailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Confirm your e-mail with the 6-digit code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			code, err := a.value(cmd, "code", "Verification code")
			if err != nil {
				return err
			}
			msg, err := a.account.VerifyEmail(cmd.Context(), email, code)
			if err != nil {
				return err
			}
			a.done("verify-email", msg)
			return nil
		},
	}
	cmd.Flags().String("email", "", "address to verify (default: the one just registered)")
	cmd.Flags().String("code", "", "6-digit code from the e-mail")
	return cmd
}

func newResendVerificationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resend-verification",
		Short: "Send a new verification code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			msg, err := a.account.ResendVerification(cmd.Context(), email)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	cmd.Flags().String("email", "", "address to verify (default: the one just registered)")
	return cmd
}
