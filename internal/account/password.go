package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/alanjade/growthctl/internal/state"
)

// MinPasswordLength applies to every new password.
const MinPasswordLength = 8

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	ErrNotVerified      = errors.New("please complete the verification process first")
)

// PasswordCheck is one rule of the strength meter.
type PasswordCheck struct {
	Label   string
	pattern *regexp.Regexp
}

func (c PasswordCheck) Passes(pw string) bool { return c.pattern.MatchString(pw) }

// PasswordChecks are the strength rules shown at sign-up, in display order.
var PasswordChecks = []PasswordCheck{
	{Label: "At least 8 characters", pattern: regexp.MustCompile(`.{8,}`)},
	{Label: "One uppercase letter", pattern: regexp.MustCompile(`[A-Z]`)},
	{Label: "One lowercase letter", pattern: regexp.MustCompile(`[a-z]`)},
	{Label: "One number", pattern: regexp.MustCompile(`\d`)},
	{Label: "One special character (!@#$%^&*)", pattern: regexp.MustCompile(`[!@#$%^&*]`)},
}

var strengthLabels = []string{"Too weak", "Weak", "Fair", "Good", "Strong"}

// FailedChecks returns the labels of the rules pw does not meet.
func FailedChecks(pw string) []string {
	var failed []string
	for _, c := range PasswordChecks {
		if !c.Passes(pw) {
			failed = append(failed, c.Label)
		}
	}
	return failed
}

// Strength maps the number of rules met to a label.
func Strength(pw string) string {
	passed := len(PasswordChecks) - len(FailedChecks(pw))
	if passed == 0 {
		return strengthLabels[0]
	}
	return strengthLabels[passed-1]
}

// WeakPasswordError lists the unmet rules.
type WeakPasswordError struct {
	Failed []string
}

func (e *WeakPasswordError) Error() string {
	return "password is too weak: missing " + strings.Join(e.Failed, ", ")
}

func checkNewPassword(pw, confirmation string) error {
	if pw != confirmation {
		return ErrPasswordMismatch
	}
	if len(pw) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// RequestResetCode mails a reset code and remembers the address for the
// following steps.
func (s *Service) RequestResetCode(ctx context.Context, email string) (string, error) {
	if email = NormalizeEmail(email); email == "" {
		return "", ErrEmailRequired
	}
	msg, err := s.post(ctx, "/password/reset/code", map[string]string{"email": email}, "Reset code sent to your email.")
	if err != nil {
		return "", fmt.Errorf("request reset code: %w", err)
	}
	if err := s.store.Set(state.KeyResetEmail, email); err != nil {
		return msg, fmt.Errorf("remember reset email: %w", err)
	}
	return msg, nil
}

// VerifyResetCode checks the emailed code and marks the flow verified. An
// empty email falls back to the remembered one.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	if email = NormalizeEmail(email); email == "" {
		email = state.GetString(s.store, state.KeyResetEmail)
	}
	if email == "" {
		return "", ErrEmailRequired
	}
	if err := validCode(code); err != nil {
		return "", err
	}
	body := map[string]string{"email": email, "reset_code": strings.TrimSpace(code)}
	msg, err := s.post(ctx, "/password/reset/verify", body, "Verification successful!")
	if err != nil {
		return "", fmt.Errorf("verify reset code: %w", err)
	}
	if err := s.store.Set(state.KeyResetEmail, email); err != nil {
		return msg, err
	}
	if err := s.store.Set(state.KeyOTPVerified, "true"); err != nil {
		return msg, err
	}
	return msg, nil
}

// ResetPassword finishes the reset flow. It refuses to run before
// VerifyResetCode succeeded and clears the flow keys afterwards.
func (s *Service) ResetPassword(ctx context.Context, password, confirmation string) (string, error) {
	email := state.GetString(s.store, state.KeyResetEmail)
	if email == "" || state.GetString(s.store, state.KeyOTPVerified) != "true" {
		return "", ErrNotVerified
	}
	if err := checkNewPassword(password, confirmation); err != nil {
		return "", err
	}
	body := map[string]string{"email": email, "password": password, "password_confirmation": confirmation}
	msg, err := s.post(ctx, "/password/reset", body, "Password reset successful!")
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	if err := s.store.Remove(state.KeyResetEmail); err != nil {
		return msg, err
	}
	if err := s.store.Remove(state.KeyOTPVerified); err != nil {
		return msg, err
	}
	return msg, nil
}

// ChangePassword updates the password of the signed-in user.
func (s *Service) ChangePassword(ctx context.Context, current, password, confirmation string) (string, error) {
	if err := checkNewPassword(password, confirmation); err != nil {
		return "", err
	}
	body := map[string]string{
		"current_password":          current,
		"new_password":              password,
		"new_password_confirmation": confirmation,
	}
	msg, err := s.post(ctx, "/user/change-password", body, "Password changed successfully!")
	if err != nil {
		return "", fmt.Errorf("change password: %w", err)
	}
	return msg, nil
}
