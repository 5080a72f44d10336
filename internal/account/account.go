// Package account covers registration, e-mail verification, password and
// PIN management, bank details and the stored theme preference. Steps of the
// multi-screen flows are linked through the client-side state store.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/state"
)

var (
	ErrEmailRequired = errors.New("email is required")
	ErrNameRequired  = errors.New("name is required")
	ErrCodeFormat    = errors.New("please enter a valid 6-digit code")
	ErrBadTheme      = errors.New("theme must be light or dark")
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// Theme preferences.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Client is the subset of *api.Client the account flows use.
type Client interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
}

type Service struct {
	client Client
	store  state.Store
}

func New(client Client, store state.Store) *Service {
	return &Service{client: client, store: store}
}

// NormalizeEmail trims, folds case and applies NFKC so that visually equal
// addresses compare equal.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(email)))
}

func validCode(code string) error {
	if !codePattern.MatchString(strings.TrimSpace(code)) {
		return ErrCodeFormat
	}
	return nil
}

// post sends body and returns the server's message, or fallback.
func (s *Service) post(ctx context.Context, path string, body any, fallback string) (string, error) {
	var raw json.RawMessage
	if err := s.client.Post(ctx, path, body, &raw); err != nil {
		return "", err
	}
	if msg, ok := api.Lookup(raw, "message"); ok {
		return msg, nil
	}
	return fallback, nil
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Register creates the account and remembers the address awaiting
// verification.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if in.Name == "" {
		return "", ErrNameRequired
	}
	if in.Email == "" {
		return "", ErrEmailRequired
	}
	if in.Password != in.PasswordConfirmation {
		return "", ErrPasswordMismatch
	}
	if failed := FailedChecks(in.Password); len(failed) > 0 {
		return "", &WeakPasswordError{Failed: failed}
	}
	msg, err := s.post(ctx, "/register", in, "Registration successful! Please verify your email.")
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	if err := s.store.Set(state.KeyPendingEmail, in.Email); err != nil {
		return msg, fmt.Errorf("remember pending email: %w", err)
	}
	return msg, nil
}

// PendingEmail is the address registered but not yet verified, if any.
func (s *Service) PendingEmail() string {
	return state.GetString(s.store, state.KeyPendingEmail)
}

// VerifyEmail submits the 6-digit code. An empty email falls back to the
// pending registration.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (string, error) {
	if email = NormalizeEmail(email); email == "" {
		email = s.PendingEmail()
	}
	if email == "" {
		return "", ErrEmailRequired
	}
	if err := validCode(code); err != nil {
		return "", err
	}
	body := map[string]string{"email": email, "verification_code": strings.TrimSpace(code)}
	msg, err := s.post(ctx, "/email/verify/code", body, "Email verified successfully!")
	if err != nil {
		return "", fmt.Errorf("verify email: %w", err)
	}
	if err := s.store.Remove(state.KeyPendingEmail); err != nil {
		return msg, fmt.Errorf("clear pending email: %w", err)
	}
	return msg, nil
}

// ResendVerification asks for a fresh verification code.
func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	if email = NormalizeEmail(email); email == "" {
		email = s.PendingEmail()
	}
	if email == "" {
		return "", ErrEmailRequired
	}
	msg, err := s.post(ctx, "/email/resend-verification", map[string]string{"email": email}, "Verification code resent.")
	if err != nil {
		return "", fmt.Errorf("resend verification: %w", err)
	}
	return msg, nil
}

// Theme returns the stored preference, light by default.
func (s *Service) Theme() string {
	if state.GetString(s.store, state.KeyTheme) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

func (s *Service) SetTheme(theme string) error {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if theme != ThemeLight && theme != ThemeDark {
		return ErrBadTheme
	}
	return s.store.Set(state.KeyTheme, theme)
}
