package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alanjade/growthctl/internal/market"
)

var (
	ErrPinMismatch  = errors.New("PIN and confirmation PIN do not match")
	ErrCodeRequired = errors.New("enter the code sent to your email")
)

func checkNewPin(pin, confirmation string) error {
	if err := market.ValidatePin(pin); err != nil {
		return err
	}
	if pin != confirmation {
		return ErrPinMismatch
	}
	return nil
}

// SetPin creates the first transaction PIN.
func (s *Service) SetPin(ctx context.Context, pin, confirmation string) (string, error) {
	if err := checkNewPin(pin, confirmation); err != nil {
		return "", err
	}
	msg, err := s.post(ctx, "/pin/set", map[string]string{"pin": pin}, "Transaction PIN set successfully")
	if err != nil {
		return "", fmt.Errorf("set pin: %w", err)
	}
	return msg, nil
}

// UpdatePin replaces an existing PIN.
func (s *Service) UpdatePin(ctx context.Context, oldPin, pin, confirmation string) (string, error) {
	if err := market.ValidatePin(oldPin); err != nil {
		return "", err
	}
	if err := checkNewPin(pin, confirmation); err != nil {
		return "", err
	}
	msg, err := s.post(ctx, "/pin/update", map[string]string{"old_pin": oldPin, "new_pin": pin}, "Transaction PIN updated successfully")
	if err != nil {
		return "", fmt.Errorf("update pin: %w", err)
	}
	return msg, nil
}

// ForgotPin mails a PIN reset code.
func (s *Service) ForgotPin(ctx context.Context, email string) (string, error) {
	if email = NormalizeEmail(email); email == "" {
		return "", ErrEmailRequired
	}
	msg, err := s.post(ctx, "/pin/forgot", map[string]string{"email": email}, "PIN reset code sent to your email.")
	if err != nil {
		return "", fmt.Errorf("forgot pin: %w", err)
	}
	return msg, nil
}

// VerifyPinCode checks a PIN reset code without consuming it.
func (s *Service) VerifyPinCode(ctx context.Context, email, code string) (string, error) {
	if email = NormalizeEmail(email); email == "" {
		return "", ErrEmailRequired
	}
	if strings.TrimSpace(code) == "" {
		return "", ErrCodeRequired
	}
	msg, err := s.post(ctx, "/pin/verify-code", map[string]string{"email": email, "code": strings.TrimSpace(code)}, "Code verified! Enter new PIN.")
	if err != nil {
		return "", fmt.Errorf("verify pin code: %w", err)
	}
	return msg, nil
}

// ResetPin sets a new PIN using a verified reset code.
func (s *Service) ResetPin(ctx context.Context, email, code, pin, confirmation string) (string, error) {
	if email = NormalizeEmail(email); email == "" {
		return "", ErrEmailRequired
	}
	if strings.TrimSpace(code) == "" {
		return "", ErrCodeRequired
	}
	if err := checkNewPin(pin, confirmation); err != nil {
		return "", err
	}
	body := map[string]string{"email": email, "code": strings.TrimSpace(code), "new_pin": pin}
	msg, err := s.post(ctx, "/pin/reset", body, "Transaction PIN reset successfully!")
	if err != nil {
		return "", fmt.Errorf("reset pin: %w", err)
	}
	return msg, nil
}
