package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/alanjade/growthctl/internal/api"
)

var (
	ErrAccountNumber     = errors.New("account number must be 10 digits")
	ErrAccountUnresolved = errors.New("unable to verify account, please check your details")
	ErrBankIncomplete    = errors.New("please fill in all fields and verify your account")
)

var accountNumberPattern = regexp.MustCompile(`^\d{10}$`)

// Bank is one entry of the payout bank directory.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// BankDetails is the payout account saved on the profile.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Complete reports whether every field is filled in.
func (d BankDetails) Complete() bool {
	return d.BankName != "" && d.AccountNumber != "" && d.AccountName != ""
}

// Banks lists the banks payouts can go to.
func (s *Service) Banks(ctx context.Context) ([]Bank, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/paystack/banks", &raw); err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	banks, err := api.DecodeList[Bank](raw, "data")
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	return banks, nil
}

// FindBank looks a bank up by code.
func FindBank(banks []Bank, code string) (Bank, bool) {
	for _, b := range banks {
		if b.Code == code {
			return b, true
		}
	}
	return Bank{}, false
}

// ResolveAccount returns the holder name registered for an account number.
func (s *Service) ResolveAccount(ctx context.Context, number, bankCode string) (string, error) {
	number = strings.TrimSpace(number)
	if !accountNumberPattern.MatchString(number) {
		return "", ErrAccountNumber
	}
	if strings.TrimSpace(bankCode) == "" {
		return "", ErrBankIncomplete
	}
	var raw json.RawMessage
	body := map[string]string{"account_number": number, "bank_code": bankCode}
	if err := s.client.Post(ctx, "/paystack/resolve-account", body, &raw); err != nil {
		return "", fmt.Errorf("resolve account: %w", err)
	}
	name, ok := api.Lookup(raw, "data.account_name")
	if !ok {
		return "", ErrAccountUnresolved
	}
	return name, nil
}

// CurrentBankDetails reads the saved payout account from the profile.
func (s *Service) CurrentBankDetails(ctx context.Context) (BankDetails, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/me", &raw); err != nil {
		return BankDetails{}, fmt.Errorf("load bank details: %w", err)
	}
	u, err := api.DecodeUser(raw)
	if err != nil {
		return BankDetails{}, err
	}
	return BankDetails{BankName: u.BankName, AccountNumber: u.AccountNumber, AccountName: u.AccountName}, nil
}

// UpdateBankDetails saves the payout account.
func (s *Service) UpdateBankDetails(ctx context.Context, d BankDetails) (string, error) {
	if !d.Complete() {
		return "", ErrBankIncomplete
	}
	if !accountNumberPattern.MatchString(d.AccountNumber) {
		return "", ErrAccountNumber
	}
	var raw json.RawMessage
	if err := s.client.Put(ctx, "/user/bank-details", d, &raw); err != nil {
		return "", fmt.Errorf("update bank details: %w", err)
	}
	if msg, ok := api.Lookup(raw, "message"); ok {
		return msg, nil
	}
	return "Bank details saved successfully!", nil
}
