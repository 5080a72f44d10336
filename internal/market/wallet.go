package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/alanjade/growthctl/internal/api"
)

// MinimumAmount is the smallest deposit or withdrawal, in naira.
const MinimumAmount = 1000

// DepositFeeRate is the gateway fee previewed before a deposit.
const DepositFeeRate = 0.02

// Supported payment gateways.
const (
	GatewayPaystack = "paystack"
	GatewayMonnify  = "monnify"
)

var (
	ErrBelowMinimum   = fmt.Errorf("amount must be at least ₦%d", MinimumAmount)
	ErrExceedsBalance = errors.New("you cannot withdraw more than your available balance")
	ErrUnknownGateway = errors.New("gateway must be paystack or monnify")
)

// Balance returns the wallet balance from the profile.
func (s *Service) Balance(ctx context.Context) (api.Kobo, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/me", &raw); err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	u, err := api.DecodeUser(raw)
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return u.BalanceKobo, nil
}

// Transactions lists every transaction of the user, newest first as served.
func (s *Service) Transactions(ctx context.Context) ([]Transaction, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/transactions/user", &raw); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs, err := api.DecodeList[Transaction](raw, "data", "transactions")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// WalletHistory keeps only deposits and withdrawals.
func (s *Service) WalletHistory(ctx context.Context) ([]Transaction, error) {
	txs, err := s.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		kind := strings.ToLower(t.Type)
		if strings.Contains(kind, "deposit") || strings.Contains(kind, "withdraw") {
			out = append(out, t)
		}
	}
	return out, nil
}

// DepositFee previews the gateway fee and total for amount naira.
func DepositFee(amount int64) (fee, total int64) {
	fee = int64(math.Round(float64(amount) * DepositFeeRate))
	return fee, amount + fee
}

// Deposit starts a deposit of amount naira through gateway and returns the
// payment page to continue at.
func (s *Service) Deposit(ctx context.Context, amount int64, gateway string) (*DepositResult, error) {
	if amount < MinimumAmount {
		return nil, ErrBelowMinimum
	}
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	if gateway != GatewayPaystack && gateway != GatewayMonnify {
		return nil, ErrUnknownGateway
	}
	var out DepositResult
	if err := s.client.Post(ctx, "/deposit", map[string]any{"amount": amount, "gateway": gateway}, &out); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return &out, nil
}

// Withdraw pays amount naira out to the saved bank account. balance is the
// current wallet balance used for the local limit check.
func (s *Service) Withdraw(ctx context.Context, amount int64, pin string, balance api.Kobo) (string, error) {
	if amount < MinimumAmount {
		return "", ErrBelowMinimum
	}
	if float64(amount) > balance.Naira() {
		return "", ErrExceedsBalance
	}
	if err := ValidatePin(pin); err != nil {
		return "", err
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := s.client.Post(ctx, "/withdraw", map[string]any{"amount": amount, "transaction_pin": pin}, &out); err != nil {
		return "", fmt.Errorf("withdraw: %w", err)
	}
	if out.Message == "" {
		out.Message = "Withdrawal successful!"
	}
	return out.Message, nil
}
