// Package market wraps the listing, trading, wallet and portfolio endpoints.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/alanjade/growthctl/internal/api"
)

var (
	ErrInvalidPin   = errors.New("transaction PIN must be a 4-digit number")
	ErrInvalidUnits = errors.New("please enter a valid number of units")
	ErrNotFound     = errors.New("land not found")
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// ValidatePin checks the 4-digit transaction PIN shape.
func ValidatePin(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPin
	}
	return nil
}

// Client is the subset of *api.Client the services use.
type Client interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	PostMultipart(ctx context.Context, path string, fields [][2]string, files []api.FormFile, out any) error
}

// Service is stateless apart from the shared client.
type Service struct {
	client Client
}

func New(client Client) *Service {
	return &Service{client: client}
}

// Lands lists the public listings.
func (s *Service) Lands(ctx context.Context) ([]Land, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/lands", &raw); err != nil {
		return nil, fmt.Errorf("list lands: %w", err)
	}
	lands, err := api.DecodeList[Land](raw, "data.data", "data", "lands")
	if err != nil {
		return nil, fmt.Errorf("list lands: %w", err)
	}
	return lands, nil
}

// Land fetches one listing.
func (s *Service) Land(ctx context.Context, id string) (*Land, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/lands/"+api.PathEscape(id), &raw); err != nil {
		if api.Status(err) == 404 {
			return nil, fmt.Errorf("land %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get land %s: %w", id, err)
	}
	var land Land
	if err := api.DecodeObject(raw, &land, "data"); err != nil {
		return nil, fmt.Errorf("get land %s: %w", id, err)
	}
	return &land, nil
}

// UnitsOwned reports how many units of a land the user holds.
func (s *Service) UnitsOwned(ctx context.Context, id string) (int, error) {
	var out struct {
		UnitsOwned int `json:"units_owned"`
	}
	if err := s.client.Get(ctx, "/lands/"+api.PathEscape(id)+"/units", &out); err != nil {
		return 0, fmt.Errorf("units for land %s: %w", id, err)
	}
	return out.UnitsOwned, nil
}

// Purchase buys units of a land. A missing PIN on the account surfaces as
// api.ErrPinNotSet.
func (s *Service) Purchase(ctx context.Context, id string, units int, pin string) (*Receipt, error) {
	return s.trade(ctx, "purchase", id, units, pin)
}

// Sell sells units of a land back.
func (s *Service) Sell(ctx context.Context, id string, units int, pin string) (*Receipt, error) {
	return s.trade(ctx, "sell", id, units, pin)
}

func (s *Service) trade(ctx context.Context, action, id string, units int, pin string) (*Receipt, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}
	if err := ValidatePin(pin); err != nil {
		return nil, err
	}
	body := map[string]any{"units": units, "transaction_pin": pin}
	var r Receipt
	if err := s.client.Post(ctx, "/lands/"+api.PathEscape(id)+"/"+action, body, &r); err != nil {
		return nil, fmt.Errorf("%s land %s: %w", action, id, err)
	}
	return &r, nil
}
