package market

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alanjade/growthctl/internal/api"
)

// Summary returns the valuation of the user's holdings.
func (s *Service) Summary(ctx context.Context) (*PortfolioSummary, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/portfolio/summary", &raw); err != nil {
		return nil, fmt.Errorf("portfolio summary: %w", err)
	}
	var out PortfolioSummary
	if err := api.DecodeObject(raw, &out, "data"); err != nil {
		return nil, fmt.Errorf("portfolio summary: %w", err)
	}
	return &out, nil
}

// OwnedLands lists lands in which the user still holds units.
func (s *Service) OwnedLands(ctx context.Context) ([]OwnedLand, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/user/lands", &raw); err != nil {
		return nil, fmt.Errorf("owned lands: %w", err)
	}
	all, err := api.DecodeList[OwnedLand](raw, "owned_lands", "data")
	if err != nil {
		return nil, fmt.Errorf("owned lands: %w", err)
	}
	out := make([]OwnedLand, 0, len(all))
	for _, l := range all {
		if l.UnitsOwned > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

// Stats returns the dashboard totals.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/user/stats", &raw); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	var out Stats
	if err := api.DecodeObject(raw, &out, "data"); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &out, nil
}

// Dashboard is everything the overview screen shows.
type Dashboard struct {
	Stats        Stats
	Transactions []Transaction
}

// Dashboard loads stats and transactions concurrently. Either failure
// cancels the other request and nothing is returned.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	g, gctx := errgroup.WithContext(ctx)
	var (
		stats *Stats
		txs   []Transaction
	)
	g.Go(func() error {
		var err error
		stats, err = s.Stats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.Transactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Dashboard{Stats: *stats, Transactions: txs}, nil
}
