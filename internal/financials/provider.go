// Package financials serves per-stock fundamental snapshots. No free
// upstream source for Korean fundamentals is wired yet, so the provider
// returns a fixed placeholder shaped like the real payload.
package financials

import (
	"context"

	"stock-dashboard/internal/types"
)

type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Snapshot(ctx context.Context, code string) (*types.FinancialSnapshot, error) {
	return &types.FinancialSnapshot{
		Revenue:         "100B",
		OperatingProfit: "10B",
		NetIncome:       "8B",
		PER:             12.5,
		PBR:             1.2,
	}, nil
}
