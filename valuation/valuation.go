// Package valuation joins open lots with current market prices.
package valuation

import (
	"context"

	"portfolio-tracker/models"
)

// PriceSource reports the current price of a symbol, or false when no price
// is available.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, bool)
}

// PriceSourceFunc adapts a function to PriceSource.
type PriceSourceFunc func(ctx context.Context, symbol string) (float64, bool)

func (f PriceSourceFunc) CurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	return f(ctx, symbol)
}

// Row is one lot enriched with its market value.
type Row struct {
	models.Position
	CurrentPrice   float64 `json:"current_price"`
	PriceAvailable bool    `json:"price_available"`
	Invested       float64 `json:"invested_amount"`
	CurrentValue   float64 `json:"current_value"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
}

// Summary aggregates every row.
type Summary struct {
	TotalInvested   float64 `json:"total_invested"`
	TotalValue      float64 `json:"current_value"`
	TotalUnrealized float64 `json:"unrealized_pnl"`
	ReturnPct       float64 `json:"return_pct"`
}

// Portfolio is the valued view of a user's open lots.
type Portfolio struct {
	Positions []Row   `json:"positions"`
	Summary   Summary `json:"summary"`
}

// Value computes invested amount, current value and unrealized P&L for each
// lot plus totals. A symbol without a price is valued at zero. Each distinct
// symbol is looked up once.
func Value(ctx context.Context, positions []models.Position, prices PriceSource) Portfolio {
	type quote struct {
		price float64
		ok    bool
	}
	quotes := make(map[string]quote, len(positions))

	out := Portfolio{Positions: make([]Row, 0, len(positions))}
	for _, p := range positions {
		q, seen := quotes[p.Symbol]
		if !seen {
			q.price, q.ok = prices.CurrentPrice(ctx, p.Symbol)
			if !q.ok {
				q.price = 0
			}
			quotes[p.Symbol] = q
		}

		row := Row{
			Position:       p,
			CurrentPrice:   q.price,
			PriceAvailable: q.ok,
			Invested:       p.Invested(),
			CurrentValue:   q.price * p.Quantity,
		}
		row.UnrealizedPnL = row.CurrentValue - row.Invested
		out.Positions = append(out.Positions, row)

		out.Summary.TotalInvested += row.Invested
		out.Summary.TotalValue += row.CurrentValue
		out.Summary.TotalUnrealized += row.UnrealizedPnL
	}

	if out.Summary.TotalInvested > 0 {
		out.Summary.ReturnPct = out.Summary.TotalUnrealized / out.Summary.TotalInvested * 100
	}
	return out
}

// Realized sums the realized P&L of sales.
func Realized(sales []models.Sale) float64 {
	var total float64
	for _, s := range sales {
		total += s.PnL
	}
	return total
}
