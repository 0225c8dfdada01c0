package backend

import (
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/shopspring/decimal"
)

// PriceSnapshot is one response of the price endpoint.
type PriceSnapshot struct {
	Quotes map[string]market.CoinQuote
	// Alert is true when the backend says the alert condition is met.
	Alert bool
	// Threshold is the backend's current alert threshold, when reported.
	Threshold decimal.NullDecimal
}

// Quote returns the quote for a coin, if present.
func (p PriceSnapshot) Quote(coinID string) (market.CoinQuote, bool) {
	q, ok := p.Quotes[coinID]
	return q, ok
}

// Missing returns the coins in want that have no quote.
func (p PriceSnapshot) Missing(want []string) []string {
	var missing []string
	for _, id := range want {
		if _, ok := p.Quotes[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// History is the backend's simple history payload.
type History struct {
	Prices []decimal.Decimal `json:"prices"`
	Labels []string          `json:"labels"`
	Color  string            `json:"color,omitempty"`
}

// MarketChart holds the three parallel market-chart series.
type MarketChart struct {
	Prices     []market.PricePoint
	Volumes    []market.PricePoint
	MarketCaps []market.PricePoint
}

// AlertAck is the backend's answer to a new alert threshold.
type AlertAck struct {
	Status    string          `json:"status"`
	Threshold decimal.Decimal `json:"new_threshold"`
}
