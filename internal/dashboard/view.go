package dashboard

import (
	"time"

	"github.com/dgnsrekt/coindash/internal/chart"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/notify"
	"github.com/shopspring/decimal"
)

// ViewModel is everything the dashboard page renders.
type ViewModel struct {
	Selection          market.Selection     `json:"selection"`
	Title              string               `json:"title"`
	Coins              []CoinView           `json:"coins"`
	Alert              market.AlertState    `json:"alert"`
	Chart              *ChartView           `json:"chart,omitempty"`
	Notification       *notify.Notification `json:"notification,omitempty"`
	QuotesUpdatedAt    time.Time            `json:"quotes_updated_at"`
	CandlestickEnabled bool                 `json:"candlestick_enabled"`
	SoundURL           string               `json:"sound_url,omitempty"`
}

// CoinView is one price display. Price is empty until the first poll.
type CoinView struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Symbol   string           `json:"symbol"`
	Color    string           `json:"color,omitempty"`
	Required bool             `json:"required"`
	USD      *decimal.Decimal `json:"usd,omitempty"`
	Price    string           `json:"price"`
}

// ChartView is the serializable form of the live chart.
type ChartView struct {
	ID        uint64           `json:"id"`
	Kind      market.ChartKind `json:"kind"`
	Revision  uint64           `json:"revision"`
	Title     string           `json:"title"`
	Selection market.Selection `json:"selection"`
	Config    chart.Config     `json:"config"`
	CreatedAt time.Time        `json:"created_at"`
}

func newChartView(ch *chart.Chart, revision uint64) ChartView {
	return ChartView{
		ID:        ch.ID,
		Kind:      ch.Kind,
		Revision:  revision,
		Title:     ch.Meta.Title,
		Selection: ch.Meta.Selection,
		Config:    ch.Config,
		CreatedAt: ch.CreatedAt,
	}
}

type selectionEvent struct {
	Selection market.Selection `json:"selection"`
	Title     string           `json:"title"`
}

type quotesEvent struct {
	Coins []CoinView        `json:"coins"`
	Alert market.AlertState `json:"alert"`
	At    time.Time         `json:"at"`
}

type alertEvent struct {
	Alert   market.AlertState `json:"alert"`
	Message string            `json:"message"`
}
