package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/metrics"
)

// Source is the subset of backend.Client the loader reads from.
type Source interface {
	History(ctx context.Context, coinID string) (backend.History, error)
	MarketChart(ctx context.Context, coinID, days string) (backend.MarketChart, error)
	OHLC(ctx context.Context, coinID, days string) ([]market.Candle, error)
}

// Frame is history normalized into the shape the chart controller draws.
type Frame struct {
	Labels     []string        `json:"labels"`
	Timestamps []time.Time     `json:"timestamps,omitempty"`
	Price      market.Series   `json:"price"`
	Volume     market.Series   `json:"volume,omitempty"`
	MarketCap  market.Series   `json:"market_cap,omitempty"`
	Candles    []market.Candle `json:"candles,omitempty"`
	Color      string          `json:"color,omitempty"`
}

// Result is one completed load.
type Result struct {
	RequestID uint64           `json:"request_id"`
	Selection market.Selection `json:"selection"`
	Frame     Frame            `json:"frame"`
}

// Loader fetches history for a selection and normalizes it.
type Loader struct {
	src         Source
	seq         *Sequencer
	candlestick bool
}

// NewLoader creates a Loader. When candlestick is false, candlestick
// selections are rejected before any fetch.
func NewLoader(src Source, candlestick bool) *Loader {
	return &Loader{src: src, seq: &Sequencer{}, candlestick: candlestick}
}

// Sequencer exposes the loader's request sequencer so callers can re-check
// freshness while applying a result.
func (l *Loader) Sequencer() *Sequencer {
	return l.seq
}

// Validate normalizes sel and rejects selections that can never load.
func (l *Loader) Validate(sel market.Selection) (market.Selection, error) {
	if sel.CoinID == "" {
		return sel, backend.Validation("coin is required")
	}
	if sel.Kind == "" {
		sel.Kind = market.KindLine
	}
	if sel.Kind == market.KindCandlestick && !l.candlestick {
		return sel, backend.Validation("candlestick charts are disabled")
	}
	return sel, nil
}

// Load issues a new request id and fetches the selection.
func (l *Loader) Load(ctx context.Context, sel market.Selection) (Result, error) {
	sel, err := l.Validate(sel)
	if err != nil {
		return Result{}, err
	}
	return l.Fetch(ctx, l.seq.Issue(), sel)
}

// Fetch loads sel under a request id already issued by the loader's
// sequencer. A result whose id has been superseded is discarded with
// SUPERSEDED, whether the fetch itself succeeded or not.
func (l *Loader) Fetch(ctx context.Context, id uint64, sel market.Selection) (Result, error) {
	sel, err := l.Validate(sel)
	if err != nil {
		return Result{}, err
	}

	frame, err := l.fetch(ctx, sel)

	if !l.seq.IsLatest(id) {
		metrics.StaleResults.Inc()
		slog.Debug("history load superseded", "request_id", id, "latest", l.seq.Latest(), "coin", sel.CoinID, "range", sel.Range, "kind", sel.Kind)
		return Result{}, &backend.CodedError{
			Code:    backend.CodeSuperseded,
			Message: fmt.Sprintf("history load %d superseded by %d", id, l.seq.Latest()),
			Cause:   err,
		}
	}
	if err != nil {
		slog.Warn("history load failed", "coin", sel.CoinID, "range", sel.Range, "kind", sel.Kind, "error", err)
		return Result{}, err
	}
	return Result{RequestID: id, Selection: sel, Frame: frame}, nil
}

func (l *Loader) fetch(ctx context.Context, sel market.Selection) (Frame, error) {
	switch sel.Kind {
	case market.KindCandlestick:
		candles, err := l.src.OHLC(ctx, sel.CoinID, sel.Days())
		if err != nil {
			return Frame{}, err
		}
		return candleFrame(candles, sel.Days()), nil
	case market.KindVolume:
		chart, err := l.src.MarketChart(ctx, sel.CoinID, sel.Days())
		if err != nil {
			return Frame{}, err
		}
		return marketFrame(chart, sel.Days()), nil
	default:
		if sel.Range == market.DefaultRange {
			h, err := l.src.History(ctx, sel.CoinID)
			if err != nil {
				return Frame{}, err
			}
			return historyFrame(h), nil
		}
		chart, err := l.src.MarketChart(ctx, sel.CoinID, sel.Days())
		if err != nil {
			return Frame{}, err
		}
		return marketFrame(chart, sel.Days()), nil
	}
}

func historyFrame(h backend.History) Frame {
	points := make([]market.PricePoint, len(h.Prices))
	for i, v := range h.Prices {
		points[i] = market.PricePoint{Value: v}
	}
	labels := h.Labels
	if len(labels) != len(points) {
		labels = alignLabels(labels, len(points))
	}
	return Frame{
		Labels: labels,
		Price:  market.Series{Name: "price", Points: points},
		Color:  h.Color,
	}
}

// marketFrame transposes the three parallel market-chart arrays onto one
// timestamp axis. Mismatched lengths are truncated to the shortest non-empty
// series.
func marketFrame(c backend.MarketChart, days string) Frame {
	n := len(c.Prices)
	for _, s := range [][]market.PricePoint{c.Volumes, c.MarketCaps} {
		if len(s) > 0 && len(s) < n {
			n = len(s)
		}
	}
	if n != len(c.Prices) || (len(c.Volumes) > 0 && n != len(c.Volumes)) || (len(c.MarketCaps) > 0 && n != len(c.MarketCaps)) {
		slog.Warn("market chart series lengths differ; truncating",
			"prices", len(c.Prices), "volumes", len(c.Volumes), "market_caps", len(c.MarketCaps), "length", n)
	}

	f := Frame{
		Labels:     make([]string, n),
		Timestamps: make([]time.Time, n),
		Price:      market.Series{Name: "price", Points: c.Prices[:n]},
		Volume:     market.Series{Name: "volume", Points: truncate(c.Volumes, n)},
		MarketCap:  market.Series{Name: "market_cap", Points: truncate(c.MarketCaps, n)},
	}
	layout := labelLayout(days)
	for i := 0; i < n; i++ {
		ts := c.Prices[i].Timestamp
		f.Timestamps[i] = ts
		f.Labels[i] = ts.Format(layout)
	}
	return f
}

func candleFrame(candles []market.Candle, days string) Frame {
	f := Frame{
		Labels:     make([]string, len(candles)),
		Timestamps: make([]time.Time, len(candles)),
		Candles:    candles,
	}
	points := make([]market.PricePoint, len(candles))
	layout := labelLayout(days)
	for i, c := range candles {
		f.Timestamps[i] = c.Time
		f.Labels[i] = c.Time.Format(layout)
		points[i] = market.PricePoint{Timestamp: c.Time, Value: c.Close}
	}
	f.Price = market.Series{Name: "close", Points: points}
	return f
}

func truncate(points []market.PricePoint, n int) []market.PricePoint {
	if len(points) > n {
		return points[:n]
	}
	return points
}

func alignLabels(labels []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		if i < len(labels) {
			out[i] = labels[i]
		} else {
			out[i] = fmt.Sprintf("#%d", i+1)
		}
	}
	return out
}

func labelLayout(days string) string {
	if days == "1" {
		return "15:04"
	}
	return "Jan 2"
}
