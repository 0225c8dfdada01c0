package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one sample of a time series.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// Series is a named, time-ascending sequence of points.
type Series struct {
	Name   string       `json:"name"`
	Points []PricePoint `json:"points"`
}

// Values returns the point values in order.
func (s Series) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Points) }

// Candle is one OHLC bucket.
type Candle struct {
	Time  time.Time       `json:"time"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// Direction reports "up" when the candle closed above its open, "down" otherwise.
func (c Candle) Direction() string {
	if c.Close.GreaterThan(c.Open) {
		return DirectionUp
	}
	return DirectionDown
}

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// CoinQuote is the current USD price of a coin.
type CoinQuote struct {
	CoinID string          `json:"coin_id"`
	USD    decimal.Decimal `json:"usd"`
}

// Display formats the quote the way the dashboard shows it, e.g. "$61000".
func (q CoinQuote) Display() string {
	return FormatUSD(q.USD)
}

// FormatUSD renders a price with a leading dollar sign and no trailing zeros.
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.String()
}

// AlertState is the backend-owned price-drop alert.
type AlertState struct {
	Threshold decimal.Decimal `json:"threshold"`
	Armed     bool            `json:"armed"`
}

// ChartKind selects how history is drawn.
type ChartKind string

const (
	KindLine        ChartKind = "line"
	KindVolume      ChartKind = "volume"
	KindCandlestick ChartKind = "candlestick"
)

// ParseChartKind normalizes user input into a ChartKind.
func ParseChartKind(raw string) (ChartKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "line":
		return KindLine, nil
	case "volume", "volume+marketcap", "volume_marketcap":
		return KindVolume, nil
	case "candlestick", "candle", "ohlc":
		return KindCandlestick, nil
	default:
		return "", fmt.Errorf("unknown chart kind %q", raw)
	}
}

// DefaultRange selects the week served by the backend history endpoint.
const DefaultRange = ""

// DefaultDays is used when a day-based source is asked for the default range.
const DefaultDays = "7"

// ParseRange normalizes a range such as "7", "7d" or "max". The empty string
// is the default range.
func ParseRange(raw string) (string, error) {
	r := strings.ToLower(strings.TrimSpace(raw))
	if r == "" {
		return DefaultRange, nil
	}
	if r == "max" {
		return r, nil
	}
	r = strings.TrimSuffix(r, "d")
	n, err := strconv.Atoi(r)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("range must be a positive number of days or \"max\", got %q", raw)
	}
	return strconv.Itoa(n), nil
}

// Selection is what the history loader fetches next.
type Selection struct {
	CoinID string    `json:"coin_id"`
	Range  string    `json:"range"`
	Kind   ChartKind `json:"kind"`
}

// Days returns the day count sent to day-based sources.
func (s Selection) Days() string {
	if s.Range == DefaultRange {
		return DefaultDays
	}
	return s.Range
}

// Title is the chart card header for the selection.
func (s Selection) Title() string {
	coin := strings.ToUpper(s.CoinID)
	switch s.Range {
	case DefaultRange, "7":
		return fmt.Sprintf("Price Trend (%s - Past Week)", coin)
	case "1":
		return fmt.Sprintf("Price Trend (%s - Past Day)", coin)
	case "max":
		return fmt.Sprintf("Price Trend (%s - All Time)", coin)
	default:
		return fmt.Sprintf("Price Trend (%s - %s Days)", coin, s.Range)
	}
}
