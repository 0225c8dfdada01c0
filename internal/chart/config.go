package chart

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/history"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/shopspring/decimal"
)

const (
	defaultLineColor   = "rgba(0, 200, 255, 1)"
	gradientTop        = "rgba(0, 200, 255, 0.6)"
	gradientBottom     = "rgba(0, 100, 200, 0.1)"
	volumePriceColor   = "rgba(0, 123, 255, 1)"
	volumeBarColor     = "rgba(0, 200, 0, 0.3)"
	marketCapColor     = "rgba(255, 165, 0, 1)"
	candleUpColor      = "rgba(0, 200, 0, 1)"
	candleDownColor    = "rgba(255, 0, 0, 1)"
	lineTension        = 0.3
	lineBorderWidth    = 2
	priceTooltipPrefix = "Price: $"
)

// Config is a Chart.js chart configuration.
type Config struct {
	Type    string  `json:"type"`
	Data    Data    `json:"data"`
	Options Options `json:"options"`
}

type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Type            string    `json:"type,omitempty"`
	Label           string    `json:"label"`
	Data            any       `json:"data"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	Gradient        *Gradient `json:"gradient,omitempty"`
	Fill            bool      `json:"fill"`
	Tension         float64   `json:"tension,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
	BorderDash      []int     `json:"borderDash,omitempty"`
	YAxisID         string    `json:"yAxisID,omitempty"`
	// Tooltips holds pre-formatted tooltip lines per data point.
	Tooltips [][]string `json:"tooltips,omitempty"`
}

// Gradient is a vertical fill the page turns into a canvas gradient.
type Gradient struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Options struct {
	Responsive          bool             `json:"responsive"`
	MaintainAspectRatio bool             `json:"maintainAspectRatio"`
	Scales              map[string]Scale `json:"scales"`
	Plugins             Plugins          `json:"plugins"`
}

type Scale struct {
	Type        string      `json:"type,omitempty"`
	Position    string      `json:"position,omitempty"`
	BeginAtZero bool        `json:"beginAtZero"`
	Title       *ScaleTitle `json:"title,omitempty"`
	Grid        *Grid       `json:"grid,omitempty"`
}

type ScaleTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

type Grid struct {
	DrawOnChartArea bool `json:"drawOnChartArea"`
}

type Plugins struct {
	Title   ScaleTitle `json:"title"`
	Legend  Legend     `json:"legend"`
	Tooltip Tooltip    `json:"tooltip"`
}

type Legend struct {
	Display bool `json:"display"`
}

type Tooltip struct {
	Prefix string `json:"prefix,omitempty"`
}

// OHLCPoint is one candle in the shape of the financial chart plugin.
type OHLCPoint struct {
	X int64           `json:"x"`
	O decimal.Decimal `json:"o"`
	H decimal.Decimal `json:"h"`
	L decimal.Decimal `json:"l"`
	C decimal.Decimal `json:"c"`
}

// Meta describes what a chart shows.
type Meta struct {
	Selection market.Selection `json:"selection"`
	Title     string           `json:"title"`
	// Color is the catalog color used when the frame carries none.
	Color     string `json:"color,omitempty"`
	RequestID uint64 `json:"request_id"`
}

// Build turns a frame into a Chart.js configuration for kind.
func Build(kind market.ChartKind, frame history.Frame, meta Meta) (Config, error) {
	switch kind {
	case market.KindLine, "":
		return lineConfig(frame, meta), nil
	case market.KindVolume:
		return volumeConfig(frame, meta), nil
	case market.KindCandlestick:
		if len(frame.Candles) == 0 {
			return Config{}, &backend.CodedError{Code: backend.CodeMalformedResponse, Message: "candlestick chart needs OHLC data"}
		}
		return candlestickConfig(frame, meta), nil
	default:
		return Config{}, backend.Validation(fmt.Sprintf("unsupported chart kind %q", kind))
	}
}

func lineConfig(frame history.Frame, meta Meta) Config {
	color := frame.Color
	if color == "" {
		color = meta.Color
	}
	if color == "" {
		color = defaultLineColor
	}

	return Config{
		Type: "line",
		Data: Data{
			Labels: frame.Labels,
			Datasets: []Dataset{{
				Label:       fmt.Sprintf("%s Price (USD)", strings.ToUpper(meta.Selection.CoinID)),
				Data:        frame.Price.Values(),
				BorderColor: color,
				Gradient:    &Gradient{From: gradientTop, To: gradientBottom},
				Fill:        true,
				Tension:     lineTension,
				BorderWidth: lineBorderWidth,
			}},
		},
		Options: Options{
			Responsive: true,
			Scales: map[string]Scale{
				"x": {Title: &ScaleTitle{Display: true, Text: "Date"}},
				"y": {Title: &ScaleTitle{Display: true, Text: "Price (USD)"}},
			},
			Plugins: Plugins{
				Title:   ScaleTitle{Display: meta.Title != "", Text: meta.Title},
				Legend:  Legend{Display: true},
				Tooltip: Tooltip{Prefix: priceTooltipPrefix},
			},
		},
	}
}

func volumeConfig(frame history.Frame, meta Meta) Config {
	return Config{
		Type: "line",
		Data: Data{
			Labels: frame.Labels,
			Datasets: []Dataset{
				{
					Type:        "line",
					Label:       "Price",
					Data:        frame.Price.Values(),
					BorderColor: volumePriceColor,
					BorderWidth: lineBorderWidth,
					YAxisID:     "y",
				},
				{
					Type:            "bar",
					Label:           "Volume",
					Data:            frame.Volume.Values(),
					BackgroundColor: volumeBarColor,
					YAxisID:         "y1",
				},
				{
					Type:        "line",
					Label:       "Market Cap",
					Data:        frame.MarketCap.Values(),
					BorderColor: marketCapColor,
					BorderWidth: lineBorderWidth,
					BorderDash:  []int{5, 5},
					YAxisID:     "y",
				},
			},
		},
		Options: Options{
			Responsive: true,
			Scales: map[string]Scale{
				"x": {Title: &ScaleTitle{Display: true, Text: "Date"}},
				"y": {
					Type:     "linear",
					Position: "left",
					Title:    &ScaleTitle{Display: true, Text: "Price / Market Cap (USD)"},
				},
				"y1": {
					Type:        "linear",
					Position:    "right",
					BeginAtZero: true,
					Title:       &ScaleTitle{Display: true, Text: "Volume"},
					Grid:        &Grid{DrawOnChartArea: false},
				},
			},
			Plugins: Plugins{
				Title:   ScaleTitle{Display: meta.Title != "", Text: meta.Title},
				Legend:  Legend{Display: true},
				Tooltip: Tooltip{Prefix: "$"},
			},
		},
	}
}

func candlestickConfig(frame history.Frame, meta Meta) Config {
	points := make([]OHLCPoint, len(frame.Candles))
	tooltips := make([][]string, len(frame.Candles))
	for i, c := range frame.Candles {
		points[i] = OHLCPoint{X: c.Time.UnixMilli(), O: c.Open, H: c.High, L: c.Low, C: c.Close}
		tooltips[i] = CandleTooltip(c)
	}

	return Config{
		Type: "candlestick",
		Data: Data{
			Datasets: []Dataset{{
				Label:           "OHLC",
				Data:            points,
				BorderColor:     candleUpColor,
				BackgroundColor: candleDownColor,
				Tooltips:        tooltips,
			}},
		},
		Options: Options{
			Responsive: true,
			Scales: map[string]Scale{
				"x": {Type: "time"},
				"y": {Title: &ScaleTitle{Display: true, Text: "Price (USD)"}},
			},
			Plugins: Plugins{
				Title:  ScaleTitle{Display: meta.Title != "", Text: meta.Title},
				Legend: Legend{Display: false},
			},
		},
	}
}

// CandleTooltip formats the tooltip lines for one candle.
func CandleTooltip(c market.Candle) []string {
	direction := "Price went DOWN"
	if c.Direction() == market.DirectionUp {
		direction = "Price went UP"
	}
	return []string{
		"Opened: " + market.FormatUSD(c.Open),
		"High: " + market.FormatUSD(c.High),
		"Low: " + market.FormatUSD(c.Low),
		"Closed: " + market.FormatUSD(c.Close),
		direction,
	}
}
