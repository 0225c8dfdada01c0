package chart

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/history"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/shopspring/decimal"
)

func points(n int, base int64) []market.PricePoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.PricePoint, n)
	for i := range out {
		out[i] = market.PricePoint{Timestamp: start.Add(time.Duration(i) * 24 * time.Hour), Value: decimal.NewFromInt(base + int64(i))}
	}
	return out
}

func volumeFrame(n int) history.Frame {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "d"
	}
	return history.Frame{
		Labels:    labels,
		Price:     market.Series{Name: "price", Points: points(n, 3000)},
		Volume:    market.Series{Name: "volume", Points: points(n, 100)},
		MarketCap: market.Series{Name: "market_cap", Points: points(n, 9000)},
	}
}

func TestVolumeChartHasTwoAxesAndThreeDatasets(t *testing.T) {
	sel := market.Selection{CoinID: "ethereum", Range: "7", Kind: market.KindVolume}
	cfg, err := Build(market.KindVolume, volumeFrame(7), Meta{Selection: sel, Title: sel.Title()})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(cfg.Data.Datasets) != 3 {
		t.Fatalf("datasets = %d; want 3", len(cfg.Data.Datasets))
	}
	for _, ds := range cfg.Data.Datasets {
		values, ok := ds.Data.([]decimal.Decimal)
		if !ok {
			t.Fatalf("dataset %q data type = %T", ds.Label, ds.Data)
		}
		if len(values) != 7 {
			t.Fatalf("dataset %q length = %d; want 7", ds.Label, len(values))
		}
	}

	axes := map[string]bool{}
	for _, ds := range cfg.Data.Datasets {
		axes[ds.YAxisID] = true
	}
	if len(axes) != 2 || !axes["y"] || !axes["y1"] {
		t.Fatalf("y axes = %v; want y and y1", axes)
	}
	y1 := cfg.Options.Scales["y1"]
	if y1.Position != "right" || y1.Grid == nil || y1.Grid.DrawOnChartArea {
		t.Fatalf("y1 = %+v; want right axis without chart-area grid", y1)
	}
	if cfg.Options.Scales["y"].Position != "left" {
		t.Fatalf("y position = %q; want left", cfg.Options.Scales["y"].Position)
	}
	if cfg.Data.Datasets[1].Type != "bar" || len(cfg.Data.Datasets[2].BorderDash) != 2 {
		t.Fatalf("dataset shapes = %q / %v", cfg.Data.Datasets[1].Type, cfg.Data.Datasets[2].BorderDash)
	}
	if cfg.Options.Plugins.Title.Text != "Price Trend (ETHEREUM - Past Week)" {
		t.Fatalf("title = %q", cfg.Options.Plugins.Title.Text)
	}
}

func TestLineChartUsesFrameColor(t *testing.T) {
	frame := history.Frame{
		Labels: []string{"Mon", "Tue"},
		Price:  market.Series{Points: points(2, 1)},
		Color:  "#f7931a",
	}
	cfg, err := Build(market.KindLine, frame, Meta{Selection: market.Selection{CoinID: "bitcoin"}, Color: "#000"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ds := cfg.Data.Datasets[0]
	if ds.Label != "BITCOIN Price (USD)" {
		t.Fatalf("label = %q", ds.Label)
	}
	if ds.BorderColor != "#f7931a" {
		t.Fatalf("border = %q; want frame color", ds.BorderColor)
	}
	if ds.Gradient == nil || !ds.Fill || ds.Tension != 0.3 {
		t.Fatalf("dataset = %+v", ds)
	}
	if cfg.Options.Plugins.Tooltip.Prefix != "Price: $" {
		t.Fatalf("tooltip prefix = %q", cfg.Options.Plugins.Tooltip.Prefix)
	}

	cfg, _ = Build(market.KindLine, history.Frame{Price: market.Series{Points: points(1, 1)}}, Meta{})
	if got := cfg.Data.Datasets[0].BorderColor; got != defaultLineColor {
		t.Fatalf("default border = %q", got)
	}
}

func TestCandlestickTooltips(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := history.Frame{Candles: []market.Candle{
		{Time: ts, Open: decimal.NewFromInt(10), High: decimal.NewFromInt(14), Low: decimal.NewFromInt(9), Close: decimal.NewFromInt(12)},
		{Time: ts.Add(4 * time.Hour), Open: decimal.NewFromInt(12), High: decimal.NewFromInt(12), Low: decimal.NewFromInt(8), Close: decimal.NewFromInt(9)},
	}}
	cfg, err := Build(market.KindCandlestick, frame, Meta{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ds := cfg.Data.Datasets[0]
	if ds.Label != "OHLC" || cfg.Type != "candlestick" {
		t.Fatalf("dataset = %q type = %q", ds.Label, cfg.Type)
	}
	if got := ds.Tooltips[0][4]; got != "Price went UP" {
		t.Fatalf("tooltip[0] direction = %q", got)
	}
	if got := ds.Tooltips[1][4]; got != "Price went DOWN" {
		t.Fatalf("tooltip[1] direction = %q", got)
	}
	if got := ds.Tooltips[0][0]; got != "Opened: $10" {
		t.Fatalf("tooltip[0][0] = %q", got)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"o":"10"`) {
		t.Fatalf("candle JSON = %s", raw)
	}
}

func TestCandlestickWithoutCandles(t *testing.T) {
	_, err := Build(market.KindCandlestick, history.Frame{}, Meta{})
	if !backend.HasCode(err, backend.CodeMalformedResponse) {
		t.Fatalf("Build() error = %v; want %s", err, backend.CodeMalformedResponse)
	}
}

func TestRenderKeepsOneLiveChart(t *testing.T) {
	c := NewController(nil)
	frame := volumeFrame(3)

	first, err := c.Render(market.KindLine, frame, Meta{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	second, err := c.Render(market.KindVolume, frame, Meta{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if got := c.Live(); got != 1 {
		t.Fatalf("Live() = %d; want 1", got)
	}
	if !first.Destroyed() {
		t.Fatal("first chart should be destroyed")
	}
	if second.Destroyed() || c.Current() != second {
		t.Fatal("second chart should be current and live")
	}
	if c.Revision() != 2 {
		t.Fatalf("Revision() = %d; want 2", c.Revision())
	}
}

func TestRenderFailureKeepsCurrentChart(t *testing.T) {
	c := NewController(nil)
	first, err := c.Render(market.KindLine, volumeFrame(2), Meta{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if _, err := c.Render(market.KindCandlestick, history.Frame{}, Meta{}); err == nil {
		t.Fatal("expected error for empty candlestick frame")
	}
	if c.Current() != first || first.Destroyed() {
		t.Fatal("failed render must leave the current chart untouched")
	}
}

func TestCanvasRefusesSecondLiveChart(t *testing.T) {
	var canvas Canvas
	a := NewChart(market.KindLine, Config{}, Meta{})
	b := NewChart(market.KindLine, Config{}, Meta{})
	if err := canvas.Bind(a); err != nil {
		t.Fatalf("Bind(a) error = %v", err)
	}
	if err := canvas.Bind(b); !errors.Is(err, ErrCanvasInUse) {
		t.Fatalf("Bind(b) error = %v; want %v", err, ErrCanvasInUse)
	}
	canvas.Release(a)
	if err := canvas.Bind(b); err != nil {
		t.Fatalf("Bind(b) after release error = %v", err)
	}
}

func TestConcurrentRendersLeaveOneLiveChart(t *testing.T) {
	c := NewController(nil)
	frame := volumeFrame(4)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := market.KindLine
			if i%2 == 0 {
				kind = market.KindVolume
			}
			if _, err := c.Render(kind, frame, Meta{}); err != nil {
				t.Errorf("Render() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := c.Live(); got != 1 {
		t.Fatalf("Live() = %d; want 1", got)
	}
	if c.Revision() != 32 {
		t.Fatalf("Revision() = %d; want 32", c.Revision())
	}
}

func TestDestroy(t *testing.T) {
	c := NewController(nil)
	ch, _ := c.Render(market.KindLine, volumeFrame(1), Meta{})
	c.Destroy()
	if c.Live() != 0 || c.Current() != nil || !ch.Destroyed() {
		t.Fatal("Destroy() should leave no live chart")
	}
}
