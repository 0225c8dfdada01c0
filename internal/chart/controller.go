package chart

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/coindash/internal/history"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/metrics"
)

// ErrCanvasInUse is returned when a chart is bound to a canvas that still
// holds a live chart.
var ErrCanvasInUse = errors.New("canvas already in use")

var chartIDs atomic.Uint64

// Chart is one rendered chart instance. It is never mutated after creation;
// a new selection replaces it.
type Chart struct {
	ID        uint64           `json:"id"`
	Kind      market.ChartKind `json:"kind"`
	Meta      Meta             `json:"meta"`
	Config    Config           `json:"config"`
	CreatedAt time.Time        `json:"created_at"`

	destroyed atomic.Bool
}

// NewChart creates an unbound chart.
func NewChart(kind market.ChartKind, cfg Config, meta Meta) *Chart {
	return &Chart{
		ID:        chartIDs.Add(1),
		Kind:      kind,
		Meta:      meta,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
}

// Destroyed reports whether the chart has been torn down.
func (c *Chart) Destroyed() bool {
	return c.destroyed.Load()
}

// Canvas is the drawing surface. It holds at most one live chart.
type Canvas struct {
	mu    sync.Mutex
	bound *Chart
}

// Bind attaches ch to the canvas.
func (c *Canvas) Bind(ch *Chart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound != nil && !c.bound.Destroyed() {
		return ErrCanvasInUse
	}
	c.bound = ch
	return nil
}

// Release destroys ch and frees the canvas if ch is bound to it.
func (c *Canvas) Release(ch *Chart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch.destroyed.Store(true)
	if c.bound == ch {
		c.bound = nil
	}
}

// Live returns the number of live charts bound to the canvas.
func (c *Canvas) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil || c.bound.Destroyed() {
		return 0
	}
	return 1
}

// Controller owns the single chart slot.
type Controller struct {
	mu       sync.Mutex
	canvas   *Canvas
	current  *Chart
	revision uint64
}

// NewController creates a Controller drawing on canvas. A nil canvas gets a
// fresh one.
func NewController(canvas *Canvas) *Controller {
	if canvas == nil {
		canvas = &Canvas{}
	}
	return &Controller{canvas: canvas}
}

// Render builds the configuration for kind and replaces the current chart.
// On error the current chart is left untouched.
func (c *Controller) Render(kind market.ChartKind, frame history.Frame, meta Meta) (*Chart, error) {
	if kind == "" {
		kind = market.KindLine
	}
	cfg, err := Build(kind, frame, meta)
	if err != nil {
		return nil, err
	}
	ch := NewChart(kind, cfg, meta)
	if err := c.Replace(ch); err != nil {
		return nil, err
	}
	metrics.ChartRenders.WithLabelValues(string(kind)).Inc()
	return ch, nil
}

// Replace destroys the current chart, then binds and stores next.
func (c *Controller) Replace(next *Chart) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.current; prev != nil {
		c.canvas.Release(prev)
		c.current = nil
	}
	if err := c.canvas.Bind(next); err != nil {
		return err
	}
	c.current = next
	c.revision++
	slog.Debug("chart replaced", "chart_id", next.ID, "kind", next.Kind, "coin", next.Meta.Selection.CoinID, "revision", c.revision)
	return nil
}

// Current returns the live chart, or nil before the first render.
func (c *Controller) Current() *Chart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Revision counts successful replacements.
func (c *Controller) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

// Live returns the number of live charts on the controller's canvas.
func (c *Controller) Live() int {
	return c.canvas.Live()
}

// Destroy tears down the current chart.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.canvas.Release(c.current)
		c.current = nil
	}
}
