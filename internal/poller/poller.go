package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/metrics"
	"github.com/dgnsrekt/coindash/internal/notify"
	"github.com/shopspring/decimal"
)

const (
	DefaultInterval = 10 * time.Second
	alertTitle      = "Price Alert"
)

// DefaultDisplayCoins must all be present for a quote update to apply.
var DefaultDisplayCoins = []string{"bitcoin", "ethereum", "dogecoin"}

// PriceSource fetches the current price snapshot.
type PriceSource interface {
	Prices(ctx context.Context) (backend.PriceSnapshot, error)
}

// Update is one applied poll.
type Update struct {
	Quotes []market.CoinQuote `json:"quotes"`
	// Alert is the backend's alert condition for this poll.
	Alert     bool                `json:"alert"`
	Threshold decimal.NullDecimal `json:"threshold"`
	At        time.Time           `json:"at"`
}

// QuoteSink receives applied polls and raised notifications.
type QuoteSink interface {
	ApplyQuotes(u Update)
	Notify(ctx context.Context, n notify.Notification)
}

// Recorder persists applied polls.
type Recorder interface {
	RecordQuotes(u Update) error
}

type Options struct {
	Interval     time.Duration
	DisplayCoins []string
	AlertCoin    string
	SoundURL     string
	Recorder     Recorder
}

// Poller refreshes quotes and alert state on a fixed interval.
type Poller struct {
	src  PriceSource
	sink QuoteSink
	opts Options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(src PriceSource, sink QuoteSink, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if len(opts.DisplayCoins) == 0 {
		opts.DisplayCoins = DefaultDisplayCoins
	}
	if opts.AlertCoin == "" {
		opts.AlertCoin = "bitcoin"
	}
	return &Poller{src: src, sink: sink, opts: opts}
}

// Start polls once immediately and then on every tick until Stop or ctx is
// done. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		p.run(ctx)
	}()
	slog.Info("poller started", "interval", p.opts.Interval, "coins", strings.Join(p.opts.DisplayCoins, ","))
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("poller stopped")
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		if err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("price poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce fetches prices and applies them. A payload missing any display
// coin is rejected as a whole and the sink is not touched.
func (p *Poller) PollOnce(ctx context.Context) error {
	snap, err := p.src.Prices(ctx)
	if err != nil {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		return err
	}

	if missing := snap.Missing(p.opts.DisplayCoins); len(missing) > 0 {
		metrics.PollsTotal.WithLabelValues("malformed").Inc()
		return &backend.CodedError{
			Code:    backend.CodeMalformedResponse,
			Message: fmt.Sprintf("price payload missing %s", strings.Join(missing, ",")),
		}
	}

	u := Update{
		Quotes:    orderQuotes(snap, p.opts.DisplayCoins),
		Alert:     snap.Alert,
		Threshold: snap.Threshold,
		At:        time.Now().UTC(),
	}
	p.sink.ApplyQuotes(u)
	metrics.PollsTotal.WithLabelValues("ok").Inc()

	if p.opts.Recorder != nil {
		if err := p.opts.Recorder.RecordQuotes(u); err != nil {
			slog.Warn("quote journal write failed", "error", err)
		}
	}

	if snap.Alert {
		p.raise(ctx, snap)
	}
	return nil
}

func (p *Poller) raise(ctx context.Context, snap backend.PriceSnapshot) {
	quote, ok := snap.Quote(p.opts.AlertCoin)
	if !ok {
		slog.Warn("alert raised without a quote for the alert coin; notification skipped", "coin", p.opts.AlertCoin)
		return
	}

	threshold := "your threshold"
	thresholdValue := ""
	if snap.Threshold.Valid {
		thresholdValue = snap.Threshold.Decimal.String()
		threshold = market.FormatUSD(snap.Threshold.Decimal)
	}

	n := notify.Notification{
		Title:     alertTitle,
		Message:   fmt.Sprintf("%s is below %s! Current: %s", coinName(p.opts.AlertCoin), threshold, quote.Display()),
		CoinID:    p.opts.AlertCoin,
		Threshold: thresholdValue,
		Price:     quote.USD.String(),
		SoundURL:  p.opts.SoundURL,
		At:        time.Now().UTC(),
	}
	metrics.AlertsFired.Inc()
	p.sink.Notify(ctx, n)
}

// orderQuotes lists display coins first, then any extra coins by id.
func orderQuotes(snap backend.PriceSnapshot, display []string) []market.CoinQuote {
	out := make([]market.CoinQuote, 0, len(snap.Quotes))
	seen := make(map[string]bool, len(display))
	for _, id := range display {
		out = append(out, snap.Quotes[id])
		seen[id] = true
	}
	var extra []string
	for id := range snap.Quotes {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		out = append(out, snap.Quotes[id])
	}
	return out
}

func coinName(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
