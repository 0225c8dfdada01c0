package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/notify"
	"github.com/shopspring/decimal"
)

type sourceFunc func(ctx context.Context) (backend.PriceSnapshot, error)

func (f sourceFunc) Prices(ctx context.Context) (backend.PriceSnapshot, error) { return f(ctx) }

type recordingSink struct {
	mu      sync.Mutex
	display map[string]string
	notes   []notify.Notification
	updates int
}

func newSink() *recordingSink {
	return &recordingSink{display: map[string]string{}}
}

func (s *recordingSink) ApplyQuotes(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	for _, q := range u.Quotes {
		s.display[q.CoinID] = q.Display()
	}
}

func (s *recordingSink) Notify(_ context.Context, n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
}

type recorderFunc func(Update) error

func (f recorderFunc) RecordQuotes(u Update) error { return f(u) }

func quote(id, usd string) market.CoinQuote {
	return market.CoinQuote{CoinID: id, USD: decimal.RequireFromString(usd)}
}

func scenarioSnapshot() backend.PriceSnapshot {
	return backend.PriceSnapshot{
		Quotes: map[string]market.CoinQuote{
			"bitcoin":  quote("bitcoin", "61000"),
			"ethereum": quote("ethereum", "3000"),
			"dogecoin": quote("dogecoin", "0.1"),
		},
		Alert:     true,
		Threshold: decimal.NewNullDecimal(decimal.RequireFromString("60000")),
	}
}

func TestPollOnceScenario(t *testing.T) {
	sink := newSink()
	var recorded int
	p := New(sourceFunc(func(context.Context) (backend.PriceSnapshot, error) {
		return scenarioSnapshot(), nil
	}), sink, Options{
		SoundURL: "http://example.com/beep.mp3",
		Recorder: recorderFunc(func(Update) error { recorded++; return nil }),
	})

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	want := map[string]string{"bitcoin": "$61000", "ethereum": "$3000", "dogecoin": "$0.1"}
	for id, w := range want {
		if got := sink.display[id]; got != w {
			t.Fatalf("display[%s] = %q; want %q", id, got, w)
		}
	}
	if len(sink.notes) != 1 {
		t.Fatalf("notifications = %d; want 1", len(sink.notes))
	}
	n := sink.notes[0]
	if !strings.Contains(n.Message, "60000") || !strings.Contains(n.Message, "61000") {
		t.Fatalf("message = %q; want threshold and price", n.Message)
	}
	if n.Message != "Bitcoin is below $60000! Current: $61000" {
		t.Fatalf("message = %q", n.Message)
	}
	if n.Title != "Price Alert" || n.SoundURL != "http://example.com/beep.mp3" {
		t.Fatalf("notification = %+v", n)
	}
	if recorded != 1 {
		t.Fatalf("recorded = %d; want 1", recorded)
	}
}

func TestPollOnceMalformedLeavesValues(t *testing.T) {
	sink := newSink()
	payload := scenarioSnapshot()
	p := New(sourceFunc(func(context.Context) (backend.PriceSnapshot, error) {
		return payload, nil
	}), sink, Options{})

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	payload = backend.PriceSnapshot{Quotes: map[string]market.CoinQuote{
		"ethereum": quote("ethereum", "1"),
		"dogecoin": quote("dogecoin", "1"),
	}}
	err := p.PollOnce(context.Background())
	if !backend.HasCode(err, backend.CodeMalformedResponse) {
		t.Fatalf("PollOnce() error = %v; want %s", err, backend.CodeMalformedResponse)
	}
	if sink.display["ethereum"] != "$3000" || sink.display["bitcoin"] != "$61000" {
		t.Fatalf("display = %v; want previous values", sink.display)
	}
	if sink.updates != 1 {
		t.Fatalf("updates = %d; want 1", sink.updates)
	}
}

func TestPollOnceNetworkFailure(t *testing.T) {
	sink := newSink()
	p := New(sourceFunc(func(context.Context) (backend.PriceSnapshot, error) {
		return backend.PriceSnapshot{}, &backend.CodedError{Code: backend.CodeNetworkFailure, Message: "down"}
	}), sink, Options{})
	if err := p.PollOnce(context.Background()); !backend.HasCode(err, backend.CodeNetworkFailure) {
		t.Fatalf("PollOnce() error = %v", err)
	}
	if sink.updates != 0 || len(sink.notes) != 0 {
		t.Fatal("failed poll must not touch the sink")
	}
}

func TestAlertSkippedWithoutAlertCoinQuote(t *testing.T) {
	sink := newSink()
	snap := scenarioSnapshot()
	p := New(sourceFunc(func(context.Context) (backend.PriceSnapshot, error) {
		return snap, nil
	}), sink, Options{DisplayCoins: []string{"ethereum"}, AlertCoin: "solana"})

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
	if len(sink.notes) != 0 {
		t.Fatalf("notifications = %d; want 0", len(sink.notes))
	}
}

func TestAlertRepeatsEveryPoll(t *testing.T) {
	sink := newSink()
	p := New(sourceFunc(func(context.Context) (backend.PriceSnapshot, error) {
		return scenarioSnapshot(), nil
	}), sink, Options{})
	for i := 0; i < 3; i++ {
		if err := p.PollOnce(context.Background()); err != nil {
			t.Fatalf("PollOnce() error = %v", err)
		}
	}
	if len(sink.notes) != 3 {
		t.Fatalf("notifications = %d; want 3", len(sink.notes))
	}
}

func TestRecorderFailureDoesNotFailPoll(t *testing.T) {
	p := New(sourceFunc(func(context.Context) (backend.PriceSnapshot, error) {
		return scenarioSnapshot(), nil
	}), newSink(), Options{Recorder: recorderFunc(func(Update) error { return errors.New("disk full") })})
	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
}

func TestOrderQuotesPutsDisplayCoinsFirst(t *testing.T) {
	snap := scenarioSnapshot()
	snap.Quotes["solana"] = quote("solana", "150")
	snap.Quotes["cardano"] = quote("cardano", "0.5")
	got := orderQuotes(snap, DefaultDisplayCoins)
	ids := make([]string, len(got))
	for i, q := range got {
		ids[i] = q.CoinID
	}
	if strings.Join(ids, ",") != "bitcoin,ethereum,dogecoin,cardano,solana" {
		t.Fatalf("order = %v", ids)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	var polls atomic.Int32
	p := New(sourceFunc(func(context.Context) (backend.PriceSnapshot, error) {
		polls.Add(1)
		return scenarioSnapshot(), nil
	}), newSink(), Options{Interval: 10 * time.Millisecond})

	p.Start(context.Background())
	p.Start(context.Background())
	if !p.Running() {
		t.Fatal("Running() = false after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for polls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("polls = %d; want at least 3", polls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	p.Stop()
	if p.Running() {
		t.Fatal("Running() = true after Stop")
	}
	after := polls.Load()
	time.Sleep(40 * time.Millisecond)
	if polls.Load() != after {
		t.Fatalf("polls continued after Stop: %d -> %d", after, polls.Load())
	}

	p.Stop()
	p.Start(context.Background())
	p.Stop()
	if polls.Load() <= after {
		t.Fatal("restarted poller should poll immediately")
	}
}
