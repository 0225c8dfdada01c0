package dashboard

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/coindash/internal/alert"
	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/chart"
	"github.com/dgnsrekt/coindash/internal/history"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/notify"
	"github.com/dgnsrekt/coindash/internal/poller"
	"github.com/dgnsrekt/coindash/internal/snapshot"
	"github.com/dgnsrekt/coindash/internal/stream"
	"github.com/shopspring/decimal"
)

type fakeSource struct {
	mu      sync.Mutex
	entered chan string
	block   map[string]bool
}

func (f *fakeSource) History(ctx context.Context, coinID string) (backend.History, error) {
	if f.entered != nil {
		f.entered <- coinID
	}
	f.mu.Lock()
	block := f.block[coinID]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return backend.History{}, &backend.CodedError{Code: backend.CodeNetworkFailure, Message: "canceled", Cause: ctx.Err()}
	}
	return backend.History{
		Prices: []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(3)},
		Labels: []string{"Mon", "Tue", "Wed"},
	}, nil
}

func (f *fakeSource) MarketChart(_ context.Context, _ string, days string) (backend.MarketChart, error) {
	n := 7
	if days == "1" {
		n = 24
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(base int64) []market.PricePoint {
		out := make([]market.PricePoint, n)
		for i := range out {
			out[i] = market.PricePoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Value: decimal.NewFromInt(base + int64(i))}
		}
		return out
	}
	return backend.MarketChart{Prices: mk(3000), Volumes: mk(10), MarketCaps: mk(9000)}, nil
}

func (f *fakeSource) OHLC(context.Context, string, string) ([]market.Candle, error) {
	return nil, nil
}

type setterFunc func(ctx context.Context, price decimal.Decimal) (backend.AlertAck, error)

func (f setterFunc) SetAlert(ctx context.Context, price decimal.Decimal) (backend.AlertAck, error) {
	return f(ctx, price)
}

func newTestService(t *testing.T, src *fakeSource, opts Options) *Service {
	t.Helper()
	if src == nil {
		src = &fakeSource{}
	}
	opts.Loader = history.NewLoader(src, opts.Candlestick)
	if opts.Alerts == nil {
		opts.Alerts = alert.NewSubmitter(setterFunc(func(_ context.Context, p decimal.Decimal) (backend.AlertAck, error) {
			return backend.AlertAck{Status: "success", Threshold: p}, nil
		}))
	}
	return NewService(opts)
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("bitcoin", "coin"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}

	err := s.requireNonEmpty("   ", "coin")
	var got *backend.CodedError
	if !errors.As(err, &got) {
		t.Fatalf("requireNonEmpty() = %T; want *backend.CodedError", err)
	}
	if got.Code != backend.CodeValidation || got.Message != "coin is required" {
		t.Fatalf("requireNonEmpty() = %q/%q", got.Code, got.Message)
	}
}

func TestSelectCoinRendersLineChart(t *testing.T) {
	s := newTestService(t, nil, Options{})

	view, err := s.SelectCoin(context.Background(), " Bitcoin ")
	if err != nil {
		t.Fatalf("SelectCoin() error = %v", err)
	}
	if view.Selection.CoinID != "bitcoin" || view.Selection.Kind != market.KindLine {
		t.Fatalf("Selection = %+v", view.Selection)
	}
	if view.Title != "Price Trend (BITCOIN - Past Week)" {
		t.Fatalf("Title = %q", view.Title)
	}
	if view.Chart == nil || view.Chart.Config.Type != "line" {
		t.Fatalf("Chart = %+v", view.Chart)
	}
	if got := view.Chart.Config.Data.Datasets[0].BorderColor; got != "#f7931a" {
		t.Fatalf("border = %q; want catalog color", got)
	}
}

func TestSetRangeAndKindReplaceChart(t *testing.T) {
	s := newTestService(t, nil, Options{})
	ctx := context.Background()

	if _, err := s.SetRange(ctx, "7"); !backend.HasCode(err, backend.CodeValidation) {
		t.Fatalf("SetRange() before selection error = %v; want %s", err, backend.CodeValidation)
	}
	if _, err := s.SelectCoin(ctx, "ethereum"); err != nil {
		t.Fatalf("SelectCoin() error = %v", err)
	}
	if _, err := s.SetRange(ctx, "7"); err != nil {
		t.Fatalf("SetRange() error = %v", err)
	}
	view, err := s.SetChartKind(ctx, "volume")
	if err != nil {
		t.Fatalf("SetChartKind() error = %v", err)
	}

	cfg := view.Chart.Config
	if len(cfg.Data.Datasets) != 3 {
		t.Fatalf("datasets = %d; want 3", len(cfg.Data.Datasets))
	}
	for _, ds := range cfg.Data.Datasets {
		if n := len(ds.Data.([]decimal.Decimal)); n != 7 {
			t.Fatalf("dataset %q length = %d; want 7", ds.Label, n)
		}
	}
	if _, ok := cfg.Options.Scales["y1"]; !ok {
		t.Fatal("missing right y axis")
	}
	if view.Chart.Revision != 3 {
		t.Fatalf("Revision = %d; want 3", view.Chart.Revision)
	}
	if s.opts.Charts.Live() != 1 {
		t.Fatalf("Live() = %d; want 1", s.opts.Charts.Live())
	}

	if _, err := s.SetRange(ctx, "week"); !backend.HasCode(err, backend.CodeValidation) {
		t.Fatalf("SetRange(week) error = %v; want %s", err, backend.CodeValidation)
	}
	if _, err := s.SetChartKind(ctx, "candlestick"); !backend.HasCode(err, backend.CodeValidation) {
		t.Fatalf("SetChartKind(candlestick) error = %v; want disabled", err)
	}
	if cur, _ := s.CurrentChart(); cur.Kind != market.KindVolume {
		t.Fatalf("current kind = %q; want volume after rejected change", cur.Kind)
	}
}

func TestStaleSelectionIsDiscarded(t *testing.T) {
	src := &fakeSource{entered: make(chan string, 4), block: map[string]bool{"bitcoin": true}}
	s := newTestService(t, src, Options{})
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := s.SelectCoin(ctx, "bitcoin")
		first <- err
	}()
	if got := <-src.entered; got != "bitcoin" {
		t.Fatalf("entered = %q; want bitcoin", got)
	}

	view, err := s.SelectCoin(ctx, "dogecoin")
	if err != nil {
		t.Fatalf("SelectCoin(dogecoin) error = %v", err)
	}

	select {
	case err := <-first:
		if !backend.HasCode(err, backend.CodeSuperseded) {
			t.Fatalf("stale SelectCoin() error = %v; want %s", err, backend.CodeSuperseded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stale load was not cancelled")
	}

	if view.Chart == nil || view.Chart.Selection.CoinID != "dogecoin" {
		t.Fatalf("chart = %+v; want dogecoin", view.Chart)
	}
	cur, err := s.CurrentChart()
	if err != nil || cur.Selection.CoinID != "dogecoin" {
		t.Fatalf("CurrentChart() = %+v, %v", cur, err)
	}
	if s.View().Selection.CoinID != "dogecoin" {
		t.Fatalf("selection = %q", s.View().Selection.CoinID)
	}
}

func TestApplyQuotesPublishes(t *testing.T) {
	broker := stream.NewBroker()
	_, events := broker.Subscribe()
	s := newTestService(t, nil, Options{Broker: broker})

	s.ApplyQuotes(poller.Update{
		Quotes: []market.CoinQuote{
			{CoinID: "bitcoin", USD: decimal.RequireFromString("61000")},
			{CoinID: "ethereum", USD: decimal.RequireFromString("3000")},
			{CoinID: "dogecoin", USD: decimal.RequireFromString("0.1")},
		},
		Alert:     true,
		Threshold: decimal.NewNullDecimal(decimal.RequireFromString("60000")),
		At:        time.Now().UTC(),
	})

	view := s.View()
	want := map[string]string{"bitcoin": "$61000", "ethereum": "$3000", "dogecoin": "$0.1"}
	for _, c := range view.Coins {
		if c.Price != want[c.ID] {
			t.Fatalf("coin %s price = %q; want %q", c.ID, c.Price, want[c.ID])
		}
	}
	if !view.Alert.Armed || view.Alert.Threshold.String() != "60000" {
		t.Fatalf("Alert = %+v", view.Alert)
	}

	evt := <-events
	if evt.Feed != stream.FeedQuotes || !strings.Contains(evt.Payload, `"$61000"`) {
		t.Fatalf("event = %+v", evt)
	}
}

func TestNotifyStoresAndFansOut(t *testing.T) {
	var delivered []notify.Notification
	broker := stream.NewBroker()
	_, events := broker.Subscribe()
	s := newTestService(t, nil, Options{
		Broker: broker,
		Notifier: notify.Func(func(_ context.Context, n notify.Notification) error {
			delivered = append(delivered, n)
			return errors.New("ntfy down")
		}),
	})

	n := notify.Notification{Title: "Price Alert", Message: "Bitcoin is below $60000! Current: $59000"}
	s.Notify(context.Background(), n)

	if len(delivered) != 1 {
		t.Fatalf("delivered = %d; want 1", len(delivered))
	}
	if v := s.View(); v.Notification == nil || v.Notification.Message != n.Message {
		t.Fatalf("Notification = %+v", v.Notification)
	}
	if evt := <-events; evt.Feed != stream.FeedNotification {
		t.Fatalf("feed = %q", evt.Feed)
	}
}

func TestSubmitAlertUpdatesThreshold(t *testing.T) {
	calls := 0
	s := newTestService(t, nil, Options{
		Alerts: alert.NewSubmitter(setterFunc(func(_ context.Context, p decimal.Decimal) (backend.AlertAck, error) {
			calls++
			return backend.AlertAck{Status: "success", Threshold: p}, nil
		})),
	})

	conf, err := s.SubmitAlert(context.Background(), "42.5")
	if err != nil {
		t.Fatalf("SubmitAlert() error = %v", err)
	}
	if !strings.Contains(conf.Message, "42.5") {
		t.Fatalf("Message = %q", conf.Message)
	}
	if s.View().Alert.Threshold.String() != "42.5" {
		t.Fatalf("Threshold = %s", s.View().Alert.Threshold)
	}

	if _, err := s.SubmitAlert(context.Background(), "-5"); !backend.HasCode(err, backend.CodeValidation) {
		t.Fatalf("SubmitAlert(-5) error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("backend calls = %d; want 1", calls)
	}
}

type captureFunc func(ctx context.Context, req snapshot.Request) ([]byte, error)

func (f captureFunc) Capture(ctx context.Context, req snapshot.Request) ([]byte, error) {
	return f(ctx, req)
}

func TestTakeSnapshot(t *testing.T) {
	store, err := snapshot.NewStore(filepath.Join(t.TempDir(), "snaps"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	var gotURL string
	s := newTestService(t, nil, Options{
		Snapshots: store,
		Capturer: captureFunc(func(_ context.Context, req snapshot.Request) ([]byte, error) {
			gotURL = req.URL
			return []byte("PNG"), nil
		}),
	})

	if _, err := s.TakeSnapshot(context.Background(), SnapshotRequest{}); !backend.HasCode(err, backend.CodeNotFound) {
		t.Fatalf("TakeSnapshot() without chart error = %v; want %s", err, backend.CodeNotFound)
	}

	if _, err := s.SelectCoin(context.Background(), "bitcoin"); err != nil {
		t.Fatalf("SelectCoin() error = %v", err)
	}
	if _, err := s.TakeSnapshot(context.Background(), SnapshotRequest{}); !backend.HasCode(err, backend.CodeUnavailable) {
		t.Fatalf("TakeSnapshot() without page url error = %v; want %s", err, backend.CodeUnavailable)
	}

	s.SetPageURL("http://127.0.0.1:8190/")
	meta, err := s.TakeSnapshot(context.Background(), SnapshotRequest{Format: "jpg", Notes: "weekly"})
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	if gotURL != "http://127.0.0.1:8190/?embed=1" {
		t.Fatalf("capture url = %q", gotURL)
	}
	if meta.Format != "jpeg" || meta.CoinID != "bitcoin" || meta.SizeBytes != 3 {
		t.Fatalf("meta = %+v", meta)
	}

	img, format, err := s.ReadSnapshotImage(meta.ID)
	if err != nil || format != "jpeg" || string(img) != "PNG" {
		t.Fatalf("ReadSnapshotImage() = %q, %q, %v", img, format, err)
	}
	if err := s.DeleteSnapshot(meta.ID); err != nil {
		t.Fatalf("DeleteSnapshot() error = %v", err)
	}
	if _, err := s.GetSnapshot(meta.ID); !backend.HasCode(err, backend.CodeNotFound) {
		t.Fatalf("GetSnapshot() after delete error = %v", err)
	}
}

func TestOptionalStoresUnavailable(t *testing.T) {
	s := newTestService(t, nil, Options{})
	if _, err := s.ListFires(context.Background(), 10); !backend.HasCode(err, backend.CodeUnavailable) {
		t.Fatalf("ListFires() error = %v", err)
	}
	if _, err := s.ListSnapshots(); !backend.HasCode(err, backend.CodeUnavailable) {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
}

func TestCloseDestroysChart(t *testing.T) {
	charts := chart.NewController(nil)
	s := newTestService(t, nil, Options{Charts: charts})
	if _, err := s.SelectCoin(context.Background(), "bitcoin"); err != nil {
		t.Fatalf("SelectCoin() error = %v", err)
	}
	s.Close()
	if charts.Live() != 0 {
		t.Fatalf("Live() = %d; want 0", charts.Live())
	}
}
