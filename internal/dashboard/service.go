package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/coindash/internal/alert"
	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/chart"
	"github.com/dgnsrekt/coindash/internal/config"
	"github.com/dgnsrekt/coindash/internal/history"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/notify"
	"github.com/dgnsrekt/coindash/internal/poller"
	"github.com/dgnsrekt/coindash/internal/storage"
	"github.com/dgnsrekt/coindash/internal/stream"
)

// FireLister lists stored alert notifications.
type FireLister interface {
	Recent(ctx context.Context, limit int) ([]storage.Fire, error)
}

// Options wires the service's collaborators. Notifier, Fires, Snapshots and
// Capturer are optional.
type Options struct {
	Loader      *history.Loader
	Charts      *chart.Controller
	Alerts      *alert.Submitter
	Broker      *stream.Broker
	Catalog     *config.Catalog
	Notifier    notify.Notifier
	Fires       FireLister
	Snapshots   SnapshotStore
	Capturer    Capturer
	Candlestick bool
	SoundURL    string
}

// Service owns the dashboard view model. Poller ticks, history loads and
// alert submissions apply their results under one lock.
type Service struct {
	opts Options

	mu              sync.Mutex
	selection       market.Selection
	quotes          map[string]market.CoinQuote
	alertState      market.AlertState
	notification    *notify.Notification
	quotesUpdatedAt time.Time
	loadCancel      context.CancelFunc
	pageURL         string
}

func NewService(opts Options) *Service {
	if opts.Catalog == nil {
		opts.Catalog = config.DefaultCatalog()
	}
	if opts.Broker == nil {
		opts.Broker = stream.NewBroker()
	}
	if opts.Charts == nil {
		opts.Charts = chart.NewController(nil)
	}
	return &Service{
		opts:   opts,
		quotes: make(map[string]market.CoinQuote),
	}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return backend.Validation(fieldName + " is required")
	}
	return nil
}

// Broker returns the event broker the service publishes to.
func (s *Service) Broker() *stream.Broker {
	return s.opts.Broker
}

// SetPageURL records where the dashboard page is served, for snapshots.
func (s *Service) SetPageURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageURL = strings.TrimRight(url, "/")
}

// SelectCoin selects a coin with the default range and a line chart.
func (s *Service) SelectCoin(ctx context.Context, coinID string) (ViewModel, error) {
	if err := s.requireNonEmpty(coinID, "coin"); err != nil {
		return ViewModel{}, err
	}
	coinID = strings.ToLower(strings.TrimSpace(coinID))
	return s.load(ctx, market.Selection{CoinID: coinID, Range: market.DefaultRange, Kind: market.KindLine})
}

// SetRange changes the range of the current selection.
func (s *Service) SetRange(ctx context.Context, raw string) (ViewModel, error) {
	r, err := market.ParseRange(raw)
	if err != nil {
		return ViewModel{}, backend.Validation(err.Error())
	}
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()
	if err := s.requireNonEmpty(sel.CoinID, "coin"); err != nil {
		return ViewModel{}, err
	}
	sel.Range = r
	return s.load(ctx, sel)
}

// SetChartKind changes the chart kind of the current selection.
func (s *Service) SetChartKind(ctx context.Context, raw string) (ViewModel, error) {
	kind, err := market.ParseChartKind(raw)
	if err != nil {
		return ViewModel{}, backend.Validation(err.Error())
	}
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()
	if err := s.requireNonEmpty(sel.CoinID, "coin"); err != nil {
		return ViewModel{}, err
	}
	sel.Kind = kind
	return s.load(ctx, sel)
}

// Refresh reloads the current selection.
func (s *Service) Refresh(ctx context.Context) (ViewModel, error) {
	s.mu.Lock()
	sel := s.selection
	s.mu.Unlock()
	if err := s.requireNonEmpty(sel.CoinID, "coin"); err != nil {
		return ViewModel{}, err
	}
	return s.load(ctx, sel)
}

// load makes sel the current selection, cancels any in-flight load and
// renders the result if no newer load has been issued meanwhile.
func (s *Service) load(ctx context.Context, sel market.Selection) (ViewModel, error) {
	sel, err := s.opts.Loader.Validate(sel)
	if err != nil {
		return ViewModel{}, err
	}

	s.mu.Lock()
	if s.loadCancel != nil {
		s.loadCancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.loadCancel = cancel
	s.selection = sel
	id := s.opts.Loader.Sequencer().Issue()
	s.mu.Unlock()
	defer cancel()

	s.opts.Broker.PublishJSON(stream.FeedSelection, selectionEvent{Selection: sel, Title: sel.Title()})

	res, err := s.opts.Loader.Fetch(loadCtx, id, sel)
	if err != nil {
		return ViewModel{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opts.Loader.Sequencer().IsLatest(res.RequestID) {
		return ViewModel{}, &backend.CodedError{
			Code:    backend.CodeSuperseded,
			Message: fmt.Sprintf("history load %d superseded", res.RequestID),
		}
	}

	meta := chart.Meta{Selection: res.Selection, Title: res.Selection.Title(), RequestID: res.RequestID}
	if coin, ok := s.opts.Catalog.Lookup(res.Selection.CoinID); ok {
		meta.Color = coin.Color
	}
	ch, err := s.opts.Charts.Render(res.Selection.Kind, res.Frame, meta)
	if err != nil {
		slog.Warn("chart render failed", "coin", sel.CoinID, "kind", sel.Kind, "error", err)
		return ViewModel{}, err
	}

	view := s.viewLocked()
	s.opts.Broker.PublishJSON(stream.FeedChart, newChartView(ch, s.opts.Charts.Revision()))
	slog.Info("chart rendered", "coin", sel.CoinID, "range", sel.Range, "kind", sel.Kind, "chart_id", ch.ID)
	return view, nil
}

// ApplyQuotes stores a poll result. It never touches the chart.
func (s *Service) ApplyQuotes(u poller.Update) {
	s.mu.Lock()
	for _, q := range u.Quotes {
		s.quotes[q.CoinID] = q
	}
	s.alertState.Armed = u.Alert
	if u.Threshold.Valid {
		s.alertState.Threshold = u.Threshold.Decimal
	}
	s.quotesUpdatedAt = u.At
	coins := s.coinsLocked()
	alertState := s.alertState
	s.mu.Unlock()

	s.opts.Broker.PublishJSON(stream.FeedQuotes, quotesEvent{Coins: coins, Alert: alertState, At: u.At})
}

// Notify shows a notification on the page and fans it out.
func (s *Service) Notify(ctx context.Context, n notify.Notification) {
	s.mu.Lock()
	note := n
	s.notification = &note
	s.mu.Unlock()

	s.opts.Broker.PublishJSON(stream.FeedNotification, n)
	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.Notify(ctx, n); err != nil {
			slog.Warn("alert notification delivery failed", "error", err)
		}
	}
}

// SubmitAlert validates and submits a new threshold.
func (s *Service) SubmitAlert(ctx context.Context, raw string) (alert.Confirmation, error) {
	conf, err := s.opts.Alerts.Submit(ctx, raw)
	if err != nil {
		return alert.Confirmation{}, err
	}

	s.mu.Lock()
	s.alertState.Threshold = conf.Threshold
	alertState := s.alertState
	s.mu.Unlock()

	s.opts.Broker.PublishJSON(stream.FeedAlert, alertEvent{Alert: alertState, Message: conf.Message})
	return conf, nil
}

// View returns a copy of the current view model.
func (s *Service) View() ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// CurrentChart returns the live chart.
func (s *Service) CurrentChart() (ChartView, error) {
	ch := s.opts.Charts.Current()
	if ch == nil {
		return ChartView{}, &backend.CodedError{Code: backend.CodeNotFound, Message: "no chart rendered yet"}
	}
	return newChartView(ch, s.opts.Charts.Revision()), nil
}

// ListFires returns recent alert notifications.
func (s *Service) ListFires(ctx context.Context, limit int) ([]storage.Fire, error) {
	if s.opts.Fires == nil {
		return nil, &backend.CodedError{Code: backend.CodeUnavailable, Message: "alert log is not configured"}
	}
	return s.opts.Fires.Recent(ctx, limit)
}

// Close cancels any in-flight load and tears down the chart.
func (s *Service) Close() {
	s.mu.Lock()
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.mu.Unlock()
	s.opts.Charts.Destroy()
}

func (s *Service) coinsLocked() []CoinView {
	coins := make([]CoinView, 0, len(s.opts.Catalog.Coins))
	for _, c := range s.opts.Catalog.Coins {
		cv := CoinView{ID: c.ID, Label: c.Label, Symbol: c.Symbol, Color: c.Color, Required: c.Required}
		if q, ok := s.quotes[c.ID]; ok {
			usd := q.USD
			cv.USD = &usd
			cv.Price = q.Display()
		}
		coins = append(coins, cv)
	}
	return coins
}

func (s *Service) viewLocked() ViewModel {
	v := ViewModel{
		Selection:          s.selection,
		Coins:              s.coinsLocked(),
		Alert:              s.alertState,
		QuotesUpdatedAt:    s.quotesUpdatedAt,
		CandlestickEnabled: s.opts.Candlestick,
		SoundURL:           s.opts.SoundURL,
	}
	if s.selection.CoinID != "" {
		v.Title = s.selection.Title()
	}
	if s.notification != nil {
		n := *s.notification
		v.Notification = &n
	}
	if ch := s.opts.Charts.Current(); ch != nil {
		cv := newChartView(ch, s.opts.Charts.Revision())
		v.Chart = &cv
	}
	return v
}
