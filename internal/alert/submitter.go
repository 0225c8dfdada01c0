package alert

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/market"
	"github.com/dgnsrekt/coindash/internal/metrics"
	"github.com/shopspring/decimal"
)

// InvalidPriceMessage is shown when the entered threshold is not usable.
const InvalidPriceMessage = "please enter a valid positive price"

// Setter posts a threshold to the backend.
type Setter interface {
	SetAlert(ctx context.Context, price decimal.Decimal) (backend.AlertAck, error)
}

// Confirmation is what the user sees after a successful submission.
type Confirmation struct {
	Threshold decimal.Decimal `json:"threshold"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
}

// Submitter validates and submits alert thresholds.
type Submitter struct {
	setter Setter
}

func NewSubmitter(setter Setter) *Submitter {
	return &Submitter{setter: setter}
}

// Validate parses raw as a positive price.
func Validate(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, backend.Validation(InvalidPriceMessage)
	}
	price, err := decimal.NewFromString(s)
	if err != nil || !price.IsPositive() {
		return decimal.Decimal{}, backend.Validation(InvalidPriceMessage)
	}
	return price, nil
}

// Submit validates raw and posts it. Invalid input never reaches the network.
func (s *Submitter) Submit(ctx context.Context, raw string) (Confirmation, error) {
	price, err := Validate(raw)
	if err != nil {
		metrics.AlertSubmissions.WithLabelValues("invalid").Inc()
		return Confirmation{}, err
	}

	ack, err := s.setter.SetAlert(ctx, price)
	if err != nil {
		metrics.AlertSubmissions.WithLabelValues("error").Inc()
		slog.Warn("alert submission failed", "price", price.String(), "error", err)
		return Confirmation{}, err
	}

	metrics.AlertSubmissions.WithLabelValues("ok").Inc()
	slog.Info("alert threshold set", "threshold", ack.Threshold.String())
	return Confirmation{
		Threshold: ack.Threshold,
		Status:    ack.Status,
		Message:   "Alert set! You will be notified when the price drops below " + market.FormatUSD(ack.Threshold),
	}, nil
}
