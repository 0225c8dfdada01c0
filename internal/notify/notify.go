package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Notification is a one-shot price alert raised by the poller.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CoinID    string    `json:"coin_id"`
	Threshold string    `json:"threshold"`
	Price     string    `json:"price"`
	SoundURL  string    `json:"sound_url,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers a notification somewhere.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, target := range m {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to the structured log.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("price alert", "coin", n.CoinID, "threshold", n.Threshold, "price", n.Price, "message", n.Message)
	return nil
}

// NTFY posts notifications to an ntfy topic.
type NTFY struct {
	Client   *http.Client
	Endpoint string
}

func (n NTFY) Notify(ctx context.Context, note Notification) error {
	header := http.Header{}
	if note.Title != "" {
		header.Set("Title", note.Title)
	}
	header.Set("Tags", "warning")
	return send(ctx, n.Client, n.Endpoint, note.Message, header)
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	return send(ctx, client, endpoint, message, nil)
}

func send(ctx context.Context, client *http.Client, endpoint, message string, header http.Header) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
