package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/coindash/internal/backend"
)

// readySelector matches the page's chart canvas once Chart.js has drawn it.
const readySelector = `#chart[data-ready="true"]`

// Request describes one capture.
type Request struct {
	URL     string
	Format  string
	Quality int
	Width   int
	Height  int
}

// Capturer renders a page and returns the image bytes.
type Capturer interface {
	Capture(ctx context.Context, req Request) ([]byte, error)
}

// Renderer captures the dashboard page with headless Chrome. With a CDP URL
// it attaches to a running browser; otherwise it launches one.
type Renderer struct {
	cdpURL  string
	timeout time.Duration
}

func NewRenderer(cdpURL string, timeout time.Duration) *Renderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Renderer{cdpURL: cdpURL, timeout: timeout}
}

func (r *Renderer) allocator(ctx context.Context, width, height int) (context.Context, context.CancelFunc) {
	if r.cdpURL != "" {
		return chromedp.NewRemoteAllocator(ctx, r.cdpURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.WindowSize(width, height),
	)
	return chromedp.NewExecAllocator(ctx, opts...)
}

// Capture loads req.URL, waits for the chart to be drawn and screenshots the
// viewport.
func (r *Renderer) Capture(ctx context.Context, req Request) ([]byte, error) {
	if req.Width <= 0 {
		req.Width = 1280
	}
	if req.Height <= 0 {
		req.Height = 720
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, allocCancel := r.allocator(ctx, req.Width, req.Height)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	format := page.CaptureScreenshotFormatPng
	if req.Format == "jpeg" {
		format = page.CaptureScreenshotFormatJpeg
	}

	var buf []byte
	start := time.Now()
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(req.Width), int64(req.Height)),
		chromedp.Navigate(req.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			capture := page.CaptureScreenshot().WithFormat(format)
			if format == page.CaptureScreenshotFormatJpeg && req.Quality > 0 {
				capture = capture.WithQuality(int64(req.Quality))
			}
			data, err := capture.Do(ctx)
			if err != nil {
				return err
			}
			buf = data
			return nil
		}),
	)
	if err != nil {
		return nil, &backend.CodedError{
			Code:    backend.CodeUnavailable,
			Message: fmt.Sprintf("chart capture failed for %s", req.URL),
			Cause:   err,
		}
	}
	slog.Debug("chart captured", "url", req.URL, "format", req.Format, "bytes", len(buf), "duration", time.Since(start))
	return buf, nil
}
