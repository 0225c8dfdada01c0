package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/coindash/internal/alert"
	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/dashboard"
	"github.com/dgnsrekt/coindash/internal/metrics"
	"github.com/dgnsrekt/coindash/internal/snapshot"
	"github.com/dgnsrekt/coindash/internal/storage"
	"github.com/dgnsrekt/coindash/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is the dashboard surface the HTTP API drives.
type Service interface {
	View() dashboard.ViewModel
	SelectCoin(ctx context.Context, coinID string) (dashboard.ViewModel, error)
	SetRange(ctx context.Context, raw string) (dashboard.ViewModel, error)
	SetChartKind(ctx context.Context, raw string) (dashboard.ViewModel, error)
	Refresh(ctx context.Context) (dashboard.ViewModel, error)
	CurrentChart() (dashboard.ChartView, error)
	SubmitAlert(ctx context.Context, raw string) (alert.Confirmation, error)
	ListFires(ctx context.Context, limit int) ([]storage.Fire, error)
	TakeSnapshot(ctx context.Context, req dashboard.SnapshotRequest) (snapshot.Meta, error)
	ListSnapshots() ([]snapshot.Meta, error)
	GetSnapshot(id string) (snapshot.Meta, error)
	ReadSnapshotImage(id string) ([]byte, string, error)
	DeleteSnapshot(id string) error
}

type viewOutput struct {
	Body dashboard.ViewModel
}

func NewServer(svc Service, broker *stream.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Coin Dashboard API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, dashboardHTML)
	})
	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, docsHTML)
	})
	router.Get("/docs/stream", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, streamDocsHTML)
	})
	router.Handle("/metrics", metrics.Handler())
	if broker != nil {
		router.Get("/events", stream.SSEHandler(broker))
		router.Get("/ws", stream.WSHandler(broker))
	}

	registerHealthHandlers(api)
	registerSelectionHandlers(api, svc)
	registerAlertHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

func writeHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(page)); err != nil {
		slog.Debug("page response write failed", "error", err)
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *backend.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case backend.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case backend.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		case backend.CodeSuperseded:
			return huma.Error409Conflict(coded.Message)
		case backend.CodeServerRejection, backend.CodeNetworkFailure, backend.CodeMalformedResponse:
			return huma.Error502BadGateway(coded.Message)
		case backend.CodeUnavailable:
			return huma.Error503ServiceUnavailable(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
