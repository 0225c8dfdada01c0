package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/coindash/internal/dashboard"
)

func registerHealthHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func registerSelectionHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-view", Method: http.MethodGet, Path: "/api/v1/view", Summary: "Get dashboard view", Description: "Prices, alert state, selection, live chart and last notification.", Tags: []string{"Dashboard"}},
		func(ctx context.Context, input *struct{}) (*viewOutput, error) {
			out := &viewOutput{}
			out.Body = svc.View()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "select-coin", Method: http.MethodPut, Path: "/api/v1/selection/coin", Summary: "Select coin", Description: "Loads the coin's default history as a line chart.", Tags: []string{"Selection"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Coin string `json:"coin" doc:"Coin id, e.g. bitcoin" example:"bitcoin"`
			}
		}) (*viewOutput, error) {
			view, err := svc.SelectCoin(ctx, input.Body.Coin)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: view}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-range", Method: http.MethodPut, Path: "/api/v1/selection/range", Summary: "Set time range", Tags: []string{"Selection"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Range string `json:"range" doc:"Day count (1, 7, 30, 90, 365) or empty for the default history" example:"30"`
			}
		}) (*viewOutput, error) {
			view, err := svc.SetRange(ctx, input.Body.Range)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: view}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-chart-kind", Method: http.MethodPut, Path: "/api/v1/selection/kind", Summary: "Set chart kind", Tags: []string{"Selection"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Kind string `json:"kind" enum:"line,candlestick,volume" example:"volume"`
			}
		}) (*viewOutput, error) {
			view, err := svc.SetChartKind(ctx, input.Body.Kind)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: view}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "refresh-chart", Method: http.MethodPost, Path: "/api/v1/selection/refresh", Summary: "Reload the current selection", Tags: []string{"Selection"}},
		func(ctx context.Context, input *struct{}) (*viewOutput, error) {
			view, err := svc.Refresh(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: view}, nil
		})

	type chartOutput struct {
		Body dashboard.ChartView
	}
	huma.Register(api, huma.Operation{OperationID: "get-chart", Method: http.MethodGet, Path: "/api/v1/chart", Summary: "Get live chart", Description: "Chart.js configuration and revision of the chart currently on the canvas.", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*chartOutput, error) {
			ch, err := svc.CurrentChart()
			if err != nil {
				return nil, mapErr(err)
			}
			return &chartOutput{Body: ch}, nil
		})
}
