package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/coindash/internal/alert"
	"github.com/dgnsrekt/coindash/internal/storage"
)

func registerAlertHandlers(api huma.API, svc Service) {
	type submitAlertOutput struct {
		Body alert.Confirmation
	}
	huma.Register(api, huma.Operation{OperationID: "set-alert", Method: http.MethodPost, Path: "/api/v1/alert", Summary: "Set price alert threshold", Description: "Price is the raw text typed by the user; it must parse as a positive number.", Tags: []string{"Alerts"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Price string `json:"price" doc:"Threshold in USD" example:"60000"`
			}
		}) (*submitAlertOutput, error) {
			conf, err := svc.SubmitAlert(ctx, input.Body.Price)
			if err != nil {
				return nil, mapErr(err)
			}
			return &submitAlertOutput{Body: conf}, nil
		})

	type listFiresOutput struct {
		Body struct {
			Fires []storage.Fire `json:"fires"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-alert-fires", Method: http.MethodGet, Path: "/api/v1/alerts/fires", Summary: "List raised alerts", Tags: []string{"Alerts"}},
		func(ctx context.Context, input *struct {
			Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
		}) (*listFiresOutput, error) {
			fires, err := svc.ListFires(ctx, input.Limit)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listFiresOutput{}
			out.Body.Fires = fires
			if out.Body.Fires == nil {
				out.Body.Fires = []storage.Fire{}
			}
			return out, nil
		})
}
