package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/coindash/internal/dashboard"
	"github.com/dgnsrekt/coindash/internal/snapshot"
)

func registerSnapshotHandlers(api huma.API, svc Service) {
	type takeSnapshotOutput struct {
		Body struct {
			Snapshot snapshot.Meta `json:"snapshot"`
			URL      string        `json:"url"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "take-snapshot", Method: http.MethodPost, Path: "/api/v1/snapshots", Summary: "Snapshot the live chart", Description: "Renders the dashboard page headlessly and stores an image of the chart.", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Format  string `json:"format,omitempty" doc:"Image format: png (default) or jpeg"`
				Quality int    `json:"quality,omitempty" doc:"JPEG quality 1-100 (ignored for PNG)"`
				Width   int    `json:"width,omitempty" doc:"Viewport width in pixels"`
				Height  int    `json:"height,omitempty" doc:"Viewport height in pixels"`
				Notes   string `json:"notes,omitempty" doc:"Free-form annotation for the snapshot"`
			}
		}) (*takeSnapshotOutput, error) {
			meta, err := svc.TakeSnapshot(ctx, dashboard.SnapshotRequest{
				Format:  input.Body.Format,
				Quality: input.Body.Quality,
				Width:   input.Body.Width,
				Height:  input.Body.Height,
				Notes:   input.Body.Notes,
			})
			if err != nil {
				return nil, mapErr(err)
			}
			out := &takeSnapshotOutput{}
			out.Body.Snapshot = meta
			out.Body.URL = "/api/v1/snapshots/" + meta.ID + "/image"
			return out, nil
		})

	type listSnapshotsOutput struct {
		Body struct {
			Snapshots []snapshot.Meta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List snapshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct{}) (*listSnapshotsOutput, error) {
			metas, err := svc.ListSnapshots()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSnapshotsOutput{}
			out.Body.Snapshots = metas
			if out.Body.Snapshots == nil {
				out.Body.Snapshots = []snapshot.Meta{}
			}
			return out, nil
		})

	type snapshotIDInput struct {
		SnapshotID string `path:"snapshot_id"`
	}
	type getSnapshotOutput struct {
		Body snapshot.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*getSnapshotOutput, error) {
			meta, err := svc.GetSnapshot(input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getSnapshotOutput{Body: meta}, nil
		})

	type deleteSnapshotOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Delete snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*deleteSnapshotOutput, error) {
			if err := svc.DeleteSnapshot(input.SnapshotID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteSnapshotOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})

	type snapshotImageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshots/{snapshot_id}/image",
		Summary:     "Get snapshot image",
		Tags:        []string{"Snapshots"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Snapshot image",
				Content: map[string]*huma.MediaType{
					"image/png":  {Schema: &huma.Schema{Type: "string", Format: "binary"}},
					"image/jpeg": {Schema: &huma.Schema{Type: "string", Format: "binary"}},
				},
			},
		},
	}, func(ctx context.Context, input *snapshotIDInput) (*snapshotImageOutput, error) {
		data, format, err := svc.ReadSnapshotImage(input.SnapshotID)
		if err != nil {
			return nil, mapErr(err)
		}
		ct := "image/png"
		if format == "jpeg" {
			ct = "image/jpeg"
		}
		return &snapshotImageOutput{ContentType: ct, Body: data}, nil
	})
}
