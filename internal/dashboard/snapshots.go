package dashboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/snapshot"
	"github.com/google/uuid"
)

// SnapshotStore persists rendered chart images.
type SnapshotStore interface {
	Save(meta snapshot.Meta, imageData []byte) error
	Get(id string) (snapshot.Meta, error)
	List() ([]snapshot.Meta, error)
	ReadImage(id string) ([]byte, string, error)
	Delete(id string) error
}

// Capturer renders the dashboard page headlessly.
type Capturer = snapshot.Capturer

// SnapshotRequest describes one chart snapshot.
type SnapshotRequest struct {
	Format  string
	Quality int
	Width   int
	Height  int
	Notes   string
}

func (s *Service) snapshotStore() (SnapshotStore, error) {
	if s.opts.Snapshots == nil {
		return nil, &backend.CodedError{Code: backend.CodeUnavailable, Message: "snapshot store is not configured"}
	}
	return s.opts.Snapshots, nil
}

// TakeSnapshot captures the live chart as an image and stores it.
func (s *Service) TakeSnapshot(ctx context.Context, req SnapshotRequest) (snapshot.Meta, error) {
	store, err := s.snapshotStore()
	if err != nil {
		return snapshot.Meta{}, err
	}
	if s.opts.Capturer == nil {
		return snapshot.Meta{}, &backend.CodedError{Code: backend.CodeUnavailable, Message: "chart capture is not configured"}
	}

	switch req.Format {
	case "":
		req.Format = "png"
	case "png", "jpeg":
	case "jpg":
		req.Format = "jpeg"
	default:
		return snapshot.Meta{}, backend.Validation("format must be png or jpeg")
	}
	if req.Quality < 0 || req.Quality > 100 {
		return snapshot.Meta{}, backend.Validation("quality must be between 0 and 100")
	}

	current, err := s.CurrentChart()
	if err != nil {
		return snapshot.Meta{}, err
	}

	s.mu.Lock()
	pageURL := s.pageURL
	s.mu.Unlock()
	if pageURL == "" {
		return snapshot.Meta{}, &backend.CodedError{Code: backend.CodeUnavailable, Message: "dashboard page address is not known yet"}
	}

	img, err := s.opts.Capturer.Capture(ctx, snapshot.Request{
		URL:     pageURL + "/?embed=1",
		Format:  req.Format,
		Quality: req.Quality,
		Width:   req.Width,
		Height:  req.Height,
	})
	if err != nil {
		return snapshot.Meta{}, err
	}

	meta := snapshot.Meta{
		ID:        uuid.NewString(),
		ChartID:   current.ID,
		Revision:  current.Revision,
		CoinID:    current.Selection.CoinID,
		Range:     current.Selection.Range,
		Kind:      string(current.Kind),
		Title:     current.Title,
		Format:    req.Format,
		Width:     req.Width,
		Height:    req.Height,
		SizeBytes: len(img),
		CreatedAt: time.Now().UTC(),
		Notes:     req.Notes,
	}
	if err := store.Save(meta, img); err != nil {
		return snapshot.Meta{}, err
	}
	slog.Info("chart snapshot stored", "id", meta.ID, "coin", meta.CoinID, "kind", meta.Kind, "bytes", meta.SizeBytes)
	return meta, nil
}

func (s *Service) ListSnapshots() ([]snapshot.Meta, error) {
	store, err := s.snapshotStore()
	if err != nil {
		return nil, err
	}
	return store.List()
}

func (s *Service) GetSnapshot(id string) (snapshot.Meta, error) {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return snapshot.Meta{}, err
	}
	store, err := s.snapshotStore()
	if err != nil {
		return snapshot.Meta{}, err
	}
	return store.Get(id)
}

func (s *Service) ReadSnapshotImage(id string) ([]byte, string, error) {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return nil, "", err
	}
	store, err := s.snapshotStore()
	if err != nil {
		return nil, "", err
	}
	return store.ReadImage(id)
}

func (s *Service) DeleteSnapshot(id string) error {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return err
	}
	store, err := s.snapshotStore()
	if err != nil {
		return err
	}
	return store.Delete(id)
}
