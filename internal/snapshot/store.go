package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/coindash/internal/backend"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Meta describes a stored chart snapshot.
type Meta struct {
	ID        string    `json:"id"`
	ChartID   uint64    `json:"chart_id"`
	Revision  uint64    `json:"revision"`
	CoinID    string    `json:"coin_id"`
	Range     string    `json:"range"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Store manages snapshot files on disk: <id>.<format> plus an <id>.json sidecar.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return backend.Validation(fmt.Sprintf("invalid snapshot id: %q", id))
	}
	return nil
}

func notFound(msg string) error {
	return &backend.CodedError{Code: backend.CodeNotFound, Message: msg}
}

// Save writes both the image file and metadata sidecar.
func (s *Store) Save(meta Meta, imageData []byte) error {
	if err := validateID(meta.ID); err != nil {
		return err
	}
	if meta.Format != "png" && meta.Format != "jpeg" {
		return backend.Validation(fmt.Sprintf("unsupported snapshot format %q", meta.Format))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := filepath.Join(s.dir, meta.ID+"."+meta.Format)
	jsonPath := filepath.Join(s.dir, meta.ID+".json")

	if err := os.WriteFile(imgPath, imageData, 0o644); err != nil {
		return fmt.Errorf("snapshot store: write image: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(imgPath)
		return fmt.Errorf("snapshot store: marshal meta: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		_ = os.Remove(imgPath)
		return fmt.Errorf("snapshot store: write meta: %w", err)
	}

	return nil
}

// Get reads snapshot metadata by ID.
func (s *Store) Get(id string) (Meta, error) {
	if err := validateID(id); err != nil {
		return Meta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, notFound("snapshot not found: " + id)
		}
		return Meta{}, fmt.Errorf("snapshot store: read meta: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("snapshot store: unmarshal meta: %w", err)
	}
	return meta, nil
}

// List returns all snapshots, newest first.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: glob: %w", err)
	}

	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("snapshot meta unreadable", "path", path, "error", err)
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Debug("snapshot meta invalid", "path", path, "error", err)
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage reads the raw image bytes and returns the format.
func (s *Store) ReadImage(id string) ([]byte, string, error) {
	if err := validateID(id); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, id+"."+meta.Format))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", notFound("snapshot image not found: " + id)
		}
		return nil, "", fmt.Errorf("snapshot store: read image: %w", err)
	}
	return data, meta.Format, nil
}

// Delete removes both the image and metadata files.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, id+"."+meta.Format)); err != nil {
		slog.Debug("snapshot image cleanup failed", "id", id, "error", err)
	}
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil {
		return fmt.Errorf("snapshot store: remove meta: %w", err)
	}
	return nil
}
