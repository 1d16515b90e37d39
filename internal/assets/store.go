// Package assets persists exported crops. The inspector only produces asset
// payloads; where they live is up to the Store.
package assets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/imaging"
)

// Asset is a saved crop.
type Asset struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Scale     float64   `json:"scale"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FileSize  int       `json:"file_size"`
	FileURL   string    `json:"file_url"`
	CreatedAt time.Time `json:"created_at"`
}

// FromCrop builds the asset payload for a crop result.
func FromCrop(name string, res *imaging.CropResult) Asset {
	return Asset{
		Name:     name,
		Format:   res.Format,
		Scale:    res.Scale,
		Width:    res.Width,
		Height:   res.Height,
		FileSize: res.FileSize,
		FileURL:  res.DataURL,
	}
}

// DefaultName returns name, or "selection-" and the last eight characters of
// the selection id when name is blank. Selections are unnamed until renamed.
func DefaultName(name, selectionID string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	id := strings.ReplaceAll(selectionID, "-", "")
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	if id == "" {
		return "selection"
	}
	return "selection-" + id
}

// Validate checks the fields every store requires.
func (a Asset) Validate() error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return apperrors.NewValidationError("asset name is required", nil)
	case a.Format == "":
		return apperrors.NewValidationError("asset format is required", nil)
	case a.Width <= 0 || a.Height <= 0:
		return apperrors.NewValidationError("asset dimensions must be positive", nil)
	case a.FileURL == "":
		return apperrors.NewValidationError("asset file url is required", nil)
	}
	return nil
}

// Store is the create/list/delete contract of the asset collaborator.
type Store interface {
	Create(ctx context.Context, a Asset) (Asset, error)
	List(ctx context.Context) ([]Asset, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore keeps assets for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]Asset
	newID  func() string
	now    func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(newID func() string, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{assets: make(map[string]Asset), newID: newID, now: now}
}

func (m *MemoryStore) Create(ctx context.Context, a Asset) (Asset, error) {
	if err := a.Validate(); err != nil {
		return Asset{}, err
	}
	a.ID = m.newID()
	a.CreatedAt = m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
	return a, nil
}

// List returns assets oldest first.
func (m *MemoryStore) List(ctx context.Context) ([]Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("asset %s not found", id), nil)
	}
	delete(m.assets, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
