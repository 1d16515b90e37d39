package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/imaging"
	"github.com/ironsheep/design-spec-mcp/internal/logger"
	"github.com/ironsheep/design-spec-mcp/internal/measure"
	"github.com/ironsheep/design-spec-mcp/internal/ocr"
	"github.com/ironsheep/design-spec-mcp/internal/selection"
)

// ManagerOptions holds the settings shared by every session.
type ManagerOptions struct {
	Sampler            imaging.SamplerOptions
	Recognizer         ocr.Recognizer
	DuplicateTolerance int
	Selection          selection.Options
	GridSize           float64
	ProjectName        string

	// NewID and Now default to UUIDv7 and time.Now.
	NewID func() string
	Now   func() time.Time
}

// Manager tracks open sessions. Each session gets its own sampler so
// closing one never releases another's canvas.
type Manager struct {
	opts ManagerOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.NewID == nil {
		opts.NewID = NewID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GridSize <= 0 {
		opts.GridSize = 8
	}
	if opts.Selection == (selection.Options{}) {
		opts.Selection = selection.DefaultOptions()
	}
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// NewID returns a time-ordered UUID.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// OpenRequest identifies the image to inspect.
type OpenRequest struct {
	ImageURL    string
	FileID      string
	FileName    string
	ProjectName string
}

// Open creates a session and draws its image. The session is returned even
// when the image cannot be sampled; its color mode then explains why.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, apperrors.NewValidationError("image_url is required", nil)
	}
	project := req.ProjectName
	if project == "" {
		project = m.opts.ProjectName
	}

	s := newSession(m.opts.NewID(), Options{
		ImageURL:           req.ImageURL,
		FileID:             req.FileID,
		FileName:           req.FileName,
		ProjectName:        project,
		Sampler:            imaging.NewSampler(m.opts.Sampler),
		Recognizer:         m.opts.Recognizer,
		DuplicateTolerance: m.opts.DuplicateTolerance,
		Selection:          m.opts.Selection,
		Measure:            measure.Settings{Mode: measure.ModeDistance, GridSize: m.opts.GridSize},
		NewID:              m.opts.NewID,
		Now:                m.opts.Now,
	})
	s.Prepare(ctx)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"session": s.id,
		"image":   req.ImageURL,
	}).Info("session opened")
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil)
	}
	return s, nil
}

// Close closes and forgets a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil)
	}
	s.Close()
	return nil
}

// CloseAll closes every session.
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
	return len(all)
}

// IDs lists the open session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
