// Package session owns everything collected while one image is inspected:
// selections, colors, typography and measurements, plus the canvas the
// samples are read from.
//
// Slow work (fetching and drawing the image) runs without holding the
// session lock. Each such call remembers the image generation it started
// with and drops its result when the image changed or the session closed in
// the meantime.
package session

import (
	"context"
	"fmt"
	"image"
	"math"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ironsheep/design-spec-mcp/internal/colors"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/export"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
	"github.com/ironsheep/design-spec-mcp/internal/imaging"
	"github.com/ironsheep/design-spec-mcp/internal/logger"
	"github.com/ironsheep/design-spec-mcp/internal/measure"
	"github.com/ironsheep/design-spec-mcp/internal/ocr"
	"github.com/ironsheep/design-spec-mcp/internal/selection"
	"github.com/ironsheep/design-spec-mcp/internal/typography"
)

// ErrStale is returned when the image changed or the session closed while a
// request was waiting for the canvas.
var ErrStale = &apperrors.AppError{
	Type:       apperrors.ErrorTypeValidation,
	Message:    "the image changed while the request was in flight",
	StatusCode: http.StatusConflict,
}

// Phase is the pointer event kind fed to the selection editor.
type Phase string

const (
	PhaseDown Phase = "down"
	PhaseMove Phase = "move"
	PhaseUp   Phase = "up"
)

// ColorMode reports whether pixel sampling is possible.
type ColorMode struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Options configures a session.
type Options struct {
	ImageURL    string
	FileID      string
	FileName    string
	ProjectName string

	Sampler            *imaging.Sampler
	Recognizer         ocr.Recognizer
	DuplicateTolerance int
	Selection          selection.Options
	Measure            measure.Settings

	NewID func() string
	Now   func() time.Time
}

// Session is one inspection. All methods are safe for concurrent use.
type Session struct {
	id   string
	opts Options

	mu         sync.Mutex
	closed     bool
	generation uint64
	imageURL   string
	natural    geometry.Size
	colorMode  ColorMode
	colorErr   error
	editor     selection.EditorState
	palette    *colors.Palette
	typography *typography.Collection
	measure    *measure.Engine
}

func newSession(id string, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FileName == "" {
		opts.FileName = path.Base(opts.ImageURL)
	}
	return &Session{
		id:         id,
		opts:       opts,
		imageURL:   opts.ImageURL,
		colorMode:  ColorMode{Enabled: true},
		editor:     selection.NewEditorState(opts.Selection),
		palette:    colors.NewPalette(opts.DuplicateTolerance, opts.NewID, opts.Now),
		typography: typography.NewCollection(opts.NewID, opts.Now),
		measure:    measure.NewEngine(opts.Measure, opts.NewID, opts.Now),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// begin captures the image generation for a slow call.
func (s *Session) begin() (uint64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, "", apperrors.NewNotFoundError("session is closed", nil)
	}
	return s.generation, s.imageURL, nil
}

// current reports whether gen is still the live generation. Callers hold mu.
func (s *Session) current(gen uint64) bool {
	return !s.closed && s.generation == gen
}

// canvas loads the image of generation gen. Structured load failures switch
// the session into degraded color mode.
func (s *Session) canvas(ctx context.Context, gen uint64, src string) (*imaging.Canvas, error) {
	c, err := s.opts.Sampler.Load(ctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		if err == nil && (s.closed || src != s.imageURL) {
			s.opts.Sampler.Release(src)
		}
		return nil, ErrStale
	}
	if err != nil {
		if degrading(err) {
			s.colorMode = ColorMode{Enabled: false, Reason: err.Error()}
			s.colorErr = err
			logger.WithFields(map[string]interface{}{
				"session": s.id,
				"source":  src,
			}).WithError(err).Warn("color extraction disabled")
		}
		return nil, err
	}
	s.natural = c.NaturalSize()
	s.colorMode = ColorMode{Enabled: true}
	s.colorErr = nil
	return c, nil
}

func degrading(err error) bool {
	return apperrors.IsType(err, apperrors.ErrorTypeCrossOriginBlocked) ||
		apperrors.IsType(err, apperrors.ErrorTypeImageFetchFailed) ||
		apperrors.IsType(err, apperrors.ErrorTypeCanvasContextUnavailable)
}

// Prepare draws the image so later samples are served from the cache. A
// load failure is not returned: it leaves the session in degraded color
// mode, which State reports.
func (s *Session) Prepare(ctx context.Context) {
	gen, src, err := s.begin()
	if err != nil {
		return
	}
	_, _ = s.canvas(ctx, gen, src)
}

// ChangeImage points the session at another image. The previous canvas is
// released and in-flight requests for it become stale. Collected artifacts
// are kept.
func (s *Session) ChangeImage(ctx context.Context, imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("image_url is required", nil)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.NewNotFoundError("session is closed", nil)
	}
	old := s.imageURL
	s.generation++
	s.imageURL = imageURL
	s.natural = geometry.Size{}
	s.colorMode = ColorMode{Enabled: true}
	s.colorErr = nil
	s.editor = s.editor.Cancel()
	s.mu.Unlock()

	if old != imageURL {
		s.opts.Sampler.Release(old)
	}
	s.Prepare(ctx)
	return nil
}

// Close releases the canvas. Further calls fail with not_found.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.mu.Unlock()

	n := s.opts.Sampler.ReleaseAll()
	logger.WithFields(map[string]interface{}{
		"session":  s.id,
		"released": n,
	}).Info("session closed")
}

// State is a read-only view of the session.
type State struct {
	ID              string                       `json:"id"`
	ImageURL        string                       `json:"image_url"`
	FileName        string                       `json:"file_name"`
	ProjectName     string                       `json:"project_name,omitempty"`
	Natural         geometry.Size                `json:"natural_size"`
	ColorMode       ColorMode                    `json:"color_mode"`
	Editor          selection.EditorState        `json:"editor"`
	Colors          []colors.Sample              `json:"colors"`
	Typography      []typography.Sample          `json:"typography"`
	Measurements    []measure.Measurement        `json:"measurements"`
	Spacing         []measure.SpacingMeasurement `json:"spacing"`
	Pending         []geometry.Point             `json:"pending_points"`
	MeasureSettings measure.Settings             `json:"measure_settings"`
}

// State returns a snapshot of everything in the session.
func (s *Session) State() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.NewNotFoundError("session is closed", nil)
	}
	editor := s.editor
	editor.Selections = append([]selection.Selection{}, s.editor.Selections...)
	return &State{
		ID:              s.id,
		ImageURL:        s.imageURL,
		FileName:        s.opts.FileName,
		ProjectName:     s.opts.ProjectName,
		Natural:         s.natural,
		ColorMode:       s.colorMode,
		Editor:          editor,
		Colors:          s.palette.Samples(),
		Typography:      s.typography.Samples(),
		Measurements:    s.measure.Measurements(),
		Spacing:         s.measure.Spacing(),
		Pending:         s.measure.Pending(),
		MeasureSettings: s.measure.Settings(),
	}, nil
}

// locked runs fn under the session lock after checking the session is open.
func (s *Session) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.NewNotFoundError("session is closed", nil)
	}
	return fn()
}

// observe records the natural size reported by a surface until the canvas
// provides the real one.
func (s *Session) observe(surf geometry.Surface) {
	if s.natural.Width == 0 && surf.Valid() {
		s.natural = surf.Natural
	}
}

// PointerResult is the editor state after a pointer event and the selection
// it committed or updated, if any.
type PointerResult struct {
	Editor  selection.EditorState `json:"editor"`
	Changed *selection.Selection  `json:"changed,omitempty"`
}

// Pointer feeds a display-space pointer event to the selection editor.
func (s *Session) Pointer(phase Phase, p geometry.Point, surf geometry.Surface) (*PointerResult, error) {
	if !surf.Valid() {
		return nil, apperrors.NewGeometryError("surface natural and rendered sizes must be positive", nil)
	}
	var res PointerResult
	err := s.locked(func() error {
		s.observe(surf)
		switch phase {
		case PhaseDown:
			s.editor = s.editor.PointerDown(p, surf)
		case PhaseMove:
			s.editor = s.editor.PointerMove(p, surf)
		case PhaseUp:
			s.editor, res.Changed = s.editor.PointerUp(p, surf, s.opts.Now().UTC(), s.opts.NewID)
		default:
			return apperrors.NewValidationError(fmt.Sprintf("unknown pointer phase %q", phase), nil)
		}
		res.Editor = s.editor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteSelection removes a selection.
func (s *Session) DeleteSelection(id string) error {
	return s.locked(func() error {
		next, ok := s.editor.Delete(id)
		if !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("selection %s not found", id), nil)
		}
		s.editor = next
		return nil
	})
}

// RenameSelection sets a selection's name and export format.
func (s *Session) RenameSelection(id, name, format string) (selection.Selection, error) {
	var sel selection.Selection
	err := s.locked(func() error {
		next, ok := s.editor.Rename(id, name, format)
		if !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("selection %s not found", id), nil)
		}
		s.editor = next
		sel, _ = next.Find(id)
		return nil
	})
	return sel, err
}

// selectionRect looks up a selection and converts it to natural pixels.
func (s *Session) selectionRect(id string, c *imaging.Canvas) (selection.Selection, image.Rectangle, error) {
	s.mu.Lock()
	sel, ok := s.editor.Find(id)
	s.mu.Unlock()
	if !ok {
		return sel, image.Rectangle{}, apperrors.NewNotFoundError(fmt.Sprintf("selection %s not found", id), nil)
	}
	size := c.NaturalSize()
	r := sel.PixelRect(size.Width, size.Height)
	return sel, image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.Right())), int(math.Ceil(r.Bottom())),
	), nil
}

// CropSelection exports the pixels under a selection. An empty format falls
// back to the selection's own format.
func (s *Session) CropSelection(ctx context.Context, id string, opts imaging.CropOptions) (*imaging.CropResult, selection.Selection, error) {
	gen, src, err := s.begin()
	if err != nil {
		return nil, selection.Selection{}, err
	}
	c, err := s.canvas(ctx, gen, src)
	if err != nil {
		return nil, selection.Selection{}, err
	}
	sel, rect, err := s.selectionRect(id, c)
	if err != nil {
		return nil, sel, err
	}
	if opts.Format == "" {
		opts.Format = sel.Format
	}
	res, err := c.Crop(rect, opts)
	return res, sel, err
}

// toImage converts a capture point to natural pixels. Without a surface the
// point is already in image space.
func toImage(p geometry.Point, surf *geometry.Surface) (geometry.Point, error) {
	if surf == nil {
		return p, nil
	}
	if !surf.Valid() {
		return p, apperrors.NewGeometryError("surface natural and rendered sizes must be positive", nil)
	}
	return geometry.ScreenToImage(p, *surf), nil
}

// SampleColor reads the pixel at p and adds it to the palette. A color
// within tolerance of an existing sample is rejected with duplicate_color.
func (s *Session) SampleColor(ctx context.Context, p geometry.Point, surf *geometry.Surface) (colors.Sample, error) {
	p, err := toImage(p, surf)
	if err != nil {
		return colors.Sample{}, err
	}

	// Degraded mode answers from the recorded failure instead of refetching
	// on every click.
	s.mu.Lock()
	degraded := s.colorErr
	s.mu.Unlock()
	if degraded != nil {
		return colors.Sample{}, degraded
	}

	gen, src, err := s.begin()
	if err != nil {
		return colors.Sample{}, err
	}
	c, err := s.canvas(ctx, gen, src)
	if err != nil {
		return colors.Sample{}, err
	}
	px, at := c.Pixel(int(math.Floor(p.X)), int(math.Floor(p.Y)))

	var sample colors.Sample
	err = s.locked(func() error {
		if !s.current(gen) {
			return ErrStale
		}
		var addErr error
		sample, addErr = s.palette.Add(colors.FromNRGBA(px), geometry.Point{X: float64(at.X), Y: float64(at.Y)})
		return addErr
	})
	return sample, err
}

// RemoveColor deletes a color sample.
func (s *Session) RemoveColor(id string) error {
	return s.locked(func() error {
		if !s.palette.Remove(id) {
			return apperrors.NewNotFoundError(fmt.Sprintf("color %s not found", id), nil)
		}
		return nil
	})
}

// Suggestion is a dominant color of a region. Suggestions are not added to
// the palette.
type Suggestion struct {
	colors.Descriptor
	Pixels     int     `json:"pixels"`
	Percentage float64 `json:"percentage"`
}

// Palette suggests the count most common colors under a selection.
func (s *Session) Palette(ctx context.Context, selectionID string, count int) ([]Suggestion, error) {
	if count <= 0 {
		count = 5
	}
	gen, src, err := s.begin()
	if err != nil {
		return nil, err
	}
	c, err := s.canvas(ctx, gen, src)
	if err != nil {
		return nil, err
	}
	_, rect, err := s.selectionRect(selectionID, c)
	if err != nil {
		return nil, err
	}

	freqs := c.DominantColors(rect, count)
	out := make([]Suggestion, len(freqs))
	for i, f := range freqs {
		out[i] = Suggestion{
			Descriptor: colors.Analyze(colors.FromNRGBA(f.Color)),
			Pixels:     f.Pixels,
			Percentage: f.Percentage,
		}
	}
	return out, nil
}

// AddTypography validates and stores a manually entered sample.
func (s *Session) AddTypography(sample typography.Sample) (typography.Sample, error) {
	var added typography.Sample
	err := s.locked(func() error {
		var addErr error
		added, addErr = s.typography.Add(sample)
		return addErr
	})
	return added, err
}

// ExtractTypography runs OCR under a selection and stores the derived
// sample.
func (s *Session) ExtractTypography(ctx context.Context, selectionID string) (*typography.Extraction, error) {
	if s.opts.Recognizer == nil {
		return nil, apperrors.NewValidationError("text recognition is not configured", nil)
	}
	gen, src, err := s.begin()
	if err != nil {
		return nil, err
	}
	c, err := s.canvas(ctx, gen, src)
	if err != nil {
		return nil, err
	}
	sel, rect, err := s.selectionRect(selectionID, c)
	if err != nil {
		return nil, err
	}

	ex, err := typography.Extract(ctx, s.opts.Recognizer, c, rect)
	if err != nil {
		return nil, err
	}
	ex.Sample.Label = sel.Name

	err = s.locked(func() error {
		if !s.current(gen) {
			return ErrStale
		}
		added, addErr := s.typography.Add(ex.Sample)
		ex.Sample = added
		return addErr
	})
	if err != nil {
		return nil, err
	}
	return ex, nil
}

// RemoveTypography deletes a typography sample.
func (s *Session) RemoveTypography(id string) error {
	return s.locked(func() error {
		if !s.typography.Remove(id) {
			return apperrors.NewNotFoundError(fmt.Sprintf("typography sample %s not found", id), nil)
		}
		return nil
	})
}

// ConfigureMeasure replaces the measurement settings.
func (s *Session) ConfigureMeasure(settings measure.Settings) (measure.Settings, error) {
	if settings.GridEnabled && settings.GridSize <= 0 {
		return settings, apperrors.NewValidationError("grid size must be positive when the grid is enabled", nil)
	}
	err := s.locked(func() error {
		s.measure.Configure(settings)
		return nil
	})
	return settings, err
}

// MeasurePoint captures a measurement point. Points are clamped to the
// image once its size is known.
func (s *Session) MeasurePoint(p geometry.Point, surf *geometry.Surface) (*measure.AddResult, error) {
	p, err := toImage(p, surf)
	if err != nil {
		return nil, err
	}
	var res measure.AddResult
	err = s.locked(func() error {
		if surf != nil {
			s.observe(*surf)
		}
		if s.natural.Width > 0 {
			p = geometry.ClampPoint(p, s.natural.Width, s.natural.Height)
		}
		res = s.measure.AddPoint(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CompleteMeasure finishes the pending spacing measurement.
func (s *Session) CompleteMeasure(label string) (*measure.SpacingMeasurement, error) {
	var sm *measure.SpacingMeasurement
	err := s.locked(func() error {
		var cErr error
		sm, cErr = s.measure.Complete(label)
		return cErr
	})
	return sm, err
}

// CancelMeasure discards pending points.
func (s *Session) CancelMeasure() (int, error) {
	var n int
	err := s.locked(func() error {
		n = s.measure.Cancel()
		return nil
	})
	return n, err
}

// RemoveMeasurement deletes a measurement of either kind.
func (s *Session) RemoveMeasurement(id string) error {
	return s.locked(func() error {
		if !s.measure.Remove(id) {
			return apperrors.NewNotFoundError(fmt.Sprintf("measurement %s not found", id), nil)
		}
		return nil
	})
}

// Snapshot copies the collections for export. Edits made after Snapshot
// returns do not affect it.
func (s *Session) Snapshot() (export.Source, error) {
	var src export.Source
	err := s.locked(func() error {
		src = export.Source{
			FileID:       s.opts.FileID,
			FileName:     s.opts.FileName,
			ProjectName:  s.opts.ProjectName,
			ImageURL:     s.imageURL,
			Dimensions:   s.natural,
			Colors:       s.palette.Samples(),
			Typography:   s.typography.Samples(),
			Measurements: s.measure.Measurements(),
			Spacing:      s.measure.Spacing(),
		}
		return nil
	})
	return src, err
}

// Specification builds the specification from a fresh snapshot.
func (s *Session) Specification() (*export.DesignSpecification, error) {
	src, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return export.Build(src, s.opts.Now()), nil
}

// Export serializes the session. A failure leaves every collection intact.
func (s *Session) Export(f export.Format, inc export.Include, name string) (*export.Result, error) {
	spec, err := s.Specification()
	if err != nil {
		return nil, err
	}
	res, err := export.Export(spec, f, inc, name)
	if err != nil {
		return nil, err
	}
	logger.WithFields(map[string]interface{}{
		"session":  s.id,
		"format":   f,
		"filename": res.Filename,
		"bytes":    len(res.Data),
	}).Info("export produced")
	return res, nil
}

// OverlayOptions selects what the preview shows.
type OverlayOptions struct {
	ShowGrid         bool `json:"show_grid"`
	ShowSelections   bool `json:"show_selections"`
	ShowMeasurements bool `json:"show_measurements"`
	Dim              bool `json:"dim"`
}

// Overlay renders the image with the session's annotations.
func (s *Session) Overlay(ctx context.Context, opts OverlayOptions) (*imaging.OverlayResult, error) {
	gen, src, err := s.begin()
	if err != nil {
		return nil, err
	}
	c, err := s.canvas(ctx, gen, src)
	if err != nil {
		return nil, err
	}
	size := c.NaturalSize()

	var ov imaging.OverlayOptions
	err = s.locked(func() error {
		settings := s.measure.Settings()
		if opts.ShowGrid {
			ov.GridSize = int(settings.GridSize)
		}
		if opts.ShowSelections {
			ov.Dim = opts.Dim
			for _, sel := range s.editor.Selections {
				r := sel.PixelRect(size.Width, size.Height)
				ov.Rects = append(ov.Rects, imaging.OverlayRect{
					Rect:   image.Rect(int(r.X), int(r.Y), int(math.Round(r.Right())), int(math.Round(r.Bottom()))),
					Label:  sel.Name,
					Active: sel.ID == s.editor.ActiveID,
				})
			}
		}
		if opts.ShowMeasurements {
			for _, m := range s.measure.Measurements() {
				ov.Lines = append(ov.Lines, imaging.OverlayLine{
					From:  pt(m.Start),
					To:    pt(m.End),
					Label: fmt.Sprintf("%dpx", m.Distance),
				})
			}
			for _, p := range s.measure.Pending() {
				ov.Points = append(ov.Points, pt(p))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.RenderOverlay(ov)
}

func pt(p geometry.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
