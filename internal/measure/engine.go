package measure

import (
	"time"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
)

// DefaultAlignmentTolerance is the deviation in pixels under which spacing
// points count as aligned.
const DefaultAlignmentTolerance = 2.0

// Measurement is a two-point distance in natural-image pixels.
type Measurement struct {
	ID        string         `json:"id"`
	Start     geometry.Point `json:"start"`
	End       geometry.Point `json:"end"`
	Distance  int            `json:"distance"`
	Angle     float64        `json:"angle"`
	CreatedAt time.Time      `json:"created_at"`
}

// SpacingMeasurement is derived from two or more points.
type SpacingMeasurement struct {
	ID        string           `json:"id"`
	Points    []geometry.Point `json:"points"`
	Spans     Spans            `json:"spans"`
	Type      SpacingType      `json:"type"`
	Label     string           `json:"label,omitempty"`
	Alignment Alignment        `json:"alignment"`
	CreatedAt time.Time        `json:"created_at"`
}

// Settings control point capture.
type Settings struct {
	Mode        Mode       `json:"mode"`
	Constraint  Constraint `json:"constraint"`
	GridEnabled bool       `json:"grid_enabled"`
	GridSize    float64    `json:"grid_size"`
}

// AddResult describes the effect of a captured point.
type AddResult struct {
	// Point is the point as stored, after snapping and constraining.
	Point geometry.Point `json:"point"`
	// Pending lists the points waiting for completion.
	Pending []geometry.Point `json:"pending"`
	// Measurement is set when the point completed a two-point measurement.
	Measurement *Measurement `json:"measurement,omitempty"`
}

// Engine accumulates measurements for one image. It is not safe for
// concurrent use; the owning session serializes access.
type Engine struct {
	settings Settings
	pending  []geometry.Point

	measurements []Measurement
	spacing      []SpacingMeasurement

	newID func() string
	now   func() time.Time
}

// NewEngine creates an engine. newID and now are injected so results are
// reproducible in tests.
func NewEngine(settings Settings, newID func() string, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{settings: settings, newID: newID, now: now}
}

// Settings returns the current capture settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Configure replaces the settings. Switching mode discards pending points.
func (e *Engine) Configure(s Settings) {
	if s.Mode != e.settings.Mode {
		e.pending = nil
	}
	e.settings = s
}

// AddPoint captures a point in natural-image pixels.
func (e *Engine) AddPoint(p geometry.Point) AddResult {
	if e.settings.GridEnabled {
		p = Snap(p, e.settings.GridSize)
	}
	if len(e.pending) > 0 {
		p = Constrain(e.pending[0], p, e.settings.Constraint)
	}

	if e.settings.Mode == ModeDistance && len(e.pending) == 1 {
		start := e.pending[0]
		m := Measurement{
			ID:        e.newID(),
			Start:     start,
			End:       p,
			Distance:  Distance(start, p),
			Angle:     Angle(start, p),
			CreatedAt: e.now().UTC(),
		}
		e.measurements = append(e.measurements, m)
		e.pending = nil
		return AddResult{Point: p, Pending: []geometry.Point{}, Measurement: &m}
	}

	e.pending = append(e.pending, p)
	return AddResult{Point: p, Pending: e.Pending()}
}

// Complete turns the pending spacing points into a SpacingMeasurement.
func (e *Engine) Complete(label string) (*SpacingMeasurement, error) {
	if e.settings.Mode != ModeSpacing {
		return nil, apperrors.NewValidationError("complete applies to spacing mode only", nil)
	}
	if len(e.pending) < 2 {
		return nil, apperrors.NewValidationError("a spacing measurement needs at least 2 points", nil)
	}

	points := e.Pending()
	sm := SpacingMeasurement{
		ID:        e.newID(),
		Points:    points,
		Spans:     BoundingSpans(points),
		Type:      ClassifySpacing(len(points)),
		Label:     label,
		Alignment: CheckAlignment(points, DefaultAlignmentTolerance),
		CreatedAt: e.now().UTC(),
	}
	e.spacing = append(e.spacing, sm)
	e.pending = nil
	return &sm, nil
}

// Cancel discards pending points and returns how many there were.
func (e *Engine) Cancel() int {
	n := len(e.pending)
	e.pending = nil
	return n
}

// Pending returns a copy of the points awaiting completion.
func (e *Engine) Pending() []geometry.Point {
	out := make([]geometry.Point, len(e.pending))
	copy(out, e.pending)
	return out
}

// Measurements returns a copy of the two-point measurements.
func (e *Engine) Measurements() []Measurement {
	out := make([]Measurement, len(e.measurements))
	copy(out, e.measurements)
	return out
}

// Spacing returns a copy of the spacing measurements.
func (e *Engine) Spacing() []SpacingMeasurement {
	out := make([]SpacingMeasurement, len(e.spacing))
	for i, sm := range e.spacing {
		sm.Points = append([]geometry.Point(nil), sm.Points...)
		out[i] = sm
	}
	return out
}

// Remove deletes a measurement of either kind by id.
func (e *Engine) Remove(id string) bool {
	for i, m := range e.measurements {
		if m.ID == id {
			e.measurements = append(e.measurements[:i:i], e.measurements[i+1:]...)
			return true
		}
	}
	for i, sm := range e.spacing {
		if sm.ID == id {
			e.spacing = append(e.spacing[:i:i], e.spacing[i+1:]...)
			return true
		}
	}
	return false
}
