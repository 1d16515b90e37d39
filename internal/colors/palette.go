package colors

import (
	"fmt"
	"time"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
)

// DefaultTolerance is the per-channel difference under which two samples
// are the same color.
const DefaultTolerance = 5

// Sample is a color picked from the image. Samples are never modified after
// creation.
type Sample struct {
	ID string `json:"id"`
	Descriptor
	Position  geometry.Point `json:"position"`
	CreatedAt time.Time      `json:"created_at"`
}

// Palette holds the samples of one session in insertion order. It is not
// safe for concurrent use.
type Palette struct {
	tolerance int
	samples   []Sample
	newID     func() string
	now       func() time.Time
}

// NewPalette returns an empty palette. A negative tolerance selects
// DefaultTolerance.
func NewPalette(tolerance int, newID func() string, now func() time.Time) *Palette {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	if now == nil {
		now = time.Now
	}
	return &Palette{tolerance: tolerance, newID: newID, now: now}
}

// Tolerance returns the duplicate tolerance.
func (p *Palette) Tolerance() int {
	return p.tolerance
}

// FindDuplicate returns the first sample within tolerance of c.
func (p *Palette) FindDuplicate(c RGB) (Sample, bool) {
	for _, s := range p.samples {
		if IsDuplicate(s.RGB, c, p.tolerance) {
			return s, true
		}
	}
	return Sample{}, false
}

// Add analyzes c and appends it. A color within tolerance of an existing
// sample is rejected with a duplicate_color error whose Details carry the
// existing sample id.
func (p *Palette) Add(c RGB, at geometry.Point) (Sample, error) {
	if dup, ok := p.FindDuplicate(c); ok {
		return Sample{}, apperrors.NewDuplicateColorError(
			fmt.Sprintf("%s is already in the palette as %s", c.Hex(), dup.Hex), dup.ID)
	}
	s := Sample{
		ID:         p.newID(),
		Descriptor: Analyze(c),
		Position:   at,
		CreatedAt:  p.now().UTC(),
	}
	p.samples = append(p.samples, s)
	return s, nil
}

// Remove deletes a sample by id.
func (p *Palette) Remove(id string) bool {
	for i, s := range p.samples {
		if s.ID == id {
			p.samples = append(p.samples[:i:i], p.samples[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the sample with the given id.
func (p *Palette) Find(id string) (Sample, bool) {
	for _, s := range p.samples {
		if s.ID == id {
			return s, true
		}
	}
	return Sample{}, false
}

// Samples returns a copy of the samples in insertion order.
func (p *Palette) Samples() []Sample {
	out := make([]Sample, len(p.samples))
	copy(out, p.samples)
	return out
}

// Len returns the number of samples.
func (p *Palette) Len() int {
	return len(p.samples)
}
