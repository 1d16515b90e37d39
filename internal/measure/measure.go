// Package measure captures point-to-point distances and multi-point spacing
// measurements in natural-image pixel space.
package measure

import (
	"fmt"
	"math"
	"strings"

	"github.com/ironsheep/design-spec-mcp/internal/geometry"
)

// Mode selects how captured points are turned into measurements.
type Mode int

const (
	ModeDistance Mode = iota
	ModeSpacing
)

func (m Mode) String() string {
	switch m {
	case ModeDistance:
		return "distance"
	case ModeSpacing:
		return "spacing"
	}
	return "unknown"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode parses "distance" or "spacing".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distance", "two-point", "":
		return ModeDistance, nil
	case "spacing":
		return ModeSpacing, nil
	}
	return ModeDistance, fmt.Errorf("unknown measurement mode %q", s)
}

// Constraint locks the second point of a ruler to an axis.
type Constraint int

const (
	ConstraintFree Constraint = iota
	ConstraintHorizontal
	ConstraintVertical
)

func (c Constraint) String() string {
	switch c {
	case ConstraintFree:
		return "free"
	case ConstraintHorizontal:
		return "horizontal"
	case ConstraintVertical:
		return "vertical"
	}
	return "unknown"
}

// MarshalText encodes the constraint by name.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a constraint name.
func (c *Constraint) UnmarshalText(b []byte) error {
	v, err := ParseConstraint(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseConstraint parses "free", "horizontal" or "vertical".
func ParseConstraint(s string) (Constraint, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free", "none", "":
		return ConstraintFree, nil
	case "horizontal", "h":
		return ConstraintHorizontal, nil
	case "vertical", "v":
		return ConstraintVertical, nil
	}
	return ConstraintFree, fmt.Errorf("unknown constraint %q", s)
}

// Distance is the Euclidean distance between a and b rounded to whole pixels.
func Distance(a, b geometry.Point) int {
	return int(math.Round(math.Hypot(b.X-a.X, b.Y-a.Y)))
}

// Angle is the direction from a to b in degrees, in atan2 range (-180, 180].
// Y grows downward, so 90 points down. The result is rounded to 0.01.
func Angle(a, b geometry.Point) float64 {
	deg := math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
	return math.Round(deg*100) / 100
}

// Snap rounds p to the nearest multiple of grid on both axes. A
// non-positive grid leaves p unchanged.
func Snap(p geometry.Point, grid float64) geometry.Point {
	if grid <= 0 {
		return p
	}
	return geometry.Point{
		X: math.Round(p.X/grid) * grid,
		Y: math.Round(p.Y/grid) * grid,
	}
}

// Constrain forces p onto the axis through anchor selected by c.
func Constrain(anchor, p geometry.Point, c Constraint) geometry.Point {
	switch c {
	case ConstraintHorizontal:
		p.Y = anchor.Y
	case ConstraintVertical:
		p.X = anchor.X
	case ConstraintFree:
	}
	return p
}

// Spans are the extents of the bounding box of a point set.
type Spans struct {
	Horizontal int `json:"horizontal"`
	Vertical   int `json:"vertical"`
	Diagonal   int `json:"diagonal"`
}

// BoundingSpans returns the rounded width, height and diagonal of the
// smallest box containing points.
func BoundingSpans(points []geometry.Point) Spans {
	if len(points) == 0 {
		return Spans{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	w, h := maxX-minX, maxY-minY
	return Spans{
		Horizontal: int(math.Round(w)),
		Vertical:   int(math.Round(h)),
		Diagonal:   int(math.Round(math.Hypot(w, h))),
	}
}

// SpacingType classifies a spacing measurement.
type SpacingType string

const (
	SpacingMargin  SpacingType = "margin"
	SpacingPadding SpacingType = "padding"
	SpacingSpacing SpacingType = "spacing"
)

// ClassifySpacing derives the spacing type from the number of points: two
// points are a gap between elements, four outline a padded box, anything else
// is reported as margin.
//
// This rule is provisional; callers should not build further semantics on it.
func ClassifySpacing(points int) SpacingType {
	switch points {
	case 2:
		return SpacingSpacing
	case 4:
		return SpacingPadding
	default:
		return SpacingMargin
	}
}

// Alignment reports whether a set of points lines up along an axis.
type Alignment struct {
	HorizontallyAligned bool    `json:"horizontally_aligned"`
	VerticallyAligned   bool    `json:"vertically_aligned"`
	HorizontalDeviation float64 `json:"horizontal_deviation"`
	VerticalDeviation   float64 `json:"vertical_deviation"`
	AverageX            float64 `json:"average_x"`
	AverageY            float64 `json:"average_y"`
}

// CheckAlignment computes the standard deviation of the points on each axis.
// Points are horizontally aligned when their Y values deviate by no more
// than tolerance, and vertically aligned when their X values do.
func CheckAlignment(points []geometry.Point, tolerance float64) Alignment {
	if len(points) < 2 {
		return Alignment{HorizontallyAligned: true, VerticallyAligned: true}
	}

	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	avgX, avgY := sumX/n, sumY/n

	var varX, varY float64
	for _, p := range points {
		varX += (p.X - avgX) * (p.X - avgX)
		varY += (p.Y - avgY) * (p.Y - avgY)
	}
	devX := math.Sqrt(varX / n)
	devY := math.Sqrt(varY / n)

	return Alignment{
		HorizontallyAligned: devY <= tolerance,
		VerticallyAligned:   devX <= tolerance,
		HorizontalDeviation: round2(devY),
		VerticalDeviation:   round2(devX),
		AverageX:            round2(avgX),
		AverageY:            round2(avgY),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
