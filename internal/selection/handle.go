package selection

import "github.com/ironsheep/design-spec-mcp/internal/geometry"

// Handle identifies one of the eight resize hotspots of a selection, or
// HandleNone for the body.
type Handle int

const (
	HandleNone Handle = iota
	HandleNW
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
)

// Handles lists every resize handle in hit-test priority order (corners first).
var Handles = []Handle{HandleNW, HandleNE, HandleSW, HandleSE, HandleN, HandleS, HandleE, HandleW}

func (h Handle) String() string {
	switch h {
	case HandleNW:
		return "nw"
	case HandleN:
		return "n"
	case HandleNE:
		return "ne"
	case HandleE:
		return "e"
	case HandleSE:
		return "se"
	case HandleS:
		return "s"
	case HandleSW:
		return "sw"
	case HandleW:
		return "w"
	case HandleNone:
		return ""
	}
	return "unknown"
}

// MarshalText encodes the handle by its wire name.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// ParseHandle maps the wire name of a handle back to its value.
func ParseHandle(s string) (Handle, bool) {
	for _, h := range Handles {
		if h.String() == s {
			return h, true
		}
	}
	return HandleNone, false
}

// edges reports which rectangle edges follow the pointer while this handle is
// dragged. The opposite edges stay fixed.
func (h Handle) edges() (left, top, right, bottom bool) {
	switch h {
	case HandleNW:
		return true, true, false, false
	case HandleN:
		return false, true, false, false
	case HandleNE:
		return false, true, true, false
	case HandleE:
		return false, false, true, false
	case HandleSE:
		return false, false, true, true
	case HandleS:
		return false, false, false, true
	case HandleSW:
		return true, false, false, true
	case HandleW:
		return true, false, false, false
	case HandleNone:
		return false, false, false, false
	}
	return false, false, false, false
}

// center returns the hotspot position of h on rect r.
func (h Handle) center(r geometry.PixelRect) geometry.Point {
	midX := r.X + r.Width/2
	midY := r.Y + r.Height/2
	switch h {
	case HandleNW:
		return geometry.Point{X: r.X, Y: r.Y}
	case HandleN:
		return geometry.Point{X: midX, Y: r.Y}
	case HandleNE:
		return geometry.Point{X: r.Right(), Y: r.Y}
	case HandleE:
		return geometry.Point{X: r.Right(), Y: midY}
	case HandleSE:
		return geometry.Point{X: r.Right(), Y: r.Bottom()}
	case HandleS:
		return geometry.Point{X: midX, Y: r.Bottom()}
	case HandleSW:
		return geometry.Point{X: r.X, Y: r.Bottom()}
	case HandleW:
		return geometry.Point{X: r.X, Y: midY}
	case HandleNone:
		return geometry.Point{X: midX, Y: midY}
	}
	return geometry.Point{X: midX, Y: midY}
}

// resize applies a pointer delta (in percent) to origin for handle h. Deltas
// are limited so moving edges never cross the fixed ones or leave the image,
// which keeps the opposite corner or edge exactly in place.
func resize(origin geometry.Bounds, h Handle, dx, dy float64) geometry.Bounds {
	left, top, right, bottom := h.edges()
	b := origin
	minSize := geometry.MinBoundsSize

	if left {
		d := clamp(dx, -origin.X, origin.Width-minSize)
		b.X = origin.X + d
		b.Width = origin.Width - d
	}
	if right {
		d := clamp(dx, minSize-origin.Width, 100-origin.X-origin.Width)
		b.Width = origin.Width + d
	}
	if top {
		d := clamp(dy, -origin.Y, origin.Height-minSize)
		b.Y = origin.Y + d
		b.Height = origin.Height - d
	}
	if bottom {
		d := clamp(dy, minSize-origin.Height, 100-origin.Y-origin.Height)
		b.Height = origin.Height + d
	}
	return geometry.ClampBounds(b)
}

// move translates origin, keeping it inside the image.
func move(origin geometry.Bounds, dx, dy float64) geometry.Bounds {
	return geometry.ClampBounds(geometry.Bounds{
		X:      clamp(origin.X+dx, 0, 100-origin.Width),
		Y:      clamp(origin.Y+dy, 0, 100-origin.Height),
		Width:  origin.Width,
		Height: origin.Height,
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
