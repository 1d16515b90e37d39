// Package geometry converts between the three coordinate spaces used by the
// inspector: percentage bounds, natural image pixels and on-screen display pixels.
//
// All functions are pure. Percentage bounds are the storage format for
// selections because they stay valid when the image is re-rendered at another
// size; pixel rectangles are derived on demand for hit-testing and cropping.
package geometry

import "math"

// MinBoundsSize is the smallest width or height, in percent, a committed
// selection may have.
const MinBoundsSize = 1.0

// Bounds is a rectangle expressed as percentages (0-100) of the image size.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelRect is a rectangle in pixels. Depending on context it is relative to
// the natural image or to the rendered element.
type PixelRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the exclusive right edge.
func (r PixelRect) Right() float64 { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r PixelRect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether p lies inside r (edges inclusive).
func (r PixelRect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Point is a 2D point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Surface describes where an image is drawn on screen: its intrinsic size and
// the rectangle it currently occupies in display space.
type Surface struct {
	Natural  Size      `json:"natural"`
	Rendered PixelRect `json:"rendered"`
}

// Valid reports whether both sizes are strictly positive.
func (s Surface) Valid() bool {
	return s.Natural.Width > 0 && s.Natural.Height > 0 &&
		s.Rendered.Width > 0 && s.Rendered.Height > 0
}

// Scale returns the natural/rendered ratio per axis. An invalid surface
// scales 1:1 so callers degrade to raw coordinates instead of NaN.
func (s Surface) Scale() (sx, sy float64) {
	if !s.Valid() {
		return 1, 1
	}
	return s.Natural.Width / s.Rendered.Width, s.Natural.Height / s.Rendered.Height
}

// RenderedSize returns the on-screen size of the image.
func (s Surface) RenderedSize() Size {
	return Size{Width: s.Rendered.Width, Height: s.Rendered.Height}
}

// BoundsToPixels converts percentage bounds to a pixel rectangle for an image
// of the given size.
func BoundsToPixels(b Bounds, imageW, imageH float64) PixelRect {
	return PixelRect{
		X:      b.X / 100 * imageW,
		Y:      b.Y / 100 * imageH,
		Width:  b.Width / 100 * imageW,
		Height: b.Height / 100 * imageH,
	}
}

// PixelsToBounds converts a pixel rectangle to percentage bounds. Zero image
// dimensions yield zero bounds.
func PixelsToBounds(r PixelRect, imageW, imageH float64) Bounds {
	if imageW <= 0 || imageH <= 0 {
		return Bounds{}
	}
	return Bounds{
		X:      r.X / imageW * 100,
		Y:      r.Y / imageH * 100,
		Width:  r.Width / imageW * 100,
		Height: r.Height / imageH * 100,
	}
}

// ScreenToImage maps a display-space point to natural image pixels: the
// rendered offset is removed, then each axis is scaled by natural/rendered.
func ScreenToImage(p Point, s Surface) Point {
	sx, sy := s.Scale()
	return Point{
		X: (p.X - s.Rendered.X) * sx,
		Y: (p.Y - s.Rendered.Y) * sy,
	}
}

// ImageToScreen is the inverse of ScreenToImage.
func ImageToScreen(p Point, s Surface) Point {
	sx, sy := s.Scale()
	return Point{
		X: p.X/sx + s.Rendered.X,
		Y: p.Y/sy + s.Rendered.Y,
	}
}

// ScreenToLocal maps a display-space point into the rendered element's own
// pixel space (origin at the element's top-left).
func ScreenToLocal(p Point, s Surface) Point {
	return Point{X: p.X - s.Rendered.X, Y: p.Y - s.Rendered.Y}
}

// ClampBounds corrects out-of-range bounds instead of rejecting them. The
// result always satisfies x,y >= 0, width,height >= MinBoundsSize,
// x+width <= 100 and y+height <= 100. NaN components are treated as zero.
func ClampBounds(b Bounds) Bounds {
	w := clamp(finite(b.Width), MinBoundsSize, 100)
	h := clamp(finite(b.Height), MinBoundsSize, 100)
	return Bounds{
		X:      clamp(finite(b.X), 0, 100-w),
		Y:      clamp(finite(b.Y), 0, 100-h),
		Width:  w,
		Height: h,
	}
}

// Normalize returns the rectangle spanned by two corner points regardless of
// the drag direction.
func Normalize(a, b Point) PixelRect {
	return PixelRect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// ClampPoint confines p to the rectangle [0,w]x[0,h].
func ClampPoint(p Point, w, h float64) Point {
	return Point{X: clamp(p.X, 0, w), Y: clamp(p.Y, 0, h)}
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

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
