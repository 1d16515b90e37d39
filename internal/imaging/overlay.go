package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

// OverlayRect is a selection outline drawn on the preview.
type OverlayRect struct {
	Rect   image.Rectangle
	Label  string
	Active bool
}

// OverlayLine is a measurement drawn on the preview.
type OverlayLine struct {
	From  image.Point
	To    image.Point
	Label string
}

// OverlayOptions describes what to draw over the canvas.
type OverlayOptions struct {
	// GridSize draws grid lines every GridSize pixels; below 2 disables the grid.
	GridSize int
	// GridColor is "#RRGGBB" or "#RRGGBBAA". Defaults to translucent cyan.
	GridColor string
	// Dim darkens everything outside Rects.
	Dim    bool
	Rects  []OverlayRect
	Lines  []OverlayLine
	Points []image.Point
}

// OverlayResult contains the annotated preview.
type OverlayResult struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
	FileSize int    `json:"file_size"`
	DataURL  string `json:"data_url"`
}

var (
	defaultGridColor = color.RGBA{0, 68, 75, 96}
	selectionColor   = color.RGBA{59, 130, 246, 255}
	activeColor      = color.RGBA{236, 72, 153, 255}
	measureColor     = color.RGBA{239, 68, 68, 255}
	pointColor       = color.RGBA{234, 179, 8, 255}
	labelForeground  = color.RGBA{255, 255, 255, 255}
	labelBackground  = color.RGBA{0, 0, 0, 180}
)

// RenderOverlay draws the grid, selections, measurements and pending points
// on a copy of the canvas and returns it as PNG.
func (c *Canvas) RenderOverlay(opts OverlayOptions) (*OverlayResult, error) {
	img := clone.AsRGBA(c.pix)

	if opts.Dim && len(opts.Rects) > 0 {
		dimmed := adjust.Brightness(img, -0.45)
		for _, r := range opts.Rects {
			rr := r.Rect.Canon().Intersect(img.Rect)
			draw.Draw(dimmed, rr, img, rr.Min, draw.Src)
		}
		img = dimmed
	}

	if opts.GridSize >= 2 {
		gridColor, err := parseHexColor(opts.GridColor)
		if err != nil {
			gridColor = defaultGridColor
		}
		drawGrid(img, opts.GridSize, gridColor)
	}

	for _, r := range opts.Rects {
		stroke := selectionColor
		if r.Active {
			stroke = activeColor
		}
		rr := r.Rect.Canon()
		strokeRect(img, rr, 2, stroke)
		if r.Label != "" {
			drawLabel(img, rr.Min.X+2, rr.Min.Y+2, r.Label)
		}
	}

	for _, l := range opts.Lines {
		drawLine(img, l.From, l.To, measureColor)
		fillSquare(img, l.From, 2, measureColor)
		fillSquare(img, l.To, 2, measureColor)
		if l.Label != "" {
			mid := image.Pt((l.From.X+l.To.X)/2, (l.From.Y+l.To.Y)/2)
			drawLabel(img, mid.X+4, mid.Y+4, l.Label)
		}
	}

	for i, p := range opts.Points {
		fillSquare(img, p, 3, pointColor)
		drawLabel(img, p.X+5, p.Y+5, strconv.Itoa(i+1))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperrors.NewExportSerializationError("failed to encode overlay", err)
	}

	return &OverlayResult{
		Width:    img.Rect.Dx(),
		Height:   img.Rect.Dy(),
		MimeType: "image/png",
		FileSize: buf.Len(),
		DataURL:  DataURL("image/png", buf.Bytes()),
	}, nil
}

func drawGrid(img *image.RGBA, step int, c color.RGBA) {
	b := img.Rect
	src := image.NewUniform(c)
	for x := b.Min.X + step; x < b.Max.X; x += step {
		draw.Draw(img, image.Rect(x, b.Min.Y, x+1, b.Max.Y), src, image.Point{}, draw.Over)
	}
	for y := b.Min.Y + step; y < b.Max.Y; y += step {
		draw.Draw(img, image.Rect(b.Min.X, y, b.Max.X, y+1), src, image.Point{}, draw.Over)
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Rect), src, image.Point{}, draw.Over)
	}
}

func fillSquare(img *image.RGBA, p image.Point, radius int, c color.RGBA) {
	r := image.Rect(p.X-radius, p.Y-radius, p.X+radius+1, p.Y+radius+1)
	draw.Draw(img, r.Intersect(img.Rect), image.NewUniform(c), image.Point{}, draw.Over)
}

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(img *image.RGBA, a, b image.Point, c color.RGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	x, y := a.X, a.Y
	for {
		if (image.Point{X: x, Y: y}).In(img.Rect) {
			img.SetRGBA(x, y, c)
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// drawLabel renders text with the 7x13 bitmap face on a dark backing box.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	box := image.Rect(x-1, y-1, x+width+1, y+height+1)
	draw.Draw(img, box.Intersect(img.Rect), image.NewUniform(labelBackground), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelForeground),
		Face: face,
		Dot:  fixed.P(x, y+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	// image.RGBA stores premultiplied values.
	if a != 255 {
		r = uint8(uint16(r) * uint16(a) / 255)
		g = uint8(uint16(g) * uint16(a) / 255)
		b = uint8(uint16(b) * uint16(a) / 255)
	}
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
