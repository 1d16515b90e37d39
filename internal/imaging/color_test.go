package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPixel(t *testing.T) {
	c := NewCanvas("pattern", createPatternImage(100, 100))

	tests := []struct {
		name   string
		x, y   int
		want   color.NRGBA
		wantAt image.Point
	}{
		{"red quadrant", 10, 10, color.NRGBA{255, 0, 0, 255}, image.Pt(10, 10)},
		{"green quadrant", 75, 10, color.NRGBA{0, 255, 0, 255}, image.Pt(75, 10)},
		{"blue quadrant", 10, 75, color.NRGBA{0, 0, 255, 255}, image.Pt(10, 75)},
		{"white quadrant", 75, 75, color.NRGBA{255, 255, 255, 255}, image.Pt(75, 75)},
		{"clamped past right edge", 500, 75, color.NRGBA{255, 255, 255, 255}, image.Pt(99, 75)},
		{"clamped negative", -4, -9, color.NRGBA{255, 0, 0, 255}, image.Pt(0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, at := c.Pixel(tt.x, tt.y)
			if got != tt.want {
				t.Errorf("color: got %v, want %v", got, tt.want)
			}
			if at != tt.wantAt {
				t.Errorf("point: got %v, want %v", at, tt.wantAt)
			}
		})
	}
}

func TestPixel_StraightAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 1, color.NRGBA{200, 100, 50, 128})
	c := NewCanvas("alpha", img)

	got, _ := c.Pixel(1, 1)
	if got.A != 128 {
		t.Fatalf("alpha: got %d, want 128", got.A)
	}
	// Premultiplication loses a little precision; allow 1 unit.
	if absDiff(got.R, 200) > 1 || absDiff(got.G, 100) > 1 || absDiff(got.B, 50) > 1 {
		t.Errorf("straight color: got %v, want ~{200 100 50}", got)
	}
}

func TestNewCanvas_OffsetOrigin(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 30, 60))
	img.Set(10, 20, color.RGBA{9, 9, 9, 255})

	c := NewCanvas("offset", img)
	if c.Bounds().Min != (image.Point{}) {
		t.Errorf("origin: got %v, want (0,0)", c.Bounds().Min)
	}
	if c.Width != 20 || c.Height != 40 {
		t.Errorf("size: got %dx%d, want 20x40", c.Width, c.Height)
	}
	if got, _ := c.Pixel(0, 0); got.R != 9 {
		t.Errorf("top-left pixel: got %v", got)
	}
}

func TestDominantColors(t *testing.T) {
	c := NewCanvas("pattern", createPatternImage(100, 100))

	all := c.DominantColors(c.Bounds(), 10)
	if len(all) != 4 {
		t.Fatalf("count: got %d, want 4", len(all))
	}
	for _, cf := range all {
		if cf.Percentage != 25 {
			t.Errorf("%v: got %.2f%%, want 25%%", cf.Color, cf.Percentage)
		}
	}

	limited := c.DominantColors(c.Bounds(), 2)
	if len(limited) != 2 {
		t.Errorf("limit: got %d, want 2", len(limited))
	}

	// The top-left quadrant is pure red.
	red := c.DominantColors(image.Rect(0, 0, 50, 50), 3)
	if len(red) != 1 || red[0].Color != (color.NRGBA{255, 0, 0, 255}) || red[0].Pixels != 2500 {
		t.Errorf("red region: got %+v", red)
	}
}

func TestDominantColors_MajorityFirst(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x < 7 {
				img.Set(x, y, color.RGBA{20, 20, 20, 255})
			} else {
				img.Set(x, y, color.RGBA{240, 240, 240, 255})
			}
		}
	}
	got := NewCanvas("bars", img).DominantColors(image.Rect(0, 0, 10, 10), 5)

	if len(got) != 2 {
		t.Fatalf("count: got %d", len(got))
	}
	if got[0].Color.R != 20 || got[0].Percentage != 70 {
		t.Errorf("first: got %+v", got[0])
	}
}

func TestDominantColors_EmptyRegion(t *testing.T) {
	c := NewCanvas("solid", createInMemoryImage(10, 10, color.White))
	if got := c.DominantColors(image.Rect(50, 50, 60, 60), 3); got != nil {
		t.Errorf("outside region: got %v, want nil", got)
	}
	if got := c.DominantColors(c.Bounds(), 0); got != nil {
		t.Errorf("zero count: got %v, want nil", got)
	}
}

func TestDarkest(t *testing.T) {
	colors := []ColorFrequency{
		{Color: color.NRGBA{240, 240, 240, 255}},
		{Color: color.NRGBA{30, 40, 50, 255}},
		{Color: color.NRGBA{255, 0, 0, 255}},
	}
	got, ok := Darkest(colors)
	if !ok || got.Color.R != 30 {
		t.Errorf("Darkest: got %+v, %v", got, ok)
	}
	if _, ok := Darkest(nil); ok {
		t.Error("Darkest(nil) should report false")
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
