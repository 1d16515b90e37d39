// Package colors turns sampled pixels into color descriptors with WCAG
// contrast metrics and keeps the per-session palette of samples.
package colors

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an opaque 8-bit color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// FromNRGBA drops the alpha channel of c.
func FromNRGBA(c color.NRGBA) RGB {
	return RGB{R: c.R, G: c.G, B: c.B}
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Hex returns "#RRGGBB" in upper case.
func (c RGB) Hex() string {
	return strings.ToUpper(c.colorful().Hex())
}

// ParseHex parses "#RRGGBB" or "#RGB".
func ParseHex(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if (len(s) != 4 && len(s) != 7) || strings.Trim(s[1:], "0123456789abcdefABCDEF") != "" {
		return RGB{}, fmt.Errorf("%q is not a #RGB or #RRGGBB color", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, err
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// HSL holds hue in degrees [0,360) and saturation/lightness in percent.
type HSL struct {
	H int `json:"h"`
	S int `json:"s"`
	L int `json:"l"`
}

// ToHSL converts c to rounded HSL.
func (c RGB) ToHSL() HSL {
	h, s, l := c.colorful().Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	hue := int(math.Round(h)) % 360
	return HSL{H: hue, S: int(math.Round(s * 100)), L: int(math.Round(l * 100))}
}

// Rating is a WCAG conformance level.
type Rating string

const (
	RatingAAA  Rating = "AAA"
	RatingAA   Rating = "AA"
	RatingA    Rating = "A"
	RatingFail Rating = "Fail"
)

// RatingFor maps a contrast ratio to a rating: 7 and above is AAA, 4.5 AA,
// 3 A, anything lower fails.
func RatingFor(ratio float64) Rating {
	switch {
	case ratio >= 7.0:
		return RatingAAA
	case ratio >= 4.5:
		return RatingAA
	case ratio >= 3.0:
		return RatingA
	default:
		return RatingFail
	}
}

// Contrast describes a color against pure white and pure black. Ratios are
// rounded to two decimals for display; ratings are graded on the exact ratio.
type Contrast struct {
	VsWhite       float64 `json:"vs_white"`
	VsBlack       float64 `json:"vs_black"`
	RatingOnWhite Rating  `json:"rating_on_white"`
	RatingOnBlack Rating  `json:"rating_on_black"`
}

var (
	white = RGB{255, 255, 255}
	black = RGB{0, 0, 0}
)

// RelativeLuminance is the WCAG 2.x relative luminance of c.
func RelativeLuminance(c RGB) float64 {
	r, g, b := c.colorful().LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// ContrastRatio returns (L1+0.05)/(L2+0.05) for the lighter L1 and darker
// L2, rounded to two decimals. Do not grade the rounded value.
func ContrastRatio(a, b RGB) float64 {
	return round2(contrastRatio(a, b))
}

func contrastRatio(a, b RGB) float64 {
	la, lb := RelativeLuminance(a), RelativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ContrastOf computes the white/black contrast descriptor of c.
func ContrastOf(c RGB) Contrast {
	vw := contrastRatio(c, white)
	vb := contrastRatio(c, black)
	return Contrast{
		VsWhite:       round2(vw),
		VsBlack:       round2(vb),
		RatingOnWhite: RatingFor(vw),
		RatingOnBlack: RatingFor(vb),
	}
}

// Brightness is the perceived brightness 0-255 using ITU-R BT.601 luma
// weights.
func Brightness(c RGB) int {
	return int(math.Round((299*float64(c.R) + 587*float64(c.G) + 114*float64(c.B)) / 1000))
}

// Descriptor is everything derived from one pixel.
type Descriptor struct {
	Hex        string   `json:"hex"`
	RGB        RGB      `json:"rgb"`
	HSL        HSL      `json:"hsl"`
	Brightness int      `json:"brightness"`
	Contrast   Contrast `json:"contrast"`
}

// Analyze derives the descriptor of c.
func Analyze(c RGB) Descriptor {
	return Descriptor{
		Hex:        c.Hex(),
		RGB:        c,
		HSL:        c.ToHSL(),
		Brightness: Brightness(c),
		Contrast:   ContrastOf(c),
	}
}

// IsDuplicate reports whether every channel of a and b differs by at most
// tolerance.
func IsDuplicate(a, b RGB, tolerance int) bool {
	return chanDiff(a.R, b.R) <= tolerance &&
		chanDiff(a.G, b.G) <= tolerance &&
		chanDiff(a.B, b.B) <= tolerance
}

func chanDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
