package typography

import (
	"context"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/ironsheep/design-spec-mcp/internal/colors"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
	"github.com/ironsheep/design-spec-mcp/internal/imaging"
	"github.com/ironsheep/design-spec-mcp/internal/ocr"
)

// MinConfidence drops OCR words Tesseract is unsure about.
const MinConfidence = 0.3

// Extraction is a synthetic sample plus the words it was derived from.
type Extraction struct {
	Sample Sample     `json:"sample"`
	Words  []ocr.Word `json:"words"`
	Lines  int        `json:"lines"`
}

// Extract reads the text inside region and derives a typography sample from
// it. Font size is the median word height, line height the median distance
// between line tops, and color the darkest dominant color of the region.
// Family, weight and the enums stay at their defaults; the caller can edit
// the sample before adding it.
func Extract(ctx context.Context, r ocr.Recognizer, c *imaging.Canvas, region image.Rectangle) (*Extraction, error) {
	region = region.Canon().Intersect(c.Bounds())
	if region.Empty() {
		return nil, apperrors.NewValidationError("region does not overlap the image", nil)
	}

	res, err := ocr.RecognizeRegion(ctx, r, c.Image(), region)
	if err != nil {
		return nil, apperrors.NewValidationError("text recognition failed", err)
	}

	words := make([]ocr.Word, 0, len(res.Words))
	for _, w := range res.Words {
		if strings.TrimSpace(w.Text) == "" || w.Confidence < MinConfidence || w.Box.Dy() <= 0 {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil, apperrors.NewValidationError("no text found in region", nil)
	}

	heights := make([]float64, len(words))
	for i, w := range words {
		heights[i] = float64(w.Box.Dy())
	}
	size := math.Round(median(heights))

	lines := groupLines(words)
	lineHeight := 0.0
	if len(lines) > 1 {
		gaps := make([]float64, 0, len(lines)-1)
		for i := 1; i < len(lines); i++ {
			gaps = append(gaps, float64(lines[i].top-lines[i-1].top))
		}
		lineHeight = math.Round(median(gaps))
	}

	color := "#000000"
	if d, ok := imaging.Darkest(c.DominantColors(region, 5)); ok {
		color = colors.FromNRGBA(d.Color).Hex()
	}

	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, l.text())
	}

	s, err := Normalize(Sample{
		FontSize:   size,
		LineHeight: lineHeight,
		Color:      color,
		Position:   geometry.Point{X: float64(region.Min.X), Y: float64(region.Min.Y)},
		Text:       strings.Join(texts, "\n"),
		Source:     SourceOCR,
	})
	if err != nil {
		return nil, err
	}
	return &Extraction{Sample: s, Words: words, Lines: len(lines)}, nil
}

type line struct {
	top, bottom int
	words       []ocr.Word
}

func (l line) text() string {
	sort.SliceStable(l.words, func(i, j int) bool { return l.words[i].Box.Min.X < l.words[j].Box.Min.X })
	parts := make([]string, len(l.words))
	for i, w := range l.words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// groupLines clusters words whose vertical centers fall inside the same
// line box, top to bottom and left to right.
func groupLines(words []ocr.Word) []line {
	sorted := make([]ocr.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Min.Y != sorted[j].Box.Min.Y {
			return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
		}
		return sorted[i].Box.Min.X < sorted[j].Box.Min.X
	})

	var lines []line
	for _, w := range sorted {
		center := (w.Box.Min.Y + w.Box.Max.Y) / 2
		if n := len(lines); n > 0 && center < lines[n-1].bottom {
			l := &lines[n-1]
			l.words = append(l.words, w)
			if w.Box.Max.Y > l.bottom {
				l.bottom = w.Box.Max.Y
			}
			continue
		}
		lines = append(lines, line{top: w.Box.Min.Y, bottom: w.Box.Max.Y, words: []ocr.Word{w}})
	}
	return lines
}

func median(v []float64) float64 {
	s := make([]float64, len(v))
	copy(s, v)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
