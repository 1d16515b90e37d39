// Package typography records font observations made on a design image,
// either entered by hand or derived from OCR of a selected region.
package typography

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arbovm/levenshtein"

	"github.com/ironsheep/design-spec-mcp/internal/colors"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
)

// Classification is the role a piece of text plays in the design.
type Classification string

const (
	ClassHeading Classification = "heading"
	ClassBody    Classification = "body"
	ClassCaption Classification = "caption"
	ClassButton  Classification = "button"
	ClassLabel   Classification = "label"
	ClassCode    Classification = "code"
)

// Classifications lists every classification in display order.
var Classifications = []Classification{ClassHeading, ClassBody, ClassCaption, ClassButton, ClassLabel, ClassCode}

// Alignment is the CSS text-align value.
type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// Decoration is the CSS text-decoration value.
type Decoration string

const (
	DecorationNone        Decoration = "none"
	DecorationUnderline   Decoration = "underline"
	DecorationLineThrough Decoration = "line-through"
	DecorationOverline    Decoration = "overline"
)

// Transform is the CSS text-transform value.
type Transform string

const (
	TransformNone       Transform = "none"
	TransformUppercase  Transform = "uppercase"
	TransformLowercase  Transform = "lowercase"
	TransformCapitalize Transform = "capitalize"
)

// Sources of a sample.
const (
	SourceManual = "manual"
	SourceOCR    = "ocr"
)

// DefaultFamily is used when no family is given or recognized.
const DefaultFamily = "sans-serif"

// Sample is one typography observation. Sizes are CSS pixels; LineHeight is
// in pixels as well so exporters never have to guess the unit.
type Sample struct {
	ID             string         `json:"id"`
	FontFamily     string         `json:"font_family"`
	FontSize       float64        `json:"font_size"`
	FontWeight     int            `json:"font_weight"`
	LineHeight     float64        `json:"line_height"`
	LetterSpacing  float64        `json:"letter_spacing"`
	Color          string         `json:"color"`
	TextAlign      Alignment      `json:"text_align"`
	TextDecoration Decoration     `json:"text_decoration"`
	TextTransform  Transform      `json:"text_transform"`
	Position       geometry.Point `json:"position"`
	Classification Classification `json:"classification"`
	Label          string         `json:"label,omitempty"`
	Text           string         `json:"text,omitempty"`
	Source         string         `json:"source"`
	CreatedAt      time.Time      `json:"created_at"`
}

// KnownFamilies are matched against user input so small typos collapse onto
// the canonical name.
var KnownFamilies = []string{
	"Arial", "Helvetica", "Helvetica Neue", "Inter", "Roboto", "Open Sans",
	"Lato", "Montserrat", "Poppins", "Source Sans Pro", "Nunito", "Raleway",
	"Work Sans", "IBM Plex Sans", "SF Pro Display", "SF Pro Text", "Segoe UI",
	"Georgia", "Times New Roman", "Merriweather", "Playfair Display",
	"Courier New", "Fira Code", "JetBrains Mono", "Source Code Pro", "Menlo",
	"sans-serif", "serif", "monospace", "system-ui",
}

// NormalizeFamily trims name and snaps it to a known family when the edit
// distance is small relative to its length. Unknown families pass through.
func NormalizeFamily(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return DefaultFamily
	}
	lower := strings.ToLower(name)
	best, bestDist := "", math.MaxInt
	for _, f := range KnownFamilies {
		d := levenshtein.Distance(lower, strings.ToLower(f))
		if d < bestDist {
			best, bestDist = f, d
		}
	}
	if bestDist == 0 || bestDist <= len(lower)/5 {
		return best
	}
	return name
}

// ClassifyBySize guesses a classification from size and weight.
func ClassifyBySize(size float64, weight int) Classification {
	switch {
	case size >= 24 || (size >= 20 && weight >= 600):
		return ClassHeading
	case size <= 12:
		return ClassCaption
	default:
		return ClassBody
	}
}

// Normalize fills defaults and validates a sample. Enum fields accept any
// case; unknown values are rejected.
func Normalize(s Sample) (Sample, error) {
	s.FontFamily = NormalizeFamily(s.FontFamily)

	if s.FontSize <= 0 || s.FontSize > 1000 || math.IsNaN(s.FontSize) {
		return s, apperrors.NewValidationError("font size must be between 0 and 1000 px", nil)
	}
	if s.FontWeight == 0 {
		s.FontWeight = 400
	}
	if s.FontWeight < 100 || s.FontWeight > 900 || s.FontWeight%100 != 0 {
		return s, apperrors.NewValidationError("font weight must be a multiple of 100 between 100 and 900", nil)
	}
	if s.LineHeight < 0 || math.IsNaN(s.LineHeight) {
		return s, apperrors.NewValidationError("line height cannot be negative", nil)
	}
	if s.LineHeight == 0 {
		s.LineHeight = math.Round(s.FontSize*1.2*100) / 100
	}
	if math.IsNaN(s.LetterSpacing) || math.Abs(s.LetterSpacing) > 100 {
		return s, apperrors.NewValidationError("letter spacing out of range", nil)
	}

	if s.Color == "" {
		s.Color = "#000000"
	}
	rgb, err := colors.ParseHex(s.Color)
	if err != nil {
		return s, apperrors.NewValidationError(fmt.Sprintf("invalid color %q", s.Color), err)
	}
	s.Color = rgb.Hex()

	var ok bool
	if s.TextAlign, ok = parseEnum(s.TextAlign, AlignLeft, AlignLeft, AlignCenter, AlignRight, AlignJustify); !ok {
		return s, apperrors.NewValidationError(fmt.Sprintf("invalid text align %q", s.TextAlign), nil)
	}
	if s.TextDecoration, ok = parseEnum(s.TextDecoration, DecorationNone, DecorationNone, DecorationUnderline, DecorationLineThrough, DecorationOverline); !ok {
		return s, apperrors.NewValidationError(fmt.Sprintf("invalid text decoration %q", s.TextDecoration), nil)
	}
	if s.TextTransform, ok = parseEnum(s.TextTransform, TransformNone, TransformNone, TransformUppercase, TransformLowercase, TransformCapitalize); !ok {
		return s, apperrors.NewValidationError(fmt.Sprintf("invalid text transform %q", s.TextTransform), nil)
	}

	if s.Classification == "" {
		s.Classification = ClassifyBySize(s.FontSize, s.FontWeight)
	}
	if s.Classification, ok = parseEnum(s.Classification, ClassBody, Classifications...); !ok {
		return s, apperrors.NewValidationError(fmt.Sprintf("invalid classification %q", s.Classification), nil)
	}

	if s.Source == "" {
		s.Source = SourceManual
	}
	s.Label = strings.TrimSpace(s.Label)
	return s, nil
}

func parseEnum[T ~string](v T, def T, allowed ...T) (T, bool) {
	if v == "" {
		return def, true
	}
	lower := T(strings.ToLower(strings.TrimSpace(string(v))))
	for _, a := range allowed {
		if lower == a {
			return a, true
		}
	}
	return v, false
}

// Collection holds the typography samples of one session. It is not safe for
// concurrent use.
type Collection struct {
	samples []Sample
	newID   func() string
	now     func() time.Time
}

// NewCollection returns an empty collection.
func NewCollection(newID func() string, now func() time.Time) *Collection {
	if now == nil {
		now = time.Now
	}
	return &Collection{newID: newID, now: now}
}

// Add validates s, assigns an id and timestamp and appends it.
func (c *Collection) Add(s Sample) (Sample, error) {
	s, err := Normalize(s)
	if err != nil {
		return Sample{}, err
	}
	s.ID = c.newID()
	s.CreatedAt = c.now().UTC()
	c.samples = append(c.samples, s)
	return s, nil
}

// Remove deletes a sample by id.
func (c *Collection) Remove(id string) bool {
	for i, s := range c.samples {
		if s.ID == id {
			c.samples = append(c.samples[:i:i], c.samples[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the sample with the given id.
func (c *Collection) Find(id string) (Sample, bool) {
	for _, s := range c.samples {
		if s.ID == id {
			return s, true
		}
	}
	return Sample{}, false
}

// Samples returns a copy of the samples in insertion order.
func (c *Collection) Samples() []Sample {
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

// Len returns the number of samples.
func (c *Collection) Len() int {
	return len(c.samples)
}
