package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

// Token is one design token in the $value/$type/$description form.
type Token struct {
	Value       any    `json:"$value"`
	Type        string `json:"$type"`
	Description string `json:"$description,omitempty"`
}

// TypographyValue is the composite $value of a typography token.
type TypographyValue struct {
	FontFamily    string `json:"fontFamily"`
	FontSize      string `json:"fontSize"`
	FontWeight    int    `json:"fontWeight"`
	LineHeight    string `json:"lineHeight"`
	LetterSpacing string `json:"letterSpacing"`
}

// TokenDocument groups tokens by category. Maps are encoded with sorted
// keys, so the output is stable.
type TokenDocument struct {
	Color      map[string]Token `json:"color,omitempty"`
	Typography map[string]Token `json:"typography,omitempty"`
	Spacing    map[string]Token `json:"spacing,omitempty"`
	Meta       *TokenMeta       `json:"$metadata,omitempty"`
}

// TokenMeta carries file identity when metadata is included.
type TokenMeta struct {
	Version     string `json:"version"`
	FileName    string `json:"fileName"`
	ProjectName string `json:"projectName,omitempty"`
}

// BuildTokens converts spec to a token document. Spacing tokens come from
// the distinct non-zero distances of the point-to-point measurements.
func BuildTokens(spec *DesignSpecification, inc Include) *TokenDocument {
	spec = spec.Filter(inc)
	doc := &TokenDocument{}

	if inc.Metadata {
		doc.Meta = &TokenMeta{
			Version:     spec.Metadata.Version,
			FileName:    spec.Metadata.FileName,
			ProjectName: spec.Metadata.ProjectName,
		}
	}

	if len(spec.Colors) > 0 {
		doc.Color = make(map[string]Token, len(spec.Colors))
		for i, c := range spec.Colors {
			doc.Color[fmt.Sprintf("color-%d", i+1)] = Token{
				Value: c.Hex,
				Type:  "color",
				Description: fmt.Sprintf("rgb(%d, %d, %d); contrast %.2f on white (%s), %.2f on black (%s)",
					c.RGB.R, c.RGB.G, c.RGB.B, c.Contrast.VsWhite, c.Contrast.RatingOnWhite, c.Contrast.VsBlack, c.Contrast.RatingOnBlack),
			}
		}
	}

	if len(spec.Typography) > 0 {
		doc.Typography = make(map[string]Token, len(spec.Typography))
		for i, t := range spec.Typography {
			desc := string(t.Classification)
			if t.Label != "" {
				desc = plainText(t.Label) + " (" + desc + ")"
			}
			doc.Typography[fmt.Sprintf("typography-%d", i+1)] = Token{
				Value: TypographyValue{
					FontFamily:    plainText(t.FontFamily),
					FontSize:      px(t.FontSize),
					FontWeight:    t.FontWeight,
					LineHeight:    px(t.LineHeight),
					LetterSpacing: px(t.LetterSpacing),
				},
				Type:        "typography",
				Description: desc,
			}
		}
	}

	counts := make(map[int]int)
	for _, m := range spec.Measurements {
		if m.Distance > 0 {
			counts[m.Distance]++
		}
	}
	if len(counts) > 0 {
		distances := make([]int, 0, len(counts))
		for d := range counts {
			distances = append(distances, d)
		}
		sort.Ints(distances)
		doc.Spacing = make(map[string]Token, len(distances))
		for _, d := range distances {
			desc := "Measured once"
			if n := counts[d]; n > 1 {
				desc = fmt.Sprintf("Measured %d times", n)
			}
			doc.Spacing[fmt.Sprintf("spacing-%d", d)] = Token{
				Value:       fmt.Sprintf("%dpx", d),
				Type:        "dimension",
				Description: desc,
			}
		}
	}
	return doc
}

// Tokens serializes BuildTokens(spec, inc) as indented JSON.
func Tokens(spec *DesignSpecification, inc Include) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(BuildTokens(spec, inc)); err != nil {
		return nil, apperrors.NewExportSerializationError("failed to encode design tokens", err)
	}
	return buf.Bytes(), nil
}
