// Package export assembles the collected colors, typography and measurements
// into a DesignSpecification and serializes it as JSON, CSS, design tokens,
// a printable HTML report or Markdown.
//
// Every serializer is a pure function of the specification it is given:
// nothing reads the clock or shared state, so the same snapshot always
// produces the same bytes.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ironsheep/design-spec-mcp/internal/colors"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
	"github.com/ironsheep/design-spec-mcp/internal/measure"
	"github.com/ironsheep/design-spec-mcp/internal/typography"
)

// Version is the specification format version written into metadata.
const Version = "1.0.0"

// Metadata identifies the inspected file.
type Metadata struct {
	Version     string        `json:"version"`
	FileID      string        `json:"file_id,omitempty"`
	FileName    string        `json:"file_name"`
	ProjectName string        `json:"project_name,omitempty"`
	ExportedAt  time.Time     `json:"exported_at"`
	ImageURL    string        `json:"image_url"`
	Dimensions  geometry.Size `json:"dimensions"`
}

// DesignSpecification is everything collected during one inspection. Excluded
// sections are nil and drop out of the JSON form.
type DesignSpecification struct {
	Metadata     Metadata                     `json:"metadata,omitzero"`
	Colors       []colors.Sample              `json:"colors,omitzero"`
	Typography   []typography.Sample          `json:"typography,omitzero"`
	Measurements []measure.Measurement        `json:"measurements,omitzero"`
	Spacing      []measure.SpacingMeasurement `json:"spacing,omitzero"`
}

// Source is the input to Build.
type Source struct {
	FileID      string
	FileName    string
	ProjectName string
	ImageURL    string
	Dimensions  geometry.Size

	Colors       []colors.Sample
	Typography   []typography.Sample
	Measurements []measure.Measurement
	Spacing      []measure.SpacingMeasurement
}

// Build copies src into a new specification stamped with at. The slices are
// copied so later edits to the collections do not leak into an export in
// progress.
func Build(src Source, at time.Time) *DesignSpecification {
	spacing := make([]measure.SpacingMeasurement, len(src.Spacing))
	for i, s := range src.Spacing {
		s.Points = append([]geometry.Point(nil), s.Points...)
		spacing[i] = s
	}
	return &DesignSpecification{
		Metadata: Metadata{
			Version:     Version,
			FileID:      src.FileID,
			FileName:    src.FileName,
			ProjectName: src.ProjectName,
			ExportedAt:  at.UTC(),
			ImageURL:    src.ImageURL,
			Dimensions:  src.Dimensions,
		},
		Colors:       append(make([]colors.Sample, 0, len(src.Colors)), src.Colors...),
		Typography:   append(make([]typography.Sample, 0, len(src.Typography)), src.Typography...),
		Measurements: append(make([]measure.Measurement, 0, len(src.Measurements)), src.Measurements...),
		Spacing:      spacing,
	}
}

// Include selects which sections an export carries.
type Include struct {
	Colors       bool `json:"colors"`
	Typography   bool `json:"typography"`
	Measurements bool `json:"measurements"`
	Metadata     bool `json:"metadata"`
}

// IncludeAll selects every section.
func IncludeAll() Include {
	return Include{Colors: true, Typography: true, Measurements: true, Metadata: true}
}

// ParseInclude turns a list of section names into an Include. An empty list
// selects everything.
func ParseInclude(names []string) (Include, error) {
	if len(names) == 0 {
		return IncludeAll(), nil
	}
	var inc Include
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "colors":
			inc.Colors = true
		case "typography":
			inc.Typography = true
		case "measurements":
			inc.Measurements = true
		case "metadata":
			inc.Metadata = true
		case "all":
			return IncludeAll(), nil
		default:
			return Include{}, apperrors.NewValidationError(fmt.Sprintf("unknown include section %q", n), nil)
		}
	}
	return inc, nil
}

// Filter returns a shallow copy of spec with excluded sections removed.
func (spec *DesignSpecification) Filter(inc Include) *DesignSpecification {
	out := *spec
	if !inc.Metadata {
		out.Metadata = Metadata{}
	}
	if !inc.Colors {
		out.Colors = nil
	}
	if !inc.Typography {
		out.Typography = nil
	}
	if !inc.Measurements {
		out.Measurements = nil
		out.Spacing = nil
	}
	return &out
}

// JSON serializes the included sections of spec with two-space indentation.
func JSON(spec *DesignSpecification, inc Include) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(spec.Filter(inc)); err != nil {
		return nil, apperrors.NewExportSerializationError("failed to encode specification", err)
	}
	return buf.Bytes(), nil
}

// ParseJSON reads a specification written by JSON. Missing sections come
// back empty rather than nil.
//
// Color descriptors are rederived from their hex value and typography is
// normalized again, so values that reach the CSS and HTML writers are the
// ones the collectors would have produced.
func ParseJSON(data []byte) (*DesignSpecification, error) {
	var spec DesignSpecification
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, apperrors.NewExportSerializationError("invalid specification JSON", err)
	}
	if err := spec.revalidate(); err != nil {
		return nil, err
	}
	if spec.Colors == nil {
		spec.Colors = []colors.Sample{}
	}
	if spec.Typography == nil {
		spec.Typography = []typography.Sample{}
	}
	if spec.Measurements == nil {
		spec.Measurements = []measure.Measurement{}
	}
	if spec.Spacing == nil {
		spec.Spacing = []measure.SpacingMeasurement{}
	}
	return &spec, nil
}

func (spec *DesignSpecification) revalidate() error {
	for i, c := range spec.Colors {
		rgb, err := colors.ParseHex(c.Hex)
		if err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("color %d has invalid hex %q", i+1, c.Hex), err)
		}
		spec.Colors[i].Descriptor = colors.Analyze(rgb)
	}
	for i, s := range spec.Typography {
		n, err := typography.Normalize(s)
		if err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("typography %d is invalid", i+1), err)
		}
		spec.Typography[i] = n
	}
	for i, s := range spec.Spacing {
		switch s.Type {
		case measure.SpacingSpacing, measure.SpacingPadding, measure.SpacingMargin:
		default:
			return apperrors.NewValidationError(fmt.Sprintf("spacing %d has unknown type %q", i+1, s.Type), nil)
		}
	}
	return nil
}
