package export

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ironsheep/design-spec-mcp/internal/typography"
)

var stripPolicy = bluemonday.StrictPolicy()

// plainText strips markup from user-entered text and collapses whitespace.
func plainText(s string) string {
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// cssComment makes s safe inside /* */.
func cssComment(s string) string {
	return strings.ReplaceAll(plainText(s), "*/", "* /")
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

var genericFamilies = map[string]bool{
	"serif": true, "sans-serif": true, "monospace": true, "cursive": true,
	"fantasy": true, "system-ui": true,
}

func cssFamily(f string) string {
	f = plainText(f)
	if genericFamilies[strings.ToLower(f)] {
		return strings.ToLower(f)
	}
	return strconv.Quote(f)
}

// CSS renders custom properties for every color and typography sample, the
// matching utility classes and the measurements as comments.
func CSS(spec *DesignSpecification, inc Include) []byte {
	spec = spec.Filter(inc)
	var b strings.Builder

	b.WriteString("/* Design specification")
	if inc.Metadata {
		m := spec.Metadata
		fmt.Fprintf(&b, ": %s", cssComment(m.FileName))
		if m.ProjectName != "" {
			fmt.Fprintf(&b, "\n   Project: %s", cssComment(m.ProjectName))
		}
		fmt.Fprintf(&b, "\n   Image: %gx%g", m.Dimensions.Width, m.Dimensions.Height)
		fmt.Fprintf(&b, "\n   Exported: %s", m.ExportedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	b.WriteString(" */\n\n")

	b.WriteString(":root {\n")
	for i, c := range spec.Colors {
		fmt.Fprintf(&b, "  --color-%d: %s;\n", i+1, c.Hex)
	}
	for i, t := range spec.Typography {
		p := fmt.Sprintf("--typography-%d", i+1)
		fmt.Fprintf(&b, "  %s-font-family: %s;\n", p, cssFamily(t.FontFamily))
		fmt.Fprintf(&b, "  %s-font-size: %s;\n", p, px(t.FontSize))
		fmt.Fprintf(&b, "  %s-font-weight: %d;\n", p, t.FontWeight)
		fmt.Fprintf(&b, "  %s-line-height: %s;\n", p, px(t.LineHeight))
		fmt.Fprintf(&b, "  %s-letter-spacing: %s;\n", p, px(t.LetterSpacing))
		fmt.Fprintf(&b, "  %s-color: %s;\n", p, t.Color)
	}
	b.WriteString("}\n")

	for i, c := range spec.Colors {
		n := i + 1
		fmt.Fprintf(&b, "\n/* %s rgb(%d, %d, %d), %s on white, %s on black */\n",
			c.Hex, c.RGB.R, c.RGB.G, c.RGB.B, c.Contrast.RatingOnWhite, c.Contrast.RatingOnBlack)
		fmt.Fprintf(&b, ".bg-color-%d { background-color: var(--color-%d); }\n", n, n)
		fmt.Fprintf(&b, ".text-color-%d { color: var(--color-%d); }\n", n, n)
	}

	for i, t := range spec.Typography {
		writeTypographyClass(&b, i+1, t)
	}

	if len(spec.Measurements) > 0 || len(spec.Spacing) > 0 {
		b.WriteString("\n/* Measurements\n")
		for i, m := range spec.Measurements {
			fmt.Fprintf(&b, "   %d. %dpx from (%g, %g) to (%g, %g), %g deg\n",
				i+1, m.Distance, m.Start.X, m.Start.Y, m.End.X, m.End.Y, m.Angle)
		}
		for _, s := range spec.Spacing {
			label := cssComment(s.Label)
			if label == "" {
				label = string(s.Type)
			}
			fmt.Fprintf(&b, "   %s (%s, %d points): horizontal %dpx, vertical %dpx, diagonal %dpx\n",
				label, s.Type, len(s.Points), s.Spans.Horizontal, s.Spans.Vertical, s.Spans.Diagonal)
		}
		b.WriteString("*/\n")
	}

	return []byte(b.String())
}

func writeTypographyClass(b *strings.Builder, n int, t typography.Sample) {
	b.WriteString("\n")
	desc := string(t.Classification)
	if t.Label != "" {
		desc = cssComment(t.Label) + ", " + desc
	}
	fmt.Fprintf(b, "/* %s */\n", desc)
	fmt.Fprintf(b, ".typography-%d {\n", n)
	p := fmt.Sprintf("--typography-%d", n)
	fmt.Fprintf(b, "  font-family: var(%s-font-family);\n", p)
	fmt.Fprintf(b, "  font-size: var(%s-font-size);\n", p)
	fmt.Fprintf(b, "  font-weight: var(%s-font-weight);\n", p)
	fmt.Fprintf(b, "  line-height: var(%s-line-height);\n", p)
	fmt.Fprintf(b, "  letter-spacing: var(%s-letter-spacing);\n", p)
	fmt.Fprintf(b, "  color: var(%s-color);\n", p)
	fmt.Fprintf(b, "  text-align: %s;\n", t.TextAlign)
	fmt.Fprintf(b, "  text-decoration: %s;\n", t.TextDecoration)
	fmt.Fprintf(b, "  text-transform: %s;\n", t.TextTransform)
	b.WriteString("}\n")
}
