package export

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ironsheep/design-spec-mcp/internal/colors"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

var titleCaser = cases.Title(language.English)

var reportFuncs = template.FuncMap{
	"title": func(s string) string { return titleCaser.String(s) },
	"comma": func(v float64) string { return humanize.Comma(int64(v)) },
	"plain": plainText,
	"px":    px,
	"inc":   func(i int) int { return i + 1 },
	// ink picks black or white text for a swatch, whichever contrasts more.
	"ink": func(c colors.Sample) string {
		if c.Contrast.VsBlack >= c.Contrast.VsWhite {
			return "#000000"
		}
		return "#FFFFFF"
	},
	"css": func(s string) template.CSS { return template.CSS(s) },
}

var reportTemplate = template.Must(template.New("report").Funcs(reportFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{if .Include.Metadata}}{{plain .Spec.Metadata.FileName}} {{end}}Design Specification</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #111; }
h1 { margin-bottom: 0.25rem; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
.swatch { display: inline-block; width: 4rem; padding: 0.4rem; font-family: monospace; }
@media print { body { margin: 0; } section { page-break-inside: avoid; } }
</style>
</head>
<body>
<h1>Design Specification</h1>
{{- with .Spec.Metadata}}{{if $.Include.Metadata}}
<section>
<h2>File</h2>
<table>
<tr><th>File</th><td>{{plain .FileName}}</td></tr>
{{- if .ProjectName}}
<tr><th>Project</th><td>{{plain .ProjectName}}</td></tr>
{{- end}}
<tr><th>Image</th><td>{{.ImageURL}}</td></tr>
<tr><th>Dimensions</th><td>{{comma .Dimensions.Width}} x {{comma .Dimensions.Height}} px</td></tr>
<tr><th>Exported</th><td>{{.ExportedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
<tr><th>Version</th><td>{{.Version}}</td></tr>
</table>
</section>
{{- end}}{{end}}
{{- if .Include.Colors}}
<section>
<h2>Colors</h2>
{{- if .Spec.Colors}}
<table>
<tr><th>#</th><th>Swatch</th><th>RGB</th><th>HSL</th><th>Brightness</th><th>vs White</th><th>vs Black</th></tr>
{{- range $i, $c := .Spec.Colors}}
<tr><td>{{inc $i}}</td><td><span class="swatch" style="background: {{css $c.Hex}}; color: {{css (ink $c)}}">{{$c.Hex}}</span></td><td>{{$c.RGB.R}}, {{$c.RGB.G}}, {{$c.RGB.B}}</td><td>{{$c.HSL.H}}, {{$c.HSL.S}}%, {{$c.HSL.L}}%</td><td>{{$c.Brightness}}</td><td>{{printf "%.2f" $c.Contrast.VsWhite}} {{$c.Contrast.RatingOnWhite}}</td><td>{{printf "%.2f" $c.Contrast.VsBlack}} {{$c.Contrast.RatingOnBlack}}</td></tr>
{{- end}}
</table>
{{- else}}
<p>No colors sampled.</p>
{{- end}}
</section>
{{- end}}
{{- if .Include.Typography}}
<section>
<h2>Typography</h2>
{{- if .Spec.Typography}}
<table>
<tr><th>#</th><th>Role</th><th>Family</th><th>Size</th><th>Weight</th><th>Line height</th><th>Letter spacing</th><th>Color</th><th>Label</th></tr>
{{- range $i, $t := .Spec.Typography}}
<tr><td>{{inc $i}}</td><td>{{title (print $t.Classification)}}</td><td>{{plain $t.FontFamily}}</td><td>{{px $t.FontSize}}</td><td>{{$t.FontWeight}}</td><td>{{px $t.LineHeight}}</td><td>{{px $t.LetterSpacing}}</td><td>{{$t.Color}}</td><td>{{plain $t.Label}}</td></tr>
{{- end}}
</table>
{{- else}}
<p>No typography recorded.</p>
{{- end}}
</section>
{{- end}}
{{- if .Include.Measurements}}
<section>
<h2>Measurements</h2>
{{- if .Spec.Measurements}}
<table>
<tr><th>#</th><th>From</th><th>To</th><th>Distance</th><th>Angle</th></tr>
{{- range $i, $m := .Spec.Measurements}}
<tr><td>{{inc $i}}</td><td>{{$m.Start.X}}, {{$m.Start.Y}}</td><td>{{$m.End.X}}, {{$m.End.Y}}</td><td>{{$m.Distance}}px</td><td>{{$m.Angle}}&deg;</td></tr>
{{- end}}
</table>
{{- end}}
{{- if .Spec.Spacing}}
<h3>Spacing</h3>
<table>
<tr><th>Label</th><th>Type</th><th>Points</th><th>Horizontal</th><th>Vertical</th><th>Diagonal</th></tr>
{{- range .Spec.Spacing}}
<tr><td>{{plain .Label}}</td><td>{{title (print .Type)}}</td><td>{{len .Points}}</td><td>{{.Spans.Horizontal}}px</td><td>{{.Spans.Vertical}}px</td><td>{{.Spans.Diagonal}}px</td></tr>
{{- end}}
</table>
{{- end}}
{{- if not (or .Spec.Measurements .Spec.Spacing)}}
<p>No measurements taken.</p>
{{- end}}
</section>
{{- end}}
</body>
</html>
`))

type reportData struct {
	Spec    *DesignSpecification
	Include Include
}

// HTML renders a print-ready report of spec.
func HTML(spec *DesignSpecification, inc Include) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, reportData{Spec: spec.Filter(inc), Include: inc}); err != nil {
		return nil, apperrors.NewExportSerializationError("failed to render report", err)
	}
	return buf.Bytes(), nil
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown converts the HTML report to Markdown.
func Markdown(spec *DesignSpecification, inc Include) ([]byte, error) {
	page, err := HTML(spec, inc)
	if err != nil {
		return nil, err
	}
	md, err := mdConverter.ConvertString(string(page))
	if err != nil {
		return nil, apperrors.NewExportSerializationError("failed to convert report to markdown", err)
	}
	return []byte(strings.TrimSpace(md) + "\n"), nil
}
