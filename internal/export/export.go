package export

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

// Format is an export output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSS      Format = "css"
	FormatTokens   Format = "tokens"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatCSS, FormatTokens, FormatHTML, FormatMarkdown}

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "css":
		return FormatCSS, nil
	case "tokens", "design-tokens":
		return FormatTokens, nil
	case "html", "pdf", "print":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unsupported export format %q", s), nil)
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	switch f {
	case FormatCSS:
		return "css"
	case FormatTokens:
		return "tokens.json"
	case FormatHTML:
		return "html"
	case FormatMarkdown:
		return "md"
	default:
		return "json"
	}
}

// MimeType returns the download MIME type for f.
func (f Format) MimeType() string {
	switch f {
	case FormatCSS:
		return "text/css"
	case FormatHTML:
		return "text/html"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "application/json"
	}
}

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeName lowercases s and replaces every run of characters other than
// letters and digits with a single hyphen.
func SanitizeName(s string) string {
	return strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Filename builds "{project-}{name}-{timestamp}.{ext}". An extension on name
// is dropped. The timestamp is ISO 8601 in UTC with colons replaced so the
// name is valid on every filesystem.
func Filename(project, name string, at time.Time, f Format) string {
	base := SanitizeName(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		base = "design-spec"
	}
	if p := SanitizeName(project); p != "" {
		base = p + "-" + base
	}
	return fmt.Sprintf("%s-%s.%s", base, at.UTC().Format("2006-01-02T15-04-05Z"), f.Extension())
}

// Result is a serialized export ready to be written or downloaded.
type Result struct {
	Format   Format `json:"format"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Export serializes spec in format f. The file name is derived from the
// specification's metadata and export time; name overrides the file name
// part when set.
func Export(spec *DesignSpecification, f Format, inc Include, name string) (*Result, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = JSON(spec, inc)
	case FormatCSS:
		data = CSS(spec, inc)
	case FormatTokens:
		data, err = Tokens(spec, inc)
	case FormatHTML:
		data, err = HTML(spec, inc)
	case FormatMarkdown:
		data, err = Markdown(spec, inc)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported export format %q", f), nil)
	}
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = spec.Metadata.FileName
	}
	return &Result{
		Format:   f,
		Filename: Filename(spec.Metadata.ProjectName, name, spec.Metadata.ExportedAt, f),
		MimeType: f.MimeType(),
		Data:     data,
	}, nil
}
