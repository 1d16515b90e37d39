package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
)

// Crop output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// DefaultQuality is used for lossy formats when no quality is given.
const DefaultQuality = 0.92

// AllowedScales lists the output scale factors a crop may request.
var AllowedScales = []float64{0.5, 1, 2, 3}

// CropOptions controls crop export. Zero values mean 1x PNG. A nil Quality
// means DefaultQuality; an explicit 0 is the lowest lossy quality.
type CropOptions struct {
	Scale   float64  `json:"scale"`
	Format  string   `json:"format"`
	Quality *float64 `json:"quality,omitempty"`
}

// CropResult contains the exported bitmap.
type CropResult struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Scale    float64 `json:"scale"`
	Format   string  `json:"format"`
	MimeType string  `json:"mime_type"`
	FileSize int     `json:"file_size"`
	DataURL  string  `json:"data_url"`
	data []byte
}

// Bytes returns the encoded image.
func (r *CropResult) Bytes() []byte {
	return r.data
}

// Normalize fills defaults and validates the options.
func (o CropOptions) Normalize() (CropOptions, error) {
	if o.Scale == 0 {
		o.Scale = 1
	}
	if !scaleAllowed(o.Scale) {
		return o, apperrors.NewValidationError(fmt.Sprintf("scale %g not supported (use 0.5, 1, 2 or 3)", o.Scale), nil)
	}

	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	switch o.Format {
	case "":
		o.Format = FormatPNG
	case "jpg":
		o.Format = FormatJPEG
	case FormatPNG, FormatJPEG, FormatWebP:
	default:
		return o, apperrors.NewValidationError(fmt.Sprintf("unsupported format %q", o.Format), nil)
	}

	q := DefaultQuality
	if o.Quality != nil {
		q = *o.Quality
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return o, apperrors.NewValidationError("quality must be between 0 and 1", nil)
	}
	o.Quality = &q
	return o, nil
}

// Crop extracts region from the canvas, scales it and encodes it.
//
// The region is clipped to the canvas. JPEG and WebP honour Quality; PNG is
// lossless.
func (c *Canvas) Crop(region image.Rectangle, opts CropOptions) (*CropResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	region = region.Canon().Intersect(c.pix.Rect)
	if region.Empty() {
		return nil, apperrors.NewValidationError("crop region lies outside the image", nil)
	}

	cropped := imaging.Crop(c.pix, region)
	if opts.Scale != 1 {
		w := int(math.Max(1, math.Round(float64(region.Dx())*opts.Scale)))
		h := int(math.Max(1, math.Round(float64(region.Dy())*opts.Scale)))
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}

	result := &CropResult{
		Width:  cropped.Bounds().Dx(),
		Height: cropped.Bounds().Dy(),
		Scale:  opts.Scale,
		Format: opts.Format,
	}

	var buf bytes.Buffer
	switch opts.Format {
	case FormatJPEG:
		// image/jpeg accepts 1-100.
		q := int(math.Max(1, math.Round(*opts.Quality*100)))
		err = imaging.Encode(&buf, cropped, imaging.JPEG, imaging.JPEGQuality(q))
	case FormatWebP:
		err = webp.Encode(&buf, cropped, webp.Options{Quality: int(math.Round(*opts.Quality * 100))})
	default:
		err = imaging.Encode(&buf, cropped, imaging.PNG)
	}
	if err != nil {
		return nil, apperrors.NewExportSerializationError("failed to encode crop", err)
	}

	result.data = buf.Bytes()
	result.FileSize = buf.Len()
	result.MimeType = MimeType(result.Format)
	result.DataURL = DataURL(result.MimeType, result.data)
	return result, nil
}

// MimeType returns the MIME type for an output format.
func MimeType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reverses DataURL.
func DecodeDataURL(u string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return mimeType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return mimeType, data, nil
}

func scaleAllowed(s float64) bool {
	for _, a := range AllowedScales {
		if s == a {
			return true
		}
	}
	return false
}
