package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Word is a recognized word and its box in the image that was recognized.
type Word struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Result contains the recognized text of an image.
type Result struct {
	// FullText is all recognized text with original spacing/newlines.
	FullText string `json:"full_text"`

	// Words may be empty if bounding box extraction fails (text will still
	// be in FullText).
	Words []Word `json:"words"`
}

// Recognizer reads text out of an image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (*Result, error)
}

// TesseractRecognizer runs Tesseract through gosseract. Each call uses its
// own client, so a recognizer may be shared between goroutines.
type TesseractRecognizer struct {
	language string
}

// NewTesseractRecognizer returns a recognizer for a Tesseract language code
// such as "eng". The language data must be installed.
func NewTesseractRecognizer(language string) *TesseractRecognizer {
	if language == "" {
		language = "eng"
	}
	return &TesseractRecognizer{language: language}
}

// Language returns the configured language code.
func (r *TesseractRecognizer) Language() string {
	return r.language
}

// Recognize performs OCR on img. Word boxes are relative to img's bounds.
func (r *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &Result{FullText: text, Words: []Word{}}, nil
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Box:        box.Box,
		})
	}
	return &Result{FullText: text, Words: words}, nil
}

// minRegionHeight is the height below which regions are upscaled before
// recognition; Tesseract does poorly on small glyphs.
const minRegionHeight = 120

// RecognizeRegion crops region out of img, upscales it when it is short, runs
// r on it and maps word boxes back to img's coordinates.
func RecognizeRegion(ctx context.Context, r Recognizer, img image.Image, region image.Rectangle) (*Result, error) {
	region = region.Canon().Intersect(img.Bounds())
	if region.Empty() {
		return nil, fmt.Errorf("region lies outside the image")
	}

	var cropped image.Image = imaging.Crop(img, region)
	scale := 1.0
	if region.Dy() < minRegionHeight {
		scale = math.Ceil(float64(minRegionHeight) / float64(region.Dy()))
		if scale > 4 {
			scale = 4
		}
		cropped = imaging.Resize(cropped, int(float64(region.Dx())*scale), int(float64(region.Dy())*scale), imaging.Lanczos)
	}

	result, err := r.Recognize(ctx, cropped)
	if err != nil {
		return nil, err
	}

	for i := range result.Words {
		b := result.Words[i].Box
		result.Words[i].Box = image.Rect(
			region.Min.X+int(math.Floor(float64(b.Min.X)/scale)),
			region.Min.Y+int(math.Floor(float64(b.Min.Y)/scale)),
			region.Min.X+int(math.Ceil(float64(b.Max.X)/scale)),
			region.Min.Y+int(math.Ceil(float64(b.Max.Y)/scale)),
		)
	}
	return result, nil
}
