package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/clone"
	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/geometry"
	"github.com/ironsheep/design-spec-mcp/internal/logger"
	"github.com/ironsheep/design-spec-mcp/internal/remote"
)

// How a canvas obtained its pixels.
const (
	ViaFile   = "file"
	ViaDirect = "direct"
	ViaRelay  = "relay"
)

// Canvas is an offscreen RGBA surface holding one source image at its
// natural size. The origin of the pixel buffer is always (0,0).
type Canvas struct {
	Source   string    `json:"source"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Format   string    `json:"format"`
	Via      string    `json:"via"`
	ByteSize int       `json:"byte_size"`
	LoadedAt time.Time `json:"loaded_at"`

	pix *image.RGBA
}

// NewCanvas wraps an in-memory image, mainly for tests and offline use.
func NewCanvas(source string, img image.Image) *Canvas {
	pix := clone.AsRGBA(img)
	if pix.Rect.Min != (image.Point{}) {
		pix.Rect = pix.Rect.Sub(pix.Rect.Min)
	}
	return &Canvas{
		Source:   source,
		Width:    pix.Rect.Dx(),
		Height:   pix.Rect.Dy(),
		Format:   "memory",
		Via:      ViaFile,
		LoadedAt: time.Now().UTC(),
		pix:      pix,
	}
}

// Image returns the backing pixel buffer. Callers must not modify it.
func (c *Canvas) Image() *image.RGBA {
	return c.pix
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle {
	return c.pix.Rect
}

// NaturalSize returns the canvas dimensions as a geometry size.
func (c *Canvas) NaturalSize() geometry.Size {
	return geometry.Size{Width: float64(c.Width), Height: float64(c.Height)}
}

// Pixel returns the straight-alpha color at (x, y). Out-of-range coordinates
// are clamped to the nearest edge pixel; the point actually read is returned.
func (c *Canvas) Pixel(x, y int) (color.NRGBA, image.Point) {
	x = clampInt(x, 0, c.Width-1)
	y = clampInt(y, 0, c.Height-1)
	px := color.NRGBAModel.Convert(c.pix.RGBAAt(x, y)).(color.NRGBA)
	return px, image.Pt(x, y)
}

// SamplerOptions configures where a Sampler gets its bytes.
type SamplerOptions struct {
	// Direct fetches from the image origin. Nil disables the direct path.
	Direct remote.Fetcher
	// Relay fetches through the same-origin relay. Nil disables the fallback.
	Relay remote.Fetcher
	// PageOrigin is the origin the viewer is served from. Images from any
	// other origin skip the direct path. Empty means every origin is allowed.
	PageOrigin string
	// MaxCanvasPixels bounds width*height of a canvas. Zero means unlimited.
	MaxCanvasPixels int64
}

// Sampler draws source images onto canvases and caches one canvas per source
// until it is released.
//
// Sampler is safe for concurrent use.
type Sampler struct {
	opts SamplerOptions

	mu       sync.RWMutex
	canvases map[string]*Canvas
}

// NewSampler creates a sampler with an empty cache.
func NewSampler(opts SamplerOptions) *Sampler {
	return &Sampler{
		opts:     opts,
		canvases: make(map[string]*Canvas),
	}
}

// Load returns the canvas for src, drawing it on first use.
//
// Remote sources are fetched directly when same-origin; when the direct path
// is unavailable or fails, the relay is used. Failures are always *AppError:
//   - cross_origin_blocked when the direct path failed and no relay exists
//   - image_fetch_failed when the relay call failed
//   - canvas_context_unavailable when the image cannot be given a canvas
func (s *Sampler) Load(ctx context.Context, src string) (*Canvas, error) {
	s.mu.RLock()
	if c, ok := s.canvases[src]; ok {
		s.mu.RUnlock()
		logger.WithField("source", src).Debug("canvas cache hit")
		return c, nil
	}
	s.mu.RUnlock()

	c, err := s.draw(ctx, src)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.canvases[src]; ok {
		return existing, nil
	}
	s.canvases[src] = c

	logger.WithFields(map[string]interface{}{
		"source": src,
		"via":    c.Via,
		"width":  c.Width,
		"height": c.Height,
		"bytes":  humanize.Bytes(uint64(c.ByteSize)),
	}).Info("canvas ready")
	return c, nil
}

// Cached reports whether a canvas for src is held.
func (s *Sampler) Cached(src string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.canvases[src]
	return ok
}

// Len returns the number of cached canvases.
func (s *Sampler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.canvases)
}

// Release drops the canvas for src. It reports whether one was held.
func (s *Sampler) Release(src string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.canvases[src]; !ok {
		return false
	}
	delete(s.canvases, src)
	logger.WithField("source", src).Debug("canvas released")
	return true
}

// ReleaseAll drops every cached canvas and returns how many were held.
func (s *Sampler) ReleaseAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.canvases)
	s.canvases = make(map[string]*Canvas)
	return n
}

// Sample reads a single pixel of src.
func (s *Sampler) Sample(ctx context.Context, src string, x, y int) (color.NRGBA, image.Point, error) {
	c, err := s.Load(ctx, src)
	if err != nil {
		return color.NRGBA{}, image.Point{}, err
	}
	px, at := c.Pixel(x, y)
	return px, at, nil
}

// Crop loads src and exports a region of it.
func (s *Sampler) Crop(ctx context.Context, src string, region image.Rectangle, opts CropOptions) (*CropResult, error) {
	c, err := s.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return c.Crop(region, opts)
}

func (s *Sampler) draw(ctx context.Context, src string) (*Canvas, error) {
	if !remote.IsRemote(src) {
		data, err := os.ReadFile(strings.TrimPrefix(src, "file://"))
		if err != nil {
			return nil, apperrors.NewImageFetchFailedError("failed to open image", err)
		}
		c, err := s.decode(src, data, ViaFile)
		if err != nil {
			return nil, asFetchFailure(err, "failed to decode image")
		}
		return c, nil
	}

	var directErr error
	origin := remote.Origin(src)
	switch {
	case s.opts.PageOrigin != "" && origin != strings.ToLower(s.opts.PageOrigin):
		directErr = fmt.Errorf("image origin %s differs from page origin %s", origin, s.opts.PageOrigin)
	case s.opts.Direct == nil:
		directErr = fmt.Errorf("direct loading disabled")
	default:
		data, err := s.opts.Direct.Fetch(ctx, src)
		if err == nil {
			c, derr := s.decode(src, data, ViaDirect)
			if derr == nil {
				return c, nil
			}
			if apperrors.IsType(derr, apperrors.ErrorTypeCanvasContextUnavailable) {
				return nil, derr
			}
			err = derr
		}
		directErr = err
	}

	if s.opts.Relay == nil {
		return nil, apperrors.NewCrossOriginBlockedError("image could not be drawn and no relay is configured", directErr)
	}

	logger.WithFields(map[string]interface{}{
		"source": src,
		"reason": directErr.Error(),
	}).Info("falling back to relay")

	data, err := s.opts.Relay.Fetch(ctx, src)
	if err != nil {
		return nil, asFetchFailure(err, "relay fetch failed")
	}
	c, err := s.decode(src, data, ViaRelay)
	if err != nil {
		return nil, asFetchFailure(err, "relay returned an undecodable image")
	}
	return c, nil
}

// decode draws raw bytes onto a new canvas after checking the canvas limits.
func (s *Sampler) decode(src string, data []byte, via string) (*Canvas, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperrors.NewCanvasContextUnavailableError("image has no drawable area", nil)
	}
	if limit := s.opts.MaxCanvasPixels; limit > 0 && int64(cfg.Width)*int64(cfg.Height) > limit {
		return nil, apperrors.NewCanvasContextUnavailableError(
			fmt.Sprintf("%dx%d exceeds the canvas limit of %s pixels", cfg.Width, cfg.Height, humanize.Comma(limit)), nil)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c := NewCanvas(src, img)
	c.Format = format
	c.Via = via
	c.ByteSize = len(data)
	return c, nil
}

// asFetchFailure keeps structured errors and wraps everything else as an
// image_fetch_failed error.
func asFetchFailure(err error, message string) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewImageFetchFailedError(message, err)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
