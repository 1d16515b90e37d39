// Package httpapi serves the HTTP side of the inspector: the same-origin
// image relay, offline export of saved specifications and the asset store.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/design-spec-mcp/internal/assets"
	apperrors "github.com/ironsheep/design-spec-mcp/internal/errors"
	"github.com/ironsheep/design-spec-mcp/internal/export"
	"github.com/ironsheep/design-spec-mcp/internal/logger"
	"github.com/ironsheep/design-spec-mcp/internal/remote"
)

// Options wires the handler's collaborators.
type Options struct {
	Fetcher      remote.Fetcher
	Validator    *remote.URLValidator
	Assets       assets.Store
	MaxBodyBytes int64
	FetchTimeout time.Duration
	ProjectName  string
	Version      string
}

// RelayRequest is the body of POST /api/image-proxy.
type RelayRequest struct {
	ImageURL string `json:"imageUrl" binding:"required"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Type    apperrors.ErrorType `json:"type,omitempty"`
	Message string              `json:"message,omitempty"`
	Details string              `json:"details,omitempty"`
}

// NewHandler builds the router.
func NewHandler(opts Options) http.Handler {
	if opts.Validator == nil {
		opts.Validator = remote.NewURLValidator()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(opts.MaxBodyBytes),
	)

	r.GET("/health", healthCheck(opts.Version))

	api := r.Group("/api")
	api.POST("/image-proxy", imageProxy(opts))
	api.POST("/export/:format", exportSpec(opts))
	if opts.Assets != nil {
		api.GET("/assets", listAssets(opts.Assets))
		api.POST("/assets", createAsset(opts.Assets))
		api.DELETE("/assets/:id", deleteAsset(opts.Assets))
	}

	return r
}

func healthCheck(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "available",
			"version": version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// imageProxy implements the relay contract: POST {imageUrl} answers with the
// image bytes, any failure with a non-2xx status.
func imageProxy(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RelayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperrors.NewValidationError("invalid request format", err))
			return
		}
		if err := opts.Validator.ValidateImageURL(req.ImageURL); err != nil {
			respondError(c, err)
			return
		}
		if opts.Fetcher == nil {
			respondError(c, apperrors.NewImageFetchFailedError("no image fetcher configured", nil))
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.FetchTimeout)
		defer cancel()

		data, err := opts.Fetcher.Fetch(ctx, req.ImageURL)
		if err != nil {
			respondError(c, apperrors.NewImageFetchFailedError("failed to fetch image", err))
			return
		}

		ctype := http.DetectContentType(data)
		if !strings.HasPrefix(ctype, "image/") && !strings.HasPrefix(ctype, "text/xml") {
			respondError(c, apperrors.NewImageFetchFailedError(fmt.Sprintf("upstream returned %s, not an image", ctype), nil))
			return
		}

		logger.WithFields(logrus.Fields{
			"url":   req.ImageURL,
			"bytes": len(data),
		}).Info("image relayed")
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, ctype, data)
	}
}

// exportSpec re-exports a saved JSON specification. Sections come from the
// include query parameter (comma separated); name overrides the file name.
func exportSpec(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := export.ParseFormat(c.Param("format"))
		if err != nil {
			respondError(c, err)
			return
		}
		var names []string
		if raw := c.Query("include"); raw != "" {
			names = strings.Split(raw, ",")
		}
		inc, err := export.ParseInclude(names)
		if err != nil {
			respondError(c, err)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			respondError(c, apperrors.NewValidationError("failed to read body", err))
			return
		}
		spec, err := export.ParseJSON(body)
		if err != nil {
			respondError(c, apperrors.NewValidationError("body is not a design specification", err))
			return
		}
		if spec.Metadata.ProjectName == "" {
			spec.Metadata.ProjectName = opts.ProjectName
		}

		res, err := export.Export(spec, f, inc, c.Query("name"))
		if err != nil {
			respondError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"format":   res.Format,
			"filename": res.Filename,
			"bytes":    len(res.Data),
		}).Info("export produced")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		c.Data(http.StatusOK, res.MimeType+"; charset=utf-8", res.Data)
	}
}

// assetView adds a readable size to listings.
type assetView struct {
	assets.Asset
	Size string `json:"size"`
}

func listAssets(store assets.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := store.List(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		out := make([]assetView, len(list))
		for i, a := range list {
			out[i] = assetView{Asset: a, Size: humanize.Bytes(uint64(a.FileSize))}
		}
		c.JSON(http.StatusOK, gin.H{"assets": out, "count": len(out)})
	}
}

func createAsset(store assets.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var a assets.Asset
		if err := c.ShouldBindJSON(&a); err != nil {
			respondError(c, apperrors.NewValidationError("invalid request format", err))
			return
		}
		saved, err := store.Create(c.Request.Context(), a)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, saved)
	}
}

func deleteAsset(store assets.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Middleware and helper functions

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Info("http request")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func statusCode(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return apperrors.GetStatusCode(err)
}

func respondError(c *gin.Context, err error) {
	code := statusCode(err)
	resp := ErrorResponse{Error: http.StatusText(code), Message: err.Error()}
	if appErr, ok := apperrors.As(err); ok {
		resp.Type = appErr.Type
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
	}).Warn("request failed")

	c.AbortWithStatusJSON(code, resp)
}
