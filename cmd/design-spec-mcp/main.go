package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/design-spec-mcp/internal/assets"
	"github.com/ironsheep/design-spec-mcp/internal/config"
	"github.com/ironsheep/design-spec-mcp/internal/export"
	"github.com/ironsheep/design-spec-mcp/internal/httpapi"
	"github.com/ironsheep/design-spec-mcp/internal/imaging"
	"github.com/ironsheep/design-spec-mcp/internal/logger"
	"github.com/ironsheep/design-spec-mcp/internal/ocr"
	"github.com/ironsheep/design-spec-mcp/internal/remote"
	"github.com/ironsheep/design-spec-mcp/internal/selection"
	"github.com/ironsheep/design-spec-mcp/internal/server"
	"github.com/ironsheep/design-spec-mcp/internal/session"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("design-spec-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	}

	app := &cli.App{
		Name:    "design-spec-mcp",
		Usage:   "extract colors, typography and measurements from design images",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"DESIGN_SPEC_CONFIG"},
			},
		},
		// Without a subcommand the binary is an MCP server, which is how MCP
		// clients launch it.
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve MCP over stdin/stdout",
				Action: serveAction,
			},
			{
				Name:   "http",
				Usage:  "serve the image relay, export and asset HTTP API",
				Action: httpAction,
			},
			{
				Name:  "export",
				Usage: "re-export a saved JSON specification",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "saved JSON specification", Required: true},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, css, tokens, html or markdown", Value: "css"},
					&cli.StringSliceFlag{Name: "include", Usage: "sections to include (colors, typography, measurements, metadata)"},
					&cli.StringFlag{Name: "name", Usage: "base file name"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory; - writes to stdout", Value: "."},
				},
				Action: exportAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.WithError(err).Error("exiting")
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func openAssets(cfg *config.Config) (assets.Store, error) {
	if cfg.AssetsDB == "" {
		return assets.NewMemoryStore(session.NewID, nil), nil
	}
	return assets.OpenSQLite(cfg.AssetsDB, session.NewID, nil)
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	sampler := imaging.SamplerOptions{
		Direct:          remote.NewHTTPFetcher(cfg.FetchTimeout),
		PageOrigin:      cfg.PageOrigin,
		MaxCanvasPixels: cfg.MaxCanvasPixels,
	}
	if cfg.RelayURL != "" {
		sampler.Relay = remote.NewRelayClient(cfg.RelayURL, cfg.RelayTimeout)
	}

	store, err := openAssets(cfg)
	if err != nil {
		return err
	}

	manager := session.NewManager(session.ManagerOptions{
		Sampler:            sampler,
		Recognizer:         ocr.NewTesseractRecognizer(cfg.OCRLanguage),
		DuplicateTolerance: cfg.DuplicateTolerance,
		Selection: selection.Options{
			HandleSize:  float64(cfg.HandleSize),
			MinDrawSize: float64(cfg.MinDrawSize),
		},
		GridSize:    float64(cfg.GridSize),
		ProjectName: cfg.ProjectName,
	})

	srv := server.New(manager, store, Version)
	defer func() {
		if err := srv.Shutdown(); err != nil {
			logger.WithError(err).Warn("shutdown failed")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"version": Version,
		"commit":  GitCommit,
		"relay":   cfg.RelayURL != "",
		"assets":  cfg.AssetsDB,
	}).Info("MCP server starting")

	err = srv.Run(c.Context)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func httpAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openAssets(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	gin.SetMode(gin.ReleaseMode)
	handler := httpapi.NewHandler(httpapi.Options{
		Fetcher:      remote.NewHTTPFetcher(cfg.FetchTimeout),
		Validator:    remote.NewURLValidatorWithOptions(nil, cfg.HTTP.RelayAllowedHosts),
		Assets:       store,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		FetchTimeout: cfg.FetchTimeout,
		ProjectName:  cfg.ProjectName,
		Version:      Version,
	})

	httpServer := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      handler,
		ReadTimeout:  cfg.FetchTimeout + 5*time.Second,
		WriteTimeout: cfg.FetchTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("address", cfg.ServerAddress()).Info("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-c.Context.Done():
	}

	logger.Info("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("HTTP server exited")
	return nil
}

func exportAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return fmt.Errorf("failed to read specification: %w", err)
	}
	spec, err := export.ParseJSON(data)
	if err != nil {
		return err
	}
	if spec.Metadata.ProjectName == "" {
		spec.Metadata.ProjectName = cfg.ProjectName
	}
	f, err := export.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	inc, err := export.ParseInclude(c.StringSlice("include"))
	if err != nil {
		return err
	}

	res, err := export.Export(spec, f, inc, c.String("name"))
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "-" {
		_, err = os.Stdout.Write(res.Data)
		return err
	}
	path := filepath.Join(out, res.Filename)
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.WithFields(map[string]interface{}{
		"path":  path,
		"bytes": len(res.Data),
	}).Info("export written")
	return nil
}
