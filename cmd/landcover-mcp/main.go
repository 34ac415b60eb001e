// Package main is the landcover-mcp command: an MCP server and a one-shot
// analysis CLI for land-cover change detection.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/landcover-change-mcp/internal/analysis"
	"github.com/ironsheep/landcover-change-mcp/internal/config"
	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/logging"
	"github.com/ironsheep/landcover-change-mcp/internal/ocr"
	"github.com/ironsheep/landcover-change-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	flagConfig     = "config"
	flagBefore     = "before"
	flagAfter      = "after"
	flagBeforeYear = "before-year"
	flagAfterYear  = "after-year"
	flagJSON       = "json"
	flagMask       = "mask"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "%s %s\n", c.App.Name, Version)
		fmt.Fprintf(c.App.Writer, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(c.App.Writer, "  Git commit: %s\n", GitCommit)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    server.ServerName,
		Usage:   "detect land-cover change between satellite images",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (default $" + config.EnvConfigPath + ")",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the MCP server on stdin/stdout",
				Action: serve,
			},
			{
				Name:  "analyze",
				Usage: "compare two images and print the change report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagBefore, Usage: "earlier image `FILE`", Required: true},
					&cli.StringFlag{Name: flagAfter, Usage: "later image `FILE`", Required: true},
					&cli.IntFlag{Name: flagBeforeYear, Usage: "capture year of the earlier image"},
					&cli.IntFlag{Name: flagAfterYear, Usage: "capture year of the later image"},
					&cli.BoolFlag{Name: flagJSON, Usage: "print the report as JSON"},
					&cli.StringFlag{Name: flagMask, Usage: "write the cleaned change mask to `FILE` as PNG"},
				},
				Action: analyze,
			},
			{
				Name:   "labels",
				Usage:  "print the land-cover classes and their groups",
				Action: labels,
			},
		},
	}
}

// runtime is everything a command needs, built from the configuration.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	cache    *imaging.ImageCache
	detector *analysis.Detector
	close    func() error
}

func setup(c *cli.Context) (*runtime, error) {
	cfg, err := config.Load(config.Path(c.String(flagConfig)))
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	labelSet, err := cfg.LabelSet()
	if err != nil {
		return nil, err
	}

	w, h := cfg.InputSize()
	model, err := landcover.Open(cfg.Model, labelSet, w, h)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q model", cfg.Model.Backend)
	}
	clf, err := landcover.NewClassifier(model, labelSet, logger.Named("classifier"))
	if err != nil {
		return nil, multierr.Combine(err, model.Close())
	}

	cache := imaging.NewImageCache()
	detector, err := analysis.NewDetector(clf, cfg.DetectorOptions(), cache, logger.Named("detector"))
	if err != nil {
		return nil, multierr.Combine(err, clf.Close())
	}

	logger.Debug("configured",
		zap.String("backend", cfg.Model.Backend),
		zap.Int("labels", labelSet.Len()),
		zap.Int("window_width", cfg.Tiling.WindowWidth),
		zap.Int("window_height", cfg.Tiling.WindowHeight),
		zap.Int("stride", cfg.Tiling.Stride))

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		detector: detector,
		close: func() error {
			err := clf.Close()
			// Sync fails on some terminals; it is not worth reporting.
			_ = logger.Sync()
			return err
		},
	}, nil
}

func serve(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			rt.logger.Warn("close failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Info("serving MCP on stdio",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit))

	err = server.New(rt.detector, rt.cache, rt.cfg.OCR, Version, rt.logger.Named("server")).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func analyze(c *cli.Context) (err error) {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, rt.close())
	}()

	res, err := rt.detector.Detect(c.Context, c.String(flagBefore), c.String(flagAfter))
	if err != nil {
		return err
	}

	beforeYear, afterYear := c.Int(flagBeforeYear), c.Int(flagAfterYear)
	if rt.cfg.OCR.Enabled {
		if beforeYear == 0 {
			beforeYear = rt.captureYear(res.Before)
		}
		if afterYear == 0 {
			afterYear = rt.captureYear(res.After)
		}
	}
	res.SetYears(beforeYear, afterYear)

	if path := c.String(flagMask); path != "" {
		if err := writeMask(path, res.Change.Mask); err != nil {
			return err
		}
	}

	summary := res.Summary()
	if c.Bool(flagJSON) {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	renderReport(c.App.Writer, summary)
	return nil
}

func (rt *runtime) captureYear(in analysis.ImageInput) int {
	year, err := ocr.ReadCaptureYear(in.Image, rt.cfg.OCR.Options(in.Image.Bounds()))
	if err != nil {
		rt.logger.Debug("no capture year", zap.String("path", in.Path), zap.Error(err))
		return 0
	}
	return year
}

func writeMask(path string, m *imaging.Mask) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create mask file")
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return errors.Wrap(png.Encode(f, m.Gray()), "failed to write mask")
}

func labels(c *cli.Context) error {
	cfg, err := config.Load(config.Path(c.String(flagConfig)))
	if err != nil {
		return err
	}
	ls, err := cfg.LabelSet()
	if err != nil {
		return err
	}
	renderLabels(c.App.Writer, ls)
	return nil
}
