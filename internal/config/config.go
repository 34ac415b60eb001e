// Package config loads the service configuration from a JSON file.
package config

import (
	"bytes"
	"encoding/json"
	"image"
	"io"
	"os"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/ironsheep/landcover-change-mcp/internal/analysis"
	"github.com/ironsheep/landcover-change-mcp/internal/change"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/ocr"
	"github.com/ironsheep/landcover-change-mcp/internal/tiling"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath = "LANDCOVER_MCP_CONFIG"
	EnvLogLevel   = "LANDCOVER_MCP_LOG_LEVEL"
)

// Config is the top-level service configuration.
type Config struct {
	LogLevel string                `json:"log_level"`
	Model    landcover.ModelConfig `json:"model"`

	// Labels replaces the default EuroSAT label set. Labels without
	// explicit groups get them inferred from their names.
	Labels []landcover.Label `json:"labels,omitempty"`

	Tiling   Tiling `json:"tiling"`
	Change   Change `json:"change"`
	Parallel bool   `json:"parallel"`
	OCR      OCR    `json:"ocr"`
}

// Tiling configures the sliding window.
type Tiling struct {
	WindowWidth  int  `json:"window_width"`
	WindowHeight int  `json:"window_height"`
	Stride       int  `json:"stride"`
	BatchSize    int  `json:"batch_size"`
	SnapEdges    bool `json:"snap_edges"`

	// Model input size, when the classifier wants tiles resized.
	InputWidth  int `json:"input_width,omitempty"`
	InputHeight int `json:"input_height,omitempty"`
}

// Change configures mask cleanup.
type Change struct {
	KernelSize int `json:"kernel_size"`
}

// OCR configures capture-year extraction.
type OCR struct {
	Enabled        bool   `json:"enabled"`
	Language       string `json:"language"`
	TessdataPrefix string `json:"tessdata_prefix,omitempty"`

	// BottomFraction limits OCR to the bottom part of the image where map
	// exports print their attribution. Zero or >= 1 reads the whole image.
	BottomFraction float64 `json:"bottom_fraction,omitempty"`
}

// Options builds OCR options for an image with bounds b.
func (o OCR) Options(b image.Rectangle) ocr.Options {
	return ocr.Options{
		Language:       o.Language,
		TessdataPrefix: o.TessdataPrefix,
		Region:         ocr.BottomRegion(b, o.BottomFraction),
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Model:    landcover.ModelConfig{Backend: landcover.BackendSpectral},
		Tiling: Tiling{
			WindowWidth:  tiling.DefaultWindowSize,
			WindowHeight: tiling.DefaultWindowSize,
			Stride:       tiling.DefaultStride,
			BatchSize:    tiling.DefaultBatchSize,
		},
		Change: Change{KernelSize: change.DefaultKernelSize},
		OCR:    OCR{Language: ocr.DefaultLanguage},
	}
}

// Path returns flagValue, or the path named by LANDCOVER_MCP_CONFIG.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfigPath)
}

// Load reads the file at path, expanding ${VAR} references first. An empty
// path or a missing file yields the defaults. LANDCOVER_MCP_LOG_LEVEL
// overrides log_level.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := envsubst.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		default:
			if err := decode(bytes.NewReader(buf), cfg); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config %s", path)
			}
		}
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromReader decodes a config over the defaults without env expansion.
func FromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Validate checks the sections against the detector's input constraints.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.Model.Backend) {
	case "", landcover.BackendSpectral, landcover.BackendONNX, landcover.BackendTFServing:
	default:
		return errors.Errorf("unknown model backend %q", c.Model.Backend)
	}
	if err := c.window().Validate(c.Tiling.Stride); err != nil {
		return errors.Wrap(err, "tiling")
	}
	if c.Tiling.BatchSize <= 0 {
		return errors.Errorf("tiling batch_size must be positive, got %d", c.Tiling.BatchSize)
	}
	if (c.Tiling.InputWidth == 0) != (c.Tiling.InputHeight == 0) ||
		c.Tiling.InputWidth < 0 || c.Tiling.InputHeight < 0 {
		return errors.Errorf("tiling input size %dx%d", c.Tiling.InputWidth, c.Tiling.InputHeight)
	}
	if err := c.changeOptions().Validate(); err != nil {
		return errors.Wrap(err, "change")
	}
	if c.OCR.BottomFraction < 0 {
		return errors.Errorf("ocr bottom_fraction must not be negative, got %g", c.OCR.BottomFraction)
	}
	if _, err := c.LabelSet(); err != nil {
		return err
	}
	return nil
}

// LabelSet builds the configured label set, defaulting to EuroSAT.
func (c *Config) LabelSet() (*landcover.LabelSet, error) {
	if len(c.Labels) == 0 {
		return landcover.DefaultLabelSet(), nil
	}
	labels, err := landcover.InferGroups(c.Labels)
	if err != nil {
		return nil, err
	}
	return landcover.NewLabelSet(labels)
}

// DetectorOptions maps the tiling and change sections onto analysis.Options.
func (c *Config) DetectorOptions() analysis.Options {
	opts := analysis.Options{
		Tiling: tiling.Options{
			Window:    c.window(),
			Stride:    c.Tiling.Stride,
			BatchSize: c.Tiling.BatchSize,
			SnapEdges: c.Tiling.SnapEdges,
		},
		Change:   c.changeOptions(),
		Parallel: c.Parallel,
	}
	if c.Tiling.InputWidth > 0 {
		opts.Tiling.Input = tiling.Window{Width: c.Tiling.InputWidth, Height: c.Tiling.InputHeight}
	}
	return opts
}

// InputSize is the tile size handed to the model.
func (c *Config) InputSize() (int, int) {
	if c.Tiling.InputWidth > 0 {
		return c.Tiling.InputWidth, c.Tiling.InputHeight
	}
	return c.Tiling.WindowWidth, c.Tiling.WindowHeight
}

func (c *Config) window() tiling.Window {
	return tiling.Window{Width: c.Tiling.WindowWidth, Height: c.Tiling.WindowHeight}
}

func (c *Config) changeOptions() change.Options {
	return change.Options{KernelSize: c.Change.KernelSize}
}
