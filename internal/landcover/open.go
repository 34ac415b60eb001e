package landcover

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Model backends understood by Open.
const (
	BackendSpectral  = "spectral"
	BackendONNX      = "onnx"
	BackendTFServing = "tfserving"
)

// ModelConfig selects and configures a model backend.
type ModelConfig struct {
	Backend string `json:"backend"`

	// onnx
	Path          string `json:"path,omitempty"`
	SharedLibrary string `json:"shared_library,omitempty"`
	InputName     string `json:"input_name,omitempty"`
	OutputName    string `json:"output_name,omitempty"`
	InputLayout   string `json:"input_layout,omitempty"`
	BatchSize     int    `json:"batch_size,omitempty"`

	// tfserving
	URL            string `json:"url,omitempty"`
	Name           string `json:"name,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`

	// spectral
	Temperature float64 `json:"temperature,omitempty"`
}

// Open builds the backend described by cfg for tiles of inputW x inputH.
func Open(cfg ModelConfig, labels *LabelSet, inputW, inputH int) (Model, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendSpectral:
		return NewSpectralModel(labels, cfg.Temperature)
	case BackendONNX:
		if cfg.Path == "" {
			return nil, errors.Wrap(ErrModelUnavailable, "onnx backend needs a model path")
		}
		batch := cfg.BatchSize
		if batch <= 0 {
			batch = 1
		}
		return NewONNXModel(ONNXConfig{
			Path:          cfg.Path,
			SharedLibrary: cfg.SharedLibrary,
			InputName:     cfg.InputName,
			OutputName:    cfg.OutputName,
			Layout:        cfg.InputLayout,
			BatchSize:     batch,
			Width:         inputW,
			Height:        inputH,
			Classes:       labels.Len(),
		})
	case BackendTFServing:
		return NewTFServingModel(cfg.URL, cfg.Name, time.Duration(cfg.TimeoutSeconds)*time.Second)
	default:
		return nil, errors.Wrapf(ErrModelUnavailable, "unknown model backend %q", cfg.Backend)
	}
}
