package landcover

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// Tensor layouts accepted by ONNXModel.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// ONNXConfig describes an exported classifier.
type ONNXConfig struct {
	// Path is the .onnx model file.
	Path string

	// SharedLibrary optionally points at the onnxruntime shared library.
	SharedLibrary string

	// InputName and OutputName default to "input" and "output".
	InputName  string
	OutputName string

	// Layout is LayoutNHWC (Keras default) or LayoutNCHW.
	Layout string

	// BatchSize is the fixed batch dimension the session is built with.
	BatchSize int

	// Width and Height are the model's input tile size.
	Width  int
	Height int

	// Classes is the length of the probability vector.
	Classes int
}

// ONNXModel runs a classifier through onnxruntime. The session is built
// with fixed tensors, so batches smaller than BatchSize are zero padded and
// the padding rows are dropped.
//
// Calls to Predict are serialized.
type ONNXModel struct {
	mu      sync.Mutex
	cfg     ONNXConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXModel initializes the runtime environment and opens a session.
func NewONNXModel(cfg ONNXConfig) (*ONNXModel, error) {
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	cfg.Layout = strings.ToLower(cfg.Layout)
	if cfg.Layout == "" {
		cfg.Layout = LayoutNHWC
	}
	if cfg.Layout != LayoutNHWC && cfg.Layout != LayoutNCHW {
		return nil, errors.Errorf("unknown tensor layout %q", cfg.Layout)
	}
	if cfg.BatchSize <= 0 || cfg.Width <= 0 || cfg.Height <= 0 || cfg.Classes < 2 {
		return nil, errors.Errorf("invalid onnx dimensions: batch=%d input=%dx%d classes=%d",
			cfg.BatchSize, cfg.Width, cfg.Height, cfg.Classes)
	}

	if cfg.SharedLibrary != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibrary)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrapf(ErrModelUnavailable, "failed to initialize ONNX environment: %v", err)
		}
	}

	b, w, h := int64(cfg.BatchSize), int64(cfg.Width), int64(cfg.Height)
	inputShape := ort.NewShape(b, h, w, 3)
	if cfg.Layout == LayoutNCHW {
		inputShape = ort.NewShape(b, 3, h, w)
	}
	outputShape := ort.NewShape(b, int64(cfg.Classes))

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to create output tensor"), input.Destroy())
	}

	session, err := ort.NewAdvancedSession(cfg.Path,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		return nil, multierr.Combine(
			errors.Wrapf(ErrModelUnavailable, "failed to create ONNX session for %s: %v", cfg.Path, err),
			input.Destroy(),
			output.Destroy(),
		)
	}

	return &ONNXModel{cfg: cfg, session: session, input: input, output: output}, nil
}

// Predict implements Model. Batches larger than the session's batch size
// are run in chunks.
func (m *ONNXModel) Predict(ctx context.Context, batch *Batch) ([][]float32, error) {
	if batch.Width != m.cfg.Width || batch.Height != m.cfg.Height {
		return nil, errors.Errorf("tiles are %dx%d, model expects %dx%d",
			batch.Width, batch.Height, m.cfg.Width, m.cfg.Height)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([][]float32, 0, batch.Size)
	for from := 0; from < batch.Size; from += m.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		to := min(from+m.cfg.BatchSize, batch.Size)
		m.fill(batch.Slice(from, to))
		if err := m.session.Run(); err != nil {
			return nil, errors.Wrap(err, "inference failed")
		}
		out := m.output.GetData()
		for i := 0; i < to-from; i++ {
			row := make([]float32, m.cfg.Classes)
			copy(row, out[i*m.cfg.Classes:(i+1)*m.cfg.Classes])
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// fill copies the chunk into the input tensor, zeroing unused rows.
func (m *ONNXModel) fill(chunk *Batch) {
	dst := m.input.GetData()
	if m.cfg.Layout == LayoutNHWC {
		n := copy(dst, chunk.Data)
		clear(dst[n:])
		return
	}

	clear(dst)
	plane := chunk.Width * chunk.Height
	for t := 0; t < chunk.Size; t++ {
		src := chunk.Tile(t)
		base := t * plane * 3
		for p := 0; p < plane; p++ {
			dst[base+p] = src[p*3]
			dst[base+plane+p] = src[p*3+1]
			dst[base+2*plane+p] = src[p*3+2]
		}
	}
}

// Close destroys the session and its tensors.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.session != nil {
		err = multierr.Combine(err, m.session.Destroy())
		m.session = nil
	}
	if m.input != nil {
		err = multierr.Combine(err, m.input.Destroy())
		m.input = nil
	}
	if m.output != nil {
		err = multierr.Combine(err, m.output.Destroy())
		m.output = nil
	}
	return err
}
