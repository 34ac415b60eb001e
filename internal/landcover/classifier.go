package landcover

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrInvalidLabelSet is returned for label sets that cannot be used.
	ErrInvalidLabelSet = errors.New("invalid label set")

	// ErrModelUnavailable is returned when a model backend cannot be opened
	// or is not reachable.
	ErrModelUnavailable = errors.New("classifier model unavailable")

	// ErrMalformedOutput is returned when a model's output does not match the
	// batch or the label set.
	ErrMalformedOutput = errors.New("malformed classifier output")

	// ErrResourceExhausted is returned by a model that could not process a
	// batch for lack of memory. Callers may retry with a smaller batch.
	ErrResourceExhausted = errors.New("classifier resources exhausted")
)

// probabilityTolerance bounds how far a probability row may sum from 1.
const probabilityTolerance = 1e-3

// Batch is a set of equally sized RGB tiles in NHWC order with values in
// [0, 1].
type Batch struct {
	Size   int
	Width  int
	Height int
	Data   []float32
}

// NewBatch allocates a batch able to hold capacity tiles.
func NewBatch(capacity, width, height int) *Batch {
	return &Batch{
		Width:  width,
		Height: height,
		Data:   make([]float32, 0, capacity*width*height*3),
	}
}

// TileLen is the number of values in one tile.
func (b *Batch) TileLen() int { return b.Width * b.Height * 3 }

// Tile returns the values of tile i.
func (b *Batch) Tile(i int) []float32 {
	n := b.TileLen()
	return b.Data[i*n : (i+1)*n]
}

// Append adds one tile's values to the batch.
func (b *Batch) Append(tile []float32) {
	b.Data = append(b.Data, tile...)
	b.Size++
}

// Reset empties the batch, keeping its buffer.
func (b *Batch) Reset() {
	b.Data = b.Data[:0]
	b.Size = 0
}

// Slice returns a view of tiles [from, to).
func (b *Batch) Slice(from, to int) *Batch {
	n := b.TileLen()
	return &Batch{
		Size:   to - from,
		Width:  b.Width,
		Height: b.Height,
		Data:   b.Data[from*n : to*n],
	}
}

// Model is a trained tile classifier. Predict returns one row of class
// probabilities per tile in the batch.
type Model interface {
	Predict(ctx context.Context, batch *Batch) ([][]float32, error)
	Close() error
}

// Prediction is one tile's probability vector.
type Prediction []float64

// Best returns the arg-max class and its probability. Ties resolve to the
// lowest class index.
func (p Prediction) Best() (int, float64) {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best, p[best]
}

// Classifier adapts a Model to a LabelSet and checks everything the model
// returns.
type Classifier struct {
	model  Model
	labels *LabelSet
	logger *zap.Logger
}

// NewClassifier wraps model for the given label set.
func NewClassifier(model Model, labels *LabelSet, logger *zap.Logger) (*Classifier, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}
	if labels == nil {
		return nil, errors.Wrap(ErrInvalidLabelSet, "nil label set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{model: model, labels: labels, logger: logger}, nil
}

// Labels returns the label set predictions are indexed against.
func (c *Classifier) Labels() *LabelSet { return c.labels }

// Classify runs the model over the batch and validates its output: one
// row per tile, one finite non-negative probability per label, each row
// summing to 1.
func (c *Classifier) Classify(ctx context.Context, batch *Batch) ([]Prediction, error) {
	if batch == nil || batch.Size == 0 {
		return nil, nil
	}
	if len(batch.Data) != batch.Size*batch.TileLen() {
		return nil, errors.Errorf("batch holds %d values, want %d", len(batch.Data), batch.Size*batch.TileLen())
	}

	rows, err := c.model.Predict(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(rows) != batch.Size {
		return nil, errors.Wrapf(ErrMalformedOutput, "got %d rows for %d tiles", len(rows), batch.Size)
	}

	n := c.labels.Len()
	preds := make([]Prediction, len(rows))
	for i, row := range rows {
		if len(row) != n {
			return nil, errors.Wrapf(ErrMalformedOutput, "row %d has %d values, want %d", i, len(row), n)
		}
		p := make(Prediction, n)
		var sum float64
		for j, v := range row {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
				return nil, errors.Wrapf(ErrMalformedOutput, "row %d value %d is %v", i, j, v)
			}
			p[j] = f
			sum += f
		}
		if math.Abs(sum-1) > probabilityTolerance {
			return nil, errors.Wrapf(ErrMalformedOutput, "row %d sums to %.4f", i, sum)
		}
		preds[i] = p
	}
	c.logger.Debug("classified batch", zap.Int("tiles", batch.Size))
	return preds, nil
}

// Close releases the underlying model.
func (c *Classifier) Close() error {
	return c.model.Close()
}
