package landcover

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
)

type staticModel struct {
	rows   [][]float32
	err    error
	closed bool
}

func (m *staticModel) Predict(ctx context.Context, batch *Batch) ([][]float32, error) {
	return m.rows, m.err
}

func (m *staticModel) Close() error {
	m.closed = true
	return nil
}

func twoLabels(t *testing.T) *LabelSet {
	t.Helper()
	ls, err := NewLabelSet([]Label{{Name: "Forest", Groups: []Group{GroupForest}}, {Name: "Urban", Groups: []Group{GroupUrban}}})
	test.That(t, err, test.ShouldBeNil)
	return ls
}

func filledBatch(n, w, h int, v float32) *Batch {
	b := NewBatch(n, w, h)
	tile := make([]float32, w*h*3)
	for i := range tile {
		tile[i] = v
	}
	for i := 0; i < n; i++ {
		b.Append(tile)
	}
	return b
}

func TestBatch(t *testing.T) {
	b := NewBatch(3, 2, 2)
	for i := 0; i < 3; i++ {
		tile := make([]float32, b.TileLen())
		tile[0] = float32(i)
		b.Append(tile)
	}
	test.That(t, b.Size, test.ShouldEqual, 3)
	test.That(t, b.TileLen(), test.ShouldEqual, 12)
	test.That(t, b.Tile(2)[0], test.ShouldEqual, float32(2))

	s := b.Slice(1, 3)
	test.That(t, s.Size, test.ShouldEqual, 2)
	test.That(t, s.Tile(0)[0], test.ShouldEqual, float32(1))

	b.Reset()
	test.That(t, b.Size, test.ShouldEqual, 0)
	test.That(t, b.Data, test.ShouldBeEmpty)
}

func TestPredictionBest(t *testing.T) {
	idx, conf := Prediction{0.2, 0.5, 0.3}.Best()
	test.That(t, idx, test.ShouldEqual, 1)
	test.That(t, conf, test.ShouldEqual, 0.5)

	idx, _ = Prediction{0.4, 0.2, 0.4}.Best()
	test.That(t, idx, test.ShouldEqual, 0)
}

func TestClassify(t *testing.T) {
	model := &staticModel{rows: [][]float32{{0.9, 0.1}, {0.25, 0.75}}}
	c, err := NewClassifier(model, twoLabels(t), zaptest.NewLogger(t))
	test.That(t, err, test.ShouldBeNil)

	preds, err := c.Classify(context.Background(), filledBatch(2, 4, 4, 0.5))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, preds, test.ShouldHaveLength, 2)

	idx, conf := preds[1].Best()
	test.That(t, idx, test.ShouldEqual, 1)
	test.That(t, conf, test.ShouldAlmostEqual, 0.75, 1e-6)

	test.That(t, c.Close(), test.ShouldBeNil)
	test.That(t, model.closed, test.ShouldBeTrue)
}

func TestClassifyEmptyBatch(t *testing.T) {
	c, err := NewClassifier(&staticModel{}, twoLabels(t), nil)
	test.That(t, err, test.ShouldBeNil)
	preds, err := c.Classify(context.Background(), NewBatch(1, 4, 4))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, preds, test.ShouldBeEmpty)
}

func TestClassifyRejectsMalformedOutput(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		rows [][]float32
	}{
		{"missing row", [][]float32{{0.5, 0.5}}},
		{"short row", [][]float32{{1}, {0.5, 0.5}}},
		{"long row", [][]float32{{0.5, 0.25, 0.25}, {0.5, 0.5}}},
		{"negative", [][]float32{{1.5, -0.5}, {0.5, 0.5}}},
		{"nan", [][]float32{{nan, 1}, {0.5, 0.5}}},
		{"does not sum to one", [][]float32{{0.5, 0.4}, {0.5, 0.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClassifier(&staticModel{rows: tt.rows}, twoLabels(t), nil)
			test.That(t, err, test.ShouldBeNil)
			_, err = c.Classify(context.Background(), filledBatch(2, 4, 4, 0.5))
			test.That(t, errors.Is(err, ErrMalformedOutput), test.ShouldBeTrue)
		})
	}
}

func TestClassifyAcceptsRoundingError(t *testing.T) {
	c, err := NewClassifier(&staticModel{rows: [][]float32{{0.6004, 0.4}}}, twoLabels(t), nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = c.Classify(context.Background(), filledBatch(1, 4, 4, 0.5))
	test.That(t, err, test.ShouldBeNil)
}

func TestClassifyPassesModelError(t *testing.T) {
	c, err := NewClassifier(&staticModel{err: errors.Wrap(ErrResourceExhausted, "oom")}, twoLabels(t), nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = c.Classify(context.Background(), filledBatch(1, 4, 4, 0.5))
	test.That(t, errors.Is(err, ErrResourceExhausted), test.ShouldBeTrue)
}

func TestNewClassifierRequiresModel(t *testing.T) {
	_, err := NewClassifier(nil, twoLabels(t), nil)
	test.That(t, errors.Is(err, ErrModelUnavailable), test.ShouldBeTrue)

	_, err = NewClassifier(&staticModel{}, nil, nil)
	test.That(t, errors.Is(err, ErrInvalidLabelSet), test.ShouldBeTrue)
}
