package tiling

import (
	"context"
	"image"
	"image/color"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
)

// scriptedClassifier answers tile i (in classification order) with class
// classes[i] at confidence confs[i].
type scriptedClassifier struct {
	n       int
	classes []int
	confs   []float64

	maxBatch  int
	exhausted bool
	failWith  error

	next  int
	sizes []int
	tileW int
}

func (c *scriptedClassifier) Classify(ctx context.Context, b *landcover.Batch) ([]landcover.Prediction, error) {
	c.sizes = append(c.sizes, b.Size)
	c.tileW = b.Width
	if c.failWith != nil {
		return nil, c.failWith
	}
	if c.exhausted || (c.maxBatch > 0 && b.Size > c.maxBatch) {
		return nil, errors.Wrap(landcover.ErrResourceExhausted, "batch too large")
	}
	preds := make([]landcover.Prediction, b.Size)
	for i := range preds {
		k := c.next % len(c.confs)
		c.next++
		p := make(landcover.Prediction, c.n)
		rest := (1 - c.confs[k]) / float64(c.n-1)
		for j := range p {
			p[j] = rest
		}
		p[c.classes[k]] = c.confs[k]
		preds[i] = p
	}
	return preds, nil
}

var (
	overlapClasses = []int{0, 1, 2, 3, 1, 2, 3, 0, 1}
	overlapConfs   = []float64{0.8, 0.8, 0.7, 0.6, 0.95, 0.65, 0.9, 0.55, 0.75}
)

func newScripted() *scriptedClassifier {
	return &scriptedClassifier{n: 4, classes: overlapClasses, confs: overlapConfs}
}

func TestStitchOverlapHighestConfidenceWins(t *testing.T) {
	img := gradient(128, 128)
	clf := newScripted()
	s, err := NewStitcher(clf, Options{Window: Window{64, 64}, Stride: 32, BatchSize: 4}, zaptest.NewLogger(t))
	test.That(t, err, test.ShouldBeNil)

	maps, err := s.Stitch(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, maps.Tiles, test.ShouldEqual, 9)
	test.That(t, maps.Batches, test.ShouldEqual, 3)
	test.That(t, clf.sizes, test.ShouldResemble, []int{4, 4, 1})

	// (40,40) lies under tiles 0, 1, 3 and 4; tile 4 is strictly the most confident.
	test.That(t, maps.Classes.At(40, 40), test.ShouldEqual, 1)
	test.That(t, maps.Confidence.At(40, 40), test.ShouldEqual, 0.95)
	// (10,10) is only under tile 0.
	test.That(t, maps.Classes.At(10, 10), test.ShouldEqual, 0)
	// (40,10) is under tiles 0 and 1 with equal confidence; the earlier tile is kept.
	test.That(t, maps.Classes.At(40, 10), test.ShouldEqual, 0)
	test.That(t, maps.Confidence.At(10, 40), test.ShouldEqual, 0.8)

	// Every cell matches a max-confidence reduction over its covering tiles.
	tiler, err := NewTiler(img, Window{64, 64}, 32)
	test.That(t, err, test.ShouldBeNil)
	origins := tiler.Origins()
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			best, bestConf := Unclassified, 0.0
			for i, o := range origins {
				if !image.Pt(x, y).In(image.Rect(o.X, o.Y, o.X+64, o.Y+64)) {
					continue
				}
				if best == Unclassified || overlapConfs[i] > bestConf {
					best, bestConf = overlapClasses[i], overlapConfs[i]
				}
			}
			if maps.Classes.At(x, y) != best || maps.Confidence.At(y, x) != bestConf {
				t.Fatalf("cell (%d,%d): got class %d conf %v, want class %d conf %v",
					x, y, maps.Classes.At(x, y), maps.Confidence.At(y, x), best, bestConf)
			}
		}
	}
}

func TestStitchNoOverlapWritesEachCellOnce(t *testing.T) {
	clf := &scriptedClassifier{n: 4, classes: []int{0, 1, 2, 3}, confs: []float64{0.5, 0.6, 0.7, 0.8}}
	s, err := NewStitcher(clf, Options{Window: Window{64, 64}, Stride: 64}, nil)
	test.That(t, err, test.ShouldBeNil)

	maps, err := s.Stitch(context.Background(), gradient(128, 128))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, maps.Tiles, test.ShouldEqual, 4)
	test.That(t, maps.Classes.Classified(), test.ShouldEqual, 128*128)

	counts := maps.Classes.Counts(4)
	for _, c := range counts {
		test.That(t, c, test.ShouldEqual, 64.0*64.0)
	}
	test.That(t, maps.Classes.At(100, 10), test.ShouldEqual, 1)
	test.That(t, maps.Classes.At(10, 100), test.ShouldEqual, 2)
}

func TestStitchBoundaryWithSpectralModel(t *testing.T) {
	labels := landcover.DefaultLabelSet()
	model, err := landcover.NewSpectralModel(labels, 0)
	test.That(t, err, test.ShouldBeNil)
	clf, err := landcover.NewClassifier(model, labels, nil)
	test.That(t, err, test.ShouldBeNil)

	names := []string{"Forest", "Residential", "River", "Industrial"}
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for q, name := range names {
		i, ok := labels.Index(name)
		test.That(t, ok, test.ShouldBeTrue)
		c, err := colorful.Hex(labels.Label(i).Prototype)
		test.That(t, err, test.ShouldBeNil)
		r, g, b := c.RGB255()
		x0, y0 := (q%2)*64, (q/2)*64
		for y := y0; y < y0+64; y++ {
			for x := x0; x < x0+64; x++ {
				img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
			}
		}
	}

	s, err := NewStitcher(clf, Options{Window: Window{64, 64}, Stride: 64}, nil)
	test.That(t, err, test.ShouldBeNil)
	maps, err := s.Stitch(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, maps.Tiles, test.ShouldEqual, 4)

	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			test.That(t, maps.Confidence.At(y, x), test.ShouldBeGreaterThan, 0)
		}
	}
	for q, name := range names {
		x, y := (q%2)*64+10, (q/2)*64+10
		test.That(t, labels.Name(maps.Classes.At(x, y)), test.ShouldEqual, name)
	}
}

func TestStitchDeterministic(t *testing.T) {
	img := gradient(150, 110)
	opts := Options{Window: Window{32, 32}, Stride: 16, BatchSize: 7}

	run := func() *Maps {
		s, err := NewStitcher(newScripted(), opts, nil)
		test.That(t, err, test.ShouldBeNil)
		maps, err := s.Stitch(context.Background(), img)
		test.That(t, err, test.ShouldBeNil)
		return maps
	}
	a, b := run(), run()
	test.That(t, a.Classes.Pix, test.ShouldResemble, b.Classes.Pix)
	test.That(t, mat.Equal(a.Confidence, b.Confidence), test.ShouldBeTrue)
}

func TestStitchTrailingRemainder(t *testing.T) {
	img := gradient(100, 100)

	s, err := NewStitcher(newScripted(), Options{Window: Window{64, 64}, Stride: 32}, nil)
	test.That(t, err, test.ShouldBeNil)
	maps, err := s.Stitch(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, maps.Classes.Classified(), test.ShouldEqual, 96*96)
	test.That(t, maps.Classes.At(97, 50), test.ShouldEqual, Unclassified)
	test.That(t, maps.Confidence.At(50, 97), test.ShouldEqual, 0.0)
	test.That(t, maps.ConfidenceValues(), test.ShouldHaveLength, 96*96)

	s, err = NewStitcher(newScripted(), Options{Window: Window{64, 64}, Stride: 32, SnapEdges: true}, nil)
	test.That(t, err, test.ShouldBeNil)
	maps, err = s.Stitch(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, maps.Tiles, test.ShouldEqual, 9)
	test.That(t, maps.Classes.Classified(), test.ShouldEqual, 100*100)
}

func TestStitchSplitsExhaustedBatches(t *testing.T) {
	img := gradient(128, 128)
	opts := Options{Window: Window{64, 64}, Stride: 32, BatchSize: 8}

	s, err := NewStitcher(newScripted(), opts, nil)
	test.That(t, err, test.ShouldBeNil)
	want, err := s.Stitch(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)

	limited := newScripted()
	limited.maxBatch = 2
	s, err = NewStitcher(limited, opts, zaptest.NewLogger(t))
	test.That(t, err, test.ShouldBeNil)
	got, err := s.Stitch(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, got.Classes.Pix, test.ShouldResemble, want.Classes.Pix)
	test.That(t, mat.Equal(got.Confidence, want.Confidence), test.ShouldBeTrue)
	test.That(t, got.Tiles, test.ShouldEqual, 9)
	for _, size := range limited.sizes[1:] {
		test.That(t, size, test.ShouldBeLessThan, 8)
	}
}

func TestStitchFailures(t *testing.T) {
	img := gradient(128, 128)
	opts := Options{Window: Window{64, 64}, Stride: 64}

	exhausted := newScripted()
	exhausted.exhausted = true
	s, err := NewStitcher(exhausted, opts, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Stitch(context.Background(), img)
	test.That(t, errors.Is(err, landcover.ErrResourceExhausted), test.ShouldBeTrue)
	// 4 -> 2+2 -> 1+1 before giving up on the first tile.
	test.That(t, exhausted.sizes, test.ShouldResemble, []int{4, 2, 1})

	malformed := newScripted()
	malformed.failWith = errors.Wrap(landcover.ErrMalformedOutput, "bad row")
	s, err = NewStitcher(malformed, opts, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Stitch(context.Background(), img)
	test.That(t, errors.Is(err, landcover.ErrMalformedOutput), test.ShouldBeTrue)
	test.That(t, malformed.sizes, test.ShouldHaveLength, 1)

	s, err = NewStitcher(newScripted(), opts, nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Stitch(context.Background(), gradient(32, 200))
	test.That(t, errors.Is(err, ErrImageTooSmall), test.ShouldBeTrue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Stitch(ctx, img)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestStitchResizesToInputSize(t *testing.T) {
	clf := newScripted()
	s, err := NewStitcher(clf, Options{Window: Window{64, 64}, Stride: 64, Input: Window{16, 16}}, nil)
	test.That(t, err, test.ShouldBeNil)
	maps, err := s.Stitch(context.Background(), gradient(128, 128))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, clf.tileW, test.ShouldEqual, 16)
	test.That(t, maps.Width, test.ShouldEqual, 128)
	test.That(t, maps.Classes.Classified(), test.ShouldEqual, 128*128)
}

func TestNewStitcherDefaults(t *testing.T) {
	s, err := NewStitcher(newScripted(), Options{}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Options().Window, test.ShouldResemble, Window{64, 64})
	test.That(t, s.Options().Stride, test.ShouldEqual, 32)
	test.That(t, s.Options().BatchSize, test.ShouldEqual, 128)
	test.That(t, s.Options().Input, test.ShouldResemble, Window{64, 64})

	_, err = NewStitcher(newScripted(), Options{Window: Window{16, 16}, Stride: 32}, nil)
	test.That(t, errors.Is(err, ErrInvalidWindow), test.ShouldBeTrue)

	_, err = NewStitcher(nil, Options{}, nil)
	test.That(t, errors.Is(err, landcover.ErrModelUnavailable), test.ShouldBeTrue)
}
