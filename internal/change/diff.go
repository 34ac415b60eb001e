package change

import (
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/tiling"
)

// DefaultKernelSize is the side of the square element used to clean the
// change mask.
const DefaultKernelSize = 5

// ErrEmptyMap is returned when either map has no area.
var ErrEmptyMap = errors.New("class map has no area")

// Options configures Diff.
type Options struct {
	// KernelSize is the side of the structuring element for the opening and
	// closing of the change mask. It must be odd; 0 and 1 disable cleanup.
	KernelSize int `json:"kernel_size"`
}

// DefaultOptions returns a 5x5 cleanup kernel.
func DefaultOptions() Options {
	return Options{KernelSize: DefaultKernelSize}
}

// Validate checks the kernel size.
func (o Options) Validate() error {
	if o.KernelSize < 0 || (o.KernelSize > 1 && o.KernelSize%2 == 0) {
		return errors.Errorf("kernel size must be 0, 1 or an odd number >= 3, got %d", o.KernelSize)
	}
	return nil
}

// Record is the share of one class before and after, in percent of
// classified pixels.
type Record struct {
	Class   int     `json:"class"`
	Name    string  `json:"name"`
	Initial float64 `json:"initial_pct"`
	Final   float64 `json:"final_pct"`
	Change  float64 `json:"change"`
}

// Change is the comparison of two stitched maps on the before map's grid.
type Change struct {
	Width  int
	Height int

	Before *tiling.ClassMap
	// After, AfterImage and AfterConfidence are aligned to Before's size.
	After           *tiling.ClassMap
	AfterImage      image.Image
	AfterConfidence *mat.Dense

	// RawMask marks cells classified in both maps whose classes differ.
	// Mask is RawMask after opening then closing. The cleanup is lossy:
	// changed regions thinner than the kernel are dropped and gaps
	// narrower than it are filled.
	RawMask *imaging.Mask
	Mask    *imaging.Mask

	BeforeDistribution []float64
	AfterDistribution  []float64
	Records            []Record

	Critical Critical

	// ChangedPercent is the share of Mask that is set, in percent of all
	// pixels.
	ChangedPercent float64
}

// Diff compares before and after. When their sizes differ, after's class
// map is resized nearest-neighbour and its image and confidence map
// bilinearly, all to before's size. There is no geometric registration.
func Diff(before, after *tiling.Maps, labels *landcover.LabelSet, opts Options, logger *zap.Logger) (*Change, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if labels == nil {
		return nil, errors.Wrap(landcover.ErrInvalidLabelSet, "nil label set")
	}
	if before == nil || after == nil {
		return nil, errors.Wrap(ErrEmptyMap, "missing maps")
	}
	if before.Width <= 0 || before.Height <= 0 || after.Width <= 0 || after.Height <= 0 {
		return nil, errors.Wrapf(ErrEmptyMap, "before %dx%d, after %dx%d",
			before.Width, before.Height, after.Width, after.Height)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w, h := before.Width, before.Height
	c := &Change{
		Width:           w,
		Height:          h,
		Before:          before.Classes,
		After:           after.Classes,
		AfterImage:      after.Image,
		AfterConfidence: after.Confidence,
	}
	if after.Width != w || after.Height != h {
		logger.Debug("resizing after maps",
			zap.Int("from_width", after.Width), zap.Int("from_height", after.Height),
			zap.Int("to_width", w), zap.Int("to_height", h))
		c.After = ResizeClassMap(after.Classes, w, h)
		c.AfterConfidence = imaging.ResizeDense(after.Confidence, w, h)
		if after.Image != nil {
			c.AfterImage = imaging.ResizeLinear(after.Image, w, h)
		}
	}

	c.RawMask = imaging.NewMask(w, h)
	for i, b := range c.Before.Pix {
		a := c.After.Pix[i]
		c.RawMask.Pix[i] = b != tiling.Unclassified && a != tiling.Unclassified && a != b
	}
	c.Mask = imaging.Close(imaging.Open(c.RawMask, opts.KernelSize), opts.KernelSize)
	// Closing can grow into unclassified cells along the dropped remainder.
	for i, b := range c.Before.Pix {
		if b == tiling.Unclassified || c.After.Pix[i] == tiling.Unclassified {
			c.Mask.Pix[i] = false
		}
	}
	c.ChangedPercent = c.Mask.Fraction() * 100

	n := labels.Len()
	c.BeforeDistribution = c.Before.Distribution(n)
	c.AfterDistribution = c.After.Distribution(n)
	c.Records = records(labels, c.BeforeDistribution, c.AfterDistribution)
	c.Critical = critical(c.Before, c.After, labels)

	logger.Debug("diffed maps",
		zap.Int("raw_changed", c.RawMask.Count()),
		zap.Int("changed", c.Mask.Count()),
		zap.Float64("deforestation_pct", c.Critical.DeforestationPct),
		zap.Float64("urbanization_pct", c.Critical.UrbanizationPct),
		zap.Float64("water_change_pct", c.Critical.WaterChangePct))
	return c, nil
}

func records(labels *landcover.LabelSet, before, after []float64) []Record {
	out := make([]Record, labels.Len())
	for i := range out {
		out[i] = Record{
			Class:   i,
			Name:    labels.Name(i),
			Initial: before[i] * 100,
			Final:   after[i] * 100,
			Change:  (after[i] - before[i]) * 100,
		}
	}
	return out
}

// TotalChange sums the Change of every record. For two fully classified
// maps it is 0 up to rounding.
func TotalChange(recs []Record) float64 {
	changes := make([]float64, len(recs))
	for i, r := range recs {
		changes[i] = r.Change
	}
	return floats.Sum(changes)
}

// ResizeClassMap resizes m to w x h by nearest-neighbour sampling, so
// every output cell holds a class (or Unclassified) present in m.
func ResizeClassMap(m *tiling.ClassMap, w, h int) *tiling.ClassMap {
	if m.Width == w && m.Height == h {
		return m.Clone()
	}

	// Classes are shifted by one so Unclassified fits in a gray pixel.
	gray := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, c := range m.Pix {
		gray.Pix[i] = uint8(c + 1)
	}
	resized := imaging.ResizeNearest(gray, w, h)

	out := tiling.NewClassMap(w, h)
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			out.Pix[y*w+x] = int(row[x*4]) - 1
		}
	}
	return out
}
