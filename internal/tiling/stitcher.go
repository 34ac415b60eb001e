package tiling

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
)

// Defaults used when Options fields are left zero.
const (
	DefaultWindowSize = 64
	DefaultStride     = 32
	DefaultBatchSize  = 128
)

// TileClassifier returns one probability vector per tile of a batch.
// *landcover.Classifier implements it.
type TileClassifier interface {
	Classify(ctx context.Context, batch *landcover.Batch) ([]landcover.Prediction, error)
}

// Options configures a Stitcher.
type Options struct {
	Window Window
	Stride int

	// BatchSize bounds how many tiles are held and classified at once.
	BatchSize int

	// Input is the tile size the classifier expects. Tiles are resized to
	// it when it differs from Window. Zero means Window.
	Input Window

	// SnapEdges covers the trailing remainder with one extra row and
	// column of tiles.
	SnapEdges bool
}

// DefaultOptions returns a 64x64 window with stride 32 and batches of 128.
func DefaultOptions() Options {
	return Options{
		Window:    Window{Width: DefaultWindowSize, Height: DefaultWindowSize},
		Stride:    DefaultStride,
		BatchSize: DefaultBatchSize,
	}
}

func (o Options) withDefaults() Options {
	if o.Window == (Window{}) {
		o.Window = Window{Width: DefaultWindowSize, Height: DefaultWindowSize}
	}
	if o.Stride == 0 {
		o.Stride = min(DefaultStride, o.Window.Width, o.Window.Height)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Input == (Window{}) {
		o.Input = o.Window
	}
	return o
}

// Stitcher classifies every tile of an image and merges the predictions
// into full-resolution class and confidence maps.
type Stitcher struct {
	classifier TileClassifier
	opts       Options
	logger     *zap.Logger
}

// NewStitcher validates opts, filling zero fields with defaults.
func NewStitcher(classifier TileClassifier, opts Options, logger *zap.Logger) (*Stitcher, error) {
	if classifier == nil {
		return nil, errors.Wrap(landcover.ErrModelUnavailable, "nil classifier")
	}
	opts = opts.withDefaults()
	if err := opts.Window.Validate(opts.Stride); err != nil {
		return nil, err
	}
	if opts.Input.Width <= 0 || opts.Input.Height <= 0 {
		return nil, errors.Wrapf(ErrInvalidWindow, "input size %dx%d", opts.Input.Width, opts.Input.Height)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stitcher{classifier: classifier, opts: opts, logger: logger}, nil
}

// Options returns the effective options.
func (s *Stitcher) Options() Options { return s.opts }

// Stitch tiles img, classifies the tiles in batches and returns the merged
// maps. Only one batch of tiles and predictions is held at a time.
func (s *Stitcher) Stitch(ctx context.Context, img image.Image) (*Maps, error) {
	var tilerOpts []Option
	if s.opts.SnapEdges {
		tilerOpts = append(tilerOpts, WithSnapEdges())
	}
	tiler, err := NewTiler(img, s.opts.Window, s.opts.Stride, tilerOpts...)
	if err != nil {
		return nil, err
	}

	maps := newMaps(img)
	batch := landcover.NewBatch(s.opts.BatchSize, s.opts.Input.Width, s.opts.Input.Height)
	origins := make([]image.Point, 0, s.opts.BatchSize)

	flush := func() error {
		if batch.Size == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		preds, err := s.classify(ctx, batch)
		if err != nil {
			return err
		}
		if len(preds) != batch.Size {
			return errors.Wrapf(landcover.ErrMalformedOutput, "got %d predictions for %d tiles", len(preds), batch.Size)
		}
		for i, p := range preds {
			class, conf := p.Best()
			o := origins[i]
			maps.paint(image.Rect(o.X, o.Y, o.X+s.opts.Window.Width, o.Y+s.opts.Window.Height), class, conf)
		}
		maps.Tiles += batch.Size
		maps.Batches++
		s.logger.Debug("stitched batch", zap.Int("batch", maps.Batches), zap.Int("tiles", batch.Size))
		batch.Reset()
		origins = origins[:0]
		return nil
	}

	it := tiler.Iter()
	for it.Next() {
		tile := it.Tile()
		fitted := imaging.FitTile(tile.Image, s.opts.Input.Width, s.opts.Input.Height)
		batch.Data = imaging.AppendRGB(batch.Data, fitted)
		batch.Size++
		origins = append(origins, image.Pt(tile.X, tile.Y))

		if batch.Size == s.opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	s.logger.Debug("stitched image",
		zap.Int("width", maps.Width),
		zap.Int("height", maps.Height),
		zap.Int("tiles", maps.Tiles),
		zap.Int("batches", maps.Batches))
	return maps, nil
}

// classify runs one batch, halving it while the classifier reports
// exhausted resources. A single tile that still fails is an error.
func (s *Stitcher) classify(ctx context.Context, batch *landcover.Batch) ([]landcover.Prediction, error) {
	preds, err := s.classifier.Classify(ctx, batch)
	if err == nil {
		return preds, nil
	}
	if !errors.Is(err, landcover.ErrResourceExhausted) || batch.Size == 1 {
		return nil, err
	}

	half := batch.Size / 2
	s.logger.Warn("classifier out of resources, splitting batch",
		zap.Int("size", batch.Size), zap.Int("half", half))

	left, err := s.classify(ctx, batch.Slice(0, half))
	if err != nil {
		return nil, err
	}
	right, err := s.classify(ctx, batch.Slice(half, batch.Size))
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}
