package analysis

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/landcover-change-mcp/internal/change"
	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/tiling"
)

// Classifier is a tile classifier bound to a label set.
// *landcover.Classifier implements it.
type Classifier interface {
	tiling.TileClassifier
	Labels() *landcover.LabelSet
}

// Options configures a Detector.
type Options struct {
	Tiling tiling.Options
	Change change.Options

	// Parallel stitches the two images concurrently. The classifier must
	// then be safe for concurrent use. Results do not depend on it.
	Parallel bool
}

// DefaultOptions returns the 64x64 window, stride 32, 5x5 cleanup setup.
func DefaultOptions() Options {
	return Options{
		Tiling: tiling.DefaultOptions(),
		Change: change.DefaultOptions(),
	}
}

// Detector runs change detection end to end: load, tile and classify
// both images, diff the maps and aggregate the result.
type Detector struct {
	classifier Classifier
	stitcher   *tiling.Stitcher
	opts       Options
	cache      *imaging.ImageCache
	logger     *zap.Logger
}

// NewDetector validates opts. A nil cache decodes images on every call.
func NewDetector(classifier Classifier, opts Options, cache *imaging.ImageCache, logger *zap.Logger) (*Detector, error) {
	if classifier == nil {
		return nil, &Error{Kind: KindModel, Stage: StageClassify, Err: landcover.ErrModelUnavailable}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Change.Validate(); err != nil {
		return nil, &Error{Kind: KindInput, Stage: StageDiff, Err: err}
	}
	stitcher, err := tiling.NewStitcher(classifier, opts.Tiling, logger.Named("stitch"))
	if err != nil {
		return nil, fail(StageTile, "", err)
	}
	opts.Tiling = stitcher.Options()
	return &Detector{
		classifier: classifier,
		stitcher:   stitcher,
		opts:       opts,
		cache:      cache,
		logger:     logger,
	}, nil
}

// Labels returns the label set results are indexed against.
func (d *Detector) Labels() *landcover.LabelSet { return d.classifier.Labels() }

// Options returns the effective options.
func (d *Detector) Options() Options { return d.opts }

// Detect compares the images at beforePath and afterPath. It either
// returns a complete Result or a nil Result and an *Error.
func (d *Detector) Detect(ctx context.Context, beforePath, afterPath string) (*Result, error) {
	before, err := d.load(beforePath)
	if err != nil {
		return nil, fail(StageLoad, ImageBefore, err)
	}
	after, err := d.load(afterPath)
	if err != nil {
		return nil, fail(StageLoad, ImageAfter, err)
	}

	res, err := d.DetectImages(ctx, before, after)
	if err != nil {
		return nil, err
	}
	res.Before.Path = beforePath
	res.After.Path = afterPath
	return res, nil
}

// DetectImages compares two decoded images.
func (d *Detector) DetectImages(ctx context.Context, before, after image.Image) (*Result, error) {
	beforeMaps, afterMaps, err := d.stitchPair(ctx, before, after)
	if err != nil {
		return nil, err
	}

	c, err := change.Diff(beforeMaps, afterMaps, d.Labels(), d.opts.Change, d.logger.Named("diff"))
	if err != nil {
		return nil, fail(StageDiff, "", err)
	}

	d.logger.Info("change detection complete",
		zap.Int("width", c.Width),
		zap.Int("height", c.Height),
		zap.Float64("changed_pct", c.ChangedPercent),
		zap.Float64("deforestation_pct", c.Critical.DeforestationPct),
		zap.Float64("urbanization_pct", c.Critical.UrbanizationPct),
		zap.Float64("water_change_pct", c.Critical.WaterChangePct))

	return Aggregate(d.Labels(),
		ImageInput{Image: before, Maps: beforeMaps},
		ImageInput{Image: after, Maps: afterMaps},
		c), nil
}

func (d *Detector) stitchPair(ctx context.Context, before, after image.Image) (*tiling.Maps, *tiling.Maps, error) {
	var beforeMaps, afterMaps *tiling.Maps
	stitch := func(ctx context.Context, img image.Image, which string, out **tiling.Maps) error {
		maps, err := d.stitcher.Stitch(ctx, img)
		if err != nil {
			return fail(stitchStage(err), which, err)
		}
		*out = maps
		return nil
	}

	if !d.opts.Parallel {
		if err := stitch(ctx, before, ImageBefore, &beforeMaps); err != nil {
			return nil, nil, err
		}
		if err := stitch(ctx, after, ImageAfter, &afterMaps); err != nil {
			return nil, nil, err
		}
		return beforeMaps, afterMaps, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stitch(gctx, before, ImageBefore, &beforeMaps) })
	g.Go(func() error { return stitch(gctx, after, ImageAfter, &afterMaps) })
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return beforeMaps, afterMaps, nil
}

// ClassifyImage stitches a single image and reports its class
// distribution.
func (d *Detector) ClassifyImage(ctx context.Context, path string) (*Classification, error) {
	img, err := d.load(path)
	if err != nil {
		return nil, fail(StageLoad, "", err)
	}
	maps, err := d.stitcher.Stitch(ctx, img)
	if err != nil {
		return nil, fail(stitchStage(err), "", err)
	}
	return &Classification{
		Path:         path,
		Labels:       d.Labels(),
		Maps:         maps,
		Distribution: maps.Classes.Distribution(d.Labels().Len()),
	}, nil
}

func (d *Detector) load(path string) (image.Image, error) {
	if path == "" {
		return nil, errors.New("empty image path")
	}
	if d.cache != nil {
		return d.cache.Load(path)
	}
	return imaging.Decode(path)
}
