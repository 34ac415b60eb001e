package tiling

import (
	"image"

	"github.com/pkg/errors"

	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
)

var (
	// ErrImageTooSmall is returned when the image is narrower or shorter
	// than the tiling window.
	ErrImageTooSmall = errors.New("image smaller than tiling window")

	// ErrInvalidWindow is returned for non-positive window sizes and for
	// strides outside (0, min(width, height)].
	ErrInvalidWindow = errors.New("invalid tiling window")
)

// Window is the size of one tile in pixels.
type Window struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate checks the window against stride.
func (w Window) Validate(stride int) error {
	if w.Width <= 0 || w.Height <= 0 {
		return errors.Wrapf(ErrInvalidWindow, "window %dx%d", w.Width, w.Height)
	}
	if stride <= 0 || stride > min(w.Width, w.Height) {
		return errors.Wrapf(ErrInvalidWindow, "stride %d for window %dx%d", stride, w.Width, w.Height)
	}
	return nil
}

// Option configures a Tiler.
type Option func(*Tiler)

// WithSnapEdges adds one trailing origin per axis at size-window when the
// stride leaves uncovered pixels, so every pixel is classified.
func WithSnapEdges() Option {
	return func(t *Tiler) { t.snap = true }
}

// Tiler enumerates window origins over an image. Origins run 0, s, 2s, ...
// while the window still fits; a trailing remainder narrower than the
// stride is left uncovered unless WithSnapEdges is set.
type Tiler struct {
	img    image.Image
	window Window
	stride int
	snap   bool
	xs, ys []int
}

// NewTiler validates the window and stride against img.
func NewTiler(img image.Image, window Window, stride int, opts ...Option) (*Tiler, error) {
	if err := window.Validate(stride); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() < window.Width || b.Dy() < window.Height {
		return nil, errors.Wrapf(ErrImageTooSmall, "image %dx%d, window %dx%d",
			b.Dx(), b.Dy(), window.Width, window.Height)
	}

	t := &Tiler{img: img, window: window, stride: stride}
	for _, opt := range opts {
		opt(t)
	}
	t.xs = axisOrigins(b.Dx(), window.Width, stride, t.snap)
	t.ys = axisOrigins(b.Dy(), window.Height, stride, t.snap)
	return t, nil
}

func axisOrigins(size, window, stride int, snap bool) []int {
	var out []int
	for o := 0; o+window <= size; o += stride {
		out = append(out, o)
	}
	if last := out[len(out)-1]; snap && last+window < size {
		out = append(out, size-window)
	}
	return out
}

// Window returns the tile size.
func (t *Tiler) Window() Window { return t.window }

// Count returns the number of tiles.
func (t *Tiler) Count() int { return len(t.xs) * len(t.ys) }

// Origins returns every tile origin in iteration order (row-major),
// relative to the image's top-left corner.
func (t *Tiler) Origins() []image.Point {
	pts := make([]image.Point, 0, t.Count())
	for _, y := range t.ys {
		for _, x := range t.xs {
			pts = append(pts, image.Pt(x, y))
		}
	}
	return pts
}

// Tile is one extracted window. X and Y are relative to the image's
// top-left corner.
type Tile struct {
	X, Y  int
	Image *image.NRGBA
}

// Iter returns a fresh iterator. Tiles are cut lazily, one per Next call,
// and each call to Iter starts over from the first origin.
func (t *Tiler) Iter() *Iter {
	return &Iter{t: t, i: -1}
}

// Iter walks the tiles of a Tiler.
type Iter struct {
	t   *Tiler
	i   int
	cur Tile
	err error
}

// Next advances to the next tile. It returns false when the tiles are
// exhausted or extraction failed; check Err afterwards.
func (it *Iter) Next() bool {
	if it.err != nil {
		return false
	}
	it.i++
	if it.i >= it.t.Count() {
		return false
	}

	x := it.t.xs[it.i%len(it.t.xs)]
	y := it.t.ys[it.i/len(it.t.xs)]
	r := image.Rect(x, y, x+it.t.window.Width, y+it.t.window.Height).Add(it.t.img.Bounds().Min)

	img, err := imaging.ExtractTile(it.t.img, r)
	if err != nil {
		it.err = errors.Wrapf(err, "tile at (%d,%d)", x, y)
		return false
	}
	it.cur = Tile{X: x, Y: y, Image: img}
	return true
}

// Tile returns the current tile.
func (it *Iter) Tile() Tile { return it.cur }

// Err returns the extraction error that stopped iteration, if any.
func (it *Iter) Err() error { return it.err }
