package imaging

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

// ResizeLinear resizes img to w x h with bilinear filtering.
func ResizeLinear(img image.Image, w, h int) *image.RGBA {
	return transform.Resize(img, w, h, transform.Linear)
}

// ResizeNearest resizes img to w x h by nearest-neighbour sampling. Every
// output pixel is an exact copy of some input pixel, which keeps label
// rasters discrete.
func ResizeNearest(img image.Image, w, h int) *image.NRGBA {
	return imaging.Resize(img, w, h, imaging.NearestNeighbor)
}

// ResizeDense bilinearly resamples a rows x cols matrix to h x w. Sample
// positions use pixel centers, and reads past the edge clamp to it.
func ResizeDense(src *mat.Dense, w, h int) *mat.Dense {
	sh, sw := src.Dims()
	dst := mat.NewDense(h, w, nil)
	if sh == h && sw == w {
		dst.Copy(src)
		return dst
	}

	sy := float64(sh) / float64(h)
	sx := float64(sw) / float64(w)
	for y := 0; y < h; y++ {
		fy := clampf((float64(y)+0.5)*sy-0.5, 0, float64(sh-1))
		y0 := int(math.Floor(fy))
		y1 := min(y0+1, sh-1)
		wy := fy - float64(y0)
		for x := 0; x < w; x++ {
			fx := clampf((float64(x)+0.5)*sx-0.5, 0, float64(sw-1))
			x0 := int(math.Floor(fx))
			x1 := min(x0+1, sw-1)
			wx := fx - float64(x0)

			top := src.At(y0, x0)*(1-wx) + src.At(y0, x1)*wx
			bottom := src.At(y1, x0)*(1-wx) + src.At(y1, x1)*wx
			dst.Set(y, x, top*(1-wy)+bottom*wy)
		}
	}
	return dst
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
