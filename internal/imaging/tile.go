package imaging

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ExtractTile copies the region r of img into a new image whose bounds
// start at (0,0). r is in img's coordinate space and must lie inside it.
func ExtractTile(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if r.Empty() {
		return nil, errors.Errorf("invalid tile region %v", r)
	}
	if !r.In(bounds) {
		return nil, errors.Errorf("tile region %v outside image bounds %v", r, bounds)
	}
	return imaging.Crop(img, r), nil
}

// FitTile resizes a tile to exactly w x h with bilinear interpolation. A
// tile that already has that size is returned unchanged.
func FitTile(tile image.Image, w, h int) image.Image {
	b := tile.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return tile
	}
	return resize.Resize(uint(w), uint(h), tile, resize.Bilinear)
}

// AppendRGB appends the RGB values of img to dst in row-major,
// channel-last order, scaled to [0, 1]. Alpha is dropped.
func AppendRGB(dst []float32, img image.Image) []float32 {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := nrgba.Pix[nrgba.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				p := row[x*4 : x*4+3]
				dst = append(dst, float32(p[0])/255, float32(p[1])/255, float32(p[2])/255)
			}
		}
		return dst
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			dst = append(dst, float32(r>>8)/255, float32(g>>8)/255, float32(bl>>8)/255)
		}
	}
	return dst
}
