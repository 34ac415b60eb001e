package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/effect"
	"github.com/pkg/errors"
)

// Mask is a binary raster stored row-major.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask allocates an all-false mask.
func NewMask(w, h int) *Mask {
	return &Mask{Width: w, Height: h, Pix: make([]bool, w*h)}
}

// At reports whether cell (x, y) is set.
func (m *Mask) At(x, y int) bool { return m.Pix[y*m.Width+x] }

// Set sets cell (x, y).
func (m *Mask) Set(x, y int, v bool) { m.Pix[y*m.Width+x] = v }

// Count returns the number of set cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Fraction returns Count divided by the mask area, or 0 for an empty mask.
func (m *Mask) Fraction() float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Pix))
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	return &Mask{Width: m.Width, Height: m.Height, Pix: append([]bool(nil), m.Pix...)}
}

// Gray renders the mask as 0/255 pixels.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			img.Pix[i] = 255
		}
	}
	return img
}

// MaskFromImage thresholds the red channel of img at half intensity.
func MaskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < m.Height; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < m.Width; x++ {
				m.Pix[y*m.Width+x] = row[x*4] >= 128
			}
		}
		return m
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			m.Pix[y*m.Width+x] = r >= 0x8000
		}
	}
	return m
}

// Open applies a morphological opening (erode then dilate) with a square
// structuring element of side kernel. Opening removes set regions smaller
// than the element. A kernel of 1 or less returns a copy.
func Open(m *Mask, kernel int) *Mask {
	if kernel <= 1 {
		return m.Clone()
	}
	r := radius(kernel)
	return MaskFromImage(effect.Dilate(effect.Erode(m.Gray(), r), r))
}

// Close applies a morphological closing (dilate then erode) with a square
// structuring element of side kernel. Closing fills gaps smaller than the
// element. A kernel of 1 or less returns a copy.
func Close(m *Mask, kernel int) *Mask {
	if kernel <= 1 {
		return m.Clone()
	}
	r := radius(kernel)
	return MaskFromImage(effect.Erode(effect.Dilate(m.Gray(), r), r))
}

func radius(kernel int) float64 {
	return float64((kernel - 1) / 2)
}

// MaskPNG is a change mask encoded for MCP clients.
type MaskPNG struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeMaskPNG encodes a mask as a base64 grayscale PNG, 255 where set.
func EncodeMaskPNG(m *Mask) (*MaskPNG, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Gray()); err != nil {
		return nil, errors.Wrap(err, "failed to encode mask")
	}
	return &MaskPNG{
		Width:       m.Width,
		Height:      m.Height,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
