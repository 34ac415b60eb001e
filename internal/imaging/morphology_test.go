package imaging

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"testing"

	"go.viam.com/test"
)

func maskWithRect(w, h, x0, y0, x1, y1 int) *Mask {
	m := NewMask(w, h)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func TestMaskBasics(t *testing.T) {
	m := maskWithRect(10, 4, 0, 0, 5, 2)
	test.That(t, m.Count(), test.ShouldEqual, 10)
	test.That(t, m.Fraction(), test.ShouldAlmostEqual, 0.25, 1e-12)
	test.That(t, m.At(4, 1), test.ShouldBeTrue)
	test.That(t, m.At(5, 1), test.ShouldBeFalse)

	c := m.Clone()
	c.Set(9, 3, true)
	test.That(t, m.At(9, 3), test.ShouldBeFalse)

	test.That(t, NewMask(0, 0).Fraction(), test.ShouldEqual, 0.0)
}

func TestMaskGrayRoundTrip(t *testing.T) {
	m := maskWithRect(7, 5, 2, 1, 4, 3)
	back := MaskFromImage(m.Gray())
	test.That(t, back.Pix, test.ShouldResemble, m.Pix)
}

func TestOpenRemovesSpeckle(t *testing.T) {
	m := NewMask(30, 30)
	m.Set(15, 15, true)
	m.Set(3, 27, true)
	m.Set(4, 27, true)

	opened := Open(m, 5)
	test.That(t, opened.Count(), test.ShouldEqual, 0)
}

func TestOpenKeepsLargeRegions(t *testing.T) {
	m := maskWithRect(40, 40, 10, 10, 30, 30)
	opened := Open(m, 5)

	test.That(t, opened.At(20, 20), test.ShouldBeTrue)
	test.That(t, opened.At(12, 12), test.ShouldBeTrue)
	test.That(t, opened.At(5, 5), test.ShouldBeFalse)
	// Opening is anti-extensive.
	for i, v := range opened.Pix {
		if v {
			test.That(t, m.Pix[i], test.ShouldBeTrue)
		}
	}
}

func TestCloseFillsGaps(t *testing.T) {
	m := maskWithRect(40, 40, 10, 10, 30, 30)
	m.Set(20, 20, false)
	m.Set(21, 20, false)
	for y := 10; y < 30; y++ {
		m.Set(15, y, false)
	}

	closed := Close(m, 5)
	test.That(t, closed.At(20, 20), test.ShouldBeTrue)
	test.That(t, closed.At(21, 20), test.ShouldBeTrue)
	test.That(t, closed.At(15, 25), test.ShouldBeTrue)
	test.That(t, closed.At(2, 2), test.ShouldBeFalse)
	// Closing is extensive.
	for i, v := range m.Pix {
		if v {
			test.That(t, closed.Pix[i], test.ShouldBeTrue)
		}
	}
}

func TestMorphologyUniformMasks(t *testing.T) {
	empty := NewMask(12, 9)
	test.That(t, Open(empty, 5).Count(), test.ShouldEqual, 0)
	test.That(t, Close(empty, 5).Count(), test.ShouldEqual, 0)

	full := maskWithRect(12, 9, 0, 0, 12, 9)
	test.That(t, Open(full, 5).Count(), test.ShouldEqual, 12*9)
	test.That(t, Close(full, 5).Count(), test.ShouldEqual, 12*9)
}

func TestMorphologyDisabled(t *testing.T) {
	m := NewMask(10, 10)
	m.Set(5, 5, true)
	for _, k := range []int{0, 1} {
		out := Open(m, k)
		test.That(t, out.Pix, test.ShouldResemble, m.Pix)
		out.Set(0, 0, true)
		test.That(t, m.At(0, 0), test.ShouldBeFalse)

		test.That(t, Close(m, k).Pix, test.ShouldResemble, m.Pix)
	}
}

func TestEncodeMaskPNG(t *testing.T) {
	m := maskWithRect(16, 8, 0, 0, 8, 8)
	enc, err := EncodeMaskPNG(m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, enc.Width, test.ShouldEqual, 16)
	test.That(t, enc.Height, test.ShouldEqual, 8)
	test.That(t, enc.MimeType, test.ShouldEqual, "image/png")

	raw, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	test.That(t, err, test.ShouldBeNil)
	img, err := png.Decode(bytes.NewReader(raw))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, MaskFromImage(img).Pix, test.ShouldResemble, m.Pix)
}
