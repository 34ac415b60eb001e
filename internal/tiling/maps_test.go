package tiling

import (
	"image"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/floats"
)

func TestClassMapDistribution(t *testing.T) {
	m := NewClassMap(4, 3)
	test.That(t, m.Classified(), test.ShouldEqual, 0)
	test.That(t, m.Distribution(3), test.ShouldResemble, []float64{0, 0, 0})

	m.Pix = []int{
		0, 0, 1, 1,
		2, 2, 2, 2,
		Unclassified, Unclassified, 0, 1,
	}
	dist := m.Distribution(3)
	test.That(t, floats.Sum(dist), test.ShouldAlmostEqual, 1.0, 1e-12)
	test.That(t, dist[0], test.ShouldAlmostEqual, 0.3, 1e-12)
	test.That(t, dist[1], test.ShouldAlmostEqual, 0.3, 1e-12)
	test.That(t, dist[2], test.ShouldAlmostEqual, 0.4, 1e-12)
	test.That(t, m.Classified(), test.ShouldEqual, 10)

	c := m.Clone()
	c.Set(0, 0, 2)
	test.That(t, m.At(0, 0), test.ShouldEqual, 0)
}

func TestMapsPaint(t *testing.T) {
	m := newMaps(image.NewRGBA(image.Rect(0, 0, 6, 4)))

	m.paint(image.Rect(0, 0, 4, 4), 1, 0.5)
	m.paint(image.Rect(2, 0, 6, 4), 2, 0.5)
	m.paint(image.Rect(3, 2, 9, 9), 0, 0.7)

	want := []int{
		1, 1, 1, 1, 2, 2,
		1, 1, 1, 1, 2, 2,
		1, 1, 1, 0, 0, 0,
		1, 1, 1, 0, 0, 0,
	}
	test.That(t, m.Classes.Pix, test.ShouldResemble, want)
	test.That(t, m.Confidence.At(3, 5), test.ShouldEqual, 0.7)
	test.That(t, m.Confidence.At(0, 3), test.ShouldEqual, 0.5)
	test.That(t, m.ConfidenceValues(), test.ShouldHaveLength, 24)
}
