package tiling

import (
	"image"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Unclassified marks class-map cells that no tile covered.
const Unclassified = -1

// ClassMap holds one class index per pixel, row-major.
type ClassMap struct {
	Width  int
	Height int
	Pix    []int
}

// NewClassMap returns a w x h map with every cell Unclassified.
func NewClassMap(w, h int) *ClassMap {
	pix := make([]int, w*h)
	for i := range pix {
		pix[i] = Unclassified
	}
	return &ClassMap{Width: w, Height: h, Pix: pix}
}

// At returns the class at (x, y).
func (m *ClassMap) At(x, y int) int { return m.Pix[y*m.Width+x] }

// Set stores class c at (x, y).
func (m *ClassMap) Set(x, y, c int) { m.Pix[y*m.Width+x] = c }

// Classified returns the number of cells holding a class.
func (m *ClassMap) Classified() int {
	n := 0
	for _, c := range m.Pix {
		if c != Unclassified {
			n++
		}
	}
	return n
}

// Counts returns the number of cells per class for n classes.
func (m *ClassMap) Counts(n int) []float64 {
	counts := make([]float64, n)
	for _, c := range m.Pix {
		if c >= 0 && c < n {
			counts[c]++
		}
	}
	return counts
}

// Distribution returns the fraction of classified cells held by each of n
// classes. It sums to 1 unless the map has no classified cells, in which
// case every fraction is 0.
func (m *ClassMap) Distribution(n int) []float64 {
	counts := m.Counts(n)
	total := floats.Sum(counts)
	if total == 0 {
		return counts
	}
	floats.Scale(1/total, counts)
	return counts
}

// Clone returns a deep copy.
func (m *ClassMap) Clone() *ClassMap {
	return &ClassMap{Width: m.Width, Height: m.Height, Pix: append([]int(nil), m.Pix...)}
}

// Maps is the stitched result for one image.
type Maps struct {
	Width  int
	Height int

	// Classes holds the winning class per pixel.
	Classes *ClassMap

	// Confidence holds the winning probability per pixel as a Height x
	// Width matrix; 0 where Classes is Unclassified.
	Confidence *mat.Dense

	// Image is the source image.
	Image image.Image

	// Tiles and Batches count the classifier work done.
	Tiles   int
	Batches int
}

func newMaps(img image.Image) *Maps {
	b := img.Bounds()
	return &Maps{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Classes:    NewClassMap(b.Dx(), b.Dy()),
		Confidence: mat.NewDense(b.Dy(), b.Dx(), nil),
		Image:      img,
	}
}

// paint merges one tile prediction into the maps over r. A cell takes the
// new class when it is still unvisited or the new confidence is strictly
// greater than the stored one, so among equal confidences the earliest
// tile wins.
func (m *Maps) paint(r image.Rectangle, class int, conf float64) {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.Classes.Pix[y*m.Width : (y+1)*m.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			if row[x] == Unclassified || conf > m.Confidence.At(y, x) {
				row[x] = class
				m.Confidence.Set(y, x, conf)
			}
		}
	}
}

// ConfidenceValues returns the confidence of every classified cell.
func (m *Maps) ConfidenceValues() []float64 {
	out := make([]float64, 0, m.Classes.Classified())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Classes.At(x, y) != Unclassified {
				out = append(out, m.Confidence.At(y, x))
			}
		}
	}
	return out
}
