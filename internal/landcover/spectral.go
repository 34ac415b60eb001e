package landcover

import (
	"context"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// DefaultTemperature softens SpectralModel's distance-based scores.
const DefaultTemperature = 0.05

// SpectralModel is a baseline classifier that needs no trained weights. It
// compares each tile's mean color with every label's prototype in CIE Lab
// space and turns the distances into probabilities with a softmax.
//
// It is deterministic and safe for concurrent use.
type SpectralModel struct {
	prototypes  []colorful.Color
	temperature float64
}

// NewSpectralModel builds a model from the prototypes of labels. Every
// label must carry a valid "#RRGGBB" prototype.
func NewSpectralModel(labels *LabelSet, temperature float64) (*SpectralModel, error) {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	protos := make([]colorful.Color, labels.Len())
	for i := range protos {
		l := labels.Label(i)
		if l.Prototype == "" {
			return nil, errors.Wrapf(ErrModelUnavailable, "label %q has no color prototype", l.Name)
		}
		c, err := colorful.Hex(l.Prototype)
		if err != nil {
			return nil, errors.Wrapf(ErrModelUnavailable, "label %q prototype %q: %v", l.Name, l.Prototype, err)
		}
		protos[i] = c
	}
	return &SpectralModel{prototypes: protos, temperature: temperature}, nil
}

// Predict implements Model.
func (m *SpectralModel) Predict(ctx context.Context, batch *Batch) ([][]float32, error) {
	rows := make([][]float32, batch.Size)
	scores := make([]float64, len(m.prototypes))
	for i := 0; i < batch.Size; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mean := meanColor(batch.Tile(i))
		for j, p := range m.prototypes {
			scores[j] = -mean.DistanceLab(p) / m.temperature
		}
		rows[i] = softmax(scores)
	}
	return rows, nil
}

// Close implements Model.
func (m *SpectralModel) Close() error { return nil }

func meanColor(tile []float32) colorful.Color {
	var r, g, b float64
	px := len(tile) / 3
	for i := 0; i < len(tile); i += 3 {
		r += float64(tile[i])
		g += float64(tile[i+1])
		b += float64(tile[i+2])
	}
	if px == 0 {
		return colorful.Color{}
	}
	n := float64(px)
	return colorful.Color{R: r / n, G: g / n, B: b / n}
}

func softmax(scores []float64) []float32 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	exps := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		exps[i] = math.Exp(s - maxScore)
		sum += exps[i]
	}
	out := make([]float32, len(scores))
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}
