package analysis

import (
	"image"

	"github.com/montanaflynn/stats"

	"github.com/ironsheep/landcover-change-mcp/internal/change"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/tiling"
)

// ImageInput is one side of a comparison: the source image and its
// stitched maps.
type ImageInput struct {
	Path  string
	Year  int
	Image image.Image
	Maps  *tiling.Maps
}

// Result is a complete change-detection outcome. Change carries the change
// mask, both distributions, the per-class records and the critical
// sub-result; Before and After carry the images and their own maps.
type Result struct {
	Labels *landcover.LabelSet
	Before ImageInput
	After  ImageInput
	Change *change.Change
}

// Aggregate assembles a Result. It copies nothing and performs no I/O.
func Aggregate(labels *landcover.LabelSet, before, after ImageInput, c *change.Change) *Result {
	return &Result{
		Labels: labels,
		Before: before,
		After:  after,
		Change: c,
	}
}

// SetYears records the capture years of the two images.
func (r *Result) SetYears(before, after int) {
	r.Before.Year = before
	r.After.Year = after
}

// ConfidenceSummary describes the winning-class probabilities over the
// classified pixels of one map.
type ConfidenceSummary struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	P10    float64 `json:"p10"`
	Median float64 `json:"median"`

	// UnclassifiedPct is the share of pixels no tile covered.
	UnclassifiedPct float64 `json:"unclassified_pct"`
}

// SummarizeConfidence computes a ConfidenceSummary for maps.
func SummarizeConfidence(maps *tiling.Maps) ConfidenceSummary {
	var s ConfidenceSummary
	total := maps.Width * maps.Height
	if total == 0 {
		return s
	}
	values := stats.Float64Data(maps.ConfidenceValues())
	s.UnclassifiedPct = float64(total-len(values)) / float64(total) * 100
	if len(values) == 0 {
		return s
	}
	// Errors only occur on empty input.
	s.Mean, _ = stats.Mean(values)
	s.Min, _ = stats.Min(values)
	s.P10, _ = stats.Percentile(values, 10)
	s.Median, _ = stats.Median(values)
	return s
}

// ClassShare is one class's share of a single map.
type ClassShare struct {
	Class   int     `json:"class"`
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// CriticalSummary holds the critical-change percentages.
type CriticalSummary struct {
	DeforestationPct float64 `json:"deforestation_pct"`
	UrbanizationPct  float64 `json:"urbanization_pct"`
	WaterChangePct   float64 `json:"water_change_pct"`
}

// Summary is the JSON-ready digest of a Result.
type Summary struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	BeforeYear int `json:"before_year,omitempty"`
	AfterYear  int `json:"after_year,omitempty"`

	Labels            []string          `json:"labels"`
	ChangePercentages []change.Record   `json:"change_percentages"`
	Critical          CriticalSummary   `json:"critical_changes"`
	ChangedPercent    float64           `json:"changed_pct"`
	BeforeConfidence  ConfidenceSummary `json:"before_confidence"`
	AfterConfidence   ConfidenceSummary `json:"after_confidence"`
	BeforeTiles       int               `json:"before_tiles"`
	AfterTiles        int               `json:"after_tiles"`
}

// Summary digests the result into class names and percentages.
func (r *Result) Summary() *Summary {
	c := r.Change
	s := &Summary{
		Width:             c.Width,
		Height:            c.Height,
		BeforeYear:        r.Before.Year,
		AfterYear:         r.After.Year,
		Labels:            r.Labels.Names(),
		ChangePercentages: append([]change.Record(nil), c.Records...),
		Critical: CriticalSummary{
			DeforestationPct: c.Critical.DeforestationPct,
			UrbanizationPct:  c.Critical.UrbanizationPct,
			WaterChangePct:   c.Critical.WaterChangePct,
		},
		ChangedPercent: c.ChangedPercent,
	}
	if r.Before.Maps != nil {
		s.BeforeConfidence = SummarizeConfidence(r.Before.Maps)
		s.BeforeTiles = r.Before.Maps.Tiles
	}
	if r.After.Maps != nil {
		s.AfterConfidence = SummarizeConfidence(r.After.Maps)
		s.AfterTiles = r.After.Maps.Tiles
	}
	return s
}

// Classification is the outcome of classifying a single image.
type Classification struct {
	Path         string
	Labels       *landcover.LabelSet
	Maps         *tiling.Maps
	Distribution []float64
}

// ClassificationSummary is the JSON-ready digest of a Classification.
type ClassificationSummary struct {
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Tiles      int               `json:"tiles"`
	Classes    []ClassShare      `json:"classes"`
	Dominant   string            `json:"dominant"`
	Confidence ConfidenceSummary `json:"confidence"`
}

// Summary digests the classification.
func (c *Classification) Summary() *ClassificationSummary {
	s := &ClassificationSummary{
		Width:      c.Maps.Width,
		Height:     c.Maps.Height,
		Tiles:      c.Maps.Tiles,
		Classes:    make([]ClassShare, len(c.Distribution)),
		Confidence: SummarizeConfidence(c.Maps),
	}
	best := 0
	for i, f := range c.Distribution {
		s.Classes[i] = ClassShare{Class: i, Name: c.Labels.Name(i), Percent: f * 100}
		if f > c.Distribution[best] {
			best = i
		}
	}
	if len(c.Distribution) > 0 {
		s.Dominant = c.Labels.Name(best)
	}
	return s
}
