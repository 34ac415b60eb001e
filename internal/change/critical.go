package change

import (
	"github.com/ironsheep/landcover-change-mcp/internal/imaging"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
	"github.com/ironsheep/landcover-change-mcp/internal/tiling"
)

// Critical holds the three semantic change masks and their share of all
// pixels, in percent.
//
// The masks are directional: swapping before and after turns
// deforestation into forest gain (not reported) and urbanization into
// urban loss (not reported). Water change is symmetric.
type Critical struct {
	Deforestation *imaging.Mask
	Urbanization  *imaging.Mask
	WaterChange   *imaging.Mask

	DeforestationPct float64 `json:"deforestation_pct"`
	UrbanizationPct  float64 `json:"urbanization_pct"`
	WaterChangePct   float64 `json:"water_change_pct"`
}

// critical evaluates group transitions cell by cell on the class maps.
// Cells unclassified in either map never count.
//
//   - deforestation: forest before, not forest after
//   - urbanization: not urban before, urban after
//   - water change: water in exactly one of the two
func critical(before, after *tiling.ClassMap, labels *landcover.LabelSet) Critical {
	w, h := before.Width, before.Height
	cr := Critical{
		Deforestation: imaging.NewMask(w, h),
		Urbanization:  imaging.NewMask(w, h),
		WaterChange:   imaging.NewMask(w, h),
	}

	n := labels.Len()
	member := func(g landcover.Group) []bool {
		m := make([]bool, n)
		for i := range m {
			m[i] = labels.InGroup(i, g)
		}
		return m
	}
	forest, urban, water := member(landcover.GroupForest), member(landcover.GroupUrban), member(landcover.GroupWater)

	for i, b := range before.Pix {
		a := after.Pix[i]
		if b < 0 || a < 0 || b >= n || a >= n {
			continue
		}
		cr.Deforestation.Pix[i] = forest[b] && !forest[a]
		cr.Urbanization.Pix[i] = !urban[b] && urban[a]
		cr.WaterChange.Pix[i] = water[b] != water[a]
	}

	cr.DeforestationPct = cr.Deforestation.Fraction() * 100
	cr.UrbanizationPct = cr.Urbanization.Fraction() * 100
	cr.WaterChangePct = cr.WaterChange.Fraction() * 100
	return cr
}
