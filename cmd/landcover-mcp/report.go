package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ironsheep/landcover-change-mcp/internal/analysis"
	"github.com/ironsheep/landcover-change-mcp/internal/landcover"
)

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func signedPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// column heads a before/after column with the capture year when known.
func column(y int, fallback string) string {
	if y == 0 {
		return fallback
	}
	return fmt.Sprint(y)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderReport prints the per-class and critical change tables.
func renderReport(w io.Writer, s *analysis.Summary) {
	t := newTable(w)
	t.SetTitle("Land cover %dx%d", s.Width, s.Height)
	t.AppendHeader(table.Row{"#", "Class", column(s.BeforeYear, "Before"), column(s.AfterYear, "After"), "Change"})
	for _, r := range s.ChangePercentages {
		t.AppendRow(table.Row{r.Class, r.Name, pct(r.Initial), pct(r.Final), signedPct(r.Change)})
	}
	t.AppendFooter(table.Row{"", "Changed area", "", "", pct(s.ChangedPercent)})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()

	c := newTable(w)
	c.SetTitle("Critical changes")
	c.AppendHeader(table.Row{"Change", "Area"})
	c.AppendRows([]table.Row{
		{"Deforestation", pct(s.Critical.DeforestationPct)},
		{"Urbanization", pct(s.Critical.UrbanizationPct)},
		{"Water", pct(s.Critical.WaterChangePct)},
	})
	c.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	c.Render()

	fmt.Fprintf(w, "tiles: %d before, %d after; mean confidence %.3f before, %.3f after\n",
		s.BeforeTiles, s.AfterTiles, s.BeforeConfidence.Mean, s.AfterConfidence.Mean)
}

// renderLabels prints the label set with its group tags.
func renderLabels(w io.Writer, ls *landcover.LabelSet) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Class", "Groups"})
	for i, l := range ls.Labels() {
		groups := make([]string, len(l.Groups))
		for j, g := range l.Groups {
			groups[j] = string(g)
		}
		t.AppendRow(table.Row{i, l.Name, strings.Join(groups, ", ")})
	}
	t.Render()
}
