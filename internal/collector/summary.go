package collector

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Totals sums the per-city stats.
func (r Result) Totals() CityStats {
	total := CityStats{City: "total"}
	for _, s := range r.Cities {
		total.Listings += s.Listings
		total.Emitted += s.Emitted
		total.Untracked += s.Untracked
		total.SkippedLedger += s.SkippedLedger
		total.SkippedRun += s.SkippedRun
		total.SkippedSecondary += s.SkippedSecondary
	}
	return total
}

// RenderSummary writes a per-city table of the run to w.
func (r Result) RenderSummary(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"city", "listings", "emitted", "seen before", "dup kvk", "dup name", "no kvk"})
	for _, s := range r.Cities {
		t.AppendRow(table.Row{s.City, s.Listings, s.Emitted, s.SkippedLedger, s.SkippedRun, s.SkippedSecondary, s.Untracked})
	}
	total := r.Totals()
	t.AppendFooter(table.Row{total.City, total.Listings, total.Emitted, total.SkippedLedger, total.SkippedRun, total.SkippedSecondary, total.Untracked})
	t.Render()
}
