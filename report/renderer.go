// Package report turns a stats snapshot into human-readable form.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/Erotemic/line-profiler/linestats"
)

// Options control how a snapshot is rendered.
type Options struct {
	// Summarize appends one total-time line per routine after the tables.
	Summarize bool

	// Sort orders routines by descending total time instead of first-seen
	// order.
	Sort bool

	// StripZeros drops lines that were never hit.
	StripZeros bool
}

// Renderer writes text reports. It caches source file contents across
// renders; a Renderer is not safe for concurrent use.
type Renderer struct {
	sources *sourceCache
}

// NewRenderer creates a Renderer with an empty source cache.
func NewRenderer() *Renderer {
	return &Renderer{sources: newSourceCache()}
}

// section is the report unit: every recorded line of one routine in one
// source file.
type section struct {
	routine    string
	sourceUnit string
	keys       []linestats.LineKey
	totalTicks uint64
}

// Render writes the report for sn to w. Each routine gets a header with its
// total time and a per-line table of hits, time, time per hit, time share,
// and source text.
func (r *Renderer) Render(w io.Writer, sn *linestats.Snapshot, opts Options) error {
	if _, err := fmt.Fprintf(w, "Timer unit: %g s\n", sn.TickUnit); err != nil {
		return err
	}

	sections := groupSections(sn, opts)

	for _, sec := range sections {
		if err := r.renderSection(w, sn, sec); err != nil {
			return err
		}
	}

	if opts.Summarize {
		if err := renderSummary(w, sn, sections); err != nil {
			return err
		}
	}

	return nil
}

func groupSections(sn *linestats.Snapshot, opts Options) []*section {
	index := make(map[linestats.LineKey]*section)
	var sections []*section

	for _, key := range sn.Keys {
		stat := sn.Stats[key]
		if opts.StripZeros && stat.Hits == 0 {
			continue
		}

		groupKey := linestats.LineKey{
			SourceUnit: key.SourceUnit,
			Routine:    key.Routine,
		}

		sec, ok := index[groupKey]
		if !ok {
			sec = &section{
				routine:    key.Routine,
				sourceUnit: key.SourceUnit,
			}
			index[groupKey] = sec
			sections = append(sections, sec)
		}

		sec.keys = append(sec.keys, key)
		sec.totalTicks += stat.TotalTicks
	}

	for _, sec := range sections {
		keys := sec.keys
		sort.Slice(keys, func(i, j int) bool { return keys[i].Line < keys[j].Line })
	}

	if opts.Sort {
		sort.SliceStable(sections, func(i, j int) bool {
			return sections[i].totalTicks > sections[j].totalTicks
		})
	}

	return sections
}

func (r *Renderer) renderSection(
	w io.Writer,
	sn *linestats.Snapshot,
	sec *section,
) error {
	_, err := fmt.Fprintf(w, "\nTotal time: %g s\nFile: %s\nFunction: %s\n\n",
		sn.Seconds(sec.totalTicks), sec.sourceUnit, sec.routine)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Line #", "Hits", "Time", "Per Hit", "% Time", "Line Contents")

	for _, key := range sec.keys {
		stat := sn.Stats[key]

		perHit := 0.0
		if stat.Hits > 0 {
			perHit = float64(stat.TotalTicks) / float64(stat.Hits)
		}

		share := 0.0
		if sec.totalTicks > 0 {
			share = float64(stat.TotalTicks) / float64(sec.totalTicks) * 100
		}

		table.Append(
			fmt.Sprintf("%d", key.Line),
			fmt.Sprintf("%d", stat.Hits),
			fmt.Sprintf("%d", stat.TotalTicks),
			fmt.Sprintf("%.1f", perHit),
			fmt.Sprintf("%.1f", share),
			r.sources.lineText(key.SourceUnit, key.Line),
		)
	}

	table.Render()

	return nil
}

func renderSummary(
	w io.Writer,
	sn *linestats.Snapshot,
	sections []*section,
) error {
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	for _, sec := range sections {
		firstLine := 0
		if len(sec.keys) > 0 {
			firstLine = sec.keys[0].Line
		}

		_, err := fmt.Fprintf(w, "%6.2f seconds - %s:%d - %s\n",
			sn.Seconds(sec.totalTicks), sec.sourceUnit, firstLine, sec.routine)
		if err != nil {
			return err
		}
	}

	return nil
}
