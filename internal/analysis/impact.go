package analysis

import (
	"den/internal/annotation"
	"den/internal/git"
	"den/internal/index"
)

// Finding is a region touched by a change. Lines are the 0-based changed
// lines that fell inside the affected span.
type Finding struct {
	Region index.RegionRecord `json:"region"`
	Lines  []int              `json:"lines"`
}

// ImpactReport summarizes the regions affected by changes.
type ImpactReport struct {
	// Stale regions had their call, header or input lines changed and need
	// to be expanded again.
	Stale []Finding `json:"stale"`
	// Tampered regions had lines between their markers edited by hand.
	Tampered []Finding `json:"tampered"`
	// Deleted lists indexed files removed by the change set.
	Deleted []string `json:"deleted"`
	// Unindexed lists changed files the index does not know about.
	Unindexed []string `json:"unindexed"`
}

// Analyzer performs staleness analysis on a region index.
type Analyzer struct {
	x *index.Index
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(x *index.Index) *Analyzer {
	return &Analyzer{x: x}
}

// AnalyzeImpact maps changed lines onto regions. Change paths must use the
// index's keys.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile) (*ImpactReport, error) {
	report := &ImpactReport{
		Stale:     []Finding{},
		Tampered:  []Finding{},
		Deleted:   []string{},
		Unindexed: []string{},
	}

	for _, change := range changes {
		f, ok := a.x.File(change.Path)
		if !ok {
			if !change.Deleted {
				report.Unindexed = append(report.Unindexed, change.Path)
			}
			continue
		}
		if change.Deleted {
			report.Deleted = append(report.Deleted, change.Path)
			continue
		}

		lines := zeroBased(change.ChangedLines)
		gaps := change.RemovedAfter // a removal after 1-based line n sits before 0-based line n

		for _, r := range f.Regions {
			header := headerBounds(&r.Region)
			if hit := touched(header, lines, gaps); len(hit) > 0 {
				report.Stale = append(report.Stale, Finding{Region: r, Lines: hit})
			}
			if out, ok := outputBounds(&r.Region); ok {
				if hit := touched(out, lines, gaps); len(hit) > 0 {
					report.Tampered = append(report.Tampered, Finding{Region: r, Lines: hit})
				}
			}
		}
	}

	return report, nil
}

// bounds is a span of changed-line interest plus the marker lines that
// enclose it, used to decide whether a removal gap falls inside.
type bounds struct {
	span     annotation.Span
	gapAfter int // gaps g with gapAfter < g <= gapUpTo are inside
	gapUpTo  int
}

// headerBounds covers the call line through the line before the start
// marker, or the call and first attribute line when the region has no start.
func headerBounds(r *annotation.Region) bounds {
	if start, ok := r.Start.Get(); ok {
		return bounds{span: annotation.Span{From: r.Call, To: start}, gapAfter: r.Call, gapUpTo: start}
	}
	to := r.Call + 1
	if attr, ok := r.Attributes.Get(); ok {
		to = attr + 1
	}
	return bounds{span: annotation.Span{From: r.Call, To: to}, gapAfter: r.Call, gapUpTo: to - 1}
}

func outputBounds(r *annotation.Region) (bounds, bool) {
	span, ok := r.OutputSpan()
	if !ok {
		return bounds{}, false
	}
	return bounds{span: span, gapAfter: r.Start.Line, gapUpTo: r.End.Line}, true
}

func touched(b bounds, lines, gaps []int) []int {
	var hit []int
	for _, line := range lines {
		if b.span.Contains(line) {
			hit = append(hit, line)
		}
	}
	for _, g := range gaps {
		if g > b.gapAfter && g <= b.gapUpTo {
			hit = append(hit, g)
		}
	}
	return hit
}

func zeroBased(lines []int) []int {
	out := make([]int, 0, len(lines))
	for _, l := range lines {
		if l > 0 {
			out = append(out, l-1)
		}
	}
	return out
}
