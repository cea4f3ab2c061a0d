package report

import (
	"fmt"
	"io"
	"strings"

	"den/internal/analysis"
)

// RenderImpact writes the stale and tampered regions of a staleness
// analysis.
func RenderImpact(w io.Writer, r *analysis.ImpactReport, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatTable:
		_, err := io.WriteString(w, findingGrid("Stale", r.Stale)+"\n"+findingGrid("Tampered", r.Tampered)+"\n"+impactSummary(r)+"\n")
		return err
	case FormatMarkdown:
		return impactMarkdown(w, r)
	default:
		return impactText(w, r, newPalette(opts.Color))
	}
}

func impactSummary(r *analysis.ImpactReport) string {
	return fmt.Sprintf("%d stale, %d tampered, %d deleted files, %d unindexed files",
		len(r.Stale), len(r.Tampered), len(r.Deleted), len(r.Unindexed))
}

func changedLines(lines []int) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = lineNo(l)
	}
	return strings.Join(parts, ",")
}

func impactText(w io.Writer, r *analysis.ImpactReport, p palette) error {
	list := func(label string, c func(a ...any) string, findings []analysis.Finding) error {
		for _, f := range findings {
			if _, err := fmt.Fprintf(w, "%s:%d %s %s (lines %s)\n",
				f.Region.Path, f.Region.Call+1, c(label), p.bold.Sprint(f.Region.Name), changedLines(f.Lines)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := list("stale", p.warn.Sprint, r.Stale); err != nil {
		return err
	}
	if err := list("tampered", p.err.Sprint, r.Tampered); err != nil {
		return err
	}
	for _, path := range r.Deleted {
		if _, err := fmt.Fprintf(w, "%s %s\n", path, p.dim.Sprint("deleted")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, p.dim.Sprint(impactSummary(r)))
	return err
}

func findingGrid(title string, findings []analysis.Finding) string {
	var rows [][]any
	for _, f := range findings {
		rows = append(rows, []any{f.Region.Path, lineNo(f.Region.Call), f.Region.Name, changedLines(f.Lines)})
	}
	return grid(title, []string{"File", "Line", "Name", "Changed lines"}, rows)
}

func impactMarkdown(w io.Writer, r *analysis.ImpactReport) error {
	var b strings.Builder
	b.WriteString("# Staleness\n\n" + impactSummary(r) + "\n")
	for _, sec := range []struct {
		title    string
		findings []analysis.Finding
	}{{"Stale", r.Stale}, {"Tampered", r.Tampered}} {
		if len(sec.findings) == 0 {
			continue
		}
		var rows [][]string
		for _, f := range sec.findings {
			rows = append(rows, []string{f.Region.Path, lineNo(f.Region.Call), "`" + f.Region.Name + "`", changedLines(f.Lines)})
		}
		b.WriteString("\n## " + sec.title + "\n\n")
		b.WriteString(mdTable([]string{"File", "Line", "Name", "Changed lines"}, rows))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
