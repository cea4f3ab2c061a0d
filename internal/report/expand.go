package report

import (
	"fmt"
	"io"
	"strings"

	"den/internal/generator"
)

type expansionJSON struct {
	Files   []*generator.FileOutcome `json:"files"`
	Summary ExpansionSummary         `json:"summary"`
}

// ExpansionSummary counts region actions across an expansion run.
type ExpansionSummary struct {
	Files   int `json:"files"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

func SummarizeExpansion(outcomes []*generator.FileOutcome) ExpansionSummary {
	s := ExpansionSummary{Files: len(outcomes)}
	for _, o := range outcomes {
		if o.Written {
			s.Written++
		}
		if o.Skipped != "" {
			s.Skipped++
		}
		for _, c := range o.Changes {
			switch c.Action {
			case generator.ActionFailed:
				s.Failed++
			case generator.ActionUnchanged:
			default:
				s.Changed++
			}
		}
	}
	return s
}

func (s ExpansionSummary) String() string {
	return fmt.Sprintf("%d files, %d written, %d skipped, %d regions changed, %d failed",
		s.Files, s.Written, s.Skipped, s.Changed, s.Failed)
}

// RenderExpansion writes what an expansion run did to each region.
func RenderExpansion(w io.Writer, outcomes []*generator.FileOutcome, format Format, opts Options) error {
	if outcomes == nil {
		outcomes = []*generator.FileOutcome{}
	}
	sum := SummarizeExpansion(outcomes)
	switch format {
	case FormatJSON:
		return writeJSON(w, expansionJSON{Files: outcomes, Summary: sum})
	case FormatTable:
		var rows [][]any
		for _, o := range outcomes {
			if o.Skipped != "" {
				rows = append(rows, []any{o.Path, "-", "-", "skipped", o.Skipped})
			}
			for _, c := range o.Changes {
				rows = append(rows, []any{o.Path, lineNo(c.Call), c.Name, string(c.Action), c.Error})
			}
		}
		_, err := io.WriteString(w, grid("Expansion", []string{"File", "Line", "Name", "Action", "Error"}, rows)+"\n"+sum.String()+"\n")
		return err
	case FormatMarkdown:
		var rows [][]string
		for _, o := range outcomes {
			for _, c := range o.Changes {
				rows = append(rows, []string{o.Path, lineNo(c.Call), "`" + c.Name + "`", string(c.Action), c.Error})
			}
		}
		_, err := io.WriteString(w, "# Expansion\n\n"+sum.String()+"\n\n"+mdTable([]string{"File", "Line", "Name", "Action", "Error"}, rows))
		return err
	default:
		return expansionText(w, outcomes, sum, newPalette(opts.Color))
	}
}

func expansionText(w io.Writer, outcomes []*generator.FileOutcome, sum ExpansionSummary, p palette) error {
	var b strings.Builder
	for _, o := range outcomes {
		if o.Skipped != "" {
			fmt.Fprintf(&b, "%s %s: %s\n", o.Path, p.warn.Sprint("skipped"), o.Skipped)
			continue
		}
		for _, c := range o.Changes {
			action := string(c.Action)
			switch c.Action {
			case generator.ActionFailed:
				action = p.err.Sprint(action)
			case generator.ActionUnchanged:
				action = p.dim.Sprint(action)
			default:
				action = p.ok.Sprint(action)
			}
			fmt.Fprintf(&b, "%s:%d %s %s", o.Path, c.Call+1, p.bold.Sprint(c.Name), action)
			if c.Error != "" {
				fmt.Fprintf(&b, ": %s", c.Error)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString(p.dim.Sprint(sum.String()) + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}
