package report

import (
	"fmt"
	"io"

	"den/internal/index"
)

// Diagnostic is one problem found in a scan. Line is 1-based; 0 means the
// whole file.
type Diagnostic struct {
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

func (d Diagnostic) Location() string {
	if d.Line == 0 {
		return d.Path
	}
	return fmt.Sprintf("%s:%d", d.Path, d.Line)
}

// Diagnostics flattens the read errors, fatal errors and warnings of x in
// path order.
func Diagnostics(x *index.Index) []Diagnostic {
	out := []Diagnostic{}
	for _, f := range x.Files {
		if f.Err != "" {
			out = append(out, Diagnostic{Path: f.Path, Severity: SeverityError, Code: "read_error", Message: f.Err})
		}
		if f.Fatal != nil {
			out = append(out, Diagnostic{
				Path:     f.Path,
				Line:     f.Fatal.Region.Call + 1,
				Severity: SeverityError,
				Code:     f.Fatal.Kind,
				Message:  f.Fatal.Err().Error(),
			})
		}
		for _, w := range f.Warnings {
			out = append(out, Diagnostic{
				Path:     f.Path,
				Line:     w.Line + 1,
				Severity: SeverityWarning,
				Code:     w.Kind.String(),
				Message:  w.Kind.Message(),
			})
		}
	}
	return out
}

type scanJSON struct {
	Root        string       `json:"root"`
	Stats       index.Stats  `json:"stats"`
	Regions     []regionJSON `json:"regions"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Count       int          `json:"count"`
}

type regionJSON struct {
	index.RegionRecord
	Line int `json:"line"`
}

// RenderScan writes the regions and diagnostics of x.
func RenderScan(w io.Writer, x *index.Index, format Format, opts Options) error {
	diags := Diagnostics(x)
	switch format {
	case FormatJSON:
		regions := []regionJSON{}
		for _, r := range x.Regions() {
			regions = append(regions, regionJSON{RegionRecord: r, Line: r.Call + 1})
		}
		return writeJSON(w, scanJSON{
			Root:        x.Root,
			Stats:       x.Stats(),
			Regions:     regions,
			Diagnostics: diags,
			Count:       len(diags),
		})
	case FormatTable:
		_, err := io.WriteString(w, regionGrid(x)+"\n"+diagnosticGrid(diags)+"\n"+summary(x.Stats())+"\n")
		return err
	case FormatMarkdown:
		return scanMarkdown(w, x, diags)
	default:
		return scanText(w, x, diags, newPalette(opts.Color))
	}
}

func summary(s index.Stats) string {
	return fmt.Sprintf("%d files, %d regions, %d warnings, %d fatal, %d errors",
		s.Files, s.Regions, s.Warnings, s.Fatal, s.Errors)
}

func scanText(w io.Writer, x *index.Index, diags []Diagnostic, p palette) error {
	for _, r := range x.Regions() {
		state := p.ok.Sprint("expanded")
		if !r.End.Valid {
			state = p.warn.Sprint("pending")
		}
		if _, err := fmt.Fprintf(w, "%s:%d %s %s\n", r.Path, r.Call+1, p.bold.Sprint(r.Name), state); err != nil {
			return err
		}
	}
	for _, d := range diags {
		sev := p.warn.Sprint(d.Severity)
		if d.Severity == SeverityError {
			sev = p.err.Sprint(d.Severity)
		}
		if _, err := fmt.Fprintf(w, "%s: %s[%s]: %s\n", d.Location(), sev, d.Code, d.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, p.dim.Sprint(summary(x.Stats())))
	return err
}

func regionGrid(x *index.Index) string {
	var rows [][]any
	for _, r := range x.Regions() {
		rows = append(rows, []any{r.Path, lineNo(r.Call), r.Name, markNo(r.Items), markNo(r.Start), markNo(r.Output), markNo(r.End)})
	}
	return grid("Regions", []string{"File", "Line", "Name", "Input", "Start", "Output", "End"}, rows)
}

func diagnosticGrid(diags []Diagnostic) string {
	var rows [][]any
	for _, d := range diags {
		rows = append(rows, []any{d.Location(), string(d.Severity), d.Code, d.Message})
	}
	return grid("Diagnostics", []string{"Location", "Severity", "Code", "Message"}, rows)
}

func scanMarkdown(w io.Writer, x *index.Index, diags []Diagnostic) error {
	if _, err := fmt.Fprintf(w, "# Scan of `%s`\n\n%s\n\n## Regions\n\n", x.Root, summary(x.Stats())); err != nil {
		return err
	}
	var rows [][]string
	for _, r := range x.Regions() {
		rows = append(rows, []string{r.Path, lineNo(r.Call), "`" + r.Name + "`", markNo(r.Start), markNo(r.End)})
	}
	if _, err := io.WriteString(w, mdTable([]string{"File", "Line", "Name", "Start", "End"}, rows)); err != nil {
		return err
	}
	if len(diags) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, "\n## Diagnostics\n\n"); err != nil {
		return err
	}
	for _, d := range diags {
		if _, err := fmt.Fprintf(w, "- **%s** `%s` %s: %s\n", d.Severity, d.Location(), d.Code, d.Message); err != nil {
			return err
		}
	}
	return nil
}
