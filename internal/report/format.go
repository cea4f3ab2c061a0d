// Package report renders scan, staleness and expansion results for people
// (colored text, tables, markdown) and for tools (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bndr/gotabulate"
	"github.com/fatih/color"

	"den/internal/annotation"
)

type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts the CLI spelling of a format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatTable, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, table or markdown)", s)
	}
}

// Options controls rendering.
type Options struct {
	Color bool
}

// palette holds per-render colors so one render never changes another's
// color state.
type palette struct {
	err, warn, ok, dim, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		ok:   color.New(color.FgGreen),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.ok, p.dim, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// grid renders rows as a gotabulate grid table.
func grid(title string, headers []string, rows [][]any) string {
	if len(rows) == 0 {
		return fmt.Sprintf("%s: (none)\n", title)
	}
	t := gotabulate.Create(rows)
	t.SetHeaders(headers)
	t.SetAlign("left")
	t.SetWrapStrings(true)
	t.SetMaxCellSize(85)
	return fmt.Sprintf("%s:\n%s", title, t.Render("grid"))
}

// mdTable renders a GitHub markdown table.
func mdTable(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// lineNo renders a 0-based mark as a 1-based line number.
func lineNo(line int) string {
	return fmt.Sprint(line + 1)
}

func markNo(m annotation.LineMark) string {
	if line, ok := m.Get(); ok {
		return lineNo(line)
	}
	return "-"
}
