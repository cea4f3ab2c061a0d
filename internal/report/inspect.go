package report

import (
	"fmt"
	"io"
	"strings"

	"den/internal/extractor"
	"den/internal/index"
)

// InspectedRegion pairs a region with the declarations found in its
// output lines.
type InspectedRegion struct {
	Region index.RegionRecord    `json:"region"`
	Units  []*extractor.CodeUnit `json:"units"`
}

// RenderInspect writes the regions of one file and what their output
// declares.
func RenderInspect(w io.Writer, path string, regions []InspectedRegion, format Format, opts Options) error {
	if regions == nil {
		regions = []InspectedRegion{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(w, struct {
			Path    string            `json:"path"`
			Regions []InspectedRegion `json:"regions"`
		}{path, regions})
	case FormatTable:
		var rows [][]any
		for _, ir := range regions {
			if len(ir.Units) == 0 {
				rows = append(rows, []any{lineNo(ir.Region.Call), ir.Region.Name, "-", "-", "-"})
			}
			for _, u := range ir.Units {
				rows = append(rows, []any{lineNo(ir.Region.Call), ir.Region.Name, u.UnitType, u.Name, u.Signature})
			}
		}
		_, err := io.WriteString(w, grid(path, []string{"Line", "Region", "Kind", "Declaration", "Signature"}, rows))
		return err
	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "# `%s`\n", path)
		for _, ir := range regions {
			fmt.Fprintf(&b, "\n## `%s` (line %d)\n\n", ir.Region.Name, ir.Region.Call+1)
			if len(ir.Units) == 0 {
				b.WriteString("No declarations.\n")
				continue
			}
			for _, u := range ir.Units {
				fmt.Fprintf(&b, "- %s `%s`\n", u.UnitType, u.Signature)
			}
		}
		_, err := io.WriteString(w, b.String())
		return err
	default:
		p := newPalette(opts.Color)
		var b strings.Builder
		for _, ir := range regions {
			fmt.Fprintf(&b, "%s:%d %s\n", path, ir.Region.Call+1, p.bold.Sprint(ir.Region.Name))
			for _, u := range ir.Units {
				fmt.Fprintf(&b, "  %s %s %s\n", p.dim.Sprintf("%d-%d", u.StartLine, u.EndLine), u.UnitType, u.Signature)
			}
		}
		if len(regions) == 0 {
			b.WriteString(p.dim.Sprint("no regions") + "\n")
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
}
