package generator

import (
	"errors"
	"slices"
	"strings"
	"unicode"

	"den/internal/annotation"
)

// ErrMarkerInOutput rejects generated code that would be read back as an
// annotation marker.
var ErrMarkerInOutput = errors.New("generated output contains an annotation marker")

type Action string

const (
	ActionReplaced  Action = "replaced"  // output between existing markers rewritten
	ActionClosed    Action = "closed"    // output and end marker added after an existing start
	ActionOpened    Action = "opened"    // start marker and output added before an existing end
	ActionInserted  Action = "inserted"  // both markers and output added after the header
	ActionUnchanged Action = "unchanged" // output already up to date
	ActionFailed    Action = "failed"
)

// Indentation returns the leading whitespace of line.
func Indentation(line string) string {
	return line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]
}

// HeaderEnd returns the index just past the call line and the comment lines
// that directly follow it.
func HeaderEnd(lines []string, r *annotation.Region) int {
	i := r.Call + 1
	for i < len(lines) && annotation.Classify(lines[i]).Kind == annotation.KindAttribute {
		i++
	}
	return i
}

// AttributeText returns the header comment lines of r with the comment
// prefix removed.
func AttributeText(lines []string, r *annotation.Region) []string {
	attrs := []string{}
	end := r.HeaderSpan().To
	if !r.Items.Valid && !r.Start.Valid {
		end = HeaderEnd(lines, r)
	}
	for i := r.Call + 1; i < end && i < len(lines); i++ {
		if annotation.Classify(lines[i]).Kind != annotation.KindAttribute {
			continue
		}
		text := strings.TrimLeftFunc(lines[i], unicode.IsSpace)
		attrs = append(attrs, strings.TrimSpace(strings.TrimPrefix(text, "//")))
	}
	return attrs
}

// InputText returns the input item lines of r, joined with newlines.
func InputText(lines []string, r *annotation.Region) string {
	span, ok := r.InputSpan()
	if !ok {
		return ""
	}
	return strings.Join(lines[span.From:min(span.To, len(lines))], "\n")
}

// FormatOutput splits generated code into lines indented like the call
// line. Blank lines stay empty.
func FormatOutput(code, indent string) ([]string, error) {
	if strings.TrimSpace(code) == "" {
		return []string{}, nil
	}
	raw := annotation.Lines(code)
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		switch annotation.Classify(line).Kind {
		case annotation.KindCall, annotation.KindCallNoBang,
			annotation.KindStart, annotation.KindEnd, annotation.KindEndNoBang:
			return nil, ErrMarkerInOutput
		}
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, indent+line)
	}
	return out, nil
}

// Splice places output into the region r of lines and reports what it did.
// lines is not modified.
func Splice(lines []string, r *annotation.Region, output []string) ([]string, Action) {
	indent := Indentation(lines[r.Call])

	var from, to int
	var insert []string
	var action Action

	switch {
	case r.Start.Valid && r.End.Valid:
		span, _ := r.OutputSpan()
		if slices.Equal(lines[span.From:span.To], output) {
			return lines, ActionUnchanged
		}
		from, to = span.From, span.To
		insert = output
		action = ActionReplaced

	case r.Start.Valid:
		from = r.Start.Line + 1
		to = from
		insert = append(append([]string{}, output...), annotation.EndLine(indent, r.Name))
		action = ActionClosed

	case r.End.Valid:
		from = r.End.Line
		to = from
		insert = make([]string, 0, len(output)+1)
		insert = append(insert, annotation.StartLine(indent))
		insert = append(insert, output...)
		action = ActionOpened

	default:
		from = HeaderEnd(lines, r)
		to = from
		insert = make([]string, 0, len(output)+2)
		insert = append(insert, annotation.StartLine(indent))
		insert = append(insert, output...)
		insert = append(insert, annotation.EndLine(indent, r.Name))
		action = ActionInserted
	}

	out := make([]string, 0, len(lines)-(to-from)+len(insert))
	out = append(out, lines[:from]...)
	out = append(out, insert...)
	out = append(out, lines[to:]...)
	return out, action
}
