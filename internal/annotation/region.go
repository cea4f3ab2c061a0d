package annotation

import (
	"encoding/json"
	"errors"
	"strconv"
)

var (
	// ErrMissingStart reports input items recorded without a start marker.
	ErrMissingStart = errors.New("missing start marker")
	// ErrMissingEnd reports output items recorded without an end marker.
	ErrMissingEnd = errors.New("missing end marker")
	// ErrStartRejected is returned by SetStart when the region already has a
	// start, output or end.
	ErrStartRejected = errors.New("start marker rejected")
	// ErrEndRejected is returned by SetEnd when the region already has an end.
	ErrEndRejected = errors.New("end marker rejected")
)

// LineMark is an optional 0-based line index. The zero value is unset.
type LineMark struct {
	Line  int
	Valid bool
}

// At returns a set LineMark.
func At(line int) LineMark {
	return LineMark{Line: line, Valid: true}
}

// Get returns the line and whether it is set.
func (m LineMark) Get() (int, bool) {
	return m.Line, m.Valid
}

func (m LineMark) String() string {
	if !m.Valid {
		return "-"
	}
	return strconv.Itoa(m.Line)
}

func (m LineMark) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(m.Line)), nil
}

func (m *LineMark) UnmarshalJSON(data []byte) error {
	var v *int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*m = LineMark{}
		return nil
	}
	*m = At(*v)
	return nil
}

// Region is one detected invocation span. All marks are line indices into
// the parsed text; Call is fixed at creation.
type Region struct {
	Name       string   `json:"name"`
	Call       int      `json:"call"`
	Attributes LineMark `json:"attributes"`
	Items      LineMark `json:"items"`
	Start      LineMark `json:"start"`
	Output     LineMark `json:"output"`
	End        LineMark `json:"end"`
}

// NewRegion opens a region for the call found at line call.
func NewRegion(name string, call int) Region {
	return Region{Name: name, Call: call}
}

// Validate returns ErrMissingStart or ErrMissingEnd, in that order of
// precedence, or nil for a well-formed region.
func (r *Region) Validate() error {
	if r.Items.Valid && !r.Start.Valid {
		return ErrMissingStart
	}
	if r.Output.Valid && !r.End.Valid {
		return ErrMissingEnd
	}
	return nil
}

// SetAttribute records the first attribute line of the header. Comment lines
// after the first item or the start marker are ignored.
func (r *Region) SetAttribute(i int) {
	if r.Attributes.Valid || r.Items.Valid || r.Start.Valid {
		return
	}
	r.Attributes = At(i)
}

// SetItem records the first input item before the start marker, or the
// first output item between start and end. Items after the end are ignored.
func (r *Region) SetItem(i int) {
	switch {
	case !r.Start.Valid:
		if !r.Items.Valid {
			r.Items = At(i)
		}
	case !r.End.Valid:
		if !r.Output.Valid {
			r.Output = At(i)
		}
	}
}

// SetStart records the start marker unless a start, output or end is already set.
func (r *Region) SetStart(i int) error {
	if r.Start.Valid || r.Output.Valid || r.End.Valid {
		return ErrStartRejected
	}
	r.Start = At(i)
	return nil
}

// SetEnd records the end marker unless one is already set. A missing start is allowed.
func (r *Region) SetEnd(i int) error {
	if r.End.Valid {
		return ErrEndRejected
	}
	r.End = At(i)
	return nil
}

// Span is a half-open range of line indices [From, To).
type Span struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (s Span) Len() int {
	if s.To < s.From {
		return 0
	}
	return s.To - s.From
}

// Contains reports whether line falls in the span.
func (s Span) Contains(line int) bool {
	return line >= s.From && line < s.To
}

// HeaderSpan covers the call line through the line before the first input
// item or the start marker. Without either, it covers the call line only.
func (r *Region) HeaderSpan() Span {
	switch {
	case r.Items.Valid:
		return Span{From: r.Call, To: r.Items.Line}
	case r.Start.Valid:
		return Span{From: r.Call, To: r.Start.Line}
	default:
		return Span{From: r.Call, To: r.Call + 1}
	}
}

// InputSpan covers the input item lines. ok is false when the region has no
// input items.
func (r *Region) InputSpan() (span Span, ok bool) {
	if !r.Items.Valid || !r.Start.Valid {
		return Span{}, false
	}
	return Span{From: r.Items.Line, To: r.Start.Line}, true
}

// OutputSpan covers the lines strictly between the start and end markers.
// ok is false unless both markers are present.
func (r *Region) OutputSpan() (span Span, ok bool) {
	if !r.Start.Valid || !r.End.Valid {
		return Span{}, false
	}
	return Span{From: r.Start.Line + 1, To: r.End.Line}, true
}
