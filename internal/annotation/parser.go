package annotation

import (
	"fmt"
	"strings"
)

// WarningKind classifies a non-fatal anomaly.
type WarningKind int

const (
	UnexpectedStart WarningKind = iota + 1
	UnexpectedEnd
	CallNoBang
	EndNoBang
	NameMismatch
)

func (k WarningKind) String() string {
	switch k {
	case UnexpectedStart:
		return "unexpected_start"
	case UnexpectedEnd:
		return "unexpected_end"
	case CallNoBang:
		return "call_no_bang"
	case EndNoBang:
		return "end_no_bang"
	case NameMismatch:
		return "name_mismatch"
	default:
		return "unknown"
	}
}

// ParseWarningKind is the inverse of WarningKind.String.
func ParseWarningKind(s string) (WarningKind, bool) {
	for k := UnexpectedStart; k <= NameMismatch; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func (k WarningKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *WarningKind) UnmarshalText(text []byte) error {
	v, ok := ParseWarningKind(string(text))
	if !ok {
		return fmt.Errorf("unknown warning kind %q", text)
	}
	*k = v
	return nil
}

func (k WarningKind) Message() string {
	switch k {
	case UnexpectedStart:
		return "start marker without an open region, or the region already has a start"
	case UnexpectedEnd:
		return "end marker without an open region, or the region already has an end"
	case CallNoBang:
		return "call marker is missing its terminating '!'"
	case EndNoBang:
		return "end marker is missing its terminating '!'"
	case NameMismatch:
		return "end marker name does not match the open region"
	default:
		return "unknown warning"
	}
}

// Warning is an advisory diagnostic at a line.
type Warning struct {
	Kind WarningKind `json:"kind"`
	Line int         `json:"line"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%d: %s", w.Line, w.Kind)
}

// FatalError halts a parse. Region is the offending region, which is not
// part of the returned Outcome. Trigger is the call line that forced
// validation, unset when the problem was found at end of input.
type FatalError struct {
	Err     error
	Region  Region
	Trigger LineMark
}

func (e *FatalError) Error() string {
	if e.Trigger.Valid {
		return fmt.Sprintf("region %q (line %d): %v, detected at line %d", e.Region.Name, e.Region.Call, e.Err, e.Trigger.Line)
	}
	return fmt.Sprintf("region %q (line %d): %v, detected at end of input", e.Region.Name, e.Region.Call, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Outcome is the result of a parse: regions and warnings in line order.
type Outcome struct {
	Regions  []Region  `json:"regions"`
	Warnings []Warning `json:"warnings"`
}

// Engine tracks regions over a stream of classified lines. Only the most
// recently opened region is mutable; a new call closes it.
type Engine struct {
	regions  []Region
	warnings []Warning
	fatal    *FatalError
}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) open() *Region {
	if len(e.regions) == 0 {
		return nil
	}
	return &e.regions[len(e.regions)-1]
}

func (e *Engine) warn(kind WarningKind, i int) {
	e.warnings = append(e.warnings, Warning{Kind: kind, Line: i})
}

// closeOpen validates the open region. An invalid region is removed from the
// sequence and recorded as the fatal error.
func (e *Engine) closeOpen(trigger LineMark) error {
	r := e.open()
	if r == nil {
		return nil
	}
	if err := r.Validate(); err != nil {
		e.fatal = &FatalError{Err: err, Region: *r, Trigger: trigger}
		e.regions = e.regions[:len(e.regions)-1]
		return e.fatal
	}
	return nil
}

// HandleLine applies the tag found at line i. It returns a *FatalError once
// the engine has halted; later calls return the same error.
func (e *Engine) HandleLine(i int, tag Tag) error {
	if e.fatal != nil {
		return e.fatal
	}

	switch tag.Kind {
	case KindEmpty:
	case KindCallNoBang:
		e.warn(CallNoBang, i)
	case KindEndNoBang:
		e.warn(EndNoBang, i)
	case KindCall:
		if err := e.closeOpen(At(i)); err != nil {
			return err
		}
		e.regions = append(e.regions, NewRegion(tag.Name, i))
	case KindAttribute:
		if r := e.open(); r != nil {
			r.SetAttribute(i)
		}
	case KindItem:
		if r := e.open(); r != nil {
			r.SetItem(i)
		}
	case KindStart:
		r := e.open()
		if r == nil || r.SetStart(i) != nil {
			e.warn(UnexpectedStart, i)
		}
	case KindEnd:
		r := e.open()
		if r == nil || r.SetEnd(i) != nil {
			e.warn(UnexpectedEnd, i)
			break
		}
		if r.Name != tag.Name {
			e.warn(NameMismatch, i)
		}
	}
	return nil
}

// Finish validates the last open region and returns the outcome. On a fatal
// error the outcome is still returned with every region finalized before the
// offending one.
func (e *Engine) Finish() (*Outcome, error) {
	if e.fatal == nil {
		_ = e.closeOpen(LineMark{})
	}
	out := &Outcome{Regions: e.regions, Warnings: e.warnings}
	if e.fatal != nil {
		return out, e.fatal
	}
	return out, nil
}

// Parse classifies every line of text and tracks its regions.
func Parse(text string) (*Outcome, error) {
	e := NewEngine()
	i := 0
	for rest := text; rest != ""; i++ {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		line = strings.TrimSuffix(line, "\r")
		if err := e.HandleLine(i, Classify(line)); err != nil {
			break
		}
	}
	return e.Finish()
}

// Lines splits text the way Parse numbers it.
func Lines(text string) []string {
	var lines []string
	for rest := text; rest != ""; {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}
	return lines
}
