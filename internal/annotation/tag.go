package annotation

import (
	"strings"
	"unicode"
)

const (
	commentPrefix = "//"
	callMarker    = "@den::"
	fenceMarker   = "```@den```"
	endMarker     = "end:"
	bang          = "!"
)

// Kind is the classification of a single source line.
type Kind int

const (
	KindEmpty Kind = iota
	KindItem
	KindAttribute
	KindCall
	KindCallNoBang
	KindStart
	KindEnd
	KindEndNoBang
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindItem:
		return "item"
	case KindAttribute:
		return "attribute"
	case KindCall:
		return "call"
	case KindCallNoBang:
		return "call_no_bang"
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindEndNoBang:
		return "end_no_bang"
	default:
		return "unknown"
	}
}

// Tag is the result of classifying one line. Name is only set for KindCall
// and KindEnd and is a substring of the classified line.
type Tag struct {
	Kind Kind
	Name string
}

// Classify maps a line to exactly one Tag. It never allocates: names are
// slices of line.
func Classify(line string) Tag {
	s := strings.TrimLeftFunc(line, unicode.IsSpace)

	if !strings.HasPrefix(s, commentPrefix) {
		if strings.TrimRightFunc(s, unicode.IsSpace) == "" {
			return Tag{Kind: KindEmpty}
		}
		return Tag{Kind: KindItem}
	}
	s = strings.TrimLeftFunc(s[len(commentPrefix):], unicode.IsSpace)

	switch {
	case strings.HasPrefix(s, callMarker):
		name, ok := nameBeforeBang(s[len(callMarker):])
		if !ok {
			return Tag{Kind: KindCallNoBang}
		}
		return Tag{Kind: KindCall, Name: name}

	case strings.HasPrefix(s, fenceMarker):
		s = strings.TrimLeftFunc(s[len(fenceMarker):], unicode.IsSpace)
		if !strings.HasPrefix(s, endMarker) {
			return Tag{Kind: KindStart}
		}
		name, ok := nameBeforeBang(s[len(endMarker):])
		if !ok {
			return Tag{Kind: KindEndNoBang}
		}
		return Tag{Kind: KindEnd, Name: name}

	default:
		return Tag{Kind: KindAttribute}
	}
}

func nameBeforeBang(s string) (string, bool) {
	i := strings.Index(s, bang)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(s[:i]), true
}

// CallLine renders the call marker line for name.
func CallLine(indent, name string) string {
	return indent + commentPrefix + " " + callMarker + name + bang
}

// StartLine renders the start marker line.
func StartLine(indent string) string {
	return indent + commentPrefix + " " + fenceMarker
}

// EndLine renders the end marker line closing name.
func EndLine(indent, name string) string {
	return indent + commentPrefix + " " + fenceMarker + endMarker + name + bang
}
