package backend

import "strings"

// cleanCodeOutput strips a surrounding markdown fence, with or without a
// language tag, and blank lines around the code. Indentation of the first
// code line is kept.
func cleanCodeOutput(text string) string {
	text = strings.TrimRight(text, " \t\r\n")
	if trimmed := strings.TrimLeft(text, " \t\r\n"); strings.HasPrefix(trimmed, "```") {
		_, body, found := strings.Cut(trimmed, "\n")
		if !found {
			return ""
		}
		text = strings.TrimRight(strings.TrimSuffix(body, "```"), " \t\r\n")
	}
	return dropLeadingBlankLines(text)
}

func dropLeadingBlankLines(text string) string {
	for {
		line, rest, found := strings.Cut(text, "\n")
		if !found || strings.TrimSpace(line) != "" {
			if strings.TrimSpace(text) == "" {
				return ""
			}
			return text
		}
		text = rest
	}
}
