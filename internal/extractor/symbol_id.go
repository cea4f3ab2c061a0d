package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// BuildStableSymbolID creates a deterministic symbol ID from the unit's
// identity fields and a canonical signature hash. Moving a unit within its
// file keeps the ID.
func BuildStableSymbolID(unit *CodeUnit) string {
	if unit == nil {
		return ""
	}

	lang := orDefault(unit.Language, "unknown")
	pkg := orDefault(unit.Package, "_")
	kind := orDefault(unit.UnitType, "symbol")
	name := orDefault(unit.Name, "_")

	fingerprint := strings.Join([]string{
		lang,
		pkg,
		kind,
		canonicalize(unit.Receiver),
		name,
		canonicalize(unit.Signature),
	}, "|")

	sum := sha256.Sum256([]byte(fingerprint))
	short := hex.EncodeToString(sum[:8])
	return fmt.Sprintf("%s/%s:%s:%s:%s", lang, pkg, kind, name, short)
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func canonicalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}
