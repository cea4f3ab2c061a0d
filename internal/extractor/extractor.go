package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	"den/internal/annotation"
)

// Extractor orchestrates the extraction process using language-specific extractors.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
	query         *sitter.Query
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "go":
		langExt = &GoExtractor{}
	case "rust":
		langExt = &RustExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	query, err := sitter.NewQuery([]byte(langExt.GetQuery()), langExt.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	return &Extractor{langExtractor: langExt, langName: lang, query: query}, nil
}

// LanguageFor maps a file extension to a supported language name.
func LanguageFor(path string) (string, bool) {
	switch filepath.Ext(path) {
	case ".go":
		return "go", true
	case ".rs":
		return "rust", true
	}
	return "", false
}

// ForPath creates an extractor for the language of path.
func ForPath(path string) (*Extractor, error) {
	lang, ok := LanguageFor(path)
	if !ok {
		return nil, fmt.Errorf("unsupported language for %s", path)
	}
	return NewExtractor(lang)
}

func (e *Extractor) Language() string {
	return e.langName
}

// ExtractFromFile parses a single source file and extracts all relevant code units.
func (e *Extractor) ExtractFromFile(path string) ([]*CodeUnit, error) {
	sourceCode, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.ExtractFromSource(context.Background(), path, sourceCode)
}

// ExtractFromSource extracts code units from in-memory source. path is only
// recorded on the units.
func (e *Extractor) ExtractFromSource(ctx context.Context, path string, sourceCode []byte) ([]*CodeUnit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.langExtractor.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	packageName := e.langExtractor.PackageName(root, sourceCode)

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(e.query, root)

	var codeUnits []*CodeUnit
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			captureName := e.query.CaptureNameForId(c.Index)
			unit := e.langExtractor.ExtractUnit(captureName, c.Node, sourceCode, path)
			if unit == nil {
				continue
			}
			unit.Package = packageName
			unit.Language = e.langName
			unit.ID = BuildStableSymbolID(unit)
			codeUnits = append(codeUnits, unit)
		}
	}

	return codeUnits, nil
}

// Within returns the units that start inside span, a half-open range of
// 0-based line indices.
func Within(units []*CodeUnit, span annotation.Span) []*CodeUnit {
	var out []*CodeUnit
	for _, u := range units {
		if span.Contains(u.StartLine - 1) {
			out = append(out, u)
		}
	}
	return out
}
