package extractor

import sitter "github.com/smacker/go-tree-sitter"

// CodeUnit is a declaration found in a source file. Lines are 1-based and
// inclusive, as tree-sitter rows plus one.
type CodeUnit struct {
	ID          string `json:"id"`
	Filepath    string `json:"filepath"`
	Package     string `json:"package,omitempty"`
	Language    string `json:"language"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	UnitType    string `json:"unit_type"` // e.g., "function", "method", "struct", "impl"
	Name        string `json:"name"`
	Receiver    string `json:"receiver,omitempty"`
	Signature   string `json:"signature"`
	Description string `json:"description,omitempty"`
}

// LanguageExtractor defines the interface that each language parser must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	GetQuery() string
	ExtractUnit(captureName string, node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit
	PackageName(root *sitter.Node, sourceCode []byte) string
}
