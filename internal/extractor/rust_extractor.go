package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// RustExtractor implements LanguageExtractor for Rust.
type RustExtractor struct{}

var rustCommentKinds = []string{"line_comment", "block_comment"}

var rustUnitTypes = map[string]string{
	"struct_item":      "struct",
	"enum_item":        "enum",
	"trait_item":       "trait",
	"type_item":        "type",
	"const_item":       "constant",
	"static_item":      "variable",
	"mod_item":         "module",
	"macro_definition": "macro",
}

func (r *RustExtractor) GetLanguage() *sitter.Language {
	return rust.GetLanguage()
}

func (r *RustExtractor) GetQuery() string {
	return `
		(function_item) @func
		(impl_item) @impl
		(struct_item) @item
		(enum_item) @item
		(trait_item) @item
		(type_item) @item
		(const_item) @item
		(static_item) @item
		(mod_item) @item
		(macro_definition) @item
	`
}

// PackageName is empty: a Rust file does not name its crate.
func (r *RustExtractor) PackageName(root *sitter.Node, sourceCode []byte) string {
	return ""
}

func (r *RustExtractor) ExtractUnit(captureName string, node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	switch captureName {
	case "func":
		return r.extractFunctionUnit(node, sourceCode, filepath)
	case "impl":
		return r.extractImplUnit(node, sourceCode, filepath)
	case "item":
		return r.extractItemUnit(node, sourceCode, filepath)
	}
	return nil
}

func (r *RustExtractor) extractFunctionUnit(node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	unit := newUnit(node, node, sourceCode, filepath)
	unit.Name = nameNode.Content(sourceCode)
	unit.UnitType = "function"
	unit.Signature = signatureBeforeBody(node, sourceCode)
	unit.Description = docComment(node, sourceCode, rustCommentKinds...)

	// fn inside impl or trait body: declaration_list -> impl_item/trait_item
	if list := node.Parent(); list != nil && list.Type() == "declaration_list" {
		if owner := list.Parent(); owner != nil {
			switch owner.Type() {
			case "impl_item":
				unit.UnitType = "method"
				if t := owner.ChildByFieldName("type"); t != nil {
					unit.Receiver = t.Content(sourceCode)
				}
			case "trait_item":
				unit.UnitType = "method"
				if n := owner.ChildByFieldName("name"); n != nil {
					unit.Receiver = n.Content(sourceCode)
				}
			}
		}
	}
	return unit
}

func (r *RustExtractor) extractImplUnit(node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return nil
	}

	unit := newUnit(node, node, sourceCode, filepath)
	unit.Name = typeNode.Content(sourceCode)
	unit.UnitType = "impl"
	unit.Signature = signatureBeforeBody(node, sourceCode)
	unit.Description = docComment(node, sourceCode, rustCommentKinds...)
	if traitNode := node.ChildByFieldName("trait"); traitNode != nil {
		unit.Receiver = traitNode.Content(sourceCode)
	}
	return unit
}

func (r *RustExtractor) extractItemUnit(node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	unit := newUnit(node, node, sourceCode, filepath)
	unit.Name = nameNode.Content(sourceCode)
	unit.UnitType = rustUnitTypes[node.Type()]
	unit.Signature = signatureBeforeBody(node, sourceCode)
	unit.Description = docComment(node, sourceCode, rustCommentKinds...)
	return unit
}
