package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoExtractor implements LanguageExtractor for Go.
type GoExtractor struct{}

func (g *GoExtractor) GetLanguage() *sitter.Language {
	return golang.GetLanguage()
}

func (g *GoExtractor) GetQuery() string {
	return `
		(function_declaration) @func
		(method_declaration) @func
		(type_spec) @type
		(const_spec) @const
		(var_spec) @var
	`
}

func (g *GoExtractor) PackageName(root *sitter.Node, sourceCode []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "package_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			if id := child.NamedChild(j); id.Type() == "package_identifier" {
				return id.Content(sourceCode)
			}
		}
	}
	return ""
}

func (g *GoExtractor) ExtractUnit(captureName string, node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	switch captureName {
	case "func":
		return g.extractFunctionUnit(node, sourceCode, filepath)
	case "type":
		return g.extractTypeUnit(node, sourceCode, filepath)
	case "const":
		return g.extractValueUnit("constant", node, sourceCode, filepath)
	case "var":
		return g.extractValueUnit("variable", node, sourceCode, filepath)
	}
	return nil
}

func (g *GoExtractor) extractFunctionUnit(node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	unit := newUnit(node, node, sourceCode, filepath)
	unit.Name = nameNode.Content(sourceCode)
	unit.UnitType = "function"
	unit.Signature = signatureBeforeBody(node, sourceCode)
	unit.Description = docComment(node, sourceCode, "comment")

	if node.Type() == "method_declaration" {
		unit.UnitType = "method"
		if receiverNode := node.ChildByFieldName("receiver"); receiverNode != nil {
			unit.Receiver = receiverNode.Content(sourceCode)
		}
	}
	return unit
}

func (g *GoExtractor) extractTypeUnit(node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	// A lone spec reports its declaration; grouped specs report themselves.
	outer := node
	if p := node.Parent(); p != nil && p.Type() == "type_declaration" && p.NamedChildCount() == 1 {
		outer = p
	}

	unit := newUnit(node, outer, sourceCode, filepath)
	unit.Name = nameNode.Content(sourceCode)
	unit.UnitType = "type"
	unit.Signature = "type " + firstLine(node.Content(sourceCode))
	unit.Description = docComment(outer, sourceCode, "comment")

	if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		switch typeNode.Type() {
		case "struct_type":
			unit.UnitType = "struct"
		case "interface_type":
			unit.UnitType = "interface"
		}
	}
	return unit
}

func (g *GoExtractor) extractValueUnit(unitType string, node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}

	outer := node
	if p := node.Parent(); p != nil && p.NamedChildCount() == 1 &&
		(p.Type() == "const_declaration" || p.Type() == "var_declaration") {
		outer = p
	}

	unit := newUnit(node, outer, sourceCode, filepath)
	unit.Name = nameNode.Content(sourceCode)
	unit.UnitType = unitType
	unit.Signature = firstLine(node.Content(sourceCode))
	unit.Description = docComment(outer, sourceCode, "comment")
	return unit
}

// newUnit spans outer, the node that carries the doc comment, and records
// lines from both.
func newUnit(node, outer *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	return &CodeUnit{
		Filepath:  filepath,
		StartLine: int(outer.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
	}
}

func signatureBeforeBody(node *sitter.Node, sourceCode []byte) string {
	if bodyNode := node.ChildByFieldName("body"); bodyNode != nil {
		return strings.TrimSpace(string(sourceCode[node.StartByte():bodyNode.StartByte()]))
	}
	return firstLine(node.Content(sourceCode))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "{"))
}

// docComment collects the comment siblings directly above node whose type is
// one of kinds.
func docComment(node *sitter.Node, sourceCode []byte, kinds ...string) string {
	var commentLines []string
	currentNode := node
	for {
		prevSibling := currentNode.PrevSibling()
		if prevSibling == nil || (currentNode.StartPoint().Row-prevSibling.EndPoint().Row > 1) {
			break
		}
		if !isOneOf(prevSibling.Type(), kinds) {
			break
		}
		commentLines = append([]string{prevSibling.Content(sourceCode)}, commentLines...)
		currentNode = prevSibling
	}
	return cleanDocComment(strings.Join(commentLines, "\n"))
}

func isOneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func cleanDocComment(rawComment string) string {
	if rawComment == "" {
		return ""
	}
	lines := strings.Split(rawComment, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "///")
		l = strings.TrimPrefix(l, "//")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		cleaned = append(cleaned, strings.TrimSpace(l))
	}
	return strings.Join(cleaned, "\n")
}
