package jsimport

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Style is the shape of an import clause.
type Style int

const (
	// StyleDefault covers `import x from 'm'` and every clause shape that is
	// neither namespace, side-effect nor named.
	StyleDefault Style = iota
	// StyleNamespace is `import * as x from 'm'`.
	StyleNamespace
	// StyleSideEffect is `import 'm'`.
	StyleSideEffect
	// StyleNamed is `import { a, b as c } from 'm'`.
	StyleNamed
)

// Tree-sitter node and field names used by the clause parser.
const (
	nodeImportClause  = "import_clause"
	nodeNamedImports  = "named_imports"
	nodeNamespace     = "namespace_import"
	nodeRequireClause = "import_require_clause"
	nodeSpecifier     = "import_specifier"
	nodeIdentifier    = "identifier"
	nodeComment       = "comment"
	nodeAttribute     = "import_attribute"
	nodeAssertion     = "import_assertion"
	nodeError         = "ERROR"
	keywordType       = "type"
	keywordTypeof     = "typeof"
	keywordWith       = "with"
	keywordAssert     = "assert"
	fieldSource       = "source"
	fieldName         = "name"
	fieldAlias        = "alias"
	quoteCutset       = `'"`
)

func (s Style) String() string {
	switch s {
	case StyleDefault:
		return "default"
	case StyleNamespace:
		return "namespace"
	case StyleSideEffect:
		return "side-effect"
	case StyleNamed:
		return "named"
	default:
		return "unknown"
	}
}

// MemberBinding is one member of a named import.
type MemberBinding struct {
	// SourceName is the exported name being imported.
	SourceName string
	// LocalName is the name bound in the importing module. It equals
	// SourceName unless the member is renamed with `as`.
	LocalName string
	// TypeOnly marks `{ type Foo }` members.
	TypeOnly bool
}

// Aliased reports whether the member is renamed locally.
func (m MemberBinding) Aliased() bool {
	return m.SourceName != m.LocalName
}

// ImportClause is the parsed form of one import declaration.
type ImportClause struct {
	ModulePath string
	Style      Style
	// Members is non-empty only for StyleNamed clauses that parsed cleanly.
	Members []MemberBinding
	// TypeOnly marks `import type { ... }` declarations.
	TypeOnly bool
	// Attributes marks declarations carrying `with { ... }` or
	// `assert { ... }` import attributes.
	Attributes bool
}

// ParseClause parses the declaration's clause. It never fails: shapes it
// does not understand, and statements containing syntax errors, produce a
// clause without members.
func ParseClause(decl Declaration) ImportClause {
	stmt := decl.node
	if stmt.IsNull() {
		return ImportClause{}
	}

	clause := ImportClause{Style: StyleSideEffect}

	var named sitter.Node

	for idx := range stmt.ChildCount() {
		child := stmt.Child(idx)

		switch child.Type() {
		case nodeImportClause:
			clause.Style, named = classifyClause(child)
		case nodeRequireClause:
			clause.Style = StyleDefault
			clause.ModulePath = modulePath(child, decl.source)
		case keywordType, keywordTypeof:
			if !child.IsNamed() {
				clause.TypeOnly = true
			}
		case nodeAttribute, nodeAssertion:
			clause.Attributes = true
		case keywordWith, keywordAssert:
			if !child.IsNamed() {
				clause.Attributes = true
			}
		}
	}

	if path := modulePath(stmt, decl.source); path != "" {
		clause.ModulePath = path
	}

	if clause.Style != StyleNamed || containsError(stmt) {
		return clause
	}

	clause.Members = parseMembers(named, decl.source)

	return clause
}

// classifyClause derives the style from the clause's first non-comment child.
// The named_imports node is returned for StyleNamed.
func classifyClause(clauseNode sitter.Node) (Style, sitter.Node) {
	for idx := range clauseNode.NamedChildCount() {
		child := clauseNode.NamedChild(idx)

		switch child.Type() {
		case nodeComment:
			continue
		case nodeNamedImports:
			return StyleNamed, child
		case nodeNamespace:
			return StyleNamespace, sitter.Node{}
		default:
			return StyleDefault, sitter.Node{}
		}
	}

	return StyleDefault, sitter.Node{}
}

// parseMembers walks the specifiers of a named_imports node. Any specifier
// it cannot read cleanly discards the whole list.
func parseMembers(named sitter.Node, source []byte) []MemberBinding {
	if named.IsNull() {
		return nil
	}

	// Error recovery can close the list with a zero-width brace.
	if text := nodeText(named, source); !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return nil
	}

	members := make([]MemberBinding, 0, named.NamedChildCount())

	for idx := range named.NamedChildCount() {
		child := named.NamedChild(idx)

		switch child.Type() {
		case nodeComment:
			continue
		case nodeSpecifier:
			member, ok := parseSpecifier(child, source)
			if !ok {
				return nil
			}

			members = append(members, member)
		default:
			return nil
		}
	}

	return members
}

func parseSpecifier(specifier sitter.Node, source []byte) (MemberBinding, bool) {
	nameNode := specifier.ChildByFieldName(fieldName)
	if nameNode.IsNull() || nameNode.Type() != nodeIdentifier {
		return MemberBinding{}, false
	}

	member := MemberBinding{SourceName: strings.TrimSpace(nodeText(nameNode, source))}
	member.LocalName = member.SourceName

	aliasNode := specifier.ChildByFieldName(fieldAlias)
	if !aliasNode.IsNull() {
		if aliasNode.Type() != nodeIdentifier {
			return MemberBinding{}, false
		}

		member.LocalName = strings.TrimSpace(nodeText(aliasNode, source))
	}

	if member.SourceName == "" || member.LocalName == "" {
		return MemberBinding{}, false
	}

	for idx := range specifier.ChildCount() {
		child := specifier.Child(idx)
		if child.IsNamed() {
			continue
		}

		if t := child.Type(); t == keywordType || t == keywordTypeof {
			member.TypeOnly = true
		}
	}

	return member, true
}

// modulePath returns the unquoted source string of a statement or require clause.
func modulePath(tsNode sitter.Node, source []byte) string {
	literal := tsNode.ChildByFieldName(fieldSource)
	if literal.IsNull() {
		return ""
	}

	return strings.Trim(nodeText(literal, source), quoteCutset)
}

// containsError reports whether any node under tsNode is a parse error.
func containsError(tsNode sitter.Node) bool {
	if tsNode.Type() == nodeError {
		return true
	}

	for idx := range tsNode.ChildCount() {
		if containsError(tsNode.Child(idx)) {
			return true
		}
	}

	return false
}
