package parser

import "strings"

// Role classifies an identifier-like token by the slot it occupies.
type Role uint8

const (
	RoleNone Role = iota
	RoleReferenced
	RoleDeclared
	RoleMember
	RoleImported
	// RoleModulePath marks the module part of an import. It names a file,
	// so renaming it would break resolution of the bundled module.
	RoleModulePath
)

func (r Role) String() string {
	switch r {
	case RoleReferenced:
		return "referenced"
	case RoleDeclared:
		return "declared"
	case RoleMember:
		return "member"
	case RoleImported:
		return "imported"
	case RoleModulePath:
		return "module_path"
	}
	return "none"
}

// Renamable reports whether tokens in this role take part in obfuscation.
func (r Role) Renamable() bool {
	return r != RoleNone && r != RoleModulePath
}

type slot struct {
	parent Kind
	field  string
}

// identifierSlots is the capability table: which (parent kind, field) slots
// carry an identifier and in which role. An identifier in a slot not listed
// here is a plain reference.
var identifierSlots = map[slot]Role{
	{KindFunctionDef, "name"}:      RoleDeclared,
	{KindClassDef, "name"}:         RoleDeclared,
	{KindParameters, ""}:           RoleDeclared,
	{KindDefaultParameter, "name"}: RoleDeclared,
	{KindKeyword, "name"}:          RoleDeclared,
	{KindAttribute, "attribute"}:   RoleMember,
	{KindAliasedImport, "alias"}:   RoleImported,
}

// dottedSlots lists the slots where a dotted name is one token rather than a
// chain of references. `import a.b` binds the text "a.b" as a whole.
var dottedSlots = map[slot]Role{
	{KindImport, "name"}:            RoleImported,
	{KindImportFrom, "name"}:        RoleImported,
	{KindAliasedImport, "name"}:     RoleImported,
	{KindImportFrom, "module_name"}: RoleModulePath,
	{KindRelativeImport, ""}:        RoleModulePath,
	{KindFutureImport, "name"}:      RoleModulePath,
}

func slotOf(n *Node) slot {
	if n.Parent == nil {
		return slot{}
	}
	return slot{parent: n.Parent.Kind, field: n.Field}
}

// IdentifierRole returns the role of an identifier or dotted-name token, and
// RoleNone for any other node.
func IdentifierRole(n *Node) Role {
	switch n.Kind {
	case KindIdentifier:
		if role, ok := identifierSlots[slotOf(n)]; ok {
			return role
		}
		return RoleReferenced
	case KindDottedName:
		return dottedSlots[slotOf(n)]
	}
	return RoleNone
}

// Token is an identifier-like occurrence in a tree.
type Token struct {
	Node *Node
	Text string
	Role Role
}

// Identifiers lists every identifier-like token in document order. A dotted
// name in an import slot is reported once with its full dotted text; elsewhere
// its segments are reported individually.
func (t *Tree) Identifiers() []Token {
	var out []Token
	Walk(t.Root, func(n *Node) bool {
		switch n.Kind {
		case KindIdentifier:
			out = append(out, Token{Node: n, Text: t.Text(n), Role: IdentifierRole(n)})
			return false
		case KindDottedName:
			role := IdentifierRole(n)
			if role == RoleNone {
				return true
			}
			out = append(out, Token{Node: n, Text: normalizeDotted(t.Text(n)), Role: role})
			return false
		}
		return true
	})
	return out
}

// RenamableNames returns the distinct texts of all renamable tokens.
func (t *Tree) RenamableNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, tok := range t.Identifiers() {
		if tok.Role.Renamable() {
			names[tok.Text] = struct{}{}
		}
	}
	return names
}

func normalizeDotted(value string) string {
	return strings.Join(strings.Fields(value), "")
}
