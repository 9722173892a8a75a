package astutil

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
	"github.com/polytrackmods/PolyDeobfuscated/internal/scope"
)

// Span is a half-open byte range into the source text.
type Span struct {
	Start int
	End   int
}

// Form records when an identifier also spells a key or an exported name, so a
// rename has to keep that second meaning intact.
type Form int

const (
	// Plain identifiers are replaced as is.
	Plain Form = iota
	// Shorthand marks `{a}` in object literals and patterns.
	Shorthand
	// Import marks `import {a}` without an alias.
	Import
	// Export marks `export {a}` without an alias.
	Export
)

// Ident is an identifier occurrence. Name never includes the leading '#' of a
// private name; Span does.
type Ident struct {
	Name    string
	Span    Span
	Private bool
	Form    Form
}

// Replacement returns the text that renames id to name.
func (id Ident) Replacement(name string) string {
	if id.Private {
		return "#" + name
	}
	switch id.Form {
	case Shorthand:
		return id.Name + ": " + name
	case Import:
		return id.Name + " as " + name
	case Export:
		return name + " as " + id.Name
	}
	return name
}

// Visitor receives the identifier-bearing positions of a tree in source
// order, bracketed by the scopes that contain them. A declaration's own name
// (function, class) is reported before the scope it opens is entered.
type Visitor interface {
	EnterScope(kind scope.Kind)
	LeaveScope()
	// Binding is a lexical declaration in the current scope.
	Binding(id Ident, kind mapping.DeclarationKind)
	// Reference is a use of a lexical name.
	Reference(id Ident)
	// PropertyKey is a key of the object literal whose scope is current.
	PropertyKey(id Ident, kind mapping.DeclarationKind, shorthand bool)
	// ClassMember is a method or field name of the class body whose scope is current.
	ClassMember(id Ident, kind mapping.DeclarationKind)
	// ThisMember is the property of a `this.<name>` access.
	ThisMember(id Ident)
	// PrivateName is any other `#name` occurrence.
	PrivateName(id Ident)
}

// Walk traverses the whole file.
func Walk(f *File, v Visitor) {
	t := &traverser{src: f.Source, v: v}
	t.children(f.Root())
}

// skipped node types carry no renameable runtime identifiers.
var skipped = map[string]bool{
	"comment":                   true,
	"hash_bang_line":            true,
	"string":                    true,
	"regex":                     true,
	"number":                    true,
	"property_identifier":       true,
	"statement_identifier":      true,
	"type_identifier":           true,
	"predefined_type":           true,
	"type_annotation":           true,
	"opting_type_annotation":    true,
	"omitting_type_annotation":  true,
	"asserts_annotation":        true,
	"type_predicate_annotation": true,
	"type_arguments":            true,
	"type_parameters":           true,
	"interface_declaration":     true,
	"type_alias_declaration":    true,
	"implements_clause":         true,
	"method_signature":          true,
	"abstract_method_signature": true,
	"property_signature":        true,
	"index_signature":           true,
	"ambient_declaration":       true,
	"accessibility_modifier":    true,
	"override_modifier":         true,
	"jsx_text":                  true,
	"jsx_namespace_name":        true,
}

type traverser struct {
	src []byte
	v   Visitor
}

func (t *traverser) ident(n *sitter.Node, form Form) Ident {
	name := n.Content(t.src)
	private := strings.HasPrefix(name, "#")
	return Ident{
		Name:    strings.TrimPrefix(name, "#"),
		Span:    Span{Start: int(n.StartByte()), End: int(n.EndByte())},
		Private: private,
		Form:    form,
	}
}

func (t *traverser) children(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		t.node(n.NamedChild(i))
	}
}

// node dispatches on the node type in expression/statement position.
func (t *traverser) node(n *sitter.Node) {
	if n == nil || skipped[n.Type()] {
		return
	}

	switch n.Type() {
	case "identifier":
		t.v.Reference(t.ident(n, Plain))
	case "private_property_identifier":
		t.v.PrivateName(t.ident(n, Plain))

	case "function_declaration", "generator_function_declaration", "function_signature",
		"function_expression", "function", "generator_function":
		t.function(n)
	case "arrow_function":
		t.arrow(n)
	case "class_declaration", "abstract_class_declaration", "class":
		t.class(n)

	case "statement_block":
		t.v.EnterScope(scope.Block)
		t.children(n)
		t.v.LeaveScope()
	case "object":
		t.object(n)
	case "for_statement":
		t.forLoop(n)
	case "for_in_statement":
		t.forIn(n)
	case "catch_clause":
		t.catch(n)
	case "switch_body":
		t.v.EnterScope(scope.Switch)
		t.children(n)
		t.v.LeaveScope()

	case "variable_declarator":
		t.pattern(n.ChildByFieldName("name"), t.binder(mapping.KindVariable))
		t.node(n.ChildByFieldName("value"))
	case "assignment_expression":
		t.target(n.ChildByFieldName("left"))
		t.node(n.ChildByFieldName("right"))
	case "member_expression":
		t.member(n)
	case "as_expression", "satisfies_expression":
		if n.NamedChildCount() > 0 {
			t.node(n.NamedChild(0))
		}
	case "enum_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			t.v.Binding(t.ident(name, Plain), mapping.KindVariable)
		}
		t.node(n.ChildByFieldName("body"))

	case "import_statement":
		t.importStatement(n)
	case "export_statement":
		t.exportStatement(n)

	case "jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element":
		t.jsxElement(n)
	case "jsx_attribute":
		// the attribute name is a property_identifier and is skipped
		t.children(n)

	default:
		t.children(n)
	}
}

// binder returns a pattern sink that reports bindings of the given kind.
func (t *traverser) binder(kind mapping.DeclarationKind) func(Ident) {
	return func(id Ident) { t.v.Binding(id, kind) }
}

// pattern visits a binding pattern, sending every bound name to bind. Default
// values and computed keys are visited as expressions.
func (t *traverser) pattern(n *sitter.Node, bind func(Ident)) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		bind(t.ident(n, Plain))
	case "shorthand_property_identifier_pattern", "shorthand_property_identifier":
		bind(t.ident(n, Shorthand))
	case "object_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "pair_pattern":
				if key := c.ChildByFieldName("key"); key != nil && key.Type() == "computed_property_name" {
					t.children(key)
				}
				t.pattern(c.ChildByFieldName("value"), bind)
			case "object_assignment_pattern":
				t.pattern(c.ChildByFieldName("left"), bind)
				t.node(c.ChildByFieldName("right"))
			default:
				t.pattern(c, bind)
			}
		}
	case "array_pattern":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			t.pattern(n.NamedChild(i), bind)
		}
	case "assignment_pattern":
		t.pattern(n.ChildByFieldName("left"), bind)
		t.node(n.ChildByFieldName("right"))
	case "rest_pattern":
		if n.NamedChildCount() > 0 {
			t.pattern(n.NamedChild(0), bind)
		}
	case "required_parameter", "optional_parameter":
		if p := n.ChildByFieldName("pattern"); p != nil && p.Type() != "this" {
			t.pattern(p, bind)
		}
		t.node(n.ChildByFieldName("value"))
	case "comment":
	default:
		t.node(n)
	}
}

// target visits the left side of an assignment. Destructuring targets assign
// to existing names, so their identifiers are references.
func (t *traverser) target(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "object_pattern", "array_pattern":
		t.pattern(n, t.v.Reference)
	default:
		t.node(n)
	}
}

func (t *traverser) parameters(n *sitter.Node, kind mapping.DeclarationKind) {
	if n == nil {
		return
	}
	bind := t.binder(kind)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		t.pattern(n.NamedChild(i), bind)
	}
}

// body visits a function or loop body without opening another scope.
func (t *traverser) body(n *sitter.Node) {
	if n == nil {
		return
	}
	if n.Type() == "statement_block" {
		t.children(n)
		return
	}
	t.node(n)
}

func (t *traverser) decorators(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "decorator" {
			t.node(c)
		}
	}
}

func (t *traverser) function(n *sitter.Node) {
	if name := n.ChildByFieldName("name"); name != nil {
		t.v.Binding(t.ident(name, Plain), mapping.KindFunction)
	}
	t.v.EnterScope(scope.Function)
	t.parameters(n.ChildByFieldName("parameters"), mapping.KindFunctionParameter)
	t.body(n.ChildByFieldName("body"))
	t.v.LeaveScope()
}

func (t *traverser) arrow(n *sitter.Node) {
	t.v.EnterScope(scope.Arrow)
	if p := n.ChildByFieldName("parameter"); p != nil {
		t.pattern(p, t.binder(mapping.KindArrowParameter))
	}
	t.parameters(n.ChildByFieldName("parameters"), mapping.KindArrowParameter)
	t.body(n.ChildByFieldName("body"))
	t.v.LeaveScope()
}

// method visits a method of a class body or an object literal. The name has
// already been reported by the caller.
func (t *traverser) method(n *sitter.Node) {
	t.decorators(n)
	t.v.EnterScope(scope.Function)
	t.parameters(n.ChildByFieldName("parameters"), mapping.KindMethodParameter)
	t.body(n.ChildByFieldName("body"))
	t.v.LeaveScope()
}

func (t *traverser) class(n *sitter.Node) {
	t.decorators(n)
	if name := n.ChildByFieldName("name"); name != nil {
		t.v.Binding(t.ident(name, Plain), mapping.KindClass)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "class_heritage" {
			t.children(c)
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	t.v.EnterScope(scope.Class)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		t.classMember(body.NamedChild(i))
	}
	t.v.LeaveScope()
}

func (t *traverser) classMember(n *sitter.Node) {
	switch n.Type() {
	case "method_definition":
		t.memberName(n.ChildByFieldName("name"), mapping.KindMethod, t.classKey)
		t.method(n)
	case "field_definition", "public_field_definition":
		t.decorators(n)
		name := n.ChildByFieldName("property")
		if name == nil {
			name = n.ChildByFieldName("name")
		}
		t.memberName(name, mapping.KindProperty, t.classKey)
		t.node(n.ChildByFieldName("value"))
	default:
		t.node(n)
	}
}

func (t *traverser) classKey(id Ident, kind mapping.DeclarationKind) {
	t.v.ClassMember(id, kind)
}

func (t *traverser) objectKey(id Ident, kind mapping.DeclarationKind) {
	t.v.PropertyKey(id, kind, false)
}

// memberName reports a static member name through emit and visits computed
// names as expressions. String and numeric keys are not identifiers.
func (t *traverser) memberName(n *sitter.Node, kind mapping.DeclarationKind, emit func(Ident, mapping.DeclarationKind)) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "property_identifier", "private_property_identifier", "identifier":
		emit(t.ident(n, Plain), kind)
	case "computed_property_name":
		t.children(n)
	}
}

func (t *traverser) object(n *sitter.Node) {
	t.v.EnterScope(scope.Object)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "pair":
			t.memberName(c.ChildByFieldName("key"), mapping.KindProperty, t.objectKey)
			t.node(c.ChildByFieldName("value"))
		case "shorthand_property_identifier":
			t.v.PropertyKey(t.ident(c, Shorthand), mapping.KindProperty, true)
		case "method_definition":
			t.memberName(c.ChildByFieldName("name"), mapping.KindMethod, t.objectKey)
			t.method(c)
		default:
			t.node(c)
		}
	}
	t.v.LeaveScope()
}

func (t *traverser) forLoop(n *sitter.Node) {
	t.v.EnterScope(scope.Loop)
	body := n.ChildByFieldName("body")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if sameNode(c, body) {
			continue
		}
		t.node(c)
	}
	t.body(body)
	t.v.LeaveScope()
}

func (t *traverser) forIn(n *sitter.Node) {
	t.v.EnterScope(scope.Loop)
	left := n.ChildByFieldName("left")
	if n.ChildByFieldName("kind") != nil {
		t.pattern(left, t.binder(mapping.KindVariable))
	} else {
		t.target(left)
	}
	t.node(n.ChildByFieldName("right"))
	t.body(n.ChildByFieldName("body"))
	t.v.LeaveScope()
}

func (t *traverser) catch(n *sitter.Node) {
	t.v.EnterScope(scope.Catch)
	t.pattern(n.ChildByFieldName("parameter"), t.binder(mapping.KindVariable))
	t.body(n.ChildByFieldName("body"))
	t.v.LeaveScope()
}

func (t *traverser) member(n *sitter.Node) {
	object := n.ChildByFieldName("object")
	property := n.ChildByFieldName("property")
	if object != nil && object.Type() == "this" {
		if property != nil && (property.Type() == "property_identifier" || property.Type() == "private_property_identifier") {
			t.v.ThisMember(t.ident(property, Plain))
		}
		return
	}
	t.node(object)
	if property != nil && property.Type() == "private_property_identifier" {
		t.v.PrivateName(t.ident(property, Plain))
	}
}

func (t *traverser) importStatement(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_clause":
			t.importClause(c)
		case "import_require_clause":
			if c.NamedChildCount() > 0 && c.NamedChild(0).Type() == "identifier" {
				t.v.Binding(t.ident(c.NamedChild(0), Plain), mapping.KindVariable)
			}
		}
	}
}

func (t *traverser) importClause(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier":
			t.v.Binding(t.ident(c, Plain), mapping.KindVariable)
		case "namespace_import":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if id := c.NamedChild(j); id.Type() == "identifier" {
					t.v.Binding(t.ident(id, Plain), mapping.KindVariable)
				}
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					t.v.Binding(t.ident(alias, Plain), mapping.KindVariable)
				} else if name := spec.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
					t.v.Binding(t.ident(name, Import), mapping.KindVariable)
				}
			}
		}
	}
}

func (t *traverser) exportStatement(n *sitter.Node) {
	// re-exports name bindings of another module
	reexport := n.ChildByFieldName("source") != nil
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "export_clause":
			if reexport {
				continue
			}
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "export_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				if name == nil || name.Type() != "identifier" {
					continue
				}
				form := Export
				if spec.ChildByFieldName("alias") != nil {
					form = Plain
				}
				t.v.Reference(t.ident(name, form))
			}
		case "namespace_export":
		default:
			t.node(c)
		}
	}
}

// jsxElement treats capitalized tag names as component references. Lowercase
// tags are intrinsic elements.
func (t *traverser) jsxElement(n *sitter.Node) {
	if name := n.ChildByFieldName("name"); name != nil {
		switch name.Type() {
		case "identifier":
			tag := name.Content(t.src)
			if tag != "" && !unicode.IsLower(rune(tag[0])) {
				t.v.Reference(t.ident(name, Plain))
			}
		case "member_expression", "nested_identifier":
			t.node(name.NamedChild(0))
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "jsx_attribute" || c.Type() == "jsx_expression" {
			t.node(c)
		}
	}
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
