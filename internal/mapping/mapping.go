// Package mapping holds the identifier and rename-mapping data model shared by
// the walker, differ, store, checker and renamer.
package mapping

import "fmt"

// DeclarationKind classifies the syntactic position an identifier was declared in.
type DeclarationKind string

const (
	KindUnknown           DeclarationKind = ""
	KindVariable          DeclarationKind = "variable"
	KindFunction          DeclarationKind = "function"
	KindFunctionParameter DeclarationKind = "function_parameter"
	KindArrowParameter    DeclarationKind = "arrow_parameter"
	KindClass             DeclarationKind = "class"
	KindMethod            DeclarationKind = "method"
	KindMethodParameter   DeclarationKind = "method_parameter"
	KindProperty          DeclarationKind = "property"
)

// AllKinds lists every known declaration kind.
var AllKinds = []DeclarationKind{
	KindVariable,
	KindFunction,
	KindFunctionParameter,
	KindArrowParameter,
	KindClass,
	KindMethod,
	KindMethodParameter,
	KindProperty,
}

// IsLexical reports whether identifiers of this kind are lexical bindings that
// references can resolve to. Property and method names live in the member
// namespace of their object or class instead.
func (k DeclarationKind) IsLexical() bool {
	switch k {
	case KindVariable, KindFunction, KindFunctionParameter, KindArrowParameter, KindClass, KindMethodParameter:
		return true
	}
	return false
}

// Identifier is one named occurrence seen by a walk, tagged with the flat scope
// id it was attributed to. ID is the position in the walk's emission order.
type Identifier struct {
	Name    string `json:"name"`
	ScopeID int    `json:"scope_id"`
	ID      int    `json:"id"`

	// Kind is only known during a walk; persisted mappings carry it separately.
	Kind DeclarationKind `json:"-"`
}

// Key returns the value-equality key of the identifier.
func (i Identifier) Key() Key {
	return Key{Name: i.Name, ScopeID: i.ScopeID}
}

func (i Identifier) String() string {
	return fmt.Sprintf("%s:%d", i.Name, i.ScopeID)
}

// Key identifies an identifier by name and scope, ignoring its sequence id.
type Key struct {
	Name    string
	ScopeID int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Name, k.ScopeID)
}

// Mapping renames Original to Modified.Name.
type Mapping struct {
	Original        Identifier      `json:"original"`
	Modified        Identifier      `json:"modified"`
	DeclarationKind DeclarationKind `json:"declaration_kind,omitempty"`
}

// Key returns the key of the original identifier.
func (m Mapping) Key() Key {
	return m.Original.Key()
}

func (m Mapping) String() string {
	return fmt.Sprintf("'%s' → '%s'", m.Original, m.Modified)
}

// Pair is a rename candidate produced by the differ.
type Pair struct {
	Original Identifier
	Modified Identifier
}

// Mapping converts the pair into a persisted mapping, taking the declaration
// kind from the original side.
func (p Pair) Mapping() Mapping {
	return Mapping{
		Original:        p.Original,
		Modified:        p.Modified,
		DeclarationKind: p.Original.Kind,
	}
}

// Artifact is the ordered, append-only mapping list of a single source file.
type Artifact struct {
	// Path identifies the artifact, relative to its mapping root.
	Path     string
	Mappings []Mapping
}

// Has reports whether the artifact already maps key.
func (a *Artifact) Has(key Key) bool {
	for _, m := range a.Mappings {
		if m.Key() == key {
			return true
		}
	}
	return false
}

// Append adds every pair whose original key is not yet mapped and returns the
// newly appended mappings. Existing mappings are never modified or reordered.
func (a *Artifact) Append(pairs []Pair) []Mapping {
	seen := make(map[Key]struct{}, len(a.Mappings)+len(pairs))
	for _, m := range a.Mappings {
		seen[m.Key()] = struct{}{}
	}
	var added []Mapping
	for _, p := range pairs {
		key := p.Original.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		m := p.Mapping()
		a.Mappings = append(a.Mappings, m)
		added = append(added, m)
	}
	return added
}

// Merge concatenates the mappings of several artifacts in order.
func Merge(artifacts []*Artifact) []Mapping {
	var merged []Mapping
	for _, a := range artifacts {
		merged = append(merged, a.Mappings...)
	}
	return merged
}
