// Package renamer applies mapping artifacts to a parsed source file by
// rewriting identifier spans in the original text.
package renamer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/polytrackmods/PolyDeobfuscated/internal/astutil"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
	"github.com/polytrackmods/PolyDeobfuscated/internal/scope"
	"github.com/polytrackmods/PolyDeobfuscated/internal/walker"
)

// Edit replaces the bytes of Span with Text.
type Edit struct {
	Span astutil.Span
	Text string
}

// Lookup resolves (name, scope) to the replacement name. When several mappings
// share an original key, the first one wins.
type Lookup map[mapping.Key]string

// NewLookup indexes mappings in order.
func NewLookup(mappings []mapping.Mapping) Lookup {
	l := make(Lookup, len(mappings))
	for _, m := range mappings {
		if _, ok := l[m.Key()]; ok {
			continue
		}
		l[m.Key()] = m.Modified.Name
	}
	return l
}

// Rename returns the text of f with every mapped identifier renamed.
func Rename(f *astutil.File, mappings []mapping.Mapping) ([]byte, error) {
	return Apply(f.Source, Changes(f, mappings))
}

// Changes computes the edits that rename f according to mappings.
//
// Declarations are renamed exactly at the scope the walker attributes them
// to. A reference searches the open lexical scopes innermost first and takes
// the first mapping found; a scope that declares the name without a mapping
// ends the search, so shadowing declarations keep their own name. Object
// literal and class body scopes are not lexical and are skipped. Class
// members, private names and `this.<name>` resolve at the nearest class body.
func Changes(f *astutil.File, mappings []mapping.Mapping) []Edit {
	r := &renamer{
		lookup:   NewLookup(mappings),
		declared: walker.Walk(f),
		scopes:   scope.New(),
		seen:     make(map[Edit]struct{}),
	}
	if len(r.lookup) == 0 {
		return nil
	}
	astutil.Walk(f, r)
	return r.edits
}

type renamer struct {
	lookup   Lookup
	declared *walker.Result
	scopes   *scope.Context
	edits    []Edit
	seen     map[Edit]struct{}
}

func (r *renamer) at(name string, scopeID int) (string, bool) {
	n, ok := r.lookup[mapping.Key{Name: name, ScopeID: scopeID}]
	return n, ok
}

// resolve finds the replacement for a lexical reference.
func (r *renamer) resolve(name string) (string, bool) {
	for _, frame := range r.scopes.Frames() {
		if !frame.Kind.Lexical() {
			continue
		}
		if n, ok := r.at(name, frame.ID); ok {
			return n, true
		}
		if r.declared.Declares(name, frame.ID) {
			return "", false
		}
	}
	return "", false
}

func (r *renamer) classScope() int {
	if id, ok := r.scopes.NearestClass(); ok {
		return id
	}
	return r.scopes.Current()
}

func (r *renamer) add(id astutil.Ident, text string) {
	e := Edit{Span: id.Span, Text: text}
	if _, ok := r.seen[e]; ok {
		return
	}
	r.seen[e] = struct{}{}
	r.edits = append(r.edits, e)
}

func (r *renamer) rename(id astutil.Ident, name string, ok bool) {
	if !ok || name == id.Name {
		return
	}
	r.add(id, id.Replacement(name))
}

func (r *renamer) EnterScope(kind scope.Kind) { r.scopes.Enter(kind) }

func (r *renamer) LeaveScope() { r.scopes.Leave() }

func (r *renamer) Binding(id astutil.Ident, _ mapping.DeclarationKind) {
	name, ok := r.at(id.Name, r.scopes.Current())
	r.rename(id, name, ok)
}

func (r *renamer) Reference(id astutil.Ident) {
	name, ok := r.resolve(id.Name)
	r.rename(id, name, ok)
}

// PropertyKey renames object literal keys. A shorthand `{a}` is both a key and
// a reference to a; when the two end up with different names the shorthand is
// expanded to `key: value`.
func (r *renamer) PropertyKey(id astutil.Ident, _ mapping.DeclarationKind, shorthand bool) {
	key, keyMapped := r.at(id.Name, r.scopes.Current())
	if !shorthand {
		r.rename(id, key, keyMapped)
		return
	}

	if !keyMapped {
		key = id.Name
	}
	value, valueMapped := r.resolve(id.Name)
	if !valueMapped {
		value = id.Name
	}
	switch {
	case key == value && key == id.Name:
	case key == value:
		r.add(id, key)
	default:
		r.add(id, key+": "+value)
	}
}

func (r *renamer) ClassMember(id astutil.Ident, _ mapping.DeclarationKind) {
	name, ok := r.at(id.Name, r.scopes.Current())
	r.rename(id, name, ok)
}

func (r *renamer) ThisMember(id astutil.Ident) {
	name, ok := r.at(id.Name, r.classScope())
	r.rename(id, name, ok)
}

func (r *renamer) PrivateName(id astutil.Ident) {
	classID, inClass := r.scopes.NearestClass()
	if !inClass {
		return
	}
	name, ok := r.at(id.Name, classID)
	r.rename(id, name, ok)
}

// Apply rewrites src with edits. Identical edits are applied once; edits that
// overlap, or that replace one span with different texts, are rejected.
// Offsets always refer to src, so earlier replacements never shift later ones.
func Apply(src []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}

	sorted := make([]Edit, 0, len(edits))
	seen := make(map[Edit]struct{}, len(edits))
	for _, e := range edits {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		sorted = append(sorted, e)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start != sorted[j].Span.Start {
			return sorted[i].Span.Start < sorted[j].Span.Start
		}
		return sorted[i].Span.End < sorted[j].Span.End
	})

	var buf bytes.Buffer
	buf.Grow(len(src))
	cursor := 0
	for i, e := range sorted {
		if e.Span.Start < 0 || e.Span.End > len(src) || e.Span.Start > e.Span.End {
			return nil, fmt.Errorf("edit %d..%d is outside of the source (%d bytes)", e.Span.Start, e.Span.End, len(src))
		}
		if e.Span.Start < cursor {
			prev := sorted[i-1]
			return nil, fmt.Errorf("edit %d..%d %q overlaps edit %d..%d %q",
				e.Span.Start, e.Span.End, e.Text, prev.Span.Start, prev.Span.End, prev.Text)
		}
		buf.Write(src[cursor:e.Span.Start])
		buf.WriteString(e.Text)
		cursor = e.Span.End
	}
	buf.Write(src[cursor:])
	return buf.Bytes(), nil
}
