// Package walker collects the renameable identifiers of a source file together
// with the flat scope ids they belong to.
package walker

import (
	"github.com/polytrackmods/PolyDeobfuscated/internal/astutil"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
	"github.com/polytrackmods/PolyDeobfuscated/internal/scope"
)

// Result is the outcome of one walk.
type Result struct {
	// Identifiers in emission order, deduplicated by (name, scope).
	Identifiers []mapping.Identifier
	// Declared holds every lexical binding of the file, including ones hidden
	// by deduplication behind a member name of the same scope.
	Declared map[mapping.Key]struct{}
}

// Declares reports whether name is lexically declared in scopeID.
func (r *Result) Declares(name string, scopeID int) bool {
	_, ok := r.Declared[mapping.Key{Name: name, ScopeID: scopeID}]
	return ok
}

// Collector is an astutil.Visitor that records identifiers. Use Walk unless
// the events need to be shared with another visitor.
type Collector struct {
	scopes *scope.Context
	seen   map[mapping.Key]struct{}
	result Result
}

// NewCollector returns a collector with a fresh scope context.
func NewCollector() *Collector {
	return &Collector{
		scopes: scope.New(),
		seen:   make(map[mapping.Key]struct{}),
		result: Result{Declared: make(map[mapping.Key]struct{})},
	}
}

// Walk collects the identifiers of a parsed file.
func Walk(f *astutil.File) *Result {
	c := NewCollector()
	astutil.Walk(f, c)
	return c.Result()
}

// Result returns what has been collected so far.
func (c *Collector) Result() *Result {
	return &c.result
}

func (c *Collector) add(name string, scopeID int, kind mapping.DeclarationKind) {
	key := mapping.Key{Name: name, ScopeID: scopeID}
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.result.Identifiers = append(c.result.Identifiers, mapping.Identifier{
		Name:    name,
		ScopeID: scopeID,
		ID:      len(c.result.Identifiers),
		Kind:    kind,
	})
}

func (c *Collector) EnterScope(kind scope.Kind) { c.scopes.Enter(kind) }

func (c *Collector) LeaveScope() { c.scopes.Leave() }

func (c *Collector) Binding(id astutil.Ident, kind mapping.DeclarationKind) {
	scopeID := c.scopes.Current()
	c.result.Declared[mapping.Key{Name: id.Name, ScopeID: scopeID}] = struct{}{}
	c.add(id.Name, scopeID, kind)
}

func (c *Collector) Reference(astutil.Ident) {}

func (c *Collector) PropertyKey(id astutil.Ident, kind mapping.DeclarationKind, _ bool) {
	c.add(id.Name, c.scopes.Current(), kind)
}

func (c *Collector) ClassMember(id astutil.Ident, kind mapping.DeclarationKind) {
	c.add(id.Name, c.scopes.Current(), kind)
}

// ThisMember attributes `this.<name>` to the nearest enclosing class body, or
// to the current scope outside of classes.
func (c *Collector) ThisMember(id astutil.Ident) {
	scopeID, ok := c.scopes.NearestClass()
	if !ok {
		scopeID = c.scopes.Current()
	}
	c.add(id.Name, scopeID, mapping.KindProperty)
}

func (c *Collector) PrivateName(astutil.Ident) {}
