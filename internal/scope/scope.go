// Package scope tracks the open lexical scopes of a single traversal.
//
// Scope ids are flat integers handed out in visitation order. The top level is
// always scope 0 and is not on the stack; every opened scope takes the next id
// and the counter never decreases, so the id sequence of a walk is a pure
// function of the shape of the syntax tree.
package scope

import "fmt"

// Kind says which construct opened a scope.
type Kind int

const (
	Program Kind = iota
	Function
	Arrow
	Block
	Class
	Object
	Loop
	Catch
	Switch
)

var kindNames = map[Kind]string{
	Program:  "program",
	Function: "function",
	Arrow:    "arrow",
	Block:    "block",
	Class:    "class",
	Object:   "object",
	Loop:     "loop",
	Catch:    "catch",
	Switch:   "switch",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Lexical reports whether references can resolve to bindings declared in a
// scope of this kind. Object literal and class body scopes only hold member
// names.
func (k Kind) Lexical() bool {
	return k != Object && k != Class
}

// Frame is one open scope.
type Frame struct {
	ID   int
	Kind Kind
}

// Context is the explicit scope state of a walk. The zero value is not ready
// for use; call New.
type Context struct {
	head  int
	stack []Frame
}

// New returns a context positioned at the top level.
func New() *Context {
	return &Context{}
}

// Enter opens a new scope and returns its id.
func (c *Context) Enter(kind Kind) int {
	c.head++
	c.stack = append(c.stack, Frame{ID: c.head, Kind: kind})
	return c.head
}

// Leave closes the innermost scope. Leaving the top level is a no-op.
func (c *Context) Leave() {
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// Current returns the id of the innermost open scope, or 0 at the top level.
func (c *Context) Current() int {
	if len(c.stack) == 0 {
		return 0
	}
	return c.stack[len(c.stack)-1].ID
}

// CurrentFrame returns the innermost open frame.
func (c *Context) CurrentFrame() Frame {
	if len(c.stack) == 0 {
		return Frame{ID: 0, Kind: Program}
	}
	return c.stack[len(c.stack)-1]
}

// NearestClass returns the id of the innermost open class body scope.
func (c *Context) NearestClass() (int, bool) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i].Kind == Class {
			return c.stack[i].ID, true
		}
	}
	return 0, false
}

// Frames returns the open frames innermost first, ending with the top level.
func (c *Context) Frames() []Frame {
	frames := make([]Frame, 0, len(c.stack)+1)
	for i := len(c.stack) - 1; i >= 0; i-- {
		frames = append(frames, c.stack[i])
	}
	return append(frames, Frame{ID: 0, Kind: Program})
}

// Depth returns the number of open scopes below the top level.
func (c *Context) Depth() int {
	return len(c.stack)
}

// Allocated returns the highest scope id handed out so far.
func (c *Context) Allocated() int {
	return c.head
}
