// Package astutil parses JavaScript and TypeScript sources with tree-sitter and
// drives a typed, scope-aware traversal over the resulting syntax tree.
package astutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
)

// Language names a grammar.
type Language string

const (
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
)

// LanguageForPath picks the grammar from a file extension. Unknown extensions
// fall back to JavaScript, which also accepts JSX.
func LanguageForPath(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return TypeScript
	case ".tsx":
		return TSX
	default:
		return JavaScript
	}
}

func grammar(lang Language) *sitter.Language {
	switch lang {
	case TypeScript:
		return typescript.GetLanguage()
	case TSX:
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// Diagnostic is a single syntax problem reported by the parser.
type Diagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// File is a parsed source file. Close releases the tree.
type File struct {
	Path     string
	Language Language
	Source   []byte

	tree *sitter.Tree
}

// Root returns the program node.
func (f *File) Root() *sitter.Node {
	return f.tree.RootNode()
}

// Close releases the native tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Parse parses src with a parser created for this call only. A tree with any
// error or missing node is rejected with a PARSE_ERROR carrying the
// diagnostics; no partial tree is ever returned.
func Parse(ctx context.Context, path string, src []byte) (*File, error) {
	lang := LanguageForPath(path)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar(lang))

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, imaperrors.New(imaperrors.ParseError, path, "parser failed", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		diags := collectDiagnostics(root, src)
		tree.Close()
		return nil, imaperrors.New(imaperrors.ParseError, path, summarize(diags), nil).WithDetails(diags)
	}

	return &File{Path: path, Language: lang, Source: src, tree: tree}, nil
}

func collectDiagnostics(root *sitter.Node, src []byte) []Diagnostic {
	var diags []Diagnostic
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch {
		case n.IsMissing():
			diags = append(diags, diagnosticAt(n, fmt.Sprintf("missing %q", n.Type())))
			return
		case n.Type() == "ERROR":
			diags = append(diags, diagnosticAt(n, fmt.Sprintf("unexpected %s", excerpt(n.Content(src)))))
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
	if len(diags) == 0 {
		diags = append(diags, diagnosticAt(root, "syntax error"))
	}
	return diags
}

func diagnosticAt(n *sitter.Node, msg string) Diagnostic {
	p := n.StartPoint()
	return Diagnostic{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Message: msg}
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	if s == "" {
		return "input"
	}
	return fmt.Sprintf("%q", s)
}

func summarize(diags []Diagnostic) string {
	if len(diags) == 1 {
		return "syntax error at " + diags[0].String()
	}
	return fmt.Sprintf("%d syntax errors, first at %s", len(diags), diags[0])
}
