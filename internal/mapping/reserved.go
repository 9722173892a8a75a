package mapping

import (
	"fmt"
	"unicode"
)

// Reserved JavaScript words, including the strict mode and TypeScript
// contextual ones that cannot name a binding.
var reservedKeywords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true,
	"delete": true, "do": true, "else": true, "enum": true, "export": true,
	"extends": true, "false": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true,
	// strict mode
	"let": true, "static": true, "implements": true, "interface": true,
	"package": true, "private": true, "protected": true, "public": true,
}

// Names that are legal identifiers but cannot be bound in strict code.
var reservedBindings = map[string]bool{
	"arguments": true, "eval": true, "undefined": true,
}

// IsReserved checks if a name is reserved for the given declaration kind.
// Property and method names may be any identifier name, reserved words
// included. Mappings of unknown kind are not checked.
func IsReserved(name string, kind DeclarationKind) bool {
	switch kind {
	case KindProperty, KindMethod, KindUnknown:
		return false
	}
	return reservedKeywords[name] || reservedBindings[name]
}

// IsIdentifierName reports whether name is a syntactically valid identifier.
func IsIdentifierName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '$' || r == '_' || unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || r == '\u200c' || r == '\u200d'):
		default:
			return false
		}
	}
	return true
}

// Validate rejects a mapping whose names could not appear in source code, or
// whose new name would turn a declaration into a reserved word.
func (m Mapping) Validate() error {
	if !IsIdentifierName(m.Original.Name) {
		return fmt.Errorf("invalid original name %q", m.Original.Name)
	}
	if !IsIdentifierName(m.Modified.Name) {
		return fmt.Errorf("invalid modified name %q for %s", m.Modified.Name, m.Original)
	}
	if IsReserved(m.Modified.Name, m.DeclarationKind) {
		return fmt.Errorf("%s cannot be renamed to reserved word %q", m.Original, m.Modified.Name)
	}
	if m.Original.ScopeID < 0 {
		return fmt.Errorf("negative scope id in %s", m.Original)
	}
	return nil
}
