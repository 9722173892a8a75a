package deobfuscator

import (
	"bytes"

	"github.com/pmezard/go-difflib/difflib"
)

// unifiedDiff renders the difference between the expected modified file and
// the text regenerated from its mappings. It returns "" when they are equal.
func unifiedDiff(path string, want, got []byte) string {
	if bytes.Equal(want, got) {
		return ""
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(want)),
		B:        difflib.SplitLines(string(got)),
		FromFile: path + " (modified)",
		ToFile:   path + " (regenerated)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil || text == "" {
		// only whitespace at line ends differs
		return "--- " + diff.FromFile + "\n+++ " + diff.ToFile + "\n(contents differ)\n"
	}
	return text
}
