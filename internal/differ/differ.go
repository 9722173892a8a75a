// Package differ pairs the renamed identifiers of two structurally equivalent
// sources.
package differ

import (
	"fmt"
	"sort"

	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
)

// Mismatch is attached to COUNT_MISMATCH and SCOPE_MISMATCH errors.
type Mismatch struct {
	Index    int
	Original []mapping.Identifier
	Modified []mapping.Identifier
}

// Diff pairs identifiers present only in original with identifiers present
// only in modified, position by position in emission order. Identity is
// (name, scope); sequence ids only order the result.
func Diff(original, modified []mapping.Identifier) ([]mapping.Pair, error) {
	onlyA := subtract(original, modified)
	onlyB := subtract(modified, original)

	if len(onlyA) != len(onlyB) {
		return nil, imaperrors.New(imaperrors.CountMismatch, "",
			fmt.Sprintf("%d renamed identifiers in original, %d in modified", len(onlyA), len(onlyB)), nil).
			WithDetails(Mismatch{Index: -1, Original: onlyA, Modified: onlyB})
	}

	pairs := make([]mapping.Pair, 0, len(onlyA))
	for i := range onlyA {
		a, b := onlyA[i], onlyB[i]
		if a.ScopeID != b.ScopeID {
			return nil, imaperrors.New(imaperrors.ScopeMismatch, "",
				fmt.Sprintf("'%s' and '%s' are in different scopes", a, b), nil).
				WithDetails(Mismatch{Index: i, Original: onlyA, Modified: onlyB})
		}
		pairs = append(pairs, mapping.Pair{Original: a, Modified: b})
	}
	return pairs, nil
}

// subtract returns the identifiers of a whose key does not occur in b, sorted
// by sequence id.
func subtract(a, b []mapping.Identifier) []mapping.Identifier {
	keys := make(map[mapping.Key]struct{}, len(b))
	for _, id := range b {
		keys[id.Key()] = struct{}{}
	}
	var out []mapping.Identifier
	for _, id := range a {
		if _, ok := keys[id.Key()]; !ok {
			out = append(out, id)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
