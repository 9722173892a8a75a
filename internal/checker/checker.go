// Package checker detects mapping artifacts that disagree about how an
// identifier is renamed.
package checker

import (
	"fmt"
	"strings"

	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
)

// Conflict is one pair of artifacts renaming the same identifier differently.
type Conflict struct {
	Key       mapping.Key
	ArtifactA string
	NameA     string
	ArtifactB string
	NameB     string
}

func (c Conflict) String() string {
	return fmt.Sprintf("'%s' renamed to '%s' in %s and to '%s' in %s", c.Key, c.NameA, c.ArtifactA, c.NameB, c.ArtifactB)
}

// DuplicateWarning reports an identifier mapped identically by several
// artifacts.
type DuplicateWarning struct {
	Key       mapping.Key
	Name      string
	Artifacts []string
}

func (d DuplicateWarning) String() string {
	return fmt.Sprintf("'%s' → '%s' is defined in %s", d.Key, d.Name, strings.Join(d.Artifacts, ", "))
}

// Report is the outcome of checking the artifacts of one source file.
type Report struct {
	Conflicts  []Conflict
	Duplicates []DuplicateWarning
}

// OK reports whether no conflict was found.
func (r *Report) OK() bool {
	return len(r.Conflicts) == 0
}

// Err returns a CONFLICT error describing every conflict, or nil.
func (r *Report) Err(path string) error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		lines[i] = c.String()
	}
	msg := fmt.Sprintf("%d conflicting mappings: %s", len(r.Conflicts), strings.Join(lines, "; "))
	return imaperrors.New(imaperrors.Conflict, path, msg, nil).WithDetails(r.Conflicts)
}

type occurrence struct {
	artifact string
	name     string
}

// Check compares every pair of mappings from distinct artifacts that share an
// original key. Mappings inside one artifact are never compared with each
// other. A key mapped identically by any number of artifacts yields a single
// duplicate warning.
func Check(artifacts []*mapping.Artifact) *Report {
	report := &Report{}
	seen := make(map[mapping.Key][]occurrence)
	duplicate := make(map[mapping.Key]int)

	for _, a := range artifacts {
		for _, m := range a.Mappings {
			key := m.Key()
			prior := seen[key]
			for _, p := range prior {
				if p.artifact == a.Path {
					continue
				}
				if p.name != m.Modified.Name {
					report.Conflicts = append(report.Conflicts, Conflict{
						Key:       key,
						ArtifactA: p.artifact,
						NameA:     p.name,
						ArtifactB: a.Path,
						NameB:     m.Modified.Name,
					})
					continue
				}
				idx, ok := duplicate[key]
				if !ok {
					report.Duplicates = append(report.Duplicates, DuplicateWarning{
						Key:       key,
						Name:      m.Modified.Name,
						Artifacts: []string{p.artifact},
					})
					idx = len(report.Duplicates) - 1
					duplicate[key] = idx
				}
				report.Duplicates[idx].Artifacts = appendUnique(report.Duplicates[idx].Artifacts, p.artifact, a.Path)
			}
			seen[key] = append(prior, occurrence{artifact: a.Path, name: m.Modified.Name})
		}
	}
	return report
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, l := range list {
			if l == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
