// Package deobfuscator runs the create, check and generate pipelines over
// source trees, one file at a time.
package deobfuscator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/viant/afs/url"

	"github.com/polytrackmods/PolyDeobfuscated/internal/astutil"
	"github.com/polytrackmods/PolyDeobfuscated/internal/checker"
	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	"github.com/polytrackmods/PolyDeobfuscated/internal/differ"
	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
	"github.com/polytrackmods/PolyDeobfuscated/internal/renamer"
	"github.com/polytrackmods/PolyDeobfuscated/internal/store"
	"github.com/polytrackmods/PolyDeobfuscated/internal/walker"
)

// Status is the outcome for one source file.
type Status string

const (
	StatusCreated   Status = "created"   // new artifact written
	StatusUpdated   Status = "updated"   // mappings appended to an artifact
	StatusUnchanged Status = "unchanged" // nothing to add or rewrite
	StatusChecked   Status = "checked"
	StatusGenerated Status = "generated"
	StatusCopied    Status = "copied"  // no artifact, copied through
	StatusSkipped   Status = "skipped" // no artifact, not checked
)

// FileResult describes what happened to one source file.
type FileResult struct {
	Path   string // relative to the source root, slash separated
	Status Status
	// Artifacts lists the artifacts used, relative to the mapping root.
	Artifacts []string
	// Added is the number of mappings appended by create.
	Added int
	// Mappings is the number of mappings in effect for the file.
	Mappings int
	// Mismatch holds the unified diff of a failed create verification.
	Mismatch string
	// Fingerprint is the highwayhash of the file written by generate.
	Fingerprint uint64
}

// Report collects the per file results of one run.
type Report struct {
	Command    string
	Root       string // mapping root
	Files      []FileResult
	Duplicates []checker.DuplicateWarning
}

// Count returns how many files ended with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Mismatches returns the files whose verification failed.
func (r *Report) Mismatches() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Mismatch != "" {
			out = append(out, f)
		}
	}
	return out
}

// Deobfuscator holds the settings shared by the pipelines.
type Deobfuscator struct {
	Config *config.Config

	// OnFile, when set, is called after each file is processed.
	OnFile func(FileResult)
	// OnDuplicate, when set, is called once for every duplicate mapping found.
	OnDuplicate func(checker.DuplicateWarning)
}

// New returns a Deobfuscator using cfg, or the defaults when cfg is nil.
func New(cfg *config.Config) *Deobfuscator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Deobfuscator{Config: cfg}
}

// MappingRoot returns the directory artifacts of the named mapping set live
// in: sourcemap itself for an empty name, else sourcemap/name.
func MappingRoot(sourcemap, name string) string {
	if name == "" {
		return sourcemap
	}
	if url.Scheme(sourcemap, "") != "" {
		return url.Join(sourcemap, name)
	}
	return filepath.Join(sourcemap, name)
}

func (d *Deobfuscator) store(root string) *store.Store {
	return store.New(root, store.WithExtension(d.Config.ArtifactExtension))
}

func (d *Deobfuscator) sourceFiles(root string) ([]string, error) {
	return SourceFiles(root, d.Config.Extensions, d.Config.SkipPaths)
}

func (d *Deobfuscator) record(report *Report, result FileResult) {
	report.Files = append(report.Files, result)
	if d.OnFile != nil {
		d.OnFile(result)
	}
}

func (d *Deobfuscator) duplicates(report *Report, found []checker.DuplicateWarning) {
	for _, w := range found {
		slog.Warn("identical identifier mapping", "key", w.Key.String(), "name", w.Name, "artifacts", w.Artifacts)
		report.Duplicates = append(report.Duplicates, w)
		if d.OnDuplicate != nil {
			d.OnDuplicate(w)
		}
	}
}

// withPath fills in the file path of a typed error that has none.
func withPath(err error, path string) error {
	if e, ok := imaperrors.As(err); ok && e.Path == "" {
		e.Path = path
	}
	return err
}

func parseFile(ctx context.Context, root, rel string) (*astutil.File, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	src, err := os.ReadFile(full)
	if err != nil {
		return nil, imaperrors.IOf(full, err, "failed to read source file")
	}
	return astutil.Parse(ctx, full, src)
}

// Create derives mappings from every original/modified file pair and appends
// them to the artifacts under mappingRoot. Both trees must hold the same set
// of relative paths.
func (d *Deobfuscator) Create(ctx context.Context, originalRoot, modifiedRoot, mappingRoot string) (*Report, error) {
	return d.CreateSet(ctx, originalRoot, modifiedRoot, mappingRoot, "")
}

// CreateSet runs Create for the mapping set name below sourcemapRoot and
// marks the set so that check and generate over sourcemapRoot find it. An
// empty name writes to sourcemapRoot itself.
func (d *Deobfuscator) CreateSet(ctx context.Context, originalRoot, modifiedRoot, sourcemapRoot, name string) (*Report, error) {
	parent := d.store(sourcemapRoot)
	st := parent
	if name != "" {
		st = d.store(MappingRoot(sourcemapRoot, name))
	}
	report := &Report{Command: "create", Root: st.Root()}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return report, imaperrors.IOf(name, nil, "invalid mapping set name")
	}

	originals, err := d.sourceFiles(originalRoot)
	if err != nil {
		return report, err
	}
	modified, err := d.sourceFiles(modifiedRoot)
	if err != nil {
		return report, err
	}
	if err := counterparts(originalRoot, originals, modifiedRoot, modified); err != nil {
		return report, err
	}
	if err := d.stemCollisions(st, originals); err != nil {
		return report, err
	}
	if err := d.setCollisions(ctx, parent, name, originals); err != nil {
		return report, err
	}
	if name != "" {
		if err := st.MarkSet(ctx); err != nil {
			return report, err
		}
	}

	slog.Info("creating mappings", "original", originalRoot, "modified", modifiedRoot, "mappings", st.Root(), "files", len(originals))
	for _, rel := range originals {
		result, err := d.createFile(ctx, st, originalRoot, modifiedRoot, rel)
		if err != nil {
			return report, fmt.Errorf("creating mappings for %s: %w", rel, err)
		}
		d.record(report, result)
	}
	return report, nil
}

func (d *Deobfuscator) createFile(ctx context.Context, st *store.Store, originalRoot, modifiedRoot, rel string) (FileResult, error) {
	result := FileResult{Path: rel, Artifacts: []string{st.ArtifactPath(rel)}}

	original, err := parseFile(ctx, originalRoot, rel)
	if err != nil {
		return result, err
	}
	defer original.Close()
	modified, err := parseFile(ctx, modifiedRoot, rel)
	if err != nil {
		return result, err
	}
	defer modified.Close()

	pairs, err := differ.Diff(walker.Walk(original).Identifiers, walker.Walk(modified).Identifiers)
	if err != nil {
		return result, withPath(err, rel)
	}

	artifact, exists, err := st.Load(ctx, rel)
	if err != nil {
		return result, err
	}
	added := st.Append(artifact, pairs)
	result.Added = len(added)
	result.Mappings = len(artifact.Mappings)

	switch {
	case !exists:
		result.Status = StatusCreated
	case len(added) > 0:
		result.Status = StatusUpdated
	default:
		result.Status = StatusUnchanged
	}
	if result.Status != StatusUnchanged {
		if err := st.Save(ctx, artifact); err != nil {
			return result, err
		}
	}
	slog.Debug("mappings derived", "path", rel, "candidates", len(pairs), "added", len(added), "total", len(artifact.Mappings))

	if d.Config.Verify {
		regenerated, err := renamer.Rename(original, artifact.Mappings)
		if err != nil {
			return result, withPath(err, rel)
		}
		if diff := unifiedDiff(rel, modified.Source, regenerated); diff != "" {
			result.Mismatch = diff
			slog.Warn("regenerated file differs from modified file", "path", rel, "diff", diff)
		}
	}
	return result, nil
}

// counterparts requires both trees to hold the same relative paths.
func counterparts(originalRoot string, originals []string, modifiedRoot string, modified []string) error {
	inModified := make(map[string]struct{}, len(modified))
	for _, rel := range modified {
		inModified[rel] = struct{}{}
	}
	inOriginal := make(map[string]struct{}, len(originals))
	for _, rel := range originals {
		inOriginal[rel] = struct{}{}
		if _, ok := inModified[rel]; !ok {
			return imaperrors.IOf(filepath.Join(modifiedRoot, filepath.FromSlash(rel)), nil,
				"missing counterpart of %s", filepath.Join(originalRoot, filepath.FromSlash(rel)))
		}
	}
	for _, rel := range modified {
		if _, ok := inOriginal[rel]; !ok {
			return imaperrors.IOf(filepath.Join(originalRoot, filepath.FromSlash(rel)), nil,
				"missing counterpart of %s", filepath.Join(modifiedRoot, filepath.FromSlash(rel)))
		}
	}
	return nil
}

// stemCollisions rejects source files that would share one artifact, such as
// app.js and app.ts.
func (d *Deobfuscator) stemCollisions(st *store.Store, files []string) error {
	owners := make(map[string]string, len(files))
	for _, rel := range files {
		artifactPath := st.ArtifactPath(rel)
		if other, ok := owners[artifactPath]; ok {
			return imaperrors.IOf(artifactPath, nil, "%s and %s would share one artifact", other, rel)
		}
		owners[artifactPath] = rel
	}
	return nil
}

// setCollisions rejects layouts where a named set and a source directory at
// the top of the tree would share one path below the sourcemap root.
func (d *Deobfuscator) setCollisions(ctx context.Context, parent *store.Store, name string, files []string) error {
	sets, err := parent.Sets(ctx)
	if err != nil {
		return err
	}
	if name == "" {
		for _, rel := range files {
			dir, _, nested := strings.Cut(rel, "/")
			if nested && slices.Contains(sets, dir) {
				return imaperrors.IOf(rel, nil, "source directory %s has the name of the mapping set %s", dir, dir)
			}
		}
		return nil
	}
	if slices.Contains(sets, name) {
		return nil
	}
	index, err := parent.Discover(ctx)
	if err != nil {
		return err
	}
	for _, artifactPath := range index {
		if strings.HasPrefix(artifactPath, name+"/") {
			return imaperrors.IOf(artifactPath, nil, "mapping set %s would take the place of existing source maps", name)
		}
	}
	return nil
}

func (d *Deobfuscator) requireRoot(ctx context.Context, st *store.Store) error {
	ok, err := st.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return imaperrors.IOf(st.Root(), nil, "sourcemap directory does not exist")
	}
	return nil
}

// matching loads the artifacts of rel; it returns nil artifacts and no error
// for an unmapped file when unmapped files are allowed.
func (d *Deobfuscator) matching(ctx context.Context, st *store.Store, rel string) ([]*mapping.Artifact, error) {
	artifacts, err := st.Matching(ctx, rel)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 && !d.Config.AllowUnmapped {
		return nil, imaperrors.IOf(rel, nil, "no source maps found under %s", st.Root())
	}
	return artifacts, nil
}

func artifactPaths(artifacts []*mapping.Artifact) []string {
	paths := make([]string, len(artifacts))
	for i, a := range artifacts {
		paths[i] = a.Path
	}
	return paths
}

// Check runs the conflict checker over the artifacts of every source file
// under filesRoot. Duplicates are reported; the first conflict fails the run.
func (d *Deobfuscator) Check(ctx context.Context, filesRoot, mappingRoot string) (*Report, error) {
	st := d.store(mappingRoot)
	report := &Report{Command: "check", Root: st.Root()}
	if err := d.requireRoot(ctx, st); err != nil {
		return report, err
	}
	files, err := d.sourceFiles(filesRoot)
	if err != nil {
		return report, err
	}

	slog.Info("checking mappings", "files", filesRoot, "mappings", st.Root(), "count", len(files))
	for _, rel := range files {
		artifacts, err := d.matching(ctx, st, rel)
		if err != nil {
			return report, err
		}
		if len(artifacts) == 0 {
			d.record(report, FileResult{Path: rel, Status: StatusSkipped})
			continue
		}

		checked := checker.Check(artifacts)
		d.duplicates(report, checked.Duplicates)
		if err := checked.Err(rel); err != nil {
			return report, err
		}
		d.record(report, FileResult{
			Path:      rel,
			Status:    StatusChecked,
			Artifacts: artifactPaths(artifacts),
			Mappings:  len(mapping.Merge(artifacts)),
		})
	}
	return report, nil
}

// Generate rewrites every source file under originalRoot with its merged
// artifacts and writes the result to the same relative path under
// outputRoot. Artifacts are checked for conflicts before any rewrite.
func (d *Deobfuscator) Generate(ctx context.Context, originalRoot, mappingRoot, outputRoot string) (*Report, error) {
	st := d.store(mappingRoot)
	report := &Report{Command: "generate", Root: st.Root()}
	if err := d.requireRoot(ctx, st); err != nil {
		return report, err
	}
	files, err := d.sourceFiles(originalRoot)
	if err != nil {
		return report, err
	}

	slog.Info("generating files", "original", originalRoot, "mappings", st.Root(), "output", outputRoot, "count", len(files))
	for _, rel := range files {
		result, err := d.generateFile(ctx, st, originalRoot, outputRoot, rel, report)
		if err != nil {
			return report, fmt.Errorf("generating %s: %w", rel, err)
		}
		d.record(report, result)
	}
	return report, nil
}

func (d *Deobfuscator) generateFile(ctx context.Context, st *store.Store, originalRoot, outputRoot, rel string, report *Report) (FileResult, error) {
	result := FileResult{Path: rel}
	src := filepath.Join(originalRoot, filepath.FromSlash(rel))
	dst := filepath.Join(outputRoot, filepath.FromSlash(rel))

	artifacts, err := d.matching(ctx, st, rel)
	if err != nil {
		return result, err
	}
	if len(artifacts) == 0 {
		result.Status = StatusCopied
		if err := copyFile(src, dst); err != nil {
			return result, err
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			return result, imaperrors.IOf(dst, err, "failed to read output file")
		}
		result.Fingerprint, err = Fingerprint(data)
		return result, err
	}
	result.Artifacts = artifactPaths(artifacts)

	checked := checker.Check(artifacts)
	d.duplicates(report, checked.Duplicates)
	if err := checked.Err(rel); err != nil {
		return result, err
	}

	merged := mapping.Merge(artifacts)
	result.Mappings = len(merged)

	original, err := parseFile(ctx, originalRoot, rel)
	if err != nil {
		return result, err
	}
	defer original.Close()

	out, err := renamer.Rename(original, merged)
	if err != nil {
		return result, withPath(err, rel)
	}
	written, err := writeIfChanged(dst, out)
	if err != nil {
		return result, err
	}
	if result.Fingerprint, err = Fingerprint(out); err != nil {
		return result, err
	}
	result.Status = StatusGenerated
	if !written {
		result.Status = StatusUnchanged
	}
	slog.Debug("file generated", "path", rel, "output", dst, "written", written, "mappings", len(merged),
		"fingerprint", fmt.Sprintf("%016x", result.Fingerprint))
	return result, nil
}

// Rename rewrites one source text with mappings. path selects the grammar.
func Rename(ctx context.Context, path string, src []byte, mappings []mapping.Mapping) ([]byte, error) {
	f, err := astutil.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	out, err := renamer.Rename(f, mappings)
	if err != nil {
		return nil, withPath(err, path)
	}
	return out, nil
}

// Derive returns the mapping candidates between one original and one modified
// source text. path selects the grammar.
func Derive(ctx context.Context, path string, original, modified []byte) ([]mapping.Pair, error) {
	a, err := astutil.Parse(ctx, path, original)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	b, err := astutil.Parse(ctx, path, modified)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	pairs, err := differ.Diff(walker.Walk(a).Identifiers, walker.Walk(b).Identifiers)
	if err != nil {
		return nil, withPath(err, path)
	}
	return pairs, nil
}

// DisplayPath shortens p relative to the working directory when possible.
func DisplayPath(p string) string {
	if url.Scheme(p, "") != "" {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}
