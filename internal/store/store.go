// Package store persists mapping artifacts under a mapping root. The root is
// any location viant/afs can address: a local directory or a URL such as
// mem://localhost/maps.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
)

// DefaultExtension is the artifact file extension.
const DefaultExtension = ".map"

// SetMarker is the file that marks a directory directly below a mapping root
// as a named mapping set.
const SetMarker = ".imapset"

// Store reads and writes the artifacts of one mapping root.
type Store struct {
	fs   afs.Service
	root string
	ext  string

	// artifact paths relative to root, loaded on first use
	index []string
	// named sets directly below root, loaded with index
	sets map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithExtension overrides the artifact extension.
func WithExtension(ext string) Option {
	return func(s *Store) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.ext = ext
	}
}

// WithFS sets the storage service.
func WithFS(fs afs.Service) Option {
	return func(s *Store) { s.fs = fs }
}

// New returns a store rooted at root. Local paths are made absolute.
func New(root string, opts ...Option) *Store {
	s := &Store{fs: afs.New(), root: normalize(root), ext: DefaultExtension}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalize(root string) string {
	if url.Scheme(root, "") != "" {
		return strings.TrimRight(root, "/")
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// Root returns the normalized mapping root.
func (s *Store) Root() string {
	return s.root
}

// ArtifactPath returns the artifact path for a source path relative to its
// source root, e.g. "lib/app.js" becomes "lib/app.map".
func (s *Store) ArtifactPath(rel string) string {
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, path.Ext(rel)) + s.ext
}

// Exists reports whether the mapping root itself exists.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	ok, err := s.fs.Exists(ctx, s.root)
	if err != nil {
		return false, imaperrors.IOf(s.root, err, "failed to check mapping root")
	}
	return ok, nil
}

func (s *Store) location(artifactPath string) string {
	return url.Join(s.root, artifactPath)
}

// Load reads the artifact of the source file rel. A missing artifact yields an
// empty one and exists=false.
func (s *Store) Load(ctx context.Context, rel string) (artifact *mapping.Artifact, exists bool, err error) {
	return s.load(ctx, s.ArtifactPath(rel))
}

func (s *Store) load(ctx context.Context, artifactPath string) (*mapping.Artifact, bool, error) {
	artifact := &mapping.Artifact{Path: artifactPath}
	location := s.location(artifactPath)

	ok, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, false, imaperrors.IOf(location, err, "failed to check artifact")
	}
	if !ok {
		return artifact, false, nil
	}

	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, false, imaperrors.IOf(location, err, "failed to read artifact")
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &artifact.Mappings); err != nil {
			return nil, false, imaperrors.IOf(location, err, "failed to decode artifact")
		}
	}
	for i, m := range artifact.Mappings {
		if err := m.Validate(); err != nil {
			return nil, false, imaperrors.IOf(location, err, "invalid mapping %d", i)
		}
	}
	return artifact, true, nil
}

// Append adds the candidates whose original key the artifact does not map yet
// and returns the added mappings.
func (s *Store) Append(artifact *mapping.Artifact, pairs []mapping.Pair) []mapping.Mapping {
	return artifact.Append(pairs)
}

// Save writes the full artifact.
func (s *Store) Save(ctx context.Context, artifact *mapping.Artifact) error {
	mappings := artifact.Mappings
	if mappings == nil {
		mappings = []mapping.Mapping{}
	}
	data, err := json.Marshal(mappings)
	if err != nil {
		return imaperrors.IOf(artifact.Path, err, "failed to encode artifact")
	}

	location := s.location(artifact.Path)
	if err := s.fs.Upload(ctx, location, 0o644, bytes.NewReader(data)); err != nil {
		return imaperrors.IOf(location, err, "failed to write artifact")
	}
	slog.Debug("artifact saved", "path", location, "mappings", len(mappings))
	s.index = nil
	return nil
}

// MarkSet records the root as a named mapping set, so that a store over its
// parent directory strips the set name when matching artifacts.
func (s *Store) MarkSet(ctx context.Context) error {
	location := s.location(SetMarker)
	ok, err := s.fs.Exists(ctx, location)
	if err != nil {
		return imaperrors.IOf(location, err, "failed to check set marker")
	}
	if ok {
		return nil
	}
	if err := s.fs.Upload(ctx, location, 0o644, bytes.NewReader(nil)); err != nil {
		return imaperrors.IOf(location, err, "failed to write set marker")
	}
	s.index = nil
	return nil
}

// Discover lists every artifact under the root, sorted by path. A missing
// root holds no artifacts.
func (s *Store) Discover(ctx context.Context) ([]string, error) {
	if s.index != nil {
		return s.index, nil
	}

	ok, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	index := []string{}
	sets := map[string]bool{}
	if ok {
		visit := func(ctx context.Context, baseURL, parent string, info os.FileInfo, reader io.Reader) (bool, error) {
			if info.IsDir() {
				return true, nil
			}
			dir := strings.Trim(filepath.ToSlash(parent), "/")
			switch {
			case info.Name() == SetMarker:
				if dir != "" && !strings.Contains(dir, "/") {
					sets[dir] = true
				}
			case strings.EqualFold(path.Ext(info.Name()), s.ext):
				index = append(index, path.Join(dir, info.Name()))
			}
			return true, nil
		}
		if err := s.fs.Walk(ctx, s.root, visit); err != nil {
			return nil, imaperrors.IOf(s.root, err, "failed to list artifacts")
		}
	}
	sort.Strings(index)
	s.index = index
	s.sets = sets
	return index, nil
}

// Sets returns the names of the mapping sets directly below the root.
func (s *Store) Sets(ctx context.Context) ([]string, error) {
	if _, err := s.Discover(ctx); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.sets))
	for name := range s.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// inSet reports whether candidate is want inside one of the named sets.
func (s *Store) inSet(candidate, want string) bool {
	set, rest, ok := strings.Cut(candidate, "/")
	return ok && s.sets[set] && rest == want
}

// Matching loads the artifacts that apply to the source file rel: the
// artifact at rel's artifact path and the one at the same path inside each
// named set, so one source tree can take mappings from several sets.
func (s *Store) Matching(ctx context.Context, rel string) ([]*mapping.Artifact, error) {
	index, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	want := s.ArtifactPath(rel)

	var artifacts []*mapping.Artifact
	for _, candidate := range index {
		if candidate != want && !s.inSet(candidate, want) {
			continue
		}
		artifact, _, err := s.load(ctx, candidate)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}
