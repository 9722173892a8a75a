// Package api provides the public API for using imap as a library.
//
// This package exposes the same pipelines as the command-line interface
// (create, check and generate over source trees) plus in-memory helpers for
// deriving mappings from two versions of one file and renaming code with
// them.
//
// Basic usage example:
//
//	m, err := api.NewMapper(api.Options{ConfigPath: "imap.yaml"})
//	if err != nil {
//	    log.Fatalf("Failed to create mapper: %v", err)
//	}
//
//	mappings, err := m.DeriveMappings("app.js", obfuscated, deobfuscated)
//	if err != nil {
//	    log.Fatalf("Failed to derive mappings: %v", err)
//	}
//
//	renamed, err := m.RenameCode("app.js", nextBuild, mappings)
package api

import (
	"context"
	"fmt"

	"github.com/polytrackmods/PolyDeobfuscated/internal/astutil"
	"github.com/polytrackmods/PolyDeobfuscated/internal/checker"
	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	"github.com/polytrackmods/PolyDeobfuscated/internal/deobfuscator"
	"github.com/polytrackmods/PolyDeobfuscated/internal/mapping"
	"github.com/polytrackmods/PolyDeobfuscated/internal/store"
	"github.com/polytrackmods/PolyDeobfuscated/internal/walker"
)

// Aliases of the types that cross the API boundary.
type (
	Identifier       = mapping.Identifier
	Mapping          = mapping.Mapping
	Report           = deobfuscator.Report
	FileResult       = deobfuscator.FileResult
	DuplicateWarning = checker.DuplicateWarning
)

// PrintInfo prints formatted information to stdout, respecting the Testing flag.
// If Testing mode is active, no output will be generated.
// This function forwards to the internal config.PrintInfo function.
func PrintInfo(format string, args ...interface{}) {
	config.PrintInfo(format, args...)
}

// Mapper runs the mapping pipelines with one configuration.
type Mapper struct {
	// Config holds the settings used by every pipeline
	Config *config.Config
}

// Options represents configuration options for creating a new Mapper instance.
type Options struct {
	// ConfigPath is the path to a YAML configuration file
	// If empty, ./imap.yaml is used when present, else the defaults
	ConfigPath string

	// Silent suppresses informational messages
	Silent bool

	// ConfigOverrides sets configuration keys over the file and the
	// environment, e.g. {"allow_unmapped": true, "log.level": "debug"}
	ConfigOverrides map[string]interface{}
}

// NewMapper creates a new Mapper instance using the provided options.
//
// Returns an error if the configuration cannot be loaded or is invalid.
func NewMapper(options Options) (*Mapper, error) {
	v := config.NewViper()
	for key, value := range options.ConfigOverrides {
		v.Set(key, value)
	}
	cfg, err := config.LoadConfigWith(v, options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if options.Silent {
		cfg.Silent = true
	}

	return &Mapper{Config: cfg}, nil
}

func (m *Mapper) deobfuscator() *deobfuscator.Deobfuscator {
	return deobfuscator.New(m.Config)
}

// Identifiers returns the renameable identifiers of code in emission order.
// path only selects the grammar (.js, .jsx, .ts or .tsx).
func (m *Mapper) Identifiers(path, code string) ([]Identifier, error) {
	f, err := astutil.Parse(context.Background(), path, []byte(code))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return walker.Walk(f).Identifiers, nil
}

// DeriveMappings pairs the identifiers renamed between original and modified,
// two versions of one file that differ only in identifier names.
func (m *Mapper) DeriveMappings(path, original, modified string) ([]Mapping, error) {
	pairs, err := deobfuscator.Derive(context.Background(), path, []byte(original), []byte(modified))
	if err != nil {
		return nil, fmt.Errorf("failed to derive mappings: %w", err)
	}
	artifact := &mapping.Artifact{}
	artifact.Append(pairs)
	return artifact.Mappings, nil
}

// RenameCode applies mappings to code and returns the renamed code.
func (m *Mapper) RenameCode(path, code string, mappings []Mapping) (string, error) {
	out, err := deobfuscator.Rename(context.Background(), path, []byte(code), mappings)
	if err != nil {
		return "", fmt.Errorf("failed to rename code: %w", err)
	}
	return string(out), nil
}

// Create derives mappings from the configured original and modified
// directories into the mapping set name (the sourcemap directory itself when
// name is empty).
func (m *Mapper) Create(ctx context.Context, name string) (*Report, error) {
	return m.deobfuscator().CreateSet(ctx, m.Config.OriginalDirectory, m.Config.ModifiedDirectory, m.Config.SourcemapDirectory, name)
}

// Check looks for conflicting mappings among the source maps of every file
// in the configured original directory.
func (m *Mapper) Check(ctx context.Context) (*Report, error) {
	return m.deobfuscator().Check(ctx, m.Config.OriginalDirectory, m.Config.SourcemapDirectory)
}

// Generate writes the renamed original directory to the output directory.
func (m *Mapper) Generate(ctx context.Context) (*Report, error) {
	return m.deobfuscator().Generate(ctx, m.Config.OriginalDirectory, m.Config.SourcemapDirectory, m.Config.OutputDirectory)
}

// LoadMappings returns the merged mappings of every source map that applies
// to relPath, a path relative to the original directory.
func (m *Mapper) LoadMappings(ctx context.Context, relPath string) ([]Mapping, error) {
	st := store.New(m.Config.SourcemapDirectory, store.WithExtension(m.Config.ArtifactExtension))
	artifacts, err := st.Matching(ctx, relPath)
	if err != nil {
		return nil, err
	}
	return mapping.Merge(artifacts), nil
}

// LookupName returns the name the source maps of relPath give to the
// identifier name in scope scopeID.
//
// Returns an error if no source map maps the identifier.
func (m *Mapper) LookupName(ctx context.Context, relPath, name string, scopeID int) (string, error) {
	mappings, err := m.LoadMappings(ctx, relPath)
	if err != nil {
		return "", err
	}
	key := mapping.Key{Name: name, ScopeID: scopeID}
	for _, mp := range mappings {
		if mp.Key() == key {
			return mp.Modified.Name, nil
		}
	}
	return "", fmt.Errorf("no mapping for %s in %s", key, relPath)
}
