package api

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
)

func TestNewMapper(t *testing.T) {
	t.Chdir(t.TempDir())

	m, err := NewMapper(Options{})
	require.NoError(t, err, "default config is used without a file")
	assert.Equal(t, config.DefaultConfig(), m.Config)

	configPath := filepath.Join(t.TempDir(), "imap.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("sourcemap_directory: maps\nverify: false\n"), 0644))

	m, err = NewMapper(Options{
		ConfigPath:      configPath,
		Silent:          true,
		ConfigOverrides: map[string]interface{}{"allow_unmapped": true, "sourcemap_directory": "override"},
	})
	require.NoError(t, err)
	assert.True(t, m.Config.Silent)
	assert.False(t, m.Config.Verify)
	assert.True(t, m.Config.AllowUnmapped)
	assert.Equal(t, "override", m.Config.SourcemapDirectory)

	_, err = NewMapper(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.True(t, imaperrors.Is(err, imaperrors.ConfigError))

	_, err = NewMapper(Options{ConfigOverrides: map[string]interface{}{"extensions": []string{}}})
	assert.Error(t, err)
}

func TestDeriveAndRenameCode(t *testing.T) {
	m, err := NewMapper(Options{Silent: true})
	require.NoError(t, err)

	mappings, err := m.DeriveMappings("a.js",
		"function foo(bar) { return bar; }",
		"function unwrap(value) { return value; }")
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "foo:0", mappings[0].Original.String())
	assert.Equal(t, "unwrap", mappings[0].Modified.Name)
	assert.Equal(t, "bar:1", mappings[1].Original.String())

	// a later build with the same shape
	out, err := m.RenameCode("a.js", "function foo(bar) { return bar + 1; }", mappings)
	require.NoError(t, err)
	assert.Equal(t, "function unwrap(value) { return value + 1; }", out)

	_, err = m.DeriveMappings("a.js", "let a;", "let a; let b;")
	assert.True(t, imaperrors.Is(err, imaperrors.CountMismatch))

	_, err = m.RenameCode("a.js", "function (", mappings)
	assert.True(t, imaperrors.Is(err, imaperrors.ParseError))
}

func TestIdentifiers(t *testing.T) {
	m, err := NewMapper(Options{Silent: true})
	require.NoError(t, err)

	ids, err := m.Identifiers("a.ts", "const n: number = 1; function f(x: string) {}")
	require.NoError(t, err)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	assert.Equal(t, []string{"n:0", "f:0", "x:1"}, names)
}

func createTestDirStructure(t *testing.T, baseDir string) *Mapper {
	t.Helper()
	files := map[string]string{
		"src/main.js":           "function foo(bar) { return bar; }\n",
		"src/lib/util.js":       "const a = (b) => b * 2;\n",
		"edited/main.js":        "function unwrap(value) { return value; }\n",
		"edited/lib/util.js":    "const double = (n) => n * 2;\n",
		"src/node_modules/x.js": "var skipped;\n",
	}
	for rel, content := range files {
		full := filepath.Join(baseDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	m, err := NewMapper(Options{
		Silent: true,
		ConfigOverrides: map[string]interface{}{
			"original_directory":  filepath.Join(baseDir, "src"),
			"modified_directory":  filepath.Join(baseDir, "edited"),
			"sourcemap_directory": filepath.Join(baseDir, "maps"),
			"output_directory":    filepath.Join(baseDir, "out"),
		},
	})
	require.NoError(t, err)
	return m
}

func TestPipelines(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()
	m := createTestDirStructure(t, baseDir)

	report, err := m.Create(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, report.Files, 2, "node_modules is skipped")

	report, err = m.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Duplicates)

	_, err = m.Generate(ctx)
	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(baseDir, "out", "lib", "util.js"))
	require.NoError(t, err)
	assert.Equal(t, "const double = (n) => n * 2;\n", string(out))

	mappings, err := m.LoadMappings(ctx, "main.js")
	require.NoError(t, err)
	assert.Len(t, mappings, 2)

	name, err := m.LookupName(ctx, "main.js", "bar", 1)
	require.NoError(t, err)
	assert.Equal(t, "value", name)

	_, err = m.LookupName(ctx, "main.js", "bar", 0)
	assert.Error(t, err)
}

func TestPrintInfo(t *testing.T) {
	// Capture stdout
	originalStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	config.Testing = false
	PrintInfo("Test output: %s\n", "visible")
	config.Testing = true
	PrintInfo("Test output: %s\n", "hidden")

	w.Close()
	os.Stdout = originalStdout
	var buf bytes.Buffer
	_, err := io.Copy(&buf, r)
	require.NoError(t, err)

	assert.True(t, strings.Contains(buf.String(), "Test output: visible"))
	assert.False(t, strings.Contains(buf.String(), "hidden"))
}
