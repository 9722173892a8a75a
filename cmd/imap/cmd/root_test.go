package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrackmods/PolyDeobfuscated/internal/config"
	"github.com/polytrackmods/PolyDeobfuscated/internal/deobfuscator"
	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
)

func init() {
	config.Testing = true
}

type cli struct {
	t    *testing.T
	dir  string
	logs string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	t.Chdir(dir)
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &cli{t: t, dir: dir, logs: filepath.Join(dir, "logs", "imap.log")}
}

func (c *cli) write(rel, content string) {
	c.t.Helper()
	full := filepath.Join(c.dir, filepath.FromSlash(rel))
	require.NoError(c.t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(c.t, os.WriteFile(full, []byte(content), 0644))
}

func (c *cli) read(rel string) string {
	c.t.Helper()
	data, err := os.ReadFile(filepath.Join(c.dir, filepath.FromSlash(rel)))
	require.NoError(c.t, err)
	return string(data)
}

func (c *cli) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"--log-file", c.logs}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd(&app{out: &console{}})
	assert.Equal(t, "imap", cmd.Use)
	assert.Equal(t, rootLongDescription, cmd.Long)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"create", "check", "generate", "whatis", "config"} {
		assert.True(t, names[want], want)
	}
}

func TestCreateCheckGenerateUsingDefaultDirectories(t *testing.T) {
	c := newCLI(t)
	c.write("polytrack/main.js", "function foo(bar) { return bar; }\n")
	c.write("polytrack-deobfuscated/main.js", "function unwrap(value) { return value; }\n")

	stdout, stderr, err := c.run("create", "core")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Source map updated")
	assert.FileExists(t, filepath.Join(c.dir, "polytrack-sourcemaps", "core", "main.map"))

	stdout, stderr, err = c.run("check")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "All source maps checked successfully.")

	stdout, stderr, err = c.run("generate")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Modified file generated:")
	assert.Equal(t, "function unwrap(value) { return value; }\n", c.read("polytrack-generated/main.js"))

	assert.FileExists(t, c.logs)
	assert.Contains(t, c.read("logs/imap.log"), "run=")
}

func TestSameBasenameInNestedDirectory(t *testing.T) {
	c := newCLI(t)
	c.write("polytrack/app.js", "var a = 1;\n")
	c.write("polytrack/lib/app.js", "var a = 2;\n")
	c.write("polytrack-deobfuscated/app.js", "var top = 1;\n")
	c.write("polytrack-deobfuscated/lib/app.js", "var nested = 2;\n")

	_, stderr, err := c.run("create")
	require.NoError(t, err, stderr)
	_, stderr, err = c.run("check")
	require.NoError(t, err, stderr)
	_, stderr, err = c.run("generate")
	require.NoError(t, err, stderr)
	assert.Equal(t, "var top = 1;\n", c.read("polytrack-generated/app.js"))
	assert.Equal(t, "var nested = 2;\n", c.read("polytrack-generated/lib/app.js"))
}

func TestFlagsOverrideDirectories(t *testing.T) {
	c := newCLI(t)
	c.write("in/a.ts", "let n: number = 1;\n")
	c.write("edited/a.ts", "let count: number = 1;\n")

	_, stderr, err := c.run("create", "-o", "in", "-m", "edited", "-s", "maps")
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(c.dir, "maps", "a.map"))

	_, stderr, err = c.run("generate", "-o", "in", "-s", "maps", "-O", "out", "--silent")
	require.NoError(t, err, stderr)
	assert.Equal(t, "let count: number = 1;\n", c.read("out/a.ts"))
}

func TestConfigFileAndSilent(t *testing.T) {
	c := newCLI(t)
	c.write("imap.yaml", "original_directory: src\nmodified_directory: dst\nsourcemap_directory: maps\nsilent: true\n")
	c.write("src/a.js", "var a;\n")
	c.write("dst/a.js", "var b;\n")

	stdout, stderr, err := c.run("create")
	require.NoError(t, err, stderr)
	assert.Empty(t, stdout)
	assert.FileExists(t, filepath.Join(c.dir, "maps", "a.map"))
}

func TestCheckConflictFails(t *testing.T) {
	c := newCLI(t)
	c.write("polytrack/main.js", "function foo(bar) { return bar; }\n")

	c.write("polytrack-deobfuscated/main.js", "function unwrap(value) { return value; }\n")
	_, stderr, err := c.run("create", "a")
	require.NoError(t, err, stderr)
	c.write("polytrack-deobfuscated/main.js", "function unwrap(other) { return other; }\n")
	_, stderr, err = c.run("create", "b")
	require.NoError(t, err, stderr)

	stdout, stderr, err := c.run("check")
	require.Error(t, err)
	assert.True(t, imaperrors.Is(err, imaperrors.Conflict))
	assert.Contains(t, stdout, "contain an identical identifier mapping for")
	assert.Contains(t, stderr, "Error:")

	_, _, err = c.run("generate")
	assert.True(t, imaperrors.Is(err, imaperrors.Conflict))
}

func TestWhatis(t *testing.T) {
	c := newCLI(t)
	c.write("polytrack/main.js", "function foo(bar) { return bar; }\n")
	c.write("polytrack-deobfuscated/main.js", "function unwrap(value) { return value; }\n")
	_, stderr, err := c.run("create", "core")
	require.NoError(t, err, stderr)

	stdout, stderr, err := c.run("whatis", "main.js", "bar")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "value")
	assert.Contains(t, stdout, "core/main.map")

	stdout, stderr, err = c.run("whatis", "main.js", "unwrap", "--kind", "function")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "foo")

	_, _, err = c.run("whatis", "main.js", "bar", "--scope", "0")
	assert.Error(t, err)
	_, _, err = c.run("whatis", "main.js", "bar", "--kind", "bogus")
	assert.Error(t, err)
}

func TestCheckMissingSourcemapDirectory(t *testing.T) {
	c := newCLI(t)
	c.write("polytrack/main.js", "var a;\n")

	_, stderr, err := c.run("check")
	require.Error(t, err)
	assert.True(t, imaperrors.Is(err, imaperrors.IOError))
	assert.Contains(t, stderr, "sourcemap directory does not exist")
}

func TestMissingExplicitConfig(t *testing.T) {
	c := newCLI(t)
	_, _, err := c.run("--config", "missing.yaml", "check")
	assert.True(t, imaperrors.Is(err, imaperrors.ConfigError))
}

func TestConfigInit(t *testing.T) {
	c := newCLI(t)

	_, stderr, err := c.run("config", "init")
	require.NoError(t, err, stderr)
	cfg, err := config.LoadConfig(filepath.Join(c.dir, config.DefaultConfigName))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	_, _, err = c.run("config", "init")
	assert.Error(t, err, "existing file is kept")
	_, stderr, err = c.run("config", "init", "--force")
	assert.NoError(t, err, stderr)

	_, stderr, err = c.run("config", "init", "conf/custom.yaml")
	require.NoError(t, err, stderr)
	assert.FileExists(t, filepath.Join(c.dir, "conf", "custom.yaml"))
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelInfo), tt.value)
	}
}

func TestRenderSummaryTable(t *testing.T) {
	report := &deobfuscator.Report{
		Files: []deobfuscator.FileResult{
			{Path: "a.js", Status: deobfuscator.StatusGenerated, Mappings: 2, Artifacts: []string{"core/a.map"}},
			{Path: "b.js", Status: deobfuscator.StatusCreated, Mappings: 1, Mismatch: "diff"},
		},
	}
	table := renderSummaryTable(report)
	assert.Contains(t, table, "core/a.map")
	assert.Contains(t, table, "created (mismatch)")
	assert.Contains(t, table, "TOTAL FILES 2")
}
