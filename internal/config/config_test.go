package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imaperrors "github.com/polytrackmods/PolyDeobfuscated/internal/errors"
)

func init() {
	Testing = true
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "polytrack", cfg.OriginalDirectory)
	assert.Equal(t, "polytrack-deobfuscated", cfg.ModifiedDirectory)
	assert.Equal(t, "polytrack-sourcemaps", cfg.SourcemapDirectory)
	assert.Equal(t, "polytrack-generated", cfg.OutputDirectory)
	assert.Equal(t, ".map", cfg.ArtifactExtension)
	assert.True(t, cfg.Verify)
	assert.False(t, cfg.AllowUnmapped)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, imaperrors.Is(err, imaperrors.ConfigError))
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
original_directory: dist
extensions: [js, ".MJS"]
allow_unmapped: true
log:
  level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.OriginalDirectory)
	assert.Equal(t, []string{".js", ".mjs"}, cfg.Extensions)
	assert.True(t, cfg.AllowUnmapped)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, "polytrack-sourcemaps", cfg.SourcemapDirectory)
	assert.Equal(t, 10, cfg.Log.MaxSize)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IMAP_OUTPUT_DIRECTORY", "out")
	t.Setenv("IMAP_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.OutputDirectory)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extensions = nil
	assert.True(t, imaperrors.Is(cfg.Validate(), imaperrors.ConfigError))

	cfg = DefaultConfig()
	cfg.Extensions = []string{".map"}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SkipPaths = []string{"["}
	assert.Error(t, cfg.Validate())
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "imap.yaml")
	require.NoError(t, SaveConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
