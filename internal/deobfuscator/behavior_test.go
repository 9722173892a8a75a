package deobfuscator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nodeRunner runs JavaScript files for behavior comparisons.
type nodeRunner struct {
	t *testing.T
}

func newNodeRunner(t *testing.T) *nodeRunner {
	return &nodeRunner{t: t}
}

// skipIfNodeNotAvailable skips the test if node is not installed
func (r *nodeRunner) skipIfNodeNotAvailable() {
	if _, err := exec.LookPath("node"); err != nil {
		r.t.Skip("node not available, skipping behavior test")
	}
}

// run executes a JavaScript file and returns its output
func (r *nodeRunner) run(file string) string {
	r.t.Helper()
	output, err := exec.Command("node", file).CombinedOutput()
	require.NoError(r.t, err, "node %s: %s", file, output)
	return string(output)
}

func TestGeneratedFilesBehaveLikeOriginals(t *testing.T) {
	ctx := context.Background()
	original, err := filepath.Abs(filepath.Join("testdata", "behavior", "original"))
	require.NoError(t, err)
	modified, err := filepath.Abs(filepath.Join("testdata", "behavior", "modified"))
	require.NoError(t, err)
	sourcemap := filepath.Join(t.TempDir(), "maps")
	output := filepath.Join(t.TempDir(), "out")

	d := New(nil)
	report, err := d.Create(ctx, original, modified, sourcemap)
	require.NoError(t, err)
	require.Empty(t, report.Mismatches(), "mappings must reproduce the deobfuscated file")

	_, err = d.Generate(ctx, original, sourcemap, output)
	require.NoError(t, err)

	want, err := os.ReadFile(filepath.Join(modified, "app.js"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(output, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	runner := newNodeRunner(t)
	runner.skipIfNodeNotAvailable()
	originalOutput := runner.run(filepath.Join(original, "app.js"))
	generatedOutput := runner.run(filepath.Join(output, "app.js"))
	assert.Equal(t, "6,8,10\n", originalOutput)
	assert.Equal(t, originalOutput, generatedOutput)
}
