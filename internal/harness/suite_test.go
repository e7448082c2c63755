package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSuite_Scenarios(t *testing.T) {
	result, err := RunSuite("testdata/scenarios")
	require.NoError(t, err)

	assert.Equal(t, 9, result.TotalScenarios)
	assert.Equal(t, result.TotalScenarios, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunSuite_CountsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_good.yaml"), []byte(validScenarioYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_broken.yml"), []byte("name: [unterminated"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_failing.yaml"), []byte(`
name: failing
description: "Wrong expected positions"
flow:
  - op: create_beats
    args: { durations: [1] }
assertions:
  - type: positions
    positions: [0, 7]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	result, err := RunSuite(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalScenarios)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, filepath.Join(dir, "b_broken.yml"), result.Failures[0].ScenarioPath)
	assert.Empty(t, result.Failures[0].Name)
	assert.Equal(t, "failing", result.Failures[1].Name)
	assert.Contains(t, result.Failures[1].Error, "Assertion failed: positions")
}

func TestRunSuite_MissingDir(t *testing.T) {
	_, err := RunSuite(filepath.Join(t.TempDir(), "nope"))
	var notFound *ScenarioDirNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestFindScenarios_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenarioYAML), 0o644))

	_, err := FindScenarios(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}
