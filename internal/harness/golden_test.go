package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios_Golden runs every scenario under testdata/scenarios and
// compares its snapshot with testdata/golden/<name>.golden.
//
// To regenerate after an intended change:
//
//	go test ./internal/harness -run TestScenarios_Golden -update
func TestScenarios_Golden(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name, "scenario name must match its file name")

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_NoSnapshot(t *testing.T) {
	err := AssertGolden(t, "none", NewResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshot")
}

func TestSnapshot_Marshal(t *testing.T) {
	mark := "A"
	s := &Snapshot{
		Scenario: "tiny",
		Steps:    []StepSnapshot{{Op: "undo", Case: CaseError, Code: "CORRUPT_HISTORY", IDs: []int64{}}},
		Beats:    []BeatSnapshot{{ID: 0, IncludeInMeasure: true}},
		Measures: []MeasureSnapshot{{ID: 1, StartBeat: 0, RehearsalMark: &mark}},
		Undo:     []GroupSnapshot{},
		Redo:     []GroupSnapshot{},
	}
	data, err := s.Marshal()
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, `"code": "CORRUPT_HISTORY"`)
	assert.Contains(t, out, `"notes": null`)
	assert.Contains(t, out, `"rehearsal_mark": "A"`)
	assert.Contains(t, out, `"undo": []`)
}

func TestStepSnapshots_OmitsInvocations(t *testing.T) {
	steps := stepSnapshots(sampleTrace())
	require.Len(t, steps, 3)
	assert.Equal(t, StepSnapshot{Op: "undo", Case: CaseSuccess, IDs: []int64{2, 1}}, steps[2])
}
