package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioDirNotFoundError is returned when a scenario directory doesn't exist.
type ScenarioDirNotFoundError struct {
	Dir string
}

// Error implements the error interface.
func (e *ScenarioDirNotFoundError) Error() string {
	return fmt.Sprintf("scenario directory %q does not exist", e.Dir)
}

// FindScenarios returns the .yaml and .yml files directly under dir,
// sorted by name.
func FindScenarios(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &ScenarioDirNotFoundError{Dir: dir}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteResult summarizes a RunSuite call.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario.
type ScenarioFailure struct {
	Name         string `json:"name,omitempty"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// RunSuite loads and runs every scenario in dir. A scenario that fails to
// load or run counts as failed; the suite keeps going.
func RunSuite(dir string, opts ...Option) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{TotalScenarios: len(paths)}
	for _, path := range paths {
		fail := func(name, msg string) {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{Name: name, ScenarioPath: path, Error: msg})
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			fail("", err.Error())
			continue
		}
		run, err := Run(scenario, opts...)
		if err != nil {
			fail(scenario.Name, err.Error())
			continue
		}
		if !run.Pass {
			fail(scenario.Name, strings.Join(run.Errors, "\n"))
			continue
		}
		result.Passed++
	}
	return result, nil
}
