package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// scenarioFile is the on-disk shape of a scenario YAML file.
type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadFile reads scenarios from one YAML file and validates them.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	for i, sc := range file.Scenarios {
		if err := validateScenario(sc); err != nil {
			return nil, fmt.Errorf("%s: scenario %d: %w", filepath.Base(path), i+1, err)
		}
	}
	return file.Scenarios, nil
}

// LoadDir reads every .yaml/.yml file in dir, in lexical filename order so
// scenario ordering is stable across runs. A missing directory yields no
// scenarios rather than an error.
func LoadDir(dir string) ([]Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	var scenarios []Scenario
	for _, path := range paths {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, loaded...)
	}
	return scenarios, nil
}

func validateScenario(sc Scenario) error {
	if sc.ID == "" {
		return fmt.Errorf("scenario id is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.ID)
	}
	for i, step := range sc.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", sc.ID, i+1, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Action {
	case ActionNavigate:
		if step.Value == "" {
			return fmt.Errorf("navigate requires a value (url)")
		}
	case ActionClick, ActionType, ActionScroll:
		if step.Selector == "" {
			return fmt.Errorf("%s requires a selector", step.Action)
		}
	case ActionExecuteScript:
		if step.Script == "" {
			return fmt.Errorf("execute_script requires a script")
		}
	case ActionWait, ActionAssert:
		// no required fields
	case "":
		return fmt.Errorf("step action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}
