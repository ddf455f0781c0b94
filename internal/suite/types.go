package suite

import (
	"time"

	"github.com/probelab/webprobe/internal/healing"
	"github.com/probelab/webprobe/internal/quality"
)

// StepAction is one atomic browser action kind.
type StepAction string

const (
	ActionNavigate      StepAction = "navigate"
	ActionClick         StepAction = "click"
	ActionType          StepAction = "type"
	ActionWait          StepAction = "wait"
	ActionAssert        StepAction = "assert"
	ActionExecuteScript StepAction = "execute_script"
	ActionScroll        StepAction = "scroll"
)

// Category tags a scenario with the quality dimension it exercises.
type Category string

const (
	CategoryFunctional    Category = "functional"
	CategoryAccessibility Category = "accessibility"
	CategoryPerformance   Category = "performance"
)

// Priority orders scenarios by importance in reports.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// TestType selects which scenario families generation emits.
type TestType string

const (
	TestTypeFunctional    TestType = "functional"
	TestTypeAccessibility TestType = "accessibility"
	TestTypePerformance   TestType = "performance"
	TestTypeComprehensive TestType = "comprehensive"
)

// RunStatus is the lifecycle state of a test run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Step is one atomic browser action. Read-only once its scenario is built.
type Step struct {
	Action      StepAction    `yaml:"action" json:"action"`
	Selector    string        `yaml:"selector,omitempty" json:"selector,omitempty"`
	Value       string        `yaml:"value,omitempty" json:"value,omitempty"`
	Expected    string        `yaml:"expected,omitempty" json:"expected,omitempty"`
	Script      string        `yaml:"script,omitempty" json:"script,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
}

// Scenario is one testable unit, immutable once generated or loaded.
type Scenario struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Category    Category `yaml:"category" json:"category"`
	Priority    Priority `yaml:"priority" json:"priority"`
	Steps       []Step   `yaml:"steps" json:"steps"`
}

// StepResult records one executed step.
type StepResult struct {
	Step     Step          `json:"step"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ScenarioResult records one executed scenario. Passed means every step
// passed; execution stops at the first step that fails after healing.
type ScenarioResult struct {
	ScenarioID string        `json:"scenario_id"`
	Name       string        `json:"name"`
	Category   Category      `json:"category"`
	Passed     bool          `json:"passed"`
	Steps      []StepResult  `json:"steps"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// RunResult is the finalized record of one test run.
type RunResult struct {
	RunID          string                  `json:"run_id"`
	URL            string                  `json:"url"`
	TestType       TestType                `json:"test_type"`
	Status         RunStatus               `json:"status"`
	StartedAt      time.Time               `json:"started_at"`
	FinishedAt     time.Time               `json:"finished_at"`
	Duration       time.Duration           `json:"duration"`
	TotalScenarios int                     `json:"total_scenarios"`
	Passed         int                     `json:"passed"`
	Failed         int                     `json:"failed"`
	SuccessRate    float64                 `json:"success_rate"`
	Scenarios      []ScenarioResult        `json:"scenarios"`
	HealingActions []healing.Action        `json:"healing_actions,omitempty"`
	Quality        *quality.Metrics        `json:"quality,omitempty"`
	Failure        *healing.FailureContext `json:"failure,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// SuccessRate computes passed/total as a percentage, 0 when nothing ran.
func SuccessRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}
