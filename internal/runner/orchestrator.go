package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/browser"
	"github.com/probelab/webprobe/internal/config"
	"github.com/probelab/webprobe/internal/healing"
	"github.com/probelab/webprobe/internal/quality"
	"github.com/probelab/webprobe/internal/suite"
)

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrRunNotFinished = errors.New("run not finished")
)

// ResultStore persists finished runs. Persistence is best effort: a store
// failure is logged, never unwinds a run's in-memory result.
type ResultStore interface {
	SaveRun(result *suite.RunResult) error
	SaveError(runID, message string) error
}

// ClientFactory opens a fresh browser session for one run. Each run owns its
// session exclusively, so independent runs can execute concurrently.
type ClientFactory func(ctx context.Context) (browser.RemoteClient, error)

// Options configures one run.
type Options struct {
	URL       string
	TestType  suite.TestType
	Scenarios []suite.Scenario // when empty, scenarios are generated from page analysis
	Healing   bool
	Timeout   time.Duration // overrides the configured run timeout when > 0
}

// Progress reports where a running test currently is.
type Progress struct {
	CompletedScenarios int    `json:"completed_scenarios"`
	TotalScenarios     int    `json:"total_scenarios"`
	CurrentStep        string `json:"current_step,omitempty"`
}

// StatusInfo is the externally visible state of a run.
type StatusInfo struct {
	RunID    string          `json:"run_id"`
	Status   suite.RunStatus `json:"status"`
	Progress Progress        `json:"progress"`
}

type runState struct {
	mu       sync.Mutex
	status   suite.RunStatus
	progress Progress
	result   *suite.RunResult
}

func (rs *runState) setStatus(status suite.RunStatus) {
	rs.mu.Lock()
	rs.status = status
	rs.mu.Unlock()
}

func (rs *runState) setProgress(completed, total int, current string) {
	rs.mu.Lock()
	rs.progress = Progress{CompletedScenarios: completed, TotalScenarios: total, CurrentStep: current}
	rs.mu.Unlock()
}

// Orchestrator sequences page analysis, test generation, execution with
// healing, and quality scoring into runs. Steps within a run are strictly
// sequential; separate runs each get their own browser session and may
// overlap freely.
type Orchestrator struct {
	cfg       *config.Config
	log       *logrus.Logger
	newClient ClientFactory
	store     ResultStore

	mu   sync.Mutex
	runs map[string]*runState
}

func New(cfg *config.Config, newClient ClientFactory, store ResultStore, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		newClient: newClient,
		store:     store,
		runs:      make(map[string]*runState),
	}
}

// newRunID stamps a run id with the start time plus a random suffix, so ids
// sort chronologically and stay unique under concurrent starts.
func newRunID() string {
	return fmt.Sprintf("run_%s_%s", time.Now().Format("20060102T150405"), uuid.NewString()[:8])
}

// StartRun launches a run asynchronously and returns its id immediately.
// ctx bounds the whole run; cancellation marks it failed.
func (o *Orchestrator) StartRun(ctx context.Context, opts Options) (string, error) {
	if opts.URL == "" {
		return "", errors.New("url is required")
	}
	if opts.TestType == "" {
		opts.TestType = suite.TestTypeComprehensive
	}

	runID := newRunID()
	state := &runState{status: suite.StatusPending}

	o.mu.Lock()
	o.runs[runID] = state
	o.mu.Unlock()

	go o.execute(ctx, runID, state, opts)
	return runID, nil
}

// Status reports the current state of a run.
func (o *Orchestrator) Status(runID string) (StatusInfo, error) {
	state, ok := o.lookup(runID)
	if !ok {
		return StatusInfo{}, ErrRunNotFound
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return StatusInfo{RunID: runID, Status: state.status, Progress: state.progress}, nil
}

// Result returns a run's final result once it reaches a terminal status.
func (o *Orchestrator) Result(runID string) (*suite.RunResult, error) {
	state, ok := o.lookup(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.result == nil {
		return nil, ErrRunNotFinished
	}
	return state.result, nil
}

func (o *Orchestrator) lookup(runID string) (*runState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.runs[runID]
	return state, ok
}

func (o *Orchestrator) execute(ctx context.Context, runID string, state *runState, opts Options) {
	timeout := o.cfg.Runner.RunTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := o.log.WithFields(logrus.Fields{"run_id": runID, "url": opts.URL})

	result := &suite.RunResult{
		RunID:     runID,
		URL:       opts.URL,
		TestType:  opts.TestType,
		Status:    suite.StatusPending,
		StartedAt: time.Now(),
	}

	engine := healing.NewEngine(o.cfg.Healing, o.log)
	if opts.Healing {
		engine.Enable()
	} else {
		engine.Disable()
	}

	o.runAll(runCtx, state, opts, engine, result)

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.HealingActions = engine.Actions()
	result.TotalScenarios = len(result.Scenarios)
	for _, sc := range result.Scenarios {
		if sc.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	result.SuccessRate = suite.SuccessRate(result.Passed, result.TotalScenarios)

	state.mu.Lock()
	state.status = result.Status
	state.result = result
	state.mu.Unlock()

	o.persist(result, log)
	log.WithFields(logrus.Fields{
		"status":       result.Status,
		"passed":       result.Passed,
		"failed":       result.Failed,
		"success_rate": result.SuccessRate,
	}).Info("run finished")
}

// runAll drives the analysis, generation, execution, and scoring pipeline,
// mutating result in place. It never panics out; every failure path lands in
// result.Status and result.Error.
func (o *Orchestrator) runAll(ctx context.Context, state *runState, opts Options, engine *healing.Engine, result *suite.RunResult) {
	client, err := o.newClient(ctx)
	if err != nil {
		o.fail(result, err, "open session")
		return
	}
	defer client.Close()

	if err := client.Navigate(ctx, opts.URL); err != nil {
		o.fail(result, err, "navigate")
		return
	}
	if err := client.WaitForPageLoad(ctx, o.cfg.Browser.PageLoadTimeout); err != nil {
		o.fail(result, err, "initial page load")
		return
	}

	analyzer := browser.NewAnalyzer(client, o.log)

	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		analysis, err := analyzer.Analyze(ctx)
		if err != nil {
			o.fail(result, err, "page analysis")
			return
		}
		scenarios = suite.Generate(analysis, opts.TestType)
	}

	result.Status = suite.StatusRunning
	state.setStatus(suite.StatusRunning)
	state.setProgress(0, len(scenarios), "")

	for i, sc := range scenarios {
		if ctx.Err() != nil {
			o.failTimeout(result, ctx.Err(), sc.ID)
			return
		}
		scResult := o.runScenario(ctx, client, engine, sc, opts.Healing, state, i, len(scenarios))
		result.Scenarios = append(result.Scenarios, scResult)
		state.setProgress(i+1, len(scenarios), "")

		if !scResult.Passed {
			result.Status = suite.StatusFailed
			result.Error = scResult.Error
			result.Failure = scenarioFailure(sc, scResult)
		}
	}

	if ctx.Err() != nil {
		o.failTimeout(result, ctx.Err(), "")
		return
	}

	// One assessment per run, from whatever the page yields after execution.
	raw := quality.Collect(ctx, analyzer, o.log)
	m := quality.NewEngine(o.cfg.Quality, o.log).Assess(raw)
	result.Quality = &m

	if result.Status != suite.StatusFailed {
		result.Status = suite.StatusCompleted
	}
}

// runScenario executes steps in order, stopping at the first step that fails
// after the healing contract is exhausted.
func (o *Orchestrator) runScenario(ctx context.Context, client browser.RemoteClient, engine *healing.Engine, sc suite.Scenario, healingOn bool, state *runState, index, total int) suite.ScenarioResult {
	result := suite.ScenarioResult{
		ScenarioID: sc.ID,
		Name:       sc.Name,
		Category:   sc.Category,
		Passed:     true,
	}
	started := time.Now()

	for _, step := range sc.Steps {
		state.setProgress(index, total, fmt.Sprintf("%s: %s", sc.ID, step.Action))

		stepStart := time.Now()
		var err error
		if healingOn {
			err = engine.SmartRetry(ctx, client, healing.Operation{
				Name:     string(step.Action),
				Selector: step.Selector,
				Do: func(ctx context.Context) error {
					return o.executeStep(ctx, client, step)
				},
			})
		} else {
			err = o.executeStep(ctx, client, step)
		}

		stepResult := suite.StepResult{
			Step:     step,
			Passed:   err == nil,
			Duration: time.Since(stepStart),
		}
		if err != nil {
			stepResult.Error = err.Error()
		}
		result.Steps = append(result.Steps, stepResult)

		if err != nil {
			result.Passed = false
			result.Error = fmt.Sprintf("step %s failed: %v", step.Action, err)
			break
		}
	}

	result.Duration = time.Since(started)
	return result
}

// executeStep maps one declared step onto the remote client. Each step is
// atomic from the orchestrator's view: it reports success or an error, never
// a partial state.
func (o *Orchestrator) executeStep(ctx context.Context, client browser.RemoteClient, step suite.Step) error {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Browser.StepTimeout
	}

	switch step.Action {
	case suite.ActionNavigate:
		if err := client.Navigate(ctx, step.Value); err != nil {
			return err
		}
		return client.WaitForPageLoad(ctx, timeout)

	case suite.ActionClick:
		return client.Click(ctx, step.Selector)

	case suite.ActionType:
		return client.Type(ctx, step.Selector, step.Value)

	case suite.ActionWait:
		if step.Selector != "" {
			return client.WaitForElement(ctx, step.Selector, timeout)
		}
		return client.WaitForPageLoad(ctx, timeout)

	case suite.ActionScroll:
		return client.ScrollToElement(ctx, step.Selector)

	case suite.ActionExecuteScript:
		var out interface{}
		if err := client.ExecuteScript(ctx, step.Script, &out); err != nil {
			return err
		}
		if step.Expected != "" {
			return compareExpected(out, step.Expected)
		}
		return nil

	case suite.ActionAssert:
		return o.assert(ctx, client, step)

	default:
		return fmt.Errorf("unknown step action %q", step.Action)
	}
}

// assert resolves in priority order: script result, element existence, then
// page title.
func (o *Orchestrator) assert(ctx context.Context, client browser.RemoteClient, step suite.Step) error {
	if step.Script != "" {
		var out interface{}
		if err := client.ExecuteScript(ctx, step.Script, &out); err != nil {
			return err
		}
		return compareExpected(out, step.Expected)
	}
	if step.Selector != "" {
		exists, err := client.ElementExists(ctx, step.Selector)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("element not found: assertion selector %q matched nothing", step.Selector)
		}
		return nil
	}
	title, err := client.Title(ctx)
	if err != nil {
		return err
	}
	if step.Expected != "" && title != step.Expected {
		return fmt.Errorf("assertion failed: title %q, expected %q", title, step.Expected)
	}
	return nil
}

func compareExpected(value interface{}, expected string) error {
	got := strings.TrimSpace(fmt.Sprintf("%v", value))
	if got != expected {
		return fmt.Errorf("assertion failed: got %q, expected %q", got, expected)
	}
	return nil
}

// scenarioFailure builds a FailureContext from the step that sank the
// scenario, so a failed run exposes the failure the same way infrastructure
// errors do.
func scenarioFailure(sc suite.Scenario, res suite.ScenarioResult) *healing.FailureContext {
	if len(res.Steps) == 0 {
		return nil
	}
	last := res.Steps[len(res.Steps)-1]
	if last.Passed {
		return nil
	}
	return &healing.FailureContext{
		Kind:      healing.Classify(errors.New(last.Error)),
		Selector:  last.Step.Selector,
		Message:   res.Error,
		Operation: fmt.Sprintf("%s: %s", sc.ID, last.Step.Action),
		Timestamp: time.Now(),
	}
}

func (o *Orchestrator) fail(result *suite.RunResult, err error, operation string) {
	kind := healing.Classify(err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = healing.FailureTimeout
	}
	result.Status = suite.StatusFailed
	result.Error = err.Error()
	result.Failure = &healing.FailureContext{
		Kind:      kind,
		Message:   err.Error(),
		Operation: operation,
		Timestamp: time.Now(),
	}
}

// failTimeout marks a run killed by its wall-clock budget.
func (o *Orchestrator) failTimeout(result *suite.RunResult, err error, at string) {
	result.Status = suite.StatusFailed
	result.Error = fmt.Sprintf("run timeout: %v", err)
	result.Failure = &healing.FailureContext{
		Kind:      healing.FailureTimeout,
		Message:   result.Error,
		Operation: at,
		Timestamp: time.Now(),
	}
}

func (o *Orchestrator) persist(result *suite.RunResult, log logrus.FieldLogger) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveRun(result); err != nil {
		log.WithError(err).Warn("failed to persist run result")
	}
	if result.Status == suite.StatusFailed && result.Error != "" {
		if err := o.store.SaveError(result.RunID, result.Error); err != nil {
			log.WithError(err).Warn("failed to persist run error")
		}
	}
}
