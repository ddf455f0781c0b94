package healing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/browser"
	"github.com/probelab/webprobe/internal/config"
)

// FailureKind classifies a browser operation failure for strategy selection.
type FailureKind string

const (
	FailureElementNotFound     FailureKind = "element_not_found"
	FailureElementNotClickable FailureKind = "element_not_clickable"
	FailureTimeout             FailureKind = "timeout"
	FailureStaleElement        FailureKind = "stale_element"
	FailureUnknown             FailureKind = "unknown"
)

// classifyPatterns maps error-message phrases to failure kinds, checked in
// order with first match winning. "timeout" is checked before "stale" so a
// message carrying both phrases classifies as a timeout.
var classifyPatterns = []struct {
	kind    FailureKind
	phrases []string
}{
	{FailureElementNotFound, []string{"element not found", "no such element"}},
	{FailureTimeout, []string{"timeout"}},
	{FailureStaleElement, []string{"stale"}},
	{FailureElementNotClickable, []string{"not clickable"}},
}

// Classify maps an error to a FailureKind by case-insensitive substring
// matching against the pattern table. A nil error or an unmatched message is
// FailureUnknown.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	msg := strings.ToLower(err.Error())
	for _, p := range classifyPatterns {
		for _, phrase := range p.phrases {
			if strings.Contains(msg, phrase) {
				return p.kind
			}
		}
	}
	return FailureUnknown
}

// FailureContext describes one step failure handed to the engine. It lives
// only for the healing call that consumes it.
type FailureContext struct {
	Kind      FailureKind `json:"kind"`
	Selector  string      `json:"selector,omitempty"`
	Message   string      `json:"message"`
	Operation string      `json:"operation"`
	Timestamp time.Time   `json:"timestamp"`
}

// Action records one recovery attempt in the engine's append-only log.
type Action struct {
	Timestamp   time.Time `json:"timestamp"`
	Strategy    string    `json:"strategy"`
	Success     bool      `json:"success"`
	Description string    `json:"description"`
}

// strategy is one recovery tactic. A returned error means the tactic itself
// blew up and counts as a failed attempt; it never propagates.
type strategy struct {
	name  string
	apply func(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error)
}

// Engine recovers from classified browser failures. It starts disabled and
// must be enabled per run; while disabled Heal is a no-op that reports
// failure without logging. The only state across calls is the enabled flag
// and the action log.
type Engine struct {
	mu      sync.Mutex
	enabled bool
	actions []Action

	maxAttempts int
	retryDelay  time.Duration
	waitTimeout time.Duration
	log         *logrus.Logger
}

func NewEngine(cfg config.HealingConfig, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		enabled:     cfg.Enabled,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		waitTimeout: cfg.WaitTimeout,
		log:         log,
	}
}

func (e *Engine) Enable() {
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
}

func (e *Engine) Disable() {
	e.mu.Lock()
	e.enabled = false
	e.mu.Unlock()
}

func (e *Engine) IsEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Actions returns a copy of the append-only recovery log.
func (e *Engine) Actions() []Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Action, len(e.actions))
	copy(out, e.actions)
	return out
}

// Reset clears the action log for a new run. The enabled flag is untouched.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.actions = nil
	e.mu.Unlock()
}

func (e *Engine) record(name string, success bool, desc string) {
	e.mu.Lock()
	e.actions = append(e.actions, Action{
		Timestamp:   time.Now(),
		Strategy:    name,
		Success:     success,
		Description: desc,
	})
	e.mu.Unlock()
}

// Heal applies the strategy list registered for fc.Kind in order until one
// succeeds or the list is exhausted, logging one Action per strategy tried.
// While the engine is disabled it returns false immediately and records
// nothing.
func (e *Engine) Heal(ctx context.Context, fc FailureContext, client browser.RemoteClient) bool {
	if !e.IsEnabled() {
		return false
	}

	strategies := e.strategiesFor(fc.Kind)
	e.log.WithFields(logrus.Fields{
		"kind":       fc.Kind,
		"selector":   fc.Selector,
		"operation":  fc.Operation,
		"strategies": len(strategies),
	}).Info("attempting healing")

	for _, s := range strategies {
		ok, err := s.apply(ctx, fc, client)
		if err != nil {
			e.log.WithError(err).WithField("strategy", s.name).Warn("healing strategy errored")
			e.record(s.name, false, fmt.Sprintf("strategy errored: %v", err))
			continue
		}
		if ok {
			e.record(s.name, true, fmt.Sprintf("recovered %q via %s", fc.Selector, s.name))
			e.log.WithField("strategy", s.name).Info("healing succeeded")
			return true
		}
		e.record(s.name, false, fmt.Sprintf("strategy %s did not recover %q", s.name, fc.Selector))
	}

	e.log.WithField("kind", fc.Kind).Info("healing exhausted all strategies")
	return false
}

func (e *Engine) strategiesFor(kind FailureKind) []strategy {
	switch kind {
	case FailureElementNotFound:
		return []strategy{
			{"wait_for_element", e.waitForElement},
			{"alternative_selectors", e.tryAlternativeSelectors},
			{"refresh_and_recheck", e.refreshAndRecheck},
			{"scroll_and_recheck", e.scrollAndRecheck},
		}
	case FailureElementNotClickable:
		return []strategy{
			{"wait_until_clickable", e.waitUntilClickable},
			{"scroll_and_recheck_clickable", e.scrollAndRecheckClickable},
			{"force_click", e.forceClick},
			{"wait_for_load_and_recheck", e.waitLoadRecheckClickable},
		}
	case FailureTimeout:
		return []strategy{
			{"extended_wait", e.extendedWait},
			{"delay_then_retry", e.delayThenRetry},
			{"check_network", e.checkNetwork},
			{"refresh_page", e.refreshPage},
		}
	case FailureStaleElement:
		return []strategy{
			{"refind_element", e.refindElement},
			{"wait_for_load_and_recheck", e.waitLoadRecheckExists},
			{"short_delay_and_recheck", e.shortDelayRecheck},
		}
	default:
		return []strategy{
			{"delay_then_retry", e.delayThenRetry},
		}
	}
}

// element_not_found strategies

func (e *Engine) waitForElement(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if fc.Selector == "" {
		return false, nil
	}
	if err := client.WaitForElement(ctx, fc.Selector, e.waitTimeout); err != nil {
		return false, nil
	}
	return true, nil
}

func (e *Engine) tryAlternativeSelectors(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if fc.Selector == "" {
		return false, nil
	}
	for _, alt := range AlternativeSelectors(fc.Selector) {
		exists, err := client.ElementExists(ctx, alt)
		if err != nil {
			return false, err
		}
		if exists {
			e.log.WithFields(logrus.Fields{
				"original":    fc.Selector,
				"alternative": alt,
			}).Info("alternative selector matched")
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) refreshAndRecheck(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if err := client.RefreshPage(ctx); err != nil {
		return false, err
	}
	if err := client.WaitForPageLoad(ctx, e.waitTimeout); err != nil {
		return false, nil
	}
	if fc.Selector == "" {
		return true, nil
	}
	return client.ElementExists(ctx, fc.Selector)
}

func (e *Engine) scrollAndRecheck(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if fc.Selector == "" {
		return false, nil
	}
	if err := client.ScrollToElement(ctx, fc.Selector); err != nil {
		return false, nil
	}
	return client.ElementExists(ctx, fc.Selector)
}

// element_not_clickable strategies

func (e *Engine) waitUntilClickable(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if fc.Selector == "" {
		return false, nil
	}
	if err := client.WaitForClickable(ctx, fc.Selector, e.waitTimeout); err != nil {
		return false, nil
	}
	return true, nil
}

func (e *Engine) scrollAndRecheckClickable(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if fc.Selector == "" {
		return false, nil
	}
	if err := client.ScrollToElement(ctx, fc.Selector); err != nil {
		return false, nil
	}
	return client.ElementIsClickable(ctx, fc.Selector)
}

func (e *Engine) forceClick(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if fc.Selector == "" {
		return false, nil
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, fc.Selector)
	var clicked bool
	if err := client.ExecuteScript(ctx, script, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}

func (e *Engine) waitLoadRecheckClickable(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if err := client.WaitForPageLoad(ctx, e.waitTimeout); err != nil {
		return false, nil
	}
	if fc.Selector == "" {
		return true, nil
	}
	return client.ElementIsClickable(ctx, fc.Selector)
}

// timeout strategies

func (e *Engine) extendedWait(ctx context.Context, _ FailureContext, client browser.RemoteClient) (bool, error) {
	if err := client.WaitForPageLoad(ctx, 2*e.waitTimeout); err != nil {
		return false, nil
	}
	return true, nil
}

func (e *Engine) delayThenRetry(ctx context.Context, _ FailureContext, _ browser.RemoteClient) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(e.retryDelay):
		return true, nil
	}
}

func (e *Engine) checkNetwork(ctx context.Context, _ FailureContext, client browser.RemoteClient) (bool, error) {
	status, err := client.NetworkStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.Online, nil
}

func (e *Engine) refreshPage(ctx context.Context, _ FailureContext, client browser.RemoteClient) (bool, error) {
	if err := client.RefreshPage(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// stale_element strategies

func (e *Engine) refindElement(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if fc.Selector == "" {
		return false, nil
	}
	if err := client.WaitForElement(ctx, fc.Selector, e.waitTimeout); err != nil {
		return false, nil
	}
	return true, nil
}

func (e *Engine) waitLoadRecheckExists(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	if err := client.WaitForPageLoad(ctx, e.waitTimeout); err != nil {
		return false, nil
	}
	if fc.Selector == "" {
		return true, nil
	}
	return client.ElementExists(ctx, fc.Selector)
}

func (e *Engine) shortDelayRecheck(ctx context.Context, fc FailureContext, client browser.RemoteClient) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}
	if fc.Selector == "" {
		return true, nil
	}
	return client.ElementExists(ctx, fc.Selector)
}

// Operation is one retryable browser action for SmartRetry.
type Operation struct {
	Name     string
	Selector string
	Do       func(ctx context.Context) error
}

// SmartRetry runs op up to the configured attempt budget. After each failed
// attempt except the last it classifies the error, attempts healing, and
// backs off linearly (delay × attempt number) before retrying. The final
// attempt's error is returned exactly as the operation produced it.
func (e *Engine) SmartRetry(ctx context.Context, client browser.RemoteClient, op Operation) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		lastErr = op.Do(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == e.maxAttempts {
			break
		}

		kind := Classify(lastErr)
		e.log.WithFields(logrus.Fields{
			"operation": op.Name,
			"attempt":   attempt,
			"kind":      kind,
		}).Warn("operation failed, retrying")

		e.Heal(ctx, FailureContext{
			Kind:      kind,
			Selector:  op.Selector,
			Message:   lastErr.Error(),
			Operation: op.Name,
			Timestamp: time.Now(),
		}, client)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(e.retryDelay * time.Duration(attempt)):
		}
	}
	return lastErr
}
