package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/config"
)

// ErrChromeNotFound is returned when no Chrome/Chromium binary is installed.
var ErrChromeNotFound = errors.New("Chrome browser not found")

// Session is a chromedp-backed RemoteClient. Each Session owns exactly one
// browser instance; a TestRun holds its Session by handle and no Session is
// ever shared between concurrent runs.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	stepTimeout time.Duration
	log         *logrus.Logger

	mu          sync.Mutex
	consoleLogs []string
}

// findChrome attempts to find a Chrome executable.
func findChrome() (string, error) {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		}
	case "linux":
		paths = []string{
			"google-chrome",
			"google-chrome-stable",
			"chromium",
			"chromium-browser",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chrome.exe`,
		}
	}

	for _, path := range paths {
		if runtime.GOOS == "darwin" {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		} else {
			if _, err := exec.LookPath(path); err == nil {
				return path, nil
			}
		}
	}

	if path, err := exec.LookPath("chrome"); err == nil {
		return path, nil
	}

	return "", ErrChromeNotFound
}

// NewSession launches a browser and returns a connected Session.
func NewSession(cfg config.BrowserConfig, log *logrus.Logger) (*Session, error) {
	chromePath := cfg.ChromePath
	if chromePath == "" {
		var err error
		chromePath, err = findChrome()
		if err != nil {
			return nil, err
		}
	}
	log.WithField("path", chromePath).Debug("using Chrome binary")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return newSessionFromAllocator(allocCtx, allocCancel, cfg, log)
}

// NewRemoteSession attaches to a Chrome already running with a remote
// debugging port instead of launching a new instance.
func NewRemoteSession(debugURL string, cfg config.BrowserConfig, log *logrus.Logger) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), debugURL)
	return newSessionFromAllocator(allocCtx, allocCancel, cfg, log)
}

func newSessionFromAllocator(allocCtx context.Context, allocCancel context.CancelFunc, cfg config.BrowserConfig, log *logrus.Logger) (*Session, error) {
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		log.Debugf("[chrome] "+format, v...)
	}))

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		stepTimeout: cfg.StepTimeout,
		log:         log,
	}
	if s.stepTimeout <= 0 {
		s.stepTimeout = 10 * time.Second
	}

	// Console messages and uncaught exceptions are delivered as typed CDP
	// events; collecting them here is what backs ConsoleLogs and the
	// functionality scoring's JS-error count.
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpruntime.EventConsoleAPICalled:
			parts := make([]string, 0, len(e.Args))
			for _, arg := range e.Args {
				if arg.Value != nil {
					parts = append(parts, string(arg.Value))
				} else if arg.Description != "" {
					parts = append(parts, arg.Description)
				}
			}
			s.appendConsoleLog(fmt.Sprintf("[%s] %s", e.Type, strings.Join(parts, " ")))
		case *cdpruntime.EventExceptionThrown:
			s.appendConsoleLog(fmt.Sprintf("[exception] %s", e.ExceptionDetails.Error()))
		}
	})

	// Start the browser.
	if err := chromedp.Run(ctx); err != nil {
		allocCancel()
		cancel()
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}

	return s, nil
}

func (s *Session) appendConsoleLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consoleLogs = append(s.consoleLogs, line)
}

// run executes chromedp actions on the session context with a timeout,
// propagating cancellation from the caller's context so a run-level budget
// can abort an in-flight step wait.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timeout after %v: %w", timeout, err)
	}
	return err
}

// Navigate navigates the session to a URL and waits for the body to render.
func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.stepTimeout*3,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// RefreshPage reloads the current page.
func (s *Session) RefreshPage(ctx context.Context) error {
	if err := s.run(ctx, s.stepTimeout*3, chromedp.Reload()); err != nil {
		return fmt.Errorf("failed to refresh page: %w", err)
	}
	return nil
}

// WaitForPageLoad polls document.readyState until the page is interactive.
func (s *Session) WaitForPageLoad(ctx context.Context, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	script := `document.readyState === 'complete' || document.readyState === 'interactive'`
	for {
		var ready bool
		if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &ready)); err != nil {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("timeout waiting for page to load after %v", timeout)
			}
			return fmt.Errorf("failed to check page readiness: %w", err)
		}
		if ready {
			// Small settle delay so late-rendering elements are attached.
			time.Sleep(300 * time.Millisecond)
			return nil
		}

		select {
		case <-runCtx.Done():
			return fmt.Errorf("timeout waiting for page to load after %v", timeout)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Click clicks an element. The element must exist; a zero-match selector is
// reported as an element-not-found error.
func (s *Session) Click(ctx context.Context, selector string) error {
	exists, err := s.ElementExists(ctx, selector)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("element not found: no element matches selector %q", selector)
	}

	if err := s.run(ctx, s.stepTimeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element not clickable: failed to click %q: %w", selector, err)
	}
	return nil
}

// Type clears an input and types a value into it, dispatching input/change
// events so framework-bound forms register the new value.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	exists, err := s.ElementExists(ctx, selector)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("element not found: no element matches selector %q", selector)
	}

	err = s.run(ctx, s.stepTimeout,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`
			(() => {
				const el = document.querySelector(%q);
				if (el) {
					el.dispatchEvent(new Event('input', { bubbles: true }));
					el.dispatchEvent(new Event('change', { bubbles: true }));
				}
			})()
		`, selector), nil),
	)
	if err != nil {
		return fmt.Errorf("failed to type into %q: %w", selector, err)
	}
	return nil
}

// WaitForElement waits for an element to become visible.
func (s *Session) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.stepTimeout
	}
	err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("timeout waiting for element %q: %w", selector, err)
	}
	return nil
}

// WaitForClickable polls until the element would accept a click.
func (s *Session) WaitForClickable(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.stepTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		clickable, err := s.ElementIsClickable(ctx, selector)
		if err == nil && clickable {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout: element %q not clickable after %v", selector, timeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout: element %q not clickable: %w", selector, ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// ElementExists reports whether the selector matches at least one element.
func (s *Session) ElementExists(ctx context.Context, selector string) (bool, error) {
	var exists bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := s.run(ctx, s.stepTimeout, chromedp.Evaluate(script, &exists)); err != nil {
		return false, fmt.Errorf("failed to query selector %q: %w", selector, err)
	}
	return exists, nil
}

// ElementIsClickable reports whether the element is present, enabled and
// occupies layout space.
func (s *Session) ElementIsClickable(ctx context.Context, selector string) (bool, error) {
	var clickable bool
	script := fmt.Sprintf(`
		(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			if (el.disabled) return false;
			const rect = el.getBoundingClientRect();
			return rect.width > 0 && rect.height > 0 && el.offsetParent !== null;
		})()
	`, selector)
	if err := s.run(ctx, s.stepTimeout, chromedp.Evaluate(script, &clickable)); err != nil {
		return false, fmt.Errorf("failed to check clickability of %q: %w", selector, err)
	}
	return clickable, nil
}

// ScrollToElement scrolls the element into the viewport.
func (s *Session) ScrollToElement(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`
		(() => {
			const el = document.querySelector(%q);
			if (!el) return false;
			el.scrollIntoView({ block: 'center' });
			return true;
		})()
	`, selector)
	var found bool
	if err := s.run(ctx, s.stepTimeout, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("failed to scroll to %q: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("element not found: cannot scroll to %q", selector)
	}
	return nil
}

// ExecuteScript evaluates JavaScript in the page. out, when non-nil, must be
// a pointer the JSON result can unmarshal into.
func (s *Session) ExecuteScript(ctx context.Context, script string, out interface{}) error {
	if err := s.run(ctx, s.stepTimeout, chromedp.Evaluate(script, out)); err != nil {
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// Title returns the current page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.stepTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to get page title: %w", err)
	}
	return title, nil
}

// PageHTML returns the full outer HTML of the current document.
func (s *Session) PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.stepTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

// CaptureScreenshot captures a full-page screenshot.
func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.stepTimeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// ConsoleLogs returns a copy of the console messages collected so far.
func (s *Session) ConsoleLogs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := make([]string, len(s.consoleLogs))
	copy(logs, s.consoleLogs)
	return logs
}

// NetworkStatus reads the browser's connectivity state.
func (s *Session) NetworkStatus(ctx context.Context) (NetworkStatus, error) {
	var status NetworkStatus
	script := `
		(() => ({
			online: navigator.onLine,
			connectionType: navigator.connection ? navigator.connection.effectiveType : 'unknown',
			downlink: navigator.connection ? navigator.connection.downlink : 0,
			rtt: navigator.connection ? navigator.connection.rtt : 0
		}))()
	`
	if err := s.run(ctx, s.stepTimeout, chromedp.Evaluate(script, &status)); err != nil {
		return status, fmt.Errorf("failed to read network status: %w", err)
	}
	return status, nil
}

var _ RemoteClient = (*Session)(nil)

// Close tears the browser down and releases all resources.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}
