package browser

import (
	"context"
	"time"
)

// RemoteClient is the remote-control surface the orchestrator and the
// healing engine drive the browser through. Implementations report failures
// as errors whose message text carries the failure class (element not found,
// timeout, stale, not clickable) so they can be classified downstream.
type RemoteClient interface {
	// Navigation
	Navigate(ctx context.Context, url string) error
	RefreshPage(ctx context.Context) error
	WaitForPageLoad(ctx context.Context, timeout time.Duration) error

	// Element interaction
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error
	WaitForClickable(ctx context.Context, selector string, timeout time.Duration) error
	ElementExists(ctx context.Context, selector string) (bool, error)
	ElementIsClickable(ctx context.Context, selector string) (bool, error)
	ScrollToElement(ctx context.Context, selector string) error

	// Script execution. out, when non-nil, receives the evaluated result.
	ExecuteScript(ctx context.Context, script string, out interface{}) error

	// Page state
	Title(ctx context.Context) (string, error)
	PageHTML(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	ConsoleLogs() []string
	NetworkStatus(ctx context.Context) (NetworkStatus, error)

	Close() error
}

// NetworkStatus describes the browser's view of network connectivity.
type NetworkStatus struct {
	Online         bool    `json:"online"`
	ConnectionType string  `json:"connectionType"`
	Downlink       float64 `json:"downlink"`
	RTT            float64 `json:"rtt"`
}
