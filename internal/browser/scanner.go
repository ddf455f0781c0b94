package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// DebugTarget is a running Chrome instance exposing a DevTools endpoint.
type DebugTarget struct {
	Port         int    `json:"port"`
	Browser      string `json:"browser"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
}

// versionInfo is the payload Chrome serves at /json/version.
type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Scanner probes localhost for Chrome instances started with
// --remote-debugging-port, so a session can attach to an existing browser
// instead of launching its own.
type Scanner struct {
	httpClient *http.Client
	log        *logrus.Logger
}

// defaultDebugPorts are the ports Chrome is commonly launched with.
var defaultDebugPorts = []int{9222, 9223, 9224, 9225, 9229}

func NewScanner(log *logrus.Logger) *Scanner {
	if log == nil {
		log = logrus.New()
	}
	return &Scanner{
		httpClient: &http.Client{Timeout: 2 * time.Second},
		log:        log,
	}
}

// Scan probes the default debug ports and returns every reachable, verified
// DevTools endpoint. An unreachable port is not an error, just not a target.
func (s *Scanner) Scan(ctx context.Context) []DebugTarget {
	var targets []DebugTarget
	for _, port := range defaultDebugPorts {
		target, err := s.Probe(ctx, port)
		if err != nil {
			s.log.WithField("port", port).Debug("no debuggable browser")
			continue
		}
		targets = append(targets, *target)
	}
	return targets
}

// Probe checks one port for a DevTools endpoint and verifies the advertised
// websocket actually accepts a connection before reporting it usable.
func (s *Scanner) Probe(ctx context.Context, port int) (*DebugTarget, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d/json/version", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("port %d not reachable: %w", port, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("port %d returned status %d", port, resp.StatusCode)
	}

	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("port %d served invalid version info: %w", port, err)
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("port %d advertises no debugger url", port)
	}

	if err := s.verifyWebSocket(ctx, info.WebSocketDebuggerURL); err != nil {
		return nil, fmt.Errorf("port %d debugger not connectable: %w", port, err)
	}

	s.log.WithFields(logrus.Fields{
		"port":    port,
		"browser": info.Browser,
	}).Info("found debuggable browser")

	return &DebugTarget{
		Port:         port,
		Browser:      info.Browser,
		WebSocketURL: info.WebSocketDebuggerURL,
	}, nil
}

// verifyWebSocket dials the debugger endpoint and closes it again. Chrome
// sometimes advertises an endpoint that refuses connections while shutting
// down, so a plain HTTP 200 is not proof of a usable target.
func (s *Scanner) verifyWebSocket(ctx context.Context, wsURL string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	return conn.Close()
}
