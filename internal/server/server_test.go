package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/probelab/webprobe/internal/config"
	"github.com/probelab/webprobe/internal/runner"
	"github.com/probelab/webprobe/internal/store"
	"github.com/probelab/webprobe/internal/suite"
)

type fakeRunner struct {
	startedOpts []runner.Options
	statuses    map[string]runner.StatusInfo
	results     map[string]*suite.RunResult
	unfinished  map[string]bool
}

func (f *fakeRunner) StartRun(_ context.Context, opts runner.Options) (string, error) {
	if opts.URL == "" {
		return "", runner.ErrRunNotFound
	}
	f.startedOpts = append(f.startedOpts, opts)
	return "run_20260826T120000_abcd1234", nil
}

func (f *fakeRunner) Status(runID string) (runner.StatusInfo, error) {
	info, ok := f.statuses[runID]
	if !ok {
		return runner.StatusInfo{}, runner.ErrRunNotFound
	}
	return info, nil
}

func (f *fakeRunner) Result(runID string) (*suite.RunResult, error) {
	if f.unfinished[runID] {
		return nil, runner.ErrRunNotFinished
	}
	result, ok := f.results[runID]
	if !ok {
		return nil, runner.ErrRunNotFound
	}
	return result, nil
}

type fakeNotifications struct {
	list []store.Notification
}

func (f *fakeNotifications) Notifications(int) ([]store.Notification, error) {
	return f.list, nil
}

func newTestServer(r Runner, n NotificationSource) *httptest.Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, r, n, log)
	return httptest.NewServer(s.Handler())
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStartRunEndpoint(t *testing.T) {
	fr := &fakeRunner{}
	ts := newTestServer(fr, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/tests/run", "application/json",
		strings.NewReader(`{"url": "https://example.com", "test_type": "comprehensive", "healing": true}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var body struct {
		RunID string `json:"run_id"`
	}
	decodeBody(t, resp, &body)
	if body.RunID == "" {
		t.Error("response missing run_id")
	}

	if len(fr.startedOpts) != 1 {
		t.Fatalf("started %d runs, want 1", len(fr.startedOpts))
	}
	opts := fr.startedOpts[0]
	if opts.URL != "https://example.com" || !opts.Healing || opts.TestType != suite.TestTypeComprehensive {
		t.Errorf("opts = %+v", opts)
	}
}

func TestStartRunValidation(t *testing.T) {
	ts := newTestServer(&fakeRunner{}, nil)
	defer ts.Close()

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"bad json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/tests/run", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	fr := &fakeRunner{
		statuses: map[string]runner.StatusInfo{
			"run_1": {RunID: "run_1", Status: suite.StatusRunning, Progress: runner.Progress{CompletedScenarios: 2, TotalScenarios: 5}},
		},
	}
	ts := newTestServer(fr, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/tests/status/run_1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var info runner.StatusInfo
	decodeBody(t, resp, &info)
	if info.Status != suite.StatusRunning || info.Progress.TotalScenarios != 5 {
		t.Errorf("info = %+v", info)
	}

	resp, err = http.Get(ts.URL + "/api/tests/status/run_missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", resp.StatusCode)
	}
}

func TestResultEndpoint(t *testing.T) {
	fr := &fakeRunner{
		results: map[string]*suite.RunResult{
			"run_1": {RunID: "run_1", Status: suite.StatusCompleted, SuccessRate: 100},
		},
		unfinished: map[string]bool{"run_2": true},
	}
	ts := newTestServer(fr, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/tests/results/run_1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result suite.RunResult
	decodeBody(t, resp, &result)
	if result.RunID != "run_1" || result.SuccessRate != 100 {
		t.Errorf("result = %+v", result)
	}

	resp, err = http.Get(ts.URL + "/api/tests/results/run_2")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("unfinished run = %d, want 409", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/tests/results/run_missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", resp.StatusCode)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	n := &fakeNotifications{
		list: []store.Notification{{ID: 1, Type: "warning", Message: "quality score 55.0"}},
	}
	ts := newTestServer(&fakeRunner{}, n)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/notifications")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var list []store.Notification
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0].Type != "warning" {
		t.Errorf("list = %+v", list)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(&fakeRunner{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
