package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/probelab/webprobe/internal/browser"
	"github.com/probelab/webprobe/internal/runner"
	"github.com/probelab/webprobe/internal/server"
	"github.com/probelab/webprobe/internal/store"
	"github.com/probelab/webprobe/internal/suite"
	"github.com/probelab/webprobe/internal/watcher"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve test runs over HTTP",
	Long: `Start the HTTP API. Runs can be started with POST /api/tests/run and
inspected with GET /api/tests/status/{id} and GET /api/tests/results/{id}.
When a scenario directory is configured, its YAML files are watched and
hot-reloaded.`,
	RunE: serve,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// sharedScenarios is the hot-reloadable scenario set served runs start from.
type sharedScenarios struct {
	mu        sync.RWMutex
	scenarios []suite.Scenario
}

func (s *sharedScenarios) set(scenarios []suite.Scenario) {
	s.mu.Lock()
	s.scenarios = scenarios
	s.mu.Unlock()
}

func (s *sharedScenarios) get() []suite.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]suite.Scenario, len(s.scenarios))
	copy(out, s.scenarios)
	return out
}

// watchedRunner injects the watched scenario set into runs that do not bring
// their own scenarios.
type watchedRunner struct {
	*runner.Orchestrator
	shared *sharedScenarios
}

func (w *watchedRunner) StartRun(ctx context.Context, opts runner.Options) (string, error) {
	if len(opts.Scenarios) == 0 && w.shared != nil {
		opts.Scenarios = w.shared.get()
	}
	return w.Orchestrator.StartRun(ctx, opts)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverCfg := cfg.Server
	if serveHost != "" {
		serverCfg.Host = serveHost
	}
	if servePort > 0 {
		serverCfg.Port = servePort
	}

	resultStore, err := store.New(cfg.Store.Path, log)
	if err != nil {
		return err
	}
	defer resultStore.Close()

	factory := func(context.Context) (browser.RemoteClient, error) {
		return browser.NewSession(cfg.Browser, log)
	}
	orch := runner.New(cfg, factory, resultStore, log)
	api := &watchedRunner{Orchestrator: orch}

	if dir := cfg.Runner.ScenarioDir; dir != "" {
		shared := &sharedScenarios{}
		api.shared = shared

		if scenarios, err := suite.LoadDir(dir); err != nil {
			log.WithError(err).Warn("initial scenario load failed")
		} else {
			shared.set(scenarios)
		}

		w, err := watcher.NewScenarioWatcher(dir, log)
		if err != nil {
			return err
		}
		w.OnReload(shared.set)
		go func() {
			if err := w.Start(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("scenario watcher stopped")
			}
		}()
	}

	srv := server.New(serverCfg, api, resultStore, log)
	return srv.ListenAndServe(ctx)
}
