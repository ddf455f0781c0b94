package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/probelab/webprobe/internal/browser"
	"github.com/probelab/webprobe/internal/runner"
	"github.com/probelab/webprobe/internal/store"
	"github.com/probelab/webprobe/internal/suite"
)

var (
	runTestType    string
	runHealing     bool
	runTimeout     time.Duration
	runScenarioDir string
	runAttachPort  int
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run <url>",
	Short: "Run tests against a URL",
	Long: `Open the URL in a browser, analyze the page, generate test scenarios
(or load them from a scenario directory), execute them with optional
auto-healing, and print the results with a quality score.`,
	Args: cobra.ExactArgs(1),
	RunE: runTests,
}

func init() {
	runCmd.Flags().StringVarP(&runTestType, "type", "t", "comprehensive", "test type (functional|accessibility|performance|comprehensive)")
	runCmd.Flags().BoolVar(&runHealing, "healing", false, "enable auto-healing retries")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "run timeout (default from config)")
	runCmd.Flags().StringVar(&runScenarioDir, "scenarios", "", "load scenarios from this directory instead of generating them")
	runCmd.Flags().IntVar(&runAttachPort, "attach", 0, "attach to a Chrome instance on this debug port instead of launching one")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runTests(cmd *cobra.Command, args []string) error {
	url := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resultStore, err := store.New(cfg.Store.Path, log)
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	defer resultStore.Close()

	factory, err := sessionFactory(ctx)
	if err != nil {
		return err
	}

	var scenarios []suite.Scenario
	if runScenarioDir != "" {
		scenarios, err = suite.LoadDir(runScenarioDir)
		if err != nil {
			return err
		}
		if len(scenarios) == 0 {
			return fmt.Errorf("no scenarios found in %s", runScenarioDir)
		}
	}

	orch := runner.New(cfg, factory, resultStore, log)
	runID, err := orch.StartRun(ctx, runner.Options{
		URL:       url,
		TestType:  suite.TestType(runTestType),
		Scenarios: scenarios,
		Healing:   runHealing,
		Timeout:   runTimeout,
	})
	if err != nil {
		return err
	}
	log.WithField("run_id", runID).Info("run started")

	result, err := waitForRun(ctx, orch, runID)
	if err != nil {
		return err
	}

	if runJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	printSummary(result)
	if result.Status == suite.StatusFailed {
		return fmt.Errorf("run failed: %s", result.Error)
	}
	return nil
}

// sessionFactory builds per-run browser sessions: a fresh Chrome by default,
// or an attachment to an already-running instance with --attach.
func sessionFactory(ctx context.Context) (runner.ClientFactory, error) {
	if runAttachPort > 0 {
		scanner := browser.NewScanner(log)
		target, err := scanner.Probe(ctx, runAttachPort)
		if err != nil {
			return nil, fmt.Errorf("cannot attach to port %d: %w", runAttachPort, err)
		}
		return func(context.Context) (browser.RemoteClient, error) {
			return browser.NewRemoteSession(target.WebSocketURL, cfg.Browser, log)
		}, nil
	}
	return func(context.Context) (browser.RemoteClient, error) {
		return browser.NewSession(cfg.Browser, log)
	}, nil
}

func waitForRun(ctx context.Context, orch *runner.Orchestrator, runID string) (*suite.RunResult, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("interrupted: %w", ctx.Err())
		case <-ticker.C:
			result, err := orch.Result(runID)
			if errors.Is(err, runner.ErrRunNotFinished) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return result, nil
		}
	}
}

func printSummary(result *suite.RunResult) {
	fmt.Printf("\nRun %s: %s\n", result.RunID, result.Status)
	fmt.Printf("  URL:          %s\n", result.URL)
	fmt.Printf("  Scenarios:    %d passed, %d failed of %d (%.1f%%)\n",
		result.Passed, result.Failed, result.TotalScenarios, result.SuccessRate)
	fmt.Printf("  Duration:     %s\n", result.Duration.Round(time.Millisecond))

	if len(result.HealingActions) > 0 {
		healed := 0
		for _, a := range result.HealingActions {
			if a.Success {
				healed++
			}
		}
		fmt.Printf("  Healing:      %d attempts, %d successful\n", len(result.HealingActions), healed)
	}

	if result.Quality != nil {
		fmt.Printf("  Quality:      %.1f overall\n", result.Quality.Overall)
		for cat, score := range result.Quality.Scores {
			fmt.Printf("    %-17s %.1f\n", string(cat)+":", score)
		}
	}

	for _, sc := range result.Scenarios {
		if sc.Passed {
			continue
		}
		fmt.Printf("  FAILED %s: %s\n", sc.ScenarioID, sc.Error)
	}
}
