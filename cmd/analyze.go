package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/probelab/webprobe/internal/browser"
	"github.com/probelab/webprobe/internal/quality"
)

var (
	analyzeStatic bool
	analyzeJSON   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Score a page without running tests",
	Long: `Load the URL, collect quality measurements, and print the category
scores. With --static the page HTML is fetched through the browser but scored
from markup alone, skipping script-dependent measurements.`,
	Args: cobra.ExactArgs(1),
	RunE: analyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeStatic, "static", false, "score from static HTML only")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print metrics as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func analyze(cmd *cobra.Command, args []string) error {
	url := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := browser.NewSession(cfg.Browser, log)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Navigate(ctx, url); err != nil {
		return err
	}
	if err := session.WaitForPageLoad(ctx, cfg.Browser.PageLoadTimeout); err != nil {
		return err
	}

	var raw quality.Raw
	if analyzeStatic {
		html, err := session.PageHTML(ctx)
		if err != nil {
			return err
		}
		snap, err := browser.ParseSnapshot(html, url)
		if err != nil {
			return err
		}
		raw = quality.Raw{
			Accessibility: snap.AccessibilityMeasurements(),
			SEO:           snap.SEOMeasurements(),
		}
	} else {
		raw = quality.Collect(ctx, browser.NewAnalyzer(session, log), log)
	}

	metrics := quality.NewEngine(cfg.Quality, log).Assess(raw)

	if analyzeJSON {
		return json.NewEncoder(os.Stdout).Encode(metrics)
	}
	fmt.Printf("Quality for %s\n", url)
	fmt.Printf("  Overall: %.1f\n", metrics.Overall)
	for cat, score := range metrics.Scores {
		fmt.Printf("  %-15s %.1f\n", string(cat)+":", score)
	}
	return nil
}
