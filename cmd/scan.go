package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/probelab/webprobe/internal/browser"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find attachable Chrome instances",
	Long: `Probe localhost for Chrome instances started with
--remote-debugging-port. Found instances can be used with 'run --attach'.`,
	RunE: scan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func scan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets := browser.NewScanner(log).Scan(ctx)
	if len(targets) == 0 {
		fmt.Println("No debuggable Chrome instances found.")
		fmt.Println("Start one with: chrome --remote-debugging-port=9222")
		return nil
	}
	for _, t := range targets {
		fmt.Printf("port %d: %s\n", t.Port, t.Browser)
	}
	return nil
}
