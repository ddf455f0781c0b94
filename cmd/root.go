package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/probelab/webprobe/internal/config"
)

var (
	cfgProject string
	verbose    bool

	cfg *config.Config
	log = logrus.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webprobe",
	Short: "Webprobe - auto-healing browser QA",
	Long: `Webprobe drives a browser through generated or hand-written test
scenarios, recovers from flaky automation failures with its healing engine,
and scores each page on performance, accessibility, SEO, and functionality.

Examples:
  webprobe run https://example.com              # analyze, generate, and run tests
  webprobe run https://example.com --healing    # with auto-healing enabled
  webprobe analyze https://example.com          # score a page without running tests
  webprobe serve                                # expose runs over HTTP`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgProject, "project", "p", ".", "project directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "verbose output")
}

// initConfig loads .env, sets up logging, and reads the project config.
// A missing config file is fine; defaults plus WEBPROBE_* env vars apply.
func initConfig() {
	// .env is optional.
	_ = godotenv.Load()

	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	loader := config.NewLoader(cfgProject)
	loaded, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
}
