package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/probelab/webprobe/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  `Create .webprobe/config.yaml in the project directory with the default settings.`,
	RunE:  initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initProject(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgProject)
	if loader.IsInitialized() {
		fmt.Printf("Already initialized: %s\n", loader.GetConfigPath())
		return nil
	}
	if err := loader.Save(config.DefaultConfig(), loader.GetConfigPath()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", loader.GetConfigPath())
	return nil
}
