package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"governance-project/config"
	"governance-project/logger"
)

const programName = "govd"

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configFile string
	cfg        *config.Config
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", programName, version)
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Token-weighted governance node with a timelocked execution queue",
		SilenceUsage: true,
		RunE:         serveRun,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config/config.yaml", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logger.InitLogger(loaded.Log.AppLogFile, loaded.Log.Level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
