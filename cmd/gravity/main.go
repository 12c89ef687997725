package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rampellisaieshwar/GravityEdits/internal/config"
)

var Version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gravity",
		Short:         "Gravity is a local AI-assisted video editing agent.",
		Long:          "Gravity keeps an edit decision list in a live session, drives the preview player and talks to the analysis, render and chat services.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv(config.EnvConfigPath, configPath)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (overrides "+config.EnvConfigPath+")")

	root.AddCommand(newServeCmd(), newMCPCmd(), newApplyCmd(), newInspectCmd())
	return root
}
