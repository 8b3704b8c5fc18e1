package commands

import (
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "teamsmith",
	Short: "Teamsmith - LLM-driven competitive team building",
	Long: `Teamsmith coordinates specialized LLM agents (architect, calculator,
critic, refiner) to produce a competitive Pokemon team artifact, with
resilient access to an external stats and damage-calculation service.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(buildCmd)
}
