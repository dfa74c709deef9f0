package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "laborwatch",
	Short: "Labor-law compliance research service",
	Long: `laborwatch tracks labor-law compliance requirements across city, county,
state and federal jurisdictions. It researches requirements through an
external research API, reconciles discovered facts against existing records,
and streams check progress to admin surfaces.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "laborwatch.yaml", "Path to the YAML config file")
}
