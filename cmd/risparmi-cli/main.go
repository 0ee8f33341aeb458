package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"risparmi/internal/cli"
	"risparmi/internal/config"
)

var (
	logLevel string

	// shared by adjust and prompt
	inputFile   string
	savingsGoal int
	excluded    string
)

var rootCmd = &cobra.Command{
	Use:   "risparmi-cli",
	Short: "Build monthly savings plans from an expense table",
	Long: `risparmi-cli reads a CSV or XLSX table of monthly expenses, one column
per category, and produces a plan that reaches a savings goal while leaving
one category untouched.

Configuration comes from the environment and the optional RISPARMI_CONFIG
TOML file, as for the server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
		cli.SetupLogger(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Expense table (.csv or .xlsx)")
	cmd.Flags().IntVarP(&savingsGoal, "goal", "g", 10, "Savings goal as a percentage of the monthly total")
	cmd.Flags().StringVarP(&excluded, "exclude", "x", "", "Category to keep unchanged")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("exclude")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
