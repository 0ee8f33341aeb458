package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"risparmi/internal/adjust"
	"risparmi/internal/core"
	"risparmi/internal/ingest"
)

// promptCmd prints what would be sent to the completion service.
var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt for an expense table without calling the model",
	RunE:  runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	addInputFlags(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	prompt, err := adjust.NewPrompt(cfg.PromptTemplate)
	if err != nil {
		return err
	}

	f, err := os.Open(inputFile)
	if err != nil {
		return err
	}
	defer f.Close()

	expenses, err := ingest.ParseUpload(filepath.Base(inputFile), f)
	if err != nil {
		return fmt.Errorf("read expenses: %w", err)
	}
	req, err := core.NewAdjustmentRequest(expenses, savingsGoal, excluded)
	if err != nil {
		return err
	}
	text, err := prompt.Render(req)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}
