package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"risparmi/internal/backend"
	"risparmi/internal/core"
	"risparmi/internal/services"
)

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Compute a savings plan and write it as CSV",
	Long: `Compute a savings plan for an expense table and write the adjusted
expenses as CSV.

Examples:
  risparmi-cli adjust -f expenses.csv -g 20 -x Rent
  risparmi-cli adjust -f expenses.xlsx -g 15 -x Food --strategy local --out plan.csv`,
	RunE: runAdjust,
}

var (
	adjustStrategy string
	adjustOut      string
)

func init() {
	rootCmd.AddCommand(adjustCmd)
	addInputFlags(adjustCmd)
	adjustCmd.Flags().StringVar(&adjustStrategy, "strategy", "", "Override the adjust strategy (model|local)")
	adjustCmd.Flags().StringVarP(&adjustOut, "out", "o", "", "Output file (default: stdout)")
}

func runAdjust(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	if adjustStrategy != "" {
		s := core.Strategy(adjustStrategy)
		if !s.IsValid() {
			return fmt.Errorf("invalid strategy %q: must be one of [model local]", adjustStrategy)
		}
		bcfg = bcfg.WithStrategy(s)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	planner, err := backend.NewFactory(slog.Default(), nil, nil).CreatePlanner(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("initialize planner: %w", err)
	}
	if planner.Cleanup != nil {
		defer planner.Cleanup()
	}

	f, err := os.Open(inputFile)
	if err != nil {
		return err
	}
	defer f.Close()

	svc := services.NewPlanService(planner.Planner)
	res, err := svc.Run(ctx, filepath.Base(inputFile), f, savingsGoal, excluded)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if adjustOut != "" {
		file, err := os.Create(adjustOut)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	if _, err := io.Copy(out, res.CSV); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}

	slog.Info("Plan created",
		"plan_id", res.Plan.ID,
		"planner", planner.Describe,
		"saved", core.FormatAmount(res.Plan.Saved()))
	return nil
}
