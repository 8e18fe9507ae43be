package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/service/analysis"
)

func deadcodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "deadcode",
		Aliases:   []string{"dead"},
		Usage:     "Find definitions no reachability root can reach",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "confidence",
				Usage: "Minimum confidence 0.0-1.0 for reported candidates (default from config)",
			},
		},
		Action: runDeadcodeCmd,
	}
}

func runDeadcodeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if conf := c.Float64("confidence"); conf > 0 {
		cfg.Thresholds.DeadCodeConfidence = conf
	}

	opts := runOptions(c)
	tracker := withProgress("Finding dead code", &opts)

	svc := analysis.New(analysis.WithConfig(cfg))
	analysisResult, err := svc.AnalyzeDeadCode(context.Background(), getPath(c), opts)
	if err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	var rows [][]string
	for _, cand := range analysisResult.Candidates {
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", cand.File, cand.Line),
			cand.Name,
			string(cand.Kind),
			fmt.Sprintf("%.2f", cand.Confidence),
			truncate(cand.Reason, 60),
		})
	}

	table := output.NewTable(
		"Dead Code",
		[]string{"Location", "Symbol", "Kind", "Confidence", "Reason"},
		rows,
		[]string{
			fmt.Sprintf("Symbols: %d", analysisResult.Summary.TotalSymbols),
			fmt.Sprintf("Roots: %d", analysisResult.Summary.Roots),
			fmt.Sprintf("Reachable: %d", analysisResult.Summary.Reachable),
			fmt.Sprintf("Candidates: %d", analysisResult.Summary.Candidates),
			"",
		},
		analysisResult,
	)
	return formatter.Output(table)
}
