package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/service/analysis"
)

func complexityCmd() *cli.Command {
	return &cli.Command{
		Name:      "complexity",
		Aliases:   []string{"cx"},
		Usage:     "Analyze cyclomatic and cognitive complexity",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "threshold",
				Usage: "Cyclomatic complexity warning threshold (default from config)",
			},
		},
		Action: runComplexityCmd,
	}
}

func runComplexityCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if t := c.Int("threshold"); t > 0 {
		cfg.Thresholds.CyclomaticComplexity = t
	}
	threshold := cfg.Thresholds.CyclomaticComplexity

	opts := runOptions(c)
	tracker := withProgress("Analyzing complexity", &opts)

	svc := analysis.New(analysis.WithConfig(cfg))
	analysisResult, err := svc.AnalyzeComplexity(context.Background(), getPath(c), opts)
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
	for _, file := range analysisResult.Files {
		for _, fn := range file.Functions {
			cyc := fmt.Sprintf("%d", fn.Metrics.Cyclomatic)
			if int(fn.Metrics.Cyclomatic) > threshold && formatter.Colored() {
				cyc = color.RedString(cyc)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%s:%d", file.Path, fn.StartLine),
				fn.Name,
				cyc,
				fmt.Sprintf("%d", fn.Metrics.Cognitive),
				fmt.Sprintf("%d", fn.Metrics.MaxNesting),
				fmt.Sprintf("%d", fn.Metrics.Lines),
			})
		}
	}

	table := output.NewTable(
		"Complexity",
		[]string{"Location", "Function", "Cyclomatic", "Cognitive", "Nesting", "Lines"},
		rows,
		[]string{
			fmt.Sprintf("Files: %d", analysisResult.Summary.TotalFiles),
			fmt.Sprintf("Functions: %d", analysisResult.Summary.TotalFunctions),
			fmt.Sprintf("P90 cyc: %.1f", analysisResult.Summary.Cyclomatic.P90),
			fmt.Sprintf("Max cyc: %.0f", analysisResult.Summary.Cyclomatic.Max),
			"", "",
		},
		analysisResult,
	)
	return formatter.Output(table)
}
