package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/service/analysis"
)

func duplicatesCmd() *cli.Command {
	return &cli.Command{
		Name:      "duplicates",
		Aliases:   []string{"dup"},
		Usage:     "Detect identical files and near-duplicate code blocks",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-statements",
				Usage: "Minimum statements for a duplicate block (default from config)",
			},
			&cli.Float64Flag{
				Name:  "similarity",
				Usage: "Similarity threshold 0.0-1.0 (default from config)",
			},
		},
		Action: runDuplicatesCmd,
	}
}

func runDuplicatesCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if n := c.Int("min-statements"); n > 0 {
		cfg.Thresholds.DuplicateMinStatements = n
	}
	if s := c.Float64("similarity"); s > 0 {
		cfg.Thresholds.DuplicateSimilarity = s
	}

	opts := runOptions(c)
	tracker := withProgress("Detecting duplicates", &opts)

	svc := analysis.New(analysis.WithConfig(cfg))
	analysisResult, err := svc.AnalyzeDuplicates(context.Background(), getPath(c), opts)
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
	for _, g := range analysisResult.Groups {
		for i, m := range g.Members {
			marker := ""
			if i == g.Canonical {
				marker = "canonical"
			}
			loc := m.Location.File
			if m.Location.StartLine > 0 {
				loc = fmt.Sprintf("%s:%d-%d", m.Location.File, m.Location.StartLine, m.Location.EndLine)
			}
			rows = append(rows, []string{
				truncate(g.ID, 12),
				string(g.Kind),
				loc,
				fmt.Sprintf("%.2f", g.Similarity),
				marker,
			})
		}
	}

	table := output.NewTable(
		"Duplicates",
		[]string{"Group", "Kind", "Location", "Similarity", ""},
		rows,
		[]string{
			fmt.Sprintf("Exact: %d", analysisResult.Summary.ExactGroups),
			fmt.Sprintf("Near: %d", analysisResult.Summary.NearGroups),
			fmt.Sprintf("Dup lines: %d", analysisResult.Summary.DuplicatedLines),
			fmt.Sprintf("Ratio: %.1f%%", analysisResult.Summary.DuplicationRatio*100),
			"",
		},
		analysisResult,
	)
	return formatter.Output(table)
}
