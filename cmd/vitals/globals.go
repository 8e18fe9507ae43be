package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/service/analysis"
)

func globalsCmd() *cli.Command {
	return &cli.Command{
		Name:      "globals",
		Usage:     "Find module-level names shared across files",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-files",
				Usage: "Distinct files required before a shared name is reported (default from config)",
			},
		},
		Action: runGlobalsCmd,
	}
}

func runGlobalsCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if n := c.Int("min-files"); n > 0 {
		cfg.Globals.MinFiles = n
	}

	opts := runOptions(c)
	tracker := withProgress("Scanning globals", &opts)

	svc := analysis.New(analysis.WithConfig(cfg))
	analysisResult, err := svc.AnalyzeGlobals(context.Background(), getPath(c), opts)
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
	for _, usage := range analysisResult.Usages {
		rows = append(rows, []string{
			usage.Name,
			fmt.Sprintf("%d", len(usage.Files)),
			fmt.Sprintf("%d", usage.Writers),
			truncate(strings.Join(usage.Files, ", "), 70),
		})
	}

	table := output.NewTable(
		"Shared Global State",
		[]string{"Name", "Files", "Writers", "Where"},
		rows,
		[]string{
			fmt.Sprintf("Module vars: %d", analysisResult.Summary.ModuleVariables),
			fmt.Sprintf("Shared: %d", analysisResult.Summary.Shared),
			fmt.Sprintf("Write-shared: %d", analysisResult.Summary.WriteShared),
			"",
		},
		analysisResult,
	)
	return formatter.Output(table)
}
