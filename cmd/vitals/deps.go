package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/service/analysis"
)

func depsCmd() *cli.Command {
	return &cli.Command{
		Name:      "deps",
		Aliases:   []string{"dependencies"},
		Usage:     "Analyze dependency manifests for conflicts and outdated pins",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "feed",
				Usage: "Path of a latest-version feed file for the outdated check",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "List every declared dependency, not only conflicts and outdated",
			},
		},
		Action: runDepsCmd,
	}
}

func runDepsCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if feed := c.String("feed"); feed != "" {
		cfg.Dependencies.Feed = feed
	}

	opts := runOptions(c)
	tracker := withProgress("Reading manifests", &opts)

	svc := analysis.New(analysis.WithConfig(cfg))
	analysisResult, err := svc.AnalyzeDependencies(context.Background(), getPath(c), opts)
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
	for _, conflict := range analysisResult.Conflicts {
		rows = append(rows, []string{
			conflict.Name,
			"conflict",
			strings.Join(conflict.Constraints, " vs "),
			strings.Join(conflict.Manifests, ", "),
		})
	}
	for _, od := range analysisResult.Outdated {
		rows = append(rows, []string{
			od.Name,
			"outdated",
			fmt.Sprintf("%s (latest %s)", od.Constraint, od.Latest),
			od.Manifest,
		})
	}
	if c.Bool("all") {
		for _, spec := range analysisResult.Specs {
			rows = append(rows, []string{
				spec.Name,
				"declared",
				spec.Constraint,
				spec.Manifest,
			})
		}
	}

	table := output.NewTable(
		"Dependencies",
		[]string{"Package", "Status", "Constraint", "Manifest"},
		rows,
		[]string{
			fmt.Sprintf("Manifests: %d", analysisResult.Summary.Manifests),
			fmt.Sprintf("Packages: %d", analysisResult.Summary.Packages),
			fmt.Sprintf("Conflicts: %d", analysisResult.Summary.Conflicts),
			fmt.Sprintf("Outdated: %d", analysisResult.Summary.Outdated),
		},
		analysisResult,
	)
	return formatter.Output(table)
}
