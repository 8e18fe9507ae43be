package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/service/analysis"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Usage:     "Rank symbols by PageRank centrality over the reference graph",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top",
				Value: 20,
				Usage: "Number of top-ranked symbols to show",
			},
		},
		Action: runGraphCmd,
	}
}

func runGraphCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts := runOptions(c)
	tracker := withProgress("Building symbol graph", &opts)

	svc := analysis.New(analysis.WithConfig(cfg))
	summary, err := svc.AnalyzeGraph(context.Background(), getPath(c), c.Int("top"), opts)
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
	for _, ranked := range summary.Ranked {
		rows = append(rows, []string{
			ranked.Symbol.Qualified,
			string(ranked.Symbol.Kind),
			fmt.Sprintf("%s:%d", ranked.Symbol.File, ranked.Symbol.StartLine),
			fmt.Sprintf("%.4f", ranked.Score),
			fmt.Sprintf("%d", ranked.InDegree),
			fmt.Sprintf("%d", ranked.OutDegree),
		})
	}

	table := output.NewTable(
		"Symbol Graph",
		[]string{"Symbol", "Kind", "Location", "Rank", "In", "Out"},
		rows,
		[]string{
			fmt.Sprintf("Symbols: %d", summary.Symbols),
			fmt.Sprintf("References: %d", summary.References),
			fmt.Sprintf("Unresolved: %d", summary.Unresolved),
			"", "", "",
		},
		summary,
	)
	return formatter.Output(table)
}
