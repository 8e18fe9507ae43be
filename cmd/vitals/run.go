package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/report"
	"github.com/panbanda/vitals/internal/service/analysis"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run every enabled analyzer and print the merged report",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Restrict analysis to paths matching this glob (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude paths matching this glob (repeatable)",
			},
			&cli.StringFlag{
				Name:  "analyzers",
				Usage: "Comma-separated analyzers to run: complexity, deadcode, duplicates, dependencies, globals",
			},
			&cli.StringFlag{
				Name:  "severity",
				Usage: "Drop findings below this severity: low, medium, high",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Override the cache directory",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Abort the run after this duration (report is marked partial)",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Exit 1 when high-severity findings remain",
			},
			&cli.IntFlag{
				Name:  "jobs",
				Usage: "Worker pool size (default: twice the CPU count)",
			},
			&cli.IntFlag{
				Name:  "memory-limit",
				Usage: "Soft memory limit in MB; 0 disables the monitor",
			},
			&cli.StringFlag{
				Name:  "feed",
				Usage: "Path of a latest-version feed file for the outdated check",
			},
		},
		Action: runRunCmd,
	}
}

func runRunCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	cfg.Analysis.Include = append(cfg.Analysis.Include, c.StringSlice("include")...)
	cfg.Exclude.Patterns = append(cfg.Exclude.Patterns, c.StringSlice("exclude")...)
	if names := c.String("analyzers"); names != "" {
		if err := cfg.Analysis.Select(strings.Split(names, ",")); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}
	if sev := c.String("severity"); sev != "" {
		switch sev {
		case "low", "medium", "high":
			cfg.Output.SeverityFloor = sev
		default:
			return cli.Exit(fmt.Sprintf("invalid severity %q (want low, medium, or high)", sev), 2)
		}
	}
	if c.Bool("strict") {
		cfg.Output.Strict = true
	}
	if feed := c.String("feed"); feed != "" {
		cfg.Dependencies.Feed = feed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	opts := runOptions(c)
	tracker := withProgress("Analyzing", &opts)

	svc := analysis.New(analysis.WithConfig(cfg))
	rep, err := svc.Run(ctx, getPath(c), opts)
	if err != nil {
		tracker.FinishError(err)
		return cli.Exit(err.Error(), 2)
	}
	tracker.FinishSuccess()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer formatter.Close()

	verbose := cfg.Output.Verbose || c.Bool("verbose")
	if err := formatter.Output(report.New(rep, verbose)); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	if cfg.Output.Strict {
		if n := rep.HighCount(); n > 0 {
			return cli.Exit(fmt.Sprintf("%d high-severity findings", n), 1)
		}
	}
	return nil
}
