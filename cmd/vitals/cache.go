package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/internal/output"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the analyzer cache",
		Subcommands: []*cli.Command{
			{
				Name:      "stats",
				Usage:     "Show cache size and age for a project root",
				ArgsUsage: "[path]",
				Flags:     []cli.Flag{cacheDirFlag()},
				Action:    runCacheStatsCmd,
			},
			{
				Name:      "clear",
				Usage:     "Remove the cache store for a project root",
				ArgsUsage: "[path]",
				Flags:     []cli.Flag{cacheDirFlag()},
				Action:    runCacheClearCmd,
			},
		},
	}
}

func cacheDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "cache-dir",
		Usage: "Override the cache directory",
	}
}

func openCache(c *cli.Context) (*cache.Cache, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	dir := cfg.Cache.Dir
	if d := c.String("cache-dir"); d != "" {
		dir = d
	}
	return cache.Open(dir, getPath(c), cache.Options{
		Enabled:    true,
		MaxEntries: cfg.Cache.MaxEntries,
		MaxBytes:   cfg.Cache.MaxBytes,
	})
}

func runCacheStatsCmd(c *cli.Context) error {
	store, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := store.GetStats()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	table := output.NewTable(
		"Cache",
		[]string{"Store", "Entries", "Bytes", "Oldest", "Newest"},
		[][]string{{
			stats.Path,
			fmt.Sprintf("%d", stats.Entries),
			fmt.Sprintf("%d", stats.TotalBytes),
			stats.OldestAge.Round(1e9).String(),
			stats.NewestAge.Round(1e9).String(),
		}},
		nil,
		stats,
	)
	return formatter.Output(table)
}

func runCacheClearCmd(c *cli.Context) error {
	store, err := openCache(c)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	color.Green("Cache cleared")
	return nil
}
