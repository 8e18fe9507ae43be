package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/progress"
	"github.com/panbanda/vitals/internal/service/analysis"
	"github.com/panbanda/vitals/pkg/config"
)

// getPath returns the root from positional args, defaulting to "."
func getPath(c *cli.Context) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return "."
}

// loadConfig loads the --config file when given, otherwise searches the
// standard locations.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.LoadOrDefault(), nil
}

// newFormatter builds the output formatter from the global flags, falling
// back to the configured format when --format is not given.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	name := c.String("format")
	if name == "" {
		name = cfg.Output.Format
	}
	colored := cfg.Output.Color && !c.Bool("no-color") && c.String("output") == ""
	return output.NewFormatter(output.ParseFormat(name), c.String("output"), colored)
}

// runOptions collects the per-run overrides shared by the analyze commands.
// Flags a command does not define read as zero and leave the config value
// in effect.
func runOptions(c *cli.Context) analysis.RunOptions {
	return analysis.RunOptions{
		CacheDir:      c.String("cache-dir"),
		NoCache:       c.Bool("no-cache"),
		Workers:       c.Int("jobs"),
		MemoryLimitMB: c.Int("memory-limit"),
	}
}

// withProgress attaches a stderr progress bar to a run. Call FinishSuccess
// on the returned tracker before writing the report.
func withProgress(label string, opts *analysis.RunOptions) *progress.Tracker {
	tracker := progress.NewTracker(label, 0)
	opts.OnStage = tracker.Stage
	opts.OnProgress = tracker.Tick
	return tracker
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
