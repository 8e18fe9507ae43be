package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/output"
	scannerSvc "github.com/panbanda/vitals/internal/service/scanner"
)

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "List the files the analyzers would see",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifests",
				Usage: "List only dependency manifests",
			},
		},
		Action: runScanCmd,
	}
}

func runScanCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	scan, err := scannerSvc.New(scannerSvc.WithConfig(cfg)).ScanPath(getPath(c))
	if err != nil {
		return err
	}

	files := scan.Files
	if c.Bool("manifests") {
		files = scan.Manifests()
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	var rows [][]string
	for _, f := range files {
		kind := f.Language
		if f.Manifest {
			kind = "manifest"
		}
		rows = append(rows, []string{
			f.Path,
			kind,
			fmt.Sprintf("%d", f.Size),
			truncate(f.Hash, 12),
		})
	}

	table := output.NewTable(
		"Indexed Files",
		[]string{"Path", "Kind", "Bytes", "Hash"},
		rows,
		[]string{
			fmt.Sprintf("Files: %d", len(files)),
			fmt.Sprintf("Sources: %d", len(scan.Sources())),
			fmt.Sprintf("Manifests: %d", len(scan.Manifests())),
			fmt.Sprintf("Issues: %d", len(scan.Findings)),
		},
		files,
	)
	return formatter.Output(table)
}
