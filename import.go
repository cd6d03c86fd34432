package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func NewImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import Apple Health, GPX, CSV or FIT files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  importFiles,
	}
}

func importFiles(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	var failed int
	for _, path := range args {
		summary, err := app.ingester.IngestFile(cmd.Context(), filepath.Base(path), path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: imported %d, skipped %d, total %d\n",
			path, summary.Imported, summary.Skipped, summary.Total)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
