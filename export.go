package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sstent/runlog/internal/database"
	"github.com/sstent/runlog/internal/export"
)

func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all stored runs as CSV",
		Args:  cobra.NoArgs,
		RunE:  exportRuns,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")

	return cmd
}

func exportRuns(cmd *cobra.Command, args []string) (ret error) {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("output flag: %w", err)
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	runs, err := app.db.ListRuns(cmd.Context(), database.RunFilters{SortOrder: "asc"})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		defer func() {
			if err := file.Close(); err != nil && ret == nil {
				ret = fmt.Errorf("close: %w", err)
			}
		}()
		w = file
	}

	if err := export.WriteCSV(w, runs); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
