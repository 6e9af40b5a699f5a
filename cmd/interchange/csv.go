package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehr/interchange/internal/platform/flatfile"
)

func csvCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Flat-file utilities",
	}

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Keep only rows with the expected column count",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			out = a.outputPath(out)
			columns := a.cfg.CSVExpectedColumns
			if cmd.Flags().Changed("columns") {
				columns, _ = cmd.Flags().GetInt("columns")
			}
			if columns < 1 {
				return fmt.Errorf("--columns must be positive, got %d", columns)
			}

			stats, err := flatfile.CleanFile(in, out, columns, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Kept %d rows, dropped %d\n", stats.Kept, stats.Dropped)
			return nil
		},
	}
	cleanCmd.Flags().String("in", "", "Input CSV file")
	cleanCmd.Flags().String("out", "", "Cleaned CSV file")
	cleanCmd.Flags().Int("columns", 0, "Expected column count (default CSV_EXPECTED_COLUMNS)")
	_ = cleanCmd.MarkFlagRequired("in")
	_ = cleanCmd.MarkFlagRequired("out")
	cmd.AddCommand(cleanCmd)

	return cmd
}
