package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ehr/interchange/internal/domain/claims"
	"github.com/ehr/interchange/internal/platform/output"
	"github.com/ehr/interchange/internal/platform/segment"
)

func claimsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "Analyze X12 claims and reconcile them against remittances",
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract claims from an 837 file and write the segment dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			out = a.outputPath(out)

			ctx := cmd.Context()
			svc, err := a.claimsService(ctx, false)
			if err != nil {
				return err
			}
			msg, err := a.readInput(in)
			if err != nil {
				return err
			}

			analysis, err := svc.Analyze(ctx, msg)
			if err != nil {
				return err
			}
			if out != "" {
				if err := output.WriteFile(out, func(w io.Writer) error {
					return claims.WriteDump(w, analysis)
				}); err != nil {
					return err
				}
				a.logger.Info().Str("path", out).Msg("segment dump written")
			}
			return claims.WriteClaimSummary(cmd.OutOrStdout(), analysis.Claims)
		},
	}
	analyzeCmd.Flags().String("in", "", "837 claims file")
	analyzeCmd.Flags().String("out", "", "Structured segment dump")
	_ = analyzeCmd.MarkFlagRequired("in")
	cmd.AddCommand(analyzeCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match 837 claims against 835 payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			claimsPath, _ := cmd.Flags().GetString("claims")
			paymentsPath, _ := cmd.Flags().GetString("payments")
			out, _ := cmd.Flags().GetString("out")
			jsonOut, _ := cmd.Flags().GetString("json")
			out, jsonOut = a.outputPath(out), a.outputPath(jsonOut)
			store, _ := cmd.Flags().GetBool("store")

			ctx := cmd.Context()
			svc, err := a.claimsService(ctx, store)
			if err != nil {
				return err
			}

			claimsMsg, err := a.readInput(claimsPath)
			if err != nil {
				return err
			}
			paymentsMsg, err := a.readInput(paymentsPath)
			if err != nil {
				return err
			}

			run, err := svc.Reconcile(ctx, claimsMsg, paymentsMsg)
			if err != nil {
				return err
			}

			var errs []error
			errs = append(errs, output.WriteFile(out, func(w io.Writer) error {
				return claims.WriteReport(w, &run.Reconciliation)
			}))
			if jsonOut != "" {
				errs = append(errs, output.WriteFile(jsonOut, func(w io.Writer) error {
					return claims.WriteJSONReport(w, run)
				}))
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reconciliation complete: %d matched, %d unmatched\n",
				run.MatchedCount, run.UnmatchedCount)
			return nil
		},
	}
	reconcileCmd.Flags().String("claims", "", "837 claims file")
	reconcileCmd.Flags().String("payments", "", "835 remittance file")
	reconcileCmd.Flags().String("out", "reconciliation_report.txt", "Text report")
	reconcileCmd.Flags().String("json", "", "Optional JSON report")
	reconcileCmd.Flags().Bool("store", false, "Persist the run to Postgres")
	_ = reconcileCmd.MarkFlagRequired("claims")
	_ = reconcileCmd.MarkFlagRequired("payments")
	cmd.AddCommand(reconcileCmd)

	return cmd
}

// readInput loads path, logging a missing or unreadable file.
func (a *app) readInput(path string) (segment.Message, error) {
	msg, err := segment.ReadFile(path)
	if err != nil {
		a.logger.Error().Err(err).Str("source", path).Msg("cannot read input")
		return segment.Message{}, err
	}
	return msg, nil
}
