package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ehr/interchange/internal/domain/clinical"
	"github.com/ehr/interchange/internal/platform/hl7v2"
)

func hl7Cmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hl7",
		Short: "Parse HL7 v2 clinical messages",
	}

	parseCmd := &cobra.Command{
		Use:   "parse",
		Short: "Extract records and observations from an HL7 file",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			store, _ := cmd.Flags().GetBool("store")
			var outs clinical.Outputs
			outs.JSON, _ = cmd.Flags().GetString("json")
			outs.CSV, _ = cmd.Flags().GetString("csv")
			outs.Parquet, _ = cmd.Flags().GetString("parquet")
			outs.JSON, outs.CSV, outs.Parquet = a.outputPath(outs.JSON), a.outputPath(outs.CSV), a.outputPath(outs.Parquet)

			ctx := cmd.Context()
			svc, err := a.clinicalService(ctx, store)
			if err != nil {
				return err
			}

			res, err := svc.ParseFile(ctx, in, outs)
			if res != nil {
				if werr := clinical.WriteObservationSummary(cmd.OutOrStdout(), "Summary of Observations:", res.Observations); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}
	parseCmd.Flags().String("in", "", "HL7 v2 message file")
	parseCmd.Flags().String("json", "hl7_parsed_data.json", "Extracted records as JSON")
	parseCmd.Flags().String("csv", "hl7_observations.csv", "Observations as CSV")
	parseCmd.Flags().String("parquet", "", "Optional observations Parquet file")
	parseCmd.Flags().Bool("store", false, "Persist the message to Postgres")
	_ = parseCmd.MarkFlagRequired("in")
	cmd.AddCommand(parseCmd)

	listenCmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept HL7 messages over TCP and log their observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _ := cmd.Flags().GetBool("store")
			cfg := hl7v2.ListenerConfig{
				Addr:        a.cfg.IngestAddr,
				Workers:     a.cfg.IngestWorkers,
				MaxRead:     a.cfg.IngestMaxRead,
				ReadTimeout: a.cfg.IngestReadTimeout,
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers, _ = cmd.Flags().GetInt("workers")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := a.clinicalService(ctx, store)
			if err != nil {
				return err
			}
			l := hl7v2.NewListener(cfg, svc.IngestHandler(), a.logger, a.metrics)
			if err := l.Start(); err != nil {
				return err
			}

			<-ctx.Done()
			a.logger.Info().Msg("shutting down listener")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			return l.Shutdown(shutdownCtx)
		},
	}
	listenCmd.Flags().String("addr", "", "Listen address (default INGEST_ADDR)")
	listenCmd.Flags().Int("workers", 0, "Concurrent connections (default INGEST_WORKERS)")
	listenCmd.Flags().Bool("store", false, "Persist accepted messages to Postgres")
	cmd.AddCommand(listenCmd)

	return cmd
}
