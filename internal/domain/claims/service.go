package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/interchange/internal/platform/segment"
	"github.com/ehr/interchange/internal/platform/telemetry"
)

// ErrStorageDisabled is returned by read operations when no repository is
// configured.
var ErrStorageDisabled = errors.New("reconciliation storage is not configured")

const format = "x12"

type Service struct {
	parser  *Parser
	runs    ReconciliationRepository
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// NewService wires the claims service. runs and metrics may be nil.
func NewService(parser *Parser, runs ReconciliationRepository, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		parser:  parser,
		runs:    runs,
		logger:  logger.With().Str("component", "claims").Logger(),
		metrics: metrics,
	}
}

// Analyze parses one claims message.
func (s *Service) Analyze(ctx context.Context, msg segment.Message) (*Analysis, error) {
	a, err := s.parser.Analyze(msg)
	if err != nil {
		s.logFailure(msg.Source, err)
		return nil, err
	}
	s.record(msg.Source, a.Diagnostics)
	for _, e := range a.Extractions {
		if e.Record != nil {
			s.metrics.RecordExtracted(e.Record.Kind())
		}
	}
	s.logger.Info().Str("source", msg.Source).
		Int("segments", len(a.Extractions)).
		Int("claims", a.Claims.Len()).
		Msg("claims analyzed")
	return a, nil
}

// Reconcile matches a claims message against a payments message. Both must
// pass validation; otherwise nothing is reconciled. The run is stored when a
// repository is configured.
func (s *Service) Reconcile(ctx context.Context, claimsMsg, paymentsMsg segment.Message) (*Run, error) {
	a, err := s.Analyze(ctx, claimsMsg)
	if err != nil {
		return nil, err
	}
	rem, err := s.parser.Payments(paymentsMsg)
	if err != nil {
		s.logFailure(paymentsMsg.Source, err)
		return nil, err
	}
	s.record(paymentsMsg.Source, rem.Diagnostics)
	for range rem.Payments.Len() {
		s.metrics.RecordExtracted(KindPayment)
	}

	rec := Match(a.Claims, rem.Payments)
	run := &Run{
		ClaimsSource:   claimsMsg.Source,
		PaymentsSource: paymentsMsg.Source,
		Reconciliation: *rec,
		MatchedCount:   len(rec.Matched),
		UnmatchedCount: len(rec.Unmatched),
		Diagnostics:    append(append([]segment.Diagnostic{}, a.Diagnostics...), rem.Diagnostics...),
	}
	s.metrics.Reconciled(run.MatchedCount, run.UnmatchedCount)

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("storing reconciliation: %w", err)
		}
	} else {
		run.ID = uuid.New()
	}

	s.logger.Info().
		Str("run_id", run.ID.String()).
		Int("matched", run.MatchedCount).
		Int("unmatched", run.UnmatchedCount).
		Msg("reconciliation complete")
	return run, nil
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	if s.runs == nil {
		return nil, ErrStorageDisabled
	}
	return s.runs.GetByID(ctx, id)
}

func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	if s.runs == nil {
		return nil, 0, ErrStorageDisabled
	}
	return s.runs.List(ctx, limit, offset)
}

func (s *Service) logFailure(source string, err error) {
	var vfe *segment.ValidationFailedError
	if !errors.As(err, &vfe) {
		s.logger.Error().Err(err).Str("source", source).Msg("cannot process message")
		return
	}
	s.logger.Error().Str("source", source).Int("errors", len(vfe.Errors)).Msg("validation errors found")
	for _, ve := range vfe.Errors {
		s.logger.Error().Str("source", source).Str("kind", string(ve.Kind)).Str("tag", ve.Tag).Msg(ve.Message)
	}
}

func (s *Service) record(source string, diags []segment.Diagnostic) {
	malformed := 0
	for _, d := range diags {
		if d.Kind == segment.MalformedSegment {
			malformed++
		}
		s.logger.Warn().
			Str("source", source).
			Str("kind", string(d.Kind)).
			Int("position", d.Position).
			Str("tag", d.Tag).
			Msg(d.Message)
	}
	s.metrics.SegmentErrors(format, malformed)
}
