package clinical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/interchange/internal/platform/hl7v2"
	"github.com/ehr/interchange/internal/platform/segment"
	"github.com/ehr/interchange/internal/platform/telemetry"
)

// ErrStorageDisabled is returned by read operations when no repository is
// configured.
var ErrStorageDisabled = errors.New("clinical storage is not configured")

const format = "hl7"

type Service struct {
	parser   *Parser
	messages MessageRepository
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewService wires the clinical service. messages and metrics may be nil.
func NewService(parser *Parser, messages MessageRepository, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		parser:   parser,
		messages: messages,
		logger:   logger.With().Str("component", "clinical").Logger(),
		metrics:  metrics,
	}
}

// Parse validates and extracts one message, storing it when a repository is
// configured.
func (s *Service) Parse(ctx context.Context, msg segment.Message) (*Result, error) {
	res, err := s.parser.Parse(msg)
	if errors.Is(err, hl7v2.ErrNoSegments) {
		return nil, err
	}
	if err != nil {
		s.logFailure(msg.Source, err)
		return nil, err
	}

	for _, d := range res.Diagnostics {
		s.logger.Warn().
			Str("source", msg.Source).
			Int("position", d.Position).
			Str("tag", d.Tag).
			Msg(d.Message)
	}
	s.metrics.SegmentErrors(format, len(res.Diagnostics))
	for _, r := range res.Records {
		s.metrics.RecordExtracted(r.Kind())
	}
	for range res.Observations {
		s.metrics.RecordExtracted(KindObservation)
	}

	if s.messages != nil {
		if err := s.messages.Create(ctx, res.Stored(time.Now().UTC())); err != nil {
			return nil, fmt.Errorf("storing message: %w", err)
		}
	}
	return res, nil
}

// ParseFile reads path, parses it and writes the requested outputs. Nothing
// is written when the input is missing or fails validation.
func (s *Service) ParseFile(ctx context.Context, path string, outs Outputs) (*Result, error) {
	msg, err := segment.ReadFile(path)
	if err != nil {
		s.logger.Error().Err(err).Str("source", path).Msg("cannot read input")
		return nil, err
	}
	s.logger.Info().Str("source", path).Msg("reading HL7 file")

	res, err := s.Parse(ctx, msg)
	if errors.Is(err, hl7v2.ErrNoSegments) {
		s.logger.Error().Str("source", path).Msg("input holds no segments")
	}
	if err != nil {
		return nil, err
	}
	if err := outs.Write(res); err != nil {
		s.logger.Error().Err(err).Str("source", path).Msg("writing outputs failed")
		return res, err
	}
	s.logger.Info().
		Str("source", path).
		Str("json", outs.JSON).
		Str("csv", outs.CSV).
		Str("parquet", outs.Parquet).
		Msg("parsing complete")
	return res, nil
}

// IngestHandler processes payloads from the real-time listener. Invalid
// messages are logged and skipped; valid ones have their observations logged.
// Whitespace-only payloads count as empty and are dropped silently.
func (s *Service) IngestHandler() hl7v2.PayloadHandler {
	return func(ctx context.Context, p hl7v2.Payload) {
		res, err := s.Parse(ctx, segment.Message{Source: p.Remote, Text: string(p.Data)})
		if errors.Is(err, hl7v2.ErrNoSegments) {
			s.metrics.Message(telemetry.OutcomeEmpty)
			return
		}
		if err != nil {
			s.metrics.Message(telemetry.OutcomeRejected)
			return
		}
		s.metrics.Message(telemetry.OutcomeAccepted)

		log := s.logger.With().Str("source", p.Remote).Logger()
		log.Info().Msg("Real-time Observations:")
		for _, o := range res.Observations {
			log.Info().Msg("  " + o.Line())
		}
	}
}

func (s *Service) ListObservations(ctx context.Context, limit, offset int) ([]*StoredObservation, int, error) {
	if s.messages == nil {
		return nil, 0, ErrStorageDisabled
	}
	return s.messages.ListObservations(ctx, limit, offset)
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
