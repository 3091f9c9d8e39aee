package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

// Outcome tells the consume loop what to do with the delivery.
type Outcome int

const (
	// Ack drops the message: it was handled, including handled-by-rejecting.
	Ack Outcome = iota
	// Requeue returns the message to the queue after a transient failure.
	Requeue
)

// jobTransitions is the worker's slice of the status store.
type jobTransitions interface {
	MarkProcessing(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error)
	Complete(ctx context.Context, jobID uuid.UUID, result json.RawMessage) (*model.JobStatus, error)
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string) (*model.JobStatus, error)
}

type fileReader interface {
	Read(path string) ([]byte, error)
}

// Processor handles one job envelope at a time: claim the job, read the
// stored image, analyze, write the terminal status.
type Processor struct {
	jobs     jobTransitions
	files    fileReader
	analyzer *Analyzer
}

func NewProcessor(jobs jobTransitions, files fileReader, analyzer *Analyzer) *Processor {
	return &Processor{jobs: jobs, files: files, analyzer: analyzer}
}

// Process handles one raw message body and decides its fate. Only
// status-store unavailability requeues; everything else is terminal for
// the message.
func (p *Processor) Process(ctx context.Context, body []byte) Outcome {
	var msg model.VisionAnalysisMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		// Poison message: requeueing would loop it forever.
		log.Error().Err(err).Msg("dropping undecodable job envelope")
		return Ack
	}

	logger := log.With().Str("job_id", msg.JobID.String()).Logger()

	// Claiming is conditional on the record still being queued; a job
	// cancelled between publish and consume is skipped untouched.
	if _, err := p.jobs.MarkProcessing(ctx, msg.JobID); err != nil {
		if apperr.IsValidation(err) {
			logger.Info().Err(err).Msg("skipping job no longer claimable")
			return Ack
		}
		logger.Warn().Err(err).Msg("status store unavailable, requeueing job")
		return Requeue
	}

	image, err := p.files.Read(msg.FilePath)
	if err != nil {
		return p.fail(ctx, logger, msg.JobID, "read stored image: "+err.Error())
	}

	result, err := p.analyzer.Analyze(&msg, image)
	if err != nil {
		return p.fail(ctx, logger, msg.JobID, "analysis failed: "+err.Error())
	}

	if _, err := p.jobs.Complete(ctx, msg.JobID, result); err != nil {
		if apperr.IsValidation(err) {
			logger.Warn().Err(err).Msg("job left processing state before completion")
			return Ack
		}
		logger.Warn().Err(err).Msg("status store unavailable on completion, requeueing job")
		return Requeue
	}

	logger.Info().Str("analysis_type", string(msg.AnalysisType)).Msg("job completed")
	return Ack
}

func (p *Processor) fail(ctx context.Context, logger zerolog.Logger, jobID uuid.UUID, reason string) Outcome {
	logger.Error().Str("reason", reason).Msg("job failed")
	if _, err := p.jobs.Fail(ctx, jobID, reason); err != nil {
		if !apperr.IsValidation(err) {
			logger.Warn().Err(err).Msg("status store unavailable on failure, requeueing job")
			return Requeue
		}
	}
	return Ack
}

// Run consumes deliveries until the channel closes or the context ends.
func (p *Processor) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			switch p.Process(ctx, d.Body) {
			case Requeue:
				if err := d.Nack(false, true); err != nil {
					log.Warn().Err(err).Msg("nack failed")
				}
			default:
				if err := d.Ack(false); err != nil {
					log.Warn().Err(err).Msg("ack failed")
				}
			}
		}
	}
}
