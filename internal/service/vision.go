// Package service orchestrates the submission pipeline: file storage, the
// status store and the broker publisher, in that order.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

// fileStore is the slice of the storage manager the service needs.
type fileStore interface {
	Store(data []byte, originalFilename string) (*model.StoredFile, error)
	CleanupExpired() (int, error)
	Stats() (*model.FileStats, error)
}

// publisher hands job envelopes to the broker.
type publisher interface {
	Publish(ctx context.Context, msg *model.VisionAnalysisMessage) error
}

// statusStore is the slice of the job store the gateway touches.
type statusStore interface {
	Put(ctx context.Context, job *model.JobStatus) error
	Get(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error)
	TransitionToCancelled(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error)
	MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error
}

// VisionService implements the submit / get-status / cancel pipeline plus
// the file maintenance operations.
type VisionService struct {
	files  fileStore
	broker publisher
	jobs   statusStore
}

func NewVisionService(files fileStore, broker publisher, jobs statusStore) *VisionService {
	return &VisionService{files: files, broker: broker, jobs: jobs}
}

// SubmitRequest is a parsed, validated submission.
type SubmitRequest struct {
	Image        []byte
	Filename     string
	AnalysisType model.AnalysisType
	Parameters   model.AnalysisParameters
}

// SubmitResult is what the client gets back for an accepted job.
type SubmitResult struct {
	JobID                   uuid.UUID `json:"job_id"`
	Status                  string    `json:"status"`
	Message                 string    `json:"message"`
	EstimatedProcessingTime int       `json:"estimated_processing_time"`
}

// Submit stores the image, writes the queued status record, then publishes
// the job envelope. The three writes are not transactional: if the publish
// fails after the status write, the record is compensated to failed so the
// job never stays visibly queued with no message behind it.
func (s *VisionService) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	stored, err := s.files.Store(req.Image, req.Filename)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New()
	if err := s.jobs.Put(ctx, model.NewQueuedJob(jobID)); err != nil {
		return nil, err
	}

	msg := &model.VisionAnalysisMessage{
		JobID:        jobID,
		AnalysisType: req.AnalysisType,
		FilePath:     stored.StoredPath,
		FileHash:     stored.FileHash,
		Metadata: model.ImageMetadata{
			SizeBytes:        stored.SizeBytes,
			Width:            stored.Width,
			Height:           stored.Height,
			Format:           stored.Format,
			OriginalFilename: stored.OriginalFilename,
		},
		Parameters: req.Parameters,
		Timestamp:  time.Now().UTC(),
	}

	if err := s.broker.Publish(ctx, msg); err != nil {
		// Compensating write: without it the job would poll as queued
		// forever while no worker ever sees it. The stored file is left
		// for the cleanup sweep.
		compensation := "failed to queue analysis job: " + err.Error()
		if markErr := s.jobs.MarkFailed(ctx, jobID, compensation); markErr != nil {
			log.Error().Err(markErr).
				Str("job_id", jobID.String()).
				Msg("compensating status write failed, job record left queued")
		}
		return nil, err
	}

	log.Info().
		Str("job_id", jobID.String()).
		Str("analysis_type", string(req.AnalysisType)).
		Int64("size_bytes", stored.SizeBytes).
		Msg("vision analysis job submitted")

	return &SubmitResult{
		JobID:                   jobID,
		Status:                  string(model.JobStatusQueued),
		Message:                 "Vision analysis job has been queued successfully",
		EstimatedProcessingTime: req.AnalysisType.EstimatedSeconds(),
	}, nil
}

// GetStatus returns the pollable record for the job.
func (s *VisionService) GetStatus(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error) {
	return s.jobs.Get(ctx, jobID)
}

// Cancel moves a queued job to cancelled. Non-queued jobs reject the
// cancel with a Validation error naming the current status.
func (s *VisionService) Cancel(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error) {
	job, err := s.jobs.TransitionToCancelled(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("job_id", jobID.String()).Msg("job cancelled")
	return job, nil
}

// FileStats aggregates the storage directory.
func (s *VisionService) FileStats(_ context.Context) (*model.FileStats, error) {
	return s.files.Stats()
}

// CleanupFiles runs the expiry sweep on demand and returns the count of
// deleted files.
func (s *VisionService) CleanupFiles(_ context.Context) (int, error) {
	return s.files.CleanupExpired()
}
