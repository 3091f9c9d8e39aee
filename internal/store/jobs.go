// Package store keeps the pollable job status records in Redis, one TTL'd
// key per job. It is the single source of truth the client polls against.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

// transitionRetries bounds optimistic-transaction retries when a
// concurrent writer touches the same record.
const transitionRetries = 3

// JobStore reads and writes job:<id> records. Conditional transitions use
// WATCH-based optimistic transactions so a cancel can never silently
// overwrite a concurrent processing-start.
type JobStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *JobStore {
	return &JobStore{rdb: rdb, ttl: ttl}
}

func jobKey(id uuid.UUID) string {
	return fmt.Sprintf("job:%s", id)
}

// Put overwrites the record for the job, resetting the absolute TTL.
func (s *JobStore) Put(ctx context.Context, job *model.JobStatus) error {
	data, err := json.Marshal(job)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "serialize job status")
	}
	if err := s.rdb.Set(ctx, jobKey(job.JobID), data, s.ttl).Err(); err != nil {
		return apperr.Wrap(apperr.Service, err, "store job status")
	}
	return nil
}

// Get returns the record, or a NotFound-class Validation error when the
// key is absent or expired; the two are indistinguishable by design.
func (s *JobStore) Get(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error) {
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.New(apperr.Validation, "job not found: %s", jobID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Service, err, "read job status")
	}

	var job model.JobStatus
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "deserialize job status")
	}
	return &job, nil
}

// TransitionToCancelled moves a queued job to cancelled. Any other current
// status rejects the transition with a Validation error naming it. The
// record's TTL is reset on the write.
func (s *JobStore) TransitionToCancelled(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error) {
	return s.transition(ctx, jobID, "cancel", model.JobStatusQueued, func(job *model.JobStatus) {
		job.Status = model.JobStatusCancelled
	})
}

// MarkProcessing moves a queued job to processing; the worker calls this
// before starting analysis so a prior cancel wins the race.
func (s *JobStore) MarkProcessing(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error) {
	return s.transition(ctx, jobID, "start", model.JobStatusQueued, func(job *model.JobStatus) {
		job.Status = model.JobStatusProcessing
	})
}

// Complete moves a processing job to completed with its result payload.
func (s *JobStore) Complete(ctx context.Context, jobID uuid.UUID, result json.RawMessage) (*model.JobStatus, error) {
	return s.transition(ctx, jobID, "complete", model.JobStatusProcessing, func(job *model.JobStatus) {
		job.Status = model.JobStatusCompleted
		job.Result = result
		job.Error = nil
	})
}

// Fail moves a processing job to failed with an explanatory message.
func (s *JobStore) Fail(ctx context.Context, jobID uuid.UUID, errMsg string) (*model.JobStatus, error) {
	return s.transition(ctx, jobID, "fail", model.JobStatusProcessing, func(job *model.JobStatus) {
		job.Status = model.JobStatusFailed
		job.Error = &errMsg
	})
}

// MarkFailed unconditionally overwrites the record as failed. The gateway
// uses it as the compensating write when a broker publish fails after the
// queued record was already visible.
func (s *JobStore) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.UpdatedAt = time.Now().UTC()
	return s.Put(ctx, job)
}

// Ping verifies the backing Redis connection.
func (s *JobStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return apperr.Wrap(apperr.ServiceUnavailable, err, "redis ping")
	}
	return nil
}

// transition performs a conditional read-modify-write: the record must
// currently be in from, otherwise the caller gets a Validation error
// naming the actual status. Concurrent writers abort the transaction and
// the read is retried, so the final check always ran against fresh state.
func (s *JobStore) transition(
	ctx context.Context,
	jobID uuid.UUID,
	action string,
	from model.JobStatusType,
	mutate func(*model.JobStatus),
) (*model.JobStatus, error) {
	key := jobKey(jobID)
	var updated *model.JobStatus

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperr.New(apperr.Validation, "job not found: %s", jobID)
		}
		if err != nil {
			return apperr.Wrap(apperr.Service, err, "read job status")
		}

		var job model.JobStatus
		if err := json.Unmarshal(data, &job); err != nil {
			return apperr.Wrap(apperr.Internal, err, "deserialize job status")
		}
		if job.Status != from {
			return apperr.New(apperr.Validation, "cannot %s job in status: %s", action, job.Status)
		}

		mutate(&job)
		job.UpdatedAt = time.Now().UTC()

		buf, err := json.Marshal(&job)
		if err != nil {
			return apperr.Wrap(apperr.Internal, err, "serialize job status")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &job
		return nil
	}

	for attempt := 0; attempt < transitionRetries; attempt++ {
		err := s.rdb.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			log.Warn().
				Str("job_id", jobID.String()).
				Str("action", action).
				Msg("concurrent status update, retrying transition")
			continue
		}
		if err != nil {
			var appErr *apperr.Error
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, apperr.Wrap(apperr.Service, err, "status transition")
		}
		return updated, nil
	}

	return nil, apperr.New(apperr.Service, "status transition kept conflicting with concurrent writers")
}
