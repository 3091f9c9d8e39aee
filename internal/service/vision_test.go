package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

type fakeFileStore struct {
	stored     []*model.StoredFile
	storeErr   error
	cleanupN   int
	cleanupErr error
}

func (f *fakeFileStore) Store(data []byte, originalFilename string) (*model.StoredFile, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	sf := &model.StoredFile{
		FileID:           uuid.New(),
		OriginalFilename: originalFilename,
		StoredPath:       "/tmp/vision_uploads/" + originalFilename,
		FileHash:         "deadbeef",
		SizeBytes:        int64(len(data)),
		Format:           "jpeg",
		Width:            8,
		Height:           8,
		CreatedAt:        time.Now().UTC(),
		ExpiresAt:        time.Now().UTC().Add(24 * time.Hour),
	}
	f.stored = append(f.stored, sf)
	return sf, nil
}

func (f *fakeFileStore) CleanupExpired() (int, error) { return f.cleanupN, f.cleanupErr }

func (f *fakeFileStore) Stats() (*model.FileStats, error) {
	return &model.FileStats{TotalFiles: len(f.stored)}, nil
}

type fakePublisher struct {
	published []*model.VisionAnalysisMessage
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, msg *model.VisionAnalysisMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

type fakeStatusStore struct {
	records map[uuid.UUID]*model.JobStatus
	putErr  error
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{records: make(map[uuid.UUID]*model.JobStatus)}
}

func (f *fakeStatusStore) Put(_ context.Context, job *model.JobStatus) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.records[job.JobID] = job
	return nil
}

func (f *fakeStatusStore) Get(_ context.Context, jobID uuid.UUID) (*model.JobStatus, error) {
	job, ok := f.records[jobID]
	if !ok {
		return nil, apperr.New(apperr.Validation, "job not found: %s", jobID)
	}
	return job, nil
}

func (f *fakeStatusStore) TransitionToCancelled(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error) {
	job, err := f.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusQueued {
		return nil, apperr.New(apperr.Validation, "cannot cancel job in status: %s", job.Status)
	}
	job.Status = model.JobStatusCancelled
	job.UpdatedAt = time.Now().UTC()
	return job, nil
}

func (f *fakeStatusStore) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	job, err := f.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func newTestService() (*VisionService, *fakeFileStore, *fakePublisher, *fakeStatusStore) {
	files := &fakeFileStore{}
	broker := &fakePublisher{}
	jobs := newFakeStatusStore()
	return NewVisionService(files, broker, jobs), files, broker, jobs
}

func TestSubmitHappyPath(t *testing.T) {
	svc, files, broker, jobs := newTestService()

	res, err := svc.Submit(context.Background(), &SubmitRequest{
		Image:        []byte("fake image bytes"),
		Filename:     "leaf.jpg",
		AnalysisType: model.AnalysisPestDetection,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if res.Status != "queued" {
		t.Errorf("status = %q, want queued", res.Status)
	}
	if res.EstimatedProcessingTime != 30 {
		t.Errorf("estimate = %d, want 30 for pest detection", res.EstimatedProcessingTime)
	}
	if len(files.stored) != 1 {
		t.Errorf("files stored = %d, want 1", len(files.stored))
	}
	if len(broker.published) != 1 {
		t.Fatalf("messages published = %d, want exactly 1", len(broker.published))
	}

	msg := broker.published[0]
	if msg.JobID != res.JobID {
		t.Error("envelope job id must match the returned job id")
	}
	if msg.FilePath != files.stored[0].StoredPath {
		t.Error("envelope must reference the stored file path")
	}

	job, err := jobs.Get(context.Background(), res.JobID)
	if err != nil {
		t.Fatalf("status record missing after submit: %v", err)
	}
	if job.Status != model.JobStatusQueued {
		t.Errorf("stored status = %s, want queued", job.Status)
	}
}

func TestSubmitOrdersStatusBeforePublish(t *testing.T) {
	svc, _, broker, jobs := newTestService()
	jobs.putErr = apperr.New(apperr.Service, "redis down")

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		Image: []byte("x"), Filename: "a.jpg", AnalysisType: model.AnalysisComprehensive,
	})
	if err == nil {
		t.Fatal("expected submit to fail when status write fails")
	}
	if len(broker.published) != 0 {
		t.Error("nothing may be published when the status write fails")
	}
}

func TestSubmitCompensatesOnPublishFailure(t *testing.T) {
	svc, _, broker, jobs := newTestService()
	broker.err = apperr.New(apperr.Service, "channel closed")

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		Image: []byte("x"), Filename: "a.jpg", AnalysisType: model.AnalysisComprehensive,
	})
	if err == nil {
		t.Fatal("expected submit to surface the publish failure")
	}
	if apperr.KindOf(err) != apperr.Service {
		t.Errorf("kind = %v, want Service", apperr.KindOf(err))
	}

	// The queued record must have been overwritten to failed.
	if len(jobs.records) != 1 {
		t.Fatalf("records = %d, want 1", len(jobs.records))
	}
	for _, job := range jobs.records {
		if job.Status != model.JobStatusFailed {
			t.Errorf("status = %s, want failed after compensation", job.Status)
		}
		if job.Error == nil || !strings.Contains(*job.Error, "failed to queue analysis job") {
			t.Errorf("error = %v, want compensation message", job.Error)
		}
	}
}

func TestSubmitValidationFailureHasNoSideEffects(t *testing.T) {
	svc, files, broker, jobs := newTestService()
	files.storeErr = apperr.New(apperr.Validation, "unsupported format: tiff")

	_, err := svc.Submit(context.Background(), &SubmitRequest{
		Image: []byte("x"), Filename: "a.tiff", AnalysisType: model.AnalysisComprehensive,
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("kind = %v, want Validation", apperr.KindOf(err))
	}
	if len(broker.published) != 0 || len(jobs.records) != 0 {
		t.Error("rejected submit must have zero side effects")
	}
}

func TestCancelDelegatesConditionally(t *testing.T) {
	svc, _, _, jobs := newTestService()

	job := model.NewQueuedJob(uuid.New())
	jobs.records[job.JobID] = job

	cancelled, err := svc.Cancel(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != model.JobStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	if _, err := svc.Cancel(context.Background(), job.JobID); err == nil {
		t.Error("second cancel must fail")
	}
}

func TestCleanupFiles(t *testing.T) {
	svc, files, _, _ := newTestService()
	files.cleanupN = 3

	n, err := svc.CleanupFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}

	files.cleanupErr = errors.New("scan failed")
	if _, err := svc.CleanupFiles(context.Background()); err == nil {
		t.Error("cleanup errors must propagate")
	}
}

func TestChatReplies(t *testing.T) {
	chat := NewChatService()

	tests := []struct {
		message string
		want    string
	}{
		{"My rice has PESTS everywhere", "pest"},
		{"leaves have brown spots", "disease"},
		{"hello there", "Hello"},
		{"what is the meaning of life", "Try uploading"},
	}
	for _, tt := range tests {
		got := chat.Reply(tt.message)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Reply(%q) = %q, want it to contain %q", tt.message, got, tt.want)
		}
	}
}
