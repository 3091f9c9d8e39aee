// Package handler maps HTTP requests onto the services and internal errors
// onto wire responses.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/service"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/pkg/response"
)

// maxFieldBytes bounds the size of any non-image form field.
const maxFieldBytes = 8 * 1024

// visionService is the handler's view of the orchestration layer.
type visionService interface {
	Submit(ctx context.Context, req *service.SubmitRequest) (*service.SubmitResult, error)
	GetStatus(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error)
	Cancel(ctx context.Context, jobID uuid.UUID) (*model.JobStatus, error)
	FileStats(ctx context.Context) (*model.FileStats, error)
	CleanupFiles(ctx context.Context) (int, error)
}

// VisionHandler serves the job API and the file maintenance endpoints.
type VisionHandler struct {
	svc         visionService
	maxFileSize int64
}

func NewVisionHandler(svc visionService, maxFileSize int64) *VisionHandler {
	return &VisionHandler{svc: svc, maxFileSize: maxFileSize}
}

// Submit handles POST /vision/analyze. The multipart body is consumed as a
// stream so an oversized image part is rejected while reading, without
// buffering the whole upload first.
func (h *VisionHandler) Submit(c *fiber.Ctx) error {
	req, err := h.parseSubmit(c)
	if err != nil {
		return response.Error(c, err)
	}

	res, err := h.svc.Submit(c.Context(), req)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OKWithMessage(c, res, fmt.Sprintf(
		"Job queued successfully. Estimated processing time: %d seconds",
		res.EstimatedProcessingTime))
}

// parseSubmit walks the multipart parts in order. Known text fields are
// collected, unknown fields are drained with a warning, and the image part
// is size-checked incrementally against the storage limit.
func (h *VisionHandler) parseSubmit(c *fiber.Ctx) (*service.SubmitRequest, error) {
	_, params, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil || params["boundary"] == "" {
		return nil, apperr.New(apperr.Validation, "request must be multipart/form-data")
	}

	// Small bodies arrive fully buffered even with request-body streaming
	// enabled; fall back to the buffered bytes then.
	var body io.Reader = c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}
	reader := multipart.NewReader(body, params["boundary"])

	var (
		image        []byte
		imageName    string
		filename     string
		analysisType = model.AnalysisComprehensive
		parameters   model.AnalysisParameters
	)

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, "malformed multipart body")
		}

		switch part.FormName() {
		case "image":
			image, err = h.readImagePart(part)
			if err != nil {
				return nil, err
			}
			imageName = part.FileName()

		case "filename":
			filename, err = readField(part)
			if err != nil {
				return nil, err
			}

		case "analysis_type":
			raw, err := readField(part)
			if err != nil {
				return nil, err
			}
			parsed, matched := model.ParseAnalysisType(raw)
			if !matched && raw != "" {
				log.Warn().Str("analysis_type", raw).Msg("unknown analysis type, defaulting to comprehensive")
			}
			analysisType = parsed

		case "confidence_threshold":
			raw, err := readField(part)
			if err != nil {
				return nil, err
			}
			if v, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64); perr == nil {
				parameters.ConfidenceThreshold = &v
			} else if raw != "" {
				log.Warn().Str("confidence_threshold", raw).Msg("unparsable confidence threshold, ignoring")
			}

		case "return_details":
			raw, err := readField(part)
			if err != nil {
				return nil, err
			}
			if v, perr := strconv.ParseBool(strings.TrimSpace(raw)); perr == nil {
				parameters.ReturnDetails = &v
			}

		case "custom_prompt":
			raw, err := readField(part)
			if err != nil {
				return nil, err
			}
			if raw != "" {
				prompt := raw
				parameters.CustomPrompt = &prompt
			}

		default:
			log.Warn().Str("field", part.FormName()).Msg("ignoring unknown form field")
			_, _ = io.Copy(io.Discard, part)
		}
		_ = part.Close()
	}

	if image == nil {
		return nil, apperr.New(apperr.Validation, "image field is required")
	}

	if filename == "" {
		filename = imageName
	}
	if filename == "" {
		filename = "upload"
	}

	return &service.SubmitRequest{
		Image:        image,
		Filename:     filename,
		AnalysisType: analysisType,
		Parameters:   parameters,
	}, nil
}

// readImagePart buffers the image while enforcing the size limit; reading
// stops one byte past the limit rather than after the full upload.
func (h *VisionHandler) readImagePart(part *multipart.Part) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, h.maxFileSize+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "read image part")
	}
	if n > h.maxFileSize {
		return nil, apperr.New(apperr.Validation,
			"file size exceeds maximum allowed size %d", h.maxFileSize)
	}
	return buf.Bytes(), nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", apperr.Wrap(apperr.Validation, err, "read form field %s", part.FormName())
	}
	return string(data), nil
}

// GetStatus handles GET /vision/jobs/:job_id.
func (h *VisionHandler) GetStatus(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return response.Error(c, err)
	}

	job, err := h.svc.GetStatus(c.Context(), jobID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, job)
}

// Cancel handles DELETE /vision/jobs/:job_id/cancel.
func (h *VisionHandler) Cancel(c *fiber.Ctx) error {
	jobID, err := parseJobID(c)
	if err != nil {
		return response.Error(c, err)
	}

	job, err := h.svc.Cancel(c.Context(), jobID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, fiber.Map{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

// FileStats handles GET /vision/files/stats.
func (h *VisionHandler) FileStats(c *fiber.Ctx) error {
	stats, err := h.svc.FileStats(c.Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, stats)
}

// CleanupFiles handles POST /vision/files/cleanup.
func (h *VisionHandler) CleanupFiles(c *fiber.Ctx) error {
	deleted, err := h.svc.CleanupFiles(c.Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, fiber.Map{"deleted_files": deleted})
}

func parseJobID(c *fiber.Ctx) (uuid.UUID, error) {
	jobID, err := uuid.Parse(c.Params("job_id"))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.Validation, "invalid job id: %s", c.Params("job_id"))
	}
	return jobID, nil
}
