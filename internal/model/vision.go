package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisType selects which analysis the worker performs.
type AnalysisType string

const (
	AnalysisPestDetection    AnalysisType = "pest_detection"
	AnalysisDiseaseDetection AnalysisType = "disease_detection"
	AnalysisComprehensive    AnalysisType = "comprehensive"
)

// ParseAnalysisType maps free-text client input onto one of the three
// analysis variants, case-insensitively. Unmatched input falls back to
// comprehensive; the second return value tells the caller whether the
// input actually matched so it can log the fallback.
func ParseAnalysisType(s string) (AnalysisType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pest", "pest_detection":
		return AnalysisPestDetection, true
	case "disease", "disease_detection":
		return AnalysisDiseaseDetection, true
	case "comprehensive", "full":
		return AnalysisComprehensive, true
	default:
		return AnalysisComprehensive, false
	}
}

// EstimatedSeconds is a static lookup, not a measured estimate.
func (t AnalysisType) EstimatedSeconds() int {
	switch t {
	case AnalysisPestDetection:
		return 30
	case AnalysisDiseaseDetection:
		return 60
	default:
		return 90
	}
}

// AnalysisParameters are the optional knobs a client may pass at submission.
type AnalysisParameters struct {
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	ReturnDetails       *bool    `json:"return_details,omitempty"`
	CustomPrompt        *string  `json:"custom_prompt,omitempty"`
}

// ImageMetadata describes the stored upload as embedded in the job envelope.
type ImageMetadata struct {
	SizeBytes        int64  `json:"size_bytes"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Format           string `json:"format"`
	OriginalFilename string `json:"original_filename"`
}

// VisionAnalysisMessage is the job envelope published to the broker.
// It is immutable once published; exactly one message is published per
// accepted submission.
type VisionAnalysisMessage struct {
	JobID        uuid.UUID          `json:"job_id"`
	AnalysisType AnalysisType       `json:"analysis_type"`
	FilePath     string             `json:"file_path"`
	FileHash     string             `json:"file_hash"`
	Metadata     ImageMetadata      `json:"metadata"`
	Parameters   AnalysisParameters `json:"parameters"`
	Timestamp    time.Time          `json:"timestamp"`
}
