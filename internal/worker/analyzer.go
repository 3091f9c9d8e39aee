// Package worker consumes job envelopes off the broker queue and drives
// each status record from queued to a terminal state. All inference is
// mocked; the results are canned per analysis type.
package worker

import (
	"encoding/json"
	"fmt"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/apperr"
	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

// defaultConfidenceThreshold applies when the submission carries none.
const defaultConfidenceThreshold = 0.5

// Detection is one mocked model finding with its bounding box.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
}

// PestResult is the canned pest-detection payload.
type PestResult struct {
	DetectedPests    []string    `json:"detected_pests"`
	PestCount        int         `json:"pest_count"`
	HasPests         bool        `json:"has_pests"`
	ThaiSummary      string      `json:"thai_summary"`
	DetectionDetails []Detection `json:"detection_details,omitempty"`
}

// DiseaseResult is the canned disease-detection payload.
type DiseaseResult struct {
	DetectedDiseases []string    `json:"detected_diseases"`
	DiseaseCount     int         `json:"disease_count"`
	HasDiseases      bool        `json:"has_diseases"`
	Severity         string      `json:"severity"`
	ThaiSummary      string      `json:"thai_summary"`
	DetectionDetails []Detection `json:"detection_details,omitempty"`
}

// ComprehensiveResult combines both analyses.
type ComprehensiveResult struct {
	PestAnalysis      PestResult    `json:"pest_analysis"`
	DiseaseAnalysis   DiseaseResult `json:"disease_analysis"`
	OverallAssessment string        `json:"overall_assessment"`
	CustomPrompt      *string       `json:"custom_prompt,omitempty"`
}

// Analyzer produces mocked analysis results. It inspects nothing in the
// image beyond requiring it to be non-empty.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// canned model outputs; the threshold filter operates on these.
var (
	pestDetections = []Detection{
		{Label: "brown_planthopper", Confidence: 0.92, BBox: [4]int{102, 88, 210, 190}},
		{Label: "rice_stem_borer", Confidence: 0.71, BBox: [4]int{300, 150, 390, 240}},
		{Label: "rice_leaf_folder", Confidence: 0.43, BBox: [4]int{40, 220, 110, 280}},
	}
	diseaseDetections = []Detection{
		{Label: "rice_blast", Confidence: 0.88, BBox: [4]int{60, 40, 180, 160}},
		{Label: "bacterial_leaf_blight", Confidence: 0.56, BBox: [4]int{200, 90, 320, 210}},
		{Label: "sheath_rot", Confidence: 0.31, BBox: [4]int{10, 300, 70, 360}},
	}
)

// Analyze returns the canned result payload for the job's analysis type,
// honoring the confidence threshold and detail flag from the submission.
func (a *Analyzer) Analyze(msg *model.VisionAnalysisMessage, image []byte) (json.RawMessage, error) {
	if len(image) == 0 {
		return nil, apperr.New(apperr.Internal, "empty image data for job %s", msg.JobID)
	}

	threshold := defaultConfidenceThreshold
	if msg.Parameters.ConfidenceThreshold != nil {
		threshold = *msg.Parameters.ConfidenceThreshold
	}
	withDetails := msg.Parameters.ReturnDetails != nil && *msg.Parameters.ReturnDetails

	var result interface{}
	switch msg.AnalysisType {
	case model.AnalysisPestDetection:
		result = pestResult(threshold, withDetails)
	case model.AnalysisDiseaseDetection:
		result = diseaseResult(threshold, withDetails)
	default:
		result = comprehensiveResult(threshold, withDetails, msg.Parameters.CustomPrompt)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "serialize analysis result")
	}
	return payload, nil
}

func filterByConfidence(detections []Detection, threshold float64) []Detection {
	var kept []Detection
	for _, d := range detections {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}

func labels(detections []Detection) []string {
	out := make([]string, 0, len(detections))
	for _, d := range detections {
		out = append(out, d.Label)
	}
	return out
}

func pestResult(threshold float64, withDetails bool) PestResult {
	kept := filterByConfidence(pestDetections, threshold)
	result := PestResult{
		DetectedPests: labels(kept),
		PestCount:     len(kept),
		HasPests:      len(kept) > 0,
		ThaiSummary:   fmt.Sprintf("พบศัตรูพืช %d ชนิด", len(kept)),
	}
	if withDetails {
		result.DetectionDetails = kept
	}
	return result
}

func diseaseResult(threshold float64, withDetails bool) DiseaseResult {
	kept := filterByConfidence(diseaseDetections, threshold)
	severity := "none"
	switch {
	case len(kept) >= 2:
		severity = "high"
	case len(kept) == 1:
		severity = "moderate"
	}
	result := DiseaseResult{
		DetectedDiseases: labels(kept),
		DiseaseCount:     len(kept),
		HasDiseases:      len(kept) > 0,
		Severity:         severity,
		ThaiSummary:      fmt.Sprintf("พบโรคพืช %d ชนิด", len(kept)),
	}
	if withDetails {
		result.DetectionDetails = kept
	}
	return result
}

func comprehensiveResult(threshold float64, withDetails bool, customPrompt *string) ComprehensiveResult {
	pests := pestResult(threshold, withDetails)
	diseases := diseaseResult(threshold, withDetails)

	assessment := "Crop appears healthy."
	if pests.HasPests || diseases.HasDiseases {
		assessment = "Crop shows signs of stress; review detected pests and diseases."
	}

	return ComprehensiveResult{
		PestAnalysis:      pests,
		DiseaseAnalysis:   diseases,
		OverallAssessment: assessment,
		CustomPrompt:      customPrompt,
	}
}
