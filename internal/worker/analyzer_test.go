package worker

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/222-KPR/ai-thailand-hackathon-2025-sub000/internal/model"
)

func analyzeAs(t *testing.T, msg *model.VisionAnalysisMessage, out interface{}) {
	t.Helper()
	payload, err := NewAnalyzer().Analyze(msg, []byte("image"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		t.Fatalf("decode result %s: %v", payload, err)
	}
}

func TestAnalyzePestDetection(t *testing.T) {
	var result PestResult
	analyzeAs(t, &model.VisionAnalysisMessage{
		JobID:        uuid.New(),
		AnalysisType: model.AnalysisPestDetection,
	}, &result)

	// Default threshold 0.5 keeps two of the three canned detections.
	if result.PestCount != 2 {
		t.Errorf("pest count = %d, want 2 at default threshold", result.PestCount)
	}
	if !result.HasPests {
		t.Error("has_pests must be true")
	}
	if result.ThaiSummary == "" {
		t.Error("thai summary must be populated")
	}
	if result.DetectionDetails != nil {
		t.Error("details must be omitted unless requested")
	}
}

func TestAnalyzeHonorsConfidenceThreshold(t *testing.T) {
	threshold := 0.9
	details := true

	var result PestResult
	analyzeAs(t, &model.VisionAnalysisMessage{
		JobID:        uuid.New(),
		AnalysisType: model.AnalysisPestDetection,
		Parameters: model.AnalysisParameters{
			ConfidenceThreshold: &threshold,
			ReturnDetails:       &details,
		},
	}, &result)

	if result.PestCount != 1 {
		t.Errorf("pest count = %d, want 1 at threshold 0.9", result.PestCount)
	}
	if len(result.DetectionDetails) != 1 {
		t.Fatalf("details = %d entries, want 1", len(result.DetectionDetails))
	}
	if result.DetectionDetails[0].Confidence < threshold {
		t.Error("kept detection must meet the threshold")
	}
}

func TestAnalyzeDiseaseSeverity(t *testing.T) {
	var result DiseaseResult
	analyzeAs(t, &model.VisionAnalysisMessage{
		JobID:        uuid.New(),
		AnalysisType: model.AnalysisDiseaseDetection,
	}, &result)

	if result.DiseaseCount != 2 {
		t.Errorf("disease count = %d, want 2 at default threshold", result.DiseaseCount)
	}
	if result.Severity != "high" {
		t.Errorf("severity = %q, want high for two findings", result.Severity)
	}
}

func TestAnalyzeComprehensiveEchoesPrompt(t *testing.T) {
	prompt := "focus on the lower leaves"

	var result ComprehensiveResult
	analyzeAs(t, &model.VisionAnalysisMessage{
		JobID:        uuid.New(),
		AnalysisType: model.AnalysisComprehensive,
		Parameters:   model.AnalysisParameters{CustomPrompt: &prompt},
	}, &result)

	if result.CustomPrompt == nil || *result.CustomPrompt != prompt {
		t.Errorf("custom prompt = %v, want %q echoed", result.CustomPrompt, prompt)
	}
	if result.OverallAssessment == "" {
		t.Error("overall assessment must be populated")
	}
	if !result.PestAnalysis.HasPests || !result.DiseaseAnalysis.HasDiseases {
		t.Error("comprehensive result must carry both sub-analyses")
	}
}

func TestAnalyzeEmptyImage(t *testing.T) {
	_, err := NewAnalyzer().Analyze(&model.VisionAnalysisMessage{
		JobID:        uuid.New(),
		AnalysisType: model.AnalysisPestDetection,
	}, nil)
	if err == nil {
		t.Fatal("expected error for empty image data")
	}
}
