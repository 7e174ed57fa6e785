package response

import (
	"github.com/google/uuid"

	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/caption"
	"github.com/ice9innovations/api/internal/imagedata"
	"github.com/ice9innovations/api/internal/orchestrator"
	"github.com/ice9innovations/api/internal/voting"
)

// ============================================================================
// Response Assembler
// ============================================================================

// Processing methods for ImageData.
const (
	MethodFileUpload    = "file_upload"
	MethodURLDownloaded = "external_url_downloaded"
	MethodDirectFile    = "direct_file_access"
)

// ImageData describes how the analyzed image entered the system.
type ImageData struct {
	Dimensions       *imagedata.Dimensions `json:"dimensions"`
	ProcessingMethod string                `json:"processing_method"`
	ImageURL         string                `json:"image_url,omitempty"`
	FilePath         string                `json:"file_path,omitempty"`
	OriginalURL      string                `json:"original_url,omitempty"`
}

// Votes wraps the ranked consensus.
type Votes struct {
	Consensus []voting.ConsensusItem `json:"consensus"`
}

// CompactMetadata is the trimmed per-service metadata.
type CompactMetadata struct {
	ProcessingTime float64 `json:"processing_time"`
}

// CompactResult is the per-service result retained in the document.
type CompactResult struct {
	OK          bool                  `json:"ok"`
	Status      string                `json:"status"`
	Predictions []analyzer.Prediction `json:"predictions"`
	Metadata    CompactMetadata       `json:"metadata"`
}

// Document is the single output document for one analysis request.
type Document struct {
	Success       bool                        `json:"success"`
	ImageID       string                      `json:"image_id"`
	AnalysisTime  float64                     `json:"analysis_time"`
	ImageData     ImageData                   `json:"image_data"`
	Votes         Votes                       `json:"votes"`
	Special       voting.SpecialDetections    `json:"special"`
	Captions      map[string]caption.Caption  `json:"captions"`
	Results       map[string]CompactResult    `json:"results"`
	ServiceHealth *orchestrator.HealthSummary `json:"service_health_summary,omitempty"`
}

// Assemble merges the pipeline outputs into the response document.
//
// Success is false whenever any analyzer degraded; the partial data is
// still included so callers can use what arrived while alerting on the
// health summary. Per-service results marshal sorted by service ID
// (JSON object keys are emitted in sorted order).
func Assemble(run orchestrator.RunResult, votes voting.Output, captions caption.Result, img ImageData, analysisTime float64) Document {
	doc := Document{
		Success:       run.Health == nil,
		ImageID:       uuid.NewString(),
		AnalysisTime:  analysisTime,
		ImageData:     img,
		Votes:         Votes{Consensus: votes.Consensus},
		Special:       votes.Special,
		Captions:      captions.Captions,
		Results:       make(map[string]CompactResult, len(run.Statuses)),
		ServiceHealth: run.Health,
	}
	if doc.Votes.Consensus == nil {
		doc.Votes.Consensus = []voting.ConsensusItem{}
	}
	if doc.Captions == nil {
		doc.Captions = map[string]caption.Caption{}
	}

	for _, status := range run.Statuses {
		res := run.Results[status.ServiceID]
		compact := CompactResult{
			OK:          res.OK,
			Status:      status.Status,
			Predictions: res.Predictions,
			Metadata:    CompactMetadata{ProcessingTime: res.Metadata.ProcessingTime},
		}
		if compact.Predictions == nil {
			compact.Predictions = []analyzer.Prediction{}
		}
		doc.Results[status.ServiceID] = compact
	}

	return doc
}
