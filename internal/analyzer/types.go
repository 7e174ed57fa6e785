package analyzer

import (
	"encoding/json"
	"fmt"
)

// PredictionType discriminates the prediction variants analyzers emit.
type PredictionType string

const (
	TypeObjectDetection    PredictionType = "object_detection"
	TypeClassification     PredictionType = "classification"
	TypeCaption            PredictionType = "caption"
	TypeColorAnalysis      PredictionType = "color_analysis"
	TypeFaceDetection      PredictionType = "face_detection"
	TypeContentModeration  PredictionType = "content_moderation"
	TypeTextExtraction     PredictionType = "text_extraction"
	TypeMetadataExtraction PredictionType = "metadata_extraction"
)

// knownTypes is the closed set of prediction tags accepted at the client
// boundary. Predictions with any other tag are dropped during decode.
var knownTypes = map[PredictionType]bool{
	TypeObjectDetection:    true,
	TypeClassification:     true,
	TypeCaption:            true,
	TypeColorAnalysis:      true,
	TypeFaceDetection:      true,
	TypeContentModeration:  true,
	TypeTextExtraction:     true,
	TypeMetadataExtraction: true,
}

// BBox is an axis-aligned box in the analyzer's working coordinate
// space: x/y top-left corner plus width and height, integer pixels.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the box area in square pixels.
func (b BBox) Area() int {
	return b.Width * b.Height
}

// EmojiMapping links one caption word to an emoji. Caption analyzers
// return these in caption order.
type EmojiMapping struct {
	Word  string `json:"word"`
	Emoji string `json:"emoji"`
	Shiny bool   `json:"shiny,omitempty"`
}

// Prediction is one analyzer finding. The Type tag selects which of the
// optional fields are meaningful; type-specific extras ride in
// Properties.
type Prediction struct {
	Type          PredictionType `json:"type"`
	Label         string         `json:"label,omitempty"`
	Emoji         string         `json:"emoji,omitempty"`
	Confidence    float64        `json:"confidence"`
	BBox          *BBox          `json:"bbox,omitempty"`
	Text          string         `json:"text,omitempty"`
	Value         string         `json:"value,omitempty"`
	EmojiMappings []EmojiMapping `json:"emoji_mappings,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
}

// BoolProperty reads a boolean from the prediction's properties bag.
func (p Prediction) BoolProperty(key string) bool {
	v, ok := p.Properties[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// StringProperty reads a string from the prediction's properties bag.
func (p Prediction) StringProperty(key string) string {
	v, ok := p.Properties[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ResultMetadata carries analyzer-side processing facts. Processing
// dimensions are optional; when present the bounding-box engine uses
// them to rescale coordinates into display space.
type ResultMetadata struct {
	ProcessingTime   float64 `json:"processing_time"`
	ProcessingWidth  int     `json:"processing_width,omitempty"`
	ProcessingHeight int     `json:"processing_height,omitempty"`
}

// ErrorKind classifies an analyzer failure for health reporting.
type ErrorKind string

const (
	ErrOffline  ErrorKind = "offline"  // connection refused, DNS failure
	ErrTimeout  ErrorKind = "timeout"  // deadline expiry, read reset
	ErrProtocol ErrorKind = "protocol" // malformed or incomplete response
	ErrService  ErrorKind = "service"  // analyzer returned status "error"
)

// AnalysisResult is the per-analyzer outcome for one image.
// OK=false implies Predictions is empty.
type AnalysisResult struct {
	OK           bool
	Predictions  []Prediction
	Metadata     ResultMetadata
	ErrorKind    ErrorKind
	ErrorMessage string
}

// Failure constructs a failed result.
func Failure(kind ErrorKind, message string) AnalysisResult {
	return AnalysisResult{OK: false, ErrorKind: kind, ErrorMessage: message}
}

// wireResponse is the unified analyzer response document.
type wireResponse struct {
	Service     string            `json:"service"`
	Status      string            `json:"status"`
	Predictions []json.RawMessage `json:"predictions"`
	Metadata    ResultMetadata    `json:"metadata"`
	Error       *wireError        `json:"error,omitempty"`
}

// wireError is the structured error payload of a status=error response.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *wireError) String() string {
	if e == nil {
		return "unspecified analyzer error"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// scoreResponse is the similarity endpoint response document.
type scoreResponse struct {
	Status          string         `json:"status"`
	SimilarityScore float64        `json:"similarity_score"`
	Caption         string         `json:"caption"`
	ImageSource     string         `json:"image_source"`
	Metadata        ResultMetadata `json:"metadata"`
}

// Status values for ServiceStatus.
const (
	StatusSuccess = "success"
	StatusTimeout = "timeout"
	StatusOffline = "offline"
	StatusError   = "error"
)

// ServiceStatus summarizes one analyzer's part in a request.
type ServiceStatus struct {
	ServiceID        string `json:"service_id"`
	Status           string `json:"status"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	PredictionCount  int    `json:"prediction_count"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// statusForKind maps an error kind to the ServiceStatus vocabulary.
func statusForKind(kind ErrorKind) string {
	switch kind {
	case ErrTimeout:
		return StatusTimeout
	case ErrOffline:
		return StatusOffline
	default:
		return StatusError
	}
}

// StatusFor derives the ServiceStatus entry for a finished result.
func StatusFor(serviceID string, res AnalysisResult, elapsedMS int64) ServiceStatus {
	if res.OK {
		return ServiceStatus{
			ServiceID:        serviceID,
			Status:           StatusSuccess,
			ProcessingTimeMS: elapsedMS,
			PredictionCount:  len(res.Predictions),
		}
	}
	return ServiceStatus{
		ServiceID:        serviceID,
		Status:           statusForKind(res.ErrorKind),
		ProcessingTimeMS: elapsedMS,
		ErrorMessage:     res.ErrorMessage,
	}
}
