package bbox

import (
	"github.com/ice9innovations/api/internal/analyzer"
)

// Detection is one bbox-bearing prediction after coordinate rescaling.
// BBox is in display space; OriginalBBox is as the analyzer reported it.
type Detection struct {
	Service      string                  `json:"service"`
	Label        string                  `json:"label"`
	Emoji        string                  `json:"emoji"`
	Type         analyzer.PredictionType `json:"type"`
	Confidence   float64                 `json:"confidence"`
	BBox         analyzer.BBox           `json:"bbox"`
	OriginalBBox analyzer.BBox           `json:"original_bbox"`
}

// InstanceDetection records one service's contribution to an instance.
type InstanceDetection struct {
	Service    string  `json:"service"`
	Confidence float64 `json:"confidence"`
}

// Instance is one reported physical object: a ranked cluster of
// detections that agree on location.
type Instance struct {
	ClusterID      string              `json:"cluster_id"`
	Emoji          string              `json:"emoji"`
	Label          string              `json:"label"`
	MergedBBox     analyzer.BBox       `json:"merged_bbox"`
	DetectionCount int                 `json:"detection_count"`
	AvgConfidence  float64             `json:"avg_confidence"`
	Detections     []InstanceDetection `json:"detections"`
}

// GroupedEmoji collects every surviving detection and instance for one
// normalized grouping key.
type GroupedEmoji struct {
	Label      string                  `json:"label"`
	Emoji      string                  `json:"emoji"`
	Type       analyzer.PredictionType `json:"type"`
	Detections []Detection             `json:"detections"`
	Instances  []Instance              `json:"instances"`
}

// Result is the clustering engine's full output for one image.
type Result struct {
	// Groups maps the normalized key ("face" or the NFC emoji) to its
	// grouped detections and instances.
	Groups map[string]GroupedEmoji `json:"groups"`

	// AllDetections is the flat post-clean detection list. Detections
	// dropped by the singleton filter or same-service dedup are absent.
	AllDetections []Detection `json:"all_detections"`
}

// cluster is the intermediate grouping before instances are emitted.
type cluster struct {
	members []Detection
	score   float64
}
