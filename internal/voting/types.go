package voting

import (
	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/bbox"
	"github.com/ice9innovations/api/internal/config"
)

// EvidenceType categorizes the signal behind one vote.
type EvidenceType string

const (
	EvidenceSpatial        EvidenceType = "spatial"
	EvidenceSemantic       EvidenceType = "semantic"
	EvidenceSpecialized    EvidenceType = "specialized"
	EvidenceClassification EvidenceType = "classification"
	EvidenceOther          EvidenceType = "other"
)

// SentinelService tags detections injected from the clustering engine's
// instances. Sentinels carry spatial consensus into scoring but never
// count as voting services.
const SentinelService = "spatial_clustering"

// Detection is one vote-bearing signal for an emoji.
type Detection struct {
	Service      string
	Emoji        string
	EvidenceType EvidenceType
	Confidence   float64

	// Word and Source describe semantic context for caption-mapping
	// votes (Source is "caption_mapping").
	Word   string
	Source string

	Shiny bool

	// SpatialData is set on sentinel detections only.
	SpatialData *bbox.Instance

	// Prediction backs specialized votes so curation can inspect
	// type-specific properties (pose, has_text).
	Prediction *analyzer.Prediction
}

// IsSentinel reports whether this detection is a clustering sentinel.
func (d Detection) IsSentinel() bool {
	return d.Service == SentinelService
}

// SpatialEvidence summarizes location agreement for one emoji.
type SpatialEvidence struct {
	ServiceCount      int     `json:"service_count"`
	MaxDetectionCount int     `json:"max_detection_count"`
	AvgConfidence     float64 `json:"avg_confidence"`
	TotalInstances    int     `json:"total_instances"`
}

// SemanticEvidence summarizes caption-derived support for one emoji.
type SemanticEvidence struct {
	ServiceCount int      `json:"service_count"`
	Words        []string `json:"words"`
	Sources      []string `json:"sources"`
}

// ClassificationEvidence summarizes classifier support. No stock
// analyzer is categorized as classification; the path activates when an
// analyzer is configured with that category.
type ClassificationEvidence struct {
	ServiceCount int      `json:"service_count"`
	Sources      []string `json:"sources"`
}

// Evidence is the per-group evidence analysis.
type Evidence struct {
	Spatial        *SpatialEvidence        `json:"spatial,omitempty"`
	Semantic       *SemanticEvidence       `json:"semantic,omitempty"`
	Classification *ClassificationEvidence `json:"classification,omitempty"`
	Specialized    map[string][]Detection  `json:"-"`
}

// EmojiGroup is every signal collected for one emoji across analyzers.
type EmojiGroup struct {
	Emoji          string
	Detections     []Detection
	VotingServices []string
	TotalVotes     int
	Evidence       Evidence
	Shiny          bool

	Weight     float64
	FinalScore float64
	Validation []string
}

// InstancesSummary compacts cluster counts for the consensus payload.
type InstancesSummary struct {
	Total             int `json:"total"`
	MaxDetectionCount int `json:"max_detection_count"`
}

// ConsensusItem is one ranked consensus entry.
type ConsensusItem struct {
	Emoji            string            `json:"emoji"`
	Votes            int               `json:"votes"`
	EvidenceWeight   float64           `json:"evidence_weight"`
	FinalScore       float64           `json:"final_score"`
	InstancesSummary *InstancesSummary `json:"instances_summary,omitempty"`
	Services         []string          `json:"services"`
	BoundingBoxes    []bbox.Instance   `json:"bounding_boxes,omitempty"`
	Validation       []string          `json:"validation,omitempty"`
	Shiny            bool              `json:"shiny,omitempty"`
}

// SpecialDetection is one out-of-competition sidecar.
type SpecialDetection struct {
	Detected   bool    `json:"detected"`
	Emoji      string  `json:"emoji,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Content    string  `json:"content,omitempty"`
	Pose       string  `json:"pose,omitempty"`
}

// SpecialDetections reports text, face, and NSFW signals independent of
// voting.
type SpecialDetections struct {
	Text SpecialDetection `json:"text"`
	Face SpecialDetection `json:"face"`
	NSFW SpecialDetection `json:"nsfw"`
}

// Counters are debug tallies for one voting run.
type Counters struct {
	TotalDetections int `json:"total_detections"`
	TotalGroups     int `json:"total_groups"`
	EmittedGroups   int `json:"emitted_groups"`
}

// Output is the voting engine's result.
type Output struct {
	Consensus []ConsensusItem   `json:"consensus"`
	Special   SpecialDetections `json:"special"`
	Counters  Counters          `json:"counters"`
}

// evidenceForCategory maps an analyzer category to the evidence type of
// its direct-emoji votes.
func evidenceForCategory(cat config.Category) EvidenceType {
	switch cat {
	case config.CategorySpatial:
		return EvidenceSpatial
	case config.CategorySemantic:
		return EvidenceSemantic
	case config.CategorySpecialized:
		return EvidenceSpecialized
	case config.CategoryClassification:
		return EvidenceClassification
	default:
		return EvidenceOther
	}
}
