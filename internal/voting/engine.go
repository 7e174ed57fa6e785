package voting

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/bbox"
	"github.com/ice9innovations/api/internal/config"
	"github.com/ice9innovations/api/pkg/emoji"
)

// ============================================================================
// Evidence-Weighted Voting Engine
// ============================================================================
//
// Democratic base: each analyzer gets one vote per emoji. Evidence then
// weights the ranking: multiple detectors agreeing on the same physical
// location, or multiple caption sources naming the same concept, push an
// emoji up without granting any single service extra votes.
// ============================================================================

const (
	// defaultConfidence stands in when an analyzer omits a confidence,
	// and prices every caption-mapping vote.
	defaultConfidence = 0.75

	// voteFloor is the minimum distinct voting services for an emoji to
	// enter the consensus.
	voteFloor = 2
)

// Engine computes consensus from analyzer results and clustered
// instances. It is stateless; one engine serves all requests.
type Engine struct {
	cfg *config.Config
}

// New creates a voting engine over the configured roster.
func New(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Vote runs extraction, grouping, evidence weighting, curation, and
// ranking. The clustered result must come from the same analyzer result
// map, so spatial sentinels line up with their emitting services.
func (e *Engine) Vote(results map[string]analyzer.AnalysisResult, clustered bbox.Result) Output {
	detections := e.extract(results, clustered)
	groups, order := groupByEmoji(detections)

	for _, key := range order {
		analyzeEvidence(groups[key])
		weigh(groups[key])
	}

	curate(groups)

	out := Output{
		Special: e.ExtractSpecial(results),
		Counters: Counters{
			TotalDetections: len(detections),
			TotalGroups:     len(groups),
		},
	}

	var emitted []*EmojiGroup
	for _, key := range order {
		g := groups[key]
		if g.TotalVotes >= voteFloor {
			emitted = append(emitted, g)
		}
	}

	sort.SliceStable(emitted, func(i, j int) bool {
		if emitted[i].TotalVotes != emitted[j].TotalVotes {
			return emitted[i].TotalVotes > emitted[j].TotalVotes
		}
		return emitted[i].Weight > emitted[j].Weight
	})

	for _, g := range emitted {
		out.Consensus = append(out.Consensus, e.emit(g, clustered))
	}
	out.Counters.EmittedGroups = len(out.Consensus)

	log.Debugf("Voting: %d detections, %d groups, %d in consensus",
		out.Counters.TotalDetections, out.Counters.TotalGroups, out.Counters.EmittedGroups)
	return out
}

// extract converts analyzer predictions and clustering instances into
// the flat vote stream, walking analyzers in roster order.
func (e *Engine) extract(results map[string]analyzer.AnalysisResult, clustered bbox.Result) []Detection {
	var detections []Detection

	for _, a := range e.cfg.Analyzers {
		res, ok := results[a.ID]
		if !ok || !res.OK {
			continue
		}

		seen := make(map[string]bool)
		for i := range res.Predictions {
			p := &res.Predictions[i]

			if len(p.EmojiMappings) > 0 {
				for _, m := range p.EmojiMappings {
					key := emoji.Normalize(m.Emoji)
					if key == "" || seen[key] {
						continue
					}
					seen[key] = true
					detections = append(detections, Detection{
						Service:      a.ID,
						Emoji:        key,
						EvidenceType: EvidenceSemantic,
						Confidence:   defaultConfidence,
						Word:         m.Word,
						Source:       "caption_mapping",
						Shiny:        m.Shiny,
					})
				}
				continue
			}

			if p.Emoji == "" || p.Type == analyzer.TypeColorAnalysis {
				continue
			}
			key := emoji.Normalize(p.Emoji)
			if seen[key] {
				continue
			}
			seen[key] = true

			confidence := p.Confidence
			if confidence == 0 {
				confidence = defaultConfidence
			}
			detections = append(detections, Detection{
				Service:      a.ID,
				Emoji:        key,
				EvidenceType: evidenceForCategory(a.Category),
				Confidence:   confidence,
				Prediction:   p,
			})
		}
	}

	// Fold clustering output in as sentinels. Sentinels add spatial
	// consensus per physical instance without adding votes.
	groupKeys := make([]string, 0, len(clustered.Groups))
	for key := range clustered.Groups {
		groupKeys = append(groupKeys, key)
	}
	sort.Strings(groupKeys)
	for _, key := range groupKeys {
		group := clustered.Groups[key]
		for i := range group.Instances {
			inst := group.Instances[i]
			detections = append(detections, Detection{
				Service:      SentinelService,
				Emoji:        emoji.Normalize(inst.Emoji),
				EvidenceType: EvidenceSpatial,
				Confidence:   inst.AvgConfidence,
				SpatialData:  &inst,
			})
		}
	}

	return detections
}

// groupByEmoji buckets detections by normalized emoji, preserving
// first-seen order for deterministic tie handling downstream.
func groupByEmoji(detections []Detection) (map[string]*EmojiGroup, []string) {
	groups := make(map[string]*EmojiGroup)
	var order []string

	for _, d := range detections {
		g, ok := groups[d.Emoji]
		if !ok {
			g = &EmojiGroup{Emoji: d.Emoji}
			groups[d.Emoji] = g
			order = append(order, d.Emoji)
		}
		g.Detections = append(g.Detections, d)
	}
	return groups, order
}

// analyzeEvidence computes voting services, vote count, and the
// per-evidence-type summaries for one group.
func analyzeEvidence(g *EmojiGroup) {
	votersSeen := make(map[string]bool)
	spatialServices := make(map[string]bool)

	var spatial SpatialEvidence
	var semantic SemanticEvidence
	var classification ClassificationEvidence
	semanticServices := make(map[string]bool)
	classificationServices := make(map[string]bool)

	var spatialConfSum float64
	var spatialConfN int

	for _, d := range g.Detections {
		if d.Shiny {
			g.Shiny = true
		}

		if d.IsSentinel() {
			spatial.TotalInstances++
			if d.SpatialData != nil {
				if d.SpatialData.DetectionCount > spatial.MaxDetectionCount {
					spatial.MaxDetectionCount = d.SpatialData.DetectionCount
				}
				for _, id := range d.SpatialData.Detections {
					spatialServices[id.Service] = true
				}
			}
			continue
		}

		if !votersSeen[d.Service] {
			votersSeen[d.Service] = true
			g.VotingServices = append(g.VotingServices, d.Service)
		}

		switch d.EvidenceType {
		case EvidenceSpatial:
			spatialServices[d.Service] = true
			spatialConfSum += d.Confidence
			spatialConfN++
		case EvidenceSemantic:
			semanticServices[d.Service] = true
			if d.Word != "" {
				semantic.Words = append(semantic.Words, d.Word)
			}
			if d.Source != "" {
				semantic.Sources = append(semantic.Sources, d.Source)
			}
		case EvidenceClassification:
			classificationServices[d.Service] = true
			classification.Sources = append(classification.Sources, d.Service)
		case EvidenceSpecialized:
			if g.Evidence.Specialized == nil {
				g.Evidence.Specialized = make(map[string][]Detection)
			}
			g.Evidence.Specialized[d.Service] = append(g.Evidence.Specialized[d.Service], d)
		}
	}

	g.TotalVotes = len(g.VotingServices)

	if len(spatialServices) > 0 || spatial.TotalInstances > 0 {
		spatial.ServiceCount = len(spatialServices)
		if spatialConfN > 0 {
			spatial.AvgConfidence = round3(spatialConfSum / float64(spatialConfN))
		}
		g.Evidence.Spatial = &spatial
	}
	if len(semanticServices) > 0 {
		semantic.ServiceCount = len(semanticServices)
		g.Evidence.Semantic = &semantic
	}
	if len(classificationServices) > 0 {
		classification.ServiceCount = len(classificationServices)
		g.Evidence.Classification = &classification
	}
}

// weigh assigns the pre-curation evidence weight and score.
//
// The spatial consensus bonus pays one point per extra service that
// corroborated the same physical instance; the content consensus bonus
// pays when two or more caption or classifier sources agree.
func weigh(g *EmojiGroup) {
	spatialBonus := 0
	if g.Evidence.Spatial != nil && g.Evidence.Spatial.MaxDetectionCount > 1 {
		spatialBonus = g.Evidence.Spatial.MaxDetectionCount - 1
	}

	contentSources := 0
	if g.Evidence.Semantic != nil {
		contentSources += g.Evidence.Semantic.ServiceCount
	}
	if g.Evidence.Classification != nil {
		contentSources += g.Evidence.Classification.ServiceCount
	}
	contentBonus := 0
	if contentSources >= 2 {
		contentBonus = contentSources - 1
	}

	g.Weight = float64(g.TotalVotes + spatialBonus + contentBonus)
	g.FinalScore = float64(g.TotalVotes) + g.Weight
}

// emit renders one group as its consensus item.
func (e *Engine) emit(g *EmojiGroup, clustered bbox.Result) ConsensusItem {
	item := ConsensusItem{
		Emoji:          g.Emoji,
		Votes:          g.TotalVotes,
		EvidenceWeight: round2(g.Weight),
		FinalScore:     round2(g.FinalScore),
		Services:       g.VotingServices,
		Shiny:          g.Shiny,
	}
	if len(g.Validation) > 0 {
		item.Validation = g.Validation
	}

	if g.Evidence.Spatial != nil {
		item.InstancesSummary = &InstancesSummary{
			Total:             g.Evidence.Spatial.TotalInstances,
			MaxDetectionCount: g.Evidence.Spatial.MaxDetectionCount,
		}
		item.BoundingBoxes = instancesFor(g.Emoji, clustered)
	}
	return item
}

// instancesFor finds the cluster instances backing an emoji, checking
// the face group as well since its instances carry the face emoji.
func instancesFor(key string, clustered bbox.Result) []bbox.Instance {
	if group, ok := clustered.Groups[key]; ok {
		return group.Instances
	}
	if group, ok := clustered.Groups["face"]; ok && len(group.Instances) > 0 {
		if emoji.Equal(group.Instances[0].Emoji, key) {
			return group.Instances
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
