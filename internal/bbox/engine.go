package bbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/config"
	"github.com/ice9innovations/api/internal/imagedata"
	"github.com/ice9innovations/api/pkg/emoji"
)

// ============================================================================
// Bounding-Box Clustering Engine
// ============================================================================
//
// A pure function from {analyzer results, display dimensions} to grouped
// instances. Independent analyzers detect the same physical object at
// slightly different coordinates; clustering by IoU identifies those
// agreements so the voting engine can count spatial consensus.
// ============================================================================

const (
	// iouThreshold is the strict lower bound for two detections to share
	// a cluster. IoU of exactly 0.30 does not cluster.
	iouThreshold = 0.30

	// shoutThreshold keeps a single-detection cluster alive. One service
	// alone is not consensus unless it is this confident.
	shoutThreshold = 0.85
)

// Process extracts, rescales, clusters, and cleans spatial detections.
// Analyzers are walked in roster order so output is deterministic for a
// given result map regardless of completion order.
func Process(cfg *config.Config, results map[string]analyzer.AnalysisResult, dims *imagedata.Dimensions) Result {
	detections := extract(cfg, results, dims)

	grouped := make(map[string][]Detection)
	var keys []string
	for _, d := range detections {
		key := groupKey(d)
		if key == "" {
			continue
		}
		if _, seen := grouped[key]; !seen {
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], d)
	}

	out := Result{Groups: make(map[string]GroupedEmoji, len(grouped))}
	for _, key := range keys {
		members := grouped[key]
		clusters := clusterByAnchor(members)
		clusters = clean(clusters)
		if len(clusters) == 0 {
			continue
		}

		scoreAndSort(clusters)

		group := GroupedEmoji{
			Label: members[0].Label,
			Emoji: members[0].Emoji,
			Type:  members[0].Type,
		}
		for rank, cl := range clusters {
			group.Instances = append(group.Instances, emitInstance(cl, rank+1))
			group.Detections = append(group.Detections, cl.members...)
			out.AllDetections = append(out.AllDetections, cl.members...)
		}
		out.Groups[key] = group
	}

	return out
}

// extract walks spatial-capable analyzers in roster order and converts
// bbox-bearing predictions into display-space detections.
func extract(cfg *config.Config, results map[string]analyzer.AnalysisResult, dims *imagedata.Dimensions) []Detection {
	var detections []Detection
	for _, a := range cfg.Analyzers {
		if a.Category != config.CategorySpatial && a.Category != config.CategorySpecialized {
			continue
		}
		res, ok := results[a.ID]
		if !ok || !res.OK {
			continue
		}
		for _, p := range res.Predictions {
			if p.BBox == nil {
				continue
			}
			scaled := rescale(*p.BBox, res.Metadata, dims)
			detections = append(detections, Detection{
				Service:      a.ID,
				Label:        p.Label,
				Emoji:        emoji.Normalize(p.Emoji),
				Type:         p.Type,
				Confidence:   p.Confidence,
				BBox:         scaled,
				OriginalBBox: *p.BBox,
			})
		}
	}
	return detections
}

// rescale maps a box from the analyzer's processing space into display
// space. Analyzers are contracted to return display coordinates already,
// so this is the identity unless the analyzer reported its own
// processing dimensions.
func rescale(box analyzer.BBox, meta analyzer.ResultMetadata, dims *imagedata.Dimensions) analyzer.BBox {
	if dims == nil || meta.ProcessingWidth <= 0 || meta.ProcessingHeight <= 0 {
		return box
	}
	if meta.ProcessingWidth == dims.Width && meta.ProcessingHeight == dims.Height {
		return box
	}

	sx := float64(dims.Width) / float64(meta.ProcessingWidth)
	sy := float64(dims.Height) / float64(meta.ProcessingHeight)
	return analyzer.BBox{
		X:      int(math.Round(float64(box.X) * sx)),
		Y:      int(math.Round(float64(box.Y) * sy)),
		Width:  int(math.Round(float64(box.Width) * sx)),
		Height: int(math.Round(float64(box.Height) * sy)),
	}
}

// groupKey normalizes the grouping key: all face detections share one
// group, everything else groups by NFC-normalized emoji.
func groupKey(d Detection) string {
	if d.Type == analyzer.TypeFaceDetection {
		return "face"
	}
	return emoji.Normalize(d.Emoji)
}

// clusterByAnchor runs initial-anchor clustering: each unused detection
// starts a cluster, and later unused detections join iff their IoU with
// the anchor exceeds the threshold. Membership is measured against the
// anchor only, never against other members, so A-B-C chains where A and
// C do not overlap cannot merge.
func clusterByAnchor(detections []Detection) []*cluster {
	used := make([]bool, len(detections))
	var clusters []*cluster

	for i := range detections {
		if used[i] {
			continue
		}
		used[i] = true
		cl := &cluster{members: []Detection{detections[i]}}

		for j := i + 1; j < len(detections); j++ {
			if used[j] {
				continue
			}
			if IoU(detections[i].BBox, detections[j].BBox) > iouThreshold {
				used[j] = true
				cl.members = append(cl.members, detections[j])
			}
		}
		clusters = append(clusters, cl)
	}
	return clusters
}

// clean applies same-service dedup then the singleton consensus filter.
func clean(clusters []*cluster) []*cluster {
	var out []*cluster
	for _, cl := range clusters {
		cl.members = dedupServices(cl.members)

		if len(cl.members) == 1 && cl.members[0].Confidence < shoutThreshold {
			log.Debugf("Dropping singleton %s/%s at confidence %.2f",
				cl.members[0].Service, cl.members[0].Label, cl.members[0].Confidence)
			continue
		}
		out = append(out, cl)
	}
	return out
}

// dedupServices keeps only each service's highest-confidence detection
// within one cluster. A service detecting the same object twice is a
// model artifact, not extra evidence.
func dedupServices(members []Detection) []Detection {
	best := make(map[string]int)
	for i, d := range members {
		prev, seen := best[d.Service]
		if !seen {
			best[d.Service] = i
			continue
		}
		log.Warnf("Service %s contributed multiple detections of %s to one cluster, keeping highest confidence",
			d.Service, d.Label)
		if d.Confidence > members[prev].Confidence {
			best[d.Service] = i
		}
	}
	if len(best) == len(members) {
		return members
	}

	keep := make(map[int]bool, len(best))
	for _, i := range best {
		keep[i] = true
	}
	out := members[:0]
	for i, d := range members {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

// scoreAndSort ranks clusters by a weighted sum of size, confidence, and
// area: 2 per member, 3 times the average confidence, plus log10 of the
// average box area. The terms trade off; a large single-member box can
// outrank a small two-member cluster.
func scoreAndSort(clusters []*cluster) {
	for _, cl := range clusters {
		n := float64(len(cl.members))
		var confSum, areaSum float64
		for _, d := range cl.members {
			confSum += d.Confidence
			areaSum += float64(d.BBox.Area())
		}
		avgConf := confSum / n
		avgArea := areaSum / n
		cl.score = 2*n + 3*avgConf + math.Log10(math.Max(1, avgArea))
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].score > clusters[j].score
	})
}

// emitInstance converts a surviving cluster into its reported instance.
func emitInstance(cl *cluster, rank int) Instance {
	first := cl.members[0]
	merged := first.BBox
	var confSum float64
	detections := make([]InstanceDetection, 0, len(cl.members))

	for i, d := range cl.members {
		if i > 0 {
			merged = Union(merged, d.BBox)
		}
		confSum += d.Confidence
		detections = append(detections, InstanceDetection{Service: d.Service, Confidence: d.Confidence})
	}

	return Instance{
		ClusterID:      fmt.Sprintf("%s_%d", labelSlug(first.Label), rank),
		Emoji:          first.Emoji,
		Label:          first.Label,
		MergedBBox:     merged,
		DetectionCount: len(cl.members),
		AvgConfidence:  round3(confSum / float64(len(cl.members))),
		Detections:     detections,
	}
}

// labelSlug renders a label safe for use in a cluster id.
func labelSlug(label string) string {
	slug := strings.ToLower(strings.TrimSpace(label))
	slug = strings.ReplaceAll(slug, " ", "_")
	if slug == "" {
		slug = "object"
	}
	return slug
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
