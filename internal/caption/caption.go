package caption

import (
	"context"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/internal/config"
)

// ============================================================================
// Caption Aggregator
// ============================================================================

// Caption is one analyzer's caption with its derived scores.
// ClipSimilarity is nil when similarity scoring failed or is disabled.
type Caption struct {
	Original       string   `json:"original"`
	Words          int      `json:"words"`
	ClipSimilarity *float64 `json:"clip_similarity"`
}

// Result maps caption service IDs to their captions and names the
// winning caption after tie-breaking.
type Result struct {
	Captions map[string]Caption `json:"captions"`
	Best     string             `json:"best,omitempty"`
}

// stopwords excluded from the meaningful word count. Articles,
// copulas, and connective glue say nothing about image content.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"and": true, "or": true, "with": true, "by": true, "for": true,
	"there": true, "it": true, "its": true, "this": true, "that": true,
	"some": true, "very": true,
}

// Aggregator collects captions from the semantic analyzers and scores
// them against the image via the similarity service.
type Aggregator struct {
	cfg    *config.Config
	scorer *analyzer.Client
}

// New creates an aggregator. scorer may be nil to disable similarity
// scoring.
func New(cfg *config.Config, scorer *analyzer.Client) *Aggregator {
	return &Aggregator{cfg: cfg, scorer: scorer}
}

// Collect takes the first caption-typed prediction from each caption
// analyzer, scores it when possible, and picks the best caption.
func (ag *Aggregator) Collect(ctx context.Context, results map[string]analyzer.AnalysisResult, in analyzer.Input) Result {
	out := Result{Captions: make(map[string]Caption)}

	for _, a := range ag.cfg.ByCategory(config.CategorySemantic) {
		res, ok := results[a.ID]
		if !ok || !res.OK {
			continue
		}

		text := firstCaption(res.Predictions)
		if text == "" {
			continue
		}

		c := Caption{
			Original: text,
			Words:    MeaningfulWordCount(text),
		}
		if ag.scorer != nil {
			score, err := ag.scorer.Score(ctx, in, text)
			if err != nil {
				log.Warnf("Similarity scoring failed for %s caption: %v", a.ID, err)
			} else {
				c.ClipSimilarity = &score
			}
		}
		out.Captions[a.ID] = c
	}

	out.Best = pickBest(out.Captions)
	return out
}

// firstCaption returns the text of the first caption-typed prediction.
func firstCaption(predictions []analyzer.Prediction) string {
	for _, p := range predictions {
		if p.Type == analyzer.TypeCaption && p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// pickBest orders captions by similarity descending, then by fewer
// meaningful words, then by service ID for a stable final tie-break.
// Unscored captions rank below scored ones.
func pickBest(captions map[string]Caption) string {
	if len(captions) == 0 {
		return ""
	}

	ids := make([]string, 0, len(captions))
	for id := range captions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := captions[ids[i]], captions[ids[j]]
		as, bs := similarityOf(a), similarityOf(b)
		if as != bs {
			return as > bs
		}
		if a.Words != b.Words {
			return a.Words < b.Words
		}
		return ids[i] < ids[j]
	})
	return ids[0]
}

func similarityOf(c Caption) float64 {
	if c.ClipSimilarity == nil {
		return -1
	}
	return *c.ClipSimilarity
}

// MeaningfulWordCount counts caption words after stopword removal.
// Words are compared lowercase with surrounding punctuation stripped.
func MeaningfulWordCount(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		word := strings.ToLower(strings.Trim(field, ".,!?;:\"'()"))
		if word == "" || stopwords[word] {
			continue
		}
		count++
	}
	return count
}
