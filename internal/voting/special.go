package voting

import (
	"github.com/ice9innovations/api/internal/analyzer"
	"github.com/ice9innovations/api/pkg/emoji"
)

// ExtractSpecial produces the out-of-competition sidecars. These report
// what the specialized analyzers saw regardless of whether the
// corresponding emojis reached the consensus.
func (e *Engine) ExtractSpecial(results map[string]analyzer.AnalysisResult) SpecialDetections {
	special := SpecialDetections{}

	for _, a := range e.cfg.Analyzers {
		res, ok := results[a.ID]
		if !ok || !res.OK {
			continue
		}
		for i := range res.Predictions {
			p := &res.Predictions[i]
			switch p.Type {
			case analyzer.TypeTextExtraction:
				if !special.Text.Detected && p.BoolProperty("has_text") {
					special.Text = SpecialDetection{
						Detected:   true,
						Emoji:      emoji.Text,
						Confidence: p.Confidence,
						Content:    p.Text,
					}
				}
			case analyzer.TypeFaceDetection:
				if !special.Face.Detected && emoji.Equal(p.Emoji, emoji.Face) {
					special.Face = SpecialDetection{
						Detected:   true,
						Emoji:      emoji.Face,
						Confidence: p.Confidence,
						Pose:       p.StringProperty("pose"),
					}
				}
			case analyzer.TypeContentModeration:
				if !special.NSFW.Detected && emoji.Equal(p.Emoji, emoji.NSFW) {
					special.NSFW = SpecialDetection{
						Detected:   true,
						Emoji:      emoji.NSFW,
						Confidence: p.Confidence,
					}
				}
			}
		}
	}

	return special
}
