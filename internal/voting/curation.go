package voting

import (
	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/pkg/emoji"
)

// ============================================================================
// Curation
// ============================================================================
//
// Cross-emoji adjustments applied after the democratic ranking is
// computed but before emission. Curation validates or penalizes an emoji
// using evidence attached to other emojis: a face detection confirms a
// person, a person legitimizes an NSFW flag.
// ============================================================================

// Validation markers recorded on curated groups.
const (
	ValidationFaceConfirmed     = "face_confirmed"
	ValidationPoseConfirmed     = "pose_confirmed"
	ValidationHumanContext      = "human_context_confirmed"
	ValidationSuspiciousNoHuman = "suspicious_no_humans"
)

// curate applies the cross-emoji rules in place.
func curate(groups map[string]*EmojiGroup) {
	person := groups[emoji.Normalize(emoji.Person)]
	face := groups[emoji.Normalize(emoji.Face)]
	nsfw := groups[emoji.Normalize(emoji.NSFW)]

	if person != nil && face != nil {
		person.Weight++
		person.FinalScore++
		person.Validation = append(person.Validation, ValidationFaceConfirmed)
		log.Debugf("Curation: face evidence confirms person emoji")
	}

	if person != nil && anyPoseIndicator(groups) {
		person.Weight++
		person.Validation = append(person.Validation, ValidationPoseConfirmed)
		log.Debugf("Curation: pose evidence confirms person emoji")
	}

	if nsfw != nil {
		if person != nil {
			nsfw.Weight++
			nsfw.Validation = append(nsfw.Validation, ValidationHumanContext)
		} else {
			nsfw.Weight--
			nsfw.Validation = append(nsfw.Validation, ValidationSuspiciousNoHuman)
			log.Debugf("Curation: NSFW flagged without human context")
		}
		if nsfw.Weight < 0 {
			nsfw.Weight = 0
		}
		if nsfw.FinalScore < 0 {
			nsfw.FinalScore = 0
		}
	}
}

// anyPoseIndicator reports whether any group's specialized evidence
// carries a pose reading.
func anyPoseIndicator(groups map[string]*EmojiGroup) bool {
	for _, g := range groups {
		for _, detections := range g.Evidence.Specialized {
			for _, d := range detections {
				if d.Prediction != nil && d.Prediction.StringProperty("pose") != "" {
					return true
				}
			}
		}
	}
	return false
}
