package musicbrainz

import "github.com/smkaiser/songfix/internal/correction"

// DefaultThreshold is the minimum normalized score accepted as a correction.
const DefaultThreshold = 0.6

// SelectMatch returns the first candidate, in service order, whose score
// divided by 100 reaches threshold. Artists are read by name and recordings by
// title. The confidence is rounded to three decimal places.
func SelectMatch(cands []Candidate, entity Entity, threshold float64) (correction.Match, bool) {
	for _, c := range cands {
		confidence := float64(c.Score) / 100.0
		if confidence < threshold {
			continue
		}
		label := c.Name
		if entity == EntityRecording {
			label = c.Title
		}
		return correction.Match{
			Corrected:  label,
			Source:     correction.SourceMusicBrainz,
			Confidence: correction.RoundConfidence(confidence),
		}, true
	}
	return correction.Match{}, false
}
