package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}\b`)
	reAmount = regexp.MustCompile(`\b\d+[.,]\d{2}\b`)
)

// heuristicConfidence scores OCR output by how much it looks like a real
// document. It is intentionally rough; the TSV confidence, when enabled,
// dominates the blend.
func heuristicConfidence(text string) float32 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	var score float32 = 0.2

	words := strings.Fields(trimmed)
	switch {
	case len(words) >= 50:
		score += 0.3
	case len(words) >= 10:
		score += 0.2
	case len(words) >= 3:
		score += 0.1
	}

	if reDate.MatchString(trimmed) {
		score += 0.2
	}
	if reAmount.MatchString(trimmed) {
		score += 0.2
	}
	if len(trimmed) >= 200 {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func blendConfidence(tsv, heuristic float32) float32 {
	blended := 0.7*tsv + 0.3*heuristic
	if blended > 1.0 {
		blended = 1.0
	}
	return blended
}
