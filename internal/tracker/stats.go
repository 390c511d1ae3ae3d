package tracker

// meanConcentration returns the arithmetic mean of the scores, or 0 for an
// empty history.
func meanConcentration(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// dominantEmotion returns the statistical mode of the sample labels.
// Ties resolve to the label that appears earliest in the history.
// Returns "unknown" for an empty history.
func dominantEmotion(samples []EmotionSample) string {
	if len(samples) == 0 {
		return "unknown"
	}

	counts := make(map[string]int, len(samples))
	firstIdx := make(map[string]int, len(samples))
	for i, s := range samples {
		if _, seen := counts[s.Label]; !seen {
			firstIdx[s.Label] = i
		}
		counts[s.Label]++
	}

	best := ""
	for label, count := range counts {
		if best == "" ||
			count > counts[best] ||
			(count == counts[best] && firstIdx[label] < firstIdx[best]) {
			best = label
		}
	}
	return best
}
