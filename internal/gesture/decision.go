package gesture

// DefaultThreshold is the minimum score for a class to count as detected.
const DefaultThreshold = 0.8

// Decision is the outcome of applying the threshold rule to scores.
type Decision struct {
	Class    int     `json:"class"`
	Score    float64 `json:"score"`
	Detected bool    `json:"detected"`
}

// Decide returns the first class, by index, whose score reaches threshold.
// A later class with a higher score does not win over an earlier match.
func Decide(scores []float64, threshold float64) Decision {
	for i, s := range scores {
		if s >= threshold {
			return Decision{Class: i, Score: s, Detected: true}
		}
	}
	return Decision{Class: -1}
}

// Name returns the class name from names, or "" when undetected or out of range.
func (d Decision) Name(names []string) string {
	if !d.Detected || d.Class >= len(names) {
		return ""
	}
	return names[d.Class]
}
