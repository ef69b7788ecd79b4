package release

import "github.com/hbollon/go-edlib"

// MatchConfidence represents the confidence level of a title match.
type MatchConfidence int

const (
	ConfidenceNone   MatchConfidence = iota // Score < 0.70
	ConfidenceLow                           // Score >= 0.70
	ConfidenceMedium                        // Score >= 0.85
	ConfidenceHigh                          // Score >= 0.95
)

func (c MatchConfidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// MatchResult represents the result of a fuzzy title match.
type MatchResult struct {
	Title      string          // The matched candidate title
	Score      float64         // Jaro-Winkler similarity score (0.0-1.0)
	Confidence MatchConfidence // Confidence level based on score
}

func confidenceFor(score float64) MatchConfidence {
	switch {
	case score >= 0.95:
		return ConfidenceHigh
	case score >= 0.85:
		return ConfidenceMedium
	case score >= 0.70:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// MatchTitle scores candidate against want using Jaro-Winkler similarity
// over their normalized titles, returning the best MatchResult. Candidates
// that fail to score (should not happen for non-empty strings) are skipped.
func MatchTitle(want string, candidates []string) MatchResult {
	wantClean := CleanTitle(want)

	best := MatchResult{Confidence: ConfidenceNone}
	for _, candidate := range candidates {
		score, err := edlib.StringsSimilarity(wantClean, CleanTitle(candidate), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) > best.Score {
			best = MatchResult{Title: candidate, Score: float64(score)}
		}
	}
	best.Confidence = confidenceFor(best.Score)
	return best
}

// TitleRatio is the two-string convenience form of MatchTitle, used to populate
// Stream.TitleRatio during scraping.
func TitleRatio(a, b string) float64 {
	score, err := edlib.StringsSimilarity(CleanTitle(a), CleanTitle(b), edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(score)
}
