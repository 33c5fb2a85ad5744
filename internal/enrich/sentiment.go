package enrich

import (
	"math"
	"strings"
)

// sentimentLexicon assigns valence to words that carry tone in posting text.
var sentimentLexicon = map[string]float64{
	"excellent": 2.7, "great": 2.4, "exciting": 2.2, "rewarding": 2.3,
	"outstanding": 2.8, "competitive": 1.2, "generous": 2.1, "supportive": 1.9,
	"collaborative": 1.6, "flexible": 1.4, "opportunity": 1.3, "growth": 1.4,
	"benefits": 1.1, "passionate": 1.8, "innovative": 1.5, "dynamic": 1.2,
	"friendly": 1.8, "welcoming": 1.9, "best": 2.6, "strong": 1.1,
	"enjoy": 1.9, "love": 3.0, "ideal": 1.7, "bonus": 1.5,

	"demanding": -1.2, "strenuous": -1.4, "difficult": -1.5, "hazardous": -2.0,
	"adverse": -1.6, "hostile": -2.5, "risk": -1.1, "danger": -2.2,
	"stress": -1.6, "stressful": -1.8, "harsh": -1.7, "unpaid": -1.9,
	"poor": -2.1, "bad": -2.5, "worst": -3.1, "problem": -1.3,
}

// negators flip the valence of the next lexicon word within negationWindow
// tokens, so fillers like "a" or "very" do not break the negation.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "neither": true,
}

const negationWindow = 3

// Sentiment scores text in [-1, 1] using a fixed valence lexicon with simple
// negation handling. Empty or toneless text scores 0. The score is stored as
// an advisory signal only.
func Sentiment(text string) float64 {
	if text == "" {
		return 0
	}
	words := strings.Fields(strings.ToLower(text))
	var sum float64
	negate := 0
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()\"'")
		if negators[w] {
			negate = negationWindow
			continue
		}
		if v, ok := sentimentLexicon[w]; ok {
			if negate > 0 {
				v = -v
				negate = 0
			}
			sum += v
			continue
		}
		if negate > 0 {
			negate--
		}
	}
	if sum == 0 {
		return 0
	}
	// Normalize to (-1, 1) the way compound scores are squashed.
	return sum / math.Sqrt(sum*sum+15)
}
