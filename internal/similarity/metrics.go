package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Breakdown carries diagnostic scores for a pair of keys.
// Only Ratio takes part in matching decisions.
type Breakdown struct {
	Ratio       float64 `json:"ratio"`
	JaroWinkler float64 `json:"jaro_winkler"`
	Levenshtein float64 `json:"levenshtein"`
}

// Scores computes all diagnostic scores for a and b.
func Scores(a, b string) Breakdown {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return Breakdown{
		Ratio:       Ratio(la, lb),
		JaroWinkler: jaroWinkler(la, lb),
		Levenshtein: LevenshteinRatio(la, lb),
	}
}

// LevenshteinRatio returns 1 - distance/max(len) in [0, 1]. Two empty strings score 1.
func LevenshteinRatio(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if lb := utf8.RuneCountInString(b); lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func jaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}
