package music

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

const (
	// CatalogThreshold is the minimum score for a query to name a song already in the playlist
	CatalogThreshold = 0.75
	// SearchThreshold is the minimum score for a web search result to be accepted
	SearchThreshold = 0.25
)

const fillerChars = ",.-:;\"\\/#()\t\n"

// Tokenize lower-cases query, splits it on whitespace and strips filler punctuation.
// Tokens left empty are dropped.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.Map(func(r rune) rune {
			if strings.ContainsRune(fillerChars, r) {
				return -1
			}
			return r
		}, f)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Similarity is the fraction of query tokens found as substrings of candidate
func Similarity(query, candidate string) float64 {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return 0
	}
	candidate = strings.ToLower(candidate)

	matched := 0
	for _, t := range tokens {
		if strings.Contains(candidate, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// BestMatch returns the index of the candidate with the highest score at or above threshold.
// Equal scores fall back to Jaro-Winkler similarity of the whole strings; full ties keep the earlier candidate.
func BestMatch(query string, candidates []string, threshold float64) (index int, score float64, ok bool) {
	index = -1
	var bestTie float32

	for i, c := range candidates {
		s := Similarity(query, c)
		if s < threshold {
			continue
		}

		switch {
		case index < 0 || s > score:
			index, score = i, s
			bestTie = tieBreak(query, c)
		case s == score:
			if tb := tieBreak(query, c); tb > bestTie {
				index, bestTie = i, tb
			}
		}
	}

	return index, score, index >= 0
}

func tieBreak(query, candidate string) float32 {
	sim, err := edlib.StringsSimilarity(strings.ToLower(query), strings.ToLower(candidate), edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return sim
}
