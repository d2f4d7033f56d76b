package feed

import (
	"strings"
	"unicode"
)

// TokenizeTitle lowercases a title and splits it into alphanumeric tokens,
// discarding punctuation and empty runs. An empty title yields no tokens.
func TokenizeTitle(title string) []string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	if lowered == "" {
		return nil
	}

	parts := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

// TitleJaccard computes the Jaccard index of two token sequences treated as
// sets. Two empty sets score 0 rather than dividing by zero.
func TitleJaccard(left, right []string) float64 {
	leftSet := toSet(left)
	rightSet := toSet(right)
	if len(leftSet) == 0 || len(rightSet) == 0 {
		return 0
	}

	intersection := 0
	for token := range leftSet {
		if _, ok := rightSet[token]; ok {
			intersection++
		}
	}

	union := len(leftSet) + len(rightSet) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]struct{} {
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}
