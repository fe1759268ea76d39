// Package similarity computes textual closeness between free-text activity
// and task titles, descriptions, and tags. All functions are pure,
// case-insensitive, and diacritic-folding.
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	winklerPrefixCap = 4
	winklerScale     = 0.1

	// Blend weights for CombinedSimilarity.
	charWeight  = 0.6
	tokenWeight = 0.4
)

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases s, folds accented Latin characters to their base
// letter, and collapses runs of whitespace to single spaces.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b in [0,1]:
// Jaro similarity boosted by a common-prefix bonus capped at 4 characters.
// Identical strings score 1.0; if exactly one is empty the score is 0.0.
func JaroWinkler(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	return jaroWinklerRunes([]rune(a), []rune(b))
}

func jaroWinklerRunes(a, b []rune) float64 {
	j := jaro(a, b)
	if j == 0 {
		return 0
	}
	prefix := 0
	for prefix < len(a) && prefix < len(b) && prefix < winklerPrefixCap && a[prefix] == b[prefix] {
		prefix++
	}
	return j + float64(prefix)*winklerScale*(1-j)
}

// jaro computes the classic Jaro similarity: character matches within a
// window of max(len)/2 - 1, counting transpositions.
func jaro(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(b) {
			hi = len(b)
		}
		for k := lo; k < hi; k++ {
			if bMatched[k] || a[i] != b[k] {
				continue
			}
			aMatched[i] = true
			bMatched[k] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	// Count transpositions between the matched sequences.
	transpositions := 0
	k := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}
	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// TokenSimilarity tokenizes both strings on whitespace and punctuation and
// scores word-level overlap: each token of the shorter set takes its best
// Jaro similarity against the longer set, the best-scores are averaged, and
// the average is scaled by 0.8 + 0.2*(shorter/longer) so that high coverage
// is rewarded. Short technical tokens ("UI", "DB", "CI") are kept.
func TokenSimilarity(a, b string) float64 {
	ta := Tokenize(a)
	tb := Tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shorter, longer := ta, tb
	if len(tb) < len(ta) {
		shorter, longer = tb, ta
	}

	sum := 0.0
	for _, s := range shorter {
		best := 0.0
		sr := []rune(s)
		for _, l := range longer {
			if score := jaro(sr, []rune(l)); score > best {
				best = score
			}
		}
		sum += best
	}
	avg := sum / float64(len(shorter))
	coverage := float64(len(shorter)) / float64(len(longer))
	return avg * (0.8 + 0.2*coverage)
}

// CombinedSimilarity blends character-level and word-level similarity:
// 0.6*JaroWinkler + 0.4*TokenSimilarity.
func CombinedSimilarity(a, b string) float64 {
	return charWeight*JaroWinkler(a, b) + tokenWeight*TokenSimilarity(a, b)
}

// Tokenize splits s into normalized tokens on whitespace and punctuation.
// No minimum token length is enforced.
func Tokenize(s string) []string {
	s = Normalize(s)
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	// Dedupe preserving order; token overlap is a set comparison.
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
