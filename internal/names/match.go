package names

import (
	"math"
	"strings"
	"unicode/utf8"
)

// stopWords are organizational suffixes and generic trade nouns that carry
// no identity when comparing company names word by word.
var stopWords = map[string]struct{}{
	"ab": {}, "hb": {}, "kb": {}, "aktiebolag": {}, "handelsbolag": {}, "kommanditbolag": {},
	"as": {}, "asa": {}, "aps": {}, "oy": {}, "oyj": {}, "gmbh": {}, "ltd": {}, "inc": {}, "llc": {},
	"bil": {}, "bilar": {}, "bilcenter": {}, "bilhandel": {}, "motor": {}, "motors": {}, "auto": {},
	"fordon": {}, "center": {}, "service": {}, "i": {}, "och": {}, "the": {}, "of": {}, "and": {},
	"sverige": {}, "sweden": {}, "group": {}, "gruppen": {}, "holding": {},
}

// Matches reports whether two names denote the same entity. Inputs are
// expected to be normalized already. The heuristics, any one of which wins:
//  1. Exact equality
//  2. One is a substring of the other
//  3. Identical first tokens longer than 3 characters
//  4. First tokens longer than 3 characters, within 2 characters of each
//     other in length, one a prefix of the other
//  5. At least two significant words each and an overlap of at least 2
//     covering half the shorter name
//
// Matches is symmetric. Empty names never match.
func Matches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	firstA, firstB := firstToken(a), firstToken(b)
	lenA, lenB := utf8.RuneCountInString(firstA), utf8.RuneCountInString(firstB)
	if lenA > 3 && lenB > 3 {
		if firstA == firstB {
			return true
		}
		if abs(lenA-lenB) <= 2 && (strings.HasPrefix(firstA, firstB) || strings.HasPrefix(firstB, firstA)) {
			return true
		}
	}

	return wordOverlapMatch(SignificantWords(a), SignificantWords(b))
}

// NormalizedMatches normalizes both names before matching.
func NormalizedMatches(a, b string) bool {
	return Matches(Normalize(a), Normalize(b))
}

// SignificantWords returns the distinct tokens longer than one character that
// are not stop words, in order of first appearance.
func SignificantWords(name string) []string {
	fields := strings.Fields(name)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if utf8.RuneCountInString(w) <= 1 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func wordOverlapMatch(wordsA, wordsB []string) bool {
	if len(wordsA) < 2 || len(wordsB) < 2 {
		return false
	}
	set := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		set[w] = struct{}{}
	}
	overlap := 0
	for _, w := range wordsB {
		if _, ok := set[w]; ok {
			overlap++
		}
	}
	required := int(math.Ceil(0.5 * float64(min(len(wordsA), len(wordsB)))))
	return overlap >= 2 && overlap >= required
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
