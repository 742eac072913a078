// Package names canonicalizes and fuzzy-matches owner and dealer names.
//
// Both the chain walker and the duplicate detector depend on this package;
// every function here is pure.
package names

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacritics folds the accented letters that show up in Nordic and
// continental owner names onto their base Latin letters.
var diacritics = strings.NewReplacer(
	"å", "a", "Å", "A", "ä", "a", "Ä", "A", "à", "a", "À", "A", "á", "a", "Á", "A", "â", "a", "Â", "A", "ã", "a", "Ã", "A",
	"æ", "ae", "Æ", "AE",
	"ö", "o", "Ö", "O", "ø", "o", "Ø", "O", "ó", "o", "Ó", "O", "ò", "o", "Ò", "O", "ô", "o", "Ô", "O", "õ", "o", "Õ", "O",
	"é", "e", "É", "E", "è", "e", "È", "E", "ê", "e", "Ê", "E", "ë", "e", "Ë", "E",
	"ü", "u", "Ü", "U", "ú", "u", "Ú", "U", "ù", "u", "Ù", "U", "û", "u", "Û", "U",
	"í", "i", "Í", "I", "ì", "i", "Ì", "I", "î", "i", "Î", "I", "ï", "i", "Ï", "I",
	"ñ", "n", "Ñ", "N", "ç", "c", "Ç", "C", "ß", "ss",
	"ý", "y", "Ý", "Y", "ÿ", "y",
	"š", "s", "Š", "S", "ž", "z", "Ž", "Z", "č", "c", "Č", "C", "ł", "l", "Ł", "L",
)

// punctuation lists the characters removed outright.
var punctuation = strings.NewReplacer(
	".", "",
	",", "",
	"-", "",
	"&", "",
)

var whitespaceRe = regexp.MustCompile(`[\s\p{Zs}]+`)

// Normalize canonicalizes a free-text name for comparison:
//  1. Fold known diacritics to base letters
//  2. Lower-case, then decompose whatever non-ASCII is left and drop
//     combining marks, folding the result through the table again
//  3. Collapse whitespace runs
//  4. Strip periods, commas, hyphens and ampersands
//  5. Trim
//
// Normalize is total and idempotent.
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	s := diacritics.Replace(name)
	s = strings.ToLower(s)
	s = stripCombining(s)
	// Lower-casing and decomposition can surface letters the table folds
	// ("ẞ" -> "ß", "Ǿ" -> "ø"), so fold once more.
	s = strings.ToLower(diacritics.Replace(s))
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = punctuation.Replace(s)

	// Removing a standalone "&" or "-" leaves a double space behind.
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func stripCombining(s string) string {
	for _, r := range s {
		if r >= unicode.MaxASCII {
			t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
			out, _, err := transform.String(t, s)
			if err != nil {
				return s
			}
			return out
		}
	}
	return s
}
