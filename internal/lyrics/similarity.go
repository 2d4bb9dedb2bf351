package lyrics

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TokenSortRatio scores the similarity of a and b from 0 to 100, ignoring
// word order, case and punctuation.
//
// Both strings are NFKC-normalized and case folded, split into runs of
// letters and digits, sorted, and re-joined with single spaces. The joined
// forms are compared with the normalized InDel similarity
// 100 * 2*LCS / (len(a)+len(b)), lengths counted in runes. Two strings with
// no tokens score 0.
func TokenSortRatio(a, b string) float64 {
	return indelRatio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	// a Caser is stateful and must not be shared between goroutines
	s = cases.Fold().String(norm.NFKC.String(s))
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func indelRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 0
	}
	if a == b {
		return 100
	}
	lcs := edlib.LCS(a, b)
	return 100 * float64(2*lcs) / float64(total)
}
