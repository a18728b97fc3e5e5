package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Normalize trims s, folds it to lower case and composes it to NFC so
// that visually identical topics compare equal.
func Normalize(s string) string {
	return norm.NFC.String(lower.String(strings.TrimSpace(s)))
}

// Ratio returns the Ratcliff/Obershelp similarity of a and b: twice the
// number of matched runes over the total rune count, in [0, 1].
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ra, rb)) / float64(total)
}

// matchingRunes sums the sizes of the recursively found longest common
// blocks of a and b.
func matchingRunes(a, b []rune) int {
	positions := make(map[rune][]int, len(b))
	for j, r := range b {
		positions[r] = append(positions[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	matched := 0
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, positions, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside the
// given bounds. Ties go to the block starting earliest in a, then in b.
func longestMatch(a []rune, positions map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestk int) {
	besti, bestj = alo, blo
	runs := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range positions[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := runs[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		runs = next
	}
	return besti, bestj, bestk
}

// sharedStem reports whether some word of a and some word of b begin with
// the same minLen runes.
func sharedStem(a, b string, minLen int) bool {
	for _, wa := range words(a) {
		if len(wa) < minLen {
			continue
		}
		for _, wb := range words(b) {
			if len(wb) < minLen {
				continue
			}
			if string(wa[:minLen]) == string(wb[:minLen]) {
				return true
			}
		}
	}
	return false
}

func words(s string) [][]rune {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([][]rune, len(fields))
	for i, f := range fields {
		out[i] = []rune(f)
	}
	return out
}
