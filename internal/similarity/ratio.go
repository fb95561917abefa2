// Package similarity scores how alike two location keys are.
package similarity

import "strings"

// Ratio returns the matching-block similarity of a and b in [0, 1].
//
// The longest common contiguous block is found, then the unmatched left and
// right remainders are searched recursively. With M matched characters the
// ratio is 2*M / (len(a)+len(b)). Comparison is case-insensitive and counts
// runes. Ratio("", "") is 1.
//
// Among equally long blocks the one starting earliest in the first operand
// wins. Operands are ordered before matching so Ratio(a, b) == Ratio(b, a).
func Ratio(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if lb < la {
		la, lb = lb, la
	}
	ra, rb := []rune(la), []rune(lb)

	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingChars(ra, rb)) / float64(total)
}

type span struct {
	alo, ahi, blo, bhi int
}

// matchingChars sums the sizes of all matching blocks between a and b.
func matchingChars(a, b []rune) int {
	matched := 0
	row := make([]int, len(b)+1)
	next := make([]int, len(b)+1)

	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b, s, row, next)
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

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside s.
// row and next are scratch buffers of len(b)+1.
func longestMatch(a, b []rune, s span, row, next []int) (besti, bestj, bestk int) {
	besti, bestj = s.alo, s.blo
	for j := s.blo; j <= s.bhi; j++ {
		row[j] = 0
	}
	for i := s.alo; i < s.ahi; i++ {
		next[s.blo] = 0
		for j := s.blo; j < s.bhi; j++ {
			if a[i] != b[j] {
				next[j+1] = 0
				continue
			}
			k := row[j] + 1
			next[j+1] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		row, next = next, row
	}
	return besti, bestj, bestk
}
