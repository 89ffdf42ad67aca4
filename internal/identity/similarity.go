package identity

import "strings"

// Ratio is a normalized similarity over two strings in [0, 1], computed as
// 2*M/T where M is the total length of matching blocks and T the combined
// length. Comparison is case-insensitive and whitespace-trimmed.
func Ratio(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))

	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	return 2.0 * float64(matchingLength(ra, rb)) / float64(total)
}

// matchingLength sums the longest common block, then recurses on the pieces
// before and after it.
func matchingLength(a, b []rune) int {
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingLength(a[:i], b[:j]) + matchingLength(a[i+size:], b[j+size:])
}

func longestMatch(a, b []rune) (bestI, bestJ, bestSize int) {
	// j2len[j] is the length of the match ending at (i, j).
	j2len := make(map[int]int)
	for i := range a {
		newJ2len := make(map[int]int)
		for j := range b {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return bestI, bestJ, bestSize
}
