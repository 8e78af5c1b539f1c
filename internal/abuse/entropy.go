package abuse

import "math"

// entropy computes the Shannon entropy of s in bits per rune. It depends only
// on the rune frequency distribution, so it is invariant under permutation,
// zero for a single repeated rune, and bounded by log2 of the number of
// distinct runes.
func entropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, r := range s {
		freq[r]++
		total++
	}

	h := 0.0
	for _, count := range freq {
		p := float64(count) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
