package registry

// Suggest returns the closest known template id to the given unknown id, or
// "" when nothing is close enough to be a plausible typo.
func (r *Registry) Suggest(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := ""
	bestDist := maxSuggestDistance(id) + 1
	for known := range r.templates {
		if d := levenshtein(id, known); d < bestDist {
			best = known
			bestDist = d
		}
	}
	return best
}

// maxSuggestDistance scales the accepted edit distance with the id length,
// so short ids only match near-exact typos.
func maxSuggestDistance(id string) int {
	d := len(id) / 3
	if d < 2 {
		d = 2
	}
	return d
}

// levenshtein calculates the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string
// into another. Pure function, two-row matrix for space efficiency.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	runesA := []rune(a)
	runesB := []rune(b)
	prev := make([]int, len(runesB)+1)
	curr := make([]int, len(runesB)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(runesA); i++ {
		curr[0] = i
		for j := 1; j <= len(runesB); j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(runesB)]
}

func min3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
