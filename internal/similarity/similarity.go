// Package similarity implements the normalized string similarity metric used
// for duplicate event detection.
//
// The metric is Jaro-Winkler: a base Jaro score from windowed character
// matches and transpositions, plus a bonus for a shared prefix of up to four
// characters. The duplicate threshold used by the dedup engine was tuned
// against this exact implementation, so the match window, transposition
// counting, and prefix bonus weight must not be changed.
package similarity

// Score returns a similarity score in [0,1] for two short strings.
// Identical strings score 1; if either string is empty the score is 0.
func Score(s1, s2 string) float64 {
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if s1 == s2 {
		return 1
	}

	r1 := []rune(s1)
	r2 := []rune(s2)

	// Matches are only counted within a window of half the longer string.
	window := max(len(r1), len(r2))/2 - 1

	matches1 := make([]bool, len(r1))
	matches2 := make([]bool, len(r2))

	m := 0
	for i := range r1 {
		low := 0
		if i >= window {
			low = i - window
		}
		high := len(r2) - 1
		if i+window <= len(r2)-1 {
			high = i + window
		}
		for j := low; j <= high; j++ {
			if !matches1[i] && !matches2[j] && r1[i] == r2[j] {
				m++
				matches1[i] = true
				matches2[j] = true
				break
			}
		}
	}

	if m == 0 {
		return 0
	}

	// Count transpositions among matched characters, in order.
	k := 0
	transpositions := 0
	for i := range r1 {
		if !matches1[i] {
			continue
		}
		j := k
		for j < len(r2) && !matches2[j] {
			j++
		}
		if j < len(r2) {
			k = j + 1
			if r1[i] != r2[j] {
				transpositions++
			}
		}
	}

	weight := (float64(m)/float64(len(r1)) +
		float64(m)/float64(len(r2)) +
		(float64(m)-float64(transpositions)/2)/float64(m)) / 3

	// Winkler prefix bonus: shared prefix up to 4 characters, weight 0.1,
	// applied only when the base score is already strong.
	if weight > 0.7 {
		l := 0
		for l < 4 && l < len(r1) && l < len(r2) && r1[l] == r2[l] {
			l++
		}
		weight += float64(l) * 0.1 * (1 - weight)
	}

	return weight
}
