package search

import "strings"

const (
	// minMatchLength is the shortest run of matched characters that becomes
	// a highlight interval.
	minMatchLength = 2

	// maxFuzzyPattern is the longest pattern the bitap word supports.
	// Longer tokens still get exact-substring matching.
	maxFuzzyPattern = 31
)

// Interval is an inclusive rune-offset range [Start, End] within a field's
// text identifying a contiguous matched span.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// matchPattern runs one query token against one field value. It returns a
// relevance score (0 = exact occurrence, otherwise errors/patternLen), the
// matched rune intervals, and whether the token matched at all.
//
// Matching is case-insensitive and position-independent: where in the text
// the token occurs does not affect the score, so a hit late in a long body is
// not demoted.
func matchPattern(text, pattern string, threshold float64) (float64, []Interval, bool) {
	if text == "" || pattern == "" {
		return 0, nil, false
	}

	t := []rune(strings.ToLower(text))
	p := []rune(strings.ToLower(pattern))

	// Exact substring occurrences always win over fuzzy ones.
	if ivs := exactOccurrences(t, p); len(ivs) > 0 {
		return 0, ivs, true
	}

	if len(p) > maxFuzzyPattern {
		return 0, nil, false
	}

	maxErrors := int(threshold * float64(len(p)))
	if maxErrors == 0 {
		return 0, nil, false
	}

	errs, ok := bitap(t, p, maxErrors)
	if !ok {
		return 0, nil, false
	}
	score := float64(errs) / float64(len(p))
	if score > threshold {
		return 0, nil, false
	}
	return score, maskIntervals(t, p), true
}

// exactOccurrences returns every occurrence of p inside t.
func exactOccurrences(t, p []rune) []Interval {
	if len(p) > len(t) {
		return nil
	}
	var out []Interval
	for i := 0; i+len(p) <= len(t); i++ {
		match := true
		for j := range p {
			if t[i+j] != p[j] {
				match = false
				break
			}
		}
		if match {
			out = append(out, Interval{Start: i, End: i + len(p) - 1})
		}
	}
	return out
}

// bitap is the Wu–Manber shift-and approximate matcher. It reports the
// smallest error count (<= maxErrors) of any occurrence of p in t, supporting
// substitutions, insertions, and deletions.
func bitap(t, p []rune, maxErrors int) (int, bool) {
	masks := make(map[rune]uint64, len(p))
	for i, c := range p {
		masks[c] |= 1 << uint(i)
	}
	final := uint64(1) << uint(len(p)-1)

	r := make([]uint64, maxErrors+1)
	best := -1

	for _, c := range t {
		mask := masks[c]
		prevOld := r[0]
		r[0] = ((r[0] << 1) | 1) & mask
		for k := 1; k <= maxErrors; k++ {
			old := r[k]
			r[k] = (((r[k] << 1) | 1) & mask) | // match
				prevOld | // insertion in text
				((prevOld << 1) | 1) | // substitution
				((r[k-1] << 1) | 1) // deletion from text
			prevOld = old
		}
		for k := 0; k <= maxErrors; k++ {
			if r[k]&final != 0 {
				if best == -1 || k < best {
					best = k
				}
				break
			}
		}
		if best == 0 {
			break
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// maskIntervals marks every text position whose rune occurs in the pattern
// and converts runs of at least minMatchLength into intervals. This mirrors
// how approximate matchers report which characters participated in a fuzzy
// hit without tracking per-error alignments.
func maskIntervals(t, p []rune) []Interval {
	alphabet := make(map[rune]struct{}, len(p))
	for _, c := range p {
		alphabet[c] = struct{}{}
	}

	var out []Interval
	runStart := -1
	for i, c := range t {
		if _, ok := alphabet[c]; ok {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 && i-runStart >= minMatchLength {
			out = append(out, Interval{Start: runStart, End: i - 1})
		}
		runStart = -1
	}
	if runStart >= 0 && len(t)-runStart >= minMatchLength {
		out = append(out, Interval{Start: runStart, End: len(t) - 1})
	}
	return out
}
