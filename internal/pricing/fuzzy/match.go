// Package fuzzy ranks known names against a possibly misspelled query.
// Everything here is pure: no I/O, no clocks, no randomness.
package fuzzy

import (
	"sort"
	"strings"

	"mandi-prices/internal/models"
)

// Match scores each entry against query and returns those at or above threshold.
// An entry's score is the best of its canonical name and aliases, where
// score = 1 - levenshtein(a, b) / max(len(a), len(b)) over normalized runes.
// Output is sorted by score desc, then edit distance asc, then name asc.
func Match(query string, candidates []models.NameEntry, threshold float64) []models.Candidate {
	q := Normalize(query)
	if q == "" {
		return nil
	}

	out := make([]models.Candidate, 0, len(candidates))
	for _, entry := range candidates {
		score, distance, ok := best(q, entry)
		if !ok || score < threshold {
			continue
		}
		out = append(out, models.Candidate{
			Entry:        entry,
			Similarity:   score,
			DistanceRank: distance,
			Source:       models.SourceSpelling,
		})
	}

	Sort(out)
	return out
}

// Sort orders candidates deterministically: similarity desc, distance asc,
// canonical name asc, then district and state to separate same-named markets.
func Sort(cands []models.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.DistanceRank != b.DistanceRank {
			return a.DistanceRank < b.DistanceRank
		}
		an, bn := strings.ToLower(a.Entry.CanonicalName), strings.ToLower(b.Entry.CanonicalName)
		if an != bn {
			return an < bn
		}
		if a.Entry.District != b.Entry.District {
			return a.Entry.District < b.Entry.District
		}
		return a.Entry.State < b.Entry.State
	})
}

func best(q string, entry models.NameEntry) (float64, int, bool) {
	var (
		bestScore = -1.0
		bestDist  int
	)
	for _, name := range entry.Names() {
		n := Normalize(name)
		if n == "" {
			continue
		}
		score, dist := similarity(q, n)
		if score > bestScore || (score == bestScore && dist < bestDist) {
			bestScore, bestDist = score, dist
		}
	}
	return bestScore, bestDist, bestScore >= 0
}

// Equal reports whether two names normalize to the same form.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

func similarity(a, b string) (float64, int) {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1, 0
	}
	d := Levenshtein(ra, rb)
	return 1 - float64(d)/float64(longest), d
}

// Levenshtein is the classic two-row edit distance over runes.
func Levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
