// Package recommend ranks candidate network connections by weighted profile similarity.
package recommend

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// maxYearGap is the year-of-study distance at which similarity reaches zero.
const maxYearGap = 4.0

// normalize lower-cases s and collapses inner whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// textSimilarity is 1 minus the Levenshtein distance over the longer length.
// ok is false when either side is empty.
func textSimilarity(a, b string) (sim float64, ok bool) {
	a, b = normalize(a), normalize(b)
	if a == "" || b == "" {
		return 0, false
	}
	if a == b {
		return 1, true
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	return math.Max(0, 1-float64(d)/float64(longest)), true
}

func yearSimilarity(a, b int) (float64, bool) {
	if a <= 0 || b <= 0 {
		return 0, false
	}
	gap := math.Abs(float64(a - b))
	return math.Max(0, 1-gap/maxYearGap), true
}

// tagSet normalizes tags into a set, dropping empties.
func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t = normalize(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b| and the sorted intersection.
func jaccard(a, b map[string]struct{}) (float64, []string, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil, false
	}
	var shared []string
	for k := range a {
		if _, ok := b[k]; ok {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)
	union := len(a) + len(b) - len(shared)
	return float64(len(shared)) / float64(union), shared, true
}

// bioTokens returns the set of lower-cased words of three or more letters.
func bioTokens(bio string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(bio), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

// mutualSimilarity is the shared connection count over the smaller network.
// The two users themselves never count as mutual connections.
func mutualSimilarity(a, b Profile) (sim float64, shared int, ok bool) {
	left := idSet(a.Connections, a.UserID, b.UserID)
	right := idSet(b.Connections, a.UserID, b.UserID)
	if len(left) == 0 || len(right) == 0 {
		return 0, 0, false
	}
	for id := range left {
		if _, ok := right[id]; ok {
			shared++
		}
	}
	return float64(shared) / float64(min(len(left), len(right))), shared, true
}

func idSet(ids []uint, skip ...uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, id := range skip {
		delete(set, id)
	}
	return set
}
