package recommend

import (
	"fmt"
	"sort"
	"strings"
)

// Profile is the data the scorer compares for one user.
type Profile struct {
	UserID      uint
	University  string
	Major       string
	Year        int
	Interests   []string
	Bio         string
	Connections []uint
}

// Weights sets the relative importance of each similarity component.
type Weights struct {
	University float64
	Major      float64
	Year       float64
	Interests  float64
	Mutual     float64
	Bio        float64
}

// DefaultWeights favours mutual connections, then shared interests and university.
func DefaultWeights() Weights {
	return Weights{
		University: 3,
		Major:      2,
		Year:       1,
		Interests:  3,
		Mutual:     4,
		Bio:        1,
	}
}

// Component names one similarity signal.
type Component string

const (
	ComponentUniversity Component = "university"
	ComponentMajor      Component = "major"
	ComponentYear       Component = "year"
	ComponentInterests  Component = "interests"
	ComponentMutual     Component = "mutual"
	ComponentBio        Component = "bio"
)

// reasonThreshold is the component similarity from which it is reported as a reason.
const reasonThreshold = 0.5

// Signal is one computed component.
type Signal struct {
	Component  Component
	Similarity float64
	Reason     string
}

// Options controls Rank.
type Options struct {
	Weights  Weights
	Limit    int     // <= 0 keeps every result
	MinScore float64 // results scoring below are dropped
}

// Recommendation is a ranked candidate.
type Recommendation struct {
	UserID  uint     `json:"user_id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Score compares viewer and candidate. Components missing data on either
// side, or weighted zero, are left out of the weighted average. The returned
// signals follow component order.
func Score(viewer, candidate Profile, w Weights) (float64, []Signal) {
	var signals []Signal
	var total, weightSum float64

	add := func(c Component, weight, sim float64, reason string) {
		if weight <= 0 {
			return
		}
		total += weight * sim
		weightSum += weight
		signals = append(signals, Signal{Component: c, Similarity: sim, Reason: reason})
	}

	if sim, ok := textSimilarity(viewer.University, candidate.University); ok {
		add(ComponentUniversity, w.University, sim, pick(sim == 1, "same university", "similar university"))
	}
	if sim, ok := textSimilarity(viewer.Major, candidate.Major); ok {
		add(ComponentMajor, w.Major, sim, pick(sim == 1, "same major", "similar major"))
	}
	if sim, ok := yearSimilarity(viewer.Year, candidate.Year); ok {
		add(ComponentYear, w.Year, sim, pick(sim == 1, "same year", "close in year"))
	}
	if sim, shared, ok := jaccard(tagSet(viewer.Interests), tagSet(candidate.Interests)); ok {
		add(ComponentInterests, w.Interests, sim, "shared interests: "+strings.Join(shared, ", "))
	}
	if sim, shared, ok := mutualSimilarity(viewer, candidate); ok {
		add(ComponentMutual, w.Mutual, sim, mutualReason(shared))
	}
	if sim, _, ok := jaccard(bioTokens(viewer.Bio), bioTokens(candidate.Bio)); ok {
		add(ComponentBio, w.Bio, sim, "similar bio")
	}

	if weightSum == 0 {
		return 0, signals
	}
	return total / weightSum, signals
}

// Rank scores every candidate against viewer and returns the best matches,
// highest score first and lower user id first on ties. The viewer, excluded
// ids, duplicates and candidates scoring below MinScore are dropped; with no
// MinScore a candidate sharing nothing is kept with score 0.
func Rank(viewer Profile, candidates []Profile, exclude map[uint]struct{}, opts Options) []Recommendation {
	seen := make(map[uint]struct{}, len(candidates))
	out := make([]Recommendation, 0, len(candidates))

	for _, c := range candidates {
		if c.UserID == viewer.UserID {
			continue
		}
		if _, skip := exclude[c.UserID]; skip {
			continue
		}
		if _, dup := seen[c.UserID]; dup {
			continue
		}
		seen[c.UserID] = struct{}{}

		score, signals := Score(viewer, c, opts.Weights)
		if score < opts.MinScore {
			continue
		}

		reasons := []string{}
		for _, s := range signals {
			if s.Similarity >= reasonThreshold {
				reasons = append(reasons, s.Reason)
			}
		}
		out = append(out, Recommendation{UserID: c.UserID, Score: score, Reasons: reasons})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func mutualReason(n int) string {
	if n == 1 {
		return "1 mutual connection"
	}
	return fmt.Sprintf("%d mutual connections", n)
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
