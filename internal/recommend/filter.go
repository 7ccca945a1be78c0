package recommend

import (
	"sort"
	"strings"
)

// Predicate selects recommendations. Predicates never modify their input.
type Predicate func(Recommendation) bool

// ByPriority keeps recommendations whose tier is one of ps. No tiers keeps everything.
func ByPriority(ps ...Priority) Predicate {
	if len(ps) == 0 {
		return func(Recommendation) bool { return true }
	}
	set := make(map[Priority]struct{}, len(ps))
	for _, p := range ps {
		set[p] = struct{}{}
	}
	return func(r Recommendation) bool {
		_, ok := set[r.Priority]
		return ok
	}
}

// ByCategory keeps recommendations tagged with one of cats (case-insensitive).
// No categories keeps everything.
func ByCategory(cats ...string) Predicate {
	if len(cats) == 0 {
		return func(Recommendation) bool { return true }
	}
	set := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		set[strings.ToLower(c)] = struct{}{}
	}
	return func(r Recommendation) bool {
		_, ok := set[strings.ToLower(r.Category)]
		return ok
	}
}

// Urgent keeps critical and high priority recommendations.
func Urgent() Predicate {
	return Recommendation.Urgent
}

// Apply returns a new slice with the recommendations matching every predicate,
// in their original order.
func Apply(recs []Recommendation, preds ...Predicate) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
next:
	for _, r := range recs {
		for _, p := range preds {
			if p != nil && !p(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// Rank returns a copy of recs ordered by priority tier, then by ascending
// deadline. Equal entries keep their input order.
func Rank(recs []Recommendation) []Recommendation {
	out := make([]Recommendation, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		return a.Deadline.Before(b.Deadline)
	})
	return out
}

// TotalCost sums CostEstimate over exactly recs.
func TotalCost(recs []Recommendation) float64 {
	var total float64
	for _, r := range recs {
		total += r.CostEstimate
	}
	return total
}

// CountUrgent returns how many of recs are critical or high priority.
func CountUrgent(recs []Recommendation) int {
	n := 0
	for _, r := range recs {
		if r.Urgent() {
			n++
		}
	}
	return n
}
