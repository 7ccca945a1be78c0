package recommend

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency tier of a recommendation.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders tiers; lower is more urgent. Unknown tiers sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is one of the four known tiers.
func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// ParsePriority accepts a tier name in any case.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidCatalogue, s)
	}
	return p, nil
}

// Recommendation is one hand-authored operational action. It carries no
// presentation metadata; consumers map Category to their own visuals.
type Recommendation struct {
	ID                int       `json:"id"`
	Priority          Priority  `json:"priority"`
	Category          string    `json:"category"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ActionText        string    `json:"action"`
	ImpactText        string    `json:"impact"`
	Deadline          time.Time `json:"deadline"`
	CostEstimate      float64   `json:"cost"`
	ConfidencePercent float64   `json:"confidence"`
}

// Urgent reports whether the recommendation is critical or high priority.
func (r Recommendation) Urgent() bool {
	return r.Priority == PriorityCritical || r.Priority == PriorityHigh
}

// ErrInvalidCatalogue is returned when catalogue data breaks an invariant.
var ErrInvalidCatalogue = errors.New("invalid recommendation catalogue")

// Catalogue is an immutable, validated set of recommendations in declaration order.
// It is safe for concurrent readers.
type Catalogue struct {
	items []Recommendation
}

// NewCatalogue validates items and returns a catalogue owning a copy of them.
// Every deadline must fall on or before surgeStart; ids must be unique and
// confidence must lie in [0,100].
func NewCatalogue(items []Recommendation, surgeStart time.Time) (*Catalogue, error) {
	seen := make(map[int]struct{}, len(items))
	for _, r := range items {
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidCatalogue, r.ID)
		}
		seen[r.ID] = struct{}{}

		if !r.Priority.Valid() {
			return nil, fmt.Errorf("%w: recommendation %d has unknown priority %q", ErrInvalidCatalogue, r.ID, r.Priority)
		}
		if r.ConfidencePercent < 0 || r.ConfidencePercent > 100 {
			return nil, fmt.Errorf("%w: recommendation %d confidence %.1f outside [0,100]", ErrInvalidCatalogue, r.ID, r.ConfidencePercent)
		}
		if r.CostEstimate < 0 {
			return nil, fmt.Errorf("%w: recommendation %d has negative cost", ErrInvalidCatalogue, r.ID)
		}
		if r.Deadline.IsZero() {
			return nil, fmt.Errorf("%w: recommendation %d has no deadline", ErrInvalidCatalogue, r.ID)
		}
		if !surgeStart.IsZero() && r.Deadline.After(surgeStart) {
			return nil, fmt.Errorf("%w: recommendation %d deadline %s is after surge start %s", ErrInvalidCatalogue,
				r.ID, r.Deadline.Format(time.DateOnly), surgeStart.Format(time.DateOnly))
		}
	}

	return &Catalogue{items: append([]Recommendation(nil), items...)}, nil
}

// Items returns a copy of the catalogue in declaration order.
func (c *Catalogue) Items() []Recommendation {
	return append([]Recommendation(nil), c.items...)
}

// Len returns the number of recommendations.
func (c *Catalogue) Len() int {
	return len(c.items)
}

// List applies preds to the catalogue and ranks the result.
func (c *Catalogue) List(preds ...Predicate) []Recommendation {
	return Rank(Apply(c.items, preds...))
}
