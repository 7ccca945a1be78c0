package recommend

// Filter is the wire form of a recommendation query.
type Filter struct {
	Priorities []Priority
	Categories []string
	UrgentOnly bool
}

// Predicates converts f into the equivalent predicate chain.
func (f Filter) Predicates() []Predicate {
	preds := []Predicate{ByPriority(f.Priorities...), ByCategory(f.Categories...)}
	if f.UrgentOnly {
		preds = append(preds, Urgent())
	}
	return preds
}

// Plan is a ranked, filtered set of recommendations with its cost rollup.
// TotalCost and UrgentCount always describe Items, never the full catalogue.
type Plan struct {
	Items       []Recommendation `json:"items"`
	TotalCost   float64          `json:"totalCost"`
	UrgentCount int              `json:"urgentCount"`
	Currency    string           `json:"currency"`
}

// BuildPlan filters and ranks the catalogue and rolls up the result.
func (c *Catalogue) BuildPlan(f Filter, currency string) Plan {
	items := c.List(f.Predicates()...)
	return Plan{
		Items:       items,
		TotalCost:   TotalCost(items),
		UrgentCount: CountUrgent(items),
		Currency:    currency,
	}
}
