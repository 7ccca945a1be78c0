package scenario

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/surge-forecast/internal/recommend"
	"github.com/i474232898/surge-forecast/internal/surge"
)

// ErrUnknownScenario is returned when session params name no configured scenario.
// No default scenario is ever substituted.
var ErrUnknownScenario = errors.New("unknown scenario")

// SessionParams selects one scenario and one of its time ranges.
type SessionParams struct {
	City      string `json:"city" validate:"required"`
	Event     string `json:"event" validate:"required"`
	TimeRange string `json:"range" validate:"required"`
}

// Normalize lower-cases and trims every field.
func (p SessionParams) Normalize() SessionParams {
	return SessionParams{
		City:      strings.ToLower(strings.TrimSpace(p.City)),
		Event:     strings.ToLower(strings.TrimSpace(p.Event)),
		TimeRange: strings.ToLower(strings.TrimSpace(p.TimeRange)),
	}
}

// Key returns a canonical string key for indexing this session in stores.
func (p SessionParams) Key() string {
	n := p.Normalize()
	return n.City + ":" + n.Event + ":" + n.TimeRange
}

// ParseSessionKey reverses Key.
func ParseSessionKey(key string) (SessionParams, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return SessionParams{}, fmt.Errorf("session key %q must be city:event:range", key)
	}
	p := SessionParams{City: parts[0], Event: parts[1], TimeRange: parts[2]}.Normalize()
	if p.City == "" || p.Event == "" || p.TimeRange == "" {
		return SessionParams{}, fmt.Errorf("session key %q has an empty component", key)
	}
	return p, nil
}

// TimeRange fixes the observation window of a scenario.
type TimeRange struct {
	ID           string
	StartDate    time.Time
	Days         int
	Anomaly      surge.Window
	Decay        surge.Window
	ActualCutoff int
}

// SurgeStart is the calendar date of the first anomaly day.
func (r TimeRange) SurgeStart() time.Time {
	return r.StartDate.AddDate(0, 0, r.Anomaly.Start)
}

// Facility is static capacity data carried into the headline metrics.
type Facility struct {
	CurrentCapacity int             `json:"currentCapacity"`
	EstimatedCases  surge.CaseRange `json:"estimatedCases"`
}

// HistoricalValidation is one backtest result quoted alongside the model.
type HistoricalValidation struct {
	Event            string   `json:"event"`
	Metric           string   `json:"metric"`
	PredictedPercent *float64 `json:"predictedPercent,omitempty"`
	ActualPercent    *float64 `json:"actualPercent,omitempty"`
	ErrorPoints      *float64 `json:"errorPoints,omitempty"`
	Note             string   `json:"note,omitempty"`
}

// Outcomes are the projected effects of acting on the full plan.
type Outcomes struct {
	OverflowRiskReductionPercent float64 `json:"overflowRiskReductionPercent"`
	ReactiveCostAvoidedMin       float64 `json:"reactiveCostAvoidedMin"`
	ReactiveCostAvoidedMax       float64 `json:"reactiveCostAvoidedMax"`
}

// ModelProfile holds the model quality figures reported for a scenario. They
// are configured values until a real forecaster reports measured ones.
type ModelProfile struct {
	ConfidencePercent float64                `json:"confidencePercent"`
	AccuracyPercent   float64                `json:"accuracyPercent"`
	MeanAbsoluteError float64                `json:"meanAbsoluteError"`
	DataSources       int                    `json:"dataSources"`
	BacktestPeriod    string                 `json:"backtestPeriod"`
	Validations       []HistoricalValidation `json:"validations"`
	Outcomes          Outcomes               `json:"outcomes"`
}

// Scenario is the static configuration for one city/event pair.
type Scenario struct {
	City           string
	Event          string
	Label          string
	Currency       string
	PeakWindowDays int
	Facility       Facility
	Model          ModelProfile
	Regimes        surge.RegimeSet
	Catalogue      *recommend.Catalogue

	ranges []TimeRange
}

// TimeRanges returns the configured ranges in declaration order.
func (s *Scenario) TimeRanges() []TimeRange {
	return append([]TimeRange(nil), s.ranges...)
}

// Range finds a time range by id.
func (s *Scenario) Range(id string) (TimeRange, bool) {
	for _, r := range s.ranges {
		if r.ID == id {
			return r, true
		}
	}
	return TimeRange{}, false
}

// Session is a resolved scenario plus the selected time range.
type Session struct {
	Params   SessionParams
	Scenario *Scenario
	Range    TimeRange
}

// WindowRequest builds the generator input for this session.
func (s Session) WindowRequest() surge.WindowRequest {
	return surge.WindowRequest{
		StartDate:    s.Range.StartDate,
		Days:         s.Range.Days,
		Anomaly:      s.Range.Anomaly,
		Decay:        s.Range.Decay,
		ActualCutoff: s.Range.ActualCutoff,
		Regimes:      s.Scenario.Regimes,
	}
}

// SummaryConfig returns the static values the summarizer carries through.
func (s Session) SummaryConfig(peakWindowDays int) surge.SummaryConfig {
	if s.Scenario.PeakWindowDays > 0 {
		peakWindowDays = s.Scenario.PeakWindowDays
	}
	return surge.SummaryConfig{
		PeakWindowDays:    peakWindowDays,
		ConfidencePercent: s.Scenario.Model.ConfidencePercent,
		EstimatedCases:    s.Scenario.Facility.EstimatedCases,
		CurrentCapacity:   s.Scenario.Facility.CurrentCapacity,
		ActionItems:       s.Scenario.Catalogue.Len(),
	}
}

// Registry is the read-only set of configured scenarios, safe for concurrent use.
type Registry struct {
	scenarios map[string]*Scenario
	order     []string
}

func scenarioKey(city, event string) string {
	return strings.ToLower(city) + ":" + strings.ToLower(event)
}

// Lookup resolves params to a session.
func (r *Registry) Lookup(params SessionParams) (Session, error) {
	p := params.Normalize()
	sc, ok := r.scenarios[scenarioKey(p.City, p.Event)]
	if !ok {
		return Session{}, fmt.Errorf("%w: city %q event %q", ErrUnknownScenario, p.City, p.Event)
	}
	tr, ok := sc.Range(p.TimeRange)
	if !ok {
		return Session{}, fmt.Errorf("%w: time range %q for %s/%s", ErrUnknownScenario, p.TimeRange, p.City, p.Event)
	}
	return Session{Params: p, Scenario: sc, Range: tr}, nil
}

// Sessions lists every city/event/range combination in declaration order.
func (r *Registry) Sessions() []SessionParams {
	var out []SessionParams
	for _, k := range r.order {
		sc := r.scenarios[k]
		for _, tr := range sc.ranges {
			out = append(out, SessionParams{City: sc.City, Event: sc.Event, TimeRange: tr.ID})
		}
	}
	return out
}
