package surge

import (
	"time"
)

// Regime identifies the distribution a day's indicators were drawn from.
type Regime string

const (
	RegimeBaseline Regime = "baseline"
	RegimeAnomaly  Regime = "anomaly"
	RegimeDecay    Regime = "decay"
)

// DailyIndicatorRecord is one calendar day of clinical and environmental indicators.
// TotalCount always equals the sum of the three clinical counts.
type DailyIndicatorRecord struct {
	Date             time.Time `json:"date"` // midnight UTC
	RespiratoryCount int       `json:"respiratory"`
	TraumaCount      int       `json:"trauma"`
	FeverCount       int       `json:"fever"`
	TotalCount       int       `json:"total"`
	AirQualityIndex  int       `json:"aqi"`
	IsPrediction     bool      `json:"isPrediction"`
	IsActual         bool      `json:"isActual"`
	Regime           Regime    `json:"regime"`
}

// Series is an ordered, contiguous run of daily records.
type Series []DailyIndicatorRecord

// Window is a half-open [Start, End) range of day indices. Start == End is empty.
type Window struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of days covered by the window.
func (w Window) Len() int {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start
}

// Empty reports whether the window covers no days.
func (w Window) Empty() bool {
	return w.Len() == 0
}

// Contains reports whether day index i falls inside the window.
func (w Window) Contains(i int) bool {
	return i >= w.Start && i < w.End
}

// Range describes a draw interval [Min, Min+Spread).
type Range struct {
	Min    float64 `json:"min" yaml:"min" validate:"gte=0"`
	Spread float64 `json:"spread" yaml:"spread" validate:"gte=0"`
}

// Max is the exclusive upper bound of the range before rounding.
func (r Range) Max() float64 {
	return r.Min + r.Spread
}

// RegimeRanges holds the draw intervals of one regime.
type RegimeRanges struct {
	Respiratory Range `json:"respiratory" yaml:"respiratory"`
	Trauma      Range `json:"trauma" yaml:"trauma"`
	Fever       Range `json:"fever" yaml:"fever"`
	AQI         Range `json:"aqi" yaml:"aqi"`
}

// RegimeSet bundles the three regimes a window request draws from.
type RegimeSet struct {
	Baseline RegimeRanges `json:"baseline" yaml:"baseline"`
	Anomaly  RegimeRanges `json:"anomaly" yaml:"anomaly"`
	Decay    RegimeRanges `json:"decay" yaml:"decay"`
}

// For returns the ranges governing the given regime.
func (s RegimeSet) For(r Regime) RegimeRanges {
	switch r {
	case RegimeAnomaly:
		return s.Anomaly
	case RegimeDecay:
		return s.Decay
	default:
		return s.Baseline
	}
}

// WindowRequest is everything a Generator needs to build one series.
type WindowRequest struct {
	StartDate    time.Time `json:"startDate"`
	Days         int       `json:"days"`
	Anomaly      Window    `json:"anomaly"`
	Decay        Window    `json:"decay"`
	ActualCutoff int       `json:"actualCutoff"`
	Regimes      RegimeSet `json:"regimes"`
}

// RegimeAt classifies day index i.
func (r WindowRequest) RegimeAt(i int) Regime {
	switch {
	case r.Anomaly.Contains(i):
		return RegimeAnomaly
	case r.Decay.Contains(i):
		return RegimeDecay
	default:
		return RegimeBaseline
	}
}

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CaseRange is an inclusive min/max estimate of daily admissions.
type CaseRange struct {
	Min int `json:"min" yaml:"min" validate:"gte=0"`
	Max int `json:"max" yaml:"max" validate:"gtefield=Min"`
}

// HeadlineMetrics is the derived at-a-glance summary of a series.
type HeadlineMetrics struct {
	SurgePercent            int        `json:"surgePercent"`
	RespiratorySurgePercent int        `json:"respiratorySurgePercent"`
	PeakRange               *DateRange `json:"peakRange,omitempty"`
	PeakAQI                 int        `json:"peakAqi"`
	PeakAQICategory         string     `json:"peakAqiCategory"`
	ConfidencePercent       float64    `json:"confidencePercent"`
	LeadTimeDays            int        `json:"leadTimeDays"`
	EstimatedCases          CaseRange  `json:"estimatedCases"`
	CurrentCapacity         int        `json:"currentCapacity"`
	ActionItems             int        `json:"actionItems"`
	AQIRespiratoryR2        float64    `json:"aqiRespiratoryR2"`
}
