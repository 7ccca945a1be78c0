package surge

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks malformed window, cutoff or date-range parameters.
// No series is produced when a request fails validation.
var ErrValidation = errors.New("invalid window request")

// ErrInvalidSeries marks a generated series that breaks the record invariants.
// It points at the generator, never at the caller's request.
var ErrInvalidSeries = errors.New("invalid indicator series")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func badSeries(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSeries, fmt.Sprintf(format, args...))
}

// Validate checks the request before any record is generated.
func (r WindowRequest) Validate() error {
	if r.StartDate.IsZero() {
		return invalid("start date is required")
	}
	if r.Days <= 0 {
		return invalid("day count must be positive, got %d", r.Days)
	}
	if err := checkWindow("anomaly", r.Anomaly, r.Days); err != nil {
		return err
	}
	if err := checkWindow("decay", r.Decay, r.Days); err != nil {
		return err
	}
	if !r.Anomaly.Empty() && !r.Decay.Empty() && r.Decay.Start < r.Anomaly.End {
		return invalid("decay window [%d,%d) must follow anomaly window [%d,%d) without overlap",
			r.Decay.Start, r.Decay.End, r.Anomaly.Start, r.Anomaly.End)
	}
	if r.ActualCutoff < 0 || r.ActualCutoff > r.Days {
		return invalid("actual cutoff %d outside [0,%d]", r.ActualCutoff, r.Days)
	}
	for _, reg := range []Regime{RegimeBaseline, RegimeAnomaly, RegimeDecay} {
		if err := checkRanges(reg, r.Regimes.For(reg)); err != nil {
			return err
		}
	}
	return nil
}

func checkWindow(name string, w Window, days int) error {
	if w.Start < 0 || w.End < w.Start || w.End > days {
		return invalid("%s window [%d,%d) outside [0,%d)", name, w.Start, w.End, days)
	}
	return nil
}

func checkRanges(reg Regime, rr RegimeRanges) error {
	named := map[string]Range{
		"respiratory": rr.Respiratory,
		"trauma":      rr.Trauma,
		"fever":       rr.Fever,
		"aqi":         rr.AQI,
	}
	for name, rg := range named {
		if rg.Min < 0 || rg.Spread < 0 {
			return invalid("%s %s range must be non-negative", reg, name)
		}
	}
	if rr.AQI.Min < 1 {
		return invalid("%s aqi minimum must be positive", reg)
	}
	return nil
}

// Validate checks the record invariants of a series: component sums,
// exclusive actual/prediction flags with actual days forming a prefix,
// and contiguous ascending dates.
func (s Series) Validate() error {
	seenPrediction := false
	for i, rec := range s {
		if rec.TotalCount != rec.RespiratoryCount+rec.TraumaCount+rec.FeverCount {
			return badSeries("day %d total %d does not match its components", i, rec.TotalCount)
		}
		if rec.RespiratoryCount < 0 || rec.TraumaCount < 0 || rec.FeverCount < 0 {
			return badSeries("day %d has a negative count", i)
		}
		if rec.AirQualityIndex <= 0 {
			return badSeries("day %d aqi must be positive", i)
		}
		if rec.IsActual == rec.IsPrediction {
			return badSeries("day %d must be exactly one of actual or prediction", i)
		}
		if rec.IsPrediction {
			seenPrediction = true
		} else if seenPrediction {
			return badSeries("day %d is actual after a predicted day", i)
		}
		if i > 0 && !rec.Date.Equal(s[i-1].Date.AddDate(0, 0, 1)) {
			return badSeries("day %d (%s) does not follow %s", i,
				rec.Date.Format(time.DateOnly), s[i-1].Date.Format(time.DateOnly))
		}
	}
	return nil
}
