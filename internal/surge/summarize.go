package surge

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultPeakWindowDays is the length of the rolling window used to locate the peak.
const DefaultPeakWindowDays = 3

// SummaryConfig carries the static scenario values that HeadlineMetrics reports
// alongside the figures derived from the series.
type SummaryConfig struct {
	PeakWindowDays    int
	ConfidencePercent float64
	EstimatedCases    CaseRange
	CurrentCapacity   int
	ActionItems       int
}

// Summarize derives the headline metrics from series. It is a pure function:
// the same series and config always produce the same metrics. An empty anomaly
// regime yields zero surge and no peak range rather than an error.
func Summarize(series Series, cfg SummaryConfig) HeadlineMetrics {
	m := HeadlineMetrics{
		ConfidencePercent: cfg.ConfidencePercent,
		EstimatedCases:    cfg.EstimatedCases,
		CurrentCapacity:   cfg.CurrentCapacity,
		ActionItems:       cfg.ActionItems,
	}

	var (
		baseTotals, anomTotals []float64
		baseResp, anomResp     []float64
		aqi, resp              []float64
		firstAnomaly           = -1
		lastActual             = -1
	)
	for i, rec := range series {
		switch rec.Regime {
		case RegimeBaseline:
			baseTotals = append(baseTotals, float64(rec.TotalCount))
			baseResp = append(baseResp, float64(rec.RespiratoryCount))
		case RegimeAnomaly:
			anomTotals = append(anomTotals, float64(rec.TotalCount))
			anomResp = append(anomResp, float64(rec.RespiratoryCount))
			if firstAnomaly < 0 {
				firstAnomaly = i
			}
		}
		if rec.IsActual {
			lastActual = i
		}
		if rec.AirQualityIndex > m.PeakAQI {
			m.PeakAQI = rec.AirQualityIndex
		}
		aqi = append(aqi, float64(rec.AirQualityIndex))
		resp = append(resp, float64(rec.RespiratoryCount))
	}

	if len(series) > 0 {
		m.PeakAQICategory = AQICategory(m.PeakAQI)
	}
	m.SurgePercent = surgePercent(baseTotals, anomTotals)
	m.RespiratorySurgePercent = surgePercent(baseResp, anomResp)
	m.AQIRespiratoryR2 = rSquared(aqi, resp)

	if firstAnomaly >= 0 {
		m.PeakRange = peakRange(series, firstAnomaly, cfg.PeakWindowDays)
		if lead := firstAnomaly - lastActual; lead > 0 {
			m.LeadTimeDays = lead
		}
	}

	return m
}

func surgePercent(baseline, elevated []float64) int {
	if len(baseline) == 0 || len(elevated) == 0 {
		return 0
	}
	base := stat.Mean(baseline, nil)
	if base == 0 {
		return 0
	}
	return int(math.Round((stat.Mean(elevated, nil) - base) / base * 100))
}

// peakRange scans the contiguous anomaly run starting at first for the
// window of `size` days with the highest total. Earliest wins on ties.
func peakRange(series Series, first, size int) *DateRange {
	end := first
	for end < len(series) && series[end].Regime == RegimeAnomaly {
		end++
	}
	if size <= 0 {
		size = DefaultPeakWindowDays
	}
	if n := end - first; size > n {
		size = n
	}

	best, bestStart := -1, first
	rolling := 0
	for i := first; i < end; i++ {
		rolling += series[i].TotalCount
		if i-first >= size {
			rolling -= series[i-size].TotalCount
		}
		if i-first+1 >= size && rolling > best {
			best = rolling
			bestStart = i - size + 1
		}
	}

	return &DateRange{
		From: series[bestStart].Date,
		To:   series[bestStart+size-1].Date,
	}
}

func rSquared(x, y []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return math.Round(r*r*100) / 100
}

// AQICategory maps an AQI value to its National Air Quality Index band.
func AQICategory(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Satisfactory"
	case aqi <= 200:
		return "Moderate"
	case aqi <= 300:
		return "Poor"
	case aqi <= 400:
		return "Very Poor"
	default:
		return "Severe"
	}
}
