package surge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSeries(totals []int, regimes []Regime, cutoff int) Series {
	start := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	s := make(Series, len(totals))
	for i, total := range totals {
		s[i] = DailyIndicatorRecord{
			Date:             start.AddDate(0, 0, i),
			RespiratoryCount: total,
			TotalCount:       total,
			AirQualityIndex:  100 + total,
			IsActual:         i < cutoff,
			IsPrediction:     i >= cutoff,
			Regime:           regimes[i],
		}
	}
	return s
}

func TestSummarizeEndToEnd(t *testing.T) {
	series, err := NewSeededSimulator(2024).Generate(context.Background(), diwaliRequest())
	require.NoError(t, err)

	cfg := SummaryConfig{
		ConfidencePercent: 92,
		EstimatedCases:    CaseRange{Min: 340, Max: 380},
		CurrentCapacity:   220,
		ActionItems:       6,
	}
	m := Summarize(series, cfg)

	assert.Positive(t, m.SurgePercent)
	assert.Positive(t, m.RespiratorySurgePercent)
	require.NotNil(t, m.PeakRange)
	assert.False(t, m.PeakRange.From.Before(series[30].Date))
	assert.False(t, m.PeakRange.To.After(series[35].Date))
	assert.Equal(t, 2, int(m.PeakRange.To.Sub(m.PeakRange.From).Hours()/24))
	assert.GreaterOrEqual(t, m.PeakAQI, 380)
	assert.Contains(t, []string{"Very Poor", "Severe"}, m.PeakAQICategory)
	assert.Equal(t, 1, m.LeadTimeDays)
	assert.Equal(t, 92.0, m.ConfidencePercent)
	assert.Equal(t, 220, m.CurrentCapacity)
	assert.Equal(t, CaseRange{Min: 340, Max: 380}, m.EstimatedCases)
	assert.Equal(t, 6, m.ActionItems)
	assert.Greater(t, m.AQIRespiratoryR2, 0.5)
}

func TestSummarizeIsIdempotent(t *testing.T) {
	series, err := NewSeededSimulator(11).Generate(context.Background(), diwaliRequest())
	require.NoError(t, err)

	cfg := SummaryConfig{ConfidencePercent: 90}
	assert.Equal(t, Summarize(series, cfg), Summarize(series, cfg))
}

func TestSummarizeSurgeAndPeak(t *testing.T) {
	b, a, d := RegimeBaseline, RegimeAnomaly, RegimeDecay
	series := fixedSeries(
		[]int{100, 100, 100, 100, 150, 250, 200, 300, 120},
		[]Regime{b, b, b, b, a, a, a, a, d},
		4,
	)

	m := Summarize(series, SummaryConfig{PeakWindowDays: 2})

	// anomaly mean 225 vs baseline 100
	assert.Equal(t, 125, m.SurgePercent)
	require.NotNil(t, m.PeakRange)
	assert.Equal(t, series[6].Date, m.PeakRange.From)
	assert.Equal(t, series[7].Date, m.PeakRange.To)
	assert.Equal(t, 1, m.LeadTimeDays)
	assert.Equal(t, 400, m.PeakAQI)
	assert.Equal(t, "Very Poor", m.PeakAQICategory)
}

func TestSummarizePeakTiesPickEarliest(t *testing.T) {
	b, a := RegimeBaseline, RegimeAnomaly
	series := fixedSeries(
		[]int{50, 80, 80, 80, 80},
		[]Regime{b, a, a, a, a},
		1,
	)

	m := Summarize(series, SummaryConfig{PeakWindowDays: 2})
	require.NotNil(t, m.PeakRange)
	assert.Equal(t, series[1].Date, m.PeakRange.From)
	assert.Equal(t, series[2].Date, m.PeakRange.To)
}

func TestSummarizeShortAnomalyUsesWholeWindow(t *testing.T) {
	b, a := RegimeBaseline, RegimeAnomaly
	series := fixedSeries([]int{50, 50, 90, 50}, []Regime{b, b, a, b}, 2)

	m := Summarize(series, SummaryConfig{})
	require.NotNil(t, m.PeakRange)
	assert.Equal(t, series[2].Date, m.PeakRange.From)
	assert.Equal(t, series[2].Date, m.PeakRange.To)
}

func TestSummarizeEmptyAnomalyWindow(t *testing.T) {
	req := diwaliRequest()
	req.Anomaly = Window{Start: 30, End: 30}

	series, err := NewSeededSimulator(8).Generate(context.Background(), req)
	require.NoError(t, err)

	var m HeadlineMetrics
	require.NotPanics(t, func() { m = Summarize(series, SummaryConfig{}) })
	assert.Zero(t, m.SurgePercent)
	assert.Zero(t, m.RespiratorySurgePercent)
	assert.Nil(t, m.PeakRange)
	assert.Zero(t, m.LeadTimeDays)
}

func TestSummarizeEmptySeries(t *testing.T) {
	m := Summarize(nil, SummaryConfig{CurrentCapacity: 10})
	assert.Zero(t, m.SurgePercent)
	assert.Nil(t, m.PeakRange)
	assert.Empty(t, m.PeakAQICategory)
	assert.Equal(t, 10, m.CurrentCapacity)
}

func TestAQICategory(t *testing.T) {
	cases := map[int]string{
		30:  "Good",
		100: "Satisfactory",
		165: "Moderate",
		250: "Poor",
		380: "Very Poor",
		412: "Severe",
	}
	for aqi, want := range cases {
		assert.Equal(t, want, AQICategory(aqi), "aqi %d", aqi)
	}
}
