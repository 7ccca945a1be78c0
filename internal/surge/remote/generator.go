// Package remote talks to an external statistical forecaster that serves
// indicator series over HTTP. It conforms to the same Generator contract as
// the in-process simulation.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"k8s.io/klog/v2"

	"github.com/i474232898/surge-forecast/internal/surge"
)

// Generator implements surge.Generator against a model service exposing
// POST {baseURL}/v1/series.
type Generator struct {
	name    string
	baseURL string
	caller  *caller
}

// NewGenerator creates a remote Generator using client for outbound calls.
func NewGenerator(client *http.Client, baseURL string) *Generator {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "forecaster",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Generator{
		name:    "remote",
		baseURL: strings.TrimRight(baseURL, "/"),
		caller: &caller{
			client: client,
			backoff: Backoff{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
			circuit: cb,
		},
	}
}

func (g *Generator) Name() string {
	return g.name
}

type seriesRequest struct {
	StartDate    string          `json:"startDate"`
	Days         int             `json:"days"`
	Anomaly      surge.Window    `json:"anomaly"`
	Decay        surge.Window    `json:"decay"`
	ActualCutoff int             `json:"actualCutoff"`
	Regimes      surge.RegimeSet `json:"regimes"`
}

type seriesResponse struct {
	Records []struct {
		Date         string `json:"date"`
		Respiratory  int    `json:"respiratory"`
		Trauma       int    `json:"trauma"`
		Fever        int    `json:"fever"`
		AQI          int    `json:"aqi"`
		IsPrediction bool   `json:"isPrediction"`
	} `json:"records"`
}

// Generate asks the model service for a series and checks the reply against
// the same invariants the simulator guarantees. Any malformed reply is
// reported as surge.ErrInvalidSeries. Totals, actual flags and
// regimes are derived locally from the request.
func (g *Generator) Generate(ctx context.Context, req surge.WindowRequest) (surge.Series, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if g.baseURL == "" {
		return nil, fmt.Errorf("remote forecaster url is not configured")
	}

	body, err := json.Marshal(seriesRequest{
		StartDate:    req.StartDate.UTC().Format(time.DateOnly),
		Days:         req.Days,
		Anomaly:      req.Anomaly,
		Decay:        req.Decay,
		ActualCutoff: req.ActualCutoff,
		Regimes:      req.Regimes,
	})
	if err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		r, err := http.NewRequest(http.MethodPost, g.baseURL+"/v1/series", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}

	resp, err := g.caller.do(ctx, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("remote forecaster: %w", err)
	}
	defer resp.Body.Close()

	var payload seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("remote forecaster: %w: decode: %v", surge.ErrInvalidSeries, err)
	}
	if len(payload.Records) != req.Days {
		return nil, fmt.Errorf("remote forecaster: %w: got %d records, want %d", surge.ErrInvalidSeries, len(payload.Records), req.Days)
	}

	series := make(surge.Series, 0, len(payload.Records))
	for i, rec := range payload.Records {
		date, err := time.Parse(time.DateOnly, rec.Date)
		if err != nil {
			return nil, fmt.Errorf("remote forecaster: %w: record %d: %v", surge.ErrInvalidSeries, i, err)
		}
		actual := i < req.ActualCutoff
		if rec.IsPrediction == actual {
			klog.V(2).InfoS("Forecaster prediction flag disagrees with cutoff; using cutoff",
				"index", i, "cutoff", req.ActualCutoff)
		}
		series = append(series, surge.DailyIndicatorRecord{
			Date:             date.UTC(),
			RespiratoryCount: rec.Respiratory,
			TraumaCount:      rec.Trauma,
			FeverCount:       rec.Fever,
			TotalCount:       rec.Respiratory + rec.Trauma + rec.Fever,
			AirQualityIndex:  rec.AQI,
			IsActual:         actual,
			IsPrediction:     !actual,
			Regime:           req.RegimeAt(i),
		})
	}

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("remote forecaster: %w", err)
	}
	if !series[0].Date.Equal(req.StartDate.UTC().Truncate(24 * time.Hour)) {
		return nil, fmt.Errorf("remote forecaster: %w: series starts %s, want %s", surge.ErrInvalidSeries,
			series[0].Date.Format(time.DateOnly), req.StartDate.Format(time.DateOnly))
	}

	return series, nil
}
