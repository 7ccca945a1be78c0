package forecast

import (
	"time"

	"github.com/i474232898/surge-forecast/internal/scenario"
	"github.com/i474232898/surge-forecast/internal/surge"
)

// Run is one generated series for a session together with its metrics.
// Runs are immutable once stored.
type Run struct {
	ID          string                 `json:"runId"`
	Params      scenario.SessionParams `json:"session"`
	GeneratedAt time.Time              `json:"generatedAt"` // always UTC
	Forecaster  string                 `json:"forecaster"`
	Series      surge.Series           `json:"series"`
	Metrics     surge.HeadlineMetrics  `json:"metrics"`
}

// RunSummary is the lightweight view of a run used in history listings.
type RunSummary struct {
	ID           string    `json:"runId"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Forecaster   string    `json:"forecaster"`
	SurgePercent int       `json:"surgePercent"`
	PeakAQI      int       `json:"peakAqi"`
}

// Summary returns the history view of r.
func (r Run) Summary() RunSummary {
	return RunSummary{
		ID:           r.ID,
		GeneratedAt:  r.GeneratedAt,
		Forecaster:   r.Forecaster,
		SurgePercent: r.Metrics.SurgePercent,
		PeakAQI:      r.Metrics.PeakAQI,
	}
}

// Validation is the model-quality card shown next to a scenario's forecast.
type Validation struct {
	Session    scenario.SessionParams `json:"session"`
	Label      string                 `json:"label"`
	Forecaster string                 `json:"forecaster"`
	Model      scenario.ModelProfile  `json:"model"`
}

// Store is the contract the in-memory run store must satisfy.
type Store interface {
	SaveRun(run Run)
	GetLatest(params scenario.SessionParams) (Run, error)
	History(params scenario.SessionParams) ([]Run, error)
}
