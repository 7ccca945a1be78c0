package surge

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Generator produces an indicator series for a window request. The seeded
// Simulator and the remote statistical forecaster both satisfy it.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req WindowRequest) (Series, error)
}

// Simulator draws each day's indicators uniformly from its regime's ranges.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a Simulator backed by rng. Passing a rand seeded with a
// fixed value makes the output reproducible.
func NewSimulator(rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{rng: rng}
}

// NewSeededSimulator is shorthand for NewSimulator(rand.New(rand.NewSource(seed))).
func NewSeededSimulator(seed int64) *Simulator {
	return NewSimulator(rand.New(rand.NewSource(seed)))
}

func (s *Simulator) Name() string {
	return "simulation"
}

// Generate validates req and returns the full series. It never returns a partial series.
func (s *Simulator) Generate(ctx context.Context, req WindowRequest) (Series, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := truncateDay(req.StartDate)
	series := make(Series, 0, req.Days)

	// rand.Rand is not safe for concurrent use.
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < req.Days; i++ {
		regime := req.RegimeAt(i)
		ranges := req.Regimes.For(regime)

		resp := s.draw(ranges.Respiratory)
		trauma := s.draw(ranges.Trauma)
		fever := s.draw(ranges.Fever)
		aqi := s.draw(ranges.AQI)
		if aqi < 1 {
			aqi = 1
		}

		actual := i < req.ActualCutoff
		series = append(series, DailyIndicatorRecord{
			Date:             start.AddDate(0, 0, i),
			RespiratoryCount: resp,
			TraumaCount:      trauma,
			FeverCount:       fever,
			TotalCount:       resp + trauma + fever,
			AirQualityIndex:  aqi,
			IsActual:         actual,
			IsPrediction:     !actual,
			Regime:           regime,
		})
	}

	klog.V(4).InfoS("Generated simulated series",
		"startDate", start.Format(time.DateOnly),
		"days", req.Days,
		"anomaly", req.Anomaly,
		"decay", req.Decay,
		"actualCutoff", req.ActualCutoff)

	return series, nil
}

func (s *Simulator) draw(r Range) int {
	return int(math.Round(r.Min + s.rng.Float64()*r.Spread))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
