package scenario

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/i474232898/surge-forecast/internal/recommend"
	"github.com/i474232898/surge-forecast/internal/surge"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

var validate = validator.New()

// date decodes a YYYY-MM-DD scalar.
type date struct {
	time.Time
}

func (d *date) UnmarshalYAML(node *yaml.Node) error {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Time = t.UTC()
	return nil
}

type fileDoc struct {
	Currency  string         `yaml:"currency" validate:"required,len=3"`
	Scenarios []scenarioSpec `yaml:"scenarios" validate:"required,min=1,dive"`
}

type scenarioSpec struct {
	City            string               `yaml:"city" validate:"required"`
	Event           string               `yaml:"event" validate:"required"`
	Label           string               `yaml:"label"`
	PeakWindowDays  int                  `yaml:"peakWindowDays" validate:"gte=0"`
	Facility        facilitySpec         `yaml:"facility"`
	Model           modelSpec            `yaml:"model"`
	Regimes         surge.RegimeSet      `yaml:"regimes"`
	TimeRanges      []timeRangeSpec      `yaml:"timeRanges" validate:"required,min=1,dive"`
	Recommendations []recommendationSpec `yaml:"recommendations" validate:"dive"`
}

type facilitySpec struct {
	CurrentCapacity int             `yaml:"currentCapacity" validate:"gte=0"`
	EstimatedCases  surge.CaseRange `yaml:"estimatedCases"`
}

type modelSpec struct {
	ConfidencePercent float64          `yaml:"confidencePercent" validate:"gte=0,lte=100"`
	AccuracyPercent   float64          `yaml:"accuracyPercent" validate:"gte=0,lte=100"`
	MeanAbsoluteError float64          `yaml:"meanAbsoluteError" validate:"gte=0"`
	DataSources       int              `yaml:"dataSources" validate:"gte=0"`
	BacktestPeriod    string           `yaml:"backtestPeriod"`
	Outcomes          outcomesSpec     `yaml:"outcomes"`
	Validations       []validationSpec `yaml:"validations" validate:"dive"`
}

type outcomesSpec struct {
	OverflowRiskReductionPercent float64  `yaml:"overflowRiskReductionPercent" validate:"gte=0,lte=100"`
	ReactiveCostAvoided          costSpan `yaml:"reactiveCostAvoided"`
}

type costSpan struct {
	Min float64 `yaml:"min" validate:"gte=0"`
	Max float64 `yaml:"max" validate:"gtefield=Min"`
}

type validationSpec struct {
	Event     string   `yaml:"event" validate:"required"`
	Metric    string   `yaml:"metric"`
	Predicted *float64 `yaml:"predicted"`
	Actual    *float64 `yaml:"actual"`
	Note      string   `yaml:"note"`
}

type timeRangeSpec struct {
	ID           string       `yaml:"id" validate:"required"`
	StartDate    date         `yaml:"startDate"`
	Days         int          `yaml:"days" validate:"gt=0"`
	Anomaly      surge.Window `yaml:"anomaly"`
	Decay        surge.Window `yaml:"decay"`
	ActualCutoff int          `yaml:"actualCutoff" validate:"gte=0"`
}

type recommendationSpec struct {
	ID          int     `yaml:"id"`
	Priority    string  `yaml:"priority" validate:"required"`
	Category    string  `yaml:"category" validate:"required"`
	Title       string  `yaml:"title" validate:"required"`
	Description string  `yaml:"description"`
	Action      string  `yaml:"action"`
	Impact      string  `yaml:"impact"`
	Deadline    date    `yaml:"deadline"`
	Cost        float64 `yaml:"cost"`
	Confidence  float64 `yaml:"confidence"`
}

// LoadDefault builds the registry from the scenario file compiled into the binary.
func LoadDefault() (*Registry, error) {
	return Parse(defaultScenarios)
}

// LoadFile builds the registry from a YAML file on disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document. Every catalogue is checked
// against the surge start of each of its scenario's time ranges.
func Parse(data []byte) (*Registry, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario file: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid scenario file: %w", err)
	}

	reg := &Registry{scenarios: make(map[string]*Scenario, len(doc.Scenarios))}
	for _, spec := range doc.Scenarios {
		sc, err := buildScenario(spec, doc.Currency)
		if err != nil {
			return nil, fmt.Errorf("scenario %s/%s: %w", spec.City, spec.Event, err)
		}
		key := scenarioKey(sc.City, sc.Event)
		if _, dup := reg.scenarios[key]; dup {
			return nil, fmt.Errorf("scenario %s/%s declared twice", sc.City, sc.Event)
		}
		reg.scenarios[key] = sc
		reg.order = append(reg.order, key)
	}

	klog.V(2).InfoS("Loaded scenarios", "count", len(reg.order), "sessions", len(reg.Sessions()))
	return reg, nil
}

func buildScenario(spec scenarioSpec, currency string) (*Scenario, error) {
	sc := &Scenario{
		City:           strings.ToLower(spec.City),
		Event:          strings.ToLower(spec.Event),
		Label:          spec.Label,
		Currency:       currency,
		PeakWindowDays: spec.PeakWindowDays,
		Facility: Facility{
			CurrentCapacity: spec.Facility.CurrentCapacity,
			EstimatedCases:  spec.Facility.EstimatedCases,
		},
		Model:   buildModel(spec.Model),
		Regimes: spec.Regimes,
	}

	base, anom := sc.Regimes.Baseline.Respiratory, sc.Regimes.Anomaly.Respiratory
	if anom.Min <= base.Max() {
		return nil, fmt.Errorf("%w: anomaly respiratory min %g must exceed baseline respiratory max %g",
			surge.ErrValidation, anom.Min, base.Max())
	}

	var earliestSurge time.Time
	seen := make(map[string]struct{})
	for _, trs := range spec.TimeRanges {
		tr := TimeRange{
			ID:           strings.ToLower(trs.ID),
			StartDate:    trs.StartDate.Time,
			Days:         trs.Days,
			Anomaly:      trs.Anomaly,
			Decay:        trs.Decay,
			ActualCutoff: trs.ActualCutoff,
		}
		if _, dup := seen[tr.ID]; dup {
			return nil, fmt.Errorf("time range %q declared twice", tr.ID)
		}
		seen[tr.ID] = struct{}{}

		req := Session{Scenario: sc, Range: tr}.WindowRequest()
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("time range %q: %w", tr.ID, err)
		}
		if earliestSurge.IsZero() || tr.SurgeStart().Before(earliestSurge) {
			earliestSurge = tr.SurgeStart()
		}
		sc.ranges = append(sc.ranges, tr)
	}

	items := make([]recommend.Recommendation, 0, len(spec.Recommendations))
	for _, rs := range spec.Recommendations {
		p, err := recommend.ParsePriority(rs.Priority)
		if err != nil {
			return nil, err
		}
		items = append(items, recommend.Recommendation{
			ID:                rs.ID,
			Priority:          p,
			Category:          strings.ToLower(rs.Category),
			Title:             rs.Title,
			Description:       rs.Description,
			ActionText:        rs.Action,
			ImpactText:        rs.Impact,
			Deadline:          rs.Deadline.Time,
			CostEstimate:      rs.Cost,
			ConfidencePercent: rs.Confidence,
		})
	}

	cat, err := recommend.NewCatalogue(items, earliestSurge)
	if err != nil {
		return nil, err
	}
	sc.Catalogue = cat
	return sc, nil
}

func buildModel(spec modelSpec) ModelProfile {
	m := ModelProfile{
		ConfidencePercent: spec.ConfidencePercent,
		AccuracyPercent:   spec.AccuracyPercent,
		MeanAbsoluteError: spec.MeanAbsoluteError,
		DataSources:       spec.DataSources,
		BacktestPeriod:    spec.BacktestPeriod,
		Outcomes: Outcomes{
			OverflowRiskReductionPercent: spec.Outcomes.OverflowRiskReductionPercent,
			ReactiveCostAvoidedMin:       spec.Outcomes.ReactiveCostAvoided.Min,
			ReactiveCostAvoidedMax:       spec.Outcomes.ReactiveCostAvoided.Max,
		},
	}
	for _, v := range spec.Validations {
		hv := HistoricalValidation{
			Event:            v.Event,
			Metric:           v.Metric,
			PredictedPercent: v.Predicted,
			ActualPercent:    v.Actual,
			Note:             v.Note,
		}
		if v.Predicted != nil && v.Actual != nil {
			diff := math.Abs(*v.Actual - *v.Predicted)
			hv.ErrorPoints = &diff
		}
		m.Validations = append(m.Validations, hv)
	}
	return m
}
