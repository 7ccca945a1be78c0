package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/i474232898/surge-forecast/internal/forecast"
	"github.com/i474232898/surge-forecast/internal/recommend"
	"github.com/i474232898/surge-forecast/internal/scenario"
	"github.com/i474232898/surge-forecast/internal/store"
	"github.com/i474232898/surge-forecast/internal/surge"
	"github.com/i474232898/surge-forecast/internal/surge/remote"
)

const diwaliQuery = "city=delhi&event=diwali&range=2weeks"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	reg, err := scenario.LoadDefault()
	require.NoError(t, err)

	svc := forecast.NewService(reg, surge.NewSeededSimulator(7), store.NewMemoryStore(10, time.Hour), nil, forecast.Config{})
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc)
	return app
}

func do(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestSessionQueryValidation(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{
		"/api/v1/forecast/series",
		"/api/v1/forecast/series?city=delhi&event=diwali",
		"/api/v1/forecast/series?city=%20&event=diwali&range=2weeks",
		"/api/v1/forecast/runs?city=delhi&event=%09&range=2weeks",
		"/api/v1/forecast/metrics?city=delhi&range=2weeks",
		"/api/v1/recommendations?city=delhi&event=diwali&range=2weeks&priority=urgent",
		"/api/v1/recommendations?city=delhi&event=diwali&range=2weeks&urgent=maybe",
	} {
		resp := do(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)

		var body map[string]interface{}
		decode(t, resp, &body)
		assert.Equal(t, true, body["error"], target)
	}
}

func TestUnknownScenarioIs404(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{
		"/api/v1/forecast/series?city=pune&event=diwali&range=2weeks",
		"/api/v1/forecast/metrics?city=delhi&event=holi&range=2weeks",
		"/api/v1/recommendations?city=delhi&event=diwali&range=1year",
		"/api/v1/forecast/validation?city=pune&event=diwali&range=2weeks",
	} {
		resp := do(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, target)
	}
}

func TestSeriesAndMetricsAgree(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/forecast/series?"+diwaliQuery)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seriesBody struct {
		Series surge.Series `json:"series"`
	}
	decode(t, resp, &seriesBody)
	require.Len(t, seriesBody.Series, 42)
	require.NoError(t, seriesBody.Series.Validate())

	resp = do(t, app, http.MethodGet, "/api/v1/forecast/metrics?city=Delhi&event=DIWALI&range=2weeks")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var m surge.HeadlineMetrics
	decode(t, resp, &m)

	want := surge.Summarize(seriesBody.Series, surge.SummaryConfig{PeakWindowDays: 3})
	assert.Equal(t, want.SurgePercent, m.SurgePercent)
	assert.Equal(t, want.PeakAQI, m.PeakAQI)
	assert.Equal(t, want.LeadTimeDays, m.LeadTimeDays)
}

func TestMalformedForecasterSeriesIs502(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records := make([]map[string]any, 0, 42)
		for i := 0; i < 42; i++ {
			records = append(records, map[string]any{
				"date":        "2024-10-01",
				"respiratory": 50,
				"trauma":      20,
				"fever":       30,
				"aqi":         160,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"records": records})
	}))
	defer srv.Close()

	reg, err := scenario.LoadDefault()
	require.NoError(t, err)
	gen := remote.NewGenerator(&http.Client{Timeout: 2 * time.Second}, srv.URL)
	svc := forecast.NewService(reg, gen, store.NewMemoryStore(10, time.Hour), nil, forecast.Config{})
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc)

	resp := do(t, app, http.MethodGet, "/api/v1/forecast/series?"+diwaliQuery)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, true, body["error"])

	resp = do(t, app, http.MethodGet, "/api/v1/forecast/runs?"+diwaliQuery)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefreshAndRuns(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/forecast/runs?"+diwaliQuery)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/api/v1/forecast/refresh?"+diwaliQuery)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created forecast.RunSummary
	decode(t, resp, &created)
	assert.NotEmpty(t, created.ID)

	resp = do(t, app, http.MethodGet, "/api/v1/forecast/runs?"+diwaliQuery)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Runs []forecast.RunSummary `json:"runs"`
	}
	decode(t, resp, &body)
	require.Len(t, body.Runs, 1)
	assert.Equal(t, created.ID, body.Runs[0].ID)
}

func TestRecommendationsFilters(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/recommendations?"+diwaliQuery+"&urgent=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plan recommend.Plan
	decode(t, resp, &plan)
	require.Len(t, plan.Items, 3)
	assert.Equal(t, 1, plan.Items[0].ID)
	assert.InDelta(t, 710000, plan.TotalCost, 1e-9)
	assert.Equal(t, 3, plan.UrgentCount)

	resp = do(t, app, http.MethodGet, "/api/v1/recommendations?"+diwaliQuery+"&priority=high,medium&category=Supply")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	plan = recommend.Plan{}
	decode(t, resp, &plan)
	require.Len(t, plan.Items, 2)
	for _, r := range plan.Items {
		assert.Equal(t, "supply", r.Category)
	}
	assert.InDelta(t, 590000, plan.TotalCost, 1e-9)

	resp = do(t, app, http.MethodGet, "/api/v1/recommendations?"+diwaliQuery+"&priority=low&category=supply")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	plan = recommend.Plan{}
	decode(t, resp, &plan)
	assert.Empty(t, plan.Items)
	assert.Zero(t, plan.TotalCost)
}

func TestRecommendationsExport(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/recommendations/export?"+diwaliQuery)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "action-plan-delhi-diwali-2weeks.xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Action Plan")
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, "Total", rows[7][0])
	assert.Equal(t, "870000", rows[7][7])
}

func TestValidationCard(t *testing.T) {
	app := newTestApp(t)

	resp := do(t, app, http.MethodGet, "/api/v1/forecast/validation?"+diwaliQuery)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v forecast.Validation
	decode(t, resp, &v)
	assert.Equal(t, "Diwali 2024", v.Label)
	assert.Equal(t, "simulation", v.Forecaster)
}
