package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/surge-forecast/internal/recommend"
	"github.com/i474232898/surge-forecast/internal/surge"
)

func TestLoadDefault(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	sess, err := reg.Lookup(SessionParams{City: "Delhi", Event: "DIWALI", TimeRange: "2weeks"})
	require.NoError(t, err)

	assert.Equal(t, "delhi:diwali:2weeks", sess.Params.Key())
	assert.Equal(t, "INR", sess.Scenario.Currency)
	assert.Equal(t, 6, sess.Scenario.Catalogue.Len())
	assert.Equal(t, 220, sess.Scenario.Facility.CurrentCapacity)
	assert.Equal(t, 92.3, sess.Scenario.Model.AccuracyPercent)
	require.Len(t, sess.Scenario.Model.Validations, 3)
	require.NotNil(t, sess.Scenario.Model.Validations[0].ErrorPoints)
	assert.Equal(t, 3.0, *sess.Scenario.Model.Validations[0].ErrorPoints)
	assert.Nil(t, sess.Scenario.Model.Validations[2].ErrorPoints)

	req := sess.WindowRequest()
	assert.Equal(t, 42, req.Days)
	assert.Equal(t, surge.Window{Start: 30, End: 36}, req.Anomaly)
	assert.Equal(t, surge.Window{Start: 36, End: 39}, req.Decay)
	assert.Equal(t, 30, req.ActualCutoff)
	assert.Equal(t, "2024-10-31", sess.Range.SurgeStart().Format(time.DateOnly))
	require.NoError(t, req.Validate())

	cfg := sess.SummaryConfig(5)
	assert.Equal(t, 3, cfg.PeakWindowDays)
	assert.Equal(t, 6, cfg.ActionItems)
	assert.Equal(t, 92.0, cfg.ConfidencePercent)
}

func TestRangesShareSurgeDate(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	six, err := reg.Lookup(SessionParams{City: "delhi", Event: "diwali", TimeRange: "6weeks"})
	require.NoError(t, err)
	assert.Equal(t, "2024-10-31", six.Range.SurgeStart().Format(time.DateOnly))
	assert.Len(t, reg.Sessions(), 2)
}

func TestLookupUnknownScenario(t *testing.T) {
	reg, err := LoadDefault()
	require.NoError(t, err)

	for _, p := range []SessionParams{
		{City: "mumbai", Event: "diwali", TimeRange: "2weeks"},
		{City: "delhi", Event: "holi", TimeRange: "2weeks"},
		{City: "delhi", Event: "diwali", TimeRange: "1year"},
	} {
		_, err := reg.Lookup(p)
		assert.ErrorIs(t, err, ErrUnknownScenario, p.Key())
	}
}

func TestParseRejectsLateDeadline(t *testing.T) {
	doc := strings.Replace(string(defaultScenarios), `deadline: "2024-10-29"`, `deadline: "2024-11-02"`, 1)
	_, err := Parse([]byte(doc))
	require.ErrorIs(t, err, recommend.ErrInvalidCatalogue)
}

func TestParseRejectsBadWindow(t *testing.T) {
	doc := strings.Replace(string(defaultScenarios), "actualCutoff: 30", "actualCutoff: 60", 1)
	_, err := Parse([]byte(doc))
	require.ErrorIs(t, err, surge.ErrValidation)
}

func TestParseRejectsOverlappingRespiratoryRegimes(t *testing.T) {
	doc := strings.Replace(string(defaultScenarios), "respiratory: {min: 85, spread: 15}", "respiratory: {min: 50, spread: 15}", 1)
	_, err := Parse([]byte(doc))
	require.ErrorIs(t, err, surge.ErrValidation)
	assert.Contains(t, err.Error(), "anomaly respiratory min 50 must exceed baseline respiratory max 55")

	doc = strings.Replace(string(defaultScenarios), "respiratory: {min: 85, spread: 15}", "respiratory: {min: 55, spread: 15}", 1)
	_, err = Parse([]byte(doc))
	require.ErrorIs(t, err, surge.ErrValidation)
}

func TestParseRejectsMissingFields(t *testing.T) {
	_, err := Parse([]byte("currency: INR\nscenarios: []\n"))
	require.Error(t, err)

	_, err = Parse([]byte("currency: INR\nscenarios:\n  - city: delhi\n"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, defaultScenarios, 0o644))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Sessions())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseSessionKey(t *testing.T) {
	p, err := ParseSessionKey("Delhi:Diwali:2weeks")
	require.NoError(t, err)
	assert.Equal(t, SessionParams{City: "delhi", Event: "diwali", TimeRange: "2weeks"}, p)

	_, err = ParseSessionKey("delhi:diwali")
	require.Error(t, err)
	_, err = ParseSessionKey("delhi::2weeks")
	require.Error(t, err)
}
