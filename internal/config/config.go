package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/i474232898/surge-forecast/internal/common"
	"github.com/i474232898/surge-forecast/internal/scenario"
)

const (
	ForecasterSimulation = "simulation"
	ForecasterRemote     = "remote"
)

type AppConfig struct {
	Port string

	// Forecaster selects the series generator: simulation or remote.
	Forecaster    string
	ForecasterURL string
	HTTPTimeout   time.Duration

	// SimulationSeed seeds the simulator. Zero means seed from the clock.
	SimulationSeed int64

	// ScenarioFile overrides the embedded scenario data when set.
	ScenarioFile string

	// RefreshInterval controls how often warm sessions are regenerated.
	RefreshInterval time.Duration
	WarmSessions    []scenario.SessionParams

	// CacheMaxAge is how long a generated run is served (0 = until refreshed).
	CacheMaxAge time.Duration
	// GenerateTimeout bounds one series generation shared by concurrent requests.
	GenerateTimeout time.Duration

	// In-memory store retention.
	StoreMaxHistory int           // max number of runs per session (0 = unlimited)
	StoreMaxAge     time.Duration // max age of runs (0 = unlimited)

	PeakWindowDays int
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		klog.V(2).InfoS("No .env file loaded", "err", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.Forecaster = strings.ToLower(getenvDefault("FORECASTER", ForecasterSimulation))
	switch cfg.Forecaster {
	case ForecasterSimulation:
	case ForecasterRemote:
		cfg.ForecasterURL = os.Getenv("FORECASTER_URL")
		if cfg.ForecasterURL == "" {
			return nil, fmt.Errorf("FORECASTER_URL is required when FORECASTER=remote")
		}
	default:
		return nil, fmt.Errorf("invalid FORECASTER %q: want simulation or remote", cfg.Forecaster)
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	if v := os.Getenv("SIMULATION_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SIMULATION_SEED: %w", err)
		}
		cfg.SimulationSeed = seed
	}

	cfg.ScenarioFile = os.Getenv("SCENARIO_FILE")

	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = getenvDuration("CACHE_MAX_AGE", "1h"); err != nil {
		return nil, err
	}
	if cfg.GenerateTimeout, err = getenvDuration("GENERATE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 24)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.PeakWindowDays = getenvInt("PEAK_WINDOW_DAYS", 3)
	if cfg.PeakWindowDays <= 0 {
		return nil, fmt.Errorf("invalid PEAK_WINDOW_DAYS: must be positive")
	}

	sessions, err := loadWarmSessions()
	if err != nil {
		return nil, err
	}
	cfg.WarmSessions = sessions

	return cfg, nil
}

// loadWarmSessions parses WARM_SESSIONS, a comma-separated list of
// city:event:range keys.
func loadWarmSessions() ([]scenario.SessionParams, error) {
	keys := common.SplitCSV(getenvDefault("WARM_SESSIONS", "delhi:diwali:2weeks"))
	var sessions []scenario.SessionParams
	for _, k := range keys {
		p, err := scenario.ParseSessionKey(k)
		if err != nil {
			return nil, fmt.Errorf("invalid WARM_SESSIONS: %w", err)
		}
		sessions = append(sessions, p)
	}
	return sessions, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
