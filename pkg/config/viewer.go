package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Viewer is the configuration of the terminal viewer.
type Viewer struct {
	ServerURL         string
	Division          string
	Team              string
	Court             string
	ClockSyncInterval time.Duration
	ReconnectDelay    time.Duration
	ProbeTimeout      time.Duration
	LogLevel          string
	LogPretty         bool
}

// LoadViewer reads the viewer settings from the environment.
func LoadViewer() Viewer {
	godotenv.Load()

	return Viewer{
		ServerURL:         getEnv("VIEWER_SERVER_URL", "http://localhost:8888/api"),
		Division:          getEnv("VIEWER_DIVISION", "Sheet1"),
		Team:              getEnv("VIEWER_TEAM", "all"),
		Court:             getEnv("VIEWER_COURT", "all"),
		ClockSyncInterval: getEnvDuration("CLOCK_SYNC_INTERVAL", 30*time.Second),
		ReconnectDelay:    getEnvDuration("VIEWER_RECONNECT_DELAY", 2*time.Second),
		ProbeTimeout:      getEnvDuration("VIEWER_PROBE_TIMEOUT", 5*time.Second),
		LogLevel:          getEnv("LOG_LEVEL", "warn"),
		LogPretty:         getEnvBool("LOG_PRETTY", true),
	}
}
