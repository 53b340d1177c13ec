// Package config provides centralized configuration management.
// This is the single source of truth for all simulation and server
// settings; every other package receives values from here.
package config

import (
	"os"
	"strconv"
)

// SimConfig holds the fixed-timestep and command-queue parameters.
type SimConfig struct {
	StepSizeMs                 float64 // simulation tick size
	MaxForegroundStepsPerFrame int     // step budget per frame, focused
	MaxBackgroundStepsPerFrame int     // step budget per frame, throttled
	MaxOfflineCatchUpMs        float64 // offline progress cap
	MaxOfflineBatchSteps       int     // steps per offline batch
	FrameMs                    int     // wall-clock pump interval
	CommandQueueLimit          int     // pending command cap
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		StepSizeMs:                 100, // 10 steps/sec
		MaxForegroundStepsPerFrame: 10,
		MaxBackgroundStepsPerFrame: 2,
		MaxOfflineCatchUpMs:        8 * 60 * 60 * 1000, // 8 hours
		MaxOfflineBatchSteps:       500,
		FrameMs:                    50,
		CommandQueueLimit:          1024,
	}
}

// SimFromEnv returns simulation configuration with environment overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if v := getEnvFloat("SIM_STEP_SIZE_MS", 0); v > 0 {
		cfg.StepSizeMs = v
	}
	if v := getEnvInt("SIM_MAX_FG_STEPS", 0); v > 0 {
		cfg.MaxForegroundStepsPerFrame = v
	}
	if v := getEnvInt("SIM_MAX_BG_STEPS", 0); v > 0 {
		cfg.MaxBackgroundStepsPerFrame = v
	}
	if v := getEnvFloat("SIM_MAX_OFFLINE_MS", 0); v > 0 {
		cfg.MaxOfflineCatchUpMs = v
	}
	if v := getEnvInt("SIM_MAX_OFFLINE_BATCH", 0); v > 0 {
		cfg.MaxOfflineBatchSteps = v
	}
	if v := getEnvInt("SIM_FRAME_MS", 0); v > 0 {
		cfg.FrameMs = v
	}
	if v := getEnvInt("SIM_COMMAND_QUEUE_LIMIT", 0); v > 0 {
		cfg.CommandQueueLimit = v
	}
	return cfg
}

// BusConfig bounds the event bus channels.
type BusConfig struct {
	ChannelCapacity int
	SoftLimit       int
	CooldownSteps   int
	WindowSteps     int
}

// DefaultBus returns the default bus bounds.
func DefaultBus() BusConfig {
	return BusConfig{
		ChannelCapacity: 64,
		SoftLimit:       48,
		CooldownSteps:   10,
		WindowSteps:     10,
	}
}

// BusFromEnv returns bus configuration with environment overrides.
func BusFromEnv() BusConfig {
	cfg := DefaultBus()

	if v := getEnvInt("BUS_CHANNEL_CAPACITY", 0); v > 0 {
		cfg.ChannelCapacity = v
	}
	if v := getEnvInt("BUS_SOFT_LIMIT", 0); v > 0 {
		cfg.SoftLimit = v
	}
	if v := getEnvInt("BUS_COOLDOWN_STEPS", 0); v > 0 {
		cfg.CooldownSteps = v
	}
	return cfg
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int
	AllowedOrigin string // CORS and websocket origin check; "*" in dev
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:          3000,
		AllowedOrigin: "*",
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if o := os.Getenv("ALLOWED_ORIGIN"); o != "" {
		cfg.AllowedOrigin = o
	}
	return cfg
}

// PathsConfig locates the content pack and the writable state files.
type PathsConfig struct {
	ContentPath string
	SavePath    string
	JournalPath string
}

// DefaultPaths returns the default file locations.
func DefaultPaths() PathsConfig {
	return PathsConfig{
		ContentPath: "content/pack.yaml",
		SavePath:    "data/save.json",
		JournalPath: "data/commands.ndjson",
	}
}

// PathsFromEnv returns paths with environment overrides.
func PathsFromEnv() PathsConfig {
	cfg := DefaultPaths()

	if p := os.Getenv("CONTENT_PATH"); p != "" {
		cfg.ContentPath = p
	}
	if p := os.Getenv("SAVE_PATH"); p != "" {
		cfg.SavePath = p
	}
	if p := os.Getenv("JOURNAL_PATH"); p != "" {
		cfg.JournalPath = p
	}
	return cfg
}

// ObservabilityConfig configures the localhost debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // keep on localhost in production
}

// DefaultObservability returns safe defaults.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability settings with overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DEBUG_SERVER_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_SERVER_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim           SimConfig
	Bus           BusConfig
	Server        ServerConfig
	Paths         PathsConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:           SimFromEnv(),
		Bus:           BusFromEnv(),
		Server:        ServerFromEnv(),
		Paths:         PathsFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
