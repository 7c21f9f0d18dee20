package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/greeter-service/internal/greeting"
)

// Longest windows the traffic and idle trackers can answer.
const (
	maxOutcomeWindow = 5 * time.Minute
	maxIdleWindow    = 30 * time.Minute
)

// Config holds service configuration loaded from YAML, .env and env.
type Config struct {
	ServerHost        string
	ServerPort        string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	Greeting string
	Version  string

	RateLimitRPS   int
	RateLimitBurst int

	OpsEndpoints       bool
	CORSAllowedOrigins []string

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int
}

type fileConfig struct {
	Server struct {
		Host              string `yaml:"host"`
		Port              string `yaml:"port"`
		ReadTimeout       string `yaml:"read_timeout"`
		ReadHeaderTimeout string `yaml:"read_header_timeout"`
		WriteTimeout      string `yaml:"write_timeout"`
		IdleTimeout       string `yaml:"idle_timeout"`
	} `yaml:"server"`

	Greeting struct {
		Message string `yaml:"message"`
	} `yaml:"greeting"`

	Service struct {
		Version string `yaml:"version"`
	} `yaml:"service"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Ops struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"ops"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev), then env overrides.
// A missing config file is an error only when ENV_NAME names it explicitly. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := loadDotEnv(filepath.Join(cwd, ".env")); err != nil {
		return nil, err
	}

	env := os.Getenv("ENV_NAME")
	explicitEnv := env != ""
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err) && explicitEnv:
		return nil, fmt.Errorf("config file not found: %s", configPath)
	case os.IsNotExist(err):
		// dev defaults
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := fromFile(&fc)
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads key=value pairs from path without overriding variables already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat .env: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func fromFile(fc *fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerHost = strings.TrimSpace(fc.Server.Host)
	cfg.ServerPort = strings.TrimSpace(fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.ReadTimeout = parseDuration(fc.Server.ReadTimeout, 10*time.Second)
	cfg.ReadHeaderTimeout = parseDuration(fc.Server.ReadHeaderTimeout, 2*time.Second)
	cfg.WriteTimeout = parseDuration(fc.Server.WriteTimeout, 10*time.Second)
	cfg.IdleTimeout = parseDuration(fc.Server.IdleTimeout, 60*time.Second)

	cfg.Greeting = strings.TrimSpace(fc.Greeting.Message)
	if cfg.Greeting == "" {
		cfg.Greeting = greeting.DefaultMessage
	}
	cfg.Version = strings.TrimSpace(fc.Service.Version)
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitRPS * 2
	}

	cfg.OpsEndpoints = true
	if fc.Ops.Enabled != nil {
		cfg.OpsEndpoints = *fc.Ops.Enabled
	}
	cfg.CORSAllowedOrigins = cleanList(fc.CORS.AllowedOrigins)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 5
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}
	return cfg
}

// applyEnv overrides file values with PORT, GREETING and CORS_ALLOWED_ORIGINS.
func applyEnv(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.ServerPort = port
	}
	if msg := strings.TrimSpace(os.Getenv("GREETING")); msg != "" {
		cfg.Greeting = msg
	}
	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); origins != "" {
		cfg.CORSAllowedOrigins = cleanList(strings.Split(origins, ","))
	}
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return c.ServerHost + ":" + c.ServerPort
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. Port must be 0-65535 (0 asks the OS for an
// ephemeral port). Health windows must fit what the traffic trackers retain.
func validate(cfg *Config) error {
	port, err := strconv.Atoi(cfg.ServerPort)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("server.port must be a number between 0 and 65535, got %q", cfg.ServerPort)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("reliability.rate_limit_rps must not be negative, got %d", cfg.RateLimitRPS)
	}
	if cfg.OverloadThresholdPct > 100 {
		return fmt.Errorf("lifecycle.overload_threshold_pct must be at most 100, got %d", cfg.OverloadThresholdPct)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	if cfg.OverloadWindow > maxOutcomeWindow || cfg.DegradedWindow > maxOutcomeWindow {
		return fmt.Errorf("lifecycle overload and degraded windows must be at most %v", maxOutcomeWindow)
	}
	if cfg.IdleWindow > maxIdleWindow {
		return fmt.Errorf("lifecycle.idle_window must be at most %v, got %v", maxIdleWindow, cfg.IdleWindow)
	}
	return nil
}
