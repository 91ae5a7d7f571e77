package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Defaults struct {
	CPULimit         float64 `yaml:"cpu_limit"`
	MemLimitMB       int     `yaml:"mem_limit_mb"`
	PidsLimit        int     `yaml:"pids_limit"`
	MaxExecTimeoutMs int     `yaml:"max_exec_timeout_ms"`
	NetworkMode      string  `yaml:"network_mode"`
}

type InstallConfig struct {
	Workers        int `yaml:"workers"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type ReaperConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

type ArtifactsConfig struct {
	// Dir is the host directory holding one output directory per session.
	// It is bind-mounted into containers, so it must be visible to the
	// Docker daemon.
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables limiting
	Burst             int     `yaml:"burst"`
}

type Config struct {
	Host                   string          `yaml:"host"`
	Port                   int             `yaml:"port"`
	PublicURL              string          `yaml:"public_url"`
	DefaultImage           string          `yaml:"default_image"`
	DockerfilePath         string          `yaml:"dockerfile_path"`
	CheckDockerfileChanges bool            `yaml:"check_dockerfile_changes"`
	DBPath                 string          `yaml:"db_path"`
	IdleTimeoutSeconds     int             `yaml:"idle_timeout_seconds"`
	Defaults               Defaults        `yaml:"defaults"`
	Install                InstallConfig   `yaml:"install"`
	Reaper                 ReaperConfig    `yaml:"reaper"`
	Artifacts              ArtifactsConfig `yaml:"artifacts"`
	Logging                LoggingConfig   `yaml:"logging"`
	RateLimit              RateLimitConfig `yaml:"rate_limit"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Host:                   "0.0.0.0",
		Port:                   8000,
		DefaultImage:           "python-sandbox:latest",
		DockerfilePath:         "Dockerfile",
		CheckDockerfileChanges: true,
		DBPath:                 "./codebox.db",
		IdleTimeoutSeconds:     3600,
		Defaults: Defaults{
			CPULimit:         1.0,
			MemLimitMB:       1024,
			PidsLimit:        256,
			MaxExecTimeoutMs: 120000,
			NetworkMode:      "bridge",
		},
		Install: InstallConfig{
			Workers:        4,
			TimeoutSeconds: 600,
		},
		Reaper: ReaperConfig{
			Enabled:         true,
			IntervalSeconds: 300,
		},
		Artifacts: ArtifactsConfig{
			Dir: "./results",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "codebox.log",
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if abs, err := filepath.Abs(cfg.Artifacts.Dir); err == nil {
		cfg.Artifacts.Dir = abs
	}

	return cfg, nil
}

// validate rejects settings that would stall or crash the daemon at runtime.
func (c *Config) validate() error {
	positive := []struct {
		key   string
		value int
	}{
		{"idle_timeout_seconds", c.IdleTimeoutSeconds},
		{"defaults.max_exec_timeout_ms", c.Defaults.MaxExecTimeoutMs},
		{"install.timeout_seconds", c.Install.TimeoutSeconds},
		{"install.workers", c.Install.Workers},
		{"reaper.interval_seconds", c.Reaper.IntervalSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", p.key, p.value)
		}
	}
	return nil
}

// Listen returns the host:port address the HTTP server binds to.
func (c *Config) Listen() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the externally reachable root used for artifact links,
// without a trailing slash. A wildcard bind host is reported as localhost.
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Reaper.IntervalSeconds) * time.Second
}

func (c *Config) InstallTimeout() time.Duration {
	return time.Duration(c.Install.TimeoutSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	// APP_HOST / APP_PORT are accepted for compatibility with existing deployments.
	if v := os.Getenv("APP_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("CODEBOX_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("CODEBOX_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("CODEBOX_PUBLIC_URL"); v != "" {
		cfg.PublicURL = v
	}
	if v := os.Getenv("CODEBOX_DEFAULT_IMAGE"); v != "" {
		cfg.DefaultImage = v
	}
	if v := os.Getenv("CODEBOX_DOCKERFILE_PATH"); v != "" {
		cfg.DockerfilePath = v
	}
	if v := os.Getenv("CODEBOX_CHECK_DOCKERFILE_CHANGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CheckDockerfileChanges = b
		}
	}
	if v := os.Getenv("CODEBOX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CODEBOX_IDLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IdleTimeoutSeconds = n
		}
	}
	if v := os.Getenv("CODEBOX_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Defaults.CPULimit = f
		}
	}
	if v := os.Getenv("CODEBOX_MEM_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.MemLimitMB = n
		}
	}
	if v := os.Getenv("CODEBOX_PIDS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.PidsLimit = n
		}
	}
	if v := os.Getenv("CODEBOX_MAX_EXEC_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.MaxExecTimeoutMs = n
		}
	}
	if v := os.Getenv("CODEBOX_NETWORK_MODE"); v != "" {
		cfg.Defaults.NetworkMode = v
	}
	if v := os.Getenv("CODEBOX_INSTALL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Install.Workers = n
		}
	}
	if v := os.Getenv("CODEBOX_INSTALL_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Install.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("CODEBOX_REAPER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Reaper.Enabled = b
		}
	}
	if v := os.Getenv("CODEBOX_REAPER_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reaper.IntervalSeconds = n
		}
	}
	if v := os.Getenv("CODEBOX_ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.Dir = v
	}
	if v := os.Getenv("CODEBOX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("CODEBOX_LOG_FILE"); ok {
		cfg.Logging.File = v
	}
	if v := os.Getenv("CODEBOX_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("CODEBOX_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
}
