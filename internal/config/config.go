package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
)

// Config represents the top-level sentinel configuration
type Config struct {
	API             APIConfig                `json:"api"`
	EnvFile         string                   `json:"env_file,omitempty"`
	Services        map[string]ServiceConfig `json:"services"`
	Thresholds      Thresholds               `json:"thresholds"`
	Resources       ResourceConfig           `json:"resources"`
	Backups         BackupConfig             `json:"backups"`
	Procedures      map[string]string        `json:"procedures,omitempty"`
	MaintenanceMode bool                     `json:"maintenance_mode"`
}

// APIConfig defines the diagnostics HTTP server configuration
type APIConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// ServiceConfig declares one monitored service
type ServiceConfig struct {
	Probe          string            `json:"probe"`
	Target         string            `json:"target"`
	Critical       bool              `json:"critical,omitempty"`
	Dependencies   []string          `json:"dependencies,omitempty"`
	RestoreCmd     string            `json:"restore_cmd"`
	SoftRestartCmd string            `json:"soft_restart_cmd,omitempty"`
	MaintenanceCmd string            `json:"maintenance_cmd,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	EnvFile        string            `json:"env_file,omitempty"`
}

// Thresholds holds the global recovery policy knobs
type Thresholds struct {
	RecoveryThreshold    int `json:"recovery_threshold"`
	MaxRestartsPerDay    int `json:"max_restarts_per_day"`
	CheckIntervalSeconds int `json:"check_interval_seconds"`
	SettleTimeSeconds    int `json:"settle_time_seconds"`
	// AnalysisEveryNCycles controls how often the trend and correlation
	// analyzers run relative to the check cycle
	AnalysisEveryNCycles int `json:"analysis_every_n_cycles"`
}

// ResourceConfig holds system resource thresholds and relief actions
type ResourceConfig struct {
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	DiskPercent     float64 `json:"disk_percent"`
	DiskPath        string  `json:"disk_path"`
	CacheClearCmd   string  `json:"cache_clear_cmd,omitempty"`
	OffenderPattern string  `json:"offender_pattern,omitempty"`
}

// BackupConfig controls backup-based restore fallback
type BackupConfig struct {
	Enabled     bool   `json:"enabled"`
	Dir         string `json:"dir,omitempty"`
	MaxAgeHours int    `json:"max_age_hours"`
}

// CheckInterval returns the check cycle interval as a duration
func (t Thresholds) CheckInterval() time.Duration {
	return time.Duration(t.CheckIntervalSeconds) * time.Second
}

// SettleTime returns the post-remediation settle pause as a duration
func (t Thresholds) SettleTime() time.Duration {
	return time.Duration(t.SettleTimeSeconds) * time.Second
}

// MaxAge returns the maximum usable backup age as a duration
func (b BackupConfig) MaxAge() time.Duration {
	return time.Duration(b.MaxAgeHours) * time.Hour
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from JSON bytes, applies defaults, and
// validates. A validation failure is fatal to startup by design.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}

	applyDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.API.Port == 0 {
		config.API.Port = constants.DefaultAPIPort
	}
	if config.API.Host == "" {
		config.API.Host = constants.DefaultAPIHost
	}
	if config.Thresholds.RecoveryThreshold == 0 {
		config.Thresholds.RecoveryThreshold = constants.DefaultRecoveryThreshold
	}
	if config.Thresholds.MaxRestartsPerDay == 0 {
		config.Thresholds.MaxRestartsPerDay = constants.DefaultMaxRestartsPerDay
	}
	if config.Thresholds.CheckIntervalSeconds == 0 {
		config.Thresholds.CheckIntervalSeconds = constants.DefaultCheckIntervalSeconds
	}
	if config.Thresholds.SettleTimeSeconds == 0 {
		config.Thresholds.SettleTimeSeconds = constants.DefaultSettleTimeSeconds
	}
	if config.Thresholds.AnalysisEveryNCycles == 0 {
		config.Thresholds.AnalysisEveryNCycles = constants.DefaultAnalysisEveryNCycles
	}
	if config.Resources.CPUPercent == 0 {
		config.Resources.CPUPercent = constants.DefaultCPUThresholdPercent
	}
	if config.Resources.MemoryPercent == 0 {
		config.Resources.MemoryPercent = constants.DefaultMemoryThresholdPercent
	}
	if config.Resources.DiskPercent == 0 {
		config.Resources.DiskPercent = constants.DefaultDiskThresholdPercent
	}
	if config.Resources.DiskPath == "" {
		config.Resources.DiskPath = "/"
	}
	if config.Backups.MaxAgeHours == 0 {
		config.Backups.MaxAgeHours = constants.DefaultBackupMaxAgeHours
	}
}

// ToDefinitions converts config services to domain definitions, resolving
// each service's environment from the global and per-service env files.
func (c *Config) ToDefinitions(configDir string) ([]domain.ServiceDefinition, error) {
	defs := make([]domain.ServiceDefinition, 0, len(c.Services))
	for name, svc := range c.Services {
		env, err := LoadServiceEnv(c.EnvFile, svc.EnvFile, svc.Env, configDir)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}

		defs = append(defs, domain.ServiceDefinition{
			Name:           name,
			Probe:          domain.ProbeKind(svc.Probe),
			Target:         svc.Target,
			Critical:       svc.Critical,
			Dependencies:   svc.Dependencies,
			RestoreCmd:     svc.RestoreCmd,
			SoftRestartCmd: svc.SoftRestartCmd,
			MaintenanceCmd: svc.MaintenanceCmd,
			Env:            env,
			EnvFile:        svc.EnvFile,
		})
	}
	return defs, nil
}
