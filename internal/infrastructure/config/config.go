package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Fiore0312/controlli-sub000/internal/domain/timeline"
	"github.com/Fiore0312/controlli-sub000/internal/service/audit"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	Audit AuditConfig `koanf:"audit"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

type RedisConfig struct {
	URL      string        `koanf:"url"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

// AuditConfig groups the analysis tunables: timeline reconstruction,
// anomaly scoring and the correction workflow.
type AuditConfig struct {
	Timezone       string `koanf:"timezone"`
	AutoCorrection bool   `koanf:"auto_correction"`

	Timeline TimelineConfig `koanf:"timeline"`
	Anomaly  AnomalyConfig  `koanf:"anomaly"`
}

type TimelineConfig struct {
	WorkdayStartMinute      int `koanf:"workday_start_minute"`
	WorkdayEndMinute        int `koanf:"workday_end_minute"`
	ExpectedWorkMinutes     int `koanf:"expected_work_minutes"`
	OverlapToleranceMinutes int `koanf:"overlap_tolerance_minutes"`
	ProximityWindowMinutes  int `koanf:"proximity_window_minutes"`
	MinSessionMinutes       int `koanf:"min_session_minutes"`
	MaxEventMinutes         int `koanf:"max_event_minutes"`
	MaxDailyMinutes         int `koanf:"max_daily_minutes"`
	MiddayStartMinute       int `koanf:"midday_start_minute"`
	MiddayEndMinute         int `koanf:"midday_end_minute"`

	MinutesPerKm      float64            `koanf:"minutes_per_km"`
	DefaultDistanceKm float64            `koanf:"default_distance_km"`
	DistancesKm       map[string]float64 `koanf:"distances_km"`
}

type AnomalyConfig struct {
	WindowDays            int  `koanf:"window_days"`
	PatternMinOccurrences int  `koanf:"pattern_min_occurrences"`
	Behavioral            bool `koanf:"behavioral"`
	Temporal              bool `koanf:"temporal"`
	ClientSpecific        bool `koanf:"client_specific"`
	Productivity          bool `koanf:"productivity"`

	LateStartGraceMinutes int     `koanf:"late_start_grace_minutes"`
	LateStartRatio        float64 `koanf:"late_start_ratio"`
	LongBreakMinutes      int     `koanf:"long_break_minutes"`
	MicroGapMaxMinutes    int     `koanf:"micro_gap_max_minutes"`
	MicroGapMinCount      int     `koanf:"micro_gap_min_count"`
	FrequencyChangeRatio  float64 `koanf:"frequency_change_ratio"`
	EfficiencyDropPercent float64 `koanf:"efficiency_drop_percent"`
	CoherenceThreshold    float64 `koanf:"coherence_threshold"`
}

// TimelineConfig materializes the domain config, resolving the timezone.
// Unknown timezone names fall back to UTC rather than failing startup.
func (a AuditConfig) TimelineConfig() timeline.Config {
	cfg := timeline.DefaultConfig()
	cfg.WorkdayStartMinute = a.Timeline.WorkdayStartMinute
	cfg.WorkdayEndMinute = a.Timeline.WorkdayEndMinute
	cfg.ExpectedWorkMinutes = a.Timeline.ExpectedWorkMinutes
	cfg.OverlapToleranceMinutes = a.Timeline.OverlapToleranceMinutes
	cfg.ProximityWindowMinutes = a.Timeline.ProximityWindowMinutes
	cfg.MinSessionMinutes = a.Timeline.MinSessionMinutes
	cfg.MaxEventMinutes = a.Timeline.MaxEventMinutes
	cfg.MaxDailyMinutes = a.Timeline.MaxDailyMinutes
	cfg.MiddayStartMinute = a.Timeline.MiddayStartMinute
	cfg.MiddayEndMinute = a.Timeline.MiddayEndMinute
	cfg.MinutesPerKm = a.Timeline.MinutesPerKm
	cfg.DefaultDistanceKm = a.Timeline.DefaultDistanceKm
	if len(a.Timeline.DistancesKm) > 0 {
		cfg.DistancesKm = a.Timeline.DistancesKm
	}
	if loc, err := time.LoadLocation(a.Timezone); err == nil {
		cfg.Location = loc
	}
	return cfg
}

// AnomalyConfig materializes the scorer config.
func (a AuditConfig) AnomalyConfig() audit.AnomalyConfig {
	return audit.AnomalyConfig{
		WindowDays:            a.Anomaly.WindowDays,
		PatternMinOccurrences: a.Anomaly.PatternMinOccurrences,
		Behavioral:            a.Anomaly.Behavioral,
		Temporal:              a.Anomaly.Temporal,
		ClientSpecific:        a.Anomaly.ClientSpecific,
		Productivity:          a.Anomaly.Productivity,
		LateStartGraceMinutes: a.Anomaly.LateStartGraceMinutes,
		LateStartRatio:        a.Anomaly.LateStartRatio,
		LongBreakMinutes:      a.Anomaly.LongBreakMinutes,
		MicroGapMaxMinutes:    a.Anomaly.MicroGapMaxMinutes,
		MicroGapMinCount:      a.Anomaly.MicroGapMinCount,
		FrequencyChangeRatio:  a.Anomaly.FrequencyChangeRatio,
		EfficiencyDropPercent: a.Anomaly.EfficiencyDropPercent,
		CoherenceThreshold:    a.Anomaly.CoherenceThreshold,
	}
}

// Load builds the configuration from defaults, then an optional YAML file,
// then AUDIT_-prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	tl := timeline.DefaultConfig()
	an := audit.DefaultAnomalyConfig()
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:  0,
			TTL: time.Hour,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
		},
		Audit: AuditConfig{
			Timezone:       "Europe/Rome",
			AutoCorrection: true,
			Timeline: TimelineConfig{
				WorkdayStartMinute:      tl.WorkdayStartMinute,
				WorkdayEndMinute:        tl.WorkdayEndMinute,
				ExpectedWorkMinutes:     tl.ExpectedWorkMinutes,
				OverlapToleranceMinutes: tl.OverlapToleranceMinutes,
				ProximityWindowMinutes:  tl.ProximityWindowMinutes,
				MinSessionMinutes:       tl.MinSessionMinutes,
				MaxEventMinutes:         tl.MaxEventMinutes,
				MaxDailyMinutes:         tl.MaxDailyMinutes,
				MiddayStartMinute:       tl.MiddayStartMinute,
				MiddayEndMinute:         tl.MiddayEndMinute,
				MinutesPerKm:            tl.MinutesPerKm,
				DefaultDistanceKm:       tl.DefaultDistanceKm,
			},
			Anomaly: AnomalyConfig{
				WindowDays:            an.WindowDays,
				PatternMinOccurrences: an.PatternMinOccurrences,
				Behavioral:            an.Behavioral,
				Temporal:              an.Temporal,
				ClientSpecific:        an.ClientSpecific,
				Productivity:          an.Productivity,
				LateStartGraceMinutes: an.LateStartGraceMinutes,
				LateStartRatio:        an.LateStartRatio,
				LongBreakMinutes:      an.LongBreakMinutes,
				MicroGapMaxMinutes:    an.MicroGapMaxMinutes,
				MicroGapMinCount:      an.MicroGapMinCount,
				FrequencyChangeRatio:  an.FrequencyChangeRatio,
				EfficiencyDropPercent: an.EfficiencyDropPercent,
				CoherenceThreshold:    an.CoherenceThreshold,
			},
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// The config file is optional; environments that configure purely via
	// env vars run without one.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!strings.Contains(err.Error(), "no such file") {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("AUDIT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "AUDIT_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
