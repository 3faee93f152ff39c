// Package config defines the fleet configuration for glances-mcp: monitored
// servers, alert rules, maintenance windows and retention policy.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment classifies a monitored server.
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
)

// Comparison modes for alert thresholds.
const (
	ComparisonGT = "gt"
	ComparisonLT = "lt"
	ComparisonEQ = "eq"
)

// Default values applied by WithDefaults.
const (
	DefaultGlancesPort          = 61208
	DefaultServerTimeoutSeconds = 30
	DefaultCooldownMinutes      = 15
	DefaultBaselineRetention    = 7  // days
	DefaultAlertRetention       = 30 // days
)

// Server describes one monitored Glances instance.
type Server struct {
	Alias          string      `yaml:"alias" json:"alias"`
	Host           string      `yaml:"host" json:"host"`
	Port           int         `yaml:"port" json:"port"`
	Protocol       string      `yaml:"protocol" json:"protocol"`
	Username       string      `yaml:"username,omitempty" json:"username,omitempty"`
	Password       string      `yaml:"password,omitempty" json:"-"`
	Environment    Environment `yaml:"environment,omitempty" json:"environment,omitempty"`
	Region         string      `yaml:"region,omitempty" json:"region,omitempty"`
	Tags           []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	TimeoutSeconds int         `yaml:"timeout_seconds" json:"timeout_seconds"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// BaseURL returns the root URL for the server's Glances API.
func (s *Server) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", s.Protocol, s.Host, s.Port)
}

// IsEnabled reports whether the server participates in polling and alerting.
func (s *Server) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Threshold holds warning/critical bounds for a single rule.
type Threshold struct {
	Warning     float64 `yaml:"warning" json:"warning"`
	Critical    float64 `yaml:"critical" json:"critical"`
	Unit        string  `yaml:"unit,omitempty" json:"unit,omitempty"`
	Comparison  string  `yaml:"comparison" json:"comparison"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

// AlertRule binds a metric path to thresholds and scoping filters.
// A rule applies to a server only if every configured filter passes;
// an absent filter places no restriction on that dimension.
type AlertRule struct {
	Name              string        `yaml:"name" json:"name"`
	MetricPath        string        `yaml:"metric_path" json:"metric_path"`
	Thresholds        Threshold     `yaml:"thresholds" json:"thresholds"`
	Enabled           *bool         `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	ServerFilter      []string      `yaml:"server_filter,omitempty" json:"server_filter,omitempty"`
	EnvironmentFilter []Environment `yaml:"environment_filter,omitempty" json:"environment_filter,omitempty"`
	TagFilter         []string      `yaml:"tag_filter,omitempty" json:"tag_filter,omitempty"`
	CooldownMinutes   int           `yaml:"cooldown_minutes" json:"cooldown_minutes"`
}

// IsEnabled reports whether the rule participates in evaluation passes.
func (r *AlertRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// MaintenanceWindow is a recurring time range during which alerting is
// suppressed. Days use 0=Monday .. 6=Sunday; times are HH:MM in the
// window's timezone (IANA name, UTC when empty or unknown).
type MaintenanceWindow struct {
	Name           string `yaml:"name" json:"name"`
	StartTime      string `yaml:"start_time" json:"start_time"`
	EndTime        string `yaml:"end_time" json:"end_time"`
	DaysOfWeek     []int  `yaml:"days_of_week" json:"days_of_week"`
	Timezone       string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	SuppressAlerts *bool  `yaml:"suppress_alerts,omitempty" json:"suppress_alerts,omitempty"`
}

// Suppresses reports whether the window suppresses alert evaluation.
func (w *MaintenanceWindow) Suppresses() bool {
	return w.SuppressAlerts == nil || *w.SuppressAlerts
}

// Config is the root fleet configuration.
type Config struct {
	Servers                   []Server            `yaml:"servers" json:"servers"`
	AlertRules                []AlertRule         `yaml:"alert_rules,omitempty" json:"alert_rules,omitempty"`
	MaintenanceWindows        []MaintenanceWindow `yaml:"maintenance_windows,omitempty" json:"maintenance_windows,omitempty"`
	BaselineRetentionDays     int                 `yaml:"baseline_retention_days" json:"baseline_retention_days"`
	AlertHistoryRetentionDays int                 `yaml:"alert_history_retention_days" json:"alert_history_retention_days"`
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	result := c

	result.Servers = make([]Server, len(c.Servers))
	copy(result.Servers, c.Servers)
	for i := range result.Servers {
		s := &result.Servers[i]
		if s.Port <= 0 {
			s.Port = DefaultGlancesPort
		}
		if s.Protocol == "" {
			s.Protocol = "http"
		}
		if s.TimeoutSeconds <= 0 {
			s.TimeoutSeconds = DefaultServerTimeoutSeconds
		}
	}

	result.AlertRules = make([]AlertRule, len(c.AlertRules))
	copy(result.AlertRules, c.AlertRules)
	for i := range result.AlertRules {
		r := &result.AlertRules[i]
		if r.Thresholds.Comparison == "" {
			r.Thresholds.Comparison = ComparisonGT
		}
		if r.CooldownMinutes <= 0 {
			r.CooldownMinutes = DefaultCooldownMinutes
		}
	}

	if result.BaselineRetentionDays <= 0 {
		result.BaselineRetentionDays = DefaultBaselineRetention
	}
	if result.AlertHistoryRetentionDays <= 0 {
		result.AlertHistoryRetentionDays = DefaultAlertRetention
	}

	return result
}

// ServerByAlias returns the server with the given alias, or nil.
func (c *Config) ServerByAlias(alias string) *Server {
	for i := range c.Servers {
		if c.Servers[i].Alias == alias {
			return &c.Servers[i]
		}
	}
	return nil
}

// EnabledServers returns all enabled servers.
func (c *Config) EnabledServers() []Server {
	var out []Server
	for _, s := range c.Servers {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Load reads, schema-validates and defaults a fleet configuration file.
// ${VAR} references in the file are expanded from the environment before
// parsing, so credentials can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse validates and decodes raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validateSemantics(&cfg); err != nil {
		return nil, err
	}

	withDefaults := cfg.WithDefaults()
	return &withDefaults, nil
}
