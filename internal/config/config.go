// Package config loads service configuration from YAML with environment
// overrides and supports hot reload of the tuning surface.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServiceConfig holds service-level settings.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	HTTPPort    int    `mapstructure:"http_port"`
	HealthPort  int    `mapstructure:"health_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// TemporalConfig holds task harness connection settings.
type TemporalConfig struct {
	HostPort      string        `mapstructure:"host_port"`
	Namespace     string        `mapstructure:"namespace"`
	TaskQueue     string        `mapstructure:"task_queue"`
	RunTimeout    time.Duration `mapstructure:"run_timeout"`     // hard wall-clock limit per investigation
	SoftTimeLimit time.Duration `mapstructure:"soft_time_limit"` // evidence budget inside the workflow, below RunTimeout
}

// PostgresConfig holds persistence settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// RedisConfig holds progress-channel mirror settings.
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

// LLMConfig holds reasoner and classifier model settings.
type LLMConfig struct {
	Model           string        `mapstructure:"model"`
	ClassifierModel string        `mapstructure:"classifier_model"`
	MaxTokens       int64         `mapstructure:"max_tokens"`
	Deadline        time.Duration `mapstructure:"deadline"` // hard deadline per reasoning call
}

// RouterConfig holds smart-router settings.
type RouterConfig struct {
	AgentDisabled     bool          `mapstructure:"agent_disabled"` // force fast path
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	DecisionCapacity  int           `mapstructure:"decision_capacity"`
	DecisionRetention time.Duration `mapstructure:"decision_retention"`
}

// HeuristicConfig is the fallback scorer's tuning surface. The point values
// and thresholds are empirically tuned, not derived; treat them as knobs.
type HeuristicConfig struct {
	HighThreshold   float64 `mapstructure:"high_threshold"`
	MediumThreshold float64 `mapstructure:"medium_threshold"`

	VerifiedScamWeight float64 `mapstructure:"verified_scam_weight"`
	VerifiedScamCap    float64 `mapstructure:"verified_scam_cap"`
	ReportWeight       float64 `mapstructure:"report_weight"`
	ReportCap          float64 `mapstructure:"report_cap"`
	SearchHitWeight    float64 `mapstructure:"search_hit_weight"`
	SearchHitCap       float64 `mapstructure:"search_hit_cap"`

	DomainHighPoints   float64 `mapstructure:"domain_high_points"`
	DomainMediumPoints float64 `mapstructure:"domain_medium_points"`
	YoungDomainPoints  float64 `mapstructure:"young_domain_points"`
	YoungDomainDays    int     `mapstructure:"young_domain_days"`

	SuspiciousPhonePoints float64 `mapstructure:"suspicious_phone_points"`

	LowConfidenceFloor float64 `mapstructure:"low_confidence_floor"`
}

// ToolsConfig holds verification tool client settings.
type ToolsConfig struct {
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
	DomainReputationURL string        `mapstructure:"domain_reputation_url"`
	WebSearchURL        string        `mapstructure:"web_search_url"`
	WebSearchRPS        float64       `mapstructure:"web_search_rps"`
	CompanyRegistryURL  string        `mapstructure:"company_registry_url"`
}

// StreamingConfig holds in-memory progress channel settings.
type StreamingConfig struct {
	RingCapacity int `mapstructure:"ring_capacity"`
}

// Config is the full service configuration.
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Router    RouterConfig    `mapstructure:"router"`
	Heuristic HeuristicConfig `mapstructure:"heuristic"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Streaming StreamingConfig `mapstructure:"streaming"`
}

// DefaultHeuristic returns the tuned default scoring table.
func DefaultHeuristic() HeuristicConfig {
	return HeuristicConfig{
		HighThreshold:         70,
		MediumThreshold:       40,
		VerifiedScamWeight:    0.6,
		VerifiedScamCap:       50,
		ReportWeight:          5,
		ReportCap:             40,
		SearchHitWeight:       2,
		SearchHitCap:          20,
		DomainHighPoints:      30,
		DomainMediumPoints:    15,
		YoungDomainPoints:     10,
		YoungDomainDays:       30,
		SuspiciousPhonePoints: 25,
		LowConfidenceFloor:    50,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "scamlens-orchestrator")
	v.SetDefault("service.http_port", 8080)
	v.SetDefault("service.health_port", 8081)
	v.SetDefault("service.metrics_port", 9090)

	v.SetDefault("temporal.host_port", "temporal:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "scamlens-investigations")
	v.SetDefault("temporal.run_timeout", 60*time.Second)
	v.SetDefault("temporal.soft_time_limit", 55*time.Second)

	v.SetDefault("postgres.host", "postgres")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "scamlens")
	v.SetDefault("postgres.password", "scamlens")
	v.SetDefault("postgres.database", "scamlens")
	v.SetDefault("postgres.ssl_mode", "disable")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.stream_max_len", 1000)

	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.classifier_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.deadline", 5*time.Second)

	v.SetDefault("router.agent_disabled", false)
	v.SetDefault("router.probe_timeout", 2*time.Second)
	v.SetDefault("router.decision_capacity", 4096)
	v.SetDefault("router.decision_retention", 24*time.Hour)

	h := DefaultHeuristic()
	v.SetDefault("heuristic.high_threshold", h.HighThreshold)
	v.SetDefault("heuristic.medium_threshold", h.MediumThreshold)
	v.SetDefault("heuristic.verified_scam_weight", h.VerifiedScamWeight)
	v.SetDefault("heuristic.verified_scam_cap", h.VerifiedScamCap)
	v.SetDefault("heuristic.report_weight", h.ReportWeight)
	v.SetDefault("heuristic.report_cap", h.ReportCap)
	v.SetDefault("heuristic.search_hit_weight", h.SearchHitWeight)
	v.SetDefault("heuristic.search_hit_cap", h.SearchHitCap)
	v.SetDefault("heuristic.domain_high_points", h.DomainHighPoints)
	v.SetDefault("heuristic.domain_medium_points", h.DomainMediumPoints)
	v.SetDefault("heuristic.young_domain_points", h.YoungDomainPoints)
	v.SetDefault("heuristic.young_domain_days", h.YoungDomainDays)
	v.SetDefault("heuristic.suspicious_phone_points", h.SuspiciousPhonePoints)
	v.SetDefault("heuristic.low_confidence_floor", h.LowConfidenceFloor)

	v.SetDefault("tools.call_timeout", 10*time.Second)
	v.SetDefault("tools.web_search_rps", 2.0)

	v.SetDefault("streaming.ring_capacity", 256)
}

// Load reads configuration from path (or $CONFIG_PATH, or the packaged
// default) and applies SCAMLENS_* environment overrides. A missing file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/scamlens.yaml"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("SCAMLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Temporal.SoftTimeLimit >= c.Temporal.RunTimeout {
		return fmt.Errorf("temporal.soft_time_limit (%s) must be below run_timeout (%s)",
			c.Temporal.SoftTimeLimit, c.Temporal.RunTimeout)
	}
	if c.Heuristic.MediumThreshold > c.Heuristic.HighThreshold {
		return fmt.Errorf("heuristic.medium_threshold (%v) must not exceed high_threshold (%v)",
			c.Heuristic.MediumThreshold, c.Heuristic.HighThreshold)
	}
	if c.LLM.Deadline <= 0 {
		return fmt.Errorf("llm.deadline must be positive")
	}
	return nil
}
