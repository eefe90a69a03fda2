// Package settings loads repository and server configuration from a YAML
// file and turns it into repository options.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	gorawrremote "github.com/Keksclan/goRawrRemote"
	"github.com/Keksclan/goRawrRemote/failure"
)

// Settings is the top-level configuration.
type Settings struct {
	BaseURI      string `yaml:"base_uri"`
	ResourcePath string `yaml:"resource_path"`
	IDsParam     string `yaml:"ids_param"`
	MaxURLLength int    `yaml:"max_url_length"`
	LogRequests  bool   `yaml:"log_requests"`

	RecoverableErrorPatterns []string `yaml:"recoverable_error_patterns"`

	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`

	IncludeStackTraceInErrors bool `yaml:"include_stack_trace_in_errors"`
	StrictBooleans            bool `yaml:"strict_booleans"`
	ValidateUUIDs             bool `yaml:"validate_uuids"`

	// NegativeCacheTTL overrides the negative cache TTL per failure
	// category, keyed by category name ("not_found", "timeout", ...).
	NegativeCacheTTL map[string]time.Duration `yaml:"negative_cache_ttl"`

	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"`

	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Breaker     BreakerConfig     `yaml:"breaker"`
	SharedCache SharedCacheConfig `yaml:"shared_cache"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// RateLimitConfig paces outbound attempts. A zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BreakerConfig holds circuit breaker settings. A zero FailureThreshold
// disables the breaker.
type BreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	OpenTimeout        time.Duration `yaml:"open_timeout"`
	HalfOpenMaxSuccess int           `yaml:"half_open_max_success"`
}

// SharedCacheConfig selects the store that repositories share. L1 is used
// when L1MaxCost is positive, redis when RedisURL is set, both tiered when
// both are.
type SharedCacheConfig struct {
	L1MaxCost int64         `yaml:"l1_max_cost"`
	RedisURL  string        `yaml:"redis_url"`
	TTL       time.Duration `yaml:"ttl"`
}

// Enabled reports whether any shared store is configured.
func (c SharedCacheConfig) Enabled() bool {
	return c.L1MaxCost > 0 || c.RedisURL != ""
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ServerConfig holds the lookup server addresses. An empty MetricsAddr
// disables the metrics endpoint.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// TracingConfig enables the stdout span exporter.
type TracingConfig struct {
	Stdout bool `yaml:"stdout"`
}

// Default returns the settings used for keys absent from the file.
func Default() Settings {
	return Settings{
		IDsParam:      gorawrremote.DefaultIDsParam,
		MaxURLLength:  gorawrremote.DefaultMaxURLLength,
		RetryAttempts: gorawrremote.DefaultRetryAttempts,
		RetryBackoff:  gorawrremote.DefaultRetryBackoff,
		ValidateUUIDs: true,
		Timeout:       10 * time.Second,
		Breaker: BreakerConfig{
			OpenTimeout:        30 * time.Second,
			HalfOpenMaxSuccess: 1,
		},
		SharedCache: SharedCacheConfig{
			TTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		Server: ServerConfig{
			Addr:        ":50051",
			MetricsAddr: ":9090",
		},
	}
}

// Validate checks the settings and reports every problem it finds.
func (s *Settings) Validate() error {
	var errs []error

	if s.BaseURI == "" {
		errs = append(errs, errors.New("base_uri is required"))
	} else if u, err := url.Parse(s.BaseURI); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_uri %q is not an absolute URL", s.BaseURI))
	}
	if s.MaxURLLength < 0 {
		errs = append(errs, errors.New("max_url_length must not be negative"))
	}
	if s.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry_attempts must not be negative"))
	}
	if s.RetryBackoff < 0 {
		errs = append(errs, errors.New("retry_backoff must not be negative"))
	}
	if s.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if _, err := s.negativeTTLs(); err != nil {
		errs = append(errs, err)
	}
	if s.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rate_limit.rps must not be negative"))
	}
	if s.RateLimit.RPS > 0 && s.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate_limit.burst must be at least 1"))
	}
	if b := s.Breaker; b.FailureThreshold > 0 {
		if b.OpenTimeout <= 0 {
			errs = append(errs, errors.New("breaker.open_timeout must be positive"))
		}
		if b.HalfOpenMaxSuccess < 1 {
			errs = append(errs, errors.New("breaker.half_open_max_success must be at least 1"))
		}
	}
	if s.SharedCache.L1MaxCost < 0 {
		errs = append(errs, errors.New("shared_cache.l1_max_cost must not be negative"))
	}
	if _, err := s.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level. An empty level is Info.
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging.level: %w", err)
	}
	return lvl, nil
}

func (s *Settings) negativeTTLs() (map[failure.Category]time.Duration, error) {
	out := make(map[failure.Category]time.Duration, len(s.NegativeCacheTTL))
	for k, d := range s.NegativeCacheTTL {
		c, err := failure.ParseCategory(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("negative_cache_ttl: %w", err)
		}
		out[c] = d
	}
	return out, nil
}
