package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Batch    BatchConfig    `mapstructure:"batch"    validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// LLMConfig contains the Gemini integration settings, including the
// context-cache knobs.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`

	// CacheTTLSeconds is the requested lifetime of the context cache.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" validate:"required,gte=60"`

	// AutoDeleteCache controls whether a completed run deletes its cache.
	// When false the handle is surfaced to the user for manual deletion.
	AutoDeleteCache bool `mapstructure:"auto_delete_cache"`

	// SystemPreamble, when set, is stored with the cached content as the
	// system instruction.
	SystemPreamble string `mapstructure:"system_preamble"`
}

// BatchConfig contains the scheduler and cache-coordinator timing knobs.
type BatchConfig struct {
	// Concurrency bounds simultaneous remote calls; keep it low (1-5) to
	// avoid remote rate-limiting.
	Concurrency int `mapstructure:"concurrency" validate:"required,gte=1,lte=5"`

	// MaxRetries is the number of retries after an item's first attempt.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// BackoffUnitMs is the delay before an item's first retry; later
	// retries double it each time.
	BackoffUnitMs int `mapstructure:"backoff_unit_ms" validate:"gte=0"`

	// InterDispatchDelayMs smooths bursty load before each remote call.
	InterDispatchDelayMs int `mapstructure:"inter_dispatch_delay_ms" validate:"gte=0"`

	// WarmupDelayMs is the wait after cache creation before dispatching.
	WarmupDelayMs int `mapstructure:"warmup_delay_ms" validate:"gte=0"`
}

// CacheTTL returns the configured cache lifetime as a duration.
func (c LLMConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// BackoffUnit returns the configured backoff unit as a duration.
func (c BatchConfig) BackoffUnit() time.Duration {
	return time.Duration(c.BackoffUnitMs) * time.Millisecond
}

// InterDispatchDelay returns the configured smoothing delay as a duration.
func (c BatchConfig) InterDispatchDelay() time.Duration {
	return time.Duration(c.InterDispatchDelayMs) * time.Millisecond
}

// WarmupDelay returns the configured warm-up delay as a duration.
func (c BatchConfig) WarmupDelay() time.Duration {
	return time.Duration(c.WarmupDelayMs) * time.Millisecond
}
