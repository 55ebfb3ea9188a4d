package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variable overrides,
// e.g. STUDIO_LLM_GEMINI_API_KEY overrides llm.gemini_api_key.
const envPrefix = "STUDIO"

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fieldErr := range validationErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return nil, fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the recommended defaults: concurrency 3,
// 5 retries, 2s backoff unit, 1s inter-dispatch delay, 5s warm-up,
// 1h cache TTL.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Registering empty defaults makes env-only keys visible to Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.system_preamble", "")

	v.SetDefault("llm.model_name", "gemini-2.0-flash-001")
	v.SetDefault("llm.cache_ttl_seconds", 3600)
	v.SetDefault("llm.auto_delete_cache", true)

	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.max_retries", 5)
	v.SetDefault("batch.backoff_unit_ms", 2000)
	v.SetDefault("batch.inter_dispatch_delay_ms", 1000)
	v.SetDefault("batch.warmup_delay_ms", 5000)
}
