package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// HasField reports whether any error concerns field.
func (e ValidationErrors) HasField(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateAPIConfig(&cfg.API)
	v.validateTaskConfig(&cfg.Task)
	v.validatePollConfig(&cfg.Poll)
	v.validateArtifactConfig(&cfg.Artifact)
	v.validateReportConfig(&cfg.Report)
	v.validateLoggingConfig(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateAPIConfig(cfg *APIConfig) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		v.addError("api.api_key", "API key is required (set ROBLOX_API_KEY)")
	}

	if cfg.BaseURL == "" {
		v.addError("api.base_url", "base URL is required")
	} else if !isHTTPURL(cfg.BaseURL) {
		v.addError("api.base_url", fmt.Sprintf("invalid base URL '%s'", cfg.BaseURL))
	}

	if cfg.UniverseID <= 0 {
		v.addError("api.universe_id", "universe id is required")
	}
	if cfg.PlaceID <= 0 {
		v.addError("api.place_id", "place id is required")
	}
	if cfg.PlaceVersion < 0 {
		v.addError("api.place_version", "place version must be non-negative")
	}

	if cfg.RequestTimeout < 0 {
		v.addError("api.request_timeout", "request timeout must be non-negative")
	}
	if cfg.RateLimit < 0 {
		v.addError("api.rate_limit", "rate limit must be non-negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		v.addError("api.rate_burst", "rate burst must be at least 1 when a rate limit is set")
	}
}

func (v *Validator) validateTaskConfig(cfg *TaskConfig) {
	if cfg.Binary == "" {
		v.addError("task.binary", "binary path is required")
	}
	if cfg.Script == "" {
		v.addError("task.script", "script path is required")
	}
	if cfg.Timeout <= 0 {
		v.addError("task.timeout", "timeout must be positive")
	}
}

func (v *Validator) validatePollConfig(cfg *PollConfig) {
	if cfg.InitialDelay <= 0 {
		v.addError("poll.initial_delay", "initial delay must be positive")
	}
	if cfg.MaxDelay <= 0 {
		v.addError("poll.max_delay", "max delay must be positive")
	}
	if cfg.InitialDelay > 0 && cfg.MaxDelay > 0 && cfg.MaxDelay < cfg.InitialDelay {
		v.addError("poll.max_delay", "max delay should not be less than initial delay")
	}
	if cfg.Multiplier < 1 {
		v.addError("poll.multiplier", "multiplier must be at least 1")
	}
}

func (v *Validator) validateArtifactConfig(cfg *ArtifactConfig) {
	s3 := cfg.S3
	if (s3.Endpoint == "") != (s3.Bucket == "") {
		v.addError("artifact.s3", "endpoint and bucket must be set together")
	}
	if s3.Enabled() && strings.Contains(s3.Endpoint, "://") {
		v.addError("artifact.s3.endpoint", "endpoint must be host[:port] without a scheme")
	}
}

func (v *Validator) validateReportConfig(cfg *ReportConfig) {
	if cfg.WebhookURL != "" && !isHTTPURL(cfg.WebhookURL) {
		v.addError("report.webhook_url", fmt.Sprintf("invalid webhook URL '%s'", cfg.WebhookURL))
	}
	if cfg.WebhookTimeout < 0 {
		v.addError("report.webhook_timeout", "webhook timeout must be non-negative")
	}
}

func (v *Validator) validateLoggingConfig(cfg *LoggingConfig) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if cfg.Level == "" {
		v.addError("logging.level", "log level is required")
	} else if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level))
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if cfg.Format != "" && !validFormats[strings.ToLower(cfg.Format)] {
		v.addError("logging.format", fmt.Sprintf("invalid log format '%s', must be one of: console, json", cfg.Format))
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
		"both":   true,
	}
	if cfg.Output != "" && !validOutputs[strings.ToLower(cfg.Output)] {
		v.addError("logging.output", fmt.Sprintf("invalid log output '%s', must be one of: stdout, stderr, file, both", cfg.Output))
	}
	if output := strings.ToLower(cfg.Output); (output == "file" || output == "both") && cfg.FilePath == "" {
		v.addError("logging.file_path", "file path is required when logging to a file")
	}

	validColors := map[string]bool{
		"":       true,
		"auto":   true,
		"always": true,
		"never":  true,
	}
	if !validColors[strings.ToLower(cfg.Color)] {
		v.addError("logging.color", fmt.Sprintf("invalid color mode '%s', must be one of: auto, always, never", cfg.Color))
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate validates cfg with a fresh Validator.
func Validate(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
