package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.customBindHost",
			Message: "required when bind: custom",
		})
	}

	// AI validation
	if cfg.AI.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "ai.apiKey",
			Message: "API key is required (set ai.apiKey or ELICIT_API_KEY)",
		})
	}
	if cfg.AI.PrimaryModel == "" {
		issues = append(issues, ValidationIssue{
			Path:    "ai.primaryModel",
			Message: "primary model is required",
		})
	}
	if cfg.AI.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "ai.maxTokens",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.AI.MaxTokens),
		})
	}
	if cfg.AI.Temperature != nil && (*cfg.AI.Temperature < 0 || *cfg.AI.Temperature > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "ai.temperature",
			Message: fmt.Sprintf("must be 0-2, got %v", *cfg.AI.Temperature),
		})
	}

	// Rate limit validation
	validBackends := []string{"memory", "redis"}
	if cfg.RateLimit.Backend != "" && !slices.Contains(validBackends, cfg.RateLimit.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "ratelimit.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.RateLimit.Backend),
		})
	}
	if cfg.RateLimit.Backend == "redis" && cfg.RateLimit.Redis.Addr == "" {
		issues = append(issues, ValidationIssue{
			Path:    "ratelimit.redis.addr",
			Message: "required when backend: redis",
		})
	}
	if cfg.RateLimit.MaxRequests < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "ratelimit.maxRequests",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.RateLimit.MaxRequests),
		})
	}
	if cfg.RateLimit.WindowSeconds < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "ratelimit.windowSeconds",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.RateLimit.WindowSeconds),
		})
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}
	if cfg.Session.ResumeMinutes < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "session.resumeMinutes",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Session.ResumeMinutes),
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	if cfg.Logging.ConsoleLevel != "" && !slices.Contains(validLogLevels, cfg.Logging.ConsoleLevel) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleLevel",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.ConsoleLevel),
		})
	}

	validConsoleStyles := []string{"pretty", "compact", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
