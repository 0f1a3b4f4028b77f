package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8787,
			Bind: "loopback",
		},
		AI: AIConfig{
			BaseURL:         "https://openrouter.ai/api/v1",
			PrimaryModel:    "anthropic/claude-3.5-haiku",
			FallbackModels:  []string{"anthropic/claude-3.5-sonnet"},
			MaxTokens:       1024,
			ThinkingDelayMs: 800,
		},
		RateLimit: RateLimitConfig{
			Backend:       "memory",
			MaxRequests:   20,
			WindowSeconds: 60,
		},
		Session: SessionConfig{
			Store:         "sqlite",
			ResumeMinutes: 30,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleLevel: "info",
			ConsoleStyle: "pretty",
		},
	}
}
