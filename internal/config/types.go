package config

// Config is the root configuration for elicit.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	AI        AIConfig        `yaml:"ai,omitempty"`
	RateLimit RateLimitConfig `yaml:"ratelimit,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Scenarios ScenariosConfig `yaml:"scenarios,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// AIConfig selects the model provider and the models used for persona replies.
type AIConfig struct {
	APIKey          string   `yaml:"apiKey,omitempty"` // supports ${ENV_VAR} references
	BaseURL         string   `yaml:"baseUrl,omitempty"`
	PrimaryModel    string   `yaml:"primaryModel,omitempty"`
	FallbackModels  []string `yaml:"fallbackModels,omitempty"`
	MaxTokens       int      `yaml:"maxTokens,omitempty"`
	Temperature     *float64 `yaml:"temperature,omitempty"`
	ThinkingDelayMs int      `yaml:"thinkingDelayMs,omitempty"` // minimum pause before the persona starts replying
}

// RateLimitConfig controls per-client request limiting on the chat endpoint.
type RateLimitConfig struct {
	Backend       string      `yaml:"backend,omitempty"` // "memory" | "redis"
	MaxRequests   int         `yaml:"maxRequests,omitempty"`
	WindowSeconds int         `yaml:"windowSeconds,omitempty"`
	Redis         RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds connection settings for the redis rate-limit backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"` // supports ${ENV_VAR} references
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// SessionConfig defines saved-session behavior.
type SessionConfig struct {
	Store         string `yaml:"store,omitempty"` // "sqlite" | "memory"
	ResumeMinutes int    `yaml:"resumeMinutes,omitempty"`
}

// ScenariosConfig points at scenario data.
type ScenariosConfig struct {
	SeedFile string `yaml:"seedFile,omitempty"` // seeded into the database on startup when set
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleLevel string `yaml:"consoleLevel,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
