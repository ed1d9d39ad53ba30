package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Store    StoreConfig    `mapstructure:"store" validate:"required"`
	Dispatch DispatchConfig `mapstructure:"dispatch" validate:"required"`
	Fetch    FetchConfig    `mapstructure:"fetch" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// StoreConfig selects and configures the job record backend.
type StoreConfig struct {
	Backend       string `mapstructure:"backend" validate:"required,oneof=memory postgres redis"`
	DatabaseURL   string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"gte=0"`
}

// DispatchConfig controls how the initiator hands jobs to the worker.
type DispatchConfig struct {
	Backend     string `mapstructure:"backend" validate:"required,oneof=inprocess redis"`
	Target      string `mapstructure:"target" validate:"required"`
	WorkerCount int    `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize   int    `mapstructure:"queue_size" validate:"gt=0"`
}

// FetchConfig contains settings for retrieving news pages.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
	UserAgent      string `mapstructure:"user_agent" validate:"required"`
	MaxAttempts    int    `mapstructure:"max_attempts" validate:"gt=0"`
	InitialDelayMs int    `mapstructure:"initial_delay_ms" validate:"gte=0"`
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes" validate:"gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider           string   `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	GeminiAPIKey       string   `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey       string   `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	OpenAIBaseURL      string   `mapstructure:"openai_base_url" validate:"omitempty,url"`
	ModelName          string   `mapstructure:"model_name"`
	Temperature        float64  `mapstructure:"temperature" validate:"gte=0,lte=2"`
	TopP               float64  `mapstructure:"top_p" validate:"gte=0,lte=1"`
	StopSequences      []string `mapstructure:"stop_sequences"`
	MaxAttempts        int      `mapstructure:"max_attempts" validate:"gt=0"`
	InitialDelayMs     int      `mapstructure:"initial_delay_ms" validate:"gte=0"`
	PromptTemplatePath string   `mapstructure:"prompt_template_path" validate:"omitempty,file"`
}
