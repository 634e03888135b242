package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LLMConfig configures the default model gateway backend.
type LLMConfig struct {
	// Backend selects the strategy: "openai" (native tool calls) or
	// "ollama" (tool schemas serialized into the prompt).
	Backend        string        `mapstructure:"backend" yaml:"backend"`
	Model          string        `mapstructure:"model" yaml:"model"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	Temperature    float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// BrowserConfig configures the chromedp-backed browser sessions.
type BrowserConfig struct {
	Headless         bool          `mapstructure:"headless" yaml:"headless"`
	NoSandbox        bool          `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	UserAgent        string        `mapstructure:"user_agent" yaml:"user_agent"`
	WindowWidth      int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight     int           `mapstructure:"window_height" yaml:"window_height"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	ScreenshotDir    string        `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
}

// SupervisorConfig bounds concurrent agent-loop executions.
type SupervisorConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
	ReadPageLimit int `mapstructure:"read_page_limit" yaml:"read_page_limit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig selects the task-store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "memory" or "sqlite"
	Path   string `mapstructure:"path" yaml:"path"`     // sqlite file path
}

// SetDefaults registers every configuration default on the given viper
// instance. Values from the config file and COMET_* env vars override these.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "comet")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)

	v.SetDefault("llm.backend", "ollama")
	v.SetDefault("llm.model", "mistral")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.request_timeout", 15*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 720)
	v.SetDefault("browser.operation_timeout", 30*time.Second)
	v.SetDefault("browser.screenshot_dir", "screenshots")

	v.SetDefault("supervisor.max_concurrent", 4)
	v.SetDefault("supervisor.max_iterations", 15)
	v.SetDefault("supervisor.read_page_limit", 4000)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "comet.db")
}

// Load reads configuration from the viper instance into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewDefaultConfig builds a Config from defaults alone. Used by tests and as
// a fallback when no config file is present.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	if c.Supervisor.MaxConcurrent < 1 {
		return fmt.Errorf("supervisor.max_concurrent must be >= 1, got %d", c.Supervisor.MaxConcurrent)
	}
	if c.Supervisor.MaxIterations < 1 {
		return fmt.Errorf("supervisor.max_iterations must be >= 1, got %d", c.Supervisor.MaxIterations)
	}
	if c.Supervisor.ReadPageLimit < 1 {
		return fmt.Errorf("supervisor.read_page_limit must be >= 1, got %d", c.Supervisor.ReadPageLimit)
	}
	switch c.LLM.Backend {
	case "openai", "ollama":
	default:
		return fmt.Errorf("llm.backend must be one of [openai ollama], got %q", c.LLM.Backend)
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store.driver must be one of [memory sqlite], got %q", c.Store.Driver)
	}
	return nil
}

// BindEnv wires the COMET_ environment prefix onto the viper instance, so
// e.g. COMET_LLM_API_KEY overrides llm.api_key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("COMET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
