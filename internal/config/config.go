// Package config loads the service configuration from an optional TOML file
// and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultModel = "mistralai/Mistral-7B-Instruct-v0.2"

type Config struct {
	// HTTP Server
	Port         string
	LogLevel     string
	RateLimitRPM int
	MaxUploadMB  int

	// Adjustment
	Strategy       string
	PromptTemplate string

	// Completion service
	LLMProvider     string
	ModelName       string
	HFToken         string
	LLMAPIKey       string
	LLMBaseURL      string
	LLMMaxTokens    int
	LLMTemperature  float64
	LLMTimeout      time.Duration
	LLMCacheTTL     time.Duration
	LLMCacheSize    int
	BreakerFailures int
	BreakerTimeout  time.Duration

	// Plan history
	HistoryDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	WorkerConcurrency int

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// File mirrors the optional TOML configuration file. Every value acts as a
// default that environment variables override.
type File struct {
	Server struct {
		Port         string `toml:"port"`
		LogLevel     string `toml:"log_level"`
		RateLimitRPM *int   `toml:"rate_limit_rpm"`
		MaxUploadMB  int    `toml:"max_upload_mb"`
	} `toml:"server"`
	Adjust struct {
		Strategy string `toml:"strategy"`
	} `toml:"adjust"`
	Prompt struct {
		Template string `toml:"template"`
	} `toml:"prompt"`
	LLM struct {
		Provider        string   `toml:"provider"`
		Model           string   `toml:"model"`
		BaseURL         string   `toml:"base_url"`
		MaxTokens       int      `toml:"max_tokens"`
		Temperature     *float64 `toml:"temperature"`
		Timeout         duration `toml:"timeout"`
		CacheTTL        duration `toml:"cache_ttl"`
		CacheSize       int      `toml:"cache_size"`
		BreakerFailures int      `toml:"breaker_failures"`
		BreakerTimeout  duration `toml:"breaker_timeout"`
	} `toml:"llm"`
	History struct {
		DBPath string `toml:"db_path"`
	} `toml:"history"`
	AMQP struct {
		URL      string `toml:"url"`
		Exchange string `toml:"exchange"`
		Queue    string `toml:"queue"`
	} `toml:"amqp"`
	Worker struct {
		Concurrency int `toml:"concurrency"`
	} `toml:"worker"`
	Sheets struct {
		SpreadsheetID      string `toml:"spreadsheet_id"`
		SheetName          string `toml:"sheet_name"`
		ServiceAccountFile string `toml:"service_account_file"`
	} `toml:"sheets"`
}

// duration decodes TOML strings such as "30s".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaults() *Config {
	return &Config{
		Port:         "8081",
		LogLevel:     "info",
		RateLimitRPM: 60,
		MaxUploadMB:  5,

		Strategy: "model",

		LLMProvider:     "huggingface",
		ModelName:       DefaultModel,
		LLMMaxTokens:    100,
		LLMTemperature:  0.5,
		LLMTimeout:      60 * time.Second,
		LLMCacheSize:    128,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,

		AMQPExchange: "risparmi",
		AMQPQueue:    "plans",

		WorkerConcurrency: 4,

		GoogleSheetName: "Plans",
	}
}

// Load builds the configuration from defaults, the TOML file named by
// RISPARMI_CONFIG (if any) and the environment, in increasing precedence.
func Load() (*Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("RISPARMI_CONFIG")); path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg.apply(f)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadFile decodes a TOML configuration file. Unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return &f, nil
}

func (c *Config) apply(f *File) {
	setString(&c.Port, f.Server.Port)
	setString(&c.LogLevel, f.Server.LogLevel)
	if f.Server.RateLimitRPM != nil {
		c.RateLimitRPM = *f.Server.RateLimitRPM
	}
	setInt(&c.MaxUploadMB, f.Server.MaxUploadMB)

	setString(&c.Strategy, f.Adjust.Strategy)
	setString(&c.PromptTemplate, f.Prompt.Template)

	setString(&c.LLMProvider, f.LLM.Provider)
	setString(&c.ModelName, f.LLM.Model)
	setString(&c.LLMBaseURL, f.LLM.BaseURL)
	setInt(&c.LLMMaxTokens, f.LLM.MaxTokens)
	if f.LLM.Temperature != nil {
		c.LLMTemperature = *f.LLM.Temperature
	}
	setDuration(&c.LLMTimeout, f.LLM.Timeout.Duration)
	setDuration(&c.LLMCacheTTL, f.LLM.CacheTTL.Duration)
	setInt(&c.LLMCacheSize, f.LLM.CacheSize)
	setInt(&c.BreakerFailures, f.LLM.BreakerFailures)
	setDuration(&c.BreakerTimeout, f.LLM.BreakerTimeout.Duration)

	setString(&c.HistoryDBPath, f.History.DBPath)

	setString(&c.AMQPURL, f.AMQP.URL)
	setString(&c.AMQPExchange, f.AMQP.Exchange)
	setString(&c.AMQPQueue, f.AMQP.Queue)
	setInt(&c.WorkerConcurrency, f.Worker.Concurrency)

	setString(&c.GoogleSpreadsheetID, f.Sheets.SpreadsheetID)
	setString(&c.GoogleSheetName, f.Sheets.SheetName)
	setString(&c.GoogleServiceAccountFile, f.Sheets.ServiceAccountFile)
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RateLimitRPM = getEnvInt("RATE_LIMIT_RPM", c.RateLimitRPM)
	c.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", c.MaxUploadMB)

	c.Strategy = getEnv("ADJUST_STRATEGY", c.Strategy)

	c.LLMProvider = getEnv("LLM_PROVIDER", c.LLMProvider)
	c.ModelName = getEnv("MODEL_NAME", c.ModelName)
	c.HFToken = getEnv("HUGGINGFACEHUB_API_TOKEN", c.HFToken)
	c.LLMAPIKey = getEnv("LLM_API_KEY", c.LLMAPIKey)
	c.LLMBaseURL = getEnv("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMMaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLMMaxTokens)
	c.LLMTemperature = getEnvFloat("LLM_TEMPERATURE", c.LLMTemperature)
	c.LLMTimeout = getEnvDuration("LLM_TIMEOUT", c.LLMTimeout)
	c.LLMCacheTTL = getEnvDuration("LLM_CACHE_TTL", c.LLMCacheTTL)
	c.LLMCacheSize = getEnvInt("LLM_CACHE_SIZE", c.LLMCacheSize)
	c.BreakerFailures = getEnvInt("BREAKER_FAILURES", c.BreakerFailures)
	c.BreakerTimeout = getEnvDuration("BREAKER_TIMEOUT", c.BreakerTimeout)

	c.HistoryDBPath = getEnv("HISTORY_DB_PATH", c.HistoryDBPath)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)
	c.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", c.WorkerConcurrency)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if c.RateLimitRPM < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be 0 (off) or positive", c.RateLimitRPM))
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 100 {
		errors = append(errors, fmt.Sprintf("invalid max upload %d MB: must be between 1 and 100", c.MaxUploadMB))
	}

	if c.PromptTemplate != "" {
		if _, err := template.New("prompt").Parse(c.PromptTemplate); err != nil {
			errors = append(errors, fmt.Sprintf("invalid prompt template: %v", err))
		}
	}

	// Completion settings only matter for the model strategy
	switch c.Strategy {
	case "local":
	case "model":
		errors = append(errors, c.validateLLM()...)
	default:
		errors = append(errors, fmt.Sprintf("invalid adjust strategy '%s': must be one of [model local]", c.Strategy))
	}

	if c.HistoryDBPath != "" {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.HistoryDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create history database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid worker concurrency %d: must be between 1 and 64", c.WorkerConcurrency))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func (c *Config) validateLLM() []string {
	var errors []string

	switch c.LLMProvider {
	case "huggingface":
		if c.HFToken == "" {
			errors = append(errors, "HUGGINGFACEHUB_API_TOKEN is required for the huggingface provider")
		}
	case "openai":
		if c.LLMAPIKey == "" {
			errors = append(errors, "LLM_API_KEY is required for the openai provider")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid LLM provider '%s': must be one of [huggingface openai]", c.LLMProvider))
	}

	if strings.TrimSpace(c.ModelName) == "" {
		errors = append(errors, "model name cannot be empty")
	}
	if c.LLMBaseURL != "" {
		if u, err := url.Parse(c.LLMBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid LLM base URL '%s': must be an http(s) URL", c.LLMBaseURL))
		}
	}
	if c.LLMMaxTokens < 1 || c.LLMMaxTokens > 4096 {
		errors = append(errors, fmt.Sprintf("invalid max tokens %d: must be between 1 and 4096", c.LLMMaxTokens))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errors = append(errors, fmt.Sprintf("invalid temperature %g: must be between 0 and 2", c.LLMTemperature))
	}
	if c.LLMTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid LLM timeout %v: must be at least 1 second", c.LLMTimeout))
	}
	if c.LLMCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.LLMCacheTTL))
	}
	if c.LLMCacheTTL > 0 && c.LLMCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.LLMCacheSize))
	}
	if c.BreakerFailures < 1 {
		errors = append(errors, fmt.Sprintf("invalid breaker failures %d: must be at least 1", c.BreakerFailures))
	}
	if c.BreakerTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid breaker timeout %v: must be at least 1 second", c.BreakerTimeout))
	}
	return errors
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
