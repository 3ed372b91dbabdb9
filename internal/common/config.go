package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Ingest       IngestConfig
	OCR          OCRConfig
	Vision       VisionConfig
	Classifier   ClassifierConfig
	Orchestrator OrchestratorConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver      string // "sqlite" | "postgres"
	DSN         string
	PingTimeout time.Duration
}

// ServerConfig holds the HTTP control API configuration
type ServerConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// IngestConfig holds watcher/walker configuration
type IngestConfig struct {
	WatchRoots  []string
	InitialScan bool
	Debounce    time.Duration
	SkipHidden  bool
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TessdataDir    string
	TesseractLang  string
	DPI            int
	MaxPages       int
	ProcessTimeout time.Duration
}

// VisionConfig holds the vision backend configuration
type VisionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ClassifierConfig holds the classification backend configuration
type ClassifierConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OrchestratorConfig holds worker-loop tuning
type OrchestratorConfig struct {
	NotifyBuffer int
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is folded in first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()
	return &Config{
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "sqlite"),
			DSN:         getEnv("DB_URL", "file:docflow.db?_pragma=busy_timeout(5000)"),
			PingTimeout: getEnvAsDuration("DB_PING_TIMEOUT", 5*time.Second),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			RequestTimeout:  getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			WatchRoots:  splitList(getEnv("WATCH_ROOTS", "")),
			InitialScan: getEnvAsBool("WATCH_INITIAL_SCAN", true),
			Debounce:    getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			SkipHidden:  getEnvAsBool("WATCH_SKIP_HIDDEN", true),
		},
		OCR: OCRConfig{
			TessdataDir:    getEnv("TESSDATA_PREFIX", ""),
			TesseractLang:  getEnv("TESSERACT_LANG", "eng"),
			DPI:            getEnvAsInt("OCR_DPI", 300),
			MaxPages:       getEnvAsInt("OCR_MAX_PAGES", 0),
			ProcessTimeout: getEnvAsDuration("OCR_PROCESS_TIMEOUT", 2*time.Minute),
		},
		Vision: VisionConfig{
			BaseURL: getEnv("VISION_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("VISION_API_KEY", getEnv("OPENAI_API_KEY", "")),
			Model:   getEnv("VISION_MODEL", "gpt-4o-mini"),
			Timeout: getEnvAsDuration("VISION_TIMEOUT", 60*time.Second),
		},
		Classifier: ClassifierConfig{
			BaseURL:     getEnv("CLASSIFIER_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("CLASSIFIER_API_KEY", getEnv("OPENAI_API_KEY", "")),
			Model:       getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
			Temperature: getEnvAsFloat32("CLASSIFIER_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("CLASSIFIER_TIMEOUT", 45*time.Second),
		},
		Orchestrator: OrchestratorConfig{
			NotifyBuffer: getEnvAsInt("NOTIFY_BUFFER", 256),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Classifier.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "CLASSIFIER_API_KEY or OPENAI_API_KEY is required", ErrInvalidInput)
	}
	return nil
}
