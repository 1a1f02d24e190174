package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Port is the TCP port the server listens on. It is fixed at build time;
// change it here if 8000 is taken on your machine.
const Port = 8000

const (
	// LandingPage is the page opened in the browser on startup
	LandingPage = "/A1.html"
	// Title is printed in the startup banner
	Title = "German A1 Vocabulary Flashcards - Local Server"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            int           `json:"port" validate:"min=1,max=65535"`
	Env             string        `json:"env" validate:"oneof=development production test"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	ReadTimeout     time.Duration `json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `json:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `json:"idle_timeout"`

	// Content
	Root        string `json:"root" validate:"required,dir"`
	LandingPage string `json:"landing_page" validate:"required,startswith=/"`
	Title       string `json:"title" validate:"required"`
	OpenBrowser bool   `json:"open_browser"`

	// Logging
	LogLevel string `json:"log_level" validate:"oneof=debug info warn error"`
}

// Load loads configuration from environment variables and validates it.
// The port is never read from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	root, err := resolveRoot(getEnv("SERVE_ROOT", ""))
	if err != nil {
		return nil, err
	}

	httpTimeout := getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second)
	cfg := &Config{
		Port:            Port,
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		ReadTimeout:     httpTimeout,
		WriteTimeout:    httpTimeout,
		IdleTimeout:     120 * time.Second,

		Root:        root,
		LandingPage: LandingPage,
		Title:       Title,
		OpenBrowser: getEnvAsBool("OPEN_BROWSER", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// resolveRoot returns the absolute serving directory. Without an override it is
// the directory holding the running executable, so the served tree does not
// depend on the shell's working directory.
func resolveRoot(override string) (string, error) {
	if override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("failed to resolve SERVE_ROOT: %w", err)
		}
		return abs, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %t", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
