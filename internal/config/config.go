package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	MongoURI       string
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	AuthIssuerURL  string
	SweepInterval  time.Duration
	JobQueueSize   int
}

// Load reads configuration from the environment. In development a .env file
// in the working directory is loaded first if present.
func Load() (*Config, error) {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		return nil, errors.New("MONGODB_URI is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	allowedOrigins := []string{"*"}
	if ao := os.Getenv("ALLOWED_ORIGINS"); ao != "" {
		allowedOrigins = nil
		for _, origin := range strings.Split(ao, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins = append(allowedOrigins, origin)
			}
		}
	}

	issuerURL := os.Getenv("AUTH_ISSUER_URL")
	if issuerURL == "" && environment != "development" {
		return nil, errors.New("AUTH_ISSUER_URL is required outside development")
	}

	sweepInterval := time.Hour
	if si := os.Getenv("SWEEP_INTERVAL"); si != "" {
		parsed, err := time.ParseDuration(si)
		if err != nil {
			return nil, errors.New("SWEEP_INTERVAL must be a duration such as 30m or 1h")
		}
		sweepInterval = parsed
	}

	queueSize := 100
	if qs := os.Getenv("JOB_QUEUE_SIZE"); qs != "" {
		if parsed, err := strconv.Atoi(qs); err == nil && parsed > 0 {
			queueSize = parsed
		}
	}

	return &Config{
		MongoURI:       mongoURI,
		Port:           port,
		Environment:    environment,
		LogLevel:       logLevel,
		AllowedOrigins: allowedOrigins,
		AuthIssuerURL:  issuerURL,
		SweepInterval:  sweepInterval,
		JobQueueSize:   queueSize,
	}, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
