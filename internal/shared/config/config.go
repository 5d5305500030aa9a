package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	AI         AIConfig
	Sim        SimConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for EventStoreDB (KurrentDB).
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// AIConfig points at the LLM content service used for patient generation
// and rejection adjudication.
type AIConfig struct {
	URL     string
	Enabled bool
	// TimeoutSeconds bounds each call so the tick loop is never delayed
	TimeoutSeconds int
}

// SimConfig holds the simulation tuning knobs.
type SimConfig struct {
	// BaseIntervalMs is the tick period at speed 1.0
	BaseIntervalMs int
	// ArrivalProbability is the per-tick chance of a new arrival
	ArrivalProbability float64
	// DischargeDelayMin/Max bound the randomized discharge-flag delay (ticks)
	DischargeDelayMin int
	DischargeDelayMax int
	// WaitThresholdMin/Max bound the randomized overdue-wait threshold (ticks)
	WaitThresholdMin int
	WaitThresholdMax int
	// BedCount is the number of ER beds
	BedCount int
	// DefaultMode is the operating mode at startup
	DefaultMode string
	// DefaultSpeed is the speed multiplier at startup
	DefaultSpeed float64
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docbox"),
			Password: getEnv("DB_PASSWORD", "docbox"),
			Database: getEnv("DB_NAME", "docbox"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		AI: AIConfig{
			URL:            getEnv("AI_SERVICE_URL", "http://localhost:5000"),
			Enabled:        getEnvBool("AI_ENABLED", true),
			TimeoutSeconds: getEnvInt("AI_TIMEOUT_SECONDS", 10),
		},
		Sim: SimConfig{
			BaseIntervalMs:     getEnvInt("SIM_BASE_INTERVAL_MS", 1500),
			ArrivalProbability: getEnvFloat("SIM_ARRIVAL_PROBABILITY", 0.25),
			DischargeDelayMin:  getEnvInt("SIM_DISCHARGE_DELAY_MIN", 4),
			DischargeDelayMax:  getEnvInt("SIM_DISCHARGE_DELAY_MAX", 12),
			WaitThresholdMin:   getEnvInt("SIM_WAIT_THRESHOLD_MIN", 18),
			WaitThresholdMax:   getEnvInt("SIM_WAIT_THRESHOLD_MAX", 25),
			BedCount:           getEnvInt("SIM_BED_COUNT", 16),
			DefaultMode:        getEnv("SIM_DEFAULT_MODE", "doctor-manual"),
			DefaultSpeed:       getEnvFloat("SIM_DEFAULT_SPEED", 1.0),
		},
	}, nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
