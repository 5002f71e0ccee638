package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Port           string
	Host           string
	Env            string
	AllowedOrigins []string

	// MongoDB
	MongoURI     string
	DatabaseName string
	MongoTimeout int

	// JWT
	JWTSecret     string
	JWTExpiration int // hours

	// e-ID verifier
	VerifierAPIURL string
	// VerificationTimeout is the server-side lifetime of a verification
	// session in seconds. Sessions are marked expired lazily on poll.
	VerificationTimeout int
	// PollInterval is handed to the browser as the status poll cadence (seconds).
	PollInterval int

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   int // seconds
}

func Load() *Config {
	config := &Config{
		Port:           getEnv("PORT", "8080"),
		Host:           getEnv("HOST", "0.0.0.0"),
		Env:            getEnv("ENV", "development"),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnv("DATABASE_NAME", "prosignum"),
		MongoTimeout: getEnvAsInt("MONGO_TIMEOUT", 10),

		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration: getEnvAsInt("JWT_EXPIRATION", 24),

		VerifierAPIURL:      getEnv("VERIFIER_API_URL", "http://localhost:8081"),
		VerificationTimeout: getEnvAsInt("VERIFICATION_TIMEOUT", 300),
		PollInterval:        getEnvAsInt("POLL_INTERVAL", 2),

		RateLimitEnabled:  getEnvAsBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
	}

	if config.Env == "production" && config.JWTSecret == "your-secret-key" {
		log.Println("WARNING: running in production with the default JWT secret")
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
