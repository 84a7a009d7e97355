package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all environment configuration values for the client daemon.
// These values are loaded from a .env file at startup.
type Config struct {
	// SupabaseURL is the URL of the Supabase project the client syncs against
	SupabaseURL string

	// SupabaseKey is the anon API key used for PostgREST, storage and
	// realtime calls
	SupabaseKey string

	// UserID is the acting user identity. Every write intent is issued as
	// this user; without it all intents fail with a not-authenticated error.
	UserID string

	// ServerPort is the port the UI-facing HTTP server listens on
	ServerPort string
}

// Load reads environment variables and returns a populated Config struct.
// It will load from a .env file if present, then read from environment
// variables. Falls back to sensible defaults if values are not set.
func Load() *Config {
	// Attempt to load .env file - not an error if it doesn't exist
	// as we may be running with real environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		SupabaseURL: getEnv("SUPABASE_URL", ""),
		SupabaseKey: getEnv("SUPABASE_ANON_KEY", ""),
		UserID:      getEnv("PARLEY_USER_ID", ""),
		ServerPort:  getEnv("PORT", "8080"),
	}

	// Validate required configuration
	if config.SupabaseURL == "" {
		log.Println("WARNING: SUPABASE_URL is not set")
	}
	if config.SupabaseKey == "" {
		log.Println("WARNING: SUPABASE_ANON_KEY is not set")
	}
	if config.UserID == "" {
		log.Println("WARNING: PARLEY_USER_ID is not set, write intents will be rejected")
	}

	return config
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
