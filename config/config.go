package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port       string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	RedisHost  string
	RedisPort  string
	JWTSecret  string

	// Generative service (Gemini)
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiModel      string
	GeminiDraftModel string
	GeminiTimeoutSec int
	GeminiMaxRetries int

	// Board supply tuning
	SupplyConcurrency    int
	SupplyCallTimeoutSec int

	// Anti-repetition ledger
	LedgerMaxEntries int
}

func Load() *Config {
	return &Config{
		Port:       getEnv("PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tahadi"),
		DBPassword: getEnv("DB_PASSWORD", "tahadi123"),
		DBName:     getEnv("DB_NAME", "tahadi"),
		RedisHost:  getEnv("REDIS_HOST", "localhost"),
		RedisPort:  getEnv("REDIS_PORT", "6379"),
		JWTSecret:  getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-3-pro-preview"),
		GeminiDraftModel: getEnv("GEMINI_DRAFT_MODEL", "gemini-3-flash-preview"),
		GeminiTimeoutSec: getEnvInt("GEMINI_TIMEOUT_SECONDS", 120),
		GeminiMaxRetries: getEnvInt("GEMINI_MAX_RETRIES", 3),

		SupplyConcurrency:    getEnvInt("SUPPLY_CONCURRENCY", 8),
		SupplyCallTimeoutSec: getEnvInt("SUPPLY_CALL_TIMEOUT_SECONDS", 10),

		LedgerMaxEntries: getEnvInt("LEDGER_MAX_ENTRIES", 500),
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
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
