package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL string

	// Payment gateway configuration
	GatewayBaseURL        string
	GatewaySecretKey      string
	GatewayPublicKey      string
	GatewayName           string
	GatewayTimeoutSeconds int
	WebhookHash           string

	// Brevo email configuration
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string

	// Kafka configuration (events disabled when no brokers set)
	KafkaBrokers     []string
	KafkaOrdersTopic string

	// Admin API configuration
	AdminAPIKey string

	// Storefront configuration
	ServiceName     string
	StoreBaseURL    string
	DefaultCurrency string
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// Ignore error if .env file doesn't exist
	}

	AppConfig = &Config{
		Port:                  getEnv("PORT", "8080"),
		Mode:                  getEnv("GIN_MODE", "debug"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		GatewayBaseURL:        getEnv("GATEWAY_BASE_URL", "https://api.flutterwave.com"),
		GatewaySecretKey:      getEnv("FLW_SECRET_KEY", ""),
		GatewayPublicKey:      getEnv("FLW_PUBLIC_KEY", ""),
		GatewayName:           getEnv("GATEWAY_NAME", "flutterwave"),
		GatewayTimeoutSeconds: getEnvInt("GATEWAY_TIMEOUT_SECONDS", 15),
		WebhookHash:           getEnv("FLW_WEBHOOK_HASH", ""),
		BrevoAPIKey:           getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:        getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:         getEnv("BREVO_FROM_NAME", "Storefront"),
		KafkaBrokers:          getEnvList("KAFKA_BROKERS"),
		KafkaOrdersTopic:      getEnv("KAFKA_ORDERS_TOPIC", "storefront.orders"),
		AdminAPIKey:           getEnv("ADMIN_API_KEY", ""),
		ServiceName:           getEnv("SERVICE_NAME", "Storefront API"),
		StoreBaseURL:          getEnv("STORE_BASE_URL", "https://store.example.com"),
		DefaultCurrency:       getEnv("DEFAULT_CURRENCY", "NGN"),
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
