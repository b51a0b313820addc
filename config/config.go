package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	MongoURI string
	DBName   string

	JWTSecret   string
	FrontendURL string

	VNPayTmnCode    string
	VNPayHashSecret string
	VNPayURL        string
	VNPayReturnURL  string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string

	GeminiAPIKey     string
	GeminiModel      string
	ChatHistoryLimit int
	ChatTimeout      time.Duration

	EmailProvider    string
	EmailSender      string
	PostmarkAPIToken string
	SendgridAPIKey   string

	RabbitMQURL     string
	OrderExchange   string
	OrderQueue      string
	DeadLetterQueue string
}

func LoadConfig() *Config {
	return &Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8000"),

		MongoURI: getEnvFromFile("MONGODB_URI_FILE", "MONGODB_URI", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "ecommerce"),

		JWTSecret:   getEnvFromFile("JWT_SECRET_FILE", "JWT_SECRET", ""),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		VNPayTmnCode:    getEnv("VNP_TMN_CODE", ""),
		VNPayHashSecret: getEnvFromFile("VNP_HASH_SECRET_FILE", "VNP_HASH_SECRET", ""),
		VNPayURL:        getEnv("VNP_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		VNPayReturnURL:  getEnv("VNP_RETURN_URL", "http://localhost:5173/payment/vnpay-return"),

		StripeSecretKey:     getEnvFromFile("STRIPE_SECRET_KEY_FILE", "STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvFromFile("STRIPE_WEBHOOK_SECRET_FILE", "STRIPE_WEBHOOK_SECRET", ""),
		StripeCurrency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "vnd")),

		GeminiAPIKey:     getEnvFromFile("GEMINI_API_KEY_FILE", "GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 10),
		ChatTimeout:      time.Duration(getEnvInt("CHAT_TIMEOUT_SECONDS", 30)) * time.Second,

		EmailProvider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "postmark")),
		EmailSender:      getEnv("EMAIL_SENDER", ""),
		PostmarkAPIToken: getEnvFromFile("POSTMARK_API_TOKEN_FILE", "POSTMARK_API_TOKEN", ""),
		SendgridAPIKey:   getEnvFromFile("SENDGRID_API_KEY_FILE", "SENDGRID_API_KEY", ""),

		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		OrderExchange:   getEnv("ORDER_EXCHANGE", "orders_exchange"),
		OrderQueue:      getEnv("ORDER_QUEUE", "orders_queue"),
		DeadLetterQueue: getEnv("DEAD_LETTER_QUEUE", "orders_dead_letter_queue"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvFromFile prefers the contents of the file named by fileKey, which is how
// docker secrets are mounted, and falls back to the plain variable.
func getEnvFromFile(fileKey, envKey, defaultValue string) string {
	if filePath := os.Getenv(fileKey); filePath != "" {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return getEnv(envKey, defaultValue)
}
