package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	NotifyBuyer  = "buyer"
	NotifySeller = "seller"
)

type Config struct {
	ServerPort      string
	Environment     string
	LogLevel        string
	FirebaseProject string
	StorageBucket   string
	StoreBackend    string
	AllowedOrigins  []string

	ServiceAccountJSON string
	ServiceAccountPath string

	MessageMaxLength   int
	MessagePageSize    int
	MessagePageSizeMax int

	CustomOrderValidity         time.Duration
	CustomOrderRequestRecipient string

	UnreadReconcileCron  string
	MessagesPerMinute    int
	ConversationsPerHour int
	CustomOrdersPerHour  int
	RequestsPerMinute    int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", ""),
		StoreBackend:    getEnv("STORE_BACKEND", StoreFirestore),
		AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS"),

		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),

		MessageMaxLength:   getEnvAsInt("MESSAGE_MAX_LENGTH", 2000),
		MessagePageSize:    getEnvAsInt("MESSAGE_PAGE_SIZE", 20),
		MessagePageSizeMax: getEnvAsInt("MESSAGE_PAGE_SIZE_MAX", 100),

		CustomOrderValidity:         time.Duration(getEnvAsInt("CUSTOM_ORDER_VALIDITY_HOURS", 7*24)) * time.Hour,
		CustomOrderRequestRecipient: getEnv("CUSTOM_ORDER_REQUEST_NOTIFY", NotifyBuyer),

		UnreadReconcileCron:  getEnv("UNREAD_RECONCILE_CRON", "*/30 * * * *"),
		MessagesPerMinute:    getEnvAsInt("RATE_LIMIT_MESSAGES_PER_MINUTE", 30),
		ConversationsPerHour: getEnvAsInt("RATE_LIMIT_CONVERSATIONS_PER_HOUR", 30),
		CustomOrdersPerHour:  getEnvAsInt("RATE_LIMIT_CUSTOM_ORDERS_PER_HOUR", 20),
		RequestsPerMinute:    getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreFirestore:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when STORE_BACKEND=%s", StoreFirestore)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.MessageMaxLength <= 0 {
		return fmt.Errorf("MESSAGE_MAX_LENGTH must be positive")
	}
	if c.MessagePageSize <= 0 || c.MessagePageSizeMax <= 0 {
		return fmt.Errorf("message page sizes must be positive")
	}
	if c.MessagePageSize > c.MessagePageSizeMax {
		return fmt.Errorf("MESSAGE_PAGE_SIZE (%d) exceeds MESSAGE_PAGE_SIZE_MAX (%d)", c.MessagePageSize, c.MessagePageSizeMax)
	}
	if c.CustomOrderValidity <= 0 {
		return fmt.Errorf("CUSTOM_ORDER_VALIDITY_HOURS must be positive")
	}

	switch c.CustomOrderRequestRecipient {
	case NotifyBuyer, NotifySeller:
	default:
		return fmt.Errorf("CUSTOM_ORDER_REQUEST_NOTIFY must be %q or %q", NotifyBuyer, NotifySeller)
	}

	if c.UnreadReconcileCron != "" && !gronx.IsValid(c.UnreadReconcileCron) {
		return fmt.Errorf("invalid UNREAD_RECONCILE_CRON expression: %s", c.UnreadReconcileCron)
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
