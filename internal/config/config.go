package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env file - ignore error if file doesn't exist
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Note: .env file not found or could not be loaded: %v\n", err)
	}
}

type Config struct {
	Primary       PrimaryConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Observability *ObservabilityConfig
	WhatsApp      WhatsAppConfig
	Razorpay      RazorpayConfig
	Billing       BillingConfig
}

type PrimaryConfig struct {
	Env string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	IdleTimeout        int
	CORSAllowedOrigins []string
}

type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

type KafkaConfig struct {
	Brokers []string
}

type ObservabilityConfig struct {
	ServiceName  string
	Environment  string
	Logging      LoggingConfig
	NewRelic     NewRelicConfig
	HealthChecks HealthChecksConfig
}

type LoggingConfig struct {
	Level              string
	Format             string
	SlowQueryThreshold time.Duration
}

type NewRelicConfig struct {
	LicenseKey                string
	AppLogForwardingEnabled   bool
	DistributedTracingEnabled bool
	DebugLogging              bool
}

type HealthChecksConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
	Checks   []string
}

// WhatsAppConfig holds the Cloud API credentials. VerifyToken is the shared
// secret echoed back during webhook subscription (hub.challenge handshake).
type WhatsAppConfig struct {
	AccessToken string
	VerifyToken string
	BaseURL     string
	APIVersion  string
	Timeout     time.Duration
}

type RazorpayConfig struct {
	KeyID         string
	WebhookSecret string
}

// BillingConfig controls credit metering: how many sends per month are free
// and what each message kind costs in credits once the quota is exhausted.
type BillingConfig struct {
	FreeMonthlyQuota int
	TextCost         int64
	TemplateCost     int64
	MediaCost        int64
	LocationCost     int64
	SendRateLimit    int64
	SendRateWindow   time.Duration
}

// Helper functions for parsing env vars
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return fallback
}

func (c *ObservabilityConfig) GetLogLevel() string {
	if c.Logging.Level == "" {
		switch c.Environment {
		case "production":
			return "info"
		case "development":
			return "debug"
		default:
			return "info"
		}
	}
	return c.Logging.Level
}

func (c *ObservabilityConfig) IsProduction() bool {
	return c.Environment == "production"
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Primary: PrimaryConfig{
			Env: getEnv("WAPI_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("WAPI_DB_HOST", "localhost"),
			Port:            getEnvInt("WAPI_DB_PORT", 5432),
			User:            getEnv("WAPI_DB_USER", "wapi"),
			Password:        getEnv("WAPI_DB_PASSWORD", ""),
			Name:            getEnv("WAPI_DB_NAME", "wapi"),
			SSLMode:         getEnv("WAPI_DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("WAPI_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("WAPI_DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvInt("WAPI_DB_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("WAPI_DB_CONN_MAX_IDLE_TIME", 60),
		},
		Server: ServerConfig{
			Port:               getEnv("WAPI_SERVER_PORT", "8080"),
			ReadTimeout:        getEnvInt("WAPI_SERVER_READ_TIMEOUT", 30),
			WriteTimeout:       getEnvInt("WAPI_SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:        getEnvInt("WAPI_SERVER_IDLE_TIMEOUT", 60),
			CORSAllowedOrigins: getEnvSlice("WAPI_SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Address:      getEnv("WAPI_REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnv("WAPI_REDIS_PASSWORD", ""),
			DB:           getEnvInt("WAPI_REDIS_DB", 0),
			PoolSize:     getEnvInt("WAPI_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("WAPI_REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvDuration("WAPI_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("WAPI_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("WAPI_REDIS_WRITE_TIMEOUT", 3*time.Second),
			KeyPrefix:    getEnv("WAPI_REDIS_KEY_PREFIX", "wapi:"),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("WAPI_KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		Observability: &ObservabilityConfig{
			ServiceName: "wapi",
			Environment: getEnv("WAPI_ENV", "development"),
			Logging: LoggingConfig{
				Level:              getEnv("WAPI_LOG_LEVEL", "debug"),
				Format:             getEnv("WAPI_LOG_FORMAT", "console"),
				SlowQueryThreshold: getEnvDuration("WAPI_LOG_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
			},
			NewRelic: NewRelicConfig{
				LicenseKey:                getEnv("WAPI_NEWRELIC_LICENSE_KEY", ""),
				AppLogForwardingEnabled:   getEnvBool("WAPI_NEWRELIC_LOG_FORWARDING", true),
				DistributedTracingEnabled: getEnvBool("WAPI_NEWRELIC_DISTRIBUTED_TRACING", true),
				DebugLogging:              getEnvBool("WAPI_NEWRELIC_DEBUG", false),
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  getEnvBool("WAPI_HEALTHCHECK_ENABLED", true),
				Interval: getEnvDuration("WAPI_HEALTHCHECK_INTERVAL", 30*time.Second),
				Timeout:  getEnvDuration("WAPI_HEALTHCHECK_TIMEOUT", 5*time.Second),
				Checks:   getEnvSlice("WAPI_HEALTHCHECK_CHECKS", []string{"database", "redis"}),
			},
		},
		WhatsApp: WhatsAppConfig{
			AccessToken: getEnv("WAPI_WHATSAPP_ACCESS_TOKEN", ""),
			VerifyToken: getEnv("WAPI_WHATSAPP_VERIFY_TOKEN", ""),
			BaseURL:     getEnv("WAPI_WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:  getEnv("WAPI_WHATSAPP_API_VERSION", "v19.0"),
			Timeout:     getEnvDuration("WAPI_WHATSAPP_TIMEOUT", 15*time.Second),
		},
		Razorpay: RazorpayConfig{
			KeyID:         getEnv("WAPI_RAZORPAY_KEY_ID", ""),
			WebhookSecret: getEnv("WAPI_RAZORPAY_WEBHOOK_SECRET", ""),
		},
		Billing: BillingConfig{
			FreeMonthlyQuota: getEnvInt("WAPI_BILLING_FREE_MONTHLY_QUOTA", 100),
			TextCost:         getEnvInt64("WAPI_BILLING_TEXT_COST", 1),
			TemplateCost:     getEnvInt64("WAPI_BILLING_TEMPLATE_COST", 2),
			MediaCost:        getEnvInt64("WAPI_BILLING_MEDIA_COST", 2),
			LocationCost:     getEnvInt64("WAPI_BILLING_LOCATION_COST", 1),
			SendRateLimit:    getEnvInt64("WAPI_BILLING_SEND_RATE_LIMIT", 80),
			SendRateWindow:   getEnvDuration("WAPI_BILLING_SEND_RATE_WINDOW", time.Second),
		},
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, fmt.Errorf("WAPI_DB_HOST is required")
	}
	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("WAPI_DB_NAME is required")
	}

	return cfg, nil
}
