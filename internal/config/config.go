package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Kafka        KafkaConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Tillo        TilloConfig
	Gemini       GeminiConfig
	Auth         AuthConfig
	Kiosk        KioskConfig
	Orders       OrdersConfig
	Surveillance SurveillanceConfig
	Print        PrintConfig
	Assets       AssetsConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	MockMode bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SessionTTL    time.Duration
}

type TilloConfig struct {
	BaseURL string
	APIKey  string
	Secret  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	AdminEmail string
	AdminPass  string
}

// KioskConfig holds the liveness windows used when deriving dashboard state.
type KioskConfig struct {
	OnlineWindow   time.Duration
	HeartbeatStale time.Duration
	SessionMaxAge  time.Duration
}

type OrdersConfig struct {
	GuestAccessWindow time.Duration
}

type SurveillanceConfig struct {
	DwellThreshold float64
}

type PrintConfig struct {
	IPPPort   int
	AgentPort int
	Username  string
	Password  string
}

// AssetsConfig points at the public object storage bucket that holds card
// images and rendered PDFs.
type AssetsConfig struct {
	PublicBaseURL string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8085"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "3306"),
			Username:     getEnv("DB_USER", "root"),
			Password:     getEnv("DB_PASS", "password"),
			Database:     getEnv("DB_NAME", "smartwish"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvSlice("KAFKA_BROKERS", []string{"localhost:29092"}),
			GroupID:  getEnv("KAFKA_GROUP_ID", "smartwish-backend"),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SessionTTL:    getEnvDuration("PAYMENT_SESSION_TTL", 30*time.Minute),
		},
		Tillo: TilloConfig{
			BaseURL: getEnv("TILLO_BASE_URL", "https://sandbox.tillo.dev/api/v2"),
			APIKey:  getEnv("TILLO_API_KEY", ""),
			Secret:  getEnv("TILLO_SECRET", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", "smartwish-dev-secret"),
			TokenTTL:   getEnvDuration("JWT_TOKEN_TTL", 12*time.Hour),
			BcryptCost: getEnvInt("BCRYPT_COST", 10),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
			AdminPass:  getEnv("ADMIN_PASSWORD", ""),
		},
		Kiosk: KioskConfig{
			OnlineWindow:   getEnvDuration("KIOSK_ONLINE_WINDOW", 2*time.Minute),
			HeartbeatStale: getEnvDuration("KIOSK_HEARTBEAT_STALE", 5*time.Minute),
			SessionMaxAge:  getEnvDuration("KIOSK_SESSION_MAX_AGE", 24*time.Hour),
		},
		Orders: OrdersConfig{
			GuestAccessWindow: getEnvDuration("GUEST_ACCESS_WINDOW", time.Hour),
		},
		Surveillance: SurveillanceConfig{
			DwellThreshold: getEnvFloat("SURVEILLANCE_DWELL_THRESHOLD", 8.0),
		},
		Print: PrintConfig{
			IPPPort:   getEnvInt("PRINT_IPP_PORT", 631),
			AgentPort: getEnvInt("PRINT_AGENT_PORT", 8631),
			Username:  getEnv("PRINT_IPP_USER", ""),
			Password:  getEnv("PRINT_IPP_PASS", ""),
		},
		Assets: AssetsConfig{
			PublicBaseURL: getEnv("ASSETS_PUBLIC_BASE_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
