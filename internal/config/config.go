// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the storefront
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	Kafka    KafkaConfig
	Cart     CartConfig
	Order    OrderConfig
	Pickup   PickupConfig
	Payment  PaymentConfig
	Janitor  JanitorConfig
	Store    StoreConfig
	Logging  LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
	SeedData    bool

	// Bootstrap admin created by the seeder when no such account exists
	AdminEmail    string
	AdminPassword string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	TxRetries    int
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	BcryptCost         int
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	TrustedProxies     []string
}

// KafkaConfig configures the order event producer. An empty broker list
// disables publishing.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

// CartConfig contains cart reservation settings
type CartConfig struct {
	ReservationTTL time.Duration
	SessionCookie  string
	SessionMaxAge  time.Duration
}

// OrderConfig contains order settings
type OrderConfig struct {
	PaymentWindow  time.Duration
	StatusCacheTTL time.Duration
}

// PickupConfig contains pickup token settings
type PickupConfig struct {
	TokenTTL time.Duration
	QRSize   int
}

// PaymentConfig contains payment notification settings
type PaymentConfig struct {
	Provider  string
	ServerKey string
}

// JanitorConfig controls the background cart sweeper
type JanitorConfig struct {
	Enabled  bool
	Interval time.Duration
	LockTTL  time.Duration
}

// StoreConfig describes the retailer, used on invoices
type StoreConfig struct {
	CompanyName    string
	CompanyAddress string
	CompanyPhone   string
	Currency       string
	LowStockLevel  int
	PickupLocation string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "LPG Storefront"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
			SeedData:    getEnvAsBool("APP_SEED_DATA", true),

			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@lpgstore.local"),
			AdminPassword: getEnv("ADMIN_PASSWORD", "Depot2024Admin"),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "lpg_store"),
			User:         getEnv("DB_USER", "lpg_user"),
			Password:     getEnv("DB_PASSWORD", "lpg_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
			TxRetries:    getEnvAsInt("DB_TX_RETRIES", 3),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "change-this-lpg-storefront-secret-in-production"),
			AccessTokenExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRE", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Session-ID"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvAsSlice("KAFKA_BROKERS", []string{}),
			Topic:      getEnv("KAFKA_ORDER_TOPIC", "lpg.orders"),
			BufferSize: getEnvAsInt("KAFKA_BUFFER_SIZE", 256),
		},
		Cart: CartConfig{
			ReservationTTL: getEnvAsDuration("CART_RESERVATION_TTL", 15*time.Minute),
			SessionCookie:  getEnv("CART_SESSION_COOKIE", "session_id"),
			SessionMaxAge:  getEnvAsDuration("CART_SESSION_MAX_AGE", 7*24*time.Hour),
		},
		Order: OrderConfig{
			PaymentWindow:  getEnvAsDuration("ORDER_PAYMENT_WINDOW", 24*time.Hour),
			StatusCacheTTL: getEnvAsDuration("ORDER_STATUS_CACHE_TTL", 5*time.Minute),
		},
		Pickup: PickupConfig{
			TokenTTL: getEnvAsDuration("PICKUP_TOKEN_TTL", 7*24*time.Hour),
			QRSize:   getEnvAsInt("PICKUP_QR_SIZE", 256),
		},
		Payment: PaymentConfig{
			Provider:  getEnv("PAYMENT_PROVIDER", "midtrans"),
			ServerKey: getEnv("PAYMENT_SERVER_KEY", ""),
		},
		Janitor: JanitorConfig{
			Enabled:  getEnvAsBool("JANITOR_ENABLED", true),
			Interval: getEnvAsDuration("JANITOR_INTERVAL", time.Minute),
			LockTTL:  getEnvAsDuration("JANITOR_LOCK_TTL", 50*time.Second),
		},
		Store: StoreConfig{
			CompanyName:    getEnv("STORE_COMPANY_NAME", "LPG Store"),
			CompanyAddress: getEnv("STORE_COMPANY_ADDRESS", ""),
			CompanyPhone:   getEnv("STORE_COMPANY_PHONE", ""),
			Currency:       getEnv("STORE_CURRENCY", "IDR"),
			LowStockLevel:  getEnvAsInt("STORE_LOW_STOCK_LEVEL", 5),
			PickupLocation: getEnv("STORE_PICKUP_LOCATION", "Main depot"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "debug"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	if c.Cart.ReservationTTL <= 0 {
		return fmt.Errorf("CART_RESERVATION_TTL must be positive")
	}
	if c.Pickup.TokenTTL <= 0 {
		return fmt.Errorf("PICKUP_TOKEN_TTL must be positive")
	}
	if c.Janitor.Enabled && c.Janitor.Interval <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be positive")
	}

	if c.IsProduction() && c.Payment.ServerKey == "" {
		return fmt.Errorf("PAYMENT_SERVER_KEY is required in production")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// KafkaEnabled reports whether order events should be published
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

// Helper functions for environment variable parsing

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
