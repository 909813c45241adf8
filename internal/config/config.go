/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file, and normalizes values that are out of range back to their defaults.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	defaultServerPort        = "8080"
	defaultRateLimitPrefix   = "mcp:rate_limit"
	defaultWalletRateLimit   = 30
	defaultWithdrawRateLimit = 10
	defaultEventsExchange    = "mcp.events"
	defaultOrderStatusQueue  = "mcp.order_status_updates"
	defaultJWTTTLHours       = 24
	defaultCurrency          = "INR"
	defaultPendingReportCron = "@hourly"
)

// Config holds all the configuration variables for the service.
type Config struct {
	ServerPort                      string `mapstructure:"SERVER_PORT"`
	DatabaseURL                     string `mapstructure:"DATABASE_URL"`
	StorageDriver                   string `mapstructure:"STORAGE_DRIVER"`
	AutoMigrate                     bool   `mapstructure:"AUTO_MIGRATE"`
	RedisURL                        string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix            string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	WalletRateLimitPerMinute        int    `mapstructure:"WALLET_RATE_LIMIT_PER_MINUTE"`
	WithdrawRateLimitPerHour        int    `mapstructure:"WITHDRAW_RATE_LIMIT_PER_HOUR"`
	RabbitMQURL                     string `mapstructure:"RABBITMQ_URL"`
	EventsExchange                  string `mapstructure:"EVENTS_EXCHANGE"`
	OrderStatusQueue                string `mapstructure:"ORDER_STATUS_QUEUE"`
	JWTSecret                       string `mapstructure:"JWT_SECRET"`
	JWTTTLHours                     int    `mapstructure:"JWT_TTL_HOURS"`
	CORSAllowedOrigins              string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	DefaultCurrency                 string `mapstructure:"DEFAULT_CURRENCY"`
	PendingSettlementReportSchedule string `mapstructure:"PENDING_SETTLEMENT_REPORT_SCHEDULE"`
	LogDevelopment                  bool   `mapstructure:"LOG_DEVELOPMENT"`
}

// LoadConfig reads configuration from environment variables and an optional .env
// file in the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	viper.SetDefault("AUTO_MIGRATE", true)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("WALLET_RATE_LIMIT_PER_MINUTE", defaultWalletRateLimit)
	viper.SetDefault("WITHDRAW_RATE_LIMIT_PER_HOUR", defaultWithdrawRateLimit)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("ORDER_STATUS_QUEUE", defaultOrderStatusQueue)
	viper.SetDefault("JWT_TTL_HOURS", defaultJWTTTLHours)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("DEFAULT_CURRENCY", defaultCurrency)
	viper.SetDefault("PENDING_SETTLEMENT_REPORT_SCHEDULE", defaultPendingReportCron)
	viper.SetDefault("LOG_DEVELOPMENT", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("STORAGE_DRIVER")
	_ = viper.BindEnv("AUTO_MIGRATE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("WALLET_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WITHDRAW_RATE_LIMIT_PER_HOUR")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("ORDER_STATUS_QUEUE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_HOURS")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("DEFAULT_CURRENCY")
	_ = viper.BindEnv("PENDING_SETTLEMENT_REPORT_SCHEDULE")
	_ = viper.BindEnv("LOG_DEVELOPMENT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.normalize()
	return
}

func (c *Config) normalize() {
	c.ServerPort = strings.TrimSpace(c.ServerPort)
	if c.ServerPort == "" {
		c.ServerPort = defaultServerPort
	}

	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		log.Printf("level=warn component=config msg=\"unknown STORAGE_DRIVER; using postgres\" value=%q", c.StorageDriver)
		c.StorageDriver = StorageDriverPostgres
	}

	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.RedisRateLimitPrefix = strings.TrimSpace(c.RedisRateLimitPrefix)
	if c.RedisRateLimitPrefix == "" {
		c.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	if c.WalletRateLimitPerMinute <= 0 {
		log.Printf("level=warn component=config msg=\"invalid WALLET_RATE_LIMIT_PER_MINUTE; using default\" value=%d", c.WalletRateLimitPerMinute)
		c.WalletRateLimitPerMinute = defaultWalletRateLimit
	}
	if c.WithdrawRateLimitPerHour <= 0 {
		log.Printf("level=warn component=config msg=\"invalid WITHDRAW_RATE_LIMIT_PER_HOUR; using default\" value=%d", c.WithdrawRateLimitPerHour)
		c.WithdrawRateLimitPerHour = defaultWithdrawRateLimit
	}

	c.EventsExchange = strings.TrimSpace(c.EventsExchange)
	if c.EventsExchange == "" {
		c.EventsExchange = defaultEventsExchange
	}
	c.OrderStatusQueue = strings.TrimSpace(c.OrderStatusQueue)
	if c.OrderStatusQueue == "" {
		c.OrderStatusQueue = defaultOrderStatusQueue
	}

	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	if c.JWTTTLHours <= 0 {
		log.Printf("level=warn component=config msg=\"invalid JWT_TTL_HOURS; using default\" value=%d", c.JWTTTLHours)
		c.JWTTTLHours = defaultJWTTTLHours
	}

	c.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.DefaultCurrency))
	if len(c.DefaultCurrency) != 3 {
		log.Printf("level=warn component=config msg=\"invalid DEFAULT_CURRENCY; using INR\" value=%q", c.DefaultCurrency)
		c.DefaultCurrency = defaultCurrency
	}

	c.PendingSettlementReportSchedule = strings.TrimSpace(c.PendingSettlementReportSchedule)
	if c.PendingSettlementReportSchedule == "" {
		c.PendingSettlementReportSchedule = defaultPendingReportCron
	}
}

// JWTTTL is the token lifetime.
func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
