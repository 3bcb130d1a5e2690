/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables (and an
 * optional .env file), providing a centralized way to manage settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the backend.
// These values are loaded from environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTTTLHours int    `mapstructure:"JWT_TTL_HOURS"`

	DarajaBaseURL        string `mapstructure:"DARAJA_BASE_URL"`
	DarajaConsumerKey    string `mapstructure:"DARAJA_CONSUMER_KEY"`
	DarajaConsumerSecret string `mapstructure:"DARAJA_CONSUMER_SECRET"`
	DarajaShortcode      string `mapstructure:"DARAJA_SHORTCODE"`
	DarajaPasskey        string `mapstructure:"DARAJA_PASSKEY"`

	// BackendURL is the externally reachable base URL Daraja posts the
	// callback to.
	BackendURL string `mapstructure:"BACKEND_URL"`

	// PremiumUnlockAmount is the subscription price in whole shillings. The
	// charge is never taken from client input.
	PremiumUnlockAmount int64 `mapstructure:"PREMIUM_UNLOCK_AMOUNT"`

	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	PaymentEventExchange string `mapstructure:"PAYMENT_EVENT_EXCHANGE"`

	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	StkPushRateLimitPerMinute int    `mapstructure:"STK_PUSH_RATE_LIMIT_PER_MINUTE"`

	PendingPaymentSweepSchedule string `mapstructure:"PENDING_PAYMENT_SWEEP_SCHEDULE"`
	PendingPaymentMaxAgeMinutes int    `mapstructure:"PENDING_PAYMENT_MAX_AGE_MINUTES"`
}

// JWTTTL returns the configured token lifetime.
func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// PendingPaymentMaxAge returns the age after which a pending payment is
// swept to failed.
func (c Config) PendingPaymentMaxAge() time.Duration {
	return time.Duration(c.PendingPaymentMaxAgeMinutes) * time.Minute
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "5000")
	viper.SetDefault("JWT_TTL_HOURS", 720) // 30 days
	viper.SetDefault("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke")
	viper.SetDefault("PREMIUM_UNLOCK_AMOUNT", 1)
	viper.SetDefault("PAYMENT_EVENT_EXCHANGE", "payment_events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "somanamimi:rate_limit")
	viper.SetDefault("STK_PUSH_RATE_LIMIT_PER_MINUTE", 5)
	viper.SetDefault("PENDING_PAYMENT_SWEEP_SCHEDULE", "@every 10m")
	viper.SetDefault("PENDING_PAYMENT_MAX_AGE_MINUTES", 120)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_HOURS")
	_ = viper.BindEnv("DARAJA_BASE_URL")
	_ = viper.BindEnv("DARAJA_CONSUMER_KEY")
	_ = viper.BindEnv("DARAJA_CONSUMER_SECRET")
	_ = viper.BindEnv("DARAJA_SHORTCODE")
	_ = viper.BindEnv("DARAJA_PASSKEY")
	_ = viper.BindEnv("BACKEND_URL")
	_ = viper.BindEnv("PREMIUM_UNLOCK_AMOUNT")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("STK_PUSH_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PENDING_PAYMENT_SWEEP_SCHEDULE")
	_ = viper.BindEnv("PENDING_PAYMENT_MAX_AGE_MINUTES")

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

	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "somanamimi:rate_limit"
	}
	if config.JWTTTLHours <= 0 {
		config.JWTTTLHours = 720
	}
	if config.PremiumUnlockAmount <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive unlock amount configured; coercing to 1\" amount=%d", config.PremiumUnlockAmount)
		config.PremiumUnlockAmount = 1
	}
	if config.PendingPaymentMaxAgeMinutes <= 0 {
		config.PendingPaymentMaxAgeMinutes = 120
	}
	if config.PendingPaymentSweepSchedule == "" {
		config.PendingPaymentSweepSchedule = "@every 10m"
	}

	return
}
