/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables, with an
 * optional .env file for local development.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the reconciliation-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	RedisURL         string `mapstructure:"REDIS_URL"`
	RedisDedupPrefix string `mapstructure:"REDIS_DEDUP_PREFIX"`

	OrderEventQueue string `mapstructure:"ORDER_EVENT_QUEUE"`

	PayrailClientID     string `mapstructure:"PAYRAIL_CLIENT_ID"`
	PayrailClientSecret string `mapstructure:"PAYRAIL_CLIENT_SECRET"`
	PayrailCustomerID   string `mapstructure:"PAYRAIL_CUSTOMER_ID"`
	PayrailUseSandbox   bool   `mapstructure:"PAYRAIL_USE_SANDBOX"`
	// PayrailAPIBaseURL overrides the sandbox/production host selection when
	// set; used for local stubs and tests.
	PayrailAPIBaseURL string `mapstructure:"PAYRAIL_API_BASE_URL"`

	// UpdateOrderOn is the provider status at which the order is advanced and
	// financial side effects fire.
	UpdateOrderOn string `mapstructure:"UPDATE_ORDER_ON"`

	// Bounded-retry knobs for the order resolver. The webhook handler blocks
	// for at most InitialWait + Attempts*Delay before degrading to the
	// pending path.
	ResolverInitialWaitMS int `mapstructure:"RESOLVER_INITIAL_WAIT_MS"`
	ResolverRetryAttempts int `mapstructure:"RESOLVER_RETRY_ATTEMPTS"`
	ResolverRetryDelayMS  int `mapstructure:"RESOLVER_RETRY_DELAY_MS"`

	// InternalAPIKey guards the internal quotes-sync endpoint.
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ORDER_EVENT_QUEUE", "reconciliation_service.order_placed")
	viper.SetDefault("REDIS_DEDUP_PREFIX", "orderflow:webhook_dedup")
	viper.SetDefault("UPDATE_ORDER_ON", "paid")
	viper.SetDefault("RESOLVER_INITIAL_WAIT_MS", 2000)
	viper.SetDefault("RESOLVER_RETRY_ATTEMPTS", 5)
	viper.SetDefault("RESOLVER_RETRY_DELAY_MS", 3000)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_DEDUP_PREFIX")
	_ = viper.BindEnv("ORDER_EVENT_QUEUE")
	_ = viper.BindEnv("PAYRAIL_CLIENT_ID")
	_ = viper.BindEnv("PAYRAIL_CLIENT_SECRET")
	_ = viper.BindEnv("PAYRAIL_CUSTOMER_ID")
	_ = viper.BindEnv("PAYRAIL_USE_SANDBOX")
	_ = viper.BindEnv("PAYRAIL_API_BASE_URL")
	_ = viper.BindEnv("UPDATE_ORDER_ON")
	_ = viper.BindEnv("RESOLVER_INITIAL_WAIT_MS")
	_ = viper.BindEnv("RESOLVER_RETRY_ATTEMPTS")
	_ = viper.BindEnv("RESOLVER_RETRY_DELAY_MS")
	_ = viper.BindEnv("INTERNAL_API_KEY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(viper.GetString("PORT")); port != "" {
		config.ServerPort = port
	}

	config.UpdateOrderOn = strings.ToLower(strings.TrimSpace(config.UpdateOrderOn))
	if config.UpdateOrderOn == "" {
		config.UpdateOrderOn = "paid"
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisDedupPrefix = strings.TrimSpace(config.RedisDedupPrefix)
	if config.RedisDedupPrefix == "" {
		config.RedisDedupPrefix = "orderflow:webhook_dedup"
	}

	if config.ResolverInitialWaitMS < 0 {
		log.Printf("level=warn component=config msg=\"negative resolver initial wait; coercing to zero\" value=%d", config.ResolverInitialWaitMS)
		config.ResolverInitialWaitMS = 0
	}
	if config.ResolverRetryAttempts < 0 {
		log.Printf("level=warn component=config msg=\"negative resolver retry attempts; coercing to zero\" value=%d", config.ResolverRetryAttempts)
		config.ResolverRetryAttempts = 0
	}
	if config.ResolverRetryDelayMS < 0 {
		log.Printf("level=warn component=config msg=\"negative resolver retry delay; coercing to zero\" value=%d", config.ResolverRetryDelayMS)
		config.ResolverRetryDelayMS = 0
	}

	return
}
