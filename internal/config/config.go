// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Config represents the application configuration
type Config struct {
	APIName              string `env:"IM_API_APP_NAME" envDefault:"Industry Map API"`
	APIVersion           string `env:"IM_API_APP_VERSION" envDefault:"1.0.0"`
	ServerPort           string `env:"IM_API_SERVER_PORT" envDefault:"3017"`
	ServerLogLevel       string `env:"IM_API_SERVER_LOG_LEVEL" envDefault:"info"`
	PostgresDsn          string `env:"IM_API_PG_DSN"`
	PostgresSchema       string `env:"IM_API_PG_SCHEMA" envDefault:"api"`
	PostgresLogLevel     string `env:"IM_API_PG_LOG_LEVEL" envDefault:"warn"`
	RedisHost            string `env:"IM_API_REDIS_HOST" envDefault:"localhost"`
	RedisPort            string `env:"IM_API_REDIS_PORT" envDefault:"6379"`
	RedisPassword        string `env:"IM_API_REDIS_PASSWORD" envDefault:""`
	TaxonomySourceURL    string `env:"IM_API_TAXONOMY_SOURCE_URL"`
	SecuritySourceURL    string `env:"IM_API_SECURITY_SOURCE_URL"`
	SwsBaseURL           string `env:"IM_API_SWS_BASE_URL"`
	EastmoneyBaseURL     string `env:"IM_API_EASTMONEY_BASE_URL"`
	ReconcileMaxRetries  int    `env:"IM_API_RECONCILE_MAX_RETRIES" envDefault:"3"`
	ReconcileBaseDelayMs int    `env:"IM_API_RECONCILE_BASE_DELAY_MS" envDefault:"500"`
	ReconcileMaxDelayMs  int    `env:"IM_API_RECONCILE_MAX_DELAY_MS" envDefault:"8000"`
	ReconcileTimeoutMin  int    `env:"IM_API_RECONCILE_TIMEOUT_MIN" envDefault:"30"`
}

var (
	SingleLine string = "--------------------------------------------------"
)

var (
	instance *Config
	once     sync.Once
	err      error
)

// Get returns the application configuration
func Get() (*Config, error) {
	once.Do(func() {
		instance, err = loadConfig()
	})
	return instance, err
}

// loadConfig loads configuration from environment variables
func loadConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() error {
	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(c).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		envTag := field.Tag.Get("env")
		if envTag == "" {
			return fmt.Errorf("missing env tag for field %s", field.Name)
		}

		value := os.Getenv(envTag)
		if value == "" {
			defaultValue, hasDefault := field.Tag.Lookup("envDefault")
			if !hasDefault {
				return fmt.Errorf("env variable %s is required but not set", envTag)
			}
			value = defaultValue
		}

		switch field.Type.Kind() {
		case reflect.String:
			v.Field(i).SetString(value)
		case reflect.Int:
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("env variable %s must be an integer, got %q", envTag, value)
			}
			v.Field(i).SetInt(int64(n))
		default:
			return fmt.Errorf("unsupported config field type for %s", field.Name)
		}
	}

	return nil
}

// String returns the configuration as a string
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n--------------------------------------\n")
	sb.WriteString("Configuration:\n")
	sb.WriteString("--------------------------------------\n")

	t := reflect.TypeOf(*c)
	v := reflect.ValueOf(*c)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		var value string
		switch field.Type.Kind() {
		case reflect.Int:
			value = strconv.FormatInt(v.Field(i).Int(), 10)
		default:
			value = v.Field(i).String()
		}

		// Mask sensitive fields
		value = maskSensitiveField(field.Name, value)
		sb.WriteString(fmt.Sprintf("  %s:  %s\n", field.Name, value))
	}

	sb.WriteString("--------------------------------------\n")

	return sb.String()
}

func maskSensitiveField(fieldName, value string) string {
	sensitiveFields := []string{"token", "dsn", "secret", "password"}

	fieldNameLower := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(fieldNameLower, sensitive) {
			return maskValue(value)
		}
	}

	return value
}

func maskValue(value string) string {
	if len(value) <= 3 {
		return strings.Repeat("*", 7)
	}
	return value[:3] + strings.Repeat("*", 7)
}
