package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	Port          string `mapstructure:"PORT"`
	GinMode       string `mapstructure:"GIN_MODE"`
	LogFormat     string `mapstructure:"LOG_FORMAT"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	UploadDir     string `mapstructure:"UPLOAD_DIR"`

	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisHost       string `mapstructure:"REDIS_HOST"`
	RedisPort       string `mapstructure:"REDIS_PORT"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	CacheEnabled    bool   `mapstructure:"CACHE_ENABLED"`
	CacheTTLSeconds int    `mapstructure:"CACHE_TTL_SECONDS"`

	JWTSecret             string `mapstructure:"JWT_SECRET"`
	SessionTimeoutMinutes int    `mapstructure:"SESSION_TIMEOUT_MINUTES"`
	SessionWarningMinutes int    `mapstructure:"SESSION_WARNING_MINUTES"`
	SessionRememberDays   int    `mapstructure:"SESSION_REMEMBER_DAYS"`

	DeliveryBaseLat float64 `mapstructure:"DELIVERY_BASE_LAT"`
	DeliveryBaseLng float64 `mapstructure:"DELIVERY_BASE_LNG"`

	KafkaEnabled bool   `mapstructure:"KAFKA_ENABLED"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
}

var defaults = map[string]interface{}{
	"PORT":            "8080",
	"GIN_MODE":        "debug",
	"LOG_FORMAT":      "text",
	"LOG_LEVEL":       "info",
	"PUBLIC_BASE_URL": "http://127.0.0.1:8080",
	"UPLOAD_DIR":      "uploads",

	"DB_HOST":                      "localhost",
	"DB_PORT":                      "5432",
	"DB_USER":                      "postgres",
	"DB_PASSWORD":                  "",
	"DB_NAME":                      "dbflash",
	"DB_MAX_OPEN_CONNS":            100,
	"DB_MAX_IDLE_CONNS":            25,
	"DB_CONN_MAX_LIFETIME_MINUTES": 60,

	"REDIS_HOST":        "localhost",
	"REDIS_PORT":        "6379",
	"REDIS_PASSWORD":    "",
	"CACHE_ENABLED":     false,
	"CACHE_TTL_SECONDS": 86400,

	"JWT_SECRET":              "",
	"SESSION_TIMEOUT_MINUTES": 30,
	"SESSION_WARNING_MINUTES": 5,
	"SESSION_REMEMBER_DAYS":   30,

	"DELIVERY_BASE_LAT": -4.2981,
	"DELIVERY_BASE_LNG": -74.7846,

	"KAFKA_ENABLED": false,
	"KAFKA_BROKERS": "localhost:9092",
	"KAFKA_TOPIC":   "domiflash.order.status",
}

// Load reads an optional .env file and then the process environment.
// Environment variables always win over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(viper.New())
}

// FromViper applies defaults and environment binding to v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		// AutomaticEnv only resolves keys viper already knows about.
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("config: SESSION_TIMEOUT_MINUTES must be positive, got %d", c.SessionTimeoutMinutes)
	}
	if c.SessionWarningMinutes < 0 || c.SessionWarningMinutes >= c.SessionTimeoutMinutes {
		return fmt.Errorf("config: SESSION_WARNING_MINUTES must be in [0, %d), got %d",
			c.SessionTimeoutMinutes, c.SessionWarningMinutes)
	}
	return nil
}

// DSN builds the postgres connection string in the key=value form gorm expects.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

func (c *Config) SessionWarning() time.Duration {
	return time.Duration(c.SessionWarningMinutes) * time.Minute
}

func (c *Config) RememberMeLifetime() time.Duration {
	return time.Duration(c.SessionRememberDays) * 24 * time.Hour
}

func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeMinutes) * time.Minute
}
