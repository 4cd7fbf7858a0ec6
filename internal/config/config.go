package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Contact   ContactConfig   `mapstructure:"contact"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout  int      `mapstructure:"idle_timeout_seconds"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// DatabaseConfig selects the bun dialect. Driver "sqlite" uses Path,
// driver "postgres" uses the host/port/credentials fields.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Path            string `mapstructure:"path"`
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

type ContactConfig struct {
	StrictPhone  bool   `mapstructure:"strict_phone"`
	SanitizeHTML bool   `mapstructure:"sanitize_html"`
	PhonePolicy  string `mapstructure:"phone_policy"` // plaintext | hash
	PhoneHashKey string `mapstructure:"phone_hash_key"`
}

type RateLimitConfig struct {
	Enabled        bool                 `mapstructure:"enabled"`
	TrustXFF       bool                 `mapstructure:"trust_xff"`
	CreatePerMin   int                  `mapstructure:"create_per_minute"`
	ReadPerMin     int                  `mapstructure:"read_per_minute"`
	GlobalPerHour  int                  `mapstructure:"global_per_hour"`
	GlobalPerDay   int                  `mapstructure:"global_per_day"`
	IdleTTLSeconds int                  `mapstructure:"idle_ttl_seconds"`
	Stats          RateLimitStatsConfig `mapstructure:"stats"`
}

type RateLimitStatsConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Prefix        string `mapstructure:"prefix"`
}

// EventsConfig picks the publisher for contact-created events: "", "nats" or "kafka".
type EventsConfig struct {
	Driver string      `mapstructure:"driver"`
	NATS   NATSConfig  `mapstructure:"nats"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "contacts.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "contacts")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("contact.strict_phone", true)
	v.SetDefault("contact.sanitize_html", false)
	v.SetDefault("contact.phone_policy", "plaintext")
	v.SetDefault("contact.phone_hash_key", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.trust_xff", false)
	v.SetDefault("rate_limit.create_per_minute", 5)
	v.SetDefault("rate_limit.read_per_minute", 10)
	v.SetDefault("rate_limit.global_per_hour", 50)
	v.SetDefault("rate_limit.global_per_day", 200)
	v.SetDefault("rate_limit.idle_ttl_seconds", 86400)
	v.SetDefault("rate_limit.stats.redis_addr", "")
	v.SetDefault("rate_limit.stats.redis_password", "")
	v.SetDefault("rate_limit.stats.redis_db", 0)
	v.SetDefault("rate_limit.stats.prefix", "contact:ratelimit")

	v.SetDefault("events.driver", "")
	v.SetDefault("events.nats.url", "")
	v.SetDefault("events.nats.subject", "contacts.created")
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "contacts.created")

	v.SetDefault("telemetry.otlp_endpoint", "")
}

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")   // Kubernetes mount
	v.AddConfigPath("./configs")  // repo root
	v.AddConfigPath("../configs") // IDE from cmd/

	// Config file is optional, ENV variables fill the gaps
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Env = env

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Contact.PhonePolicy {
	case "plaintext":
	case "hash":
		if c.Contact.PhoneHashKey == "" {
			return fmt.Errorf("contact.phone_hash_key is required when phone_policy is hash")
		}
	default:
		return fmt.Errorf("unsupported phone policy %q", c.Contact.PhonePolicy)
	}

	switch c.Events.Driver {
	case "", "none", "nats", "kafka":
	default:
		return fmt.Errorf("unsupported events driver %q", c.Events.Driver)
	}
	return nil
}
