package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the registry service
type Config struct {
	App      AppConfig
	Otel     OtelConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Postgres PostgresConfig
}

// AppConfig holds HTTP server and registry settings
type AppConfig struct {
	Name                string
	Version             string
	Port                string
	SeedFile            string
	ShutdownTimeoutSecs int
}

// OtelConfig holds the configuration for OTel SDK
type OtelConfig struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	ServiceNamespace string
	Protocol         string
	Endpoint         string
	Insecure         bool
	Username         string
	Password         string
	// LogVerbosity controls the verbosity of logs (0 = errors, 1 = warnings, 2 = everything)
	LogVerbosity int
	TracerName   string
	MeterName    string
	// LogBodies controls whether request/response bodies are logged
	LogBodies          bool
	LogOutput          string
	LogFormat          string
	MaxQueueSize       int
	BatchTimeoutSecs   int
	ExportTimeoutSecs  int
	ExportIntervalSecs int
}

// RedisConfig configures the user snapshot cache
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  int // seconds
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	PoolSize     int
	MinIdleConns int
	MaxConnAge   int // minutes
	PoolTimeout  int // seconds
	IdleTimeout  int // minutes
	CacheTTLSecs int
}

// KafkaConfig configures the user event stream
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	GroupID      string
	ConnIdleTime int // seconds
	DialTimeout  int // seconds
}

// PostgresConfig configures the audit trail database
type PostgresConfig struct {
	Enabled         bool
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "user-registry")
	v.SetDefault("APP_VERSION", "v0.1.0")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("USERS_SEED_FILE", "")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECS", 5)

	v.SetDefault("OTEL_ENABLED", true)
	v.SetDefault("OTEL_SERVICE_NAME", "user-registry")
	v.SetDefault("OTEL_SERVICE_VERSION", "v0.1.0")
	v.SetDefault("OTEL_SERVICE_NAMESPACE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_USERNAME", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_PASSWORD", "")
	v.SetDefault("OTEL_LOG_VERBOSITY", 1)
	v.SetDefault("OTEL_TRACER_NAME", "user-registry-tracer")
	v.SetDefault("OTEL_METER_NAME", "user-registry-meter")
	v.SetDefault("DISABLE_BODY_LOGGING", false)
	v.SetDefault("LOG_OUTPUT", "stdout")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("OTEL_MAX_QUEUE_SIZE", 2048)
	v.SetDefault("OTEL_BATCH_TIMEOUT_SECS", 5)
	v.SetDefault("OTEL_EXPORT_TIMEOUT_SECS", 30)
	v.SetDefault("OTEL_EXPORT_INTERVAL_SECS", 1)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5)
	v.SetDefault("REDIS_READ_TIMEOUT", 3)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_MAX_CONN_AGE", 30)
	v.SetDefault("REDIS_POOL_TIMEOUT", 4)
	v.SetDefault("REDIS_IDLE_TIMEOUT", 5)
	v.SetDefault("REDIS_CACHE_TTL_SECS", 60)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "user-events")
	v.SetDefault("KAFKA_GROUP_ID", "user-registry-audit")
	v.SetDefault("KAFKA_CONN_IDLE_TIME", 30)
	v.SetDefault("KAFKA_DIAL_TIMEOUT", 10)

	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 10)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME", 30)
	v.SetDefault("POSTGRES_CONN_MAX_IDLE_TIME", 5)
}

// LoadConfig reads configuration from the given env file (".env" in the
// working directory when path is empty), then environment variables, then
// defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	if path == "" {
		path = filepath.Join(".", ".env")
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	brokers := splitList(v.GetString("KAFKA_BROKERS"))

	return Config{
		App: AppConfig{
			Name:                v.GetString("APP_NAME"),
			Version:             v.GetString("APP_VERSION"),
			Port:                v.GetString("APP_PORT"),
			SeedFile:            v.GetString("USERS_SEED_FILE"),
			ShutdownTimeoutSecs: v.GetInt("SHUTDOWN_TIMEOUT_SECS"),
		},
		Otel: OtelConfig{
			Enabled:            v.GetBool("OTEL_ENABLED"),
			ServiceName:        v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion:     v.GetString("OTEL_SERVICE_VERSION"),
			ServiceNamespace:   v.GetString("OTEL_SERVICE_NAMESPACE"),
			Protocol:           v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL"),
			Endpoint:           v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:           v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			Username:           v.GetString("OTEL_EXPORTER_OTLP_USERNAME"),
			Password:           v.GetString("OTEL_EXPORTER_OTLP_PASSWORD"),
			LogVerbosity:       v.GetInt("OTEL_LOG_VERBOSITY"),
			TracerName:         v.GetString("OTEL_TRACER_NAME"),
			MeterName:          v.GetString("OTEL_METER_NAME"),
			LogBodies:          !v.GetBool("DISABLE_BODY_LOGGING"),
			LogOutput:          v.GetString("LOG_OUTPUT"),
			LogFormat:          v.GetString("LOG_FORMAT"),
			MaxQueueSize:       v.GetInt("OTEL_MAX_QUEUE_SIZE"),
			BatchTimeoutSecs:   v.GetInt("OTEL_BATCH_TIMEOUT_SECS"),
			ExportTimeoutSecs:  v.GetInt("OTEL_EXPORT_TIMEOUT_SECS"),
			ExportIntervalSecs: v.GetInt("OTEL_EXPORT_INTERVAL_SECS"),
		},
		Redis: RedisConfig{
			Enabled:      v.GetString("REDIS_ADDR") != "",
			Addr:         v.GetString("REDIS_ADDR"),
			Password:     v.GetString("REDIS_PASSWORD"),
			DB:           v.GetInt("REDIS_DB"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  v.GetInt("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetInt("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetInt("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			MaxConnAge:   v.GetInt("REDIS_MAX_CONN_AGE"),
			PoolTimeout:  v.GetInt("REDIS_POOL_TIMEOUT"),
			IdleTimeout:  v.GetInt("REDIS_IDLE_TIMEOUT"),
			CacheTTLSecs: v.GetInt("REDIS_CACHE_TTL_SECS"),
		},
		Kafka: KafkaConfig{
			Enabled:      len(brokers) > 0,
			Brokers:      brokers,
			Topic:        v.GetString("KAFKA_TOPIC"),
			GroupID:      v.GetString("KAFKA_GROUP_ID"),
			ConnIdleTime: v.GetInt("KAFKA_CONN_IDLE_TIME"),
			DialTimeout:  v.GetInt("KAFKA_DIAL_TIMEOUT"),
		},
		Postgres: PostgresConfig{
			Enabled:         v.GetString("POSTGRES_DSN") != "",
			DSN:             v.GetString("POSTGRES_DSN"),
			MaxOpenConns:    v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetInt("POSTGRES_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetInt("POSTGRES_CONN_MAX_IDLE_TIME"),
		},
	}
}

// splitList parses a comma separated list, dropping blanks
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
