// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store, key service and directory selectors.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"

	KeyServiceKMS   = "kms"
	KeyServiceLocal = "local"

	DirectoryEC2    = "ec2"
	DirectoryStatic = "static"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCHealthAddr is the address of the gRPC health service; empty disables it.
	GRPCHealthAddr string `mapstructure:"GRPC_HEALTH_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// SessionLifetime is how long an issued session stays valid: seconds ("3600") or a duration ("1h").
	SessionLifetime string `mapstructure:"SESSION_LIFETIME"`
	// SessionRetention is how long stores that support native expiry keep a record past expire_at.
	SessionRetention string `mapstructure:"SESSION_RETENTION"`
	// RequestTimeout bounds each HTTP request including store, key service and directory calls.
	RequestTimeout string `mapstructure:"REQUEST_TIMEOUT"`

	// SessionStore selects the session record backend: postgres, redis or memory.
	SessionStore string `mapstructure:"SESSION_STORE"`
	// DatabaseURL is the Postgres DSN; required when SessionStore is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is host:port of Redis; required when SessionStore is redis.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// KeyService selects the credential key service: kms or local.
	KeyService string `mapstructure:"KEY_SERVICE"`
	// KMSKeyID is the KMS key id, ARN or alias used to encrypt credentials.
	KMSKeyID string `mapstructure:"KMS_KEY_ID"`
	// LocalMasterKey is a 32-byte key (hex, base64 or file path) for the local envelope key service.
	LocalMasterKey string `mapstructure:"LOCAL_MASTER_KEY"`

	// BackendDirectory selects where backends are looked up: ec2 or static.
	BackendDirectory string `mapstructure:"BACKEND_DIRECTORY"`
	// BackendDirectoryFile is the YAML/JSON file listing backends for the static directory.
	BackendDirectoryFile string `mapstructure:"BACKEND_DIRECTORY_FILE"`
	// AWSRegion overrides the region from the default AWS credential chain.
	AWSRegion string `mapstructure:"AWS_REGION"`

	// EligibilityPolicyFile optionally replaces the built-in Rego eligibility policy.
	EligibilityPolicyFile string `mapstructure:"ELIGIBILITY_POLICY_FILE"`
	TargetTypeTag         string `mapstructure:"TARGET_TYPE_TAG"`
	TargetTypeValue       string `mapstructure:"TARGET_TYPE_VALUE"`
	TargetUserTag         string `mapstructure:"TARGET_USER_TAG"`

	// GatewayTargetPort is the backend port returned by the resolver for both transports.
	GatewayTargetPort int    `mapstructure:"GATEWAY_TARGET_PORT"`
	DCVSessionName    string `mapstructure:"DCV_SESSION_NAME"`
	DCVWebURLPath     string `mapstructure:"DCV_WEB_URL_PATH"`

	// TrustedProxies is a comma-separated list of proxy CIDRs/IPs whose forwarding headers are honored.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// OTLPEndpoint enables OTLP export of traces, metrics and logs when set.
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka brokers; empty disables request telemetry.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_HEALTH_ADDR", ":8081")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SESSION_LIFETIME", "3600")
	v.SetDefault("SESSION_RETENTION", "24h")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("SESSION_STORE", StorePostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KEY_SERVICE", KeyServiceKMS)
	v.SetDefault("KMS_KEY_ID", "")
	v.SetDefault("LOCAL_MASTER_KEY", "")
	v.SetDefault("BACKEND_DIRECTORY", DirectoryEC2)
	v.SetDefault("BACKEND_DIRECTORY_FILE", "")
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("ELIGIBILITY_POLICY_FILE", "")
	v.SetDefault("TARGET_TYPE_TAG", "dcv:type")
	v.SetDefault("TARGET_TYPE_VALUE", "server")
	v.SetDefault("TARGET_USER_TAG", "dcv:user")
	v.SetDefault("GATEWAY_TARGET_PORT", 8443)
	v.SetDefault("DCV_SESSION_NAME", "console")
	v.SetDefault("DCV_WEB_URL_PATH", "/")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "dcv-session-gateway")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "dcv-gateway-telemetry")
}

// Validate checks selectors and the references each selection requires.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if d, err := parseDuration(c.SessionLifetime); err != nil || d <= 0 {
		return fmt.Errorf("config: SESSION_LIFETIME must be a positive duration, got %q", c.SessionLifetime)
	}
	if c.GatewayTargetPort < 1 || c.GatewayTargetPort > 65535 {
		return errors.New("config: GATEWAY_TARGET_PORT must be between 1 and 65535")
	}

	switch c.SessionStore {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when SESSION_STORE=postgres")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR must be set when SESSION_STORE=redis")
		}
	case StoreMemory:
		if c.Env == "production" {
			return errors.New("config: SESSION_STORE=memory must not be used when APP_ENV=production")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_STORE %q", c.SessionStore)
	}

	switch c.KeyService {
	case KeyServiceKMS:
		if c.KMSKeyID == "" {
			return errors.New("config: KMS_KEY_ID must be set when KEY_SERVICE=kms")
		}
	case KeyServiceLocal:
		if c.LocalMasterKey == "" {
			return errors.New("config: LOCAL_MASTER_KEY must be set when KEY_SERVICE=local")
		}
		if c.Env == "production" {
			return errors.New("config: KEY_SERVICE=local must not be used when APP_ENV=production")
		}
	default:
		return fmt.Errorf("config: unknown KEY_SERVICE %q", c.KeyService)
	}

	switch c.BackendDirectory {
	case DirectoryEC2:
	case DirectoryStatic:
		if c.BackendDirectoryFile == "" {
			return errors.New("config: BACKEND_DIRECTORY_FILE must be set when BACKEND_DIRECTORY=static")
		}
	default:
		return fmt.Errorf("config: unknown BACKEND_DIRECTORY %q", c.BackendDirectory)
	}
	return nil
}

// Lifetime parses SessionLifetime. Returns 1h if unset or invalid.
func (c *Config) Lifetime() time.Duration {
	d, err := parseDuration(c.SessionLifetime)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// Retention parses SessionRetention. Returns 24h if unset or invalid.
func (c *Config) Retention() time.Duration {
	d, err := parseDuration(c.SessionRetention)
	if err != nil || d < 0 {
		return 24 * time.Hour
	}
	return d
}

// Timeout parses RequestTimeout. Returns 10s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := parseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// parseDuration accepts a bare integer as seconds, otherwise a Go duration string.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

// TrustedProxiesList returns the trusted proxy list; nil means no proxy headers are honored.
func (c *Config) TrustedProxiesList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
