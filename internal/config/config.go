package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup from the
// environment (optionally seeded from a .env file in development).
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	JWT           JWTConfig
	Session       SessionConfig
	Security      SecurityConfig
	Bucketing     BucketingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type KafkaConfig struct {
	Enabled            bool
	Brokers            []string
	SecurityEventTopic string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Database string
}

type ElasticsearchConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Index    string
}

type KMSConfig struct {
	Enabled bool
	Region  string
	KeyID   string
}

// JWTConfig carries the signing key set. Keys maps key-id to secret material;
// ActiveKeyID names the key used for new tokens. When KMS is enabled each
// value is base64 ciphertext decrypted at startup.
type JWTConfig struct {
	Keys        map[string]string
	ActiveKeyID string
	TTL         time.Duration
}

type SessionConfig struct {
	CookieName   string
	TTL          time.Duration
	CookieSecure bool
}

type SecurityConfig struct {
	InjectionFilterEnabled bool
	SweepInterval          time.Duration
}

type BucketingConfig struct {
	RevocationBuckets int
	EventBuckets      int
}

// LoadConfig reads configuration from the environment. Missing values fall
// back to development defaults; only the JWT key set is mandatory.
func LoadConfig() (*Config, error) {
	// Best effort; production injects real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       getEnv("SERVER_DOMAIN", ""),
			Email:        getEnv("SERVER_ACME_EMAIL", ""),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/lib/review-auth/autocert"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    getEnvList("SCYLLA_NODES", "localhost:9042"),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "review_auth"),
			Username: getEnv("SCYLLA_USERNAME", ""),
			Password: getEnv("SCYLLA_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Enabled:            getEnvBool("KAFKA_ENABLED", false),
			Brokers:            getEnvList("KAFKA_BROKERS", "localhost:9092"),
			SecurityEventTopic: getEnv("KAFKA_SECURITY_EVENT_TOPIC", "security-events"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:      getEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Database: getEnv("CLICKHOUSE_DATABASE", "review_auth"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:  getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:      getEnv("ELASTICSEARCH_URL", "https://localhost:9200"),
			Username: getEnv("ELASTICSEARCH_USERNAME", ""),
			Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:    getEnv("ELASTICSEARCH_SECURITY_INDEX", "security-events"),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			Region:  getEnv("KMS_REGION", "us-east-1"),
			KeyID:   getEnv("KMS_KEY_ID", ""),
		},
		JWT: JWTConfig{
			Keys:        parseKeySet(getEnv("JWT_KEYS", "")),
			ActiveKeyID: getEnv("JWT_ACTIVE_KEY_ID", ""),
			TTL:         getEnvDuration("JWT_TTL", time.Hour),
		},
		Session: SessionConfig{
			CookieName:   getEnv("SESSION_COOKIE_NAME", "REVIEW_SESSION"),
			TTL:          getEnvDuration("SESSION_TTL", 12*time.Hour),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Security: SecurityConfig{
			InjectionFilterEnabled: getEnvBool("SECURITY_INJECTION_FILTER", true),
			SweepInterval:          getEnvDuration("REVOCATION_SWEEP_INTERVAL", time.Hour),
		},
		Bucketing: BucketingConfig{
			RevocationBuckets: getEnvInt("REVOCATION_BUCKETS", 16),
			EventBuckets:      getEnvInt("EVENT_BUCKETS", 32),
		},
	}

	if len(cfg.JWT.Keys) == 0 {
		return nil, fmt.Errorf("JWT_KEYS must contain at least one kid:secret pair")
	}
	if cfg.JWT.ActiveKeyID == "" {
		// Single-key deployments may omit the active kid.
		if len(cfg.JWT.Keys) != 1 {
			return nil, fmt.Errorf("JWT_ACTIVE_KEY_ID is required when multiple keys are configured")
		}
		for kid := range cfg.JWT.Keys {
			cfg.JWT.ActiveKeyID = kid
		}
	}
	if _, ok := cfg.JWT.Keys[cfg.JWT.ActiveKeyID]; !ok {
		return nil, fmt.Errorf("JWT_ACTIVE_KEY_ID %q is not present in JWT_KEYS", cfg.JWT.ActiveKeyID)
	}
	if cfg.JWT.TTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// parseKeySet parses "kid1:secret1,kid2:secret2" into a key map.
func parseKeySet(raw string) map[string]string {
	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, secret, ok := strings.Cut(pair, ":")
		if !ok || kid == "" || secret == "" {
			continue
		}
		keys[kid] = secret
	}
	return keys
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
