package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BackendConfig describes how to reach the integration backend that
// actually talks to ERPNext and WooCommerce.
type BackendConfig struct {
	BaseURL   string `yaml:"baseURL"`
	AdminUser string `yaml:"adminUser"`
	AdminPass string `yaml:"adminPass"`

	// Per-call timeouts. Sync triggers can legitimately run for a very
	// long time on large catalogs, previews less so.
	SyncTimeoutMs    int `yaml:"syncTimeoutMs"`
	PreviewTimeoutMs int `yaml:"previewTimeoutMs"`
	RequestTimeoutMs int `yaml:"requestTimeoutMs"`

	// Route prefixes probed by the endpoint resolver, in order. Deployment
	// variants mount the backend API under different prefixes.
	RoutePrefixes []string `yaml:"routePrefixes"`
}

// PollerConfig controls the status-poll backoff ramp for async jobs.
type PollerConfig struct {
	InitialIntervalMs int `yaml:"initialIntervalMs"`
	IntervalStepMs    int `yaml:"intervalStepMs"`
	MaxIntervalMs     int `yaml:"maxIntervalMs"`
	// MaxDurationMs bounds a whole polling session. Zero means unbounded,
	// which matches the backend contract for long-running full syncs.
	MaxDurationMs int `yaml:"maxDurationMs"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type WorkerConfig struct {
	MaxConcurrentRuns int `yaml:"maxConcurrentRuns"`
	PollIntervalMs    int `yaml:"pollIntervalMs"`
}

type PreviewCacheConfig struct {
	TTLMinutes  int  `yaml:"ttlMinutes"`
	WarmOnStart bool `yaml:"warmOnStart"`
}

// RetentionConfig controls TTL-like deletion of old sync runs and audit
// events so that the database does not grow without bound over time.
type RetentionConfig struct {
	Enabled                bool `yaml:"enabled"`
	CleanupIntervalMinutes int  `yaml:"cleanupIntervalMinutes"`
	RunDays                int  `yaml:"runDays"`
	AuditDays              int  `yaml:"auditDays"`
}

type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Backend   BackendConfig      `yaml:"backend"`
	Poller    PollerConfig       `yaml:"poller"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     RedisConfig        `yaml:"redis"`
	Auth      AuthConfig         `yaml:"auth"`
	Worker    WorkerConfig       `yaml:"worker"`
	Preview   PreviewCacheConfig `yaml:"preview"`
	Retention RetentionConfig    `yaml:"retention"`
}

func Load(path string) *Config {
	// Secrets usually live in a .env next to the compose file; the yaml
	// refers to them via ${VAR}. Container env still wins over the file.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	expanded := os.Expand(string(raw), os.Getenv)

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}
