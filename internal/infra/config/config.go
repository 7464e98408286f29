package config

import (
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"rentalcore/internal/domain/fees"
	"rentalcore/internal/pkg/errs"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"

	BrokerLocal = "local"
	BrokerKafka = "kafka"
)

var ErrInvalidConfig = errs.New("config: invalid configuration")

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Storage  StorageConfig
	Broker   BrokerConfig
	Outbox   OutboxConfig
	S3       S3Config
	Auth     AuthConfig
	CORS     CORSConfig
	Upstream UpstreamConfig
	Cache    CacheConfig
	Expiry   ExpiryConfig
}

type StorageConfig struct {
	Mode           string        `envconfig:"STORAGE_MODE" default:"memory"`
	MongoURI       string        `envconfig:"MONGO_URI"`
	MongoDB        string        `envconfig:"MONGO_DB" default:"rentals"`
	IdempotencyTTL time.Duration `envconfig:"IDEMP_TTL" default:"168h"`
	InboxRetention time.Duration `envconfig:"INBOX_RETENTION" default:"720h"`
}

type BrokerConfig struct {
	Mode         string   `envconfig:"BROKER_MODE" default:"local"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	TopicPrefix  string   `envconfig:"KAFKA_TOPIC_PREFIX"`
	GroupID      string   `envconfig:"KAFKA_GROUP_ID" default:"rentalcore-reconciler"`
}

type OutboxConfig struct {
	PollInterval time.Duration   `envconfig:"OUTBOX_POLL_INTERVAL" default:"500ms"`
	RetryBackoff []time.Duration `envconfig:"RETRY_BACKOFF" default:"1s,5s,30s"`
	Source       string          `envconfig:"EVENT_SOURCE" default:"app://rentalcore"`
}

type S3Config struct {
	Endpoint       string `envconfig:"S3_ENDPOINT"`
	PublicEndpoint string `envconfig:"S3_PUBLIC_ENDPOINT"`
	AccessKey      string `envconfig:"S3_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"S3_SECRET_KEY" default:"minioadmin"`
	Bucket         string `envconfig:"S3_BUCKET" default:"rentalcore-uploads"`
	UseSSL         bool   `envconfig:"S3_USE_SSL" default:"false"`
}

type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET"`
	Issuer    string `envconfig:"JWT_ISSUER" default:"rentalcore"`
}

type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000"`
}

// UpstreamConfig points at the marketplace collaborators. An empty CatalogURL
// serves the catalogue from CatalogFixtures; an empty FeeScheduleURL reads the
// static schedule from FeeScheduleFile.
type UpstreamConfig struct {
	CatalogURL      string          `envconfig:"CATALOG_URL"`
	CatalogFixtures string          `envconfig:"CATALOG_FIXTURES" default:"data/catalog.json"`
	FeeScheduleURL  string          `envconfig:"FEE_SCHEDULE_URL"`
	FeeScheduleFile string          `envconfig:"FEE_SCHEDULE_FILE" default:"data/fee_schedule.yaml"`
	SlipOCRURL      string          `envconfig:"SLIP_OCR_URL"`
	Timeout         time.Duration   `envconfig:"UPSTREAM_TIMEOUT" default:"5s"`
	RetryBackoff    []time.Duration `envconfig:"UPSTREAM_RETRY_BACKOFF" default:"200ms,1s"`
}

type CacheConfig struct {
	CalendarTTL    time.Duration `envconfig:"CALENDAR_CACHE_TTL" default:"10m"`
	CalendarSize   int64         `envconfig:"CALENDAR_CACHE_SIZE" default:"1000"`
	FeeScheduleTTL time.Duration `envconfig:"FEE_SCHEDULE_TTL" default:"5m"`
}

type ExpiryConfig struct {
	Spec  string `envconfig:"EXPIRY_CRON" default:"0 */15 * * * *"`
	Batch int    `envconfig:"EXPIRY_BATCH" default:"100"`
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errs.Wrap(err, "config: process env")
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Mode = strings.ToLower(strings.TrimSpace(c.Storage.Mode))
	c.Broker.Mode = strings.ToLower(strings.TrimSpace(c.Broker.Mode))
	if c.S3.PublicEndpoint == "" {
		c.S3.PublicEndpoint = c.S3.Endpoint
	}
	brokers := c.Broker.KafkaBrokers[:0]
	for _, b := range c.Broker.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Broker.KafkaBrokers = brokers
}

// Validate requires Mongo and Kafka settings only when their modes are on.
func (c Config) Validate() error {
	switch c.Storage.Mode {
	case StorageMemory:
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			return errs.Wrap(ErrInvalidConfig, "MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return errs.Wrapf(ErrInvalidConfig, "unknown STORAGE_MODE %q", c.Storage.Mode)
	}
	switch c.Broker.Mode {
	case BrokerLocal:
	case BrokerKafka:
		if len(c.Broker.KafkaBrokers) == 0 {
			return errs.Wrap(ErrInvalidConfig, "KAFKA_BROKERS is required when BROKER_MODE=kafka")
		}
	default:
		return errs.Wrapf(ErrInvalidConfig, "unknown BROKER_MODE %q", c.Broker.Mode)
	}
	if c.Expiry.Batch <= 0 {
		return errs.Wrap(ErrInvalidConfig, "EXPIRY_BATCH must be positive")
	}
	if c.Upstream.Timeout <= 0 {
		return errs.Wrap(ErrInvalidConfig, "UPSTREAM_TIMEOUT must be positive")
	}
	return nil
}

// Dev reports whether the service runs on a developer machine.
func (c Config) Dev() bool {
	return c.Env == "dev" || c.Env == "local"
}

// LoadFeeSchedule reads a static fee schedule from a YAML file.
func LoadFeeSchedule(path string) (fees.Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fees.Schedule{}, errs.Wrapf(err, "config: read fee schedule %s", path)
	}
	var schedule fees.Schedule
	if err := yaml.Unmarshal(raw, &schedule); err != nil {
		return fees.Schedule{}, errs.Wrapf(err, "config: parse fee schedule %s", path)
	}
	if err := schedule.Validate(); err != nil {
		return fees.Schedule{}, err
	}
	return schedule, nil
}
