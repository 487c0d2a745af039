package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Service    Service    `envconfig:"SERVICE"`
	Valkey     Valkey     `envconfig:"VALKEY"`
	SQS        SQS        `envconfig:"SQS"`
	ClickHouse ClickHouse `envconfig:"CLICKHOUSE"`
	Postgres   Postgres   `envconfig:"POSTGRES"`
	Consumer   Consumer   `envconfig:"CONSUMER"`
	Auth       Auth       `envconfig:"AUTH"`
	RateLimit  RateLimit  `envconfig:"RATE_LIMIT"`
	Stream     Stream     `envconfig:"STREAM"`
	Webhook    Webhook    `envconfig:"WEBHOOK"`
	Push       Push       `envconfig:"PUSH"`
	Encryption Encryption `envconfig:"ENCRYPTION"`
	Retention  Retention  `envconfig:"RETENTION"`
}

type Service struct {
	Environment string `envconfig:"ENVIRONMENT" required:"true"`
	APIPort     string `envconfig:"API_PORT" default:"8080"`
	Host        string `envconfig:"HOST" default:"localhost:8080"`
	AppURL      string `envconfig:"APP_URL" default:"http://localhost:5173"`
	// ShutdownTimeoutSec bounds how long pending background work is awaited on exit.
	ShutdownTimeoutSec int `envconfig:"SHUTDOWN_TIMEOUT_SEC" default:"15"`
}

type Valkey struct {
	Host               string `envconfig:"HOST" required:"true"`
	Port               string `envconfig:"PORT" required:"true"`
	Password           string `envconfig:"PASSWORD" default:""`
	DB                 int    `envconfig:"DB" default:"0"`
	IdempotencyEnabled bool   `envconfig:"IDEMPOTENCY_ENABLED" default:"true"`
}

type SQS struct {
	Endpoint string `envconfig:"ENDPOINT"`
	QueueURL string `envconfig:"QUEUE_URL" required:"true"`
	Region   string `envconfig:"REGION" required:"true"`
}

type ClickHouse struct {
	Host            string `envconfig:"HOST" required:"true"`
	Port            string `envconfig:"PORT" required:"true"`
	Database        string `envconfig:"DB" required:"true"`
	User            string `envconfig:"USER" default:""`
	Password        string `envconfig:"PASSWORD" default:""`
	UseTLS          bool   `envconfig:"USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CONN_MAX_LIFETIME_SEC" default:"3600"`
}

type Postgres struct {
	URL      string `envconfig:"URL" required:"true"`
	MaxConns int32  `envconfig:"MAX_CONNS" default:"10"`
}

type Consumer struct {
	BatchSizeMax    int    `envconfig:"BATCH_SIZE_MAX" default:"10"`
	BatchTimeoutSec int    `envconfig:"BATCH_TIMEOUT_SEC" default:"2"`
	Concurrency     int    `envconfig:"CONCURRENCY" default:"4"`
	// RetryDelaySec is how long a failed trigger stays invisible before it is retried.
	RetryDelaySec   int    `envconfig:"RETRY_DELAY_SEC" default:"30"`
	HealthCheckPort string `envconfig:"HEALTH_CHECK_PORT" default:"8081"`
}

type Auth struct {
	SessionCookie   string `envconfig:"SESSION_COOKIE" default:"emitkit.session_token"`
	APIKeyCacheSec  int    `envconfig:"API_KEY_CACHE_SEC" default:"600"`
	RequestIDHeader string `envconfig:"REQUEST_ID_HEADER" default:"X-Request-ID"`
}

type RateLimit struct {
	DefaultLimit int `envconfig:"DEFAULT_LIMIT" default:"100"`
	// FallbackBurst sizes the in-process limiter used while Valkey is unreachable.
	FallbackBurst int `envconfig:"FALLBACK_BURST" default:"20"`
}

type Stream struct {
	PollIntervalSec int `envconfig:"POLL_INTERVAL_SEC" default:"5"`
	BatchLimit      int `envconfig:"BATCH_LIMIT" default:"100"`
}

type Webhook struct {
	TimeoutSec     int    `envconfig:"TIMEOUT_SEC" default:"30"`
	UserAgent      string `envconfig:"USER_AGENT" default:"EmitKit/1.0"`
	MaxConcurrency int    `envconfig:"MAX_CONCURRENCY" default:"16"`
}

type Push struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `envconfig:"VAPID_SUBJECT" default:"mailto:notifications@emitkit.com"`
	TTLSec          int    `envconfig:"TTL_SEC" default:"86400"`
	MaxConcurrency  int    `envconfig:"MAX_CONCURRENCY" default:"16"`
}

type Encryption struct {
	Key string `envconfig:"KEY" required:"true"`
}

type Retention struct {
	BasicDays   int  `envconfig:"BASIC_DAYS" default:"90"`
	PremiumDays int  `envconfig:"PREMIUM_DAYS" default:"365"`
	DryRun      bool `envconfig:"DRY_RUN" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// PollInterval returns the SSE poll interval.
func (s Stream) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSec) * time.Second
}

// Timeout returns the per-delivery webhook timeout.
func (w Webhook) Timeout() time.Duration {
	return time.Duration(w.TimeoutSec) * time.Second
}

// Configured reports whether both VAPID keys are present.
func (p Push) Configured() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}
