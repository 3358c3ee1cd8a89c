package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string
	NodeID      int64

	Log       LogConfig
	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig

	Gateway GatewayConfig

	// ReferencePrefix namespaces gateway reference numbers per environment.
	ReferencePrefix string

	IntakeA IntakeConfig
	IntakeB IntakeConfig

	Mail MailConfig
	CRM  CRMConfig

	Worker WorkerConfig

	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	SchedulerJobs     []string
	StaleOrderAge     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// RateLimitConfig bounds pay-intent requests per user. Limiting needs redis.
type RateLimitConfig struct {
	PayIntentRate  float64
	PayIntentBurst int
}

type GatewayConfig struct {
	AccessKey   string
	ProfileID   string
	SecurityKey string
	URL         string
}

type IntakeConfig struct {
	BaseURL          string
	ClientID         string
	ClientSecret     string
	AccessToken      string
	RefreshToken     string
	WebhookAuthToken string
	AmountFieldID    string
	TokenURL         string
}

func (c IntakeConfig) Enabled() bool {
	return strings.TrimSpace(c.BaseURL) != ""
}

type MailConfig struct {
	Transport         string
	URL               string
	Key               string
	From              string
	BatchChunkSize    int
	RecipientOverride string
	OpsRecipients     []string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

type CRMConfig struct {
	URL    string
	APIKey string
}

func (c CRMConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

type LogConfig struct {
	Level string
	// Format is "json" or "console".
	Format             string
	SlowQueryThreshold time.Duration
}

// TelemetryConfig drives the OTLP exporters for traces and metrics.
type TelemetryConfig struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	TaskTimeout  time.Duration
	MaxAttempts  int
}

var ErrMissingGatewayCredentials = errors.New("gateway credentials are required")

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"); traces != "" {
		protocol = traces
	}

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "bootcamp"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		BaseURL:     strings.TrimRight(getenv("BASE_URL", "http://localhost:8080"), "/"),
		NodeID:      int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),

		Log: LogConfig{
			Level:              strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			Format:             strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			SlowQueryThreshold: getenvDuration("LOG_SLOW_QUERY_THRESHOLD", 250*time.Millisecond),
		},
		Telemetry: TelemetryConfig{
			Enabled:       getenvBool("OTEL_ENABLED", !IsDevEnvironment(environment)),
			Endpoint:      strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")),
			Protocol:      strings.ToLower(strings.TrimSpace(protocol)),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "bootcamp"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "bootcamp.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			PayIntentRate:  getenvFloat("RATE_LIMIT_PAY_INTENT_RATE", 0.5),
			PayIntentBurst: getenvInt("RATE_LIMIT_PAY_INTENT_BURST", 5),
		},

		Gateway: GatewayConfig{
			AccessKey:   strings.TrimSpace(getenv("GATEWAY_ACCESS_KEY", "")),
			ProfileID:   strings.TrimSpace(getenv("GATEWAY_PROFILE_ID", "")),
			SecurityKey: strings.TrimSpace(getenv("GATEWAY_SECURITY_KEY", "")),
			URL:         strings.TrimSpace(getenv("GATEWAY_URL", "https://testsecureacceptance.cybersource.com/pay")),
		},
		ReferencePrefix: strings.TrimSpace(getenv("REFERENCE_PREFIX", "dev")),

		IntakeA: loadIntake("INTAKE_A"),
		IntakeB: loadIntake("INTAKE_B"),

		Mail: MailConfig{
			Transport:         strings.ToLower(getenv("MAIL_TRANSPORT", "http")),
			URL:               strings.TrimRight(strings.TrimSpace(getenv("MAIL_URL", "")), "/"),
			Key:               strings.TrimSpace(getenv("MAIL_KEY", "")),
			From:              getenv("MAIL_FROM", "Bootcamps <no-reply@localhost>"),
			BatchChunkSize:    getenvInt("MAIL_BATCH_CHUNK_SIZE", 1000),
			RecipientOverride: strings.TrimSpace(getenv("MAIL_RECIPIENT_OVERRIDE", "")),
			OpsRecipients:     splitList(getenv("MAIL_OPS_RECIPIENTS", "")),
			SMTPHost:          getenv("SMTP_HOST", "localhost"),
			SMTPPort:          getenvInt("SMTP_PORT", 25),
			SMTPUsername:      getenv("SMTP_USERNAME", ""),
			SMTPPassword:      getenv("SMTP_PASSWORD", ""),
		},

		CRM: CRMConfig{
			URL:    strings.TrimRight(strings.TrimSpace(getenv("CRM_URL", "")), "/"),
			APIKey: strings.TrimSpace(getenv("CRM_API_KEY", "")),
		},

		Worker: WorkerConfig{
			Concurrency:  getenvInt("WORKER_CONCURRENCY", 4),
			PollInterval: getenvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			TaskTimeout:  getenvDuration("WORKER_TASK_TIMEOUT", 30*time.Second),
			MaxAttempts:  getenvInt("WORKER_MAX_ATTEMPTS", 8),
		},

		SchedulerEnabled:  getenvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval: getenvDuration("SCHEDULER_INTERVAL", time.Hour),
		SchedulerJobs:     splitList(getenv("SCHEDULER_JOBS", "")),
		StaleOrderAge:     getenvDuration("STALE_ORDER_AGE", 24*time.Hour),
	}

	return cfg
}

func loadIntake(prefix string) IntakeConfig {
	baseURL := strings.TrimRight(strings.TrimSpace(getenv(prefix+"_BASE_URL", "")), "/")
	tokenURL := strings.TrimSpace(getenv(prefix+"_TOKEN_URL", ""))
	if tokenURL == "" && baseURL != "" {
		tokenURL = baseURL + "/oauth/token"
	}
	return IntakeConfig{
		BaseURL:          baseURL,
		ClientID:         strings.TrimSpace(getenv(prefix+"_CLIENT_ID", "")),
		ClientSecret:     strings.TrimSpace(getenv(prefix+"_CLIENT_SECRET", "")),
		AccessToken:      strings.TrimSpace(getenv(prefix+"_ACCESS_TOKEN", "")),
		RefreshToken:     strings.TrimSpace(getenv(prefix+"_REFRESH_TOKEN", "")),
		WebhookAuthToken: strings.TrimSpace(getenv(prefix+"_WEBHOOK_AUTH_TOKEN", "")),
		AmountFieldID:    strings.TrimSpace(getenv(prefix+"_AMOUNT_FIELD_ID", "")),
		TokenURL:         tokenURL,
	}
}

// Validate reports configuration that prevents the payment flow from working.
func (c Config) Validate() error {
	if c.Gateway.AccessKey == "" || c.Gateway.ProfileID == "" || c.Gateway.SecurityKey == "" {
		return ErrMissingGatewayCredentials
	}
	if strings.TrimSpace(c.ReferencePrefix) == "" {
		return errors.New("reference prefix is required")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// IsDevEnvironment reports whether env names a developer or test setup.
func IsDevEnvironment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
