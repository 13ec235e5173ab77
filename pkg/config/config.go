package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	S3         S3Config
	Dynamo     DynamoConfig
	Security   SecurityConfig
	Analytics  AnalyticsConfig
	Alerts     AlertsConfig
	Advisor    AdvisorConfig
	Ingestion  IngestionConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
	PoolSize int
}

type NATSConfig struct {
	Enabled bool
	URL     string
}

type CloudWatchConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MetricsEnabled  bool
	Namespace       string
	LogsEnabled     bool
	LogGroupName    string
	LogStreamName   string
	FlushInterval   time.Duration
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
}

type DynamoConfig struct {
	Enabled         bool
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
	ReportRetention time.Duration
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
}

type AnalyticsConfig struct {
	DefaultWindowDays   int
	DefaultRankingLimit int
}

type AlertsConfig struct {
	FeedLookback        time.Duration
	ScoreAlertThreshold float64
}

type AdvisorConfig struct {
	BaseURL      string
	ProxyTimeout time.Duration
}

type IngestionConfig struct {
	MaxBatchSize    int
	MaxPayloadBytes int64
	RateLimitRPS    float64
	RateLimitBurst  int
	ClockSkew       time.Duration
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	p := &parser{}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     p.duration("SERVER_READ_TIMEOUT", "10s"),
			WriteTimeout:    p.duration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: p.duration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "plugin_monitor"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    p.int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
			CacheTTL: p.duration("REDIS_CACHE_TTL", "5m"),
			PoolSize: p.int("REDIS_POOL_SIZE", 10),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
		},
		CloudWatch: CloudWatchConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			MetricsEnabled:  getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			Namespace:       getEnv("CLOUDWATCH_NAMESPACE", "PluginMonitor"),
			LogsEnabled:     getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			LogGroupName:    getEnv("CLOUDWATCH_LOG_GROUP", "/plugin-monitor/api"),
			LogStreamName:   getEnv("CLOUDWATCH_LOG_STREAM", hostname()),
			FlushInterval:   p.duration("CLOUDWATCH_FLUSH_INTERVAL", "10s"),
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "ru-central1"),
			Endpoint:        getEnv("S3_ENDPOINT", "https://storage.yandexcloud.net"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "reports"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
			PresignedTTL:    p.duration("S3_PRESIGNED_TTL", "15m"),
		},
		Dynamo: DynamoConfig{
			Enabled:         getEnvBool("DYNAMODB_ENABLED", false),
			TableName:       getEnv("DYNAMODB_REPORTS_TABLE", "plugin-monitor-reports"),
			Region:          getEnv("DYNAMODB_REGION", getEnv("AWS_REGION", "us-east-1")),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     getEnv("DYNAMODB_ACCESS_KEY_ID", getEnv("AWS_ACCESS_KEY_ID", "")),
			SecretAccessKey: getEnv("DYNAMODB_SECRET_ACCESS_KEY", getEnv("AWS_SECRET_ACCESS_KEY", "")),
			StrongReads:     getEnvBool("DYNAMODB_STRONG_READS", false),
			ReportRetention: p.duration("REPORT_RETENTION", "720h"),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
		},
		Analytics: AnalyticsConfig{
			DefaultWindowDays:   p.int("ANALYTICS_WINDOW_DAYS", 7),
			DefaultRankingLimit: p.int("ANALYTICS_RANKING_LIMIT", 5),
		},
		Alerts: AlertsConfig{
			FeedLookback:        p.duration("ALERTS_FEED_LOOKBACK", "1m"),
			ScoreAlertThreshold: p.float("ALERTS_SCORE_THRESHOLD", 1.5),
		},
		Advisor: AdvisorConfig{
			BaseURL:      getEnv("ALERT_ADVISOR_BASE_URL", ""),
			ProxyTimeout: p.duration("ALERT_ADVISOR_PROXY_TIMEOUT", "6s"),
		},
		Ingestion: IngestionConfig{
			MaxBatchSize:    p.int("INGEST_MAX_BATCH_SIZE", 500),
			MaxPayloadBytes: int64(p.int("INGEST_MAX_PAYLOAD_KB", 2048)) * 1024,
			RateLimitRPS:    p.float("INGEST_RATE_LIMIT_RPS", 20),
			RateLimitBurst:  p.int("INGEST_RATE_LIMIT_BURST", 40),
			ClockSkew:       p.duration("INGEST_CLOCK_SKEW", "5m"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		errs = append(errs, errors.New("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true"))
	}
	if c.S3.Enabled && strings.TrimSpace(c.S3.Bucket) == "" {
		errs = append(errs, errors.New("S3_BUCKET is required when S3_ENABLED=true"))
	}
	if mode := strings.ToLower(c.S3.URLMode); mode != "presigned" && mode != "public" {
		errs = append(errs, fmt.Errorf("S3_URL_MODE must be presigned or public, got %q", c.S3.URLMode))
	}
	if c.Dynamo.Enabled && strings.TrimSpace(c.Dynamo.TableName) == "" {
		errs = append(errs, errors.New("DYNAMODB_REPORTS_TABLE is required when DYNAMODB_ENABLED=true"))
	}
	if c.Analytics.DefaultWindowDays <= 0 {
		errs = append(errs, errors.New("ANALYTICS_WINDOW_DAYS must be positive"))
	}
	if c.Analytics.DefaultRankingLimit <= 0 {
		errs = append(errs, errors.New("ANALYTICS_RANKING_LIMIT must be positive"))
	}
	if c.Alerts.FeedLookback <= 0 {
		errs = append(errs, errors.New("ALERTS_FEED_LOOKBACK must be positive"))
	}
	if c.Alerts.ScoreAlertThreshold < 0 || c.Alerts.ScoreAlertThreshold > 4 {
		errs = append(errs, errors.New("ALERTS_SCORE_THRESHOLD must be within [0, 4]"))
	}
	if c.Ingestion.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("INGEST_MAX_BATCH_SIZE must be positive"))
	}
	if c.Ingestion.RateLimitRPS <= 0 || c.Ingestion.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("INGEST_RATE_LIMIT_RPS and INGEST_RATE_LIMIT_BURST must be positive"))
	}

	return errors.Join(errs...)
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// parser накапливает первую ошибку разбора переменных окружения
type parser struct {
	err error
}

func (p *parser) duration(key, defaultValue string) time.Duration {
	value, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		p.fail(key, err)
		return 0
	}
	return value
}

func (p *parser) int(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, err)
		return 0
	}
	return value
}

func (p *parser) float(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.fail(key, err)
		return 0
	}
	return value
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "plugin-monitor-api"
	}
	return name
}
