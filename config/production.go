// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database     DatabaseConfig     `json:"database"`
	Server       ServerConfig       `json:"server"`
	Security     SecurityConfig     `json:"security"`
	Receipt      ReceiptConfig      `json:"receipt"`
	Notification NotificationConfig `json:"notification"`
	Logging      LoggingConfig      `json:"logging"`
	Metrics      MetricsConfig      `json:"metrics"`
	Cache        CacheConfig        `json:"cache"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Deployment   DeploymentConfig   `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN returns the libpq connection string for this database
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout"`
	BodyLimit       int           `json:"body_limit"`
	TrustedProxies  []string      `json:"trusted_proxies"`
	ProxyHeader     string        `json:"proxy_header"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit  int           `json:"global_rate_limit"`  // requests per window
	PaymentRateLimit int           `json:"payment_rate_limit"` // payment attempts per window
	ContactRateLimit int           `json:"contact_rate_limit"`
	RateLimitWindow  time.Duration `json:"rate_limit_window"`

	// Admin API
	AdminAPIKeys []string `json:"-"`
	IPBlacklist  []string `json:"ip_blacklist"`

	// Pickup codes
	BcryptCost int `json:"bcrypt_cost"`

	// Contact captcha
	CaptchaTTL     time.Duration `json:"captcha_ttl"`
	CaptchaPadding int           `json:"captcha_padding"`
	CaptchaImgSize int           `json:"captcha_img_size"`
}

// ReceiptConfig configures signing of collection receipts
type ReceiptConfig struct {
	SecretKey  string        `json:"-"`
	PrivateKey string        `json:"-"`
	PublicKey  string        `json:"-"`
	UseRSAKeys bool          `json:"use_rsa_keys"`
	TTL        time.Duration `json:"ttl"`
	Issuer     string        `json:"issuer"`
	Audience   string        `json:"audience"`
}

// NotificationConfig selects and configures recipient notification channels
type NotificationConfig struct {
	SMSProvider    string        `json:"sms_provider"` // mock, http
	SMSEndpoint    string        `json:"sms_endpoint"`
	SMSAPIKey      string        `json:"-"`
	SMSSender      string        `json:"sms_sender"`
	EmailProvider  string        `json:"email_provider"` // mock, smtp
	EmailHost      string        `json:"email_host"`
	EmailPort      int           `json:"email_port"`
	EmailUsername  string        `json:"email_username"`
	EmailPassword  string        `json:"-"`
	EmailFrom      string        `json:"email_from"`
	Timeout        time.Duration `json:"timeout"`
	HubName        string        `json:"hub_name"`
	HubOpeningHour string        `json:"hub_opening_hours"`
}

type LoggingConfig struct {
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
	AccessLog  bool   `json:"access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	RedisPrefix    string        `json:"redis_prefix"`
	ParcelTTL      time.Duration `json:"parcel_ttl"`
	HealthInterval time.Duration `json:"health_interval"`
}

// SchedulerConfig controls the overdue reminder job
type SchedulerConfig struct {
	OverdueReminderEnabled  bool          `json:"overdue_reminder_enabled"`
	OverdueReminderInterval time.Duration `json:"overdue_reminder_interval"`
	OverdueReminderBatch    int           `json:"overdue_reminder_batch"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// IsDevelopment reports whether the service runs in a local or development environment
func (d DeploymentConfig) IsDevelopment() bool {
	return d.Environment == "development" || d.Environment == "local"
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "parcelhub"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
			TrustedProxies:  getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:     getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 600),
			PaymentRateLimit: getEnvInt("PAYMENT_RATE_LIMIT", 10),
			ContactRateLimit: getEnvInt("CONTACT_RATE_LIMIT", 5),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			AdminAPIKeys:     getEnvStringSlice("ADMIN_API_KEYS", []string{}),
			IPBlacklist:      getEnvStringSlice("IP_BLACKLIST", []string{}),
			BcryptCost:       getEnvInt("BCRYPT_COST", 10),
			CaptchaTTL:       getEnvDuration("CAPTCHA_TTL", 2*time.Minute),
			CaptchaPadding:   getEnvInt("CAPTCHA_PADDING", 15),
			CaptchaImgSize:   getEnvInt("CAPTCHA_IMG_SIZE", 220),
		},
		Receipt: ReceiptConfig{
			SecretKey:  getEnvString("RECEIPT_SECRET_KEY", ""),
			PrivateKey: getEnvString("RECEIPT_PRIVATE_KEY", ""),
			PublicKey:  getEnvString("RECEIPT_PUBLIC_KEY", ""),
			UseRSAKeys: getEnvBool("RECEIPT_USE_RSA_KEYS", false),
			TTL:        getEnvDuration("RECEIPT_TTL", 365*24*time.Hour),
			Issuer:     getEnvString("RECEIPT_ISSUER", "parcelhub"),
			Audience:   getEnvString("RECEIPT_AUDIENCE", "parcelhub-receipts"),
		},
		Notification: NotificationConfig{
			SMSProvider:    getEnvString("SMS_PROVIDER", "mock"),
			SMSEndpoint:    getEnvString("SMS_ENDPOINT", ""),
			SMSAPIKey:      getEnvString("SMS_API_KEY", ""),
			SMSSender:      getEnvString("SMS_SENDER", "ParcelHub"),
			EmailProvider:  getEnvString("EMAIL_PROVIDER", "mock"),
			EmailHost:      getEnvString("EMAIL_HOST", ""),
			EmailPort:      getEnvInt("EMAIL_PORT", 587),
			EmailUsername:  getEnvString("EMAIL_USERNAME", ""),
			EmailPassword:  getEnvString("EMAIL_PASSWORD", ""),
			EmailFrom:      getEnvString("EMAIL_FROM", "noreply@parcelhub.local"),
			Timeout:        getEnvDuration("NOTIFICATION_TIMEOUT", 10*time.Second),
			HubName:        getEnvString("HUB_NAME", "ParcelHub"),
			HubOpeningHour: getEnvString("HUB_OPENING_HOURS", "Mon-Fri 09:00-17:00"),
		},
		Logging: LoggingConfig{
			Output:     getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString("LOG_FILE_PATH", "logs/parcelhub.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
			AccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", true),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:    getEnvString("CACHE_REDIS_PREFIX", "parcelhub:"),
			ParcelTTL:      getEnvDuration("CACHE_PARCEL_TTL", 5*time.Minute),
			HealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			OverdueReminderEnabled:  getEnvBool("SCHEDULER_OVERDUE_REMINDER_ENABLED", true),
			OverdueReminderInterval: getEnvDuration("SCHEDULER_OVERDUE_REMINDER_INTERVAL", 1*time.Hour),
			OverdueReminderBatch:    getEnvInt("SCHEDULER_OVERDUE_REMINDER_BATCH", 200),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads variables from path when it exists. Variables already present
// in the environment take precedence over the file.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	// Database
	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}

	// Server
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// Security
	if len(cfg.Security.AdminAPIKeys) == 0 {
		errs = append(errs, "ADMIN_API_KEYS must contain at least one key")
	}
	for _, k := range cfg.Security.AdminAPIKeys {
		if len(k) < 24 {
			errs = append(errs, "every ADMIN_API_KEYS entry must be at least 24 characters long")
			break
		}
	}
	if cfg.Security.BcryptCost < 4 || cfg.Security.BcryptCost > 14 {
		errs = append(errs, "BCRYPT_COST must be between 4 and 14")
	}
	if cfg.Security.RateLimitWindow <= 0 {
		errs = append(errs, "RATE_LIMIT_WINDOW must be positive")
	}

	// Receipt
	if !cfg.Receipt.UseRSAKeys && len(cfg.Receipt.SecretKey) < 32 {
		errs = append(errs, "RECEIPT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.Receipt.UseRSAKeys && (cfg.Receipt.PrivateKey == "" || cfg.Receipt.PublicKey == "") {
		errs = append(errs, "RECEIPT_PRIVATE_KEY and RECEIPT_PUBLIC_KEY are required when RSA keys are enabled")
	}
	if cfg.Receipt.TTL <= 0 {
		errs = append(errs, "RECEIPT_TTL must be positive")
	}

	// Notification
	if !slices.Contains([]string{"mock", "http"}, cfg.Notification.SMSProvider) {
		errs = append(errs, "SMS_PROVIDER must be one of: mock, http")
	}
	if cfg.Notification.SMSProvider == "http" && (cfg.Notification.SMSEndpoint == "" || cfg.Notification.SMSAPIKey == "") {
		errs = append(errs, "SMS_ENDPOINT and SMS_API_KEY are required for the http SMS provider")
	}
	if !slices.Contains([]string{"mock", "smtp"}, cfg.Notification.EmailProvider) {
		errs = append(errs, "EMAIL_PROVIDER must be one of: mock, smtp")
	}
	if cfg.Notification.EmailProvider == "smtp" && cfg.Notification.EmailHost == "" {
		errs = append(errs, "EMAIL_HOST is required for the smtp email provider")
	}

	// Logging
	if !slices.Contains([]string{"stdout", "file", "both"}, cfg.Logging.Output) {
		errs = append(errs, "LOG_OUTPUT must be one of: stdout, file, both")
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errs = append(errs, "LOG_FILE_PATH is required when logging to a file")
	}

	// Cache
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled")
	}
	if cfg.Cache.Enabled && cfg.Cache.ParcelTTL <= 0 {
		errs = append(errs, "CACHE_PARCEL_TTL must be positive")
	}

	// Scheduler
	if cfg.Scheduler.OverdueReminderEnabled && cfg.Scheduler.OverdueReminderInterval < time.Minute {
		errs = append(errs, "SCHEDULER_OVERDUE_REMINDER_INTERVAL must be at least 1m")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
