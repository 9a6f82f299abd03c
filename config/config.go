package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Queue     QueueConfig
	Mail      MailConfig
	Push      PushConfig
	Breaker   BreakerConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

type AppConfig struct {
	Name        string        `mapstructure:"name"`
	Environment string        `mapstructure:"environment"`
	Debug       bool          `mapstructure:"debug"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Port        string        `mapstructure:"port"`
	ClientURL   string        `mapstructure:"client_url"`
}

type LogConfig struct {
	Path         string        `mapstructure:"path"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Seed            bool          `mapstructure:"seed"`
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	Enabled      bool          `mapstructure:"enabled"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Lifetime time.Duration `mapstructure:"lifetime"`
}

// AuthConfig holds the one-time code and hashing parameters.
type AuthConfig struct {
	VerificationCodeLength int           `mapstructure:"verification_code_length"`
	ResetCodeLength        int           `mapstructure:"reset_code_length"`
	ResetCodeTTL           time.Duration `mapstructure:"reset_code_ttl"`
	BcryptCost             int           `mapstructure:"bcrypt_cost"`
}

type QueueConfig struct {
	EmailQueue         string        `mapstructure:"email_queue"`
	PushQueue          string        `mapstructure:"push_queue"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BackoffType        string        `mapstructure:"backoff_type"`
	BackoffDelay       time.Duration `mapstructure:"backoff_delay"`
	BackoffMaxDelay    time.Duration `mapstructure:"backoff_max_delay"`
	Concurrency        int           `mapstructure:"concurrency"`
	PollTimeout        time.Duration `mapstructure:"poll_timeout"`
	PromoteInterval    time.Duration `mapstructure:"promote_interval"`
	PushFanOutParallel int           `mapstructure:"push_fan_out_parallel"`
	KeepCompleted      int           `mapstructure:"keep_completed"`
}

type MailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	SendGridHost   string `mapstructure:"sendgrid_host"`
	FromEmail      string `mapstructure:"from_email"`
	FromName       string `mapstructure:"from_name"`
	SandboxMode    bool   `mapstructure:"sandbox_mode"`
}

type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type BreakerConfig struct {
	Threshold        int           `mapstructure:"threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
}

type RateLimitConfig struct {
	Request  int `mapstructure:"request"`
	Duration int `mapstructure:"duration"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

func LoadConfig() (*Config, error) {
	// A missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "account-service"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "2001"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
			Timeout:     getEnvAsDuration("APP_TIMEOUT", 30*time.Second),
			ClientURL:   getEnv("APP_CLIENT_URL", "http://localhost:3000"),
		},
		Log: LogConfig{
			Path:         getEnv("LOGS_PATH", "./logs"),
			MaxAge:       getEnvAsDuration("LOG_MAX_AGE", 7*24*time.Hour),
			RotationTime: getEnvAsDuration("LOG_ROTATION_TIME", 24*time.Hour),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "account_db"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
			Seed:            getEnvAsBool("DB_SEED", false),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			Database:     getEnvAsInt("REDIS_DB", 0),
			Enabled:      getEnvAsBool("REDIS_ENABLED", true),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getEnvAsDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "account:"),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", "default_secret_key_change_in_production"),
			Lifetime: getEnvAsDuration("JWT_LIFETIME", 24*time.Hour),
		},
		Auth: AuthConfig{
			VerificationCodeLength: getEnvAsInt("AUTH_VERIFICATION_CODE_LENGTH", 6),
			ResetCodeLength:        getEnvAsInt("AUTH_RESET_CODE_LENGTH", 8),
			ResetCodeTTL:           getEnvAsDuration("AUTH_RESET_CODE_TTL", time.Hour),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Queue: QueueConfig{
			EmailQueue:         getEnv("QUEUE_EMAIL_NAME", "email"),
			PushQueue:          getEnv("QUEUE_PUSH_NAME", "push-notification"),
			MaxAttempts:        getEnvAsInt("QUEUE_MAX_ATTEMPTS", 3),
			BackoffType:        getEnv("QUEUE_BACKOFF_TYPE", BackoffExponential),
			BackoffDelay:       getEnvAsDuration("QUEUE_BACKOFF_DELAY", time.Second),
			BackoffMaxDelay:    getEnvAsDuration("QUEUE_BACKOFF_MAX_DELAY", time.Minute),
			Concurrency:        getEnvAsInt("QUEUE_CONCURRENCY", 5),
			PollTimeout:        getEnvAsDuration("QUEUE_POLL_TIMEOUT", 5*time.Second),
			PromoteInterval:    getEnvAsDuration("QUEUE_PROMOTE_INTERVAL", time.Second),
			PushFanOutParallel: getEnvAsInt("QUEUE_PUSH_FAN_OUT_PARALLEL", 10),
			KeepCompleted:      getEnvAsInt("QUEUE_KEEP_COMPLETED", 100),
		},
		Mail: MailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			SendGridHost:   getEnv("SENDGRID_HOST", "https://api.sendgrid.com"),
			FromEmail:      getEnv("SENDGRID_FROM_EMAIL", "no-reply@example.com"),
			FromName:       getEnv("SENDGRID_FROM_NAME", "Account Service"),
			SandboxMode:    getEnvAsBool("SENDGRID_SANDBOX", false),
		},
		Push: PushConfig{
			Enabled:         getEnvAsBool("FIREBASE_ENABLED", false),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Breaker: BreakerConfig{
			Threshold:        getEnvAsInt("BREAKER_THRESHOLD", 5),
			Timeout:          getEnvAsDuration("BREAKER_TIMEOUT", 30*time.Second),
			SuccessThreshold: getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
		},
		RateLimit: RateLimitConfig{
			Request:  getEnvAsInt("RATE_LIMIT_MAX_REQUEST", 60),
			Duration: getEnvAsInt("RATE_LIMIT_DURATION", 60),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.JWT.Lifetime <= 0 {
		return fmt.Errorf("JWT_LIFETIME must be positive, got %s", c.JWT.Lifetime)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	switch c.Queue.BackoffType {
	case BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("QUEUE_BACKOFF_TYPE must be %q or %q, got %q", BackoffFixed, BackoffExponential, c.Queue.BackoffType)
	}
	if c.Auth.VerificationCodeLength < 1 || c.Auth.ResetCodeLength < 1 {
		return errors.New("one-time code lengths must be positive")
	}
	return nil
}

func (c *Config) DatabaseConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
