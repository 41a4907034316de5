package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. CAREPORTAL_SITE_URL.
const EnvPrefix = "careportal"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	SiteURL   string          `mapstructure:"site_url" envconfig:"site_url"`
	Booking   BookingConfig   `mapstructure:"booking"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Uploads   UploadConfig    `mapstructure:"uploads"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mail      MailConfig      `mapstructure:"mail"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" envconfig:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" envconfig:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" envconfig:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" envconfig:"request_timeout"`
	Mode           string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" envconfig:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" envconfig:"max_idle_conns"`
}

// DSN renders a lib/pq key/value connection string. Values are quoted so
// passwords may contain spaces, quotes or backslashes.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(c.Host), c.Port, quoteDSN(c.User), quoteDSN(c.Password), quoteDSN(c.Name), quoteDSN(c.SSLMode),
	)
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteDSN(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	RefreshSecret string        `mapstructure:"refresh_secret" envconfig:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl" envconfig:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl" envconfig:"refresh_ttl"`
	Issuer        string        `mapstructure:"issuer"`
}

type AuthConfig struct {
	BcryptCost           int           `mapstructure:"bcrypt_cost" envconfig:"bcrypt_cost"`
	RequireVerifiedEmail bool          `mapstructure:"require_verified_email" envconfig:"require_verified_email"`
	VerifyTokenTTL       time.Duration `mapstructure:"verify_token_ttl" envconfig:"verify_token_ttl"`
	ResetTokenTTL        time.Duration `mapstructure:"reset_token_ttl" envconfig:"reset_token_ttl"`
	CookieName           string        `mapstructure:"cookie_name" envconfig:"cookie_name"`
	CookieDomain         string        `mapstructure:"cookie_domain" envconfig:"cookie_domain"`
	CookieSecure         bool          `mapstructure:"cookie_secure" envconfig:"cookie_secure"`
}

type BookingConfig struct {
	Timezone string `mapstructure:"timezone"`
	PageSize int    `mapstructure:"page_size" envconfig:"page_size"`
}

// Location resolves the clinic time zone that booking dates and slots are read in.
func (c BookingConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid booking timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

type StorageConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	AccessKey        string        `mapstructure:"access_key" envconfig:"access_key"`
	SecretKey        string        `mapstructure:"secret_key" envconfig:"secret_key"`
	Bucket           string        `mapstructure:"bucket"`
	Region           string        `mapstructure:"region"`
	UseSSL           bool          `mapstructure:"use_ssl" envconfig:"use_ssl"`
	PatientURLExpiry time.Duration `mapstructure:"patient_url_expiry" envconfig:"patient_url_expiry"`
	DoctorURLExpiry  time.Duration `mapstructure:"doctor_url_expiry" envconfig:"doctor_url_expiry"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes" envconfig:"max_bytes"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"min_idle_conns"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins" envconfig:"allow_origins"`
}

type CacheConfig struct {
	DoctorsTTL time.Duration `mapstructure:"doctors_ttl" envconfig:"doctors_ttl"`
}

type WorkerConfig struct {
	CompletionInterval time.Duration `mapstructure:"completion_interval" envconfig:"completion_interval"`
	HealthPort         int           `mapstructure:"health_port" envconfig:"health_port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "careportal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("jwt.access_ttl", time.Hour)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "careportal")

	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.require_verified_email", true)
	v.SetDefault("auth.verify_token_ttl", 48*time.Hour)
	v.SetDefault("auth.reset_token_ttl", time.Hour)
	v.SetDefault("auth.cookie_name", "careportal_session")

	v.SetDefault("booking.timezone", "UTC")
	v.SetDefault("booking.page_size", 5)

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "ehr-files")
	v.SetDefault("storage.patient_url_expiry", 120*time.Second)
	v.SetDefault("storage.doctor_url_expiry", 3600*time.Second)

	v.SetDefault("uploads.max_bytes", 25<<20)

	v.SetDefault("redis.channel", "careportal.events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "no-reply@careportal.local")

	v.SetDefault("rate_limit.rps", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("cache.doctors_ttl", 5*time.Minute)

	v.SetDefault("worker.completion_interval", 5*time.Minute)
	v.SetDefault("worker.health_port", 8081)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads .env, then config.yaml from the given paths (or "." and
// "./config"), then applies CAREPORTAL_* environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.SiteURL == "" {
		problems = append(problems, "site_url is required")
	}
	if c.Database.Host == "" {
		problems = append(problems, "database.host is required")
	}
	if _, err := c.Booking.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
