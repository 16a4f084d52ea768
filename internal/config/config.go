package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowedOrigins"`
	CSRFMode       string `yaml:"csrfMode"` // token|origin|off
	BodyLimit      int    `yaml:"bodyLimit"`
	RateLimit      int    `yaml:"rateLimit"` // requests per minute per client, 0 disables
}

type Database struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns URL when set, otherwise a key/value postgres DSN.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`

	// AvatarURLTTL bounds presigned avatar links.
	AvatarURLTTL time.Duration `yaml:"avatarURLTTL"`
}

// Enabled reports whether enough settings are present to build a client.
func (s S3) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

type Realtime struct {
	AuthTimeout  time.Duration `yaml:"authTimeout"`
	PingInterval time.Duration `yaml:"pingInterval"`
	PongTimeout  time.Duration `yaml:"pongTimeout"`
	SendBuffer   int           `yaml:"sendBuffer"`
	Debug        bool          `yaml:"debug"`
}

type Logging struct {
	Env       string `yaml:"env"`     // dev|prod
	Service   string `yaml:"service"` // realtime-core
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend"` // std|zap
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type Config struct {
	HTTP             HTTP     `yaml:"http"`
	Database         Database `yaml:"database"`
	Redis            Redis    `yaml:"redis"`
	S3               S3       `yaml:"s3"`
	Realtime         Realtime `yaml:"realtime"`
	Logging          Logging  `yaml:"logging"`
	JWTSecret        string   `yaml:"jwtSecret"`
	MaxMessageLength int      `yaml:"maxMessageLength"`
}

// Load reads .env (if any), then the YAML file named by CONFIG_PATH (if any),
// then applies environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.HTTP.Port, "PORT")
	setString(&c.HTTP.AllowedOrigins, "ALLOWED_ORIGINS")
	setString(&c.HTTP.CSRFMode, "CSRF_MODE")
	setInt(&c.HTTP.RateLimit, "RATE_LIMIT_PER_MINUTE")
	setString(&c.JWTSecret, "JWT_SECRET")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "S3_SECRET_KEY")
	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Region, "S3_REGION")
	setBool(&c.S3.UseSSL, "S3_USE_SSL")
	setDuration(&c.S3.AvatarURLTTL, "S3_AVATAR_URL_TTL")

	setInt(&c.MaxMessageLength, "MAX_MESSAGE_LENGTH")
	setDuration(&c.Realtime.AuthTimeout, "WS_AUTH_TIMEOUT")
	setDuration(&c.Realtime.PingInterval, "WS_PING_INTERVAL")
	setDuration(&c.Realtime.PongTimeout, "WS_PONG_TIMEOUT")
	setInt(&c.Realtime.SendBuffer, "WS_SEND_BUFFER")
	setBool(&c.Realtime.Debug, "WS_DEBUG")

	setString(&c.Logging.Env, "LOG_ENV")
	setString(&c.Logging.Backend, "LOG_BACKEND")
	setString(&c.Logging.Version, "APP_VERSION")
	setBool(&c.Logging.Debug, "LOG_DEBUG")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.HTTP.Port == "" {
		c.HTTP.Port = "8080"
	}
	if c.HTTP.CSRFMode == "" {
		c.HTTP.CSRFMode = "token"
	}
	if c.HTTP.BodyLimit <= 0 {
		c.HTTP.BodyLimit = 1 * 1024 * 1024
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.S3.AvatarURLTTL <= 0 {
		c.S3.AvatarURLTTL = time.Hour
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = 4000
	}
	if c.Realtime.AuthTimeout <= 0 {
		c.Realtime.AuthTimeout = 10 * time.Second
	}
	if c.Realtime.PingInterval <= 0 {
		c.Realtime.PingInterval = 30 * time.Second
	}
	if c.Realtime.PongTimeout <= 0 {
		c.Realtime.PongTimeout = 90 * time.Second
	}
	if c.Realtime.PongTimeout <= c.Realtime.PingInterval {
		return errors.New("realtime.pongTimeout must exceed realtime.pingInterval")
	}
	if c.Realtime.SendBuffer <= 0 {
		c.Realtime.SendBuffer = 64
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "realtime-core"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}
