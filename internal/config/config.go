package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool
	SessionTTLMinute int

	OTLPEndpoint string

	DBType            string
	DBPath            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Admin   AdminConfig
	Redis   RedisConfig
	Cursor  CursorConfig
	Archive ArchiveConfig
}

// AdminConfig carries the single operator credential for the admin panel.
type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
}

// Enabled reports whether any admin credential has been configured.
func (c AdminConfig) Enabled() bool {
	return c.Username != "" && (c.Password != "" || c.PasswordHash != "")
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type CursorConfig struct {
	APIKey         string
	APIURL         string
	StartDateEpoch int64
	TimeoutSeconds int
	RetryMax       int
}

type ArchiveConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func (c ArchiveConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

const (
	DefaultCursorAPIURL         = "https://api.cursor.com/teams/daily-usage-data"
	DefaultCursorStartDateEpoch = int64(1746057600)
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "usagelens"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,
		SessionTTLMinute: int(getenvInt64("SESSION_TTL_MINUTES", 480)),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBPath:            getenv("DATABASE_PATH", "usagelens.db"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "usagelens"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 10)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Admin: AdminConfig{
			Username:     strings.TrimSpace(getenv("ADMIN_USERNAME", "")),
			Password:     os.Getenv("ADMIN_PASSWORD"),
			PasswordHash: strings.TrimSpace(getenv("ADMIN_PASSWORD_HASH", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Cursor: CursorConfig{
			APIKey:         strings.TrimSpace(getenv("CURSOR_API_KEY", "")),
			APIURL:         getenv("CURSOR_API_URL", DefaultCursorAPIURL),
			StartDateEpoch: getenvInt64("CURSOR_START_DATE_EPOCH", DefaultCursorStartDateEpoch),
			TimeoutSeconds: int(getenvInt64("CURSOR_TIMEOUT_SECONDS", 30)),
			RetryMax:       int(getenvInt64("CURSOR_RETRY_MAX", 3)),
		},
		Archive: ArchiveConfig{
			Endpoint:  strings.TrimSpace(getenv("ARCHIVE_ENDPOINT", "")),
			Bucket:    strings.TrimSpace(getenv("ARCHIVE_BUCKET", "")),
			AccessKey: getenv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getenv("ARCHIVE_SECRET_KEY", ""),
			UseSSL:    getenvBool("ARCHIVE_USE_SSL", true),
		},
	}

	return cfg
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
