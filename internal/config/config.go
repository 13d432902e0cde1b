// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、以降は変更しない。
type Config struct {
	DatabaseURL string
	DB          DBConfig

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	SessionSecret string
	SessionMaxAge int // 秒

	// ReadingLocation は目標期間とストリークの暦日の基準。
	ReadingLocation  *time.Location
	SessionListLimit int
	NoteMaxLength    int

	RateLimitGeneral int // 1分あたり

	CleanupInterval time.Duration

	LogFormat string // json | text
	LogLevel  string

	ServerPort string
	BaseURL    string

	// CookieSecure はBASE_URLがhttpsかどうかから決まる。
	CookieSecure bool
	CookieDomain string

	// CORSAllowedOrigin はカンマ区切りで複数指定できる。
	CORSAllowedOrigin string
}

// DBConfig はコネクションプールと起動時の接続待ちの設定。
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectTimeout は起動時にDBの起動を待つ最大時間。
	ConnectTimeout time.Duration
}

// Load は環境変数からConfigを読み込む。
// ENV_FILE（デフォルト .env）が存在すれば先に読み込むが、設定済みの環境変数は上書きしない。
// 必須項目の欠落と、数値・期間として解釈できない値はまとめてエラーにする。
func Load() (*Config, error) {
	if err := loadEnvFile(envOr("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	var e env
	cfg := &Config{
		DatabaseURL:        e.required("DATABASE_URL"),
		GoogleClientID:     e.required("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: e.required("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  e.required("GOOGLE_REDIRECT_URL"),
		SessionSecret:      e.required("SESSION_SECRET"),
		BaseURL:            e.required("BASE_URL"),

		DB: DBConfig{
			MaxOpenConns:    e.positiveInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    e.positiveInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  e.duration("DB_CONNECT_TIMEOUT", 30*time.Second),
		},

		SessionMaxAge:     e.positiveInt("SESSION_MAX_AGE", 86400),
		ReadingLocation:   e.location("READING_TIMEZONE", "UTC"),
		SessionListLimit:  e.positiveInt("SESSION_LIST_LIMIT", 50),
		NoteMaxLength:     e.positiveInt("NOTE_MAX_LENGTH", 10000),
		RateLimitGeneral:  e.positiveInt("RATE_LIMIT_GENERAL", 120),
		CleanupInterval:   e.duration("CLEANUP_INTERVAL", 24*time.Hour),
		LogFormat:         e.oneOf("LOG_FORMAT", "json", "json", "text"),
		LogLevel:          e.oneOf("LOG_LEVEL", "info", "debug", "info", "warn", "error"),
		ServerPort:        e.port("SERVER_PORT", "8080"),
		CookieDomain:      envOr("COOKIE_DOMAIN", ""),
		CORSAllowedOrigin: envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
	}
	if err := e.err(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	return cfg, nil
}

// loadEnvFile は.envファイルを読み込む。ファイルが存在しない場合は何もしない。
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// env は環境変数を読みながら問題を溜め込む。
type env struct {
	missing []string
	invalid []error
}

func (e *env) err() error {
	var errs []error
	if len(e.missing) > 0 {
		errs = append(errs, fmt.Errorf("required environment variables are not set: %v", e.missing))
	}
	errs = append(errs, e.invalid...)
	return errors.Join(errs...)
}

func (e *env) fail(key, value string, reason string) {
	e.invalid = append(e.invalid, fmt.Errorf("invalid %s %q: %s", key, value, reason))
}

func (e *env) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		e.missing = append(e.missing, key)
	}
	return v
}

func (e *env) positiveInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		e.fail(key, v, "must be a positive integer")
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.fail(key, v, "must be a positive duration such as 30s or 6h")
		return def
	}
	return d
}

// oneOf は値を小文字にしてallowedのいずれかであることを確認する。
func (e *env) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(envOr(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	e.fail(key, v, "must be one of "+strings.Join(allowed, ", "))
	return def
}

func (e *env) port(key, def string) string {
	v := envOr(key, def)
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 65535 {
		e.fail(key, v, "must be a TCP port number")
		return def
	}
	return v
}

// location はIANAのタイムゾーン名を読み込む。名前はそのままPostgreSQLのAT TIME ZONEに渡すため、
// プロセス依存の"Local"は受け付けない。
func (e *env) location(key, def string) *time.Location {
	v := envOr(key, def)
	if strings.EqualFold(v, "Local") {
		e.fail(key, v, "must be an IANA time zone name such as Asia/Tokyo")
		return time.UTC
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		e.fail(key, v, err.Error())
		return time.UTC
	}
	return loc
}
