// Package config loads app settings from the environment and an optional
// .env file, and opens the Mongo connection.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"APP_ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`

	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	JWTSecret  string `mapstructure:"JWT_SECRET"`
	SessionTTL string `mapstructure:"SESSION_TTL"`
	BcryptCost int    `mapstructure:"BCRYPT_COST"`

	CORSOrigins    string `mapstructure:"CORS_ORIGINS"`
	MetricsAllowIP string `mapstructure:"METRICS_ALLOW_IP"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is honored.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// Bootstrap admin, created on start when no user has AdminEmail.
	AdminName     string `mapstructure:"ADMIN_NAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	SMTPHost          string `mapstructure:"SMTP_HOST"`
	SMTPPort          int    `mapstructure:"SMTP_PORT"`
	SMTPUser          string `mapstructure:"SMTP_USER"`
	SMTPPassword      string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom          string `mapstructure:"SMTP_FROM"`
	AdminNotifyEmails string `mapstructure:"ADMIN_NOTIFY_EMAILS"`

	S3Endpoint  string `mapstructure:"S3_ENDPOINT"`
	S3AccessKey string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket    string `mapstructure:"S3_BUCKET"`
	S3UseSSL    bool   `mapstructure:"S3_USE_SSL"`
	// UploadDir is used for object storage when S3_ENDPOINT is empty.
	UploadDir string `mapstructure:"UPLOAD_DIR"`

	SheetObjectKey string `mapstructure:"SHEET_OBJECT_KEY"`
	ReportTimezone string `mapstructure:"REPORT_TIMEZONE"`

	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	LoginRateLimit  int    `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateWindow string `mapstructure:"LOGIN_RATE_WINDOW"`

	DigestAt string `mapstructure:"DIGEST_AT"`
}

var defaults = map[string]any{
	"PORT":                "5000",
	"APP_ENV":             "development",
	"LOG_LEVEL":           "",
	"STORE_DRIVER":        "mongo",
	"MONGODB_URI":         "mongodb://localhost:27017",
	"MONGODB_DATABASE":    "reportit",
	"JWT_SECRET":          "",
	"SESSION_TTL":         "8h",
	"BCRYPT_COST":         12,
	"CORS_ORIGINS":        "*",
	"METRICS_ALLOW_IP":    "",
	"TRUSTED_PROXIES":     "",
	"ADMIN_NAME":          "Administrator",
	"ADMIN_EMAIL":         "",
	"ADMIN_PASSWORD":      "",
	"SMTP_HOST":           "",
	"SMTP_PORT":           465,
	"SMTP_USER":           "",
	"SMTP_PASSWORD":       "",
	"SMTP_FROM":           "",
	"ADMIN_NOTIFY_EMAILS": "",
	"S3_ENDPOINT":         "",
	"S3_ACCESS_KEY":       "",
	"S3_SECRET_KEY":       "",
	"S3_BUCKET":           "reportit",
	"S3_USE_SSL":          true,
	"UPLOAD_DIR":          "./uploads",
	"SHEET_OBJECT_KEY":    "sheets/device-reports.xlsx",
	"REPORT_TIMEZONE":     "Asia/Kolkata",
	"REDIS_ADDR":          "",
	"REDIS_PASSWORD":      "",
	"LOGIN_RATE_LIMIT":    10,
	"LOGIN_RATE_WINDOW":   "1m",
	"DIGEST_AT":           "23:55",
}

// Load reads .env when present, then the environment. Environment values
// win over .env ones.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	switch c.StoreDriver {
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("config: MONGODB_URI must be set")
		}
	case "memory":
	default:
		return errors.New("config: STORE_DRIVER must be mongo or memory")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if _, err := time.ParseDuration(c.SessionTTL); err != nil {
		return errors.New("config: SESSION_TTL must be a duration")
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return errors.New("config: REPORT_TIMEZONE is not a known zone")
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		return errors.New("config: ADMIN_PASSWORD must be set with ADMIN_EMAIL")
	}
	if c.LoginRateLimit < 0 {
		return errors.New("config: LOGIN_RATE_LIMIT must not be negative")
	}
	return nil
}

// SessionDuration is the server-side session validity window.
func (c *Config) SessionDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 8 * time.Hour
	}
	return d
}

func (c *Config) RateWindow() time.Duration {
	d, err := time.ParseDuration(c.LoginRateWindow)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) CORSOriginList() []string { return splitList(c.CORSOrigins) }

func (c *Config) TrustedProxyList() []string { return splitList(c.TrustedProxies) }

func (c *Config) AdminNotifyList() []string { return splitList(c.AdminNotifyEmails) }
