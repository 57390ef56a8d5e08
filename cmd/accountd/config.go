// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/accountd/internal/auth"
	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/store"
	"github.com/holomush/accountd/internal/xdg"
)

// Config is the effective accountd configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http" yaml:"http"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Store     StoreConfig     `koanf:"store" yaml:"store"`
	Reset     ResetConfig     `koanf:"reset" yaml:"reset"`
	RateLimit RateLimitConfig `koanf:"ratelimit" yaml:"ratelimit"`
	Hasher    HasherConfig    `koanf:"hasher" yaml:"hasher"`
	Mail      MailConfig      `koanf:"mail" yaml:"mail"`
	Tracing   TracingConfig   `koanf:"tracing" yaml:"tracing"`
	Secrets   Secrets         `koanf:"-" yaml:"secrets"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr       string `koanf:"addr" yaml:"addr"`
	TrustProxy bool   `koanf:"trust_proxy" yaml:"trust_proxy"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// StoreConfig selects and configures the user store.
type StoreConfig struct {
	Driver      string `koanf:"driver" yaml:"driver"`
	SQLitePath  string `koanf:"sqlite_path" yaml:"sqlite_path"`
	AutoMigrate bool   `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// ResetConfig configures password reset codes.
type ResetConfig struct {
	CodeTTL time.Duration `koanf:"code_ttl" yaml:"code_ttl"`
}

// RateLimitConfig configures the recovery endpoint limiter.
type RateLimitConfig struct {
	Window time.Duration `koanf:"window" yaml:"window"`
	Max    int           `koanf:"max" yaml:"max"`
	Exempt []string      `koanf:"exempt" yaml:"exempt"`
}

// HasherConfig is the argon2id work factor.
type HasherConfig struct {
	Time      uint32 `koanf:"time" yaml:"time"`
	MemoryKiB uint32 `koanf:"memory_kib" yaml:"memory_kib"`
	Threads   uint8  `koanf:"threads" yaml:"threads"`
}

// MailConfig selects and configures email delivery.
type MailConfig struct {
	Driver   string `koanf:"driver" yaml:"driver"`
	From     string `koanf:"from" yaml:"from"`
	SMTPHost string `koanf:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port" yaml:"smtp_port"`
	LogBody  bool   `koanf:"log_body" yaml:"log_body"`
}

// TracingConfig configures OTLP trace export. An empty Endpoint disables it.
type TracingConfig struct {
	Endpoint    string  `koanf:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `koanf:"sample_ratio" yaml:"sample_ratio"`
}

// Secrets are read only from the environment.
type Secrets struct {
	DatabaseURL         string `env:"DATABASE_URL" yaml:"database_url"`
	PostmarkServerToken string `env:"POSTMARK_SERVER_TOKEN" yaml:"postmark_server_token"`
	SMTPUsername        string `env:"SMTP_USERNAME" yaml:"smtp_username"`
	SMTPPassword        string `env:"SMTP_PASSWORD" yaml:"smtp_password"`
}

// Mail drivers.
const (
	mailDriverLog      = "log"
	mailDriverPostmark = "postmark"
	mailDriverSMTP     = "smtp"
)

// Default values for config flags.
const (
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
	defaultLogLevel    = "info"
	defaultMailFrom    = "no-reply@localhost"
	defaultSMTPPort    = 587
	defaultEnvFile     = ".env"
)

// Flags that locate configuration rather than carry it.
const (
	flagConfig  = "config"
	flagEnvFile = "env-file"
)

// flagKeys maps config flags to their koanf keys.
var flagKeys = map[string]string{
	"http-addr":           "http.addr",
	"trust-proxy":         "http.trust_proxy",
	"metrics-addr":        "metrics.addr",
	"log-format":          "log.format",
	"log-level":           "log.level",
	"store":               "store.driver",
	"sqlite-path":         "store.sqlite_path",
	"auto-migrate":        "store.auto_migrate",
	"reset-code-ttl":      "reset.code_ttl",
	"ratelimit-window":    "ratelimit.window",
	"ratelimit-max":       "ratelimit.max",
	"ratelimit-exempt":    "ratelimit.exempt",
	"argon2-time":         "hasher.time",
	"argon2-memory":       "hasher.memory_kib",
	"argon2-threads":      "hasher.threads",
	"mail-driver":         "mail.driver",
	"mail-from":           "mail.from",
	"mail-log-body":       "mail.log_body",
	"smtp-host":           "mail.smtp_host",
	"smtp-port":           "mail.smtp_port",
	"tracing-endpoint":    "tracing.endpoint",
	"tracing-sample-rate": "tracing.sample_ratio",
}

// addConfigFlags registers the configuration flags.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.String(flagConfig, "", "config file path (default: XDG_CONFIG_HOME/accountd/config.yaml if present)")
	flags.String(flagEnvFile, defaultEnvFile, "dotenv file to load secrets from if present")

	flags.String("http-addr", defaultHTTPAddr, "API listen address")
	flags.Bool("trust-proxy", false, "rate limit by the first X-Forwarded-For hop")
	flags.String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", defaultLogFormat, "log format (json or text)")
	flags.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("store", string(store.DriverSQLite), "user store driver (sqlite or postgres)")
	flags.String("sqlite-path", "", "SQLite database file (default: XDG_DATA_HOME/accountd/accountd.db)")
	flags.Bool("auto-migrate", true, "apply pending migrations on serve")
	flags.Duration("reset-code-ttl", auth.DefaultResetCodeTTL, "how long a reset code stays valid")
	flags.Duration("ratelimit-window", auth.DefaultRateLimitWindow, "recovery rate limit window")
	flags.Int("ratelimit-max", auth.DefaultRateLimitMax, "recovery requests allowed per client per window")
	flags.StringSlice("ratelimit-exempt", nil, "glob patterns of client keys never throttled")
	flags.Uint32("argon2-time", auth.DefaultArgon2Time, "argon2id iterations")
	flags.Uint32("argon2-memory", auth.DefaultArgon2Memory, "argon2id memory in KiB")
	flags.Uint8("argon2-threads", auth.DefaultArgon2Threads, "argon2id parallelism")
	flags.String("mail-driver", mailDriverLog, "email delivery (log, postmark, or smtp)")
	flags.String("mail-from", defaultMailFrom, "sender address")
	flags.Bool("mail-log-body", false, "include message bodies when the log driver is used")
	flags.String("smtp-host", "", "SMTP server host")
	flags.Int("smtp-port", defaultSMTPPort, "SMTP server port")
	flags.String("tracing-endpoint", "", "OTLP/HTTP traces endpoint (empty = disabled)")
	flags.Float64("tracing-sample-rate", 1, "fraction of traces sampled")
}

// loadConfig builds the effective configuration. Precedence, lowest first:
// flag defaults, the config file, explicitly set flags. Secrets come from
// the environment after the dotenv file is loaded.
func loadConfig(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := configPath(flags)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	envFile, err := flags.GetString(flagEnvFile)
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("flag", flagEnvFile).Wrap(err)
	}
	if err := loadSecrets(envFile, &cfg.Secrets); err != nil {
		return nil, err
	}

	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = xdg.DatabaseFile()
	}

	return cfg, nil
}

// configPath returns the config file to read. An explicit --config must
// exist; the XDG default is used only when present.
func configPath(flags *pflag.FlagSet) (string, error) {
	path, err := flags.GetString(flagConfig)
	if err != nil {
		return "", oops.Code("CONFIG_LOAD_FAILED").With("flag", flagConfig).Wrap(err)
	}
	if path != "" {
		return path, nil
	}
	if _, err := os.Stat(xdg.ConfigFile()); err == nil {
		return xdg.ConfigFile(), nil
	}
	return "", nil
}

// loadSecrets reads secrets from the environment. A dotenv file, if present,
// fills variables that are not already set.
func loadSecrets(envFile string, secrets *Secrets) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return oops.Code("CONFIG_LOAD_FAILED").With("env_file", envFile).Wrap(err)
		}
	}
	if err := env.Parse(secrets); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("operation", "parse environment").Wrap(err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return configInvalid("http.addr", "is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return configInvalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return configInvalid("log.level", "unknown level %q", c.Log.Level)
	}

	driver, err := store.ParseDriver(c.Store.Driver)
	if err != nil {
		return configInvalid("store.driver", "must be 'sqlite' or 'postgres', got %q", c.Store.Driver)
	}
	if driver == store.DriverPostgres && c.Secrets.DatabaseURL == "" {
		return configInvalid("DATABASE_URL", "is required for the postgres store")
	}

	if c.Reset.CodeTTL <= 0 {
		return configInvalid("reset.code_ttl", "must be positive, got %s", c.Reset.CodeTTL)
	}
	if c.RateLimit.Window <= 0 {
		return configInvalid("ratelimit.window", "must be positive, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.Max <= 0 {
		return configInvalid("ratelimit.max", "must be positive, got %d", c.RateLimit.Max)
	}

	switch c.Mail.Driver {
	case mailDriverLog:
	case mailDriverPostmark:
		if c.Secrets.PostmarkServerToken == "" {
			return configInvalid("POSTMARK_SERVER_TOKEN", "is required for the postmark mail driver")
		}
	case mailDriverSMTP:
		if c.Mail.SMTPHost == "" {
			return configInvalid("mail.smtp_host", "is required for the smtp mail driver")
		}
	default:
		return configInvalid("mail.driver", "must be 'log', 'postmark', or 'smtp', got %q", c.Mail.Driver)
	}
	if c.Mail.Driver != mailDriverLog && c.Mail.From == "" {
		return configInvalid("mail.from", "is required")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return configInvalid("tracing.sample_ratio", "must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}
	return nil
}

func configInvalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}

// masked returns a copy of the configuration with secrets replaced.
func (c Config) masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return logging.Redacted
	}
	c.Secrets = Secrets{
		DatabaseURL:         mask(c.Secrets.DatabaseURL),
		PostmarkServerToken: mask(c.Secrets.PostmarkServerToken),
		SMTPUsername:        mask(c.Secrets.SMTPUsername),
		SMTPPassword:        mask(c.Secrets.SMTPPassword),
	}
	return c
}
