package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const envPrefix = "CIPHERPOLL"

type Config struct {
	AppName     string `mapstructure:"app_name"`
	Environment string `mapstructure:"environment"`
	NodeID      int64  `mapstructure:"node_id"`
	// Admins hold the operator role for the faucet and simulated time. Both are
	// open to every caller when the list is empty.
	Admins []string `mapstructure:"admins"`

	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Encryption  EncryptionConfig  `mapstructure:"encryption"`
	AccessPass  AccessPassConfig  `mapstructure:"access_pass"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Dispatcher  DispatcherConfig  `mapstructure:"dispatcher"`
	Log         LogConfig         `mapstructure:"log"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`

	// ConfigFile is the file viper actually read, empty when running on env only.
	ConfigFile string `mapstructure:"-"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// CORSAllowedOrigins enables browser access from the listed origins.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	// AllowSimulatedTime honors X-Simulated-Time outside production.
	AllowSimulatedTime bool `mapstructure:"allow_simulated_time"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	Metrics      bool   `mapstructure:"metrics"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type EncryptionConfig struct {
	Scheme  string `mapstructure:"scheme"` // paillier or plaintext
	KeyFile string `mapstructure:"key_file"`
	KeyBits int    `mapstructure:"key_bits"`
	// KeySealSecret seals the key file at rest with AES-GCM when set.
	KeySealSecret string `mapstructure:"key_seal_secret"`
}

type AccessPassConfig struct {
	// PrivateKey is a base64 ed25519 private key. An ephemeral key is used when empty.
	PrivateKey string `mapstructure:"private_key"`
	Issuer     string `mapstructure:"issuer"`
}

type PaymentConfig struct {
	DefaultToken  string `mapstructure:"default_token"`
	FaucetEnabled bool   `mapstructure:"faucet_enabled"`
}

type AggregationConfig struct {
	DecryptRetryAfter time.Duration `mapstructure:"decrypt_retry_after"`
}

type SchedulerConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type DispatcherConfig struct {
	// WebhookURL receives every outbox event as JSON. Empty disables the sink.
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
}

// TelemetryConfig drives OTLP export of traces and metrics. An empty
// Endpoint keeps everything in-process.
type TelemetryConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Protocol       string        `mapstructure:"protocol"` // http or grpc
	Insecure       bool          `mapstructure:"insecure"`
	SampleRatio    float64       `mapstructure:"sample_ratio"`
	MetricInterval time.Duration `mapstructure:"metric_interval"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var Module = fx.Module("config",
	fx.Provide(NewViper),
	fx.Provide(Load),
)

// NewViper builds the viper instance with defaults, an optional config file and
// CIPHERPOLL_* environment overrides. A .env file in the working directory is
// loaded into the process environment first when present.
func NewViper() (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("cipherpoll")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/cipherpoll")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Encryption.Scheme) {
	case "paillier", "plaintext":
	default:
		return fmt.Errorf("config: unsupported encryption scheme %q", c.Encryption.Scheme)
	}
	switch strings.ToLower(c.Telemetry.Protocol) {
	case "", "http", "grpc":
	default:
		return fmt.Errorf("config: unsupported telemetry protocol %q", c.Telemetry.Protocol)
	}
	if strings.TrimSpace(c.Payment.DefaultToken) == "" {
		return errors.New("config: payment.default_token is required")
	}
	return nil
}

// Watch re-reads the config file on change and hands the fresh Config to fn.
// It is a no-op when no config file was found.
func Watch(v *viper.Viper, fn func(Config, fsnotify.Event)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			return
		}
		fn(cfg, e)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "cipherpoll")
	v.SetDefault("environment", "development")
	v.SetDefault("node_id", 1)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allow_simulated_time", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:cipherpoll.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.metrics", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "cipherpoll.events")

	v.SetDefault("encryption.scheme", "paillier")
	v.SetDefault("encryption.key_file", "cipherpoll-key.json")
	v.SetDefault("encryption.key_bits", 2048)

	v.SetDefault("access_pass.issuer", "cipherpoll")

	v.SetDefault("payment.default_token", "USDC")
	v.SetDefault("payment.faucet_enabled", false)

	v.SetDefault("aggregation.decrypt_retry_after", "5m")

	v.SetDefault("scheduler.interval", "15s")
	v.SetDefault("scheduler.batch_size", 50)

	v.SetDefault("dispatcher.webhook_timeout", "10s")

	v.SetDefault("telemetry.protocol", "http")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.metric_interval", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}
