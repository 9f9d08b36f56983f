package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Gamma    GammaConfig    `mapstructure:"gamma"`
	Clob     ClobConfig     `mapstructure:"clob"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Cron     CronConfig     `mapstructure:"cron"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type TelegramConfig struct {
	Token        string  `mapstructure:"token"`
	AllowedChats []int64 `mapstructure:"allowed_chats"`
}

type GammaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Per-page attempt deadlines, tried in order until one succeeds.
	AttemptTimeouts []time.Duration `mapstructure:"attempt_timeouts"`
	ResolveTimeout  time.Duration   `mapstructure:"resolve_timeout"`
}

type ClobConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TradingConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	Address       string `mapstructure:"address"`
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
	APIPassphrase string `mapstructure:"api_passphrase"`
	// MaxInflight bounds concurrent order submissions across all sessions.
	MaxInflight int `mapstructure:"max_inflight"`
}

type ScanConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	PriceThreshold float64       `mapstructure:"price_threshold"`
	OrderSize      int           `mapstructure:"order_size"`
	SellTarget     float64       `mapstructure:"sell_target"`
	AutoPlace      bool          `mapstructure:"auto_place"`
	PageLimit      int           `mapstructure:"page_limit"`
	MaxPages       int           `mapstructure:"max_pages"`
	FallbackLimit  int           `mapstructure:"fallback_limit"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

type MonitorConfig struct {
	Duration     time.Duration `mapstructure:"duration"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Stream       bool          `mapstructure:"stream"`
	StreamURL    string        `mapstructure:"stream_url"`
}

type CronConfig struct {
	CatalogRefresh string `mapstructure:"catalog_refresh"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.allowed_chats", []int64{})
	v.SetDefault("gamma.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("gamma.attempt_timeouts", []string{"10s", "20s", "30s"})
	v.SetDefault("gamma.resolve_timeout", "20s")
	v.SetDefault("clob.base_url", "https://clob.polymarket.com")
	v.SetDefault("clob.timeout", "20s")
	v.SetDefault("trading.private_key", "")
	v.SetDefault("trading.address", "")
	v.SetDefault("trading.api_key", "")
	v.SetDefault("trading.api_secret", "")
	v.SetDefault("trading.api_passphrase", "")
	v.SetDefault("trading.max_inflight", 4)
	v.SetDefault("scan.interval", "60s")
	v.SetDefault("scan.price_threshold", 0.01)
	v.SetDefault("scan.order_size", 100)
	v.SetDefault("scan.sell_target", 0.05)
	v.SetDefault("scan.auto_place", false)
	v.SetDefault("scan.page_limit", 100)
	v.SetDefault("scan.max_pages", 50)
	v.SetDefault("scan.fallback_limit", 1000)
	v.SetDefault("scan.cache_ttl", "45s")
	v.SetDefault("monitor.duration", "5m")
	v.SetDefault("monitor.poll_interval", "10s")
	v.SetDefault("monitor.stream", false)
	v.SetDefault("monitor.stream_url", "")
	v.SetDefault("cron.catalog_refresh", "@every 1m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
