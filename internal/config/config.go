package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Cron    CronConfig    `mapstructure:"cron"`
	Fyers   FyersConfig   `mapstructure:"fyers"`
	Quotes  QuotesConfig  `mapstructure:"quotes"`
	Stream  StreamConfig  `mapstructure:"stream"`
	History HistoryConfig `mapstructure:"history"`
	Journal JournalConfig `mapstructure:"journal"`
	Session SessionConfig `mapstructure:"session"`

	// Symbols overrides the built-in NIFTY 50 universe when non-empty.
	Symbols []string `mapstructure:"symbols"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

// ServerConfig holds the listen address and an optional shared bearer
// token. An empty token leaves the API open.
type ServerConfig struct {
	HTTPAddr  string `mapstructure:"http_addr"`
	AuthToken string `mapstructure:"auth_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig is optional: an empty DSN runs the engine without persistence.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// FyersConfig holds the provider endpoints and credentials. Credentials
// normally come from the environment (NF_FYERS_CLIENT_ID,
// NF_FYERS_ACCESS_TOKEN); client_id_file / access_token_file point at
// secret files and take precedence when set.
type FyersConfig struct {
	ClientID        string        `mapstructure:"client_id"`
	AccessToken     string        `mapstructure:"access_token"`
	ClientIDFile    string        `mapstructure:"client_id_file"`
	AccessTokenFile string        `mapstructure:"access_token_file"`
	BaseURL         string        `mapstructure:"base_url"`
	SocketURL       string        `mapstructure:"socket_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// resolveCredentialFiles overrides the inline credentials with the file
// contents when client_id_file / access_token_file are set. Contents are
// whitespace-trimmed.
func (c *FyersConfig) resolveCredentialFiles() error {
	if c.ClientIDFile != "" {
		raw, err := os.ReadFile(c.ClientIDFile)
		if err != nil {
			return fmt.Errorf("read fyers client id file: %w", err)
		}
		c.ClientID = strings.TrimSpace(string(raw))
	}
	if c.AccessTokenFile != "" {
		raw, err := os.ReadFile(c.AccessTokenFile)
		if err != nil {
			return fmt.Errorf("read fyers access token file: %w", err)
		}
		c.AccessToken = strings.TrimSpace(string(raw))
	}
	return nil
}

type QuotesConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
}

type StreamConfig struct {
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type HistoryConfig struct {
	Schedule     string        `mapstructure:"schedule"`
	LookbackDays int           `mapstructure:"lookback_days"`
	Pause        time.Duration `mapstructure:"pause"`
	ErrorPause   time.Duration `mapstructure:"error_pause"`
	Always       bool          `mapstructure:"always"`
}

type JournalConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SessionConfig describes the exchange trading window in its local zone.
type SessionConfig struct {
	Open     string `mapstructure:"open"`
	Close    string `mapstructure:"close"`
	Timezone string `mapstructure:"timezone"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.auth_token", "")
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
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("fyers.client_id", "")
	v.SetDefault("fyers.access_token", "")
	v.SetDefault("fyers.client_id_file", "")
	v.SetDefault("fyers.access_token_file", "")
	v.SetDefault("fyers.base_url", "https://api-t1.fyers.in")
	v.SetDefault("fyers.socket_url", "wss://api-t1.fyers.in/data/stream")
	v.SetDefault("fyers.timeout", "10s")
	v.SetDefault("quotes.poll_interval", "5s")
	v.SetDefault("quotes.stale_after", "30s")
	v.SetDefault("stream.reconnect_wait", "5s")
	v.SetDefault("history.schedule", "@every 30m")
	v.SetDefault("history.lookback_days", 30)
	v.SetDefault("history.pause", "500ms")
	v.SetDefault("history.error_pause", "1s")
	v.SetDefault("history.always", false)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.schedule", "@every 1m")
	v.SetDefault("session.open", "09:15")
	v.SetDefault("session.close", "15:30")
	v.SetDefault("session.timezone", "Asia/Kolkata")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Fyers.resolveCredentialFiles(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
