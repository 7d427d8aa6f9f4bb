// Package config loads application configuration from a YAML file with
// environment variable overrides. Environment always wins over the file so
// deployments can patch a shared config without editing it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"stockwatch/internal/indicator"
	"stockwatch/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Tickers  []string `yaml:"tickers" env:"TICKERS" envSeparator:","`
	Interval string   `yaml:"interval" env:"INTERVAL"`

	Refresh struct {
		Every        time.Duration `yaml:"every" env:"REFRESH_EVERY"`
		LookbackDays int           `yaml:"lookback_days" env:"LOOKBACK_DAYS"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT"`
		MarketHours  bool          `yaml:"market_hours_only" env:"MARKET_HOURS_ONLY"`
	} `yaml:"refresh"`

	// Source selects the bar provider: yahoo, mock, archive or smartapi.
	Source struct {
		Kind     string `yaml:"kind" env:"SOURCE"`
		YahooURL string `yaml:"yahoo_url" env:"YAHOO_URL"`
		Proxy    string `yaml:"proxy" env:"HTTPS_PROXY"`
	} `yaml:"source"`

	SmartAPI struct {
		APIKey     string `yaml:"api_key" env:"SMARTAPI_KEY"`
		ClientCode string `yaml:"client_code" env:"SMARTAPI_CLIENT_CODE"`
		Password   string `yaml:"password" env:"SMARTAPI_PASSWORD"`
		TOTPSecret string `yaml:"totp_secret" env:"SMARTAPI_TOTP_SECRET"`
	} `yaml:"smartapi"`

	HTTP struct {
		Addr        string `yaml:"addr" env:"HTTP_ADDR"`
		MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	} `yaml:"http"`

	Redis struct {
		Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED"`
		Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
		Password string        `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int           `yaml:"db" env:"REDIS_DB"`
		TTL      time.Duration `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`

	Archive struct {
		Enabled      bool   `yaml:"enabled" env:"ARCHIVE_ENABLED"`
		SQLitePath   string `yaml:"sqlite_path" env:"SQLITE_PATH"`
		Cron         string `yaml:"cron" env:"ARCHIVE_CRON"`
		LookbackDays int    `yaml:"lookback_days" env:"ARCHIVE_LOOKBACK_DAYS"`
	} `yaml:"archive"`

	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
		File  string `yaml:"file" env:"LOG_FILE"`
	} `yaml:"log"`

	Indicators struct {
		MAShort          int     `yaml:"ma_short" env:"MA_SHORT"`
		MALong           int     `yaml:"ma_long" env:"MA_LONG"`
		RSIPeriod        int     `yaml:"rsi_period" env:"RSI_PERIOD"`
		SuperTrendPeriod int     `yaml:"supertrend_period" env:"SUPERTREND_PERIOD"`
		SuperTrendMult   float64 `yaml:"supertrend_mult" env:"SUPERTREND_MULT"`
		VolShort         int     `yaml:"vol_short" env:"VOL_SHORT"`
		VolLong          int     `yaml:"vol_long" env:"VOL_LONG"`
	} `yaml:"indicators"`
}

// Load reads the YAML file at path (missing file is fine), applies env
// overrides, then fills remaining zero values with defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Tickers) == 0 {
		c.Tickers = []string{"RATU.JK", "IMPC.JK", "BKSL.JK"}
	}
	if c.Interval == "" {
		c.Interval = "1d"
	}
	if c.Refresh.Every == 0 {
		c.Refresh.Every = 5 * time.Minute
	}
	if c.Refresh.FetchTimeout == 0 {
		c.Refresh.FetchTimeout = 30 * time.Second
	}
	if c.Source.Kind == "" {
		c.Source.Kind = "yahoo"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.MetricsAddr == "" {
		c.HTTP.MetricsAddr = ":9091"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Archive.SQLitePath == "" {
		c.Archive.SQLitePath = "data/bars.db"
	}
	if c.Archive.LookbackDays == 0 {
		c.Archive.LookbackDays = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	def := indicator.DefaultParams()
	ind := &c.Indicators
	if ind.MAShort == 0 {
		ind.MAShort = def.MAShort
	}
	if ind.MALong == 0 {
		ind.MALong = def.MALong
	}
	if ind.RSIPeriod == 0 {
		ind.RSIPeriod = def.RSIPeriod
	}
	if ind.SuperTrendPeriod == 0 {
		ind.SuperTrendPeriod = def.SuperTrendPeriod
	}
	if ind.SuperTrendMult == 0 {
		ind.SuperTrendMult = def.SuperTrendMult
	}
	if ind.VolShort == 0 {
		ind.VolShort = def.VolShort
	}
	if ind.VolLong == 0 {
		ind.VolLong = def.VolLong
	}
}

// Validate checks cross-field constraints not expressible as defaults.
func (c *Config) Validate() error {
	for i, ticker := range c.Tickers {
		if strings.TrimSpace(ticker) == "" {
			return fmt.Errorf("tickers[%d] is empty", i)
		}
	}
	if !model.Interval(c.Interval).Valid() {
		return fmt.Errorf("interval %q is not supported", c.Interval)
	}
	switch c.Source.Kind {
	case "yahoo", "mock", "archive":
	case "smartapi":
		s := c.SmartAPI
		if s.APIKey == "" || s.ClientCode == "" || s.Password == "" || s.TOTPSecret == "" {
			return fmt.Errorf("smartapi source requires api_key, client_code, password and totp_secret")
		}
	default:
		return fmt.Errorf("source kind %q is not supported", c.Source.Kind)
	}
	if c.Source.Kind == "archive" && !c.Archive.Enabled {
		return fmt.Errorf("archive source requires archive.enabled")
	}
	if c.Refresh.Every < time.Second {
		return fmt.Errorf("refresh.every %s is below 1s", c.Refresh.Every)
	}
	p := c.Params()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	return nil
}

// Params assembles the indicator parameter set.
func (c *Config) Params() indicator.Params {
	def := indicator.DefaultParams()
	return indicator.Params{
		MAShort:          c.Indicators.MAShort,
		MALong:           c.Indicators.MALong,
		RSIPeriod:        c.Indicators.RSIPeriod,
		SuperTrendPeriod: c.Indicators.SuperTrendPeriod,
		SuperTrendMult:   c.Indicators.SuperTrendMult,
		VolShort:         c.Indicators.VolShort,
		VolLong:          c.Indicators.VolLong,
		OscStrong:        def.OscStrong,
		OscWeak:          def.OscWeak,
	}
}
