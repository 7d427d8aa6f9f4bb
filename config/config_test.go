package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if len(cfg.Tickers) != 3 || cfg.Tickers[0] != "RATU.JK" {
		t.Errorf("default tickers: %v", cfg.Tickers)
	}
	if cfg.Interval != "1d" {
		t.Errorf("default interval: %q", cfg.Interval)
	}
	if cfg.Refresh.Every != 5*time.Minute {
		t.Errorf("default refresh: %s", cfg.Refresh.Every)
	}
	if cfg.Source.Kind != "yahoo" {
		t.Errorf("default source: %q", cfg.Source.Kind)
	}
	if p := cfg.Params(); p.MAShort != 5 || p.SuperTrendMult != 3.0 {
		t.Errorf("default params: %+v", p)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeYAML(t, `
tickers: [GOTO.JK, ASII.JK]
interval: 1h
refresh:
  every: 1m
  market_hours_only: true
source:
  kind: mock
indicators:
  ma_short: 7
  rsi_period: 21
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	if len(cfg.Tickers) != 2 || cfg.Tickers[1] != "ASII.JK" {
		t.Errorf("tickers: %v", cfg.Tickers)
	}
	if cfg.Interval != "1h" || cfg.Refresh.Every != time.Minute {
		t.Errorf("interval=%q refresh=%s", cfg.Interval, cfg.Refresh.Every)
	}
	if !cfg.Refresh.MarketHours {
		t.Error("market_hours_only not picked up")
	}
	p := cfg.Params()
	if p.MAShort != 7 || p.RSIPeriod != 21 {
		t.Errorf("params: %+v", p)
	}
	// Unset fields still fall back.
	if p.MALong != 10 {
		t.Errorf("ma_long default: %d", p.MALong)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeYAML(t, "interval: 1d\ntickers: [RATU.JK]\n")
	t.Setenv("INTERVAL", "15m")
	t.Setenv("TICKERS", "BKSL.JK,IMPC.JK")
	t.Setenv("REFRESH_EVERY", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Interval != "15m" {
		t.Errorf("interval: %q", cfg.Interval)
	}
	if len(cfg.Tickers) != 2 || cfg.Tickers[0] != "BKSL.JK" {
		t.Errorf("tickers: %v", cfg.Tickers)
	}
	if cfg.Refresh.Every != 30*time.Second {
		t.Errorf("refresh: %s", cfg.Refresh.Every)
	}
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	cfg := base()
	cfg.Interval = "3h"
	if err := cfg.Validate(); err == nil {
		t.Error("bad interval accepted")
	}

	cfg = base()
	cfg.Tickers = []string{"RATU.JK", ""}
	if err := cfg.Validate(); err == nil {
		t.Error("empty ticker symbol accepted")
	}

	cfg = base()
	cfg.Tickers = []string{"  "}
	if err := cfg.Validate(); err == nil {
		t.Error("whitespace ticker symbol accepted")
	}

	cfg = base()
	cfg.Source.Kind = "bloomberg"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown source accepted")
	}

	cfg = base()
	cfg.Source.Kind = "smartapi"
	if err := cfg.Validate(); err == nil {
		t.Error("smartapi without credentials accepted")
	}

	cfg = base()
	cfg.Source.Kind = "archive"
	if err := cfg.Validate(); err == nil {
		t.Error("archive source without archive.enabled accepted")
	}

	cfg = base()
	cfg.Refresh.Every = 100 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second refresh accepted")
	}

	cfg = base()
	cfg.Indicators.RSIPeriod = -14
	if err := cfg.Validate(); err == nil {
		t.Error("negative indicator period accepted")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeYAML(t, "tickers: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
