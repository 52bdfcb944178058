package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataSource  string `yaml:"data_source"` // STATIC or LIVE
	Exchange    string `yaml:"exchange"`
	PollSeconds int    `yaml:"poll_seconds"`
	Session     struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"session"`
	Universe struct {
		Static []string `yaml:"static"`
		CSVURL string   `yaml:"csv_url"`
	} `yaml:"universe"`
	Scan struct {
		Strategy      string `yaml:"strategy"` // standard, sniper, golden, all
		BatchSize     int    `yaml:"batch_size"`
		Workers       int    `yaml:"workers"`
		Lookback      int    `yaml:"lookback"`
		RetryAttempts int    `yaml:"retry_attempts"`
		RetrySeconds  int    `yaml:"retry_seconds"`
		PauseSeconds  int    `yaml:"pause_seconds"`
	} `yaml:"scan"`
	Buffer struct {
		MinCandidates  int `yaml:"min_candidates"`
		TimeoutMinutes int `yaml:"timeout_minutes"`
		RecentSignals  int `yaml:"recent_signals"`
	} `yaml:"buffer"`
	Risk struct {
		MaxTradesPerDay    int     `yaml:"max_trades_per_day"`
		MaxCapitalPerTrade float64 `yaml:"max_capital_per_trade"`
		RiskPerTrade       float64 `yaml:"risk_per_trade"`
		RiskMultiple       float64 `yaml:"risk_multiple"`
		MinATRPct          float64 `yaml:"min_atr_pct"`
	} `yaml:"risk"`
	Strategy struct {
		SwingWindow       int     `yaml:"swing_window"`
		FastEMA           int     `yaml:"fast_ema"`
		SlowEMA           int     `yaml:"slow_ema"`
		LongEMA           int     `yaml:"long_ema"`
		RSIPeriod         int     `yaml:"rsi_period"`
		VolumeWindow      int     `yaml:"volume_window"`
		SniperVolumeRatio float64 `yaml:"sniper_volume_ratio"`
	} `yaml:"strategy"`
	DeepScan struct {
		Enabled bool     `yaml:"enabled"`
		Times   []string `yaml:"times"` // cron-style "HH:MM" entries
	} `yaml:"deep_scan"`
	DB struct {
		Path string `yaml:"path"`
	} `yaml:"db"`
	Log struct {
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"log"`
}

func (c *Config) Validate() error {
	if c.DataSource != "STATIC" && c.DataSource != "LIVE" {
		return fmt.Errorf("invalid data_source '%s': must be 'STATIC' or 'LIVE'", c.DataSource)
	}
	switch c.Scan.Strategy {
	case "standard", "sniper", "golden", "all":
	default:
		return fmt.Errorf("scan.strategy must be 'standard', 'sniper', 'golden' or 'all', got '%s'", c.Scan.Strategy)
	}
	if c.Risk.MaxTradesPerDay < 1 {
		return fmt.Errorf("risk.max_trades_per_day must be at least 1, got %d", c.Risk.MaxTradesPerDay)
	}
	if c.Risk.RiskPerTrade <= 0 {
		return fmt.Errorf("risk.risk_per_trade must be positive, got %.2f", c.Risk.RiskPerTrade)
	}
	if c.Risk.MaxCapitalPerTrade <= 0 {
		return fmt.Errorf("risk.max_capital_per_trade must be positive, got %.2f", c.Risk.MaxCapitalPerTrade)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.DataSource == "" {
		c.DataSource = "STATIC"
	}
	if c.Exchange == "" {
		c.Exchange = "NSE"
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.Session.Start == "" {
		c.Session.Start = "09:15"
	}
	if c.Session.End == "" {
		c.Session.End = "15:30"
	}
	if c.Scan.Strategy == "" {
		c.Scan.Strategy = "standard"
	}
	if c.Buffer.MinCandidates == 0 {
		c.Buffer.MinCandidates = 2
	}
	if c.Buffer.TimeoutMinutes == 0 {
		c.Buffer.TimeoutMinutes = 15
	}
	if c.Buffer.RecentSignals == 0 {
		c.Buffer.RecentSignals = 20
	}
	if c.Risk.MaxTradesPerDay == 0 {
		c.Risk.MaxTradesPerDay = 2
	}
	if c.Risk.MaxCapitalPerTrade == 0 {
		c.Risk.MaxCapitalPerTrade = 50000
	}
	if c.Risk.RiskPerTrade == 0 {
		c.Risk.RiskPerTrade = 1000
	}
	if c.Risk.RiskMultiple == 0 {
		c.Risk.RiskMultiple = 2.0
	}
	if c.Risk.MinATRPct == 0 {
		c.Risk.MinATRPct = 0.2
	}
	if c.DB.Path == "" {
		c.DB.Path = "trader.db"
	}
	if c.Log.RetentionDays == 0 {
		c.Log.RetentionDays = 30
	}
	if c.DeepScan.Enabled && len(c.DeepScan.Times) == 0 {
		c.DeepScan.Times = []string{"09:15", "12:00", "15:15"}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
