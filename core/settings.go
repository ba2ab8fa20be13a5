package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the main application configuration, loaded from YAML.
type Settings struct {
	Symbols   []string `yaml:"symbols"`
	Timeframe string   `yaml:"timeframe"`

	Strategy  StrategySettings  `yaml:"strategy"`
	Tiers     TierSet           `yaml:"tiers"`
	Allocator AllocatorSettings `yaml:"allocator"`
	Bot       BotSettings       `yaml:"bot"`
	Backtest  BacktestSettings  `yaml:"backtest"`
	Storage   StorageSettings   `yaml:"storage"`
	Telegram  TelegramSettings  `yaml:"telegram"`
	Binance   BinanceSettings   `yaml:"binance"`
}

// StrategySettings holds the scoring rule parameters.
type StrategySettings struct {
	EntryThreshold     float64 `yaml:"entry_threshold"`     // minimum score for a BuySetup
	SecondaryThreshold float64 `yaml:"secondary_threshold"` // minimum score for a secondary entry
	WarmupBars         int     `yaml:"warmup_bars"`         // bars before first eligible entry check
	TouchTolerance     float64 `yaml:"touch_tolerance"`     // approach band around EMA21/SMA50
	DemandZoneFactor   float64 `yaml:"demand_zone_factor"`  // close <= 21-bar low * factor
	StallWindow        int     `yaml:"stall_window"`
	StallThreshold     float64 `yaml:"stall_threshold"`
	TrendFloorFactor   float64 `yaml:"trend_floor_factor"` // Avoid below SMA200 * factor
	StructureFactor    float64 `yaml:"structure_factor"`   // EMA21 >= SMA50 * factor
	WeeklyEMAPeriod    int     `yaml:"weekly_ema_period"`
	MonthlyEMAPeriod   int     `yaml:"monthly_ema_period"`
}

// TierSettings holds the stop, target and time-exit parameters for one tier.
type TierSettings struct {
	InitialStopPct float64    `yaml:"initial_stop_pct"` // entry * (1 - pct)
	Tier1Trigger   float64    `yaml:"tier1_trigger"`    // high >= entry * (1 + trigger)
	Tier1StopPct   float64    `yaml:"tier1_stop_pct"`
	Tier2Trigger   float64    `yaml:"tier2_trigger"`
	Tier2StopPct   float64    `yaml:"tier2_stop_pct"`
	TargetPcts     [3]float64 `yaml:"target_pcts"` // T1/T2/T3 above entry
	MaxHoldBars    int        `yaml:"max_hold_bars"`
}

// TierSet maps both tiers to their parameters.
type TierSet struct {
	Primary   TierSettings `yaml:"primary"`
	Secondary TierSettings `yaml:"secondary"`
}

// ForTier returns the settings for a tier.
func (t TierSet) ForTier(tier Tier) TierSettings {
	if tier == TierSecondary {
		return t.Secondary
	}
	return t.Primary
}

// AllocatorSettings holds capital allocation limits.
type AllocatorSettings struct {
	PerTradePct       float64 `yaml:"per_trade_pct"`       // fraction of equity per trade
	MaxUtilizationPct float64 `yaml:"max_utilization_pct"` // ceiling on aggregate exposure
	DynamicLimit      bool    `yaml:"dynamic_limit"`
	SafetyBuffer      int     `yaml:"safety_buffer"`
	StaticMaxOpen     int     `yaml:"static_max_open"`
	DailyEntryCap     int     `yaml:"daily_entry_cap"`
}

// BotSettings holds the live loop parameters.
type BotSettings struct {
	Interval string `yaml:"interval"` // cycle interval, e.g. 24h
	Lookback int    `yaml:"lookback"` // candles fetched per symbol per cycle
}

// BacktestSettings holds replay parameters.
type BacktestSettings struct {
	DataDir      string  `yaml:"data_dir"`
	StartCapital float64 `yaml:"start_capital"`
}

// StorageSettings selects the position store backend.
type StorageSettings struct {
	Backend string `yaml:"backend"` // buntdb | sqlite | memory
	Path    string `yaml:"path"`
}

// TelegramSettings holds notification configuration.
type TelegramSettings struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Users   []int  `yaml:"users"`
}

// BinanceSettings holds live exchange credentials.
type BinanceSettings struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Quote     string `yaml:"quote"` // quote currency used for equity, e.g. USDT
}

// DefaultSettings returns the rule-set defaults. Values loaded from YAML
// override these field by field.
func DefaultSettings() Settings {
	tier := TierSettings{
		InitialStopPct: 0.17,
		Tier1Trigger:   0.05,
		Tier1StopPct:   0.09,
		Tier2Trigger:   0.10,
		Tier2StopPct:   0.01,
		TargetPcts:     [3]float64{0.10, 0.15, 0.20},
		MaxHoldBars:    21,
	}

	return Settings{
		Timeframe: "1d",
		Strategy: StrategySettings{
			EntryThreshold:     4,
			SecondaryThreshold: 3,
			WarmupBars:         50,
			TouchTolerance:     0.025,
			DemandZoneFactor:   1.035,
			StallWindow:        8,
			StallThreshold:     0.05,
			TrendFloorFactor:   0.90,
			StructureFactor:    0.975,
			WeeklyEMAPeriod:    21,
			MonthlyEMAPeriod:   10,
		},
		Tiers: TierSet{Primary: tier, Secondary: tier},
		Allocator: AllocatorSettings{
			PerTradePct:       0.10,
			MaxUtilizationPct: 1.0,
			DynamicLimit:      true,
			SafetyBuffer:      1,
			StaticMaxOpen:     8,
			DailyEntryCap:     3,
		},
		Bot:      BotSettings{Interval: "24h", Lookback: 250},
		Backtest: BacktestSettings{StartCapital: 100_000},
		Storage:  StorageSettings{Backend: "buntdb", Path: "swingline.db"},
		Binance:  BinanceSettings{Quote: "USDT"},
	}
}

// LoadSettings reads a YAML settings file over the defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()

	raw, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings: %w", err)
	}

	if len(settings.Symbols) == 0 {
		return settings, fmt.Errorf("no symbols configured")
	}

	return settings, nil
}
