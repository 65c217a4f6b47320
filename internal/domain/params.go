package domain

import (
	"fmt"
	"math"
)

// StrategyParams is the immutable parameter set of one backtest run.
// It is passed by value to every component; nothing mutates it after a run starts.
type StrategyParams struct {
	// Capital and risk
	InitialCapital       float64 `yaml:"initial_capital" json:"initial_capital"`
	RiskPerTrade         float64 `yaml:"risk_per_trade" json:"risk_per_trade"` // fraction of initial capital
	MaxPositions         int     `yaml:"max_positions" json:"max_positions"`
	MaxContracts         int     `yaml:"max_contracts" json:"max_contracts"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses" json:"max_consecutive_losses"`
	MaxDailyLoss         float64 `yaml:"max_daily_loss" json:"max_daily_loss"`
	AdaptiveSizing       bool    `yaml:"adaptive_position_sizing" json:"adaptive_position_sizing"`
	HighQualitySizeUp    float64 `yaml:"high_quality_size_up" json:"high_quality_size_up"`
	CommissionRate       float64 `yaml:"commission_rate" json:"commission_rate"` // per side

	// Entry signal
	MinHistoryBars      int     `yaml:"min_history_bars" json:"min_history_bars"`
	VolatilityThreshold float64 `yaml:"volatility_threshold" json:"volatility_threshold"` // percentile units
	MinSignalQuality    float64 `yaml:"min_signal_quality" json:"min_signal_quality"`
	ConsolidationMin    float64 `yaml:"consolidation_min" json:"consolidation_min"`
	MaxPriceRange       float64 `yaml:"max_price_range" json:"max_price_range"`
	RangeLookback       int     `yaml:"range_lookback" json:"range_lookback"`
	RSIMin              float64 `yaml:"rsi_min" json:"rsi_min"`
	RSIMax              float64 `yaml:"rsi_max" json:"rsi_max"`
	MinVolumeRatio      float64 `yaml:"min_volume_ratio" json:"min_volume_ratio"`
	VolMomentumLookback int     `yaml:"vol_momentum_lookback" json:"vol_momentum_lookback"`
	TrendFilter         bool    `yaml:"trend_filter" json:"trend_filter"`
	MaxTrendDivergence  float64 `yaml:"max_trend_divergence" json:"max_trend_divergence"`
	PricePositionMin    float64 `yaml:"price_position_min" json:"price_position_min"`
	PricePositionMax    float64 `yaml:"price_position_max" json:"price_position_max"`
	HighConfidence      float64 `yaml:"high_confidence" json:"high_confidence"`
	MediumConfidence    float64 `yaml:"medium_confidence" json:"medium_confidence"`

	// Pricing
	DefaultExpiryDays float64 `yaml:"default_expiry_days" json:"default_expiry_days"`
	InterestRate      float64 `yaml:"interest_rate" json:"interest_rate"`
	MinVolatility     float64 `yaml:"min_volatility" json:"min_volatility"`
	MaxVolatility     float64 `yaml:"max_volatility" json:"max_volatility"`

	// Exits
	TakeProfitMultiplier      float64 `yaml:"take_profit_multiplier" json:"take_profit_multiplier"`
	StopLossMultiplier        float64 `yaml:"stop_loss_multiplier" json:"stop_loss_multiplier"`
	DynamicStopLoss           bool    `yaml:"dynamic_stop_loss" json:"dynamic_stop_loss"`
	TradeTimeoutHours         float64 `yaml:"trade_timeout_hours" json:"trade_timeout_hours"`
	HighConfidenceTimeoutMult float64 `yaml:"high_confidence_timeout_mult" json:"high_confidence_timeout_mult"`
	MinTimeToExpiry           float64 `yaml:"min_time_to_expiry" json:"min_time_to_expiry"` // years
	TimeDecayLossPct          float64 `yaml:"time_decay_loss_pct" json:"time_decay_loss_pct"`
	VolCollapseRatio          float64 `yaml:"vol_collapse_ratio" json:"vol_collapse_ratio"`

	// Hedging (advisory)
	EnableHedging        bool    `yaml:"enable_hedging" json:"enable_hedging"`
	HedgeThreshold       float64 `yaml:"hedge_threshold" json:"hedge_threshold"`
	MaxHedgeRatio        float64 `yaml:"max_hedge_ratio" json:"max_hedge_ratio"`
	HedgeHighUrgencyMove float64 `yaml:"hedge_high_urgency_move" json:"hedge_high_urgency_move"`
	VolatilityHedge      bool    `yaml:"volatility_hedge" json:"volatility_hedge"`
	VolDropHedgeTrigger  float64 `yaml:"vol_drop_hedge_trigger" json:"vol_drop_hedge_trigger"`
	VolDropHedgeBoost    float64 `yaml:"vol_drop_hedge_boost" json:"vol_drop_hedge_boost"`
}

// DefaultParams returns the BALANCED parameter set.
func DefaultParams() StrategyParams {
	return StrategyParams{
		InitialCapital:       10000,
		RiskPerTrade:         0.012,
		MaxPositions:         3,
		MaxContracts:         20,
		MaxConsecutiveLosses: 3,
		MaxDailyLoss:         0.05,
		AdaptiveSizing:       true,
		HighQualitySizeUp:    0.85,
		CommissionRate:       0.001,

		MinHistoryBars:      100,
		VolatilityThreshold: 55,
		MinSignalQuality:    0.75,
		ConsolidationMin:    0.02,
		MaxPriceRange:       0.06,
		RangeLookback:       20,
		RSIMin:              35,
		RSIMax:              65,
		MinVolumeRatio:      1.2,
		VolMomentumLookback: 10,
		TrendFilter:         true,
		MaxTrendDivergence:  0.03,
		PricePositionMin:    0.2,
		PricePositionMax:    0.8,
		HighConfidence:      0.85,
		MediumConfidence:    0.75,

		DefaultExpiryDays: 30,
		InterestRate:      0.02,
		MinVolatility:     0.1,
		MaxVolatility:     3.0,

		TakeProfitMultiplier:      1.3,
		StopLossMultiplier:        0.6,
		DynamicStopLoss:           true,
		TradeTimeoutHours:         36,
		HighConfidenceTimeoutMult: 1.5,
		MinTimeToExpiry:           0.05,
		TimeDecayLossPct:          -30,
		VolCollapseRatio:          0.4,

		EnableHedging:        true,
		HedgeThreshold:       0.025,
		MaxHedgeRatio:        0.4,
		HedgeHighUrgencyMove: 0.08,
		VolatilityHedge:      true,
		VolDropHedgeTrigger:  -0.2,
		VolDropHedgeBoost:    1.5,
	}
}

// MaxRiskPerTrade is the premium budget of a single position.
func (p StrategyParams) MaxRiskPerTrade() float64 {
	return p.InitialCapital * p.RiskPerTrade
}

// TakeProfitPct is the pnl percentage that triggers TAKE_PROFIT.
func (p StrategyParams) TakeProfitPct() float64 {
	return p.TakeProfitMultiplier*100 - 100
}

// StopLossPct is the (negative) pnl percentage that triggers STOP_LOSS before tightening.
func (p StrategyParams) StopLossPct() float64 {
	return -p.StopLossMultiplier * 100
}

// Validate checks every rule and reports all violations at once.
func (p StrategyParams) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if p.TakeProfitMultiplier <= p.StopLossMultiplier {
		add("take_profit_multiplier (%.2f) must be greater than stop_loss_multiplier (%.2f)",
			p.TakeProfitMultiplier, p.StopLossMultiplier)
	}
	if p.RiskPerTrade <= 0 || p.RiskPerTrade > 0.1 {
		add("risk_per_trade (%.4f) must be in (0, 0.1]", p.RiskPerTrade)
	}
	if p.MaxPositions < 1 {
		add("max_positions (%d) must be >= 1", p.MaxPositions)
	}
	if !(p.InitialCapital > 0) || math.IsInf(p.InitialCapital, 0) {
		add("initial_capital (%.2f) must be positive", p.InitialCapital)
	}
	if p.MaxContracts < 1 {
		add("max_contracts (%d) must be >= 1", p.MaxContracts)
	}
	if p.MinVolatility <= 0 || p.MinVolatility > p.MaxVolatility {
		add("volatility band [%.3f, %.3f] is invalid", p.MinVolatility, p.MaxVolatility)
	}
	if p.DefaultExpiryDays <= 0 {
		add("default_expiry_days (%.1f) must be positive", p.DefaultExpiryDays)
	}
	if p.InterestRate < 0 {
		add("interest_rate (%.4f) must be >= 0", p.InterestRate)
	}
	if p.RangeLookback < 1 || p.VolMomentumLookback < 1 {
		add("range_lookback and vol_momentum_lookback must be >= 1")
	}
	if p.MinHistoryBars < p.RangeLookback || p.MinHistoryBars < p.VolMomentumLookback {
		add("min_history_bars (%d) must cover the signal lookbacks", p.MinHistoryBars)
	}
	if p.CommissionRate < 0 || p.CommissionRate >= 0.05 {
		add("commission_rate (%.4f) must be in [0, 0.05)", p.CommissionRate)
	}
	if p.MaxHedgeRatio <= 0 || p.MaxHedgeRatio > 1 {
		add("max_hedge_ratio (%.2f) must be in (0, 1]", p.MaxHedgeRatio)
	}
	if p.MinSignalQuality < 0 || p.MinSignalQuality > 1 {
		add("min_signal_quality (%.2f) must be in [0, 1]", p.MinSignalQuality)
	}
	if p.MaxConsecutiveLosses < 1 {
		add("max_consecutive_losses (%d) must be >= 1", p.MaxConsecutiveLosses)
	}
	if p.TradeTimeoutHours <= 0 {
		add("trade_timeout_hours (%.1f) must be positive", p.TradeTimeoutHours)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Warnings returns non-fatal remarks about risky but valid values.
func (p StrategyParams) Warnings() []string {
	var w []string
	if p.VolatilityThreshold < 30 {
		w = append(w, fmt.Sprintf("volatility_threshold is very low: %.0f", p.VolatilityThreshold))
	}
	if p.MaxHedgeRatio > 0.5 {
		w = append(w, fmt.Sprintf("max_hedge_ratio is high: %.1f%%", p.MaxHedgeRatio*100))
	}
	if p.RiskPerTrade > 0.05 {
		w = append(w, fmt.Sprintf("risk_per_trade is high: %.1f%%", p.RiskPerTrade*100))
	}
	return w
}
