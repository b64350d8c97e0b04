// Package config provides configuration for the strategy engine.
//
// All values are loaded (or constructed) and validated once; the generator,
// scorer and backtest engine receive immutable copies through their
// constructors and never read the environment themselves.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	apperrors "vrp-screener/internal/errors"
)

// StrategyConfig holds the strike-selection and sizing knobs for the
// strategy generator.
type StrategyConfig struct {
	// Delta targeting for vertical spreads.
	ShortDeltaTarget float64 `mapstructure:"short_delta_target"`
	LongDeltaTarget  float64 `mapstructure:"long_delta_target"`

	// Distance-based fallback when deltas are missing or the delta-chosen
	// short strike sits inside the implied-move band.
	ImpliedMoveBuffer float64 `mapstructure:"implied_move_buffer"` // fraction beyond the implied move, e.g. 0.10
	SpreadWidthHigh   float64 `mapstructure:"spread_width_high"`   // width when price >= WidthPriceCutoff
	SpreadWidthLow    float64 `mapstructure:"spread_width_low"`
	WidthPriceCutoff  float64 `mapstructure:"width_price_cutoff"`

	// Credit and liquidity floors.
	MinCredit    float64 `mapstructure:"min_credit"`
	MinOI        int     `mapstructure:"min_oi"`
	MaxSpreadPct float64 `mapstructure:"max_spread_pct"`

	// Iron butterfly wings and POP formula.
	WingWidthPct    float64 `mapstructure:"wing_width_pct"` // fraction of price
	MinWingWidth    float64 `mapstructure:"min_wing_width"`
	FlyPOPBase      float64 `mapstructure:"fly_pop_base"`
	FlyPOPPerZonePc float64 `mapstructure:"fly_pop_per_zone_pct"`
	FlyPOPMin       float64 `mapstructure:"fly_pop_min"`
	FlyPOPMax       float64 `mapstructure:"fly_pop_max"`

	// Position sizing.
	RiskBudget            float64 `mapstructure:"risk_budget"`
	MaxContracts          int     `mapstructure:"max_contracts"`
	CommissionPerContract float64 `mapstructure:"commission_per_contract"`
}

// DefaultStrategyConfig returns the default generator configuration.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		ShortDeltaTarget:      0.30,
		LongDeltaTarget:       0.20,
		ImpliedMoveBuffer:     0.10,
		SpreadWidthHigh:       5.0,
		SpreadWidthLow:        3.0,
		WidthPriceCutoff:      20.0,
		MinCredit:             0.30,
		MinOI:                 10,
		MaxSpreadPct:          15.0,
		WingWidthPct:          0.05,
		MinWingWidth:          5.0,
		FlyPOPBase:            0.30,
		FlyPOPPerZonePc:       0.05,
		FlyPOPMin:             0.25,
		FlyPOPMax:             0.75,
		RiskBudget:            1000.0,
		MaxContracts:          10,
		CommissionPerContract: 0.65,
	}
}

// Validate checks the generator configuration. Called once at construction;
// the generator never re-validates per call.
func (c StrategyConfig) Validate() error {
	if c.ShortDeltaTarget <= 0 || c.ShortDeltaTarget >= 1 {
		return apperrors.NewConfigError("short_delta_target", c.ShortDeltaTarget, "must be in (0, 1)")
	}
	if c.LongDeltaTarget <= 0 || c.LongDeltaTarget >= c.ShortDeltaTarget {
		return apperrors.NewConfigError("long_delta_target", c.LongDeltaTarget, "must be in (0, short_delta_target)")
	}
	if c.ImpliedMoveBuffer < 0 {
		return apperrors.NewConfigError("implied_move_buffer", c.ImpliedMoveBuffer, "must be non-negative")
	}
	if c.SpreadWidthHigh <= 0 || c.SpreadWidthLow <= 0 {
		return apperrors.NewConfigError("spread_width", c.SpreadWidthHigh, "widths must be positive")
	}
	if c.MinCredit < 0 {
		return apperrors.NewConfigError("min_credit", c.MinCredit, "must be non-negative")
	}
	if c.MinOI < 0 {
		return apperrors.NewConfigError("min_oi", c.MinOI, "must be non-negative")
	}
	if c.WingWidthPct <= 0 || c.MinWingWidth <= 0 {
		return apperrors.NewConfigError("wing_width", c.WingWidthPct, "wing parameters must be positive")
	}
	if c.FlyPOPMin < 0 || c.FlyPOPMax > 1 || c.FlyPOPMin >= c.FlyPOPMax {
		return apperrors.NewConfigError("fly_pop_range", c.FlyPOPMin, "must satisfy 0 <= min < max <= 1")
	}
	if c.RiskBudget <= 0 {
		return apperrors.NewConfigError("risk_budget", c.RiskBudget, "must be positive")
	}
	if c.MaxContracts < 1 {
		return apperrors.NewConfigError("max_contracts", c.MaxContracts, "must be at least 1")
	}
	if c.CommissionPerContract < 0 {
		return apperrors.NewConfigError("commission_per_contract", c.CommissionPerContract, "must be non-negative")
	}
	return nil
}

// ScoringWeights holds the two weighted scoring models and their targets.
// Each model's weights must sum to 100.
type ScoringWeights struct {
	// Model used when position greeks are available.
	POPWeight       float64 `mapstructure:"pop_weight"`
	LiquidityWeight float64 `mapstructure:"liquidity_weight"`
	VRPWeight       float64 `mapstructure:"vrp_weight"`
	KellyWeight     float64 `mapstructure:"kelly_weight"`
	GreeksWeight    float64 `mapstructure:"greeks_weight"`

	// Model used when greeks are unavailable (greeks weight redistributed).
	POPWeightNoGreeks       float64 `mapstructure:"pop_weight_no_greeks"`
	LiquidityWeightNoGreeks float64 `mapstructure:"liquidity_weight_no_greeks"`
	VRPWeightNoGreeks       float64 `mapstructure:"vrp_weight_no_greeks"`
	KellyWeightNoGreeks     float64 `mapstructure:"kelly_weight_no_greeks"`

	TargetPOP   float64 `mapstructure:"target_pop"`
	TargetVRP   float64 `mapstructure:"target_vrp"`
	TargetEdge  float64 `mapstructure:"target_edge"`
	TargetTheta float64 `mapstructure:"target_theta"`
	TargetVega  float64 `mapstructure:"target_vega"` // magnitude; negative vega is favorable

	AlignStrong   float64 `mapstructure:"align_strong"`
	AlignModerate float64 `mapstructure:"align_moderate"`
	AlignWeak     float64 `mapstructure:"align_weak"`
	CounterTrend  float64 `mapstructure:"counter_trend"` // subtracted on counter-trend setups
}

// DefaultScoringWeights returns the default scoring model.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		POPWeight:       30,
		LiquidityWeight: 25,
		VRPWeight:       20,
		KellyWeight:     15,
		GreeksWeight:    10,

		POPWeightNoGreeks:       35,
		LiquidityWeightNoGreeks: 30,
		VRPWeightNoGreeks:       20,
		KellyWeightNoGreeks:     15,

		TargetPOP:   0.70,
		TargetVRP:   2.0,
		TargetEdge:  0.10,
		TargetTheta: 10.0,
		TargetVega:  50.0,

		AlignStrong:   8,
		AlignModerate: 5,
		AlignWeak:     3,
		CounterTrend:  3,
	}
}

// Validate checks that both weight models sum to 100 and all targets are
// positive. Called once at scorer construction.
func (w ScoringWeights) Validate() error {
	withGreeks := w.POPWeight + w.LiquidityWeight + w.VRPWeight + w.KellyWeight + w.GreeksWeight
	if !almostEqual(withGreeks, 100) {
		return apperrors.NewConfigError("weights", withGreeks, "with-greeks weights must sum to 100")
	}
	noGreeks := w.POPWeightNoGreeks + w.LiquidityWeightNoGreeks + w.VRPWeightNoGreeks + w.KellyWeightNoGreeks
	if !almostEqual(noGreeks, 100) {
		return apperrors.NewConfigError("weights_no_greeks", noGreeks, "no-greeks weights must sum to 100")
	}
	for field, v := range map[string]float64{
		"pop_weight":       w.POPWeight,
		"liquidity_weight": w.LiquidityWeight,
		"vrp_weight":       w.VRPWeight,
		"kelly_weight":     w.KellyWeight,
		"greeks_weight":    w.GreeksWeight,
	} {
		if v < 0 {
			return apperrors.NewConfigError(field, v, "must be non-negative")
		}
	}
	if w.TargetPOP <= 0 || w.TargetPOP > 1 {
		return apperrors.NewConfigError("target_pop", w.TargetPOP, "must be in (0, 1]")
	}
	if w.TargetVRP <= 0 {
		return apperrors.NewConfigError("target_vrp", w.TargetVRP, "must be positive")
	}
	if w.TargetEdge <= 0 {
		return apperrors.NewConfigError("target_edge", w.TargetEdge, "must be positive")
	}
	if w.TargetTheta <= 0 || w.TargetVega <= 0 {
		return apperrors.NewConfigError("target_greeks", w.TargetTheta, "greek targets must be positive")
	}
	return nil
}

// SizingMode selects how dollars are allocated across selected trades.
type SizingMode string

const (
	SizingHybrid SizingMode = "hybrid" // Kelly fraction scaled by trade score
	SizingEqual  SizingMode = "equal"  // total capital divided equally
)

// BacktestConfig holds one named backtest configuration.
type BacktestConfig struct {
	Name string `mapstructure:"name"`

	// Event scoring.
	NQuarters int     `mapstructure:"n_quarters"`
	MinScore  float64 `mapstructure:"min_score"`
	TopK      int     `mapstructure:"top_k"`

	// Unvalidated heuristics from the source model, kept configurable on
	// purpose: the IV-inflation multiplier applied to the average historical
	// move, and the reference stock price used to normalize commissions.
	IVInflation        float64 `mapstructure:"iv_inflation"`
	CommissionRefPrice float64 `mapstructure:"commission_ref_price"`

	// Execution-cost model.
	HalfSpreadSlippage  float64 `mapstructure:"half_spread_slippage"` // percent of stock price per side
	ResidualIVFactor    float64 `mapstructure:"residual_iv_factor"`
	CommissionContracts int     `mapstructure:"commission_contracts"` // contracts per round trip
	CommissionPerLot    float64 `mapstructure:"commission_per_lot"`

	// Position sizing (optional).
	SizingEnabled bool       `mapstructure:"sizing_enabled"`
	SizingMode    SizingMode `mapstructure:"sizing_mode"`
	TotalCapital  float64    `mapstructure:"total_capital"`
	KellyMin      float64    `mapstructure:"kelly_min"`
	KellyMax      float64    `mapstructure:"kelly_max"`

	Weights ScoringWeights `mapstructure:"weights"`
}

// DefaultBacktestConfig returns the default backtest configuration.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		Name:                "default",
		NQuarters:           8,
		MinScore:            0,
		TopK:                5,
		IVInflation:         1.4,
		CommissionRefPrice:  100.0,
		HalfSpreadSlippage:  0.05,
		ResidualIVFactor:    0.10,
		CommissionContracts: 4,
		CommissionPerLot:    0.65,
		SizingEnabled:       false,
		SizingMode:          SizingHybrid,
		TotalCapital:        10000.0,
		KellyMin:            0.05,
		KellyMax:            0.25,
		Weights:             DefaultScoringWeights(),
	}
}

// Validate checks the backtest configuration.
func (c BacktestConfig) Validate() error {
	if c.NQuarters < 1 {
		return apperrors.NewConfigError("n_quarters", c.NQuarters, "must be at least 1")
	}
	if c.TopK < 1 {
		return apperrors.NewConfigError("top_k", c.TopK, "must be at least 1")
	}
	if c.IVInflation <= 0 {
		return apperrors.NewConfigError("iv_inflation", c.IVInflation, "must be positive")
	}
	if c.CommissionRefPrice <= 0 {
		return apperrors.NewConfigError("commission_ref_price", c.CommissionRefPrice, "must be positive")
	}
	if c.HalfSpreadSlippage < 0 || c.ResidualIVFactor < 0 {
		return apperrors.NewConfigError("execution_costs", c.HalfSpreadSlippage, "must be non-negative")
	}
	if c.CommissionContracts < 0 || c.CommissionPerLot < 0 {
		return apperrors.NewConfigError("commission", c.CommissionPerLot, "must be non-negative")
	}
	if c.SizingEnabled {
		if c.TotalCapital <= 0 {
			return apperrors.NewConfigError("total_capital", c.TotalCapital, "must be positive when sizing is enabled")
		}
		if c.KellyMin < 0 || c.KellyMax <= c.KellyMin {
			return apperrors.NewConfigError("kelly_range", c.KellyMin, "must satisfy 0 <= min < max")
		}
		if c.SizingMode != SizingHybrid && c.SizingMode != SizingEqual {
			return apperrors.NewConfigError("sizing_mode", c.SizingMode, "must be 'hybrid' or 'equal'")
		}
	}
	return c.Weights.Validate()
}

// WalkForwardConfig defines the rolling train/test windowing.
type WalkForwardConfig struct {
	TrainDays int `mapstructure:"train_days"`
	TestDays  int `mapstructure:"test_days"`
	StepDays  int `mapstructure:"step_days"`
}

// DefaultWalkForwardConfig returns the default windowing.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		TrainDays: 180,
		TestDays:  60,
		StepDays:  60,
	}
}

// Validate checks the walk-forward windowing.
func (c WalkForwardConfig) Validate() error {
	if c.TrainDays < 1 {
		return apperrors.NewConfigError("train_days", c.TrainDays, "must be at least 1")
	}
	if c.TestDays < 1 {
		return apperrors.NewConfigError("test_days", c.TestDays, "must be at least 1")
	}
	if c.StepDays < 1 {
		return apperrors.NewConfigError("step_days", c.StepDays, "must be at least 1")
	}
	// A step shorter than the test range makes consecutive test windows
	// overlap, double-counting out-of-sample trades.
	if c.StepDays < c.TestDays {
		return apperrors.NewConfigError("step_days", c.StepDays, "must be at least test_days")
	}
	return nil
}

// Config bundles everything the CLI shell needs.
type Config struct {
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Scoring     ScoringWeights    `mapstructure:"scoring"`
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	WalkForward WalkForwardConfig `mapstructure:"walkforward"`
	DBPath      string            `mapstructure:"db_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/vrp-screener"
	}
	return filepath.Join(home, ".config", "vrp-screener")
}

// Load loads configuration from the specified directory, falling back to
// defaults for anything unset. If configDir is empty, uses the default
// config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.Wrap(err, "loading config.toml")
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, apperrors.Wrap(err, "writing config template")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, "parsing config.toml")
	}

	// A backtest section without its own weights inherits the scoring model.
	if cfg.Backtest.Weights == (ScoringWeights{}) {
		cfg.Backtest.Weights = cfg.Scoring
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	return c.WalkForward.Validate()
}

func setDefaults(v *viper.Viper) {
	sc := DefaultStrategyConfig()
	v.SetDefault("strategy.short_delta_target", sc.ShortDeltaTarget)
	v.SetDefault("strategy.long_delta_target", sc.LongDeltaTarget)
	v.SetDefault("strategy.implied_move_buffer", sc.ImpliedMoveBuffer)
	v.SetDefault("strategy.spread_width_high", sc.SpreadWidthHigh)
	v.SetDefault("strategy.spread_width_low", sc.SpreadWidthLow)
	v.SetDefault("strategy.width_price_cutoff", sc.WidthPriceCutoff)
	v.SetDefault("strategy.min_credit", sc.MinCredit)
	v.SetDefault("strategy.min_oi", sc.MinOI)
	v.SetDefault("strategy.max_spread_pct", sc.MaxSpreadPct)
	v.SetDefault("strategy.wing_width_pct", sc.WingWidthPct)
	v.SetDefault("strategy.min_wing_width", sc.MinWingWidth)
	v.SetDefault("strategy.fly_pop_base", sc.FlyPOPBase)
	v.SetDefault("strategy.fly_pop_per_zone_pct", sc.FlyPOPPerZonePc)
	v.SetDefault("strategy.fly_pop_min", sc.FlyPOPMin)
	v.SetDefault("strategy.fly_pop_max", sc.FlyPOPMax)
	v.SetDefault("strategy.risk_budget", sc.RiskBudget)
	v.SetDefault("strategy.max_contracts", sc.MaxContracts)
	v.SetDefault("strategy.commission_per_contract", sc.CommissionPerContract)

	sw := DefaultScoringWeights()
	v.SetDefault("scoring.pop_weight", sw.POPWeight)
	v.SetDefault("scoring.liquidity_weight", sw.LiquidityWeight)
	v.SetDefault("scoring.vrp_weight", sw.VRPWeight)
	v.SetDefault("scoring.kelly_weight", sw.KellyWeight)
	v.SetDefault("scoring.greeks_weight", sw.GreeksWeight)
	v.SetDefault("scoring.pop_weight_no_greeks", sw.POPWeightNoGreeks)
	v.SetDefault("scoring.liquidity_weight_no_greeks", sw.LiquidityWeightNoGreeks)
	v.SetDefault("scoring.vrp_weight_no_greeks", sw.VRPWeightNoGreeks)
	v.SetDefault("scoring.kelly_weight_no_greeks", sw.KellyWeightNoGreeks)
	v.SetDefault("scoring.target_pop", sw.TargetPOP)
	v.SetDefault("scoring.target_vrp", sw.TargetVRP)
	v.SetDefault("scoring.target_edge", sw.TargetEdge)
	v.SetDefault("scoring.target_theta", sw.TargetTheta)
	v.SetDefault("scoring.target_vega", sw.TargetVega)
	v.SetDefault("scoring.align_strong", sw.AlignStrong)
	v.SetDefault("scoring.align_moderate", sw.AlignModerate)
	v.SetDefault("scoring.align_weak", sw.AlignWeak)
	v.SetDefault("scoring.counter_trend", sw.CounterTrend)

	bc := DefaultBacktestConfig()
	v.SetDefault("backtest.name", bc.Name)
	v.SetDefault("backtest.n_quarters", bc.NQuarters)
	v.SetDefault("backtest.min_score", bc.MinScore)
	v.SetDefault("backtest.top_k", bc.TopK)
	v.SetDefault("backtest.iv_inflation", bc.IVInflation)
	v.SetDefault("backtest.commission_ref_price", bc.CommissionRefPrice)
	v.SetDefault("backtest.half_spread_slippage", bc.HalfSpreadSlippage)
	v.SetDefault("backtest.residual_iv_factor", bc.ResidualIVFactor)
	v.SetDefault("backtest.commission_contracts", bc.CommissionContracts)
	v.SetDefault("backtest.commission_per_lot", bc.CommissionPerLot)
	v.SetDefault("backtest.sizing_enabled", bc.SizingEnabled)
	v.SetDefault("backtest.sizing_mode", string(bc.SizingMode))
	v.SetDefault("backtest.total_capital", bc.TotalCapital)
	v.SetDefault("backtest.kelly_min", bc.KellyMin)
	v.SetDefault("backtest.kelly_max", bc.KellyMax)

	wf := DefaultWalkForwardConfig()
	v.SetDefault("walkforward.train_days", wf.TrainDays)
	v.SetDefault("walkforward.test_days", wf.TestDays)
	v.SetDefault("walkforward.step_days", wf.StepDays)

	v.SetDefault("db_path", filepath.Join(DefaultConfigDir(), "screener.db"))
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
