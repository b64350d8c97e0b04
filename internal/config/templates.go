package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# VRP Screener Configuration
# All values shown are the defaults; delete anything you don't override.

[strategy]
# Delta targets for vertical spread strike selection
short_delta_target = 0.30
long_delta_target = 0.20
# Distance fallback: short strike at implied move + buffer beyond price
implied_move_buffer = 0.10
# Fixed spread width by underlying price
spread_width_high = 5.0
spread_width_low = 3.0
width_price_cutoff = 20.0
# Minimum net credit to keep a spread
min_credit = 0.30
# Liquidity floor applied when no classifier verdict is available
min_oi = 10
max_spread_pct = 15.0
# Iron butterfly wings
wing_width_pct = 0.05
min_wing_width = 5.0
# Butterfly POP linear formula (base + per-zone-percent slope, clamped)
fly_pop_base = 0.30
fly_pop_per_zone_pct = 0.05
fly_pop_min = 0.25
fly_pop_max = 0.75
# Position sizing
risk_budget = 1000.0
max_contracts = 10
commission_per_contract = 0.65

[scoring]
# With-greeks model (must sum to 100)
pop_weight = 30.0
liquidity_weight = 25.0
vrp_weight = 20.0
kelly_weight = 15.0
greeks_weight = 10.0
# No-greeks model (must sum to 100)
pop_weight_no_greeks = 35.0
liquidity_weight_no_greeks = 30.0
vrp_weight_no_greeks = 20.0
kelly_weight_no_greeks = 15.0
# Targets
target_pop = 0.70
target_vrp = 2.0
target_edge = 0.10
target_theta = 10.0
target_vega = 50.0
# Directional alignment points
align_strong = 8.0
align_moderate = 5.0
align_weak = 3.0
counter_trend = 3.0

[backtest]
name = "default"
n_quarters = 8
min_score = 0.0
top_k = 5
# IV inflation over the average historical move (unvalidated heuristic,
# kept configurable)
iv_inflation = 1.4
# Reference stock price for commission normalization
commission_ref_price = 100.0
half_spread_slippage = 0.05
residual_iv_factor = 0.10
commission_contracts = 4
commission_per_lot = 0.65
sizing_enabled = false
sizing_mode = "hybrid"
total_capital = 10000.0
kelly_min = 0.05
kelly_max = 0.25

[walkforward]
train_days = 180
test_days = 60
step_days = 60
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
