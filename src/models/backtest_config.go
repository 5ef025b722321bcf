package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ExecutionTiming string

const (
	// ExecutionTimingNextOpen fills a decision derived from day D at day
	// D+1's open. This is the default and the safe choice against
	// look-ahead bias.
	ExecutionTimingNextOpen ExecutionTiming = "next_open"

	// ExecutionTimingSameClose fills at day D's close. The timing rule is
	// fixed for a whole run, never mixed.
	ExecutionTimingSameClose ExecutionTiming = "same_close"
)

type FeeModelType string

const (
	FeeModelFlat         FeeModelType = "flat"
	FeeModelProportional FeeModelType = "proportional"
)

// FeeModel charges a commission per fill, either a flat amount or a fraction
// of the notional, expressed in basis points.
type FeeModel struct {
	Type FeeModelType `yaml:"type" json:"type"`
	Flat float64      `yaml:"flat" json:"flat"`
	Bps  float64      `yaml:"bps" json:"bps"`
}

func (f FeeModel) Charge(notional float64) float64 {
	switch f.Type {
	case FeeModelProportional:
		return notional * f.Bps / 10000.0
	default:
		return f.Flat
	}
}

func (f FeeModel) Validate() error {
	switch f.Type {
	case FeeModelFlat:
		if f.Flat < 0 {
			return fmt.Errorf("FeeModel.Validate: flat fee must be >= 0, got %.4f: %w", f.Flat, ErrInvalidConfiguration)
		}
	case FeeModelProportional:
		if f.Bps < 0 || f.Bps >= 10000 {
			return fmt.Errorf("FeeModel.Validate: bps must be in [0, 10000), got %.2f: %w", f.Bps, ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("FeeModel.Validate: unknown fee model %q: %w", f.Type, ErrInvalidConfiguration)
	}

	return nil
}

// BacktestConfig is the explicit, immutable configuration for a run. It is
// passed into the runner at construction and never read from ambient state,
// so concurrent runs with different parameters stay independent.
type BacktestConfig struct {
	ModelWeight     float64 `yaml:"model_weight" json:"model_weight"`
	SentimentWeight float64 `yaml:"sentiment_weight" json:"sentiment_weight"`
	IndicatorWeight float64 `yaml:"indicator_weight" json:"indicator_weight"`

	BuyThreshold  float64 `yaml:"buy_threshold" json:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold" json:"sell_threshold"`

	// BaseAllocation is the fraction of available cash a full-confidence
	// buy commits. The decision's target weight scales with confidence.
	BaseAllocation float64 `yaml:"base_allocation" json:"base_allocation"`

	RiskFreeRate float64 `yaml:"risk_free_rate" json:"risk_free_rate"`

	Fees   FeeModel        `yaml:"fees" json:"fees"`
	Timing ExecutionTiming `yaml:"execution_timing" json:"execution_timing"`

	// CloseOutOnFinalBar lets a sell decision pending on the last bar
	// execute at that bar's close, so runs end flat. Buys pending on the
	// last bar are always dropped.
	CloseOutOnFinalBar bool `yaml:"close_out_on_final_bar" json:"close_out_on_final_bar"`
}

func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		ModelWeight:        0.5,
		SentimentWeight:    0.2,
		IndicatorWeight:    0.3,
		BuyThreshold:       0.35,
		SellThreshold:      -0.35,
		BaseAllocation:     1.0,
		RiskFreeRate:       0.0,
		Fees:               FeeModel{Type: FeeModelProportional, Bps: 5},
		Timing:             ExecutionTimingNextOpen,
		CloseOutOnFinalBar: true,
	}
}

func (c BacktestConfig) Validate() error {
	weights := []struct {
		name  string
		value float64
	}{
		{"model_weight", c.ModelWeight},
		{"sentiment_weight", c.SentimentWeight},
		{"indicator_weight", c.IndicatorWeight},
	}

	total := 0.0
	for _, w := range weights {
		if w.value < 0 {
			return fmt.Errorf("BacktestConfig.Validate: %s must be >= 0, got %.4f: %w", w.name, w.value, ErrInvalidConfiguration)
		}
		total += w.value
	}

	if total <= 0 {
		return fmt.Errorf("BacktestConfig.Validate: signal weights must not all be zero: %w", ErrInvalidConfiguration)
	}

	if c.BuyThreshold <= c.SellThreshold {
		return fmt.Errorf("BacktestConfig.Validate: buy_threshold (%.4f) must be greater than sell_threshold (%.4f): %w", c.BuyThreshold, c.SellThreshold, ErrInvalidConfiguration)
	}

	if c.BaseAllocation <= 0 || c.BaseAllocation > 1 {
		return fmt.Errorf("BacktestConfig.Validate: base_allocation must be in (0, 1], got %.4f: %w", c.BaseAllocation, ErrInvalidConfiguration)
	}

	if c.Timing != ExecutionTimingNextOpen && c.Timing != ExecutionTimingSameClose {
		return fmt.Errorf("BacktestConfig.Validate: unknown execution timing %q: %w", c.Timing, ErrInvalidConfiguration)
	}

	if err := c.Fees.Validate(); err != nil {
		return err
	}

	return nil
}

func LoadBacktestConfig(path string) (BacktestConfig, error) {
	config := DefaultBacktestConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("LoadBacktestConfig: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("LoadBacktestConfig: failed to unmarshal %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}
