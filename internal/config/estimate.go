package config

import "github.com/spf13/pflag"

// EstimateConfig holds configuration for a one-shot volatility estimate.
type EstimateConfig struct {
	RPCURL          string
	Pool            string
	LookbackSeconds uint64
	PastBlocks      uint64
	TimeToExpiry    uint64
	TotalDuration   uint64
	RiskFreeRate    string
	LogLevel        string
}

// LoadEstimate merges config file, environment variables, and flags into
// EstimateConfig.
func LoadEstimate(cfgFile string, flags *pflag.FlagSet) (EstimateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"lookback":    uint64(3600),
		"past-blocks": uint64(1200),
		"rate":        "0",
		"log-level":   "info",
	})
	if err != nil {
		return EstimateConfig{}, err
	}

	cfg := EstimateConfig{
		RPCURL:          v.GetString("rpc"),
		Pool:            v.GetString("pool"),
		LookbackSeconds: v.GetUint64("lookback"),
		PastBlocks:      v.GetUint64("past-blocks"),
		TimeToExpiry:    v.GetUint64("tte"),
		TotalDuration:   v.GetUint64("total-duration"),
		RiskFreeRate:    v.GetString("rate"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
