package config

import "github.com/spf13/pflag"

// SweepConfig holds configuration for an expiry sweep pass.
type SweepConfig struct {
	RPCURL          string
	Pool            string
	Journal         string
	PGDSN           string
	LookbackSeconds uint64
	Expiries        []string
	TokenIDs        []string
	LogLevel        string
}

// LoadSweep merges config file, environment variables, and flags into
// SweepConfig.
func LoadSweep(cfgFile string, flags *pflag.FlagSet) (SweepConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"journal":   "./data/options.jsonl",
		"lookback":  uint64(3600),
		"log-level": "info",
	})
	if err != nil {
		return SweepConfig{}, err
	}

	cfg := SweepConfig{
		RPCURL:          v.GetString("rpc"),
		Pool:            v.GetString("pool"),
		Journal:         v.GetString("journal"),
		PGDSN:           v.GetString("pg-dsn"),
		LookbackSeconds: v.GetUint64("lookback"),
		Expiries:        getStringSlice(v, "expiry"),
		TokenIDs:        getStringSlice(v, "token-id"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
