package config

import (
	"time"

	"github.com/spf13/pflag"
)

// WatchConfig holds configuration for the swap watcher.
type WatchConfig struct {
	RPCURL            string
	Pool              string
	Admin             string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Journal           string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	PGDSN             string
	LookbackSeconds   uint64
	MinMultiplier     uint64
	MaxMultiplier     uint64
	Threshold         string
	Factor            string
	LogLevel          string
}

// LoadWatch merges config file, environment variables, and flags into
// WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"journal":            "./data/options.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"lookback":           uint64(3600),
		"min-multiplier":     uint64(12),
		"max-multiplier":     uint64(32),
		"threshold":          "100000000000000000000",
		"factor":             "1000000000000000000",
		"log-level":          "info",
	})
	if err != nil {
		return WatchConfig{}, err
	}

	cfg := WatchConfig{
		RPCURL:            v.GetString("rpc"),
		Pool:              v.GetString("pool"),
		Admin:             v.GetString("admin"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Journal:           v.GetString("journal"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		PGDSN:             v.GetString("pg-dsn"),
		LookbackSeconds:   v.GetUint64("lookback"),
		MinMultiplier:     v.GetUint64("min-multiplier"),
		MaxMultiplier:     v.GetUint64("max-multiplier"),
		Threshold:         v.GetString("threshold"),
		Factor:            v.GetString("factor"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
