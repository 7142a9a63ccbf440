package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// StateConfig holds configuration for the state command.
type StateConfig struct {
	Common
	Vaults          []string
	Blocks          []uint64
	FromBlock       uint64
	ToBlock         uint64
	Step            uint64
	SemaphoreLimits []int
	IncludeBlock    bool
	SkipCache       bool
	Table           string
	// MaxLatency skips the fetch when the stored table is younger than this.
	MaxLatency time.Duration
}

// LoadState merges config file, environment variables, and flags into StateConfig.
func LoadState(cfgFile string, flags *pflag.FlagSet) (StateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"semaphore-limits": "500,200,50,20,2",
		"step":             uint64(7200),
		"include-block":    true,
	})
	if err != nil {
		return StateConfig{}, err
	}
	common, err := loadCommon(v)
	if err != nil {
		return StateConfig{}, err
	}

	limits, err := getIntSlice(v, "semaphore-limits")
	if err != nil {
		return StateConfig{}, err
	}

	cfg := StateConfig{
		Common:          common,
		Vaults:          getStringSlice(v, "vault"),
		FromBlock:       v.GetUint64("from"),
		ToBlock:         v.GetUint64("to"),
		Step:            v.GetUint64("step"),
		SemaphoreLimits: limits,
		IncludeBlock:    v.GetBool("include-block"),
		SkipCache:       v.GetBool("skip-cache"),
		Table:           v.GetString("table"),
		MaxLatency:      v.GetDuration("max-latency"),
	}
	if cfg.Table == "" {
		cfg.Table = cfg.Chain.Name + "_autopool_state"
	}

	for _, item := range getStringSlice(v, "blocks") {
		var block uint64
		if _, err := fmt.Sscan(item, &block); err != nil {
			return StateConfig{}, fmt.Errorf("blocks: invalid block %q", item)
		}
		cfg.Blocks = append(cfg.Blocks, block)
	}
	return cfg, nil
}

// BlockList returns the explicit blocks, or from..to every step blocks when none are given.
// A zero ToBlock means latest, which the caller resolves.
func (c StateConfig) BlockList(latest uint64) ([]uint64, error) {
	if len(c.Blocks) > 0 {
		return c.Blocks, nil
	}
	to := c.ToBlock
	if to == 0 {
		to = latest
	}
	if to < c.FromBlock {
		return nil, fmt.Errorf("to block %d is before from block %d", to, c.FromBlock)
	}
	step := c.Step
	if step == 0 {
		step = 1
	}
	var blocks []uint64
	for block := c.FromBlock; block <= to; block += step {
		blocks = append(blocks, block)
		if block+step < block {
			break
		}
	}
	if blocks[len(blocks)-1] != to {
		blocks = append(blocks, to)
	}
	return blocks, nil
}
