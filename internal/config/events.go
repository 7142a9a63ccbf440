package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
)

// EventsConfig holds configuration for the events command.
type EventsConfig struct {
	Common
	FromBlock    uint64
	ToBlock      uint64
	Addresses    []string
	Topic0       []string
	ABIPath      string
	Event        string
	Table        string
	ChunkSize    uint64
	ChunkWorkers int
	StepSize     uint64
	Checkpoint   string
}

// LoadEvents merges config file, environment variables, and flags into EventsConfig.
func LoadEvents(cfgFile string, flags *pflag.FlagSet) (EventsConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"event":         "Deposit",
		"chunk-workers": 2,
		"step-size":     uint64(0),
	})
	if err != nil {
		return EventsConfig{}, err
	}
	common, err := loadCommon(v)
	if err != nil {
		return EventsConfig{}, err
	}

	cfg := EventsConfig{
		Common:       common,
		FromBlock:    v.GetUint64("from"),
		ToBlock:      v.GetUint64("to"),
		Addresses:    getStringSlice(v, "address"),
		Topic0:       getStringSlice(v, "topic0"),
		ABIPath:      v.GetString("abi"),
		Event:        v.GetString("event"),
		Table:        v.GetString("table"),
		ChunkSize:    v.GetUint64("chunk-size"),
		ChunkWorkers: v.GetInt("chunk-workers"),
		StepSize:     v.GetUint64("step-size"),
		Checkpoint:   v.GetString("checkpoint"),
	}
	if cfg.Table == "" {
		cfg.Table = fmt.Sprintf("%s_%s", cfg.Chain.Name, cfg.Event)
	}
	// One checkpoint per table: a shared file would resume a new table past its history.
	if cfg.Checkpoint == "" {
		cfg.Checkpoint = filepath.Join(cfg.Out, cfg.Table+".checkpoint.json")
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return EventsConfig{}, fmt.Errorf("to block %d is before from block %d", cfg.ToBlock, cfg.FromBlock)
	}
	return cfg, nil
}
