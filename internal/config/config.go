// Package config loads the runtime's bootstrap configuration: node
// identity, sizing of the kernel's internal structures, and the
// filesystem locations the daemon uses for state and hot reload.
package config

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// envPrefix is the prefix every environment-variable override must carry
// (e.g. MK_NODE_ID, MK_MAILBOX_CAPACITY).
const envPrefix = "MK"

// minTimerPoolCapacity mirrors the kernel's own floor on the timer pool
// (the kernel silently raises smaller values to it), so the loaded config
// reports the capacity the kernel actually uses.
const minTimerPoolCapacity = 32

// NodeConfig is the runtime's bootstrap configuration, per spec §6.
type NodeConfig struct {
	NodeID            uint32 `mapstructure:"node_id"`
	MailboxCapacity   uint32 `mapstructure:"mailbox_capacity"`
	NameTableCapacity uint32 `mapstructure:"name_table_capacity"`
	TimerPoolCapacity int    `mapstructure:"timer_pool_capacity"`
	TransportSlots    int    `mapstructure:"transport_slots"`
	StateRoot         string `mapstructure:"state_root"`
	ReloadWatchDir    string `mapstructure:"reload_watch_dir"`
}

// defaultStateRoot returns ~/.microkernel/state, falling back to a
// relative path if the home directory cannot be determined.
func defaultStateRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".microkernel", "state")
	}

	return filepath.Join(home, ".microkernel", "state")
}

// derivedNodeID folds a freshly generated UUID down to 32 bits, giving
// each unconfigured node a distinct identity with high probability
// without requiring operator input.
func derivedNodeID() uint32 {
	id := uuid.New()
	return binary.BigEndian.Uint32(id[:4]) ^ binary.BigEndian.Uint32(id[4:8])
}

// Load builds a NodeConfig from, in increasing priority: built-in
// defaults, an optional YAML file at configPath (ignored if empty or
// absent), and environment variables prefixed MK_.
func Load(configPath string) (*NodeConfig, error) {
	v := viper.New()

	v.SetDefault("node_id", 0)
	v.SetDefault("mailbox_capacity", 64)
	v.SetDefault("name_table_capacity", 128)
	v.SetDefault("timer_pool_capacity", minTimerPoolCapacity)
	v.SetDefault("transport_slots", 8)
	v.SetDefault("state_root", defaultStateRoot())
	v.SetDefault("reload_watch_dir", "")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if cfg.NodeID == 0 {
		cfg.NodeID = derivedNodeID()
	}
	if cfg.TimerPoolCapacity < minTimerPoolCapacity {
		cfg.TimerPoolCapacity = minTimerPoolCapacity
	}
	if cfg.TransportSlots <= 0 {
		cfg.TransportSlots = 8
	}

	return &cfg, nil
}
