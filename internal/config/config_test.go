package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.NotZero(t, cfg.NodeID, "an unset node id must be derived, not zero")
	require.Equal(t, uint32(64), cfg.MailboxCapacity)
	require.Equal(t, uint32(128), cfg.NameTableCapacity)
	require.Equal(t, minTimerPoolCapacity, cfg.TimerPoolCapacity)
	require.Equal(t, 8, cfg.TransportSlots)
	require.NotEmpty(t, cfg.StateRoot)
}

func TestLoadDerivesDistinctNodeIDsWhenUnset(t *testing.T) {
	cfg1, err := Load("")
	require.NoError(t, err)
	cfg2, err := Load("")
	require.NoError(t, err)

	require.NotEqual(t, cfg1.NodeID, cfg2.NodeID,
		"two unconfigured loads should derive different node ids with high probability")
}

func TestLoadHonorsExplicitNodeID(t *testing.T) {
	t.Setenv("MK_NODE_ID", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, uint32(42), cfg.NodeID)
}

func TestLoadEnvOverridesMailboxCapacity(t *testing.T) {
	t.Setenv("MK_MAILBOX_CAPACITY", "256")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, uint32(256), cfg.MailboxCapacity)
}

func TestLoadEnforcesTimerPoolCapacityFloor(t *testing.T) {
	t.Setenv("MK_TIMER_POOL_CAPACITY", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, minTimerPoolCapacity, cfg.TimerPoolCapacity,
		"a configured value below the kernel floor must be raised, not passed through")
}

func TestLoadEnforcesTransportSlotsFloor(t *testing.T) {
	t.Setenv("MK_TRANSPORT_SLOTS", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8, cfg.TransportSlots)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"node_id: 7\nmailbox_capacity: 32\nstate_root: /tmp/custom-state\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(7), cfg.NodeID)
	require.Equal(t, uint32(32), cfg.MailboxCapacity)
	require.Equal(t, "/tmp/custom-state", cfg.StateRoot)
}

func TestLoadEnvOverridesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mailbox_capacity: 32\n"), 0o644))

	t.Setenv("MK_MAILBOX_CAPACITY", "512")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(512), cfg.MailboxCapacity,
		"environment variables take priority over the config file")
}

func TestLoadMissingConfigFileIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
