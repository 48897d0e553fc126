package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeIDRoundtrip(t *testing.T) {
	t.Parallel()

	id := MakeID(7, 42)
	require.Equal(t, uint32(7), id.NodeOf())
	require.Equal(t, uint32(42), id.SeqOf())
	require.True(t, id.Valid())
}

func TestInvalidIDIsZero(t *testing.T) {
	t.Parallel()

	require.False(t, InvalidID.Valid())
	require.Equal(t, ID(0), InvalidID)
}

func TestIDString(t *testing.T) {
	t.Parallel()

	id := MakeID(1, 2)
	require.Equal(t, "1:2", id.String())
}

func TestSequencerAllocatesStartingAtOne(t *testing.T) {
	t.Parallel()

	s := newSequencer()

	seq, ok := s.allocate()
	require.True(t, ok)
	require.Equal(t, uint32(1), seq)

	seq, ok = s.allocate()
	require.True(t, ok)
	require.Equal(t, uint32(2), seq)
}

func TestSequencerWrapIsFatal(t *testing.T) {
	t.Parallel()

	s := &sequencer{next: 0}

	_, ok := s.allocate()
	require.False(t, ok)
}
