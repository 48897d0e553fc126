package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerEnqueueIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newScheduler()
	s.enqueue(MakeID(1, 1))
	s.enqueue(MakeID(1, 1))
	s.enqueue(MakeID(1, 2))

	require.True(t, s.isReady(MakeID(1, 1)))

	id, ok := s.dequeue()
	require.True(t, ok)
	require.Equal(t, MakeID(1, 1), id)

	id, ok = s.dequeue()
	require.True(t, ok)
	require.Equal(t, MakeID(1, 2), id)

	_, ok = s.dequeue()
	require.False(t, ok)
}

func TestSchedulerFIFOOrder(t *testing.T) {
	t.Parallel()

	s := newScheduler()
	ids := []ID{MakeID(1, 1), MakeID(1, 2), MakeID(1, 3)}
	for _, id := range ids {
		s.enqueue(id)
	}

	for _, want := range ids {
		got, ok := s.dequeue()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestSchedulerRemove(t *testing.T) {
	t.Parallel()

	s := newScheduler()
	a, b, c := MakeID(1, 1), MakeID(1, 2), MakeID(1, 3)
	s.enqueue(a)
	s.enqueue(b)
	s.enqueue(c)

	s.remove(b)
	require.False(t, s.isReady(b))

	got, ok := s.dequeue()
	require.True(t, ok)
	require.Equal(t, a, got)

	got, ok = s.dequeue()
	require.True(t, ok)
	require.Equal(t, c, got)

	require.True(t, s.isEmpty())
}

func TestSchedulerRemoveUnknownIsNoop(t *testing.T) {
	t.Parallel()

	s := newScheduler()
	s.remove(MakeID(9, 9))
	require.True(t, s.isEmpty())
}
