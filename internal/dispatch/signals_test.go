package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignals_EmitBeforeTakeIsQueued(t *testing.T) {
	s := NewSignals()
	s.Emit("A")
	require.NoError(t, s.Take(context.Background(), "A"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Take(ctx, "A"), context.DeadlineExceeded)
}

func TestSignals_TakeBlocksUntilEmit(t *testing.T) {
	s := NewSignals()
	got := make(chan error, 1)
	go func() { got <- s.Take(context.Background(), "B") }()

	time.Sleep(5 * time.Millisecond)
	s.Emit("B")
	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("take did not return")
	}
	assert.Equal(t, 1, s.Count("B"))
}

func TestSignals_OneEmitWakesOneTaker(t *testing.T) {
	s := NewSignals()
	s.Emit("C")
	require.NoError(t, s.Take(context.Background(), "C"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Take(ctx, "C"))
}

func TestSignals_EmptyNameIgnored(t *testing.T) {
	s := NewSignals()
	s.Emit("")
	assert.Zero(t, s.Count(""))
}

func TestSignals_Observe(t *testing.T) {
	s := NewSignals()
	names, cancel := s.Observe()
	defer cancel()

	s.Emit("X")
	assert.Equal(t, "X", <-names)
}

func TestSignals_RetentionBoundsUntakenNames(t *testing.T) {
	s := NewSignalsWithRetention(100)
	for i := 0; i < 5000; i++ {
		s.Emit(fmt.Sprintf("DONE_%d", i))
	}

	s.mu.Lock()
	assert.LessOrEqual(t, len(s.pending), 100)
	assert.LessOrEqual(t, len(s.emitted), 100)
	assert.LessOrEqual(t, len(s.order), 100)
	s.mu.Unlock()

	assert.Zero(t, s.Count("DONE_0"))
	assert.Equal(t, 1, s.Count("DONE_4999"))
	require.NoError(t, s.Take(context.Background(), "DONE_4999"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Take(ctx, "DONE_0"), context.DeadlineExceeded)
}

func TestSignals_RepeatedNameKeepsOneSlot(t *testing.T) {
	s := NewSignalsWithRetention(2)
	s.Emit("A")
	s.Emit("A")
	s.Emit("B")
	assert.Equal(t, 2, s.Count("A"))
	assert.Equal(t, 1, s.Count("B"))

	s.Emit("C")
	assert.Zero(t, s.Count("A"))
	assert.Equal(t, 1, s.Count("C"))
}
