package shutdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalStartsUnset(t *testing.T) {
	sig := New(context.Background())

	assert.False(t, sig.IsSet())
	select {
	case <-sig.Done():
		t.Fatal("Done channel closed before Set")
	default:
	}
}

func TestSignalSetIsIdempotent(t *testing.T) {
	sig := New(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig.Set()
		}()
	}
	wg.Wait()
	sig.Set()

	assert.True(t, sig.IsSet())
	select {
	case <-sig.Done():
	default:
		t.Fatal("Done channel should be closed after Set")
	}
	assert.ErrorIs(t, sig.Context().Err(), context.Canceled)
}

func TestSignalWaitTimesOut(t *testing.T) {
	sig := New(context.Background())

	start := time.Now()
	set := sig.Wait(30 * time.Millisecond)

	assert.False(t, set)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSignalWaitReturnsEarlyWhenSet(t *testing.T) {
	sig := New(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		sig.Set()
	}()

	start := time.Now()
	require.True(t, sig.Wait(5*time.Second))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSignalWaitZeroPolls(t *testing.T) {
	sig := New(context.Background())
	assert.False(t, sig.Wait(0))

	sig.Set()
	assert.True(t, sig.Wait(0))
}

func TestSignalFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sig := New(parent)

	cancel()

	assert.True(t, sig.Wait(time.Second))
}
