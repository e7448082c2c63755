package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, int64(1), clock.Ticks())
}

func TestDeterministicClock_AdvancesByStep(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, Epoch.Add(2*time.Second), clock.Now())
}

func TestDeterministicClock_ZeroStepIsFrozen(t *testing.T) {
	start := time.Date(2030, time.May, 5, 12, 0, 0, 0, time.UTC)
	clock := NewDeterministicClockAt(start, 0)

	for i := 0; i < 5; i++ {
		assert.Equal(t, start, clock.Now())
	}
}

func TestDeterministicClock_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	start := time.Date(2024, time.March, 1, 10, 0, 0, 0, loc)
	clock := NewDeterministicClockAt(start, time.Minute)

	got := clock.Now()
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(start))
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Now()
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Ticks())
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var wg sync.WaitGroup
	seen := make(chan time.Time, numGoroutines*callsPerGoroutine)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				seen <- clock.Now()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		require.False(t, unique[ts], "duplicate reading %v", ts)
		unique[ts] = true
	}
	assert.Len(t, unique, numGoroutines*callsPerGoroutine)
}

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("")
	assert.Equal(t, "unit-1", gen.Generate())
	assert.Equal(t, "unit-2", gen.Generate())

	custom := NewSequentialIDs("scenario")
	assert.Equal(t, "scenario-1", custom.Generate())
}

func TestFixedID(t *testing.T) {
	assert.Equal(t, "unit-fixed", FixedID("").Generate())
	assert.Equal(t, "abc", FixedID("abc").Generate())
}
