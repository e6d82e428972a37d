package vkcompute

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBundle struct {
	id int
}

func TestThreadTableSameGoroutineSameBundle(t *testing.T) {
	next := 0
	table := newThreadTable(func() (*fakeBundle, error) {
		next++
		return &fakeBundle{id: next}, nil
	})

	a, err := table.current()
	require.NoError(t, err)
	b, err := table.current()
	require.NoError(t, err)

	assert.Same(t, a, b, "repeated access from one goroutine must return the same bundle")
	assert.Equal(t, 1, next)
}

func TestThreadTableDistinctGoroutines(t *testing.T) {
	var mu sync.Mutex
	next := 0
	table := newThreadTable(func() (*fakeBundle, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return &fakeBundle{id: next}, nil
	})

	const goroutines = 8
	bundles := make([]*fakeBundle, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Access twice, keep the second: both must be the same
			// instance within the goroutine.
			first, err := table.current()
			if err != nil {
				t.Error(err)
				return
			}
			second, err := table.current()
			if err != nil {
				t.Error(err)
				return
			}
			if first != second {
				t.Error("bundle changed between accesses on one goroutine")
				return
			}
			bundles[i] = second
		}(i)
	}
	wg.Wait()

	seen := map[*fakeBundle]bool{}
	for i, b := range bundles {
		require.NotNil(t, b, "goroutine %d got no bundle", i)
		assert.False(t, seen[b], "two goroutines observed the same bundle")
		seen[b] = true
	}
	assert.Equal(t, goroutines, next)
}

func TestThreadTableRelease(t *testing.T) {
	next := 0
	table := newThreadTable(func() (*fakeBundle, error) {
		next++
		return &fakeBundle{id: next}, nil
	})

	_, ok := table.release()
	assert.False(t, ok, "release with no bundle must report absence")

	a, err := table.current()
	require.NoError(t, err)

	released, ok := table.release()
	require.True(t, ok)
	assert.Same(t, a, released)

	b, err := table.current()
	require.NoError(t, err)
	assert.NotSame(t, a, b, "access after release must construct a fresh bundle")
}

func TestThreadTableDrainReclaimsAllBundles(t *testing.T) {
	var mu sync.Mutex
	next := 0
	table := newThreadTable(func() (*fakeBundle, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return &fakeBundle{id: next}, nil
	})

	_, err := table.current()
	require.NoError(t, err)

	const workers = 3
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A worker that exits without releasing its bundle.
			if _, err := table.current(); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	destroyed := 0
	table.drain(func(*fakeBundle) { destroyed++ })
	assert.Equal(t, workers+1, destroyed, "drain must reach bundles whose goroutines are gone")

	_, ok := table.release()
	assert.False(t, ok, "no bundle may survive a drain")
}

func TestGoroutineID(t *testing.T) {
	id := goroutineID()
	assert.NotZero(t, id)
	assert.Equal(t, id, goroutineID(), "goroutine id must be stable within a goroutine")

	var other uint64
	done := make(chan struct{})
	go func() {
		other = goroutineID()
		close(done)
	}()
	<-done
	assert.NotEqual(t, id, other)
}
