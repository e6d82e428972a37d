package vkcompute

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectCacheIdentityStable(t *testing.T) {
	created := 0
	cache := newObjectCache(func(key string) (*int, error) {
		created++
		v := len(key)
		return &v, nil
	})

	a, err := cache.Retrieve("alpha")
	require.NoError(t, err)
	b, err := cache.Retrieve("alpha")
	require.NoError(t, err)

	assert.Same(t, a, b, "equal keys must yield the identical cached object")
	assert.Equal(t, 1, created, "factory must run once per distinct key")
}

func TestObjectCacheDistinctKeys(t *testing.T) {
	cache := newObjectCache(func(key string) (*int, error) {
		v := len(key)
		return &v, nil
	})

	a, err := cache.Retrieve("alpha")
	require.NoError(t, err)
	b, err := cache.Retrieve("beta")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, cache.Len())
}

func TestObjectCacheCreationFailureNotStored(t *testing.T) {
	fail := true
	cache := newObjectCache(func(key string) (*int, error) {
		if fail {
			return nil, errors.New("compile error")
		}
		v := 42
		return &v, nil
	})

	_, err := cache.Retrieve("k")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len(), "failed creation must not leave a cache entry")

	fail = false
	v, err := cache.Retrieve("k")
	require.NoError(t, err)
	assert.Equal(t, 42, *v)
}

func TestObjectCachePurge(t *testing.T) {
	cache := newObjectCache(func(key string) (*int, error) {
		v := len(key)
		return &v, nil
	})

	first, err := cache.Retrieve("k")
	require.NoError(t, err)

	destroyed := 0
	cache.Purge(func(*int) { destroyed++ })
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 0, cache.Len())

	second, err := cache.Retrieve("k")
	require.NoError(t, err)
	assert.NotSame(t, first, second, "purge must drop the old entry")
}

func TestObjectCacheConcurrentRetrieve(t *testing.T) {
	var mu sync.Mutex
	created := map[string]int{}
	cache := newObjectCache(func(key string) (*int, error) {
		mu.Lock()
		created[key]++
		mu.Unlock()
		v := len(key)
		return &v, nil
	})

	const workers = 16
	keys := []string{"a", "bb", "ccc", "dddd"}
	results := make([][]*int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, k := range keys {
				v, err := cache.Retrieve(k)
				if err != nil {
					t.Error(err)
					return
				}
				results[w] = append(results[w], v)
			}
		}(w)
	}
	wg.Wait()

	for _, k := range keys {
		assert.Equal(t, 1, created[k], fmt.Sprintf("key %q created more than once", k))
	}
	for w := 1; w < workers; w++ {
		for i := range keys {
			assert.Same(t, results[0][i], results[w][i])
		}
	}
}
