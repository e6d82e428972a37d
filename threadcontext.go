package vkcompute

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// ThreadResources is the per-thread bundle of transient GPU object pools.
// Every goroutine that touches the context gets its own bundle, so hot
// path pool access never crosses a lock. Goroutines that record Vulkan
// work are expected to have locked their OS thread, as vulkan-go programs
// do; the goroutine is therefore the unit of isolation here.
type ThreadResources struct {
	Descriptor *DescriptorPool
	Command    *CommandPool
}

func (t *ThreadResources) destroy() {
	t.Command.Destroy()
	t.Descriptor.Destroy()
}

// threadTable maps goroutine identity to an owned resource bundle.
// Only the owning goroutine ever inserts or removes its own key, so a
// bundle is constructed at most once per goroutine and never aliased;
// the sync.Map only arbitrates the map structure itself.
type threadTable[T any] struct {
	entries sync.Map // goroutine id -> T
	create  func() (T, error)
}

func newThreadTable[T any](create func() (T, error)) *threadTable[T] {
	return &threadTable[T]{create: create}
}

// current returns the calling goroutine's bundle, constructing it on
// first access.
func (t *threadTable[T]) current() (T, error) {
	id := goroutineID()
	if v, ok := t.entries.Load(id); ok {
		return v.(T), nil
	}

	v, err := t.create()
	if err != nil {
		var zero T
		return zero, err
	}
	t.entries.Store(id, v)
	return v, nil
}

// release drops the calling goroutine's bundle, handing it to the caller
// for teardown. ok is false when the goroutine never had one.
func (t *threadTable[T]) release() (T, bool) {
	id := goroutineID()
	v, ok := t.entries.LoadAndDelete(id)
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// drain removes every bundle, whoever owns it, handing each to destroy.
// Callers must guarantee no goroutine will touch the table again; the
// context uses it to reclaim unreleased bundles before the device goes
// away.
func (t *threadTable[T]) drain(destroy func(T)) {
	t.entries.Range(func(key, value any) bool {
		t.entries.Delete(key)
		destroy(value.(T))
		return true
	})
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the caller's goroutine id out of the stack header.
// Go deliberately hides goroutine identity, but a per-goroutine resource
// table needs a key, and the header format has been stable since 1.4.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	frame := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(frame, ' '); i > 0 {
		frame = frame[:i]
	}
	id, _ := strconv.ParseUint(string(frame), 10, 64)
	return id
}
