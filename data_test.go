package vkcompute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hostValue struct {
	hostCalls int
}

func (v *hostValue) DeviceLocal() bool { return false }

func (v *hostValue) Host(cb *CommandBuffer) Future {
	v.hostCalls++
	return Resolved()
}

func TestResolvedFutureIdempotent(t *testing.T) {
	f := Resolved()
	for i := 0; i < 3; i++ {
		assert.NoError(t, f.Wait())
	}
}

func TestWaitHostVisibleIsNoOp(t *testing.T) {
	// A host visible value must short-circuit before the context touches
	// any device state, so even a zero context serves.
	var c Context
	v := &hostValue{}

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Wait(v))
	}
	assert.Zero(t, v.hostCalls, "no transfer may be issued for host visible data")
}

func TestWorkGroupInvocations(t *testing.T) {
	assert.Equal(t, uint64(1), WorkGroup{X: 1, Y: 1, Z: 1}.Invocations())
	assert.Equal(t, uint64(64*64), WorkGroup{X: 64, Y: 64, Z: 1}.Invocations())
	assert.Equal(t, uint64(0), WorkGroup{X: 64, Y: 0, Z: 1}.Invocations())
}
