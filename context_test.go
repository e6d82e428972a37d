package vkcompute

import (
	"encoding/binary"
	"math"
	"os"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

// requireContext skips the test when no Vulkan implementation is present,
// so the GPU-touching tests run only on machines with an ICD.
func requireContext(t *testing.T) *Context {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping GPU test in short mode")
	}
	if !Available() {
		t.Skip("no vulkan implementation available")
	}
	c, err := Default()
	require.NoError(t, err)
	return c
}

// A context must not come into existence on a bad adapter index; callers
// see the error and never a half-built context.
func TestNewContextRejectsBadAdapterIndex(t *testing.T) {
	rt := &Runtime{defaultI: -1}

	c, err := NewContext(rt, 0)
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "out of range")

	c, err = NewContext(rt, -1)
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "out of range")
}

func TestDefaultIsSingleton(t *testing.T) {
	c := requireContext(t)

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, c, again, "the context must never be reconstructed")
	assert.True(t, Available())
}

func TestThreadBundleIsolation(t *testing.T) {
	c := requireContext(t)

	main, err := c.Thread()
	require.NoError(t, err)

	var other *ThreadResources
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		var err error
		other, err = c.Thread()
		if err != nil {
			t.Error(err)
			return
		}
		c.ReleaseThread()
	}()
	wg.Wait()

	require.NotNil(t, other)
	assert.NotSame(t, main, other)
	assert.NotSame(t, main.Descriptor, other.Descriptor, "descriptor pools must not alias")
	assert.NotSame(t, main.Command, other.Command, "command pools must not alias")
}

func TestSharedCacheIdentityOnDevice(t *testing.T) {
	c := requireContext(t)

	sig := LayoutSignature{vk.DescriptorTypeStorageBuffer}
	a, err := c.layoutCache.Retrieve(sig.encode())
	require.NoError(t, err)
	b, err := c.layoutCache.Retrieve(append(LayoutSignature{}, sig...).encode())
	require.NoError(t, err)
	assert.Same(t, a, b)

	distinct, err := c.layoutCache.Retrieve(LayoutSignature{vk.DescriptorTypeUniformBuffer}.encode())
	require.NoError(t, err)
	assert.NotSame(t, a, distinct)
}

func TestFlushThenReuse(t *testing.T) {
	c := requireContext(t)

	thread, err := c.Thread()
	require.NoError(t, err)

	layout, err := c.layoutCache.Retrieve(LayoutSignature{vk.DescriptorTypeStorageBuffer}.encode())
	require.NoError(t, err)

	_, err = thread.Descriptor.Allocate(layout)
	require.NoError(t, err)
	_, err = thread.Command.Stream()
	require.NoError(t, err)

	require.NoError(t, c.Flush())

	// Pools must be reusable after the purge.
	set, err := thread.Descriptor.Allocate(layout)
	require.NoError(t, err)
	assert.NotNil(t, set)
	cb, err := thread.Command.Stream()
	require.NoError(t, err)
	assert.NotNil(t, cb)

	require.NoError(t, c.Flush())
}

func TestStorageBufferRoundTrip(t *testing.T) {
	c := requireContext(t)

	buf, err := c.NewStorageBuffer(256)
	require.NoError(t, err)
	defer buf.Destroy()

	data, err := buf.Map()
	require.NoError(t, err)
	require.Len(t, data, 256)

	for i := range data {
		data[i] = byte(i)
	}
	again, err := buf.Map()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

// TestDispatchProtocol runs the whole prologue/epilogue flow against a
// real shader: one storage buffer binding, local size (8,8,1) supplied
// through specialization constants, global size (64,64,1). The kernel
// doubles each element. Build testdata/double.comp.spv with
// glslangValidator to enable it.
func TestDispatchProtocol(t *testing.T) {
	c := requireContext(t)

	code, err := os.ReadFile("testdata/double.comp.spv")
	if err != nil {
		t.Skip("testdata/double.comp.spv not built")
	}
	shader := NewShaderDescriptor(code)

	const elems = 512 * 512
	buf, err := c.NewStorageBuffer(elems * 4)
	require.NoError(t, err)
	defer buf.Destroy()

	data, err := buf.Map()
	require.NoError(t, err)
	for i := 0; i < elems; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(1.5))
	}

	thread, err := c.Thread()
	require.NoError(t, err)
	cb, err := thread.Command.Stream()
	require.NoError(t, err)

	signature := LayoutSignature{vk.DescriptorTypeStorageBuffer}
	set, err := c.DispatchPrologue(cb, signature, shader, WorkGroup{X: 8, Y: 8, Z: 1})
	require.NoError(t, err)
	require.NoError(t, set.BindBuffer(0, buf))

	require.NoError(t, c.DispatchEpilogue(cb, set, WorkGroup{X: 64, Y: 64, Z: 1}))
	require.NoError(t, c.Flush())

	for i := 0; i < elems; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		require.Equal(t, float32(3.0), got, "element %d", i)
	}
}
