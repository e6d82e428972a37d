package vkcompute

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
	"go.uber.org/zap"
)

// Context is the compute execution context: one logical device, one
// compute queue, the shared shader and pipeline caches, and the table of
// per-thread resource bundles. There is one per process, reachable through
// Default; it is never reconstructed or replaced.
type Context struct {
	// VKDevice is exclusively owned and destroyed with the context.
	VKDevice vk.Device

	runtime      *Runtime
	adapter      *Adapter
	adapterIndex int

	// queue is borrowed from the adapter and returned on Destroy.
	queue *Queue

	layoutCache         *objectCache[layoutKey, *ShaderLayout]
	shaderCache         *objectCache[shaderKey, *ShaderModule]
	pipelineLayoutCache *objectCache[vk.DescriptorSetLayout, vk.PipelineLayout]
	pipelineCache       *objectCache[pipelineKey, *ComputePipeline]
	pipelines           *pipelineFactory

	threads *threadTable[*ThreadResources]
}

// NewContext builds a context on the given adapter. Most programs want the
// process wide Default instead; NewContext exists for embedders that
// manage their own runtime and for tests.
func NewContext(rt *Runtime, adapterIndex int) (*Context, error) {
	adapter, err := rt.Adapter(adapterIndex)
	if err != nil {
		return nil, err
	}

	device, err := createDevice(adapter)
	if err != nil {
		return nil, err
	}

	queueHandle, err := adapter.RequestQueue(device)
	if err != nil {
		vk.DestroyDevice(device, nil)
		return nil, err
	}

	pipelines, err := newPipelineFactory(device)
	if err != nil {
		adapter.ReturnQueue(queueHandle)
		vk.DestroyDevice(device, nil)
		return nil, err
	}

	queue := &Queue{VKQueue: queueHandle}

	c := &Context{
		VKDevice:            device,
		runtime:             rt,
		adapter:             adapter,
		adapterIndex:        adapterIndex,
		queue:               queue,
		layoutCache:         newLayoutCache(device),
		shaderCache:         newShaderCache(device),
		pipelineLayoutCache: newPipelineLayoutCache(device),
		pipelineCache:       pipelines.newPipelineCache(),
		pipelines:           pipelines,
	}
	c.threads = newThreadTable(func() (*ThreadResources, error) {
		descriptor, err := createDescriptorPool(device)
		if err != nil {
			return nil, err
		}
		command, err := createCommandPool(device, adapter.ComputeQueueFamily, queue)
		if err != nil {
			descriptor.Destroy()
			return nil, err
		}
		return &ThreadResources{Descriptor: descriptor, Command: command}, nil
	})

	log().Info("vulkan context created",
		zap.Int("adapter", adapterIndex),
		zap.String("device", adapter.DeviceName))

	return c, nil
}

// Instance returns the instance handle. The runtime retains ownership; the
// context only holds a reference.
func (c *Context) Instance() vk.Instance {
	return c.runtime.Instance()
}

// AdapterIndex identifies which physical device this context targets.
func (c *Context) AdapterIndex() int {
	return c.adapterIndex
}

// Queue returns the context's compute queue.
func (c *Context) Queue() *Queue {
	return c.queue
}

// Thread returns the calling goroutine's resource bundle, creating it on
// first access. Bundles never migrate between goroutines.
func (c *Context) Thread() (*ThreadResources, error) {
	return c.threads.current()
}

// ReleaseThread tears down the calling goroutine's resource bundle.
// Worker goroutines that dispatched through the context should call this
// before exiting; bundles are otherwise retained for the life of the
// context.
func (c *Context) ReleaseThread() {
	if t, ok := c.threads.release(); ok {
		t.destroy()
	}
}

// Flush blocks until the queue is idle, then purges the calling
// goroutine's command and descriptor pools. Every descriptor set and
// command buffer this goroutine allocated before the flush is invalidated.
// Other goroutines' pools are deliberately left alone: each bundle is
// purged only by its owner.
func (c *Context) Flush() error {
	thread, err := c.Thread()
	if err != nil {
		return err
	}
	if err := thread.Command.Submit(nil); err != nil {
		return err
	}
	if err := c.queue.WaitIdle(); err != nil {
		return err
	}
	if err := thread.Command.Purge(); err != nil {
		return err
	}
	return thread.Descriptor.Purge()
}

// Wait forces host visibility of a value. It is a no-op for values that
// are already host visible. For device resident values it records the
// value's host transfer on the calling goroutine's command stream and
// blocks until the transfer completes. This is the only explicit
// host/device synchronization point the context exposes; dispatches are
// otherwise fire-and-forget from the host's perspective.
func (c *Context) Wait(v DeviceResident) error {
	if !v.DeviceLocal() {
		return nil
	}

	thread, err := c.Thread()
	if err != nil {
		return err
	}
	cb, err := thread.Command.Stream()
	if err != nil {
		return err
	}
	return v.Host(cb).Wait()
}

// NewTransferFuture creates the future a DeviceResident implementation
// hands back from Host: waiting on it submits the calling goroutine's
// command stream with a fence and blocks until the device signals it.
func (c *Context) NewTransferFuture() (Future, error) {
	thread, err := c.Thread()
	if err != nil {
		return nil, err
	}
	fence, err := createFence(c.VKDevice)
	if err != nil {
		return nil, err
	}
	return newFenceFuture(thread.Command, fence), nil
}

// Destroy returns the borrowed queue to the adapter and destroys the
// owned device and the shared caches. It does not flush: worker
// goroutines are expected to have released their bundles already, and any
// they left behind are reclaimed here so the device is destroyed with no
// live children.
func (c *Context) Destroy() {
	c.adapter.ReturnQueue(c.queue.VKQueue)

	c.threads.drain(func(t *ThreadResources) { t.destroy() })

	c.pipelineCache.Purge(destroyComputePipeline(c.VKDevice))
	c.pipelineLayoutCache.Purge(destroyPipelineLayout(c.VKDevice))
	c.shaderCache.Purge(destroyShaderModule(c.VKDevice))
	c.layoutCache.Purge(destroyShaderLayout(c.VKDevice))
	c.pipelines.destroy()

	vk.DestroyDevice(c.VKDevice, nil)
}

var (
	contextOnce     sync.Once
	contextInstance *Context
	contextErr      error
)

// Default returns the lazily constructed process wide context. A
// construction failure is latched: every subsequent call reports the same
// descriptive error and no usable-but-broken context ever escapes.
func Default() (*Context, error) {
	contextOnce.Do(func() {
		rt, err := DefaultRuntime()
		if err != nil {
			contextErr = fmt.Errorf("vulkan context: failed to initialize: %w", err)
			return
		}
		contextInstance, err = NewContext(rt, rt.DefaultAdapterIndex())
		if err != nil {
			contextErr = fmt.Errorf("vulkan context: failed to initialize: %w", err)
		}
	})
	return contextInstance, contextErr
}

// Available reports whether the process wide context exists or can be
// constructed. Callers use it to decide between GPU compute and their own
// fallback; there is no software fallback inside this module.
func Available() bool {
	_, err := Default()
	return err == nil
}
