/*
Package vkcompute is a GPU compute execution context on top of Vulkan.

It owns a logical device connection and a compute queue, caches the
expensive GPU objects a compute dispatch needs (descriptor set layouts,
shader modules, pipeline layouts, compute pipelines), and isolates the
transient ones (descriptor sets, command buffers) in per-thread pools so
concurrent dispatching threads never contend on a lock.

The pieces fit together like this. A process has one Runtime, which owns
the Vulkan instance and the registry of adapters (physical GPUs with a
compute capable queue family). On top of the default adapter sits one
Context, reachable through Default; it creates and exclusively owns the
logical device, and borrows the adapter's compute queue for its lifetime.
Each goroutine that dispatches through the context lazily gets its own
ThreadResources bundle with a command buffer pool and a descriptor set
pool.

A dispatch is assembled in two phases. DispatchPrologue resolves the
pipeline for a (binding signature, shader, local work group) triple
through the shared caches, binds it, and allocates a descriptor set for
the dispatch. The caller then attaches its buffers to the set, and
DispatchEpilogue binds the set and records the dispatch over the global
extent. Work is fire-and-forget from the host's perspective: nothing
blocks until Wait is called on a device resident value, or Flush drains
the queue and recycles the calling goroutine's pools.

Goroutines that talk to the context should lock their OS thread for the
duration, as Vulkan programs in Go generally must.

The tensor/data layer, device selection policy and memory allocator
design are deliberately outside this package; they are collaborators
reached through small interfaces (DeviceResident, Future) and through the
adapter registry.
*/
package vkcompute
