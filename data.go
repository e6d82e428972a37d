package vkcompute

// The tensor/data layer lives outside this module. The context only needs
// to know whether a value is device resident, and how to ask for a host
// visible copy of it.

// Future is the handle to an in-flight host transfer. Wait blocks until
// the transferred data is observable on the host.
type Future interface {
	Wait() error
}

// DeviceResident is a value that may live in device memory. Host records
// whatever transfer is needed onto the given command buffer and returns a
// future that resolves once the data is host visible. Values already host
// visible return an immediately resolved future and record nothing.
type DeviceResident interface {
	DeviceLocal() bool
	Host(cb *CommandBuffer) Future
}

// resolvedFuture is the no-op future for data that is already host
// visible. Wait is idempotent.
type resolvedFuture struct{}

func (resolvedFuture) Wait() error { return nil }

// Resolved returns a future that is already complete.
func Resolved() Future {
	return resolvedFuture{}
}

// fenceFuture resolves by submitting the pending command stream and
// blocking on the fence.
type fenceFuture struct {
	pool  *CommandPool
	fence *Fence

	done bool
	err  error
}

func newFenceFuture(pool *CommandPool, fence *Fence) *fenceFuture {
	return &fenceFuture{pool: pool, fence: fence}
}

func (f *fenceFuture) Wait() error {
	if f.done {
		return f.err
	}
	f.done = true
	defer f.fence.Destroy()

	if err := f.pool.Submit(f.fence); err != nil {
		f.err = err
		return err
	}
	f.err = f.fence.Wait()
	return f.err
}
