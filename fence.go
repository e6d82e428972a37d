package vkcompute

import (
	"fmt"
	"math"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// Fence is a host visible signal that a submitted batch has completed.
type Fence struct {
	VKDevice vk.Device
	VKFence  vk.Fence
}

func createFence(device vk.Device) (*Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}

	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(device, &fenceCreateInfo, nil, &fence)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating fence: %w", err)
	}
	return &Fence{VKDevice: device, VKFence: fence}, nil
}

// Wait blocks until the fence is signaled.
func (f *Fence) Wait() error {
	return f.WaitFor(time.Duration(math.MaxInt64))
}

// WaitFor blocks until the fence is signaled or the timeout elapses.
func (f *Fence) WaitFor(timeout time.Duration) error {
	fences := []vk.Fence{f.VKFence}
	err := vk.Error(vk.WaitForFences(f.VKDevice, 1, fences, vk.True, uint64(timeout.Nanoseconds())))
	if err != nil {
		return fmt.Errorf("vulkan queue: waiting for fence: %w", err)
	}
	return nil
}

func (f *Fence) Destroy() {
	vk.DestroyFence(f.VKDevice, f.VKFence, nil)
}
