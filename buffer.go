package vkcompute

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Buffer is a host visible storage buffer with its backing device memory.
// It is the minimal storage surface the context's own components need:
// the data layer proper (tensors, staging, sub-allocation) lives outside
// this module and talks to the context through DeviceResident.
type Buffer struct {
	Size           int
	VKBuffer       vk.Buffer
	VKDeviceMemory vk.DeviceMemory

	device vk.Device
	mapped unsafe.Pointer
}

// NewStorageBuffer allocates a host visible, host coherent storage buffer
// of the given size on the context's device.
func (c *Context) NewStorageBuffer(size int) (*Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(c.VKDevice, &createInfo, nil, &buffer)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating buffer: %w", err)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.VKDevice, buffer, &requirements)
	requirements.Deref()

	memoryTypeIndex, err := c.adapter.FindMemoryType(
		requirements.MemoryTypeBits,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyBuffer(c.VKDevice, buffer, nil)
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(c.VKDevice, &allocateInfo, nil, &memory)); err != nil {
		vk.DestroyBuffer(c.VKDevice, buffer, nil)
		return nil, fmt.Errorf("vulkan device: allocating buffer memory: %w", err)
	}

	if err := vk.Error(vk.BindBufferMemory(c.VKDevice, buffer, memory, 0)); err != nil {
		vk.FreeMemory(c.VKDevice, memory, nil)
		vk.DestroyBuffer(c.VKDevice, buffer, nil)
		return nil, fmt.Errorf("vulkan device: binding buffer memory: %w", err)
	}

	return &Buffer{
		Size:           size,
		VKBuffer:       buffer,
		VKDeviceMemory: memory,
		device:         c.VKDevice,
	}, nil
}

// Map makes the buffer's memory addressable from the host and returns its
// contents as a byte slice. The slice stays valid until Unmap.
func (b *Buffer) Map() ([]byte, error) {
	if b.mapped == nil {
		var ptr unsafe.Pointer
		err := vk.Error(vk.MapMemory(b.device, b.VKDeviceMemory, 0, vk.DeviceSize(b.Size), 0, &ptr))
		if err != nil {
			return nil, fmt.Errorf("vulkan device: mapping buffer memory: %w", err)
		}
		b.mapped = ptr
	}
	const m = 0x7fffffff
	return (*[m]byte)(b.mapped)[:b.Size:b.Size], nil
}

// Unmap releases the host mapping.
func (b *Buffer) Unmap() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device, b.VKDeviceMemory)
		b.mapped = nil
	}
}

func (b *Buffer) Destroy() {
	b.Unmap()
	vk.DestroyBuffer(b.device, b.VKBuffer, nil)
	vk.FreeMemory(b.device, b.VKDeviceMemory, nil)
}
