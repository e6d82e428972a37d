package vkcompute

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Descriptor pool capacity per thread. Purge reclaims everything, so these
// only bound how many dispatches can be in flight between purges.
const (
	descriptorPoolMaxSets      = 1024
	descriptorPoolTypeCapacity = 1024
)

// DescriptorPool hands out one-shot descriptor sets for dispatches. Each
// pool belongs to exactly one thread's resource bundle, so allocation is
// not synchronized.
type DescriptorPool struct {
	VKDevice         vk.Device
	VKDescriptorPool vk.DescriptorPool
}

func createDescriptorPool(device vk.Device) (*DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: descriptorPoolTypeCapacity},
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: descriptorPoolTypeCapacity},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: descriptorPoolTypeCapacity},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: descriptorPoolTypeCapacity},
	}

	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       descriptorPoolMaxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(device, &createInfo, nil, &pool)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating descriptor pool: %w", err)
	}
	return &DescriptorPool{VKDevice: device, VKDescriptorPool: pool}, nil
}

// Allocate carves a descriptor set matching the given layout out of the
// pool. The set is scoped to a single dispatch and becomes invalid when
// the pool is purged.
func (p *DescriptorPool) Allocate(layout *ShaderLayout) (*DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.VKDescriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout.VKDescriptorSetLayout},
	}

	var set vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(p.VKDevice, &allocateInfo, &set)); err != nil {
		return nil, fmt.Errorf("vulkan device: allocating descriptor set: %w", err)
	}

	return &DescriptorSet{
		VKDevice:        p.VKDevice,
		VKDescriptorSet: set,
		Layout:          layout,
	}, nil
}

// Purge resets the pool, invalidating every descriptor set allocated from
// it. The caller must guarantee no pending dispatch still references them.
func (p *DescriptorPool) Purge() error {
	if err := vk.Error(vk.ResetDescriptorPool(p.VKDevice, p.VKDescriptorPool, 0)); err != nil {
		return fmt.Errorf("vulkan device: resetting descriptor pool: %w", err)
	}
	return nil
}

func (p *DescriptorPool) Destroy() {
	vk.DestroyDescriptorPool(p.VKDevice, p.VKDescriptorPool, nil)
}

// DescriptorSet is a transient binding of resources for one dispatch.
// Between dispatch prologue and epilogue the caller attaches its buffers
// with BindBuffer and flushes them with Write.
type DescriptorSet struct {
	VKDevice        vk.Device
	VKDescriptorSet vk.DescriptorSet
	Layout          *ShaderLayout

	writes []vk.WriteDescriptorSet
}

// BindBuffer attaches a buffer range to a binding slot. The descriptor
// type is recovered from the layout signature the set was allocated for.
func (s *DescriptorSet) BindBuffer(binding int, buffer *Buffer) error {
	if binding < 0 || binding >= len(s.Layout.Signature) {
		return fmt.Errorf("vulkan device: binding %d outside layout signature (%d bindings)",
			binding, len(s.Layout.Signature))
	}

	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer.VKBuffer,
		Offset: 0,
		Range:  vk.DeviceSize(buffer.Size),
	}

	s.writes = append(s.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          s.VKDescriptorSet,
		DstBinding:      uint32(binding),
		DescriptorCount: 1,
		DescriptorType:  s.Layout.Signature[binding],
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	})
	return nil
}

// Write flushes the accumulated bindings to the device.
func (s *DescriptorSet) Write() {
	if len(s.writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(s.VKDevice, uint32(len(s.writes)), s.writes, 0, nil)
	s.writes = s.writes[:0]
}
