package vkcompute

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// CommandPool owns the command buffers of one thread's resource bundle.
// Stream hands out the pool's current recording target; Submit retires it
// to the queue; Purge reclaims every buffer allocated since the last
// purge. None of this is synchronized: the pool is private to the thread
// that created it.
type CommandPool struct {
	VKDevice      vk.Device
	VKCommandPool vk.CommandPool

	queue     *Queue
	stream    *CommandBuffer
	allocated []vk.CommandBuffer
}

func createCommandPool(device vk.Device, queueFamily int, queue *Queue) (*CommandPool, error) {
	createInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: uint32(queueFamily),
	}

	var pool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(device, &createInfo, nil, &pool)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating command pool: %w", err)
	}

	return &CommandPool{
		VKDevice:      device,
		VKCommandPool: pool,
		queue:         queue,
	}, nil
}

// Stream returns the pool's open command buffer, allocating and beginning
// a fresh one if none is recording. Consecutive dispatches from the same
// thread accumulate on the same stream until it is submitted.
func (p *CommandPool) Stream() (*CommandBuffer, error) {
	if p.stream != nil {
		return p.stream, nil
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.VKCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(p.VKDevice, &allocateInfo, handles)); err != nil {
		return nil, fmt.Errorf("vulkan device: allocating command buffer: %w", err)
	}
	p.allocated = append(p.allocated, handles[0])

	cb := &CommandBuffer{VKCommandBuffer: handles[0]}
	if err := cb.begin(); err != nil {
		return nil, err
	}
	p.stream = cb
	return cb, nil
}

// Submit ends the open stream and hands it to the queue, signaling fence
// on completion. fence may be nil for fire-and-forget submission. A pool
// with no open stream submits nothing.
func (p *CommandPool) Submit(fence *Fence) error {
	if p.stream == nil {
		return nil
	}
	cb := p.stream
	p.stream = nil

	if err := cb.end(); err != nil {
		return err
	}
	return p.queue.Submit(fence, cb)
}

// Purge frees every command buffer allocated from the pool and resets its
// backing storage. Outstanding work must have drained first; Context.Flush
// waits for the queue before purging.
func (p *CommandPool) Purge() error {
	p.stream = nil
	if len(p.allocated) > 0 {
		vk.FreeCommandBuffers(p.VKDevice, p.VKCommandPool, uint32(len(p.allocated)), p.allocated)
		p.allocated = p.allocated[:0]
	}
	if err := vk.Error(vk.ResetCommandPool(p.VKDevice, p.VKCommandPool, 0)); err != nil {
		return fmt.Errorf("vulkan device: resetting command pool: %w", err)
	}
	return nil
}

func (p *CommandPool) Destroy() {
	vk.DestroyCommandPool(p.VKDevice, p.VKCommandPool, nil)
}

// CommandBuffer is a recording target for a sequence of compute commands.
// Commands execute in recording order once the buffer is submitted.
type CommandBuffer struct {
	VKCommandBuffer vk.CommandBuffer

	boundLayout vk.PipelineLayout
	recording   bool
}

var errNoBoundPipeline = errors.New("vulkan device: descriptor set bound before pipeline")

func (c *CommandBuffer) begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo)); err != nil {
		return fmt.Errorf("vulkan device: beginning command buffer: %w", err)
	}
	c.recording = true
	return nil
}

func (c *CommandBuffer) end() error {
	if !c.recording {
		return nil
	}
	c.recording = false
	if err := vk.Error(vk.EndCommandBuffer(c.VKCommandBuffer)); err != nil {
		return fmt.Errorf("vulkan device: ending command buffer: %w", err)
	}
	return nil
}

// BindPipeline binds a compute pipeline and remembers its layout for the
// descriptor set bind that follows.
func (c *CommandBuffer) BindPipeline(pipeline *ComputePipeline) {
	vk.CmdBindPipeline(c.VKCommandBuffer, vk.PipelineBindPointCompute, pipeline.VKPipeline)
	c.boundLayout = pipeline.VKPipelineLayout
}

// BindDescriptorSet binds the set against the layout of the previously
// bound pipeline.
func (c *CommandBuffer) BindDescriptorSet(set *DescriptorSet) error {
	if c.boundLayout == vk.NullPipelineLayout {
		return errNoBoundPipeline
	}
	vk.CmdBindDescriptorSets(c.VKCommandBuffer, vk.PipelineBindPointCompute,
		c.boundLayout, 0, 1, []vk.DescriptorSet{set.VKDescriptorSet}, 0, nil)
	return nil
}

// Dispatch records a compute dispatch over the given global work group
// extent.
func (c *CommandBuffer) Dispatch(global WorkGroup) {
	vk.CmdDispatch(c.VKCommandBuffer, global.X, global.Y, global.Z)
}

// CopyBuffer records a full-range copy between two buffers. Data layer
// collaborators use this to stage device resident values back to host
// visible memory.
func (c *CommandBuffer) CopyBuffer(src, dst *Buffer) {
	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(src.Size),
	}
	vk.CmdCopyBuffer(c.VKCommandBuffer, src.VKBuffer, dst.VKBuffer, 1, []vk.BufferCopy{region})
}
