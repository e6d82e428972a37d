package vkcompute

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// Queue wraps the single compute queue a context submits to. Vulkan
// requires submissions to one queue to be externally serialized, so every
// submit and wait takes the queue mutex; recording into per-thread command
// buffers stays lock free.
type Queue struct {
	VKQueue vk.Queue

	mu sync.Mutex
}

// Submit hands the command buffers to the device, signaling fence on
// completion. fence may be nil.
func (q *Queue) Submit(fence *Fence, buffers ...*CommandBuffer) error {
	handles := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		handles[i] = buffers[i].VKCommandBuffer
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(handles)),
		PCommandBuffers:    handles,
	}

	var vkFence vk.Fence
	if fence != nil {
		vkFence = fence.VKFence
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	err := vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, vkFence))
	if err != nil {
		return fmt.Errorf("vulkan queue: submit: %w", err)
	}
	return nil
}

// WaitIdle blocks until every submission on the queue has completed.
func (q *Queue) WaitIdle() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := vk.Error(vk.QueueWaitIdle(q.VKQueue)); err != nil {
		return fmt.Errorf("vulkan queue: wait idle: %w", err)
	}
	return nil
}
