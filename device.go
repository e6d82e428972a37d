package vkcompute

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Optional device extensions requested when present. Creation never fails
// because one of these is absent; it is silently omitted.
//
// VK_KHR_portability_subset must be enabled when the implementation
// advertises it (MoltenVK and other layered implementations).
var candidateDeviceExtensions = []string{
	"VK_KHR_portability_subset",
}

var (
	// ErrNilDevice is returned when device creation yields a null handle.
	ErrNilDevice = errors.New("vulkan device: creation returned null handle")
	// ErrNilQueue is returned when queue acquisition yields a null handle.
	ErrNilQueue = errors.New("vulkan queue: acquisition returned null handle")
)

// intersectSupported returns the requested names that appear in supported,
// preserving request order.
func intersectSupported(requested, supported []string) []string {
	have := make(map[string]bool, len(supported))
	for _, s := range supported {
		have[s] = true
	}
	enabled := make([]string, 0, len(requested))
	for _, r := range requested {
		if have[r] {
			enabled = append(enabled, r)
		}
	}
	return enabled
}

// createDevice builds the logical device the context will own. Exactly one
// queue is requested from the compute queue family, at priority 1.0.
// Any failure here is fatal to context construction; there is no device to
// compute on without it.
func createDevice(adapter *Adapter) (vk.Device, error) {
	assertf(adapter.VKPhysicalDevice != nil, "vulkan device: null physical device")

	supported, err := adapter.SupportedExtensions()
	if err != nil {
		return nil, err
	}
	enabled := intersectSupported(candidateDeviceExtensions, supported)

	queuePriorities := []float32{1.0}
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(adapter.ComputeQueueFamily),
		QueueCount:       1,
		PQueuePriorities: queuePriorities,
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueCreateInfo},
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: safeStrings(enabled),
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(adapter.VKPhysicalDevice, &deviceCreateInfo, nil, &device)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating device: %w", err)
	}
	if device == nil {
		return nil, ErrNilDevice
	}
	return device, nil
}

// acquireQueue fetches queue 0 of the given family from the device.
func acquireQueue(device vk.Device, queueFamily int) (vk.Queue, error) {
	assertf(device != nil, "vulkan queue: null device")

	var queue vk.Queue
	vk.GetDeviceQueue(device, uint32(queueFamily), 0, &queue)
	if queue == nil {
		return nil, ErrNilQueue
	}
	return queue, nil
}
