package vkcompute

import (
	"errors"
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// Adapter is a selectable physical GPU together with the compute queue
// family the context will run on. The adapter is the lending authority for
// the queue handle: a Context requests the queue once at construction and
// must return it at teardown. The adapter never destroys the queue, Vulkan
// queues live and die with their logical device.
type Adapter struct {
	Index              int
	DeviceName         string
	ComputeQueueFamily int

	VKPhysicalDevice           vk.PhysicalDevice
	VKPhysicalDeviceProperties vk.PhysicalDeviceProperties

	mu     sync.Mutex
	leased bool
}

var errQueueLeased = errors.New("vulkan queue: already leased")

// DeviceHandle returns the physical device handle this adapter targets.
func (a *Adapter) DeviceHandle() vk.PhysicalDevice {
	return a.VKPhysicalDevice
}

// IsDiscrete reports whether the adapter is a discrete GPU.
func (a *Adapter) IsDiscrete() bool {
	return a.VKPhysicalDeviceProperties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
}

// RequestQueue leases the adapter's compute queue out of the given logical
// device. At most one lease can be outstanding.
func (a *Adapter) RequestQueue(device vk.Device) (vk.Queue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.leased {
		return nil, errQueueLeased
	}

	queue, err := acquireQueue(device, a.ComputeQueueFamily)
	if err != nil {
		return nil, err
	}
	a.leased = true
	return queue, nil
}

// ReturnQueue ends the lease taken by RequestQueue. The handle itself is
// not destroyed; the underlying queue belongs to the logical device.
func (a *Adapter) ReturnQueue(queue vk.Queue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leased = false
}

// SupportedExtensions enumerates the device level extensions the physical
// device exposes.
func (a *Adapter) SupportedExtensions() ([]string, error) {
	var count uint32
	err := vk.Error(vk.EnumerateDeviceExtensionProperties(a.VKPhysicalDevice, "", &count, nil))
	if err != nil {
		return nil, fmt.Errorf("vulkan device: enumerating extensions: %w", err)
	}

	props := make([]vk.ExtensionProperties, count)
	err = vk.Error(vk.EnumerateDeviceExtensionProperties(a.VKPhysicalDevice, "", &count, props))
	if err != nil {
		return nil, fmt.Errorf("vulkan device: enumerating extensions: %w", err)
	}

	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

func (a *Adapter) String() string {
	return fmt.Sprintf("{ Index: %d Name: %s ComputeQueueFamily: %d }",
		a.Index, a.DeviceName, a.ComputeQueueFamily)
}

// computeQueueFamily returns the index of the first compute capable queue
// family of the physical device, or -1 when the device exposes none.
func computeQueueFamily(physicalDevice vk.PhysicalDevice) int {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, nil)
	if count == 0 {
		return -1
	}

	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(physicalDevice, &count, families)

	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			return i
		}
	}
	return -1
}

// FindMemoryType selects a memory type index satisfying both the type bits
// of an allocation and the requested property flags.
func (a *Adapter) FindMemoryType(memoryTypeBits uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(a.VKPhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	var i uint32
	for i = 0; i < memoryProperties.MemoryTypeCount; i++ {
		mt := memoryProperties.MemoryTypes[i]
		mt.Deref()
		if memoryTypeBits&(1<<i) != 0 &&
			vk.MemoryPropertyFlagBits(mt.PropertyFlags)&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vulkan device: no matching memory type")
}
