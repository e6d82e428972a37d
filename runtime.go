package vkcompute

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"go.uber.org/zap"
)

// Runtime owns the process wide Vulkan instance and the registry of
// adapters discovered on it. Contexts borrow from it: the instance handle
// is shared and the per-adapter queues are leased out and returned.
type Runtime struct {
	VKInstance vk.Instance

	adapters []*Adapter
	defaultI int
}

// RuntimeOption configures instance creation.
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	appName    string
	validation bool
}

// WithAppName sets the application name reported to the Vulkan loader.
func WithAppName(name string) RuntimeOption {
	return func(c *runtimeConfig) { c.appName = name }
}

// WithValidation enables the Khronos validation layer and the debug report
// callback. Validation failures are reported through the package logger.
func WithValidation() RuntimeOption {
	return func(c *runtimeConfig) { c.validation = true }
}

// ErrNoAdapter is returned when the instance exposes no compute capable
// physical device.
var ErrNoAdapter = errors.New("vulkan context: no compute capable adapter")

// NewRuntime initializes the Vulkan loader, creates the instance, and
// enumerates compute capable adapters.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	cfg := runtimeConfig{appName: "vkcompute"}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, fmt.Errorf("vulkan context: loader: %w", err)
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("vulkan context: init: %w", err)
	}

	appInfo := vk.ApplicationInfo{
		SType:            vk.StructureTypeApplicationInfo,
		PApplicationName: safeString(cfg.appName),
		PEngineName:      safeString("vkcompute"),
		ApiVersion:       vk.MakeVersion(1, 0, 0),
	}

	var layers, extensions []string
	if cfg.validation {
		layers = intersectSupported([]string{"VK_LAYER_KHRONOS_validation"}, instanceLayers())
		extensions = append(extensions, "VK_EXT_debug_report")
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return nil, fmt.Errorf("vulkan context: creating instance: %w", err)
	}
	vk.InitInstance(instance)

	r := &Runtime{VKInstance: instance, defaultI: -1}
	if err := r.enumerateAdapters(); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	if cfg.validation {
		if err := r.installDebugCallback(); err != nil {
			log().Warn("debug callback unavailable", zap.Error(err))
		}
	}

	log().Info("vulkan runtime initialized",
		zap.Int("adapters", len(r.adapters)),
		zap.Int("default_adapter", r.defaultI))

	return r, nil
}

func (r *Runtime) enumerateAdapters() error {
	var count uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(r.VKInstance, &count, nil)); err != nil {
		return fmt.Errorf("vulkan context: enumerating devices: %w", err)
	}
	if count == 0 {
		return ErrNoAdapter
	}

	devices := make([]vk.PhysicalDevice, count)
	if err := vk.Error(vk.EnumeratePhysicalDevices(r.VKInstance, &count, devices)); err != nil {
		return fmt.Errorf("vulkan context: enumerating devices: %w", err)
	}

	for _, device := range devices {
		family := computeQueueFamily(device)
		if family < 0 {
			continue
		}

		a := &Adapter{
			Index:              len(r.adapters),
			ComputeQueueFamily: family,
			VKPhysicalDevice:   device,
		}
		vk.GetPhysicalDeviceProperties(device, &a.VKPhysicalDeviceProperties)
		a.VKPhysicalDeviceProperties.Deref()
		a.DeviceName = vk.ToString(a.VKPhysicalDeviceProperties.DeviceName[:])

		r.adapters = append(r.adapters, a)

		// Prefer the first discrete GPU as the default.
		if r.defaultI < 0 || (a.IsDiscrete() && !r.adapters[r.defaultI].IsDiscrete()) {
			r.defaultI = a.Index
		}
	}

	if len(r.adapters) == 0 {
		return ErrNoAdapter
	}
	return nil
}

// Adapter returns the adapter at the given index.
func (r *Runtime) Adapter(i int) (*Adapter, error) {
	if i < 0 || i >= len(r.adapters) {
		return nil, fmt.Errorf("vulkan context: adapter %d out of range", i)
	}
	return r.adapters[i], nil
}

// Adapters returns every compute capable adapter discovered on the
// instance.
func (r *Runtime) Adapters() []*Adapter {
	return r.adapters
}

// DefaultAdapterIndex returns the preferred adapter index.
func (r *Runtime) DefaultAdapterIndex() int {
	return r.defaultI
}

// Instance returns the instance handle. The runtime retains ownership.
func (r *Runtime) Instance() vk.Instance {
	return r.VKInstance
}

func (r *Runtime) installDebugCallback() error {
	var callback vk.DebugReportCallback
	ret := vk.CreateDebugReportCallback(r.VKInstance, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
		PfnCallback: debugReport,
	}, nil, &callback)
	return vk.Error(ret)
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, layerPrefix string,
	message string, userData unsafe.Pointer) vk.Bool32 {

	fields := []zap.Field{
		zap.String("layer", layerPrefix),
		zap.Int32("code", messageCode),
	}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log().Error(message, fields...)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log().Warn(message, fields...)
	default:
		log().Info(message, fields...)
	}
	return vk.Bool32(vk.False)
}

func instanceLayers() []string {
	var count uint32
	if vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)) != nil {
		return nil
	}
	props := make([]vk.LayerProperties, count)
	if vk.Error(vk.EnumerateInstanceLayerProperties(&count, props)) != nil {
		return nil
	}
	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names
}

var (
	runtimeOnce     sync.Once
	runtimeInstance *Runtime
	runtimeErr      error
)

// DefaultRuntime returns the lazily constructed process wide runtime. The
// first caller's error, if any, is latched and returned to every
// subsequent caller; the runtime is never reconstructed.
func DefaultRuntime() (*Runtime, error) {
	runtimeOnce.Do(func() {
		runtimeInstance, runtimeErr = NewRuntime()
		if runtimeErr != nil {
			runtimeErr = fmt.Errorf("vulkan context: failed to initialize runtime: %w", runtimeErr)
		}
	})
	return runtimeInstance, runtimeErr
}
