package vkcompute

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// pipelineKey identifies a realized compute pipeline: the layout it binds
// against, the shader module it runs, and the local work group it was
// specialized for.
type pipelineKey struct {
	layout     vk.PipelineLayout
	module     vk.ShaderModule
	entryPoint string
	localSize  WorkGroup
}

// ComputePipeline is a ready to bind compute program.
type ComputePipeline struct {
	VKPipeline       vk.Pipeline
	VKPipelineLayout vk.PipelineLayout
}

func newPipelineLayoutCache(device vk.Device) *objectCache[vk.DescriptorSetLayout, vk.PipelineLayout] {
	return newObjectCache(func(setLayout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
		return createPipelineLayout(device, setLayout)
	})
}

// pipelineFactory owns the driver level vk.PipelineCache shared by every
// pipeline the context realizes.
type pipelineFactory struct {
	device          vk.Device
	vkPipelineCache vk.PipelineCache
}

func newPipelineFactory(device vk.Device) (*pipelineFactory, error) {
	createInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}

	var cache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(device, &createInfo, nil, &cache)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating pipeline cache: %w", err)
	}

	return &pipelineFactory{
		device:          device,
		vkPipelineCache: cache,
	}, nil
}

func (f *pipelineFactory) newPipelineCache() *objectCache[pipelineKey, *ComputePipeline] {
	return newObjectCache(f.create)
}

// create realizes a compute pipeline. The local work group size is fed to
// the shader through specialization constants 0..2, the convention the
// bundled kernels use for their local_size declarations.
func (f *pipelineFactory) create(key pipelineKey) (*ComputePipeline, error) {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], key.localSize.X)
	binary.LittleEndian.PutUint32(data[4:], key.localSize.Y)
	binary.LittleEndian.PutUint32(data[8:], key.localSize.Z)

	entries := []vk.SpecializationMapEntry{
		{ConstantID: 0, Offset: 0, Size: 4},
		{ConstantID: 1, Offset: 4, Size: 4},
		{ConstantID: 2, Offset: 8, Size: 4},
	}

	specializationInfo := vk.SpecializationInfo{
		MapEntryCount: uint32(len(entries)),
		PMapEntries:   entries,
		DataSize:      uint(len(data)),
		PData:         unsafe.Pointer(&data[0]),
	}

	stage := vk.PipelineShaderStageCreateInfo{
		SType:               vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:               vk.ShaderStageComputeBit,
		Module:              key.module,
		PName:               safeString(key.entryPoint),
		PSpecializationInfo: []vk.SpecializationInfo{specializationInfo},
	}

	createInfo := vk.ComputePipelineCreateInfo{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Stage:  stage,
		Layout: key.layout,
	}

	pipelines := make([]vk.Pipeline, 1)
	err := vk.Error(vk.CreateComputePipelines(
		f.device, f.vkPipelineCache,
		1, []vk.ComputePipelineCreateInfo{createInfo},
		nil, pipelines))
	if err != nil {
		return nil, fmt.Errorf("vulkan device: creating compute pipeline: %w", err)
	}

	return &ComputePipeline{
		VKPipeline:       pipelines[0],
		VKPipelineLayout: key.layout,
	}, nil
}

func (f *pipelineFactory) destroy() {
	vk.DestroyPipelineCache(f.device, f.vkPipelineCache, nil)
}

func createPipelineLayout(device vk.Device, setLayout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}

	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(device, &createInfo, nil, &layout)); err != nil {
		return vk.NullPipelineLayout, fmt.Errorf("vulkan device: creating pipeline layout: %w", err)
	}
	return layout, nil
}

func destroyPipelineLayout(device vk.Device) func(vk.PipelineLayout) {
	return func(l vk.PipelineLayout) {
		vk.DestroyPipelineLayout(device, l, nil)
	}
}

func destroyComputePipeline(device vk.Device) func(*ComputePipeline) {
	return func(p *ComputePipeline) {
		vk.DestroyPipeline(device, p.VKPipeline, nil)
	}
}
