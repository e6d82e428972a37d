package vkcompute

import (
	"encoding/binary"
	"fmt"
	"os"

	vk "github.com/vulkan-go/vulkan"
)

// LayoutSignature is the ordered sequence of descriptor types a compute
// shader binds. Two signatures with the same sequence identify the same
// descriptor set layout no matter how they were constructed.
type LayoutSignature []vk.DescriptorType

// encode packs the signature into a comparable cache key.
func (s LayoutSignature) encode() layoutKey {
	buf := make([]byte, 4*len(s))
	for i, t := range s {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(t))
	}
	return layoutKey(buf)
}

type layoutKey string

func (k layoutKey) signature() LayoutSignature {
	sig := make(LayoutSignature, len(k)/4)
	for i := range sig {
		sig[i] = vk.DescriptorType(binary.LittleEndian.Uint32([]byte(k[4*i:])))
	}
	return sig
}

// ShaderLayout is a realized descriptor set layout together with the
// signature it was built from. The signature is retained so descriptor set
// writes can recover the descriptor type of each binding.
type ShaderLayout struct {
	Signature             LayoutSignature
	VKDescriptorSetLayout vk.DescriptorSetLayout
}

// ShaderDescriptor identifies a compute shader by its SPIR-V code and
// entry point. It is a value: descriptors with equal code and entry point
// hit the same cache entry.
type ShaderDescriptor struct {
	Code       []byte
	EntryPoint string
}

// NewShaderDescriptor wraps SPIR-V code with the conventional "main"
// entry point.
func NewShaderDescriptor(code []byte) ShaderDescriptor {
	return ShaderDescriptor{Code: code, EntryPoint: "main"}
}

// LoadShaderDescriptor reads compiled SPIR-V from a file.
func LoadShaderDescriptor(path string) (ShaderDescriptor, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return ShaderDescriptor{}, fmt.Errorf("vulkan device: loading shader: %w", err)
	}
	return NewShaderDescriptor(code), nil
}

func (d ShaderDescriptor) key() shaderKey {
	return shaderKey{code: string(d.Code), entryPoint: d.EntryPoint}
}

type shaderKey struct {
	code       string
	entryPoint string
}

// ShaderModule is a realized shader module plus the entry point to invoke.
type ShaderModule struct {
	EntryPoint     string
	VKShaderModule vk.ShaderModule
}

func newLayoutCache(device vk.Device) *objectCache[layoutKey, *ShaderLayout] {
	return newObjectCache(func(key layoutKey) (*ShaderLayout, error) {
		return createShaderLayout(device, key.signature())
	})
}

func newShaderCache(device vk.Device) *objectCache[shaderKey, *ShaderModule] {
	return newObjectCache(func(key shaderKey) (*ShaderModule, error) {
		return createShaderModule(device, []byte(key.code), key.entryPoint)
	})
}

// createShaderLayout realizes a descriptor set layout for a binding
// signature. Binding indices follow signature order; every binding is
// visible to the compute stage only.
func createShaderLayout(device vk.Device, signature LayoutSignature) (*ShaderLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(signature))
	for i, descriptorType := range signature {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  descriptorType,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		}
	}

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(device, &createInfo, nil, &layout)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating descriptor set layout: %w", err)
	}

	return &ShaderLayout{
		Signature:             append(LayoutSignature(nil), signature...),
		VKDescriptorSetLayout: layout,
	}, nil
}

func createShaderModule(device vk.Device, code []byte, entryPoint string) (*ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("vulkan device: shader code length %d is not valid SPIR-V", len(code))
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}

	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(device, &createInfo, nil, &module)); err != nil {
		return nil, fmt.Errorf("vulkan device: creating shader module: %w", err)
	}

	return &ShaderModule{EntryPoint: entryPoint, VKShaderModule: module}, nil
}

func destroyShaderLayout(device vk.Device) func(*ShaderLayout) {
	return func(l *ShaderLayout) {
		vk.DestroyDescriptorSetLayout(device, l.VKDescriptorSetLayout, nil)
	}
}

func destroyShaderModule(device vk.Device) func(*ShaderModule) {
	return func(m *ShaderModule) {
		vk.DestroyShaderModule(device, m.VKShaderModule, nil)
	}
}
