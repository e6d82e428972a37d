package vkcompute

// WorkGroup is a work group extent. As a local size it is the thread
// count of one invocation group; as a global size it is the dispatch
// extent in work groups.
type WorkGroup struct {
	X, Y, Z uint32
}

// Invocations is the total number of invocations the extent spans.
func (w WorkGroup) Invocations() uint64 {
	return uint64(w.X) * uint64(w.Y) * uint64(w.Z)
}

// DispatchPrologue is the first half of the dispatch protocol. It resolves
// the descriptor set layout for the shader's binding signature, resolves
// (or realizes) the compute pipeline for (layout, shader, local size),
// binds the pipeline to the command buffer, and allocates the dispatch's
// descriptor set from the calling thread's pool.
//
// The caller binds its buffers to the returned set, then finishes the
// dispatch with DispatchEpilogue. The split exists so resource arguments,
// which belong to the data layer, can be attached between pipeline
// selection and command recording.
func (c *Context) DispatchPrologue(
	cb *CommandBuffer,
	signature LayoutSignature,
	shader ShaderDescriptor,
	localSize WorkGroup,
) (*DescriptorSet, error) {
	shaderLayout, err := c.layoutCache.Retrieve(signature.encode())
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := c.pipelineLayoutCache.Retrieve(shaderLayout.VKDescriptorSetLayout)
	if err != nil {
		return nil, err
	}

	module, err := c.shaderCache.Retrieve(shader.key())
	if err != nil {
		return nil, err
	}

	pipeline, err := c.pipelineCache.Retrieve(pipelineKey{
		layout:     pipelineLayout,
		module:     module.VKShaderModule,
		entryPoint: module.EntryPoint,
		localSize:  localSize,
	})
	if err != nil {
		return nil, err
	}

	cb.BindPipeline(pipeline)

	thread, err := c.Thread()
	if err != nil {
		return nil, err
	}
	return thread.Descriptor.Allocate(shaderLayout)
}

// DispatchEpilogue is the second half of the dispatch protocol: it binds
// the descriptor set populated by the caller and records the dispatch over
// the global work group extent. The set is one-shot; reusing it for a
// second epilogue corrupts pool state.
func (c *Context) DispatchEpilogue(
	cb *CommandBuffer,
	set *DescriptorSet,
	globalSize WorkGroup,
) error {
	set.Write()
	if err := cb.BindDescriptorSet(set); err != nil {
		return err
	}
	cb.Dispatch(globalSize)
	return nil
}
