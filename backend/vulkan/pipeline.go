package vulkan

import (
	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type pipeline struct {
	device    *device
	handle    vk.Pipeline
	layout    vk.PipelineLayout
	setLayout vk.DescriptorSetLayout
	pool      vk.DescriptorPool
	sets      []vk.DescriptorSet
}

// NewPipeline builds a triangle list pipeline with dynamic viewport and
// scissor. Its layout has one descriptor set (a vertex stage uniform buffer
// and a fragment stage sampler) and an optional vertex stage push constant
// range.
func (d *device) NewPipeline(desc hal.PipelineDescriptor) (hal.Pipeline, error) {
	if desc.Frames <= 0 {
		return nil, errors.Wrapf(hal.ErrInitFailed, "vulkan: pipeline with %d descriptor sets", desc.Frames)
	}
	p := &pipeline{device: d}
	if err := p.createDescriptors(desc.Frames); err != nil {
		p.Destroy()
		return nil, err
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{p.setLayout},
	}
	if desc.PushConstantSize > 0 {
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Size:       desc.PushConstantSize,
		}}
	}
	ret := vk.CreatePipelineLayout(d.handle, &layoutInfo, nil, &p.layout)
	if err := newError(ret, "create pipeline layout"); err != nil {
		p.Destroy()
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: desc.Vertex.(*shaderModule).handle,
			PName:  "main\x00",
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: desc.Fragment.(*shaderModule).handle,
			PName:  "main\x00",
		},
	}

	attributes := make([]vk.VertexInputAttributeDescription, 0, len(desc.Attributes))
	for _, a := range desc.Attributes {
		attributes = append(attributes, vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   toVkVertexFormat(a.Format),
			Offset:   a.Offset,
		})
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if desc.Stride > 0 {
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.Stride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInput.PVertexAttributeDescriptions = attributes
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpLess,
	}
	if desc.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
	}
	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
			vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if desc.Blend {
		blendAttachment.BlendEnable = vk.True
		blendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.ColorBlendOp = vk.BlendOpAdd
		blendAttachment.SrcAlphaBlendFactor = vk.BlendFactorOne
		blendAttachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              p.layout,
		RenderPass:          desc.RenderPass.(*renderPass).handle,
		Subpass:             0,
	}
	var cache vk.PipelineCache
	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateGraphicsPipelines(d.handle, cache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := newError(ret, "create graphics pipeline"); err != nil {
		p.Destroy()
		return nil, err
	}
	p.handle = pipelines[0]
	return p, nil
}

func (p *pipeline) createDescriptors(frames int) error {
	d := p.device
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         hal.BindingUniforms,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		},
		{
			Binding:         hal.BindingTexture,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	ret := vk.CreateDescriptorSetLayout(d.handle, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &p.setLayout)
	if err := newError(ret, "create descriptor set layout"); err != nil {
		return err
	}

	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: uint32(frames)},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: uint32(frames)},
	}
	ret = vk.CreateDescriptorPool(d.handle, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(frames),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &p.pool)
	if err := newError(ret, "create descriptor pool"); err != nil {
		return err
	}

	layouts := make([]vk.DescriptorSetLayout, frames)
	for i := range layouts {
		layouts[i] = p.setLayout
	}
	p.sets = make([]vk.DescriptorSet, frames)
	ret = vk.AllocateDescriptorSets(d.handle, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.pool,
		DescriptorSetCount: uint32(frames),
		PSetLayouts:        layouts,
	}, &p.sets[0])
	return newError(ret, "allocate descriptor sets")
}

func (p *pipeline) SetUniformBuffer(frame int, b hal.Buffer) error {
	if frame < 0 || frame >= len(p.sets) {
		return errors.Wrapf(hal.ErrValidation, "vulkan: descriptor set %d of %d", frame, len(p.sets))
	}
	buf := b.(*buffer)
	vk.UpdateDescriptorSets(p.device.handle, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          p.sets[frame],
		DstBinding:      hal.BindingUniforms,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buf.handle,
			Range:  vk.DeviceSize(buf.size),
		}},
	}}, 0, nil)
	return nil
}

func (p *pipeline) SetTexture(frame int, t hal.Texture) error {
	if frame < 0 || frame >= len(p.sets) {
		return errors.Wrapf(hal.ErrValidation, "vulkan: descriptor set %d of %d", frame, len(p.sets))
	}
	tex := t.(*texture)
	vk.UpdateDescriptorSets(p.device.handle, 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          p.sets[frame],
		DstBinding:      hal.BindingTexture,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     tex.sampler,
			ImageView:   tex.view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}}, 0, nil)
	return nil
}

func (p *pipeline) Destroy() {
	h := p.device.handle
	if p.handle != vk.NullPipeline {
		vk.DestroyPipeline(h, p.handle, nil)
	}
	if p.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(h, p.layout, nil)
	}
	if p.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(h, p.pool, nil)
	}
	if p.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(h, p.setLayout, nil)
	}
}
