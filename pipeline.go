package diesel

import (
	"github.com/andewx/diesel/hal"
)

// PipelineBuilder collects the state of a graphics pipeline. Every pipeline
// draws triangle lists with dynamic viewport and scissor and has one
// descriptor set per frame in flight.
type PipelineBuilder struct {
	desc hal.PipelineDescriptor
}

func NewPipelineBuilder(vertex, fragment hal.ShaderModule) *PipelineBuilder {
	return &PipelineBuilder{desc: hal.PipelineDescriptor{
		Vertex:   vertex,
		Fragment: fragment,
		Frames:   MaxFramesInFlight,
	}}
}

// VertexLayout sets the vertex input. An empty layout draws without vertex
// buffers.
func (b *PipelineBuilder) VertexLayout(l VertexLayout) *PipelineBuilder {
	b.desc.Stride = l.Stride()
	b.desc.Attributes = l.Attributes()
	return b
}

func (b *PipelineBuilder) RenderPass(rp *RenderPass) *PipelineBuilder {
	b.desc.RenderPass = rp.native
	return b
}

func (b *PipelineBuilder) PushConstants(size uint32) *PipelineBuilder {
	b.desc.PushConstantSize = size
	return b
}

func (b *PipelineBuilder) DepthTest(enabled bool) *PipelineBuilder {
	b.desc.DepthTest = enabled
	return b
}

// Blend enables source-alpha blending of the color attachment.
func (b *PipelineBuilder) Blend(enabled bool) *PipelineBuilder {
	b.desc.Blend = enabled
	return b
}

func (b *PipelineBuilder) Descriptor() hal.PipelineDescriptor { return b.desc }

func (b *PipelineBuilder) Build(device *RenderDevice) (hal.Pipeline, error) {
	const op = "build pipeline"
	if b.desc.RenderPass == nil {
		return nil, contract(op, "no render pass")
	}
	p, err := device.device.NewPipeline(b.desc)
	if err != nil {
		return nil, backendError(op, err)
	}
	return p, nil
}
