package diesel

import (
	"os"

	"github.com/andewx/diesel/hal"
	"github.com/go-gl/mathgl/mgl32"
)

// PushConstantSize is the push constant range of every shader: one model
// matrix.
const PushConstantSize = 64

// ShaderDescriptor describes a shader program: SPIR-V for the vertex and
// fragment stages and the vertex layout it reads.
type ShaderDescriptor struct {
	Name      string
	Vertex    []byte
	Fragment  []byte
	Layout    VertexLayout
	DepthTest bool
	Blend     bool
}

// LoadShaderDescriptor reads the SPIR-V of both stages from disk.
func LoadShaderDescriptor(name, vertexPath, fragmentPath string, layout VertexLayout) (ShaderDescriptor, error) {
	const op = "load shader"
	vert, err := os.ReadFile(vertexPath)
	if err != nil {
		return ShaderDescriptor{}, newError(op, KindFatal, err)
	}
	frag, err := os.ReadFile(fragmentPath)
	if err != nil {
		return ShaderDescriptor{}, newError(op, KindFatal, err)
	}
	return ShaderDescriptor{Name: name, Vertex: vert, Fragment: frag, Layout: layout, DepthTest: true}, nil
}

// Shader is a compiled shader program with its graphics pipeline. Binding 0
// of its descriptor sets holds the frame uniforms and binding 1 a texture.
type Shader struct {
	device   *RenderDevice
	desc     ShaderDescriptor
	vertex   hal.ShaderModule
	fragment hal.ShaderModule
	pipeline hal.Pipeline

	uniforms [MaxFramesInFlight]*Buffer
	texture  *Texture
}

func NewShader(device *RenderDevice, rp *RenderPass, desc ShaderDescriptor) (*Shader, error) {
	const op = "new shader"
	if len(desc.Vertex) == 0 || len(desc.Fragment) == 0 {
		return nil, contract(op, "shader %q is missing a stage", desc.Name)
	}
	s := &Shader{device: device, desc: desc}
	var err error
	if s.vertex, err = device.device.NewShaderModule(desc.Vertex); err != nil {
		return nil, backendError(op, err)
	}
	if s.fragment, err = device.device.NewShaderModule(desc.Fragment); err != nil {
		s.vertex.Destroy()
		return nil, backendError(op, err)
	}
	if s.pipeline, err = s.build(rp); err != nil {
		s.vertex.Destroy()
		s.fragment.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Shader) build(rp *RenderPass) (hal.Pipeline, error) {
	return NewPipelineBuilder(s.vertex, s.fragment).
		VertexLayout(s.desc.Layout).
		RenderPass(rp).
		PushConstants(PushConstantSize).
		DepthTest(s.desc.DepthTest).
		Blend(s.desc.Blend).
		Build(s.device)
}

func (s *Shader) Name() string { return s.desc.Name }

// Layout returns the vertex layout the shader reads.
func (s *Shader) Layout() VertexLayout { return s.desc.Layout }

// Bind binds the pipeline and the descriptor set of cb's frame slot.
func (s *Shader) Bind(cb *CommandBuffer) error {
	if err := cb.recording("bind shader"); err != nil {
		return err
	}
	cb.native.BindPipeline(s.pipeline)
	cb.native.BindDescriptorSet(s.pipeline, cb.frame)
	return nil
}

// PushModel pushes the model matrix of the next draw.
func (s *Shader) PushModel(cb *CommandBuffer, model mgl32.Mat4) error {
	return cb.CmdPushConstants(s, Float32Bytes(model[:]...))
}

// SetUniformBuffer points the uniform binding of frame slot frame at b.
func (s *Shader) SetUniformBuffer(frame int, b *Buffer) error {
	if frame < 0 || frame >= MaxFramesInFlight {
		return contract("set uniform buffer", "frame slot %d outside [0, %d)", frame, MaxFramesInFlight)
	}
	if err := s.pipeline.SetUniformBuffer(frame, b.native); err != nil {
		return backendError("set uniform buffer", err)
	}
	s.uniforms[frame] = b
	return nil
}

// SetTexture binds t in every frame slot. No submission using the shader
// may be pending.
func (s *Shader) SetTexture(t *Texture) error {
	for frame := 0; frame < MaxFramesInFlight; frame++ {
		if err := s.pipeline.SetTexture(frame, t.native); err != nil {
			return backendError("set texture", err)
		}
	}
	s.texture = t
	return nil
}

// Texture returns the bound texture.
func (s *Shader) Texture() *Texture { return s.texture }

// Rebuild recreates the pipeline for rp and rebinds the descriptors. The
// device must be idle.
func (s *Shader) Rebuild(rp *RenderPass) error {
	p, err := s.build(rp)
	if err != nil {
		return err
	}
	s.pipeline.Destroy()
	s.pipeline = p
	for frame, b := range s.uniforms {
		if b == nil {
			continue
		}
		if err := s.pipeline.SetUniformBuffer(frame, b.native); err != nil {
			return backendError("rebuild shader", err)
		}
	}
	if s.texture != nil {
		return s.SetTexture(s.texture)
	}
	return nil
}

// Destroy releases the pipeline and modules. Uniform buffers and textures
// are owned by the caller.
func (s *Shader) Destroy() {
	if s.pipeline == nil {
		return
	}
	s.pipeline.Destroy()
	s.vertex.Destroy()
	s.fragment.Destroy()
	s.pipeline = nil
}
