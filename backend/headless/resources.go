package headless

import (
	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
)

// resource is the lifetime bookkeeping shared by the plain GPU objects.
type resource struct {
	sys       *System
	id        uint64
	kind      string
	destroyed bool
}

func (d *device) newResource(kind string) resource {
	return resource{sys: d.sys, id: d.sys.newID(), kind: kind}
}

func (r *resource) Destroy() {
	s := r.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.destroyed {
		s.violate("%s %d destroyed twice", r.kind, r.id)
		return
	}
	if r.inFlightLocked() {
		s.violate("%s %d destroyed while the GPU may still use it", r.kind, r.id)
	}
	r.destroyed = true
	s.live--
}

// inFlightLocked reports whether a pending submission references r.
func (r *resource) inFlightLocked() bool {
	for _, sub := range r.sys.pending {
		for _, cmd := range sub.cmd.commands {
			for _, id := range cmd.refs {
				if id == r.id {
					return true
				}
			}
		}
	}
	return false
}

func (d *device) NewDepthImage(format hal.Format, extent hal.Extent2D) (hal.Image, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if !format.IsDepth() {
		return nil, s.violate("depth image with color format %d", format)
	}
	if extent.IsZero() {
		return nil, s.violate("depth image with empty extent")
	}
	img := &image{resource: d.newResource("image"), format: format, extent: extent}
	return img, nil
}

type image struct {
	resource
	format hal.Format
	extent hal.Extent2D
}

func (i *image) View() hal.ImageView {
	return imageView{owner: i.id}
}

func (d *device) NewRenderPass(desc hal.RenderPassDescriptor) (hal.RenderPass, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if desc.Color == hal.FormatUndefined || desc.Color.IsDepth() {
		return nil, s.violate("render pass with invalid color format %d", desc.Color)
	}
	if desc.Depth != hal.FormatUndefined && !desc.Depth.IsDepth() {
		return nil, s.violate("render pass with invalid depth format %d", desc.Depth)
	}
	return &renderPass{resource: d.newResource("render pass"), desc: desc}, nil
}

type renderPass struct {
	resource
	desc hal.RenderPassDescriptor
}

func (d *device) NewFramebuffer(rp hal.RenderPass, color hal.ImageView, depth hal.Image, extent hal.Extent2D) (hal.Framebuffer, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	pass, ok := rp.(*renderPass)
	if !ok || pass.destroyed {
		return nil, s.violate("framebuffer for a missing render pass")
	}
	if _, ok := color.(imageView); !ok {
		return nil, s.violate("framebuffer with foreign color view")
	}
	if pass.desc.Depth != hal.FormatUndefined {
		img, ok := depth.(*image)
		if !ok || img.destroyed {
			return nil, s.violate("framebuffer without a depth image for a depth render pass")
		}
		if img.extent != extent {
			return nil, s.violate("framebuffer extent %v differs from depth image %v", extent, img.extent)
		}
	}
	return &framebuffer{resource: d.newResource("framebuffer"), extent: extent}, nil
}

type framebuffer struct {
	resource
	extent hal.Extent2D
}

func (d *device) NewBuffer(usage hal.BufferUsage, size int) (hal.Buffer, error) {
	if size <= 0 {
		return nil, errors.Wrapf(hal.ErrInitFailed, "headless: buffer: size %d", size)
	}
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	return &buffer{resource: d.newResource("buffer"), usage: usage, data: make([]byte, size)}, nil
}

type buffer struct {
	resource
	usage hal.BufferUsage
	data  []byte
}

// BufferData returns a copy of the contents of a headless buffer.
func BufferData(b hal.Buffer) []byte {
	hb, ok := b.(*buffer)
	if !ok {
		return nil
	}
	hb.sys.mu.Lock()
	defer hb.sys.mu.Unlock()
	return append([]byte(nil), hb.data...)
}

func (b *buffer) Size() int { return len(b.data) }

func (b *buffer) Write(offset int, data []byte) error {
	s := b.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.destroyed {
		return s.violate("write to destroyed buffer %d", b.id)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return errors.Wrapf(hal.ErrValidation, "headless: buffer %d: write [%d, %d) out of range %d",
			b.id, offset, offset+len(data), len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *device) NewTexture(desc hal.TextureDescriptor, pixels []byte) (hal.Texture, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if desc.Width == 0 || desc.Height == 0 {
		return nil, errors.Wrapf(hal.ErrInitFailed, "headless: texture: empty %dx%d", desc.Width, desc.Height)
	}
	want := int(desc.Width) * int(desc.Height) * 4
	if len(pixels) != want {
		return nil, errors.Wrapf(hal.ErrInitFailed, "headless: texture: %d bytes of pixels, want %d", len(pixels), want)
	}
	return &texture{resource: d.newResource("texture"), desc: desc, family: d.upload}, nil
}

type texture struct {
	resource
	desc   hal.TextureDescriptor
	family uint32
}

// UploadFamily returns the queue family a headless texture was uploaded on.
func UploadFamily(t hal.Texture) (uint32, bool) {
	ht, ok := t.(*texture)
	if !ok {
		return 0, false
	}
	return ht.family, true
}

func (d *device) NewShaderModule(code []byte) (hal.ShaderModule, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Wrapf(hal.ErrInitFailed, "headless: shader module: code size %d is not a multiple of 4", len(code))
	}
	return &shaderModule{resource: d.newResource("shader module")}, nil
}

type shaderModule struct {
	resource
}

func (d *device) NewPipeline(desc hal.PipelineDescriptor) (hal.Pipeline, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if desc.Vertex == nil || desc.Fragment == nil {
		return nil, errors.Wrap(hal.ErrInitFailed, "headless: pipeline: missing shader stage")
	}
	if _, ok := desc.RenderPass.(*renderPass); !ok {
		return nil, s.violate("pipeline without a render pass")
	}
	if desc.Frames <= 0 {
		return nil, s.violate("pipeline with %d descriptor sets", desc.Frames)
	}
	if desc.PushConstantSize > 128 {
		return nil, errors.Wrapf(hal.ErrUnsupported, "headless: pipeline: push constant range %d exceeds 128 bytes", desc.PushConstantSize)
	}
	return &pipeline{
		resource: d.newResource("pipeline"),
		desc:     desc,
		uniforms: make([]hal.Buffer, desc.Frames),
		textures: make([]hal.Texture, desc.Frames),
	}, nil
}

type pipeline struct {
	resource
	desc     hal.PipelineDescriptor
	uniforms []hal.Buffer
	textures []hal.Texture
}

func (p *pipeline) SetUniformBuffer(frame int, b hal.Buffer) error {
	s := p.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame < 0 || frame >= len(p.uniforms) {
		return s.violate("uniform buffer for frame %d of %d", frame, len(p.uniforms))
	}
	p.uniforms[frame] = b
	return nil
}

func (p *pipeline) SetTexture(frame int, t hal.Texture) error {
	s := p.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame < 0 || frame >= len(p.textures) {
		return s.violate("texture for frame %d of %d", frame, len(p.textures))
	}
	p.textures[frame] = t
	return nil
}
