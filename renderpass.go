package diesel

import (
	"github.com/andewx/diesel/hal"
)

// RenderPass is the default pass: one subpass writing a color attachment,
// which is cleared, stored and left ready to present, and a cleared depth
// attachment.
type RenderPass struct {
	device *RenderDevice
	native hal.RenderPass
	color  hal.Format
	depth  hal.Format
}

// NewRenderPass creates a render pass for the given color and depth formats.
// A FormatUndefined depth omits the depth attachment.
func NewRenderPass(device *RenderDevice, color, depth hal.Format) (*RenderPass, error) {
	const op = "new render pass"
	if color == hal.FormatUndefined || color.IsDepth() {
		return nil, contract(op, "invalid color format %d", color)
	}
	if depth != hal.FormatUndefined && !depth.IsDepth() {
		return nil, contract(op, "format %d has no depth component", depth)
	}
	native, err := device.device.NewRenderPass(hal.RenderPassDescriptor{Color: color, Depth: depth})
	if err != nil {
		return nil, backendError(op, err)
	}
	return &RenderPass{device: device, native: native, color: color, depth: depth}, nil
}

func (rp *RenderPass) ColorFormat() hal.Format { return rp.color }

func (rp *RenderPass) DepthFormat() hal.Format { return rp.depth }

// Compatible reports whether framebuffers of sc can be used with the pass.
func (rp *RenderPass) Compatible(sc *SwapChain) bool {
	return rp.color == sc.format.Format && rp.depth == sc.depthFormat
}

func (rp *RenderPass) Destroy() {
	if rp.native != nil {
		rp.native.Destroy()
		rp.native = nil
	}
}

// Framebuffer holds one native framebuffer per swap chain image. All of them
// share the swap chain's depth image.
type Framebuffer struct {
	device     *RenderDevice
	pass       *RenderPass
	natives    []hal.Framebuffer
	extent     hal.Extent2D
	generation uint64
}

// NewFramebuffer creates the framebuffers of sc for rp.
func NewFramebuffer(device *RenderDevice, rp *RenderPass, sc *SwapChain) (*Framebuffer, error) {
	fb := &Framebuffer{device: device, pass: rp}
	if err := fb.build(sc); err != nil {
		return nil, err
	}
	return fb, nil
}

func (fb *Framebuffer) build(sc *SwapChain) error {
	const op = "new framebuffer"
	if !fb.pass.Compatible(sc) {
		return contract(op, "render pass formats do not match the swap chain")
	}
	natives := make([]hal.Framebuffer, 0, sc.ImageCount())
	for _, view := range sc.Views() {
		n, err := fb.device.device.NewFramebuffer(fb.pass.native, view, sc.DepthImage(), sc.Extent())
		if err != nil {
			for _, made := range natives {
				made.Destroy()
			}
			return backendError(op, err)
		}
		natives = append(natives, n)
	}
	fb.natives = natives
	fb.extent = sc.Extent()
	fb.generation = sc.Generation()
	return nil
}

// Rebuild recreates the framebuffers for a rebuilt sc, optionally against a
// new render pass. The device must be idle.
func (fb *Framebuffer) Rebuild(sc *SwapChain, rp *RenderPass) error {
	fb.release()
	if rp != nil {
		fb.pass = rp
	}
	return fb.build(sc)
}

// Bind begins the render pass on the framebuffer of the image cb acquired.
func (fb *Framebuffer) Bind(cb *CommandBuffer, clear hal.ClearValues) error {
	const op = "bind framebuffer"
	if err := cb.recording(op); err != nil {
		return err
	}
	switch {
	case cb.inPass:
		return contract(op, "a render pass is already open")
	case !cb.acquired:
		return contract(op, "no image was acquired")
	case cb.generation != fb.generation:
		return contract(op, "framebuffer generation %d does not match swap chain generation %d", fb.generation, cb.generation)
	case int(cb.image) >= len(fb.natives):
		return contract(op, "image %d out of %d framebuffers", cb.image, len(fb.natives))
	}
	area := hal.Rect2D{Extent: fb.extent}
	cb.beginRenderPass(fb.pass.native, fb.natives[cb.image], area, clear)
	return nil
}

func (fb *Framebuffer) Generation() uint64 { return fb.generation }

func (fb *Framebuffer) release() {
	for _, n := range fb.natives {
		n.Destroy()
	}
	fb.natives = nil
}

func (fb *Framebuffer) Destroy() { fb.release() }
