package diesel

import (
	"log/slog"
	"time"

	"github.com/andewx/diesel/hal"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
)

// MaxFramesInFlight is the number of frames the CPU may record ahead of
// the GPU.
const MaxFramesInFlight = 3

// Drawable is one draw of a scene: a vertex array drawn with a shader.
type Drawable struct {
	VertexArray Handle
	Shader      Handle
	Model       mgl32.Mat4
}

// Scene supplies what a frame draws.
type Scene interface {
	Camera() Camera
	Lights() []Light
	Drawables() []Drawable
}

type RendererOptions struct {
	ClearColor [4]float32
	// FenceTimeout bounds the wait for a frame slot. Zero uses the
	// FenceTimeoutMs setting of the context.
	FenceTimeout time.Duration
}

// RendererStats counts the work of a Renderer.
type RendererStats struct {
	// Frames is the number of frames submitted.
	Frames uint64
	// Skipped counts frames dropped for a swap chain rebuild or a fence
	// timeout.
	Skipped  uint64
	Rebuilds uint64
	// LastFrameTime and TotalFrameTime are CPU time spent in Render for
	// submitted frames.
	LastFrameTime  time.Duration
	TotalFrameTime time.Duration
}

// Renderer drives the frame loop of one swap chain. It owns a command
// buffer, a uniform buffer and a deletion queue per frame slot, the render
// pass and framebuffers, and every resource created through it. The swap
// chain stays owned by the caller.
type Renderer struct {
	device      *RenderDevice
	swapChain   *SwapChain
	pass        *RenderPass
	framebuffer *Framebuffer

	commands  [MaxFramesInFlight]*CommandBuffer
	uniforms  [MaxFramesInFlight]*Buffer
	deletions DeletionManager

	vertexArrays Arena[*VertexArray]
	textures     Arena[*Texture]
	shaders      Arena[*Shader]
	// shaderTextures maps a shader to the texture assigned to it.
	shaderTextures map[Handle]Handle
	white          *Texture

	ui      *UIDrawData
	clear   hal.ClearValues
	current int
	frame   uint64
	stats   RendererStats

	logger    *slog.Logger
	destroyed bool
}

func NewRenderer(device *RenderDevice, sc *SwapChain, opts RendererOptions) (*Renderer, error) {
	r := &Renderer{
		device:         device,
		swapChain:      sc,
		shaderTextures: make(map[Handle]Handle),
		clear:          hal.ClearValues{Color: opts.ClearColor, Depth: 1},
		logger:         device.logger,
	}
	if err := r.init(opts); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(opts RendererOptions) error {
	var err error
	if r.pass, err = NewRenderPass(r.device, r.swapChain.Format().Format, r.swapChain.DepthFormat()); err != nil {
		return err
	}
	if r.framebuffer, err = NewFramebuffer(r.device, r.pass, r.swapChain); err != nil {
		return err
	}
	for i := range r.commands {
		if r.commands[i], err = NewCommandBuffer(r.device, i); err != nil {
			return err
		}
		if opts.FenceTimeout > 0 {
			r.commands[i].SetFenceTimeout(opts.FenceTimeout)
		}
		if r.uniforms[i], err = NewBuffer(r.device, hal.BufferUniform, FrameUniformsSize); err != nil {
			return err
		}
	}
	r.white, err = newWhiteTexture(r.device)
	return err
}

// CreateVertexArray uploads an indexed mesh.
func (r *Renderer) CreateVertexArray(layout VertexLayout, vertices []byte, indices []uint32) (Handle, error) {
	va, err := NewVertexArray(r.device, layout, vertices, indices)
	if err != nil {
		return Handle{}, err
	}
	return r.vertexArrays.Insert(va), nil
}

// CreateTexture uploads width*height RGBA8 pixels.
func (r *Renderer) CreateTexture(width, height uint32, pixels []byte) (Handle, error) {
	t, err := NewTexture(r.device, width, height, pixels)
	if err != nil {
		return Handle{}, err
	}
	return r.textures.Insert(t), nil
}

// CreateShader builds a shader against the renderer's render pass. It
// reads the frame uniforms and samples a white texture until
// SetShaderTexture assigns one.
func (r *Renderer) CreateShader(desc ShaderDescriptor) (Handle, error) {
	s, err := NewShader(r.device, r.pass, desc)
	if err != nil {
		return Handle{}, err
	}
	for frame, u := range r.uniforms {
		if err := s.SetUniformBuffer(frame, u); err != nil {
			s.Destroy()
			return Handle{}, err
		}
	}
	if err := s.SetTexture(r.white); err != nil {
		s.Destroy()
		return Handle{}, err
	}
	return r.shaders.Insert(s), nil
}

// Shader returns the shader of h, for use in UIDrawData.
func (r *Renderer) Shader(h Handle) (*Shader, error) {
	s, ok := r.shaders.Get(h)
	if !ok {
		return nil, contract("shader", "stale shader handle")
	}
	return s, nil
}

// SetShaderTexture assigns a texture to a shader. It waits for the device
// to go idle since descriptor sets of pending frames are rewritten.
func (r *Renderer) SetShaderTexture(shader, texture Handle) error {
	const op = "set shader texture"
	s, ok := r.shaders.Get(shader)
	if !ok {
		return contract(op, "stale shader handle")
	}
	t, ok := r.textures.Get(texture)
	if !ok {
		return contract(op, "stale texture handle")
	}
	if err := r.device.WaitForIdle(); err != nil {
		return err
	}
	if err := s.SetTexture(t); err != nil {
		return err
	}
	r.shaderTextures[shader] = texture
	return nil
}

// ReleaseVertexArray invalidates h. The buffers are destroyed once no frame
// in flight can use them.
func (r *Renderer) ReleaseVertexArray(h Handle) error {
	va, ok := r.vertexArrays.Remove(h)
	if !ok {
		return contract("release vertex array", "stale vertex array handle")
	}
	r.deletions.Defer(r.current, va)
	return nil
}

// ReleaseTexture invalidates h. A texture still assigned to a shader cannot
// be released.
func (r *Renderer) ReleaseTexture(h Handle) error {
	const op = "release texture"
	if _, ok := r.textures.Get(h); !ok {
		return contract(op, "stale texture handle")
	}
	for s, t := range r.shaderTextures {
		if t == h {
			if shader, ok := r.shaders.Get(s); ok {
				return contract(op, "texture is assigned to shader %q", shader.Name())
			}
		}
	}
	t, _ := r.textures.Remove(h)
	r.deletions.Defer(r.current, t)
	return nil
}

// ReleaseShader invalidates h. The pipeline is destroyed once no frame in
// flight can use it.
func (r *Renderer) ReleaseShader(h Handle) error {
	s, ok := r.shaders.Remove(h)
	if !ok {
		return contract("release shader", "stale shader handle")
	}
	delete(r.shaderTextures, h)
	r.deletions.Defer(r.current, s)
	return nil
}

// SetUIDrawData sets the overlay drawn on top of the following frames. Nil
// removes it.
func (r *Renderer) SetUIDrawData(d *UIDrawData) { r.ui = d }

// Render draws one frame of scene. Swap chain and timeout errors are
// handled here: the frame is skipped, the swap chain rebuilt at the start
// of a later frame, and nil returned. Any other error is returned and
// should end the render loop.
func (r *Renderer) Render(scene Scene) error {
	if r.destroyed {
		return contract("render", "renderer is destroyed")
	}
	start := hrtime.Now()
	submitted, err := r.renderFrame(scene)
	if submitted {
		elapsed := hrtime.Since(start)
		r.stats.LastFrameTime = elapsed
		r.stats.TotalFrameTime += elapsed
	}
	switch KindOf(err) {
	case KindNone:
		return nil
	case KindOutOfDate, KindSuboptimal:
		r.swapChain.Invalidate()
		if !submitted {
			r.stats.Skipped++
		}
		r.logger.Debug("swap chain needs rebuild", "frame", r.frame, "err", err)
		return nil
	case KindTimeout:
		r.stats.Skipped++
		r.logger.Warn("frame skipped", "frame", r.frame, "err", err)
		return nil
	}
	return err
}

// drawCall is a Drawable with its handles resolved.
type drawCall struct {
	va     *VertexArray
	shader *Shader
	model  mgl32.Mat4
}

func (r *Renderer) renderFrame(scene Scene) (bool, error) {
	if r.swapChain.NeedsRecreate() {
		if err := r.rebuild(); err != nil {
			return false, err
		}
	}
	draws, err := r.resolve(scene.Drawables())
	if err != nil {
		return false, err
	}

	cb := r.commands[r.current]
	if err := cb.Reset(); err != nil {
		return false, err
	}
	if n := r.deletions.Collect(r.current); n > 0 {
		r.logger.Debug("released resources destroyed", "slot", r.current, "count", n)
	}
	// The slot's fence has been waited on, so its uniform buffer is free.
	extent := r.swapChain.Extent()
	u := NewFrameUniforms(scene.Camera(), scene.Lights(), extent.Width, extent.Height)
	if err := r.uniforms[r.current].Write(0, u.Bytes()); err != nil {
		return false, err
	}
	if err := r.swapChain.AcquireNextImage(cb); err != nil {
		return false, err
	}
	if err := r.record(cb, draws); err != nil {
		r.abandon(cb)
		return false, err
	}
	if err := cb.CmdUploadResources(); err != nil {
		return false, err
	}
	r.advance()
	return true, cb.CmdDisplayImage(r.swapChain)
}

func (r *Renderer) resolve(drawables []Drawable) ([]drawCall, error) {
	const op = "resolve drawables"
	draws := make([]drawCall, 0, len(drawables))
	for i, d := range drawables {
		va, ok := r.vertexArrays.Get(d.VertexArray)
		if !ok {
			return nil, contract(op, "drawable %d: stale vertex array handle", i)
		}
		s, ok := r.shaders.Get(d.Shader)
		if !ok {
			return nil, contract(op, "drawable %d: stale shader handle", i)
		}
		if va.Layout().Stride() != s.Layout().Stride() {
			return nil, contract(op, "drawable %d: vertex stride %d, shader %q reads %d",
				i, va.Layout().Stride(), s.Name(), s.Layout().Stride())
		}
		draws = append(draws, drawCall{va: va, shader: s, model: d.Model})
	}
	return draws, nil
}

func (r *Renderer) record(cb *CommandBuffer, draws []drawCall) error {
	if err := cb.Begin(); err != nil {
		return err
	}
	if err := r.framebuffer.Bind(cb, r.clear); err != nil {
		return err
	}
	if err := cb.CmdSetViewport(hal.Viewport{}); err != nil {
		return err
	}
	if err := cb.CmdSetScissor(hal.Rect2D{}); err != nil {
		return err
	}
	var bound *Shader
	for _, d := range draws {
		if d.shader != bound {
			if err := d.shader.Bind(cb); err != nil {
				return err
			}
			bound = d.shader
		}
		if err := d.shader.PushModel(cb, d.model); err != nil {
			return err
		}
		if err := d.va.Bind(cb); err != nil {
			return err
		}
		if err := d.va.Draw(cb); err != nil {
			return err
		}
	}
	if err := cb.CmdDrawUIDrawData(r.ui); err != nil {
		return err
	}
	return cb.End()
}

// abandon submits and presents whatever cb holds after a recording error,
// so the acquired image and its semaphore are not left dangling.
func (r *Renderer) abandon(cb *CommandBuffer) {
	if cb.state == StateIdle && cb.acquired {
		if err := cb.Begin(); err != nil {
			r.logger.Debug("abandoned frame", "step", "begin", "err", err)
			return
		}
	}
	if cb.state == StateRecording {
		if err := cb.End(); err != nil {
			r.logger.Debug("abandoned frame", "step", "end", "err", err)
			return
		}
	}
	if cb.state == StateExecutable {
		if err := cb.CmdUploadResources(); err != nil {
			r.logger.Debug("abandoned frame", "step", "submit", "err", err)
			return
		}
	}
	if cb.acquired {
		if err := cb.CmdDisplayImage(r.swapChain); err != nil {
			r.logger.Debug("abandoned frame", "step", "present", "err", err)
		}
	}
}

func (r *Renderer) advance() {
	r.current = (r.current + 1) % MaxFramesInFlight
	r.frame++
	r.stats.Frames++
}

// rebuild recreates the swap chain and everything derived from it. The
// render pass and pipelines are only rebuilt when the formats change.
func (r *Renderer) rebuild() error {
	if err := r.swapChain.Recreate(); err != nil {
		return err
	}
	if r.pass.Compatible(r.swapChain) {
		if err := r.framebuffer.Rebuild(r.swapChain, nil); err != nil {
			return err
		}
	} else {
		pass, err := NewRenderPass(r.device, r.swapChain.Format().Format, r.swapChain.DepthFormat())
		if err != nil {
			return err
		}
		var rebuildErr error
		r.shaders.Each(func(_ Handle, s *Shader) {
			if rebuildErr == nil {
				rebuildErr = s.Rebuild(pass)
			}
		})
		if rebuildErr != nil {
			pass.Destroy()
			return rebuildErr
		}
		if err := r.framebuffer.Rebuild(r.swapChain, pass); err != nil {
			return err
		}
		r.pass.Destroy()
		r.pass = pass
	}
	r.stats.Rebuilds++
	r.logger.Info("renderer rebuilt", "generation", r.swapChain.Generation(), "frame", r.frame)
	return nil
}

func (r *Renderer) Stats() RendererStats { return r.stats }

// Frame returns the number of frames submitted.
func (r *Renderer) Frame() uint64 { return r.frame }

// CurrentSlot returns the frame slot the next frame records into.
func (r *Renderer) CurrentSlot() int { return r.current }

func (r *Renderer) SwapChain() *SwapChain { return r.swapChain }

// PendingDeletions returns the number of released resources not yet
// destroyed.
func (r *Renderer) PendingDeletions() int { return r.deletions.Pending() }

// Destroy waits for the device to go idle and destroys everything the
// renderer owns, including resources still in its arenas.
func (r *Renderer) Destroy() {
	if r.destroyed {
		return
	}
	if err := r.device.WaitForIdle(); err != nil {
		r.logger.Warn("wait for idle before renderer teardown failed", "err", err)
	}
	for _, cb := range r.commands {
		if cb != nil {
			cb.Destroy()
		}
	}
	r.deletions.CollectAll()
	r.shaders.Each(func(_ Handle, s *Shader) { s.Destroy() })
	r.shaders.Clear()
	r.vertexArrays.Each(func(_ Handle, va *VertexArray) { va.Destroy() })
	r.vertexArrays.Clear()
	r.textures.Each(func(_ Handle, t *Texture) { t.Destroy() })
	r.textures.Clear()
	if r.white != nil {
		r.white.Destroy()
	}
	for _, u := range r.uniforms {
		if u != nil {
			u.Destroy()
		}
	}
	if r.framebuffer != nil {
		r.framebuffer.Destroy()
	}
	if r.pass != nil {
		r.pass.Destroy()
	}
	r.destroyed = true
}
