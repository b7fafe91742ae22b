package diesel

import (
	"log/slog"
	"time"

	"github.com/andewx/diesel/hal"
)

// CommandBufferState is the lifecycle state of a CommandBuffer.
type CommandBufferState uint8

const (
	// StateIdle buffers may begin recording.
	StateIdle CommandBufferState = iota
	StateRecording
	// StateExecutable buffers are recorded and not yet submitted.
	StateExecutable
	// StateSubmitted buffers may be in use by the GPU until Reset waits on
	// their fence.
	StateSubmitted
)

func (s CommandBufferState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateExecutable:
		return "executable"
	case StateSubmitted:
		return "submitted"
	}
	return "unknown"
}

// CommandBuffer is the per-frame-slot recording context. It owns a native
// command buffer and the synchronization of one frame in flight: the
// image-available and render-finished semaphores and the in-flight fence,
// which is created signaled so the first Reset does not block.
type CommandBuffer struct {
	device *RenderDevice
	native hal.CommandBuffer
	frame  int

	imageAvailable hal.Semaphore
	renderFinished hal.Semaphore
	inFlight       hal.Fence
	timeout        time.Duration

	state  CommandBufferState
	inPass bool

	// The acquired image and the swap chain generation it came from.
	image      uint32
	acquired   bool
	swapChain  *SwapChain
	generation uint64

	destroyed bool
	logger    *slog.Logger
}

// CommandBufferSnapshot is an observable summary of a CommandBuffer.
type CommandBufferSnapshot struct {
	State         CommandBufferState
	FenceSignaled bool
	ImageIndex    uint32
	ImageAcquired bool
	Frame         int
}

// NewCommandBuffer allocates the command buffer of frame slot frame. Fence
// waits in Reset are bounded by the FenceTimeoutMs setting of the device's
// context.
func NewCommandBuffer(device *RenderDevice, frame int) (*CommandBuffer, error) {
	const op = "new command buffer"
	if frame < 0 || frame >= MaxFramesInFlight {
		return nil, contract(op, "frame slot %d outside [0, %d)", frame, MaxFramesInFlight)
	}
	cb := &CommandBuffer{
		device:  device,
		frame:   frame,
		timeout: device.ctx.Usage().FenceTimeout(),
		logger:  device.logger,
	}
	var err error
	if cb.native, err = device.pool.Allocate(); err != nil {
		return nil, newError(op, KindFatal, err)
	}
	if cb.imageAvailable, err = device.device.NewSemaphore(); err != nil {
		return nil, newError(op, KindFatal, err)
	}
	if cb.renderFinished, err = device.device.NewSemaphore(); err != nil {
		cb.imageAvailable.Destroy()
		return nil, newError(op, KindFatal, err)
	}
	if cb.inFlight, err = device.device.NewFence(true); err != nil {
		cb.imageAvailable.Destroy()
		cb.renderFinished.Destroy()
		return nil, newError(op, KindFatal, err)
	}
	return cb, nil
}

// Frame returns the frame slot of the buffer.
func (cb *CommandBuffer) Frame() int { return cb.frame }

func (cb *CommandBuffer) State() CommandBufferState { return cb.state }

// Image returns the index of the acquired swap chain image and whether one
// is held.
func (cb *CommandBuffer) Image() (uint32, bool) { return cb.image, cb.acquired }

// SetFenceTimeout bounds the fence wait of Reset.
func (cb *CommandBuffer) SetFenceTimeout(d time.Duration) { cb.timeout = d }

func (cb *CommandBuffer) Snapshot() CommandBufferSnapshot {
	signaled, _ := cb.inFlight.Signaled()
	return CommandBufferSnapshot{
		State:         cb.state,
		FenceSignaled: signaled,
		ImageIndex:    cb.image,
		ImageAcquired: cb.acquired,
		Frame:         cb.frame,
	}
}

// Reset waits for the last submission of the buffer and makes it Idle. A
// wait longer than the fence timeout returns a KindTimeout error and leaves
// the buffer Submitted.
func (cb *CommandBuffer) Reset() error {
	const op = "reset command buffer"
	if cb.destroyed {
		return contract(op, "command buffer is destroyed")
	}
	if cb.state == StateSubmitted {
		if err := cb.inFlight.Wait(cb.timeout); err != nil {
			if KindOf(err) == KindTimeout {
				cb.logger.Warn("fence wait timed out", "frame", cb.frame, "timeout", cb.timeout)
				return newError(op, KindTimeout, err)
			}
			return backendError(op, err)
		}
	}
	signaled, err := cb.inFlight.Signaled()
	if err != nil {
		return backendError(op, err)
	}
	if signaled {
		if err := cb.inFlight.Reset(); err != nil {
			return backendError(op, err)
		}
	}
	if err := cb.native.Reset(); err != nil {
		return backendError(op, err)
	}
	cb.state = StateIdle
	cb.inPass = false
	return nil
}

// Begin starts recording.
func (cb *CommandBuffer) Begin() error {
	const op = "begin command buffer"
	if cb.state != StateIdle {
		return contract(op, "command buffer is %s, want %s", cb.state, StateIdle)
	}
	if err := cb.native.Begin(); err != nil {
		return backendError(op, err)
	}
	cb.state = StateRecording
	return nil
}

// End finishes recording, closing a render pass left open.
func (cb *CommandBuffer) End() error {
	const op = "end command buffer"
	if cb.state != StateRecording {
		return contract(op, "command buffer is %s, want %s", cb.state, StateRecording)
	}
	if cb.inPass {
		cb.native.EndRenderPass()
		cb.inPass = false
	}
	if err := cb.native.End(); err != nil {
		return backendError(op, err)
	}
	cb.state = StateExecutable
	return nil
}

// CmdUploadResources submits the recorded commands to the graphics queue.
// With an acquired image the submission waits for the image at color
// attachment output and signals render-finished for CmdDisplayImage. The
// in-flight fence is always signaled.
func (cb *CommandBuffer) CmdUploadResources() error {
	const op = "submit command buffer"
	if cb.state != StateExecutable {
		return contract(op, "command buffer is %s, want %s", cb.state, StateExecutable)
	}
	signaled, err := cb.inFlight.Signaled()
	if err != nil {
		return backendError(op, err)
	}
	if signaled {
		if err := cb.inFlight.Reset(); err != nil {
			return backendError(op, err)
		}
	}
	var wait, signal hal.Semaphore
	if cb.acquired {
		wait, signal = cb.imageAvailable, cb.renderFinished
	}
	err = cb.device.submit(func() error {
		return cb.device.graphics.Submit(cb.native, wait, hal.StageColorAttachmentOutput, signal, cb.inFlight)
	})
	if err != nil {
		return backendError(op, err)
	}
	cb.state = StateSubmitted
	return nil
}

// CmdDisplayImage presents the acquired image of sc once rendering to it
// finishes. Suboptimal and out of date results flag sc for rebuild and are
// returned as recoverable errors.
func (cb *CommandBuffer) CmdDisplayImage(sc *SwapChain) error {
	const op = "present image"
	switch {
	case cb.state != StateSubmitted:
		return contract(op, "command buffer is %s, want %s", cb.state, StateSubmitted)
	case !cb.acquired:
		return contract(op, "no image was acquired")
	case cb.swapChain != sc:
		return contract(op, "image was acquired from another swap chain")
	case cb.generation != sc.generation:
		return contract(op, "swap chain was rebuilt after image %d was acquired", cb.image)
	}
	err := cb.device.submit(func() error {
		return cb.device.present.Present(sc.native, cb.image, cb.renderFinished)
	})
	cb.acquired = false
	cb.swapChain = nil
	switch KindOf(err) {
	case KindNone:
		return nil
	case KindSuboptimal, KindOutOfDate:
		sc.Invalidate()
		cb.logger.Warn("present requests swap chain rebuild", "frame", cb.frame, "err", err)
	}
	return backendError(op, err)
}

func (cb *CommandBuffer) recording(op string) error {
	if cb.state != StateRecording {
		return contract(op, "command buffer is %s, want %s", cb.state, StateRecording)
	}
	return nil
}

func (cb *CommandBuffer) drawing(op string) error {
	if err := cb.recording(op); err != nil {
		return err
	}
	if !cb.inPass {
		return contract(op, "no render pass is open")
	}
	return nil
}

// beginRenderPass is called by Framebuffer.Bind.
func (cb *CommandBuffer) beginRenderPass(rp hal.RenderPass, fb hal.Framebuffer, area hal.Rect2D, clear hal.ClearValues) {
	cb.native.BeginRenderPass(rp, fb, area, clear)
	cb.inPass = true
}

// CmdEndRenderPass closes the open render pass.
func (cb *CommandBuffer) CmdEndRenderPass() error {
	if err := cb.drawing("end render pass"); err != nil {
		return err
	}
	cb.native.EndRenderPass()
	cb.inPass = false
	return nil
}

// fullExtent is the extent of the acquired image's swap chain.
func (cb *CommandBuffer) fullExtent(op string) (hal.Extent2D, error) {
	if cb.swapChain == nil {
		return hal.Extent2D{}, contract(op, "zero size needs an acquired image")
	}
	return cb.swapChain.extent, nil
}

// CmdSetViewport sets the viewport. A zero width or height covers the whole
// swap chain image.
func (cb *CommandBuffer) CmdSetViewport(v hal.Viewport) error {
	const op = "set viewport"
	if err := cb.recording(op); err != nil {
		return err
	}
	if v.Width == 0 || v.Height == 0 {
		e, err := cb.fullExtent(op)
		if err != nil {
			return err
		}
		v = hal.Viewport{Width: float32(e.Width), Height: float32(e.Height), MaxDepth: 1}
	}
	cb.native.SetViewport(v)
	return nil
}

// CmdSetScissor sets the scissor rectangle. A zero extent covers the whole
// swap chain image.
func (cb *CommandBuffer) CmdSetScissor(r hal.Rect2D) error {
	const op = "set scissor"
	if err := cb.recording(op); err != nil {
		return err
	}
	if r.Extent.IsZero() {
		e, err := cb.fullExtent(op)
		if err != nil {
			return err
		}
		r = hal.Rect2D{Extent: e}
	}
	cb.native.SetScissor(r)
	return nil
}

func (cb *CommandBuffer) CmdDraw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := cb.drawing("draw"); err != nil {
		return err
	}
	cb.native.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	return nil
}

func (cb *CommandBuffer) CmdDrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) error {
	if err := cb.drawing("draw indexed"); err != nil {
		return err
	}
	cb.native.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	return nil
}

// CmdPushConstants writes data into the push constant range of s, which
// must be bound.
func (cb *CommandBuffer) CmdPushConstants(s *Shader, data []byte) error {
	const op = "push constants"
	if err := cb.recording(op); err != nil {
		return err
	}
	if len(data) > PushConstantSize {
		return contract(op, "%d bytes exceed the %d byte range", len(data), PushConstantSize)
	}
	cb.native.PushConstants(s.pipeline, data)
	return nil
}

// Destroy waits for the last submission without a time limit and releases
// the synchronization objects. The native buffer is freed with the device's
// command pool. Calling Destroy again does nothing.
func (cb *CommandBuffer) Destroy() {
	if cb.destroyed {
		return
	}
	if cb.state == StateSubmitted {
		if err := cb.inFlight.Wait(hal.WaitForever); err != nil {
			cb.logger.Warn("fence wait before teardown failed", "frame", cb.frame, "err", err)
		}
	}
	cb.imageAvailable.Destroy()
	cb.renderFinished.Destroy()
	cb.inFlight.Destroy()
	cb.destroyed = true
}
