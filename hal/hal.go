// Package hal defines the contract between the diesel core and a graphics
// backend. A backend provides an Instance; everything else is reached
// from it. Objects are not safe for concurrent use unless stated.
package hal

import (
	"time"
	"unsafe"
)

// WaitForever is the timeout used by teardown waits.
const WaitForever = time.Duration(1<<63 - 1)

// Window is the windowing collaborator. *glfw.Window satisfies it.
type Window interface {
	// GetFramebufferSize returns the live viewport size in pixels.
	GetFramebufferSize() (width, height int)
	// GetRequiredInstanceExtensions returns the platform instance
	// extensions needed to present to the window.
	GetRequiredInstanceExtensions() []string
	// CreateWindowSurface creates a native presentable surface for the
	// given backend instance handle.
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

// Instance is a backend instance.
type Instance interface {
	Adapters() ([]Adapter, error)
	CreateSurface(w Window) (Surface, error)
	Destroy()
}

// Surface is the presentable target bound to a window.
type Surface interface {
	Destroy()
}

// Adapter is a physical device.
type Adapter interface {
	Properties() DeviceProperties
	QueueFamilies() []QueueFamily
	// SurfaceSupport reports whether the queue family can present to s.
	SurfaceSupport(family uint32, s Surface) (bool, error)
	Extensions() ([]string, error)
	FormatProperties(f Format) FormatProperties
	SurfaceCapabilities(s Surface) (SurfaceCapabilities, error)
	SurfaceFormats(s Surface) ([]SurfaceFormat, error)
	PresentModes(s Surface) ([]PresentMode, error)
	Open(desc DeviceDescriptor) (Device, error)
}

// Device is a logical device.
type Device interface {
	Queue(family uint32) Queue
	NewCommandPool(family uint32) (CommandPool, error)
	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	// NewSwapchain creates a swapchain for s. old, if not nil, is handed
	// to the backend for resource reuse; the caller still destroys it.
	NewSwapchain(s Surface, desc SwapchainDescriptor, old Swapchain) (Swapchain, error)
	NewDepthImage(format Format, extent Extent2D) (Image, error)
	NewRenderPass(desc RenderPassDescriptor) (RenderPass, error)
	NewFramebuffer(rp RenderPass, color ImageView, depth Image, extent Extent2D) (Framebuffer, error)
	NewBuffer(usage BufferUsage, size int) (Buffer, error)
	NewTexture(desc TextureDescriptor, pixels []byte) (Texture, error)
	NewShaderModule(code []byte) (ShaderModule, error)
	NewPipeline(desc PipelineDescriptor) (Pipeline, error)
	// WaitIdle blocks until all queued work on the device completes.
	WaitIdle() error
	Destroy()
}

// Queue submits work to the device and presents swapchain images.
// Calls on the same queue must not overlap.
type Queue interface {
	// Submit executes cmd. The execution waits on wait (if not nil) at
	// waitStage, then signals signal (if not nil) and fence (if not nil).
	Submit(cmd CommandBuffer, wait Semaphore, waitStage PipelineStage, signal Semaphore, fence Fence) error
	// Present presents image of sc after wait is signaled.
	// ErrSuboptimal and ErrOutOfDate request a swapchain rebuild.
	Present(sc Swapchain, image uint32, wait Semaphore) error
	WaitIdle() error
}

type CommandPool interface {
	Allocate() (CommandBuffer, error)
	// Destroy frees the pool and every buffer allocated from it.
	Destroy()
}

// CommandBuffer records GPU commands.
type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error
	BeginRenderPass(rp RenderPass, fb Framebuffer, area Rect2D, clear ClearValues)
	EndRenderPass()
	BindPipeline(p Pipeline)
	BindDescriptorSet(p Pipeline, frame int)
	PushConstants(p Pipeline, data []byte)
	BindVertexBuffer(b Buffer, offset uint64)
	BindIndexBuffer(b Buffer, offset uint64, t IndexType)
	SetViewport(v Viewport)
	SetScissor(r Rect2D)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// Fence is a CPU-observable completion signal.
type Fence interface {
	// Wait blocks until the fence is signaled or timeout expires, in which
	// case ErrTimeout is returned.
	Wait(timeout time.Duration) error
	// Reset unsignals the fence. The fence must not be in use by a pending
	// submission.
	Reset() error
	Signaled() (bool, error)
	Destroy()
}

// Semaphore orders queue operations on the GPU.
type Semaphore interface {
	Destroy()
}

// Swapchain is a chain of presentable images.
type Swapchain interface {
	// Views returns one view per image, in image order.
	Views() []ImageView
	// AcquireNextImage returns the index of the next presentable image and
	// signals signal once the image is ready to be written. ErrSuboptimal
	// comes with a valid index; ErrOutOfDate does not.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (uint32, error)
	// Destroy destroys the swapchain and its views.
	Destroy()
}

// ImageView is a view owned by a swapchain or an image.
type ImageView interface{}

type Image interface {
	View() ImageView
	Destroy()
}

type RenderPass interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

// Buffer is host visible device memory.
type Buffer interface {
	Size() int
	Write(offset int, data []byte) error
	Destroy()
}

type Texture interface {
	Destroy()
}

type ShaderModule interface {
	Destroy()
}

// Pipeline is a graphics pipeline with its layout and one descriptor set
// per frame in flight.
type Pipeline interface {
	SetUniformBuffer(frame int, b Buffer) error
	SetTexture(frame int, t Texture) error
	Destroy()
}
