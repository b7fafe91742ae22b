package vulkan

import (
	"time"
	"unsafe"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type device struct {
	adapter *adapter
	handle  vk.Device
	queues  map[uint32]*queue
	// upload runs texture copies and their layout transitions.
	upload *queue
}

func (d *device) Queue(family uint32) hal.Queue {
	q, ok := d.queues[family]
	if !ok {
		return nil
	}
	return q
}

func (d *device) WaitIdle() error {
	return newError(vk.DeviceWaitIdle(d.handle), "device wait idle")
}

func (d *device) Destroy() {
	if d.handle != nil {
		vk.DestroyDevice(d.handle, nil)
		d.handle = nil
	}
}

type queue struct {
	device *device
	handle vk.Queue
	family uint32
}

func (q *queue) Submit(cmd hal.CommandBuffer, wait hal.Semaphore, waitStage hal.PipelineStage, signal hal.Semaphore, f hal.Fence) error {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd.(*commandBuffer).handle},
	}
	if wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{wait.(*semaphore).handle}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{toVkStage(waitStage)}
	}
	if signal != nil {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{signal.(*semaphore).handle}
	}
	fence := vk.NullFence
	if f != nil {
		fence = f.(*fenceObj).handle
	}
	return newError(vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{info}, fence), "queue submit")
}

func (q *queue) Present(sc hal.Swapchain, image uint32, wait hal.Semaphore) error {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.(*swapchain).handle},
		PImageIndices:  []uint32{image},
	}
	if wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{wait.(*semaphore).handle}
	}
	return newError(vk.QueuePresent(q.handle, &info), "queue present")
}

func (q *queue) WaitIdle() error {
	return newError(vk.QueueWaitIdle(q.handle), "queue wait idle")
}

func (d *device) NewCommandPool(family uint32) (hal.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.handle, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}, nil, &pool)
	if err := newError(ret, "create command pool"); err != nil {
		return nil, err
	}
	return &commandPool{device: d, handle: pool}, nil
}

type commandPool struct {
	device *device
	handle vk.CommandPool
}

func (p *commandPool) Allocate() (hal.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(p.device.handle, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := newError(ret, "allocate command buffer"); err != nil {
		return nil, err
	}
	return &commandBuffer{device: p.device, handle: buffers[0]}, nil
}

// Destroy frees the pool together with all of its command buffers.
func (p *commandPool) Destroy() {
	vk.DestroyCommandPool(p.device.handle, p.handle, nil)
}

type commandBuffer struct {
	device *device
	handle vk.CommandBuffer
}

func (c *commandBuffer) Reset() error {
	return newError(vk.ResetCommandBuffer(c.handle, 0), "reset command buffer")
}

func (c *commandBuffer) Begin() error {
	return newError(vk.BeginCommandBuffer(c.handle, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}), "begin command buffer")
}

func (c *commandBuffer) End() error {
	return newError(vk.EndCommandBuffer(c.handle), "end command buffer")
}

func (c *commandBuffer) BeginRenderPass(rp hal.RenderPass, fb hal.Framebuffer, area hal.Rect2D, clear hal.ClearValues) {
	pass := rp.(*renderPass)
	values := []vk.ClearValue{vk.NewClearValue(clear.Color[:])}
	if pass.depth != hal.FormatUndefined {
		values = append(values, vk.NewClearDepthStencil(clear.Depth, clear.Stencil))
	}
	vk.CmdBeginRenderPass(c.handle, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass.handle,
		Framebuffer:     fb.(*framebuffer).handle,
		RenderArea:      toVkRect(area),
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}, vk.SubpassContentsInline)
}

func (c *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.handle)
}

func (c *commandBuffer) BindPipeline(p hal.Pipeline) {
	vk.CmdBindPipeline(c.handle, vk.PipelineBindPointGraphics, p.(*pipeline).handle)
}

func (c *commandBuffer) BindDescriptorSet(p hal.Pipeline, frame int) {
	pl := p.(*pipeline)
	vk.CmdBindDescriptorSets(c.handle, vk.PipelineBindPointGraphics, pl.layout, 0, 1,
		[]vk.DescriptorSet{pl.sets[frame]}, 0, nil)
}

func (c *commandBuffer) PushConstants(p hal.Pipeline, data []byte) {
	if len(data) == 0 {
		return
	}
	pl := p.(*pipeline)
	vk.CmdPushConstants(c.handle, pl.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0,
		uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *commandBuffer) BindVertexBuffer(b hal.Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(c.handle, 0, 1, []vk.Buffer{b.(*buffer).handle}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *commandBuffer) BindIndexBuffer(b hal.Buffer, offset uint64, t hal.IndexType) {
	it := vk.IndexTypeUint16
	if t == hal.IndexUint32 {
		it = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(c.handle, b.(*buffer).handle, vk.DeviceSize(offset), it)
}

func (c *commandBuffer) SetViewport(v hal.Viewport) {
	vk.CmdSetViewport(c.handle, 0, 1, []vk.Viewport{{
		X: v.X, Y: v.Y, Width: v.Width, Height: v.Height,
		MinDepth: v.MinDepth, MaxDepth: v.MaxDepth,
	}})
}

func (c *commandBuffer) SetScissor(r hal.Rect2D) {
	vk.CmdSetScissor(c.handle, 0, 1, []vk.Rect2D{toVkRect(r)})
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(c.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *device) NewFence(signaled bool) (hal.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	ret := vk.CreateFence(d.handle, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &handle)
	if err := newError(ret, "create fence"); err != nil {
		return nil, err
	}
	return &fenceObj{device: d, handle: handle}, nil
}

type fenceObj struct {
	device *device
	handle vk.Fence
}

func (f *fenceObj) Wait(timeout time.Duration) error {
	ns := vk.MaxUint64
	if timeout != hal.WaitForever {
		ns = uint64(timeout.Nanoseconds())
	}
	ret := vk.WaitForFences(f.device.handle, 1, []vk.Fence{f.handle}, vk.True, ns)
	return newError(ret, "wait for fence")
}

func (f *fenceObj) Reset() error {
	return newError(vk.ResetFences(f.device.handle, 1, []vk.Fence{f.handle}), "reset fence")
}

func (f *fenceObj) Signaled() (bool, error) {
	switch ret := vk.GetFenceStatus(f.device.handle, f.handle); ret {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, newError(ret, "fence status")
	}
}

func (f *fenceObj) Destroy() {
	vk.DestroyFence(f.device.handle, f.handle, nil)
}

func (d *device) NewSemaphore() (hal.Semaphore, error) {
	var handle vk.Semaphore
	ret := vk.CreateSemaphore(d.handle, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &handle)
	if err := newError(ret, "create semaphore"); err != nil {
		return nil, err
	}
	return &semaphore{device: d, handle: handle}, nil
}

type semaphore struct {
	device *device
	handle vk.Semaphore
}

func (s *semaphore) Destroy() {
	vk.DestroySemaphore(s.device.handle, s.handle, nil)
}

// immediate records fn into a throwaway command buffer on the upload queue
// and waits for it to finish.
func (d *device) immediate(fn func(cb vk.CommandBuffer)) error {
	q := d.upload
	if q == nil {
		return errors.Wrap(hal.ErrInitFailed, "vulkan: no upload queue")
	}
	pool, err := d.NewCommandPool(q.family)
	if err != nil {
		return err
	}
	defer pool.Destroy()
	cb, err := pool.Allocate()
	if err != nil {
		return err
	}
	if err := cb.Begin(); err != nil {
		return err
	}
	fn(cb.(*commandBuffer).handle)
	if err := cb.End(); err != nil {
		return err
	}
	if err := q.Submit(cb, nil, hal.StageTopOfPipe, nil, nil); err != nil {
		return err
	}
	return q.WaitIdle()
}
