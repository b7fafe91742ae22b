package vulkan

import (
	"github.com/andewx/diesel/hal"
	vk "github.com/vulkan-go/vulkan"
)

type renderPass struct {
	device *device
	handle vk.RenderPass
	depth  hal.Format
}

// NewRenderPass creates a single subpass render pass with one color
// attachment that ends ready for presentation, plus a depth attachment when
// desc.Depth is set.
func (d *device) NewRenderPass(desc hal.RenderPassDescriptor) (hal.RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         toVkFormat(desc.Color),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}
	colorRefs := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorRefs,
	}

	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	access := vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if desc.Depth != hal.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         toVkFormat(desc.Depth),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		access |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	// The acquire semaphore is waited on at color attachment output, so the
	// layout transition must not start earlier than that.
	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.MaxUint32,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: access,
	}}

	var handle vk.RenderPass
	ret := vk.CreateRenderPass(d.handle, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}, nil, &handle)
	if err := newError(ret, "create render pass"); err != nil {
		return nil, err
	}
	return &renderPass{device: d, handle: handle, depth: desc.Depth}, nil
}

func (rp *renderPass) Destroy() {
	vk.DestroyRenderPass(rp.device.handle, rp.handle, nil)
}

type framebuffer struct {
	device *device
	handle vk.Framebuffer
}

func (d *device) NewFramebuffer(rp hal.RenderPass, color hal.ImageView, depth hal.Image, extent hal.Extent2D) (hal.Framebuffer, error) {
	views := []vk.ImageView{color.(vk.ImageView)}
	if depth != nil {
		views = append(views, depth.View().(vk.ImageView))
	}
	var handle vk.Framebuffer
	ret := vk.CreateFramebuffer(d.handle, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.(*renderPass).handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}, nil, &handle)
	if err := newError(ret, "create framebuffer"); err != nil {
		return nil, err
	}
	return &framebuffer{device: d, handle: handle}, nil
}

func (fb *framebuffer) Destroy() {
	vk.DestroyFramebuffer(fb.device.handle, fb.handle, nil)
}
