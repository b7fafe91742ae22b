package vulkan

import (
	"encoding/binary"
	"unsafe"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var bufferUsages = map[hal.BufferUsage]vk.BufferUsageFlagBits{
	hal.BufferVertex:  vk.BufferUsageVertexBufferBit,
	hal.BufferIndex:   vk.BufferUsageIndexBufferBit,
	hal.BufferUniform: vk.BufferUsageUniformBufferBit,
	hal.BufferStaging: vk.BufferUsageTransferSrcBit,
}

// buffer is host visible and coherent memory, mapped for the buffer's
// lifetime.
type buffer struct {
	device *device
	handle vk.Buffer
	memory vk.DeviceMemory
	mapped unsafe.Pointer
	size   int
}

func (d *device) NewBuffer(usage hal.BufferUsage, size int) (hal.Buffer, error) {
	if size <= 0 {
		return nil, errors.Wrapf(hal.ErrInitFailed, "vulkan: buffer size %d", size)
	}
	var handle vk.Buffer
	ret := vk.CreateBuffer(d.handle, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(bufferUsages[usage]),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &handle)
	if err := newError(ret, "create buffer"); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, handle, &req)
	req.Deref()
	typeIndex, ok := d.adapter.findMemoryType(req.MemoryTypeBits,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if !ok {
		vk.DestroyBuffer(d.handle, handle, nil)
		return nil, errors.Wrap(hal.ErrUnsupported, "vulkan: no host visible memory for buffer")
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &memory)
	if err := newError(ret, "allocate buffer memory"); err != nil {
		vk.DestroyBuffer(d.handle, handle, nil)
		return nil, err
	}
	b := &buffer{device: d, handle: handle, memory: memory, size: size}
	if err := newError(vk.BindBufferMemory(d.handle, handle, memory, 0), "bind buffer memory"); err != nil {
		b.Destroy()
		return nil, err
	}
	ret = vk.MapMemory(d.handle, memory, 0, vk.DeviceSize(size), 0, &b.mapped)
	if err := newError(ret, "map buffer memory"); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > b.size {
		return errors.Wrapf(hal.ErrValidation, "vulkan: write [%d, %d) outside buffer of %d bytes",
			offset, offset+len(data), b.size)
	}
	if len(data) == 0 {
		return nil
	}
	dst := unsafe.Pointer(uintptr(b.mapped) + uintptr(offset))
	if n := vk.Memcopy(dst, data); n != len(data) {
		return errors.Wrapf(hal.ErrInitFailed, "vulkan: copied %d of %d bytes", n, len(data))
	}
	return nil
}

func (b *buffer) Destroy() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device.handle, b.memory)
		b.mapped = nil
	}
	vk.DestroyBuffer(b.device.handle, b.handle, nil)
	vk.FreeMemory(b.device.handle, b.memory, nil)
}

type texture struct {
	device  *device
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler
}

// NewTexture uploads RGBA8 pixels through a staging buffer and leaves the
// image ready for sampling in fragment shaders.
func (d *device) NewTexture(desc hal.TextureDescriptor, pixels []byte) (hal.Texture, error) {
	want := int(desc.Width) * int(desc.Height) * 4
	if want == 0 || len(pixels) != want {
		return nil, errors.Wrapf(hal.ErrInitFailed, "vulkan: texture %dx%d with %d bytes", desc.Width, desc.Height, len(pixels))
	}
	staging, err := d.NewBuffer(hal.BufferStaging, len(pixels))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.Write(0, pixels); err != nil {
		return nil, err
	}

	format := toVkFormat(desc.Format)
	extent := hal.Extent2D{Width: desc.Width, Height: desc.Height}
	img, mem, err := d.createImage(extent, format, vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit)
	if err != nil {
		return nil, err
	}
	t := &texture{device: d, image: img, memory: mem}

	err = d.immediate(func(cb vk.CommandBuffer) {
		transition(cb, img, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		vk.CmdCopyBufferToImage(cb, staging.(*buffer).handle, img, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: desc.Width, Height: desc.Height, Depth: 1},
		}})
		transition(cb, img, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		t.Destroy()
		return nil, err
	}

	if t.view, err = d.createImageView(img, format, vk.ImageAspectColorBit); err != nil {
		t.Destroy()
		return nil, err
	}
	ret := vk.CreateSampler(d.handle, &vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  vk.SamplerAddressModeRepeat,
		AddressModeV:  vk.SamplerAddressModeRepeat,
		AddressModeW:  vk.SamplerAddressModeRepeat,
		MaxAnisotropy: 1.0,
		CompareOp:     vk.CompareOpAlways,
		BorderColor:   vk.BorderColorIntOpaqueBlack,
	}, nil, &t.sampler)
	if err := newError(ret, "create sampler"); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *texture) Destroy() {
	h := t.device.handle
	if t.sampler != vk.NullSampler {
		vk.DestroySampler(h, t.sampler, nil)
	}
	if t.view != vk.NullImageView {
		vk.DestroyImageView(h, t.view, nil)
	}
	vk.DestroyImage(h, t.image, nil)
	vk.FreeMemory(h, t.memory, nil)
}

// transition records a layout change for a color image used as a texture.
func transition(cb vk.CommandBuffer, img vk.Image, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	src := vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	dst := vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	if from == vk.ImageLayoutTransferDstOptimal {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		src = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	}
	switch to {
	case vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	vk.CmdPipelineBarrier(cb, src, dst, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

type shaderModule struct {
	device *device
	handle vk.ShaderModule
}

func (d *device) NewShaderModule(code []byte) (hal.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Wrapf(hal.ErrInitFailed, "vulkan: shader code of %d bytes", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[4*i:])
	}
	var handle vk.ShaderModule
	ret := vk.CreateShaderModule(d.handle, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}, nil, &handle)
	if err := newError(ret, "create shader module"); err != nil {
		return nil, err
	}
	return &shaderModule{device: d, handle: handle}, nil
}

func (m *shaderModule) Destroy() {
	vk.DestroyShaderModule(m.device.handle, m.handle, nil)
}
