package vulkan

import (
	"time"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type swapchain struct {
	device *device
	handle vk.Swapchain
	format vk.Format
	images []vk.Image
	views  []vk.ImageView
}

func (d *device) NewSwapchain(s hal.Surface, desc hal.SwapchainDescriptor, old hal.Swapchain) (hal.Swapchain, error) {
	surf := s.(*surface)
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.adapter.gpu, surf.handle, &caps)
	if err := newError(ret, "surface capabilities"); err != nil {
		return nil, err
	}
	caps.Deref()

	preTransform := vk.SurfaceTransformIdentityBit
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&preTransform == 0 {
		preTransform = caps.CurrentTransform
	}

	// One of these is guaranteed to be supported.
	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	sharing := vk.SharingModeExclusive
	var families []uint32
	if len(desc.QueueFamilies) == 2 && desc.QueueFamilies[0] != desc.QueueFamilies[1] {
		sharing = vk.SharingModeConcurrent
		families = desc.QueueFamilies
	}

	oldHandle := vk.NullSwapchain
	if o, ok := old.(*swapchain); ok && o != nil {
		oldHandle = o.handle
	}

	format := toVkFormat(desc.Format.Format)
	var handle vk.Swapchain
	ret = vk.CreateSwapchain(d.handle, &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               surf.handle,
		MinImageCount:         desc.ImageCount,
		ImageFormat:           format,
		ImageColorSpace:       toVkColorSpace(desc.Format.ColorSpace),
		ImageExtent:           toVkExtent(desc.Extent),
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:          preTransform,
		CompositeAlpha:        compositeAlpha,
		ImageArrayLayers:      1,
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PresentMode:           toVkPresentMode(desc.PresentMode),
		OldSwapchain:          oldHandle,
		Clipped:               vk.True,
	}, nil, &handle)
	if err := newError(ret, "create swapchain"); err != nil {
		return nil, err
	}

	sc := &swapchain{device: d, handle: handle, format: format}
	var count uint32
	ret = vk.GetSwapchainImages(d.handle, handle, &count, nil)
	if err := newError(ret, "swapchain images"); err != nil {
		sc.Destroy()
		return nil, err
	}
	sc.images = make([]vk.Image, count)
	ret = vk.GetSwapchainImages(d.handle, handle, &count, sc.images)
	if err := newError(ret, "swapchain images"); err != nil {
		sc.Destroy()
		return nil, err
	}
	for _, img := range sc.images {
		view, err := d.createImageView(img, format, vk.ImageAspectColorBit)
		if err != nil {
			sc.Destroy()
			return nil, err
		}
		sc.views = append(sc.views, view)
	}
	return sc, nil
}

func (sc *swapchain) Views() []hal.ImageView {
	views := make([]hal.ImageView, len(sc.views))
	for i, v := range sc.views {
		views[i] = v
	}
	return views
}

func (sc *swapchain) AcquireNextImage(timeout time.Duration, signal hal.Semaphore) (uint32, error) {
	ns := vk.MaxUint64
	if timeout != hal.WaitForever {
		ns = uint64(timeout.Nanoseconds())
	}
	var index uint32
	ret := vk.AcquireNextImage(sc.device.handle, sc.handle, ns, signal.(*semaphore).handle, vk.NullFence, &index)
	return index, newError(ret, "acquire next image")
}

func (sc *swapchain) Destroy() {
	for _, v := range sc.views {
		vk.DestroyImageView(sc.device.handle, v, nil)
	}
	sc.views = nil
	if sc.handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.device.handle, sc.handle, nil)
		sc.handle = vk.NullSwapchain
	}
}

func (d *device) createImageView(img vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.handle, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	return view, newError(ret, "create image view")
}

// createImage creates a 2D optimal-tiling image bound to device local memory.
func (d *device) createImage(extent hal.Extent2D, format vk.Format, usage vk.ImageUsageFlagBits) (vk.Image, vk.DeviceMemory, error) {
	var img vk.Image
	var mem vk.DeviceMemory
	ret := vk.CreateImage(d.handle, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &img)
	if err := newError(ret, "create image"); err != nil {
		return img, mem, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, img, &req)
	req.Deref()
	typeIndex, ok := d.adapter.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		vk.DestroyImage(d.handle, img, nil)
		return img, mem, errors.Wrap(hal.ErrUnsupported, "vulkan: no device local memory for image")
	}
	ret = vk.AllocateMemory(d.handle, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if err := newError(ret, "allocate image memory"); err != nil {
		vk.DestroyImage(d.handle, img, nil)
		return img, mem, err
	}
	if err := newError(vk.BindImageMemory(d.handle, img, mem, 0), "bind image memory"); err != nil {
		vk.FreeMemory(d.handle, mem, nil)
		vk.DestroyImage(d.handle, img, nil)
		return img, mem, err
	}
	return img, mem, nil
}

func (d *device) NewDepthImage(format hal.Format, extent hal.Extent2D) (hal.Image, error) {
	vf := toVkFormat(format)
	img, mem, err := d.createImage(extent, vf, vk.ImageUsageDepthStencilAttachmentBit)
	if err != nil {
		return nil, err
	}
	aspect := vk.ImageAspectDepthBit
	if format.HasStencil() {
		aspect |= vk.ImageAspectStencilBit
	}
	view, err := d.createImageView(img, vf, aspect)
	if err != nil {
		vk.FreeMemory(d.handle, mem, nil)
		vk.DestroyImage(d.handle, img, nil)
		return nil, err
	}
	return &depthImage{device: d, image: img, memory: mem, view: view}, nil
}

type depthImage struct {
	device *device
	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
}

func (i *depthImage) View() hal.ImageView { return i.view }

func (i *depthImage) Destroy() {
	vk.DestroyImageView(i.device.handle, i.view, nil)
	vk.DestroyImage(i.device.handle, i.image, nil)
	vk.FreeMemory(i.device.handle, i.memory, nil)
}
