package vulkan

import (
	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type adapter struct {
	instance *instance
	gpu      vk.PhysicalDevice
	props    hal.DeviceProperties
	families []hal.QueueFamily
	memory   vk.PhysicalDeviceMemoryProperties
}

// newAdapter snapshots the device properties once, at enumeration.
func newAdapter(inst *instance, gpu vk.PhysicalDevice) *adapter {
	a := &adapter{instance: inst, gpu: gpu}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(gpu, &a.memory)
	a.memory.Deref()

	a.props = hal.DeviceProperties{
		VendorID:           props.VendorID,
		DeviceID:           props.DeviceID,
		Type:               fromVkDeviceType(props.DeviceType),
		Name:               vk.ToString(props.DeviceName[:]),
		GeometryShader:     features.GeometryShader.B(),
		TessellationShader: features.TessellationShader.B(),
	}
	for i := uint32(0); i < a.memory.MemoryHeapCount; i++ {
		heap := a.memory.MemoryHeaps[i]
		heap.Deref()
		a.props.HeapSizes = append(a.props.HeapSizes, uint64(heap.Size))
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	queueProps := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, queueProps)
	for _, qp := range queueProps[:count] {
		qp.Deref()
		a.families = append(a.families, hal.QueueFamily{Flags: fromVkQueueFlags(qp.QueueFlags), Count: qp.QueueCount})
	}
	return a
}

func (a *adapter) Properties() hal.DeviceProperties {
	props := a.props
	props.HeapSizes = append([]uint64(nil), a.props.HeapSizes...)
	return props
}

func (a *adapter) QueueFamilies() []hal.QueueFamily {
	return append([]hal.QueueFamily(nil), a.families...)
}

func (a *adapter) SurfaceSupport(family uint32, s hal.Surface) (bool, error) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(a.gpu, family, s.(*surface).handle, &supported)
	if err := newError(ret, "surface support"); err != nil {
		return false, err
	}
	return supported.B(), nil
}

// Extensions lists the extensions available on the device.
func (a *adapter) Extensions() ([]string, error) {
	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(a.gpu, "", &count, nil)
	if err := newError(ret, "enumerate device extensions"); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(a.gpu, "", &count, list)
	if err := newError(ret, "enumerate device extensions"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func (a *adapter) FormatProperties(f hal.Format) hal.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(a.gpu, toVkFormat(f), &props)
	props.Deref()
	return hal.FormatProperties{
		Linear:  fromVkFormatFeatures(props.LinearTilingFeatures),
		Optimal: fromVkFormatFeatures(props.OptimalTilingFeatures),
	}
}

func (a *adapter) SurfaceCapabilities(s hal.Surface) (hal.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(a.gpu, s.(*surface).handle, &caps)
	if err := newError(ret, "surface capabilities"); err != nil {
		return hal.SurfaceCapabilities{}, err
	}
	caps.Deref()
	return hal.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  fromVkExtent(caps.CurrentExtent),
		MinImageExtent: fromVkExtent(caps.MinImageExtent),
		MaxImageExtent: fromVkExtent(caps.MaxImageExtent),
	}, nil
}

func (a *adapter) SurfaceFormats(s hal.Surface) ([]hal.SurfaceFormat, error) {
	handle := s.(*surface).handle
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(a.gpu, handle, &count, nil)
	if err := newError(ret, "surface formats"); err != nil {
		return nil, err
	}
	list := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(a.gpu, handle, &count, list)
	if err := newError(ret, "surface formats"); err != nil {
		return nil, err
	}
	out := make([]hal.SurfaceFormat, 0, count)
	for _, f := range list[:count] {
		f.Deref()
		out = append(out, hal.SurfaceFormat{Format: fromVkFormat(f.Format), ColorSpace: fromVkColorSpace(f.ColorSpace)})
	}
	return out, nil
}

func (a *adapter) PresentModes(s hal.Surface) ([]hal.PresentMode, error) {
	handle := s.(*surface).handle
	var count uint32
	ret := vk.GetPhysicalDeviceSurfacePresentModes(a.gpu, handle, &count, nil)
	if err := newError(ret, "present modes"); err != nil {
		return nil, err
	}
	list := make([]vk.PresentMode, count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(a.gpu, handle, &count, list)
	if err := newError(ret, "present modes"); err != nil {
		return nil, err
	}
	out := make([]hal.PresentMode, 0, count)
	for _, m := range list[:count] {
		if mode, ok := fromVkPresentMode(m); ok {
			out = append(out, mode)
		}
	}
	return out, nil
}

func (a *adapter) Open(desc hal.DeviceDescriptor) (hal.Device, error) {
	if len(desc.Families) == 0 {
		return nil, errors.Wrap(hal.ErrInitFailed, "vulkan: open device: no queue families")
	}
	if int(desc.Upload) >= len(a.families) || a.families[desc.Upload].Flags&hal.QueueGraphics == 0 {
		return nil, errors.Wrapf(hal.ErrInitFailed, "vulkan: open device: upload family %d cannot run graphics barriers", desc.Upload)
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(desc.Families))
	for _, family := range desc.Families {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	var handle vk.Device
	ret := vk.CreateDevice(a.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(desc.Extensions)),
		PpEnabledExtensionNames: safeStrings(desc.Extensions),
		EnabledLayerCount:       uint32(len(a.instance.layers)),
		PpEnabledLayerNames:     safeStrings(a.instance.layers),
	}, nil, &handle)
	if err := newError(ret, "create device"); err != nil {
		return nil, err
	}

	d := &device{adapter: a, handle: handle, queues: make(map[uint32]*queue, len(desc.Families))}
	for _, family := range desc.Families {
		var q vk.Queue
		vk.GetDeviceQueue(handle, family, 0, &q)
		d.queues[family] = &queue{device: d, handle: q, family: family}
	}
	if d.upload = d.queues[desc.Upload]; d.upload == nil {
		vk.DestroyDevice(handle, nil)
		return nil, errors.Wrapf(hal.ErrInitFailed, "vulkan: open device: upload family %d is not opened", desc.Upload)
	}
	return d, nil
}

// findMemoryType returns the first memory type allowed by typeBits that has
// all of the wanted property flags.
func (a *adapter) findMemoryType(typeBits uint32, wanted vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < a.memory.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		mt := a.memory.MemoryTypes[i]
		mt.Deref()
		if mt.PropertyFlags&vk.MemoryPropertyFlags(wanted) == vk.MemoryPropertyFlags(wanted) {
			return i, true
		}
	}
	return 0, false
}
