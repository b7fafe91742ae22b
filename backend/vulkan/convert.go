package vulkan

import (
	"github.com/andewx/diesel/hal"
	vk "github.com/vulkan-go/vulkan"
)

var formats = map[hal.Format]vk.Format{
	hal.FormatUndefined:         vk.FormatUndefined,
	hal.FormatR8G8B8A8Unorm:     vk.FormatR8g8b8a8Unorm,
	hal.FormatR8G8B8A8SRGB:      vk.FormatR8g8b8a8Srgb,
	hal.FormatB8G8R8A8Unorm:     vk.FormatB8g8r8a8Unorm,
	hal.FormatB8G8R8A8SRGB:      vk.FormatB8g8r8a8Srgb,
	hal.FormatA2B10G10R10Unorm:  vk.FormatA2b10g10r10UnormPack32,
	hal.FormatR16G16B16A16Float: vk.FormatR16g16b16a16Sfloat,
	hal.FormatD16Unorm:          vk.FormatD16Unorm,
	hal.FormatD32Float:          vk.FormatD32Sfloat,
	hal.FormatD32FloatS8Uint:    vk.FormatD32SfloatS8Uint,
	hal.FormatD24UnormS8Uint:    vk.FormatD24UnormS8Uint,
}

func toVkFormat(f hal.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// fromVkFormat maps formats the core does not know to FormatUndefined.
func fromVkFormat(f vk.Format) hal.Format {
	for k, v := range formats {
		if v == f {
			return k
		}
	}
	return hal.FormatUndefined
}

func toVkColorSpace(c hal.ColorSpace) vk.ColorSpace {
	switch c {
	case hal.ColorSpaceExtendedSRGBLinear:
		return vk.ColorSpaceExtendedSrgbLinear
	case hal.ColorSpaceHDR10:
		return vk.ColorSpaceHdr10St2084
	}
	return vk.ColorSpaceSrgbNonlinear
}

func fromVkColorSpace(c vk.ColorSpace) hal.ColorSpace {
	switch c {
	case vk.ColorSpaceSrgbNonlinear:
		return hal.ColorSpaceSRGBNonlinear
	case vk.ColorSpaceExtendedSrgbLinear:
		return hal.ColorSpaceExtendedSRGBLinear
	case vk.ColorSpaceHdr10St2084:
		return hal.ColorSpaceHDR10
	}
	return hal.ColorSpaceOther
}

func toVkPresentMode(m hal.PresentMode) vk.PresentMode {
	switch m {
	case hal.PresentModeImmediate:
		return vk.PresentModeImmediate
	case hal.PresentModeMailbox:
		return vk.PresentModeMailbox
	case hal.PresentModeFIFORelaxed:
		return vk.PresentModeFifoRelaxed
	}
	return vk.PresentModeFifo
}

// fromVkPresentMode reports false for modes the core never selects.
func fromVkPresentMode(m vk.PresentMode) (hal.PresentMode, bool) {
	switch m {
	case vk.PresentModeImmediate:
		return hal.PresentModeImmediate, true
	case vk.PresentModeMailbox:
		return hal.PresentModeMailbox, true
	case vk.PresentModeFifo:
		return hal.PresentModeFIFO, true
	case vk.PresentModeFifoRelaxed:
		return hal.PresentModeFIFORelaxed, true
	}
	return 0, false
}

func fromVkDeviceType(t vk.PhysicalDeviceType) hal.DeviceType {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return hal.DeviceTypeIntegratedGPU
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return hal.DeviceTypeDiscreteGPU
	case vk.PhysicalDeviceTypeVirtualGpu:
		return hal.DeviceTypeVirtualGPU
	case vk.PhysicalDeviceTypeCpu:
		return hal.DeviceTypeCPU
	}
	return hal.DeviceTypeOther
}

func fromVkQueueFlags(f vk.QueueFlags) hal.QueueFlags {
	var out hal.QueueFlags
	if f&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
		out |= hal.QueueGraphics
	}
	if f&vk.QueueFlags(vk.QueueComputeBit) != 0 {
		out |= hal.QueueCompute
	}
	if f&vk.QueueFlags(vk.QueueTransferBit) != 0 {
		out |= hal.QueueTransfer
	}
	return out
}

func fromVkFormatFeatures(f vk.FormatFeatureFlags) hal.FormatFeatures {
	var out hal.FormatFeatures
	if f&vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit) != 0 {
		out |= hal.FeatureSampledImage
	}
	if f&vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit) != 0 {
		out |= hal.FeatureColorAttachment
	}
	if f&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0 {
		out |= hal.FeatureDepthStencilAttachment
	}
	if f&vk.FormatFeatureFlags(vk.FormatFeatureTransferDstBit) != 0 {
		out |= hal.FeatureTransferDst
	}
	return out
}

func toVkStage(s hal.PipelineStage) vk.PipelineStageFlags {
	switch s {
	case hal.StageTopOfPipe:
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	case hal.StageVertexShader:
		return vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)
	case hal.StageEarlyFragmentTests:
		return vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
	case hal.StageBottomOfPipe:
		return vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
}

func toVkVertexFormat(f hal.VertexFormat) vk.Format {
	switch f {
	case hal.VertexFloat32:
		return vk.FormatR32Sfloat
	case hal.VertexFloat32x2:
		return vk.FormatR32g32Sfloat
	case hal.VertexFloat32x3:
		return vk.FormatR32g32b32Sfloat
	case hal.VertexFloat32x4:
		return vk.FormatR32g32b32a32Sfloat
	case hal.VertexSint32:
		return vk.FormatR32Sint
	case hal.VertexSint32x2:
		return vk.FormatR32g32Sint
	case hal.VertexSint32x3:
		return vk.FormatR32g32b32Sint
	case hal.VertexSint32x4:
		return vk.FormatR32g32b32a32Sint
	case hal.VertexUint8x4:
		return vk.FormatR8g8b8a8Uint
	case hal.VertexUnorm8x4:
		return vk.FormatR8g8b8a8Unorm
	}
	return vk.FormatUndefined
}

func toVkExtent(e hal.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromVkExtent(e vk.Extent2D) hal.Extent2D {
	e.Deref()
	return hal.Extent2D{Width: e.Width, Height: e.Height}
}

func toVkRect(r hal.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: toVkExtent(r.Extent),
	}
}
