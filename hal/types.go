package hal

import "math"

// DeviceType classifies a physical device.
type DeviceType uint8

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

// IsGPU reports whether the type is one of the GPU kinds.
func (t DeviceType) IsGPU() bool {
	return t == DeviceTypeIntegratedGPU || t == DeviceTypeDiscreteGPU || t == DeviceTypeVirtualGPU
}

// DeviceProperties is an immutable snapshot of a physical device, taken
// once while devices are enumerated.
type DeviceProperties struct {
	VendorID           uint32
	DeviceID           uint32
	Type               DeviceType
	Name               string
	HeapSizes          []uint64
	GeometryShader     bool
	TessellationShader bool
}

// QueueFlags describes the capabilities of a queue family.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

func (f QueueFlags) Has(flags QueueFlags) bool {
	return f&flags == flags
}

type QueueFamily struct {
	Flags QueueFlags
	Count uint32
}

// Format is a pixel format. The values are backend independent; each
// backend converts them to its native enumeration.
type Format uint32

const (
	FormatUndefined Format = iota
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8SRGB
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8SRGB
	FormatA2B10G10R10Unorm
	FormatR16G16B16A16Float
	FormatD16Unorm
	FormatD32Float
	FormatD32FloatS8Uint
	FormatD24UnormS8Uint
)

// IsDepth reports whether the format has a depth component.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Float, FormatD32FloatS8Uint, FormatD24UnormS8Uint:
		return true
	}
	return false
}

// HasStencil reports whether the format has a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD32FloatS8Uint || f == FormatD24UnormS8Uint
}

type ColorSpace uint32

const (
	ColorSpaceSRGBNonlinear ColorSpace = iota
	ColorSpaceExtendedSRGBLinear
	ColorSpaceHDR10
	ColorSpaceOther
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode uint32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFIFO
	PresentModeFIFORelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFIFO:
		return "fifo"
	case PresentModeFIFORelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

// UndefinedExtent is the width a surface reports as its current extent when
// the swapchain is allowed to pick the size.
const UndefinedExtent = math.MaxUint32

type Extent2D struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero.
func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type Offset2D struct {
	X int32
	Y int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// SurfaceCapabilities holds the limits a surface imposes on a swapchain.
// A MaxImageCount of zero means there is no upper bound.
type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type ImageTiling uint8

const (
	TilingOptimal ImageTiling = iota
	TilingLinear
)

type FormatFeatures uint32

const (
	FeatureSampledImage FormatFeatures = 1 << iota
	FeatureColorAttachment
	FeatureDepthStencilAttachment
	FeatureTransferDst
)

func (f FormatFeatures) Has(features FormatFeatures) bool {
	return f&features == features
}

// FormatProperties lists the features a format supports per tiling mode.
type FormatProperties struct {
	Linear  FormatFeatures
	Optimal FormatFeatures
}

// Features returns the supported features for the given tiling.
func (p FormatProperties) Features(tiling ImageTiling) FormatFeatures {
	if tiling == TilingLinear {
		return p.Linear
	}
	return p.Optimal
}

// PipelineStage names the stage at which a queue operation waits.
type PipelineStage uint32

const (
	StageTopOfPipe PipelineStage = iota
	StageVertexShader
	StageEarlyFragmentTests
	StageColorAttachmentOutput
	StageBottomOfPipe
)

// DeviceDescriptor configures logical device creation.
type DeviceDescriptor struct {
	// Families lists distinct queue family indices; one queue is created
	// per family.
	Families   []uint32
	Extensions []string
	// Upload is the family that texture uploads and their layout
	// transitions run on. It must be listed in Families and support
	// graphics.
	Upload uint32
}

// SwapchainDescriptor carries the negotiated swapchain parameters.
type SwapchainDescriptor struct {
	ImageCount  uint32
	Format      SurfaceFormat
	Extent      Extent2D
	PresentMode PresentMode
	// QueueFamilies holds the graphics and present family. When they differ
	// the images are shared concurrently between both.
	QueueFamilies []uint32
}

type RenderPassDescriptor struct {
	Color Format
	Depth Format
}

// ClearValues are applied when a render pass begins.
type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

type BufferUsage uint8

const (
	BufferVertex BufferUsage = iota
	BufferIndex
	BufferUniform
	BufferStaging
)

type IndexType uint8

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

type TextureDescriptor struct {
	Width  uint32
	Height uint32
	Format Format
}

// VertexFormat is the format of a single vertex attribute.
type VertexFormat uint8

const (
	VertexFloat32 VertexFormat = iota
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
	VertexSint32
	VertexSint32x2
	VertexSint32x3
	VertexSint32x4
	VertexUint8x4
	VertexUnorm8x4
)

type VertexAttribute struct {
	Location uint32
	Offset   uint32
	Format   VertexFormat
}

// PipelineDescriptor describes a graphics pipeline. Viewport and scissor
// are always dynamic state.
type PipelineDescriptor struct {
	Vertex     ShaderModule
	Fragment   ShaderModule
	Stride     uint32
	Attributes []VertexAttribute
	RenderPass RenderPass
	// Frames is the number of descriptor sets allocated, one per frame in
	// flight.
	Frames           int
	PushConstantSize uint32
	DepthTest        bool
	Blend            bool
}

// Descriptor bindings every pipeline exposes.
const (
	BindingUniforms uint32 = 0
	BindingTexture  uint32 = 1
)

// DeviceExtensionSwapchain is required by any device that presents.
const DeviceExtensionSwapchain = "VK_KHR_swapchain"
