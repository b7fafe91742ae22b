package diesel

import (
	"log/slog"

	"github.com/andewx/diesel/hal"
)

// ChooseSwapSurfaceFormat returns 8-bit BGRA sRGB with the non-linear sRGB
// color space when the surface offers it, and the first format otherwise.
// It returns the zero format for an empty list.
func ChooseSwapSurfaceFormat(formats []hal.SurfaceFormat) hal.SurfaceFormat {
	for _, f := range formats {
		if f.Format == hal.FormatB8G8R8A8SRGB && f.ColorSpace == hal.ColorSpaceSRGBNonlinear {
			return f
		}
	}
	if len(formats) == 0 {
		return hal.SurfaceFormat{}
	}
	return formats[0]
}

// ChooseSwapPresentMode returns mailbox when vsync is off and mailbox is
// available, and FIFO otherwise.
func ChooseSwapPresentMode(modes []hal.PresentMode, vsync bool) hal.PresentMode {
	if !vsync {
		for _, m := range modes {
			if m == hal.PresentModeMailbox {
				return m
			}
		}
	}
	return hal.PresentModeFIFO
}

// ChooseSwapExtent returns the surface's current extent when it is
// defined. Otherwise the window size is clamped into the surface limits.
func ChooseSwapExtent(caps hal.SurfaceCapabilities, width, height int) hal.Extent2D {
	if caps.CurrentExtent.Width != hal.UndefinedExtent {
		return caps.CurrentExtent
	}
	return hal.Extent2D{
		Width:  clamp(toU32(width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(toU32(height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum, capped by the
// maximum when the surface has one.
func ChooseImageCount(caps hal.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// DepthFormatCandidates are the depth formats tried, most preferred first.
var DepthFormatCandidates = []hal.Format{
	hal.FormatD32Float,
	hal.FormatD32FloatS8Uint,
	hal.FormatD24UnormS8Uint,
}

// FormatQuery returns the properties of a format on a device.
type FormatQuery func(hal.Format) hal.FormatProperties

// FindSupportedFormat returns the first candidate supporting features with
// the given tiling. No match is a KindFatal error.
func FindSupportedFormat(candidates []hal.Format, tiling hal.ImageTiling, features hal.FormatFeatures, query FormatQuery) (hal.Format, error) {
	for _, f := range candidates {
		if query(f).Features(tiling).Has(features) {
			return f, nil
		}
	}
	return hal.FormatUndefined, errorf("find supported format", KindFatal, "none of %d candidate formats is supported", len(candidates))
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toU32(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// SwapChain owns the presentable images of a window, one view per image,
// and the depth attachment shared by every frame. It is rebuilt wholesale
// when the window changes; nothing is patched in place.
type SwapChain struct {
	device  *RenderDevice
	window  hal.Window
	surface hal.Surface
	// ownSurface is set when the surface was created for this swap chain
	// rather than borrowed from the context.
	ownSurface bool
	vsync      bool

	native      hal.Swapchain
	views       []hal.ImageView
	depth       hal.Image
	depthFormat hal.Format
	format      hal.SurfaceFormat
	presentMode hal.PresentMode
	extent      hal.Extent2D

	generation    uint64
	needsRecreate bool
	logger        *slog.Logger
}

// NewSwapChain builds a swap chain for window on device.
func NewSwapChain(device *RenderDevice, window hal.Window, vsync bool) (*SwapChain, error) {
	const op = "new swap chain"
	if window == nil {
		return nil, contract(op, "nil window")
	}
	if device.present == nil {
		return nil, contract(op, "device was created without a present queue")
	}
	sc := &SwapChain{device: device, window: window, vsync: vsync, logger: device.logger}
	sc.surface = device.ctx.Surface()
	if window != device.ctx.Window() {
		s, err := device.ctx.Instance().CreateSurface(window)
		if err != nil {
			return nil, newError(op, KindFatal, err)
		}
		sc.surface = s
		sc.ownSurface = true
	}
	if err := sc.build(); err != nil {
		if sc.ownSurface {
			sc.surface.Destroy()
		}
		return nil, err
	}
	return sc, nil
}

// build creates the native swap chain, its views and the depth image,
// passing any current native swap chain to the backend for reuse. On
// success the previous objects are destroyed.
func (sc *SwapChain) build() error {
	const op = "build swap chain"
	d := sc.device
	caps, err := d.adapter.SurfaceCapabilities(sc.surface)
	if err != nil {
		return backendError(op, err)
	}
	formats, err := d.adapter.SurfaceFormats(sc.surface)
	if err != nil {
		return backendError(op, err)
	}
	modes, err := d.adapter.PresentModes(sc.surface)
	if err != nil {
		return backendError(op, err)
	}
	if len(formats) == 0 || len(modes) == 0 {
		return errorf(op, KindUnsupported, "surface offers %d formats and %d present modes", len(formats), len(modes))
	}

	w, h := sc.window.GetFramebufferSize()
	extent := ChooseSwapExtent(caps, w, h)
	if extent.IsZero() {
		return errorf(op, KindOutOfDate, "window is %dx%d", w, h)
	}
	format := ChooseSwapSurfaceFormat(formats)
	mode := ChooseSwapPresentMode(modes, sc.vsync)
	depthFormat, err := FindSupportedFormat(DepthFormatCandidates, hal.TilingOptimal,
		hal.FeatureDepthStencilAttachment, d.adapter.FormatProperties)
	if err != nil {
		return err
	}

	desc := hal.SwapchainDescriptor{
		ImageCount:    ChooseImageCount(caps),
		Format:        format,
		Extent:        extent,
		PresentMode:   mode,
		QueueFamilies: []uint32{d.families.Graphics.Value(), d.families.Present.Value()},
	}
	native, err := d.device.NewSwapchain(sc.surface, desc, sc.native)
	if err != nil {
		return backendError(op, err)
	}
	views := native.Views()
	if len(views) == 0 {
		native.Destroy()
		return errorf(op, KindFatal, "swap chain has no images")
	}
	depth, err := d.device.NewDepthImage(depthFormat, extent)
	if err != nil {
		native.Destroy()
		return backendError(op, err)
	}

	sc.release()
	sc.native = native
	sc.views = views
	sc.depth = depth
	sc.depthFormat = depthFormat
	sc.format = format
	sc.presentMode = mode
	sc.extent = extent
	sc.needsRecreate = false
	sc.generation++
	sc.logger.Info("swap chain built", "generation", sc.generation, "images", len(views),
		"width", extent.Width, "height", extent.Height, "presentMode", mode.String())
	return nil
}

func (sc *SwapChain) release() {
	if sc.depth != nil {
		sc.depth.Destroy()
		sc.depth = nil
	}
	if sc.native != nil {
		sc.native.Destroy()
		sc.native = nil
	}
	sc.views = nil
}

// Recreate waits for the device to go idle and rebuilds the swap chain. A
// minimized window yields a KindOutOfDate error and leaves the swap chain
// flagged, so the caller retries on a later frame.
func (sc *SwapChain) Recreate() error {
	if sc.native == nil {
		return contract("recreate swap chain", "swap chain is destroyed")
	}
	sc.needsRecreate = true
	if err := sc.device.WaitForIdle(); err != nil {
		return err
	}
	return sc.build()
}

// AcquireNextImage asks for the next presentable image and stores its index
// in cb. The image-available semaphore of cb is signaled once the image
// can be written. A suboptimal image is used and the swap chain is flagged
// for rebuild; an out of date swap chain returns KindOutOfDate.
func (sc *SwapChain) AcquireNextImage(cb *CommandBuffer) error {
	const op = "acquire next image"
	if sc.native == nil {
		return contract(op, "swap chain is destroyed")
	}
	if cb.state != StateIdle {
		return contract(op, "command buffer is %s, want %s", cb.state, StateIdle)
	}
	if cb.acquired {
		return contract(op, "command buffer already holds image %d", cb.image)
	}
	index, err := sc.native.AcquireNextImage(hal.WaitForever, cb.imageAvailable)
	switch KindOf(err) {
	case KindNone:
	case KindSuboptimal:
		sc.needsRecreate = true
		sc.logger.Debug("suboptimal swap chain image acquired", "image", index)
	case KindOutOfDate:
		sc.needsRecreate = true
		return backendError(op, err)
	default:
		return backendError(op, err)
	}
	cb.image = index
	cb.acquired = true
	cb.swapChain = sc
	cb.generation = sc.generation
	return nil
}

// Invalidate flags the swap chain for rebuild.
func (sc *SwapChain) Invalidate() { sc.needsRecreate = true }

func (sc *SwapChain) NeedsRecreate() bool { return sc.needsRecreate }

// SetVSync changes the present mode preference. It takes effect at the next
// rebuild, which it requests.
func (sc *SwapChain) SetVSync(vsync bool) {
	if sc.vsync != vsync {
		sc.vsync = vsync
		sc.needsRecreate = true
	}
}

func (sc *SwapChain) VSync() bool { return sc.vsync }

// Generation increases with every rebuild.
func (sc *SwapChain) Generation() uint64 { return sc.generation }

func (sc *SwapChain) Format() hal.SurfaceFormat { return sc.format }

func (sc *SwapChain) PresentMode() hal.PresentMode { return sc.presentMode }

func (sc *SwapChain) Extent() hal.Extent2D { return sc.extent }

func (sc *SwapChain) ImageCount() int { return len(sc.views) }

func (sc *SwapChain) Views() []hal.ImageView { return sc.views }

func (sc *SwapChain) DepthFormat() hal.Format { return sc.depthFormat }

func (sc *SwapChain) DepthImage() hal.Image { return sc.depth }

func (sc *SwapChain) Window() hal.Window { return sc.window }

// Destroy releases the swap chain. The device must be idle.
func (sc *SwapChain) Destroy() {
	sc.release()
	if sc.ownSurface && sc.surface != nil {
		sc.surface.Destroy()
		sc.surface = nil
	}
}
