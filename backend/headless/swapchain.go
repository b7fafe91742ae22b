package headless

import (
	"time"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
)

type swapchain struct {
	sys       *System
	id        uint64
	surface   *surface
	desc      hal.SwapchainDescriptor
	created   hal.Extent2D
	views     []hal.ImageView
	acquired  []bool
	next      uint32
	destroyed bool
}

// imageView identifies one swapchain or depth image.
type imageView struct {
	owner uint64
	index int
}

func (d *device) NewSwapchain(sf hal.Surface, desc hal.SwapchainDescriptor, old hal.Swapchain) (hal.Swapchain, error) {
	surf, ok := sf.(*surface)
	if !ok {
		return nil, errors.Wrap(hal.ErrSurfaceLost, "headless: swapchain: foreign surface")
	}
	caps, err := d.adapter.SurfaceCapabilities(surf)
	if err != nil {
		return nil, err
	}
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := d.adapter.cfg

	if desc.ImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && desc.ImageCount > caps.MaxImageCount) {
		return nil, s.violate("swapchain image count %d outside [%d, %d]", desc.ImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	e := desc.Extent
	if e.IsZero() {
		return nil, s.violate("swapchain extent %dx%d is empty", e.Width, e.Height)
	}
	if e.Width < caps.MinImageExtent.Width || e.Height < caps.MinImageExtent.Height ||
		e.Width > caps.MaxImageExtent.Width || e.Height > caps.MaxImageExtent.Height {
		return nil, s.violate("swapchain extent %dx%d outside surface limits", e.Width, e.Height)
	}
	formatOK := false
	for _, f := range cfg.SurfaceFormats {
		if f == desc.Format {
			formatOK = true
			break
		}
	}
	if !formatOK {
		return nil, s.violate("swapchain format %v is not supported by the surface", desc.Format)
	}
	modeOK := false
	for _, m := range cfg.PresentModes {
		if m == desc.PresentMode {
			modeOK = true
			break
		}
	}
	if !modeOK {
		return nil, s.violate("present mode %s is not supported by the surface", desc.PresentMode)
	}
	if o, ok := old.(*swapchain); ok && o.destroyed {
		return nil, s.violate("swapchain recreated from destroyed swapchain %d", o.id)
	}

	sc := &swapchain{
		sys:      s,
		id:       s.newID(),
		surface:  surf,
		desc:     desc,
		created:  surf.size(),
		acquired: make([]bool, desc.ImageCount),
	}
	sc.views = make([]hal.ImageView, desc.ImageCount)
	for i := range sc.views {
		sc.views[i] = imageView{owner: sc.id, index: i}
	}
	s.expired = false
	return sc, nil
}

// stale reports whether the window was resized since creation.
func (sc *swapchain) stale() bool {
	return sc.surface.size() != sc.created
}

func (sc *swapchain) Views() []hal.ImageView {
	return append([]hal.ImageView(nil), sc.views...)
}

func (sc *swapchain) AcquireNextImage(timeout time.Duration, signal hal.Semaphore) (uint32, error) {
	s := sc.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.destroyed {
		return 0, s.violate("acquire from destroyed swapchain %d", sc.id)
	}
	sem, ok := signal.(*semaphore)
	if !ok || sem == nil {
		return 0, s.violate("acquire without a semaphore")
	}
	if sem.signals > 0 {
		return 0, s.violate("acquire signals semaphore %d that already holds a signal", sem.id)
	}
	if s.expired || sc.stale() {
		return 0, errors.Wrap(hal.ErrOutOfDate, "headless: acquire")
	}
	n := uint32(len(sc.acquired))
	for i := uint32(0); i < n; i++ {
		idx := (sc.next + i) % n
		if sc.acquired[idx] {
			continue
		}
		sc.acquired[idx] = true
		sc.next = (idx + 1) % n
		sem.signals = 1
		s.stats.Acquires++
		if s.suboptimal {
			return idx, errors.Wrap(hal.ErrSuboptimal, "headless: acquire")
		}
		return idx, nil
	}
	s.stats.Timeouts++
	return 0, errors.Wrapf(hal.ErrTimeout, "headless: acquire: all %d images held", n)
}

func (sc *swapchain) Destroy() {
	s := sc.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.destroyed {
		s.violate("swapchain %d destroyed twice", sc.id)
		return
	}
	sc.destroyed = true
	s.live--
}
