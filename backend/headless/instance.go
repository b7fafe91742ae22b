package headless

import (
	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
)

type instance struct {
	sys       *System
	destroyed bool
}

func (i *instance) Adapters() ([]hal.Adapter, error) {
	s := i.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	adapters := make([]hal.Adapter, len(s.adapters))
	for n := range s.adapters {
		adapters[n] = &adapter{sys: s, cfg: s.adapters[n]}
	}
	return adapters, nil
}

func (i *instance) CreateSurface(w hal.Window) (hal.Surface, error) {
	if w == nil {
		return nil, errors.Wrap(hal.ErrInitFailed, "headless: create surface: nil window")
	}
	if _, err := w.CreateWindowSurface(i, nil); err != nil {
		return nil, errors.Wrap(err, "headless: create surface")
	}
	i.sys.mu.Lock()
	defer i.sys.mu.Unlock()
	return &surface{sys: i.sys, id: i.sys.newID(), window: w}, nil
}

func (i *instance) Destroy() {
	s := i.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.destroyed {
		s.violate("instance destroyed twice")
		return
	}
	i.destroyed = true
	s.live--
}

type surface struct {
	sys       *System
	id        uint64
	window    hal.Window
	destroyed bool
}

func (sf *surface) Destroy() {
	s := sf.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if sf.destroyed {
		s.violate("surface %d destroyed twice", sf.id)
		return
	}
	sf.destroyed = true
	s.live--
}

func (sf *surface) size() hal.Extent2D {
	w, h := sf.window.GetFramebufferSize()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return hal.Extent2D{Width: uint32(w), Height: uint32(h)}
}

type adapter struct {
	sys *System
	cfg AdapterConfig
}

func (a *adapter) Properties() hal.DeviceProperties {
	props := a.cfg.Properties
	props.HeapSizes = append([]uint64(nil), props.HeapSizes...)
	return props
}

func (a *adapter) QueueFamilies() []hal.QueueFamily {
	return append([]hal.QueueFamily(nil), a.cfg.QueueFamilies...)
}

func (a *adapter) SurfaceSupport(family uint32, s hal.Surface) (bool, error) {
	if _, ok := s.(*surface); !ok {
		return false, errors.Wrap(hal.ErrSurfaceLost, "headless: surface support: foreign surface")
	}
	for _, f := range a.cfg.PresentFamilies {
		if f == family {
			return true, nil
		}
	}
	return false, nil
}

func (a *adapter) Extensions() ([]string, error) {
	return append([]string(nil), a.cfg.Extensions...), nil
}

func (a *adapter) FormatProperties(f hal.Format) hal.FormatProperties {
	if f.IsDepth() {
		for _, d := range a.cfg.DepthFormats {
			if d == f {
				return hal.FormatProperties{Optimal: hal.FeatureDepthStencilAttachment | hal.FeatureSampledImage}
			}
		}
		return hal.FormatProperties{}
	}
	if f == hal.FormatUndefined {
		return hal.FormatProperties{}
	}
	all := hal.FeatureSampledImage | hal.FeatureColorAttachment | hal.FeatureTransferDst
	return hal.FormatProperties{Linear: hal.FeatureSampledImage | hal.FeatureTransferDst, Optimal: all}
}

func (a *adapter) SurfaceCapabilities(s hal.Surface) (hal.SurfaceCapabilities, error) {
	sf, ok := s.(*surface)
	if !ok {
		return hal.SurfaceCapabilities{}, errors.Wrap(hal.ErrSurfaceLost, "headless: surface capabilities: foreign surface")
	}
	caps := a.cfg.Capabilities
	switch {
	case a.cfg.UndefinedExtent:
		caps.CurrentExtent = hal.Extent2D{Width: hal.UndefinedExtent, Height: hal.UndefinedExtent}
	case caps.CurrentExtent == (hal.Extent2D{}):
		caps.CurrentExtent = sf.size()
	}
	return caps, nil
}

func (a *adapter) SurfaceFormats(s hal.Surface) ([]hal.SurfaceFormat, error) {
	if _, ok := s.(*surface); !ok {
		return nil, errors.Wrap(hal.ErrSurfaceLost, "headless: surface formats: foreign surface")
	}
	return append([]hal.SurfaceFormat(nil), a.cfg.SurfaceFormats...), nil
}

func (a *adapter) PresentModes(s hal.Surface) ([]hal.PresentMode, error) {
	if _, ok := s.(*surface); !ok {
		return nil, errors.Wrap(hal.ErrSurfaceLost, "headless: present modes: foreign surface")
	}
	return append([]hal.PresentMode(nil), a.cfg.PresentModes...), nil
}

func (a *adapter) Open(desc hal.DeviceDescriptor) (hal.Device, error) {
	s := a.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(desc.Families) == 0 {
		return nil, errors.Wrap(hal.ErrInitFailed, "headless: open device: no queue families requested")
	}
	seen := make(map[uint32]bool, len(desc.Families))
	for _, f := range desc.Families {
		if int(f) >= len(a.cfg.QueueFamilies) {
			return nil, errors.Wrapf(hal.ErrInitFailed, "headless: open device: queue family %d does not exist", f)
		}
		if seen[f] {
			return nil, s.violate("queue family %d requested twice", f)
		}
		seen[f] = true
	}
	if !seen[desc.Upload] {
		return nil, s.violate("upload family %d is not opened", desc.Upload)
	}
	if a.cfg.QueueFamilies[desc.Upload].Flags&hal.QueueGraphics == 0 {
		return nil, s.violate("upload family %d cannot run graphics barriers", desc.Upload)
	}
	for _, ext := range desc.Extensions {
		if !contains(a.cfg.Extensions, ext) {
			return nil, errors.Wrapf(hal.ErrUnsupported, "headless: open device: extension %s", ext)
		}
	}
	d := &device{sys: s, adapter: a, id: s.newID(), queues: make(map[uint32]*queue), upload: desc.Upload}
	for _, f := range desc.Families {
		d.queues[f] = &queue{sys: s, dev: d, family: f}
	}
	return d, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
