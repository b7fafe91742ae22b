package diesel

import (
	"context"
	"log/slog"

	"github.com/andewx/diesel/hal"
	"golang.org/x/sync/semaphore"
)

// RenderDeviceProperties is the snapshot of a physical device handed to a
// DeviceScoreFunc.
type RenderDeviceProperties = hal.DeviceProperties

// DeviceScoreFunc rates a device. The highest score wins and zero rejects
// the device.
type DeviceScoreFunc func(RenderDeviceProperties) uint64

// DiscreteBonus is added to the default score of discrete GPUs. It is
// larger than any heap-derived weight.
const DiscreteBonus uint64 = 1 << 40

// DefaultDeviceScore rejects non-GPU devices and prefers discrete GPUs,
// then the one with the most memory.
func DefaultDeviceScore(p RenderDeviceProperties) uint64 {
	if !p.Type.IsGPU() {
		return 0
	}
	score := uint64(1)
	if p.Type == hal.DeviceTypeDiscreteGPU {
		score += DiscreteBonus
	}
	for _, heap := range p.HeapSizes {
		score += heap >> 20
	}
	return score
}

// SelectDevice returns the index of the highest scoring device. Ties go to
// the first enumerated device. It returns false when every device scores
// zero.
func SelectDevice(props []RenderDeviceProperties, score DeviceScoreFunc) (int, bool) {
	best, bestScore := -1, uint64(0)
	for i, p := range props {
		if s := score(p); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, best >= 0
}

// RenderDevice is the selected GPU: its logical device, queues and the
// command pool every CommandBuffer is allocated from.
type RenderDevice struct {
	ctx      *Context
	adapter  hal.Adapter
	device   hal.Device
	props    RenderDeviceProperties
	families QueueFamilyIndices
	graphics hal.Queue
	present  hal.Queue
	pool     hal.CommandPool
	// guard serializes queue submission and presentation.
	guard     *semaphore.Weighted
	logger    *slog.Logger
	destroyed bool
}

type candidate struct {
	adapter    hal.Adapter
	families   QueueFamilyIndices
	extensions deviceExtensions
}

// CreateRenderDevice picks the best device of the context's instance under
// score and opens it. A nil score uses DefaultDeviceScore. When the context
// presents, only devices with a present queue and swapchain support for its
// surface are eligible. Finding no eligible device is a KindFatal error.
func CreateRenderDevice(ctx *Context, score DeviceScoreFunc) (*RenderDevice, error) {
	const op = "create render device"
	if ctx == nil || ctx.Instance() == nil {
		return nil, contract(op, "context is not initialized")
	}
	if score == nil {
		score = DefaultDeviceScore
	}
	logger := ctx.Logger()

	adapters, err := ctx.Instance().Adapters()
	if err != nil {
		return nil, newError(op, KindFatal, err)
	}
	if len(adapters) == 0 {
		return nil, errorf(op, KindFatal, "no devices found")
	}

	surface := ctx.Surface()
	var (
		eligible []candidate
		props    []RenderDeviceProperties
	)
	for _, a := range adapters {
		p := a.Properties()
		families, err := FindQueueFamilies(a, surface)
		if err != nil {
			return nil, err
		}
		extensions, err := newDeviceExtensions(a, surface != nil)
		if err != nil {
			return nil, newError(op, KindFatal, err)
		}
		if reason := unsuitable(families, extensions, surface != nil); reason != "" {
			logger.Debug("device skipped", "name", p.Name, "reason", reason)
			continue
		}
		eligible = append(eligible, candidate{adapter: a, families: families, extensions: extensions})
		props = append(props, p)
	}
	if len(eligible) == 0 {
		return nil, errorf(op, KindFatal, "none of %d devices meets the requirements", len(adapters))
	}
	i, ok := SelectDevice(props, score)
	if !ok {
		return nil, errorf(op, KindFatal, "no device scored above zero")
	}
	chosen := eligible[i]

	desc := hal.DeviceDescriptor{
		Families:   chosen.families.Distinct(),
		Extensions: chosen.extensions.Enabled(),
		Upload:     chosen.families.Graphics.Value(),
	}
	dev, err := chosen.adapter.Open(desc)
	if err != nil {
		return nil, newError(op, KindFatal, err)
	}
	d := &RenderDevice{
		ctx:      ctx,
		adapter:  chosen.adapter,
		device:   dev,
		props:    props[i],
		families: chosen.families,
		guard:    semaphore.NewWeighted(1),
		logger:   logger,
	}
	d.graphics = dev.Queue(chosen.families.Graphics.Value())
	if v, ok := chosen.families.Present.Get(); ok {
		d.present = dev.Queue(v)
	}
	d.pool, err = dev.NewCommandPool(chosen.families.Graphics.Value())
	if err != nil {
		dev.Destroy()
		return nil, newError(op, KindFatal, err)
	}
	logger.Info("render device selected", "name", d.props.Name, "type", d.props.Type.String(),
		"score", score(d.props), "graphics", chosen.families.Graphics.Value(),
		"present", chosen.families.Present.Value(), "transfer", chosen.families.Transfer.Value())
	return d, nil
}

// unsuitable returns why a device cannot be used, or "" when it can.
func unsuitable(families QueueFamilyIndices, extensions deviceExtensions, presenting bool) string {
	if !families.Complete(presenting) {
		return "missing queue family"
	}
	if ok, missing := extensions.HasRequired(); !ok {
		return "missing extensions " + joinNames(missing)
	}
	return ""
}

func (d *RenderDevice) Properties() RenderDeviceProperties { return d.props }

func (d *RenderDevice) QueueFamilies() QueueFamilyIndices { return d.families }

func (d *RenderDevice) Context() *Context { return d.ctx }

func (d *RenderDevice) Logger() *slog.Logger { return d.logger }

// ScreenSupported reports whether the device can present to w: it has a
// present family for w's surface and the surface offers at least one
// format and present mode.
func (d *RenderDevice) ScreenSupported(w hal.Window) (bool, error) {
	const op = "screen supported"
	if w == nil {
		return false, contract(op, "nil window")
	}
	surface := d.ctx.Surface()
	if surface == nil || w != d.ctx.Window() {
		s, err := d.ctx.Instance().CreateSurface(w)
		if err != nil {
			return false, backendError(op, err)
		}
		defer s.Destroy()
		surface = s
	}
	families, err := FindQueueFamilies(d.adapter, surface)
	if err != nil {
		return false, err
	}
	if !families.Present.IsSet() {
		return false, nil
	}
	formats, err := d.adapter.SurfaceFormats(surface)
	if err != nil {
		return false, backendError(op, err)
	}
	modes, err := d.adapter.PresentModes(surface)
	if err != nil {
		return false, backendError(op, err)
	}
	return len(formats) > 0 && len(modes) > 0, nil
}

// WaitForIdle blocks until all queued GPU work on the device completes.
func (d *RenderDevice) WaitForIdle() error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.unlock()
	return backendError("wait for idle", d.device.WaitIdle())
}

func (d *RenderDevice) lock() error {
	if err := d.guard.Acquire(context.Background(), 1); err != nil {
		return newError("queue guard", KindFatal, err)
	}
	return nil
}

func (d *RenderDevice) unlock() { d.guard.Release(1) }

// submit runs fn while holding the queue guard.
func (d *RenderDevice) submit(fn func() error) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.unlock()
	return fn()
}

// Destroy waits for the device to go idle and destroys it. Everything
// built on the device must be destroyed first.
func (d *RenderDevice) Destroy() {
	if d.destroyed {
		return
	}
	if err := d.WaitForIdle(); err != nil {
		d.logger.Warn("wait for idle before device teardown failed", "err", err)
	}
	d.pool.Destroy()
	d.device.Destroy()
	d.destroyed = true
}
