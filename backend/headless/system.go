// Package headless implements a simulated GPU behind the hal contract.
//
// The simulation keeps an in-order queue of submissions that complete when
// something waits for them. Every synchronization rule a real driver leaves
// undefined is checked instead: waiting on a semaphore before it is
// signaled, signaling a binary semaphore twice, resetting a fence that a
// pending submission will signal, re-recording a pending command buffer,
// destroying objects still referenced by the GPU. Each broken rule is
// recorded as a violation and, where the call can fail, returned as
// hal.ErrValidation.
package headless

import (
	"fmt"
	"sync"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
)

// AdapterConfig describes one simulated physical device.
type AdapterConfig struct {
	Properties    hal.DeviceProperties
	QueueFamilies []hal.QueueFamily
	// PresentFamilies lists the queue families that can present.
	PresentFamilies []uint32
	Extensions      []string
	// DepthFormats lists the formats usable as optimal-tiling depth
	// attachments.
	DepthFormats []hal.Format
	// Capabilities are reported for every surface. A zero CurrentExtent
	// follows the window size.
	Capabilities hal.SurfaceCapabilities
	// UndefinedExtent makes surfaces report hal.UndefinedExtent as their
	// current extent so the swapchain picks its size.
	UndefinedExtent bool
	SurfaceFormats  []hal.SurfaceFormat
	PresentModes    []hal.PresentMode
}

// DefaultAdapter returns a discrete GPU with one queue family that does
// graphics, transfer and present.
func DefaultAdapter() AdapterConfig {
	return AdapterConfig{
		Properties: hal.DeviceProperties{
			VendorID:           0x10de,
			DeviceID:           0x2204,
			Type:               hal.DeviceTypeDiscreteGPU,
			Name:               "Headless Discrete GPU",
			HeapSizes:          []uint64{8 << 30, 16 << 30},
			GeometryShader:     true,
			TessellationShader: true,
		},
		QueueFamilies: []hal.QueueFamily{
			{Flags: hal.QueueGraphics | hal.QueueCompute | hal.QueueTransfer, Count: 16},
		},
		PresentFamilies: []uint32{0},
		Extensions:      []string{hal.DeviceExtensionSwapchain},
		DepthFormats:    []hal.Format{hal.FormatD32Float, hal.FormatD24UnormS8Uint},
		Capabilities: hal.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			MinImageExtent: hal.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: hal.Extent2D{Width: 16384, Height: 16384},
		},
		SurfaceFormats: []hal.SurfaceFormat{
			{Format: hal.FormatB8G8R8A8Unorm, ColorSpace: hal.ColorSpaceSRGBNonlinear},
			{Format: hal.FormatB8G8R8A8SRGB, ColorSpace: hal.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []hal.PresentMode{hal.PresentModeFIFO, hal.PresentModeMailbox, hal.PresentModeImmediate},
	}
}

// Stats counts what the simulated GPU has done.
type Stats struct {
	Submits    int
	Presents   int
	Acquires   int
	Completed  int
	FenceWaits int
	Timeouts   int
	// LastWaitStage is the wait stage of the most recent submission that
	// waited on a semaphore.
	LastWaitStage hal.PipelineStage
}

// System is a simulated machine: its adapters and the shared GPU timeline.
type System struct {
	mu         sync.Mutex
	adapters   []AdapterConfig
	pending    []*submission
	violations []string
	stats      Stats
	live       int
	nextID     uint64
	stalled    bool
	expired    bool
	suboptimal bool
}

// NewSystem creates a system exposing the given adapters in order.
func NewSystem(adapters ...AdapterConfig) *System {
	return &System{adapters: adapters}
}

// Instance returns a new hal.Instance on the system.
func (s *System) Instance() hal.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live++
	return &instance{sys: s}
}

// Stall makes the GPU slower than any bounded wait: fence waits with a
// finite timeout expire while waits without a limit still complete.
func (s *System) Stall(stalled bool) {
	s.mu.Lock()
	s.stalled = stalled
	s.mu.Unlock()
}

// Expire makes every swapchain report out of date until it is rebuilt.
func (s *System) Expire() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}

// SetSuboptimal makes acquire and present report suboptimal results.
func (s *System) SetSuboptimal(v bool) {
	s.mu.Lock()
	s.suboptimal = v
	s.mu.Unlock()
}

// Violations returns the rules broken so far.
func (s *System) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.violations...)
}

func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Live returns the number of objects created and not yet destroyed.
func (s *System) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Pending returns the number of submissions the GPU has not completed.
func (s *System) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush completes every pending submission, as if the GPU caught up.
func (s *System) Flush() {
	s.mu.Lock()
	s.completeAllLocked()
	s.mu.Unlock()
}

func (s *System) violate(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	s.violations = append(s.violations, msg)
	return errors.Wrap(hal.ErrValidation, msg)
}

func (s *System) newID() uint64 {
	s.nextID++
	s.live++
	return s.nextID
}

type submission struct {
	cmd    *commandBuffer
	signal *semaphore
	fence  *fence
	done   bool
}

// completeThroughLocked retires submissions in order up to and including
// sub.
func (s *System) completeThroughLocked(sub *submission) {
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.retireLocked(next)
		if next == sub {
			return
		}
	}
}

func (s *System) completeAllLocked() {
	for _, sub := range s.pending {
		s.retireLocked(sub)
	}
	s.pending = s.pending[:0]
}

func (s *System) retireLocked(sub *submission) {
	sub.done = true
	sub.cmd.pending = nil
	if sub.cmd.state == cmdPending {
		sub.cmd.state = cmdExecutable
	}
	if sub.fence != nil {
		sub.fence.signaled = true
		sub.fence.pending = nil
	}
	if sub.signal != nil && sub.signal.pendingSignal == sub {
		sub.signal.pendingSignal = nil
	}
	s.stats.Completed++
}
