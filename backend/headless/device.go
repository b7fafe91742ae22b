package headless

import (
	"time"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
)

type device struct {
	sys       *System
	adapter   *adapter
	id        uint64
	queues    map[uint32]*queue
	upload    uint32
	destroyed bool
}

func (d *device) Queue(family uint32) hal.Queue {
	q, ok := d.queues[family]
	if !ok {
		return nil
	}
	return q
}

func (d *device) NewCommandPool(family uint32) (hal.CommandPool, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := d.queues[family]; !ok {
		return nil, errors.Wrapf(hal.ErrInitFailed, "headless: command pool: family %d has no queue", family)
	}
	return &commandPool{sys: s, id: s.newID(), family: family}, nil
}

func (d *device) NewFence(signaled bool) (hal.Fence, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	return &fence{sys: s, id: s.newID(), signaled: signaled}, nil
}

func (d *device) NewSemaphore() (hal.Semaphore, error) {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	return &semaphore{sys: s, id: s.newID()}, nil
}

// WaitIdle completes all pending work.
func (d *device) WaitIdle() error {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeAllLocked()
	return nil
}

func (d *device) Destroy() {
	s := d.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.destroyed {
		s.violate("device %d destroyed twice", d.id)
		return
	}
	if len(s.pending) > 0 {
		s.violate("device %d destroyed with %d submissions pending", d.id, len(s.pending))
	}
	d.destroyed = true
	s.live--
}

type queue struct {
	sys    *System
	dev    *device
	family uint32
}

func (q *queue) Submit(cmd hal.CommandBuffer, wait hal.Semaphore, waitStage hal.PipelineStage, signal hal.Semaphore, f hal.Fence) error {
	s := q.sys
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := cmd.(*commandBuffer)
	if !ok || c == nil {
		return s.violate("submit of a foreign command buffer")
	}
	switch c.state {
	case cmdRecording:
		return s.violate("submit of command buffer %d while it is recording", c.id)
	case cmdPending:
		return s.violate("submit of command buffer %d while a previous submission is pending", c.id)
	case cmdInitial:
		return s.violate("submit of command buffer %d that was never recorded", c.id)
	}
	if c.freed {
		return s.violate("submit of freed command buffer %d", c.id)
	}
	var ws, ss *semaphore
	if wait != nil {
		ws = wait.(*semaphore)
		if ws.destroyed {
			return s.violate("submit waits on destroyed semaphore %d", ws.id)
		}
		if ws.signals == 0 {
			return s.violate("submit waits on semaphore %d before it is signaled", ws.id)
		}
		if waitStage > hal.StageColorAttachmentOutput {
			return s.violate("submit waits on semaphore %d after color attachment output", ws.id)
		}
	}
	if signal != nil {
		ss = signal.(*semaphore)
		if ss.destroyed {
			return s.violate("submit signals destroyed semaphore %d", ss.id)
		}
		if ss.signals > 0 && ss != ws {
			return s.violate("submit signals semaphore %d that already holds a signal", ss.id)
		}
	}
	var fc *fence
	if f != nil {
		fc = f.(*fence)
		if fc.destroyed {
			return s.violate("submit with destroyed fence %d", fc.id)
		}
		if fc.signaled {
			return s.violate("submit with fence %d still signaled", fc.id)
		}
		if fc.pending != nil {
			return s.violate("submit with fence %d already in use", fc.id)
		}
	}

	sub := &submission{cmd: c, signal: ss, fence: fc}
	if ws != nil {
		ws.signals = 0
		s.stats.LastWaitStage = waitStage
	}
	if ss != nil {
		ss.signals = 1
		ss.pendingSignal = sub
	}
	if fc != nil {
		fc.pending = sub
	}
	c.state = cmdPending
	c.pending = sub
	c.submits++
	s.pending = append(s.pending, sub)
	s.stats.Submits++
	return nil
}

func (q *queue) Present(sc hal.Swapchain, image uint32, wait hal.Semaphore) error {
	s := q.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	chain, ok := sc.(*swapchain)
	if !ok || chain == nil {
		return s.violate("present of a foreign swapchain")
	}
	if chain.destroyed {
		return s.violate("present to destroyed swapchain %d", chain.id)
	}
	if wait != nil {
		ws := wait.(*semaphore)
		if ws.signals == 0 {
			return s.violate("present waits on semaphore %d before it is signaled", ws.id)
		}
		ws.signals = 0
	}
	if int(image) >= len(chain.acquired) || !chain.acquired[image] {
		return s.violate("present of image %d that was not acquired", image)
	}
	chain.acquired[image] = false
	s.stats.Presents++
	if s.expired || chain.stale() {
		return errors.Wrap(hal.ErrOutOfDate, "headless: present")
	}
	if s.suboptimal {
		return errors.Wrap(hal.ErrSuboptimal, "headless: present")
	}
	return nil
}

func (q *queue) WaitIdle() error {
	s := q.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeAllLocked()
	return nil
}

type commandPool struct {
	sys       *System
	id        uint64
	family    uint32
	buffers   []*commandBuffer
	destroyed bool
}

func (p *commandPool) Allocate() (hal.CommandBuffer, error) {
	s := p.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.destroyed {
		return nil, s.violate("allocate from destroyed command pool %d", p.id)
	}
	cb := &commandBuffer{sys: s, id: s.newID()}
	p.buffers = append(p.buffers, cb)
	return cb, nil
}

func (p *commandPool) Destroy() {
	s := p.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.destroyed {
		s.violate("command pool %d destroyed twice", p.id)
		return
	}
	for _, cb := range p.buffers {
		if cb.state == cmdPending {
			s.violate("command pool %d destroyed while buffer %d is pending", p.id, cb.id)
		}
		cb.freed = true
		s.live--
	}
	p.destroyed = true
	s.live--
}

type fence struct {
	sys       *System
	id        uint64
	signaled  bool
	pending   *submission
	destroyed bool
}

// ID identifies the fence for the lifetime of the System.
func (f *fence) ID() uint64 { return f.id }

func (f *fence) Wait(timeout time.Duration) error {
	s := f.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.FenceWaits++
	if f.destroyed {
		return s.violate("wait on destroyed fence %d", f.id)
	}
	if f.signaled {
		return nil
	}
	if f.pending == nil {
		if timeout == hal.WaitForever {
			return s.violate("wait on fence %d with nothing to signal it never returns", f.id)
		}
		s.stats.Timeouts++
		return errors.Wrapf(hal.ErrTimeout, "headless: fence %d", f.id)
	}
	if s.stalled && timeout != hal.WaitForever {
		s.stats.Timeouts++
		return errors.Wrapf(hal.ErrTimeout, "headless: fence %d", f.id)
	}
	s.completeThroughLocked(f.pending)
	return nil
}

func (f *fence) Reset() error {
	s := f.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.destroyed {
		return s.violate("reset of destroyed fence %d", f.id)
	}
	if f.pending != nil {
		return s.violate("reset of fence %d while a submission will signal it", f.id)
	}
	f.signaled = false
	return nil
}

func (f *fence) Signaled() (bool, error) {
	s := f.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	return f.signaled, nil
}

func (f *fence) Destroy() {
	s := f.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.destroyed {
		s.violate("fence %d destroyed twice", f.id)
		return
	}
	if f.pending != nil {
		s.violate("fence %d destroyed while in use", f.id)
	}
	f.destroyed = true
	s.live--
}

type semaphore struct {
	sys *System
	id  uint64
	// signals is 1 while a signal is queued or held and not yet consumed by
	// a wait.
	signals       int
	pendingSignal *submission
	destroyed     bool
}

func (sm *semaphore) ID() uint64 { return sm.id }

func (sm *semaphore) Destroy() {
	s := sm.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if sm.destroyed {
		s.violate("semaphore %d destroyed twice", sm.id)
		return
	}
	if sm.pendingSignal != nil && !sm.pendingSignal.done {
		s.violate("semaphore %d destroyed while a submission will signal it", sm.id)
	}
	sm.destroyed = true
	s.live--
}
