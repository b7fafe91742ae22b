package headless

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
)

type rig struct {
	sys     *System
	inst    hal.Instance
	window  *Window
	surface hal.Surface
	dev     hal.Device
	queue   hal.Queue
	pool    hal.CommandPool
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{sys: NewSystem(DefaultAdapter()), window: NewWindow(640, 480)}
	r.inst = r.sys.Instance()
	adapters, err := r.inst.Adapters()
	if err != nil || len(adapters) != 1 {
		t.Fatalf("adapters: %v %d", err, len(adapters))
	}
	if r.surface, err = r.inst.CreateSurface(r.window); err != nil {
		t.Fatalf("surface: %v", err)
	}
	r.dev, err = adapters[0].Open(hal.DeviceDescriptor{Families: []uint32{0}, Extensions: []string{hal.DeviceExtensionSwapchain}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	r.queue = r.dev.Queue(0)
	if r.pool, err = r.dev.NewCommandPool(0); err != nil {
		t.Fatalf("pool: %v", err)
	}
	return r
}

func (r *rig) recorded(t *testing.T) hal.CommandBuffer {
	t.Helper()
	cb, err := r.pool.Allocate()
	if err != nil {
		t.Fatal(err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	return cb
}

func (r *rig) swapchain(t *testing.T) hal.Swapchain {
	t.Helper()
	sc, err := r.dev.NewSwapchain(r.surface, hal.SwapchainDescriptor{
		ImageCount:  3,
		Format:      hal.SurfaceFormat{Format: hal.FormatB8G8R8A8SRGB},
		Extent:      hal.Extent2D{Width: 640, Height: 480},
		PresentMode: hal.PresentModeFIFO,
	}, nil)
	if err != nil {
		t.Fatalf("swapchain: %v", err)
	}
	return sc
}

func TestSubmitCompletesOnFenceWait(t *testing.T) {
	r := newRig(t)
	cb := r.recorded(t)
	fence, _ := r.dev.NewFence(false)

	if err := r.queue.Submit(cb, nil, hal.StageColorAttachmentOutput, nil, fence); err != nil {
		t.Fatal(err)
	}
	if ok, _ := fence.Signaled(); ok {
		t.Error("fence signaled before anything waited on it")
	}
	if err := fence.Wait(time.Second); err != nil {
		t.Fatal(err)
	}
	if ok, _ := fence.Signaled(); !ok {
		t.Error("fence not signaled after wait")
	}
	if r.sys.Pending() != 0 {
		t.Errorf("pending = %d, want 0", r.sys.Pending())
	}
	if v := r.sys.Violations(); len(v) != 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestStalledFenceTimesOut(t *testing.T) {
	r := newRig(t)
	cb := r.recorded(t)
	fence, _ := r.dev.NewFence(false)
	r.sys.Stall(true)
	if err := r.queue.Submit(cb, nil, hal.StageColorAttachmentOutput, nil, fence); err != nil {
		t.Fatal(err)
	}
	err := fence.Wait(10 * time.Millisecond)
	if !errors.Is(err, hal.ErrTimeout) {
		t.Fatalf("Wait = %v, want ErrTimeout", err)
	}
	if s := fmt.Sprintf("%+v", err); !strings.Contains(s, "headless_test.go") {
		t.Errorf("timeout carries no stack: %q", s)
	}
	if err := fence.Wait(hal.WaitForever); err != nil {
		t.Fatalf("unbounded Wait = %v", err)
	}
}

func TestFenceRules(t *testing.T) {
	r := newRig(t)
	cb := r.recorded(t)

	signaled, _ := r.dev.NewFence(true)
	if err := r.queue.Submit(cb, nil, hal.StageColorAttachmentOutput, nil, signaled); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("submit with signaled fence = %v, want ErrValidation", err)
	}

	fence, _ := r.dev.NewFence(false)
	if err := r.queue.Submit(cb, nil, hal.StageColorAttachmentOutput, nil, fence); err != nil {
		t.Fatal(err)
	}
	if err := fence.Reset(); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("reset of pending fence = %v, want ErrValidation", err)
	}
	if err := cb.Reset(); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("reset of pending command buffer = %v, want ErrValidation", err)
	}

	idle, _ := r.dev.NewFence(false)
	if err := idle.Wait(hal.WaitForever); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("unbounded wait on idle fence = %v, want ErrValidation", err)
	}
	if err := idle.Wait(time.Millisecond); !errors.Is(err, hal.ErrTimeout) {
		t.Errorf("bounded wait on idle fence = %v, want ErrTimeout", err)
	}
	if n := len(r.sys.Violations()); n != 4 {
		t.Errorf("violations = %d, want 4: %v", n, r.sys.Violations())
	}
}

func TestSemaphoreRules(t *testing.T) {
	r := newRig(t)
	sc := r.swapchain(t)
	acquired, _ := r.dev.NewSemaphore()
	finished, _ := r.dev.NewSemaphore()

	cb := r.recorded(t)
	if err := r.queue.Submit(cb, acquired, hal.StageColorAttachmentOutput, finished, nil); !errors.Is(err, hal.ErrValidation) {
		t.Fatalf("wait before signal = %v, want ErrValidation", err)
	}

	img, err := sc.AcquireNextImage(time.Second, acquired)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sc.AcquireNextImage(time.Second, acquired); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("double signal = %v, want ErrValidation", err)
	}
	if err := r.queue.Submit(cb, acquired, hal.StageBottomOfPipe, finished, nil); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("late wait stage = %v, want ErrValidation", err)
	}
	if err := r.queue.Submit(cb, acquired, hal.StageColorAttachmentOutput, finished, nil); err != nil {
		t.Fatal(err)
	}
	if got := r.sys.Stats().LastWaitStage; got != hal.StageColorAttachmentOutput {
		t.Errorf("LastWaitStage = %d", got)
	}
	if err := r.queue.Present(sc, img, finished); err != nil {
		t.Fatal(err)
	}
	if err := r.queue.Present(sc, img, finished); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("present twice = %v, want ErrValidation", err)
	}
}

func TestSwapchainOutOfDateOnResize(t *testing.T) {
	r := newRig(t)
	sc := r.swapchain(t)
	sem, _ := r.dev.NewSemaphore()

	r.window.Resize(800, 600)
	if _, err := sc.AcquireNextImage(time.Second, sem); !errors.Is(err, hal.ErrOutOfDate) {
		t.Fatalf("acquire after resize = %v, want ErrOutOfDate", err)
	}

	next, err := r.dev.NewSwapchain(r.surface, hal.SwapchainDescriptor{
		ImageCount:  3,
		Format:      hal.SurfaceFormat{Format: hal.FormatB8G8R8A8SRGB},
		Extent:      hal.Extent2D{Width: 800, Height: 600},
		PresentMode: hal.PresentModeFIFO,
	}, sc)
	if err != nil {
		t.Fatal(err)
	}
	sc.Destroy()
	if _, err := next.AcquireNextImage(time.Second, sem); err != nil {
		t.Fatalf("acquire on rebuilt swapchain = %v", err)
	}
}

func TestSwapchainValidatesDescriptor(t *testing.T) {
	r := newRig(t)
	_, err := r.dev.NewSwapchain(r.surface, hal.SwapchainDescriptor{
		ImageCount:  1,
		Format:      hal.SurfaceFormat{Format: hal.FormatB8G8R8A8SRGB},
		Extent:      hal.Extent2D{Width: 640, Height: 480},
		PresentMode: hal.PresentModeFIFO,
	}, nil)
	if !errors.Is(err, hal.ErrValidation) {
		t.Errorf("image count below minimum = %v, want ErrValidation", err)
	}
	_, err = r.dev.NewSwapchain(r.surface, hal.SwapchainDescriptor{
		ImageCount:  2,
		Format:      hal.SurfaceFormat{Format: hal.FormatB8G8R8A8SRGB},
		Extent:      hal.Extent2D{Width: 640, Height: 480},
		PresentMode: hal.PresentModeFIFORelaxed,
	}, nil)
	if !errors.Is(err, hal.ErrValidation) {
		t.Errorf("unsupported present mode = %v, want ErrValidation", err)
	}
}

func TestDestroyInUse(t *testing.T) {
	r := newRig(t)
	buf, _ := r.dev.NewBuffer(hal.BufferVertex, 64)
	rp, _ := r.dev.NewRenderPass(hal.RenderPassDescriptor{Color: hal.FormatB8G8R8A8SRGB})
	sc := r.swapchain(t)
	fb, err := r.dev.NewFramebuffer(rp, sc.Views()[0], nil, hal.Extent2D{Width: 640, Height: 480})
	if err != nil {
		t.Fatal(err)
	}

	cb, _ := r.pool.Allocate()
	cb.Begin()
	cb.BeginRenderPass(rp, fb, hal.Rect2D{}, hal.ClearValues{})
	cb.BindVertexBuffer(buf, 0)
	cb.Draw(3, 1, 0, 0)
	cb.EndRenderPass()
	cb.End()
	fence, _ := r.dev.NewFence(false)
	if err := r.queue.Submit(cb, nil, hal.StageColorAttachmentOutput, nil, fence); err != nil {
		t.Fatal(err)
	}

	buf.Destroy()
	if v := r.sys.Violations(); len(v) != 1 {
		t.Fatalf("violations = %v, want one for the buffer", v)
	}
	fence.Wait(hal.WaitForever)
	fb.Destroy()
	fb.Destroy()
	if v := r.sys.Violations(); len(v) != 2 {
		t.Errorf("violations = %v, want a double destroy", v)
	}

	ops := Commands(cb)
	want := []Op{OpBeginRenderPass, OpBindVertexBuffer, OpDraw, OpEndRenderPass}
	if len(ops) != len(want) {
		t.Fatalf("recorded %d commands, want %d", len(ops), len(want))
	}
	for i := range want {
		if ops[i].Op != want[i] {
			t.Errorf("command %d = %s, want %s", i, ops[i].Op, want[i])
		}
	}
}

func TestLiveObjects(t *testing.T) {
	r := newRig(t)
	base := r.sys.Live()
	f, _ := r.dev.NewFence(true)
	s, _ := r.dev.NewSemaphore()
	b, _ := r.dev.NewBuffer(hal.BufferUniform, 16)
	if got := r.sys.Live(); got != base+3 {
		t.Fatalf("Live = %d, want %d", got, base+3)
	}
	f.Destroy()
	s.Destroy()
	b.Destroy()
	if got := r.sys.Live(); got != base {
		t.Errorf("Live = %d, want %d", got, base)
	}
}

func TestBufferWrite(t *testing.T) {
	r := newRig(t)
	b, _ := r.dev.NewBuffer(hal.BufferUniform, 4)
	if err := b.Write(1, []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if got := BufferData(b); string(got) != "\x00\x01\x02\x00" {
		t.Errorf("data = %v", got)
	}
	if err := b.Write(3, []byte{1, 2}); !errors.Is(err, hal.ErrValidation) {
		t.Errorf("overflowing write = %v", err)
	}
}

func TestOpenUploadFamily(t *testing.T) {
	cfg := DefaultAdapter()
	cfg.QueueFamilies = []hal.QueueFamily{
		{Flags: hal.QueueTransfer, Count: 1},
		{Flags: hal.QueueGraphics | hal.QueueTransfer, Count: 1},
	}
	sys := NewSystem(cfg)
	inst := sys.Instance()
	defer inst.Destroy()
	adapters, _ := inst.Adapters()

	tests := []struct {
		name     string
		families []uint32
		upload   uint32
	}{
		{"not opened", []uint32{1}, 0},
		{"no graphics", []uint32{0, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapters[0].Open(hal.DeviceDescriptor{Families: tt.families, Upload: tt.upload})
			if !errors.Is(err, hal.ErrValidation) {
				t.Errorf("open = %v, want validation error", err)
			}
		})
	}

	dev, err := adapters[0].Open(hal.DeviceDescriptor{Families: []uint32{0, 1}, Upload: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Destroy()
	tex, err := dev.NewTexture(hal.TextureDescriptor{Width: 1, Height: 1, Format: hal.FormatR8G8B8A8SRGB}, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	defer tex.Destroy()
	if family, ok := UploadFamily(tex); !ok || family != 1 {
		t.Errorf("uploaded on family %d, want 1", family)
	}
}
