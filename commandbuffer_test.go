package diesel

import (
	"testing"
	"time"

	"github.com/andewx/diesel/hal"
)

func newTestCommandBuffer(t *testing.T, rig *testRig, frame int) *CommandBuffer {
	t.Helper()
	cb, err := NewCommandBuffer(rig.device, frame)
	if err != nil {
		t.Fatal(err)
	}
	rig.own(cb)
	return cb
}

// cycle runs one empty frame through cb: reset, acquire, record, submit
// and present.
func cycle(t *testing.T, rig *testRig, cb *CommandBuffer) {
	t.Helper()
	if err := cb.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := rig.sc.AcquireNextImage(cb); err != nil {
		t.Fatal(err)
	}
	if err := present(t, cb, rig.sc); err != nil {
		t.Fatal(err)
	}
}

func TestNewCommandBufferFrameRange(t *testing.T) {
	rig := newTestRig(t)
	for _, frame := range []int{-1, MaxFramesInFlight} {
		wantKind(t, KindContract, func() error {
			_, err := NewCommandBuffer(rig.device, frame)
			return err
		})
	}
	cb := newTestCommandBuffer(t, rig, 2)
	if cb.Frame() != 2 || cb.State() != StateIdle {
		t.Errorf("frame %d state %s", cb.Frame(), cb.State())
	}
	if !cb.Snapshot().FenceSignaled {
		t.Error("new fence is not signaled")
	}
}

func TestCommandBufferStateMachine(t *testing.T) {
	rig := newTestRig(t)
	cb := newTestCommandBuffer(t, rig, 0)

	wantKind(t, KindContract, cb.End)
	wantKind(t, KindContract, cb.CmdUploadResources)
	wantKind(t, KindContract, func() error { return cb.CmdDisplayImage(rig.sc) })

	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	wantKind(t, KindContract, cb.Begin)
	wantKind(t, KindContract, cb.CmdUploadResources)
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateExecutable {
		t.Fatalf("state %s after End", cb.State())
	}
	wantKind(t, KindContract, cb.Begin)
	if err := cb.CmdUploadResources(); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateSubmitted {
		t.Fatalf("state %s after submit", cb.State())
	}
	// nothing was acquired, so there is nothing to present
	wantKind(t, KindContract, func() error { return cb.CmdDisplayImage(rig.sc) })
	wantKind(t, KindContract, cb.Begin)

	if err := cb.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := cb.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if cb.State() != StateIdle {
		t.Errorf("state %s after Reset", cb.State())
	}
	rig.noViolations(t)
}

func TestCommandBufferSnapshotRoundTrip(t *testing.T) {
	rig := newTestRig(t)
	cb := newTestCommandBuffer(t, rig, 1)
	if err := cb.Reset(); err != nil {
		t.Fatal(err)
	}
	before := cb.Snapshot()
	for i := 0; i < 3; i++ {
		cycle(t, rig, cb)
	}
	if err := cb.Reset(); err != nil {
		t.Fatal(err)
	}
	after := cb.Snapshot()
	after.ImageIndex = before.ImageIndex
	if after != before {
		t.Errorf("snapshot %+v, want %+v", after, before)
	}
	if got := rig.sys.Stats().Presents; got != 3 {
		t.Errorf("%d presents", got)
	}
	rig.noViolations(t)
}

func TestCommandBufferResetTimeout(t *testing.T) {
	rig := newTestRig(t)
	cb := newTestCommandBuffer(t, rig, 0)
	cb.SetFenceTimeout(10 * time.Millisecond)
	cycle(t, rig, cb)

	rig.sys.Stall(true)
	wantKind(t, KindTimeout, cb.Reset)
	if cb.State() != StateSubmitted {
		t.Errorf("state %s after a timed out Reset", cb.State())
	}
	rig.sys.Stall(false)
	if err := cb.Reset(); err != nil {
		t.Fatal(err)
	}
	if cb.State() != StateIdle {
		t.Errorf("state %s", cb.State())
	}
	rig.noViolations(t)
}

func TestSubmitWaitsAtColorOutput(t *testing.T) {
	rig := newTestRig(t)
	cb := newTestCommandBuffer(t, rig, 0)
	cycle(t, rig, cb)
	if got := rig.sys.Stats().LastWaitStage; got != hal.StageColorAttachmentOutput {
		t.Errorf("wait stage %v", got)
	}
}

func TestRecordingOutsidePass(t *testing.T) {
	rig := newTestRig(t)
	cb := newTestCommandBuffer(t, rig, 0)
	wantKind(t, KindContract, func() error { return cb.CmdSetViewport(hal.Viewport{Width: 1, Height: 1}) })
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	wantKind(t, KindContract, func() error { return cb.CmdDraw(3, 1, 0, 0) })
	wantKind(t, KindContract, func() error { return cb.CmdDrawIndexed(3, 1, 0, 0, 0) })
	wantKind(t, KindContract, cb.CmdEndRenderPass)
	// a zero size needs an acquired image to take the extent from
	wantKind(t, KindContract, func() error { return cb.CmdSetScissor(hal.Rect2D{}) })
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	if n := len(commandsOf(cb)); n != 0 {
		t.Errorf("%d commands recorded", n)
	}
	rig.noViolations(t)
}

func TestZeroViewportCoversImage(t *testing.T) {
	rig := newTestRig(t)
	cb := newTestCommandBuffer(t, rig, 0)
	if err := rig.sc.AcquireNextImage(cb); err != nil {
		t.Fatal(err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := cb.CmdSetViewport(hal.Viewport{}); err != nil {
		t.Fatal(err)
	}
	if err := cb.CmdSetScissor(hal.Rect2D{Offset: hal.Offset2D{X: 5}}); err != nil {
		t.Fatal(err)
	}
	custom := hal.Viewport{X: 1, Y: 2, Width: 3, Height: 4, MaxDepth: 0.5}
	if err := cb.CmdSetViewport(custom); err != nil {
		t.Fatal(err)
	}
	cmds := commandsOf(cb)
	want := hal.Viewport{Width: 640, Height: 480, MaxDepth: 1}
	if len(cmds) != 3 || cmds[0].Viewport != want || cmds[2].Viewport != custom {
		t.Fatalf("commands %+v", cmds)
	}
	if cmds[1].Scissor != (hal.Rect2D{Extent: extent(640, 480)}) {
		t.Errorf("scissor %+v", cmds[1].Scissor)
	}
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	if err := cb.CmdUploadResources(); err != nil {
		t.Fatal(err)
	}
	if err := cb.CmdDisplayImage(rig.sc); err != nil {
		t.Fatal(err)
	}
	rig.noViolations(t)
}

func TestCommandBufferDestroyWaits(t *testing.T) {
	rig := newTestRig(t)
	cb, err := NewCommandBuffer(rig.device, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, step := range []func() error{cb.Reset, cb.Begin, cb.End, cb.CmdUploadResources} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	if rig.sys.Pending() != 1 {
		t.Fatalf("%d pending submissions", rig.sys.Pending())
	}
	cb.Destroy()
	cb.Destroy()
	if rig.sys.Pending() != 0 {
		t.Error("Destroy did not wait for the submission")
	}
	wantKind(t, KindContract, cb.Reset)
	rig.noViolations(t)
}
