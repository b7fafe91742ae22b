package diesel

import (
	"testing"

	"github.com/andewx/diesel/backend/headless"
	"github.com/andewx/diesel/hal"
)

func TestChooseSwapSurfaceFormat(t *testing.T) {
	unorm := hal.SurfaceFormat{Format: hal.FormatB8G8R8A8Unorm, ColorSpace: hal.ColorSpaceSRGBNonlinear}
	srgb := hal.SurfaceFormat{Format: hal.FormatB8G8R8A8SRGB, ColorSpace: hal.ColorSpaceSRGBNonlinear}
	hdr := hal.SurfaceFormat{Format: hal.FormatB8G8R8A8SRGB, ColorSpace: hal.ColorSpaceHDR10}
	tests := []struct {
		name    string
		formats []hal.SurfaceFormat
		want    hal.SurfaceFormat
	}{
		{"preferred", []hal.SurfaceFormat{unorm, srgb}, srgb},
		{"wrong color space", []hal.SurfaceFormat{hdr, unorm}, hdr},
		{"fallback", []hal.SurfaceFormat{unorm}, unorm},
		{"empty", nil, hal.SurfaceFormat{}},
	}
	for _, tt := range tests {
		if got := ChooseSwapSurfaceFormat(tt.formats); got != tt.want {
			t.Errorf("%s: got %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestChooseSwapPresentMode(t *testing.T) {
	all := []hal.PresentMode{hal.PresentModeImmediate, hal.PresentModeMailbox, hal.PresentModeFIFO}
	tests := []struct {
		modes []hal.PresentMode
		vsync bool
		want  hal.PresentMode
	}{
		{all, true, hal.PresentModeFIFO},
		{all, false, hal.PresentModeMailbox},
		{[]hal.PresentMode{hal.PresentModeImmediate, hal.PresentModeFIFO}, false, hal.PresentModeFIFO},
		{nil, false, hal.PresentModeFIFO},
	}
	for _, tt := range tests {
		if got := ChooseSwapPresentMode(tt.modes, tt.vsync); got != tt.want {
			t.Errorf("modes %v vsync %v: got %s, want %s", tt.modes, tt.vsync, got, tt.want)
		}
	}
}

func TestChooseSwapExtent(t *testing.T) {
	caps := hal.SurfaceCapabilities{
		MinImageExtent: extent(16, 16),
		MaxImageExtent: extent(4096, 2048),
	}
	caps.CurrentExtent = extent(800, 600)
	if got := ChooseSwapExtent(caps, 1, 1); got != extent(800, 600) {
		t.Errorf("defined extent ignored: %+v", got)
	}
	caps.CurrentExtent = extent(hal.UndefinedExtent, hal.UndefinedExtent)
	for _, tt := range []struct {
		w, h int
		want hal.Extent2D
	}{
		{1024, 768, extent(1024, 768)},
		{8, 9000, extent(16, 2048)},
		{-5, 100, extent(16, 100)},
	} {
		if got := ChooseSwapExtent(caps, tt.w, tt.h); got != tt.want {
			t.Errorf("%dx%d: got %+v, want %+v", tt.w, tt.h, got, tt.want)
		}
	}

	hd := hal.SurfaceCapabilities{
		CurrentExtent:  extent(hal.UndefinedExtent, hal.UndefinedExtent),
		MinImageExtent: extent(1, 1),
		MaxImageExtent: extent(4096, 4096),
	}
	if got := ChooseSwapExtent(hd, 1920, 1080); got != extent(1920, 1080) {
		t.Errorf("1920x1080 window: got %+v", got)
	}
}

func TestChooseImageCount(t *testing.T) {
	for _, tt := range []struct{ min, max, want uint32 }{
		{2, 8, 3},
		{2, 2, 2},
		{3, 0, 4},
		{2, 0, 3},
		{3, 3, 3},
	} {
		caps := hal.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
		if got := ChooseImageCount(caps); got != tt.want {
			t.Errorf("min %d max %d: got %d, want %d", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestFindSupportedFormat(t *testing.T) {
	query := func(f hal.Format) hal.FormatProperties {
		if f == hal.FormatD24UnormS8Uint {
			return hal.FormatProperties{Optimal: hal.FeatureDepthStencilAttachment}
		}
		if f == hal.FormatD32Float {
			return hal.FormatProperties{Linear: hal.FeatureDepthStencilAttachment}
		}
		return hal.FormatProperties{}
	}
	got, err := FindSupportedFormat(DepthFormatCandidates, hal.TilingOptimal, hal.FeatureDepthStencilAttachment, query)
	if err != nil || got != hal.FormatD24UnormS8Uint {
		t.Errorf("optimal: got %v, %v", got, err)
	}
	got, err = FindSupportedFormat(DepthFormatCandidates, hal.TilingLinear, hal.FeatureDepthStencilAttachment, query)
	if err != nil || got != hal.FormatD32Float {
		t.Errorf("linear: got %v, %v", got, err)
	}
	wantKind(t, KindFatal, func() error {
		_, err := FindSupportedFormat([]hal.Format{hal.FormatD16Unorm}, hal.TilingOptimal, hal.FeatureDepthStencilAttachment, query)
		return err
	})
}

func TestNewSwapChain(t *testing.T) {
	rig := newTestRig(t)
	sc := rig.sc
	if sc.ImageCount() != 3 {
		t.Errorf("%d images", sc.ImageCount())
	}
	if sc.Format().Format != hal.FormatB8G8R8A8SRGB {
		t.Errorf("format %v", sc.Format())
	}
	if sc.PresentMode() != hal.PresentModeFIFO {
		t.Errorf("vsync present mode %s", sc.PresentMode())
	}
	if sc.Extent() != extent(640, 480) {
		t.Errorf("extent %+v", sc.Extent())
	}
	if sc.DepthFormat() != hal.FormatD32Float || sc.DepthImage() == nil {
		t.Errorf("depth format %v", sc.DepthFormat())
	}
	if sc.Generation() != 1 || sc.NeedsRecreate() {
		t.Errorf("generation %d, needs recreate %v", sc.Generation(), sc.NeedsRecreate())
	}
}

func TestSwapChainVSyncOff(t *testing.T) {
	rig := newTestRig(t)
	rig.sc.SetVSync(false)
	if !rig.sc.NeedsRecreate() {
		t.Fatal("changing vsync did not request a rebuild")
	}
	if err := rig.sc.Recreate(); err != nil {
		t.Fatal(err)
	}
	if rig.sc.PresentMode() != hal.PresentModeMailbox {
		t.Errorf("present mode %s", rig.sc.PresentMode())
	}
}

func TestSwapChainSecondWindow(t *testing.T) {
	rig := newTestRig(t)
	w := headless.NewWindow(100, 50)
	sc, err := NewSwapChain(rig.device, w, true)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Extent() != extent(100, 50) || sc.Window() != w {
		t.Errorf("extent %+v", sc.Extent())
	}
	before := rig.sys.Live()
	sc.Destroy()
	// swap chain, depth image and the owned surface
	if got := before - rig.sys.Live(); got != 3 {
		t.Errorf("Destroy released %d objects", got)
	}
}

func TestSwapChainUndefinedExtent(t *testing.T) {
	cfg := headless.DefaultAdapter()
	cfg.UndefinedExtent = true
	cfg.Capabilities.MaxImageExtent = extent(512, 512)
	rig := newTestRig(t, cfg)
	if got := rig.sc.Extent(); got != extent(512, 480) {
		t.Errorf("extent %+v", got)
	}
}

func TestSwapChainRecreateAfterResize(t *testing.T) {
	rig := newTestRig(t)
	rig.window.Resize(1024, 768)
	if err := rig.sc.Recreate(); err != nil {
		t.Fatal(err)
	}
	if rig.sc.Generation() != 2 || rig.sc.Extent() != extent(1024, 768) || rig.sc.NeedsRecreate() {
		t.Errorf("generation %d extent %+v", rig.sc.Generation(), rig.sc.Extent())
	}
	rig.noViolations(t)
}

func TestSwapChainRecreateMinimized(t *testing.T) {
	rig := newTestRig(t)
	views := rig.sc.Views()
	rig.window.Resize(0, 0)
	wantKind(t, KindOutOfDate, rig.sc.Recreate)
	if !rig.sc.NeedsRecreate() {
		t.Error("minimized swap chain not flagged")
	}
	if rig.sc.Generation() != 1 || len(rig.sc.Views()) != len(views) {
		t.Error("failed rebuild replaced the swap chain")
	}
	rig.window.Resize(640, 480)
	if err := rig.sc.Recreate(); err != nil {
		t.Fatal(err)
	}
	rig.noViolations(t)
}

// present runs cb through one empty frame on sc and returns the present
// result.
func present(t *testing.T, cb *CommandBuffer, sc *SwapChain) error {
	t.Helper()
	for _, step := range []func() error{cb.Begin, cb.End, cb.CmdUploadResources} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	return cb.CmdDisplayImage(sc)
}

func TestAcquireSuboptimal(t *testing.T) {
	rig := newTestRig(t)
	cb, err := NewCommandBuffer(rig.device, 0)
	if err != nil {
		t.Fatal(err)
	}
	rig.own(cb)
	rig.sys.SetSuboptimal(true)
	if err := cb.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := rig.sc.AcquireNextImage(cb); err != nil {
		t.Fatalf("suboptimal image not used: %v", err)
	}
	if !rig.sc.NeedsRecreate() {
		t.Error("suboptimal acquire did not flag the swap chain")
	}
	if _, ok := cb.Image(); !ok {
		t.Error("no image held")
	}
	wantKind(t, KindSuboptimal, func() error { return present(t, cb, rig.sc) })
	rig.noViolations(t)
}

func TestAcquireOutOfDate(t *testing.T) {
	rig := newTestRig(t)
	cb, err := NewCommandBuffer(rig.device, 0)
	if err != nil {
		t.Fatal(err)
	}
	rig.own(cb)
	rig.sys.Expire()
	wantKind(t, KindOutOfDate, func() error { return rig.sc.AcquireNextImage(cb) })
	if !rig.sc.NeedsRecreate() {
		t.Error("out of date acquire did not flag the swap chain")
	}
	if _, ok := cb.Image(); ok {
		t.Error("image held after a failed acquire")
	}
	if err := rig.sc.Recreate(); err != nil {
		t.Fatal(err)
	}
	if err := rig.sc.AcquireNextImage(cb); err != nil {
		t.Fatal(err)
	}
	if err := present(t, cb, rig.sc); err != nil {
		t.Fatal(err)
	}
	rig.noViolations(t)
}

func TestAcquireContract(t *testing.T) {
	rig := newTestRig(t)
	cb, err := NewCommandBuffer(rig.device, 1)
	if err != nil {
		t.Fatal(err)
	}
	rig.own(cb)
	if err := rig.sc.AcquireNextImage(cb); err != nil {
		t.Fatal(err)
	}
	wantKind(t, KindContract, func() error { return rig.sc.AcquireNextImage(cb) })
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	wantKind(t, KindContract, func() error { return rig.sc.AcquireNextImage(cb) })
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

func TestDisplayAfterRebuildIsContractError(t *testing.T) {
	rig := newTestRig(t)
	cb, err := NewCommandBuffer(rig.device, 0)
	if err != nil {
		t.Fatal(err)
	}
	rig.own(cb)
	if err := rig.sc.AcquireNextImage(cb); err != nil {
		t.Fatal(err)
	}
	for _, step := range []func() error{cb.Begin, cb.End, cb.CmdUploadResources} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	if err := rig.sc.Recreate(); err != nil {
		t.Fatal(err)
	}
	wantKind(t, KindContract, func() error { return cb.CmdDisplayImage(rig.sc) })
}
