package vulkan

import (
	"testing"

	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func TestFormatRoundTrip(t *testing.T) {
	for f := range formats {
		if got := fromVkFormat(toVkFormat(f)); got != f {
			t.Errorf("format %d came back as %d", f, got)
		}
	}
	if fromVkFormat(vk.FormatR8Unorm) != hal.FormatUndefined {
		t.Error("unknown format not mapped to undefined")
	}
}

func TestPresentModes(t *testing.T) {
	for _, m := range []hal.PresentMode{hal.PresentModeImmediate, hal.PresentModeMailbox, hal.PresentModeFIFO, hal.PresentModeFIFORelaxed} {
		got, ok := fromVkPresentMode(toVkPresentMode(m))
		if !ok || got != m {
			t.Errorf("%s came back as %s", m, got)
		}
	}
	if _, ok := fromVkPresentMode(vk.PresentMode(1000111000)); ok {
		t.Error("shared present mode accepted")
	}
}

func TestQueueFlags(t *testing.T) {
	f := vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit | vk.QueueSparseBindingBit)
	if got := fromVkQueueFlags(f); got != hal.QueueGraphics|hal.QueueTransfer {
		t.Errorf("flags %b", got)
	}
}

func TestNewError(t *testing.T) {
	if newError(vk.Success, "op") != nil {
		t.Error("success is an error")
	}
	for ret, want := range map[vk.Result]error{
		vk.ErrorOutOfDate:           hal.ErrOutOfDate,
		vk.Suboptimal:               hal.ErrSuboptimal,
		vk.Timeout:                  hal.ErrTimeout,
		vk.ErrorDeviceLost:          hal.ErrDeviceLost,
		vk.ErrorSurfaceLost:         hal.ErrSurfaceLost,
		vk.ErrorExtensionNotPresent: hal.ErrUnsupported,
		vk.ErrorOutOfHostMemory:     hal.ErrInitFailed,
	} {
		if err := newError(ret, "op"); !errors.Is(err, want) {
			t.Errorf("result %d: %v does not wrap %v", ret, err, want)
		}
	}
}
