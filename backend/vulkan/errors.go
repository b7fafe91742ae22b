package vulkan

import (
	"github.com/andewx/diesel/hal"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// newError converts a failed result into an error wrapping the matching hal
// sentinel. It returns nil for vk.Success.
func newError(ret vk.Result, op string) error {
	if ret == vk.Success {
		return nil
	}
	var sentinel error
	switch ret {
	case vk.ErrorOutOfDate:
		sentinel = hal.ErrOutOfDate
	case vk.Suboptimal:
		sentinel = hal.ErrSuboptimal
	case vk.Timeout, vk.NotReady:
		sentinel = hal.ErrTimeout
	case vk.ErrorDeviceLost:
		sentinel = hal.ErrDeviceLost
	case vk.ErrorSurfaceLost:
		sentinel = hal.ErrSurfaceLost
	case vk.ErrorFeatureNotPresent, vk.ErrorExtensionNotPresent, vk.ErrorLayerNotPresent,
		vk.ErrorFormatNotSupported, vk.ErrorIncompatibleDriver:
		sentinel = hal.ErrUnsupported
	default:
		sentinel = hal.ErrInitFailed
	}
	return errors.Wrapf(sentinel, "vulkan: %s: %v", op, vk.Error(ret))
}
