package hal

import "errors"

// Errors returned by backends. Callers classify them with errors.Is; the
// backends wrap them with the operation that failed.
var (
	// ErrOutOfDate means the swapchain no longer matches the surface and
	// must be rebuilt before it can be used again.
	ErrOutOfDate = errors.New("hal: swapchain out of date")

	// ErrSuboptimal means the operation succeeded but the swapchain no
	// longer matches the surface exactly.
	ErrSuboptimal = errors.New("hal: swapchain suboptimal")

	// ErrTimeout means a bounded wait expired.
	ErrTimeout = errors.New("hal: wait timed out")

	ErrDeviceLost  = errors.New("hal: device lost")
	ErrSurfaceLost = errors.New("hal: surface lost")

	// ErrUnsupported means the backend or device cannot do what was asked.
	ErrUnsupported = errors.New("hal: unsupported")

	// ErrValidation is returned by validating backends when a call breaks
	// the synchronization or lifetime rules.
	ErrValidation = errors.New("hal: validation failed")

	// ErrInitFailed covers any other failure to create an object.
	ErrInitFailed = errors.New("hal: initialization failed")
)
