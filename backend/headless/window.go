package headless

import (
	"sync"
	"unsafe"
)

// Window is an offscreen window whose framebuffer size is set by the test.
type Window struct {
	mu            sync.Mutex
	width, height int
	surfaces      int
}

// NewWindow returns a window with the given framebuffer size.
func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

// Resize changes the framebuffer size. Swapchains created for the old size
// report out of date from then on.
func (w *Window) Resize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
}

func (w *Window) GetFramebufferSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *Window) GetRequiredInstanceExtensions() []string {
	return []string{"VK_KHR_surface", "VK_KHR_headless_surface"}
}

func (w *Window) CreateWindowSurface(instance interface{}, _ unsafe.Pointer) (uintptr, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.surfaces++
	return uintptr(w.surfaces), nil
}
