// Package window opens glfw windows that diesel can present to.
package window

import (
	"runtime"

	"github.com/andewx/diesel/hal"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var _ hal.Window = (*glfw.Window)(nil)

// Config describes the window to open.
type Config struct {
	Title     string
	Width     int
	Height    int
	Resizable bool
	Visible   bool
}

// Option configures a window before it is opened.
type Option func(*Config)

func WithTitle(title string) Option {
	return func(c *Config) { c.Title = title }
}

func WithSize(width, height int) Option {
	return func(c *Config) { c.Width, c.Height = width, height }
}

func WithResizable(resizable bool) Option {
	return func(c *Config) { c.Resizable = resizable }
}

// WithHidden opens the window without showing it.
func WithHidden() Option {
	return func(c *Config) { c.Visible = false }
}

func glfwBool(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

// Open initializes glfw and opens a window without a client API context.
// It locks the calling goroutine to its OS thread; glfw calls must stay on
// it. Call Terminate when done.
func Open(opts ...Option) (*glfw.Window, error) {
	cfg := Config{Title: "diesel", Width: 1280, Height: 720, Resizable: true, Visible: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw init")
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfwBool(cfg.Resizable))
	glfw.WindowHint(glfw.Visible, glfwBool(cfg.Visible))
	w, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}
	return w, nil
}

// InitVulkanLoader points the Vulkan bindings at the loader glfw found.
// glfw must be initialized.
func InitVulkanLoader() error {
	if !glfw.VulkanSupported() {
		return errors.New("vulkan loader not found")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	return errors.Wrap(vk.Init(), "vulkan init")
}

// Minimized reports whether w has no drawable area.
func Minimized(w *glfw.Window) bool {
	width, height := w.GetFramebufferSize()
	return width == 0 || height == 0
}

func Terminate() {
	glfw.Terminate()
}
