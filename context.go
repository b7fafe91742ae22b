package diesel

import (
	"log/slog"

	"github.com/andewx/diesel/backend/headless"
	"github.com/andewx/diesel/backend/vulkan"
	"github.com/andewx/diesel/hal"
)

// Context is an application session: the backend API, its instance and
// the surface of the application window. Devices, swap chains and renderers
// are built from a Context; nothing in diesel is process-global except the
// default logger.
type Context struct {
	api      API
	logger   *slog.Logger
	usage    *Usage
	system   *headless.System
	instance hal.Instance
	window   hal.Window
	surface  hal.Surface
	client   ClientInfo
	engine   EngineInfo
}

type Option func(*Context)

// WithLogger sets the logger of the context and everything built from it.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithConfig sets the configuration of the context.
func WithConfig(u *Usage) Option {
	return func(c *Context) { c.usage = u }
}

// WithHeadlessSystem selects the simulated machine an APIHeadless context
// runs on. Without it Init creates one with headless.DefaultAdapter.
func WithHeadlessSystem(sys *headless.System) Option {
	return func(c *Context) { c.system = sys }
}

// NewContext returns a context for api. Call Init before using it.
func NewContext(api API, opts ...Option) *Context {
	c := &Context{api: api}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	if c.usage == nil {
		c.usage = DefaultUsage()
	}
	return c
}

// Init brings up the backend instance and, when client.Window is set,
// creates its presentable surface.
func (c *Context) Init(client ClientInfo, engine EngineInfo) error {
	const op = "context init"
	if c.instance != nil {
		return contract(op, "context already initialized")
	}
	var (
		inst hal.Instance
		err  error
	)
	switch c.api {
	case APIVulkan:
		var extensions []string
		if client.Window != nil {
			extensions = client.Window.GetRequiredInstanceExtensions()
		}
		inst, err = vulkan.NewInstance(vulkan.Config{
			AppName:    client.Name,
			EngineName: engine.Name,
			Validation: c.usage.GetBool(UsageValidation, false),
			Extensions: extensions,
			Logger:     c.logger,
		})
		if err != nil {
			return newError(op, KindFatal, err)
		}
	case APIHeadless:
		if c.system == nil {
			c.system = headless.NewSystem(headless.DefaultAdapter())
		}
		inst = c.system.Instance()
	case APIOpenGL:
		return errorf(op, KindUnsupported, "the %s backend is not supported", c.api)
	case APINone:
		return errorf(op, KindUnsupported, "no graphics API selected")
	default:
		return errorf(op, KindUnsupported, "unknown graphics API %d", uint8(c.api))
	}

	if client.Window != nil && c.usage.GetString(UsageDisplay, "Window") == "Window" {
		surface, err := inst.CreateSurface(client.Window)
		if err != nil {
			inst.Destroy()
			return newError(op, KindFatal, err)
		}
		c.window = client.Window
		c.surface = surface
	}
	c.instance = inst
	c.client = client
	c.engine = engine
	c.logger.Info("context initialized", "api", c.api.String(), "app", client.Name,
		"engine", engine.Name, "engineVersion", engine.Version.String(), "presenting", c.surface != nil)
	return nil
}

func (c *Context) API() API { return c.api }

func (c *Context) Logger() *slog.Logger { return c.logger }

func (c *Context) Usage() *Usage { return c.usage }

func (c *Context) Instance() hal.Instance { return c.instance }

// Window returns the presented window, or nil for offscreen contexts.
func (c *Context) Window() hal.Window { return c.window }

func (c *Context) Surface() hal.Surface { return c.surface }

func (c *Context) ClientInfo() ClientInfo { return c.client }

func (c *Context) EngineInfo() EngineInfo { return c.engine }

// HeadlessSystem returns the simulated machine of an APIHeadless context.
func (c *Context) HeadlessSystem() *headless.System { return c.system }

// Destroy releases the surface and the instance. Devices built from the
// context must be destroyed first.
func (c *Context) Destroy() {
	if c.surface != nil {
		c.surface.Destroy()
		c.surface = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}
