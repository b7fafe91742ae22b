// Command diesel-demo opens a window and renders a lit, spinning triangle
// with the Vulkan backend.
package main

//go:generate glslc shaders/shader.vert -o shaders/vert.spv
//go:generate glslc shaders/shader.frag -o shaders/frag.spv

import (
	"flag"
	"log/slog"
	"os"

	"github.com/andewx/diesel"
	"github.com/andewx/diesel/window"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type triangleScene struct {
	camera diesel.Camera
	lights []diesel.Light
	draws  []diesel.Drawable
}

func (s *triangleScene) Camera() diesel.Camera { return s.camera }
func (s *triangleScene) Lights() []diesel.Light { return s.lights }
func (s *triangleScene) Drawables() []diesel.Drawable { return s.draws }

var layout = diesel.NewVertexLayout(
	diesel.VertexElement{Name: "position", Type: diesel.Float3},
	diesel.VertexElement{Name: "color", Type: diesel.Float3},
	diesel.VertexElement{Name: "uv", Type: diesel.Float2},
)

var triangle = diesel.Float32Bytes(
	0, -0.5, 0, 1, 0, 0, 0.5, 0,
	0.5, 0.5, 0, 0, 1, 0, 1, 1,
	-0.5, 0.5, 0, 0, 0, 1, 0, 1,
)

func main() {
	var (
		configPath = flag.String("config", "", "JSON usage file")
		vertPath   = flag.String("vert", "shaders/vert.spv", "vertex shader SPIR-V")
		fragPath   = flag.String("frag", "shaders/frag.spv", "fragment shader SPIR-V")
		debug      = flag.Bool("debug", false, "log frame details")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	diesel.SetLogger(logger)

	usage := diesel.DefaultUsage()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		diesel.Fatal(logger, err)
		usage, err = diesel.LoadUsage(f)
		f.Close()
		diesel.Fatal(logger, err)
	}

	win, err := window.Open(window.WithTitle("diesel"), window.WithSize(800, 600))
	diesel.Fatal(logger, err)
	defer window.Terminate()
	diesel.Fatal(logger, window.InitVulkanLoader(), window.Terminate)

	ctx := diesel.NewContext(diesel.APIVulkan, diesel.WithLogger(logger), diesel.WithConfig(usage))
	client := diesel.ClientInfo{Name: "diesel-demo", Version: diesel.Version{Major: 1}, Window: win}
	diesel.Fatal(logger, ctx.Init(client, diesel.DefaultEngineInfo), window.Terminate)
	defer ctx.Destroy()

	device, err := diesel.CreateRenderDevice(ctx, nil)
	diesel.Fatal(logger, err, ctx.Destroy, window.Terminate)
	defer device.Destroy()

	sc, err := diesel.NewSwapChain(device, win, usage.GetBool(diesel.UsageVSync, true))
	diesel.Fatal(logger, err, device.Destroy, ctx.Destroy, window.Terminate)
	defer sc.Destroy()

	renderer, err := diesel.NewRenderer(device, sc, diesel.RendererOptions{ClearColor: [4]float32{0.02, 0.02, 0.05, 1}})
	diesel.Fatal(logger, err, sc.Destroy, device.Destroy, ctx.Destroy, window.Terminate)
	defer renderer.Destroy()
	teardown := []func(){renderer.Destroy, sc.Destroy, device.Destroy, ctx.Destroy, window.Terminate}

	desc, err := diesel.LoadShaderDescriptor("triangle", *vertPath, *fragPath, layout)
	diesel.Fatal(logger, err, teardown...)
	shader, err := renderer.CreateShader(desc)
	diesel.Fatal(logger, err, teardown...)
	mesh, err := renderer.CreateVertexArray(layout, triangle, []uint32{0, 1, 2})
	diesel.Fatal(logger, err, teardown...)

	scene := &triangleScene{
		camera: diesel.DefaultCamera(),
		lights: []diesel.Light{{Position: mgl32.Vec3{2, 2, 2}, Color: mgl32.Vec3{1, 1, 1}, Intensity: 1}},
		draws:  []diesel.Drawable{{VertexArray: mesh, Shader: shader, Model: mgl32.Ident4()}},
	}

	for !win.ShouldClose() {
		glfw.PollEvents()
		if window.Minimized(win) {
			glfw.WaitEvents()
			continue
		}
		scene.draws[0].Model = mgl32.HomogRotate3DY(float32(glfw.GetTime()))
		diesel.Fatal(logger, renderer.Render(scene), teardown...)
	}

	stats := renderer.Stats()
	logger.Info("done", "frames", stats.Frames, "skipped", stats.Skipped, "rebuilds", stats.Rebuilds,
		"lastFrame", stats.LastFrameTime)
}
