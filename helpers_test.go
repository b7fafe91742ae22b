package diesel

import (
	"testing"

	"github.com/andewx/diesel/backend/headless"
	"github.com/andewx/diesel/hal"
	"github.com/go-gl/mathgl/mgl32"
)

// spirv is the smallest blob the headless backend accepts as a module.
var spirv = []byte{0x03, 0x02, 0x23, 0x07}

type testRig struct {
	sys    *headless.System
	window *headless.Window
	ctx    *Context
	device *RenderDevice
	sc     *SwapChain
	owned  []Destroyer
	closed bool
}

// newTestRig brings up a presenting headless context with a device and a
// 640x480 swap chain. Teardown runs at the end of the test unless close is
// called first.
func newTestRig(t *testing.T, adapters ...headless.AdapterConfig) *testRig {
	t.Helper()
	if len(adapters) == 0 {
		adapters = []headless.AdapterConfig{headless.DefaultAdapter()}
	}
	r := &testRig{sys: headless.NewSystem(adapters...), window: headless.NewWindow(640, 480)}
	r.ctx = NewContext(APIHeadless, WithHeadlessSystem(r.sys))
	if err := r.ctx.Init(ClientInfo{Name: "test", Window: r.window}, DefaultEngineInfo); err != nil {
		t.Fatalf("init: %v", err)
	}
	var err error
	if r.device, err = CreateRenderDevice(r.ctx, nil); err != nil {
		t.Fatalf("device: %v", err)
	}
	if r.sc, err = NewSwapChain(r.device, r.window, true); err != nil {
		t.Fatalf("swap chain: %v", err)
	}
	t.Cleanup(r.close)
	return r
}

// own registers d to be destroyed, in reverse order, before the swap chain.
func (r *testRig) own(d Destroyer) {
	r.owned = append(r.owned, d)
}

func (r *testRig) close() {
	if r.closed {
		return
	}
	r.closed = true
	r.device.WaitForIdle()
	for i := len(r.owned) - 1; i >= 0; i-- {
		r.owned[i].Destroy()
	}
	r.sc.Destroy()
	r.device.Destroy()
	r.ctx.Destroy()
}

func (r *testRig) noViolations(t *testing.T) {
	t.Helper()
	for _, v := range r.sys.Violations() {
		t.Errorf("violation: %s", v)
	}
}

func (r *testRig) renderer(t *testing.T, opts RendererOptions) *Renderer {
	t.Helper()
	rd, err := NewRenderer(r.device, r.sc, opts)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	r.own(rd)
	return rd
}

// wantKind fails unless fn returns an error of kind want. Contract errors
// panic in dieseldebug builds; the panic value is checked the same way.
func wantKind(t *testing.T, want ErrorKind, fn func() error) {
	t.Helper()
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				e, ok := p.(error)
				if !ok {
					panic(p)
				}
				err = e
			}
		}()
		err = fn()
	}()
	if got := KindOf(err); got != want {
		t.Fatalf("got kind %s (%v), want %s", got, err, want)
	}
}

var testLayout = NewVertexLayout(
	VertexElement{Name: "position", Type: Float3},
	VertexElement{Name: "uv", Type: Float2},
)

var quadVertices = Float32Bytes(
	-1, -1, 0, 0, 0,
	1, -1, 0, 1, 0,
	1, 1, 0, 1, 1,
	-1, 1, 0, 0, 1,
)

var quadIndices = []uint32{0, 1, 2, 2, 3, 0}

func testShaderDescriptor() ShaderDescriptor {
	return ShaderDescriptor{Name: "test", Vertex: spirv, Fragment: spirv, Layout: testLayout, DepthTest: true}
}

type testScene struct {
	camera    Camera
	lights    []Light
	drawables []Drawable
}

func (s *testScene) Camera() Camera { return s.camera }
func (s *testScene) Lights() []Light { return s.lights }
func (s *testScene) Drawables() []Drawable { return s.drawables }

// quadScene creates a quad and a shader on rd and returns a scene drawing
// it once.
func quadScene(t *testing.T, rd *Renderer) (*testScene, Handle, Handle) {
	t.Helper()
	va, err := rd.CreateVertexArray(testLayout, quadVertices, quadIndices)
	if err != nil {
		t.Fatalf("vertex array: %v", err)
	}
	sh, err := rd.CreateShader(testShaderDescriptor())
	if err != nil {
		t.Fatalf("shader: %v", err)
	}
	scene := &testScene{
		camera:    DefaultCamera(),
		lights:    []Light{{Position: mgl32.Vec3{1, 2, 3}, Color: mgl32.Vec3{1, 1, 1}, Intensity: 2}},
		drawables: []Drawable{{VertexArray: va, Shader: sh, Model: mgl32.Ident4()}},
	}
	return scene, va, sh
}

// commandsOf returns the ops recorded into cb since its last Begin.
func commandsOf(cb *CommandBuffer) []headless.Command {
	return headless.Commands(cb.native)
}

func countOps(cmds []headless.Command, op headless.Op) int {
	n := 0
	for _, c := range cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

func extent(w, h uint32) hal.Extent2D { return hal.Extent2D{Width: w, Height: h} }
