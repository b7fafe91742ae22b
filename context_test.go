package diesel

import (
	"testing"

	"github.com/andewx/diesel/backend/headless"
)

func TestContextInitHeadless(t *testing.T) {
	sys := headless.NewSystem(headless.DefaultAdapter())
	ctx := NewContext(APIHeadless, WithHeadlessSystem(sys))
	w := headless.NewWindow(320, 200)
	if err := ctx.Init(ClientInfo{Name: "app", Window: w}, DefaultEngineInfo); err != nil {
		t.Fatal(err)
	}
	if ctx.Surface() == nil || ctx.Window() != w {
		t.Error("presenting context has no surface")
	}
	if ctx.HeadlessSystem() != sys || ctx.API() != APIHeadless {
		t.Error("context lost its configuration")
	}
	wantKind(t, KindContract, func() error { return ctx.Init(ClientInfo{}, DefaultEngineInfo) })
	ctx.Destroy()
	ctx.Destroy()
	if n := sys.Live(); n != 0 {
		t.Errorf("%d objects alive after Destroy", n)
	}
}

func TestContextOffscreen(t *testing.T) {
	usage := DefaultUsage().SetString(UsageDisplay, "None")
	ctx := NewContext(APIHeadless, WithConfig(usage))
	if err := ctx.Init(ClientInfo{Name: "app", Window: headless.NewWindow(8, 8)}, DefaultEngineInfo); err != nil {
		t.Fatal(err)
	}
	defer ctx.Destroy()
	if ctx.Surface() != nil || ctx.Window() != nil {
		t.Error("offscreen context created a surface")
	}
	if ctx.HeadlessSystem() == nil {
		t.Error("no default headless system")
	}
}

func TestContextUnsupportedAPIs(t *testing.T) {
	for _, api := range []API{APIOpenGL, APINone, API(42)} {
		t.Run(api.String(), func(t *testing.T) {
			ctx := NewContext(api)
			wantKind(t, KindUnsupported, func() error { return ctx.Init(ClientInfo{}, DefaultEngineInfo) })
		})
	}
}
