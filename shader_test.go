package diesel

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestLoadShaderDescriptor(t *testing.T) {
	dir := t.TempDir()
	vert := filepath.Join(dir, "vert.spv")
	frag := filepath.Join(dir, "frag.spv")
	for _, p := range []string{vert, frag} {
		if err := os.WriteFile(p, spirv, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	desc, err := LoadShaderDescriptor("lit", vert, frag, testLayout)
	if err != nil {
		t.Fatal(err)
	}
	if desc.Name != "lit" || len(desc.Vertex) != 4 || !desc.DepthTest {
		t.Errorf("descriptor %+v", desc)
	}
	wantKind(t, KindFatal, func() error {
		_, err := LoadShaderDescriptor("missing", vert, filepath.Join(dir, "nope.spv"), testLayout)
		return err
	})
}

func TestNewShader(t *testing.T) {
	rig := newTestRig(t)
	rp, err := NewRenderPass(rig.device, rig.sc.Format().Format, rig.sc.DepthFormat())
	if err != nil {
		t.Fatal(err)
	}
	rig.own(rp)

	missing := testShaderDescriptor()
	missing.Fragment = nil
	wantKind(t, KindContract, func() error {
		_, err := NewShader(rig.device, rp, missing)
		return err
	})
	live := rig.sys.Live()
	bad := testShaderDescriptor()
	bad.Fragment = []byte{1, 2, 3}
	wantKind(t, KindFatal, func() error {
		_, err := NewShader(rig.device, rp, bad)
		return err
	})
	if rig.sys.Live() != live {
		t.Error("failed shader leaked its vertex module")
	}

	s, err := NewShader(rig.device, rp, testShaderDescriptor())
	if err != nil {
		t.Fatal(err)
	}
	rig.own(s)
	wantKind(t, KindContract, func() error { return s.SetUniformBuffer(MaxFramesInFlight, nil) })
	if s.Name() != "test" || s.Layout().Stride() != 20 {
		t.Errorf("name %q stride %d", s.Name(), s.Layout().Stride())
	}
	if err := s.Rebuild(rp); err != nil {
		t.Fatal(err)
	}
	s.Destroy()
	s.Destroy()
	if rig.sys.Live() != live {
		t.Errorf("%d objects leaked", rig.sys.Live()-live)
	}
	rig.noViolations(t)
}

func TestPushConstants(t *testing.T) {
	rig := newTestRig(t)
	rd := rig.renderer(t, RendererOptions{})
	_, _, sh := quadScene(t, rd)
	s, err := rd.Shader(sh)
	if err != nil {
		t.Fatal(err)
	}
	cb := newTestCommandBuffer(t, rig, 0)
	if err := cb.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := s.Bind(cb); err != nil {
		t.Fatal(err)
	}
	model := mgl32.Translate3D(1, 2, 3)
	if err := s.PushModel(cb, model); err != nil {
		t.Fatal(err)
	}
	wantKind(t, KindContract, func() error { return cb.CmdPushConstants(s, make([]byte, PushConstantSize+4)) })
	if err := cb.End(); err != nil {
		t.Fatal(err)
	}
	cmds := commandsOf(cb)
	if len(cmds) != 3 || cmds[1].Frame != 0 {
		t.Fatalf("commands %+v", cmds)
	}
	if got := readFloat(cmds[2].Data, 4*12); got != 1 {
		t.Errorf("translation x = %v", got)
	}
}

func TestPipelineBuilder(t *testing.T) {
	rig := newTestRig(t)
	b := NewPipelineBuilder(nil, nil).VertexLayout(testLayout).PushConstants(PushConstantSize).Blend(true)
	desc := b.Descriptor()
	if desc.Frames != MaxFramesInFlight || desc.Stride != 20 || len(desc.Attributes) != 2 || !desc.Blend || desc.DepthTest {
		t.Errorf("descriptor %+v", desc)
	}
	wantKind(t, KindContract, func() error {
		_, err := b.Build(rig.device)
		return err
	})
}

func TestTextures(t *testing.T) {
	rig := newTestRig(t)
	wantKind(t, KindContract, func() error {
		_, err := NewTexture(rig.device, 0, 4, nil)
		return err
	})

	img := image.NewNRGBA(image.Rect(3, 3, 6, 5))
	img.Set(3, 3, color.NRGBA{R: 255, A: 255})
	tex, err := NewTextureFromImage(rig.device, img)
	if err != nil {
		t.Fatal(err)
	}
	rig.own(tex)
	if w, h := tex.Size(); w != 3 || h != 2 {
		t.Errorf("size %dx%d", w, h)
	}

	sub := image.NewRGBA(image.Rect(0, 0, 8, 8)).SubImage(image.Rect(2, 2, 4, 4))
	tex2, err := NewTextureFromImage(rig.device, sub)
	if err != nil {
		t.Fatal(err)
	}
	rig.own(tex2)
	if w, h := tex2.Size(); w != 2 || h != 2 {
		t.Errorf("size %dx%d", w, h)
	}
}
