package diesel

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// vulkanClip converts a GL style projection to Vulkan clip space: Y points
// down and depth is [0, 1] instead of [-1, 1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// VulkanProjection applies the clip space fixup to a GL style projection.
func VulkanProjection(proj mgl32.Mat4) mgl32.Mat4 {
	return vulkanClip.Mul4(proj)
}

// Camera is a perspective camera. FovY is in radians.
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	FovY     float32
	Near     float32
	Far      float32
}

// DefaultCamera looks at the origin from +Z.
func DefaultCamera() Camera {
	return Camera{
		Position: mgl32.Vec3{0, 0, 3},
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     mgl32.DegToRad(45),
		Near:     0.1,
		Far:      100,
	}
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

// Projection returns the Vulkan clip space projection for aspect.
func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	return VulkanProjection(mgl32.Perspective(c.FovY, aspect, c.Near, c.Far))
}

// MaxLights is the number of lights the frame uniforms hold.
const MaxLights = 4

type Light struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
}

// FrameUniformsSize is the std140 size of FrameUniforms.
const FrameUniformsSize = 64 + 64 + 16 + MaxLights*32

// FrameUniforms is the uniform block shared by every shader in a frame.
//
//	layout(std140, binding = 0) uniform Frame {
//		mat4 view;
//		mat4 proj;
//		vec3 cameraPos;
//		uint lightCount;
//		struct { vec4 posIntensity; vec4 color; } lights[4];
//	};
type FrameUniforms struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	CameraPos  mgl32.Vec3
	Lights     []Light
}

// NewFrameUniforms computes the uniforms of cam and lights for an image of
// the given extent. Lights beyond MaxLights are dropped.
func NewFrameUniforms(cam Camera, lights []Light, width, height uint32) FrameUniforms {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	if len(lights) > MaxLights {
		lights = lights[:MaxLights]
	}
	return FrameUniforms{
		View:       cam.View(),
		Projection: cam.Projection(aspect),
		CameraPos:  cam.Position,
		Lights:     lights,
	}
}

// Bytes packs the uniforms in std140 layout.
func (u FrameUniforms) Bytes() []byte {
	out := make([]byte, FrameUniformsSize)
	off := 0
	put := func(vs ...float32) {
		for _, v := range vs {
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(v))
			off += 4
		}
	}
	put(u.View[:]...)
	put(u.Projection[:]...)
	put(u.CameraPos[:]...)
	n := len(u.Lights)
	if n > MaxLights {
		n = MaxLights
	}
	binary.LittleEndian.PutUint32(out[off:], uint32(n))
	off += 4
	for _, l := range u.Lights[:n] {
		put(l.Position[0], l.Position[1], l.Position[2], l.Intensity)
		put(l.Color[0], l.Color[1], l.Color[2], 0)
	}
	return out
}
