package diesel

import (
	"github.com/andewx/diesel/hal"
	"github.com/go-gl/mathgl/mgl32"
)

// UIDrawCmd is one clipped draw of a UI draw list.
type UIDrawCmd struct {
	// Clip is in framebuffer pixels. Commands with an empty clip are
	// skipped.
	Clip      hal.Rect2D
	ElemCount uint32
	IdxOffset uint32
	VtxOffset int32
}

// UIDrawList is the geometry of one UI window. Indices are 32-bit.
type UIDrawList struct {
	Vertices *Buffer
	Indices  *Buffer
	Commands []UIDrawCmd
}

// UIDrawData is the output of an immediate-mode UI for one frame, such as
// the draw lists produced by Dear ImGui.
type UIDrawData struct {
	Shader *Shader
	Lists  []UIDrawList
}

// UIProjection maps pixel coordinates with the origin at the top left
// corner of an image of the given size to clip space.
func UIProjection(width, height uint32) mgl32.Mat4 {
	return VulkanProjection(mgl32.Ortho2D(0, float32(width), float32(height), 0))
}

// CmdDrawUIDrawData records data inside the open render pass. Each command
// sets its scissor and draws; the full scissor is restored afterwards. The
// UI projection is pushed as the model matrix.
func (cb *CommandBuffer) CmdDrawUIDrawData(data *UIDrawData) error {
	const op = "draw ui"
	if err := cb.drawing(op); err != nil {
		return err
	}
	if data == nil || len(data.Lists) == 0 {
		return nil
	}
	if data.Shader == nil {
		return contract(op, "draw data has no shader")
	}
	extent, err := cb.fullExtent(op)
	if err != nil {
		return err
	}
	if err := data.Shader.Bind(cb); err != nil {
		return err
	}
	if err := data.Shader.PushModel(cb, UIProjection(extent.Width, extent.Height)); err != nil {
		return err
	}
	for _, list := range data.Lists {
		if list.Vertices == nil || list.Indices == nil {
			return contract(op, "draw list without buffers")
		}
		cb.native.BindVertexBuffer(list.Vertices.native, 0)
		cb.native.BindIndexBuffer(list.Indices.native, 0, hal.IndexUint32)
		for _, c := range list.Commands {
			if c.ElemCount == 0 || c.Clip.Extent.IsZero() {
				continue
			}
			cb.native.SetScissor(c.Clip)
			cb.native.DrawIndexed(c.ElemCount, 1, c.IdxOffset, c.VtxOffset, 0)
		}
	}
	cb.native.SetScissor(hal.Rect2D{Extent: extent})
	return nil
}
