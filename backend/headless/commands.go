package headless

import "github.com/andewx/diesel/hal"

type cmdState uint8

const (
	cmdInitial cmdState = iota
	cmdRecording
	cmdExecutable
	cmdPending
)

// Op names a recorded command.
type Op string

const (
	OpBeginRenderPass   Op = "BeginRenderPass"
	OpEndRenderPass     Op = "EndRenderPass"
	OpBindPipeline      Op = "BindPipeline"
	OpBindDescriptorSet Op = "BindDescriptorSet"
	OpPushConstants     Op = "PushConstants"
	OpBindVertexBuffer  Op = "BindVertexBuffer"
	OpBindIndexBuffer   Op = "BindIndexBuffer"
	OpSetViewport       Op = "SetViewport"
	OpSetScissor        Op = "SetScissor"
	OpDraw              Op = "Draw"
	OpDrawIndexed       Op = "DrawIndexed"
)

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op       Op
	Area     hal.Rect2D
	Clear    hal.ClearValues
	Viewport hal.Viewport
	Scissor  hal.Rect2D
	Frame    int
	Data     []byte
	Offset   uint64
	Index    hal.IndexType
	Count    uint32
	// Instances is the instance count of a draw.
	Instances    uint32
	First        uint32
	VertexOffset int32

	refs []uint64
}

// Commands returns the commands recorded into cb since its last Begin.
// It returns nil for command buffers of other backends.
func Commands(cb hal.CommandBuffer) []Command {
	c, ok := cb.(*commandBuffer)
	if !ok {
		return nil
	}
	c.sys.mu.Lock()
	defer c.sys.mu.Unlock()
	return append([]Command(nil), c.commands...)
}

type commandBuffer struct {
	sys      *System
	id       uint64
	state    cmdState
	pending  *submission
	commands []Command
	submits  int
	freed    bool
	inPass   bool
}

func (c *commandBuffer) ID() uint64 { return c.id }

func (c *commandBuffer) Reset() error {
	s := c.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.state == cmdPending {
		return s.violate("reset of command buffer %d while it is pending", c.id)
	}
	c.state = cmdInitial
	c.commands = c.commands[:0]
	c.inPass = false
	return nil
}

func (c *commandBuffer) Begin() error {
	s := c.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	switch c.state {
	case cmdPending:
		return s.violate("begin of command buffer %d while it is pending", c.id)
	case cmdRecording:
		return s.violate("begin of command buffer %d while it is recording", c.id)
	}
	c.state = cmdRecording
	c.commands = c.commands[:0]
	return nil
}

func (c *commandBuffer) End() error {
	s := c.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.state != cmdRecording {
		return s.violate("end of command buffer %d that is not recording", c.id)
	}
	if c.inPass {
		return s.violate("end of command buffer %d inside a render pass", c.id)
	}
	c.state = cmdExecutable
	return nil
}

func (c *commandBuffer) record(cmd Command) {
	s := c.sys
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.state != cmdRecording {
		s.violate("%s recorded into command buffer %d that is not recording", cmd.Op, c.id)
		return
	}
	switch cmd.Op {
	case OpBeginRenderPass:
		if c.inPass {
			s.violate("render pass begun twice in command buffer %d", c.id)
		}
		c.inPass = true
	case OpEndRenderPass:
		if !c.inPass {
			s.violate("render pass ended outside a pass in command buffer %d", c.id)
		}
		c.inPass = false
	case OpDraw, OpDrawIndexed:
		if !c.inPass {
			s.violate("draw outside a render pass in command buffer %d", c.id)
		}
	}
	c.commands = append(c.commands, cmd)
}

func (c *commandBuffer) BeginRenderPass(rp hal.RenderPass, fb hal.Framebuffer, area hal.Rect2D, clear hal.ClearValues) {
	if f, ok := fb.(*framebuffer); ok && f.destroyed {
		c.sys.mu.Lock()
		c.sys.violate("render pass begun with destroyed framebuffer %d", f.id)
		c.sys.mu.Unlock()
	}
	c.record(Command{Op: OpBeginRenderPass, Area: area, Clear: clear, refs: ids(fb)})
}

func (c *commandBuffer) EndRenderPass() {
	c.record(Command{Op: OpEndRenderPass})
}

func (c *commandBuffer) BindPipeline(p hal.Pipeline) {
	c.record(Command{Op: OpBindPipeline, refs: ids(p)})
}

func (c *commandBuffer) BindDescriptorSet(p hal.Pipeline, frame int) {
	cmd := Command{Op: OpBindDescriptorSet, Frame: frame}
	if hp, ok := p.(*pipeline); ok && frame >= 0 && frame < len(hp.uniforms) {
		cmd.refs = ids(hp.uniforms[frame], hp.textures[frame])
	}
	c.record(cmd)
}

func (c *commandBuffer) PushConstants(p hal.Pipeline, data []byte) {
	c.record(Command{Op: OpPushConstants, Data: append([]byte(nil), data...)})
}

func (c *commandBuffer) BindVertexBuffer(b hal.Buffer, offset uint64) {
	c.record(Command{Op: OpBindVertexBuffer, Offset: offset, refs: ids(b)})
}

func (c *commandBuffer) BindIndexBuffer(b hal.Buffer, offset uint64, t hal.IndexType) {
	c.record(Command{Op: OpBindIndexBuffer, Offset: offset, Index: t, refs: ids(b)})
}

func (c *commandBuffer) SetViewport(v hal.Viewport) {
	c.record(Command{Op: OpSetViewport, Viewport: v})
}

func (c *commandBuffer) SetScissor(r hal.Rect2D) {
	c.record(Command{Op: OpSetScissor, Scissor: r})
}

func (c *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.record(Command{Op: OpDraw, Count: vertexCount, Instances: instanceCount, First: firstVertex})
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.record(Command{Op: OpDrawIndexed, Count: indexCount, Instances: instanceCount, First: firstIndex, VertexOffset: vertexOffset})
}

// ids returns the headless object ids of the given objects.
func ids(objs ...interface{}) []uint64 {
	var out []uint64
	for _, o := range objs {
		switch r := o.(type) {
		case *buffer:
			out = append(out, r.id)
		case *texture:
			out = append(out, r.id)
		case *pipeline:
			out = append(out, r.id)
		case *framebuffer:
			out = append(out, r.id)
		}
	}
	return out
}
