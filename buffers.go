package diesel

import (
	"encoding/binary"
	"math"

	"github.com/andewx/diesel/hal"
)

// ShaderDataType is the type of a vertex attribute as the shader sees it.
type ShaderDataType uint8

const (
	ShaderDataNone ShaderDataType = iota
	Float
	Float2
	Float3
	Float4
	Mat3
	Mat4
	Int
	Int2
	Int3
	Int4
	Byte4
)

// Size returns the size of the type in bytes.
func (t ShaderDataType) Size() uint32 {
	switch t {
	case Float, Int, Byte4:
		return 4
	case Float2, Int2:
		return 8
	case Float3, Int3:
		return 12
	case Float4, Int4:
		return 16
	case Mat3:
		return 36
	case Mat4:
		return 64
	}
	return 0
}

// Components returns the number of scalar components of the type.
func (t ShaderDataType) Components() uint32 {
	switch t {
	case Float, Int:
		return 1
	case Float2, Int2:
		return 2
	case Float3, Int3, Mat3:
		return 3
	case Float4, Int4, Byte4, Mat4:
		return 4
	}
	return 0
}

// locations returns the number of attribute locations the type takes.
// Matrices use one location per column.
func (t ShaderDataType) locations() uint32 {
	switch t {
	case Mat3:
		return 3
	case Mat4:
		return 4
	}
	return 1
}

func (t ShaderDataType) vertexFormat(normalized bool) hal.VertexFormat {
	switch t {
	case Float:
		return hal.VertexFloat32
	case Float2:
		return hal.VertexFloat32x2
	case Float3, Mat3:
		return hal.VertexFloat32x3
	case Float4, Mat4:
		return hal.VertexFloat32x4
	case Int:
		return hal.VertexSint32
	case Int2:
		return hal.VertexSint32x2
	case Int3:
		return hal.VertexSint32x3
	case Int4:
		return hal.VertexSint32x4
	case Byte4:
		if normalized {
			return hal.VertexUnorm8x4
		}
		return hal.VertexUint8x4
	}
	return hal.VertexFloat32
}

// VertexElement is one attribute of a vertex. Offset is filled in by
// NewVertexLayout.
type VertexElement struct {
	Name       string
	Type       ShaderDataType
	Normalized bool
	Offset     uint32
}

// VertexLayout is the ordered, tightly packed attribute list of a vertex.
type VertexLayout struct {
	elements []VertexElement
	stride   uint32
}

// NewVertexLayout computes the offsets of elements and the stride.
func NewVertexLayout(elements ...VertexElement) VertexLayout {
	l := VertexLayout{elements: make([]VertexElement, len(elements))}
	for i, e := range elements {
		e.Offset = l.stride
		l.stride += e.Type.Size()
		l.elements[i] = e
	}
	return l
}

func (l VertexLayout) Elements() []VertexElement {
	return append([]VertexElement(nil), l.elements...)
}

func (l VertexLayout) Stride() uint32 { return l.stride }

// Attributes returns the pipeline attributes of the layout, assigning
// consecutive shader locations.
func (l VertexLayout) Attributes() []hal.VertexAttribute {
	var attrs []hal.VertexAttribute
	var location uint32
	for _, e := range l.elements {
		n := e.Type.locations()
		column := e.Type.Size() / n
		for c := uint32(0); c < n; c++ {
			attrs = append(attrs, hal.VertexAttribute{
				Location: location,
				Offset:   e.Offset + c*column,
				Format:   e.Type.vertexFormat(e.Normalized),
			})
			location++
		}
	}
	return attrs
}

// Buffer is a host visible GPU buffer.
type Buffer struct {
	native hal.Buffer
	usage  hal.BufferUsage
}

func NewBuffer(device *RenderDevice, usage hal.BufferUsage, size int) (*Buffer, error) {
	const op = "new buffer"
	if size <= 0 {
		return nil, contract(op, "size %d", size)
	}
	native, err := device.device.NewBuffer(usage, size)
	if err != nil {
		return nil, backendError(op, err)
	}
	return &Buffer{native: native, usage: usage}, nil
}

// NewBufferWithData creates a buffer holding data.
func NewBufferWithData(device *RenderDevice, usage hal.BufferUsage, data []byte) (*Buffer, error) {
	b, err := NewBuffer(device, usage, len(data))
	if err != nil {
		return nil, err
	}
	if err := b.Write(0, data); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Size() int { return b.native.Size() }

func (b *Buffer) Write(offset int, data []byte) error {
	return backendError("write buffer", b.native.Write(offset, data))
}

func (b *Buffer) Destroy() {
	if b.native != nil {
		b.native.Destroy()
		b.native = nil
	}
}

// VertexArray is an indexed mesh: a vertex buffer laid out by a
// VertexLayout and a buffer of 32-bit indices.
type VertexArray struct {
	vertices *Buffer
	indices  *Buffer
	layout   VertexLayout
	count    uint32
}

// NewVertexArray uploads vertices, which must be a whole number of layout
// strides, and indices.
func NewVertexArray(device *RenderDevice, layout VertexLayout, vertices []byte, indices []uint32) (*VertexArray, error) {
	const op = "new vertex array"
	switch {
	case layout.Stride() == 0:
		return nil, contract(op, "empty vertex layout")
	case len(vertices) == 0 || len(vertices)%int(layout.Stride()) != 0:
		return nil, contract(op, "%d bytes of vertices with stride %d", len(vertices), layout.Stride())
	case len(indices) == 0:
		return nil, contract(op, "no indices")
	}
	vertexCount := uint32(len(vertices) / int(layout.Stride()))
	for _, i := range indices {
		if i >= vertexCount {
			return nil, contract(op, "index %d out of %d vertices", i, vertexCount)
		}
	}
	vb, err := NewBufferWithData(device, hal.BufferVertex, vertices)
	if err != nil {
		return nil, err
	}
	ib, err := NewBufferWithData(device, hal.BufferIndex, IndexBytes(indices))
	if err != nil {
		vb.Destroy()
		return nil, err
	}
	return &VertexArray{vertices: vb, indices: ib, layout: layout, count: uint32(len(indices))}, nil
}

func (va *VertexArray) Layout() VertexLayout { return va.layout }

func (va *VertexArray) IndexCount() uint32 { return va.count }

// Bind binds the vertex and index buffers on cb.
func (va *VertexArray) Bind(cb *CommandBuffer) error {
	if err := cb.recording("bind vertex array"); err != nil {
		return err
	}
	cb.native.BindVertexBuffer(va.vertices.native, 0)
	cb.native.BindIndexBuffer(va.indices.native, 0, hal.IndexUint32)
	return nil
}

// Draw records one indexed draw of the whole array.
func (va *VertexArray) Draw(cb *CommandBuffer) error {
	return cb.CmdDrawIndexed(va.count, 1, 0, 0, 0)
}

func (va *VertexArray) Destroy() {
	va.vertices.Destroy()
	va.indices.Destroy()
}

// Float32Bytes packs values little endian, as vertex and uniform data.
func Float32Bytes(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// IndexBytes packs 32-bit indices little endian.
func IndexBytes(indices []uint32) []byte {
	out := make([]byte, 4*len(indices))
	for i, v := range indices {
		binary.LittleEndian.PutUint32(out[4*i:], v)
	}
	return out
}
