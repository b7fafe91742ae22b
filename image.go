package diesel

import (
	"image"
	"image/draw"

	"github.com/andewx/diesel/hal"
)

// TextureFormat is the format every texture is uploaded in.
const TextureFormat = hal.FormatR8G8B8A8SRGB

// Texture is a sampled RGBA8 image.
type Texture struct {
	native hal.Texture
	width  uint32
	height uint32
}

// NewTexture uploads width*height RGBA8 pixels.
func NewTexture(device *RenderDevice, width, height uint32, pixels []byte) (*Texture, error) {
	const op = "new texture"
	if width == 0 || height == 0 {
		return nil, contract(op, "empty %dx%d texture", width, height)
	}
	if want := int(width) * int(height) * 4; len(pixels) != want {
		return nil, contract(op, "%d bytes of pixels, want %d", len(pixels), want)
	}
	// The upload submits on the graphics queue, so it takes the queue guard.
	var native hal.Texture
	err := device.submit(func() (err error) {
		native, err = device.device.NewTexture(hal.TextureDescriptor{Width: width, Height: height, Format: TextureFormat}, pixels)
		return err
	})
	if err != nil {
		return nil, backendError(op, err)
	}
	return &Texture{native: native, width: width, height: height}, nil
}

// NewTextureFromImage converts img to RGBA8 and uploads it.
func NewTextureFromImage(device *RenderDevice, img image.Image) (*Texture, error) {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return NewTexture(device, uint32(b.Dx()), uint32(b.Dy()), rgba.Pix)
}

// newWhiteTexture returns the 1x1 texture bound to shaders that have none.
func newWhiteTexture(device *RenderDevice) (*Texture, error) {
	return NewTexture(device, 1, 1, []byte{0xff, 0xff, 0xff, 0xff})
}

func (t *Texture) Size() (uint32, uint32) { return t.width, t.height }

func (t *Texture) Destroy() {
	if t.native != nil {
		t.native.Destroy()
		t.native = nil
	}
}
