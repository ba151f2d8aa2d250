package softgpu

import (
	"fmt"

	"github.com/gogpu/collage/gpu"
)

// texture is a CPU-side pixel buffer, optionally with a depth attachment.
type texture struct {
	width     int
	height    int
	format    gpu.TextureFormat
	label     string
	pix       []byte
	depth     []float32
	destroyed bool
}

func (t *texture) Width() int                { return t.width }
func (t *texture) Height() int               { return t.height }
func (t *texture) Format() gpu.TextureFormat { return t.format }

// Upload replaces the texture contents.
func (t *texture) Upload(data []byte) error {
	if t.destroyed {
		return gpu.ErrTextureReleased
	}
	if len(data) != len(t.pix) {
		return fmt.Errorf("%w: got %d bytes, want %d", gpu.ErrSizeMismatch, len(data), len(t.pix))
	}
	copy(t.pix, data)
	return nil
}

// Destroy releases the pixel storage. Idempotent.
func (t *texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.pix = nil
	t.depth = nil
}

// clear resets the color buffer to transparent black and the depth buffer
// to the far plane.
func (t *texture) clear() {
	for i := range t.pix {
		t.pix[i] = 0
	}
	for i := range t.depth {
		t.depth[i] = 1
	}
}

// sample returns the texel at normalized coordinates (u, v) in [0,1], with
// nearest-neighbor filtering and clamp-to-edge addressing. R8 textures
// sample as opaque grayscale.
func (t *texture) sample(u, v float32) (r, g, b, a float32) {
	x := int(u * float32(t.width))
	y := int(v * float32(t.height))
	if x < 0 {
		x = 0
	} else if x >= t.width {
		x = t.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= t.height {
		y = t.height - 1
	}

	if t.format == gpu.FormatR8 {
		val := float32(t.pix[y*t.width+x]) / 255
		return val, val, val, 1
	}
	i := (y*t.width + x) * 4
	return float32(t.pix[i]) / 255, float32(t.pix[i+1]) / 255,
		float32(t.pix[i+2]) / 255, float32(t.pix[i+3]) / 255
}

// blendPixel writes a fragment color at (x, y) honoring the blend mode.
func (t *texture) blendPixel(x, y int, r, g, b, a float32, mode gpu.BlendMode) {
	if t.format == gpu.FormatR8 {
		// Single-channel targets take the red channel directly.
		t.pix[y*t.width+x] = toByte(r)
		return
	}
	i := (y*t.width + x) * 4
	if mode == gpu.BlendNone {
		t.pix[i] = toByte(r)
		t.pix[i+1] = toByte(g)
		t.pix[i+2] = toByte(b)
		t.pix[i+3] = toByte(a)
		return
	}

	// SRC_ALPHA, ONE_MINUS_SRC_ALPHA.
	dr := float32(t.pix[i]) / 255
	dg := float32(t.pix[i+1]) / 255
	db := float32(t.pix[i+2]) / 255
	da := float32(t.pix[i+3]) / 255
	inv := 1 - a
	t.pix[i] = toByte(r*a + dr*inv)
	t.pix[i+1] = toByte(g*a + dg*inv)
	t.pix[i+2] = toByte(b*a + db*inv)
	t.pix[i+3] = toByte(a + da*inv)
}

func toByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// invalidTextureSize is the side length of the sentinel texture.
const invalidTextureSize = 8

// newInvalidTexture builds the sentinel bound for empty image slots: a
// magenta/black checkerboard, unmistakable in any composite.
func newInvalidTexture() *texture {
	t := &texture{
		width:  invalidTextureSize,
		height: invalidTextureSize,
		format: gpu.FormatRGBA8,
		label:  "invalid",
		pix:    make([]byte, invalidTextureSize*invalidTextureSize*4),
	}
	for y := 0; y < invalidTextureSize; y++ {
		for x := 0; x < invalidTextureSize; x++ {
			i := (y*invalidTextureSize + x) * 4
			if (x/2+y/2)%2 == 0 {
				t.pix[i] = 255
				t.pix[i+2] = 255
			}
			t.pix[i+3] = 255
		}
	}
	return t
}
