package text

import (
	"fmt"
	"image"
	"image/draw"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/collage/gpu"
)

// sizeFactor is the em size relative to the layout box height. The
// remaining headroom absorbs ascenders and descenders of a single line.
const sizeFactor = 0.6

// baselineFactor positions the baseline within the layout box.
const baselineFactor = 0.75

// Quad is one glyph's placement: a rectangle in layout pixel coordinates
// (origin top-left, Y down) and its texel rectangle in the atlas,
// normalized to [0,1].
type Quad struct {
	X, Y, W, H     float64
	U0, V0, U1, V1 float64
}

// QuadBuffer is the pre-rasterized drawable form of a text object: an R8
// coverage atlas plus one textured quad per glyph. It is derived content,
// regenerated when the text or font changes and never persisted.
type QuadBuffer struct {
	Atlas  gpu.Texture
	Quads  []Quad
	Width  int
	Height int
}

// Destroy releases the atlas texture.
func (b *QuadBuffer) Destroy() {
	if b.Atlas != nil {
		b.Atlas.Destroy()
		b.Atlas = nil
	}
}

// Mesh builds the triangle list for the buffer: two triangles per quad in
// the [-1,1]^2 clip space of the layout box, with atlas texture
// coordinates.
func (b *QuadBuffer) Mesh() *gpu.Mesh {
	toClipX := func(px float64) float32 { return float32(2*px/float64(b.Width) - 1) }
	toClipY := func(py float64) float32 { return float32(1 - 2*py/float64(b.Height)) }

	mesh := &gpu.Mesh{Vertices: make([]gpu.Vertex, 0, len(b.Quads)*6)}
	for _, q := range b.Quads {
		x0, y0 := toClipX(q.X), toClipY(q.Y)
		x1, y1 := toClipX(q.X+q.W), toClipY(q.Y+q.H)
		u0, v0 := float32(q.U0), float32(q.V0)
		u1, v1 := float32(q.U1), float32(q.V1)

		mesh.Vertices = append(mesh.Vertices,
			gpu.Vertex{X: x0, Y: y0, U: u0, V: v0},
			gpu.Vertex{X: x1, Y: y0, U: u1, V: v0},
			gpu.Vertex{X: x1, Y: y1, U: u1, V: v1},
			gpu.Vertex{X: x0, Y: y0, U: u0, V: v0},
			gpu.Vertex{X: x1, Y: y1, U: u1, V: v1},
			gpu.Vertex{X: x0, Y: y1, U: u0, V: v1},
		)
	}
	return mesh
}

// Layout shapes content at a size derived from the layout box height,
// rasterizes the glyph coverage into an atlas texture on the device, and
// returns the quad buffer. An empty string yields a buffer with no quads
// and no atlas.
func Layout(dev gpu.Device, face *Face, content string, width, height int) (*QuadBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("text: layout box %dx%d: %w", width, height, gpu.ErrInvalidDimensions)
	}
	buf := &QuadBuffer{Width: width, Height: height}
	if content == "" {
		return buf, nil
	}

	size := float64(height) * sizeFactor
	glyphs := face.shape(content, size)
	if len(glyphs) == 0 {
		return buf, nil
	}

	otFace, err := opentype.NewFace(face.raster, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("text: create rasterizing face: %w", err)
	}
	defer func() { _ = otFace.Close() }()

	// Rasterize each distinct rune once.
	covers := make(map[rune]*image.Alpha)
	for _, g := range glyphs {
		if _, ok := covers[g.r]; !ok {
			covers[g.r] = rasterizeRune(otFace, g.r)
		}
	}

	atlas, rects := packAtlas(covers)
	baseline := float64(height) * baselineFactor

	for _, g := range glyphs {
		cov := covers[g.r]
		if cov == nil || cov.Bounds().Empty() {
			continue // whitespace and blank glyphs place no quad
		}
		rect := rects[g.r]
		bounds := cov.Bounds()

		buf.Quads = append(buf.Quads, Quad{
			X:  g.x + float64(bounds.Min.X),
			Y:  baseline + g.y + float64(bounds.Min.Y),
			W:  float64(bounds.Dx()),
			H:  float64(bounds.Dy()),
			U0: float64(rect.Min.X) / float64(atlas.Bounds().Dx()),
			V0: float64(rect.Min.Y) / float64(atlas.Bounds().Dy()),
			U1: float64(rect.Max.X) / float64(atlas.Bounds().Dx()),
			V1: float64(rect.Max.Y) / float64(atlas.Bounds().Dy()),
		})
	}

	if len(buf.Quads) == 0 {
		return buf, nil
	}

	tex, err := dev.CreateTexture(gpu.TextureConfig{
		Width:  atlas.Bounds().Dx(),
		Height: atlas.Bounds().Dy(),
		Format: gpu.FormatR8,
		Label:  "text atlas",
	})
	if err != nil {
		return nil, fmt.Errorf("text: create atlas: %w", err)
	}
	if err := tex.Upload(atlas.Pix); err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("text: upload atlas: %w", err)
	}
	buf.Atlas = tex
	return buf, nil
}

// rasterizeRune draws one rune's coverage into an alpha image whose bounds
// are the glyph box relative to the pen position. Returns nil for glyphs
// without coverage (spaces).
func rasterizeRune(face xfont.Face, r rune) *image.Alpha {
	bounds, _, ok := face.GlyphBounds(r)
	if !ok {
		return nil
	}
	minX := bounds.Min.X.Floor()
	minY := bounds.Min.Y.Floor()
	maxX := bounds.Max.X.Ceil()
	maxY := bounds.Max.Y.Ceil()
	if maxX <= minX || maxY <= minY {
		return nil
	}

	rect := image.Rect(minX, minY, maxX, maxY)
	dst := image.NewAlpha(rect)

	dot := fixed.Point26_6{X: 0, Y: 0}
	dr, mask, maskp, _, _ := face.Glyph(dot, r)
	if mask == nil {
		return nil
	}
	draw.DrawMask(dst, dr, image.White, image.Point{}, mask, maskp, draw.Over)
	return dst
}

// packAtlas packs glyph coverage images into a single alpha atlas using a
// shelf packer: glyphs flow left to right, wrapping to a new shelf when
// the row fills.
func packAtlas(covers map[rune]*image.Alpha) (*image.Alpha, map[rune]image.Rectangle) {
	const atlasWidth = 512
	const pad = 1

	// Deterministic packing order keeps texel rects stable across calls.
	runes := make([]rune, 0, len(covers))
	for r := range covers {
		runes = append(runes, r)
	}
	for i := 1; i < len(runes); i++ {
		for j := i; j > 0 && runes[j] < runes[j-1]; j-- {
			runes[j], runes[j-1] = runes[j-1], runes[j]
		}
	}

	rects := make(map[rune]image.Rectangle, len(covers))
	x, y, shelf := pad, pad, 0
	for _, r := range runes {
		cov := covers[r]
		if cov == nil || cov.Bounds().Empty() {
			continue
		}
		w, h := cov.Bounds().Dx(), cov.Bounds().Dy()
		if x+w+pad > atlasWidth {
			x = pad
			y += shelf + pad
			shelf = 0
		}
		rects[r] = image.Rect(x, y, x+w, y+h)
		x += w + pad
		if h > shelf {
			shelf = h
		}
	}
	atlasHeight := y + shelf + pad

	atlas := image.NewAlpha(image.Rect(0, 0, atlasWidth, atlasHeight))
	for r, rect := range rects {
		cov := covers[r]
		draw.Draw(atlas, rect, cov, cov.Bounds().Min, draw.Src)
	}
	return atlas, rects
}
