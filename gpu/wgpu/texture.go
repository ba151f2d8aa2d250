package wgpu

import (
	"fmt"

	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// toWGPUFormat converts an engine texture format to the wgpu format.
func toWGPUFormat(f gpu.TextureFormat) gputypes.TextureFormat {
	switch f {
	case gpu.FormatR8:
		return gputypes.TextureFormatR8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// texture wraps a HAL texture and its view, plus an optional depth/stencil
// attachment for depth-tested targets.
type texture struct {
	dev *Device

	tex  hal.Texture
	view hal.TextureView

	depthTex  hal.Texture
	depthView hal.TextureView

	width  int
	height int
	format gpu.TextureFormat

	renderTarget bool
	label        string
	released     bool
}

// CreateTexture creates a new device texture. The contents are undefined
// until Upload or a render pass writes them.
func (d *Device) CreateTexture(config gpu.TextureConfig) (gpu.Texture, error) {
	if d.closed {
		return nil, ErrDeviceClosed
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", gpu.ErrInvalidDimensions, config.Width, config.Height)
	}

	usage := gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopySrc |
		gputypes.TextureUsageCopyDst
	if config.RenderTarget {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	size := hal.Extent3D{
		Width:              uint32(config.Width),
		Height:             uint32(config.Height),
		DepthOrArrayLayers: 1,
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         config.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        toWGPUFormat(config.Format),
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture %q: %w", config.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: config.Label + "_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create texture view %q: %w", config.Label, err)
	}

	t := &texture{
		dev:          d,
		tex:          tex,
		view:         view,
		width:        config.Width,
		height:       config.Height,
		format:       config.Format,
		renderTarget: config.RenderTarget,
		label:        config.Label,
	}

	if config.Depth {
		depthTex, err := d.device.CreateTexture(&hal.TextureDescriptor{
			Label:         config.Label + "_depth",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        gputypes.TextureFormatDepth24PlusStencil8,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("wgpu: create depth texture %q: %w", config.Label, err)
		}
		t.depthTex = depthTex
		depthView, err := d.device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
			Label: config.Label + "_depth_view",
		})
		if err != nil {
			t.Destroy()
			return nil, fmt.Errorf("wgpu: create depth view %q: %w", config.Label, err)
		}
		t.depthView = depthView
	}
	return t, nil
}

// Width returns the texture width in pixels.
func (t *texture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *texture) Height() int { return t.height }

// Format returns the texture pixel format.
func (t *texture) Format() gpu.TextureFormat { return t.format }

// Upload replaces the texture contents with the given pixel data.
func (t *texture) Upload(data []byte) error {
	if t.released {
		return gpu.ErrTextureReleased
	}
	want := t.width * t.height * t.format.BytesPerPixel()
	if len(data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", gpu.ErrSizeMismatch, len(data), want)
	}

	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(t.width * t.format.BytesPerPixel()),
			RowsPerImage: uint32(t.height),
		},
		&hal.Extent3D{
			Width:              uint32(t.width),
			Height:             uint32(t.height),
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// Destroy releases the texture's device resources. Idempotent.
func (t *texture) Destroy() {
	if t.released {
		return
	}
	t.released = true

	device := t.dev.device
	if device == nil {
		return
	}
	if t.depthView != nil {
		device.DestroyTextureView(t.depthView)
		t.depthView = nil
	}
	if t.depthTex != nil {
		device.DestroyTexture(t.depthTex)
		t.depthTex = nil
	}
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		device.DestroyTexture(t.tex)
		t.tex = nil
	}
}
