// Package softgpu implements the gpu.Device contract entirely on the CPU:
// triangle rasterization with barycentric interpolation, depth testing,
// alpha blending, and nearest-neighbor texture sampling.
//
// It is the fallback backend and the one the test suite runs against, so
// every pipeline feature the engine relies on (instanced meshes, depth-
// encoded distance fields, offscreen targets with viewport save/restore)
// is implemented for real. The one approximation: user-authored fragment
// sources are not interpreted; they execute as "sample the primary input",
// which preserves graph evaluation order and dimensions for headless runs.
package softgpu

import (
	"fmt"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
)

func init() {
	gpu.Register(gpu.BackendSoftware, func() (gpu.Device, error) {
		return New(), nil
	})
}

// Device is the software implementation of gpu.Device.
type Device struct {
	invalid  *texture
	screen   *texture
	current  *texture
	saved    []savedTarget
	viewport [4]int
	closed   bool
}

// savedTarget is the binding state stacked by nested BeginTarget calls,
// including any sub-viewport the host set on the outer target.
type savedTarget struct {
	tex      *texture
	viewport [4]int
}

// New creates a software device with no default framebuffer. Rendering must
// target offscreen textures until SetScreen is called.
func New() *Device {
	d := &Device{}
	d.invalid = newInvalidTexture()
	return d
}

// SetScreen gives the device a default framebuffer of the given size, the
// target bound by BeginTarget(nil). Used by hosts that present the top-level
// frame (and by tests standing in for one).
func (d *Device) SetScreen(width, height int) error {
	t, err := d.CreateTexture(gpu.TextureConfig{
		Width:        width,
		Height:       height,
		Format:       gpu.FormatRGBA8,
		RenderTarget: true,
		Label:        "screen",
	})
	if err != nil {
		return err
	}
	if d.screen != nil {
		d.screen.Destroy()
	}
	d.screen = t.(*texture)
	return nil
}

// Screen returns the default framebuffer texture, or nil if SetScreen has
// not been called.
func (d *Device) Screen() gpu.Texture {
	if d.screen == nil {
		return nil
	}
	return d.screen
}

// Name returns the backend identifier.
func (d *Device) Name() string { return gpu.BackendSoftware }

// CreateTexture creates a new software texture.
func (d *Device) CreateTexture(config gpu.TextureConfig) (gpu.Texture, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", gpu.ErrInvalidDimensions, config.Width, config.Height)
	}
	t := &texture{
		width:  config.Width,
		height: config.Height,
		format: config.Format,
		label:  config.Label,
		pix:    make([]byte, config.Width*config.Height*config.Format.BytesPerPixel()),
	}
	if config.Depth {
		t.depth = make([]float32, config.Width*config.Height)
	}
	return t, nil
}

// CompileProgram resolves a program against the built-in fragment stages.
// Unknown fragment sources compile to the pass-through stage; softgpu does
// not interpret WGSL.
func (d *Device) CompileProgram(config gpu.ProgramConfig) (gpu.Program, error) {
	if config.FragmentSource == "" {
		return nil, fmt.Errorf("%w: program %q has no fragment source", gpu.ErrCompileFailed, config.Name)
	}
	return &program{name: config.Name, kind: kindForProgram(config.Name)}, nil
}

// InvalidTexture returns the sentinel texture bound for empty image slots.
func (d *Device) InvalidTexture() gpu.Texture { return d.invalid }

// BeginTarget binds and clears a render target. Passing nil binds the
// default framebuffer configured with SetScreen.
func (d *Device) BeginTarget(t gpu.Texture) error {
	target := d.screen
	if t != nil {
		var ok bool
		target, ok = t.(*texture)
		if !ok {
			return fmt.Errorf("softgpu: foreign texture %T", t)
		}
	}
	if target == nil {
		return gpu.ErrNoTarget
	}
	if target.destroyed {
		return gpu.ErrTextureReleased
	}

	d.saved = append(d.saved, savedTarget{tex: d.current, viewport: d.viewport})
	d.current = target
	target.clear()
	d.viewport = [4]int{0, 0, target.width, target.height}
	return nil
}

// EndTarget restores the previously bound render target and its viewport.
func (d *Device) EndTarget() {
	if len(d.saved) == 0 {
		d.current = nil
		return
	}
	prev := d.saved[len(d.saved)-1]
	d.saved = d.saved[:len(d.saved)-1]
	d.current = prev.tex
	if d.current != nil {
		d.viewport = prev.viewport
	}
}

// SetViewport sets the viewport rectangle in target pixels.
func (d *Device) SetViewport(x, y, w, h int) {
	d.viewport = [4]int{x, y, w, h}
}

// Viewport returns the current viewport rectangle.
func (d *Device) Viewport() (x, y, w, h int) {
	return d.viewport[0], d.viewport[1], d.viewport[2], d.viewport[3]
}

// Draw rasterizes one draw call into the current target.
func (d *Device) Draw(call gpu.DrawCall) error {
	if d.current == nil {
		return gpu.ErrNoTarget
	}
	p, ok := call.Program.(*program)
	if !ok || p == nil {
		return fmt.Errorf("%w: draw without a program", gpu.ErrCompileFailed)
	}
	if call.DepthTest && d.current.depth == nil {
		return gpu.ErrTargetNotRenderable
	}

	collage.Logger().Debug("softgpu draw",
		"program", p.name, "instances", max(len(call.Instances), 1), "depth", call.DepthTest)

	mesh := call.Mesh
	if mesh == nil {
		mesh = &unitQuad
	}
	instances := call.Instances
	if len(instances) == 0 {
		instances = identityInstance
	}

	env := newFragmentEnv(p, call.Uniforms)
	for _, inst := range instances {
		d.drawInstance(mesh, inst, env, call)
	}
	return nil
}

// ReadPixels reads a texture back as RGBA8 bytes.
func (d *Device) ReadPixels(t gpu.Texture) ([]byte, error) {
	tex, ok := t.(*texture)
	if !ok {
		return nil, fmt.Errorf("softgpu: foreign texture %T", t)
	}
	if tex.destroyed {
		return nil, gpu.ErrTextureReleased
	}

	out := make([]byte, tex.width*tex.height*4)
	if tex.format == gpu.FormatRGBA8 {
		copy(out, tex.pix)
		return out, nil
	}
	// R8 expands to opaque grayscale.
	for i, v := range tex.pix {
		out[i*4+0] = v
		out[i*4+1] = v
		out[i*4+2] = v
		out[i*4+3] = 255
	}
	return out, nil
}

// Close releases the device. Outstanding textures become unusable.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true
	d.invalid.Destroy()
	if d.screen != nil {
		d.screen.Destroy()
	}
	d.current = nil
	d.saved = nil
}

// identityInstance is the implicit single instance of a non-instanced draw.
var identityInstance = []gpu.Instance{{Stretch: 1}}

// unitQuad is the default mesh: the [-1,1]^2 square as two triangles, with
// texture coordinates putting the image upright (clip Y up, texture V down).
var unitQuad = gpu.Mesh{Vertices: []gpu.Vertex{
	{X: -1, Y: -1, U: 0, V: 1}, {X: 1, Y: -1, U: 1, V: 1}, {X: 1, Y: 1, U: 1, V: 0},
	{X: -1, Y: -1, U: 0, V: 1}, {X: 1, Y: 1, U: 1, V: 0}, {X: -1, Y: 1, U: 0, V: 0},
}}
