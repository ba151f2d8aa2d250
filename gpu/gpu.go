// Package gpu defines the rendering capability set the compositing engine
// consumes: texture creation and upload, offscreen render targets, shader
// program compilation, draw-call submission, and pixel readback.
//
// Implementations register themselves with Register; softgpu provides a
// complete CPU implementation, wgpu a hardware one. The engine never talks
// to a graphics API directly, only to a Device.
package gpu

import (
	"errors"
	"fmt"
)

// Common device errors.
var (
	// ErrInvalidDimensions is returned when a texture is created with
	// non-positive width or height.
	ErrInvalidDimensions = errors.New("gpu: invalid texture dimensions")

	// ErrTextureReleased is returned when operating on a destroyed texture.
	ErrTextureReleased = errors.New("gpu: texture has been destroyed")

	// ErrSizeMismatch is returned when uploaded data does not match the
	// texture's dimensions and format.
	ErrSizeMismatch = errors.New("gpu: upload size does not match texture")

	// ErrCompileFailed is returned when shader program compilation fails.
	ErrCompileFailed = errors.New("gpu: program compilation failed")

	// ErrNoTarget is returned when drawing without a bound render target.
	ErrNoTarget = errors.New("gpu: no render target bound")

	// ErrTargetNotRenderable is returned when a texture lacking a depth
	// attachment is used for a depth-tested draw.
	ErrTargetNotRenderable = errors.New("gpu: target has no depth attachment")
)

// TextureFormat represents the pixel format of a texture.
type TextureFormat uint8

const (
	// FormatRGBA8 is the standard RGBA format with 8 bits per channel.
	FormatRGBA8 TextureFormat = iota

	// FormatR8 is single-channel 8-bit format, used for coverage masks and
	// distance fields.
	FormatR8
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatR8:
		return "R8"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f TextureFormat) BytesPerPixel() int {
	if f == FormatR8 {
		return 1
	}
	return 4
}

// TextureConfig holds configuration for creating a new texture.
type TextureConfig struct {
	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the pixel format.
	Format TextureFormat

	// RenderTarget requests that the texture can be bound as an offscreen
	// render target.
	RenderTarget bool

	// Depth requests a depth attachment, needed for depth-tested draws.
	Depth bool

	// Label is an optional debug label.
	Label string
}

// Texture represents a device texture resource. Textures are created,
// uploaded and destroyed on the thread that owns the device.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() int

	// Height returns the texture height in pixels.
	Height() int

	// Format returns the texture pixel format.
	Format() TextureFormat

	// Upload replaces the texture contents with the given pixel data,
	// which must be exactly Width*Height*BytesPerPixel bytes in row-major
	// order.
	Upload(data []byte) error

	// Destroy releases the texture's device resources. Destroy is
	// idempotent.
	Destroy()
}

// ProgramConfig holds the sources for a shader program. Sources are WGSL;
// a device compiles them on first use and may reject invalid source.
type ProgramConfig struct {
	// Name identifies the program in logs and errors.
	Name string

	// VertexSource is the vertex stage. Empty selects the device's
	// standard full-screen-quad vertex stage.
	VertexSource string

	// FragmentSource is the fragment stage.
	FragmentSource string
}

// Program represents a compiled shader program.
type Program interface {
	// Name returns the program's configured name.
	Name() string

	// Destroy releases the program's device resources.
	Destroy()
}

// Names of the engine's built-in programs. Devices that cannot interpret
// arbitrary fragment sources (softgpu) recognize these names and run the
// equivalent fixed-function stage instead.
const (
	// ProgramBlit samples the "source" texture across the quad.
	ProgramBlit = "blit"

	// ProgramSolid outputs the flat "color" uniform.
	ProgramSolid = "solid"

	// ProgramDistance writes sqrt(depth) to the red channel; used by the
	// distance field pass.
	ProgramDistance = "distance"

	// ProgramGlyph samples the R8 "atlas" texture as coverage for the
	// "color" uniform.
	ProgramGlyph = "glyph"
)

// BlendMode selects the fixed-function blend state for a draw.
type BlendMode uint8

const (
	// BlendNone overwrites the destination.
	BlendNone BlendMode = iota

	// BlendAlpha is standard alpha blending:
	// src*SRC_ALPHA + dst*ONE_MINUS_SRC_ALPHA.
	BlendAlpha
)

// Vertex is one mesh vertex. X and Y are positions in the mesh's local
// space; Z carries per-vertex depth (used by the distance field pass);
// U and V are texture coordinates.
type Vertex struct {
	X, Y, Z float32
	U, V    float32
}

// Mesh is a triangle list.
type Mesh struct {
	Vertices []Vertex
}

// Instance carries per-instance placement for an instanced draw: the mesh
// is stretched along X by Stretch, rotated by Rotation radians, then moved
// by Offset.
type Instance struct {
	OffsetX, OffsetY float32
	Stretch          float32
	Rotation         float32
}

// Uniform is one named program input.
type Uniform struct {
	Name  string
	Value UniformValue
}

// UniformValue is the closed set of values a uniform can take.
type UniformValue interface {
	isUniformValue()
}

// Float1 is a scalar float uniform.
type Float1 float32

// Float2 is a two-component vector uniform.
type Float2 [2]float32

// Float3 is a three-component vector uniform.
type Float3 [3]float32

// Int1 is a scalar integer uniform.
type Int1 int32

// Mat3 is a 3x3 matrix uniform in column-major vec4-padded layout, as
// produced by collage.Transform.Cols.
type Mat3 [12]float32

// Sampler binds a texture to a sampler uniform.
type Sampler struct {
	Texture Texture
}

func (Float1) isUniformValue()  {}
func (Float2) isUniformValue()  {}
func (Float3) isUniformValue()  {}
func (Int1) isUniformValue()    {}
func (Mat3) isUniformValue()    {}
func (Sampler) isUniformValue() {}

// DrawCall describes one draw submission.
type DrawCall struct {
	// Program is the shader program to run. Required.
	Program Program

	// Mesh is the triangle list to draw. Nil draws the unit quad
	// ([-1,1]^2, two triangles at Z=0).
	Mesh *Mesh

	// Instances holds per-instance placement data. Empty draws a single
	// instance with identity placement.
	Instances []Instance

	// Uniforms are the program inputs for this draw.
	Uniforms []Uniform

	// Blend selects the blend state.
	Blend BlendMode

	// DepthTest enables the depth test; fragments with smaller Z win.
	// The bound target must have a depth attachment.
	DepthTest bool
}

// Device is the rendering backend contract. A Device and all resources
// created from it must only be used from the thread that owns it; the
// engine is single-threaded by design.
type Device interface {
	// Name returns the backend identifier (e.g. "softgpu", "wgpu").
	Name() string

	// CreateTexture creates a new texture. The contents are undefined
	// until Upload or a render pass writes them.
	CreateTexture(config TextureConfig) (Texture, error)

	// CompileProgram compiles a shader program.
	CompileProgram(config ProgramConfig) (Program, error)

	// InvalidTexture returns the device's sentinel texture, used when an
	// image binding references nothing. It is owned by the device and
	// must not be destroyed by the caller.
	InvalidTexture() Texture

	// BeginTarget binds a texture as the current render target and clears
	// it (color to transparent black, depth to the far plane). Passing
	// nil binds the device's default framebuffer, if it has one.
	BeginTarget(t Texture) error

	// EndTarget restores the previously bound render target.
	EndTarget()

	// SetViewport sets the viewport rectangle in target pixels.
	SetViewport(x, y, w, h int)

	// Viewport returns the current viewport rectangle.
	Viewport() (x, y, w, h int)

	// Draw submits one draw call against the current target. The call
	// returns after submission; completion is guaranteed before ReadPixels
	// observes the target.
	Draw(call DrawCall) error

	// ReadPixels reads a texture back as RGBA8 bytes, row-major,
	// top row first. R8 textures expand to opaque grayscale RGBA.
	ReadPixels(t Texture) ([]byte, error)

	// Close releases all device resources.
	Close()
}
