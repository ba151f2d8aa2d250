// Package sdf builds stroke distance-field textures on the GPU. Instead
// of a CPU distance transform, it renders one cone per stroke point and
// one tent per stroke segment with the depth test enabled; the depth
// buffer keeps the smallest distance at each texel and the color
// attachment stores its square root. The field is exact up to the cone
// fan's angular resolution and saturates at the brush radius.
package sdf

import (
	_ "embed"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
)

//go:embed distance.wgsl
var distanceWGSL string

const (
	defaultConePoints = 32
	defaultRadius     = 0.25
)

// Generator renders stroke distance fields. The zero value uses the
// default fan resolution and brush radius.
type Generator struct {
	// ConePoints is the number of triangles in each cone fan.
	ConePoints int
	// Radius is the brush radius in clip-space units. Distance is
	// normalized so the rim of the brush reads as 1.
	Radius float32

	prog    gpu.Program
	progDev gpu.Device
	cone    *gpu.Mesh
	tent    *gpu.Mesh
}

func (g *Generator) conePoints() int {
	if g.ConePoints > 0 {
		return g.ConePoints
	}
	return defaultConePoints
}

func (g *Generator) radius() float32 {
	if g.Radius > 0 {
		return g.Radius
	}
	return defaultRadius
}

func (g *Generator) program(dev gpu.Device) (gpu.Program, error) {
	if g.prog != nil && g.progDev == dev {
		return g.prog, nil
	}
	prog, err := dev.CompileProgram(gpu.ProgramConfig{
		Name:           gpu.ProgramDistance,
		FragmentSource: distanceWGSL,
	})
	if err != nil {
		return nil, fmt.Errorf("sdf: compile distance program: %w", err)
	}
	g.prog = prog
	g.progDev = dev
	return prog, nil
}

// Generate renders the distance field of the given strokes into a texture
// of the given size. When existing is non-nil and matches the size it is
// reused as the target, otherwise a new texture is allocated and existing
// is destroyed. Texels within the brush radius of a stroke hold
// sqrt(distance/radius) with alpha 1; untouched texels stay transparent.
func (g *Generator) Generate(dev gpu.Device, strokes [][]collage.Point, width, height int, existing gpu.Texture) (gpu.Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("sdf: field %dx%d: %w", width, height, gpu.ErrInvalidDimensions)
	}
	prog, err := g.program(dev)
	if err != nil {
		return nil, err
	}

	target := existing
	if target == nil || target.Width() != width || target.Height() != height {
		if existing != nil {
			existing.Destroy()
		}
		target, err = dev.CreateTexture(gpu.TextureConfig{
			Width:        width,
			Height:       height,
			Format:       gpu.FormatRGBA8,
			RenderTarget: true,
			Depth:        true,
			Label:        "stroke distance field",
		})
		if err != nil {
			return nil, fmt.Errorf("sdf: create field texture: %w", err)
		}
	}

	cones, tents := g.instances(strokes)

	if err := dev.BeginTarget(target); err != nil {
		return nil, fmt.Errorf("sdf: bind field target: %w", err)
	}
	// Stroke points are already in the field's clip space.
	uniforms := []gpu.Uniform{
		{Name: "transform", Value: gpu.Mat3(collage.Identity().Cols())},
	}
	if len(cones) > 0 {
		err = dev.Draw(gpu.DrawCall{
			Program:   prog,
			Mesh:      g.coneMesh(),
			Instances: cones,
			Uniforms:  uniforms,
			Blend:     gpu.BlendNone,
			DepthTest: true,
		})
	}
	if err == nil && len(tents) > 0 {
		err = dev.Draw(gpu.DrawCall{
			Program:   prog,
			Mesh:      g.tentMesh(),
			Instances: tents,
			Uniforms:  uniforms,
			Blend:     gpu.BlendNone,
			DepthTest: true,
		})
	}
	dev.EndTarget()
	if err != nil {
		return nil, fmt.Errorf("sdf: render field: %w", err)
	}
	return target, nil
}

// instances computes per-cone and per-tent placement. Cones sit on every
// stroke point; tents span consecutive point pairs, stretched to the
// segment length and rotated to its direction.
func (g *Generator) instances(strokes [][]collage.Point) (cones, tents []gpu.Instance) {
	for _, stroke := range strokes {
		for _, p := range stroke {
			cones = append(cones, gpu.Instance{
				OffsetX: float32(p.X),
				OffsetY: float32(p.Y),
				Stretch: 1,
			})
		}
		for i := 1; i < len(stroke); i++ {
			a, b := stroke[i-1], stroke[i]
			dx := float32(b.X - a.X)
			dy := float32(b.Y - a.Y)
			tents = append(tents, gpu.Instance{
				OffsetX:  float32(a.X+b.X) / 2,
				OffsetY:  float32(a.Y+b.Y) / 2,
				Stretch:  math32.Hypot(dx, dy),
				Rotation: math32.Atan2(dy, dx),
			})
		}
	}
	return cones, tents
}

// coneMesh builds a fan of triangles approximating a right circular cone:
// apex at the origin with z 0, rim at the brush radius with z 1. The mesh
// is shared across instances and built once.
func (g *Generator) coneMesh() *gpu.Mesh {
	if g.cone != nil {
		return g.cone
	}
	n := g.conePoints()
	r := g.radius()
	step := 2 * math32.Pi / float32(n)

	mesh := &gpu.Mesh{Vertices: make([]gpu.Vertex, 0, n*3)}
	for i := 0; i < n; i++ {
		a0 := float32(i) * step
		a1 := float32(i+1) * step
		mesh.Vertices = append(mesh.Vertices,
			gpu.Vertex{X: 0, Y: 0, Z: 0},
			gpu.Vertex{X: r * math32.Cos(a0), Y: r * math32.Sin(a0), Z: 1},
			gpu.Vertex{X: r * math32.Cos(a1), Y: r * math32.Sin(a1), Z: 1},
		)
	}
	g.cone = mesh
	return mesh
}

// tentMesh builds the prism connecting two unit-spaced cones: a ridge
// along the x axis at z 0 with slopes falling to z 1 at the brush radius
// on either side. Instances stretch it along x to the segment length.
func (g *Generator) tentMesh() *gpu.Mesh {
	if g.tent != nil {
		return g.tent
	}
	r := g.radius()
	v := func(x, y, z float32) gpu.Vertex { return gpu.Vertex{X: x, Y: y, Z: z} }

	mesh := &gpu.Mesh{Vertices: []gpu.Vertex{
		// ridge to +y edge
		v(-0.5, 0, 0), v(0.5, 0, 0), v(0.5, r, 1),
		v(-0.5, 0, 0), v(0.5, r, 1), v(-0.5, r, 1),
		// ridge to -y edge
		v(-0.5, 0, 0), v(0.5, -r, 1), v(0.5, 0, 0),
		v(-0.5, 0, 0), v(-0.5, -r, 1), v(0.5, -r, 1),
	}}
	g.tent = mesh
	return mesh
}
