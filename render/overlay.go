package render

import (
	"math"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/scene"
)

// Overlay geometry sizes, in the object's clip-space units.
const (
	lineHalfWidth    = 0.006
	pointHalfSize    = 0.015
	selectedHalfSize = 0.024
)

var (
	outlineColor  = gpu.Float3{1, 1, 1}
	pointColor    = gpu.Float3{0.3, 0.7, 1}
	selectedColor = gpu.Float3{1, 0.45, 0.25}
	frameColor    = gpu.Float3{0.5, 1, 0.5}
)

// lineMesh is a unit segment: instances stretch it along x to the segment
// length and rotate it into place.
var lineMesh = &gpu.Mesh{Vertices: []gpu.Vertex{
	{X: -0.5, Y: -lineHalfWidth}, {X: 0.5, Y: -lineHalfWidth}, {X: 0.5, Y: lineHalfWidth},
	{X: -0.5, Y: -lineHalfWidth}, {X: 0.5, Y: lineHalfWidth}, {X: -0.5, Y: lineHalfWidth},
}}

func markerMesh(half float32) *gpu.Mesh {
	return &gpu.Mesh{Vertices: []gpu.Vertex{
		{X: -half, Y: -half}, {X: half, Y: -half}, {X: half, Y: half},
		{X: -half, Y: -half}, {X: half, Y: half}, {X: -half, Y: half},
	}}
}

var (
	pointMesh    = markerMesh(pointHalfSize)
	selectedMesh = markerMesh(selectedHalfSize)
)

// segmentInstance places the unit segment between two points.
func segmentInstance(a, b collage.Point) gpu.Instance {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return gpu.Instance{
		OffsetX:  float32(a.X+b.X) / 2,
		OffsetY:  float32(a.Y+b.Y) / 2,
		Stretch:  float32(math.Hypot(dx, dy)),
		Rotation: float32(math.Atan2(dy, dx)),
	}
}

func (r *Renderer) drawSolid(mesh *gpu.Mesh, instances []gpu.Instance, color gpu.Float3, alpha float64, t collage.Transform) error {
	if len(instances) == 0 {
		return nil
	}
	prog, err := r.progs.solidProgram(r.dev)
	if err != nil {
		return err
	}
	return r.dev.Draw(gpu.DrawCall{
		Program:   prog,
		Mesh:      mesh,
		Instances: instances,
		Uniforms: []gpu.Uniform{
			{Name: "transform", Value: gpu.Mat3(t.Cols())},
			{Name: "color", Value: color},
			{Name: "alpha", Value: gpu.Float1(alpha)},
		},
		Blend: gpu.BlendAlpha,
	})
}

// drawPathOverlay draws the closed outline of a path's control polygon
// and a marker on every control point, with the selected point
// highlighted.
func (r *Renderer) drawPathOverlay(p *scene.Path, t collage.Transform) error {
	if len(p.Points) == 0 {
		return nil
	}

	if len(p.Points) >= 2 {
		segments := make([]gpu.Instance, 0, len(p.Points))
		for i := range p.Points {
			a := p.Points[i]
			b := p.Points[(i+1)%len(p.Points)]
			segments = append(segments, segmentInstance(a, b))
		}
		if err := r.drawSolid(lineMesh, segments, outlineColor, 0.8, t); err != nil {
			return err
		}
	}

	markers := make([]gpu.Instance, 0, len(p.Points))
	for i, pt := range p.Points {
		if i == p.Selected {
			continue
		}
		markers = append(markers, gpu.Instance{
			OffsetX: float32(pt.X),
			OffsetY: float32(pt.Y),
			Stretch: 1,
		})
	}
	if err := r.drawSolid(pointMesh, markers, pointColor, 1, t); err != nil {
		return err
	}

	if p.Selected >= 0 && p.Selected < len(p.Points) {
		sel := p.Points[p.Selected]
		return r.drawSolid(selectedMesh, []gpu.Instance{{
			OffsetX: float32(sel.X),
			OffsetY: float32(sel.Y),
			Stretch: 1,
		}}, selectedColor, 1, t)
	}
	return nil
}

// drawChildFrames outlines each child's placed unit square, for the
// composition debug overlay.
func (r *Renderer) drawChildFrames(comp *scene.Composition, t collage.Transform) error {
	corners := [4]collage.Point{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
	for _, child := range comp.Children {
		segments := make([]gpu.Instance, 0, 4)
		for i := range corners {
			a := child.Placement.Apply(corners[i])
			b := child.Placement.Apply(corners[(i+1)%4])
			segments = append(segments, segmentInstance(a, b))
		}
		if err := r.drawSolid(lineMesh, segments, frameColor, 0.6, t); err != nil {
			return err
		}
	}
	return nil
}
