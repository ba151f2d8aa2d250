package softgpu

import (
	"math"

	"github.com/gogpu/collage/gpu"
)

// shadedVertex is a vertex after the vertex stage, in screen space.
type shadedVertex struct {
	x, y float32 // screen pixels
	z    float32
	u, v float32
}

// drawInstance runs the vertex stage for one instance and rasterizes the
// resulting triangles into the current target.
func (d *Device) drawInstance(mesh *gpu.Mesh, inst gpu.Instance, env *fragmentEnv, call gpu.DrawCall) {
	target := d.current
	vx, vy, vw, vh := d.viewport[0], d.viewport[1], d.viewport[2], d.viewport[3]

	sin := float32(math.Sin(float64(inst.Rotation)))
	cos := float32(math.Cos(float64(inst.Rotation)))

	verts := make([]shadedVertex, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		// Instance placement: stretch along X, rotate, then offset.
		x := v.X * inst.Stretch
		y := v.Y
		x, y = x*cos-y*sin+inst.OffsetX, x*sin+y*cos+inst.OffsetY

		// Accumulated transform (clip space).
		x, y = env.applyTransform(x, y)

		// Viewport mapping; clip Y up becomes pixel Y down.
		verts[i] = shadedVertex{
			x: float32(vx) + (x+1)/2*float32(vw),
			y: float32(vy) + (1-y)/2*float32(vh),
			z: v.Z,
			u: v.U,
			v: v.V,
		}
	}

	for i := 0; i+2 < len(verts); i += 3 {
		d.rasterTriangle(target, verts[i], verts[i+1], verts[i+2], env, call)
	}
}

// edgeFn is the signed doubled area of triangle (a, b, p).
func edgeFn(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// rasterTriangle fills one screen-space triangle with barycentric
// interpolation of depth and texture coordinates.
func (d *Device) rasterTriangle(target *texture, a, b, c shadedVertex, env *fragmentEnv, call gpu.DrawCall) {
	area := edgeFn(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 {
		return
	}

	minX := int(math.Floor(float64(min3(a.x, b.x, c.x))))
	maxX := int(math.Ceil(float64(max3(a.x, b.x, c.x))))
	minY := int(math.Floor(float64(min3(a.y, b.y, c.y))))
	maxY := int(math.Ceil(float64(max3(a.y, b.y, c.y))))

	minX = clampInt(minX, 0, target.width)
	maxX = clampInt(maxX, 0, target.width)
	minY = clampInt(minY, 0, target.height)
	maxY = clampInt(maxY, 0, target.height)

	for y := minY; y < maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x < maxX; x++ {
			px := float32(x) + 0.5

			w0 := edgeFn(b.x, b.y, c.x, c.y, px, py)
			w1 := edgeFn(c.x, c.y, a.x, a.y, px, py)
			w2 := edgeFn(a.x, a.y, b.x, b.y, px, py)

			// Accept both windings: all weights must share the area's sign.
			if area > 0 {
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
			} else {
				if w0 > 0 || w1 > 0 || w2 > 0 {
					continue
				}
			}

			w0 /= area
			w1 /= area
			w2 /= area

			z := w0*a.z + w1*b.z + w2*c.z
			if call.DepthTest {
				di := y*target.width + x
				if z >= target.depth[di] {
					continue
				}
				target.depth[di] = z
			}

			u := w0*a.u + w1*b.u + w2*c.u
			v := w0*a.v + w1*b.v + w2*c.v

			fr, fg, fb, fa := env.shade(u, v, z)
			target.blendPixel(x, y, fr, fg, fb, fa, call.Blend)
		}
	}
}

func min3(a, b, c float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
