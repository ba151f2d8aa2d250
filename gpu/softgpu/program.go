package softgpu

import (
	"math"

	"github.com/gogpu/collage/gpu"
)

// programKind selects the fixed-function fragment stage for a program.
type programKind uint8

const (
	kindBlit programKind = iota
	kindSolid
	kindDistance
	kindGlyph
	kindCustom
)

// kindForProgram maps the engine's built-in program names onto fragment
// stages. Everything else is a user-authored shader, which softgpu
// approximates as a blit of its primary input.
func kindForProgram(name string) programKind {
	switch name {
	case gpu.ProgramBlit:
		return kindBlit
	case gpu.ProgramSolid:
		return kindSolid
	case gpu.ProgramDistance:
		return kindDistance
	case gpu.ProgramGlyph:
		return kindGlyph
	default:
		return kindCustom
	}
}

type program struct {
	name      string
	kind      programKind
	destroyed bool
}

func (p *program) Name() string { return p.name }
func (p *program) Destroy()     { p.destroyed = true }

// fragmentEnv is the resolved uniform state for one draw call.
type fragmentEnv struct {
	prog      *program
	transform gpu.Mat3
	source    *texture
	atlas     *texture
	color     [3]float32
	alpha     float32
}

// identityMat3 is the column-major vec4-padded identity.
var identityMat3 = gpu.Mat3{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}

func newFragmentEnv(p *program, uniforms []gpu.Uniform) *fragmentEnv {
	env := &fragmentEnv{
		prog:      p,
		transform: identityMat3,
		color:     [3]float32{1, 1, 1},
		alpha:     1,
	}
	for _, u := range uniforms {
		switch v := u.Value.(type) {
		case gpu.Mat3:
			if u.Name == "transform" {
				env.transform = v
			}
		case gpu.Sampler:
			tex, ok := v.Texture.(*texture)
			if !ok {
				continue
			}
			switch u.Name {
			case "atlas":
				env.atlas = tex
			default:
				// First sampler wins as the primary input; custom
				// shaders bind their primary image first.
				if env.source == nil || u.Name == "source" {
					env.source = tex
				}
			}
		case gpu.Float3:
			if u.Name == "color" {
				env.color = v
			}
		case gpu.Float1:
			if u.Name == "alpha" {
				env.alpha = float32(v)
			}
		}
	}
	return env
}

// applyTransform runs the vertex stage's mat3 multiply on a clip-space
// position.
func (env *fragmentEnv) applyTransform(x, y float32) (float32, float32) {
	m := &env.transform
	return m[0]*x + m[4]*y + m[8], m[1]*x + m[5]*y + m[9]
}

// shade computes the fragment color at interpolated (u, v, z).
func (env *fragmentEnv) shade(u, v, z float32) (r, g, b, a float32) {
	switch env.prog.kind {
	case kindSolid:
		return env.color[0], env.color[1], env.color[2], env.alpha
	case kindDistance:
		d := float32(math.Sqrt(float64(z)))
		return d, d, d, 1
	case kindGlyph:
		cov := float32(1)
		if env.atlas != nil {
			cov, _, _, _ = env.atlas.sample(u, v)
		}
		return env.color[0], env.color[1], env.color[2], cov * env.alpha
	default: // kindBlit, kindCustom
		if env.source == nil {
			return 0, 0, 0, 0
		}
		r, g, b, a = env.source.sample(u, v)
		return r, g, b, a * env.alpha
	}
}
