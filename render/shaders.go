package render

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/collage/gpu"
)

//go:embed shaders/blit.wgsl
var blitWGSL string

//go:embed shaders/solid.wgsl
var solidWGSL string

//go:embed shaders/glyph.wgsl
var glyphWGSL string

// builtins holds the engine's fixed programs, compiled lazily against the
// renderer's device.
type builtins struct {
	blit  gpu.Program
	solid gpu.Program
	glyph gpu.Program
}

func (b *builtins) get(dev gpu.Device, slot *gpu.Program, name, source string) (gpu.Program, error) {
	if *slot != nil {
		return *slot, nil
	}
	prog, err := dev.CompileProgram(gpu.ProgramConfig{Name: name, FragmentSource: source})
	if err != nil {
		return nil, fmt.Errorf("render: compile %s program: %w", name, err)
	}
	*slot = prog
	return prog, nil
}

func (b *builtins) blitProgram(dev gpu.Device) (gpu.Program, error) {
	return b.get(dev, &b.blit, gpu.ProgramBlit, blitWGSL)
}

func (b *builtins) solidProgram(dev gpu.Device) (gpu.Program, error) {
	return b.get(dev, &b.solid, gpu.ProgramSolid, solidWGSL)
}

func (b *builtins) glyphProgram(dev gpu.Device) (gpu.Program, error) {
	return b.get(dev, &b.glyph, gpu.ProgramGlyph, glyphWGSL)
}

func (b *builtins) destroy() {
	for _, p := range []gpu.Program{b.blit, b.solid, b.glyph} {
		if p != nil {
			p.Destroy()
		}
	}
	b.blit, b.solid, b.glyph = nil, nil, nil
}
