package scene

import (
	"fmt"

	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/text"
)

// ProgramID names a fragment program in the document's program list.
type ProgramID uint32

// ProgramSpec is the persisted form of a shader or brush program.
type ProgramSpec struct {
	Name           string
	FragmentSource string
}

// ProgramRegistry holds the document's programs. Specs are persisted;
// compiled programs are built lazily on first use against the current
// device and dropped on Reset.
type ProgramRegistry struct {
	specs    []ProgramSpec
	compiled []gpu.Program
}

// Add registers a program spec and returns its id.
func (r *ProgramRegistry) Add(spec ProgramSpec) ProgramID {
	r.specs = append(r.specs, spec)
	r.compiled = append(r.compiled, nil)
	return ProgramID(len(r.specs) - 1)
}

// Len returns the number of registered programs.
func (r *ProgramRegistry) Len() int { return len(r.specs) }

// Spec returns the persisted form of a program.
func (r *ProgramRegistry) Spec(id ProgramID) (ProgramSpec, bool) {
	if int(id) >= len(r.specs) {
		return ProgramSpec{}, false
	}
	return r.specs[int(id)], true
}

// Program returns the compiled program, compiling it on first use.
func (r *ProgramRegistry) Program(dev gpu.Device, id ProgramID) (gpu.Program, error) {
	if int(id) >= len(r.specs) {
		return nil, fmt.Errorf("scene: unknown program %d", id)
	}
	if r.compiled[int(id)] != nil {
		return r.compiled[int(id)], nil
	}
	spec := r.specs[int(id)]
	prog, err := dev.CompileProgram(gpu.ProgramConfig{
		Name:           spec.Name,
		FragmentSource: spec.FragmentSource,
	})
	if err != nil {
		return nil, fmt.Errorf("scene: compile program %q: %w", spec.Name, err)
	}
	r.compiled[int(id)] = prog
	return prog, nil
}

// Reset drops all compiled programs, for example after switching devices.
// Specs are kept.
func (r *ProgramRegistry) Reset() {
	for i, prog := range r.compiled {
		if prog != nil {
			prog.Destroy()
			r.compiled[i] = nil
		}
	}
}

// FontID names a font in the document's font list.
type FontID uint32

// FontRegistry holds the document's fonts. Paths are persisted; parsed
// faces are loaded lazily on first use.
type FontRegistry struct {
	paths []string
	faces []*text.Face
}

// Add registers a font file path and returns its id.
func (r *FontRegistry) Add(path string) FontID {
	r.paths = append(r.paths, path)
	r.faces = append(r.faces, nil)
	return FontID(len(r.paths) - 1)
}

// Len returns the number of registered fonts.
func (r *FontRegistry) Len() int { return len(r.paths) }

// Path returns the persisted font file path.
func (r *FontRegistry) Path(id FontID) (string, bool) {
	if int(id) >= len(r.paths) {
		return "", false
	}
	return r.paths[int(id)], true
}

// Face returns the parsed face, loading it from disk on first use.
func (r *FontRegistry) Face(id FontID) (*text.Face, error) {
	if int(id) >= len(r.paths) {
		return nil, fmt.Errorf("scene: unknown font %d", id)
	}
	if r.faces[int(id)] != nil {
		return r.faces[int(id)], nil
	}
	face, err := text.LoadFace(r.paths[int(id)])
	if err != nil {
		return nil, fmt.Errorf("scene: load font %q: %w", r.paths[int(id)], err)
	}
	r.faces[int(id)] = face
	return face, nil
}

// AddFace registers an already-parsed face under a label, for faces not
// backed by a file on disk.
func (r *FontRegistry) AddFace(label string, face *text.Face) FontID {
	r.paths = append(r.paths, label)
	r.faces = append(r.faces, face)
	return FontID(len(r.paths) - 1)
}
