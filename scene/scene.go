// Package scene holds the document model: a collection of visual objects
// forming a directed acyclic graph. Objects reference each other by stable
// id (a shader samples an image, a path annotates a display object, a
// composition places children). Every mutation that rewires a reference is
// transactional: the edit is applied, the loop guard runs, and on failure
// the edit is rolled back so the graph is never observably invalid.
package scene

import (
	"errors"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/text"
)

var (
	// ErrUnknownObject is returned when an id does not name an object.
	ErrUnknownObject = errors.New("scene: unknown object")
	// ErrDangling is returned when a reference points at a missing object.
	ErrDangling = errors.New("scene: reference to missing object")
	// ErrLoopDetected is returned when an edit would close a dependency cycle.
	ErrLoopDetected = errors.New("scene: dependency loop detected")
	// ErrStillReferenced is returned when deleting an object another object
	// depends on.
	ErrStillReferenced = errors.New("scene: object still referenced")
	// ErrLastObject is returned when deleting the only remaining object.
	ErrLastObject = errors.New("scene: cannot delete last object")
	// ErrNoDimensions is returned when an object's pixel size cannot be
	// derived because its designated dependency is unbound.
	ErrNoDimensions = errors.New("scene: object has no derivable dimensions")
	// ErrBadBinding is returned when a binding edit does not match the
	// binding's kind or index.
	ErrBadBinding = errors.New("scene: binding mismatch")
)

// ID is a stable object identifier. Ids are assigned monotonically and
// never reused within a session. The zero value never names an object.
type ID uint64

// NoObject is the unbound image reference.
const NoObject ID = 0

// Object is one node of the document graph.
type Object struct {
	Name string
	Data Data
}

// Data is the per-variant payload of an object. It is a closed set; the
// renderer, the dimension derivation, and the codec each dispatch on it
// with an exhaustive type switch.
type Data interface {
	// Dependencies appends the ids this object references to dst and
	// returns the extended slice. Unbound references are not reported.
	Dependencies(dst []ID) []ID

	isData()
}

// FileImage is a leaf raster image loaded from disk. Width, Height and Tex
// are derived at load time and not persisted.
type FileImage struct {
	Path   string
	Width  int
	Height int
	Tex    gpu.Texture
}

func (*FileImage) isData() {}

func (*FileImage) Dependencies(dst []ID) []ID { return dst }

// Child is one placed entry of a composition. Placement maps the child's
// normalized unit square into the composition's canvas.
type Child struct {
	Object    ID
	Placement collage.Transform
}

// Composition arranges children on a fixed-size canvas. Children are drawn
// in list order, later entries over earlier ones.
type Composition struct {
	Children     []Child
	Width        int
	Height       int
	DebugOverlay bool
}

func (*Composition) isData() {}

func (c *Composition) Dependencies(dst []ID) []ID {
	for _, ch := range c.Children {
		dst = append(dst, ch.Object)
	}
	return dst
}

// BindingValue is one shader uniform value. It is a closed set mirroring
// the uniform kinds the gpu layer accepts, plus image references resolved
// at render time.
type BindingValue interface{ isBindingValue() }

// ImageRef binds a uniform to another object's rendered texture. Object
// set to NoObject leaves the binding unbound; the renderer substitutes the
// device's invalid-texture sentinel.
type ImageRef struct {
	Object ID
}

// FloatValue is a scalar uniform.
type FloatValue float64

// Float2Value is a two-component uniform.
type Float2Value [2]float64

// Float3Value is a three-component uniform.
type Float3Value [3]float64

// IntValue is an integer uniform.
type IntValue int

func (ImageRef) isBindingValue()    {}
func (FloatValue) isBindingValue()  {}
func (Float2Value) isBindingValue() {}
func (Float3Value) isBindingValue() {}
func (IntValue) isBindingValue()    {}

// Binding pairs a uniform name with its value.
type Binding struct {
	Name  string
	Value BindingValue
}

func bindingDependencies(bindings []Binding, dst []ID) []ID {
	for _, b := range bindings {
		if ref, ok := b.Value.(ImageRef); ok && ref.Object != NoObject {
			dst = append(dst, ref.Object)
		}
	}
	return dst
}

// Shader runs a fragment program over its primary input. PrimaryInput
// indexes the binding whose image supplies the shader's pixel dimensions.
type Shader struct {
	Program      ProgramID
	PrimaryInput int
	Bindings     []Binding
}

func (*Shader) isData() {}

func (s *Shader) Dependencies(dst []ID) []ID {
	return bindingDependencies(s.Bindings, dst)
}

// primaryRef returns the image reference of the primary input binding, or
// false when the index or kind does not line up.
func (s *Shader) primaryRef() (ID, bool) {
	if s.PrimaryInput < 0 || s.PrimaryInput >= len(s.Bindings) {
		return NoObject, false
	}
	ref, ok := s.Bindings[s.PrimaryInput].Value.(ImageRef)
	if !ok {
		return NoObject, false
	}
	return ref.Object, true
}

// Path is an editable closed polygon in the [-1,1] square of its display
// object. Paths have no intrinsic size; Display supplies the pixel
// dimensions. Selected is the index of the point being edited, or -1.
type Path struct {
	Points   []collage.Point
	Display  ID
	Selected int
}

func (*Path) isData() {}

func (p *Path) Dependencies(dst []ID) []ID { return append(dst, p.Display) }

// GeneratedMask is the rasterized coverage of a path, regenerated whenever
// the source path changes. Tex is derived content and not persisted.
type GeneratedMask struct {
	Source ID
	Tex    gpu.Texture
}

func (*GeneratedMask) isData() {}

func (m *GeneratedMask) Dependencies(dst []ID) []ID { return append(dst, m.Source) }

// Drawing overlays freehand brush strokes on a display object. Field is
// the stroke distance-field texture, regenerated when strokes change.
type Drawing struct {
	Display  ID
	Brush    ProgramID
	Bindings []Binding
	Strokes  [][]collage.Point
	Field    gpu.Texture
}

func (*Drawing) isData() {}

func (d *Drawing) Dependencies(dst []ID) []ID {
	dst = append(dst, d.Display)
	return bindingDependencies(d.Bindings, dst)
}

// Text is a single line of shaped text. Glyphs is the pre-rasterized quad
// buffer, regenerated when content or font changes.
type Text struct {
	Font    FontID
	Content string
	Width   int
	Height  int
	Glyphs  *text.QuadBuffer
}

func (*Text) isData() {}

func (*Text) Dependencies(dst []ID) []ID { return dst }
