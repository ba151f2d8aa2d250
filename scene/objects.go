package scene

import (
	"fmt"

	"github.com/gogpu/collage"
)

// Objects is the document's object collection. Ids are handed out
// monotonically starting at 1 and are stable for the session. Iteration
// order is insertion order.
//
// Objects is not safe for concurrent use; all mutation and rendering
// happens on one goroutine.
type Objects struct {
	byID   map[ID]*Object
	order  []ID
	nextID ID
}

// NewObjects returns an empty collection.
func NewObjects() *Objects {
	return &Objects{
		byID:   make(map[ID]*Object),
		nextID: 1,
	}
}

// Len returns the number of objects.
func (o *Objects) Len() int { return len(o.order) }

// IDs returns the object ids in insertion order. The slice is a copy.
func (o *Objects) IDs() []ID {
	ids := make([]ID, len(o.order))
	copy(ids, o.order)
	return ids
}

// Get returns the object with the given id.
func (o *Objects) Get(id ID) (*Object, bool) {
	obj, ok := o.byID[id]
	return obj, ok
}

// Add inserts an object and assigns the next id. Every reference the
// object carries must already resolve; a new object cannot close a cycle
// because nothing references it yet, so only existence is checked.
func (o *Objects) Add(obj *Object) (ID, error) {
	for _, dep := range obj.Data.Dependencies(nil) {
		if _, ok := o.byID[dep]; !ok {
			return NoObject, fmt.Errorf("%w: object %d", ErrDangling, dep)
		}
	}
	id := o.nextID
	o.nextID++
	o.byID[id] = obj
	o.order = append(o.order, id)
	return id, nil
}

// Delete removes an object. It fails if the object is the last one
// remaining or if any other object still references it.
func (o *Objects) Delete(id ID) error {
	if _, ok := o.byID[id]; !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	if len(o.order) == 1 {
		return ErrLastObject
	}
	for _, otherID := range o.order {
		if otherID == id {
			continue
		}
		for _, dep := range o.byID[otherID].Data.Dependencies(nil) {
			if dep == id {
				return fmt.Errorf("%w: object %d depends on %d", ErrStillReferenced, otherID, id)
			}
		}
	}
	delete(o.byID, id)
	for i, oid := range o.order {
		if oid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return nil
}

// Dims derives the pixel dimensions of an object. File images,
// compositions and text carry intrinsic size; shaders, paths, masks and
// drawings inherit from their designated dependency. Returns
// ErrNoDimensions when the chain ends at an unbound reference.
func (o *Objects) Dims(id ID) (width, height int, err error) {
	obj, ok := o.byID[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	switch data := obj.Data.(type) {
	case *FileImage:
		return data.Width, data.Height, nil
	case *Composition:
		return data.Width, data.Height, nil
	case *Text:
		return data.Width, data.Height, nil
	case *Shader:
		ref, ok := data.primaryRef()
		if !ok || ref == NoObject {
			return 0, 0, fmt.Errorf("%w: shader %q has no primary input", ErrNoDimensions, obj.Name)
		}
		return o.Dims(ref)
	case *Path:
		return o.Dims(data.Display)
	case *GeneratedMask:
		return o.Dims(data.Source)
	case *Drawing:
		return o.Dims(data.Display)
	default:
		return 0, 0, fmt.Errorf("%w: object %d", ErrNoDimensions, id)
	}
}

// guarded runs fn, then the loop guard from id. If either fails, rollback
// is invoked and the guard error surfaced. Every reference-rewiring edit
// below goes through this.
func (o *Objects) guarded(id ID, fn func() error, rollback func()) error {
	if err := fn(); err != nil {
		return err
	}
	if err := EnsureNoLoops(id, o); err != nil {
		rollback()
		return err
	}
	return nil
}

// AddChild appends a placed child to a composition.
func (o *Objects) AddChild(comp ID, child ID, placement collage.Transform) error {
	obj, ok := o.byID[comp]
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, comp)
	}
	c, ok := obj.Data.(*Composition)
	if !ok {
		return fmt.Errorf("scene: object %d is not a composition", comp)
	}
	return o.guarded(comp,
		func() error {
			if _, ok := o.byID[child]; !ok {
				return fmt.Errorf("%w: object %d", ErrDangling, child)
			}
			c.Children = append(c.Children, Child{Object: child, Placement: placement})
			return nil
		},
		func() { c.Children = c.Children[:len(c.Children)-1] },
	)
}

// RemoveChild deletes the child entry at the given index.
func (o *Objects) RemoveChild(comp ID, index int) error {
	obj, ok := o.byID[comp]
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, comp)
	}
	c, ok := obj.Data.(*Composition)
	if !ok {
		return fmt.Errorf("scene: object %d is not a composition", comp)
	}
	if index < 0 || index >= len(c.Children) {
		return fmt.Errorf("scene: child index %d out of range", index)
	}
	c.Children = append(c.Children[:index], c.Children[index+1:]...)
	return nil
}

// BindImage rebinds the image binding at the given index of a shader or
// drawing to target. Passing NoObject unbinds it.
func (o *Objects) BindImage(id ID, index int, target ID) error {
	obj, ok := o.byID[id]
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	var bindings []Binding
	switch data := obj.Data.(type) {
	case *Shader:
		bindings = data.Bindings
	case *Drawing:
		bindings = data.Bindings
	default:
		return fmt.Errorf("%w: object %d has no bindings", ErrBadBinding, id)
	}
	if index < 0 || index >= len(bindings) {
		return fmt.Errorf("%w: index %d out of range", ErrBadBinding, index)
	}
	prev, isImage := bindings[index].Value.(ImageRef)
	if !isImage {
		return fmt.Errorf("%w: binding %q is not an image", ErrBadBinding, bindings[index].Name)
	}
	return o.guarded(id,
		func() error {
			if target != NoObject {
				if _, ok := o.byID[target]; !ok {
					return fmt.Errorf("%w: object %d", ErrDangling, target)
				}
			}
			bindings[index].Value = ImageRef{Object: target}
			return nil
		},
		func() { bindings[index].Value = prev },
	)
}

// SetPathDisplay retargets the display object a path annotates.
func (o *Objects) SetPathDisplay(id ID, display ID) error {
	p, err := o.path(id)
	if err != nil {
		return err
	}
	prev := p.Display
	return o.guarded(id,
		func() error {
			if _, ok := o.byID[display]; !ok {
				return fmt.Errorf("%w: object %d", ErrDangling, display)
			}
			p.Display = display
			return nil
		},
		func() { p.Display = prev },
	)
}

// SetDrawingDisplay retargets the display object a drawing annotates.
func (o *Objects) SetDrawingDisplay(id ID, display ID) error {
	obj, ok := o.byID[id]
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	d, ok := obj.Data.(*Drawing)
	if !ok {
		return fmt.Errorf("scene: object %d is not a drawing", id)
	}
	prev := d.Display
	return o.guarded(id,
		func() error {
			if _, ok := o.byID[display]; !ok {
				return fmt.Errorf("%w: object %d", ErrDangling, display)
			}
			d.Display = display
			return nil
		},
		func() { d.Display = prev },
	)
}

// SetMaskSource retargets the path a generated mask rasterizes.
func (o *Objects) SetMaskSource(id ID, source ID) error {
	obj, ok := o.byID[id]
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	m, ok := obj.Data.(*GeneratedMask)
	if !ok {
		return fmt.Errorf("scene: object %d is not a generated mask", id)
	}
	prev := m.Source
	return o.guarded(id,
		func() error {
			src, ok := o.byID[source]
			if !ok {
				return fmt.Errorf("%w: object %d", ErrDangling, source)
			}
			if _, ok := src.Data.(*Path); !ok {
				return fmt.Errorf("scene: object %d is not a path", source)
			}
			m.Source = source
			return nil
		},
		func() { m.Source = prev },
	)
}

// AddPathPoint appends a control point. Point edits rewire nothing, so the
// loop guard is not involved.
func (o *Objects) AddPathPoint(id ID, pt collage.Point) error {
	p, err := o.path(id)
	if err != nil {
		return err
	}
	p.Points = append(p.Points, pt)
	return nil
}

// MovePathPoint repositions the control point at the given index.
func (o *Objects) MovePathPoint(id ID, index int, pt collage.Point) error {
	p, err := o.path(id)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.Points) {
		return fmt.Errorf("scene: point index %d out of range", index)
	}
	p.Points[index] = pt
	return nil
}

// SelectPathPoint marks a control point as selected, or clears the
// selection when index is -1.
func (o *Objects) SelectPathPoint(id ID, index int) error {
	p, err := o.path(id)
	if err != nil {
		return err
	}
	if index < -1 || index >= len(p.Points) {
		return fmt.Errorf("scene: point index %d out of range", index)
	}
	p.Selected = index
	return nil
}

func (o *Objects) path(id ID) (*Path, error) {
	obj, ok := o.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	p, ok := obj.Data.(*Path)
	if !ok {
		return nil, fmt.Errorf("scene: object %d is not a path", id)
	}
	return p, nil
}
