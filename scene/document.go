package scene

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/sdf"
	"github.com/gogpu/collage/text"
)

// Document bundles the object graph with its program and font registries
// and owns regeneration of derived GPU content (file image textures, mask
// coverage, stroke distance fields, glyph buffers).
type Document struct {
	Objects  *Objects
	Programs *ProgramRegistry
	Fonts    *FontRegistry

	// Fields controls distance-field regeneration for drawings.
	Fields sdf.Generator
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Objects:  NewObjects(),
		Programs: &ProgramRegistry{},
		Fonts:    &FontRegistry{},
	}
}

// AddFileImage loads an image from disk, uploads it as a texture, and adds
// a file image object named after the path.
func (d *Document) AddFileImage(dev gpu.Device, path string) (ID, error) {
	data := &FileImage{Path: path}
	if err := loadFileImage(dev, data); err != nil {
		return NoObject, err
	}
	id, err := d.Objects.Add(&Object{Name: path, Data: data})
	if err != nil {
		data.Tex.Destroy()
		return NoObject, err
	}
	return id, nil
}

func loadFileImage(dev gpu.Device, data *FileImage) error {
	img, err := imaging.Open(data.Path)
	if err != nil {
		return fmt.Errorf("scene: open image %q: %w", data.Path, err)
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	tex, err := dev.CreateTexture(gpu.TextureConfig{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: gpu.FormatRGBA8,
		Label:  data.Path,
	})
	if err != nil {
		return fmt.Errorf("scene: create texture for %q: %w", data.Path, err)
	}
	if err := tex.Upload(rgba.Pix); err != nil {
		tex.Destroy()
		return fmt.Errorf("scene: upload %q: %w", data.Path, err)
	}
	if data.Tex != nil {
		data.Tex.Destroy()
	}
	data.Width, data.Height, data.Tex = bounds.Dx(), bounds.Dy(), tex
	return nil
}

// AddComposition adds an empty composition with the given canvas size.
func (d *Document) AddComposition(name string, width, height int) (ID, error) {
	return d.Objects.Add(&Object{Name: name, Data: &Composition{Width: width, Height: height}})
}

// AddShader adds a shader object over the given program and bindings.
// PrimaryInput defaults to the first image binding.
func (d *Document) AddShader(name string, program ProgramID, bindings []Binding) (ID, error) {
	primary := 0
	for i, b := range bindings {
		if _, ok := b.Value.(ImageRef); ok {
			primary = i
			break
		}
	}
	return d.Objects.Add(&Object{Name: name, Data: &Shader{
		Program:      program,
		PrimaryInput: primary,
		Bindings:     bindings,
	}})
}

// AddPath adds an empty path annotating the given display object.
func (d *Document) AddPath(name string, display ID) (ID, error) {
	return d.Objects.Add(&Object{Name: name, Data: &Path{Display: display, Selected: -1}})
}

// AddDrawing adds an empty drawing over the given display object, painted
// with the given brush program.
func (d *Document) AddDrawing(name string, display ID, brush ProgramID, bindings []Binding) (ID, error) {
	return d.Objects.Add(&Object{Name: name, Data: &Drawing{
		Display:  display,
		Brush:    brush,
		Bindings: bindings,
	}})
}

// AddGeneratedMask adds a mask object rasterized from the given path and
// generates its coverage texture.
func (d *Document) AddGeneratedMask(dev gpu.Device, name string, source ID) (ID, error) {
	srcObj, ok := d.Objects.Get(source)
	if !ok {
		return NoObject, fmt.Errorf("%w: object %d", ErrDangling, source)
	}
	if _, ok := srcObj.Data.(*Path); !ok {
		return NoObject, fmt.Errorf("scene: object %d is not a path", source)
	}
	id, err := d.Objects.Add(&Object{Name: name, Data: &GeneratedMask{Source: source}})
	if err != nil {
		return NoObject, err
	}
	if err := d.RegenerateMask(dev, id); err != nil {
		_ = d.Objects.Delete(id)
		return NoObject, err
	}
	return id, nil
}

// AddText adds a text object and builds its glyph buffer.
func (d *Document) AddText(dev gpu.Device, name string, font FontID, content string, width, height int) (ID, error) {
	id, err := d.Objects.Add(&Object{Name: name, Data: &Text{
		Font:    font,
		Content: content,
		Width:   width,
		Height:  height,
	}})
	if err != nil {
		return NoObject, err
	}
	if err := d.RegenerateText(dev, id); err != nil {
		_ = d.Objects.Delete(id)
		return NoObject, err
	}
	return id, nil
}

// RegenerateMask rasterizes the mask's source path into its coverage
// texture, sized to the path's display object. The existing texture is
// reused when the dimensions are unchanged.
func (d *Document) RegenerateMask(dev gpu.Device, id ID) error {
	obj, ok := d.Objects.Get(id)
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	m, ok := obj.Data.(*GeneratedMask)
	if !ok {
		return fmt.Errorf("scene: object %d is not a generated mask", id)
	}
	srcObj, ok := d.Objects.Get(m.Source)
	if !ok {
		return fmt.Errorf("%w: object %d", ErrDangling, m.Source)
	}
	p, ok := srcObj.Data.(*Path)
	if !ok {
		return fmt.Errorf("scene: object %d is not a path", m.Source)
	}
	width, height, err := d.Objects.Dims(m.Source)
	if err != nil {
		return err
	}

	mask := collage.FillPolygon(p.Points, width, height)

	if m.Tex != nil && m.Tex.Width() == width && m.Tex.Height() == height {
		return m.Tex.Upload(mask.Data())
	}
	if m.Tex != nil {
		m.Tex.Destroy()
		m.Tex = nil
	}
	tex, err := dev.CreateTexture(gpu.TextureConfig{
		Width:  width,
		Height: height,
		Format: gpu.FormatR8,
		Label:  obj.Name,
	})
	if err != nil {
		return fmt.Errorf("scene: create mask texture: %w", err)
	}
	if err := tex.Upload(mask.Data()); err != nil {
		tex.Destroy()
		return fmt.Errorf("scene: upload mask: %w", err)
	}
	m.Tex = tex
	return nil
}

// RegenerateField rebuilds a drawing's stroke distance-field texture,
// sized to the drawing's display object. A drawing with no strokes keeps
// (or gets) a nil field.
func (d *Document) RegenerateField(dev gpu.Device, id ID) error {
	obj, ok := d.Objects.Get(id)
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	dr, ok := obj.Data.(*Drawing)
	if !ok {
		return fmt.Errorf("scene: object %d is not a drawing", id)
	}
	if len(dr.Strokes) == 0 {
		return nil
	}
	width, height, err := d.Objects.Dims(dr.Display)
	if err != nil {
		return err
	}
	field, err := d.Fields.Generate(dev, dr.Strokes, width, height, dr.Field)
	if err != nil {
		return fmt.Errorf("scene: distance field for %q: %w", obj.Name, err)
	}
	dr.Field = field
	return nil
}

// RegenerateText rebuilds a text object's glyph buffer.
func (d *Document) RegenerateText(dev gpu.Device, id ID) error {
	obj, ok := d.Objects.Get(id)
	if !ok {
		return fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	t, ok := obj.Data.(*Text)
	if !ok {
		return fmt.Errorf("scene: object %d is not a text", id)
	}
	face, err := d.Fonts.Face(t.Font)
	if err != nil {
		return err
	}
	glyphs, err := text.Layout(dev, face, t.Content, t.Width, t.Height)
	if err != nil {
		return fmt.Errorf("scene: layout %q: %w", obj.Name, err)
	}
	if t.Glyphs != nil {
		t.Glyphs.Destroy()
	}
	t.Glyphs = glyphs
	return nil
}

// Rebuild regenerates all derived GPU content after a load: file image
// textures, mask coverage, drawing distance fields, and glyph buffers.
// Persisted state never includes derived content, so this must run before
// the first render.
func (d *Document) Rebuild(dev gpu.Device) error {
	d.Programs.Reset()
	for _, id := range d.Objects.IDs() {
		obj, _ := d.Objects.Get(id)
		switch data := obj.Data.(type) {
		case *FileImage:
			if err := loadFileImage(dev, data); err != nil {
				return err
			}
		case *GeneratedMask:
			if err := d.RegenerateMask(dev, id); err != nil {
				return err
			}
		case *Drawing:
			if err := d.RegenerateField(dev, id); err != nil {
				return err
			}
		case *Text:
			if err := d.RegenerateText(dev, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Destroy releases every texture and glyph buffer the document owns.
func (d *Document) Destroy() {
	d.Programs.Reset()
	for _, id := range d.Objects.IDs() {
		obj, _ := d.Objects.Get(id)
		switch data := obj.Data.(type) {
		case *FileImage:
			if data.Tex != nil {
				data.Tex.Destroy()
				data.Tex = nil
			}
		case *GeneratedMask:
			if data.Tex != nil {
				data.Tex.Destroy()
				data.Tex = nil
			}
		case *Drawing:
			if data.Field != nil {
				data.Field.Destroy()
				data.Field = nil
			}
		case *Text:
			if data.Glyphs != nil {
				data.Glyphs.Destroy()
				data.Glyphs = nil
			}
		}
	}
}
