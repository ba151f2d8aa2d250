// Package render evaluates the object graph into pixels. A frame starts
// at a root object and an initial transform, recurses through
// dependencies, and memoizes every intermediate result in a per-frame
// texture cache so each distinct object is rendered at most once per
// frame no matter how many places reference it.
package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/scene"
)

// ErrNestedComposition is returned when a composition's child list
// contains another composition. Compositions may still be referenced
// through shader bindings, which render them to an offscreen texture.
var ErrNestedComposition = errors.New("render: composition nested inside composition")

// Stats counts the work of the most recent frame.
type Stats struct {
	// Renders is the number of objects whose draw path ran.
	Renders int
	// CacheHits is the number of references resolved from the frame
	// cache instead of re-rendering.
	CacheHits int
}

// Renderer draws documents on a device. It is bound to one device for its
// lifetime and compiles the built-in programs on first use.
//
// Renderer is not safe for concurrent use.
type Renderer struct {
	dev   gpu.Device
	doc   *scene.Document
	progs builtins
	stats Stats
}

// New returns a renderer for the document on the given device.
func New(dev gpu.Device, doc *scene.Document) *Renderer {
	return &Renderer{dev: dev, doc: doc}
}

// Stats returns the counters of the most recent frame.
func (r *Renderer) Stats() Stats { return r.stats }

// Close releases the renderer's compiled programs.
func (r *Renderer) Close() { r.progs.destroy() }

// Render draws the root object into the currently bound target, fit to
// the target's viewport with its aspect preserved, then placed by
// transform. A failed frame stops at the first error; nothing further is
// drawn.
func (r *Renderer) Render(root scene.ID, transform collage.Transform) error {
	w, h, err := r.doc.Objects.Dims(root)
	if err != nil {
		return fmt.Errorf("render: root %d: %w", root, err)
	}
	_, _, vw, vh := r.dev.Viewport()
	if vw <= 0 || vh <= 0 {
		return fmt.Errorf("render: no viewport: %w", gpu.ErrNoTarget)
	}
	t := collage.AspectFit(float64(w), float64(h), float64(vw), float64(vh)).Then(transform)

	r.stats = Stats{}
	cache := newFrameCache()
	defer func() {
		r.stats.CacheHits = cache.hits
		cache.release()
	}()
	return r.renderWithTransform(cache, root, t)
}

// RenderToPixels renders the root object at its own dimensions and reads
// the result back as RGBA bytes.
func (r *Renderer) RenderToPixels(root scene.ID) (pix []byte, width, height int, err error) {
	width, height, err = r.doc.Objects.Dims(root)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("render: root %d: %w", root, err)
	}
	target, err := r.dev.CreateTexture(gpu.TextureConfig{
		Width:        width,
		Height:       height,
		Format:       gpu.FormatRGBA8,
		RenderTarget: true,
		Label:        "export target",
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("render: create export target: %w", err)
	}
	defer target.Destroy()

	if err := r.dev.BeginTarget(target); err != nil {
		return nil, 0, 0, fmt.Errorf("render: bind export target: %w", err)
	}
	err = r.Render(root, collage.Identity())
	r.dev.EndTarget()
	if err != nil {
		return nil, 0, 0, err
	}
	pix, err = r.dev.ReadPixels(target)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("render: read export target: %w", err)
	}
	return pix, width, height, nil
}

// renderWithTransform draws one object into the current target. The
// transform already accounts for the object's aspect: top-level callers
// fold in the viewport fit, compositions fold in each child's fit, and
// offscreen passes use targets sized exactly to the object.
func (r *Renderer) renderWithTransform(cache *frameCache, id scene.ID, t collage.Transform) error {
	obj, ok := r.doc.Objects.Get(id)
	if !ok {
		return fmt.Errorf("%w: object %d", scene.ErrUnknownObject, id)
	}
	r.stats.Renders++

	var err error
	switch data := obj.Data.(type) {
	case *scene.FileImage:
		err = r.drawBlit(data.Tex, t)
	case *scene.GeneratedMask:
		err = r.drawBlit(data.Tex, t)
	case *scene.Composition:
		err = r.renderComposition(cache, data, t)
	case *scene.Shader:
		err = r.renderShader(cache, data, t)
	case *scene.Path:
		if err = r.renderWithTransform(cache, data.Display, t); err == nil {
			err = r.drawPathOverlay(data, t)
		}
	case *scene.Drawing:
		if err = r.renderWithTransform(cache, data.Display, t); err == nil && len(data.Strokes) > 0 {
			err = r.drawDrawing(cache, data, t)
		}
	case *scene.Text:
		err = r.drawText(data, t)
	default:
		err = fmt.Errorf("render: unknown variant %T", data)
	}
	if err != nil {
		return fmt.Errorf("render: %q: %w", obj.Name, err)
	}
	return nil
}

// drawBlit draws a full quad sampling tex. A nil texture falls back to
// the device's invalid-texture sentinel so broken references stay
// visible instead of failing the frame.
func (r *Renderer) drawBlit(tex gpu.Texture, t collage.Transform) error {
	if tex == nil {
		tex = r.dev.InvalidTexture()
	}
	prog, err := r.progs.blitProgram(r.dev)
	if err != nil {
		return err
	}
	return r.dev.Draw(gpu.DrawCall{
		Program: prog,
		Uniforms: []gpu.Uniform{
			{Name: "transform", Value: gpu.Mat3(t.Cols())},
			{Name: "alpha", Value: gpu.Float1(1)},
			{Name: "source", Value: gpu.Sampler{Texture: tex}},
		},
		Blend: gpu.BlendAlpha,
	})
}

func (r *Renderer) renderComposition(cache *frameCache, comp *scene.Composition, t collage.Transform) error {
	for i, child := range comp.Children {
		childObj, ok := r.doc.Objects.Get(child.Object)
		if !ok {
			return fmt.Errorf("%w: object %d", scene.ErrDangling, child.Object)
		}
		if _, isComp := childObj.Data.(*scene.Composition); isComp {
			return fmt.Errorf("%w: child %d (%s)", ErrNestedComposition, i, childObj.Name)
		}
		cw, ch, err := r.doc.Objects.Dims(child.Object)
		if err != nil {
			return err
		}
		childT := collage.AspectFit(float64(cw), float64(ch), 1, 1).
			Then(child.Placement).
			Then(t)
		if err := r.renderWithTransform(cache, child.Object, childT); err != nil {
			return err
		}
	}
	if comp.DebugOverlay {
		return r.drawChildFrames(comp, t)
	}
	return nil
}

func (r *Renderer) renderShader(cache *frameCache, sh *scene.Shader, t collage.Transform) error {
	prog, err := r.doc.Programs.Program(r.dev, sh.Program)
	if err != nil {
		return err
	}
	uniforms := make([]gpu.Uniform, 0, len(sh.Bindings)+1)
	uniforms = append(uniforms, gpu.Uniform{Name: "transform", Value: gpu.Mat3(t.Cols())})
	for _, b := range sh.Bindings {
		u, err := r.resolveBinding(cache, b)
		if err != nil {
			return err
		}
		uniforms = append(uniforms, u)
	}
	return r.dev.Draw(gpu.DrawCall{
		Program:  prog,
		Uniforms: uniforms,
		Blend:    gpu.BlendAlpha,
	})
}

func (r *Renderer) drawDrawing(cache *frameCache, dr *scene.Drawing, t collage.Transform) error {
	prog, err := r.doc.Programs.Program(r.dev, dr.Brush)
	if err != nil {
		return err
	}
	field := dr.Field
	if field == nil {
		field = r.dev.InvalidTexture()
	}
	uniforms := make([]gpu.Uniform, 0, len(dr.Bindings)+2)
	uniforms = append(uniforms,
		gpu.Uniform{Name: "transform", Value: gpu.Mat3(t.Cols())},
		gpu.Uniform{Name: "field", Value: gpu.Sampler{Texture: field}},
	)
	for _, b := range dr.Bindings {
		u, err := r.resolveBinding(cache, b)
		if err != nil {
			return err
		}
		uniforms = append(uniforms, u)
	}
	return r.dev.Draw(gpu.DrawCall{
		Program:  prog,
		Uniforms: uniforms,
		Blend:    gpu.BlendAlpha,
	})
}

func (r *Renderer) drawText(txt *scene.Text, t collage.Transform) error {
	if txt.Glyphs == nil || len(txt.Glyphs.Quads) == 0 {
		return nil
	}
	prog, err := r.progs.glyphProgram(r.dev)
	if err != nil {
		return err
	}
	return r.dev.Draw(gpu.DrawCall{
		Program: prog,
		Mesh:    txt.Glyphs.Mesh(),
		Uniforms: []gpu.Uniform{
			{Name: "transform", Value: gpu.Mat3(t.Cols())},
			{Name: "color", Value: gpu.Float3{1, 1, 1}},
			{Name: "alpha", Value: gpu.Float1(1)},
			{Name: "atlas", Value: gpu.Sampler{Texture: txt.Glyphs.Atlas}},
		},
		Blend: gpu.BlendAlpha,
	})
}

func (r *Renderer) resolveBinding(cache *frameCache, b scene.Binding) (gpu.Uniform, error) {
	switch val := b.Value.(type) {
	case scene.ImageRef:
		tex, err := r.renderedTexture(cache, val.Object)
		if err != nil {
			return gpu.Uniform{}, err
		}
		return gpu.Uniform{Name: b.Name, Value: gpu.Sampler{Texture: tex}}, nil
	case scene.FloatValue:
		return gpu.Uniform{Name: b.Name, Value: gpu.Float1(val)}, nil
	case scene.Float2Value:
		return gpu.Uniform{Name: b.Name, Value: gpu.Float2{float32(val[0]), float32(val[1])}}, nil
	case scene.Float3Value:
		return gpu.Uniform{Name: b.Name, Value: gpu.Float3{float32(val[0]), float32(val[1]), float32(val[2])}}, nil
	case scene.IntValue:
		return gpu.Uniform{Name: b.Name, Value: gpu.Int1(val)}, nil
	default:
		return gpu.Uniform{}, fmt.Errorf("render: unknown binding value %T", val)
	}
}

// renderedTexture resolves an image reference to a live texture. File
// images and masks short-circuit to their stored texture; everything else
// goes through the frame cache and, on a miss, an offscreen render pass.
func (r *Renderer) renderedTexture(cache *frameCache, id scene.ID) (gpu.Texture, error) {
	if id == scene.NoObject {
		return r.dev.InvalidTexture(), nil
	}
	obj, ok := r.doc.Objects.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: object %d", scene.ErrDangling, id)
	}
	switch data := obj.Data.(type) {
	case *scene.FileImage:
		if data.Tex == nil {
			return r.dev.InvalidTexture(), nil
		}
		return data.Tex, nil
	case *scene.GeneratedMask:
		if data.Tex == nil {
			return r.dev.InvalidTexture(), nil
		}
		return data.Tex, nil
	}
	if tex, ok := cache.lookup(id); ok {
		return tex, nil
	}
	return r.renderObjectToTexture(cache, id)
}

// renderObjectToTexture renders an object into a fresh texture sized to
// its own dimensions and inserts the result into the frame cache, which
// owns it for the rest of the frame.
func (r *Renderer) renderObjectToTexture(cache *frameCache, id scene.ID) (gpu.Texture, error) {
	w, h, err := r.doc.Objects.Dims(id)
	if err != nil {
		return nil, err
	}
	tex, err := r.dev.CreateTexture(gpu.TextureConfig{
		Width:        w,
		Height:       h,
		Format:       gpu.FormatRGBA8,
		RenderTarget: true,
		Label:        "frame cache",
	})
	if err != nil {
		return nil, fmt.Errorf("render: create cache texture: %w", err)
	}
	if err := r.dev.BeginTarget(tex); err != nil {
		tex.Destroy()
		return nil, err
	}
	err = r.renderWithTransform(cache, id, collage.Identity())
	r.dev.EndTarget()
	if err != nil {
		tex.Destroy()
		return nil, err
	}
	cache.insert(id, tex, true)
	return tex, nil
}
