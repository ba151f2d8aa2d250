package render

import (
	"errors"
	"reflect"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/gpu/softgpu"
	"github.com/gogpu/collage/scene"
	"github.com/gogpu/collage/text"
)

// addSolidImage adds a file image object backed by a solid-color texture.
func addSolidImage(t *testing.T, dev gpu.Device, doc *scene.Document, name string, w, h int, r, g, b, a byte) scene.ID {
	t.Helper()
	tex, err := dev.CreateTexture(gpu.TextureConfig{Width: w, Height: h, Format: gpu.FormatRGBA8, Label: name})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	if err := tex.Upload(pix); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	id, err := doc.Objects.Add(&scene.Object{Name: name, Data: &scene.FileImage{
		Path: name, Width: w, Height: h, Tex: tex,
	}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return id
}

func pixelAt(pix []byte, w, x, y int) (r, g, b, a byte) {
	i := (y*w + x) * 4
	return pix[i], pix[i+1], pix[i+2], pix[i+3]
}

func TestRenderToPixelsFileImage(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "red", 8, 8, 255, 0, 0, 255)

	r := New(dev, doc)
	defer r.Close()

	pix, w, h, err := r.RenderToPixels(img)
	if err != nil {
		t.Fatalf("RenderToPixels: %v", err)
	}
	if w != 8 || h != 8 {
		t.Fatalf("dims = %dx%d, want 8x8", w, h)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if cr, _, _, ca := pixelAt(pix, w, x, y); cr != 255 || ca != 255 {
				t.Fatalf("pixel (%d,%d) = r%d a%d, want solid red", x, y, cr, ca)
			}
		}
	}
}

func TestCompositionChildOrder(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	red := addSolidImage(t, dev, doc, "red", 8, 8, 255, 0, 0, 255)
	green := addSolidImage(t, dev, doc, "green", 8, 8, 0, 255, 0, 255)
	comp, err := doc.AddComposition("board", 8, 8)
	if err != nil {
		t.Fatalf("AddComposition: %v", err)
	}
	placement := collage.Scale(0.5, 0.5)
	if err := doc.Objects.AddChild(comp, red, placement); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if err := doc.Objects.AddChild(comp, green, placement); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	r := New(dev, doc)
	defer r.Close()
	pix, w, h, err := r.RenderToPixels(comp)
	if err != nil {
		t.Fatalf("RenderToPixels: %v", err)
	}
	if w != 8 || h != 8 {
		t.Fatalf("dims = %dx%d, want composition dims 8x8", w, h)
	}

	// Both children occupy the center half; the later child wins.
	if cr, cg, _, _ := pixelAt(pix, w, 4, 4); cg != 255 || cr != 0 {
		t.Errorf("center pixel = r%d g%d, want the later (green) child on top", cr, cg)
	}
	// Corners are outside both children.
	if _, _, _, ca := pixelAt(pix, w, 0, 0); ca != 0 {
		t.Errorf("corner alpha = %d, want untouched", ca)
	}
}

func TestNestedCompositionRejected(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	inner, err := doc.AddComposition("inner", 8, 8)
	if err != nil {
		t.Fatalf("AddComposition: %v", err)
	}
	outer, err := doc.AddComposition("outer", 8, 8)
	if err != nil {
		t.Fatalf("AddComposition: %v", err)
	}
	// The data model allows nesting; only rendering rejects it.
	if err := doc.Objects.AddChild(outer, inner, collage.Identity()); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	r := New(dev, doc)
	defer r.Close()
	_, _, _, err = r.RenderToPixels(outer)
	if !errors.Is(err, ErrNestedComposition) {
		t.Fatalf("err = %v, want ErrNestedComposition", err)
	}
}

func TestSharedDependencyRenderedOnce(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "base", 8, 8, 255, 255, 255, 255)
	prog := doc.Programs.Add(scene.ProgramSpec{Name: "effect", FragmentSource: "// effect"})

	shared, err := doc.AddShader("shared", prog, []scene.Binding{
		{Name: "source", Value: scene.ImageRef{Object: img}},
	})
	if err != nil {
		t.Fatalf("AddShader: %v", err)
	}
	left, err := doc.AddShader("left", prog, []scene.Binding{
		{Name: "source", Value: scene.ImageRef{Object: shared}},
	})
	if err != nil {
		t.Fatalf("AddShader: %v", err)
	}
	right, err := doc.AddShader("right", prog, []scene.Binding{
		{Name: "source", Value: scene.ImageRef{Object: shared}},
	})
	if err != nil {
		t.Fatalf("AddShader: %v", err)
	}
	comp, err := doc.AddComposition("board", 8, 8)
	if err != nil {
		t.Fatalf("AddComposition: %v", err)
	}
	for _, id := range []scene.ID{left, right} {
		if err := doc.Objects.AddChild(comp, id, collage.Identity()); err != nil {
			t.Fatalf("AddChild: %v", err)
		}
	}

	r := New(dev, doc)
	defer r.Close()
	if _, _, _, err := r.RenderToPixels(comp); err != nil {
		t.Fatalf("RenderToPixels: %v", err)
	}
	stats := r.Stats()
	if stats.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1 (shared node referenced twice)", stats.CacheHits)
	}
}

func TestUnboundImageBindingUsesInvalidTexture(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "base", 8, 8, 255, 255, 255, 255)
	prog := doc.Programs.Add(scene.ProgramSpec{Name: "effect", FragmentSource: "// effect"})

	sh, err := doc.AddShader("broken", prog, []scene.Binding{
		{Name: "source", Value: scene.ImageRef{}},
		{Name: "backdrop", Value: scene.ImageRef{Object: img}},
	})
	if err != nil {
		t.Fatalf("AddShader: %v", err)
	}
	// PrimaryInput picks the first image binding, which is unbound, so
	// dimensions come from nowhere; retarget it to the bound one.
	obj, _ := doc.Objects.Get(sh)
	obj.Data.(*scene.Shader).PrimaryInput = 1

	r := New(dev, doc)
	defer r.Close()
	pix, w, _, err := r.RenderToPixels(sh)
	if err != nil {
		t.Fatalf("RenderToPixels: %v", err)
	}
	// softgpu approximates a custom shader as a blit of its first
	// sampler, which resolves to the magenta checkerboard sentinel.
	cr, _, cb, ca := pixelAt(pix, w, 0, 0)
	if ca != 255 {
		t.Fatalf("alpha = %d, want opaque sentinel", ca)
	}
	if !(cr == 255 && cb == 255) && !(cr == 0 && cb == 0) {
		t.Errorf("pixel = (%d, _, %d), want magenta or black checker cell", cr, cb)
	}
}

func TestPathOverlayDrawsOnTop(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "black", 256, 256, 0, 0, 0, 255)
	path, err := doc.AddPath("outline", img)
	if err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	for _, p := range []collage.Point{
		collage.Pt(-0.5, -0.5), collage.Pt(0.5, -0.5), collage.Pt(0.5, 0.5), collage.Pt(-0.5, 0.5),
	} {
		if err := doc.Objects.AddPathPoint(path, p); err != nil {
			t.Fatalf("AddPathPoint: %v", err)
		}
	}

	r := New(dev, doc)
	defer r.Close()
	pix, w, _, err := r.RenderToPixels(path)
	if err != nil {
		t.Fatalf("RenderToPixels: %v", err)
	}

	// A control point marker at clip (-0.5, -0.5) lands at pixel (64, 192).
	cr, _, cb, _ := pixelAt(pix, w, 64, 192)
	if cb <= cr {
		t.Errorf("marker pixel = (r%d, b%d), want the blue point color over black", cr, cb)
	}
	// The bottom edge midpoint at clip (0, -0.5) carries the white outline.
	if cr, cg, cb, _ := pixelAt(pix, w, 128, 191); cr < 100 || cg < 100 || cb < 100 {
		t.Errorf("outline pixel = (%d,%d,%d), want bright outline", cr, cg, cb)
	}
	// Far from the path the display object shows through untouched.
	if cr, cg, cb, _ := pixelAt(pix, w, 2, 2); cr != 0 || cg != 0 || cb != 0 {
		t.Errorf("background pixel = (%d,%d,%d), want black display object", cr, cg, cb)
	}
}

func TestTextRenders(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	face, err := text.ParseFace(goregular.TTF)
	if err != nil {
		t.Fatalf("ParseFace: %v", err)
	}
	font := doc.Fonts.AddFace("goregular", face)
	txt, err := doc.AddText(dev, "caption", font, "Hi", 120, 40)
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}

	r := New(dev, doc)
	defer r.Close()
	pix, _, _, err := r.RenderToPixels(txt)
	if err != nil {
		t.Fatalf("RenderToPixels: %v", err)
	}
	covered := 0
	for i := 3; i < len(pix); i += 4 {
		if pix[i] > 0 {
			covered++
		}
	}
	if covered == 0 {
		t.Error("no glyph pixels rendered")
	}
}

func TestDrawingRenders(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "paper", 32, 32, 255, 255, 255, 255)
	brush := doc.Programs.Add(scene.ProgramSpec{Name: "ink", FragmentSource: "// ink"})
	dr, err := doc.AddDrawing("sketch", img, brush, nil)
	if err != nil {
		t.Fatalf("AddDrawing: %v", err)
	}
	obj, _ := doc.Objects.Get(dr)
	obj.Data.(*scene.Drawing).Strokes = [][]collage.Point{{collage.Pt(-0.5, 0), collage.Pt(0.5, 0)}}
	if err := doc.RegenerateField(dev, dr); err != nil {
		t.Fatalf("RegenerateField: %v", err)
	}

	r := New(dev, doc)
	defer r.Close()
	if _, _, _, err := r.RenderToPixels(dr); err != nil {
		t.Fatalf("RenderToPixels: %v", err)
	}
}

func TestRenderRequiresTarget(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "img", 8, 8, 255, 0, 0, 255)

	r := New(dev, doc)
	defer r.Close()
	if err := r.Render(img, collage.Identity()); err == nil {
		t.Fatal("expected error without a bound target")
	}
}

func TestRenderToScreen(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()
	if err := dev.SetScreen(16, 16); err != nil {
		t.Fatalf("SetScreen: %v", err)
	}

	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "img", 8, 8, 0, 0, 255, 255)

	r := New(dev, doc)
	defer r.Close()
	if err := dev.BeginTarget(nil); err != nil {
		t.Fatalf("BeginTarget: %v", err)
	}
	err := r.Render(img, collage.Identity())
	dev.EndTarget()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	pix, err := dev.ReadPixels(dev.Screen())
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	if _, _, cb, ca := pixelAt(pix, 16, 8, 8); cb != 255 || ca != 255 {
		t.Errorf("screen center = b%d a%d, want blue", cb, ca)
	}
}

// drawRecorder keeps a copy of every draw call on its way to the
// device so tests can inspect the uniform lists the renderer builds.
type drawRecorder struct {
	gpu.Device
	calls []gpu.DrawCall
}

func (d *drawRecorder) Draw(call gpu.DrawCall) error {
	d.calls = append(d.calls, call)
	return d.Device.Draw(call)
}

func uniformNames(call gpu.DrawCall) []string {
	names := make([]string, len(call.Uniforms))
	for i, u := range call.Uniforms {
		names[i] = u.Name
	}
	return names
}

// The built-in shaders declare their uniform structs in a fixed order,
// and backends pack uniforms in the order the draw call lists them.
// softgpu fills in defaults for anything missing, so this pins the
// full lists explicitly.
func TestDrawUniformsMatchShaderOrder(t *testing.T) {
	dev := &drawRecorder{Device: softgpu.New()}
	defer dev.Close()
	doc := scene.NewDocument()
	img := addSolidImage(t, dev, doc, "img", 8, 8, 255, 0, 0, 255)
	face, err := text.ParseFace(goregular.TTF)
	if err != nil {
		t.Fatalf("ParseFace: %v", err)
	}
	font := doc.Fonts.AddFace("goregular", face)
	txt, err := doc.AddText(dev, "caption", font, "Hi", 120, 40)
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}

	r := New(dev, doc)
	defer r.Close()

	if _, _, _, err := r.RenderToPixels(img); err != nil {
		t.Fatalf("RenderToPixels(image): %v", err)
	}
	blit := dev.calls[len(dev.calls)-1]
	if got, want := uniformNames(blit), []string{"transform", "alpha", "source"}; !reflect.DeepEqual(got, want) {
		t.Errorf("blit uniforms = %v, want %v", got, want)
	}

	dev.calls = nil
	if _, _, _, err := r.RenderToPixels(txt); err != nil {
		t.Fatalf("RenderToPixels(text): %v", err)
	}
	glyph := dev.calls[len(dev.calls)-1]
	if got, want := uniformNames(glyph), []string{"transform", "color", "alpha", "atlas"}; !reflect.DeepEqual(got, want) {
		t.Errorf("glyph uniforms = %v, want %v", got, want)
	}
}
