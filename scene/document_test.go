package scene

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/gpu/softgpu"
	"github.com/gogpu/collage/text"
)

// writeTestPNG writes a solid-color PNG and returns its path.
func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestAddFileImage(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	d := NewDocument()
	path := writeTestPNG(t, 12, 8)
	id, err := d.AddFileImage(dev, path)
	if err != nil {
		t.Fatalf("AddFileImage: %v", err)
	}
	obj, _ := d.Objects.Get(id)
	img := obj.Data.(*FileImage)
	if img.Width != 12 || img.Height != 8 {
		t.Errorf("dims = %dx%d, want 12x8", img.Width, img.Height)
	}
	if img.Tex == nil || img.Tex.Width() != 12 {
		t.Errorf("texture not uploaded")
	}
}

func TestAddFileImageMissingFile(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	d := NewDocument()
	if _, err := d.AddFileImage(dev, "/does/not/exist.png"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if d.Objects.Len() != 0 {
		t.Errorf("failed add left %d objects", d.Objects.Len())
	}
}

func addMaskFixture(t *testing.T, d *Document, dev gpu.Device) (mask, path ID) {
	t.Helper()
	img := writeTestPNG(t, 20, 20)
	imgID, err := d.AddFileImage(dev, img)
	if err != nil {
		t.Fatalf("AddFileImage: %v", err)
	}
	path, err = d.AddPath("outline", imgID)
	if err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	for _, p := range []collage.Point{
		collage.Pt(-1, -1), collage.Pt(1, -1), collage.Pt(1, 1), collage.Pt(-1, 1),
	} {
		if err := d.Objects.AddPathPoint(path, p); err != nil {
			t.Fatalf("AddPathPoint: %v", err)
		}
	}
	mask, err = d.AddGeneratedMask(dev, "cutout", path)
	if err != nil {
		t.Fatalf("AddGeneratedMask: %v", err)
	}
	return mask, path
}

func TestGeneratedMaskCoverage(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	d := NewDocument()
	maskID, _ := addMaskFixture(t, d, dev)

	obj, _ := d.Objects.Get(maskID)
	m := obj.Data.(*GeneratedMask)
	if m.Tex == nil {
		t.Fatal("no coverage texture")
	}
	if m.Tex.Width() != 20 || m.Tex.Height() != 20 {
		t.Fatalf("texture = %dx%d, want 20x20", m.Tex.Width(), m.Tex.Height())
	}
	// The path covers the whole square, so every texel is full coverage.
	pix, err := dev.ReadPixels(m.Tex)
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != 255 {
			t.Fatalf("texel %d = %d, want 255", i/4, pix[i])
		}
	}
}

func TestRegenerateMaskReusesTexture(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	d := NewDocument()
	maskID, pathID := addMaskFixture(t, d, dev)

	obj, _ := d.Objects.Get(maskID)
	m := obj.Data.(*GeneratedMask)
	before := m.Tex

	if err := d.Objects.MovePathPoint(pathID, 2, collage.Pt(0.5, 0.5)); err != nil {
		t.Fatalf("MovePathPoint: %v", err)
	}
	if err := d.RegenerateMask(dev, maskID); err != nil {
		t.Fatalf("RegenerateMask: %v", err)
	}
	if m.Tex != before {
		t.Error("same-size regeneration did not reuse the texture")
	}
}

func TestRegenerateField(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	d := NewDocument()
	imgID, err := d.AddFileImage(dev, writeTestPNG(t, 32, 32))
	if err != nil {
		t.Fatalf("AddFileImage: %v", err)
	}
	brush := d.Programs.Add(ProgramSpec{Name: "brush", FragmentSource: "// brush"})
	drID, err := d.AddDrawing("sketch", imgID, brush, nil)
	if err != nil {
		t.Fatalf("AddDrawing: %v", err)
	}

	// No strokes: nothing to generate.
	if err := d.RegenerateField(dev, drID); err != nil {
		t.Fatalf("RegenerateField: %v", err)
	}
	obj, _ := d.Objects.Get(drID)
	dr := obj.Data.(*Drawing)
	if dr.Field != nil {
		t.Fatal("strokeless drawing grew a field texture")
	}

	dr.Strokes = append(dr.Strokes, []collage.Point{collage.Pt(0, 0), collage.Pt(0.5, 0)})
	if err := d.RegenerateField(dev, drID); err != nil {
		t.Fatalf("RegenerateField: %v", err)
	}
	if dr.Field == nil || dr.Field.Width() != 32 || dr.Field.Height() != 32 {
		t.Fatalf("field = %v", dr.Field)
	}
}

func TestAddText(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	d := NewDocument()
	face, err := text.ParseFace(goregular.TTF)
	if err != nil {
		t.Fatalf("ParseFace: %v", err)
	}
	font := d.Fonts.AddFace("goregular", face)

	id, err := d.AddText(dev, "caption", font, "Hi", 200, 40)
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}
	obj, _ := d.Objects.Get(id)
	txt := obj.Data.(*Text)
	if txt.Glyphs == nil || len(txt.Glyphs.Quads) != 2 {
		t.Fatalf("glyph buffer = %+v", txt.Glyphs)
	}
}

func TestRebuildAfterDecode(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	d := NewDocument()
	maskID, _ := addMaskFixture(t, d, dev)

	data, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	loaded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// Derived content is absent until Rebuild.
	obj, _ := loaded.Objects.Get(maskID)
	if obj.Data.(*GeneratedMask).Tex != nil {
		t.Fatal("decode produced a texture")
	}
	if err := loaded.Rebuild(dev); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if obj.Data.(*GeneratedMask).Tex == nil {
		t.Fatal("Rebuild did not regenerate the mask")
	}
	img, _ := loaded.Objects.Get(loaded.Objects.IDs()[0])
	if img.Data.(*FileImage).Tex == nil {
		t.Fatal("Rebuild did not reload the file image")
	}
}
