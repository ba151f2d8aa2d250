package sdf

import (
	"testing"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/gpu/softgpu"
)

// fieldAt reads the red channel and alpha of one pixel of a generated
// field.
func fieldAt(t *testing.T, dev gpu.Device, tex gpu.Texture, x, y int) (r, a byte) {
	t.Helper()
	pix, err := dev.ReadPixels(tex)
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	i := (y*tex.Width() + x) * 4
	return pix[i], pix[i+3]
}

func TestGenerateInvalidDimensions(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	var g Generator
	if _, err := g.Generate(dev, nil, 0, 64, nil); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestGenerateSinglePoint(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	var g Generator
	strokes := [][]collage.Point{{collage.Pt(0, 0)}}
	tex, err := g.Generate(dev, strokes, 64, 64, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer tex.Destroy()

	// The cone apex sits at the field center: near-zero distance, opaque.
	r, a := fieldAt(t, dev, tex, 32, 32)
	if a != 255 {
		t.Fatalf("center alpha = %d, want 255", a)
	}
	if r > 110 {
		t.Errorf("center distance = %d, want near 0", r)
	}

	// A corner is far outside the brush radius: untouched.
	if _, a := fieldAt(t, dev, tex, 0, 0); a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
}

func TestGenerateSegmentDistance(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	var g Generator
	strokes := [][]collage.Point{{collage.Pt(-0.5, 0), collage.Pt(0.5, 0)}}
	tex, err := g.Generate(dev, strokes, 100, 100, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer tex.Destroy()

	// On the segment: distance near zero.
	r, a := fieldAt(t, dev, tex, 50, 50)
	if a != 255 || r > 90 {
		t.Errorf("on-segment texel = (%d, alpha %d), want near-zero opaque", r, a)
	}

	// Clip y = 0.2 is 0.8 of the default brush radius from the segment:
	// the stored value is sqrt(0.8) of full scale. Pixel row for clip 0.2
	// is y = 40 on a 100-pixel target.
	r, a = fieldAt(t, dev, tex, 50, 40)
	if a != 255 {
		t.Fatalf("near-rim alpha = %d, want 255", a)
	}
	want := 228 // sqrt(0.8) * 255
	if diff := int(r) - want; diff < -25 || diff > 25 {
		t.Errorf("near-rim distance = %d, want about %d", r, want)
	}

	// Beyond the radius: untouched.
	if _, a := fieldAt(t, dev, tex, 50, 20); a != 0 {
		t.Errorf("far texel alpha = %d, want 0", a)
	}
}

func TestGenerateReusesTexture(t *testing.T) {
	dev := softgpu.New()
	defer dev.Close()

	var g Generator
	strokes := [][]collage.Point{{collage.Pt(0, 0)}}
	first, err := g.Generate(dev, strokes, 32, 32, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := g.Generate(dev, strokes, 32, 32, first)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if second != first {
		t.Error("same-size regeneration did not reuse the texture")
	}

	third, err := g.Generate(dev, strokes, 64, 64, second)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer third.Destroy()
	if third == second {
		t.Error("resized regeneration reused the old texture")
	}
}

func TestMeshGeometry(t *testing.T) {
	g := Generator{ConePoints: 8}

	cone := g.coneMesh()
	if got := len(cone.Vertices); got != 24 {
		t.Fatalf("cone has %d vertices, want 24", got)
	}
	for i := 0; i < len(cone.Vertices); i += 3 {
		apex := cone.Vertices[i]
		if apex.X != 0 || apex.Y != 0 || apex.Z != 0 {
			t.Fatalf("triangle %d apex = %+v, want origin at z 0", i/3, apex)
		}
		for _, v := range cone.Vertices[i+1 : i+3] {
			if v.Z != 1 {
				t.Errorf("rim vertex %+v has z %v, want 1", v, v.Z)
			}
		}
	}

	tent := g.tentMesh()
	if got := len(tent.Vertices); got != 12 {
		t.Fatalf("tent has %d vertices, want 12", got)
	}
	for _, v := range tent.Vertices {
		if v.Y == 0 && v.Z != 0 {
			t.Errorf("ridge vertex %+v has z %v, want 0", v, v.Z)
		}
		if v.Y != 0 && v.Z != 1 {
			t.Errorf("edge vertex %+v has z %v, want 1", v, v.Z)
		}
	}
}

func TestInstancePlacement(t *testing.T) {
	var g Generator
	strokes := [][]collage.Point{{collage.Pt(0, 0), collage.Pt(0.6, 0.8)}}
	cones, tents := g.instances(strokes)

	if len(cones) != 2 {
		t.Fatalf("got %d cones, want 2", len(cones))
	}
	if len(tents) != 1 {
		t.Fatalf("got %d tents, want 1", len(tents))
	}
	tent := tents[0]
	if tent.OffsetX != 0.3 || tent.OffsetY != 0.4 {
		t.Errorf("tent offset = (%v, %v), want segment midpoint (0.3, 0.4)", tent.OffsetX, tent.OffsetY)
	}
	if diff := tent.Stretch - 1.0; diff < -1e-5 || diff > 1e-5 {
		t.Errorf("tent stretch = %v, want segment length 1", tent.Stretch)
	}
}

type drawRecorder struct {
	gpu.Device
	calls []gpu.DrawCall
}

func (d *drawRecorder) Draw(call gpu.DrawCall) error {
	d.calls = append(d.calls, call)
	return d.Device.Draw(call)
}

// distance.wgsl declares a transform uniform; every field draw must
// supply it so the packed uniform buffer lines up on real backends.
func TestGenerateDrawsCarryTransform(t *testing.T) {
	dev := &drawRecorder{Device: softgpu.New()}
	defer dev.Close()

	var g Generator
	strokes := [][]collage.Point{{collage.Pt(-0.5, 0), collage.Pt(0.5, 0)}}
	tex, err := g.Generate(dev, strokes, 32, 32, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer tex.Destroy()

	if len(dev.calls) != 2 {
		t.Fatalf("draw calls = %d, want cone and tent passes", len(dev.calls))
	}
	for i, call := range dev.calls {
		found := false
		for _, u := range call.Uniforms {
			if u.Name == "transform" {
				found = true
			}
		}
		if !found {
			t.Errorf("draw %d has no transform uniform", i)
		}
	}
}
