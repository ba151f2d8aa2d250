package wgpu

import (
	"strings"
	"testing"

	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
)

func TestFormatMapping(t *testing.T) {
	tests := []struct {
		in   gpu.TextureFormat
		want gputypes.TextureFormat
	}{
		{gpu.FormatRGBA8, gputypes.TextureFormatRGBA8Unorm},
		{gpu.FormatR8, gputypes.TextureFormatR8Unorm},
	}
	for _, tt := range tests {
		if got := toWGPUFormat(tt.in); got != tt.want {
			t.Errorf("toWGPUFormat(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAlignRowBytes(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 0},
		{1, 256},
		{256, 256},
		{257, 512},
		{64 * 4, 256},
		{100 * 4, 512},
	}
	for _, tt := range tests {
		if got := alignRowBytes(tt.in); got != tt.want {
			t.Errorf("alignRowBytes(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestVertexPreludeCompiles(t *testing.T) {
	source := vertexPrelude + `
@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(in.uv, 0.0, 1.0);
}
`
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		if strings.Contains(err.Error(), "not yet implemented") ||
			strings.Contains(err.Error(), "not supported") {
			t.Skipf("naga limitation: %v", err)
		}
		t.Fatalf("failed to compile prelude shader: %v", err)
	}
	if len(spirvBytes) < 4 {
		t.Fatal("SPIR-V too short")
	}
	words := spirvWords(spirvBytes)
	if words[0] != 0x07230203 {
		t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
	}
}

func TestPackUniformsLayout(t *testing.T) {
	tests := []struct {
		name     string
		uniforms []gpu.Uniform
		want     int
	}{
		{"empty", nil, 16},
		{"scalar", []gpu.Uniform{{Name: "alpha", Value: gpu.Float1(1)}}, 16},
		{"mat3 and scalar", []gpu.Uniform{
			{Name: "transform", Value: gpu.Mat3{}},
			{Name: "alpha", Value: gpu.Float1(1)},
		}, 64},
		{"mat3 vec3 scalar", []gpu.Uniform{
			{Name: "transform", Value: gpu.Mat3{}},
			{Name: "color", Value: gpu.Float3{1, 1, 1}},
			{Name: "alpha", Value: gpu.Float1(1)},
		}, 64},
		{"sampler skipped", []gpu.Uniform{
			{Name: "source", Value: gpu.Sampler{}},
		}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := packUniforms(tt.uniforms)
			if len(got) != tt.want {
				t.Errorf("packed size = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestMeshVertexData(t *testing.T) {
	data, count := meshVertexData(nil)
	if count != 6 {
		t.Errorf("unit quad vertex count = %d, want 6", count)
	}
	if len(data) != 6*vertexStride {
		t.Errorf("unit quad data = %d bytes, want %d", len(data), 6*vertexStride)
	}

	mesh := &gpu.Mesh{Vertices: []gpu.Vertex{{X: 1, Y: 2, Z: 3, U: 4, V: 5}}}
	data, count = meshVertexData(mesh)
	if count != 1 || len(data) != vertexStride {
		t.Errorf("single vertex: count=%d len=%d", count, len(data))
	}
}

func TestInstanceData(t *testing.T) {
	data, count := instanceData(nil)
	if count != 1 {
		t.Errorf("default instance count = %d, want 1", count)
	}
	if len(data) != instanceStride {
		t.Errorf("default instance data = %d bytes, want %d", len(data), instanceStride)
	}

	data, count = instanceData([]gpu.Instance{{Stretch: 1}, {OffsetX: 0.5, Stretch: 2}})
	if count != 2 || len(data) != 2*instanceStride {
		t.Errorf("two instances: count=%d len=%d", count, len(data))
	}
}

func TestOpenShared(t *testing.T) {
	if _, err := OpenShared(nil); err != ErrNilProvider {
		t.Errorf("OpenShared(nil) = %v, want ErrNilProvider", err)
	}
}

// TestDeviceRoundTrip exercises the full pipeline on real hardware. It
// skips when no adapter is available.
func TestDeviceRoundTrip(t *testing.T) {
	d, err := Open()
	if err != nil {
		t.Skipf("no GPU available: %v", err)
	}
	defer d.Close()

	tex, err := d.CreateTexture(gpu.TextureConfig{
		Width: 4, Height: 4, Format: gpu.FormatRGBA8, Label: "roundtrip",
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer tex.Destroy()

	pix := make([]byte, 4*4*4)
	for i := 0; i < 4*4; i++ {
		pix[i*4] = 200
		pix[i*4+3] = 255
	}
	if err := tex.Upload(pix); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := d.ReadPixels(tex)
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	if len(got) != len(pix) {
		t.Fatalf("ReadPixels returned %d bytes, want %d", len(got), len(pix))
	}
	if got[0] != 200 || got[3] != 255 {
		t.Errorf("pixel (0,0) = [%d %d %d %d], want [200 0 0 255]",
			got[0], got[1], got[2], got[3])
	}
}
