package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Interleaved vertex strides of the engine's two vertex buffers.
const (
	vertexStride   = 20 // x, y, z, u, v
	instanceStride = 16 // offset.xy, stretch, rotation
)

// vertexPrelude is the standard full-screen-quad vertex stage, prepended to
// fragment-only sources. It applies the instance placement but no object
// transform; programs that need one declare their own vertex stage.
const vertexPrelude = `struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) instance_offset: vec2<f32>,
    @location(3) instance_stretch: f32,
    @location(4) instance_rotation: f32,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    let c = cos(in.instance_rotation);
    let s = sin(in.instance_rotation);
    let stretched = vec2<f32>(in.position.x * in.instance_stretch, in.position.y);
    let rotated = vec2<f32>(
        stretched.x * c - stretched.y * s,
        stretched.x * s + stretched.y * c,
    );
    var out: VertexOutput;
    out.position = vec4<f32>(rotated + in.instance_offset, in.position.z, 1.0);
    out.uv = in.uv;
    return out;
}
`

// pipelineKey identifies one pipeline variant of a program.
type pipelineKey struct {
	format    gputypes.TextureFormat
	blend     gpu.BlendMode
	depthTest bool
	samplers  int
}

// program is a compiled shader module with pipelines per target state.
type program struct {
	dev       *Device
	name      string
	shader    hal.ShaderModule
	pipelines map[pipelineKey]hal.RenderPipeline
}

// CompileProgram compiles WGSL through naga into a SPIR-V shader module.
func (d *Device) CompileProgram(config gpu.ProgramConfig) (gpu.Program, error) {
	if d.closed {
		return nil, ErrDeviceClosed
	}
	if config.FragmentSource == "" {
		return nil, fmt.Errorf("%w: program %q has no fragment source", gpu.ErrCompileFailed, config.Name)
	}

	source := config.FragmentSource
	switch {
	case config.VertexSource != "":
		source = config.VertexSource + "\n" + source
	case !strings.Contains(source, "vs_main"):
		source = vertexPrelude + "\n" + source
	}

	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: program %q: %w", gpu.ErrCompileFailed, config.Name, err)
	}
	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  config.Name,
		Source: hal.ShaderSource{SPIRV: spirvWords(spirvBytes)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: program %q: %w", gpu.ErrCompileFailed, config.Name, err)
	}

	return &program{
		dev:       d,
		name:      config.Name,
		shader:    shader,
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}, nil
}

// spirvWords converts SPIR-V bytes to the word stream HAL consumes.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// Name returns the program's configured name.
func (p *program) Name() string { return p.name }

// Destroy releases the program's device resources.
func (p *program) Destroy() {
	device := p.dev.device
	if device == nil {
		return
	}
	for _, pl := range p.pipelines {
		device.DestroyRenderPipeline(pl)
	}
	p.pipelines = make(map[pipelineKey]hal.RenderPipeline)
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// vertexLayouts describes the engine's mesh and instance buffers, matching
// VertexInput in the WGSL sources.
func vertexLayouts() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: vertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1}, // uv
			},
		},
		{
			ArrayStride: instanceStride,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 2}, // offset
				{Format: gputypes.VertexFormatFloat32, Offset: 8, ShaderLocation: 3},   // stretch
				{Format: gputypes.VertexFormatFloat32, Offset: 12, ShaderLocation: 4},  // rotation
			},
		},
	}
}

// ensureBindLayout returns the bind group layout for a draw with the given
// sampler count: uniform buffer at binding 0, texture/sampler pairs after.
func (d *Device) ensureBindLayout(samplers int) (hal.BindGroupLayout, error) {
	if l, ok := d.bindLayouts[samplers]; ok {
		return l, nil
	}
	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}}
	for i := 0; i < samplers; i++ {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(1 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    uint32(2 + 2*i),
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			})
	}
	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("collage_bind_layout_%d", samplers),
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group layout: %w", err)
	}
	d.bindLayouts[samplers] = layout
	return layout, nil
}

// ensurePipelineLayout returns the pipeline layout for a sampler count.
func (d *Device) ensurePipelineLayout(samplers int) (hal.PipelineLayout, error) {
	if l, ok := d.pipeLayouts[samplers]; ok {
		return l, nil
	}
	bindLayout, err := d.ensureBindLayout(samplers)
	if err != nil {
		return nil, err
	}
	layout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            fmt.Sprintf("collage_pipe_layout_%d", samplers),
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}
	d.pipeLayouts[samplers] = layout
	return layout, nil
}

// ensurePipeline returns the program's pipeline for the given target state,
// creating it on first use.
func (d *Device) ensurePipeline(p *program, key pipelineKey) (hal.RenderPipeline, error) {
	if pl, ok := p.pipelines[key]; ok {
		return pl, nil
	}
	layout, err := d.ensurePipelineLayout(key.samplers)
	if err != nil {
		return nil, err
	}

	target := gputypes.ColorTargetState{
		Format:    key.format,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	if key.blend == gpu.BlendAlpha {
		// The closest state gputypes constructs; the engine's sources keep
		// their color channels scaled by alpha when blending.
		blend := gputypes.BlendStatePremultiplied()
		target.Blend = &blend
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  p.name,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    vertexLayouts(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets:    []gputypes.ColorTargetState{target},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if key.depthTest {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            gputypes.TextureFormatDepth24PlusStencil8,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilReadMask:  0x00,
			StencilWriteMask: 0x00,
		}
	}

	pipeline, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline %q: %w", p.name, err)
	}
	p.pipelines[key] = pipeline
	return pipeline, nil
}

// createBindGroup binds the packed uniform buffer and the draw's sampled
// textures following the engine's binding convention.
func (d *Device) createBindGroup(uniformBuf hal.Buffer, uniformSize uint64, textures []*texture) (hal.BindGroup, error) {
	layout, err := d.ensureBindLayout(len(textures))
	if err != nil {
		return nil, err
	}
	entries := []gputypes.BindGroupEntry{{
		Binding: 0,
		Resource: gputypes.BufferBinding{
			Buffer: uniformBuf.NativeHandle(),
			Offset: 0,
			Size:   uniformSize,
		},
	}}
	for i, tex := range textures {
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  uint32(1 + 2*i),
				Resource: gputypes.TextureViewBinding{TextureView: tex.view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  uint32(2 + 2*i),
				Resource: gputypes.SamplerBinding{Sampler: d.sampler.NativeHandle()},
			})
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "collage_bind",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group: %w", err)
	}
	return bg, nil
}

// samplerUniforms extracts the draw's sampled textures in binding order.
// Nil sampler textures resolve to the invalid-texture sentinel.
func (d *Device) samplerUniforms(uniforms []gpu.Uniform) []*texture {
	var out []*texture
	for _, u := range uniforms {
		s, ok := u.Value.(gpu.Sampler)
		if !ok {
			continue
		}
		if tex, ok := s.Texture.(*texture); ok && tex != nil {
			out = append(out, tex)
		} else {
			out = append(out, d.invalid)
		}
	}
	return out
}

// packUniforms lays the non-sampler uniforms out in declaration order with
// WGSL uniform alignment: scalars 4, vec2 8, vec3 16, mat3x3 three padded
// columns. The result is padded to a 16-byte multiple.
func packUniforms(uniforms []gpu.Uniform) []byte {
	var buf []byte
	put := func(align int, vals ...float32) {
		for len(buf)%align != 0 {
			buf = append(buf, 0)
		}
		for _, v := range vals {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	for _, u := range uniforms {
		switch v := u.Value.(type) {
		case gpu.Float1:
			put(4, float32(v))
		case gpu.Float2:
			put(8, v[0], v[1])
		case gpu.Float3:
			put(16, v[0], v[1], v[2])
		case gpu.Int1:
			for len(buf)%4 != 0 {
				buf = append(buf, 0)
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
		case gpu.Mat3:
			put(16, v[:]...)
		}
	}
	for len(buf)%16 != 0 {
		buf = append(buf, 0)
	}
	if len(buf) == 0 {
		buf = make([]byte, 16)
	}
	return buf
}

// unitQuadVertices is the default mesh: the [-1,1]^2 square as two
// triangles, texture V pointing down.
var unitQuadVertices = []gpu.Vertex{
	{X: -1, Y: -1, U: 0, V: 1}, {X: 1, Y: -1, U: 1, V: 1}, {X: 1, Y: 1, U: 1, V: 0},
	{X: -1, Y: -1, U: 0, V: 1}, {X: 1, Y: 1, U: 1, V: 0}, {X: -1, Y: 1, U: 0, V: 0},
}

// meshVertexData interleaves a mesh into the vertex buffer layout. A nil
// mesh draws the unit quad.
func meshVertexData(mesh *gpu.Mesh) ([]byte, int) {
	verts := unitQuadVertices
	if mesh != nil {
		verts = mesh.Vertices
	}
	buf := make([]byte, 0, len(verts)*vertexStride)
	for _, v := range verts {
		for _, f := range [5]float32{v.X, v.Y, v.Z, v.U, v.V} {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf, len(verts)
}

// instanceData interleaves per-instance placements. Empty instances draw a
// single identity placement.
func instanceData(instances []gpu.Instance) ([]byte, int) {
	if len(instances) == 0 {
		instances = []gpu.Instance{{Stretch: 1}}
	}
	buf := make([]byte, 0, len(instances)*instanceStride)
	for _, in := range instances {
		for _, f := range [4]float32{in.OffsetX, in.OffsetY, in.Stretch, in.Rotation} {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf, len(instances)
}
