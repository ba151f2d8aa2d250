// Package wgpu implements the gpu.Device contract on gogpu/wgpu's HAL.
//
// Shader programs compile through naga (WGSL to SPIR-V); draws encode into
// HAL command buffers and submit with a fence wait, so ReadPixels observes
// completed passes. Programs follow the engine's binding convention: group 0
// holds the uniform buffer at binding 0 and each sampler uniform as a
// texture/sampler pair at the following bindings.
package wgpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/collage"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Backend errors.
var (
	// ErrNoAdapter is returned when no GPU adapter is found.
	ErrNoAdapter = errors.New("wgpu: no suitable adapter")

	// ErrDeviceClosed is returned when operating on a closed device.
	ErrDeviceClosed = errors.New("wgpu: device has been closed")

	// ErrNilProvider is returned when a nil host device provider is passed.
	ErrNilProvider = errors.New("wgpu: nil device provider")
)

func init() {
	gpu.Register(gpu.BackendWGPU, func() (gpu.Device, error) {
		return Open()
	})
}

// HalProvider is the optional extension of gpucontext.DeviceProvider that
// exposes the underlying HAL handles. Hosts built on gogpu implement it;
// OpenShared uses it to render on the host's device instead of its own.
type HalProvider interface {
	HalDevice() any
	HalQueue() any
}

// GPUInfo describes the selected adapter.
type GPUInfo struct {
	Name       string
	DeviceType gputypes.DeviceType
}

// String returns a human-readable description of the GPU.
func (g *GPUInfo) String() string {
	return fmt.Sprintf("%s (%s)", g.Name, g.DeviceType)
}

// Device is the hardware implementation of gpu.Device.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	// shared is set when the device and queue belong to a host provider;
	// Close then leaves them alive.
	shared bool

	info    *GPUInfo
	sampler hal.Sampler
	invalid *texture

	// Bind group layouts and pipeline layouts keyed by sampler count.
	bindLayouts map[int]hal.BindGroupLayout
	pipeLayouts map[int]hal.PipelineLayout

	pass     *renderPass
	saved    []savedPass
	viewport [4]int

	closed bool
}

// savedPass is the binding state stacked by nested BeginTarget calls,
// including any sub-viewport the host set on the outer target.
type savedPass struct {
	pass     *renderPass
	viewport [4]int
}

// Open creates a hardware device on the first discrete or integrated GPU.
// Failures wrap gpu.ErrBackendNotAvailable so gpu.Default falls through to
// the software backend.
func Open() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not compiled in", gpu.ErrBackendNotAvailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", gpu.ErrBackendNotAvailable, err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: %w", gpu.ErrBackendNotAvailable, ErrNoAdapter)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("%w: open device: %w", gpu.ErrBackendNotAvailable, err)
	}

	d := &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		info: &GPUInfo{
			Name:       selected.Info.Name,
			DeviceType: selected.Info.DeviceType,
		},
		bindLayouts: make(map[int]hal.BindGroupLayout),
		pipeLayouts: make(map[int]hal.PipelineLayout),
	}
	collage.Logger().Info("wgpu: device opened", "adapter", d.info.Name)

	if err := d.initResources(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// OpenShared creates a device on a host-provided GPU device. The provider
// must implement HalProvider; the host keeps ownership of the device and
// queue, and Close does not release them.
func OpenShared(provider gpucontext.DeviceProvider) (*Device, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	hp, ok := provider.(HalProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider %T does not expose HAL handles", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, errors.New("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, errors.New("wgpu: provider HalQueue is not hal.Queue")
	}

	d := &Device{
		device:      device,
		queue:       queue,
		shared:      true,
		info:        &GPUInfo{Name: "host-provided"},
		bindLayouts: make(map[int]hal.BindGroupLayout),
		pipeLayouts: make(map[int]hal.PipelineLayout),
	}
	if err := d.initResources(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// initResources creates the shared sampler and the invalid-texture sentinel.
func (d *Device) initResources() error {
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "collage_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create sampler: %w", err)
	}
	d.sampler = sampler
	return d.createInvalidTexture()
}

// createInvalidTexture builds the magenta/black checkerboard sentinel,
// matching the software backend's.
func (d *Device) createInvalidTexture() error {
	const side = 8
	t, err := d.CreateTexture(gpu.TextureConfig{
		Width:  side,
		Height: side,
		Format: gpu.FormatRGBA8,
		Label:  "invalid",
	})
	if err != nil {
		return err
	}
	pix := make([]byte, side*side*4)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			i := (y*side + x) * 4
			if (x/2+y/2)%2 == 0 {
				pix[i] = 255
				pix[i+2] = 255
			}
			pix[i+3] = 255
		}
	}
	if err := t.Upload(pix); err != nil {
		t.Destroy()
		return err
	}
	d.invalid = t.(*texture)
	return nil
}

// Name returns the backend identifier.
func (d *Device) Name() string { return gpu.BackendWGPU }

// Info returns adapter information.
func (d *Device) Info() *GPUInfo { return d.info }

// InvalidTexture returns the sentinel texture bound for empty image slots.
func (d *Device) InvalidTexture() gpu.Texture { return d.invalid }

// renderPass holds the encoder state and per-pass resources between
// BeginTarget and EndTarget. Buffers and bind groups created for draws live
// until the pass's command buffer has been waited on.
type renderPass struct {
	target  *texture
	encoder hal.CommandEncoder
	rp      hal.RenderPassEncoder
	draws   int

	buffers    []hal.Buffer
	bindGroups []hal.BindGroup
}

func (p *renderPass) destroyResources(device hal.Device) {
	for _, bg := range p.bindGroups {
		device.DestroyBindGroup(bg)
	}
	for _, b := range p.buffers {
		device.DestroyBuffer(b)
	}
	p.bindGroups = nil
	p.buffers = nil
}

// BeginTarget binds a texture as the current render target and clears it.
// The wgpu backend has no default framebuffer; presentation belongs to the
// host, so BeginTarget(nil) fails.
func (d *Device) BeginTarget(t gpu.Texture) error {
	if d.closed {
		return ErrDeviceClosed
	}
	if t == nil {
		return gpu.ErrNoTarget
	}
	target, ok := t.(*texture)
	if !ok {
		return fmt.Errorf("wgpu: foreign texture %T", t)
	}
	if target.released {
		return gpu.ErrTextureReleased
	}
	if !target.renderTarget {
		return fmt.Errorf("wgpu: texture %q is not a render target", target.label)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "collage_pass_encoder",
	})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("collage_pass"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	desc := &hal.RenderPassDescriptor{
		Label: "collage_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	}
	if target.depthView != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              target.depthView,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		}
	}

	if d.pass != nil {
		d.saved = append(d.saved, savedPass{pass: d.pass, viewport: d.viewport})
	}
	d.pass = &renderPass{
		target:  target,
		encoder: encoder,
		rp:      encoder.BeginRenderPass(desc),
	}
	d.viewport = [4]int{0, 0, target.width, target.height}
	return nil
}

// EndTarget submits the recorded pass, waits for completion, and restores
// the previously bound target. Submission failures are logged; the engine
// surfaces them on the following ReadPixels.
func (d *Device) EndTarget() {
	pass := d.pass
	if pass == nil {
		return
	}
	if len(d.saved) > 0 {
		prev := d.saved[len(d.saved)-1]
		d.saved = d.saved[:len(d.saved)-1]
		d.pass = prev.pass
		d.viewport = prev.viewport
	} else {
		d.pass = nil
	}

	pass.rp.End()
	if err := d.finishAndSubmit(pass.encoder); err != nil {
		collage.Logger().Warn("wgpu: pass submission failed",
			"target", pass.target.label, "error", err)
	}
	pass.destroyResources(d.device)
	collage.Logger().Debug("wgpu pass submitted",
		"target", pass.target.label, "draws", pass.draws)
}

// finishAndSubmit ends encoding, submits the command buffer, and blocks
// until the queue reports the submission complete, so per-pass resources
// can be released immediately after.
func (d *Device) finishAndSubmit(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	idx, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if completed := d.queue.PollCompleted(); completed < idx {
		return fmt.Errorf("submission %d still pending (queue at %d)", idx, completed)
	}
	return nil
}

// SetViewport sets the viewport rectangle in target pixels.
func (d *Device) SetViewport(x, y, w, h int) {
	d.viewport = [4]int{x, y, w, h}
}

// Viewport returns the current viewport rectangle.
func (d *Device) Viewport() (x, y, w, h int) {
	return d.viewport[0], d.viewport[1], d.viewport[2], d.viewport[3]
}

// Draw encodes one draw call into the current pass.
func (d *Device) Draw(call gpu.DrawCall) error {
	if d.closed {
		return ErrDeviceClosed
	}
	pass := d.pass
	if pass == nil {
		return gpu.ErrNoTarget
	}
	p, ok := call.Program.(*program)
	if !ok || p == nil {
		return fmt.Errorf("%w: draw without a program", gpu.ErrCompileFailed)
	}
	if call.DepthTest && pass.target.depthView == nil {
		return gpu.ErrTargetNotRenderable
	}

	samplers := d.samplerUniforms(call.Uniforms)
	pipeline, err := d.ensurePipeline(p, pipelineKey{
		format:    toWGPUFormat(pass.target.format),
		blend:     call.Blend,
		depthTest: call.DepthTest,
		samplers:  len(samplers),
	})
	if err != nil {
		return err
	}

	vertData, vertCount := meshVertexData(call.Mesh)
	vertBuf, err := d.createAndUploadBuffer("collage_verts", vertData,
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	pass.buffers = append(pass.buffers, vertBuf)

	instData, instCount := instanceData(call.Instances)
	instBuf, err := d.createAndUploadBuffer("collage_instances", instData,
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	pass.buffers = append(pass.buffers, instBuf)

	uniformData := packUniforms(call.Uniforms)
	uniformBuf, err := d.createAndUploadBuffer("collage_uniforms", uniformData,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	pass.buffers = append(pass.buffers, uniformBuf)

	bindGroup, err := d.createBindGroup(uniformBuf, uint64(len(uniformData)), samplers)
	if err != nil {
		return err
	}
	pass.bindGroups = append(pass.bindGroups, bindGroup)

	pass.rp.SetPipeline(pipeline)
	pass.rp.SetBindGroup(0, bindGroup, nil)
	pass.rp.SetVertexBuffer(0, vertBuf, 0)
	pass.rp.SetVertexBuffer(1, instBuf, 0)
	pass.rp.Draw(uint32(vertCount), uint32(instCount), 0, 0)

	pass.draws++
	collage.Logger().Debug("wgpu draw",
		"program", p.name, "instances", instCount, "depth", call.DepthTest)
	return nil
}

// createAndUploadBuffer creates a buffer and writes data through the queue.
func (d *Device) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// copyPitchAlignment is the row pitch WebGPU requires for texture copies.
const copyPitchAlignment = 256

// alignRowBytes rounds a row size up to the copy alignment.
func alignRowBytes(n int) int {
	return (n + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
}

// ReadPixels copies a texture to a staging buffer, waits, and returns the
// pixels as RGBA8 bytes. R8 textures expand to opaque grayscale.
func (d *Device) ReadPixels(t gpu.Texture) ([]byte, error) {
	if d.closed {
		return nil, ErrDeviceClosed
	}
	tex, ok := t.(*texture)
	if !ok {
		return nil, fmt.Errorf("wgpu: foreign texture %T", t)
	}
	if tex.released {
		return nil, gpu.ErrTextureReleased
	}

	w, h := uint32(tex.width), uint32(tex.height)
	bytesPerRow := uint32(tex.width * tex.format.BytesPerPixel())
	alignedBytesPerRow := uint32(alignRowBytes(int(bytesPerRow)))
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	stagingBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "collage_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(stagingBuf)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "collage_readback",
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("collage_readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	// Render targets sit in attachment layout after their last pass; the
	// copy needs transfer-source. Transition in, copy, transition back.
	if tex.renderTarget {
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: tex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
	}
	encoder.CopyTextureToBuffer(tex.tex, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	if tex.renderTarget {
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: tex.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		}})
	}

	if err := d.finishAndSubmit(encoder); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}

	mapping, err := d.device.MapBuffer(stagingBuf, 0, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("wgpu: map staging buffer: %w", err)
	}
	readback := make([]byte, stagingSize)
	copy(readback, unsafe.Slice((*byte)(mapping.Ptr), stagingSize))
	if err := d.device.UnmapBuffer(stagingBuf); err != nil {
		return nil, fmt.Errorf("wgpu: unmap staging buffer: %w", err)
	}

	// Strip row padding.
	tight := readback
	if alignedBytesPerRow != bytesPerRow {
		tight = make([]byte, uint64(bytesPerRow)*uint64(h))
		for row := uint32(0); row < h; row++ {
			src := int(row) * int(alignedBytesPerRow)
			dst := int(row) * int(bytesPerRow)
			copy(tight[dst:dst+int(bytesPerRow)], readback[src:src+int(bytesPerRow)])
		}
	}

	if tex.format == gpu.FormatRGBA8 {
		return tight[:tex.width*tex.height*4], nil
	}
	out := make([]byte, tex.width*tex.height*4)
	for i := 0; i < tex.width*tex.height; i++ {
		v := tight[i]
		out[i*4+0] = v
		out[i*4+1] = v
		out[i*4+2] = v
		out[i*4+3] = 255
	}
	return out, nil
}

// Close releases all device resources. Host-provided devices stay alive.
func (d *Device) Close() {
	if d.closed {
		return
	}
	d.closed = true

	if d.invalid != nil {
		d.invalid.Destroy()
		d.invalid = nil
	}
	if d.sampler != nil {
		d.device.DestroySampler(d.sampler)
		d.sampler = nil
	}
	for _, l := range d.pipeLayouts {
		d.device.DestroyPipelineLayout(l)
	}
	for _, l := range d.bindLayouts {
		d.device.DestroyBindGroupLayout(l)
	}
	d.pipeLayouts = nil
	d.bindLayouts = nil
	d.pass = nil
	d.saved = nil
	if !d.shared {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}
