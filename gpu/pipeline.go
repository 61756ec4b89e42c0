package gpu

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
)

const fenceTimeout = 5 * time.Second

// bundle holds one compute pass: shader, layouts and pipeline.
type bundle struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// Pipeline runs the edit chain on a discrete GPU through wgpu/hal Vulkan
// compute. A process holds at most one Pipeline; renders serialize on an
// internal mutex since they share the device queue.
type Pipeline struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	geometry bundle
	color    bundle
	blurH    bundle
	blurVUSM bundle

	adapterName string
	limits      gputypes.Limits
}

var (
	pipelineOnce sync.Once
	pipelineInst *Pipeline
	pipelineErr  error
)

// Get initializes the GPU pipeline on first call and returns the shared
// instance. Initialization failure is sticky: every later call reports
// the same error, wrapped in backend.ErrInit.
func Get() (*Pipeline, error) {
	pipelineOnce.Do(func() {
		p := &Pipeline{}
		if err := p.init(); err != nil {
			p.Close()
			pipelineErr = fmt.Errorf("%w: %v", backend.ErrInit, err)
			return
		}
		pipelineInst = p
	})
	return pipelineInst, pipelineErr
}

// Status describes the pipeline for diagnostics.
type Status struct {
	Available           bool
	AdapterName         string
	MaxTextureDimension uint32
}

// RuntimeStatus reports the shared pipeline's state without forcing
// initialization errors onto the caller.
func RuntimeStatus() Status {
	p, err := Get()
	if err != nil {
		return Status{}
	}
	return Status{
		Available:           true,
		AdapterName:         p.adapterName,
		MaxTextureDimension: p.limits.MaxTextureDimension2D,
	}
}

func (p *Pipeline) init() error {
	be, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := be.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	p.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		return fmt.Errorf("no discrete GPU adapter (found %d other adapters)", len(adapters))
	}

	p.limits = gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), p.limits)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	p.device = openDev.Device
	p.queue = openDev.Queue
	p.adapterName = selected.Info.Name

	passes := []struct {
		dst     *bundle
		label   string
		src     string
		entries []gputypes.BindGroupLayoutEntry
	}{
		{&p.geometry, "edit_geometry", geometryShaderSrc, storageUniformEntries()},
		{&p.color, "edit_color", colorShaderSrc, storageUniformEntries()},
		{&p.blurH, "edit_blur_h", blurHShaderSrc, storageUniformEntries()},
		{&p.blurVUSM, "edit_blur_v_usm", blurVUSMShaderSrc, dualStorageUniformEntries()},
	}
	for _, pass := range passes {
		if err := p.createBundle(pass.dst, pass.label, pass.src, pass.entries); err != nil {
			return err
		}
	}

	photograph.Logger().Info("gpu pipeline initialized",
		"adapter", p.adapterName,
		"max_texture_dim", p.limits.MaxTextureDimension2D)
	return nil
}

func storageUniformEntries() []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
	}
}

func dualStorageUniformEntries() []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
	}
}

// compileShader compiles WGSL to SPIR-V words through naga.
func compileShader(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

func (p *Pipeline) createBundle(b *bundle, label, src string, entries []gputypes.BindGroupLayoutEntry) error {
	words, err := compileShader(src)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return fmt.Errorf("%s shader module: %w", label, err)
	}
	b.shader = shader

	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%s bind group layout: %w", label, err)
	}
	b.bindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("%s pipeline layout: %w", label, err)
	}
	b.pipeLayout = pipeLayout

	pipeline, err := p.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("%s compute pipeline: %w", label, err)
	}
	b.pipeline = pipeline
	return nil
}

func (p *Pipeline) destroyBundle(b *bundle) {
	if p.device == nil {
		return
	}
	if b.pipeline != nil {
		p.device.DestroyComputePipeline(b.pipeline)
	}
	if b.pipeLayout != nil {
		p.device.DestroyPipelineLayout(b.pipeLayout)
	}
	if b.bindLayout != nil {
		p.device.DestroyBindGroupLayout(b.bindLayout)
	}
	if b.shader != nil {
		p.device.DestroyShaderModule(b.shader)
	}
	*b = bundle{}
}

// Close releases all device resources. Only used on init failure and in
// tests; a healthy pipeline lives for the process.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyBundle(&p.blurVUSM)
	p.destroyBundle(&p.blurH)
	p.destroyBundle(&p.color)
	p.destroyBundle(&p.geometry)
	if p.device != nil {
		p.device.Destroy()
		p.device = nil
	}
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}
	p.queue = nil
}

// MaxTextureDimension returns the largest image edge the device accepts.
func (p *Pipeline) MaxTextureDimension() uint32 {
	return p.limits.MaxTextureDimension2D
}
