package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/transform"
)

const workgroupSize = 16

// Render applies the edit state on the GPU and returns a new image.
// States with no active adjustments copy the input without touching the
// device. Images exceeding the device texture limit are refused with
// backend.ErrRefused so the policy layer can decide what happens next.
func (p *Pipeline) Render(img *photograph.Image, state photograph.EditState) (*photograph.Image, error) {
	if !state.HasAdjustments() {
		return img.Clone(), nil
	}

	srcW, srcH := img.Width(), img.Height()
	if maxDim := int(p.limits.MaxTextureDimension2D); maxDim > 0 && (srcW > maxDim || srcH > maxDim) {
		return nil, fmt.Errorf("%w: image %dx%d exceeds device limit %d",
			backend.ErrRefused, srcW, srcH, maxDim)
	}

	needsGeometry := state.HasGeometry()
	needsSharpness := state.Sharpness > photograph.StateEps
	outW, outH := srcW, srcH
	if needsGeometry {
		outW, outH = transform.OutputDims(state, srcW, srcH)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	srcSize := uint64(srcW * srcH * 4)
	outSize := uint64(outW * outH * 4)

	var owned []hal.Buffer
	defer func() {
		for _, b := range owned {
			p.device.DestroyBuffer(b)
		}
	}()
	newBuffer := func(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
		buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
		if err != nil {
			return nil, fmt.Errorf("create %s buffer: %w", label, err)
		}
		owned = append(owned, buf)
		return buf, nil
	}

	srcBuf, err := newBuffer("edit_src", srcSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	p.queue.WriteBuffer(srcBuf, 0, packPixels(img.Pix()))

	colorIn, colorInSize := srcBuf, srcSize
	if needsGeometry {
		geoOut, err := newBuffer("edit_geo_out", outSize, gputypes.BufferUsageStorage)
		if err != nil {
			return nil, err
		}
		colorIn, colorInSize = geoOut, outSize
	}

	colorOut, err := newBuffer("edit_color_out", outSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	if err != nil {
		return nil, err
	}

	var blurHBuf, finalBuf hal.Buffer
	if needsSharpness {
		if blurHBuf, err = newBuffer("edit_blur_h", outSize, gputypes.BufferUsageStorage); err != nil {
			return nil, err
		}
		if finalBuf, err = newBuffer("edit_final", outSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc); err != nil {
			return nil, err
		}
	}

	stagingBuf, err := newBuffer("edit_staging", outSize, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	newUniform := func(label string, data []byte) (hal.Buffer, error) {
		buf, err := newBuffer(label, uint64(len(data)), gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		if err != nil {
			return nil, err
		}
		p.queue.WriteBuffer(buf, 0, data)
		return buf, nil
	}

	var ownedBGs []hal.BindGroup
	defer func() {
		for _, bg := range ownedBGs {
			p.device.DestroyBindGroup(bg)
		}
	}()
	newBindGroup := func(label string, layout hal.BindGroupLayout, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
		bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{Label: label, Layout: layout, Entries: entries})
		if err != nil {
			return nil, fmt.Errorf("create %s bind group: %w", label, err)
		}
		ownedBGs = append(ownedBGs, bg)
		return bg, nil
	}
	binding := func(n uint32, buf hal.Buffer, size uint64) gputypes.BindGroupEntry {
		return gputypes.BindGroupEntry{
			Binding:  n,
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: size},
		}
	}

	type pass struct {
		bundle *bundle
		bg     hal.BindGroup
		label  string
	}
	var passes []pass

	if needsGeometry {
		geoU, err := newUniform("edit_geo_params", geoParamBytes(state, srcW, srcH, outW, outH))
		if err != nil {
			return nil, err
		}
		bg, err := newBindGroup("edit_geo_bg", p.geometry.bindLayout, []gputypes.BindGroupEntry{
			binding(0, srcBuf, srcSize),
			binding(1, colorIn, outSize),
			binding(2, geoU, 96),
		})
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass{&p.geometry, bg, "geometry"})
	}

	colorU, err := newUniform("edit_color_params", colorParamBytes(state, outW, outH))
	if err != nil {
		return nil, err
	}
	colorBG, err := newBindGroup("edit_color_bg", p.color.bindLayout, []gputypes.BindGroupEntry{
		binding(0, colorIn, colorInSize),
		binding(1, colorOut, outSize),
		binding(2, colorU, 160),
	})
	if err != nil {
		return nil, err
	}
	passes = append(passes, pass{&p.color, colorBG, "color"})

	readbackBuf := colorOut
	if needsSharpness {
		blurU, err := newUniform("edit_blur_params", blurParamBytes(outW, outH, state.Sharpness))
		if err != nil {
			return nil, err
		}
		blurHBG, err := newBindGroup("edit_blur_h_bg", p.blurH.bindLayout, []gputypes.BindGroupEntry{
			binding(0, colorOut, outSize),
			binding(1, blurHBuf, outSize),
			binding(2, blurU, 16),
		})
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass{&p.blurH, blurHBG, "blur_h"})

		blurVBG, err := newBindGroup("edit_blur_v_bg", p.blurVUSM.bindLayout, []gputypes.BindGroupEntry{
			binding(0, blurHBuf, outSize),
			binding(1, colorOut, outSize),
			binding(2, finalBuf, outSize),
			binding(3, blurU, 16),
		})
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass{&p.blurVUSM, blurVBG, "blur_v_usm"})
		readbackBuf = finalBuf
	}

	encoder, err := p.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "edit_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("edit_pipeline"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	groupsX := (uint32(outW) + workgroupSize - 1) / workgroupSize
	groupsY := (uint32(outH) + workgroupSize - 1) / workgroupSize
	for _, ps := range passes {
		computePass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "edit_" + ps.label})
		computePass.SetPipeline(ps.bundle.pipeline)
		computePass.SetBindGroup(0, ps.bg, nil)
		computePass.Dispatch(groupsX, groupsY, 1)
		computePass.End()
	}

	encoder.CopyBufferToBuffer(readbackBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer p.device.FreeCommandBuffer(cmdBuf)

	fence, err := p.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer p.device.DestroyFence(fence)
	if err := p.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := p.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}
	if !fenceOK {
		return nil, fmt.Errorf("wait for GPU: fence timeout after %s", fenceTimeout)
	}

	readback := make([]byte, outSize)
	if err := p.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	out, err := photograph.NewImage(outW, outH)
	if err != nil {
		return nil, err
	}
	unpackPixels(readback, out.Pix())
	return out, nil
}

// Renderer adapts the shared pipeline to the backend renderer contract.
type Renderer struct {
	p *Pipeline
}

// NewRenderer returns the GPU renderer, or an error wrapping
// backend.ErrInit when the device cannot be brought up.
func NewRenderer() (*Renderer, error) {
	p, err := Get()
	if err != nil {
		return nil, err
	}
	return &Renderer{p: p}, nil
}

func (r *Renderer) Name() string { return "gpu" }

func (r *Renderer) Render(img *photograph.Image, state photograph.EditState) (*photograph.Image, error) {
	return r.p.Render(img, state)
}
