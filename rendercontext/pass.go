package rendercontext

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
)

// ErrNoRenderTargets is returned when a render pass is requested without
// bound targets.
var ErrNoRenderTargets = errors.New("rendercontext: no render targets bound")

// CommandStats counts the native commands recorded by the context.
type CommandStats struct {
	RenderPasses      uint32
	ComputePasses     uint32
	PipelineBinds     uint32
	VertexBufferBinds uint32
	IndexBufferBinds  uint32
	BindGroupBinds    uint32
	ScissorSets       uint32
	StencilRefSets    uint32
	Draws             uint32
	Dispatches        uint32
}

func (c *RenderContext) ensureEncoder() error {
	if c.encoder != nil {
		return nil
	}
	dev := c.owner.Backend().Device()
	if dev == nil {
		return backend.ErrDeviceInvalidated
	}
	enc, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rendercontext"})
	if err != nil {
		return fmt.Errorf("rendercontext: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("frame"); err != nil {
		return fmt.Errorf("rendercontext: begin encoding: %w", err)
	}
	c.encoder = enc
	return nil
}

// BeginRender opens a render pass on the bound targets unless one is
// open. An open compute pass is ended first.
func (c *RenderContext) BeginRender() error {
	if c.renderPass != nil {
		return nil
	}
	if !c.HasRenderTargets() {
		return ErrNoRenderTargets
	}
	desc, err := c.renderPassDescriptor()
	if err != nil {
		return err
	}
	c.EndPass()
	if err := c.ensureEncoder(); err != nil {
		return err
	}
	c.renderPass = c.encoder.BeginRenderPass(desc)
	c.clearColorMask, c.clearFlags = 0, 0
	c.generation++
	c.commands.RenderPasses++

	c.applyViewport()
	c.applyScissor()
	c.renderPass.SetStencilReference(c.stencilRef)
	return nil
}

// BeginCompute opens a compute pass unless one is open. An open render
// pass is ended first.
func (c *RenderContext) BeginCompute() error {
	if c.computePass != nil {
		return nil
	}
	c.EndPass()
	if err := c.ensureEncoder(); err != nil {
		return err
	}
	c.computePass = c.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "compute"})
	c.generation++
	c.commands.ComputePasses++
	return nil
}

// RenderPass returns the open render pass, opening one when needed.
func (c *RenderContext) RenderPass() (hal.RenderPassEncoder, error) {
	if err := c.BeginRender(); err != nil {
		return nil, err
	}
	return c.renderPass, nil
}

// ComputePass returns the open compute pass, opening one when needed.
func (c *RenderContext) ComputePass() (hal.ComputePassEncoder, error) {
	if err := c.BeginCompute(); err != nil {
		return nil, err
	}
	return c.computePass, nil
}

// PassGeneration changes every time a pass begins. Native state set on an
// earlier pass is lost.
func (c *RenderContext) PassGeneration() uint64 { return c.generation }

// EndPass ends the open render or compute pass.
func (c *RenderContext) EndPass() {
	if c.renderPass != nil {
		c.renderPass.End()
		c.renderPass = nil
	}
	if c.computePass != nil {
		c.computePass.End()
		c.computePass = nil
	}
}

func (c *RenderContext) renderPassDescriptor() (*hal.RenderPassDescriptor, error) {
	var bb backend.BackBuffer
	if c.usesSwapChain() {
		var err error
		if bb, err = c.owner.Backend().AcquireBackBuffer(); err != nil {
			return nil, err
		}
	}

	desc := &hal.RenderPassDescriptor{Label: "render"}
	for i, v := range c.colors[:c.numColors] {
		att := hal.RenderPassColorAttachment{
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
		}
		if v.swapChain {
			att.View, att.ResolveTarget = bb.Color, bb.Resolve
		} else {
			att.View, att.ResolveTarget = v.texture.AttachmentView(), v.texture.ResolveView()
		}
		if att.View == nil {
			return nil, fmt.Errorf("%w: color %d has no view", ErrInvalidView, i)
		}
		if c.clearColorMask&(1<<i) != 0 {
			att.LoadOp = gputypes.LoadOpClear
			att.ClearValue = c.clearColors[i]
		}
		desc.ColorAttachments = append(desc.ColorAttachments, att)
	}

	if c.depth.IsEmpty() {
		return desc, nil
	}
	att := &hal.RenderPassDepthStencilAttachment{
		DepthLoadOp:  gputypes.LoadOpLoad,
		DepthStoreOp: gputypes.StoreOpStore,
	}
	if c.depth.swapChain {
		att.View = bb.Depth
	} else {
		att.View = c.depth.texture.AttachmentView()
	}
	if att.View == nil {
		return nil, fmt.Errorf("%w: depth has no view", ErrInvalidView)
	}
	if c.clearFlags&gpucore.ClearDepth != 0 {
		att.DepthLoadOp = gputypes.LoadOpClear
		att.DepthClearValue = c.clearDepth
	}
	if gpucore.HasStencil(c.output.DepthStencilFormat) {
		att.StencilLoadOp = gputypes.LoadOpLoad
		att.StencilStoreOp = gputypes.StoreOpStore
		if c.clearFlags&gpucore.ClearStencil != 0 {
			att.StencilLoadOp = gputypes.LoadOpClear
			att.StencilClearValue = c.clearStencil
		}
	}
	desc.DepthStencilAttachment = att
	return desc, nil
}

func (c *RenderContext) usesSwapChain() bool {
	return c.depth.swapChain || (c.numColors > 0 && c.colors[0].swapChain)
}

func (c *RenderContext) applyViewport() {
	v := c.viewport
	c.renderPass.SetViewport(float32(v.Min.X), float32(v.Min.Y), float32(v.Dx()), float32(v.Dy()), 0, 1)
}

func (c *RenderContext) applyScissor() {
	s := c.scissor
	c.renderPass.SetScissorRect(uint32(s.Min.X), uint32(s.Min.Y), uint32(s.Dx()), uint32(s.Dy()))
	c.commands.ScissorSets++
}

// SetScissorRect sets the scissor rectangle, clamped to the bound targets.
// An empty rectangle selects the whole target. Setting the current
// rectangle again issues no command.
func (c *RenderContext) SetScissorRect(rect image.Rectangle) {
	full := image.Rectangle{Max: c.size}
	rect = rect.Canon().Intersect(full)
	if rect.Empty() {
		rect = full
	}
	if rect == c.scissor {
		return
	}
	c.scissor = rect
	if c.renderPass != nil {
		c.applyScissor()
	}
}

// SetStencilRef sets the stencil reference value.
func (c *RenderContext) SetStencilRef(ref uint32) {
	if ref == c.stencilRef {
		return
	}
	c.stencilRef = ref
	if c.renderPass != nil {
		c.renderPass.SetStencilReference(ref)
		c.commands.StencilRefSets++
	}
}

// SetPipeline binds a render pipeline.
func (c *RenderContext) SetPipeline(p hal.RenderPipeline) {
	pass, err := c.RenderPass()
	if err != nil {
		renderapi.Logger().Warn("rendercontext: set pipeline", "err", err)
		return
	}
	pass.SetPipeline(p)
	c.commands.PipelineBinds++
}

// SetComputePipeline binds a compute pipeline.
func (c *RenderContext) SetComputePipeline(p hal.ComputePipeline) {
	pass, err := c.ComputePass()
	if err != nil {
		renderapi.Logger().Warn("rendercontext: set compute pipeline", "err", err)
		return
	}
	pass.SetPipeline(p)
	c.commands.PipelineBinds++
}

// SetVertexBuffer binds a vertex buffer to a slot of the render pass.
func (c *RenderContext) SetVertexBuffer(slot uint32, buf hal.Buffer, offset uint64) {
	pass, err := c.RenderPass()
	if err != nil {
		return
	}
	pass.SetVertexBuffer(slot, buf, offset)
	c.commands.VertexBufferBinds++
}

// SetIndexBuffer binds the index buffer of the render pass.
func (c *RenderContext) SetIndexBuffer(buf hal.Buffer, format gputypes.IndexFormat, offset uint64) {
	pass, err := c.RenderPass()
	if err != nil {
		return
	}
	pass.SetIndexBuffer(buf, format, offset)
	c.commands.IndexBufferBinds++
}

// SetBindGroup binds a bind group on the open pass. Without an open pass a
// render pass is opened.
func (c *RenderContext) SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32) {
	if c.computePass != nil {
		c.computePass.SetBindGroup(index, group, offsets)
		c.commands.BindGroupBinds++
		return
	}
	pass, err := c.RenderPass()
	if err != nil {
		return
	}
	pass.SetBindGroup(index, group, offsets)
	c.commands.BindGroupBinds++
}

// Draw records a non-indexed draw.
func (c *RenderContext) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	pass, err := c.RenderPass()
	if err != nil {
		return
	}
	pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	c.commands.Draws++
}

// DrawIndexed records an indexed draw.
func (c *RenderContext) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	pass, err := c.RenderPass()
	if err != nil {
		return
	}
	pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	c.commands.Draws++
}

// Dispatch records a compute dispatch.
func (c *RenderContext) Dispatch(x, y, z uint32) {
	pass, err := c.ComputePass()
	if err != nil {
		return
	}
	pass.Dispatch(x, y, z)
	c.commands.Dispatches++
}

// Flush ends the open pass and submits the recorded commands. Pending
// clears are executed by an empty render pass.
func (c *RenderContext) Flush() error {
	if c.hasPendingClears() && c.HasRenderTargets() {
		if err := c.BeginRender(); err != nil {
			return err
		}
	}
	c.EndPass()
	if c.encoder == nil {
		return nil
	}
	enc := c.encoder
	c.encoder = nil
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("rendercontext: end encoding: %w", err)
	}
	if err := c.owner.Backend().Submit([]hal.CommandBuffer{cmd}); err != nil {
		return err
	}
	c.destroyGroups(c.retiredPrev)
	c.retiredPrev, c.retired = c.retired, nil
	return nil
}

// abandon drops the recording without submitting it.
func (c *RenderContext) abandon() {
	if c.owner.Backend().Device() == nil {
		c.renderPass, c.computePass, c.encoder = nil, nil, nil
		return
	}
	c.EndPass()
	if c.encoder != nil {
		c.encoder.DiscardEncoding()
		c.encoder = nil
	}
}
