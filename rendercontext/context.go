package rendercontext

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/cache"
	"github.com/gogpu/renderapi/pipeline"
	"github.com/gogpu/renderapi/raw"
)

// Errors returned by SetRenderTargets.
var (
	// ErrTooManyRenderTargets is returned when more than
	// gpucore.MaxRenderTargets color views are bound.
	ErrTooManyRenderTargets = errors.New("rendercontext: too many render targets")

	// ErrMixedSwapChain is returned when swap chain views are bound together
	// with texture views.
	ErrMixedSwapChain = errors.New("rendercontext: swap chain views cannot be mixed with texture views")

	// ErrInvalidView is returned for views of textures that were not
	// created for binding as render target or depth-stencil.
	ErrInvalidView = errors.New("rendercontext: texture cannot be bound as target")
)

// bindGroupCacheSize bounds the number of bind groups kept alive.
const bindGroupCacheSize = 1024

// RenderContext owns the render target, viewport and scissor state of the
// device context and records the native commands of a frame.
//
// RenderContext is not safe for concurrent use.
type RenderContext struct {
	owner raw.Owner

	colors    [gpucore.MaxRenderTargets]RenderTargetView
	numColors int
	depth     OptionalDepthStencilView
	output    pipeline.OutputDesc
	size      image.Point

	viewport   image.Rectangle
	scissor    image.Rectangle
	stencilRef uint32

	// Clears are recorded as load operations of the next render pass.
	clearColorMask uint8
	clearColors    [gpucore.MaxRenderTargets]gputypes.Color
	clearFlags     gpucore.ClearTargetFlags
	clearDepth     float32
	clearStencil   uint32

	encoder     hal.CommandEncoder
	renderPass  hal.RenderPassEncoder
	computePass hal.ComputePassEncoder
	generation  uint64

	bindGroups *cache.Cache[bindGroupKey, hal.BindGroup]
	// retired holds evicted bind groups until the commands recorded with
	// them are submitted.
	retired     []hal.BindGroup
	retiredPrev []hal.BindGroup

	stats    gpucore.Stats
	commands CommandStats
}

// New creates a render context registered with owner. No target is bound.
func New(owner raw.Owner) *RenderContext {
	c := &RenderContext{owner: owner}
	c.bindGroups = cache.New(bindGroupCacheSize, func(_ bindGroupKey, g hal.BindGroup) {
		c.retired = append(c.retired, g)
	})
	owner.AddDeviceObject(c)
	return c
}

// SetSwapChainRenderTargets binds the swap chain color and depth buffers.
func (c *RenderContext) SetSwapChainRenderTargets() {
	if err := c.SetRenderTargets(SwapChainDepthStencil(), SwapChainColor()); err != nil {
		renderapi.Logger().Warn("rendercontext: bind swap chain", "err", err)
	}
}

// SetRenderTargets binds a depth-stencil view and color views. Swap chain
// views can only be mixed with texture views when a single view is bound.
// Textures bound anew are marked dirty. Binding different targets ends
// the current pass and resets the viewport and scissor to the full target.
func (c *RenderContext) SetRenderTargets(depth OptionalDepthStencilView, colors ...RenderTargetView) error {
	if len(colors) > gpucore.MaxRenderTargets {
		return fmt.Errorf("%w: %d", ErrTooManyRenderTargets, len(colors))
	}

	total, swapChain := 0, 0
	for i, v := range colors {
		if !v.valid() {
			return fmt.Errorf("%w: color %d", ErrInvalidView, i)
		}
		total++
		if v.swapChain {
			swapChain++
		}
	}
	if !depth.valid() {
		return fmt.Errorf("%w: depth", ErrInvalidView)
	}
	if !depth.IsEmpty() {
		total++
		if depth.swapChain {
			swapChain++
		}
	}
	if swapChain > 0 && swapChain < total {
		return ErrMixedSwapChain
	}

	for _, v := range colors {
		if v.texture != nil && !c.IsBoundAsRenderTarget(v.texture) {
			v.texture.MarkDirty()
		}
	}
	if depth.texture != nil && !c.IsBoundAsRenderTarget(depth.texture) {
		depth.texture.MarkDirty()
	}

	if c.sameTargets(depth, colors) {
		return nil
	}
	c.EndPass()
	// Clears target the previous views.
	c.clearColorMask, c.clearFlags = 0, 0

	c.colors = [gpucore.MaxRenderTargets]RenderTargetView{}
	copy(c.colors[:], colors)
	c.numColors = len(colors)
	c.depth = depth
	c.updateOutput()

	c.viewport = image.Rectangle{Max: c.size}
	c.scissor = c.viewport
	return nil
}

func (c *RenderContext) sameTargets(depth OptionalDepthStencilView, colors []RenderTargetView) bool {
	if depth != c.depth || len(colors) != c.numColors {
		return false
	}
	for i, v := range colors {
		if v != c.colors[i] {
			return false
		}
	}
	return true
}

// updateOutput recomputes the output descriptor and the target size from
// the bound views.
func (c *RenderContext) updateOutput() {
	be := c.owner.Backend()
	out := pipeline.OutputDesc{
		DepthStencilFormat: c.depth.format(be),
		NumRenderTargets:   uint8(c.numColors),
		MultiSample:        1,
	}
	var size image.Point
	setSize := func(w, h, samples uint32) {
		if size == (image.Point{}) {
			size = image.Pt(int(w), int(h))
			out.MultiSample = max(samples, 1)
		}
	}
	swap := be.SwapChain()
	for i, v := range c.colors[:c.numColors] {
		out.RenderTargetFormats[i] = v.format(be)
		if v.swapChain {
			setSize(swap.Width, swap.Height, swap.SampleCount)
		} else {
			w, h := v.texture.Size()
			setSize(w, h, v.texture.SampleCount())
		}
	}
	switch {
	case c.depth.swapChain:
		setSize(swap.Width, swap.Height, swap.SampleCount)
	case c.depth.texture != nil:
		w, h := c.depth.texture.Size()
		setSize(w, h, c.depth.texture.SampleCount())
	}
	c.output = out
	c.size = size
}

// IsBoundAsRenderTarget reports whether t is bound as a color or
// depth-stencil target.
func (c *RenderContext) IsBoundAsRenderTarget(t *raw.RawTexture) bool {
	if t == nil {
		return false
	}
	if c.depth.texture == t {
		return true
	}
	for _, v := range c.colors[:c.numColors] {
		if v.texture == t {
			return true
		}
	}
	return false
}

// CurrentOutputDesc describes the bound targets.
func (c *RenderContext) CurrentOutputDesc() pipeline.OutputDesc { return c.output }

// CurrentRenderTargetSize returns the size of the bound targets, or zero
// when nothing is bound.
func (c *RenderContext) CurrentRenderTargetSize() image.Point { return c.size }

// HasRenderTargets reports whether any target is bound.
func (c *RenderContext) HasRenderTargets() bool {
	return c.numColors > 0 || !c.depth.IsEmpty()
}

// SetViewport sets the viewport, clamped to the bound targets.
func (c *RenderContext) SetViewport(rect image.Rectangle) {
	c.viewport = rect.Canon().Intersect(image.Rectangle{Max: c.size})
	if c.renderPass != nil {
		c.applyViewport()
	}
}

// SetFullViewport sets the viewport to the whole of the bound targets. It
// panics when no target is bound.
func (c *RenderContext) SetFullViewport() {
	if !c.HasRenderTargets() {
		panic("rendercontext: SetFullViewport without bound render targets")
	}
	c.SetViewport(image.Rectangle{Max: c.size})
}

// Viewport returns the current viewport.
func (c *RenderContext) Viewport() image.Rectangle { return c.viewport }

// Scissor returns the current scissor rectangle.
func (c *RenderContext) Scissor() image.Rectangle { return c.scissor }

// ClearRenderTarget clears the color target at index. The clear is
// performed when the next render pass begins.
func (c *RenderContext) ClearRenderTarget(index int, color gputypes.Color) {
	if index < 0 || index >= c.numColors {
		renderapi.Logger().Warn("rendercontext: clear of unbound render target", "index", index)
		return
	}
	c.EndPass()
	c.clearColorMask |= 1 << index
	c.clearColors[index] = color
}

// ClearDepthStencil clears the bound depth-stencil target. The stencil
// clear is dropped when the target format has no stencil channel.
func (c *RenderContext) ClearDepthStencil(flags gpucore.ClearTargetFlags, depth float32, stencil uint32) {
	if c.depth.IsEmpty() {
		renderapi.Logger().Warn("rendercontext: clear without bound depth-stencil")
		return
	}
	if !gpucore.HasStencil(c.output.DepthStencilFormat) {
		flags &^= gpucore.ClearStencil
	}
	flags &= gpucore.ClearDepth | gpucore.ClearStencil
	if flags == 0 {
		return
	}
	c.EndPass()
	c.clearFlags |= flags
	if flags&gpucore.ClearDepth != 0 {
		c.clearDepth = depth
	}
	if flags&gpucore.ClearStencil != 0 {
		c.clearStencil = stencil
	}
}

func (c *RenderContext) hasPendingClears() bool {
	return c.clearColorMask != 0 || c.clearFlags != 0
}

// AddStats accumulates the work of a draw or dispatch.
func (c *RenderContext) AddStats(s gpucore.Stats) { c.stats.Add(s) }

// Stats returns the work accumulated since the last ResetStats.
func (c *RenderContext) Stats() gpucore.Stats { return c.stats }

// ResetStats clears the accumulated work.
func (c *RenderContext) ResetStats() { c.stats = gpucore.Stats{} }

// CommandStats returns the native commands recorded since the last
// ResetCommandStats.
func (c *RenderContext) CommandStats() CommandStats { return c.commands }

// ResetCommandStats clears the native command counters.
func (c *RenderContext) ResetCommandStats() { c.commands = CommandStats{} }

// SwapChainResized updates the target size after the swap chain was
// resized. Bound swap chain views are rebound with a full viewport.
func (c *RenderContext) SwapChainResized() {
	if !c.usesSwapChain() {
		return
	}
	c.EndPass()
	c.updateOutput()
	c.viewport = image.Rectangle{Max: c.size}
	c.scissor = c.viewport
}

// DropBindGroups evicts every cached bind group. The groups are destroyed
// once the commands recorded with them are submitted.
func (c *RenderContext) DropBindGroups() {
	c.bindGroups.Clear()
}

// Invalidate drops the recording and every cached bind group.
func (c *RenderContext) Invalidate() {
	c.abandon()
	c.bindGroups.Clear()
	c.destroyRetired()
}

// Restore is a no-op: the recording starts again with the next command.
func (c *RenderContext) Restore() {}

// Destroy releases the recording and the cached bind groups.
func (c *RenderContext) Destroy() {
	c.Invalidate()
	c.colors = [gpucore.MaxRenderTargets]RenderTargetView{}
	c.numColors = 0
	c.depth = OptionalDepthStencilView{}
	c.updateOutput()
}

// Release destroys the context and unregisters it from its owner.
func (c *RenderContext) Release() {
	c.Destroy()
	c.owner.RemoveDeviceObject(c)
}
