package drawqueue

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/hashutil"
	"github.com/gogpu/renderapi/pipeline"
	"github.com/gogpu/renderapi/raw"
	"github.com/gogpu/renderapi/reflection"
	"github.com/gogpu/renderapi/rendercontext"
)

// minUniformBufferSize is the smallest size of the uniform buffer the
// arena is uploaded into.
const minUniformBufferSize = 64 << 10

// maxBindGroups bounds the bind groups tracked during execution.
const maxBindGroups = 8

// ErrNoUniformBuffer is reported for a command whose program reads
// parameter groups when no uniform data was uploaded.
var ErrNoUniformBuffer = errors.New("drawqueue: uniform buffer missing")

// Stats counts the work of one execution.
type Stats struct {
	Draws      uint32
	Dispatches uint32
	// Skipped counts commands that could not be executed.
	Skipped uint32
	// Substitutions counts shader resources replaced by a default texture
	// because they were bound as render target.
	Substitutions uint32
	// ConstantBytes is the size of the uploaded uniform data.
	ConstantBytes uint32
}

// tracker holds the state bound in the current pass.
type tracker struct {
	generation uint64

	pipeline    *pipeline.PipelineState
	vertex      [gpucore.MaxVertexStreams]*raw.RawBuffer
	vertexValid bool
	index       *raw.RawBuffer
	scissor     uint32
	scissorSet  bool
	stencil     uint32
	stencilSet  bool
	groups      [maxBindGroups]uint64
}

// execution is the state of one ExecuteInContext call.
type execution struct {
	q       *DrawCommandQueue
	ctx     *rendercontext.RenderContext
	caps    gpucore.Caps
	uniform hal.Buffer
	// zero is the range bound for parameter groups a command did not write.
	zero ConstantBufferRange
	t    tracker
}

// ExecuteInContext replays the recorded commands into ctx in order. State
// is only set when it differs from the state bound by the previous
// command. Commands that cannot be executed are skipped with a warning.
// The queue must be reset before it is recorded again.
func (q *DrawCommandQueue) ExecuteInContext(ctx *rendercontext.RenderContext) error {
	q.stats = Stats{}
	if q.IsEmpty() {
		return nil
	}
	if q.building {
		renderapi.Logger().Warn("drawqueue: parameter group not committed", "group", q.group)
		q.building = false
	}

	e := &execution{q: q, ctx: ctx, caps: q.dev.Backend().Caps()}
	if err := e.uploadConstants(); err != nil {
		return err
	}

	for i := range q.commands {
		cmd := &q.commands[i]
		var err error
		if cmd.kind == commandDispatch {
			err = e.dispatch(cmd)
		} else {
			err = e.draw(cmd)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// uploadConstants appends the zero range and uploads the arena into the
// uniform buffer.
func (e *execution) uploadConstants() error {
	q := e.q
	var zeroSize uint32
	for i := range q.commands {
		state := q.commands[i].PipelineState
		if state == nil || state.Reflection() == nil {
			continue
		}
		for g := range gpucore.GroupCount {
			if buf := state.Reflection().UniformBuffer(g); buf != nil {
				zeroSize = max(zeroSize, buf.Size)
			}
		}
	}
	if zeroSize == 0 && q.constants.Len() == 0 {
		return nil
	}
	if zeroSize > 0 {
		e.zero = q.constants.Allocate(zeroSize)
	}

	size := uint64(q.constants.Len())
	if q.uniformBuffer == nil {
		q.uniformBuffer = raw.NewRawBuffer(q.dev)
	}
	if !q.uniformBuffer.IsValid() || q.uniformBuffer.Size() < size {
		err := q.uniformBuffer.Create(raw.RawBufferParams{
			Label: "drawqueue_constants",
			Size:  max(uint64(gpucore.NextPowerOfTwo(uint32(size))), minUniformBufferSize),
			Usage: gputypes.BufferUsageUniform,
			Flags: gpucore.BufferDynamic | gpucore.BufferDiscard,
		})
		if err != nil {
			return fmt.Errorf("drawqueue: create uniform buffer: %w", err)
		}
	}
	if err := q.uniformBuffer.Update(q.constants.Data()); err != nil {
		return fmt.Errorf("drawqueue: upload constants: %w", err)
	}
	e.uniform = q.uniformBuffer.Handle()
	q.stats.ConstantBytes = uint32(size)
	return nil
}

func (e *execution) skip(cmd *DrawCommandDescription, reason string) {
	e.q.stats.Skipped++
	name := "<nil>"
	if cmd.PipelineState != nil {
		name = cmd.PipelineState.Name()
	}
	renderapi.Logger().Warn("drawqueue: command skipped", "pipeline", name, "reason", reason)
}

// sync resets the tracked state when the context began a new pass.
func (e *execution) sync() {
	if gen := e.ctx.PassGeneration(); gen != e.t.generation {
		e.t = tracker{generation: gen}
	}
}

func (e *execution) draw(cmd *DrawCommandDescription) error {
	state := cmd.PipelineState
	switch {
	case state == nil || !state.IsValid():
		e.skip(cmd, "pipeline state has no handle")
		return nil
	case state.Type() != gpucore.PipelineGraphics:
		e.skip(cmd, "draw with a compute pipeline")
		return nil
	case cmd.BaseVertexIndex != 0 && !e.caps.DrawBaseVertex:
		e.skip(cmd, "base vertex not supported")
		return nil
	case cmd.kind == commandDrawIndexed && (cmd.IndexBuffer == nil || !cmd.IndexBuffer.IsValid()):
		e.skip(cmd, "index buffer missing")
		return nil
	}
	for _, vb := range cmd.VertexBuffers {
		if vb != nil && !vb.IsValid() {
			e.skip(cmd, "vertex buffer has no handle")
			return nil
		}
	}

	if err := e.ctx.BeginRender(); err != nil {
		return fmt.Errorf("drawqueue: %w", err)
	}
	e.sync()

	if e.t.pipeline != state {
		e.ctx.SetPipeline(state.RenderPipeline())
		e.t.pipeline = state
		e.t.groups = [maxBindGroups]uint64{}
	}
	if !e.t.scissorSet || e.t.scissor != cmd.ScissorRect {
		e.ctx.SetScissorRect(e.q.scissors[cmd.ScissorRect])
		e.t.scissor, e.t.scissorSet = cmd.ScissorRect, true
	}
	if !e.t.stencilSet || e.t.stencil != cmd.StencilRef {
		e.ctx.SetStencilRef(cmd.StencilRef)
		e.t.stencil, e.t.stencilSet = cmd.StencilRef, true
	}

	firstInstance := cmd.InstanceStart
	if cmd.IsInstanced() && !e.caps.DrawBaseInstance {
		// Per-instance data is offset to the first instance instead.
		e.bindVertexBuffers(cmd, cmd.InstanceStart)
		e.t.vertexValid = false
		firstInstance = 0
	} else if !e.t.vertexValid || e.t.vertex != cmd.VertexBuffers {
		e.bindVertexBuffers(cmd, 0)
		e.t.vertex, e.t.vertexValid = cmd.VertexBuffers, true
	}

	if cmd.kind == commandDrawIndexed && e.t.index != cmd.IndexBuffer {
		format := gputypes.IndexFormatUint16
		if cmd.IndexBuffer.Stride() == 4 {
			format = gputypes.IndexFormatUint32
		}
		e.ctx.SetIndexBuffer(cmd.IndexBuffer.Handle(), format, 0)
		e.t.index = cmd.IndexBuffer
	}

	if !e.bindGroups(cmd) {
		return nil
	}

	instances := max(cmd.InstanceCount, 1)
	primitive := state.Desc().AsGraphics().PrimitiveType
	var elements uint32
	if cmd.kind == commandDrawIndexed {
		e.ctx.DrawIndexed(cmd.IndexCount, instances, cmd.IndexStart, cmd.BaseVertexIndex, firstInstance)
		elements = cmd.IndexCount
	} else {
		e.ctx.Draw(cmd.VertexCount, instances, cmd.VertexStart, firstInstance)
		elements = cmd.VertexCount
	}
	e.ctx.AddStats(gpucore.Stats{
		NumPrimitives: primitive.PrimitiveCount(elements) * instances,
		NumDraws:      1,
	})
	e.q.stats.Draws++
	return nil
}

func (e *execution) bindVertexBuffers(cmd *DrawCommandDescription, instanceStart uint32) {
	for slot, vb := range cmd.VertexBuffers {
		if vb == nil {
			continue
		}
		var offset uint64
		if vb.Flags()&gpucore.BufferPerInstanceData != 0 {
			offset = uint64(instanceStart) * uint64(vb.Stride())
		}
		e.ctx.SetVertexBuffer(uint32(slot), vb.Handle(), offset)
	}
}

func (e *execution) dispatch(cmd *DrawCommandDescription) error {
	state := cmd.PipelineState
	switch {
	case state == nil || !state.IsValid():
		e.skip(cmd, "pipeline state has no handle")
		return nil
	case state.Type() != gpucore.PipelineCompute:
		e.skip(cmd, "dispatch with a graphics pipeline")
		return nil
	case !e.caps.ComputeShaders:
		e.skip(cmd, "compute shaders not supported")
		return nil
	}

	if err := e.ctx.BeginCompute(); err != nil {
		return fmt.Errorf("drawqueue: %w", err)
	}
	e.sync()

	if e.t.pipeline != state {
		e.ctx.SetComputePipeline(state.ComputePipeline())
		e.t.pipeline = state
		e.t.groups = [maxBindGroups]uint64{}
	}
	if !e.bindGroups(cmd) {
		return nil
	}
	e.ctx.Dispatch(cmd.Dispatch[0], cmd.Dispatch[1], cmd.Dispatch[2])
	e.ctx.AddStats(gpucore.Stats{NumDispatches: 1})
	e.q.stats.Dispatches++
	return nil
}

// bindGroups binds the uniform buffers, resources and samplers of cmd. It
// reports false when the command was skipped.
func (e *execution) bindGroups(cmd *DrawCommandDescription) bool {
	state := cmd.PipelineState
	binding := state.Binding()
	refl := state.Reflection()
	if binding == nil || refl == nil {
		e.skip(cmd, "pipeline state has no binding")
		return false
	}

	for g := range min(binding.NumGroups(), maxBindGroups) {
		entries, offsets, err := e.groupEntries(cmd, refl, uint32(g))
		if err != nil {
			e.skip(cmd, err.Error())
			return false
		}
		if len(entries) == 0 {
			continue
		}

		key := rendercontext.HashBindGroupEntries(entries)
		for _, o := range offsets {
			key = hashutil.Combine(key, uint64(o))
		}
		if key == 0 {
			key = 1
		}
		if e.t.groups[g] == key {
			continue
		}
		group, err := e.ctx.BindGroup(binding.Layout(uint32(g)), entries)
		if err != nil {
			e.skip(cmd, err.Error())
			return false
		}
		e.ctx.SetBindGroup(uint32(g), group, offsets)
		e.t.groups[g] = key
	}
	return true
}

type dynamicOffset struct {
	binding uint32
	offset  uint32
}

// groupEntries builds the entries of bind group g and the dynamic offsets
// of its uniform buffers in binding order.
func (e *execution) groupEntries(cmd *DrawCommandDescription, refl *reflection.ShaderProgramReflection, g uint32) ([]gputypes.BindGroupEntry, []uint32, error) {
	var (
		entries []gputypes.BindGroupEntry
		dynamic []dynamicOffset
	)

	for pg := range gpucore.GroupCount {
		buf := refl.UniformBuffer(pg)
		if buf == nil || len(buf.Stages) == 0 || buf.Slot.Group != g {
			continue
		}
		if e.uniform == nil {
			return nil, nil, ErrNoUniformBuffer
		}
		r := cmd.ConstantBuffers[pg]
		if r.IsEmpty() {
			r = e.zero
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  buf.Slot.Binding,
			Resource: gputypes.BufferBinding{Buffer: e.uniform.NativeHandle(), Size: uint64(buf.Size)},
		})
		dynamic = append(dynamic, dynamicOffset{binding: buf.Slot.Binding, offset: r.Offset})
	}

	for _, res := range refl.ShaderResources() {
		if !res.Connected || res.Slot.Group != g {
			continue
		}
		tex := e.resolveTexture(e.q.lookupResource(cmd, res.Name, false), res)
		if tex == nil || tex.View() == nil {
			return nil, nil, fmt.Errorf("texture %s has no view", res.Name)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  res.Slot.Binding,
			Resource: gputypes.TextureViewBinding{TextureView: tex.View().NativeHandle()},
		})
	}

	for _, res := range refl.UnorderedAccessViews() {
		if !res.Connected || res.Slot.Group != g {
			continue
		}
		bound := e.q.lookupResource(cmd, res.Name, true)
		switch {
		case res.Kind == reflection.ResourceStorageBuffer && bound.buffer != nil && bound.buffer.IsValid():
			entries = append(entries, gputypes.BindGroupEntry{
				Binding: res.Slot.Binding,
				Resource: gputypes.BufferBinding{
					Buffer: bound.buffer.Handle().NativeHandle(),
					Size:   bound.buffer.Size(),
				},
			})
		case res.Kind != reflection.ResourceStorageBuffer && bound.texture != nil && bound.texture.View() != nil:
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  res.Slot.Binding,
				Resource: gputypes.TextureViewBinding{TextureView: bound.texture.View().NativeHandle()},
			})
		default:
			return nil, nil, fmt.Errorf("unordered access view %s not bound", res.Name)
		}
	}

	for _, smp := range refl.Samplers() {
		if !smp.Connected || smp.Slot.Group != g {
			continue
		}
		desc, ok := cmd.PipelineState.SamplerState(smp.Name)
		if !ok {
			desc = gpucore.DefaultSampler(gpucore.AddressWrap)
		}
		sampler, err := e.q.dev.SamplerCache().Get(desc)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  smp.Slot.Binding,
			Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()},
		})
	}

	slices.SortFunc(entries, func(a, b gputypes.BindGroupEntry) int { return cmp.Compare(a.Binding, b.Binding) })
	slices.SortFunc(dynamic, func(a, b dynamicOffset) int { return cmp.Compare(a.binding, b.binding) })
	var offsets []uint32
	for _, d := range dynamic {
		offsets = append(offsets, d.offset)
	}
	return entries, offsets, nil
}

// lookupResource returns the last binding of name in the resources of cmd.
func (q *DrawCommandQueue) lookupResource(cmd *DrawCommandDescription, name string, uav bool) resourceBinding {
	r := cmd.ShaderResources
	for i := r.Start + r.Count; i > r.Start; i-- {
		b := q.resources[i-1]
		if b.name == name && b.uav == uav {
			return b
		}
	}
	return resourceBinding{}
}

// resolveTexture returns the texture to sample for res. Missing textures
// and textures bound as render target are replaced by the default texture
// of the resource dimension.
func (e *execution) resolveTexture(b resourceBinding, res *reflection.ShaderResource) *raw.RawTexture {
	tex := b.texture
	if tex != nil && e.ctx.IsBoundAsRenderTarget(tex) {
		e.q.stats.Substitutions++
		tex = nil
	}
	if tex == nil || !tex.IsValid() {
		return e.q.dev.DefaultTexture(textureType(res.ViewDimension))
	}
	if tex.IsDirty() {
		tex.ResolveDirty()
	}
	return tex
}

func textureType(dim gputypes.TextureViewDimension) gpucore.TextureType {
	for t := range gpucore.TextureTypeCount {
		if t.ViewDimension() == dim {
			return t
		}
	}
	return gpucore.Texture2D
}
