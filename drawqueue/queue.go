package drawqueue

import (
	"fmt"
	"image"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/pipeline"
	"github.com/gogpu/renderapi/raw"
	"github.com/gogpu/renderapi/reflection"
)

// Device is what a queue needs from the render device.
type Device interface {
	raw.Owner

	// DefaultTexture returns the texture bound in place of missing or
	// unusable shader resources.
	DefaultTexture(t gpucore.TextureType) *raw.RawTexture

	// SamplerCache returns the shared sampler cache.
	SamplerCache() *raw.SamplerCache
}

type commandKind uint8

const (
	commandDraw commandKind = iota
	commandDrawIndexed
	commandDispatch
)

// IndexRange is a range of a queue array.
type IndexRange struct {
	Start uint32
	Count uint32
}

// DrawCommandDescription is one queued draw or dispatch.
type DrawCommandDescription struct {
	PipelineState *pipeline.PipelineState

	VertexBuffers [gpucore.MaxVertexStreams]*raw.RawBuffer
	IndexBuffer   *raw.RawBuffer

	IndexStart      uint32
	IndexCount      uint32
	VertexStart     uint32
	VertexCount     uint32
	InstanceStart   uint32
	InstanceCount   uint32
	BaseVertexIndex int32

	// ScissorRect indexes the scissor rectangles of the queue.
	ScissorRect uint32
	StencilRef  uint32

	// ShaderResources ranges over the resource bindings of the queue.
	ShaderResources IndexRange
	// ConstantBuffers holds the uniform data of each parameter group.
	ConstantBuffers [gpucore.GroupCount]ConstantBufferRange

	// Dispatch is the thread group count of a compute dispatch.
	Dispatch [3]uint32

	kind commandKind
}

// IsInstanced reports whether the command draws instances.
func (d *DrawCommandDescription) IsInstanced() bool { return d.InstanceCount > 0 }

// resourceBinding binds a texture or storage buffer to a shader variable
// by name.
type resourceBinding struct {
	name    string
	texture *raw.RawTexture
	buffer  *raw.RawBuffer
	uav     bool
}

// DrawCommandQueue records draws with their state and shader parameters,
// and replays them into a render context.
//
// Recording touches no GPU object, so queues may be recorded concurrently.
// Execution must be serialized by the caller.
type DrawCommandQueue struct {
	dev Device

	commands  []DrawCommandDescription
	scissors  []image.Rectangle
	resources []resourceBinding
	constants ConstantBufferCollection

	current          DrawCommandDescription
	pendingResources []resourceBinding
	// layouts holds the uniform layout hash each current constant buffer
	// was written for.
	layouts [gpucore.GroupCount]uint64

	building bool
	group    gpucore.ShaderParameterGroup
	staging  []byte

	uniformBuffer *raw.RawBuffer
	stats         Stats
}

// New creates an empty queue for dev.
func New(dev Device) *DrawCommandQueue {
	q := &DrawCommandQueue{dev: dev}
	q.Reset()
	return q
}

// Reset drops every recorded command. The constant buffer arena is reseeded
// with the device alignment and the default scissor rectangle covers the
// whole render target.
func (q *DrawCommandQueue) Reset() {
	q.commands = q.commands[:0]
	q.resources = q.resources[:0]
	q.pendingResources = q.pendingResources[:0]
	q.scissors = append(q.scissors[:0], image.Rectangle{})
	q.constants.Reset(q.dev.Backend().Caps().ConstantBufferOffsetAlignment)
	q.current = DrawCommandDescription{}
	q.layouts = [gpucore.GroupCount]uint64{}
	q.building = false
}

// NumDrawCommands returns the number of recorded commands.
func (q *DrawCommandQueue) NumDrawCommands() int { return len(q.commands) }

// IsEmpty reports whether no command was recorded.
func (q *DrawCommandQueue) IsEmpty() bool { return len(q.commands) == 0 }

// Commands returns the recorded commands.
func (q *DrawCommandQueue) Commands() []DrawCommandDescription { return q.commands }

// Constants returns the constant buffer arena.
func (q *DrawCommandQueue) Constants() *ConstantBufferCollection { return &q.constants }

// Stats returns the counters of the last execution.
func (q *DrawCommandQueue) Stats() Stats { return q.stats }

// SetPipelineState sets the pipeline state of the following commands.
// Constant buffers written for a different uniform layout are dropped.
func (q *DrawCommandQueue) SetPipelineState(state *pipeline.PipelineState) {
	q.current.PipelineState = state
	var refl *reflection.ShaderProgramReflection
	if state != nil {
		refl = state.Reflection()
	}
	for g := range gpucore.GroupCount {
		var hash uint64
		if refl != nil {
			hash = refl.Hash(g)
		}
		if hash != q.layouts[g] {
			q.current.ConstantBuffers[g] = ConstantBufferRange{}
			q.layouts[g] = hash
		}
	}
}

// SetVertexBuffers sets the vertex buffers bound to the first slots.
func (q *DrawCommandQueue) SetVertexBuffers(buffers ...*raw.RawBuffer) {
	if len(buffers) > gpucore.MaxVertexStreams {
		renderapi.Logger().Warn("drawqueue: too many vertex buffers", "count", len(buffers))
		buffers = buffers[:gpucore.MaxVertexStreams]
	}
	q.current.VertexBuffers = [gpucore.MaxVertexStreams]*raw.RawBuffer{}
	copy(q.current.VertexBuffers[:], buffers)
}

// SetIndexBuffer sets the index buffer. Its stride selects 16 or 32 bit
// indices.
func (q *DrawCommandQueue) SetIndexBuffer(buf *raw.RawBuffer) {
	q.current.IndexBuffer = buf
}

// SetScissorRect sets the scissor rectangle. The empty rectangle selects
// the whole render target.
func (q *DrawCommandQueue) SetScissorRect(rect image.Rectangle) {
	if q.scissors[q.current.ScissorRect] == rect {
		return
	}
	q.current.ScissorRect = uint32(len(q.scissors))
	q.scissors = append(q.scissors, rect)
}

// SetStencilRef sets the stencil reference value.
func (q *DrawCommandQueue) SetStencilRef(ref uint32) {
	q.current.StencilRef = ref
}

// SetShaderResource binds a texture to the shader resource name, without
// its s prefix. Bindings take effect at CommitShaderResources.
func (q *DrawCommandQueue) SetShaderResource(name string, t *raw.RawTexture) {
	q.pendingResources = append(q.pendingResources, resourceBinding{name: name, texture: t})
}

// SetUnorderedAccess binds a storage buffer to the unordered access view
// name, without its u prefix.
func (q *DrawCommandQueue) SetUnorderedAccess(name string, buf *raw.RawBuffer) {
	q.pendingResources = append(q.pendingResources, resourceBinding{name: name, buffer: buf, uav: true})
}

// SetUnorderedAccessTexture binds a storage texture to the unordered
// access view name.
func (q *DrawCommandQueue) SetUnorderedAccessTexture(name string, t *raw.RawTexture) {
	q.pendingResources = append(q.pendingResources, resourceBinding{name: name, texture: t, uav: true})
}

// CommitShaderResources makes the resources set since the last commit the
// resources of the following commands.
func (q *DrawCommandQueue) CommitShaderResources() {
	q.current.ShaderResources = IndexRange{
		Start: uint32(len(q.resources)),
		Count: uint32(len(q.pendingResources)),
	}
	q.resources = append(q.resources, q.pendingResources...)
	q.pendingResources = q.pendingResources[:0]
}

// BeginShaderParameterGroup starts writing the uniform buffer of group for
// the current pipeline state. It returns false when there is nothing to
// write: the pipeline state has no such buffer, or differs is false and
// the buffer written for an earlier command still applies.
func (q *DrawCommandQueue) BeginShaderParameterGroup(group gpucore.ShaderParameterGroup, differs bool) bool {
	if q.building {
		renderapi.Logger().Warn("drawqueue: parameter group not committed", "group", q.group)
		q.building = false
	}
	if group >= gpucore.GroupCount {
		return false
	}
	if !differs && !q.current.ConstantBuffers[group].IsEmpty() {
		return false
	}
	state := q.current.PipelineState
	if state == nil || state.Reflection() == nil {
		return false
	}
	buf := state.Reflection().UniformBuffer(group)
	if buf == nil || buf.Size == 0 {
		return false
	}
	q.building = true
	q.group = group
	q.staging = append(q.staging[:0], make([]byte, buf.Size)...)
	return true
}

// AddShaderParameter writes a uniform of the group being built. The name
// is the uniform name without its c prefix. Uniforms the program does not
// declare are ignored. Values longer than the uniform are truncated.
//
// Supported values are float32, float64, int32, int, uint32, bool, the
// vectors and matrices of golang.org/x/image/math/f32 and mgl32, and
// slices of float32, mgl32.Vec4 and mgl32.Mat4.
func (q *DrawCommandQueue) AddShaderParameter(name string, value any) {
	if !q.building {
		return
	}
	u := q.current.PipelineState.Reflection().Uniform(name)
	if u == nil || u.Group != q.group {
		return
	}
	var scratch [64]byte
	data, ok := appendParameter(scratch[:0], value)
	if !ok {
		renderapi.Logger().Warn("drawqueue: unsupported parameter type",
			"name", name, "type", fmt.Sprintf("%T", value))
		return
	}
	end := min(int(u.Offset+u.Size), len(q.staging))
	if int(u.Offset) >= end {
		return
	}
	copy(q.staging[u.Offset:end], data)
}

// CommitShaderParameterGroup stores the group being built. Identical
// content shares the allocation of an earlier commit.
func (q *DrawCommandQueue) CommitShaderParameterGroup(group gpucore.ShaderParameterGroup) {
	if !q.building || group != q.group {
		return
	}
	q.building = false
	r, _ := q.constants.Add(group, q.staging)
	q.current.ConstantBuffers[group] = r
}

// Draw records a non-indexed draw.
func (q *DrawCommandQueue) Draw(vertexStart, vertexCount uint32) {
	cmd := q.current
	cmd.kind = commandDraw
	cmd.VertexStart, cmd.VertexCount = vertexStart, vertexCount
	cmd.InstanceStart, cmd.InstanceCount = 0, 0
	q.commands = append(q.commands, cmd)
}

// DrawInstanced records a non-indexed instanced draw.
func (q *DrawCommandQueue) DrawInstanced(vertexStart, vertexCount, instanceStart, instanceCount uint32) {
	cmd := q.current
	cmd.kind = commandDraw
	cmd.VertexStart, cmd.VertexCount = vertexStart, vertexCount
	cmd.InstanceStart, cmd.InstanceCount = instanceStart, instanceCount
	q.commands = append(q.commands, cmd)
}

// DrawIndexed records an indexed draw.
func (q *DrawCommandQueue) DrawIndexed(indexStart, indexCount uint32, baseVertex int32) {
	cmd := q.current
	cmd.kind = commandDrawIndexed
	cmd.IndexStart, cmd.IndexCount = indexStart, indexCount
	cmd.BaseVertexIndex = baseVertex
	cmd.InstanceStart, cmd.InstanceCount = 0, 0
	q.commands = append(q.commands, cmd)
}

// DrawIndexedInstanced records an indexed instanced draw.
func (q *DrawCommandQueue) DrawIndexedInstanced(indexStart, indexCount uint32, baseVertex int32, instanceStart, instanceCount uint32) {
	cmd := q.current
	cmd.kind = commandDrawIndexed
	cmd.IndexStart, cmd.IndexCount = indexStart, indexCount
	cmd.BaseVertexIndex = baseVertex
	cmd.InstanceStart, cmd.InstanceCount = instanceStart, instanceCount
	q.commands = append(q.commands, cmd)
}

// Dispatch records a compute dispatch of x*y*z thread groups.
func (q *DrawCommandQueue) Dispatch(x, y, z uint32) {
	cmd := q.current
	cmd.kind = commandDispatch
	cmd.Dispatch = [3]uint32{x, y, z}
	q.commands = append(q.commands, cmd)
}
