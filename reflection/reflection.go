package reflection

import (
	"slices"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/hashutil"
)

// Slot is the bind group and binding index of a shader variable.
type Slot struct {
	Group   uint32
	Binding uint32
}

// UniformBuffer describes the uniform buffer of one parameter group.
type UniformBuffer struct {
	Group        gpucore.ShaderParameterGroup
	InternalName string
	Size         uint32
	// Hash identifies the uniform layout of the buffer. It is 0 only for
	// groups the program does not use.
	Hash       uint64
	Slot       Slot
	Visibility gputypes.ShaderStages
	// Stages lists the stages that exposed the buffer when connected.
	Stages []gpucore.ShaderType
}

// Uniform describes one value inside a uniform buffer.
type Uniform struct {
	Name   string
	Group  gpucore.ShaderParameterGroup
	Offset uint32
	Size   uint32
}

// ResourceKind classifies shader resources.
type ResourceKind uint8

// Resource kinds.
const (
	ResourceTexture ResourceKind = iota
	ResourceStorageTexture
	ResourceStorageBuffer
)

// ShaderResource describes a texture or unordered access view.
type ShaderResource struct {
	// Name is the name without the s or u prefix.
	Name         string
	InternalName string
	Kind         ResourceKind
	Slot         Slot
	Visibility   gputypes.ShaderStages

	ViewDimension gputypes.TextureViewDimension
	SampleType    gputypes.TextureSampleType
	Multisampled  bool
	StorageFormat gputypes.TextureFormat
	Access        gputypes.StorageTextureAccess
	ReadOnly      bool

	Connected bool
}

// Sampler describes a sampler binding. Name is the name of the texture the
// sampler pairs with, without prefix.
type Sampler struct {
	Name         string
	InternalName string
	Slot         Slot
	Visibility   gputypes.ShaderStages
	Comparison   bool
	Connected    bool
}

// Binder resolves shader variables of a created pipeline by internal name.
type Binder interface {
	LookupVariable(stage gpucore.ShaderType, name string) (Slot, bool)
}

// ShaderProgramReflection describes the uniform buffers, uniforms,
// resources, samplers and vertex inputs of a shader program.
type ShaderProgramReflection struct {
	uniformBuffers [gpucore.GroupCount]UniformBuffer
	uniforms       map[string]*Uniform
	resources      map[string]*ShaderResource
	uavs           map[string]*ShaderResource
	samplers       []*Sampler
	attributes     []gpucore.VertexShaderAttribute
}

func newReflection() *ShaderProgramReflection {
	r := &ShaderProgramReflection{
		uniforms:  make(map[string]*Uniform),
		resources: make(map[string]*ShaderResource),
		uavs:      make(map[string]*ShaderResource),
	}
	for g := range r.uniformBuffers {
		r.uniformBuffers[g].Group = gpucore.ShaderParameterGroup(g)
	}
	return r
}

// HasGroup reports whether the program declares the uniform buffer of group.
func (r *ShaderProgramReflection) HasGroup(group gpucore.ShaderParameterGroup) bool {
	return group < gpucore.GroupCount && r.uniformBuffers[group].InternalName != ""
}

// UniformBuffer returns the uniform buffer of group, or nil.
func (r *ShaderProgramReflection) UniformBuffer(group gpucore.ShaderParameterGroup) *UniformBuffer {
	if !r.HasGroup(group) {
		return nil
	}
	return &r.uniformBuffers[group]
}

// Hash returns the layout hash of group, 0 when absent.
func (r *ShaderProgramReflection) Hash(group gpucore.ShaderParameterGroup) uint64 {
	if group >= gpucore.GroupCount {
		return 0
	}
	return r.uniformBuffers[group].Hash
}

// Uniform returns the uniform with the given name, or nil.
func (r *ShaderProgramReflection) Uniform(name string) *Uniform {
	return r.uniforms[name]
}

// Uniforms returns every uniform ordered by group, then offset.
func (r *ShaderProgramReflection) Uniforms() []*Uniform {
	out := make([]*Uniform, 0, len(r.uniforms))
	for _, u := range r.uniforms {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b *Uniform) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Offset) - int(b.Offset)
	})
	return out
}

// ShaderResource returns the texture named name, or nil.
func (r *ShaderProgramReflection) ShaderResource(name string) *ShaderResource {
	return r.resources[name]
}

// UnorderedAccessView returns the UAV named name, or nil.
func (r *ShaderProgramReflection) UnorderedAccessView(name string) *ShaderResource {
	return r.uavs[name]
}

// ShaderResources returns every texture sorted by name.
func (r *ShaderProgramReflection) ShaderResources() []*ShaderResource {
	return sortedResources(r.resources)
}

// UnorderedAccessViews returns every UAV sorted by name.
func (r *ShaderProgramReflection) UnorderedAccessViews() []*ShaderResource {
	return sortedResources(r.uavs)
}

func sortedResources(m map[string]*ShaderResource) []*ShaderResource {
	out := make([]*ShaderResource, 0, len(m))
	for _, res := range m {
		out = append(out, res)
	}
	slices.SortFunc(out, func(a, b *ShaderResource) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Samplers returns the sampler bindings in declaration order.
func (r *ShaderProgramReflection) Samplers() []*Sampler {
	return r.samplers
}

// VertexAttributes returns the vertex inputs of the program.
func (r *ShaderProgramReflection) VertexAttributes() []gpucore.VertexShaderAttribute {
	return r.attributes
}

func (r *ShaderProgramReflection) addUniformBuffer(group gpucore.ShaderParameterGroup, internalName string,
	size uint32, slot Slot, stage gputypes.ShaderStages,
) {
	buf := &r.uniformBuffers[group]
	if buf.InternalName != "" {
		if buf.Size != size {
			renderapi.Logger().Warn("reflection: uniform buffer has inconsistent size in different stages",
				"group", group, "size", buf.Size, "other", size)
		}
		if buf.InternalName != internalName {
			renderapi.Logger().Warn("reflection: uniform buffer has inconsistent name in different stages",
				"group", group, "name", buf.InternalName, "other", internalName)
		}
		buf.Visibility |= stage
		return
	}
	buf.InternalName = internalName
	buf.Size = size
	buf.Slot = slot
	buf.Visibility = stage
}

func (r *ShaderProgramReflection) addUniform(name string, group gpucore.ShaderParameterGroup, offset, size uint32) {
	if old, ok := r.uniforms[name]; ok {
		if old.Size != size {
			renderapi.Logger().Warn("reflection: uniform has inconsistent size in different stages", "uniform", name)
		}
		if old.Offset != offset {
			renderapi.Logger().Warn("reflection: uniform has inconsistent offset in different stages", "uniform", name)
		}
		if old.Group != group {
			renderapi.Logger().Warn("reflection: uniform has inconsistent owner in different stages", "uniform", name)
		}
		return
	}
	r.uniforms[name] = &Uniform{Name: name, Group: group, Offset: offset, Size: size}
}

func (r *ShaderProgramReflection) addResource(m map[string]*ShaderResource, res ShaderResource) {
	if old, ok := m[res.Name]; ok {
		if old.Slot != res.Slot {
			renderapi.Logger().Warn("reflection: resource is bound differently in different stages",
				"resource", res.InternalName)
		}
		old.Visibility |= res.Visibility
		return
	}
	m[res.Name] = &res
}

func (r *ShaderProgramReflection) addSampler(s Sampler) {
	for _, old := range r.samplers {
		if old.InternalName == s.InternalName {
			old.Visibility |= s.Visibility
			return
		}
	}
	r.samplers = append(r.samplers, &s)
}

func (r *ShaderProgramReflection) addAttribute(attr gpucore.VertexShaderAttribute) {
	for _, old := range r.attributes {
		if old.Semantic == attr.Semantic && old.SemanticIndex == attr.SemanticIndex {
			return
		}
	}
	r.attributes = append(r.attributes, attr)
}

// RecalculateUniformHash recomputes the layout hash of every uniform
// buffer. Each group is seeded with its size and folds name, offset and
// size of its uniforms in name order. Groups with uniforms never hash to 0.
func (r *ShaderProgramReflection) RecalculateUniformHash() {
	for g := range r.uniformBuffers {
		buf := &r.uniformBuffers[g]
		buf.Hash = 0
		if buf.Size != 0 {
			buf.Hash = hashutil.Combine(buf.Hash, uint64(buf.Size))
		}
	}

	names := make([]string, 0, len(r.uniforms))
	for name := range r.uniforms {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		u := r.uniforms[name]
		buf := &r.uniformBuffers[u.Group]
		buf.Hash = hashutil.Combine(buf.Hash, uint64(hashutil.String32(name)))
		buf.Hash = hashutil.Combine(buf.Hash, uint64(u.Offset))
		buf.Hash = hashutil.Combine(buf.Hash, uint64(u.Size))
		if buf.Hash == 0 {
			buf.Hash = 1
		}
	}
}

// shaderTypes returns the stages a pipeline of type t may contain.
func shaderTypes(t gpucore.PipelineStateType) []gpucore.ShaderType {
	if t == gpucore.PipelineCompute {
		return []gpucore.ShaderType{gpucore.ComputeShader}
	}
	return []gpucore.ShaderType{
		gpucore.VertexShader, gpucore.PixelShader,
		gpucore.GeometryShader, gpucore.HullShader, gpucore.DomainShader,
	}
}

// ConnectToShaderVariables resolves every uniform buffer, resource and
// sampler against the created pipeline. Uniform buffers record every stage
// that exposes them; resources take the first stage that does. Variables
// the binder does not know stay unconnected and are skipped at bind time.
func (r *ShaderProgramReflection) ConnectToShaderVariables(t gpucore.PipelineStateType, binder Binder) {
	stages := shaderTypes(t)

	for g := range r.uniformBuffers {
		buf := &r.uniformBuffers[g]
		buf.Stages = buf.Stages[:0]
		if buf.Size == 0 {
			continue
		}
		for _, stage := range stages {
			if slot, ok := binder.LookupVariable(stage, buf.InternalName); ok {
				buf.Slot = slot
				buf.Stages = append(buf.Stages, stage)
			}
		}
	}

	connect := func(name string) (Slot, bool) {
		for _, stage := range stages {
			if slot, ok := binder.LookupVariable(stage, name); ok {
				return slot, true
			}
		}
		return Slot{}, false
	}
	for _, m := range []map[string]*ShaderResource{r.resources, r.uavs} {
		for _, res := range m {
			slot, ok := connect(res.InternalName)
			if ok {
				res.Slot = slot
			}
			res.Connected = ok
		}
	}
	for _, s := range r.samplers {
		slot, ok := connect(s.InternalName)
		if ok {
			s.Slot = slot
		}
		s.Connected = ok
	}
}
