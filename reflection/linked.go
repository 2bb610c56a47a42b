package reflection

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
)

// UniformType is the type of a uniform reported by a program linker.
type UniformType uint8

// Linked uniform types.
const (
	UniformOther UniformType = iota
	UniformBool
	UniformInt
	UniformFloat
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat3
	UniformMat3x4
	UniformMat4
)

// LinkedUniformBlock is an active uniform block of a linked program.
type LinkedUniformBlock struct {
	Name       string
	Size       uint32
	Slot       Slot
	Visibility gputypes.ShaderStages
}

// LinkedUniform is an active uniform of a linked program. Names use the
// linker form: "Block.cName" or "cName[0]" for arrays.
type LinkedUniform struct {
	Name string
	Type UniformType
	// ArraySize is the element count, 1 for non-arrays.
	ArraySize uint32
	// Block indexes LinkedProgram.Blocks, -1 outside of any block.
	Block  int
	Offset uint32
}

// LinkedResource is an active texture or image of a linked program.
type LinkedResource struct {
	Name          string
	Slot          Slot
	Visibility    gputypes.ShaderStages
	ViewDimension gputypes.TextureViewDimension
	SampleType    gputypes.TextureSampleType
	Storage       bool
	StorageFormat gputypes.TextureFormat
	Access        gputypes.StorageTextureAccess
}

// LinkedSampler is an active sampler of a linked program.
type LinkedSampler struct {
	Name       string
	Slot       Slot
	Visibility gputypes.ShaderStages
	Comparison bool
}

// LinkedAttribute is a vertex input with the location chosen by the linker.
type LinkedAttribute struct {
	Name     string
	Location uint32
}

// LinkedProgram is the introspection result of a linked program.
type LinkedProgram struct {
	Blocks     []LinkedUniformBlock
	Uniforms   []LinkedUniform
	Resources  []LinkedResource
	Samplers   []LinkedSampler
	Attributes []LinkedAttribute
}

// linkedUniformSize returns the constant buffer size of a linked uniform.
// Array elements and matrix rows are padded to 16 bytes.
func linkedUniformSize(t UniformType, arraySize uint32) uint32 {
	var components, vectors uint32
	switch t {
	case UniformBool, UniformInt, UniformFloat:
		components, vectors = 1, 1
	case UniformVec2:
		components, vectors = 2, 1
	case UniformVec3:
		components, vectors = 3, 1
	case UniformVec4:
		components, vectors = 4, 1
	case UniformMat3:
		components, vectors = 3, 3
	case UniformMat3x4:
		components, vectors = 4, 3
	case UniformMat4:
		components, vectors = 4, 4
	default:
		return 0
	}
	if arraySize > 1 || vectors > 1 {
		return max(arraySize, 1) * vectors * roundUp(components*4, constantAlignment)
	}
	return components * 4
}

// FromLinkedProgram reflects a program from linker introspection.
func FromLinkedProgram(p *LinkedProgram) *ShaderProgramReflection {
	r := newReflection()
	log := renderapi.Logger()

	blockGroups := make([]gpucore.ShaderParameterGroup, len(p.Blocks))
	for i, block := range p.Blocks {
		group, ok := gpucore.ParseShaderParameterGroup(block.Name)
		if !ok {
			log.Warn("reflection: unknown constant buffer is ignored", "buffer", block.Name)
			blockGroups[i] = gpucore.GroupCount
			continue
		}
		blockGroups[i] = group
		r.addUniformBuffer(group, block.Name, block.Size, block.Slot, block.Visibility)
	}

	for _, u := range p.Uniforms {
		name, ok := sanitizeGLUniformName(u.Name)
		if !ok || u.Block < 0 || u.Block >= len(blockGroups) {
			continue
		}
		group := blockGroups[u.Block]
		if group == gpucore.GroupCount {
			continue
		}
		size := linkedUniformSize(u.Type, u.ArraySize)
		if size == 0 {
			log.Warn("reflection: cannot deduce uniform size", "uniform", name)
			continue
		}
		r.addUniform(name, group, u.Offset, size)
	}

	for _, res := range p.Resources {
		if res.Storage {
			if name, ok := sanitizeUAVName(res.Name); ok {
				r.addResource(r.uavs, ShaderResource{
					Name:          name,
					InternalName:  res.Name,
					Kind:          ResourceStorageTexture,
					Slot:          res.Slot,
					Visibility:    res.Visibility,
					ViewDimension: res.ViewDimension,
					StorageFormat: res.StorageFormat,
					Access:        res.Access,
				})
			}
			continue
		}
		if name, ok := sanitizeSRVName(res.Name); ok {
			r.addResource(r.resources, ShaderResource{
				Name:          name,
				InternalName:  res.Name,
				Kind:          ResourceTexture,
				Slot:          res.Slot,
				Visibility:    res.Visibility,
				ViewDimension: res.ViewDimension,
				SampleType:    res.SampleType,
			})
		}
	}

	for _, s := range p.Samplers {
		r.addSampler(Sampler{
			Name:         sanitizeSamplerName(s.Name),
			InternalName: s.Name,
			Slot:         s.Slot,
			Visibility:   s.Visibility,
			Comparison:   s.Comparison,
		})
	}

	for _, a := range p.Attributes {
		attr, ok := gpucore.ParseVertexAttribute(a.Name)
		if !ok {
			log.Warn("reflection: unknown vertex attribute is ignored", "attribute", a.Name)
			continue
		}
		attr.Location = a.Location
		r.addAttribute(attr)
	}

	r.RecalculateUniformHash()
	return r
}
