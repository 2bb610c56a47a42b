package reflection

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
)

// ProgramStage is one compiled stage of a shader program.
type ProgramStage struct {
	Type gpucore.ShaderType
	// Module is the parsed shader. Stages without a module contribute
	// nothing to the reflection.
	Module     *ir.Module
	EntryPoint string
}

// FromStages reflects a program from the IR of its stages.
func FromStages(stages []ProgramStage) *ShaderProgramReflection {
	r := newReflection()
	for _, st := range stages {
		if st.Module != nil {
			r.reflectStage(st)
		}
	}
	r.RecalculateUniformHash()
	return r
}

func (r *ShaderProgramReflection) reflectStage(st ProgramStage) {
	m := st.Module
	visibility := st.Type.Stage()

	for i := range m.GlobalVariables {
		gv := &m.GlobalVariables[i]
		if gv.Binding == nil {
			continue
		}
		slot := Slot{Group: gv.Binding.Group, Binding: gv.Binding.Binding}
		switch gv.Space {
		case ir.SpaceUniform:
			r.reflectUniformBuffer(m, gv, slot, visibility)
		case ir.SpaceStorage:
			if name, ok := sanitizeUAVName(gv.Name); ok {
				r.addResource(r.uavs, ShaderResource{
					Name:         name,
					InternalName: gv.Name,
					Kind:         ResourceStorageBuffer,
					Slot:         slot,
					Visibility:   visibility,
					ReadOnly:     gv.Access == ir.StorageRead,
				})
			}
		case ir.SpaceHandle:
			r.reflectHandle(m, gv, slot, visibility)
		}
	}

	if st.Type == gpucore.VertexShader {
		if ep := findEntryPoint(m, ir.StageVertex, st.EntryPoint); ep != nil {
			r.reflectVertexInputs(m, ep)
		}
	}
}

// uniformBufferGroup maps a uniform buffer to its parameter group by the
// variable name, then by the name of its struct type.
func uniformBufferGroup(m *ir.Module, gv *ir.GlobalVariable) (gpucore.ShaderParameterGroup, bool) {
	if g, ok := gpucore.ParseShaderParameterGroup(gv.Name); ok {
		return g, true
	}
	if int(gv.Type) < len(m.Types) {
		return gpucore.ParseShaderParameterGroup(m.Types[gv.Type].Name)
	}
	return 0, false
}

func (r *ShaderProgramReflection) reflectUniformBuffer(m *ir.Module, gv *ir.GlobalVariable, slot Slot, visibility gputypes.ShaderStages) {
	log := renderapi.Logger()
	group, ok := uniformBufferGroup(m, gv)
	if !ok {
		log.Warn("reflection: unknown constant buffer is ignored", "buffer", gv.Name)
		return
	}
	st, ok := m.Types[gv.Type].Inner.(ir.StructType)
	if !ok {
		log.Warn("reflection: constant buffer is not a struct", "buffer", gv.Name)
		return
	}

	r.addUniformBuffer(group, gv.Name, st.Span, slot, visibility)

	for _, member := range st.Members {
		name, ok := sanitizeUniformName(member.Name)
		if !ok {
			log.Warn("reflection: cannot parse uniform", "uniform", member.Name)
			continue
		}
		size := uniformSize(m, member.Type)
		if size == 0 {
			log.Warn("reflection: cannot deduce uniform size", "uniform", name)
			continue
		}
		r.addUniform(name, group, member.Offset, size)
	}
}

func (r *ShaderProgramReflection) reflectHandle(m *ir.Module, gv *ir.GlobalVariable, slot Slot, visibility gputypes.ShaderStages) {
	switch t := m.Types[gv.Type].Inner.(type) {
	case ir.SamplerType:
		r.addSampler(Sampler{
			Name:         sanitizeSamplerName(gv.Name),
			InternalName: gv.Name,
			Slot:         slot,
			Visibility:   visibility,
			Comparison:   t.Comparison,
		})
	case ir.ImageType:
		res := ShaderResource{
			InternalName:  gv.Name,
			Slot:          slot,
			Visibility:    visibility,
			ViewDimension: ImageViewDimension(t),
			Multisampled:  t.Multisampled,
		}
		if t.Class == ir.ImageClassStorage {
			name, ok := sanitizeUAVName(gv.Name)
			if !ok {
				return
			}
			res.Name = name
			res.Kind = ResourceStorageTexture
			res.StorageFormat = ImageStorageFormat(t.StorageFormat)
			res.Access = ImageStorageAccess(t.StorageAccess)
			r.addResource(r.uavs, res)
			return
		}
		name, ok := sanitizeSRVName(gv.Name)
		if !ok {
			return
		}
		res.Name = name
		res.Kind = ResourceTexture
		res.SampleType = ImageSampleType(t)
		r.addResource(r.resources, res)
	default:
		renderapi.Logger().Warn("reflection: unsupported resource type is ignored", "resource", gv.Name)
	}
}

func findEntryPoint(m *ir.Module, stage ir.ShaderStage, name string) *ir.EntryPoint {
	for i := range m.EntryPoints {
		ep := &m.EntryPoints[i]
		if ep.Stage == stage && (name == "" || ep.Name == name) {
			return ep
		}
	}
	return nil
}

func (r *ShaderProgramReflection) reflectVertexInputs(m *ir.Module, ep *ir.EntryPoint) {
	for _, arg := range ep.Function.Arguments {
		if arg.Binding != nil {
			r.addVertexInput(arg.Name, *arg.Binding)
			continue
		}
		if int(arg.Type) >= len(m.Types) {
			continue
		}
		st, ok := m.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			continue
		}
		for _, member := range st.Members {
			if member.Binding != nil {
				r.addVertexInput(member.Name, *member.Binding)
			}
		}
	}
}

func (r *ShaderProgramReflection) addVertexInput(name string, binding ir.Binding) {
	loc, ok := binding.(ir.LocationBinding)
	if !ok {
		return // builtins such as vertex_index
	}
	attr, ok := gpucore.ParseVertexAttribute(name)
	if !ok {
		renderapi.Logger().Warn("reflection: unknown vertex attribute is ignored", "attribute", name)
		return
	}
	attr.Location = loc.Location
	r.addAttribute(attr)
}

// ImageViewDimension returns the texture view dimension of an image type.
func ImageViewDimension(t ir.ImageType) gputypes.TextureViewDimension {
	switch t.Dim {
	case ir.Dim1D:
		return gputypes.TextureViewDimension1D
	case ir.Dim3D:
		return gputypes.TextureViewDimension3D
	case ir.DimCube:
		if t.Arrayed {
			return gputypes.TextureViewDimensionCubeArray
		}
		return gputypes.TextureViewDimensionCube
	}
	if t.Arrayed {
		return gputypes.TextureViewDimension2DArray
	}
	return gputypes.TextureViewDimension2D
}

// ImageSampleType returns the sample type of a sampled or depth image.
// Multisampled float images cannot be filtered.
func ImageSampleType(t ir.ImageType) gputypes.TextureSampleType {
	if t.Class == ir.ImageClassDepth {
		return gputypes.TextureSampleTypeDepth
	}
	switch t.SampledKind {
	case ir.ScalarSint:
		return gputypes.TextureSampleTypeSint
	case ir.ScalarUint:
		return gputypes.TextureSampleTypeUint
	}
	if t.Multisampled {
		return gputypes.TextureSampleTypeUnfilterableFloat
	}
	return gputypes.TextureSampleTypeFloat
}

// ImageStorageAccess returns the access mode of a storage image.
func ImageStorageAccess(a ir.StorageAccess) gputypes.StorageTextureAccess {
	switch a {
	case ir.StorageAccessRead:
		return gputypes.StorageTextureAccessReadOnly
	case ir.StorageAccessWrite:
		return gputypes.StorageTextureAccessWriteOnly
	}
	return gputypes.StorageTextureAccessReadWrite
}

var storageFormats = map[ir.StorageFormat]gputypes.TextureFormat{
	ir.StorageFormatR32Uint:     gputypes.TextureFormatR32Uint,
	ir.StorageFormatR32Sint:     gputypes.TextureFormatR32Sint,
	ir.StorageFormatR32Float:    gputypes.TextureFormatR32Float,
	ir.StorageFormatRg32Float:   gputypes.TextureFormatRG32Float,
	ir.StorageFormatRgba8Unorm:  gputypes.TextureFormatRGBA8Unorm,
	ir.StorageFormatRgba8Snorm:  gputypes.TextureFormatRGBA8Snorm,
	ir.StorageFormatRgba8Uint:   gputypes.TextureFormatRGBA8Uint,
	ir.StorageFormatRgba8Sint:   gputypes.TextureFormatRGBA8Sint,
	ir.StorageFormatBgra8Unorm:  gputypes.TextureFormatBGRA8Unorm,
	ir.StorageFormatRgba16Uint:  gputypes.TextureFormatRGBA16Uint,
	ir.StorageFormatRgba16Sint:  gputypes.TextureFormatRGBA16Sint,
	ir.StorageFormatRgba16Float: gputypes.TextureFormatRGBA16Float,
	ir.StorageFormatRgba32Uint:  gputypes.TextureFormatRGBA32Uint,
	ir.StorageFormatRgba32Sint:  gputypes.TextureFormatRGBA32Sint,
	ir.StorageFormatRgba32Float: gputypes.TextureFormatRGBA32Float,
}

// ImageStorageFormat returns the texture format of a storage image, or
// TextureFormatUndefined for formats without a native equivalent.
func ImageStorageFormat(f ir.StorageFormat) gputypes.TextureFormat {
	if tf, ok := storageFormats[f]; ok {
		return tf
	}
	return gputypes.TextureFormatUndefined
}
