//go:build !nogpu

package gles

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/reflection"
)

// LinkProgram translates every stage to GLSL and returns the introspection
// of the linked program. Uniform names use the linker form
// "Block.cName[0]", and samplers take the texture unit of the texture they
// are combined with.
func (b *Backend) LinkProgram(stages []reflection.ProgramStage) (*reflection.LinkedProgram, error) {
	l := newLinker()
	for _, st := range stages {
		if st.Module == nil {
			continue
		}
		opts := glsl.DefaultOptions()
		opts.EntryPoint = st.EntryPoint
		_, info, err := glsl.Compile(st.Module, opts)
		if err != nil {
			return nil, fmt.Errorf("gles: translate %s %q: %w", st.Type, st.EntryPoint, err)
		}
		l.addStage(st, info)
	}
	l.bindSamplerUnits()
	renderapi.Logger().Debug("gles: program linked",
		"blocks", len(l.program.Blocks),
		"uniforms", len(l.program.Uniforms),
		"resources", len(l.program.Resources),
		"attributes", len(l.program.Attributes))
	return l.program, nil
}

type linker struct {
	program   *reflection.LinkedProgram
	blocks    map[string]int
	resources map[string]int
	samplers  map[string]int
	uniforms  map[string]bool
	// units maps sampler slots to the slot of the texture they are
	// combined with.
	units map[reflection.Slot]reflection.Slot
}

func newLinker() *linker {
	return &linker{
		program:   &reflection.LinkedProgram{},
		blocks:    make(map[string]int),
		resources: make(map[string]int),
		samplers:  make(map[string]int),
		uniforms:  make(map[string]bool),
		units:     make(map[reflection.Slot]reflection.Slot),
	}
}

func (l *linker) addStage(st reflection.ProgramStage, info glsl.TranslationInfo) {
	m := st.Module
	visibility := st.Type.Stage()

	for _, mapping := range info.TextureMappings {
		if s := mapping.SamplerBinding; s != nil {
			tex := mapping.TextureBinding
			l.units[reflection.Slot{Group: s.Group, Binding: s.Binding}] =
				reflection.Slot{Group: tex.Group, Binding: tex.Binding}
		}
	}

	for i := range m.GlobalVariables {
		gv := &m.GlobalVariables[i]
		if gv.Binding == nil {
			continue
		}
		slot := reflection.Slot{Group: gv.Binding.Group, Binding: gv.Binding.Binding}
		switch gv.Space {
		case ir.SpaceUniform:
			l.addBlock(m, gv, slot, visibility)
		case ir.SpaceHandle:
			switch t := m.Types[gv.Type].Inner.(type) {
			case ir.SamplerType:
				l.addSampler(reflection.LinkedSampler{
					Name:       gv.Name,
					Slot:       slot,
					Visibility: visibility,
					Comparison: t.Comparison,
				})
			case ir.ImageType:
				l.addResource(imageResource(gv.Name, t, slot, visibility))
			}
		case ir.SpaceStorage:
			renderapi.Logger().Warn("gles: storage buffers are not available", "variable", gv.Name)
		}
	}

	if st.Type == gpucore.VertexShader {
		l.addAttributes(m, st.EntryPoint)
	}
}

// blockName returns the name a linker reports for a uniform block: the
// variable name when it names a parameter group, the struct name otherwise.
func blockName(m *ir.Module, gv *ir.GlobalVariable) string {
	if _, ok := gpucore.ParseShaderParameterGroup(gv.Name); ok {
		return gv.Name
	}
	if name := m.Types[gv.Type].Name; name != "" {
		return name
	}
	return gv.Name
}

func (l *linker) addBlock(m *ir.Module, gv *ir.GlobalVariable, slot reflection.Slot, visibility gputypes.ShaderStages) {
	st, ok := m.Types[gv.Type].Inner.(ir.StructType)
	if !ok {
		return
	}
	name := blockName(m, gv)
	index, ok := l.blocks[name]
	if ok {
		l.program.Blocks[index].Visibility |= visibility
		return
	}
	index = len(l.program.Blocks)
	l.blocks[name] = index
	l.program.Blocks = append(l.program.Blocks, reflection.LinkedUniformBlock{
		Name:       name,
		Size:       st.Span,
		Slot:       slot,
		Visibility: visibility,
	})

	for _, member := range st.Members {
		typ, arraySize := uniformType(m, member.Type)
		uniformName := name + "." + member.Name
		if arraySize > 1 {
			uniformName += "[0]"
		}
		if l.uniforms[uniformName] {
			continue
		}
		l.uniforms[uniformName] = true
		l.program.Uniforms = append(l.program.Uniforms, reflection.LinkedUniform{
			Name:      uniformName,
			Type:      typ,
			ArraySize: arraySize,
			Block:     index,
			Offset:    member.Offset,
		})
	}
}

func imageResource(name string, t ir.ImageType, slot reflection.Slot, visibility gputypes.ShaderStages) reflection.LinkedResource {
	res := reflection.LinkedResource{
		Name:          name,
		Slot:          slot,
		Visibility:    visibility,
		ViewDimension: reflection.ImageViewDimension(t),
	}
	if t.Class == ir.ImageClassStorage {
		res.Storage = true
		res.StorageFormat = reflection.ImageStorageFormat(t.StorageFormat)
		res.Access = reflection.ImageStorageAccess(t.StorageAccess)
		return res
	}
	res.SampleType = reflection.ImageSampleType(t)
	return res
}

func (l *linker) addResource(res reflection.LinkedResource) {
	if i, ok := l.resources[res.Name]; ok {
		l.program.Resources[i].Visibility |= res.Visibility
		return
	}
	l.resources[res.Name] = len(l.program.Resources)
	l.program.Resources = append(l.program.Resources, res)
}

func (l *linker) addSampler(s reflection.LinkedSampler) {
	if i, ok := l.samplers[s.Name]; ok {
		l.program.Samplers[i].Visibility |= s.Visibility
		return
	}
	l.samplers[s.Name] = len(l.program.Samplers)
	l.program.Samplers = append(l.program.Samplers, s)
}

// bindSamplerUnits moves combined samplers to the texture unit of their
// texture.
func (l *linker) bindSamplerUnits() {
	for i := range l.program.Samplers {
		s := &l.program.Samplers[i]
		if unit, ok := l.units[s.Slot]; ok {
			s.Slot = unit
		}
	}
}

func (l *linker) addAttributes(m *ir.Module, entryPoint string) {
	for i := range m.EntryPoints {
		ep := &m.EntryPoints[i]
		if ep.Stage != ir.StageVertex || (entryPoint != "" && ep.Name != entryPoint) {
			continue
		}
		for _, arg := range ep.Function.Arguments {
			if arg.Binding != nil {
				l.addAttribute(arg.Name, *arg.Binding)
				continue
			}
			if st, ok := m.Types[arg.Type].Inner.(ir.StructType); ok {
				for _, member := range st.Members {
					if member.Binding != nil {
						l.addAttribute(member.Name, *member.Binding)
					}
				}
			}
		}
		return
	}
}

func (l *linker) addAttribute(name string, binding ir.Binding) {
	if loc, ok := binding.(ir.LocationBinding); ok {
		l.program.Attributes = append(l.program.Attributes, reflection.LinkedAttribute{
			Name:     name,
			Location: loc.Location,
		})
	}
}

// uniformType returns the linker type of a uniform and its array size.
func uniformType(m *ir.Module, h ir.TypeHandle) (reflection.UniformType, uint32) {
	switch t := m.Types[h].Inner.(type) {
	case ir.ScalarType:
		switch t.Kind {
		case ir.ScalarBool:
			return reflection.UniformBool, 1
		case ir.ScalarSint, ir.ScalarUint:
			return reflection.UniformInt, 1
		case ir.ScalarFloat:
			return reflection.UniformFloat, 1
		}
	case ir.VectorType:
		switch t.Size {
		case ir.Vec2:
			return reflection.UniformVec2, 1
		case ir.Vec3:
			return reflection.UniformVec3, 1
		case ir.Vec4:
			return reflection.UniformVec4, 1
		}
	case ir.MatrixType:
		switch {
		case t.Columns == ir.Vec3 && t.Rows == ir.Vec3:
			return reflection.UniformMat3, 1
		case t.Columns == ir.Vec3 && t.Rows == ir.Vec4:
			return reflection.UniformMat3x4, 1
		case t.Columns == ir.Vec4 && t.Rows == ir.Vec4:
			return reflection.UniformMat4, 1
		}
	case ir.ArrayType:
		if t.Size.Constant != nil {
			base, _ := uniformType(m, t.Base)
			return base, *t.Size.Constant
		}
	}
	return reflection.UniformOther, 1
}
