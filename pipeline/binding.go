package pipeline

import (
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/raw"
	"github.com/gogpu/renderapi/reflection"
)

// Binding is the binding table of a created pipeline: its bind group
// layouts and the slot of every bound shader variable per stage.
type Binding struct {
	layouts   []hal.BindGroupLayout
	variables map[gpucore.ShaderType]map[string]reflection.Slot
}

// newBinding indexes the bound variables of every stage. Uniform buffers
// are also indexed by the name of their struct type, which is the name
// linkers report for blocks.
func newBinding(layouts []hal.BindGroupLayout, shaders []*raw.RawShader) *Binding {
	b := &Binding{
		layouts:   layouts,
		variables: make(map[gpucore.ShaderType]map[string]reflection.Slot),
	}
	for _, s := range shaders {
		m := s.Module()
		if m == nil {
			continue
		}
		vars := make(map[string]reflection.Slot)
		for i := range m.GlobalVariables {
			gv := &m.GlobalVariables[i]
			if gv.Binding == nil {
				continue
			}
			slot := reflection.Slot{Group: gv.Binding.Group, Binding: gv.Binding.Binding}
			vars[gv.Name] = slot
			if gv.Space == ir.SpaceUniform && int(gv.Type) < len(m.Types) {
				if name := m.Types[gv.Type].Name; name != "" {
					if _, taken := vars[name]; !taken {
						vars[name] = slot
					}
				}
			}
		}
		b.variables[s.Type()] = vars
	}
	return b
}

// LookupVariable returns the slot of a shader variable of the given stage.
func (b *Binding) LookupVariable(stage gpucore.ShaderType, name string) (reflection.Slot, bool) {
	slot, ok := b.variables[stage][name]
	return slot, ok
}

// Layout returns the layout of a bind group, or nil.
func (b *Binding) Layout(group uint32) hal.BindGroupLayout {
	if int(group) >= len(b.layouts) {
		return nil
	}
	return b.layouts[group]
}

// NumGroups returns the number of bind groups.
func (b *Binding) NumGroups() int { return len(b.layouts) }

var _ reflection.Binder = (*Binding)(nil)
