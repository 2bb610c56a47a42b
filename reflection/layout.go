package reflection

import (
	"slices"

	"github.com/gogpu/gputypes"
)

// BindGroupLayouts returns the layout entries of every bind group used by
// the program, indexed by group. Uniform buffers use dynamic offsets so
// one buffer can serve every draw of a frame.
func (r *ShaderProgramReflection) BindGroupLayouts() [][]gputypes.BindGroupLayoutEntry {
	var groups [][]gputypes.BindGroupLayoutEntry
	add := func(slot Slot, entry gputypes.BindGroupLayoutEntry) {
		for uint32(len(groups)) <= slot.Group {
			groups = append(groups, nil)
		}
		entry.Binding = slot.Binding
		for _, e := range groups[slot.Group] {
			if e.Binding == slot.Binding {
				return
			}
		}
		groups[slot.Group] = append(groups[slot.Group], entry)
	}

	for g := range r.uniformBuffers {
		buf := &r.uniformBuffers[g]
		if buf.InternalName == "" {
			continue
		}
		add(buf.Slot, gputypes.BindGroupLayoutEntry{
			Visibility: buf.Visibility,
			Buffer: &gputypes.BufferBindingLayout{
				Type:             gputypes.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64(buf.Size),
			},
		})
	}
	for _, res := range r.ShaderResources() {
		add(res.Slot, gputypes.BindGroupLayoutEntry{
			Visibility: res.Visibility,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    res.SampleType,
				ViewDimension: res.ViewDimension,
				Multisampled:  res.Multisampled,
			},
		})
	}
	for _, res := range r.UnorderedAccessViews() {
		entry := gputypes.BindGroupLayoutEntry{Visibility: res.Visibility}
		if res.Kind == ResourceStorageBuffer {
			bufferType := gputypes.BufferBindingTypeStorage
			if res.ReadOnly {
				bufferType = gputypes.BufferBindingTypeReadOnlyStorage
			}
			entry.Buffer = &gputypes.BufferBindingLayout{Type: bufferType}
		} else {
			entry.StorageTexture = &gputypes.StorageTextureBindingLayout{
				Access:        res.Access,
				Format:        res.StorageFormat,
				ViewDimension: res.ViewDimension,
			}
		}
		add(res.Slot, entry)
	}
	for _, s := range r.samplers {
		samplerType := gputypes.SamplerBindingTypeFiltering
		if s.Comparison {
			samplerType = gputypes.SamplerBindingTypeComparison
		}
		add(s.Slot, gputypes.BindGroupLayoutEntry{
			Visibility: s.Visibility,
			Sampler:    &gputypes.SamplerBindingLayout{Type: samplerType},
		})
	}

	for _, entries := range groups {
		slices.SortFunc(entries, func(a, b gputypes.BindGroupLayoutEntry) int {
			return int(a.Binding) - int(b.Binding)
		})
	}
	return groups
}
