package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
)

// ErrMissingVertexElement is returned when a vertex shader consumes an
// attribute the input layout does not provide.
var ErrMissingVertexElement = errors.New("pipeline: attribute not found in the vertex layout")

// layoutAttributes returns the attributes of a vertex shader without
// reflection data: one per layout element, at the element index.
func layoutAttributes(layout *InputLayoutDesc) []gpucore.VertexShaderAttribute {
	elements := layout.Elements()
	attrs := make([]gpucore.VertexShaderAttribute, len(elements))
	for i, e := range elements {
		attrs[i] = gpucore.VertexShaderAttribute{
			Semantic:      e.Semantic,
			SemanticIndex: e.SemanticIndex,
			Location:      uint32(i),
		}
	}
	return attrs
}

// vertexBuffers matches the shader attributes against the layout and
// returns one buffer layout per slot up to the highest used slot. When
// several elements provide an attribute the last one wins. Elements no
// attribute consumes are left out.
func vertexBuffers(layout *InputLayoutDesc, attrs []gpucore.VertexShaderAttribute) ([]gputypes.VertexBufferLayout, error) {
	elements := layout.Elements()
	var slots [gpucore.MaxVertexStreams][]gputypes.VertexAttribute
	var instanced [gpucore.MaxVertexStreams]bool
	used := -1

	for _, attr := range attrs {
		found := -1
		for i := len(elements) - 1; i >= 0; i-- {
			if elements[i].Matches(attr.Semantic, attr.SemanticIndex) {
				found = i
				break
			}
		}
		if found < 0 {
			renderapi.Logger().Error("pipeline: vertex attribute is not found in the layout",
				"attribute", attr.Name, "semantic", attr.Semantic, "index", attr.SemanticIndex)
			return nil, fmt.Errorf("%w: %s%d", ErrMissingVertexElement, attr.Semantic, attr.SemanticIndex)
		}
		e := elements[found]
		slots[e.BufferSlot] = append(slots[e.BufferSlot], gputypes.VertexAttribute{
			Format:         e.Type.VertexFormat(),
			Offset:         uint64(e.Offset),
			ShaderLocation: attr.Location,
		})
		if e.PerInstance {
			instanced[e.BufferSlot] = true
		}
		used = max(used, int(e.BufferSlot))
	}

	buffers := make([]gputypes.VertexBufferLayout, used+1)
	for slot := range buffers {
		if len(slots[slot]) == 0 {
			buffers[slot].StepMode = gputypes.VertexStepModeVertexBufferNotUsed
			continue
		}
		stepMode := gputypes.VertexStepModeVertex
		if instanced[slot] {
			stepMode = gputypes.VertexStepModeInstance
		}
		buffers[slot] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(layout.Stride(uint8(slot))),
			StepMode:    stepMode,
			Attributes:  slots[slot],
		}
	}
	return buffers, nil
}
