package gpucore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
)

// MaxVertexStreams is the number of vertex buffer slots a draw can bind.
const MaxVertexStreams = 4

// VertexElementSemantic is the meaning of a vertex element.
type VertexElementSemantic uint8

// Vertex element semantics.
const (
	SemanticPosition VertexElementSemantic = iota
	SemanticNormal
	SemanticBinormal
	SemanticTangent
	SemanticTexCoord
	SemanticColor
	SemanticBlendWeights
	SemanticBlendIndices
	SemanticObjectIndex

	SemanticCount
)

// shaderInputNames are the vertex shader input names per semantic.
var shaderInputNames = [SemanticCount]string{
	"iPos",
	"iNormal",
	"iBinormal",
	"iTangent",
	"iTexCoord",
	"iColor",
	"iBlendWeights",
	"iBlendIndices",
	"iObjectIndex",
}

// ShaderInputName returns the vertex shader input name for the semantic.
func (s VertexElementSemantic) ShaderInputName() string {
	if s < SemanticCount {
		return shaderInputNames[s]
	}
	return ""
}

func (s VertexElementSemantic) String() string {
	if s < SemanticCount {
		return strings.TrimPrefix(shaderInputNames[s], "i")
	}
	return fmt.Sprintf("Semantic(%d)", s)
}

// VertexElementType is the data type of a vertex element.
type VertexElementType uint8

// Vertex element types.
const (
	TypeInt VertexElementType = iota
	TypeFloat
	TypeVector2
	TypeVector3
	TypeVector4
	TypeUByte4
	TypeUByte4Norm
)

// Size returns the element size in bytes.
func (t VertexElementType) Size() uint32 {
	switch t {
	case TypeInt, TypeFloat, TypeUByte4, TypeUByte4Norm:
		return 4
	case TypeVector2:
		return 8
	case TypeVector3:
		return 12
	case TypeVector4:
		return 16
	}
	return 0
}

// VertexFormat returns the native vertex format of the element type.
func (t VertexElementType) VertexFormat() gputypes.VertexFormat {
	switch t {
	case TypeInt:
		return gputypes.VertexFormatSint32
	case TypeFloat:
		return gputypes.VertexFormatFloat32
	case TypeVector2:
		return gputypes.VertexFormatFloat32x2
	case TypeVector3:
		return gputypes.VertexFormatFloat32x3
	case TypeVector4:
		return gputypes.VertexFormatFloat32x4
	case TypeUByte4:
		return gputypes.VertexFormatUint8x4
	case TypeUByte4Norm:
		return gputypes.VertexFormatUnorm8x4
	}
	return gputypes.VertexFormatUndefined
}

// VertexElement describes one element of a vertex input layout.
type VertexElement struct {
	Type          VertexElementType
	Semantic      VertexElementSemantic
	SemanticIndex uint8
	// Offset is the byte offset inside the vertex of BufferSlot.
	Offset uint32
	// BufferSlot is the vertex stream, below MaxVertexStreams.
	BufferSlot  uint8
	PerInstance bool
}

// Matches reports whether the element provides the given attribute.
func (e VertexElement) Matches(semantic VertexElementSemantic, index uint8) bool {
	return e.Semantic == semantic && e.SemanticIndex == index
}

// VertexShaderAttribute is a vertex input consumed by a compiled vertex shader.
type VertexShaderAttribute struct {
	Semantic      VertexElementSemantic
	SemanticIndex uint8
	// Location is the input location assigned by the shader or, for the
	// legacy backend, by the linker.
	Location uint32
	Name     string
}

// ParseVertexAttribute maps a shader input name such as "iTexCoord1" to its
// semantic and semantic index. The name may carry a prefix, so "vs_iPos"
// resolves to position. ok is false for unknown names.
func ParseVertexAttribute(name string) (attr VertexShaderAttribute, ok bool) {
	for i, semanticName := range shaderInputNames {
		pos := strings.Index(name, semanticName)
		if pos < 0 {
			continue
		}
		// Anything after the semantic name is the semantic index.
		suffix := name[pos+len(semanticName):]
		index := 0
		if suffix != "" {
			n, err := strconv.Atoi(suffix)
			if err != nil || n < 0 || n > 255 {
				continue
			}
			index = n
		}
		return VertexShaderAttribute{
			Semantic:      VertexElementSemantic(i),
			SemanticIndex: uint8(index),
			Name:          name,
		}, true
	}
	return VertexShaderAttribute{}, false
}
