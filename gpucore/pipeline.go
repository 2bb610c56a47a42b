package gpucore

import "fmt"

// BlendMode selects one of the predefined color blending setups.
type BlendMode uint8

// Blend modes.
const (
	BlendReplace BlendMode = iota
	BlendAdd
	BlendMultiply
	BlendAlpha
	BlendAddAlpha
	BlendPremulAlpha
	BlendInvDestAlpha
	BlendSubtract
	BlendSubtractAlpha
	BlendDeferredDecal

	// BlendModeCount is the number of blend modes.
	BlendModeCount
)

var blendModeNames = [...]string{
	"Replace", "Add", "Multiply", "Alpha", "AddAlpha",
	"PremulAlpha", "InvDestAlpha", "Subtract", "SubtractAlpha", "DeferredDecal",
}

// String returns the blend mode name.
func (m BlendMode) String() string {
	if int(m) < len(blendModeNames) {
		return blendModeNames[m]
	}
	return fmt.Sprintf("BlendMode(%d)", m)
}

// CompareMode is a depth or stencil comparison function.
type CompareMode uint8

// Comparison modes.
const (
	CompareAlways CompareMode = iota
	CompareEqual
	CompareNotEqual
	CompareLess
	CompareLessEqual
	CompareGreater
	CompareGreaterEqual

	CompareModeCount
)

var compareModeNames = [...]string{
	"Always", "Equal", "NotEqual", "Less", "LessEqual", "Greater", "GreaterEqual",
}

func (m CompareMode) String() string {
	if int(m) < len(compareModeNames) {
		return compareModeNames[m]
	}
	return fmt.Sprintf("CompareMode(%d)", m)
}

// CullMode selects which winding order is culled.
type CullMode uint8

// Cull modes.
const (
	CullNone CullMode = iota
	CullCCW
	CullCW

	CullModeCount
)

func (m CullMode) String() string {
	switch m {
	case CullNone:
		return "None"
	case CullCCW:
		return "CCW"
	case CullCW:
		return "CW"
	default:
		return fmt.Sprintf("CullMode(%d)", m)
	}
}

// FillMode is the polygon rasterization mode.
type FillMode uint8

// Fill modes.
const (
	FillSolid FillMode = iota
	FillWireframe
	FillPoint

	FillModeCount
)

func (m FillMode) String() string {
	switch m {
	case FillSolid:
		return "Solid"
	case FillWireframe:
		return "Wireframe"
	case FillPoint:
		return "Point"
	default:
		return fmt.Sprintf("FillMode(%d)", m)
	}
}

// StencilOp is the operation applied to the stencil buffer.
type StencilOp uint8

// Stencil operations.
const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilRef
	StencilIncr
	StencilDecr

	StencilOpCount
)

func (op StencilOp) String() string {
	switch op {
	case StencilKeep:
		return "Keep"
	case StencilZero:
		return "Zero"
	case StencilRef:
		return "Ref"
	case StencilIncr:
		return "Incr"
	case StencilDecr:
		return "Decr"
	default:
		return fmt.Sprintf("StencilOp(%d)", op)
	}
}

// PrimitiveType is the primitive topology of a draw.
type PrimitiveType uint8

// Primitive types. TriangleFan is accepted by descriptors but no backend
// can draw it.
const (
	TriangleList PrimitiveType = iota
	LineList
	PointList
	TriangleStrip
	LineStrip
	TriangleFan

	PrimitiveTypeCount
)

var primitiveTypeNames = [...]string{
	"TriangleList", "LineList", "PointList", "TriangleStrip", "LineStrip", "TriangleFan",
}

func (p PrimitiveType) String() string {
	if int(p) < len(primitiveTypeNames) {
		return primitiveTypeNames[p]
	}
	return fmt.Sprintf("PrimitiveType(%d)", p)
}

// PrimitiveCount returns the number of primitives drawn from elementCount
// vertices or indices.
func (p PrimitiveType) PrimitiveCount(elementCount uint32) uint32 {
	switch p {
	case TriangleList:
		return elementCount / 3
	case LineList:
		return elementCount / 2
	case PointList:
		return elementCount
	case TriangleStrip, TriangleFan:
		if elementCount < 3 {
			return 0
		}
		return elementCount - 2
	case LineStrip:
		if elementCount < 2 {
			return 0
		}
		return elementCount - 1
	}
	return 0
}

// PipelineStateType distinguishes graphics and compute pipeline states.
type PipelineStateType uint8

// Pipeline state types.
const (
	PipelineGraphics PipelineStateType = iota
	PipelineCompute
)

func (t PipelineStateType) String() string {
	if t == PipelineCompute {
		return "Compute"
	}
	return "Graphics"
}
