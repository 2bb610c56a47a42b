package pipeline

import (
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/gpucore"
)

type blendEntry struct {
	enabled  bool
	src, dst gputypes.BlendFactor
	srcAlpha gputypes.BlendFactor
	dstAlpha gputypes.BlendFactor
	op       gputypes.BlendOperation
}

const (
	zero             = gputypes.BlendFactorZero
	one              = gputypes.BlendFactorOne
	dstColor         = gputypes.BlendFactorDst
	srcAlpha         = gputypes.BlendFactorSrcAlpha
	oneMinusSrcAlpha = gputypes.BlendFactorOneMinusSrcAlpha
	dstAlpha         = gputypes.BlendFactorDstAlpha
	oneMinusDstAlpha = gputypes.BlendFactorOneMinusDstAlpha

	add         = gputypes.BlendOperationAdd
	revSubtract = gputypes.BlendOperationReverseSubtract
)

// blendModes is indexed by BlendMode. DeferredDecal keeps the destination
// alpha.
var blendModes = [gpucore.BlendModeCount]blendEntry{
	gpucore.BlendReplace:       {false, one, zero, one, zero, add},
	gpucore.BlendAdd:           {true, one, one, one, one, add},
	gpucore.BlendMultiply:      {true, dstColor, zero, dstColor, zero, add},
	gpucore.BlendAlpha:         {true, srcAlpha, oneMinusSrcAlpha, srcAlpha, oneMinusSrcAlpha, add},
	gpucore.BlendAddAlpha:      {true, srcAlpha, one, srcAlpha, one, add},
	gpucore.BlendPremulAlpha:   {true, one, oneMinusSrcAlpha, one, oneMinusSrcAlpha, add},
	gpucore.BlendInvDestAlpha:  {true, oneMinusDstAlpha, dstAlpha, oneMinusDstAlpha, dstAlpha, add},
	gpucore.BlendSubtract:      {true, one, one, one, one, revSubtract},
	gpucore.BlendSubtractAlpha: {true, srcAlpha, one, srcAlpha, one, revSubtract},
	gpucore.BlendDeferredDecal: {true, srcAlpha, oneMinusSrcAlpha, zero, one, add},
}

// blendState returns the blend state of mode, or nil when blending is off.
func blendState(mode gpucore.BlendMode) *gputypes.BlendState {
	if mode >= gpucore.BlendModeCount {
		mode = gpucore.BlendReplace
	}
	e := blendModes[mode]
	if !e.enabled {
		return nil
	}
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{SrcFactor: e.src, DstFactor: e.dst, Operation: e.op},
		Alpha: gputypes.BlendComponent{SrcFactor: e.srcAlpha, DstFactor: e.dstAlpha, Operation: e.op},
	}
}

var compareFunctions = [gpucore.CompareModeCount]gputypes.CompareFunction{
	gpucore.CompareAlways:       gputypes.CompareFunctionAlways,
	gpucore.CompareEqual:        gputypes.CompareFunctionEqual,
	gpucore.CompareNotEqual:     gputypes.CompareFunctionNotEqual,
	gpucore.CompareLess:         gputypes.CompareFunctionLess,
	gpucore.CompareLessEqual:    gputypes.CompareFunctionLessEqual,
	gpucore.CompareGreater:      gputypes.CompareFunctionGreater,
	gpucore.CompareGreaterEqual: gputypes.CompareFunctionGreaterEqual,
}

func compareFunction(m gpucore.CompareMode) gputypes.CompareFunction {
	if m >= gpucore.CompareModeCount {
		return gputypes.CompareFunctionAlways
	}
	return compareFunctions[m]
}

var stencilOperations = [gpucore.StencilOpCount]hal.StencilOperation{
	gpucore.StencilKeep: hal.StencilOperationKeep,
	gpucore.StencilZero: hal.StencilOperationZero,
	gpucore.StencilRef:  hal.StencilOperationReplace,
	gpucore.StencilIncr: hal.StencilOperationIncrementWrap,
	gpucore.StencilDecr: hal.StencilOperationDecrementWrap,
}

func stencilOperation(op gpucore.StencilOp) hal.StencilOperation {
	if op >= gpucore.StencilOpCount {
		return hal.StencilOperationKeep
	}
	return stencilOperations[op]
}

// cullMode maps the culled winding to a culled face. Front faces wind
// clockwise.
func cullMode(m gpucore.CullMode) gputypes.CullMode {
	switch m {
	case gpucore.CullCCW:
		return gputypes.CullModeBack
	case gpucore.CullCW:
		return gputypes.CullModeFront
	}
	return gputypes.CullModeNone
}

// primitiveTopology returns the topology of p. ok is false for topologies
// no backend can draw.
func primitiveTopology(p gpucore.PrimitiveType) (topology gputypes.PrimitiveTopology, ok bool) {
	switch p {
	case gpucore.TriangleList:
		return gputypes.PrimitiveTopologyTriangleList, true
	case gpucore.LineList:
		return gputypes.PrimitiveTopologyLineList, true
	case gpucore.PointList:
		return gputypes.PrimitiveTopologyPointList, true
	case gpucore.TriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, true
	case gpucore.LineStrip:
		return gputypes.PrimitiveTopologyLineStrip, true
	}
	return 0, false
}

// depthBias converts a constant bias expressed as a fraction of the depth
// range to integer depth units. Legacy backends take the bias unscaled.
func depthBias(bias float32, format gputypes.TextureFormat, legacy bool) int32 {
	if legacy {
		return int32(math.Round(float64(bias)))
	}
	bits := 24
	if format == gputypes.TextureFormatDepth16Unorm {
		bits = 16
	}
	return int32(float64(bias) * float64(int64(1)<<bits))
}
