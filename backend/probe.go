package backend

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/gpucore"
)

// maxProbedSampleCount is the highest sample count reported for formats
// with multisample support.
const maxProbedSampleCount = gpucore.MaxMultiSample

// FormatQuery returns the capability flags of a texture format.
type FormatQuery func(format gputypes.TextureFormat) hal.TextureFormatCapabilityFlags

// Probe computes the capabilities of an adapter for the given backend kind.
// It runs once when the backend opens.
func Probe(kind gpucore.RenderBackend, exposed hal.ExposedAdapter, formats FormatQuery) gpucore.Caps {
	flags := exposed.Capabilities.DownlevelCapabilities.Flags
	limits := exposed.Capabilities.Limits
	legacy := kind.IsLegacy()

	renderTarget := func(format gputypes.TextureFormat) bool {
		return formats(format)&hal.TextureFormatCapabilityRenderAttachment != 0
	}

	baseVertexInstance := flags&hal.DownlevelFlagsBaseVertexBaseInstance != 0

	caps := gpucore.Caps{
		ComputeShaders: flags&hal.DownlevelFlagsComputeShaders != 0,
		DrawBaseVertex: baseVertexInstance && !legacy,
		DrawBaseInstance: baseVertexInstance && !legacy &&
			(flags&hal.DownlevelFlagsIndirectFirstInstance != 0 ||
				exposed.Features.Contains(gputypes.FeatureIndirectFirstInstance)),
		ClipDistance:  !legacy,
		ReadOnlyDepth: flags&hal.DownlevelFlagsReadOnlyDepthStencil != 0,
		SRGBOutput: renderTarget(gputypes.TextureFormatRGBA8UnormSrgb) ||
			renderTarget(gputypes.TextureFormatBGRA8UnormSrgb),
		HDROutput:                     renderTarget(gputypes.TextureFormatRGBA16Float),
		ConstantBufferOffsetAlignment: limits.MinUniformBufferOffsetAlignment,
		MaxTextureSize:                limits.MaxTextureDimension2D,
		MaxRenderTargetSize:           limits.MaxTextureDimension2D,
	}
	if caps.ConstantBufferOffsetAlignment == 0 {
		caps.ConstantBufferOffsetAlignment = gputypes.DefaultLimits().MinUniformBufferOffsetAlignment
	}
	return caps
}

// SampleCountMask converts format capability flags into a sample count
// bitmask: the bit with value n is set when n samples are supported.
func SampleCountMask(flags hal.TextureFormatCapabilityFlags) uint32 {
	mask := uint32(1) // single sample is always supported
	if flags&hal.TextureFormatCapabilityMultisample == 0 {
		return mask
	}
	for n := uint32(2); n <= maxProbedSampleCount; n <<= 1 {
		mask |= n
	}
	return mask
}

// SupportsSampleCount reports whether count is set in mask.
func SupportsSampleCount(mask, count uint32) bool {
	return gpucore.IsPowerOfTwo(count) && mask&count != 0
}
