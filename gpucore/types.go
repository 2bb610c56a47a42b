package gpucore

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/renderapi/internal/hashutil"
)

// TextureFormat is the texture format vocabulary shared with the HAL.
type TextureFormat = gputypes.TextureFormat

// HasStencil reports whether a depth format carries a stencil channel.
func HasStencil(format TextureFormat) bool {
	switch format {
	case gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32FloatStencil8,
		gputypes.TextureFormatStencil8:
		return true
	}
	return false
}

// MaxRenderTargets is the maximum number of simultaneously bound color targets.
const MaxRenderTargets = 8

// MaxImmutableSamplers is the maximum number of samplers baked into one
// pipeline state.
const MaxImmutableSamplers = 16

// MaxMultiSample is the highest supported multisample level.
const MaxMultiSample = 16

// TextureType is the dimensionality of a texture.
type TextureType uint8

// Texture types.
const (
	Texture2D TextureType = iota
	TextureCube
	Texture3D
	Texture2DArray

	TextureTypeCount
)

func (t TextureType) String() string {
	switch t {
	case Texture2D:
		return "2D"
	case TextureCube:
		return "Cube"
	case Texture3D:
		return "3D"
	case Texture2DArray:
		return "2DArray"
	default:
		return fmt.Sprintf("TextureType(%d)", t)
	}
}

// ViewDimension returns the default view dimension of the texture type.
func (t TextureType) ViewDimension() gputypes.TextureViewDimension {
	switch t {
	case TextureCube:
		return gputypes.TextureViewDimensionCube
	case Texture3D:
		return gputypes.TextureViewDimension3D
	case Texture2DArray:
		return gputypes.TextureViewDimension2DArray
	default:
		return gputypes.TextureViewDimension2D
	}
}

// TextureFilterMode is the texture filtering mode of a sampler.
type TextureFilterMode uint8

// Filter modes. FilterDefault resolves to the device-wide default.
const (
	FilterNearest TextureFilterMode = iota
	FilterBilinear
	FilterTrilinear
	FilterAnisotropic
	FilterNearestAnisotropic
	FilterDefault
)

func (m TextureFilterMode) String() string {
	switch m {
	case FilterNearest:
		return "Nearest"
	case FilterBilinear:
		return "Bilinear"
	case FilterTrilinear:
		return "Trilinear"
	case FilterAnisotropic:
		return "Anisotropic"
	case FilterNearestAnisotropic:
		return "NearestAnisotropic"
	case FilterDefault:
		return "Default"
	default:
		return fmt.Sprintf("TextureFilterMode(%d)", m)
	}
}

// TextureAddressMode is the texture coordinate addressing mode.
type TextureAddressMode uint8

// Address modes.
const (
	AddressWrap TextureAddressMode = iota
	AddressMirror
	AddressClamp
)

// SamplerStateDesc describes a sampler. The zero value is a point-filtered
// wrapping sampler with the default anisotropy.
type SamplerStateDesc struct {
	Filter        TextureFilterMode
	Anisotropy    uint8
	ShadowCompare bool
	// Address holds the U, V and W addressing modes.
	Address [3]TextureAddressMode
}

func samplerWithFilter(filter TextureFilterMode, address TextureAddressMode) SamplerStateDesc {
	return SamplerStateDesc{
		Filter:  filter,
		Address: [3]TextureAddressMode{address, address, address},
	}
}

// DefaultSampler returns a sampler with the device default filter.
func DefaultSampler(address TextureAddressMode) SamplerStateDesc {
	return samplerWithFilter(FilterDefault, address)
}

// NearestSampler returns a point-filtered sampler.
func NearestSampler(address TextureAddressMode) SamplerStateDesc {
	return samplerWithFilter(FilterNearest, address)
}

// BilinearSampler returns a bilinear sampler.
func BilinearSampler(address TextureAddressMode) SamplerStateDesc {
	return samplerWithFilter(FilterBilinear, address)
}

// TrilinearSampler returns a trilinear sampler.
func TrilinearSampler(address TextureAddressMode) SamplerStateDesc {
	return samplerWithFilter(FilterTrilinear, address)
}

// Hash returns a hash identifying the sampler state.
func (d SamplerStateDesc) Hash() uint64 {
	h := hashutil.New().
		Uint32(uint32(d.Filter)).
		Uint32(uint32(d.Anisotropy)).
		Bool(d.ShadowCompare)
	for _, a := range d.Address {
		h.Uint32(uint32(a))
	}
	return h.Sum64()
}

// UsesDefaults reports whether the sampler depends on device-wide defaults.
func (d SamplerStateDesc) UsesDefaults() bool {
	return d.Filter == FilterDefault || d.Anisotropy == 0
}

// ShaderType is a shader pipeline stage.
type ShaderType uint8

// Shader types.
const (
	VertexShader ShaderType = iota
	PixelShader
	GeometryShader
	HullShader
	DomainShader
	ComputeShader

	ShaderTypeCount
)

var shaderTypeNames = [ShaderTypeCount]string{
	"Vertex", "Pixel", "Geometry", "Hull", "Domain", "Compute",
}

func (t ShaderType) String() string {
	if t < ShaderTypeCount {
		return shaderTypeNames[t]
	}
	return fmt.Sprintf("ShaderType(%d)", t)
}

// Stage returns the native shader stage flag. Geometry and tessellation
// stages have no native stage and return ShaderStageNone.
func (t ShaderType) Stage() gputypes.ShaderStage {
	switch t {
	case VertexShader:
		return gputypes.ShaderStageVertex
	case PixelShader:
		return gputypes.ShaderStageFragment
	case ComputeShader:
		return gputypes.ShaderStageCompute
	}
	return gputypes.ShaderStageNone
}

// ShaderParameterGroup is one of the semantic uniform-buffer groups.
type ShaderParameterGroup uint8

// Shader parameter groups. The set is closed: uniform buffers with other
// names are rejected.
const (
	GroupFrame ShaderParameterGroup = iota
	GroupCamera
	GroupZone
	GroupLight
	GroupMaterial
	GroupObject
	GroupCustom

	GroupCount
)

var groupNames = [GroupCount]string{
	"Frame", "Camera", "Zone", "Light", "Material", "Object", "Custom",
}

func (g ShaderParameterGroup) String() string {
	if g < GroupCount {
		return groupNames[g]
	}
	return fmt.Sprintf("ShaderParameterGroup(%d)", g)
}

// ParseShaderParameterGroup returns the group named name.
func ParseShaderParameterGroup(name string) (ShaderParameterGroup, bool) {
	for i, n := range groupNames {
		if n == name {
			return ShaderParameterGroup(i), true
		}
	}
	return GroupCount, false
}

// ClearTargetFlags selects the buffers cleared by a depth-stencil clear.
type ClearTargetFlags uint8

// Clear targets.
const (
	ClearColor   ClearTargetFlags = 1 << 0
	ClearDepth   ClearTargetFlags = 1 << 1
	ClearStencil ClearTargetFlags = 1 << 2
)

// BufferFlags configures raw buffer behavior.
type BufferFlags uint8

// Buffer flags.
const (
	// BufferShadowed keeps a CPU copy that survives device loss.
	BufferShadowed BufferFlags = 1 << iota
	// BufferDynamic marks buffers rewritten every frame.
	BufferDynamic
	// BufferDiscard allows updates to discard previous contents.
	BufferDiscard
	BufferBindUnorderedAccess
	BufferPerInstanceData
	// BufferImmutable buffers are written once at creation.
	BufferImmutable
)

// TextureFlags configures raw texture behavior.
type TextureFlags uint8

// Texture flags.
const (
	TextureBindRenderTarget TextureFlags = 1 << iota
	TextureBindDepthStencil
	TextureBindUnorderedAccess
	TextureNoMultiSampledAutoResolve
)
