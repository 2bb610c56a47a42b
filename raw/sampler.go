package raw

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/cache"
)

// samplerCacheSize bounds the number of live samplers.
const samplerCacheSize = 256

// SamplerCache shares one GPU sampler per distinct sampler state.
// Descriptors using FilterDefault or a zero anisotropy resolve to the
// cache defaults.
type SamplerCache struct {
	owner   Owner
	entries *cache.Cache[uint64, hal.Sampler]

	defaultFilter     gpucore.TextureFilterMode
	defaultAnisotropy uint8
}

// NewSamplerCache creates a sampler cache registered with owner.
func NewSamplerCache(owner Owner) *SamplerCache {
	c := &SamplerCache{
		owner:             owner,
		defaultFilter:     gpucore.FilterTrilinear,
		defaultAnisotropy: 4,
	}
	c.entries = cache.New(samplerCacheSize, func(_ uint64, s hal.Sampler) {
		if dev := c.owner.Backend().Device(); dev != nil {
			dev.DestroySampler(s)
		}
	})
	owner.AddDeviceObject(c)
	return c
}

// SetDefaults changes the default filter and anisotropy. Samplers that
// resolved the old defaults are released.
func (c *SamplerCache) SetDefaults(filter gpucore.TextureFilterMode, anisotropy uint8) {
	if filter == gpucore.FilterDefault {
		filter = gpucore.FilterTrilinear
	}
	anisotropy = max(anisotropy, 1)
	if filter == c.defaultFilter && anisotropy == c.defaultAnisotropy {
		return
	}
	c.defaultFilter = filter
	c.defaultAnisotropy = anisotropy
	c.entries.Clear()
}

// Defaults returns the default filter and anisotropy.
func (c *SamplerCache) Defaults() (gpucore.TextureFilterMode, uint8) {
	return c.defaultFilter, c.defaultAnisotropy
}

// Resolve replaces default fields of desc with the cache defaults.
func (c *SamplerCache) Resolve(desc gpucore.SamplerStateDesc) gpucore.SamplerStateDesc {
	if desc.Filter == gpucore.FilterDefault {
		desc.Filter = c.defaultFilter
	}
	if desc.Anisotropy == 0 {
		desc.Anisotropy = c.defaultAnisotropy
	}
	return desc
}

// Get returns the sampler for desc, creating it on first use.
func (c *SamplerCache) Get(desc gpucore.SamplerStateDesc) (hal.Sampler, error) {
	desc = c.Resolve(desc)
	return c.entries.GetOrCreate(desc.Hash(), func() (hal.Sampler, error) {
		dev := c.owner.Backend().Device()
		if dev == nil {
			return nil, backend.ErrDeviceInvalidated
		}
		s, err := dev.CreateSampler(SamplerDescriptor(desc))
		if err != nil {
			return nil, fmt.Errorf("raw: create sampler: %w", err)
		}
		return s, nil
	})
}

// Len returns the number of live samplers.
func (c *SamplerCache) Len() int { return c.entries.Len() }

// Invalidate releases every sampler. They are recreated on demand.
func (c *SamplerCache) Invalidate() { c.entries.Clear() }

// Restore is a no-op: samplers are recreated on demand.
func (c *SamplerCache) Restore() {}

// Destroy releases every sampler.
func (c *SamplerCache) Destroy() { c.entries.Clear() }

// SamplerDescriptor translates a resolved sampler state.
func SamplerDescriptor(desc gpucore.SamplerStateDesc) *hal.SamplerDescriptor {
	const (
		nearest = gputypes.FilterModeNearest
		linear  = gputypes.FilterModeLinear
	)
	d := &hal.SamplerDescriptor{
		Label:        fmt.Sprintf("sampler_%s", desc.Filter),
		AddressModeU: addressMode(desc.Address[0]),
		AddressModeV: addressMode(desc.Address[1]),
		AddressModeW: addressMode(desc.Address[2]),
		LodMaxClamp:  32,
		Anisotropy:   1,
	}
	switch desc.Filter {
	case gpucore.FilterNearest:
		d.MagFilter, d.MinFilter, d.MipmapFilter = nearest, nearest, nearest
	case gpucore.FilterBilinear:
		d.MagFilter, d.MinFilter, d.MipmapFilter = linear, linear, nearest
	case gpucore.FilterAnisotropic:
		d.MagFilter, d.MinFilter, d.MipmapFilter = linear, linear, linear
		d.Anisotropy = uint16(max(desc.Anisotropy, 1))
	case gpucore.FilterNearestAnisotropic:
		d.MagFilter, d.MinFilter, d.MipmapFilter = nearest, nearest, linear
		d.Anisotropy = uint16(max(desc.Anisotropy, 1))
	default:
		d.MagFilter, d.MinFilter, d.MipmapFilter = linear, linear, linear
	}
	if desc.ShadowCompare {
		d.Compare = gputypes.CompareFunctionLessEqual
	}
	return d
}

func addressMode(m gpucore.TextureAddressMode) gputypes.AddressMode {
	switch m {
	case gpucore.AddressMirror:
		return gputypes.AddressModeMirrorRepeat
	case gpucore.AddressClamp:
		return gputypes.AddressModeClampToEdge
	}
	return gputypes.AddressModeRepeat
}

var _ gpucore.DeviceObject = (*SamplerCache)(nil)
