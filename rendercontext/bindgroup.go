package rendercontext

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/internal/hashutil"
)

type bindGroupKey struct {
	layout hal.BindGroupLayout
	hash   uint64
}

// BindGroup returns a bind group of layout with entries, creating it on
// first use. Bind groups are shared by every draw binding the same
// resources and are destroyed after eviction once the commands using them
// were submitted.
func (c *RenderContext) BindGroup(layout hal.BindGroupLayout, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
	key := bindGroupKey{layout: layout, hash: HashBindGroupEntries(entries)}
	return c.bindGroups.GetOrCreate(key, func() (hal.BindGroup, error) {
		dev := c.owner.Backend().Device()
		if dev == nil {
			return nil, backend.ErrDeviceInvalidated
		}
		group, err := dev.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   "rendercontext_group",
			Layout:  layout,
			Entries: entries,
		})
		if err != nil {
			return nil, fmt.Errorf("rendercontext: create bind group: %w", err)
		}
		return group, nil
	})
}

// NumBindGroups returns the number of cached bind groups.
func (c *RenderContext) NumBindGroups() int { return c.bindGroups.Len() }

// HashBindGroupEntries hashes the bindings and resource handles of entries.
func HashBindGroupEntries(entries []gputypes.BindGroupEntry) uint64 {
	h := hashutil.New().Uint32(uint32(len(entries)))
	for _, e := range entries {
		h.Uint32(e.Binding)
		switch r := e.Resource.(type) {
		case gputypes.BufferBinding:
			h.Uint32(1).Uint64(uint64(r.Buffer)).Uint64(r.Offset).Uint64(r.Size)
		case gputypes.SamplerBinding:
			h.Uint32(2).Uint64(uint64(r.Sampler))
		case gputypes.TextureViewBinding:
			h.Uint32(3).Uint64(uint64(r.TextureView))
		default:
			h.Uint32(0)
		}
	}
	return h.Sum64()
}

func (c *RenderContext) destroyGroups(groups []hal.BindGroup) {
	dev := c.owner.Backend().Device()
	if dev == nil {
		return
	}
	for _, g := range groups {
		dev.DestroyBindGroup(g)
	}
}

func (c *RenderContext) destroyRetired() {
	c.destroyGroups(c.retiredPrev)
	c.destroyGroups(c.retired)
	c.retired, c.retiredPrev = nil, nil
}
