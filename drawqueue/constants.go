package drawqueue

import (
	"bytes"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/hashutil"
)

// defaultConstantBufferAlignment is used when the device reports none.
const defaultConstantBufferAlignment = 256

// ConstantBufferRange is an allocation in a ConstantBufferCollection. The
// zero range means no allocation.
type ConstantBufferRange struct {
	Offset uint32
	Size   uint32
}

// IsEmpty reports whether r holds no data.
func (r ConstantBufferRange) IsEmpty() bool { return r.Size == 0 }

// ConstantBufferCollection is an append-only arena of uniform data.
// Allocations are aligned to the device offset alignment, and identical
// blocks added for the same parameter group share one allocation.
type ConstantBufferCollection struct {
	alignment   uint32
	data        []byte
	seen        [gpucore.GroupCount]map[uint64]ConstantBufferRange
	allocations int
}

// Reset drops every allocation and sets the offset alignment.
func (c *ConstantBufferCollection) Reset(alignment uint32) {
	if alignment == 0 {
		alignment = defaultConstantBufferAlignment
	}
	c.alignment = alignment
	c.data = c.data[:0]
	c.allocations = 0
	for i := range c.seen {
		clear(c.seen[i])
	}
}

// Add stores block for group and returns its range. A block with the same
// content as one added earlier for group reuses that range.
func (c *ConstantBufferCollection) Add(group gpucore.ShaderParameterGroup, block []byte) (r ConstantBufferRange, reused bool) {
	if len(block) == 0 || group >= gpucore.GroupCount {
		return ConstantBufferRange{}, false
	}
	hash := hashutil.Bytes64(block)
	if prev, ok := c.seen[group][hash]; ok && bytes.Equal(c.Bytes(prev), block) {
		return prev, true
	}

	r = c.Allocate(uint32(len(block)))
	copy(c.data[r.Offset:], block)
	if c.seen[group] == nil {
		c.seen[group] = make(map[uint64]ConstantBufferRange)
	}
	if _, taken := c.seen[group][hash]; !taken {
		c.seen[group][hash] = r
	}
	return r, false
}

// Allocate reserves size zeroed bytes.
func (c *ConstantBufferCollection) Allocate(size uint32) ConstantBufferRange {
	if c.alignment == 0 {
		c.alignment = defaultConstantBufferAlignment
	}
	start := len(c.data)
	offset := (uint32(start) + c.alignment - 1) / c.alignment * c.alignment
	end := int(offset + size)
	if end > cap(c.data) {
		grown := make([]byte, start, max(end, 2*cap(c.data)))
		copy(grown, c.data)
		renderapi.Logger().Debug("drawqueue: constant buffer arena grown", "bytes", cap(grown))
		c.data = grown
	}
	c.data = c.data[:end]
	clear(c.data[start:end])
	c.allocations++
	return ConstantBufferRange{Offset: offset, Size: size}
}

// Bytes returns the content of r.
func (c *ConstantBufferCollection) Bytes(r ConstantBufferRange) []byte {
	return c.data[r.Offset : r.Offset+r.Size]
}

// Data returns the whole arena.
func (c *ConstantBufferCollection) Data() []byte { return c.data }

// Len returns the arena size in bytes.
func (c *ConstantBufferCollection) Len() int { return len(c.data) }

// NumAllocations returns the number of allocations since the last Reset.
func (c *ConstantBufferCollection) NumAllocations() int { return c.allocations }
