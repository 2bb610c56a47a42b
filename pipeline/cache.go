package pipeline

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/raw"
)

// Owner is the device pipeline states belong to.
type Owner = raw.Owner

// PipelineStateCache shares one PipelineState per distinct descriptor.
// Entries are weak: the cache holds no reference of its own, and a state
// leaves the cache on its last Release.
//
// The cache is safe for concurrent use. Pipeline states themselves are
// used from the render thread.
type PipelineStateCache struct {
	owner Owner

	mu      sync.RWMutex
	states  map[uint64][]*PipelineState
	reloads []*PipelineState

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPipelineStateCache creates an empty cache for the states of owner.
func NewPipelineStateCache(owner Owner) *PipelineStateCache {
	return &PipelineStateCache{
		owner:  owner,
		states: make(map[uint64][]*PipelineState),
	}
}

// GetGraphicsPipelineState returns the state of a graphics descriptor.
func (c *PipelineStateCache) GetGraphicsPipelineState(desc GraphicsPipelineStateDesc) *PipelineState {
	return c.GetPipelineState(GraphicsDesc(desc))
}

// GetComputePipelineState returns the state of a compute descriptor.
func (c *PipelineStateCache) GetComputePipelineState(desc ComputePipelineStateDesc) *PipelineState {
	return c.GetPipelineState(ComputeDesc(desc))
}

// GetPipelineState returns a new reference to the state of desc, creating
// it on first use. It returns nil when desc does not name its shaders.
// A state whose creation failed is returned and cached all the same.
func (c *PipelineStateCache) GetPipelineState(desc PipelineStateDesc) *PipelineState {
	if !desc.IsInitialized() {
		return nil
	}
	hash := desc.Hash()

	c.mu.Lock()
	if s := c.lookup(hash, &desc); s != nil {
		s.refs++
		c.mu.Unlock()
		c.hits.Add(1)
		return s
	}
	s := newPipelineState(c, desc, hash)
	c.states[hash] = append(c.states[hash], s)
	c.mu.Unlock()

	c.misses.Add(1)
	renderapi.Logger().Debug("pipeline: cache miss", "pipeline", s.name, "states", c.Len())
	return s
}

func (c *PipelineStateCache) lookup(hash uint64, desc *PipelineStateDesc) *PipelineState {
	for _, s := range c.states[hash] {
		if s.desc.Equal(desc) {
			return s
		}
	}
	return nil
}

// release drops a reference of s and reports whether it was the last one.
// The entry is removed with the last reference.
func (c *PipelineStateCache) release(s *PipelineState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.refs == 0 {
		return false
	}
	s.refs--
	if s.refs > 0 {
		return false
	}
	bucket := slices.DeleteFunc(c.states[s.hash], func(x *PipelineState) bool { return x == s })
	if len(bucket) == 0 {
		delete(c.states, s.hash)
	} else {
		c.states[s.hash] = bucket
	}
	c.reloads = slices.DeleteFunc(c.reloads, func(x *PipelineState) bool { return x == s })
	return true
}

// Len returns the number of live states.
func (c *PipelineStateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, bucket := range c.states {
		n += len(bucket)
	}
	return n
}

// Stats returns the number of cache hits and misses.
func (c *PipelineStateCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// QueueReload schedules the rebuild of s, usually after one of its
// shaders was reloaded.
func (c *PipelineStateCache) QueueReload(s *PipelineState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.reloads, s) {
		c.reloads = append(c.reloads, s)
	}
}

// ProcessReloads rebuilds every queued state and returns how many were
// rebuilt.
func (c *PipelineStateCache) ProcessReloads() int {
	c.mu.Lock()
	queued := c.reloads
	c.reloads = nil
	c.mu.Unlock()

	for _, s := range queued {
		s.rebuild()
	}
	if len(queued) > 0 {
		renderapi.Logger().Info("pipeline: states reloaded", "count", len(queued))
	}
	return len(queued)
}

// ForEach calls fn for every live state.
func (c *PipelineStateCache) ForEach(fn func(*PipelineState)) {
	c.mu.RLock()
	states := make([]*PipelineState, 0, len(c.states))
	for _, bucket := range c.states {
		states = append(states, bucket...)
	}
	c.mu.RUnlock()

	for _, s := range states {
		fn(s)
	}
}
