// Package cache provides a generic LRU cache with an eviction callback.
//
// The render context keeps bind groups in it and the sampler cache keeps
// HAL samplers in it. Both release GPU handles from the eviction callback,
// so clearing the cache also frees everything it owns.
//
//	groups := cache.New[uint64, hal.BindGroup](1024, func(_ uint64, g hal.BindGroup) {
//	    device.DestroyBindGroup(g)
//	})
//	g, err := groups.GetOrCreate(key, create)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
