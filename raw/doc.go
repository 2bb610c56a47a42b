// Package raw wraps GPU buffers, shaders, textures and samplers in objects
// that survive device loss.
//
// Every raw object registers with its [Owner] when created and implements
// [gpucore.DeviceObject]: Invalidate releases the GPU handles, Restore
// recreates them. Shadowed buffers keep a CPU copy and come back with their
// contents; everything else that is purely GPU-resident reports DataLost
// after a restore so the caller can upload it again.
//
// A failed creation never panics. The object keeps a nil handle, the
// failure is logged once and consumers skip the object.
package raw
