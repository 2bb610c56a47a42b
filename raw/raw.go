package raw

import (
	"errors"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
)

// Errors returned by raw objects.
var (
	// ErrInvalidSize is returned for zero-sized buffers and textures.
	ErrInvalidSize = errors.New("raw: invalid size")

	// ErrOutOfRange is returned when an update exceeds the object.
	ErrOutOfRange = errors.New("raw: update out of range")

	// ErrImmutable is returned when updating an immutable buffer.
	ErrImmutable = errors.New("raw: buffer is immutable")

	// ErrNotCreated is returned when updating an object without a handle.
	ErrNotCreated = errors.New("raw: object has no GPU handle")
)

// Owner is the device raw objects belong to. Objects register at creation
// and receive its invalidate and restore broadcasts.
type Owner interface {
	Backend() backend.Backend
	AddDeviceObject(obj gpucore.DeviceObject)
	RemoveDeviceObject(obj gpucore.DeviceObject)
}
