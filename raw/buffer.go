package raw

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
)

// RawBufferParams describes a buffer.
type RawBufferParams struct {
	Label string
	Size  uint64
	// Stride is the element size for vertex and index buffers.
	Stride uint32
	Usage  gputypes.BufferUsage
	Flags  gpucore.BufferFlags
	// Data is the initial content. It may be shorter than Size.
	Data []byte
}

// RawBuffer is a GPU buffer that survives device loss.
type RawBuffer struct {
	owner  Owner
	params RawBufferParams
	handle hal.Buffer
	shadow []byte

	written  bool
	dataLost bool
	failed   bool
}

// NewRawBuffer creates an empty buffer registered with owner. Call Create
// to allocate it.
func NewRawBuffer(owner Owner) *RawBuffer {
	b := &RawBuffer{owner: owner}
	owner.AddDeviceObject(b)
	return b
}

// Create (re)allocates the buffer and uploads params.Data. On failure the
// buffer keeps a nil handle.
func (b *RawBuffer) Create(params RawBufferParams) error {
	b.release()
	if params.Size == 0 {
		return fmt.Errorf("%w: buffer %q", ErrInvalidSize, params.Label)
	}
	if uint64(len(params.Data)) > params.Size {
		return fmt.Errorf("%w: %d bytes of data for a %d byte buffer", ErrOutOfRange, len(params.Data), params.Size)
	}

	data := params.Data
	params.Data = nil
	b.params = params
	b.shadow = nil
	b.written = len(data) != 0
	b.dataLost = false
	b.failed = false
	if b.Shadowed() {
		b.shadow = make([]byte, params.Size)
		copy(b.shadow, data)
	}

	if err := b.createGPU(); err != nil {
		return err
	}
	if len(data) != 0 {
		return b.write(0, data)
	}
	return nil
}

func (b *RawBuffer) createGPU() error {
	be := b.owner.Backend()
	if be.Device() == nil {
		return backend.ErrDeviceInvalidated
	}
	handle, err := be.CreateBuffer(&hal.BufferDescriptor{
		Label: b.params.Label,
		Size:  alignBufferSize(b.params.Size),
		Usage: b.params.Usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		if !b.failed {
			renderapi.Logger().Error("raw: cannot create buffer", "buffer", b.params.Label, "err", err)
		}
		b.failed = true
		return fmt.Errorf("raw: create buffer %q: %w", b.params.Label, err)
	}
	b.handle = handle
	return nil
}

// alignBufferSize rounds size up to the 4 byte copy alignment.
func alignBufferSize(size uint64) uint64 {
	return (size + 3) &^ 3
}

// Update writes data at the start of the buffer. Dynamic buffers discard
// their previous content, so bytes past data are undefined afterwards.
func (b *RawBuffer) Update(data []byte) error {
	if err := b.UpdateRange(0, data); err != nil {
		return err
	}
	if b.params.Flags&(gpucore.BufferDynamic|gpucore.BufferDiscard) != 0 && b.shadow != nil {
		clear(b.shadow[len(data):])
	}
	return nil
}

// UpdateRange writes data at offset.
func (b *RawBuffer) UpdateRange(offset uint64, data []byte) error {
	if b.params.Flags&gpucore.BufferImmutable != 0 {
		return fmt.Errorf("%w: %q", ErrImmutable, b.params.Label)
	}
	if offset+uint64(len(data)) > b.params.Size {
		return fmt.Errorf("%w: [%d, %d) of %d bytes", ErrOutOfRange, offset, offset+uint64(len(data)), b.params.Size)
	}
	if len(data) == 0 {
		return nil
	}
	if b.shadow != nil {
		copy(b.shadow[offset:], data)
	}
	b.written = true
	b.dataLost = false
	return b.write(offset, data)
}

func (b *RawBuffer) write(offset uint64, data []byte) error {
	if b.handle == nil {
		// The shadow copy is uploaded on restore.
		if b.shadow != nil {
			return nil
		}
		return ErrNotCreated
	}
	queue := b.owner.Backend().Queue()
	if queue == nil {
		return backend.ErrDeviceInvalidated
	}
	return queue.WriteBuffer(b.handle, offset, data)
}

// Handle returns the GPU buffer, or nil while invalidated or after a
// failed creation.
func (b *RawBuffer) Handle() hal.Buffer { return b.handle }

// IsValid reports whether the buffer has a GPU handle.
func (b *RawBuffer) IsValid() bool { return b.handle != nil }

// Size returns the buffer size in bytes.
func (b *RawBuffer) Size() uint64 { return b.params.Size }

// Stride returns the element stride.
func (b *RawBuffer) Stride() uint32 { return b.params.Stride }

// Flags returns the buffer flags.
func (b *RawBuffer) Flags() gpucore.BufferFlags { return b.params.Flags }

// Shadowed reports whether the buffer keeps a CPU copy.
func (b *RawBuffer) Shadowed() bool { return b.params.Flags&gpucore.BufferShadowed != 0 }

// ShadowData returns the CPU copy of a shadowed buffer.
func (b *RawBuffer) ShadowData() []byte { return b.shadow }

// DataLost reports whether the content was lost by a device reset and
// must be uploaded again.
func (b *RawBuffer) DataLost() bool { return b.dataLost }

// ClearDataLost clears the data lost flag.
func (b *RawBuffer) ClearDataLost() { b.dataLost = false }

// Invalidate releases the GPU buffer.
func (b *RawBuffer) Invalidate() {
	b.release()
}

// Restore recreates the GPU buffer. Shadowed buffers get their content
// back; other buffers that held data are flagged as lost.
func (b *RawBuffer) Restore() {
	if b.handle != nil || b.params.Size == 0 {
		return
	}
	if err := b.createGPU(); err != nil {
		return
	}
	switch {
	case b.shadow != nil:
		if err := b.write(0, b.shadow); err != nil {
			renderapi.Logger().Warn("raw: cannot restore buffer content", "buffer", b.params.Label, "err", err)
		}
	case b.written:
		b.dataLost = true
	}
}

// Destroy releases the GPU buffer and the shadow copy.
func (b *RawBuffer) Destroy() {
	b.release()
	b.shadow = nil
	b.params = RawBufferParams{}
}

// Release destroys the buffer and unregisters it from its owner.
func (b *RawBuffer) Release() {
	b.Destroy()
	b.owner.RemoveDeviceObject(b)
}

func (b *RawBuffer) release() {
	if b.handle == nil {
		return
	}
	if dev := b.owner.Backend().Device(); dev != nil {
		dev.DestroyBuffer(b.handle)
	}
	b.handle = nil
}

var _ gpucore.DeviceObject = (*RawBuffer)(nil)
