package raw

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/gpucore"
)

// RawTextureParams describes a texture.
type RawTextureParams struct {
	Label  string
	Type   gpucore.TextureType
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32
	// Depth is the depth of 3D textures.
	Depth uint32
	// ArraySize is the layer count of array textures.
	ArraySize   uint32
	NumLevels   uint32
	MultiSample uint32
	Flags       gpucore.TextureFlags
}

func (p *RawTextureParams) normalize() {
	p.Depth = max(p.Depth, 1)
	p.ArraySize = max(p.ArraySize, 1)
	p.NumLevels = max(p.NumLevels, 1)
	p.MultiSample = max(p.MultiSample, 1)
}

// layers returns the depth or array layer count of the texture.
func (p *RawTextureParams) layers() uint32 {
	switch p.Type {
	case gpucore.TextureCube:
		return 6 * p.ArraySize
	case gpucore.Texture3D:
		return p.Depth
	case gpucore.Texture2DArray:
		return p.ArraySize
	}
	return 1
}

// RawTexture is a GPU texture that survives device loss. Content is GPU
// resident: after a restore DataLost reports that it must be uploaded again.
type RawTexture struct {
	owner  Owner
	params RawTextureParams

	texture hal.Texture
	view    hal.TextureView
	// attachment is the render target or depth-stencil view.
	attachment hal.TextureView
	// resolve holds the single-sampled copy of an auto-resolved
	// multisampled render target.
	resolve     hal.Texture
	resolveView hal.TextureView

	uploaded bool
	dataLost bool
	dirty    bool
	failed   bool
}

// NewRawTexture creates an empty texture registered with owner. Call
// Create to allocate it.
func NewRawTexture(owner Owner) *RawTexture {
	t := &RawTexture{owner: owner}
	owner.AddDeviceObject(t)
	return t
}

// Create (re)allocates the texture with its views.
func (t *RawTexture) Create(params RawTextureParams) error {
	t.release()
	params.normalize()
	if params.Width == 0 || params.Height == 0 {
		return fmt.Errorf("%w: texture %q is %dx%d", ErrInvalidSize, params.Label, params.Width, params.Height)
	}
	t.params = params
	t.uploaded = false
	t.dataLost = false
	t.dirty = false
	t.failed = false
	return t.createGPU()
}

func (t *RawTexture) usage() gputypes.TextureUsage {
	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	if t.params.Flags&(gpucore.TextureBindRenderTarget|gpucore.TextureBindDepthStencil) != 0 {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	if t.params.Flags&gpucore.TextureBindUnorderedAccess != 0 {
		usage |= gputypes.TextureUsageStorageBinding
	}
	return usage
}

func (t *RawTexture) autoResolve() bool {
	return t.params.MultiSample > 1 &&
		t.params.Flags&gpucore.TextureBindRenderTarget != 0 &&
		t.params.Flags&gpucore.TextureNoMultiSampledAutoResolve == 0
}

func (t *RawTexture) createGPU() error {
	dev := t.owner.Backend().Device()
	if dev == nil {
		return backend.ErrDeviceInvalidated
	}
	err := t.createHandles(dev)
	if err != nil {
		if !t.failed {
			renderapi.Logger().Error("raw: cannot create texture", "texture", t.params.Label, "err", err)
		}
		t.failed = true
		t.release()
		return fmt.Errorf("raw: create texture %q: %w", t.params.Label, err)
	}
	return nil
}

func (t *RawTexture) createHandles(dev hal.Device) error {
	p := &t.params
	dimension := gputypes.TextureDimension2D
	if p.Type == gpucore.Texture3D {
		dimension = gputypes.TextureDimension3D
	}
	desc := &hal.TextureDescriptor{
		Label:         p.Label,
		Size:          hal.Extent3D{Width: p.Width, Height: p.Height, DepthOrArrayLayers: p.layers()},
		MipLevelCount: p.NumLevels,
		SampleCount:   p.MultiSample,
		Dimension:     dimension,
		Format:        p.Format,
		Usage:         t.usage(),
	}
	var err error
	if t.texture, err = dev.CreateTexture(desc); err != nil {
		return err
	}

	sampled := t.texture
	if t.autoResolve() {
		resolveDesc := *desc
		resolveDesc.Label = p.Label + "_resolve"
		resolveDesc.SampleCount = 1
		resolveDesc.MipLevelCount = 1
		if t.resolve, err = dev.CreateTexture(&resolveDesc); err != nil {
			return err
		}
		if t.resolveView, err = dev.CreateTextureView(t.resolve, &hal.TextureViewDescriptor{
			Label:           p.Label + "_resolve_view",
			Format:          p.Format,
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			ArrayLayerCount: 1,
		}); err != nil {
			return err
		}
		sampled = t.resolve
	}

	if t.view, err = dev.CreateTextureView(sampled, &hal.TextureViewDescriptor{
		Label:           p.Label + "_view",
		Format:          p.Format,
		Dimension:       p.Type.ViewDimension(),
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   p.NumLevels,
		ArrayLayerCount: p.layers(),
	}); err != nil {
		return err
	}
	if p.Type == gpucore.Texture3D {
		// 3D views address depth slices, not layers.
		return nil
	}

	if t.IsRenderTarget() || t.IsDepthStencil() {
		if t.attachment, err = dev.CreateTextureView(t.texture, &hal.TextureViewDescriptor{
			Label:           p.Label + "_attachment",
			Format:          p.Format,
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			MipLevelCount:   1,
			ArrayLayerCount: 1,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Update uploads the pixels of one mip level. data holds tightly packed
// rows of every layer of the level.
func (t *RawTexture) Update(level uint32, data []byte) error {
	if t.texture == nil {
		return ErrNotCreated
	}
	if level >= t.params.NumLevels {
		return fmt.Errorf("%w: level %d of %d", ErrOutOfRange, level, t.params.NumLevels)
	}
	queue := t.owner.Backend().Queue()
	if queue == nil {
		return backend.ErrDeviceInvalidated
	}
	width := max(t.params.Width>>level, 1)
	height := max(t.params.Height>>level, 1)
	layers := t.params.layers()
	if t.params.Type == gpucore.Texture3D {
		layers = max(t.params.Depth>>level, 1)
	}
	rows := height * layers
	if len(data) == 0 || uint32(len(data))%rows != 0 {
		return fmt.Errorf("%w: %d bytes for %d rows", ErrOutOfRange, len(data), rows)
	}
	err := queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.texture, MipLevel: level, Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: uint32(len(data)) / rows, RowsPerImage: height},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: layers},
	)
	if err != nil {
		return fmt.Errorf("raw: update texture %q: %w", t.params.Label, err)
	}
	t.uploaded = true
	t.dataLost = false
	return nil
}

// Handle returns the GPU texture, or nil.
func (t *RawTexture) Handle() hal.Texture { return t.texture }

// View returns the view shaders sample. For auto-resolved multisampled
// render targets it is a view of the resolved texture.
func (t *RawTexture) View() hal.TextureView { return t.view }

// AttachmentView returns the render target or depth-stencil view, or nil.
func (t *RawTexture) AttachmentView() hal.TextureView { return t.attachment }

// ResolveView returns the resolve target of an auto-resolved multisampled
// render target, or nil.
func (t *RawTexture) ResolveView() hal.TextureView { return t.resolveView }

// IsValid reports whether the texture has a GPU handle.
func (t *RawTexture) IsValid() bool { return t.texture != nil }

// IsRenderTarget reports whether the texture can be bound as a color target.
func (t *RawTexture) IsRenderTarget() bool {
	return t.params.Flags&gpucore.TextureBindRenderTarget != 0
}

// IsDepthStencil reports whether the texture can be bound as depth-stencil.
func (t *RawTexture) IsDepthStencil() bool {
	return t.params.Flags&gpucore.TextureBindDepthStencil != 0
}

// Params returns the creation parameters.
func (t *RawTexture) Params() RawTextureParams { return t.params }

// Type returns the texture type.
func (t *RawTexture) Type() gpucore.TextureType { return t.params.Type }

// Format returns the texture format.
func (t *RawTexture) Format() gputypes.TextureFormat { return t.params.Format }

// Size returns the width and height of the top level.
func (t *RawTexture) Size() (width, height uint32) { return t.params.Width, t.params.Height }

// SampleCount returns the multisample level.
func (t *RawTexture) SampleCount() uint32 { return t.params.MultiSample }

// MarkDirty records that the texture was rendered to.
func (t *RawTexture) MarkDirty() { t.dirty = true }

// IsDirty reports whether the texture was rendered to since the last
// ResolveDirty.
func (t *RawTexture) IsDirty() bool { return t.dirty }

// ResolveDirty clears the dirty flag. Multisampled content is resolved by
// the render pass, so only the flag remains to be cleared.
func (t *RawTexture) ResolveDirty() { t.dirty = false }

// DataLost reports whether uploaded content was lost by a device reset.
func (t *RawTexture) DataLost() bool { return t.dataLost }

// ClearDataLost clears the data lost flag.
func (t *RawTexture) ClearDataLost() { t.dataLost = false }

// Invalidate releases the GPU texture and its views.
func (t *RawTexture) Invalidate() {
	t.release()
}

// Restore recreates the texture. Uploaded content and render target
// content are lost.
func (t *RawTexture) Restore() {
	if t.texture != nil || t.params.Width == 0 {
		return
	}
	if err := t.createGPU(); err != nil {
		return
	}
	if t.uploaded || t.IsRenderTarget() {
		t.dataLost = true
	}
}

// Destroy releases the GPU texture.
func (t *RawTexture) Destroy() {
	t.release()
	t.params = RawTextureParams{}
}

// Release destroys the texture and unregisters it from its owner.
func (t *RawTexture) Release() {
	t.Destroy()
	t.owner.RemoveDeviceObject(t)
}

func (t *RawTexture) release() {
	dev := t.owner.Backend().Device()
	if dev != nil {
		for _, v := range []hal.TextureView{t.attachment, t.view, t.resolveView} {
			if v != nil {
				dev.DestroyTextureView(v)
			}
		}
		for _, tex := range []hal.Texture{t.resolve, t.texture} {
			if tex != nil {
				dev.DestroyTexture(tex)
			}
		}
	}
	t.texture, t.view, t.attachment = nil, nil, nil
	t.resolve, t.resolveView = nil, nil
}

var _ gpucore.DeviceObject = (*RawTexture)(nil)
