package backend

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
)

// swapChainDepthFormat is the format of the depth buffer paired with the
// back buffer.
const swapChainDepthFormat = gputypes.TextureFormatDepth24PlusStencil8

// swapChain holds the back buffer resources. Without a surface the color
// target is an offscreen texture.
type swapChain struct {
	cfg        SwapChainConfig
	configured bool
	format     gputypes.TextureFormat

	color renderTarget // offscreen only
	msaa  renderTarget
	depth renderTarget

	acquired     hal.SurfaceTexture
	acquiredView hal.TextureView
}

type renderTarget struct {
	texture hal.Texture
	view    hal.TextureView
}

func (t *renderTarget) release(device hal.Device) {
	if t.view != nil {
		device.DestroyTextureView(t.view)
	}
	if t.texture != nil {
		device.DestroyTexture(t.texture)
	}
	*t = renderTarget{}
}

// SwapChain returns the current swap chain configuration.
func (b *Base) SwapChain() SwapChainConfig { return b.swap.cfg }

// SwapChainDepthFormat returns the format of the swap chain depth buffer.
func (b *Base) SwapChainDepthFormat() gputypes.TextureFormat { return swapChainDepthFormat }

// SwapChainFormat returns the color format of the back buffer.
func (b *Base) SwapChainFormat() gputypes.TextureFormat { return b.swap.format }

// ConfigureSwapChain (re)creates the back buffer resources. It is a no-op
// when the configuration is unchanged.
func (b *Base) ConfigureSwapChain(cfg SwapChainConfig) error {
	if b.device == nil {
		return ErrDeviceInvalidated
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: %dx%d", errSwapChainSize, cfg.Width, cfg.Height)
	}
	if cfg.SampleCount == 0 {
		cfg.SampleCount = 1
	}
	if b.swap.configured && b.swap.cfg == cfg {
		return nil
	}
	b.releaseSwapChain()

	format := b.chooseSwapChainFormat(cfg.SRGB)
	if b.surface != nil {
		presentMode := hal.PresentModeFifo
		if !cfg.VSync {
			presentMode = hal.PresentModeImmediate
		}
		err := b.surface.Configure(b.device, &hal.SurfaceConfiguration{
			Width:       cfg.Width,
			Height:      cfg.Height,
			Format:      format,
			Usage:       gputypes.TextureUsageRenderAttachment,
			PresentMode: presentMode,
			AlphaMode:   hal.CompositeAlphaModeOpaque,
		})
		if err != nil {
			return fmt.Errorf("configure surface: %w", err)
		}
	} else {
		color, err := b.createTarget("backbuffer", cfg, format, 1,
			gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc|gputypes.TextureUsageTextureBinding)
		if err != nil {
			return err
		}
		b.swap.color = color
	}

	if cfg.SampleCount > 1 {
		msaa, err := b.createTarget("backbuffer_msaa", cfg, format, cfg.SampleCount,
			gputypes.TextureUsageRenderAttachment)
		if err != nil {
			b.releaseSwapChain()
			return err
		}
		b.swap.msaa = msaa
	}

	depth, err := b.createTarget("backbuffer_depth", cfg, swapChainDepthFormat, cfg.SampleCount,
		gputypes.TextureUsageRenderAttachment)
	if err != nil {
		b.releaseSwapChain()
		return err
	}
	b.swap.depth = depth

	b.swap.cfg = cfg
	b.swap.format = format
	b.swap.configured = true
	renderapi.Logger().Debug("backend: swap chain configured",
		"width", cfg.Width, "height", cfg.Height,
		"samples", cfg.SampleCount, "format", format,
	)
	return nil
}

func (b *Base) createTarget(name string, cfg SwapChainConfig, format gputypes.TextureFormat,
	samples uint32, usage gputypes.TextureUsage,
) (renderTarget, error) {
	label := name
	if b.cfg.Label != "" {
		label = b.cfg.Label + "_" + name
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: cfg.Width, Height: cfg.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return renderTarget{}, fmt.Errorf("create %s texture: %w", name, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return renderTarget{}, fmt.Errorf("create %s view: %w", name, err)
	}
	return renderTarget{texture: tex, view: view}, nil
}

// chooseSwapChainFormat picks the back buffer format. Surfaces use the
// first preferred format they support.
func (b *Base) chooseSwapChainFormat(srgb bool) gputypes.TextureFormat {
	preferred := []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatRGBA8Unorm}
	if srgb {
		preferred = []gputypes.TextureFormat{gputypes.TextureFormatBGRA8UnormSrgb, gputypes.TextureFormatRGBA8UnormSrgb}
	}
	if b.surface == nil {
		return preferred[1]
	}
	caps := b.adapter.Adapter.SurfaceCapabilities(b.surface)
	if caps == nil || len(caps.Formats) == 0 {
		return preferred[0]
	}
	for _, f := range preferred {
		if slices.Contains(caps.Formats, f) {
			return f
		}
	}
	if srgb {
		renderapi.Logger().Warn("backend: sRGB back buffer not supported by surface", "format", caps.Formats[0])
	}
	return caps.Formats[0]
}

// AcquireBackBuffer returns the views of the current frame. With a surface
// the next surface texture is acquired once per frame.
func (b *Base) AcquireBackBuffer() (BackBuffer, error) {
	if b.device == nil {
		return BackBuffer{}, ErrDeviceInvalidated
	}
	if !b.swap.configured {
		return BackBuffer{}, errSwapChainSize
	}

	present := b.swap.color.view
	if b.surface != nil {
		if b.swap.acquired == nil {
			acquired, err := b.surface.AcquireTexture(nil)
			if err != nil {
				return BackBuffer{}, fmt.Errorf("acquire surface texture: %w", err)
			}
			view, err := b.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
				Label:         "surface_view",
				Format:        b.swap.format,
				Dimension:     gputypes.TextureViewDimension2D,
				Aspect:        gputypes.TextureAspectAll,
				MipLevelCount: 1,
			})
			if err != nil {
				b.surface.DiscardTexture(acquired.Texture)
				return BackBuffer{}, fmt.Errorf("create surface view: %w", err)
			}
			b.swap.acquired = acquired.Texture
			b.swap.acquiredView = view
		}
		present = b.swap.acquiredView
	}

	bb := BackBuffer{
		Color:  present,
		Depth:  b.swap.depth.view,
		Format: b.swap.format,
		Width:  b.swap.cfg.Width,
		Height: b.swap.cfg.Height,
	}
	if b.swap.msaa.view != nil {
		bb.Color = b.swap.msaa.view
		bb.Resolve = present
	}
	return bb, nil
}

// BackBufferTexture returns the offscreen color texture, or nil when
// presenting to a surface.
func (b *Base) BackBufferTexture() hal.Texture { return b.swap.color.texture }

// Present presents the acquired surface texture. Offscreen back buffers
// need no presentation.
func (b *Base) Present() error {
	if b.device == nil {
		return ErrDeviceInvalidated
	}
	if b.surface == nil || b.swap.acquired == nil {
		return nil
	}
	acquired, view := b.swap.acquired, b.swap.acquiredView
	b.swap.acquired, b.swap.acquiredView = nil, nil
	defer b.device.DestroyTextureView(view)
	if err := b.queue.Present(b.surface, acquired, nil); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

func (b *Base) releaseSwapChain() {
	if b.device == nil {
		b.swap.configured = false
		return
	}
	if b.swap.acquired != nil {
		b.device.DestroyTextureView(b.swap.acquiredView)
		b.surface.DiscardTexture(b.swap.acquired)
		b.swap.acquired, b.swap.acquiredView = nil, nil
	}
	b.swap.color.release(b.device)
	b.swap.msaa.release(b.device)
	b.swap.depth.release(b.device)
	b.swap.configured = false
}
