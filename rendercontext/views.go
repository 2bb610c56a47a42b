package rendercontext

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/raw"
)

// RenderTargetView is a color target: a render target texture or the
// swap chain back buffer.
type RenderTargetView struct {
	texture   *raw.RawTexture
	swapChain bool
}

// SwapChainColor returns the view of the swap chain color buffer.
func SwapChainColor() RenderTargetView {
	return RenderTargetView{swapChain: true}
}

// TextureRenderTarget returns the view of a render target texture.
func TextureRenderTarget(t *raw.RawTexture) RenderTargetView {
	return RenderTargetView{texture: t}
}

// IsSwapChain reports whether the view is the swap chain color buffer.
func (v RenderTargetView) IsSwapChain() bool { return v.swapChain }

// Texture returns the texture of the view, or nil for the swap chain.
func (v RenderTargetView) Texture() *raw.RawTexture { return v.texture }

func (v RenderTargetView) valid() bool {
	return v.swapChain || (v.texture != nil && v.texture.IsRenderTarget())
}

func (v RenderTargetView) format(be backend.Backend) gputypes.TextureFormat {
	if v.swapChain {
		return be.SwapChainFormat()
	}
	return v.texture.Format()
}

// OptionalDepthStencilView is a depth-stencil target: a depth texture, the
// swap chain depth buffer or nothing. The zero value binds no depth.
type OptionalDepthStencilView struct {
	texture   *raw.RawTexture
	swapChain bool
}

// NoDepthStencil returns the empty depth-stencil view.
func NoDepthStencil() OptionalDepthStencilView {
	return OptionalDepthStencilView{}
}

// SwapChainDepthStencil returns the view of the swap chain depth buffer.
func SwapChainDepthStencil() OptionalDepthStencilView {
	return OptionalDepthStencilView{swapChain: true}
}

// TextureDepthStencil returns the view of a depth-stencil texture.
func TextureDepthStencil(t *raw.RawTexture) OptionalDepthStencilView {
	return OptionalDepthStencilView{texture: t}
}

// IsEmpty reports whether the view binds no depth.
func (v OptionalDepthStencilView) IsEmpty() bool {
	return !v.swapChain && v.texture == nil
}

// IsSwapChain reports whether the view is the swap chain depth buffer.
func (v OptionalDepthStencilView) IsSwapChain() bool { return v.swapChain }

// Texture returns the texture of the view, or nil.
func (v OptionalDepthStencilView) Texture() *raw.RawTexture { return v.texture }

func (v OptionalDepthStencilView) valid() bool {
	return v.IsEmpty() || v.swapChain || v.texture.IsDepthStencil()
}

func (v OptionalDepthStencilView) format(be backend.Backend) gputypes.TextureFormat {
	switch {
	case v.swapChain:
		return be.SwapChainDepthFormat()
	case v.texture != nil:
		return v.texture.Format()
	}
	return gputypes.TextureFormatUndefined
}
