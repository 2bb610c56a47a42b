package device

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/backend"
	"github.com/gogpu/renderapi/drawqueue"
	"github.com/gogpu/renderapi/gpucore"
	"github.com/gogpu/renderapi/internal/workqueue"
	"github.com/gogpu/renderapi/pipeline"
	"github.com/gogpu/renderapi/raw"
	"github.com/gogpu/renderapi/rendercontext"
)

// statsPeriod is the window over which MaxStats is collected.
const statsPeriod = time.Second

// ErrUnknownBackend is returned by New for a backend name that does not
// parse.
var ErrUnknownBackend = errors.New("device: unknown backend")

// InitError is returned by New when the device cannot be created.
type InitError struct {
	// Stage is the step that failed: "backend" or "swap chain".
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("device: %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

type options struct {
	window   gpucontext.WindowProvider
	handle   *backend.WindowHandle
	events   gpucontext.EventSource
	hal      hal.Backend
	monitors []Monitor
	backend  backend.Backend
}

// Option configures New.
type Option func(*options)

// WithWindow presents into a host window. The swap chain follows the size
// reported by w.
func WithWindow(w gpucontext.WindowProvider, handle backend.WindowHandle) Option {
	return func(o *options) {
		o.window = w
		o.handle = &handle
	}
}

// WithEventSource resizes the swap chain on the resize events of es.
func WithEventSource(es gpucontext.EventSource) Option {
	return func(o *options) {
		o.events = es
	}
}

// WithHAL opens the backend on a specific HAL implementation.
func WithHAL(h hal.Backend) Option {
	return func(o *options) {
		o.hal = h
	}
}

// WithMonitors sets the monitors window settings are validated against.
func WithMonitors(monitors ...Monitor) Option {
	return func(o *options) {
		o.monitors = monitors
	}
}

// WithBackend uses an opened backend instead of opening one. The device
// takes ownership of b.
func WithBackend(b backend.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// signal is a set of callbacks.
type signal struct {
	next uint64
	subs map[uint64]func()
}

func (s *signal) add(fn func()) uint64 {
	if s.subs == nil {
		s.subs = make(map[uint64]func())
	}
	id := s.next
	s.next++
	s.subs[id] = fn
	return id
}

func (s *signal) callbacks() []func() {
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}

// RenderDevice owns the backend, the swap chain and every GPU object
// created for it.
//
// RenderDevice methods must be called from the render thread. Device
// objects may be registered and released from any goroutine.
type RenderDevice struct {
	settings Settings
	opts     options
	be       backend.Backend
	caps     gpucore.Caps

	mu       sync.Mutex
	objects  []gpucore.DeviceObject
	lost     signal
	restored signal

	samplers  *raw.SamplerCache
	pipelines *pipeline.PipelineStateCache
	ctx       *rendercontext.RenderContext
	defaults  [gpucore.TextureTypeCount]*raw.RawTexture
	workers   *workqueue.Pool

	invalidated bool
	closed      bool
	resize      atomic.Pointer[image.Point]

	filter        gpucore.TextureFilterMode
	anisotropy    uint8
	samplersDirty bool

	frameIndex   gpucore.FrameIndex
	stats        gpucore.Stats
	maxStats     gpucore.Stats
	prevMaxStats gpucore.Stats
	statsStart   time.Time
	now          func() time.Time
}

// New validates the settings, opens the backend and creates the swap chain
// and the default objects. Errors are *InitError.
func New(settings Settings, opts ...Option) (*RenderDevice, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	settings.Window = ValidateWindowSettings(settings.Window, o.monitors)
	if o.window != nil {
		if w, h := o.window.Size(); w > 0 && h > 0 {
			settings.Window.Width, settings.Window.Height = w, h
		}
	}
	if settings.Device.GPUDebug {
		renderapi.ForwardHALLogs(true)
	}

	d := &RenderDevice{
		settings:   settings,
		opts:       o,
		filter:     gpucore.FilterTrilinear,
		anisotropy: 4,
		now:        time.Now,
	}
	be, err := d.openBackend()
	if err != nil {
		return nil, &InitError{Stage: "backend", Err: err}
	}
	d.be = be
	d.caps = be.Caps()

	if err := d.configureSwapChain(); err != nil {
		be.Destroy()
		return nil, &InitError{Stage: "swap chain", Err: err}
	}

	d.samplers = raw.NewSamplerCache(d)
	d.samplers.SetDefaults(d.filter, d.anisotropy)
	d.pipelines = pipeline.NewPipelineStateCache(d)
	d.ctx = rendercontext.New(d)
	d.ctx.SetSwapChainRenderTargets()
	d.createDefaultTextures()
	d.statsStart = d.now()

	if o.events != nil {
		o.events.OnResize(func(width, height int) {
			d.resize.Store(&image.Point{X: width, Y: height})
		})
	}

	sc := be.SwapChain()
	renderapi.Logger().Info("device: created",
		"backend", be.Name(),
		"adapter", be.AdapterInfo().Name,
		"width", sc.Width,
		"height", sc.Height,
		"multisample", sc.SampleCount,
	)
	return d, nil
}

func (d *RenderDevice) openBackend() (backend.Backend, error) {
	if d.opts.backend != nil {
		return d.opts.backend, nil
	}
	cfg := backend.Config{
		HAL:         d.opts.hal,
		Window:      d.opts.handle,
		AdapterName: d.settings.Device.AdapterName,
		SwapChain:   d.swapChainConfig(1),
		Label:       d.settings.Window.Title,
	}
	name := d.settings.Device.Backend
	if name == "" {
		return backend.OpenDefault(cfg)
	}
	kind, ok := gpucore.ParseRenderBackend(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return backend.Open(kind, cfg)
}

func (d *RenderDevice) swapChainConfig(sampleCount int) backend.SwapChainConfig {
	ws := d.settings.Window
	return backend.SwapChainConfig{
		Width:       uint32(max(ws.Width, 1)),
		Height:      uint32(max(ws.Height, 1)),
		SampleCount: uint32(sampleCount),
		VSync:       ws.VSync,
		SRGB:        ws.SRGB && d.caps.SRGBOutput,
	}
}

// configureSwapChain applies the window settings to the swap chain. The
// multisample level is lowered to one supported by both back buffers.
func (d *RenderDevice) configureSwapChain() error {
	ws := d.settings.Window
	if ws.SRGB && !d.caps.SRGBOutput {
		renderapi.Logger().Warn("device: sRGB output not supported")
	}
	ms := d.swapChainSampleCount()
	if ms != ws.MultiSample {
		renderapi.Logger().Warn("device: multisample level not supported",
			"requested", ws.MultiSample, "using", ms)
	}
	return d.be.ConfigureSwapChain(d.swapChainConfig(ms))
}

func (d *RenderDevice) swapChainSampleCount() int {
	ms := d.SupportedMultiSample(d.be.SwapChainFormat(), d.settings.Window.MultiSample)
	return d.SupportedMultiSample(d.be.SwapChainDepthFormat(), ms)
}

// UpdateSwapChainSize resizes the swap chain to the window size. It does
// nothing when the size is unchanged.
func (d *RenderDevice) UpdateSwapChainSize() error {
	if d.invalidated {
		return backend.ErrDeviceInvalidated
	}
	if d.opts.window != nil {
		if w, h := d.opts.window.Size(); w > 0 && h > 0 {
			d.settings.Window.Width, d.settings.Window.Height = w, h
		}
	}
	if d.swapChainConfig(d.swapChainSampleCount()) == d.be.SwapChain() {
		return nil
	}

	// Pending commands may reference the old back buffer.
	if err := d.ctx.Flush(); err != nil {
		return err
	}
	if err := d.configureSwapChain(); err != nil {
		return fmt.Errorf("device: resize swap chain: %w", err)
	}
	d.ctx.SwapChainResized()

	sc := d.be.SwapChain()
	renderapi.Logger().Info("device: swap chain resized",
		"width", sc.Width, "height", sc.Height, "multisample", sc.SampleCount)
	return nil
}

// UpdateWindowSettings validates ws and applies it. The swap chain is
// recreated only when its size, multisample level, vsync or sRGB mode
// changed.
func (d *RenderDevice) UpdateWindowSettings(ws WindowSettings) error {
	ws = ValidateWindowSettings(ws, d.opts.monitors)
	old := d.settings.Window
	d.settings.Window = ws
	if ws.Mode != old.Mode || ws.Monitor != old.Monitor || ws.RefreshRate != old.RefreshRate {
		renderapi.Logger().Info("device: window mode changed",
			"mode", ws.Mode, "monitor", ws.Monitor, "refresh", ws.RefreshRate)
	}
	return d.UpdateSwapChainSize()
}

// SupportedMultiSample returns the largest multisample level supported by
// format that does not exceed ms clamped to [1, 16].
func (d *RenderDevice) SupportedMultiSample(format gputypes.TextureFormat, ms int) int {
	clamped := gpucore.ClampMultiSample(uint32(max(ms, 1)))
	mask := d.be.SampleCounts(format)
	level := uint32(1) << (bits.Len32(clamped) - 1)
	for level > 1 && mask&level == 0 {
		level >>= 1
	}
	return int(level)
}

// IsTextureFormatSupported reports whether format can be sampled.
func (d *RenderDevice) IsTextureFormatSupported(format gputypes.TextureFormat) bool {
	return d.be.FormatSupport(format)&hal.TextureFormatCapabilitySampled != 0
}

// IsRenderTargetFormatSupported reports whether format can be rendered to.
func (d *RenderDevice) IsRenderTargetFormatSupported(format gputypes.TextureFormat) bool {
	return d.be.FormatSupport(format)&hal.TextureFormatCapabilityRenderAttachment != 0
}

// IsUnorderedAccessFormatSupported reports whether format can be bound as
// a storage texture.
func (d *RenderDevice) IsUnorderedAccessFormatSupported(format gputypes.TextureFormat) bool {
	return d.be.FormatSupport(format)&hal.TextureFormatCapabilityStorage != 0
}

// IsMultiSampleSupported reports whether format supports ms samples.
func (d *RenderDevice) IsMultiSampleSupported(format gputypes.TextureFormat, ms int) bool {
	if ms == 1 {
		return true
	}
	if ms <= 0 || ms > gpucore.MaxMultiSample || !gpucore.IsPowerOfTwo(uint32(ms)) {
		return false
	}
	return d.be.SampleCounts(format)&uint32(ms) != 0
}

// AddDeviceObject registers obj for the invalidate and restore broadcasts.
func (d *RenderDevice) AddDeviceObject(obj gpucore.DeviceObject) {
	d.mu.Lock()
	d.objects = append(d.objects, obj)
	d.mu.Unlock()
}

// RemoveDeviceObject unregisters obj.
func (d *RenderDevice) RemoveDeviceObject(obj gpucore.DeviceObject) {
	d.mu.Lock()
	d.objects = slices.DeleteFunc(d.objects, func(o gpucore.DeviceObject) bool { return o == obj })
	d.mu.Unlock()
}

// NumDeviceObjects returns the number of registered objects.
func (d *RenderDevice) NumDeviceObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

// snapshot returns the registered objects, so broadcasts may register or
// release objects.
func (d *RenderDevice) snapshot() []gpucore.DeviceObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.objects)
}

// OnDeviceLost subscribes fn to device loss. It runs after every object
// released its handles. The returned function cancels the subscription.
func (d *RenderDevice) OnDeviceLost(fn func()) (unsubscribe func()) {
	return d.subscribe(&d.lost, fn)
}

// OnDeviceRestored subscribes fn to device restoration. It runs before the
// objects recreate their handles.
func (d *RenderDevice) OnDeviceRestored(fn func()) (unsubscribe func()) {
	return d.subscribe(&d.restored, fn)
}

func (d *RenderDevice) subscribe(s *signal, fn func()) func() {
	d.mu.Lock()
	id := s.add(fn)
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(s.subs, id)
		d.mu.Unlock()
	}
}

func (d *RenderDevice) fire(s *signal) {
	d.mu.Lock()
	fns := s.callbacks()
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// InvalidateDeviceState releases every GPU handle and the device, then
// signals OnDeviceLost. No GPU call may be made until RestoreDeviceState.
func (d *RenderDevice) InvalidateDeviceState() {
	if d.invalidated {
		return
	}
	d.releaseDefaultTextures()
	for _, obj := range d.snapshot() {
		obj.Invalidate()
	}
	d.be.Invalidate()
	d.invalidated = true
	d.fire(&d.lost)
	renderapi.Logger().Info("device: state invalidated", "backend", d.be.Name())
}

// RestoreDeviceState reopens the device, signals OnDeviceRestored, then
// recreates the handles of every object and the default textures.
func (d *RenderDevice) RestoreDeviceState() error {
	if !d.invalidated {
		return nil
	}
	if err := d.be.Restore(); err != nil {
		return fmt.Errorf("device: restore: %w", err)
	}
	d.invalidated = false
	d.fire(&d.restored)
	for _, obj := range d.snapshot() {
		obj.Restore()
	}
	d.createDefaultTextures()
	renderapi.Logger().Info("device: state restored", "backend", d.be.Name())
	return nil
}

// EmulateLossAndRestore runs a full invalidate and restore cycle.
func (d *RenderDevice) EmulateLossAndRestore() error {
	d.InvalidateDeviceState()
	return d.RestoreDeviceState()
}

// IsDeviceLost reports whether the device state is invalidated.
func (d *RenderDevice) IsDeviceLost() bool { return d.invalidated }

func (d *RenderDevice) createDefaultTextures() {
	if !d.IsTextureFormatSupported(gputypes.TextureFormatRGBA8Unorm) {
		renderapi.Logger().Warn("device: no default textures, RGBA8 cannot be sampled")
		return
	}
	for typ := range gpucore.TextureTypeCount {
		tex := raw.NewRawTexture(d)
		err := tex.Create(raw.RawTextureParams{
			Label:  "default " + typ.String(),
			Type:   typ,
			Format: gputypes.TextureFormatRGBA8Unorm,
			Width:  1,
			Height: 1,
		})
		if err == nil {
			layers := 1
			if typ == gpucore.TextureCube {
				layers = 6
			}
			err = tex.Update(0, make([]byte, 4*layers))
		}
		if err != nil {
			renderapi.Logger().Error("device: cannot create default texture", "type", typ, "err", err)
			tex.Release()
			continue
		}
		d.defaults[typ] = tex
	}
}

func (d *RenderDevice) releaseDefaultTextures() {
	for i, tex := range d.defaults {
		if tex != nil {
			tex.Release()
			d.defaults[i] = nil
		}
	}
}

// SetDefaultTextureFilterMode sets the filter of samplers using
// FilterDefault. It takes effect at the next Present.
func (d *RenderDevice) SetDefaultTextureFilterMode(filter gpucore.TextureFilterMode) {
	if filter == gpucore.FilterDefault || filter == d.filter {
		return
	}
	d.filter = filter
	d.samplersDirty = true
}

// SetDefaultTextureAnisotropy sets the anisotropy of samplers using the
// default one. Zero is raised to 1. It takes effect at the next Present.
func (d *RenderDevice) SetDefaultTextureAnisotropy(anisotropy uint8) {
	anisotropy = max(anisotropy, 1)
	if anisotropy == d.anisotropy {
		return
	}
	d.anisotropy = anisotropy
	d.samplersDirty = true
}

// DefaultTextureFilterMode returns the default sampler filter.
func (d *RenderDevice) DefaultTextureFilterMode() gpucore.TextureFilterMode { return d.filter }

// DefaultTextureAnisotropy returns the default sampler anisotropy.
func (d *RenderDevice) DefaultTextureAnisotropy() uint8 { return d.anisotropy }

// Present submits the frame and presents the back buffer. It then applies
// pending swap chain resizes, rebuilds reloaded pipeline states, applies
// changed sampler defaults, rolls the frame statistics and advances the
// frame index.
func (d *RenderDevice) Present() error {
	if d.invalidated {
		return backend.ErrDeviceInvalidated
	}
	if err := d.ctx.Flush(); err != nil {
		return err
	}
	if err := d.be.Present(); err != nil {
		return fmt.Errorf("device: present: %w", err)
	}

	resize := d.resize.Swap(nil)
	if resize != nil && d.opts.window == nil && resize.X > 0 && resize.Y > 0 {
		d.settings.Window.Width, d.settings.Window.Height = resize.X, resize.Y
	}
	if resize != nil || d.opts.window != nil {
		if err := d.UpdateSwapChainSize(); err != nil {
			renderapi.Logger().Warn("device: resize failed", "err", err)
		}
	}

	d.pipelines.ProcessReloads()

	if d.samplersDirty {
		d.samplersDirty = false
		d.samplers.SetDefaults(d.filter, d.anisotropy)
		d.ctx.DropBindGroups()
		d.pipelines.ForEach(func(s *pipeline.PipelineState) {
			if s.UsesDefaultSamplers() {
				s.Invalidate()
				s.Restore()
			}
		})
	}

	d.stats = d.ctx.Stats()
	d.ctx.ResetStats()
	if now := d.now(); now.Sub(d.statsStart) >= statsPeriod {
		d.prevMaxStats = d.maxStats
		d.maxStats = d.stats
		d.statsStart = now
	} else {
		d.maxStats = d.maxStats.Max(d.stats)
	}

	d.frameIndex++
	return nil
}

// Close destroys every registered object, then the backend.
func (d *RenderDevice) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.workers != nil {
		d.workers.Close()
	}
	d.releaseDefaultTextures()
	objects := d.snapshot()
	for i := len(objects) - 1; i >= 0; i-- {
		objects[i].Destroy()
	}
	d.mu.Lock()
	d.objects = nil
	d.mu.Unlock()
	name := d.be.Name()
	d.be.Destroy()
	renderapi.Logger().Info("device: closed", "backend", name)
}

// RecordQueues resets queues and calls record for each of them on a pool of
// worker goroutines. It returns when every queue is recorded. record must
// only touch its own queue; the queues are executed afterwards on the render
// thread in any order the caller chooses.
func (d *RenderDevice) RecordQueues(queues []*drawqueue.DrawCommandQueue, record func(index int, q *drawqueue.DrawCommandQueue)) {
	if len(queues) == 0 {
		return
	}
	if d.workers == nil {
		d.workers = workqueue.New(0)
	}
	tasks := make([]func(), len(queues))
	for i, q := range queues {
		tasks[i] = func() {
			q.Reset()
			record(i, q)
		}
	}
	d.workers.Run(tasks)
}

// Settings returns the validated settings.
func (d *RenderDevice) Settings() Settings { return d.settings }

// Backend returns the opened backend.
func (d *RenderDevice) Backend() backend.Backend { return d.be }

// Caps returns the capabilities of the backend.
func (d *RenderDevice) Caps() gpucore.Caps { return d.caps }

// Context returns the render context of the device.
func (d *RenderDevice) Context() *rendercontext.RenderContext { return d.ctx }

// PipelineStates returns the pipeline state cache.
func (d *RenderDevice) PipelineStates() *pipeline.PipelineStateCache { return d.pipelines }

// SamplerCache returns the shared sampler cache.
func (d *RenderDevice) SamplerCache() *raw.SamplerCache { return d.samplers }

// DefaultTexture returns the 1x1 black texture of type t, or nil when t
// cannot be created.
func (d *RenderDevice) DefaultTexture(t gpucore.TextureType) *raw.RawTexture {
	if t >= gpucore.TextureTypeCount {
		return nil
	}
	return d.defaults[t]
}

// SwapChainSize returns the size of the back buffer.
func (d *RenderDevice) SwapChainSize() image.Point {
	sc := d.be.SwapChain()
	return image.Pt(int(sc.Width), int(sc.Height))
}

// Stats returns the statistics of the last presented frame.
func (d *RenderDevice) Stats() gpucore.Stats { return d.stats }

// MaxStats returns the element-wise maximum of the frame statistics over
// the last complete one second period.
func (d *RenderDevice) MaxStats() gpucore.Stats { return d.prevMaxStats }

// FrameIndex returns the number of presented frames.
func (d *RenderDevice) FrameIndex() gpucore.FrameIndex { return d.frameIndex }

// Device returns the HAL device.
func (d *RenderDevice) Device() gpucontext.Device { return d.be.Device() }

// Queue returns the HAL queue.
func (d *RenderDevice) Queue() gpucontext.Queue { return d.be.Queue() }

// SurfaceFormat returns the back buffer format.
func (d *RenderDevice) SurfaceFormat() gputypes.TextureFormat { return d.be.SwapChainFormat() }

// Adapter returns nil: the adapter stays owned by the backend.
func (d *RenderDevice) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo returns the name and type of the adapter.
func (d *RenderDevice) AdapterInfo() gpucontext.AdapterInfo {
	info := d.be.AdapterInfo()
	typ := gpucontext.AdapterTypeUnknown
	switch info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		typ = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		typ = gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		typ = gpucontext.AdapterTypeSoftware
	}
	return gpucontext.AdapterInfo{Name: info.Name, Type: typ}
}

var (
	_ raw.Owner                 = (*RenderDevice)(nil)
	_ gpucontext.DeviceProvider = (*RenderDevice)(nil)
)
