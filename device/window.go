package device

import (
	"cmp"
	"math"
	"slices"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/gpucore"
)

// Size used when a window asks for zero size.
const (
	defaultWidth       = 1024
	defaultHeight      = 768
	defaultRefreshRate = 60
)

// FullscreenMode is a display mode of a monitor.
type FullscreenMode struct {
	Width       int
	Height      int
	RefreshRate int
}

func compareModes(a, b FullscreenMode) int {
	return cmp.Or(
		cmp.Compare(a.Width, b.Width),
		cmp.Compare(a.Height, b.Height),
		cmp.Compare(a.RefreshRate, b.RefreshRate),
	)
}

// Monitor describes a display: its desktop mode and the fullscreen modes
// it supports.
type Monitor struct {
	Name    string
	Desktop FullscreenMode
	Modes   []FullscreenMode
}

// SortedModes returns the modes of m sorted by size, then refresh rate,
// without duplicates.
func (m Monitor) SortedModes() []FullscreenMode {
	modes := slices.Clone(m.Modes)
	slices.SortFunc(modes, compareModes)
	return slices.Compact(modes)
}

// ClosestFullscreenMode returns the mode of modes that best matches
// desired: the exact mode, else the highest refresh rate of the same size,
// else the first larger mode refreshing at least as fast (or the first
// larger mode), else the largest mode. It reports false when modes is
// empty.
func ClosestFullscreenMode(modes []FullscreenMode, desired FullscreenMode) (FullscreenMode, bool) {
	if len(modes) == 0 {
		return desired, false
	}
	sorted := Monitor{Modes: modes}.SortedModes()

	if _, found := slices.BinarySearchFunc(sorted, desired, compareModes); found {
		return desired, true
	}

	// upper is the first mode larger than every mode of the desired size.
	upper, _ := slices.BinarySearchFunc(sorted, FullscreenMode{desired.Width, desired.Height, math.MaxInt}, compareModes)
	if upper > 0 {
		prev := sorted[upper-1]
		if prev.Width == desired.Width && prev.Height == desired.Height {
			return prev, true
		}
	}

	if upper < len(sorted) {
		for _, m := range sorted[upper:] {
			if m.RefreshRate >= desired.RefreshRate {
				return m, true
			}
		}
		return sorted[upper], true
	}

	return sorted[len(sorted)-1], true
}

// ValidateWindowSettings returns ws with every field clamped to what the
// monitors support:
//   - an out of range monitor index selects the first monitor;
//   - the multisample level is rounded up to a power of two in [1, 16];
//   - only windowed windows are resizable;
//   - a zero size is 1024x768 when windowed, else the desktop size;
//   - only fullscreen windows choose their refresh rate, and fullscreen
//     snaps to the closest mode of the monitor.
//
// Without monitors the window is windowed and a zero size is 1024x768 at
// 60 Hz.
func ValidateWindowSettings(ws WindowSettings, monitors []Monitor) WindowSettings {
	if ws.Monitor < 0 || ws.Monitor >= len(monitors) {
		if ws.Monitor != 0 {
			renderapi.Logger().Warn("device: monitor not found, using the first one", "monitor", ws.Monitor)
		}
		ws.Monitor = 0
	}

	ws.MultiSample = int(gpucore.NextPowerOfTwo(gpucore.ClampMultiSample(uint32(max(ws.MultiSample, 0)))))

	if ws.Mode != Windowed {
		ws.Resizable = false
	}

	if len(monitors) == 0 {
		ws.Mode = Windowed
		if ws.Width <= 0 || ws.Height <= 0 {
			ws.Width, ws.Height = defaultWidth, defaultHeight
		}
		if ws.RefreshRate <= 0 {
			ws.RefreshRate = defaultRefreshRate
		}
		return ws
	}

	monitor := monitors[ws.Monitor]
	desktop := monitor.Desktop
	if ws.Width <= 0 || ws.Height <= 0 {
		if ws.Mode == Windowed {
			ws.Width, ws.Height = defaultWidth, defaultHeight
		} else {
			ws.Width, ws.Height = desktop.Width, desktop.Height
		}
	}
	if ws.RefreshRate <= 0 || ws.Mode != Fullscreen {
		ws.RefreshRate = desktop.RefreshRate
	}

	if ws.Mode == Fullscreen {
		want := FullscreenMode{ws.Width, ws.Height, ws.RefreshRate}
		if mode, ok := ClosestFullscreenMode(monitor.Modes, want); ok && mode != want {
			renderapi.Logger().Info("device: fullscreen mode adjusted",
				"width", mode.Width, "height", mode.Height, "refresh", mode.RefreshRate)
			ws.Width, ws.Height, ws.RefreshRate = mode.Width, mode.Height, mode.RefreshRate
		}
	}
	return ws
}
