package device

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// WindowMode is the presentation mode of the window.
type WindowMode uint8

// Window modes.
const (
	Windowed WindowMode = iota
	Borderless
	Fullscreen
)

var windowModeNames = [...]string{"windowed", "borderless", "fullscreen"}

func (m WindowMode) String() string {
	if int(m) < len(windowModeNames) {
		return windowModeNames[m]
	}
	return fmt.Sprintf("WindowMode(%d)", m)
}

// MarshalText implements encoding.TextMarshaler.
func (m WindowMode) MarshalText() ([]byte, error) {
	if int(m) >= len(windowModeNames) {
		return nil, fmt.Errorf("device: invalid window mode %d", m)
	}
	return []byte(windowModeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *WindowMode) UnmarshalText(text []byte) error {
	for i, name := range windowModeNames {
		if strings.EqualFold(name, string(text)) {
			*m = WindowMode(i)
			return nil
		}
	}
	return fmt.Errorf("device: unknown window mode %q", text)
}

// WindowSettings describes the window and its swap chain.
type WindowSettings struct {
	Mode      WindowMode `toml:"mode"`
	Width     int        `toml:"width"`
	Height    int        `toml:"height"`
	Title     string     `toml:"title"`
	Resizable bool       `toml:"resizable"`
	// Monitor is the index of the monitor used by fullscreen modes.
	Monitor     int  `toml:"monitor"`
	VSync       bool `toml:"vsync"`
	RefreshRate int  `toml:"refresh_rate"`
	MultiSample int  `toml:"multisample"`
	SRGB        bool `toml:"srgb"`
}

// Size returns the window size.
func (s WindowSettings) Size() (width, height int) { return s.Width, s.Height }

// DeviceSettings selects the backend and adapter.
type DeviceSettings struct {
	// Backend names the backend (e.g. "vulkan", "opengl"). Empty selects
	// the first registered backend that opens.
	Backend string `toml:"backend"`
	// AdapterName selects the first adapter whose name contains it.
	AdapterName string `toml:"adapter"`
	// GPUDebug forwards HAL validation messages to the logger.
	GPUDebug bool `toml:"gpu_debug"`
}

// Settings configures a render device.
type Settings struct {
	Window WindowSettings `toml:"window"`
	Device DeviceSettings `toml:"device"`
}

// DefaultSettings returns a 1024x768 window with vsync and no
// multisampling, on the default backend.
func DefaultSettings() Settings {
	return Settings{
		Window: WindowSettings{
			Mode:        Windowed,
			Width:       defaultWidth,
			Height:      defaultHeight,
			Title:       "renderapi",
			VSync:       true,
			MultiSample: 1,
		},
	}
}

// LoadSettings reads settings from a TOML file. Keys missing from the
// file keep their DefaultSettings value.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Settings{}, fmt.Errorf("device: load settings: %w", err)
	}
	return s, nil
}

// DecodeSettings reads TOML settings from r. Keys missing from the input
// keep their DefaultSettings value.
func DecodeSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	if _, err := toml.NewDecoder(r).Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("device: decode settings: %w", err)
	}
	return s, nil
}

// EncodeSettings writes s to w as TOML.
func EncodeSettings(w io.Writer, s Settings) error {
	if err := toml.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("device: encode settings: %w", err)
	}
	return nil
}
