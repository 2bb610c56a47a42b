package device

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeSettings(t *testing.T) {
	const doc = `
[window]
mode = "Borderless"
width = 1920
height = 1080
multisample = 4

[device]
backend = "vulkan"
gpu_debug = true
`
	s, err := DecodeSettings(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeSettings failed: %v", err)
	}
	want := DefaultSettings()
	want.Window.Mode = Borderless
	want.Window.Width, want.Window.Height = 1920, 1080
	want.Window.MultiSample = 4
	want.Device.Backend = "vulkan"
	want.Device.GPUDebug = true
	if s != want {
		t.Errorf("DecodeSettings() = %+v, want %+v", s, want)
	}
}

func TestDecodeSettingsErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown mode", "[window]\nmode = \"maximized\"\n"},
		{"bad syntax", "[window\n"},
		{"wrong type", "[window]\nwidth = \"wide\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSettings(strings.NewReader(tt.doc)); err == nil {
				t.Error("DecodeSettings() should fail")
			}
		})
	}
}

func TestLoadSettings(t *testing.T) {
	s := DefaultSettings()
	s.Window.Mode = Fullscreen
	s.Window.Title = "demo"
	s.Device.AdapterName = "Radeon"

	var buf bytes.Buffer
	if err := EncodeSettings(&buf, s); err != nil {
		t.Fatalf("EncodeSettings failed: %v", err)
	}
	if !strings.Contains(buf.String(), `mode = "fullscreen"`) {
		t.Errorf("encoded settings miss the window mode:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if got != s {
		t.Errorf("LoadSettings() = %+v, want %+v", got, s)
	}

	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadSettings() of a missing file should fail")
	}
}
