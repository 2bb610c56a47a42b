// Command rapiinfo lists the registered render backends and prints the
// capabilities of the one a device opens.
//
//	rapiinfo [-backend name] [-settings file.toml] [-noop] [-v]
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/gogpu/gputypes"
	_ "github.com/gogpu/wgpu/hal/allbackends"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/renderapi"
	"github.com/gogpu/renderapi/backend"
	_ "github.com/gogpu/renderapi/backend/gles"
	_ "github.com/gogpu/renderapi/backend/native"
	"github.com/gogpu/renderapi/device"
)

func main() {
	var (
		backendName  = flag.String("backend", "", "backend to open (default: first that opens)")
		settingsPath = flag.String("settings", "", "TOML settings file")
		useNoop      = flag.Bool("noop", false, "open the backend on the noop HAL")
		verbose      = flag.Bool("v", false, "log to stderr")
	)
	flag.Parse()

	if *verbose {
		renderapi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	settings := device.DefaultSettings()
	if *settingsPath != "" {
		var err error
		if settings, err = device.LoadSettings(*settingsPath); err != nil {
			log.Fatal(err)
		}
	}
	if *backendName != "" {
		settings.Device.Backend = *backendName
	}

	fmt.Println("Registered backends:")
	for _, kind := range backend.Available() {
		fmt.Printf("  %s\n", kind)
	}
	fmt.Println()

	var opts []device.Option
	if *useNoop {
		opts = append(opts, device.WithHAL(noop.API{}))
	}
	dev, err := device.New(settings, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Close()

	printDevice(os.Stdout, dev)
}

func printDevice(out io.Writer, dev *device.RenderDevice) {
	be := dev.Backend()
	info := be.AdapterInfo()
	caps := dev.Caps()
	limits := be.Limits()
	sc := be.SwapChain()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	row := func(name string, value any) { fmt.Fprintf(w, "%s\t%v\n", name, value) }

	row("Backend", be.Name())
	row("Adapter", info.Name)
	row("Vendor", info.Vendor)
	row("Driver", info.Driver)
	row("Adapter type", dev.AdapterInfo().Type)
	row("Swap chain", fmt.Sprintf("%dx%d %v, %d samples", sc.Width, sc.Height, be.SwapChainFormat(), sc.SampleCount))
	row("Compute shaders", caps.ComputeShaders)
	row("Draw base vertex", caps.DrawBaseVertex)
	row("Draw base instance", caps.DrawBaseInstance)
	row("Clip distance", caps.ClipDistance)
	row("Read-only depth", caps.ReadOnlyDepth)
	row("sRGB output", caps.SRGBOutput)
	row("HDR output", caps.HDROutput)
	row("Constant buffer alignment", caps.ConstantBufferOffsetAlignment)
	row("Max texture size", caps.MaxTextureSize)
	row("Max render target size", caps.MaxRenderTargetSize)
	row("Max bind groups", limits.MaxBindGroups)
	row("Max multisample", dev.SupportedMultiSample(gputypes.TextureFormatRGBA8Unorm, 16))
	_ = w.Flush()
}
