// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device owns the window swap chain and the opened backend, and
// orchestrates device loss and frame presentation.
//
// A [RenderDevice] is created once at startup:
//
//	dev, err := device.New(device.DefaultSettings(),
//		device.WithWindow(window, handle),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
// Every GPU object created through the device registers with it and
// receives the two-phase loss protocol: InvalidateDeviceState releases
// every handle, RestoreDeviceState recreates them. Present ends the frame:
// it presents, resizes the swap chain when the window changed, rebuilds
// reloaded pipeline states, rolls the frame statistics and advances
// the frame index.
//
// Settings may be kept in a TOML file:
//
//	[window]
//	mode = "borderless"
//	width = 1920
//	height = 1080
//	vsync = true
//	multisample = 4
//
//	[device]
//	backend = "vulkan"
package device
