// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline turns render state descriptors into GPU pipelines.
//
// A [GraphicsPipelineStateDesc] or [ComputePipelineStateDesc] is a plain
// comparable value: shaders, vertex input layout, blend, depth, stencil and
// rasterizer settings, output formats and immutable samplers. The
// [PipelineStateCache] shares one [PipelineState] per distinct descriptor,
// so two descriptors differing only in their debug name yield the same
// state:
//
//	desc := pipeline.DefaultGraphicsPipelineStateDesc()
//	desc.Vertex, desc.Pixel = vs, ps
//	desc.InputLayout = pipeline.InputLayout(
//		gpucore.VertexElement{Type: gpucore.TypeVector3, Semantic: gpucore.SemanticPosition},
//	)
//	state := cache.GetGraphicsPipelineState(desc)
//	defer state.Release()
//
// Creation translates the descriptor through fixed tables, matches the
// vertex layout against the attributes the vertex shader consumes and
// builds bind group layouts from the program reflection. Backends that
// link programs late complete the reflection from the linked program.
//
// A state whose creation failed keeps a nil handle and stays cached;
// draws using it are skipped. States are rebuilt when one of their shaders
// is reloaded and recreated after device loss.
package pipeline
