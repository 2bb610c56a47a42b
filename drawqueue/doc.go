// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package drawqueue records draw and dispatch commands with their pipeline
// state, resources and shader parameters, and replays them into a
// [rendercontext.RenderContext].
//
// Recording is CPU only. Shader parameters are written group by group into
// a [ConstantBufferCollection]: an aligned arena that is uploaded into one
// dynamic uniform buffer at execution, with every command binding its
// groups at their arena offsets. Identical parameter blocks share one
// allocation.
//
//	q := drawqueue.New(dev)
//	q.SetPipelineState(state)
//	q.SetVertexBuffers(vb)
//	if q.BeginShaderParameterGroup(gpucore.GroupCamera, cameraChanged) {
//		q.AddShaderParameter("ViewProj", viewProj)
//		q.CommitShaderParameterGroup(gpucore.GroupCamera)
//	}
//	q.SetShaderResource("DiffMap", albedo)
//	q.CommitShaderResources()
//	q.Draw(0, 36)
//	err := q.ExecuteInContext(ctx)
//
// Execution sets pipeline, buffers, scissor, stencil reference and bind
// groups only when they differ from the previous command in the same pass.
// Textures bound as render target are sampled as the default texture of
// their dimension instead. Without base instance support per-instance
// vertex buffers are offset to the first instance and rebound for every
// instanced draw.
package drawqueue
