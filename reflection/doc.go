// Package reflection describes what a shader program consumes: the uniform
// buffer of each parameter group with its uniforms, textures, unordered
// access views, samplers and vertex inputs.
//
// A reflection is built either from the IR of the program stages
// ([FromStages]) or from the introspection of a program linked by the
// legacy backend ([FromLinkedProgram]). Both sources follow the same naming
// rules: uniforms carry a c prefix, textures an s prefix and unordered
// access views a u prefix. Uniform buffers are matched to parameter groups
// by name, so a buffer named Camera feeds the Camera group.
//
// The per-group layout hash lets a render context skip uniform uploads when
// two programs share the same layout:
//
//	r := reflection.FromStages(stages)
//	if r.Hash(gpucore.GroupCamera) == current.Hash(gpucore.GroupCamera) {
//		// camera constants can stay bound
//	}
package reflection
