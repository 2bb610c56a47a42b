// Package gles registers the OpenGL backend.
//
// OpenGL binds shader inputs when a program is linked, so the backend
// implements [backend.ProgramLinker]: pipeline states translate their stages
// to GLSL, and complete the program reflection from the linked result
// instead of reading it from the shader modules.
//
// Import the package for its side effect:
//
//	import _ "github.com/gogpu/renderapi/backend/gles"
package gles
