package drawqueue

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/math/f32"
)

// Uniform data is little endian. Matrix columns are padded to four floats.

func appendFloats(dst []byte, v ...float32) []byte {
	for _, f := range v {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// appendColumns appends a column-major matrix of rows x cols, padding
// every column to four floats.
func appendColumns(dst []byte, m []float32, rows, cols int) []byte {
	for c := range cols {
		dst = appendFloats(dst, m[c*rows:(c+1)*rows]...)
		for range 4 - rows {
			dst = appendFloats(dst, 0)
		}
	}
	return dst
}

// transpose returns the column-major copy of a row-major n x n matrix.
func transpose(m []float32, n int) []float32 {
	out := make([]float32, n*n)
	for r := range n {
		for c := range n {
			out[c*n+r] = m[r*n+c]
		}
	}
	return out
}

// appendParameter encodes a shader parameter value. It reports false for
// unsupported types.
func appendParameter(dst []byte, value any) ([]byte, bool) {
	switch v := value.(type) {
	case float32:
		return appendFloats(dst, v), true
	case float64:
		return appendFloats(dst, float32(v)), true
	case int32:
		return binary.LittleEndian.AppendUint32(dst, uint32(v)), true
	case int:
		return binary.LittleEndian.AppendUint32(dst, uint32(int32(v))), true
	case uint32:
		return binary.LittleEndian.AppendUint32(dst, v), true
	case bool:
		var u uint32
		if v {
			u = 1
		}
		return binary.LittleEndian.AppendUint32(dst, u), true

	case f32.Vec2:
		return appendFloats(dst, v[:]...), true
	case f32.Vec3:
		return appendFloats(dst, v[:]...), true
	case f32.Vec4:
		return appendFloats(dst, v[:]...), true
	case f32.Mat3:
		return appendColumns(dst, transpose(v[:], 3), 3, 3), true
	case f32.Mat4:
		return appendColumns(dst, transpose(v[:], 4), 4, 4), true

	case mgl32.Vec2:
		return appendFloats(dst, v[:]...), true
	case mgl32.Vec3:
		return appendFloats(dst, v[:]...), true
	case mgl32.Vec4:
		return appendFloats(dst, v[:]...), true
	case mgl32.Mat3:
		return appendColumns(dst, v[:], 3, 3), true
	case mgl32.Mat3x4:
		return appendColumns(dst, v[:], 3, 4), true
	case mgl32.Mat4:
		return appendColumns(dst, v[:], 4, 4), true

	case []float32:
		return appendFloats(dst, v...), true
	case []mgl32.Vec4:
		for _, e := range v {
			dst = appendFloats(dst, e[:]...)
		}
		return dst, true
	case []mgl32.Mat4:
		for _, e := range v {
			dst = appendFloats(dst, e[:]...)
		}
		return dst, true
	}
	return dst, false
}
