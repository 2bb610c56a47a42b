package reflection

import (
	"strings"

	"github.com/gogpu/naga/ir"
)

// constantAlignment is the array element stride of constant buffers.
const constantAlignment = 16

// samplerSuffix marks the sampler paired with a texture: sampler
// "sDiffMap_sampler" samples texture "sDiffMap".
const samplerSuffix = "_sampler"

func sanitizeUniformName(name string) (string, bool) {
	if len(name) < 2 || name[0] != 'c' {
		return "", false
	}
	return name[1:], true
}

func sanitizeSRVName(name string) (string, bool) {
	if name == "" || name[0] != 's' {
		return "", false
	}
	return name[1:], true
}

func sanitizeUAVName(name string) (string, bool) {
	if name == "" || name[0] != 'u' {
		return "", false
	}
	return name[1:], true
}

// sanitizeSamplerName returns the texture name a sampler pairs with.
// Samplers not following the naming rule keep their own name.
func sanitizeSamplerName(name string) string {
	base, ok := strings.CutSuffix(name, samplerSuffix)
	if !ok {
		return name
	}
	if srv, ok := sanitizeSRVName(base); ok {
		return srv
	}
	return base
}

// sanitizeGLUniformName converts a linked uniform name such as
// "Camera.cViewProj[0]" to "ViewProj". Array elements other than the
// first and names without the c prefix are rejected.
func sanitizeGLUniformName(name string) (string, bool) {
	if i := strings.IndexByte(name, '['); i >= 0 {
		if !strings.Contains(name[i:], "[0]") {
			return "", false
		}
		name = name[:i]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return sanitizeUniformName(name)
}

func roundUp(v, alignment uint32) uint32 {
	return (v + alignment - 1) / alignment * alignment
}

func scalarSize(s ir.ScalarType) uint32 {
	if s.Width == 8 {
		return 8
	}
	return 4
}

// vectorArraySize is the size of count vectors of n scalars, each padded
// to the constant buffer alignment.
func vectorArraySize(s ir.ScalarType, n, count uint32) uint32 {
	return count * roundUp(n*scalarSize(s), constantAlignment)
}

// uniformSize returns the constant buffer size of a uniform of type h, or
// 0 when it cannot be deduced. Matrices are columns of padded vectors and
// arrays pad every element to 16 bytes.
func uniformSize(m *ir.Module, h ir.TypeHandle) uint32 {
	if int(h) >= len(m.Types) {
		return 0
	}
	switch t := m.Types[h].Inner.(type) {
	case ir.ScalarType:
		return scalarSize(t)
	case ir.AtomicType:
		return scalarSize(t.Scalar)
	case ir.VectorType:
		return uint32(t.Size) * scalarSize(t.Scalar)
	case ir.MatrixType:
		return vectorArraySize(t.Scalar, uint32(t.Rows), uint32(t.Columns))
	case ir.StructType:
		return t.Span
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return 0
		}
		count := *t.Size.Constant
		if int(t.Base) >= len(m.Types) {
			return 0
		}
		switch base := m.Types[t.Base].Inner.(type) {
		case ir.ScalarType:
			return vectorArraySize(base, 1, count)
		case ir.VectorType:
			return vectorArraySize(base.Scalar, uint32(base.Size), count)
		case ir.MatrixType:
			return vectorArraySize(base.Scalar, uint32(base.Rows), count*uint32(base.Columns))
		default:
			return count * roundUp(uniformSize(m, t.Base), constantAlignment)
		}
	}
	return 0
}
