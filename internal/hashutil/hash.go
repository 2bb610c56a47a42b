// Package hashutil provides FNV-1a helpers for descriptor and content hashing.
package hashutil

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"math"
)

// Hasher accumulates values into a 64-bit FNV-1a hash.
// The zero value is not usable; call New.
type Hasher struct {
	h   hash.Hash64
	buf [8]byte
}

// New returns an empty hasher.
func New() *Hasher {
	return &Hasher{h: fnv.New64a()}
}

// Uint32 writes v.
func (h *Hasher) Uint32(v uint32) *Hasher {
	binary.LittleEndian.PutUint32(h.buf[:4], v)
	_, _ = h.h.Write(h.buf[:4])
	return h
}

// Uint64 writes v.
func (h *Hasher) Uint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.h.Write(h.buf[:])
	return h
}

// Float32 writes the bit pattern of v.
func (h *Hasher) Float32(v float32) *Hasher {
	return h.Uint32(math.Float32bits(v))
}

// Bool writes v as one byte.
func (h *Hasher) Bool(v bool) *Hasher {
	if v {
		h.buf[0] = 1
	} else {
		h.buf[0] = 0
	}
	_, _ = h.h.Write(h.buf[:1])
	return h
}

// String writes the length of s followed by its bytes.
//
//nolint:gosec // G115: names hashed here are short identifiers
func (h *Hasher) String(s string) *Hasher {
	h.Uint32(uint32(len(s)))
	_, _ = h.h.Write([]byte(s))
	return h
}

// Bytes writes data verbatim.
func (h *Hasher) Bytes(data []byte) *Hasher {
	_, _ = h.h.Write(data)
	return h
}

// Sum64 returns the current hash.
func (h *Hasher) Sum64() uint64 {
	return h.h.Sum64()
}

// Bytes64 hashes data in one call.
func Bytes64(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}

// String32 returns the 32-bit FNV-1a hash of s. Uniform names are folded
// into layout hashes through it.
func String32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Combine folds v into seed.
func Combine(seed, v uint64) uint64 {
	return seed ^ (v + 0x9e3779b97f4a7c15 + (seed << 6) + (seed >> 2))
}
