package state

import (
	"encoding/binary"
	"fmt"
	"math"
)

// V128 is a 128-bit vector value stored as two 64-bit lanes. Typed views
// reinterpret the raw bits; lane 0 is the least significant.
type V128 struct {
	lo uint64
	hi uint64
}

// NewV128 builds a vector from its low and high 64-bit halves.
func NewV128(lo, hi uint64) V128 {
	return V128{lo: lo, hi: hi}
}

// V128FromFloat32s builds a vector from four single-precision lanes.
func V128FromFloat32s(e0, e1, e2, e3 float32) V128 {
	return V128FromInt32s(
		math.Float32bits(e0), math.Float32bits(e1),
		math.Float32bits(e2), math.Float32bits(e3),
	)
}

// V128FromFloat64s builds a vector from two double-precision lanes.
func V128FromFloat64s(e0, e1 float64) V128 {
	return V128{lo: math.Float64bits(e0), hi: math.Float64bits(e1)}
}

// V128FromInt32s builds a vector from four 32-bit lanes.
func V128FromInt32s(e0, e1, e2, e3 uint32) V128 {
	return V128{
		lo: uint64(e0) | uint64(e1)<<32,
		hi: uint64(e2) | uint64(e3)<<32,
	}
}

// V128FromInt64s builds a vector from two 64-bit lanes.
func V128FromInt64s(e0, e1 uint64) V128 {
	return V128{lo: e0, hi: e1}
}

// V128FromBytes reads a vector in register-file byte order.
func V128FromBytes(b []byte) V128 {
	return V128{
		lo: binary.LittleEndian.Uint64(b),
		hi: binary.LittleEndian.Uint64(b[8:]),
	}
}

// PutBytes writes the vector in register-file byte order.
func (v V128) PutBytes(b []byte) {
	binary.LittleEndian.PutUint64(b, v.lo)
	binary.LittleEndian.PutUint64(b[8:], v.hi)
}

// Lo returns the low 64 bits.
func (v V128) Lo() uint64 { return v.lo }

// Hi returns the high 64 bits.
func (v V128) Hi() uint64 { return v.hi }

// ExtractInt32 returns 32-bit lane index.
func (v V128) ExtractInt32(index int) uint32 {
	checkIndex("int32 lane", index, 4)

	lane := v.lo
	if index >= 2 {
		lane = v.hi
	}

	return uint32(lane >> (32 * (index & 1)))
}

// ExtractInt64 returns 64-bit lane index.
func (v V128) ExtractInt64(index int) uint64 {
	checkIndex("int64 lane", index, 2)

	if index == 0 {
		return v.lo
	}

	return v.hi
}

// ExtractFloat32 returns single-precision lane index.
func (v V128) ExtractFloat32(index int) float32 {
	return math.Float32frombits(v.ExtractInt32(index))
}

// ExtractFloat64 returns double-precision lane index.
func (v V128) ExtractFloat64(index int) float64 {
	return math.Float64frombits(v.ExtractInt64(index))
}

// InsertInt32 returns a copy of v with 32-bit lane index replaced.
func (v V128) InsertInt32(index int, value uint32) V128 {
	checkIndex("int32 lane", index, 4)

	shift := 32 * uint(index&1)
	mask := uint64(0xffffffff) << shift
	bits := uint64(value) << shift

	if index < 2 {
		v.lo = v.lo&^mask | bits
	} else {
		v.hi = v.hi&^mask | bits
	}

	return v
}

// InsertInt64 returns a copy of v with 64-bit lane index replaced.
func (v V128) InsertInt64(index int, value uint64) V128 {
	checkIndex("int64 lane", index, 2)

	if index == 0 {
		v.lo = value
	} else {
		v.hi = value
	}

	return v
}

// InsertFloat32 returns a copy of v with single-precision lane index replaced.
func (v V128) InsertFloat32(index int, value float32) V128 {
	return v.InsertInt32(index, math.Float32bits(value))
}

// InsertFloat64 returns a copy of v with double-precision lane index replaced.
func (v V128) InsertFloat64(index int, value float64) V128 {
	return v.InsertInt64(index, math.Float64bits(value))
}

// And returns the bitwise AND of v and o.
func (v V128) And(o V128) V128 { return V128{lo: v.lo & o.lo, hi: v.hi & o.hi} }

// Or returns the bitwise OR of v and o.
func (v V128) Or(o V128) V128 { return V128{lo: v.lo | o.lo, hi: v.hi | o.hi} }

// Xor returns the bitwise XOR of v and o.
func (v V128) Xor(o V128) V128 { return V128{lo: v.lo ^ o.lo, hi: v.hi ^ o.hi} }

// Not returns the bitwise complement of v.
func (v V128) Not() V128 { return V128{lo: ^v.lo, hi: ^v.hi} }

// ShiftLeft shifts the whole 128-bit value left by n bits.
func (v V128) ShiftLeft(n uint) V128 {
	switch {
	case n == 0:
		return v
	case n >= 128:
		return V128{}
	case n >= 64:
		return V128{hi: v.lo << (n - 64)}
	default:
		return V128{lo: v.lo << n, hi: v.hi<<n | v.lo>>(64-n)}
	}
}

// ShiftRight logically shifts the whole 128-bit value right by n bits.
func (v V128) ShiftRight(n uint) V128 {
	switch {
	case n == 0:
		return v
	case n >= 128:
		return V128{}
	case n >= 64:
		return V128{lo: v.hi >> (n - 64)}
	default:
		return V128{lo: v.lo>>n | v.hi<<(64-n), hi: v.hi >> n}
	}
}

// IsZero reports whether all 128 bits are clear.
func (v V128) IsZero() bool {
	return v.lo == 0 && v.hi == 0
}

func (v V128) String() string {
	return fmt.Sprintf("0x%016x%016x", v.hi, v.lo)
}
