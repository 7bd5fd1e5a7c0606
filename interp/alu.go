package interp

import "github.com/sarchlab/a64jit/insts"

// ALU implements A64 arithmetic and logic at 32 or 64 bits. 32-bit results
// are zero-extended into the destination.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// width describes the operand size of one instruction.
type width struct {
	mask uint64
	sign uint
}

func widthOf(is64 bool) width {
	if is64 {
		return width{mask: ^uint64(0), sign: 63}
	}
	return width{mask: 0xFFFFFFFF, sign: 31}
}

// Add returns op1 + op2 truncated to the width, setting NZCV when asked.
func (a *ALU) Add(w width, op1, op2 uint64, setFlags bool) uint64 {
	op1, op2 = op1&w.mask, op2&w.mask
	result := (op1 + op2) & w.mask

	if setFlags {
		s1, s2, sr := op1>>w.sign, op2>>w.sign, result>>w.sign
		a.regFile.SetFlags(sr == 1, result == 0, result < op1, s1 == s2 && s1 != sr)
	}

	return result
}

// Sub returns op1 - op2 truncated to the width, setting NZCV when asked.
func (a *ALU) Sub(w width, op1, op2 uint64, setFlags bool) uint64 {
	op1, op2 = op1&w.mask, op2&w.mask
	result := (op1 - op2) & w.mask

	if setFlags {
		s1, s2, sr := op1>>w.sign, op2>>w.sign, result>>w.sign
		// C is set when no borrow occurred.
		a.regFile.SetFlags(sr == 1, result == 0, op1 >= op2, s1 != s2 && s2 == sr)
	}

	return result
}

// Logic applies AND, ORR or EOR. Only ANDS sets flags, clearing C and V.
func (a *ALU) Logic(w width, op insts.Op, op1, op2 uint64, setFlags bool) uint64 {
	var result uint64

	switch op {
	case insts.OpAND:
		result = op1 & op2
	case insts.OpORR:
		result = op1 | op2
	default:
		result = op1 ^ op2
	}

	result &= w.mask

	if setFlags {
		a.regFile.SetFlags(result>>w.sign == 1, result == 0, false, false)
	}

	return result
}

// applyShift applies a register shift at the given width.
func applyShift(w width, value uint64, shiftType insts.ShiftType, amount uint8) uint64 {
	value &= w.mask
	if amount == 0 {
		return value
	}

	bits := w.sign + 1

	switch shiftType {
	case insts.ShiftLSL:
		return (value << amount) & w.mask
	case insts.ShiftLSR:
		return value >> amount
	case insts.ShiftASR:
		signed := int64(value<<(64-bits)) >> (64 - bits)
		return uint64(signed>>amount) & w.mask
	default:
		return ((value >> amount) | (value << (bits - uint(amount)))) & w.mask
	}
}
