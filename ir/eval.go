package ir

import "math/bits"

// EvalInteger computes a pure integer opcode over raw operand bits. t is the
// type the operation works in: the destination type, or the source type for
// Compare. The result is truncated to t. ok is false for opcodes that are
// not pure integer computations.
func EvalInteger(inst Instruction, t OperandType, srcs ...uint64) (result uint64, ok bool) {
	width := uint64(t.Bits())
	if width != 32 && width != 64 {
		return 0, false
	}

	arg := func(i int) uint64 {
		if i < len(srcs) {
			return srcs[i]
		}

		return 0
	}

	a, b := arg(0), arg(1)
	shift := b & (width - 1)

	switch inst {
	case Add:
		result = a + b
	case Subtract:
		result = a - b
	case Multiply:
		result = a * b
	case Negate:
		result = -a
	case BitwiseAnd:
		result = a & b
	case BitwiseOr:
		result = a | b
	case BitwiseExclusiveOr:
		result = a ^ b
	case BitwiseNot:
		result = ^a
	case ShiftLeft:
		result = a << shift
	case ShiftRightUI:
		result = truncate(a, t) >> shift
	case ShiftRightSI:
		if t == I32 {
			result = uint64(int32(a) >> shift)
		} else {
			result = uint64(int64(a) >> shift)
		}
	case RotateRight:
		if t == I32 {
			result = uint64(bits.RotateLeft32(uint32(a), -int(shift)))
		} else {
			result = bits.RotateLeft64(a, -int(shift))
		}
	case ZeroExtend8:
		result = uint64(uint8(a))
	case ZeroExtend16:
		result = uint64(uint16(a))
	case ZeroExtend32, ConvertI64ToI32:
		result = uint64(uint32(a))
	case SignExtend8:
		result = uint64(int64(int8(a)))
	case SignExtend16:
		result = uint64(int64(int16(a)))
	case SignExtend32:
		result = uint64(int64(int32(a)))
	case Compare:
		if Comparison(arg(2)).Eval(a, b, t) {
			return 1, true
		}

		return 0, true
	case ConditionalSelect:
		if a != 0 {
			result = b
		} else {
			result = arg(2)
		}
	case Copy:
		result = a
	default:
		return 0, false
	}

	return truncate(result, t), true
}

func truncate(v uint64, t OperandType) uint64 {
	if t == I32 {
		return uint64(uint32(v))
	}

	return v
}
