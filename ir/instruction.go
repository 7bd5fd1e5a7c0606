package ir

import "fmt"

// Instruction is an IR opcode.
type Instruction uint8

// IR opcodes.
const (
	Nop Instruction = iota

	Add
	Subtract
	Multiply
	Negate
	BitwiseAnd
	BitwiseOr
	BitwiseExclusiveOr
	BitwiseNot
	ShiftLeft
	ShiftRightUI
	ShiftRightSI
	RotateRight
	ZeroExtend8
	ZeroExtend16
	ZeroExtend32
	SignExtend8
	SignExtend16
	SignExtend32
	ConvertI64ToI32

	// Compare takes (a, b, comparison constant) and yields 0 or 1.
	Compare
	// ConditionalSelect takes (cond, a, b) and yields a when cond != 0.
	ConditionalSelect
	Copy

	Load8
	Load16
	Load32
	Load64
	Store8
	Store16
	Store32
	Store64

	VectorZero
	VectorExtract
	VectorInsert

	// LoadContext reads an Attribute slot into the destination.
	LoadContext
	// StoreContext writes the second source into the Attribute slot.
	StoreContext
	// LoadFromContext and StoreToContext are expanded into per-register
	// LoadContext and StoreContext operations before SSA conversion.
	LoadFromContext
	StoreToContext

	// MarkLabel starts a new block at its label source. It never survives
	// CFG construction.
	MarkLabel
	// Branch jumps to its label source.
	Branch
	// BranchIf takes (cond, label) and jumps when cond != 0.
	BranchIf
	// Return yields its source as the next guest address.
	Return

	// Break, SupervisorCall and Undefined raise guest traps. Sources are
	// (address, payload).
	Break
	SupervisorCall
	UndefinedInstruction
	// CheckSynchronization re-arms the counter, delivers pending interrupts
	// and yields 1 while the context keeps running.
	CheckSynchronization
	// CountCall increments the call counter attribute source and yields the
	// count before the increment.
	CountCall
	// EnqueueForRejit asks the host to retranslate the function at its
	// address source with the optimizer.
	EnqueueForRejit

	Phi

	instructionCount
)

var instructionNames = [...]string{
	Nop:                  "nop",
	Add:                  "add",
	Subtract:             "sub",
	Multiply:             "mul",
	Negate:               "neg",
	BitwiseAnd:           "and",
	BitwiseOr:            "or",
	BitwiseExclusiveOr:   "xor",
	BitwiseNot:           "not",
	ShiftLeft:            "shl",
	ShiftRightUI:         "shr",
	ShiftRightSI:         "sar",
	RotateRight:          "ror",
	ZeroExtend8:          "zext8",
	ZeroExtend16:         "zext16",
	ZeroExtend32:         "zext32",
	SignExtend8:          "sext8",
	SignExtend16:         "sext16",
	SignExtend32:         "sext32",
	ConvertI64ToI32:      "trunc32",
	Compare:              "cmp",
	ConditionalSelect:    "csel",
	Copy:                 "copy",
	Load8:                "load8",
	Load16:               "load16",
	Load32:               "load32",
	Load64:               "load64",
	Store8:               "store8",
	Store16:              "store16",
	Store32:              "store32",
	Store64:              "store64",
	VectorZero:           "vzero",
	VectorExtract:        "vextract",
	VectorInsert:         "vinsert",
	LoadContext:          "loadctx",
	StoreContext:         "storectx",
	LoadFromContext:      "loadfromctx",
	StoreToContext:       "storetoctx",
	MarkLabel:            "label",
	Branch:               "br",
	BranchIf:             "brif",
	Return:               "ret",
	Break:                "brk",
	SupervisorCall:       "svc",
	UndefinedInstruction: "udf",
	CheckSynchronization: "checksync",
	CountCall:            "countcall",
	EnqueueForRejit:      "rejit",
	Phi:                  "phi",
}

func (i Instruction) String() string {
	if i < instructionCount {
		return instructionNames[i]
	}

	return fmt.Sprintf("inst(%d)", uint8(i))
}

// IsBranch reports whether i ends a block with an explicit target.
func (i Instruction) IsBranch() bool {
	return i == Branch || i == BranchIf
}

// IsUnconditional reports whether control never falls through i.
func (i Instruction) IsUnconditional() bool {
	return i == Branch || i == Return
}

// IsTerminator reports whether i ends a block.
func (i Instruction) IsTerminator() bool {
	return i.IsBranch() || i == Return
}

// HasSideEffects reports whether i must be kept even when its result is
// unused.
func (i Instruction) HasSideEffects() bool {
	switch i {
	case Store8, Store16, Store32, Store64,
		StoreContext, StoreToContext, LoadFromContext,
		Branch, BranchIf, Return, MarkLabel,
		Break, SupervisorCall, UndefinedInstruction, CheckSynchronization,
		CountCall, EnqueueForRejit:
		return true
	case Load8, Load16, Load32, Load64:
		// Loads can fault.
		return true
	default:
		return false
	}
}

// IsPure reports whether i computes its destination from its sources alone.
func (i Instruction) IsPure() bool {
	switch i {
	case Add, Subtract, Multiply, Negate,
		BitwiseAnd, BitwiseOr, BitwiseExclusiveOr, BitwiseNot,
		ShiftLeft, ShiftRightUI, ShiftRightSI, RotateRight,
		ZeroExtend8, ZeroExtend16, ZeroExtend32,
		SignExtend8, SignExtend16, SignExtend32, ConvertI64ToI32,
		Compare, ConditionalSelect, Copy,
		VectorZero, VectorExtract, VectorInsert:
		return true
	default:
		return false
	}
}

// Comparison is the condition evaluated by Compare.
type Comparison uint8

// Comparisons. The UI suffix marks unsigned comparisons.
const (
	Equal Comparison = iota
	NotEqual
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
	GreaterUI
	GreaterOrEqualUI
	LessUI
	LessOrEqualUI
)

var comparisonNames = [...]string{
	Equal:            "eq",
	NotEqual:         "ne",
	Greater:          "gt",
	GreaterOrEqual:   "ge",
	Less:             "lt",
	LessOrEqual:      "le",
	GreaterUI:        "gtu",
	GreaterOrEqualUI: "geu",
	LessUI:           "ltu",
	LessOrEqualUI:    "leu",
}

func (c Comparison) String() string {
	if int(c) < len(comparisonNames) {
		return comparisonNames[c]
	}

	return fmt.Sprintf("cmp(%d)", uint8(c))
}

// Invert returns the comparison that holds exactly when c does not.
func (c Comparison) Invert() Comparison {
	switch c {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case Greater:
		return LessOrEqual
	case GreaterOrEqual:
		return Less
	case Less:
		return GreaterOrEqual
	case LessOrEqual:
		return Greater
	case GreaterUI:
		return LessOrEqualUI
	case GreaterOrEqualUI:
		return LessUI
	case LessUI:
		return GreaterOrEqualUI
	default:
		return GreaterUI
	}
}

// Eval applies c to two integer values of the given type.
func (c Comparison) Eval(a, b uint64, t OperandType) bool {
	sa, sb := int64(a), int64(b)
	if t == I32 {
		a, b = uint64(uint32(a)), uint64(uint32(b))
		sa, sb = int64(int32(a)), int64(int32(b))
	}

	switch c {
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Greater:
		return sa > sb
	case GreaterOrEqual:
		return sa >= sb
	case Less:
		return sa < sb
	case LessOrEqual:
		return sa <= sb
	case GreaterUI:
		return a > b
	case GreaterOrEqualUI:
		return a >= b
	case LessUI:
		return a < b
	default:
		return a <= b
	}
}
