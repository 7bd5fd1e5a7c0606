// Package state provides the guest register file and the execution context
// that translated code runs against.
package state

import "fmt"

// Register file category counts. The layout below is derived from these
// once and never changes at runtime.
const (
	IntRegsCount = 32
	VecRegsCount = 32
	FlagsCount   = 32
	FpFlagsCount = 32
)

// Element sizes in bytes.
const (
	IntRegSize      = 8
	VecRegSize      = 16
	FlagSize        = 4
	CounterSize     = 4
	CallAddressSize = 4
)

// Byte offsets of each category. Categories are laid out in append-only
// order: integers, vectors, PSTATE flags, FP state flags, the counter and
// the call-address slot. Compiled code embeds these offsets, so reordering
// them invalidates every translated function.
const (
	IntRegsOffset     = 0
	VecRegsOffset     = IntRegsOffset + IntRegsCount*IntRegSize
	FlagsOffset       = VecRegsOffset + VecRegsCount*VecRegSize
	FpFlagsOffset     = FlagsOffset + FlagsCount*FlagSize
	CounterOffset     = FpFlagsOffset + FpFlagsCount*FlagSize
	CallAddressOffset = CounterOffset + CounterSize

	// TotalSize is the size of the native register block.
	TotalSize = CallAddressOffset + CallAddressSize
)

// RegisterType selects the register file category.
type RegisterType uint8

// Register file categories.
const (
	Integer RegisterType = iota
	Vector
	Flag
	FpFlag
)

func (t RegisterType) String() string {
	switch t {
	case Integer:
		return "x"
	case Vector:
		return "v"
	case Flag:
		return "pstate"
	case FpFlag:
		return "fpstate"
	default:
		return fmt.Sprintf("regtype(%d)", uint8(t))
	}
}

// Register names one slot of the guest register file. Integer register 31
// is SP; the zero register never reaches the register file.
type Register struct {
	Index int
	Type  RegisterType
}

// IntReg returns the integer register with the given index.
func IntReg(index int) Register { return Register{Index: index, Type: Integer} }

// VecReg returns the vector register with the given index.
func VecReg(index int) Register { return Register{Index: index, Type: Vector} }

// FlagReg returns the PSTATE flag slot for flag.
func FlagReg(flag PState) Register { return Register{Index: int(flag), Type: Flag} }

// FpFlagReg returns the FP state flag slot for flag.
func FpFlagReg(flag FPState) Register { return Register{Index: int(flag), Type: FpFlag} }

func (r Register) String() string {
	switch r.Type {
	case Flag:
		return PState(r.Index).String()
	case FpFlag:
		return "fp." + FPState(r.Index).String()
	default:
		return fmt.Sprintf("%v%d", r.Type, r.Index)
	}
}

// GetRegisterSize returns the size in bytes of the register's slot.
func GetRegisterSize(r Register) int {
	switch r.Type {
	case Integer:
		return IntRegSize
	case Vector:
		return VecRegSize
	case Flag, FpFlag:
		return FlagSize
	default:
		panic(&ArgumentError{Name: "register type", Value: int(r.Type), Limit: int(FpFlag) + 1})
	}
}

// GetRegisterOffset returns the byte offset of the register's slot inside
// the native register block. It panics with an ArgumentError when the index
// is out of range for its category or the slot would end past TotalSize.
func GetRegisterOffset(r Register) int {
	var offset int

	switch r.Type {
	case Integer:
		checkIndex("integer register", r.Index, IntRegsCount)
		offset = IntRegsOffset + r.Index*IntRegSize
	case Vector:
		checkIndex("vector register", r.Index, VecRegsCount)
		offset = VecRegsOffset + r.Index*VecRegSize
	case Flag:
		checkIndex("pstate flag", r.Index, FlagsCount)
		offset = FlagsOffset + r.Index*FlagSize
	case FpFlag:
		checkIndex("fp state flag", r.Index, FpFlagsCount)
		offset = FpFlagsOffset + r.Index*FlagSize
	default:
		panic(&ArgumentError{Name: "register type", Value: int(r.Type), Limit: int(FpFlag) + 1})
	}

	checkSlot(offset, GetRegisterSize(r))

	return offset
}

// GetCounterOffset returns the byte offset of the re-arm counter.
func GetCounterOffset() int {
	checkSlot(CounterOffset, CounterSize)

	return CounterOffset
}

// GetCallAddressOffset returns the byte offset of the call-address slot.
func GetCallAddressOffset() int {
	checkSlot(CallAddressOffset, CallAddressSize)

	return CallAddressOffset
}

func checkSlot(offset, size int) {
	if offset+size > TotalSize {
		panic(&ArgumentError{Name: "register offset", Value: offset + size, Limit: TotalSize + 1})
	}
}
