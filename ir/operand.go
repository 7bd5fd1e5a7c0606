// Package ir defines the intermediate representation that guest code is
// translated into: operands, operations, basic blocks and control-flow
// graphs.
package ir

import (
	"fmt"
	"math"

	"github.com/sarchlab/a64jit/state"
)

// OperandKind is the operand tag. It determines which payload fields of an
// Operand are meaningful.
type OperandKind uint8

// Operand kinds.
const (
	// Constant uses Value.
	Constant OperandKind = iota
	// Register uses Reg. Registers only appear before SSA conversion.
	Register
	// LocalVariable is a value with a single definition. SSA versions of a
	// register also use Reg and Version.
	LocalVariable
	// Label uses Label. Labels only exist until the CFG is built.
	Label
	// Attribute references an execution-context slot and uses Slot, plus
	// Reg for register slots and Counter for call counters.
	Attribute
	// Undefined is a value read before any definition.
	Undefined
)

var kindNames = [...]string{
	Constant:      "const",
	Register:      "reg",
	LocalVariable: "local",
	Label:         "label",
	Attribute:     "attr",
	Undefined:     "undef",
}

func (k OperandKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// OperandType is the value type carried by an operand.
type OperandType uint8

// Operand types.
const (
	None OperandType = iota
	I32
	I64
	FP32
	FP64
	V128
)

func (t OperandType) String() string {
	switch t {
	case None:
		return "none"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case FP32:
		return "f32"
	case FP64:
		return "f64"
	case V128:
		return "v128"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// IsInteger reports whether t is I32 or I64.
func (t OperandType) IsInteger() bool {
	return t == I32 || t == I64
}

// Bits returns the width of t in bits.
func (t OperandType) Bits() int {
	switch t {
	case I32, FP32:
		return 32
	case I64, FP64:
		return 64
	case V128:
		return 128
	default:
		return 0
	}
}

// LabelID is a handle into an emitter's label arena. Labels are compared by
// handle only.
type LabelID int

// SlotKind selects which execution-context slot an Attribute refers to.
type SlotKind uint8

// Execution-context slots.
const (
	RegisterSlot SlotKind = iota
	CounterSlot
	CallAddressSlot
	// CallCounterSlot is a compiled unit's call counter. It lives outside
	// the register block.
	CallCounterSlot
)

// Operand is a value used or defined by an Operation.
type Operand struct {
	Kind OperandKind
	Type OperandType

	// Value holds the raw bits of a constant.
	Value uint64
	// Reg is the architectural register of a Register operand, a register
	// slot Attribute, or the register an SSA version was derived from.
	Reg state.Register
	// Version is the SSA version number of a local derived from Reg. It is
	// zero for emitter temporaries.
	Version int
	// Label is the handle of a Label operand.
	Label LabelID
	// Slot is the context slot of an Attribute.
	Slot SlotKind
	// Counter is the counter of a CallCounterSlot attribute.
	Counter *CallCounter

	// Assignments and Uses list the operations defining and reading a
	// LocalVariable. They are kept current by Operation setters.
	Assignments []*Operation
	Uses        []*Operation
}

// Const returns a constant of type t holding the raw bits v.
func Const(v uint64, t OperandType) *Operand {
	if t == I32 || t == FP32 {
		v = uint64(uint32(v))
	}

	return &Operand{Kind: Constant, Type: t, Value: v}
}

// ConstI32 returns a 32-bit integer constant.
func ConstI32(v int32) *Operand { return Const(uint64(uint32(v)), I32) }

// ConstI64 returns a 64-bit integer constant.
func ConstI64(v int64) *Operand { return Const(uint64(v), I64) }

// ConstU64 returns a 64-bit integer constant from unsigned bits.
func ConstU64(v uint64) *Operand { return Const(v, I64) }

// ConstF64 returns a double-precision constant.
func ConstF64(v float64) *Operand { return Const(math.Float64bits(v), FP64) }

// Reg returns a reference to an architectural register.
func Reg(r state.Register, t OperandType) *Operand {
	return &Operand{Kind: Register, Type: t, Reg: r}
}

// Local returns a new emitter temporary.
func Local(t OperandType) *Operand {
	return &Operand{Kind: LocalVariable, Type: t}
}

// Version returns a new SSA version of register r.
func Version(r state.Register, version int, t OperandType) *Operand {
	return &Operand{Kind: LocalVariable, Type: t, Reg: r, Version: version}
}

// Undef returns an undefined value of type t.
func Undef(t OperandType) *Operand {
	return &Operand{Kind: Undefined, Type: t}
}

// LabelOperand returns a label operand for handle id.
func LabelOperand(id LabelID) *Operand {
	return &Operand{Kind: Label, Label: id}
}

// ContextSlot returns an attribute referencing register r's slot in the
// execution context.
func ContextSlot(r state.Register) *Operand {
	return &Operand{Kind: Attribute, Type: RegisterOperandType(r), Reg: r, Slot: RegisterSlot}
}

// CounterAttribute returns an attribute referencing the re-arm counter.
func CounterAttribute() *Operand {
	return &Operand{Kind: Attribute, Type: I32, Slot: CounterSlot}
}

// CallAddressAttribute returns an attribute referencing the call-address
// slot.
func CallAddressAttribute() *Operand {
	return &Operand{Kind: Attribute, Type: I32, Slot: CallAddressSlot}
}

// CallCounterAttribute returns an attribute referencing c.
func CallCounterAttribute(c *CallCounter) *Operand {
	return &Operand{Kind: Attribute, Type: I32, Slot: CallCounterSlot, Counter: c}
}

// RegisterOperandType returns the natural operand type of a register.
func RegisterOperandType(r state.Register) OperandType {
	switch r.Type {
	case state.Vector:
		return V128
	case state.Integer:
		return I64
	default:
		return I32
	}
}

// ContextOffset returns the byte offset of an attribute's slot in the
// register block.
func (o *Operand) ContextOffset() int {
	if o.Kind != Attribute {
		panic(fmt.Sprintf("ir: ContextOffset of %v operand", o.Kind))
	}

	switch o.Slot {
	case CounterSlot:
		return state.GetCounterOffset()
	case CallAddressSlot:
		return state.GetCallAddressOffset()
	case CallCounterSlot:
		panic("ir: call counters have no context offset")
	default:
		return state.GetRegisterOffset(o.Reg)
	}
}

// IsConstant reports whether o is a constant.
func (o *Operand) IsConstant() bool {
	return o != nil && o.Kind == Constant
}

// IsLocal reports whether o is a local variable.
func (o *Operand) IsLocal() bool {
	return o != nil && o.Kind == LocalVariable
}

// IsVersion reports whether o is an SSA version of a register.
func (o *Operand) IsVersion() bool {
	return o.IsLocal() && o.Version > 0
}

// SameConstant reports whether o and x are constants with equal type and
// bits.
func (o *Operand) SameConstant(x *Operand) bool {
	return o.IsConstant() && x.IsConstant() && o.Type == x.Type && o.Value == x.Value
}

// AsInt64 returns the constant value sign-extended from its type width.
func (o *Operand) AsInt64() int64 {
	if o.Type == I32 {
		return int64(int32(o.Value))
	}

	return int64(o.Value)
}

func (o *Operand) addUse(op *Operation) {
	if o.IsLocal() {
		o.Uses = append(o.Uses, op)
	}
}

func (o *Operand) removeUse(op *Operation) {
	if o.IsLocal() {
		o.Uses = removeOne(o.Uses, op)
	}
}

func (o *Operand) addAssignment(op *Operation) {
	if o.IsLocal() {
		o.Assignments = append(o.Assignments, op)
	}
}

func (o *Operand) removeAssignment(op *Operation) {
	if o.IsLocal() {
		o.Assignments = removeOne(o.Assignments, op)
	}
}

func removeOne(list []*Operation, op *Operation) []*Operation {
	for i, x := range list {
		if x == op {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}

// String formats operands that need no naming context. Locals print as their
// register version or as a pointer-free placeholder; use a Printer for
// stable local names.
func (o *Operand) String() string {
	if o == nil {
		return "<nil>"
	}

	switch o.Kind {
	case Constant:
		if o.Type == FP64 {
			return fmt.Sprintf("%g", math.Float64frombits(o.Value))
		}

		return fmt.Sprintf("%#x", o.Value)
	case Register:
		return o.Reg.String()
	case LocalVariable:
		if o.IsVersion() {
			return fmt.Sprintf("%v.%d", o.Reg, o.Version)
		}

		return "%" + o.Type.String()
	case Label:
		return fmt.Sprintf("L%d", o.Label)
	case Attribute:
		switch o.Slot {
		case CounterSlot:
			return "[counter]"
		case CallAddressSlot:
			return "[calladdr]"
		case CallCounterSlot:
			return "[callcount]"
		default:
			return "[" + o.Reg.String() + "]"
		}
	case Undefined:
		return "undef"
	default:
		return o.Kind.String()
	}
}
