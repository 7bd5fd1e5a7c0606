// Package translation turns guest functions into compiled units: it owns the
// IR emitter, CFG construction, dominance, SSA conversion, the translation
// cache and the dispatch loop.
package translation

import (
	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/state"
)

// Emitter is the interface a front end uses to build IR for one guest
// function. Operations are appended in program order to a flat list that
// BuildCFG later partitions into blocks.
type Emitter struct {
	arena *ir.Arena
	ops   []*ir.Operation

	labels    map[uint64]ir.LabelID
	numLabels int
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		arena:  ir.NewArena(),
		labels: map[uint64]ir.LabelID{},
	}
}

// Arena returns the arena operations are allocated from.
func (e *Emitter) Arena() *ir.Arena {
	return e.arena
}

// Operations returns the emitted operations in program order.
func (e *Emitter) Operations() []*ir.Operation {
	return e.ops
}

// Add appends an operation and returns dest.
func (e *Emitter) Add(inst ir.Instruction, dest *ir.Operand, sources ...*ir.Operand) *ir.Operand {
	e.ops = append(e.ops, e.arena.New(inst, dest, sources...))

	return dest
}

// MarkLabel starts a new block at label.
func (e *Emitter) MarkLabel(label *ir.Operand) {
	e.Add(ir.MarkLabel, nil, label)
}

// GetLabel returns the label for a guest address. Repeated calls for the
// same address return the same handle.
func (e *Emitter) GetLabel(address uint64) *ir.Operand {
	id, ok := e.labels[address]
	if !ok {
		id = e.newLabelID()
		e.labels[address] = id
	}

	return ir.LabelOperand(id)
}

// HasLabel reports whether GetLabel was called for address.
func (e *Emitter) HasLabel(address uint64) bool {
	_, ok := e.labels[address]
	return ok
}

// NewLabel returns a label not tied to any guest address.
func (e *Emitter) NewLabel() *ir.Operand {
	return ir.LabelOperand(e.newLabelID())
}

func (e *Emitter) newLabelID() ir.LabelID {
	id := ir.LabelID(e.numLabels)
	e.numLabels++

	return id
}

// Binary emits a two-source operation into a new local of a's type.
func (e *Emitter) Binary(inst ir.Instruction, a, b *ir.Operand) *ir.Operand {
	return e.Add(inst, ir.Local(a.Type), a, b)
}

// Unary emits a one-source operation of type t.
func (e *Emitter) Unary(inst ir.Instruction, t ir.OperandType, a *ir.Operand) *ir.Operand {
	return e.Add(inst, ir.Local(t), a)
}

// ICompare yields 1 when a cmp b holds and 0 otherwise.
func (e *Emitter) ICompare(a, b *ir.Operand, cmp ir.Comparison) *ir.Operand {
	return e.Add(ir.Compare, ir.Local(ir.I32), a, b, ir.Const(uint64(cmp), ir.I32))
}

// ICompareEqual is ICompare with Equal.
func (e *Emitter) ICompareEqual(a, b *ir.Operand) *ir.Operand {
	return e.ICompare(a, b, ir.Equal)
}

// ConditionalSelect yields a when cond is non-zero and b otherwise.
func (e *Emitter) ConditionalSelect(cond, a, b *ir.Operand) *ir.Operand {
	return e.Add(ir.ConditionalSelect, ir.Local(a.Type), cond, a, b)
}

// Copy assigns src to dest.
func (e *Emitter) Copy(dest, src *ir.Operand) *ir.Operand {
	return e.Add(ir.Copy, dest, src)
}

// Load reads guest memory with one of the Load opcodes.
func (e *Emitter) Load(inst ir.Instruction, t ir.OperandType, address *ir.Operand) *ir.Operand {
	return e.Add(inst, ir.Local(t), address)
}

// Store writes value to guest memory with one of the Store opcodes.
func (e *Emitter) Store(inst ir.Instruction, address, value *ir.Operand) {
	e.Add(inst, nil, address, value)
}

// GetIntRegister reads integer register index as a 64-bit value.
func (e *Emitter) GetIntRegister(index int) *ir.Operand {
	return ir.Reg(state.IntReg(index), ir.I64)
}

// SetIntRegister writes integer register index.
func (e *Emitter) SetIntRegister(index int, value *ir.Operand) {
	if value.Type == ir.I32 {
		value = e.Unary(ir.ZeroExtend32, ir.I64, value)
	}

	e.Copy(ir.Reg(state.IntReg(index), ir.I64), value)
}

// GetFlag reads a PSTATE flag as 0 or 1.
func (e *Emitter) GetFlag(flag state.PState) *ir.Operand {
	return ir.Reg(state.FlagReg(flag), ir.I32)
}

// SetFlag writes a PSTATE flag. value must be 0 or 1.
func (e *Emitter) SetFlag(flag state.PState, value *ir.Operand) {
	e.Copy(ir.Reg(state.FlagReg(flag), ir.I32), value)
}

// Branch jumps to label.
func (e *Emitter) Branch(label *ir.Operand) {
	e.Add(ir.Branch, nil, label)
}

// BranchIfTrue jumps to label when cond is non-zero.
func (e *Emitter) BranchIfTrue(label, cond *ir.Operand) {
	e.Add(ir.BranchIf, nil, cond, label)
}

// BranchIfFalse jumps to label when cond is zero.
func (e *Emitter) BranchIfFalse(label, cond *ir.Operand) {
	zero := ir.Const(0, cond.Type)
	e.BranchIfTrue(label, e.ICompareEqual(cond, zero))
}

// StoreToContext writes every register the function defines back to the
// execution context.
func (e *Emitter) StoreToContext() {
	e.Add(ir.StoreToContext, nil)
}

// LoadFromContext reloads every register the function uses from the
// execution context.
func (e *Emitter) LoadFromContext() {
	e.Add(ir.LoadFromContext, nil)
}

// Return leaves the function with value as the next guest address.
func (e *Emitter) Return(value *ir.Operand) {
	e.StoreToContext()
	e.Add(ir.Return, nil, value)
}

// Trap raises a guest trap through the execution context. Registers are
// written back before and reloaded after so the host sees and may change
// the architectural state.
func (e *Emitter) Trap(inst ir.Instruction, address uint64, payload uint32) {
	e.StoreToContext()
	e.Add(inst, nil, ir.ConstU64(address), ir.Const(uint64(payload), ir.I32))
	e.LoadFromContext()
}

// LoadCounter reads the re-arm counter.
func (e *Emitter) LoadCounter() *ir.Operand {
	return e.Add(ir.LoadContext, ir.Local(ir.I32), ir.CounterAttribute())
}

// StoreCounter writes the re-arm counter.
func (e *Emitter) StoreCounter(value *ir.Operand) {
	e.Add(ir.StoreContext, nil, ir.CounterAttribute(), value)
}

// CheckSynchronization delivers pending interrupts and yields 1 while the
// context is still running.
func (e *Emitter) CheckSynchronization() *ir.Operand {
	e.StoreToContext()
	running := e.Add(ir.CheckSynchronization, ir.Local(ir.I32))
	e.LoadFromContext()

	return running
}

// MinCallsForRejit is the call count at which a low-tier function is queued
// for optimized retranslation.
const MinCallsForRejit = 100

// EmitRejitCheck counts calls into the function at address and asks the
// host to retranslate it once MinCallsForRejit calls were counted. It
// returns the counter the compiled unit updates.
func EmitRejitCheck(e *Emitter, address uint64) *ir.CallCounter {
	counter := &ir.CallCounter{}

	lblEnd := e.NewLabel()

	count := e.Add(ir.CountCall, ir.Local(ir.I32), ir.CallCounterAttribute(counter))
	e.BranchIfTrue(lblEnd, e.ICompare(count, ir.ConstI32(MinCallsForRejit), ir.NotEqual))

	e.Add(ir.EnqueueForRejit, nil, ir.ConstU64(address))

	e.MarkLabel(lblEnd)

	return counter
}

// EmitSynchronization emits the counter check: the counter is decremented
// while non-zero; at zero the host is asked to deliver interrupts and the
// function returns 0 if the context stopped running.
func EmitSynchronization(e *Emitter) {
	lblNonZero := e.NewLabel()
	lblExit := e.NewLabel()

	count := e.LoadCounter()
	e.BranchIfTrue(lblNonZero, count)

	running := e.CheckSynchronization()
	e.BranchIfTrue(lblExit, running)

	e.Return(ir.ConstU64(0))

	e.MarkLabel(lblNonZero)
	e.StoreCounter(e.Binary(ir.Subtract, count, ir.ConstI32(1)))

	e.MarkLabel(lblExit)
}
