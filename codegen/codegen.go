// Package codegen is the reference backend. It lowers an optimized SSA
// graph into a linear program over a frame of value slots, resolving every
// context access to a fixed register block offset at compile time.
package codegen

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/translation"
)

// ErrUnsupported is returned for IR the backend cannot lower.
var ErrUnsupported = errors.New("unsupported by backend")

// Compiler lowers graphs into Functions bound to one guest address space.
type Compiler struct {
	mem *memory.Manager
}

// NewCompiler returns a compiler whose functions access mem.
func NewCompiler(mem *memory.Manager) *Compiler {
	return &Compiler{mem: mem}
}

// Compile implements translation.Backend.
func (c *Compiler) Compile(ctx context.Context, g *ir.ControlFlowGraph) (translation.Function, error) {
	l := &lowering{
		g:        g,
		slots:    map[*ir.Operand]int{},
		blockPC:  map[*ir.BasicBlock]int{},
		edgeJmps: map[edge][]int{},
	}

	if err := l.lower(); err != nil {
		return nil, err
	}

	fn := &Function{
		code:  l.code,
		slots: len(l.slots),
		mem:   c.mem,
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("codegen") {
		tr.Printw("compiled", "instrs", len(fn.code), "slots", fn.slots)
	}

	return fn, nil
}

type edge struct {
	from, to *ir.BasicBlock
}

type lowering struct {
	g    *ir.ControlFlowGraph
	code []instr

	slots   map[*ir.Operand]int
	blockPC map[*ir.BasicBlock]int

	// edgeJmps lists the jump instructions that must be patched to the
	// start of an edge's phi stub.
	edgeJmps map[edge][]int
}

func (l *lowering) lower() error {
	if l.g.Entry == nil {
		return errors.Wrap(ErrUnsupported, "empty graph")
	}

	order := l.g.ReversePostOrder()

	for _, b := range order {
		l.blockPC[b] = len(l.code)

		if err := l.lowerBlock(b); err != nil {
			return errors.Wrap(err, "block b%d", b.Index)
		}
	}

	// Phi stubs go after all blocks; each ends with a jump to its target.
	for _, b := range order {
		for _, s := range b.Successors() {
			e := edge{from: b, to: s}

			stub := l.lowerEdge(e)

			for _, at := range l.edgeJmps[e] {
				l.code[at].target = stub
			}
		}
	}

	return nil
}

func (l *lowering) lowerBlock(b *ir.BasicBlock) error {
	for op := b.Operations.First(); op != nil; op = b.Operations.Next(op) {
		if op.Inst == ir.Phi {
			// Resolved on incoming edges.
			l.slot(op.Destination())
			continue
		}

		if err := l.lowerOperation(b, op); err != nil {
			return errors.Wrap(err, "%v", op)
		}
	}

	if b.EndsUnconditionally() {
		return nil
	}

	if b.Next == nil {
		return errors.Wrap(ErrUnsupported, "block falls off the end of the function")
	}

	l.jumpEdge(opJump, arg{}, edge{from: b, to: b.Next})

	return nil
}

func (l *lowering) lowerEdge(e edge) int {
	start := len(l.code)

	var moves []move

	for _, phi := range e.to.Phis() {
		i := phi.PhiSourceFrom(e.from)
		if i < 0 {
			continue
		}

		moves = append(moves, move{dst: l.slot(phi.Destination()), src: l.arg(phi.Source(i))})
	}

	if len(moves) != 0 {
		l.emit(instr{op: opParallelCopy, moves: moves})
	}

	l.emit(instr{op: opJump, target: l.blockPC[e.to]})

	return start
}

func (l *lowering) jumpEdge(op opcode, cond arg, e edge) {
	l.edgeJmps[e] = append(l.edgeJmps[e], len(l.code))
	l.emit(instr{op: op, a: cond})
}

func (l *lowering) emit(in instr) {
	l.code = append(l.code, in)
}

// slot returns the frame slot of a local, allocating one on first sight.
func (l *lowering) slot(o *ir.Operand) int {
	s, ok := l.slots[o]
	if !ok {
		s = len(l.slots)
		l.slots[o] = s
	}

	return s
}

func (l *lowering) arg(o *ir.Operand) arg {
	switch o.Kind {
	case ir.Constant:
		return arg{imm: o.Value, isImm: true}
	case ir.Undefined:
		return arg{isImm: true}
	default:
		return arg{slot: l.slot(o)}
	}
}

func (l *lowering) lowerOperation(b *ir.BasicBlock, op *ir.Operation) error {
	for _, s := range op.Sources() {
		switch s.Kind {
		case ir.Register, ir.Label:
			return errors.Wrap(ErrUnsupported, "%v operand", s.Kind)
		case ir.LocalVariable, ir.Constant, ir.Undefined:
			if s.Type == ir.V128 || s.Type == ir.FP32 || s.Type == ir.FP64 {
				return errors.Wrap(ErrUnsupported, "%v values", s.Type)
			}
		}
	}

	if d := op.Destination(); d != nil && !d.Type.IsInteger() {
		return errors.Wrap(ErrUnsupported, "%v values", d.Type)
	}

	switch op.Inst {
	case ir.Nop:
		return nil
	case ir.LoadContext:
		attr := op.Source(0)
		l.emit(instr{op: opLoadContext, dst: l.slot(op.Destination()), offset: attr.ContextOffset(), size: contextSize(attr)})
	case ir.StoreContext:
		attr := op.Source(0)
		l.emit(instr{op: opStoreContext, a: l.arg(op.Source(1)), offset: attr.ContextOffset(), size: contextSize(attr)})
	case ir.Load8, ir.Load16, ir.Load32, ir.Load64:
		l.emit(instr{op: opLoad, dst: l.slot(op.Destination()), a: l.arg(op.Source(0)), size: accessSize(op.Inst)})
	case ir.Store8, ir.Store16, ir.Store32, ir.Store64:
		l.emit(instr{op: opStore, a: l.arg(op.Source(0)), b: l.arg(op.Source(1)), size: accessSize(op.Inst)})
	case ir.Break, ir.SupervisorCall, ir.UndefinedInstruction:
		l.emit(instr{op: opTrap, inst: op.Inst, a: l.arg(op.Source(0)), b: l.arg(op.Source(1))})
	case ir.CheckSynchronization:
		l.emit(instr{op: opCheckSync, dst: l.slot(op.Destination())})
	case ir.CountCall:
		l.emit(instr{op: opCountCall, dst: l.slot(op.Destination()), counter: op.Source(0).Counter})
	case ir.EnqueueForRejit:
		l.emit(instr{op: opRejit, a: l.arg(op.Source(0))})
	case ir.Branch:
		l.jumpEdge(opJump, arg{}, edge{from: b, to: b.Branch})
	case ir.BranchIf:
		l.jumpEdge(opJumpIf, l.arg(op.Source(0)), edge{from: b, to: b.Branch})
	case ir.Return:
		l.emit(instr{op: opReturn, a: l.arg(op.Source(0))})
	default:
		if !op.Inst.IsPure() {
			return errors.Wrap(ErrUnsupported, "instruction %v", op.Inst)
		}

		return l.lowerPure(op)
	}

	return nil
}

func (l *lowering) lowerPure(op *ir.Operation) error {
	if op.SourcesCount() > 3 {
		return errors.Wrap(ErrUnsupported, "%d sources", op.SourcesCount())
	}

	t := op.Destination().Type
	if op.Inst == ir.Compare {
		t = op.Source(0).Type
	}

	in := instr{op: opEval, inst: op.Inst, t: t, dst: l.slot(op.Destination()), n: op.SourcesCount()}

	for i, s := range op.Sources() {
		in.srcs[i] = l.arg(s)
	}

	l.emit(in)

	return nil
}

func contextSize(attr *ir.Operand) int {
	if attr.Slot != ir.RegisterSlot {
		return 4
	}

	return attr.Type.Bits() / 8
}

func accessSize(inst ir.Instruction) int {
	switch inst {
	case ir.Load8, ir.Store8:
		return 1
	case ir.Load16, ir.Store16:
		return 2
	case ir.Load32, ir.Store32:
		return 4
	default:
		return 8
	}
}

// Disassemble formats the lowered program, one instruction per line.
func (f *Function) Disassemble() string {
	var out []byte

	for pc, in := range f.code {
		out = fmt.Appendf(out, "%4d  %v\n", pc, in)
	}

	return string(out)
}
