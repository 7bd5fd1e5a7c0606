package frontend

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/insts"
	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/translation"
)

// emitter translates one decoded instruction at a time.
type emitter struct {
	*translation.Emitter

	fn    *guestFunction
	sync  bool
	trace tlog.Span
}

func (g *emitter) emitInstruction(pc uint64, inst *insts.Instruction) {
	switch inst.Format {
	case insts.FormatDPImm:
		g.emitAddSubImm(inst)
	case insts.FormatDPReg:
		if inst.Op == insts.OpADD || inst.Op == insts.OpSUB {
			g.emitAddSubReg(inst)
		} else {
			g.emitLogicalReg(inst)
		}
	case insts.FormatMoveWide:
		g.emitMoveWide(inst)
	case insts.FormatDP3Src:
		g.emitMultiplyAdd(inst)
	case insts.FormatLoadStore:
		g.emitLoadStore(inst)
	case insts.FormatBranch, insts.FormatBranchCond, insts.FormatCompareBranch, insts.FormatBranchReg:
		g.emitBranch(pc, inst)
	case insts.FormatException:
		if inst.Op == insts.OpSVC {
			g.Trap(ir.SupervisorCall, pc, uint32(inst.Imm))
		} else {
			g.Trap(ir.Break, pc, uint32(inst.Imm))
		}

		g.exit(pc + 4)
	case insts.FormatSystem:
		// NOP
	default:
		g.Trap(ir.UndefinedInstruction, pc, inst.Word)
		g.exit(pc + 4)
	}

	if !endsFunctionPath(inst) && !g.fn.contains(pc+4) {
		g.exit(pc + 4)
	}
}

// exit leaves the function, continuing at target.
func (g *emitter) exit(target uint64) {
	if g.trace.If("frontend") {
		g.trace.Printw("exit", "target", target, "from", loc.Caller(1))
	}

	g.Return(ir.ConstU64(target))
}

func operandType(is64 bool) ir.OperandType {
	if is64 {
		return ir.I64
	}

	return ir.I32
}

// readReg reads register n at the instruction width. Register 31 is SP
// when sp is set and the zero register otherwise.
func (g *emitter) readReg(n uint8, is64, sp bool) *ir.Operand {
	t := operandType(is64)

	if n == insts.RegZR && !sp {
		return ir.Const(0, t)
	}

	v := g.GetIntRegister(int(n))
	if !is64 {
		v = g.Unary(ir.ConvertI64ToI32, ir.I32, v)
	}

	return v
}

// writeReg writes register n, zero-extending 32-bit values. Writes to the
// zero register are dropped.
func (g *emitter) writeReg(n uint8, sp bool, v *ir.Operand) {
	if n == insts.RegZR && !sp {
		return
	}

	g.SetIntRegister(int(n), v)
}
