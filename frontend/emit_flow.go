package frontend

import (
	"github.com/sarchlab/a64jit/insts"
	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/state"
	"github.com/sarchlab/a64jit/translation"
)

func (g *emitter) emitBranch(pc uint64, inst *insts.Instruction) {
	target := uint64(int64(pc) + inst.BranchOffset)

	switch inst.Op {
	case insts.OpB:
		g.jump(pc, target)
	case insts.OpBL:
		g.writeReg(insts.LinkRegister, false, ir.ConstU64(pc+4))
		g.exit(target)
	case insts.OpBCond:
		if inst.Cond == insts.CondAL || inst.Cond == insts.CondNV {
			g.jump(pc, target)
			return
		}

		g.branchIf(pc, target, g.condition(inst.Cond))
	case insts.OpCBZ, insts.OpCBNZ:
		v := g.readReg(inst.Rd, inst.Is64Bit, false)

		cmp := ir.Equal
		if inst.Op == insts.OpCBNZ {
			cmp = ir.NotEqual
		}

		g.branchIf(pc, target, g.ICompare(v, ir.Const(0, v.Type), cmp))
	case insts.OpBR, insts.OpRET:
		g.Return(g.readReg(inst.Rn, true, false))
	case insts.OpBLR:
		dest := g.Copy(ir.Local(ir.I64), g.readReg(inst.Rn, true, false))
		g.writeReg(insts.LinkRegister, false, ir.ConstU64(pc+4))
		g.Return(dest)
	}
}

// jump branches to target within the function or leaves it.
func (g *emitter) jump(pc, target uint64) {
	if g.sync && target <= pc {
		translation.EmitSynchronization(g.Emitter)
	}

	if g.fn.contains(target) {
		g.Branch(g.GetLabel(target))
		return
	}

	g.exit(target)
}

// branchIf branches to target when cond is non-zero and falls through
// otherwise.
func (g *emitter) branchIf(pc, target uint64, cond *ir.Operand) {
	if g.sync && target <= pc {
		translation.EmitSynchronization(g.Emitter)
	}

	if g.fn.contains(target) {
		g.BranchIfTrue(g.GetLabel(target), cond)
		return
	}

	skip := g.NewLabel()
	g.BranchIfFalse(skip, cond)
	g.exit(target)
	g.MarkLabel(skip)
}

// condition evaluates an A64 condition code against the NZCV flags,
// yielding 0 or 1.
func (g *emitter) condition(c insts.Cond) *ir.Operand {
	notZero := func() *ir.Operand {
		return g.ICompareEqual(g.GetFlag(state.ZFlag), ir.ConstI32(0))
	}
	nEqualsV := func() *ir.Operand {
		return g.ICompareEqual(g.GetFlag(state.NFlag), g.GetFlag(state.VFlag))
	}

	var res *ir.Operand

	switch c &^ 1 {
	case insts.CondEQ:
		res = g.GetFlag(state.ZFlag)
	case insts.CondCS:
		res = g.GetFlag(state.CFlag)
	case insts.CondMI:
		res = g.GetFlag(state.NFlag)
	case insts.CondVS:
		res = g.GetFlag(state.VFlag)
	case insts.CondHI:
		res = g.Binary(ir.BitwiseAnd, g.GetFlag(state.CFlag), notZero())
	case insts.CondGE:
		res = nEqualsV()
	case insts.CondGT:
		res = g.Binary(ir.BitwiseAnd, notZero(), nEqualsV())
	default:
		return ir.ConstI32(1)
	}

	if c&1 != 0 {
		res = g.Binary(ir.BitwiseExclusiveOr, res, ir.ConstI32(1))
	}

	return res
}
