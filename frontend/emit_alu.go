package frontend

import (
	"github.com/sarchlab/a64jit/insts"
	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/state"
)

func (g *emitter) emitAddSubImm(inst *insts.Instruction) {
	t := operandType(inst.Is64Bit)

	op1 := g.readReg(inst.Rn, inst.Is64Bit, true)
	op2 := ir.Const(inst.Imm<<inst.Shift, t)

	res := g.addSub(inst.Op, op1, op2, inst.SetFlags)

	// The flag-setting forms write the zero register, the others SP.
	g.writeReg(inst.Rd, !inst.SetFlags, res)
}

func (g *emitter) emitAddSubReg(inst *insts.Instruction) {
	op1 := g.readReg(inst.Rn, inst.Is64Bit, false)
	op2 := g.shiftedRm(inst)

	res := g.addSub(inst.Op, op1, op2, inst.SetFlags)

	g.writeReg(inst.Rd, false, res)
}

func (g *emitter) emitLogicalReg(inst *insts.Instruction) {
	op1 := g.readReg(inst.Rn, inst.Is64Bit, false)
	op2 := g.shiftedRm(inst)

	if inst.InvertRm {
		op2 = g.Unary(ir.BitwiseNot, op2.Type, op2)
	}

	var res *ir.Operand

	switch inst.Op {
	case insts.OpAND:
		res = g.Binary(ir.BitwiseAnd, op1, op2)
	case insts.OpORR:
		res = g.Binary(ir.BitwiseOr, op1, op2)
	default:
		res = g.Binary(ir.BitwiseExclusiveOr, op1, op2)
	}

	if inst.SetFlags {
		g.setNZ(res)
		g.SetFlag(state.CFlag, ir.ConstI32(0))
		g.SetFlag(state.VFlag, ir.ConstI32(0))
	}

	g.writeReg(inst.Rd, false, res)
}

func (g *emitter) emitMoveWide(inst *insts.Instruction) {
	t := operandType(inst.Is64Bit)
	imm := inst.Imm << inst.Shift

	var res *ir.Operand

	switch inst.Op {
	case insts.OpMOVZ:
		res = ir.Const(imm, t)
	case insts.OpMOVN:
		res = ir.Const(^imm, t)
	default:
		old := g.readReg(inst.Rd, inst.Is64Bit, false)
		kept := g.Binary(ir.BitwiseAnd, old, ir.Const(^(uint64(0xFFFF) << inst.Shift), t))
		res = g.Binary(ir.BitwiseOr, kept, ir.Const(imm, t))
	}

	g.writeReg(inst.Rd, false, res)
}

func (g *emitter) emitMultiplyAdd(inst *insts.Instruction) {
	n := g.readReg(inst.Rn, inst.Is64Bit, false)
	m := g.readReg(inst.Rm, inst.Is64Bit, false)
	a := g.readReg(inst.Ra, inst.Is64Bit, false)

	prod := g.Binary(ir.Multiply, n, m)

	var res *ir.Operand
	if inst.Op == insts.OpMADD {
		res = g.Binary(ir.Add, a, prod)
	} else {
		res = g.Binary(ir.Subtract, a, prod)
	}

	g.writeReg(inst.Rd, false, res)
}

// shiftedRm reads Rm and applies the register shift.
func (g *emitter) shiftedRm(inst *insts.Instruction) *ir.Operand {
	v := g.readReg(inst.Rm, inst.Is64Bit, false)
	if inst.ShiftAmount == 0 {
		return v
	}

	amount := ir.Const(uint64(inst.ShiftAmount), v.Type)

	switch inst.ShiftType {
	case insts.ShiftLSL:
		return g.Binary(ir.ShiftLeft, v, amount)
	case insts.ShiftLSR:
		return g.Binary(ir.ShiftRightUI, v, amount)
	case insts.ShiftASR:
		return g.Binary(ir.ShiftRightSI, v, amount)
	default:
		return g.Binary(ir.RotateRight, v, amount)
	}
}

func (g *emitter) addSub(op insts.Op, op1, op2 *ir.Operand, setFlags bool) *ir.Operand {
	if op == insts.OpADD {
		res := g.Binary(ir.Add, op1, op2)

		if setFlags {
			g.setNZ(res)
			g.SetFlag(state.CFlag, g.ICompare(res, op1, ir.LessUI))
			g.SetFlag(state.VFlag, g.signBit(g.Binary(ir.BitwiseAnd,
				g.Binary(ir.BitwiseExclusiveOr, res, op1),
				g.Binary(ir.BitwiseExclusiveOr, res, op2))))
		}

		return res
	}

	res := g.Binary(ir.Subtract, op1, op2)

	if setFlags {
		g.setNZ(res)
		g.SetFlag(state.CFlag, g.ICompare(op1, op2, ir.GreaterOrEqualUI))
		g.SetFlag(state.VFlag, g.signBit(g.Binary(ir.BitwiseAnd,
			g.Binary(ir.BitwiseExclusiveOr, op1, op2),
			g.Binary(ir.BitwiseExclusiveOr, op1, res))))
	}

	return res
}

func (g *emitter) setNZ(res *ir.Operand) {
	g.SetFlag(state.NFlag, g.signBit(res))
	g.SetFlag(state.ZFlag, g.ICompareEqual(res, ir.Const(0, res.Type)))
}

// signBit yields the top bit of v as 0 or 1.
func (g *emitter) signBit(v *ir.Operand) *ir.Operand {
	return g.ICompare(v, ir.Const(0, v.Type), ir.Less)
}
