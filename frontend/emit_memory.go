package frontend

import (
	"github.com/sarchlab/a64jit/insts"
	"github.com/sarchlab/a64jit/ir"
)

var (
	loadBySize  = map[uint8]ir.Instruction{1: ir.Load8, 2: ir.Load16, 4: ir.Load32, 8: ir.Load64}
	storeBySize = map[uint8]ir.Instruction{1: ir.Store8, 2: ir.Store16, 4: ir.Store32, 8: ir.Store64}
)

// emitLoadStore handles the unsigned-offset LDR and STR forms. The base
// register 31 is SP.
func (g *emitter) emitLoadStore(inst *insts.Instruction) {
	address := g.readReg(inst.Rn, true, true)
	if inst.Imm != 0 {
		address = g.Binary(ir.Add, address, ir.ConstU64(inst.Imm))
	}

	if inst.Op == insts.OpSTR {
		value := g.readReg(inst.Rd, inst.Size == 8, false)
		g.Store(storeBySize[inst.Size], address, value)

		return
	}

	if inst.Signed {
		value := g.Load(ir.Load32, ir.I32, address)
		g.writeReg(inst.Rd, false, g.Unary(ir.SignExtend32, ir.I64, value))

		return
	}

	value := g.Load(loadBySize[inst.Size], operandType(inst.Size == 8), address)
	g.writeReg(inst.Rd, false, value)
}
