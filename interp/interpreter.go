package interp

import (
	"tlog.app/go/errors"

	"github.com/sarchlab/a64jit/insts"
	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/state"
)

// ErrStepLimit is returned by Run when the instruction budget is spent.
var ErrStepLimit = errors.New("step limit reached")

// Interpreter executes guest instructions from a memory.Manager.
type Interpreter struct {
	memory  *memory.Manager
	decoder *insts.Decoder

	instructionCount uint64
}

// New returns an interpreter fetching from and accessing mem.
func New(mem *memory.Manager) *Interpreter {
	return &Interpreter{
		memory:  mem,
		decoder: insts.NewDecoder(),
	}
}

// InstructionCount returns the number of instructions executed so far.
func (it *Interpreter) InstructionCount() uint64 {
	return it.instructionCount
}

// Step executes the instruction at pc and returns the address of the next
// one. Traps are raised through ec and continue after the trapping
// instruction.
func (it *Interpreter) Step(ec *state.ExecutionContext, pc uint64) (uint64, error) {
	word, err := it.memory.Fetch(pc)
	if err != nil {
		return 0, errors.Wrap(err, "fetch 0x%x", pc)
	}

	inst := it.decoder.Decode(word)

	next, err := it.execute(ec, pc, inst)
	if err != nil {
		return 0, errors.Wrap(err, "execute %v at 0x%x", inst.Op, pc)
	}

	it.instructionCount++

	return next, nil
}

// Run steps from pc until the context stops running, a branch reaches
// address 0 or limit instructions have executed. It returns the address
// execution stopped at.
func (it *Interpreter) Run(ec *state.ExecutionContext, pc uint64, limit int) (uint64, error) {
	for i := 0; i < limit; i++ {
		if !ec.Running() || pc == 0 {
			return pc, nil
		}

		next, err := it.Step(ec, pc)
		if err != nil {
			return pc, err
		}

		pc = next
	}

	return pc, ErrStepLimit
}

func (it *Interpreter) execute(ec *state.ExecutionContext, pc uint64, inst *insts.Instruction) (uint64, error) {
	regFile := NewRegFile(ec)
	alu := NewALU(regFile)
	w := widthOf(inst.Is64Bit)

	switch inst.Format {
	case insts.FormatDPImm:
		op1 := regFile.ReadRegOrSP(inst.Rn)
		imm := inst.Imm << inst.Shift

		var result uint64
		if inst.Op == insts.OpADD {
			result = alu.Add(w, op1, imm, inst.SetFlags)
		} else {
			result = alu.Sub(w, op1, imm, inst.SetFlags)
		}

		if inst.SetFlags {
			regFile.WriteReg(inst.Rd, result)
		} else {
			regFile.WriteRegOrSP(inst.Rd, result)
		}
	case insts.FormatDPReg:
		op1 := regFile.ReadReg(inst.Rn)
		op2 := applyShift(w, regFile.ReadReg(inst.Rm), inst.ShiftType, inst.ShiftAmount)

		var result uint64

		switch inst.Op {
		case insts.OpADD:
			result = alu.Add(w, op1, op2, inst.SetFlags)
		case insts.OpSUB:
			result = alu.Sub(w, op1, op2, inst.SetFlags)
		default:
			if inst.InvertRm {
				op2 = ^op2
			}

			result = alu.Logic(w, inst.Op, op1, op2, inst.SetFlags)
		}

		regFile.WriteReg(inst.Rd, result)
	case insts.FormatMoveWide:
		executeMoveWide(regFile, w, inst)
	case insts.FormatDP3Src:
		prod := regFile.ReadReg(inst.Rn) * regFile.ReadReg(inst.Rm)
		acc := regFile.ReadReg(inst.Ra)

		if inst.Op == insts.OpMADD {
			regFile.WriteReg(inst.Rd, (acc+prod)&w.mask)
		} else {
			regFile.WriteReg(inst.Rd, (acc-prod)&w.mask)
		}
	case insts.FormatLoadStore:
		if err := NewLoadStoreUnit(regFile, it.memory).Execute(inst); err != nil {
			return 0, err
		}
	case insts.FormatBranch, insts.FormatBranchCond, insts.FormatCompareBranch, insts.FormatBranchReg:
		return executeBranch(regFile, w, pc, inst), nil
	case insts.FormatException:
		if inst.Op == insts.OpSVC {
			ec.OnSupervisorCall(pc, uint32(inst.Imm))
		} else {
			ec.OnBreak(pc, uint32(inst.Imm))
		}
	case insts.FormatSystem:
	default:
		ec.OnUndefined(pc, inst.Word)
	}

	return pc + 4, nil
}

func executeMoveWide(regFile *RegFile, w width, inst *insts.Instruction) {
	imm := inst.Imm << inst.Shift

	switch inst.Op {
	case insts.OpMOVZ:
		regFile.WriteReg(inst.Rd, imm)
	case insts.OpMOVN:
		regFile.WriteReg(inst.Rd, ^imm&w.mask)
	case insts.OpMOVK:
		mask := uint64(0xFFFF) << inst.Shift
		old := regFile.ReadReg(inst.Rd)
		regFile.WriteReg(inst.Rd, ((old&^mask)|imm)&w.mask)
	}
}

func executeBranch(regFile *RegFile, w width, pc uint64, inst *insts.Instruction) uint64 {
	target := uint64(int64(pc) + inst.BranchOffset)

	switch inst.Op {
	case insts.OpB:
		return target
	case insts.OpBL:
		regFile.WriteReg(insts.LinkRegister, pc+4)
		return target
	case insts.OpBCond:
		if CheckCondition(regFile, inst.Cond) {
			return target
		}
	case insts.OpCBZ, insts.OpCBNZ:
		zero := regFile.ReadReg(inst.Rd)&w.mask == 0
		if zero == (inst.Op == insts.OpCBZ) {
			return target
		}
	case insts.OpBR, insts.OpRET:
		return regFile.ReadReg(inst.Rn)
	case insts.OpBLR:
		// Read the target first in case Rn is the link register.
		dest := regFile.ReadReg(inst.Rn)
		regFile.WriteReg(insts.LinkRegister, pc+4)
		return dest
	}

	return pc + 4
}
