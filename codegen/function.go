package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/state"
)

type opcode uint8

const (
	opEval opcode = iota
	opLoadContext
	opStoreContext
	opLoad
	opStore
	opTrap
	opCheckSync
	opCountCall
	opRejit
	opJump
	opJumpIf
	opParallelCopy
	opReturn
)

var opcodeNames = [...]string{
	opEval:         "eval",
	opLoadContext:  "ldctx",
	opStoreContext: "stctx",
	opLoad:         "ld",
	opStore:        "st",
	opTrap:         "trap",
	opCheckSync:    "sync",
	opCountCall:    "count",
	opRejit:        "rejit",
	opJump:         "jmp",
	opJumpIf:       "jnz",
	opParallelCopy: "pcopy",
	opReturn:       "ret",
}

// arg is an instruction operand: a frame slot or an immediate.
type arg struct {
	slot  int
	imm   uint64
	isImm bool
}

func (a arg) String() string {
	if a.isImm {
		return fmt.Sprintf("#%#x", a.imm)
	}

	return fmt.Sprintf("s%d", a.slot)
}

type move struct {
	dst int
	src arg
}

type instr struct {
	op   opcode
	inst ir.Instruction
	t    ir.OperandType

	dst  int
	a, b arg
	srcs [3]arg
	n    int

	offset int
	size   int
	target int
	moves  []move

	counter *ir.CallCounter
}

func (in instr) String() string {
	switch in.op {
	case opEval:
		s := fmt.Sprintf("s%d = %v.%v", in.dst, in.inst, in.t)
		for i := 0; i < in.n; i++ {
			s += " " + in.srcs[i].String()
		}

		return s
	case opLoadContext:
		return fmt.Sprintf("s%d = ldctx%d [%d]", in.dst, in.size*8, in.offset)
	case opStoreContext:
		return fmt.Sprintf("stctx%d [%d], %v", in.size*8, in.offset, in.a)
	case opLoad:
		return fmt.Sprintf("s%d = ld%d %v", in.dst, in.size*8, in.a)
	case opStore:
		return fmt.Sprintf("st%d %v, %v", in.size*8, in.a, in.b)
	case opTrap:
		return fmt.Sprintf("trap %v %v, %v", in.inst, in.a, in.b)
	case opCheckSync:
		return fmt.Sprintf("s%d = sync", in.dst)
	case opCountCall:
		return fmt.Sprintf("s%d = count", in.dst)
	case opRejit:
		return fmt.Sprintf("rejit %v", in.a)
	case opJump:
		return fmt.Sprintf("jmp %d", in.target)
	case opJumpIf:
		return fmt.Sprintf("jnz %v, %d", in.a, in.target)
	case opParallelCopy:
		s := "pcopy"
		for _, m := range in.moves {
			s += fmt.Sprintf(" s%d<-%v", m.dst, m.src)
		}

		return s
	case opReturn:
		return fmt.Sprintf("ret %v", in.a)
	default:
		return opcodeNames[in.op]
	}
}

// Function is a compiled guest function.
type Function struct {
	code  []instr
	slots int
	mem   *memory.Manager
}

// Execute runs the function against ec's register block and returns the
// next guest address. Guest memory faults panic with *memory.AccessError.
func (f *Function) Execute(ec *state.ExecutionContext) uint64 {
	frame := make([]uint64, f.slots)
	regs := ec.Native().Memory()

	val := func(a arg) uint64 {
		if a.isImm {
			return a.imm
		}

		return frame[a.slot]
	}

	var tmp []uint64

	for pc := 0; ; {
		in := &f.code[pc]
		pc++

		switch in.op {
		case opEval:
			var srcs [3]uint64
			for i := 0; i < in.n; i++ {
				srcs[i] = val(in.srcs[i])
			}

			frame[in.dst], _ = ir.EvalInteger(in.inst, in.t, srcs[:in.n]...)
		case opLoadContext:
			if in.size == 8 {
				frame[in.dst] = binary.LittleEndian.Uint64(regs[in.offset:])
			} else {
				frame[in.dst] = uint64(binary.LittleEndian.Uint32(regs[in.offset:]))
			}
		case opStoreContext:
			if in.size == 8 {
				binary.LittleEndian.PutUint64(regs[in.offset:], val(in.a))
			} else {
				binary.LittleEndian.PutUint32(regs[in.offset:], uint32(val(in.a)))
			}
		case opLoad:
			frame[in.dst] = f.mem.Load(val(in.a), in.size)
		case opStore:
			f.mem.Store(val(in.a), in.size, val(in.b))
		case opTrap:
			address, payload := val(in.a), uint32(val(in.b))

			switch in.inst {
			case ir.Break:
				ec.OnBreak(address, payload)
			case ir.SupervisorCall:
				ec.OnSupervisorCall(address, payload)
			default:
				ec.OnUndefined(address, payload)
			}
		case opCheckSync:
			ec.CheckInterrupt()

			frame[in.dst] = 0
			if ec.Running() {
				frame[in.dst] = 1
			}
		case opCountCall:
			frame[in.dst] = uint64(in.counter.Increment())
		case opRejit:
			ec.OnRejit(val(in.a))
		case opJump:
			pc = in.target
		case opJumpIf:
			if val(in.a) != 0 {
				pc = in.target
			}
		case opParallelCopy:
			tmp = tmp[:0]
			for _, m := range in.moves {
				tmp = append(tmp, val(m.src))
			}

			for i, m := range in.moves {
				frame[m.dst] = tmp[i]
			}
		case opReturn:
			return val(in.a)
		}
	}
}
