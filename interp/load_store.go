package interp

import (
	"tlog.app/go/errors"

	"github.com/sarchlab/a64jit/insts"
	"github.com/sarchlab/a64jit/memory"
)

// LoadStoreUnit implements the unsigned-offset LDR and STR forms.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *memory.Manager
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, mem *memory.Manager) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  mem,
	}
}

// Execute performs inst. The base register 31 is SP.
func (lsu *LoadStoreUnit) Execute(inst *insts.Instruction) error {
	addr := lsu.regFile.ReadRegOrSP(inst.Rn) + inst.Imm

	if inst.Op == insts.OpSTR {
		value := lsu.regFile.ReadReg(inst.Rd)

		var err error

		switch inst.Size {
		case 1:
			err = lsu.memory.WriteUint8(addr, uint8(value))
		case 2:
			err = lsu.memory.WriteUint16(addr, uint16(value))
		case 4:
			err = lsu.memory.WriteUint32(addr, uint32(value))
		default:
			err = lsu.memory.WriteUint64(addr, value)
		}

		if err != nil {
			return errors.Wrap(err, "store 0x%x", addr)
		}

		return nil
	}

	value, err := lsu.load(addr, inst.Size)
	if err != nil {
		return errors.Wrap(err, "load 0x%x", addr)
	}

	if inst.Signed {
		value = uint64(int64(int32(uint32(value))))
	}

	lsu.regFile.WriteReg(inst.Rd, value)

	return nil
}

func (lsu *LoadStoreUnit) load(addr uint64, size uint8) (uint64, error) {
	switch size {
	case 1:
		v, err := lsu.memory.ReadUint8(addr)
		return uint64(v), err
	case 2:
		v, err := lsu.memory.ReadUint16(addr)
		return uint64(v), err
	case 4:
		v, err := lsu.memory.ReadUint32(addr)
		return uint64(v), err
	default:
		return lsu.memory.ReadUint64(addr)
	}
}
