package state

import (
	"encoding/binary"

	"tlog.app/go/errors"
)

// NativeContext owns the raw register block that compiled code addresses by
// byte offset. The block is anonymous mapped memory on hosts that support it.
type NativeContext struct {
	mem []byte
}

// NewNativeContext allocates a zeroed register block of TotalSize bytes.
func NewNativeContext() (*NativeContext, error) {
	mem, err := allocateBlock(TotalSize)
	if err != nil {
		return nil, errors.Wrap(err, "allocate register block")
	}

	return &NativeContext{mem: mem}, nil
}

// Memory returns the register block. Compiled code reads and writes it
// directly at offsets returned by GetRegisterOffset.
func (c *NativeContext) Memory() []byte {
	if c.mem == nil {
		panic("state: native context used after Dispose")
	}

	return c.mem
}

// GetX returns integer register index.
func (c *NativeContext) GetX(index int) uint64 {
	off := GetRegisterOffset(IntReg(index))

	return binary.LittleEndian.Uint64(c.Memory()[off:])
}

// SetX writes integer register index.
func (c *NativeContext) SetX(index int, value uint64) {
	off := GetRegisterOffset(IntReg(index))

	binary.LittleEndian.PutUint64(c.Memory()[off:], value)
}

// GetV returns vector register index.
func (c *NativeContext) GetV(index int) V128 {
	off := GetRegisterOffset(VecReg(index))

	return V128FromBytes(c.Memory()[off:])
}

// SetV writes vector register index.
func (c *NativeContext) SetV(index int, value V128) {
	off := GetRegisterOffset(VecReg(index))

	value.PutBytes(c.Memory()[off:])
}

// GetPstateFlag returns the PSTATE flag slot. Any non-zero slot reads as set.
func (c *NativeContext) GetPstateFlag(flag PState) bool {
	off := GetRegisterOffset(FlagReg(flag))

	return binary.LittleEndian.Uint32(c.Memory()[off:]) != 0
}

// SetPstateFlag writes the PSTATE flag slot as 0 or 1.
func (c *NativeContext) SetPstateFlag(flag PState, value bool) {
	off := GetRegisterOffset(FlagReg(flag))

	binary.LittleEndian.PutUint32(c.Memory()[off:], boolToUint32(value))
}

// GetFPStateFlag returns the FP state flag slot.
func (c *NativeContext) GetFPStateFlag(flag FPState) bool {
	off := GetRegisterOffset(FpFlagReg(flag))

	return binary.LittleEndian.Uint32(c.Memory()[off:]) != 0
}

// SetFPStateFlag writes the FP state flag slot as 0 or 1.
func (c *NativeContext) SetFPStateFlag(flag FPState, value bool) {
	off := GetRegisterOffset(FpFlagReg(flag))

	binary.LittleEndian.PutUint32(c.Memory()[off:], boolToUint32(value))
}

// GetCounter returns the re-arm counter.
func (c *NativeContext) GetCounter() uint32 {
	return binary.LittleEndian.Uint32(c.Memory()[GetCounterOffset():])
}

// SetCounter writes the re-arm counter.
func (c *NativeContext) SetCounter(value uint32) {
	binary.LittleEndian.PutUint32(c.Memory()[GetCounterOffset():], value)
}

// GetCallAddress returns the call-address slot.
func (c *NativeContext) GetCallAddress() uint32 {
	return binary.LittleEndian.Uint32(c.Memory()[GetCallAddressOffset():])
}

// SetCallAddress writes the call-address slot.
func (c *NativeContext) SetCallAddress(value uint32) {
	binary.LittleEndian.PutUint32(c.Memory()[GetCallAddressOffset():], value)
}

// Dispose releases the register block. The context must not be used after.
func (c *NativeContext) Dispose() error {
	if c.mem == nil {
		return nil
	}

	err := releaseBlock(c.mem)
	c.mem = nil

	if err != nil {
		return errors.Wrap(err, "release register block")
	}

	return nil
}

func boolToUint32(v bool) uint32 {
	if v {
		return 1
	}

	return 0
}
