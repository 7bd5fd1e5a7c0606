// Package interp executes A64 guest instructions one at a time directly
// against an execution context. It runs code the translator cannot compile
// and serves as the reference the compiled code is checked against.
package interp

import "github.com/sarchlab/a64jit/state"

// RegFile views the integer registers and NZCV flags of an execution
// context. Register 31 reads as zero or as SP depending on the accessor.
type RegFile struct {
	ec *state.ExecutionContext
}

// NewRegFile wraps ec.
func NewRegFile(ec *state.ExecutionContext) *RegFile {
	return &RegFile{ec: ec}
}

// ReadReg reads a register value. Register 31 returns 0 (XZR).
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg >= 31 {
		return 0
	}
	return r.ec.GetX(int(reg))
}

// ReadRegOrSP reads a register value, treating register 31 as SP.
func (r *RegFile) ReadRegOrSP(reg uint8) uint64 {
	return r.ec.GetX(int(reg & 31))
}

// WriteReg writes a register value. Writes to register 31 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg >= 31 {
		return
	}
	r.ec.SetX(int(reg), value)
}

// WriteRegOrSP writes a register value, treating register 31 as SP.
func (r *RegFile) WriteRegOrSP(reg uint8, value uint64) {
	r.ec.SetX(int(reg&31), value)
}

// Flags returns N, Z, C and V.
func (r *RegFile) Flags() (n, z, c, v bool) {
	return r.ec.GetPstateFlag(state.NFlag),
		r.ec.GetPstateFlag(state.ZFlag),
		r.ec.GetPstateFlag(state.CFlag),
		r.ec.GetPstateFlag(state.VFlag)
}

// SetFlags writes N, Z, C and V.
func (r *RegFile) SetFlags(n, z, c, v bool) {
	r.ec.SetPstateFlag(state.NFlag, n)
	r.ec.SetPstateFlag(state.ZFlag, z)
	r.ec.SetPstateFlag(state.CFlag, c)
	r.ec.SetPstateFlag(state.VFlag, v)
}
