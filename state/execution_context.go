package state

import "sync/atomic"

// MinCountForCheck is the value the counter is re-armed to. Compiled code
// decrements the counter and calls back into the host only when it reaches
// zero.
const MinCountForCheck = 40000

// ExecutionMode is the guest instruction set state.
type ExecutionMode int

// Execution modes. Only Aarch64 is translated.
const (
	Aarch64 ExecutionMode = iota
	Aarch32Arm
	Aarch32Thumb
)

// InterruptHandler is called from CheckInterrupt when an interrupt was
// requested.
type InterruptHandler func(ec *ExecutionContext)

// InstructionHandler receives a guest trap. payload is the instruction
// immediate for breakpoints and supervisor calls and the raw opcode for
// undefined instructions.
type InstructionHandler func(ec *ExecutionContext, address uint64, payload uint32)

// RejitHandler receives the entry address of a function that became hot.
type RejitHandler func(ec *ExecutionContext, address uint64)

// ExecutionContext is the per-thread guest CPU state: the native register
// block plus the host callbacks raised by compiled code.
type ExecutionContext struct {
	native *NativeContext
	clock  *Clock

	running     atomic.Bool
	interrupted atomic.Bool

	onInterrupt      InterruptHandler
	onBreak          InstructionHandler
	onSupervisorCall InstructionHandler
	onUndefined      InstructionHandler
	onRejit          RejitHandler

	// TpidrEl0 is the user read/write thread pointer.
	TpidrEl0 uint64
	// TpidrroEl0 is the user read-only thread pointer.
	TpidrroEl0 uint64
	// Mode is the guest instruction set state.
	Mode ExecutionMode
}

// ContextOption configures an ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithInterruptHandler sets the handler called when a requested interrupt
// is delivered.
func WithInterruptHandler(h InterruptHandler) ContextOption {
	return func(ec *ExecutionContext) {
		ec.onInterrupt = h
	}
}

// WithBreakHandler sets the BRK handler.
func WithBreakHandler(h InstructionHandler) ContextOption {
	return func(ec *ExecutionContext) {
		ec.onBreak = h
	}
}

// WithSupervisorCallHandler sets the SVC handler.
func WithSupervisorCallHandler(h InstructionHandler) ContextOption {
	return func(ec *ExecutionContext) {
		ec.onSupervisorCall = h
	}
}

// WithUndefinedHandler sets the undefined-instruction handler.
func WithUndefinedHandler(h InstructionHandler) ContextOption {
	return func(ec *ExecutionContext) {
		ec.onUndefined = h
	}
}

// WithRejitHandler sets the handler called when compiled code asks for its
// function to be retranslated.
func WithRejitHandler(h RejitHandler) ContextOption {
	return func(ec *ExecutionContext) {
		ec.onRejit = h
	}
}

// WithClock sets the generic timer source.
func WithClock(c *Clock) ContextOption {
	return func(ec *ExecutionContext) {
		ec.clock = c
	}
}

// NewExecutionContext allocates a register block and arms the counter.
func NewExecutionContext(opts ...ContextOption) (*ExecutionContext, error) {
	native, err := NewNativeContext()
	if err != nil {
		return nil, err
	}

	ec := &ExecutionContext{
		native: native,
		clock:  NewClock(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	ec.running.Store(true)
	native.SetCounter(MinCountForCheck)

	return ec, nil
}

// Native returns the raw register block.
func (ec *ExecutionContext) Native() *NativeContext {
	return ec.native
}

// GetX returns integer register index. Index 31 is SP.
func (ec *ExecutionContext) GetX(index int) uint64 { return ec.native.GetX(index) }

// SetX writes integer register index.
func (ec *ExecutionContext) SetX(index int, value uint64) { ec.native.SetX(index, value) }

// GetV returns vector register index.
func (ec *ExecutionContext) GetV(index int) V128 { return ec.native.GetV(index) }

// SetV writes vector register index.
func (ec *ExecutionContext) SetV(index int, value V128) { ec.native.SetV(index, value) }

// GetPstateFlag returns a PSTATE flag.
func (ec *ExecutionContext) GetPstateFlag(flag PState) bool { return ec.native.GetPstateFlag(flag) }

// SetPstateFlag writes a PSTATE flag.
func (ec *ExecutionContext) SetPstateFlag(flag PState, value bool) {
	ec.native.SetPstateFlag(flag, value)
}

// GetFPStateFlag returns an FP state flag.
func (ec *ExecutionContext) GetFPStateFlag(flag FPState) bool {
	return ec.native.GetFPStateFlag(flag)
}

// SetFPStateFlag writes an FP state flag.
func (ec *ExecutionContext) SetFPStateFlag(flag FPState, value bool) {
	ec.native.SetFPStateFlag(flag, value)
}

// GetCounter returns the re-arm counter.
func (ec *ExecutionContext) GetCounter() uint32 { return ec.native.GetCounter() }

// SetCounter writes the re-arm counter.
func (ec *ExecutionContext) SetCounter(value uint32) { ec.native.SetCounter(value) }

// Pstate composes the NZCV and other tracked PSTATE bits.
func (ec *ExecutionContext) Pstate() uint32 {
	var v uint32

	for flag := range PState(FlagsCount) {
		if ec.native.GetPstateFlag(flag) {
			v |= 1 << uint(flag)
		}
	}

	return v
}

// SetPstate scatters v into the PSTATE flag slots.
func (ec *ExecutionContext) SetPstate(v uint32) {
	for flag := range PState(FlagsCount) {
		ec.native.SetPstateFlag(flag, v&(1<<uint(flag)) != 0)
	}
}

// Fpsr returns the FP status register.
func (ec *ExecutionContext) Fpsr() uint32 { return ec.fpBits(FpsrMask) }

// SetFpsr writes the FP status register.
func (ec *ExecutionContext) SetFpsr(v uint32) { ec.setFpBits(FpsrMask, v) }

// Fpcr returns the FP control register.
func (ec *ExecutionContext) Fpcr() uint32 { return ec.fpBits(FpcrMask) }

// SetFpcr writes the FP control register.
func (ec *ExecutionContext) SetFpcr(v uint32) { ec.setFpBits(FpcrMask, v) }

func (ec *ExecutionContext) fpBits(mask uint32) uint32 {
	var v uint32

	for flag := range FPState(FpFlagsCount) {
		if mask&(1<<uint(flag)) != 0 && ec.native.GetFPStateFlag(flag) {
			v |= 1 << uint(flag)
		}
	}

	return v
}

func (ec *ExecutionContext) setFpBits(mask, v uint32) {
	for flag := range FPState(FpFlagsCount) {
		if mask&(1<<uint(flag)) != 0 {
			ec.native.SetFPStateFlag(flag, v&(1<<uint(flag)) != 0)
		}
	}
}

// CntfrqEl0 returns the generic timer frequency.
func (ec *ExecutionContext) CntfrqEl0() uint64 { return ec.clock.Frequency }

// CntpctEl0 returns the generic timer count.
func (ec *ExecutionContext) CntpctEl0() uint64 { return ec.clock.Ticks() }

// Running reports whether the dispatch loop should keep executing.
func (ec *ExecutionContext) Running() bool { return ec.running.Load() }

// StopRunning asks the dispatch loop to return. It takes effect at the next
// synchronization point of the running code.
func (ec *ExecutionContext) StopRunning() {
	ec.running.Store(false)
}

// RequestInterrupt marks an interrupt pending. It is delivered by the next
// CheckInterrupt on the thread running this context.
func (ec *ExecutionContext) RequestInterrupt() {
	ec.interrupted.Store(true)
}

// InterruptPending reports whether an interrupt is waiting for delivery.
func (ec *ExecutionContext) InterruptPending() bool { return ec.interrupted.Load() }

// CheckInterrupt delivers a pending interrupt, if any, and re-arms the
// counter.
func (ec *ExecutionContext) CheckInterrupt() {
	if ec.interrupted.CompareAndSwap(true, false) && ec.onInterrupt != nil {
		ec.onInterrupt(ec)
	}

	ec.native.SetCounter(MinCountForCheck)
}

// OnBreak raises the BRK handler.
func (ec *ExecutionContext) OnBreak(address uint64, imm uint32) {
	if ec.onBreak != nil {
		ec.onBreak(ec, address, imm)
	}
}

// OnSupervisorCall raises the SVC handler.
func (ec *ExecutionContext) OnSupervisorCall(address uint64, imm uint32) {
	if ec.onSupervisorCall != nil {
		ec.onSupervisorCall(ec, address, imm)
	}
}

// OnUndefined raises the undefined-instruction handler.
func (ec *ExecutionContext) OnUndefined(address uint64, opcode uint32) {
	if ec.onUndefined != nil {
		ec.onUndefined(ec, address, opcode)
	}
}

// OnRejit raises the rejit handler.
func (ec *ExecutionContext) OnRejit(address uint64) {
	if ec.onRejit != nil {
		ec.onRejit(ec, address)
	}
}

// Dispose frees the register block.
func (ec *ExecutionContext) Dispose() error {
	return ec.native.Dispose()
}
