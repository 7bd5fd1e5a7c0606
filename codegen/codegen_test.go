package codegen_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/a64jit/codegen"
	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/state"
	"github.com/sarchlab/a64jit/translation"
)

type emitFunc func(e *translation.Emitter)

func (f emitFunc) Emit(_ context.Context, e *translation.Emitter, address uint64, _ *translation.Config) (translation.GuestRange, error) {
	f(e)

	return translation.GuestRange{Start: address, End: address + 4}, nil
}

var _ = Describe("Compiler", func() {
	var (
		mem       *memory.Manager
		compiler  *codegen.Compiler
		ec        *state.ExecutionContext
		svcCalls  []uint32
		optimized bool
	)

	compile := func(emit emitFunc) translation.Function {
		cfg := translation.DefaultConfig()
		cfg.Optimize = optimized

		unit, err := translation.Translate(context.Background(), emit, compiler, 0x1000, cfg)
		Expect(err).ToNot(HaveOccurred())

		return unit.Function
	}

	emitDiamond := func(e *translation.Emitter) {
		lblElse := e.NewLabel()
		lblEnd := e.NewLabel()

		e.BranchIfFalse(lblElse, e.GetIntRegister(0))
		e.SetIntRegister(1, ir.ConstI64(1))
		e.Branch(lblEnd)

		e.MarkLabel(lblElse)
		e.SetIntRegister(1, ir.ConstI64(2))

		e.MarkLabel(lblEnd)
		e.Return(e.GetIntRegister(1))
	}

	// X1 = X0 + (X0-1) + ... + 1
	emitSum := func(e *translation.Emitter) {
		top := e.NewLabel()

		e.SetIntRegister(1, ir.ConstI64(0))

		e.MarkLabel(top)
		translation.EmitSynchronization(e)
		e.SetIntRegister(1, e.Binary(ir.Add, e.GetIntRegister(1), e.GetIntRegister(0)))
		e.SetIntRegister(0, e.Binary(ir.Subtract, e.GetIntRegister(0), ir.ConstI64(1)))
		e.BranchIfFalse(top, e.ICompareEqual(e.GetIntRegister(0), ir.ConstI64(0)))
		e.Return(ir.ConstU64(0x2000))
	}

	BeforeEach(func() {
		mem = memory.NewManager(1 << 20)
		compiler = codegen.NewCompiler(mem)
		svcCalls = nil

		var err error
		ec, err = state.NewExecutionContext(
			state.WithSupervisorCallHandler(func(ec *state.ExecutionContext, _ uint64, imm uint32) {
				svcCalls = append(svcCalls, imm)
				ec.SetX(0, 42)
			}),
			state.WithInterruptHandler(func(ec *state.ExecutionContext) {
				ec.StopRunning()
			}),
		)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(ec.Dispose()).To(Succeed())
	})

	for _, opt := range []bool{false, true} {
		opt := opt

		Context(fmt.Sprintf("optimize=%v", opt), func() {
			BeforeEach(func() {
				optimized = opt
			})

			It("should merge the taken arm of a diamond", func() {
				fn := compile(emitDiamond)

				ec.SetX(0, 0)
				Expect(fn.Execute(ec)).To(Equal(uint64(2)))
				Expect(ec.GetX(1)).To(Equal(uint64(2)))

				ec.SetX(0, 5)
				Expect(fn.Execute(ec)).To(Equal(uint64(1)))
				Expect(ec.GetX(1)).To(Equal(uint64(1)))
				Expect(ec.GetX(0)).To(Equal(uint64(5)))
			})

			It("should run a loop to completion", func() {
				fn := compile(emitSum)

				ec.SetX(0, 10)
				Expect(fn.Execute(ec)).To(Equal(uint64(0x2000)))
				Expect(ec.GetX(1)).To(Equal(uint64(55)))
				Expect(ec.GetX(0)).To(Equal(uint64(0)))
			})

			It("should decrement the synchronization counter", func() {
				fn := compile(emitSum)

				ec.SetX(0, 3)
				fn.Execute(ec)

				Expect(ec.GetCounter()).To(Equal(uint32(state.MinCountForCheck - 3)))
			})

			It("should leave when an interrupt stops the context", func() {
				fn := compile(emitSum)

				ec.SetX(0, 10)
				ec.SetCounter(0)
				ec.RequestInterrupt()

				Expect(fn.Execute(ec)).To(Equal(uint64(0)))
				Expect(ec.Running()).To(BeFalse())
				Expect(ec.GetX(1)).To(Equal(uint64(0)))
			})

			It("should reload registers changed by a trap handler", func() {
				fn := compile(func(e *translation.Emitter) {
					e.SetIntRegister(0, ir.ConstI64(7))
					e.Trap(ir.SupervisorCall, 0x1000, 93)
					e.Return(e.GetIntRegister(0))
				})

				Expect(fn.Execute(ec)).To(Equal(uint64(42)))
				Expect(svcCalls).To(Equal([]uint32{93}))
			})

			It("should access guest memory", func() {
				fn := compile(func(e *translation.Emitter) {
					addr := e.GetIntRegister(0)
					v := e.Load(ir.Load32, ir.I32, addr)
					e.Store(ir.Store64, e.Binary(ir.Add, addr, ir.ConstI64(8)), e.Unary(ir.SignExtend32, ir.I64, v))
					e.Return(ir.ConstU64(0))
				})

				Expect(mem.WriteUint32(0x100, 0xfffffffe)).To(Succeed())
				ec.SetX(0, 0x100)
				fn.Execute(ec)

				got, err := mem.ReadUint64(0x108)
				Expect(err).ToNot(HaveOccurred())
				Expect(got).To(Equal(uint64(0xfffffffffffffffe)))
			})

			It("should write flags as single bits", func() {
				fn := compile(func(e *translation.Emitter) {
					e.SetFlag(state.ZFlag, e.ICompareEqual(e.GetIntRegister(0), ir.ConstI64(0)))
					e.Return(ir.ConstU64(0))
				})

				ec.SetX(0, 0)
				fn.Execute(ec)
				Expect(ec.GetPstateFlag(state.ZFlag)).To(BeTrue())

				ec.SetX(0, 1)
				fn.Execute(ec)
				Expect(ec.GetPstateFlag(state.ZFlag)).To(BeFalse())
			})
		})
	}

	It("should panic with an access error on a guest fault", func() {
		optimized = true
		fn := compile(func(e *translation.Emitter) {
			e.Load(ir.Load64, ir.I64, e.GetIntRegister(0))
			e.Return(ir.ConstU64(0))
		})

		ec.SetX(0, 1<<30)

		Expect(func() { fn.Execute(ec) }).To(PanicWith(BeAssignableToTypeOf(&memory.AccessError{})))
	})

	It("should reject vector values", func() {
		cfg := translation.DefaultConfig()
		cfg.Optimize = false

		_, err := translation.Translate(context.Background(), emitFunc(func(e *translation.Emitter) {
			e.Add(ir.VectorZero, ir.Local(ir.V128))
			e.Return(ir.ConstU64(0))
		}), compiler, 0x1000, cfg)

		Expect(err).To(MatchError(codegen.ErrUnsupported))
	})

	It("should list the lowered program", func() {
		optimized = false
		fn := compile(emitDiamond)

		Expect(fn.(*codegen.Function).Disassemble()).To(ContainSubstring("pcopy"))
	})
})
