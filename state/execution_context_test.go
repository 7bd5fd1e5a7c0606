package state_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/a64jit/state"
)

var _ = Describe("ExecutionContext", func() {
	var (
		ec         *state.ExecutionContext
		interrupts int
	)

	BeforeEach(func() {
		interrupts = 0

		var err error
		ec, err = state.NewExecutionContext(
			state.WithInterruptHandler(func(*state.ExecutionContext) {
				interrupts++
			}),
		)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(ec.Dispose()).To(Succeed())
	})

	Describe("counter re-arm", func() {
		It("should arm the counter on construction", func() {
			Expect(ec.GetCounter()).To(Equal(uint32(state.MinCountForCheck)))
		})

		It("should re-arm without firing when nothing is pending", func() {
			ec.SetCounter(0)
			ec.CheckInterrupt()

			Expect(ec.InterruptPending()).To(BeFalse())
			Expect(ec.GetCounter()).To(Equal(uint32(state.MinCountForCheck)))
			Expect(interrupts).To(Equal(0))
		})

		It("should fire exactly one interrupt per request", func() {
			ec.RequestInterrupt()
			Expect(ec.InterruptPending()).To(BeTrue())

			ec.CheckInterrupt()
			ec.CheckInterrupt()

			Expect(interrupts).To(Equal(1))
			Expect(ec.InterruptPending()).To(BeFalse())
		})
	})

	Describe("registers", func() {
		It("should store integer registers by offset", func() {
			ec.SetX(3, 0x1122334455667788)

			Expect(ec.GetX(3)).To(Equal(uint64(0x1122334455667788)))
			Expect(ec.Native().Memory()[24]).To(Equal(byte(0x88)))
		})

		It("should store vector registers", func() {
			v := state.V128FromInt64s(1, 2)
			ec.SetV(31, v)

			Expect(ec.GetV(31)).To(Equal(v))
		})

		It("should reject register indices out of range", func() {
			Expect(func() { ec.GetX(state.IntRegsCount) }).
				To(PanicWith(MatchError(state.ErrInvalidArgument)))
			Expect(func() { ec.SetV(-1, state.V128{}) }).
				To(PanicWith(MatchError(state.ErrInvalidArgument)))
			Expect(func() { ec.GetPstateFlag(state.PState(state.FlagsCount)) }).
				To(PanicWith(MatchError(state.ErrInvalidArgument)))
		})

		It("should compose PSTATE from flag slots", func() {
			ec.SetPstateFlag(state.NFlag, true)
			ec.SetPstateFlag(state.CFlag, true)

			Expect(ec.Pstate()).To(Equal(uint32(0xa0000000)))

			ec.SetPstate(0x40000000)
			Expect(ec.GetPstateFlag(state.ZFlag)).To(BeTrue())
			Expect(ec.GetPstateFlag(state.NFlag)).To(BeFalse())
		})

		It("should split FPSR and FPCR", func() {
			ec.SetFpcr(1 << uint(state.DnFlag))
			ec.SetFpsr(1 << uint(state.QcFlag))

			Expect(ec.Fpcr()).To(Equal(uint32(1 << uint(state.DnFlag))))
			Expect(ec.Fpsr()).To(Equal(uint32(1 << uint(state.QcFlag))))
		})
	})

	Describe("traps", func() {
		It("should deliver payloads to the registered handler", func() {
			var gotAddr uint64
			var gotImm uint32

			ctx, err := state.NewExecutionContext(
				state.WithSupervisorCallHandler(func(_ *state.ExecutionContext, addr uint64, imm uint32) {
					gotAddr, gotImm = addr, imm
				}),
			)
			Expect(err).ToNot(HaveOccurred())
			defer ctx.Dispose()

			ctx.OnSupervisorCall(0x1000, 7)
			ctx.OnBreak(0x2000, 1)

			Expect(gotAddr).To(Equal(uint64(0x1000)))
			Expect(gotImm).To(Equal(uint32(7)))
		})
	})

	It("should stop running", func() {
		Expect(ec.Running()).To(BeTrue())
		ec.StopRunning()
		Expect(ec.Running()).To(BeFalse())
	})

	It("should derive the timer count from the injected clock", func() {
		start := time.Unix(100, 0)
		now := start.Add(2 * time.Second)

		ctx, err := state.NewExecutionContext(state.WithClock(&state.Clock{
			Frequency: 1000,
			Start:     start,
			Now:       func() time.Time { return now },
		}))
		Expect(err).ToNot(HaveOccurred())
		defer ctx.Dispose()

		Expect(ctx.CntfrqEl0()).To(Equal(uint64(1000)))
		Expect(ctx.CntpctEl0()).To(Equal(uint64(2000)))
	})
})
