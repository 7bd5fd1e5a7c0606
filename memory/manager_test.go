package memory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/a64jit/memory"
)

var _ = Describe("Manager", func() {
	var m *memory.Manager

	BeforeEach(func() {
		m = memory.NewManager(1 << 20)
	})

	It("should read back little-endian words", func() {
		Expect(m.WriteUint64(0x100, 0x0102030405060708)).To(Succeed())

		b, err := m.ReadUint8(0x100)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal(uint8(0x08)))

		w, err := m.ReadUint32(0x104)
		Expect(err).ToNot(HaveOccurred())
		Expect(w).To(Equal(uint32(0x01020304)))
	})

	It("should read zero from untouched memory", func() {
		v, err := m.ReadUint64(0x8000)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(BeZero())
	})

	It("should fetch instruction words", func() {
		Expect(m.WriteUint32(0x40, 0xd65f03c0)).To(Succeed())

		inst, err := m.Fetch(0x40)
		Expect(err).ToNot(HaveOccurred())
		Expect(inst).To(Equal(uint32(0xd65f03c0)))
	})

	It("should reject accesses past the end", func() {
		_, err := m.ReadUint32(1<<20 - 2)
		Expect(err).To(MatchError(memory.ErrOutOfRange))

		Expect(m.WriteUint8(1<<20, 1)).To(MatchError(memory.ErrOutOfRange))
	})

	It("should panic with an access error on faulting loads", func() {
		Expect(func() { m.Load(1<<20, 8) }).To(PanicWith(BeAssignableToTypeOf(&memory.AccessError{})))
	})

	It("should truncate stores to the access size", func() {
		m.Store(0x10, 2, 0xaabbccdd)

		Expect(m.Load(0x10, 4)).To(Equal(uint64(0xccdd)))
	})
})
