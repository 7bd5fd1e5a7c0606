package loader_test

import (
	"debug/elf"
	"encoding/binary"
	"os"

	. "github.com/onsi/gomega"
)

// progHeader is one program header plus the file bytes it covers.
type progHeader struct {
	typ   elf.ProgType
	flags elf.ProgFlag
	vaddr uint64
	data  []byte
	memsz uint64
}

const (
	ehdrSize = 64
	phdrSize = 56
)

// writeELF writes a little-endian ELF64 executable whose segment data
// follows the program header table in order.
func writeELF(path string, machine elf.Machine, entry uint64, phdrs ...progHeader) {
	le := binary.LittleEndian

	ehdr := make([]byte, ehdrSize)
	copy(ehdr, elf.ELFMAG)
	ehdr[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ehdr[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ehdr[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	le.PutUint16(ehdr[16:], uint16(elf.ET_EXEC))
	le.PutUint16(ehdr[18:], uint16(machine))
	le.PutUint32(ehdr[20:], uint32(elf.EV_CURRENT))
	le.PutUint64(ehdr[24:], entry)
	le.PutUint64(ehdr[32:], ehdrSize)
	le.PutUint16(ehdr[52:], ehdrSize)
	le.PutUint16(ehdr[54:], phdrSize)
	le.PutUint16(ehdr[56:], uint16(len(phdrs)))
	le.PutUint16(ehdr[58:], 64)

	out := ehdr
	offset := uint64(ehdrSize + phdrSize*len(phdrs))

	for _, ph := range phdrs {
		b := make([]byte, phdrSize)
		le.PutUint32(b[0:], uint32(ph.typ))
		le.PutUint32(b[4:], uint32(ph.flags))
		le.PutUint64(b[8:], offset)
		le.PutUint64(b[16:], ph.vaddr)
		le.PutUint64(b[24:], ph.vaddr)
		le.PutUint64(b[32:], uint64(len(ph.data)))
		le.PutUint64(b[40:], ph.memsz)
		le.PutUint64(b[48:], 0x1000)

		out = append(out, b...)
		offset += uint64(len(ph.data))
	}

	for _, ph := range phdrs {
		out = append(out, ph.data...)
	}

	Expect(os.WriteFile(path, out, 0644)).To(Succeed())
}

func createMinimalARM64ELF(path string, loadAddr, entryPoint uint64, code []byte) {
	writeELF(path, elf.EM_AARCH64, entryPoint, progHeader{
		typ: elf.PT_LOAD, flags: elf.PF_R | elf.PF_X, vaddr: loadAddr, data: code, memsz: uint64(len(code)),
	})
}

func createMinimalx86ELF(path string) {
	writeELF(path, elf.EM_X86_64, 0)
}

// createMinimal32BitELF writes just an ELFCLASS32 identification header.
func createMinimal32BitELF(path string) {
	ehdr := make([]byte, 52)
	copy(ehdr, elf.ELFMAG)
	ehdr[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ehdr[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ehdr[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	binary.LittleEndian.PutUint16(ehdr[16:], uint16(elf.ET_EXEC))
	binary.LittleEndian.PutUint16(ehdr[18:], uint16(elf.EM_AARCH64))
	binary.LittleEndian.PutUint32(ehdr[20:], uint32(elf.EV_CURRENT))

	Expect(os.WriteFile(path, ehdr, 0644)).To(Succeed())
}

func createMultiSegmentARM64ELF(path string, codeAddr, entryPoint uint64, code []byte, dataAddr uint64, data []byte) {
	writeELF(path, elf.EM_AARCH64, entryPoint,
		progHeader{typ: elf.PT_LOAD, flags: elf.PF_R | elf.PF_X, vaddr: codeAddr, data: code, memsz: uint64(len(code))},
		progHeader{typ: elf.PT_LOAD, flags: elf.PF_R | elf.PF_W, vaddr: dataAddr, data: data, memsz: uint64(len(data))},
	)
}

func createBSSSegmentELF(path string, segAddr, entryPoint uint64, data []byte, memSize uint64) {
	writeELF(path, elf.EM_AARCH64, entryPoint, progHeader{
		typ: elf.PT_LOAD, flags: elf.PF_R | elf.PF_W, vaddr: segAddr, data: data, memsz: memSize,
	})
}

func createZeroFileszELF(path string, segAddr, entryPoint uint64, memSize uint64) {
	createBSSSegmentELF(path, segAddr, entryPoint, nil, memSize)
}

func createNoLoadableSegmentsELF(path string, entryPoint uint64) {
	writeELF(path, elf.EM_AARCH64, entryPoint, progHeader{typ: elf.PT_NOTE, flags: elf.PF_R})
}
