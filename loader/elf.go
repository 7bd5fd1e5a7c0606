// Package loader reads AArch64 guest programs, ELF64 executables or raw
// images, and places them in guest memory.
package loader

import (
	"debug/elf"
	"io"

	"tlog.app/go/errors"

	"github.com/sarchlab/a64jit/memory"
)

// Rejected ELF files.
var (
	ErrNotELF64   = errors.New("not a 64-bit ELF file")
	ErrNotAArch64 = errors.New("not an ARM64 ELF file")
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the default stack top address for ARM64 Linux user space.
// This is a conventional high address in the user space address range.
const DefaultStackTop = 0x7ffffffff000

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
}

// Load parses an ARM64 ELF binary and returns a Program ready for
// LoadInto.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open ELF file")
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, ErrNotELF64
	}

	if f.Machine != elf.EM_AARCH64 {
		return nil, errors.Wrap(ErrNotAArch64, "machine type %v", f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, errors.Wrap(err, "read segment at 0x%x", phdr.Vaddr)
			}
			if uint64(n) != phdr.Filesz {
				return nil, errors.Wrap(io.ErrUnexpectedEOF, "segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		seg := Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		}

		prog.Segments = append(prog.Segments, seg)
	}

	return prog, nil
}

// LoadInto copies every segment into mem, zero-filling the part of each
// segment beyond its file data.
func (p *Program) LoadInto(mem *memory.Manager) error {
	for _, seg := range p.Segments {
		if err := mem.Write(seg.VirtAddr, seg.Data); err != nil {
			return errors.Wrap(err, "load segment at 0x%x", seg.VirtAddr)
		}

		if seg.MemSize > uint64(len(seg.Data)) {
			bss := make([]byte, seg.MemSize-uint64(len(seg.Data)))
			if err := mem.Write(seg.VirtAddr+uint64(len(seg.Data)), bss); err != nil {
				return errors.Wrap(err, "zero segment at 0x%x", seg.VirtAddr)
			}
		}
	}

	return nil
}

// Contains reports whether address lies in one of the segments.
func (p *Program) Contains(address uint64) bool {
	for _, seg := range p.Segments {
		if address >= seg.VirtAddr && address-seg.VirtAddr < seg.MemSize {
			return true
		}
	}

	return false
}
