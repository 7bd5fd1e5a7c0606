package loader_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tlog.app/go/errors"

	"github.com/sarchlab/a64jit/loader"
	"github.com/sarchlab/a64jit/memory"
)

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("with a valid ARM64 ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				createMinimalARM64ELF(elfPath, 0x400000, 0x400080, []byte{
					// Simple ARM64 code: mov x0, #42; ret
					0x40, 0x05, 0x80, 0xd2, // mov x0, #42
					0xc0, 0x03, 0x5f, 0xd6, // ret
				})
			})

			It("should load without error", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog).NotTo(BeNil())
			})

			It("should extract the correct entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x400080)))
			})

			It("should load segments into memory", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(prog.Segments)).To(BeNumerically(">", 0))
			})

			It("should set up initial stack pointer", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				// Stack should be set to a reasonable high address
				Expect(prog.InitialSP).To(BeNumerically(">", 0x7f0000000000))
			})
		})

		Context("with segment data", func() {
			It("should correctly load segment contents", func() {
				elfPath := filepath.Join(tempDir, "code.elf")
				codeData := []byte{
					0x40, 0x05, 0x80, 0xd2, // mov x0, #42
					0xc0, 0x03, 0x5f, 0xd6, // ret
				}
				createMinimalARM64ELF(elfPath, 0x400000, 0x400000, codeData)

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				// Find the segment containing our code
				var foundSegment *loader.Segment
				for i := range prog.Segments {
					if prog.Segments[i].VirtAddr == 0x400000 {
						foundSegment = &prog.Segments[i]
						break
					}
				}
				Expect(foundSegment).NotTo(BeNil())
				Expect(foundSegment.Data).To(HaveLen(len(codeData)))
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("open ELF file"))
			})

			It("should return error for non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "not-elf.bin")
				err := os.WriteFile(notElfPath, []byte("not an elf file"), 0644)
				Expect(err).NotTo(HaveOccurred())

				_, err = loader.Load(notElfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should return error for empty file", func() {
				emptyPath := filepath.Join(tempDir, "empty.elf")
				err := os.WriteFile(emptyPath, []byte{}, 0644)
				Expect(err).NotTo(HaveOccurred())

				_, err = loader.Load(emptyPath)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with non-ARM64 ELF", func() {
			It("should return error for x86-64 ELF", func() {
				elfPath := filepath.Join(tempDir, "x86.elf")
				createMinimalx86ELF(elfPath)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, loader.ErrNotAArch64)).To(BeTrue())
			})
		})

		Context("with 32-bit ELF", func() {
			It("should return error for 32-bit ELF", func() {
				elfPath := filepath.Join(tempDir, "elf32.elf")
				createMinimal32BitELF(elfPath)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, loader.ErrNotELF64)).To(BeTrue())
			})
		})
	})

	Describe("Program", func() {
		It("should load segments into guest memory", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			codeData := []byte{0x40, 0x05, 0x80, 0xd2, 0xc0, 0x03, 0x5f, 0xd6}
			createMinimalARM64ELF(elfPath, 0x4000, 0x4000, codeData)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			mem := memory.NewManager(0x10000)
			Expect(prog.LoadInto(mem)).To(Succeed())

			word, err := mem.Fetch(0x4000)
			Expect(err).NotTo(HaveOccurred())
			Expect(word).To(Equal(uint32(0xd2800540)))

			Expect(prog.Contains(0x4004)).To(BeTrue())
			Expect(prog.Contains(0x4008)).To(BeFalse())
		})

		It("should zero-fill BSS in guest memory", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			createBSSSegmentELF(elfPath, 0x6000, 0x4000, []byte{0x01, 0x02, 0x03, 0x04}, 64)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			mem := memory.NewManager(0x10000)
			Expect(mem.Write(0x6010, []byte{0xff})).To(Succeed())
			Expect(prog.LoadInto(mem)).To(Succeed())

			data, err := mem.Read(0x6000, 0x40)
			Expect(err).NotTo(HaveOccurred())
			Expect(data[:4]).To(Equal([]byte{0x01, 0x02, 0x03, 0x04}))
			Expect(data[0x10]).To(BeZero())
		})

		It("should fail to load outside guest memory", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			createMinimalARM64ELF(elfPath, 0x400000, 0x400000, []byte{0x00, 0x00, 0x00, 0x00})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			Expect(prog.LoadInto(memory.NewManager(0x1000))).NotTo(Succeed())
		})
	})

	Describe("LoadRaw", func() {
		It("should wrap a flat image in one segment", func() {
			rawPath := filepath.Join(tempDir, "code.bin")
			Expect(os.WriteFile(rawPath, []byte{0xc0, 0x03, 0x5f, 0xd6}, 0644)).To(Succeed())

			prog, err := loader.LoadRaw(rawPath, 0x1000)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(0x1000)))
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].Flags & loader.SegmentFlagExecute).NotTo(BeZero())
		})

		It("should reject empty images", func() {
			rawPath := filepath.Join(tempDir, "empty.bin")
			Expect(os.WriteFile(rawPath, nil, 0644)).To(Succeed())

			_, err := loader.LoadRaw(rawPath, 0x1000)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Segment", func() {
		It("should have correct virtual address", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			createMinimalARM64ELF(elfPath, 0x500000, 0x500000, []byte{0x00})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			found := false
			for _, seg := range prog.Segments {
				if seg.VirtAddr == 0x500000 {
					found = true
					break
				}
			}
			Expect(found).To(BeTrue())
		})

		It("should correctly report permissions", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			createMinimalARM64ELF(elfPath, 0x400000, 0x400000, []byte{0x00})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			// At least one segment should be executable (code)
			hasExecutable := false
			for _, seg := range prog.Segments {
				if seg.Flags&loader.SegmentFlagExecute != 0 {
					hasExecutable = true
					break
				}
			}
			Expect(hasExecutable).To(BeTrue())
		})
	})

	Describe("Multi-segment ELFs", func() {
		It("should load multiple PT_LOAD segments", func() {
			elfPath := filepath.Join(tempDir, "multi-segment.elf")
			codeData := []byte{0x40, 0x05, 0x80, 0xd2, 0xc0, 0x03, 0x5f, 0xd6}
			dataData := []byte{0x01, 0x02, 0x03, 0x04}
			createMultiSegmentARM64ELF(elfPath, 0x400000, 0x400000, codeData, 0x600000, dataData)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))

			// Find code segment
			var codeSeg, dataSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x400000 {
					codeSeg = &prog.Segments[i]
				}
				if prog.Segments[i].VirtAddr == 0x600000 {
					dataSeg = &prog.Segments[i]
				}
			}

			Expect(codeSeg).NotTo(BeNil())
			Expect(codeSeg.Data).To(Equal(codeData))
			Expect(codeSeg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())

			Expect(dataSeg).NotTo(BeNil())
			Expect(dataSeg.Data).To(Equal(dataData))
			Expect(dataSeg.Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})
	})

	Describe("BSS segments", func() {
		It("should handle BSS segments where Memsz > Filesz", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			initialData := []byte{0x01, 0x02, 0x03, 0x04}
			memSize := uint64(1024) // Much larger than file data
			createBSSSegmentELF(elfPath, 0x600000, 0x400000, initialData, memSize)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			// Find the BSS segment
			var bssSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x600000 {
					bssSeg = &prog.Segments[i]
					break
				}
			}

			Expect(bssSeg).NotTo(BeNil())
			Expect(bssSeg.Data).To(Equal(initialData))
			Expect(bssSeg.MemSize).To(Equal(memSize))
			Expect(bssSeg.MemSize).To(BeNumerically(">", uint64(len(bssSeg.Data))))
		})
	})

	Describe("Zero Filesz segments", func() {
		It("should handle segments with zero file size", func() {
			elfPath := filepath.Join(tempDir, "zero-filesz.elf")
			memSize := uint64(4096)
			createZeroFileszELF(elfPath, 0x700000, 0x400000, memSize)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			// Find the zero-filesz segment
			var zeroSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x700000 {
					zeroSeg = &prog.Segments[i]
					break
				}
			}

			Expect(zeroSeg).NotTo(BeNil())
			Expect(zeroSeg.Data).To(HaveLen(0))
			Expect(zeroSeg.MemSize).To(Equal(memSize))
		})
	})

	Describe("ELFs with no loadable segments", func() {
		It("should return empty segments list for ELF with no PT_LOAD", func() {
			elfPath := filepath.Join(tempDir, "no-load.elf")
			createNoLoadableSegmentsELF(elfPath, 0x400000)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
			Expect(prog.EntryPoint).To(Equal(uint64(0x400000)))
		})
	})
})
