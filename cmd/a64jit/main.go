// Command a64jit disassembles, translates and runs AArch64 guest programs.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/codegen"
	"github.com/sarchlab/a64jit/cpu"
	"github.com/sarchlab/a64jit/frontend"
	"github.com/sarchlab/a64jit/ir"
	"github.com/sarchlab/a64jit/loader"
	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/translation"
)

// guestMemorySize covers the default stack top.
const guestMemorySize = 1 << 47

func main() {
	imageFlags := []*cli.Flag{
		cli.NewFlag("raw", false, "treat the file as a flat code image"),
		cli.NewFlag("base", "0x400000", "load address of a raw image"),
		cli.NewFlag("config", "", "translation config JSON file"),
		cli.NewFlag("no-opt", false, "skip the optimizer"),
	}

	disasmCmd := &cli.Command{
		Name:        "disasm",
		Description: "disassemble the executable segments",
		Action:      disasmAct,
		Args:        cli.Args{},
		Flags:       imageFlags,
	}

	translateCmd := &cli.Command{
		Name:        "translate",
		Description: "translate one function and dump its IR and compiled code",
		Action:      translateAct,
		Args:        cli.Args{},
		Flags: append([]*cli.Flag{
			cli.NewFlag("addr", "", "function address (default: entry point)"),
		}, imageFlags...),
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "run the program and exit with its status",
		Action:      runAct,
		Args:        cli.Args{},
		Flags: append([]*cli.Flag{
			cli.NewFlag("interp-fallback", true, "interpret functions that fail to translate"),
		}, imageFlags...),
	}

	app := &cli.Command{
		Name:        "a64jit",
		Description: "a64jit is an AArch64 guest translator",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("verbosity,v", "", "tlog verbosity topics (frontend, disasm, ir, cache, syscall)"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			disasmCmd,
			translateCmd,
			runCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func rootContext() context.Context {
	return tlog.ContextWithSpan(context.Background(), tlog.Root())
}

func loadImage(c *cli.Command) (*loader.Program, error) {
	if len(c.Args) != 1 {
		return nil, errors.New("expected one program file")
	}

	path := c.Args[0]

	if !c.Bool("raw") {
		return loader.Load(path)
	}

	base, err := strconv.ParseUint(c.String("base"), 0, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse base")
	}

	return loader.LoadRaw(path, base)
}

func loadConfig(c *cli.Command) (*translation.Config, error) {
	cfg := translation.DefaultConfig()

	if path := c.String("config"); path != "" {
		var err error

		cfg, err = translation.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	if c.Bool("no-opt") {
		cfg.Optimize = false
	}

	return cfg, nil
}

func newMemory(prog *loader.Program) (*memory.Manager, error) {
	mem := memory.NewManager(guestMemorySize)

	if err := prog.LoadInto(mem); err != nil {
		return nil, err
	}

	return mem, nil
}

func disasmAct(c *cli.Command) error {
	prog, err := loadImage(c)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	for _, seg := range prog.Segments {
		if seg.Flags&loader.SegmentFlagExecute == 0 {
			continue
		}

		fmt.Print(frontend.DisassembleRange(seg.Data, seg.VirtAddr))
	}

	return nil
}

// dumpingBackend prints the final IR before compiling it.
type dumpingBackend struct {
	*codegen.Compiler
}

func (b dumpingBackend) Compile(ctx context.Context, g *ir.ControlFlowGraph) (translation.Function, error) {
	fmt.Printf("; ir: %d blocks, %d operations\n%s\n", len(g.Blocks), g.OperationsCount(), g.Dump())

	return b.Compiler.Compile(ctx, g)
}

func translateAct(c *cli.Command) error {
	ctx := rootContext()

	prog, err := loadImage(c)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	addr := prog.EntryPoint
	if s := c.String("addr"); s != "" {
		addr, err = strconv.ParseUint(s, 0, 64)
		if err != nil {
			return errors.Wrap(err, "parse addr")
		}
	}

	mem, err := newMemory(prog)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	unit, err := translation.Translate(ctx, frontend.New(mem), dumpingBackend{codegen.NewCompiler(mem)}, addr, cfg)
	if err != nil {
		return errors.Wrap(err, "translate 0x%x", addr)
	}

	fmt.Printf("; guest range [0x%x, 0x%x)\n", unit.Range.Start, unit.Range.End)

	if fn, ok := unit.Function.(*codegen.Function); ok {
		fmt.Print(fn.Disassemble())
	}

	return nil
}

func runAct(c *cli.Command) error {
	ctx := rootContext()

	prog, err := loadImage(c)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	mem, err := newMemory(prog)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	machine, err := cpu.New(mem,
		cpu.WithConfig(cfg),
		cpu.WithInterpreterFallback(c.Bool("interp-fallback")),
		cpu.WithStdin(os.Stdin),
	)
	if err != nil {
		return errors.Wrap(err, "new cpu")
	}

	ec, err := machine.NewContext()
	if err != nil {
		return errors.Wrap(err, "new context")
	}

	defer func() {
		_ = machine.DisposeContext(ec)
	}()

	ec.SetX(31, prog.InitialSP)

	if err := machine.Execute(ctx, ec, prog.EntryPoint); err != nil {
		return errors.Wrap(err, "run")
	}

	status := machine.ExitStatus(ec)
	if status.Exited && status.Code != 0 {
		_ = machine.DisposeContext(ec)
		os.Exit(int(status.Code))
	}

	return nil
}
