// Package cpu ties guest memory, the A64 front end, the backend and the
// translation cache into a runnable guest CPU.
package cpu

import (
	"context"
	"io"
	"os"
	"sync"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/codegen"
	"github.com/sarchlab/a64jit/frontend"
	"github.com/sarchlab/a64jit/interp"
	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/state"
	"github.com/sarchlab/a64jit/translation"
)

// Guest faults raised through traps.
var (
	ErrBreakpoint           = errors.New("breakpoint")
	ErrUndefinedInstruction = errors.New("undefined instruction")
	ErrUnknownContext       = errors.New("context not created by this cpu")
)

// ExitStatus is the recorded end of a context's execution.
type ExitStatus struct {
	Exited bool
	Code   int64
}

// thread is the per-context bookkeeping.
type thread struct {
	status ExitStatus
	fault  error
}

// CPU executes guest code from one address space.
type CPU struct {
	memory     *memory.Manager
	translator *translation.Translator
	interp     *interp.Interpreter

	config   *translation.Config
	fallback bool
	syscalls SyscallHandler

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	mu      sync.Mutex
	threads map[*state.ExecutionContext]*thread
}

// Option is a functional option for configuring the CPU.
type Option func(*CPU)

// WithConfig sets the translation config.
func WithConfig(cfg *translation.Config) Option {
	return func(c *CPU) {
		c.config = cfg
	}
}

// WithInterpreterFallback interprets functions that fail to translate
// instead of stopping.
func WithInterpreterFallback(enabled bool) Option {
	return func(c *CPU) {
		c.fallback = enabled
	}
}

// WithStdin sets the guest's standard input.
func WithStdin(r io.Reader) Option {
	return func(c *CPU) {
		c.stdin = r
	}
}

// WithStdout sets the guest's standard output.
func WithStdout(w io.Writer) Option {
	return func(c *CPU) {
		c.stdout = w
	}
}

// WithStderr sets the guest's standard error.
func WithStderr(w io.Writer) Option {
	return func(c *CPU) {
		c.stderr = w
	}
}

// WithSyscallHandler replaces the Linux syscall handler.
func WithSyscallHandler(h SyscallHandler) Option {
	return func(c *CPU) {
		c.syscalls = h
	}
}

// New creates a CPU over mem.
func New(mem *memory.Manager, opts ...Option) (*CPU, error) {
	c := &CPU{
		memory:   mem,
		config:   translation.DefaultConfig(),
		fallback: true,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		threads:  make(map[*state.ExecutionContext]*thread),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.syscalls == nil {
		c.syscalls = NewLinuxSyscalls(mem, NewFDTable(c.stdin, c.stdout, c.stderr))
	}

	c.interp = interp.New(mem)

	topts := []translation.TranslatorOption{translation.WithConfig(c.config)}
	if c.fallback {
		topts = append(topts, translation.WithFallback(c.interp.Step))
	}

	t, err := translation.NewTranslator(frontend.New(mem), codegen.NewCompiler(mem), topts...)
	if err != nil {
		return nil, errors.Wrap(err, "new translator")
	}

	c.translator = t

	return c, nil
}

// Memory returns the guest address space.
func (c *CPU) Memory() *memory.Manager {
	return c.memory
}

// Translator returns the translator, for cache control.
func (c *CPU) Translator() *translation.Translator {
	return c.translator
}

// NewContext creates an execution context wired to the CPU's trap
// handling. opts are applied after the defaults and may replace them.
func (c *CPU) NewContext(opts ...state.ContextOption) (*state.ExecutionContext, error) {
	th := &thread{}

	defaults := []state.ContextOption{
		state.WithSupervisorCallHandler(func(ec *state.ExecutionContext, _ uint64, _ uint32) {
			res := c.syscalls.Handle(ec)
			if res.Exited {
				th.status = ExitStatus{Exited: true, Code: res.ExitCode}
				ec.StopRunning()
			}
		}),
		state.WithBreakHandler(func(ec *state.ExecutionContext, address uint64, imm uint32) {
			th.fault = errors.Wrap(ErrBreakpoint, "brk #0x%x at 0x%x", imm, address)
			ec.StopRunning()
		}),
		state.WithUndefinedHandler(func(ec *state.ExecutionContext, address uint64, opcode uint32) {
			th.fault = errors.Wrap(ErrUndefinedInstruction, "0x%08x at 0x%x", opcode, address)
			ec.StopRunning()
		}),
		state.WithRejitHandler(c.translator.RejitHandler()),
	}

	ec, err := state.NewExecutionContext(append(defaults, opts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "new execution context")
	}

	c.mu.Lock()
	c.threads[ec] = th
	c.mu.Unlock()

	return ec, nil
}

// DisposeContext releases ec.
func (c *CPU) DisposeContext(ec *state.ExecutionContext) error {
	c.mu.Lock()
	delete(c.threads, ec)
	c.mu.Unlock()

	return ec.Dispose()
}

// Execute runs ec from address until the guest exits, traps fatally, the
// context is stopped from outside or a function returns to address 0.
func (c *CPU) Execute(ctx context.Context, ec *state.ExecutionContext, address uint64) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "execute", "address", address)
	defer tr.Finish("err", &err)

	c.mu.Lock()
	th, ok := c.threads[ec]
	c.mu.Unlock()

	if !ok {
		return ErrUnknownContext
	}

	if err := c.translator.Execute(ctx, ec, address); err != nil {
		return err
	}

	if th.fault != nil {
		return th.fault
	}

	if th.status.Exited {
		tr.Printw("exited", "code", th.status.Code)
	}

	return nil
}

// ExitStatus returns the exit status recorded for ec.
func (c *CPU) ExitStatus(ec *state.ExecutionContext) ExitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if th, ok := c.threads[ec]; ok {
		return th.status
	}

	return ExitStatus{}
}
