package cpu

import (
	"io"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/sarchlab/a64jit/memory"
	"github.com/sarchlab/a64jit/state"
)

// AArch64 Linux syscall numbers.
const (
	SyscallClose     uint64 = 57 // close(fd)
	SyscallRead      uint64 = 63 // read(fd, buf, count)
	SyscallWrite     uint64 = 64 // write(fd, buf, count)
	SyscallExit      uint64 = 93 // exit(status)
	SyscallExitGroup uint64 = 94 // exit_group(status)
)

// Linux error codes.
const (
	EIO    = 5  // I/O error
	EBADF  = 9  // Bad file descriptor
	EFAULT = 14 // Bad address
	ENOSYS = 38 // Function not implemented
)

// SyscallResult is the outcome of one syscall.
type SyscallResult struct {
	// Exited is true if the syscall terminated the program.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler services SVC #0 using the Linux convention: the number in
// X8, arguments in X0-X5 and the result in X0.
type SyscallHandler interface {
	Handle(ec *state.ExecutionContext) SyscallResult
}

// LinuxSyscalls implements the handful of syscalls a freestanding program
// needs for I/O and exit.
type LinuxSyscalls struct {
	memory *memory.Manager
	fds    *FDTable
}

// NewLinuxSyscalls creates a handler over mem and fds.
func NewLinuxSyscalls(mem *memory.Manager, fds *FDTable) *LinuxSyscalls {
	return &LinuxSyscalls{memory: mem, fds: fds}
}

// Handle executes the syscall selected by X8.
func (h *LinuxSyscalls) Handle(ec *state.ExecutionContext) SyscallResult {
	num := ec.GetX(8)

	tlog.V("syscall").Printw("syscall", "num", num, "x0", ec.GetX(0), "x1", ec.GetX(1), "x2", ec.GetX(2))

	switch num {
	case SyscallRead:
		h.read(ec)
	case SyscallWrite:
		h.write(ec)
	case SyscallClose:
		if err := h.fds.Close(ec.GetX(0)); err != nil {
			setError(ec, EBADF)
		} else {
			ec.SetX(0, 0)
		}
	case SyscallExit, SyscallExitGroup:
		return SyscallResult{Exited: true, ExitCode: int64(ec.GetX(0))}
	default:
		setError(ec, ENOSYS)
	}

	return SyscallResult{}
}

func (h *LinuxSyscalls) read(ec *state.ExecutionContext) {
	fd := ec.GetX(0)
	bufPtr := ec.GetX(1)
	count := ec.GetX(2)

	if _, ok := h.fds.Get(fd); !ok {
		setError(ec, EBADF)
		return
	}

	if count > h.memory.Size() {
		setError(ec, EFAULT)
		return
	}

	buf := make([]byte, count)

	n, err := h.fds.Read(fd, buf)
	if err != nil && n == 0 {
		if errors.Is(err, io.EOF) {
			ec.SetX(0, 0)
		} else {
			setError(ec, EIO)
		}

		return
	}

	if err := h.memory.Write(bufPtr, buf[:n]); err != nil {
		setError(ec, EFAULT)
		return
	}

	ec.SetX(0, uint64(n))
}

func (h *LinuxSyscalls) write(ec *state.ExecutionContext) {
	fd := ec.GetX(0)
	bufPtr := ec.GetX(1)
	count := ec.GetX(2)

	if _, ok := h.fds.Get(fd); !ok {
		setError(ec, EBADF)
		return
	}

	buf, err := h.memory.Read(bufPtr, count)
	if err != nil {
		setError(ec, EFAULT)
		return
	}

	n, err := h.fds.Write(fd, buf)
	if err != nil {
		setError(ec, EIO)
		return
	}

	ec.SetX(0, uint64(n))
}

// setError sets X0 to -errno.
func setError(ec *state.ExecutionContext, errno int) {
	ec.SetX(0, uint64(-int64(errno)))
}
