package cpu

import (
	"io"
	"os"
	"sync"
)

// FileDescriptor is an open guest file descriptor backed by a host stream.
type FileDescriptor struct {
	Name   string
	Reader io.Reader // nil when not readable
	Writer io.Writer // nil when not writable
	IsOpen bool
}

// FDTable manages the guest's file descriptors.
type FDTable struct {
	fds map[uint64]*FileDescriptor
	mu  sync.Mutex
}

// NewFDTable creates a table with the standard streams as FDs 0, 1 and 2.
// A nil stream leaves its descriptor closed.
func NewFDTable(stdin io.Reader, stdout, stderr io.Writer) *FDTable {
	t := &FDTable{fds: make(map[uint64]*FileDescriptor)}

	t.fds[0] = &FileDescriptor{Name: "stdin", Reader: stdin, IsOpen: stdin != nil}
	t.fds[1] = &FileDescriptor{Name: "stdout", Writer: stdout, IsOpen: stdout != nil}
	t.fds[2] = &FileDescriptor{Name: "stderr", Writer: stderr, IsOpen: stderr != nil}

	return t
}

// Get returns the file descriptor entry if it exists and is open.
func (t *FDTable) Get(fd uint64) (*FileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen {
		return nil, false
	}

	return entry, true
}

// Close closes a file descriptor. The host stream is left open.
func (t *FDTable) Close(fd uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.fds[fd]
	if !exists || !entry.IsOpen {
		return os.ErrInvalid
	}

	entry.IsOpen = false

	return nil
}

// Read reads from a readable descriptor.
func (t *FDTable) Read(fd uint64, buf []byte) (int, error) {
	entry, ok := t.Get(fd)
	if !ok || entry.Reader == nil {
		return 0, os.ErrInvalid
	}

	return entry.Reader.Read(buf)
}

// Write writes to a writable descriptor.
func (t *FDTable) Write(fd uint64, buf []byte) (int, error) {
	entry, ok := t.Get(fd)
	if !ok || entry.Writer == nil {
		return 0, os.ErrInvalid
	}

	return entry.Writer.Write(buf)
}
